// Package version exposes build metadata injected at link time.
package version

// GitCommit is set via -ldflags "-X .../pkg/version.GitCommit=<sha>".
var GitCommit = "dev"
