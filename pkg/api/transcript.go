package api

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"strings"
)

// maxTranscriptBytes caps how much of a transcript file the splice reads.
// Claude Code transcripts grow without bound; everything past the cap is
// older than the turn we want anyway because we scan for the last entry.
const maxTranscriptBytes = 1 << 20

// spliceTranscriptResult reads a Claude Code transcript JSONL file and
// copies the latest assistant turn's text into event["result"]. Called on
// Stop hooks, which carry a transcript_path but no response text of their
// own. Best effort: any failure leaves the event untouched.
func spliceTranscriptResult(event map[string]any) {
	path, _ := event["transcript_path"].(string)
	if path == "" {
		return
	}
	if _, ok := event["result"]; ok {
		return
	}

	text := lastAssistantText(path)
	if text != "" {
		event["result"] = text
	}
}

// lastAssistantText scans a transcript for the final assistant message and
// returns its concatenated text blocks.
func lastAssistantText(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	var last string
	scanner := bufio.NewScanner(io.LimitReader(f, maxTranscriptBytes))
	scanner.Buffer(make([]byte, 0, 64*1024), maxTranscriptBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var entry struct {
			Type    string `json:"type"`
			Message struct {
				Content []struct {
					Type string `json:"type"`
					Text string `json:"text"`
				} `json:"content"`
			} `json:"message"`
		}
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		if entry.Type != "assistant" {
			continue
		}

		var parts []string
		for _, block := range entry.Message.Content {
			if block.Type == "text" && block.Text != "" {
				parts = append(parts, block.Text)
			}
		}
		if len(parts) > 0 {
			last = strings.Join(parts, "\n")
		}
	}
	return last
}
