package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Health verifies database connectivity with a trivial round-trip query.
func Health(ctx context.Context, db *sql.DB) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
