package store

import (
	"context"
	"fmt"
	"time"
)

// PruneSessions deletes sessions whose last event is older than cutoffMs,
// cascading to their events. Returns the number of sessions removed.
func (s *Store) PruneSessions(ctx context.Context, cutoffMs int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE last_event_time < $1`, cutoffMs)
	if err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read pruned session count: %w", err)
	}
	return n, nil
}

// PruneInsights deletes insights created before the cutoff, cascading to
// their questions.
func (s *Store) PruneInsights(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM insights WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune insights: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read pruned insight count: %w", err)
	}
	return n, nil
}
