package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

func (s *SQLiteStore) RecordInbound(ctx context.Context, messageID, sender string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO inbound_dedup (message_id, sender, received_at) VALUES (?, ?, ?)`,
		messageID, sender, time.Now().UTC())
	if err != nil {
		slog.Error("SQLiteStore.RecordInbound failed", "error", err, "message_id", messageID)
		return false, fmt.Errorf("record inbound message %s: %w", messageID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("dedup rows affected check failed: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) MarkProcessed(ctx context.Context, messageID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE inbound_dedup SET processed_at = ? WHERE message_id = ?`,
		time.Now().UTC(), messageID)
	if err != nil {
		return fmt.Errorf("mark message %s processed: %w", messageID, err)
	}
	return nil
}
