package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

func (s *PostgresStore) RecordInbound(ctx context.Context, messageID, sender string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO inbound_dedup (message_id, sender, received_at) VALUES ($1, $2, $3) ON CONFLICT (message_id) DO NOTHING`,
		messageID, sender, time.Now())
	if err != nil {
		slog.Error("PostgresStore.RecordInbound failed", "error", err, "message_id", messageID)
		return false, fmt.Errorf("record inbound message %s: %w", messageID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("dedup rows affected check failed: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, messageID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE inbound_dedup SET processed_at = NOW() WHERE message_id = $1`, messageID)
	if err != nil {
		return fmt.Errorf("mark message %s processed: %w", messageID, err)
	}
	return nil
}
