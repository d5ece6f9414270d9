package store

import (
	"context"
	"time"
)

// In-memory dedup records are kept for DedupRetention after receipt, which
// outlasts transport redelivery windows. Expired records are swept at most
// once per DedupSweepInterval.
const (
	DedupRetention     = 24 * time.Hour
	DedupSweepInterval = 10 * time.Minute
)

// DedupRecord is one inbound chat message seen by a transport.
type DedupRecord struct {
	MessageID   string     `json:"message_id"`
	Sender      string     `json:"sender"`
	ReceivedAt  time.Time  `json:"received_at"`
	ProcessedAt *time.Time `json:"processed_at"`
}

// DedupRepo remembers inbound message ids so redelivered messages are answered once.
type DedupRepo interface {
	// RecordInbound stores messageID. It returns false if the id was already recorded.
	RecordInbound(ctx context.Context, messageID, sender string) (bool, error)

	// MarkProcessed sets the processed time for a recorded message.
	MarkProcessed(ctx context.Context, messageID string) error
}

func (s *InMemoryStore) RecordInbound(ctx context.Context, messageID, sender string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweepInbound(now)
	if _, ok := s.inbound[messageID]; ok {
		return false, nil
	}
	s.inbound[messageID] = &DedupRecord{MessageID: messageID, Sender: sender, ReceivedAt: now}
	return true, nil
}

// sweepInbound drops records received more than DedupRetention ago. Callers hold s.mu.
func (s *InMemoryStore) sweepInbound(now time.Time) {
	if now.Sub(s.lastSweep) < DedupSweepInterval {
		return
	}
	s.lastSweep = now
	cutoff := now.Add(-DedupRetention)
	for id, rec := range s.inbound {
		if rec.ReceivedAt.Before(cutoff) {
			delete(s.inbound, id)
		}
	}
}

func (s *InMemoryStore) MarkProcessed(ctx context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.inbound[messageID]; ok {
		now := s.now()
		rec.ProcessedAt = &now
	}
	return nil
}

var (
	_ DedupRepo = (*InMemoryStore)(nil)
	_ DedupRepo = (*SQLiteStore)(nil)
	_ DedupRepo = (*PostgresStore)(nil)
)
