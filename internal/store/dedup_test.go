package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

// exerciseDedup runs the shared DedupRepo contract.
func exerciseDedup(t *testing.T, s DedupRepo) {
	ctx := context.Background()
	id := fmt.Sprintf("wamid-%d", time.Now().UnixNano())

	fresh, err := s.RecordInbound(ctx, id, "919876543210")
	if err != nil {
		t.Fatalf("RecordInbound failed: %v", err)
	}
	if !fresh {
		t.Error("Expected first record to be fresh")
	}

	fresh, err = s.RecordInbound(ctx, id, "919876543210")
	if err != nil {
		t.Fatalf("RecordInbound duplicate failed: %v", err)
	}
	if fresh {
		t.Error("Expected redelivered message to be reported as duplicate")
	}

	if err := s.MarkProcessed(ctx, id); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	if err := s.MarkProcessed(ctx, id+"-unknown"); err != nil {
		t.Errorf("MarkProcessed on unknown id should be a no-op, got %v", err)
	}

	other, err := s.RecordInbound(ctx, id+"-other", "919876543210")
	if err != nil || !other {
		t.Errorf("distinct message id should be fresh, got %v %v", other, err)
	}
}

func TestInMemoryStore_Dedup(t *testing.T) {
	s := NewInMemoryStore()
	exerciseDedup(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.RecordInbound(ctx, "m", "1"); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestInMemoryStore_DedupExpiresOldRecords(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	clock := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	if fresh, _ := s.RecordInbound(ctx, "old", "14155550100"); !fresh {
		t.Fatal("expected first delivery of old to be fresh")
	}
	if err := s.MarkProcessed(ctx, "old"); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}

	clock = clock.Add(time.Hour)
	if fresh, _ := s.RecordInbound(ctx, "old", "14155550100"); fresh {
		t.Error("redelivery inside the retention window must be skipped")
	}

	clock = clock.Add(DedupRetention)
	if fresh, _ := s.RecordInbound(ctx, "new", "14155550100"); !fresh {
		t.Fatal("expected new to be fresh")
	}
	s.mu.Lock()
	_, kept := s.inbound["old"]
	size := len(s.inbound)
	s.mu.Unlock()
	if kept || size != 1 {
		t.Errorf("expected only the recent record to remain, kept old=%v size=%d", kept, size)
	}
}

func TestSQLiteStore_Dedup(t *testing.T) {
	exerciseDedup(t, newTestSQLiteStore(t))
}

func TestSQLiteStore_DedupSurvivesRestart(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "taxpro.db")
	ctx := context.Background()

	s1, err := NewSQLiteStore(WithSQLiteDSN(dbPath))
	if err != nil {
		t.Fatalf("NewSQLiteStore (first open) failed: %v", err)
	}
	if fresh, err := s1.RecordInbound(ctx, "SM123", "14155550100"); err != nil || !fresh {
		t.Fatalf("RecordInbound: fresh=%v err=%v", fresh, err)
	}
	s1.Close()

	s2, err := NewSQLiteStore(WithSQLiteDSN(dbPath))
	if err != nil {
		t.Fatalf("NewSQLiteStore (reopen) failed: %v", err)
	}
	defer s2.Close()
	fresh, err := s2.RecordInbound(ctx, "SM123", "14155550100")
	if err != nil {
		t.Fatalf("RecordInbound after restart failed: %v", err)
	}
	if fresh {
		t.Error("Expected duplicate after restart")
	}
}
