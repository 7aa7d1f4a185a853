package data

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/evobot/wa-rag-bridge/internal/biz/domain"
)

func newTestHistoryRepo(t *testing.T) *historyRepo {
	t.Helper()
	r, err := NewHistoryRepo(filepath.Join(t.TempDir(), "history", "test.db"))
	if err != nil {
		t.Fatalf("NewHistoryRepo failed: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r.(*historyRepo)
}

func TestHistoryRepo_RecentReturnsLatestOldestFirst(t *testing.T) {
	ctx := context.Background()
	r := newTestHistoryRepo(t)
	base := time.Now().Add(-time.Minute)

	for i, content := range []string{"m1", "m2", "m3", "m4"} {
		err := r.Append(ctx, &domain.HistoryMessage{
			SessionID: "chat",
			Role:      domain.RoleUser,
			Content:   content,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	_ = r.Append(ctx, &domain.HistoryMessage{SessionID: "other", Role: domain.RoleUser, Content: "x"})

	msgs, err := r.Recent(ctx, "chat", 3, time.Time{})
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "m2" || msgs[2].Content != "m4" {
		t.Errorf("Unexpected order: %s .. %s", msgs[0].Content, msgs[2].Content)
	}
}

func TestHistoryRepo_RecentRespectsWindow(t *testing.T) {
	ctx := context.Background()
	r := newTestHistoryRepo(t)

	_ = r.Append(ctx, &domain.HistoryMessage{SessionID: "chat", Role: domain.RoleUser, Content: "old", CreatedAt: time.Now().Add(-3 * time.Hour)})
	_ = r.Append(ctx, &domain.HistoryMessage{SessionID: "chat", Role: domain.RoleUser, Content: "new", CreatedAt: time.Now()})

	msgs, err := r.Recent(ctx, "chat", 10, time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "new" {
		t.Errorf("Expected only the recent message, got %d", len(msgs))
	}

	n, err := r.CleanupStale(ctx, time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("CleanupStale failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 deleted row, got %d", n)
	}
}

func TestHistoryRepo_Clear(t *testing.T) {
	ctx := context.Background()
	r := newTestHistoryRepo(t)

	_ = r.Append(ctx, &domain.HistoryMessage{SessionID: "chat", Role: domain.RoleUser, Content: "hi"})
	if err := r.Clear(ctx, "chat"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	msgs, _ := r.Recent(ctx, "chat", 10, time.Time{})
	if len(msgs) != 0 {
		t.Errorf("Expected empty history, got %d", len(msgs))
	}
}
