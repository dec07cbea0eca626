package repo

import (
	"context"
	"testing"
	"time"
)

func TestMarkUpdateProcessed_DropsRedelivery(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	fresh, err := MarkUpdateProcessed(ctx, db, 1001)
	if err != nil || !fresh {
		t.Fatalf("first delivery: fresh=%v err=%v", fresh, err)
	}
	fresh, err = MarkUpdateProcessed(ctx, db, 1001)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if fresh {
		t.Fatal("redelivered update reported as fresh")
	}
}

func TestPurgeProcessedUpdates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := MarkUpdateProcessed(ctx, db, 1); err != nil {
		t.Fatalf("mark: %v", err)
	}
	n, err := PurgeProcessedUpdates(ctx, db, time.Now().UTC().Add(time.Minute))
	if err != nil || n != 1 {
		t.Fatalf("purged %d (%v), want 1", n, err)
	}
	// Purged IDs may be processed again.
	fresh, err := MarkUpdateProcessed(ctx, db, 1)
	if err != nil || !fresh {
		t.Fatalf("after purge: fresh=%v err=%v", fresh, err)
	}
}
