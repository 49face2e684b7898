package likes

import (
	"context"
	"errors"
	"testing"

	"github.com/cartcompass/backend/internal/domain"
)

func TestMemoryLikes_AddAndSnapshots(t *testing.T) {
	likes := NewMemoryLikes()
	ctx := context.Background()

	err := likes.Add(ctx, "user-1", domain.LikedSnapshot{
		ID: "p-1", Name: "Trail Jacket", Retailer: "REI", Price: 120,
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	snapshots, err := likes.Snapshots(ctx, "user-1")
	if err != nil {
		t.Fatalf("Snapshots() error = %v", err)
	}
	if len(snapshots) != 1 {
		t.Fatalf("Snapshots() = %d items, want 1", len(snapshots))
	}
	if snapshots[0].Retailer != "REI" {
		t.Errorf("Retailer = %q, want REI", snapshots[0].Retailer)
	}
}

func TestMemoryLikes_AddRequiresID(t *testing.T) {
	likes := NewMemoryLikes()

	err := likes.Add(context.Background(), "user-1", domain.LikedSnapshot{Name: "No ID"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Add() error = %v, want ErrInvalidInput", err)
	}
}

func TestMemoryLikes_AddIsUpsert(t *testing.T) {
	likes := NewMemoryLikes()
	ctx := context.Background()

	likes.Add(ctx, "user-1", domain.LikedSnapshot{ID: "p-1", Price: 100})
	likes.Add(ctx, "user-1", domain.LikedSnapshot{ID: "p-1", Price: 90})

	snapshots, _ := likes.Snapshots(ctx, "user-1")
	if len(snapshots) != 1 {
		t.Fatalf("Snapshots() = %d items, want 1 after upsert", len(snapshots))
	}
	if snapshots[0].Price != 90 {
		t.Errorf("Price = %v, want latest value 90", snapshots[0].Price)
	}
}

func TestMemoryLikes_UsersAreIsolated(t *testing.T) {
	likes := NewMemoryLikes()
	ctx := context.Background()

	likes.Add(ctx, "user-1", domain.LikedSnapshot{ID: "p-1"})

	snapshots, err := likes.Snapshots(ctx, "user-2")
	if err != nil {
		t.Fatalf("Snapshots() error = %v", err)
	}
	if len(snapshots) != 0 {
		t.Errorf("Snapshots(user-2) = %d items, want 0", len(snapshots))
	}
}

func TestMemoryLikes_Remove(t *testing.T) {
	likes := NewMemoryLikes()
	ctx := context.Background()

	likes.Add(ctx, "user-1", domain.LikedSnapshot{ID: "p-1"})

	if err := likes.Remove(ctx, "user-1", "p-1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	snapshots, _ := likes.Snapshots(ctx, "user-1")
	if len(snapshots) != 0 {
		t.Errorf("Snapshots() = %d items, want 0 after remove", len(snapshots))
	}

	// removing an absent snapshot is a no-op
	if err := likes.Remove(ctx, "user-1", "missing"); err != nil {
		t.Errorf("Remove(missing) error = %v, want nil", err)
	}
}
