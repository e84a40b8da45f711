package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/domain"
)

// Source wiring validation runs before any database access, so these tests
// exercise it without a database handle.

func TestChannelRepository_CreateRejectsFallbackEqualToSource(t *testing.T) {
	repo := NewChannelRepository(nil)

	err := repo.Create(context.Background(), &domain.Channel{
		ID:               "ch-1",
		Name:             "News One",
		Slug:             "news-one",
		SourceID:         "src-a",
		FallbackSourceID: "src-a",
	})
	if !errors.Is(err, ErrFallbackEqualsSource) {
		t.Fatalf("expected ErrFallbackEqualsSource, got %v", err)
	}
}

func TestChannelRepository_ReassignSourceRejectsFallbackEqualToSource(t *testing.T) {
	repo := NewChannelRepository(nil)

	err := repo.ReassignSource(context.Background(), "ch-1", "src-a", "src-a")
	if !errors.Is(err, ErrFallbackEqualsSource) {
		t.Fatalf("expected ErrFallbackEqualsSource, got %v", err)
	}
}
