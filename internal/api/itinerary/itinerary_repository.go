package itinerary

import (
	"context"
	"errors"
	"time"

	"github.com/FACorreiaa/go-itinerary-ai/internal/types"
)

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("itinerary record not found")

// Repository persists the itinerary aggregate as three record types.
// Insert methods assign ID, CreatedAt and UpdatedAt on the passed record.
type Repository interface {
	InsertItinerary(ctx context.Context, it *types.Itinerary) error
	InsertDay(ctx context.Context, day *types.ItineraryDay) error
	InsertActivity(ctx context.Context, a *types.Activity) error

	// FindItinerary returns ErrNotFound for unknown or malformed ids.
	FindItinerary(ctx context.Context, id string) (*types.Itinerary, error)
	// FindItinerariesByOwner returns the owner's trips, newest first.
	FindItinerariesByOwner(ctx context.Context, ownerID string) ([]types.Itinerary, error)
	// FindDays returns a trip's days ordered by day number.
	FindDays(ctx context.Context, itineraryID string) ([]types.ItineraryDay, error)
	// FindActivities returns a day's activities ordered by start time.
	FindActivities(ctx context.Context, dayID string) ([]types.Activity, error)

	DeleteActivities(ctx context.Context, itineraryID string) error
	DeleteDays(ctx context.Context, itineraryID string) error
	DeleteItinerary(ctx context.Context, id string) error
}

// Transactor is implemented by repositories that can run several writes atomically.
type Transactor interface {
	WithTx(ctx context.Context, fn func(repo Repository) error) error
}

// ErrCacheMiss is returned by ViewCache.Get when nothing is cached.
var ErrCacheMiss = errors.New("itinerary view not cached")

// ViewCache stores assembled views keyed by itinerary id, along with the owner
// so reads can still be authorised.
type ViewCache interface {
	Get(ctx context.Context, itineraryID string) (view *types.ItineraryView, ownerID string, err error)
	Set(ctx context.Context, ownerID string, view *types.ItineraryView) error
	Delete(ctx context.Context, itineraryID string) error
}

func stamp(created, updated *time.Time) {
	now := time.Now().UTC()
	*created = now
	*updated = now
}
