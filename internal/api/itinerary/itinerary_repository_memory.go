package itinerary

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/FACorreiaa/go-itinerary-ai/internal/types"
)

var _ Repository = (*MemoryRepository)(nil)

const (
	memItineraryPrefix = "itinerary:"
	memDayPrefix       = "day:"
	memActivityPrefix  = "activity:"
)

// MemoryRepository keeps records in process. Like a document store it has no
// multi-record transaction, so a failed generation can leave a partial trip.
type MemoryRepository struct {
	store  *cache.Cache
	logger *slog.Logger
}

// NewMemoryRepository creates an in-process store. Records expire after ttl;
// zero keeps them until deleted.
func NewMemoryRepository(ttl time.Duration, logger *slog.Logger) *MemoryRepository {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	cleanup := time.Hour
	if ttl == cache.NoExpiration {
		cleanup = 0
	}
	return &MemoryRepository{
		store:  cache.New(ttl, cleanup),
		logger: logger,
	}
}

func (r *MemoryRepository) InsertItinerary(_ context.Context, it *types.Itinerary) error {
	it.ID = uuid.NewString()
	stamp(&it.CreatedAt, &it.UpdatedAt)
	r.store.SetDefault(memItineraryPrefix+it.ID, cloneItinerary(*it))
	return nil
}

func (r *MemoryRepository) InsertDay(_ context.Context, day *types.ItineraryDay) error {
	day.ID = uuid.NewString()
	stamp(&day.CreatedAt, &day.UpdatedAt)
	r.store.SetDefault(memDayPrefix+day.ID, *day)
	return nil
}

func (r *MemoryRepository) InsertActivity(_ context.Context, a *types.Activity) error {
	a.ID = uuid.NewString()
	stamp(&a.CreatedAt, &a.UpdatedAt)
	c := *a
	c.Tags = slices.Clone(a.Tags)
	r.store.SetDefault(memActivityPrefix+a.ID, c)
	return nil
}

func (r *MemoryRepository) FindItinerary(_ context.Context, id string) (*types.Itinerary, error) {
	v, ok := r.store.Get(memItineraryPrefix + id)
	if !ok {
		return nil, ErrNotFound
	}
	it := cloneItinerary(v.(types.Itinerary))
	return &it, nil
}

func (r *MemoryRepository) FindItinerariesByOwner(_ context.Context, ownerID string) ([]types.Itinerary, error) {
	var out []types.Itinerary
	for k, item := range r.store.Items() {
		if !strings.HasPrefix(k, memItineraryPrefix) {
			continue
		}
		if it := item.Object.(types.Itinerary); it.OwnerID == ownerID {
			out = append(out, cloneItinerary(it))
		}
	}
	slices.SortFunc(out, func(a, b types.Itinerary) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r *MemoryRepository) FindDays(_ context.Context, itineraryID string) ([]types.ItineraryDay, error) {
	var out []types.ItineraryDay
	for k, item := range r.store.Items() {
		if !strings.HasPrefix(k, memDayPrefix) {
			continue
		}
		if d := item.Object.(types.ItineraryDay); d.ItineraryID == itineraryID {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b types.ItineraryDay) int { return a.DayNumber - b.DayNumber })
	return out, nil
}

func (r *MemoryRepository) FindActivities(_ context.Context, dayID string) ([]types.Activity, error) {
	var out []types.Activity
	for k, item := range r.store.Items() {
		if !strings.HasPrefix(k, memActivityPrefix) {
			continue
		}
		if a := item.Object.(types.Activity); a.DayID == dayID {
			a.Tags = slices.Clone(a.Tags)
			out = append(out, a)
		}
	}
	slices.SortStableFunc(out, func(a, b types.Activity) int { return a.StartTime.Compare(b.StartTime) })
	return out, nil
}

func (r *MemoryRepository) DeleteActivities(_ context.Context, itineraryID string) error {
	r.deleteWhere(memActivityPrefix, func(v any) bool { return v.(types.Activity).ItineraryID == itineraryID })
	return nil
}

func (r *MemoryRepository) DeleteDays(_ context.Context, itineraryID string) error {
	r.deleteWhere(memDayPrefix, func(v any) bool { return v.(types.ItineraryDay).ItineraryID == itineraryID })
	return nil
}

func (r *MemoryRepository) DeleteItinerary(_ context.Context, id string) error {
	r.store.Delete(memItineraryPrefix + id)
	return nil
}

// Count reports how many records of each type reference itineraryID.
func (r *MemoryRepository) Count(itineraryID string) (days, activities int) {
	for k, item := range r.store.Items() {
		switch {
		case strings.HasPrefix(k, memDayPrefix) && item.Object.(types.ItineraryDay).ItineraryID == itineraryID:
			days++
		case strings.HasPrefix(k, memActivityPrefix) && item.Object.(types.Activity).ItineraryID == itineraryID:
			activities++
		}
	}
	return days, activities
}

func (r *MemoryRepository) deleteWhere(prefix string, match func(any) bool) {
	for k, item := range r.store.Items() {
		if strings.HasPrefix(k, prefix) && match(item.Object) {
			r.store.Delete(k)
		}
	}
}

func cloneItinerary(it types.Itinerary) types.Itinerary {
	it.Preferences = slices.Clone(it.Preferences)
	it.AISuggestions = slices.Clone(it.AISuggestions)
	return it
}
