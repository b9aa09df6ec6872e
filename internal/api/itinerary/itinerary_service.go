package itinerary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/go-itinerary-ai/app/observability/metrics"
	generativeAI "github.com/FACorreiaa/go-itinerary-ai/internal/api/generative_ai"
	"github.com/FACorreiaa/go-itinerary-ai/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Service generates itineraries with a language model and manages the stored results.
type Service interface {
	Generate(ctx context.Context, ownerID string, req types.GenerationRequest) (*types.ItineraryView, error)
	QuickGenerate(ctx context.Context, ownerID string, req types.QuickGenerateRequest) (*types.ItineraryView, error)
	Regenerate(ctx context.Context, itineraryID, ownerID string, opts types.RegenerateOptions) (*types.ItineraryView, error)
	ListByOwner(ctx context.Context, ownerID string) ([]types.ItineraryView, error)
	GetByID(ctx context.Context, itineraryID, ownerID string) (*types.ItineraryView, error)
	Delete(ctx context.Context, itineraryID, ownerID string) error
}

type ServiceImpl struct {
	logger       *slog.Logger
	repo         Repository
	completer    generativeAI.Completer
	cache        ViewCache
	defaultModel string
	now          func() time.Time
}

type Option func(*ServiceImpl)

// WithViewCache enables read-through caching of assembled views.
func WithViewCache(c ViewCache) Option {
	return func(s *ServiceImpl) { s.cache = c }
}

func WithDefaultModel(model string) Option {
	return func(s *ServiceImpl) { s.defaultModel = model }
}

func WithClock(now func() time.Time) Option {
	return func(s *ServiceImpl) { s.now = now }
}

// NewServiceImpl creates a new instance of ServiceImpl
func NewServiceImpl(repo Repository, completer generativeAI.Completer, logger *slog.Logger, opts ...Option) *ServiceImpl {
	s := &ServiceImpl{
		logger:       logger,
		repo:         repo,
		completer:    completer,
		defaultModel: generativeAI.DefaultModel,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate runs one attempt of the pipeline: build the prompt, call the model,
// parse its answer and persist the trip top-down. Nothing is written unless the
// answer parsed and matched the requested number of days.
func (s *ServiceImpl) Generate(ctx context.Context, ownerID string, req types.GenerationRequest) (*types.ItineraryView, error) {
	// a client disconnect must not abort a paid model call or a half-finished write
	ctx = context.WithoutCancel(ctx)
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "Generate", trace.WithAttributes(
		attribute.String("user.id", ownerID),
		attribute.String("itinerary.destination", req.Destination),
		attribute.String("itinerary.start_date", req.StartDate),
		attribute.String("itinerary.end_date", req.EndDate),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Generate"), slog.String("userID", ownerID))
	start := time.Now()
	view, stage, err := s.generate(ctx, l, span, ownerID, req)
	s.recordGeneration(ctx, start, stage, err)
	if err != nil {
		l.ErrorContext(ctx, "Itinerary generation failed", slog.String("stage", stage), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Generation failed at "+stage)
		return nil, err
	}

	l.InfoContext(ctx, "Itinerary generated",
		slog.String("itineraryID", view.ItineraryID),
		slog.Int("days", len(view.Days)),
		slog.Duration("duration", time.Since(start)))
	span.SetAttributes(attribute.String("itinerary.id", view.ItineraryID))
	span.SetStatus(codes.Ok, "Itinerary generated")
	return view, nil
}

// generate returns the stage it stopped at along with any error.
func (s *ServiceImpl) generate(ctx context.Context, l *slog.Logger, span trace.Span, ownerID string, req types.GenerationRequest) (*types.ItineraryView, string, error) {
	stage := "building"
	span.AddEvent(stage)
	startDate, endDate, dayCount, err := validateRequest(&req)
	if err != nil {
		return nil, stage, err
	}
	prompt := BuildItineraryPrompt(req, dayCount)
	l.DebugContext(ctx, "Prompt built", slog.Int("dayCount", dayCount), slog.Int("promptLength", len(prompt)))

	stage = "calling"
	span.AddEvent(stage)
	model := req.Model
	if model == "" {
		model = s.defaultModel
	}
	completion, err := s.completer.Complete(ctx, prompt, model, GenerationTemp)
	if err != nil {
		if types.KindOf(err) == "" {
			err = types.NewTransportError("completion failed", err)
		}
		return nil, stage, err
	}
	l.DebugContext(ctx, "Completion received",
		slog.String("model", completion.Model),
		slog.Int("totalTokens", completion.Usage.TotalTokens))

	stage = "parsing"
	span.AddEvent(stage)
	plan, err := ParseItineraryResponse(completion.Content)
	if err != nil {
		metrics.Get().ItineraryParseFailuresTotal.Add(ctx, 1)
		return nil, stage, err
	}
	if len(plan.Days) != dayCount {
		metrics.Get().ItineraryParseFailuresTotal.Add(ctx, 1)
		return nil, stage, types.NewMalformedResponseError(
			fmt.Sprintf("expected %d days, model returned %d", dayCount, len(plan.Days)), nil)
	}

	stage = "persisting"
	span.AddEvent(stage)
	trip := &types.Itinerary{
		OwnerID:           ownerID,
		Destination:       req.Destination,
		StartDate:         startDate,
		EndDate:           endDate,
		NumberOfTravelers: req.NumberOfTravelers,
		Preferences:       slices.Clone(req.Preferences),
		TripType:          req.TripType,
		AISummary:         plan.Summary,
		AISuggestions:     plan.Suggestions,
		WeatherSummary:    plan.WeatherInfo.Summary,
		ChanceOfRain:      plan.WeatherInfo.ChanceOfRain,
		TemperatureMin:    plan.WeatherInfo.TemperatureMin,
		TemperatureMax:    plan.WeatherInfo.TemperatureMax,
	}
	if err := s.write(ctx, func(repo Repository) error { return persistPlan(ctx, repo, trip, plan) }); err != nil {
		return nil, stage, types.NewPersistenceError("failed to store itinerary", err)
	}

	view, err := s.loadView(ctx, trip)
	if err != nil {
		return nil, stage, types.NewPersistenceError("failed to read back itinerary", err)
	}
	if math.Abs(view.TotalEstimatedCost-plan.TotalEstimatedCost) > 0.005 {
		l.WarnContext(ctx, "Model total differs from stored activity costs",
			slog.Float64("modelTotal", plan.TotalEstimatedCost),
			slog.Float64("storedTotal", view.TotalEstimatedCost))
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, ownerID, view); err != nil {
			l.WarnContext(ctx, "Failed to cache itinerary view", slog.Any("error", err))
		}
	}
	return view, "done", nil
}

// persistPlan writes the trip, then every day followed by that day's activities.
func persistPlan(ctx context.Context, repo Repository, trip *types.Itinerary, plan *types.GeneratedPlan) error {
	if err := repo.InsertItinerary(ctx, trip); err != nil {
		return err
	}
	for _, dp := range plan.Days {
		date := trip.StartDate.AddDate(0, 0, dp.DayNumber-1)
		day := &types.ItineraryDay{
			ItineraryID:    trip.ID,
			DayNumber:      dp.DayNumber,
			Date:           date,
			WeatherSummary: dp.WeatherSummary,
			TemperatureMin: dp.TemperatureMin,
			TemperatureMax: dp.TemperatureMax,
			ChanceOfRain:   dp.ChanceOfRain,
		}
		if err := repo.InsertDay(ctx, day); err != nil {
			return err
		}
		for _, ap := range dp.Activities {
			a := &types.Activity{
				DayID:         day.ID,
				ItineraryID:   trip.ID,
				Title:         ap.Title,
				Description:   ap.Description,
				Location:      ap.Location,
				StartTime:     atClock(date, ap.StartTime),
				EndTime:       atClock(date, ap.EndTime),
				Category:      ap.Category,
				EstimatedCost: ap.EstimatedCost,
				Priority:      ap.Priority,
				Tags:          ap.Tags,
				Notes:         ap.Notes,
				BookingURL:    ap.BookingURL,
				ContactInfo:   ap.ContactInfo,
			}
			if err := repo.InsertActivity(ctx, a); err != nil {
				return err
			}
		}
	}
	return nil
}

// QuickGenerate plans a trip of req.Days days starting a week from today for two travelers.
func (s *ServiceImpl) QuickGenerate(ctx context.Context, ownerID string, req types.QuickGenerateRequest) (*types.ItineraryView, error) {
	l := s.logger.With(slog.String("method", "QuickGenerate"), slog.String("userID", ownerID))
	// one day would give end == start, which Generate rejects
	if req.Days < 2 || req.Days > MaxTripDays {
		l.WarnContext(ctx, "Invalid quick trip length", slog.Int("days", req.Days))
		return nil, types.NewValidationError(fmt.Sprintf("days must be between 2 and %d", MaxTripDays))
	}

	start := dayStart(s.now()).AddDate(0, 0, QuickTripLeadDays)
	end := start.AddDate(0, 0, req.Days-1)
	tripType := req.TripType
	if tripType == "" {
		tripType = types.TripTypeMidRange
	}
	return s.Generate(ctx, ownerID, types.GenerationRequest{
		Destination:       req.Destination,
		StartDate:         start.Format(types.DateLayout),
		EndDate:           end.Format(types.DateLayout),
		NumberOfTravelers: QuickTripTravelers,
		Preferences:       req.Preferences,
		TripType:          tripType,
	})
}

// Regenerate creates a new itinerary from the fields of an existing one. The
// existing itinerary is left untouched.
func (s *ServiceImpl) Regenerate(ctx context.Context, itineraryID, ownerID string, opts types.RegenerateOptions) (*types.ItineraryView, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "Regenerate", trace.WithAttributes(
		attribute.String("user.id", ownerID),
		attribute.String("itinerary.id", itineraryID),
	))
	defer span.End()

	trip, err := s.authorize(ctx, itineraryID, ownerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Itinerary unavailable")
		return nil, err
	}

	req := types.GenerationRequest{
		Destination:       trip.Destination,
		StartDate:         trip.StartDate.Format(types.DateLayout),
		EndDate:           trip.EndDate.Format(types.DateLayout),
		NumberOfTravelers: trip.NumberOfTravelers,
		Preferences:       trip.Preferences,
		TripType:          trip.TripType,
		SpecialRequests:   opts.SpecialRequests,
	}
	if len(opts.ChangePreferences) > 0 {
		req.Preferences = opts.ChangePreferences
	}
	if opts.ChangeTripType != "" {
		req.TripType = opts.ChangeTripType
	}

	view, err := s.Generate(ctx, ownerID, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Regeneration failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Itinerary regenerated")
	return view, nil
}

// ListByOwner returns summaries of the owner's trips, newest first. Days are
// not loaded.
func (s *ServiceImpl) ListByOwner(ctx context.Context, ownerID string) ([]types.ItineraryView, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "ListByOwner", trace.WithAttributes(
		attribute.String("user.id", ownerID),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "ListByOwner"), slog.String("userID", ownerID))
	trips, err := s.repo.FindItinerariesByOwner(ctx, ownerID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list itineraries", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list itineraries")
		return nil, types.NewPersistenceError("failed to list itineraries", err)
	}

	views := make([]types.ItineraryView, 0, len(trips))
	for i := range trips {
		views = append(views, summaryView(&trips[i]))
	}
	span.SetAttributes(attribute.Int("itineraries.count", len(views)))
	span.SetStatus(codes.Ok, "Itineraries listed")
	return views, nil
}

// GetByID returns the full itinerary. Unknown ids and trips owned by someone
// else produce the same error. A cached view is only served after the store
// confirms the trip still exists and belongs to the caller.
func (s *ServiceImpl) GetByID(ctx context.Context, itineraryID, ownerID string) (*types.ItineraryView, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "GetByID", trace.WithAttributes(
		attribute.String("user.id", ownerID),
		attribute.String("itinerary.id", itineraryID),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "GetByID"), slog.String("itineraryID", itineraryID))

	trip, err := s.authorize(ctx, itineraryID, ownerID)
	if err != nil {
		if s.cache != nil && errors.Is(err, types.ErrNotFoundOrForbidden) {
			// drop a view left behind by a concurrent read of a deleted trip
			if evictErr := s.cache.Delete(ctx, itineraryID); evictErr != nil {
				l.WarnContext(ctx, "Failed to evict itinerary view", slog.Any("error", evictErr))
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Itinerary unavailable")
		return nil, err
	}

	if s.cache != nil {
		view, cachedOwner, err := s.cache.Get(ctx, itineraryID)
		switch {
		case err == nil && cachedOwner == ownerID:
			span.SetAttributes(attribute.Bool("cache.hit", true))
			span.SetStatus(codes.Ok, "Itinerary served from cache")
			return view, nil
		case err == nil:
			l.WarnContext(ctx, "Cached view owner does not match store, reloading")
		case !errors.Is(err, ErrCacheMiss):
			l.WarnContext(ctx, "View cache read failed", slog.Any("error", err))
		}
	}

	view, err := s.loadView(ctx, trip)
	if err != nil {
		l.ErrorContext(ctx, "Failed to assemble itinerary", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to assemble itinerary")
		return nil, types.NewPersistenceError("failed to load itinerary", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, ownerID, view); err != nil {
			l.WarnContext(ctx, "Failed to cache itinerary view", slog.Any("error", err))
		}
	}
	span.SetStatus(codes.Ok, "Itinerary fetched")
	return view, nil
}

// Delete removes the trip with its days and activities, children first.
func (s *ServiceImpl) Delete(ctx context.Context, itineraryID, ownerID string) error {
	ctx = context.WithoutCancel(ctx)
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "Delete", trace.WithAttributes(
		attribute.String("user.id", ownerID),
		attribute.String("itinerary.id", itineraryID),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Delete"), slog.String("itineraryID", itineraryID))

	if _, err := s.authorize(ctx, itineraryID, ownerID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Itinerary unavailable")
		return err
	}

	// evict before and after the delete so no reader keeps serving the old view
	if err := s.evict(ctx, itineraryID); err != nil {
		l.ErrorContext(ctx, "Failed to evict itinerary view", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to evict itinerary view")
		return types.NewPersistenceError("failed to evict cached itinerary", err)
	}

	err := s.write(ctx, func(repo Repository) error {
		if err := repo.DeleteActivities(ctx, itineraryID); err != nil {
			return err
		}
		if err := repo.DeleteDays(ctx, itineraryID); err != nil {
			return err
		}
		return repo.DeleteItinerary(ctx, itineraryID)
	})
	if err != nil {
		l.ErrorContext(ctx, "Failed to delete itinerary", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete itinerary")
		return types.NewPersistenceError("failed to delete itinerary", err)
	}

	if err := s.evict(ctx, itineraryID); err != nil {
		l.ErrorContext(ctx, "Itinerary deleted but its cached view remains", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to evict itinerary view")
		return types.NewPersistenceError("itinerary deleted but cached view could not be evicted", err)
	}
	l.InfoContext(ctx, "Itinerary deleted")
	span.SetStatus(codes.Ok, "Itinerary deleted")
	return nil
}

func (s *ServiceImpl) evict(ctx context.Context, itineraryID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, itineraryID)
}

// authorize loads the trip and checks its owner.
func (s *ServiceImpl) authorize(ctx context.Context, itineraryID, ownerID string) (*types.Itinerary, error) {
	trip, err := s.repo.FindItinerary(ctx, itineraryID)
	if errors.Is(err, ErrNotFound) {
		return nil, types.NewNotFoundOrForbiddenError()
	}
	if err != nil {
		return nil, types.NewPersistenceError("failed to load itinerary", err)
	}
	if trip.OwnerID != ownerID {
		s.logger.WarnContext(ctx, "Itinerary requested by non-owner",
			slog.String("itineraryID", itineraryID),
			slog.String("userID", ownerID))
		return nil, types.NewNotFoundOrForbiddenError()
	}
	return trip, nil
}

// write runs fn in a transaction when the repository supports one.
func (s *ServiceImpl) write(ctx context.Context, fn func(repo Repository) error) error {
	if tx, ok := s.repo.(Transactor); ok {
		return tx.WithTx(ctx, fn)
	}
	return fn(s.repo)
}

// loadView assembles the nested view from the stored records. Each day's
// activities are fetched concurrently.
func (s *ServiceImpl) loadView(ctx context.Context, trip *types.Itinerary) (*types.ItineraryView, error) {
	days, err := s.repo.FindDays(ctx, trip.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load days: %w", err)
	}
	slices.SortFunc(days, func(a, b types.ItineraryDay) int { return a.DayNumber - b.DayNumber })

	activities := make([][]types.Activity, len(days))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range days {
		g.Go(func() error {
			found, err := s.repo.FindActivities(gctx, days[i].ID)
			if err != nil {
				return fmt.Errorf("failed to load activities for day %d: %w", days[i].DayNumber, err)
			}
			activities[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	view := summaryView(trip)
	for i, d := range days {
		acts := activities[i]
		slices.SortStableFunc(acts, func(a, b types.Activity) int { return a.StartTime.Compare(b.StartTime) })
		dv := types.DayView{
			DayNumber:      d.DayNumber,
			Date:           d.Date.Format(types.DateLayout),
			WeatherSummary: d.WeatherSummary,
			TemperatureMin: d.TemperatureMin,
			TemperatureMax: d.TemperatureMax,
			ChanceOfRain:   d.ChanceOfRain,
			Activities:     make([]types.ActivityView, 0, len(acts)),
		}
		for _, a := range acts {
			view.TotalEstimatedCost += a.EstimatedCost
			dv.Activities = append(dv.Activities, activityView(a))
		}
		view.Days = append(view.Days, dv)
	}
	return &view, nil
}

func (s *ServiceImpl) recordGeneration(ctx context.Context, start time.Time, stage string, err error) {
	outcome := "success"
	if err != nil {
		outcome = string(types.KindOf(err))
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome), attribute.String("stage", stage))
	m := metrics.Get()
	m.ItineraryGenerationsTotal.Add(ctx, 1, attrs)
	m.ItineraryGenerationDuration.Record(ctx, time.Since(start).Seconds(), attrs)
}

// validateRequest normalises req in place and returns the parsed dates and the
// inclusive day count.
func validateRequest(req *types.GenerationRequest) (start, end time.Time, dayCount int, err error) {
	req.Destination = strings.TrimSpace(req.Destination)
	if req.Destination == "" {
		return start, end, 0, types.NewValidationError("destination is required")
	}
	start, err = time.Parse(types.DateLayout, strings.TrimSpace(req.StartDate))
	if err != nil {
		return start, end, 0, types.NewValidationError("startDate must be a YYYY-MM-DD date")
	}
	end, err = time.Parse(types.DateLayout, strings.TrimSpace(req.EndDate))
	if err != nil {
		return start, end, 0, types.NewValidationError("endDate must be a YYYY-MM-DD date")
	}
	dayCount = DayCount(start, end)
	if dayCount <= 1 || dayCount > MaxTripDays {
		return start, end, 0, types.NewValidationError(
			fmt.Sprintf("endDate must be after startDate and the trip at most %d days long", MaxTripDays))
	}
	if req.NumberOfTravelers < MinTravelers || req.NumberOfTravelers > MaxTravelers {
		return start, end, 0, types.NewValidationError(
			fmt.Sprintf("numberOfTravelers must be between %d and %d", MinTravelers, MaxTravelers))
	}
	if req.TripType == "" {
		req.TripType = types.TripTypeMidRange
	}
	if !req.TripType.Valid() {
		return start, end, 0, types.NewValidationError("tripType must be one of budget, mid-range, luxury")
	}
	req.StartDate = start.Format(types.DateLayout)
	req.EndDate = end.Format(types.DateLayout)
	return start, end, dayCount, nil
}

// DayCount is the number of calendar days from start to end, both included.
func DayCount(start, end time.Time) int {
	return int(dayStart(end).Sub(dayStart(start)).Hours()/24) + 1
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// atClock places an HH:MM wall clock on date.
func atClock(date time.Time, hhmm string) time.Time {
	c, err := time.Parse(types.ClockLayout, hhmm)
	if err != nil {
		c, _ = time.Parse(types.ClockLayout, DefaultStartTime)
	}
	return dayStart(date).Add(time.Duration(c.Hour())*time.Hour + time.Duration(c.Minute())*time.Minute)
}

func summaryView(trip *types.Itinerary) types.ItineraryView {
	return types.ItineraryView{
		ItineraryID:       trip.ID,
		Destination:       trip.Destination,
		StartDate:         trip.StartDate.Format(types.DateLayout),
		EndDate:           trip.EndDate.Format(types.DateLayout),
		NumberOfTravelers: trip.NumberOfTravelers,
		Preferences:       nonNilStrings(trip.Preferences),
		TripType:          trip.TripType,
		AISummary:         trip.AISummary,
		AISuggestions:     nonNilStrings(trip.AISuggestions),
		WeatherSummary:    trip.WeatherSummary,
		ChanceOfRain:      trip.ChanceOfRain,
		TemperatureMin:    trip.TemperatureMin,
		TemperatureMax:    trip.TemperatureMax,
		Days:              []types.DayView{},
		CreatedAt:         trip.CreatedAt,
		UpdatedAt:         trip.UpdatedAt,
	}
}

func activityView(a types.Activity) types.ActivityView {
	return types.ActivityView{
		Title:         a.Title,
		Description:   a.Description,
		Location:      a.Location,
		StartTime:     a.StartTime.UTC().Format(types.ClockLayout),
		EndTime:       a.EndTime.UTC().Format(types.ClockLayout),
		Category:      a.Category,
		EstimatedCost: a.EstimatedCost,
		Priority:      a.Priority,
		Tags:          nonNilStrings(a.Tags),
		Notes:         a.Notes,
		BookingURL:    a.BookingURL,
		ContactInfo:   a.ContactInfo,
	}
}
