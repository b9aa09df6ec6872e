package itinerary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-itinerary-ai/app/observability/metrics"
	"github.com/FACorreiaa/go-itinerary-ai/internal/types"
)

var (
	_ Repository = (*PostgresRepository)(nil)
	_ Transactor = (*PostgresRepository)(nil)
)

// DBTX is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PostgresRepository struct {
	logger *slog.Logger
	db     DBTX
}

func NewPostgresRepository(db DBTX, logger *slog.Logger) *PostgresRepository {
	return &PostgresRepository{
		logger: logger,
		db:     db,
	}
}

// WithTx runs fn against a repository bound to one transaction. It commits when
// fn returns nil and rolls back otherwise.
func (r *PostgresRepository) WithTx(ctx context.Context, fn func(repo Repository) error) error {
	beginner, ok := r.db.(txBeginner)
	if !ok {
		return fn(r)
	}
	tx, err := beginner.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&PostgresRepository{logger: r.logger, db: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			r.logger.WarnContext(ctx, "Failed to roll back transaction", slog.Any("error", rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *PostgresRepository) InsertItinerary(ctx context.Context, it *types.Itinerary) error {
	ctx, span := r.span(ctx, "InsertItinerary", "itineraries")
	defer span.End()

	query := `
        INSERT INTO itineraries (
            owner_id, destination, start_date, end_date, number_of_travelers, preferences, trip_type,
            ai_summary, ai_suggestions, weather_summary, chance_of_rain, temperature_min, temperature_max
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        RETURNING id, created_at, updated_at`

	var id uuid.UUID
	err := r.db.QueryRow(ctx, query,
		it.OwnerID, it.Destination, it.StartDate, it.EndDate, it.NumberOfTravelers, nonNilStrings(it.Preferences), string(it.TripType),
		it.AISummary, nonNilStrings(it.AISuggestions), it.WeatherSummary, it.ChanceOfRain, it.TemperatureMin, it.TemperatureMax,
	).Scan(&id, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return r.fail(ctx, span, "InsertItinerary", "failed to insert itinerary", err)
	}
	it.ID = id.String()
	span.SetStatus(codes.Ok, "Itinerary inserted")
	return nil
}

func (r *PostgresRepository) InsertDay(ctx context.Context, day *types.ItineraryDay) error {
	ctx, span := r.span(ctx, "InsertDay", "itinerary_days")
	defer span.End()

	itineraryID, err := uuid.Parse(day.ItineraryID)
	if err != nil {
		return r.fail(ctx, span, "InsertDay", "invalid itinerary id", err)
	}

	query := `
        INSERT INTO itinerary_days (
            itinerary_id, day_number, date, weather_summary, temperature_min, temperature_max, chance_of_rain
        ) VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at`

	var id uuid.UUID
	err = r.db.QueryRow(ctx, query,
		itineraryID, day.DayNumber, day.Date, day.WeatherSummary, day.TemperatureMin, day.TemperatureMax, day.ChanceOfRain,
	).Scan(&id, &day.CreatedAt, &day.UpdatedAt)
	if err != nil {
		return r.fail(ctx, span, "InsertDay", "failed to insert itinerary day", err)
	}
	day.ID = id.String()
	span.SetStatus(codes.Ok, "Day inserted")
	return nil
}

func (r *PostgresRepository) InsertActivity(ctx context.Context, a *types.Activity) error {
	ctx, span := r.span(ctx, "InsertActivity", "activities")
	defer span.End()

	dayID, err := uuid.Parse(a.DayID)
	if err != nil {
		return r.fail(ctx, span, "InsertActivity", "invalid day id", err)
	}
	itineraryID, err := uuid.Parse(a.ItineraryID)
	if err != nil {
		return r.fail(ctx, span, "InsertActivity", "invalid itinerary id", err)
	}

	query := `
        INSERT INTO activities (
            day_id, itinerary_id, title, description, location, start_time, end_time, category,
            estimated_cost, priority, tags, notes, booking_url, contact_info
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
        RETURNING id, created_at, updated_at`

	var id uuid.UUID
	err = r.db.QueryRow(ctx, query,
		dayID, itineraryID, a.Title, a.Description, a.Location, a.StartTime, a.EndTime, string(a.Category),
		a.EstimatedCost, a.Priority, nonNilStrings(a.Tags), a.Notes, a.BookingURL, a.ContactInfo,
	).Scan(&id, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return r.fail(ctx, span, "InsertActivity", "failed to insert activity", err)
	}
	a.ID = id.String()
	span.SetStatus(codes.Ok, "Activity inserted")
	return nil
}

const itineraryColumns = `id, owner_id, destination, start_date, end_date, number_of_travelers, preferences, trip_type,
            ai_summary, ai_suggestions, weather_summary, chance_of_rain, temperature_min, temperature_max, created_at, updated_at`

func scanItinerary(row pgx.Row) (*types.Itinerary, error) {
	var (
		it       types.Itinerary
		id       uuid.UUID
		tripType string
	)
	err := row.Scan(&id, &it.OwnerID, &it.Destination, &it.StartDate, &it.EndDate, &it.NumberOfTravelers, &it.Preferences, &tripType,
		&it.AISummary, &it.AISuggestions, &it.WeatherSummary, &it.ChanceOfRain, &it.TemperatureMin, &it.TemperatureMax,
		&it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	it.ID = id.String()
	it.TripType = types.TripType(tripType)
	return &it, nil
}

func (r *PostgresRepository) FindItinerary(ctx context.Context, id string) (*types.Itinerary, error) {
	ctx, span := r.span(ctx, "FindItinerary", "itineraries")
	defer span.End()

	itineraryID, err := uuid.Parse(id)
	if err != nil {
		span.SetStatus(codes.Ok, "Malformed id")
		return nil, ErrNotFound
	}

	it, err := scanItinerary(r.db.QueryRow(ctx, `SELECT `+itineraryColumns+` FROM itineraries WHERE id = $1`, itineraryID))
	if errors.Is(err, pgx.ErrNoRows) {
		span.SetStatus(codes.Ok, "Itinerary not found")
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, r.fail(ctx, span, "FindItinerary", "failed to fetch itinerary", err)
	}
	span.SetStatus(codes.Ok, "Itinerary fetched")
	return it, nil
}

func (r *PostgresRepository) FindItinerariesByOwner(ctx context.Context, ownerID string) ([]types.Itinerary, error) {
	ctx, span := r.span(ctx, "FindItinerariesByOwner", "itineraries")
	defer span.End()

	rows, err := r.db.Query(ctx, `SELECT `+itineraryColumns+` FROM itineraries WHERE owner_id = $1 ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, r.fail(ctx, span, "FindItinerariesByOwner", "failed to query itineraries", err)
	}
	defer rows.Close()

	var out []types.Itinerary
	for rows.Next() {
		it, err := scanItinerary(rows)
		if err != nil {
			return nil, r.fail(ctx, span, "FindItinerariesByOwner", "failed to scan itinerary", err)
		}
		out = append(out, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail(ctx, span, "FindItinerariesByOwner", "failed to read itineraries", err)
	}
	span.SetStatus(codes.Ok, "Itineraries fetched")
	return out, nil
}

func (r *PostgresRepository) FindDays(ctx context.Context, itineraryID string) ([]types.ItineraryDay, error) {
	ctx, span := r.span(ctx, "FindDays", "itinerary_days")
	defer span.End()

	id, err := uuid.Parse(itineraryID)
	if err != nil {
		return nil, nil
	}

	query := `
        SELECT id, itinerary_id, day_number, date, weather_summary, temperature_min, temperature_max, chance_of_rain, created_at, updated_at
        FROM itinerary_days
        WHERE itinerary_id = $1
        ORDER BY day_number`

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, r.fail(ctx, span, "FindDays", "failed to query itinerary days", err)
	}
	defer rows.Close()

	var out []types.ItineraryDay
	for rows.Next() {
		var (
			d          types.ItineraryDay
			dayID, tID uuid.UUID
		)
		if err := rows.Scan(&dayID, &tID, &d.DayNumber, &d.Date, &d.WeatherSummary, &d.TemperatureMin, &d.TemperatureMax,
			&d.ChanceOfRain, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, r.fail(ctx, span, "FindDays", "failed to scan itinerary day", err)
		}
		d.ID, d.ItineraryID = dayID.String(), tID.String()
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail(ctx, span, "FindDays", "failed to read itinerary days", err)
	}
	span.SetStatus(codes.Ok, "Days fetched")
	return out, nil
}

func (r *PostgresRepository) FindActivities(ctx context.Context, dayID string) ([]types.Activity, error) {
	ctx, span := r.span(ctx, "FindActivities", "activities")
	defer span.End()

	id, err := uuid.Parse(dayID)
	if err != nil {
		return nil, nil
	}

	query := `
        SELECT id, day_id, itinerary_id, title, description, location, start_time, end_time, category,
               estimated_cost, priority, tags, notes, booking_url, contact_info, created_at, updated_at
        FROM activities
        WHERE day_id = $1
        ORDER BY start_time, created_at`

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, r.fail(ctx, span, "FindActivities", "failed to query activities", err)
	}
	defer rows.Close()

	var out []types.Activity
	for rows.Next() {
		var (
			a             types.Activity
			aID, dID, tID uuid.UUID
			category      string
		)
		if err := rows.Scan(&aID, &dID, &tID, &a.Title, &a.Description, &a.Location, &a.StartTime, &a.EndTime, &category,
			&a.EstimatedCost, &a.Priority, &a.Tags, &a.Notes, &a.BookingURL, &a.ContactInfo, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, r.fail(ctx, span, "FindActivities", "failed to scan activity", err)
		}
		a.ID, a.DayID, a.ItineraryID = aID.String(), dID.String(), tID.String()
		a.Category = types.ParseActivityCategory(category)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail(ctx, span, "FindActivities", "failed to read activities", err)
	}
	span.SetStatus(codes.Ok, "Activities fetched")
	return out, nil
}

func (r *PostgresRepository) DeleteActivities(ctx context.Context, itineraryID string) error {
	return r.deleteBy(ctx, "DeleteActivities", `DELETE FROM activities WHERE itinerary_id = $1`, "activities", itineraryID)
}

func (r *PostgresRepository) DeleteDays(ctx context.Context, itineraryID string) error {
	return r.deleteBy(ctx, "DeleteDays", `DELETE FROM itinerary_days WHERE itinerary_id = $1`, "itinerary_days", itineraryID)
}

func (r *PostgresRepository) DeleteItinerary(ctx context.Context, id string) error {
	return r.deleteBy(ctx, "DeleteItinerary", `DELETE FROM itineraries WHERE id = $1`, "itineraries", id)
}

func (r *PostgresRepository) deleteBy(ctx context.Context, method, query, table, id string) error {
	ctx, span := r.span(ctx, method, table)
	defer span.End()

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil
	}
	tag, err := r.db.Exec(ctx, query, parsed)
	if err != nil {
		return r.fail(ctx, span, method, "failed to delete from "+table, err)
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", tag.RowsAffected()))
	span.SetStatus(codes.Ok, "Deleted")
	return nil
}

func (r *PostgresRepository) span(ctx context.Context, method, table string) (context.Context, trace.Span) {
	return otel.Tracer("ItineraryRepo").Start(ctx, method, trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", table),
	))
}

func (r *PostgresRepository) fail(ctx context.Context, span trace.Span, method, msg string, err error) error {
	r.logger.ErrorContext(ctx, msg, slog.String("method", method), slog.Any("error", err))
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	metrics.Get().DbQueryErrorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
	return fmt.Errorf("%s: %w", msg, err)
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
