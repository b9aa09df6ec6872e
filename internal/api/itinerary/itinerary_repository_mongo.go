package itinerary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-itinerary-ai/internal/types"
)

var _ Repository = (*MongoRepository)(nil)

const (
	itinerariesCollection = "itineraries"
	daysCollection        = "itinerary_days"
	activitiesCollection  = "activities"
)

// MongoRepository stores each record type in its own collection. Writes are
// independent documents, so there is no cross-record atomicity.
type MongoRepository struct {
	itineraries *mongo.Collection
	days        *mongo.Collection
	activities  *mongo.Collection
	logger      *slog.Logger
}

func NewMongoRepository(db *mongo.Database, logger *slog.Logger) *MongoRepository {
	return &MongoRepository{
		itineraries: db.Collection(itinerariesCollection),
		days:        db.Collection(daysCollection),
		activities:  db.Collection(activitiesCollection),
		logger:      logger,
	}
}

// EnsureIndexes creates the lookup indexes used by the find methods.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	if _, err := r.itineraries.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
	}); err != nil {
		return fmt.Errorf("failed to create itineraries index: %w", err)
	}
	if _, err := r.days.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "itineraryId", Value: 1}, {Key: "dayNumber", Value: 1}},
	}); err != nil {
		return fmt.Errorf("failed to create itinerary_days index: %w", err)
	}
	if _, err := r.activities.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "dayId", Value: 1}, {Key: "startTime", Value: 1}}},
		{Keys: bson.D{{Key: "itineraryId", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create activities indexes: %w", err)
	}
	return nil
}

type itineraryDoc struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"`
	UserID            string             `bson:"userId"`
	Destination       string             `bson:"destination"`
	StartDate         time.Time          `bson:"startDate"`
	EndDate           time.Time          `bson:"endDate"`
	NumberOfTravelers int                `bson:"numberOfTravelers"`
	Preferences       []string           `bson:"preferences"`
	TripType          string             `bson:"tripType"`
	AISummary         string             `bson:"aiSummary"`
	AISuggestions     []string           `bson:"aiSuggestions"`
	WeatherSummary    string             `bson:"weatherSummary"`
	ChanceOfRain      float64            `bson:"chanceOfRain"`
	TemperatureMin    float64            `bson:"temperatureMin"`
	TemperatureMax    float64            `bson:"temperatureMax"`
	CreatedAt         time.Time          `bson:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt"`
}

type dayDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	ItineraryID    primitive.ObjectID `bson:"itineraryId"`
	DayNumber      int                `bson:"dayNumber"`
	Date           time.Time          `bson:"date"`
	WeatherSummary string             `bson:"weatherSummary"`
	TemperatureMin float64            `bson:"temperatureMin"`
	TemperatureMax float64            `bson:"temperatureMax"`
	ChanceOfRain   float64            `bson:"chanceOfRain"`
	CreatedAt      time.Time          `bson:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt"`
}

type activityDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	DayID         primitive.ObjectID `bson:"dayId"`
	ItineraryID   primitive.ObjectID `bson:"itineraryId"`
	Title         string             `bson:"title"`
	Description   string             `bson:"description"`
	Location      string             `bson:"location"`
	StartTime     time.Time          `bson:"startTime"`
	EndTime       time.Time          `bson:"endTime"`
	Category      string             `bson:"category"`
	EstimatedCost float64            `bson:"estimatedCost"`
	Priority      int                `bson:"priority"`
	Tags          []string           `bson:"tags"`
	Notes         string             `bson:"notes"`
	BookingURL    string             `bson:"bookingUrl"`
	ContactInfo   string             `bson:"contactInfo"`
	CreatedAt     time.Time          `bson:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt"`
}

func (r *MongoRepository) InsertItinerary(ctx context.Context, it *types.Itinerary) error {
	ctx, span := r.span(ctx, "InsertItinerary", itinerariesCollection)
	defer span.End()

	stamp(&it.CreatedAt, &it.UpdatedAt)
	doc := itineraryDoc{
		UserID:            it.OwnerID,
		Destination:       it.Destination,
		StartDate:         it.StartDate,
		EndDate:           it.EndDate,
		NumberOfTravelers: it.NumberOfTravelers,
		Preferences:       nonNilStrings(it.Preferences),
		TripType:          string(it.TripType),
		AISummary:         it.AISummary,
		AISuggestions:     nonNilStrings(it.AISuggestions),
		WeatherSummary:    it.WeatherSummary,
		ChanceOfRain:      it.ChanceOfRain,
		TemperatureMin:    it.TemperatureMin,
		TemperatureMax:    it.TemperatureMax,
		CreatedAt:         it.CreatedAt,
		UpdatedAt:         it.UpdatedAt,
	}
	id, err := r.insert(ctx, span, r.itineraries, doc)
	if err != nil {
		return err
	}
	it.ID = id
	return nil
}

func (r *MongoRepository) InsertDay(ctx context.Context, day *types.ItineraryDay) error {
	ctx, span := r.span(ctx, "InsertDay", daysCollection)
	defer span.End()

	itineraryID, err := primitive.ObjectIDFromHex(day.ItineraryID)
	if err != nil {
		return r.fail(ctx, span, "InsertDay", "invalid itinerary id", err)
	}
	stamp(&day.CreatedAt, &day.UpdatedAt)
	id, err := r.insert(ctx, span, r.days, dayDoc{
		ItineraryID:    itineraryID,
		DayNumber:      day.DayNumber,
		Date:           day.Date,
		WeatherSummary: day.WeatherSummary,
		TemperatureMin: day.TemperatureMin,
		TemperatureMax: day.TemperatureMax,
		ChanceOfRain:   day.ChanceOfRain,
		CreatedAt:      day.CreatedAt,
		UpdatedAt:      day.UpdatedAt,
	})
	if err != nil {
		return err
	}
	day.ID = id
	return nil
}

func (r *MongoRepository) InsertActivity(ctx context.Context, a *types.Activity) error {
	ctx, span := r.span(ctx, "InsertActivity", activitiesCollection)
	defer span.End()

	dayID, err := primitive.ObjectIDFromHex(a.DayID)
	if err != nil {
		return r.fail(ctx, span, "InsertActivity", "invalid day id", err)
	}
	itineraryID, err := primitive.ObjectIDFromHex(a.ItineraryID)
	if err != nil {
		return r.fail(ctx, span, "InsertActivity", "invalid itinerary id", err)
	}
	stamp(&a.CreatedAt, &a.UpdatedAt)
	id, err := r.insert(ctx, span, r.activities, activityDoc{
		DayID:         dayID,
		ItineraryID:   itineraryID,
		Title:         a.Title,
		Description:   a.Description,
		Location:      a.Location,
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		Category:      string(a.Category),
		EstimatedCost: a.EstimatedCost,
		Priority:      a.Priority,
		Tags:          nonNilStrings(a.Tags),
		Notes:         a.Notes,
		BookingURL:    a.BookingURL,
		ContactInfo:   a.ContactInfo,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	})
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

func (r *MongoRepository) FindItinerary(ctx context.Context, id string) (*types.Itinerary, error) {
	ctx, span := r.span(ctx, "FindItinerary", itinerariesCollection)
	defer span.End()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc itineraryDoc
	err = r.itineraries.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		span.SetStatus(codes.Ok, "Itinerary not found")
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, r.fail(ctx, span, "FindItinerary", "failed to fetch itinerary", err)
	}
	it := doc.toItinerary()
	span.SetStatus(codes.Ok, "Itinerary fetched")
	return &it, nil
}

func (r *MongoRepository) FindItinerariesByOwner(ctx context.Context, ownerID string) ([]types.Itinerary, error) {
	ctx, span := r.span(ctx, "FindItinerariesByOwner", itinerariesCollection)
	defer span.End()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.itineraries.Find(ctx, bson.M{"userId": ownerID}, opts)
	if err != nil {
		return nil, r.fail(ctx, span, "FindItinerariesByOwner", "failed to query itineraries", err)
	}
	var docs []itineraryDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, r.fail(ctx, span, "FindItinerariesByOwner", "failed to decode itineraries", err)
	}
	out := make([]types.Itinerary, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toItinerary())
	}
	span.SetStatus(codes.Ok, "Itineraries fetched")
	return out, nil
}

func (r *MongoRepository) FindDays(ctx context.Context, itineraryID string) ([]types.ItineraryDay, error) {
	ctx, span := r.span(ctx, "FindDays", daysCollection)
	defer span.End()

	oid, err := primitive.ObjectIDFromHex(itineraryID)
	if err != nil {
		return nil, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "dayNumber", Value: 1}})
	cursor, err := r.days.Find(ctx, bson.M{"itineraryId": oid}, opts)
	if err != nil {
		return nil, r.fail(ctx, span, "FindDays", "failed to query itinerary days", err)
	}
	var docs []dayDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, r.fail(ctx, span, "FindDays", "failed to decode itinerary days", err)
	}
	out := make([]types.ItineraryDay, 0, len(docs))
	for _, d := range docs {
		out = append(out, types.ItineraryDay{
			ID:             d.ID.Hex(),
			ItineraryID:    d.ItineraryID.Hex(),
			DayNumber:      d.DayNumber,
			Date:           d.Date.UTC(),
			WeatherSummary: d.WeatherSummary,
			TemperatureMin: d.TemperatureMin,
			TemperatureMax: d.TemperatureMax,
			ChanceOfRain:   d.ChanceOfRain,
			CreatedAt:      d.CreatedAt,
			UpdatedAt:      d.UpdatedAt,
		})
	}
	span.SetStatus(codes.Ok, "Days fetched")
	return out, nil
}

func (r *MongoRepository) FindActivities(ctx context.Context, dayID string) ([]types.Activity, error) {
	ctx, span := r.span(ctx, "FindActivities", activitiesCollection)
	defer span.End()

	oid, err := primitive.ObjectIDFromHex(dayID)
	if err != nil {
		return nil, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "startTime", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.activities.Find(ctx, bson.M{"dayId": oid}, opts)
	if err != nil {
		return nil, r.fail(ctx, span, "FindActivities", "failed to query activities", err)
	}
	var docs []activityDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, r.fail(ctx, span, "FindActivities", "failed to decode activities", err)
	}
	out := make([]types.Activity, 0, len(docs))
	for _, d := range docs {
		out = append(out, types.Activity{
			ID:            d.ID.Hex(),
			DayID:         d.DayID.Hex(),
			ItineraryID:   d.ItineraryID.Hex(),
			Title:         d.Title,
			Description:   d.Description,
			Location:      d.Location,
			StartTime:     d.StartTime.UTC(),
			EndTime:       d.EndTime.UTC(),
			Category:      types.ParseActivityCategory(d.Category),
			EstimatedCost: d.EstimatedCost,
			Priority:      d.Priority,
			Tags:          d.Tags,
			Notes:         d.Notes,
			BookingURL:    d.BookingURL,
			ContactInfo:   d.ContactInfo,
			CreatedAt:     d.CreatedAt,
			UpdatedAt:     d.UpdatedAt,
		})
	}
	span.SetStatus(codes.Ok, "Activities fetched")
	return out, nil
}

func (r *MongoRepository) DeleteActivities(ctx context.Context, itineraryID string) error {
	return r.deleteMany(ctx, "DeleteActivities", r.activities, "itineraryId", itineraryID)
}

func (r *MongoRepository) DeleteDays(ctx context.Context, itineraryID string) error {
	return r.deleteMany(ctx, "DeleteDays", r.days, "itineraryId", itineraryID)
}

func (r *MongoRepository) DeleteItinerary(ctx context.Context, id string) error {
	return r.deleteMany(ctx, "DeleteItinerary", r.itineraries, "_id", id)
}

func (r *MongoRepository) deleteMany(ctx context.Context, method string, coll *mongo.Collection, field, id string) error {
	ctx, span := r.span(ctx, method, coll.Name())
	defer span.End()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil
	}
	res, err := coll.DeleteMany(ctx, bson.M{field: oid})
	if err != nil {
		return r.fail(ctx, span, method, "failed to delete from "+coll.Name(), err)
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", res.DeletedCount))
	span.SetStatus(codes.Ok, "Deleted")
	return nil
}

func (r *MongoRepository) insert(ctx context.Context, span trace.Span, coll *mongo.Collection, doc any) (string, error) {
	res, err := coll.InsertOne(ctx, doc)
	if err != nil {
		return "", r.fail(ctx, span, "insert", "failed to insert into "+coll.Name(), err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", r.fail(ctx, span, "insert", "unexpected inserted id type", fmt.Errorf("%T", res.InsertedID))
	}
	span.SetStatus(codes.Ok, "Inserted")
	return oid.Hex(), nil
}

func (r *MongoRepository) span(ctx context.Context, method, collection string) (context.Context, trace.Span) {
	return otel.Tracer("ItineraryMongoRepo").Start(ctx, method, trace.WithAttributes(
		attribute.String("db.system", "mongodb"),
		attribute.String("db.mongodb.collection", collection),
	))
}

func (r *MongoRepository) fail(ctx context.Context, span trace.Span, method, msg string, err error) error {
	r.logger.ErrorContext(ctx, msg, slog.String("method", method), slog.Any("error", err))
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	return fmt.Errorf("%s: %w", msg, err)
}

func (d itineraryDoc) toItinerary() types.Itinerary {
	return types.Itinerary{
		ID:                d.ID.Hex(),
		OwnerID:           d.UserID,
		Destination:       d.Destination,
		StartDate:         d.StartDate.UTC(),
		EndDate:           d.EndDate.UTC(),
		NumberOfTravelers: d.NumberOfTravelers,
		Preferences:       d.Preferences,
		TripType:          types.TripType(d.TripType),
		AISummary:         d.AISummary,
		AISuggestions:     d.AISuggestions,
		WeatherSummary:    d.WeatherSummary,
		ChanceOfRain:      d.ChanceOfRain,
		TemperatureMin:    d.TemperatureMin,
		TemperatureMax:    d.TemperatureMax,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}
