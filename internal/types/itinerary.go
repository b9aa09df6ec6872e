package types

import (
	"time"
)

// TripType is the budget tier of a trip.
type TripType string

const (
	TripTypeBudget   TripType = "budget"
	TripTypeMidRange TripType = "mid-range"
	TripTypeLuxury   TripType = "luxury"
)

// Valid reports whether t is one of the known tiers.
func (t TripType) Valid() bool {
	switch t {
	case TripTypeBudget, TripTypeMidRange, TripTypeLuxury:
		return true
	}
	return false
}

// ActivityCategory is the closed vocabulary the model must pick from.
type ActivityCategory string

const (
	CategorySightseeing   ActivityCategory = "sightseeing"
	CategoryDining        ActivityCategory = "dining"
	CategoryShopping      ActivityCategory = "shopping"
	CategoryEntertainment ActivityCategory = "entertainment"
	CategoryTransport     ActivityCategory = "transport"
	CategoryAccommodation ActivityCategory = "accommodation"
	CategoryOther         ActivityCategory = "other"
)

// ActivityCategories lists every category in the order they are presented to the model.
var ActivityCategories = []ActivityCategory{
	CategorySightseeing,
	CategoryDining,
	CategoryShopping,
	CategoryEntertainment,
	CategoryTransport,
	CategoryAccommodation,
	CategoryOther,
}

// ParseActivityCategory folds unknown values to CategoryOther.
func ParseActivityCategory(s string) ActivityCategory {
	for _, c := range ActivityCategories {
		if string(c) == s {
			return c
		}
	}
	return CategoryOther
}

// DateLayout is the calendar date format used on the wire and in prompts.
const DateLayout = "2006-01-02"

// ClockLayout is the day-local wall clock format for activity times.
const ClockLayout = "15:04"

// GenerationRequest holds the caller supplied parameters for one generation.
type GenerationRequest struct {
	Destination       string   `json:"destination"`
	StartDate         string   `json:"startDate"`
	EndDate           string   `json:"endDate"`
	NumberOfTravelers int      `json:"numberOfTravelers"`
	Preferences       []string `json:"preferences,omitempty"`
	TripType          TripType `json:"tripType,omitempty"`
	Budget            string   `json:"budget,omitempty"`
	SpecialRequests   string   `json:"specialRequests,omitempty"`
	Model             string   `json:"model,omitempty"`
}

// QuickGenerateRequest generates a trip starting next week with default party size.
type QuickGenerateRequest struct {
	Destination string   `json:"destination"`
	Days        int      `json:"days"`
	TripType    TripType `json:"tripType,omitempty"`
	Preferences []string `json:"preferences,omitempty"`
}

// RegenerateOptions overrides fields borrowed from an existing itinerary.
type RegenerateOptions struct {
	ChangePreferences []string `json:"changePreferences,omitempty"`
	ChangeTripType    TripType `json:"changeTripType,omitempty"`
	SpecialRequests   string   `json:"specialRequests,omitempty"`
}

// WeatherInfo is the trip level weather block returned by the model.
type WeatherInfo struct {
	Summary        string  `json:"summary"`
	ChanceOfRain   float64 `json:"chanceOfRain"`
	TemperatureMin float64 `json:"temperatureMin"`
	TemperatureMax float64 `json:"temperatureMax"`
}

// GeneratedPlan is the validated, defaulted model output. It is never persisted as is.
type GeneratedPlan struct {
	Summary            string      `json:"summary"`
	Suggestions        []string    `json:"suggestions"`
	WeatherInfo        WeatherInfo `json:"weatherInfo"`
	Days               []DayPlan   `json:"days"`
	TotalEstimatedCost float64     `json:"totalEstimatedCost"`
}

type DayPlan struct {
	DayNumber      int            `json:"dayNumber"`
	Date           string         `json:"date"`
	WeatherSummary string         `json:"weatherSummary"`
	TemperatureMin float64        `json:"temperatureMin"`
	TemperatureMax float64        `json:"temperatureMax"`
	ChanceOfRain   float64        `json:"chanceOfRain"`
	Activities     []ActivityPlan `json:"activities"`
}

type ActivityPlan struct {
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	Location      string           `json:"location"`
	StartTime     string           `json:"startTime"`
	EndTime       string           `json:"endTime"`
	Category      ActivityCategory `json:"category"`
	EstimatedCost float64          `json:"estimatedCost"`
	Priority      int              `json:"priority"`
	Tags          []string         `json:"tags"`
	Notes         string           `json:"notes"`
	BookingURL    string           `json:"bookingUrl"`
	ContactInfo   string           `json:"contactInfo"`
}

// Itinerary is the persisted aggregate root.
type Itinerary struct {
	ID                string
	OwnerID           string
	Destination       string
	StartDate         time.Time
	EndDate           time.Time
	NumberOfTravelers int
	Preferences       []string
	TripType          TripType
	AISummary         string
	AISuggestions     []string
	WeatherSummary    string
	ChanceOfRain      float64
	TemperatureMin    float64
	TemperatureMax    float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ItineraryDay belongs to exactly one Itinerary.
type ItineraryDay struct {
	ID             string
	ItineraryID    string
	DayNumber      int
	Date           time.Time
	WeatherSummary string
	TemperatureMin float64
	TemperatureMax float64
	ChanceOfRain   float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Activity belongs to one day. ItineraryID is denormalised so a whole trip's
// activities can be removed without walking its days.
type Activity struct {
	ID            string
	DayID         string
	ItineraryID   string
	Title         string
	Description   string
	Location      string
	StartTime     time.Time
	EndTime       time.Time
	Category      ActivityCategory
	EstimatedCost float64
	Priority      int
	Tags          []string
	Notes         string
	BookingURL    string
	ContactInfo   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ItineraryView is the denormalised shape returned to callers.
type ItineraryView struct {
	ItineraryID        string    `json:"itineraryId"`
	Destination        string    `json:"destination"`
	StartDate          string    `json:"startDate"`
	EndDate            string    `json:"endDate"`
	NumberOfTravelers  int       `json:"numberOfTravelers"`
	Preferences        []string  `json:"preferences"`
	TripType           TripType  `json:"tripType"`
	AISummary          string    `json:"aiSummary"`
	AISuggestions      []string  `json:"aiSuggestions"`
	WeatherSummary     string    `json:"weatherSummary"`
	ChanceOfRain       float64   `json:"chanceOfRain"`
	TemperatureMin     float64   `json:"temperatureMin"`
	TemperatureMax     float64   `json:"temperatureMax"`
	Days               []DayView `json:"days"`
	TotalEstimatedCost float64   `json:"totalEstimatedCost"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

type DayView struct {
	DayNumber      int            `json:"dayNumber"`
	Date           string         `json:"date"`
	WeatherSummary string         `json:"weatherSummary"`
	TemperatureMin float64        `json:"temperatureMin"`
	TemperatureMax float64        `json:"temperatureMax"`
	ChanceOfRain   float64        `json:"chanceOfRain"`
	Activities     []ActivityView `json:"activities"`
}

type ActivityView struct {
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	Location      string           `json:"location"`
	StartTime     string           `json:"startTime"`
	EndTime       string           `json:"endTime"`
	Category      ActivityCategory `json:"category"`
	EstimatedCost float64          `json:"estimatedCost"`
	Priority      int              `json:"priority"`
	Tags          []string         `json:"tags"`
	Notes         string           `json:"notes,omitempty"`
	BookingURL    string           `json:"bookingUrl,omitempty"`
	ContactInfo   string           `json:"contactInfo,omitempty"`
}

// ImageAnalysisRequest asks the model about a publicly reachable image.
// Question and Model are optional.
type ImageAnalysisRequest struct {
	ImageURL string `json:"imageUrl"`
	Question string `json:"question,omitempty"`
	Model    string `json:"model,omitempty"`
}

// Response is the generic success envelope used by handlers.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
