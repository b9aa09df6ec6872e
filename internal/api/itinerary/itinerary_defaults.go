package itinerary

import "github.com/FACorreiaa/go-itinerary-ai/internal/types"

// Fallbacks applied by the response parser to descriptive fields the model
// left out. Structural fields never fall back to these.
const (
	DefaultCategory       = types.CategoryOther
	DefaultEstimatedCost  = 0.0
	DefaultPriority       = 3
	MinPriority           = 1
	MaxPriority           = 5
	DefaultTemperatureMin = 20.0
	DefaultTemperatureMax = 30.0
	DefaultChanceOfRain   = 0.0
	MinChanceOfRain       = 0.0
	MaxChanceOfRain       = 100.0
	DefaultStartTime      = "09:00"
)

// Generation limits.
const (
	MaxTripDays         = 30
	MinTravelers        = 1
	MaxTravelers        = 50
	GenerationTemp      = float32(0.7)
	QuickTripLeadDays   = 7
	QuickTripTravelers  = 2
	NotSpecified        = "Not specified"
	MinActivitiesPerDay = 4
	MaxActivitiesPerDay = 8
)
