package itinerary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/FACorreiaa/go-itinerary-ai/internal/types"
)

// ParseItineraryResponse extracts the JSON object embedded in raw and turns it
// into a validated plan. The object spans from the first '{' to the last '}',
// so prose or code fences around it are ignored. Missing structural fields
// fail with a malformed response error; descriptive fields are defaulted.
func ParseItineraryResponse(raw string) (*types.GeneratedPlan, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return nil, types.NewMalformedResponseError("no JSON object found in model response", nil)
	}

	var wire planWire
	if err := json.Unmarshal([]byte(raw[start:end+1]), &wire); err != nil {
		return nil, types.NewMalformedResponseError("model response is not valid JSON", err)
	}

	if !wire.Summary.set || strings.TrimSpace(wire.Summary.value) == "" {
		return nil, types.NewMalformedResponseError("model response is missing summary", nil)
	}

	rawDays, err := requiredList(wire.Days, "days")
	if err != nil {
		return nil, err
	}
	if len(rawDays) == 0 {
		return nil, types.NewMalformedResponseError("model response has no days", nil)
	}

	plan := &types.GeneratedPlan{
		Summary:            strings.TrimSpace(wire.Summary.value),
		Suggestions:        wire.Suggestions.orEmpty(),
		WeatherInfo:        parseWeather(wire.WeatherInfo),
		TotalEstimatedCost: nonNegative(wire.TotalEstimatedCost, DefaultEstimatedCost),
		Days:               make([]types.DayPlan, 0, len(rawDays)),
	}

	for i, rawDay := range rawDays {
		day, err := parseDay(rawDay, i+1)
		if err != nil {
			return nil, err
		}
		plan.Days = append(plan.Days, *day)
	}
	return plan, nil
}

func parseDay(raw json.RawMessage, want int) (*types.DayPlan, error) {
	var wire dayWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, types.NewMalformedResponseError(fmt.Sprintf("day %d is not an object", want), err)
	}

	if !wire.DayNumber.set {
		return nil, types.NewMalformedResponseError(fmt.Sprintf("day %d is missing dayNumber", want), nil)
	}
	n := wire.DayNumber.value
	if n != math.Trunc(n) || int(n) != want {
		return nil, types.NewMalformedResponseError(
			fmt.Sprintf("day numbers must run 1..N without gaps: expected %d, got %v", want, n), nil)
	}

	rawActivities, err := requiredList(wire.Activities, fmt.Sprintf("day %d activities", want))
	if err != nil {
		return nil, err
	}

	day := &types.DayPlan{
		DayNumber:      want,
		Date:           strings.TrimSpace(wire.Date.value),
		WeatherSummary: wire.WeatherSummary.value,
		TemperatureMin: wire.TemperatureMin.or(DefaultTemperatureMin),
		TemperatureMax: wire.TemperatureMax.or(DefaultTemperatureMax),
		ChanceOfRain:   rainChance(wire.ChanceOfRain),
		Activities:     make([]types.ActivityPlan, 0, len(rawActivities)),
	}

	for j, rawActivity := range rawActivities {
		var aw activityWire
		if err := json.Unmarshal(rawActivity, &aw); err != nil {
			return nil, types.NewMalformedResponseError(
				fmt.Sprintf("day %d activity %d is not an object", want, j+1), err)
		}
		day.Activities = append(day.Activities, aw.toPlan())
	}
	return day, nil
}

func (a activityWire) toPlan() types.ActivityPlan {
	startTime := clock(a.StartTime.value, DefaultStartTime)
	return types.ActivityPlan{
		Title:         a.Title.value,
		Description:   a.Description.value,
		Location:      a.Location.value,
		StartTime:     startTime,
		EndTime:       clock(a.EndTime.value, startTime),
		Category:      types.ParseActivityCategory(strings.ToLower(strings.TrimSpace(a.Category.value))),
		EstimatedCost: nonNegative(a.EstimatedCost, DefaultEstimatedCost),
		Priority:      priority(a.Priority),
		Tags:          a.Tags.orEmpty(),
		Notes:         a.Notes.value,
		BookingURL:    a.BookingURL.value,
		ContactInfo:   a.ContactInfo.value,
	}
}

func parseWeather(raw json.RawMessage) types.WeatherInfo {
	var w weatherWire
	if len(raw) > 0 {
		// a non-object weather block is treated as absent
		_ = json.Unmarshal(raw, &w)
	}
	return types.WeatherInfo{
		Summary:        w.Summary.value,
		ChanceOfRain:   rainChance(w.ChanceOfRain),
		TemperatureMin: w.TemperatureMin.or(DefaultTemperatureMin),
		TemperatureMax: w.TemperatureMax.or(DefaultTemperatureMax),
	}
}

func requiredList(raw json.RawMessage, field string) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, types.NewMalformedResponseError(fmt.Sprintf("model response is missing %s", field), nil)
	}
	var list []json.RawMessage
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, types.NewMalformedResponseError(fmt.Sprintf("%s is not a list", field), err)
	}
	return list, nil
}

func clock(s, fallback string) string {
	t, err := time.Parse(types.ClockLayout, strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return t.Format(types.ClockLayout)
}

func priority(n flexNumber) int {
	if !n.set || n.value != math.Trunc(n.value) || n.value < MinPriority || n.value > MaxPriority {
		return DefaultPriority
	}
	return int(n.value)
}

func nonNegative(n flexNumber, fallback float64) float64 {
	if !n.set {
		return fallback
	}
	return math.Max(0, n.value)
}

func rainChance(n flexNumber) float64 {
	if !n.set {
		return DefaultChanceOfRain
	}
	return math.Min(MaxChanceOfRain, math.Max(MinChanceOfRain, n.value))
}

type planWire struct {
	Summary            flexString      `json:"summary"`
	Suggestions        flexStrings     `json:"suggestions"`
	WeatherInfo        json.RawMessage `json:"weatherInfo"`
	Days               json.RawMessage `json:"days"`
	TotalEstimatedCost flexNumber      `json:"totalEstimatedCost"`
}

type weatherWire struct {
	Summary        flexString `json:"summary"`
	ChanceOfRain   flexNumber `json:"chanceOfRain"`
	TemperatureMin flexNumber `json:"temperatureMin"`
	TemperatureMax flexNumber `json:"temperatureMax"`
}

type dayWire struct {
	DayNumber      flexNumber      `json:"dayNumber"`
	Date           flexString      `json:"date"`
	WeatherSummary flexString      `json:"weatherSummary"`
	TemperatureMin flexNumber      `json:"temperatureMin"`
	TemperatureMax flexNumber      `json:"temperatureMax"`
	ChanceOfRain   flexNumber      `json:"chanceOfRain"`
	Activities     json.RawMessage `json:"activities"`
}

type activityWire struct {
	Title         flexString  `json:"title"`
	Description   flexString  `json:"description"`
	Location      flexString  `json:"location"`
	StartTime     flexString  `json:"startTime"`
	EndTime       flexString  `json:"endTime"`
	Category      flexString  `json:"category"`
	EstimatedCost flexNumber  `json:"estimatedCost"`
	Priority      flexNumber  `json:"priority"`
	Tags          flexStrings `json:"tags"`
	Notes         flexString  `json:"notes"`
	BookingURL    flexString  `json:"bookingUrl"`
	ContactInfo   flexString  `json:"contactInfo"`
}

// flexNumber accepts a JSON number or a numeric string. Anything else is unset.
type flexNumber struct {
	value float64
	set   bool
}

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil && !bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		f.value, f.set = n, true
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
			f.value, f.set = n, true
		}
	}
	return nil
}

func (f flexNumber) or(fallback float64) float64 {
	if !f.set {
		return fallback
	}
	return f.value
}

// flexString accepts a JSON string. Numbers and booleans keep their literal text.
type flexString struct {
	value string
	set   bool
}

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		f.value, f.set = s, true
		return nil
	}
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && (trimmed[0] == '-' || (trimmed[0] >= '0' && trimmed[0] <= '9') || trimmed[0] == 't' || trimmed[0] == 'f') {
		f.value, f.set = string(trimmed), true
	}
	return nil
}

// flexStrings accepts a list and keeps only its string items.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(b []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
		}
	}
	*f = out
	return nil
}

func (f flexStrings) orEmpty() []string {
	if f == nil {
		return []string{}
	}
	return []string(f)
}
