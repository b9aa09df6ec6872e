package itinerary

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-itinerary-ai/internal/types"
)

const wellFormedPlan = `{
  "summary": "Three days of temples, food and neon.",
  "suggestions": ["Buy a Suica card", "Book teamLab early"],
  "weatherInfo": {"summary": "Mild spring", "chanceOfRain": 20, "temperatureMin": 9, "temperatureMax": 17},
  "days": [
    {"dayNumber": 1, "date": "2024-03-15", "weatherSummary": "Sunny", "temperatureMin": 10, "temperatureMax": 18, "chanceOfRain": 10,
     "activities": [
       {"title": "Senso-ji", "description": "Temple visit", "location": "Asakusa", "startTime": "09:00", "endTime": "11:00",
        "category": "sightseeing", "estimatedCost": 0, "priority": 1, "tags": ["cultural"]},
       {"title": "Sushi lunch", "startTime": "12:30", "endTime": "13:30", "category": "dining", "estimatedCost": 80, "priority": 2}
     ]}
  ],
  "totalEstimatedCost": 80
}`

func TestParseItineraryResponse_WellFormed(t *testing.T) {
	plan, err := ParseItineraryResponse(wellFormedPlan)
	require.NoError(t, err)

	assert.Equal(t, "Three days of temples, food and neon.", plan.Summary)
	assert.Equal(t, []string{"Buy a Suica card", "Book teamLab early"}, plan.Suggestions)
	assert.Equal(t, types.WeatherInfo{Summary: "Mild spring", ChanceOfRain: 20, TemperatureMin: 9, TemperatureMax: 17}, plan.WeatherInfo)
	assert.Equal(t, 80.0, plan.TotalEstimatedCost)
	require.Len(t, plan.Days, 1)

	day := plan.Days[0]
	assert.Equal(t, 1, day.DayNumber)
	assert.Equal(t, "2024-03-15", day.Date)
	assert.Equal(t, 10.0, day.TemperatureMin)
	require.Len(t, day.Activities, 2)
	assert.Equal(t, "Senso-ji", day.Activities[0].Title)
	assert.Equal(t, types.CategorySightseeing, day.Activities[0].Category)
	assert.Equal(t, 1, day.Activities[0].Priority)
	assert.Equal(t, []string{"cultural"}, day.Activities[0].Tags)
	assert.Equal(t, types.CategoryDining, day.Activities[1].Category)
	assert.Equal(t, 80.0, day.Activities[1].EstimatedCost)
}

func TestParseItineraryResponse_SurroundingNoiseIgnored(t *testing.T) {
	clean, err := ParseItineraryResponse(wellFormedPlan)
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"prose prefix":  "Sure! Here is your itinerary:\n" + wellFormedPlan,
		"prose suffix":  wellFormedPlan + "\nEnjoy your trip",
		"code fence":    "```json\n" + wellFormedPlan + "\n```",
		"both and more": "Here you go.\n```json\n" + wellFormedPlan + "\n```\nLet me know if you need changes.",
	} {
		t.Run(name, func(t *testing.T) {
			noisy, err := ParseItineraryResponse(raw)
			require.NoError(t, err)
			assert.Equal(t, clean, noisy)
		})
	}
}

func TestParseItineraryResponse_ActivityDefaults(t *testing.T) {
	raw := `{"summary": "s", "days": [{"dayNumber": 1, "activities": [{"title": "Walk"}]}]}`

	plan, err := ParseItineraryResponse(raw)
	require.NoError(t, err)

	a := plan.Days[0].Activities[0]
	assert.Equal(t, "Walk", a.Title)
	assert.Equal(t, types.CategoryOther, a.Category)
	assert.Equal(t, 0.0, a.EstimatedCost)
	assert.Equal(t, 3, a.Priority)
	assert.Equal(t, []string{}, a.Tags)
	assert.Equal(t, "09:00", a.StartTime)
	assert.Equal(t, "09:00", a.EndTime)
	assert.Equal(t, "", a.Notes)

	day := plan.Days[0]
	assert.Equal(t, 20.0, day.TemperatureMin)
	assert.Equal(t, 30.0, day.TemperatureMax)
	assert.Equal(t, 0.0, day.ChanceOfRain)

	assert.Equal(t, types.WeatherInfo{TemperatureMin: 20, TemperatureMax: 30}, plan.WeatherInfo)
	assert.Equal(t, []string{}, plan.Suggestions)
	assert.Equal(t, 0.0, plan.TotalEstimatedCost)
}

func TestParseItineraryResponse_OutOfRangeValuesDefaulted(t *testing.T) {
	raw := `{"summary": "s", "weatherInfo": "sunny", "days": [{"dayNumber": "1", "chanceOfRain": 140, "activities": [
	  {"category": "  DINING ", "estimatedCost": -5, "priority": 9, "startTime": "25:99", "endTime": "14:00", "tags": ["a", 3, "b"]},
	  {"category": "museum", "estimatedCost": "12.5", "priority": 2.5}
	]}]}`

	plan, err := ParseItineraryResponse(raw)
	require.NoError(t, err)

	day := plan.Days[0]
	assert.Equal(t, 100.0, day.ChanceOfRain)

	first := day.Activities[0]
	assert.Equal(t, types.CategoryDining, first.Category)
	assert.Equal(t, 0.0, first.EstimatedCost)
	assert.Equal(t, 3, first.Priority)
	assert.Equal(t, "09:00", first.StartTime)
	assert.Equal(t, "14:00", first.EndTime)
	assert.Equal(t, []string{"a", "b"}, first.Tags)

	second := day.Activities[1]
	assert.Equal(t, types.CategoryOther, second.Category)
	assert.Equal(t, 12.5, second.EstimatedCost)
	assert.Equal(t, 3, second.Priority)

	assert.Equal(t, types.WeatherInfo{TemperatureMin: 20, TemperatureMax: 30}, plan.WeatherInfo)
}

func TestParseItineraryResponse_Rejections(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no braces", "I cannot help with that."},
		{"closing before opening", "} nope {"},
		{"invalid json", `{"summary": "s", "days": [}`},
		{"missing summary", `{"days": [{"dayNumber": 1, "activities": []}]}`},
		{"blank summary", `{"summary": "  ", "days": [{"dayNumber": 1, "activities": []}]}`},
		{"missing days", `{"summary": "s"}`},
		{"null days", `{"summary": "s", "days": null}`},
		{"days not a list", `{"summary": "s", "days": {"dayNumber": 1}}`},
		{"empty days", `{"summary": "s", "days": []}`},
		{"missing dayNumber", `{"summary": "s", "days": [{"activities": []}]}`},
		{"fractional dayNumber", `{"summary": "s", "days": [{"dayNumber": 1.5, "activities": []}]}`},
		{"gap in day numbers", `{"summary": "s", "days": [{"dayNumber": 1, "activities": []}, {"dayNumber": 3, "activities": []}]}`},
		{"day numbers out of order", `{"summary": "s", "days": [{"dayNumber": 2, "activities": []}, {"dayNumber": 1, "activities": []}]}`},
		{"missing activities", `{"summary": "s", "days": [{"dayNumber": 1}]}`},
		{"activity not an object", `{"summary": "s", "days": [{"dayNumber": 1, "activities": ["walk"]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := ParseItineraryResponse(tt.raw)
			require.Error(t, err)
			assert.Nil(t, plan)
			assert.True(t, errors.Is(err, types.ErrMalformedResponse), "got %v", err)
		})
	}
}

func TestParseItineraryResponse_EmptyActivitiesAllowed(t *testing.T) {
	plan, err := ParseItineraryResponse(`{"summary": "rest", "days": [{"dayNumber": 1, "activities": []}]}`)
	require.NoError(t, err)
	assert.Empty(t, plan.Days[0].Activities)
}
