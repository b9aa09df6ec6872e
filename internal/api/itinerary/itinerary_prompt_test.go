package itinerary

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/FACorreiaa/go-itinerary-ai/internal/types"
)

func TestBuildItineraryPrompt(t *testing.T) {
	t.Run("echoes every input field", func(t *testing.T) {
		req := types.GenerationRequest{
			Destination:       "Tokyo, Japan",
			StartDate:         "2024-03-15",
			EndDate:           "2024-03-17",
			NumberOfTravelers: 2,
			Preferences:       []string{"food", "temples"},
			TripType:          types.TripTypeLuxury,
			Budget:            "3000 USD",
			SpecialRequests:   "vegetarian meals",
		}
		prompt := BuildItineraryPrompt(req, 3)

		for _, want := range []string{
			"Generate a detailed 3-day itinerary for Tokyo, Japan.",
			"- Destination: Tokyo, Japan",
			"- Start Date: 2024-03-15",
			"- End Date: 2024-03-17",
			"- Number of Days: 3",
			"- Number of Travelers: 2",
			"- Trip Type: luxury",
			"- Budget: 3000 USD",
			"- Preferences: food, temples",
			"- Special Requests: vegetarian meals",
			`Return exactly 3 entries in "days", numbered 1 to 3 in order`,
		} {
			assert.Contains(t, prompt, want)
		}
		assert.NotContains(t, prompt, NotSpecified)
	})

	t.Run("absent optional fields are stated explicitly", func(t *testing.T) {
		req := types.GenerationRequest{
			Destination:       "Lisbon",
			StartDate:         "2024-05-01",
			EndDate:           "2024-05-02",
			NumberOfTravelers: 1,
		}
		prompt := BuildItineraryPrompt(req, 2)

		assert.Contains(t, prompt, "- Budget: Not specified")
		assert.Contains(t, prompt, "- Preferences: Not specified")
		assert.Contains(t, prompt, "- Special Requests: Not specified")
		assert.Contains(t, prompt, "- Trip Type: mid-range")
	})

	t.Run("states output shape and guidance", func(t *testing.T) {
		prompt := BuildItineraryPrompt(types.GenerationRequest{Destination: "Rome", NumberOfTravelers: 4}, 5)

		assert.Contains(t, prompt, "You are a professional travel planner AI.")
		assert.Contains(t, prompt, "respond with ONLY a valid JSON object")
		assert.Contains(t, prompt, `"dayNumber": 1`)
		assert.Contains(t, prompt, `"totalEstimatedCost": 500`)
		for _, c := range types.ActivityCategories {
			assert.Contains(t, prompt, `- "`+string(c)+`"`)
		}
		assert.Contains(t, prompt, "Include 4-8 activities per day")
		assert.Contains(t, prompt, "1=must-do, 2=recommended, 3=optional, 4=if-time-permits, 5=backup")
		assert.Contains(t, prompt, "in USD")
		assert.True(t, strings.HasSuffix(prompt, "Generate the JSON response now:"))
	})

	t.Run("is deterministic", func(t *testing.T) {
		req := types.GenerationRequest{Destination: "Oslo", StartDate: "2024-01-01", EndDate: "2024-01-04", NumberOfTravelers: 3}
		assert.Equal(t, BuildItineraryPrompt(req, 4), BuildItineraryPrompt(req, 4))
	})
}
