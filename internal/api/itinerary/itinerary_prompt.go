package itinerary

import (
	"fmt"
	"strings"

	"github.com/FACorreiaa/go-itinerary-ai/internal/types"
)

const itineraryResponseFormat = `{
  "summary": "Brief 2-3 sentence overview of the trip",
  "suggestions": ["suggestion1", "suggestion2", "suggestion3"],
  "weatherInfo": {
    "summary": "General weather description for the period",
    "chanceOfRain": 30,
    "temperatureMin": 20,
    "temperatureMax": 28
  },
  "days": [
    {
      "dayNumber": 1,
      "date": "2024-01-01",
      "weatherSummary": "Sunny with light clouds",
      "temperatureMin": 22,
      "temperatureMax": 28,
      "chanceOfRain": 10,
      "activities": [
        {
          "title": "Activity Name",
          "description": "Detailed description of the activity",
          "location": "Specific address or area",
          "startTime": "09:00",
          "endTime": "11:00",
          "category": "sightseeing",
          "estimatedCost": 25,
          "priority": 1,
          "tags": ["cultural", "historic"],
          "notes": "Optional tips or notes",
          "bookingUrl": "https://example.com/booking",
          "contactInfo": "+1234567890"
        }
      ]
    }
  ],
  "totalEstimatedCost": 500
}`

// BuildItineraryPrompt renders the generation prompt for req spanning dayCount days.
// Every input field is echoed; absent optional ones read "Not specified".
func BuildItineraryPrompt(req types.GenerationRequest, dayCount int) string {
	tripType := req.TripType
	if tripType == "" {
		tripType = types.TripTypeMidRange
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional travel planner AI. Generate a detailed %d-day itinerary for %s.\n\n",
		dayCount, req.Destination)
	b.WriteString("**IMPORTANT: You must respond with ONLY a valid JSON object in the exact format specified below. ")
	b.WriteString("Do not include any other text, explanations, or markdown formatting.**\n\n")

	b.WriteString("**Input Details:**\n")
	fmt.Fprintf(&b, "- Destination: %s\n", req.Destination)
	fmt.Fprintf(&b, "- Start Date: %s\n", req.StartDate)
	fmt.Fprintf(&b, "- End Date: %s\n", req.EndDate)
	fmt.Fprintf(&b, "- Number of Days: %d\n", dayCount)
	fmt.Fprintf(&b, "- Number of Travelers: %d\n", req.NumberOfTravelers)
	fmt.Fprintf(&b, "- Trip Type: %s\n", tripType)
	fmt.Fprintf(&b, "- Budget: %s\n", orNotSpecified(req.Budget))
	fmt.Fprintf(&b, "- Preferences: %s\n", orNotSpecified(strings.Join(req.Preferences, ", ")))
	fmt.Fprintf(&b, "- Special Requests: %s\n\n", orNotSpecified(req.SpecialRequests))

	b.WriteString("**Required JSON Response Format:**\n")
	b.WriteString(itineraryResponseFormat)
	b.WriteString("\n\n")

	b.WriteString("**Activity Categories (use only these):**\n")
	for _, c := range types.ActivityCategories {
		fmt.Fprintf(&b, "- %q\n", string(c))
	}
	b.WriteString("\n")

	b.WriteString("**Guidelines:**\n")
	guidelines := []string{
		fmt.Sprintf("Return exactly %d entries in \"days\", numbered 1 to %d in order", dayCount, dayCount),
		fmt.Sprintf("Include %d-%d activities per day", MinActivitiesPerDay, MaxActivitiesPerDay),
		"Consider realistic timing and travel between locations",
		"Include meals (breakfast, lunch, dinner) as dining activities",
		"Add transport activities for longer distances",
		"Provide realistic cost estimates in USD, per activity for the whole group",
		"Priority: 1=must-do, 2=recommended, 3=optional, 4=if-time-permits, 5=backup",
		"Use 24-hour HH:MM times for startTime and endTime",
		"Include practical information like booking URLs and contact info when relevant",
		"Consider the trip type (budget/mid-range/luxury) for activity selection and costs",
		"Weather should be realistic for the destination and season, chanceOfRain is a percentage from 0 to 100",
		"Each day should have a logical flow and realistic schedule",
	}
	for i, g := range guidelines {
		fmt.Fprintf(&b, "%d. %s\n", i+1, g)
	}
	b.WriteString("\nGenerate the JSON response now:")
	return b.String()
}

func orNotSpecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotSpecified
	}
	return s
}
