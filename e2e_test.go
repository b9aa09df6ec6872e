package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/FACorreiaa/go-itinerary-ai/config"
	"github.com/FACorreiaa/go-itinerary-ai/internal/api/auth"
	generativeAI "github.com/FACorreiaa/go-itinerary-ai/internal/api/generative_ai"
	"github.com/FACorreiaa/go-itinerary-ai/internal/container"
	"github.com/FACorreiaa/go-itinerary-ai/internal/router"
	"github.com/FACorreiaa/go-itinerary-ai/internal/types"
)

var dayCountPattern = regexp.MustCompile(`Number of Days: (\d+)`)

// E2ETestSuite drives the full HTTP stack against a fake completion provider
type E2ETestSuite struct {
	suite.Suite
	provider      *httptest.Server
	server        *httptest.Server
	client        *http.Client
	logger        *slog.Logger
	container     *container.Container
	jwt           config.JWTConfig
	providerCalls atomic.Int64
	// providerDown makes the fake provider answer 429
	providerDown atomic.Bool
}

// SetupSuite starts the fake provider and the API server
func (suite *E2ETestSuite) SetupSuite() {
	suite.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	suite.provider = httptest.NewServer(http.HandlerFunc(suite.fakeCompletions))
	suite.jwt = config.JWTConfig{SecretKey: "e2e-secret", Issuer: "e2e", Audience: "itinerary-ai"}

	var cfg config.Config
	cfg.Mode = "test"
	cfg.Storage.Driver = config.StorageMemory
	cfg.JWT = suite.jwt
	cfg.Completion = config.CompletionConfig{
		Provider:       config.ProviderOpenRouter,
		BaseURL:        suite.provider.URL,
		APIKey:         "e2e-key",
		MaxAttempts:    2,
		BaseDelay:      time.Millisecond,
		AttemptTimeout: 5 * time.Second,
	}

	c, err := container.NewContainer(context.Background(), &cfg, suite.logger)
	suite.Require().NoError(err)
	suite.container = c

	r := chi.NewMux()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Mount("/", router.SetupRouter(&router.Config{
		ItineraryHandler:       c.ItineraryHandler,
		AuthenticateMiddleware: auth.Authenticate(suite.logger, suite.jwt),
	}))
	suite.server = httptest.NewServer(r)
	suite.client = &http.Client{Timeout: 30 * time.Second}
}

// TearDownSuite cleans up after all tests
func (suite *E2ETestSuite) TearDownSuite() {
	if suite.server != nil {
		suite.server.Close()
	}
	if suite.provider != nil {
		suite.provider.Close()
	}
	if suite.container != nil {
		suite.container.Close(context.Background())
	}
}

func (suite *E2ETestSuite) SetupTest() {
	suite.providerDown.Store(false)
	suite.providerCalls.Store(0)
}

// fakeCompletions answers chat completion requests with a plan for the number
// of days named in the prompt.
func (suite *E2ETestSuite) fakeCompletions(w http.ResponseWriter, r *http.Request) {
	suite.providerCalls.Add(1)
	body, _ := io.ReadAll(r.Body)
	w.Header().Set("Content-Type", "application/json")

	if suite.providerDown.Load() {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit_exceeded"}}`))
		return
	}

	content := "Hello!"
	if bytes.Contains(body, []byte(`"image_url"`)) {
		content = "A vermilion torii gate path, most likely Fushimi Inari in Kyoto."
	} else if m := dayCountPattern.FindSubmatch(body); m != nil {
		days, _ := strconv.Atoi(string(m[1]))
		content = "Here is your trip:\n```json\n" + fakePlan(days) + "\n```"
	}
	resp := map[string]any{
		"id":      "gen-" + uuid.NewString(),
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   "google/gemini-2.0-flash-001",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 900, "completion_tokens": 1200, "total_tokens": 2100},
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func fakePlan(days int) string {
	plan := types.GeneratedPlan{
		Summary:     "A relaxed trip.",
		Suggestions: []string{"Book ahead"},
		WeatherInfo: types.WeatherInfo{Summary: "Mild", ChanceOfRain: 10, TemperatureMin: 12, TemperatureMax: 21},
	}
	for d := 1; d <= days; d++ {
		plan.Days = append(plan.Days, types.DayPlan{
			DayNumber: d,
			Activities: []types.ActivityPlan{
				{Title: "Lunch", StartTime: "12:30", EndTime: "13:30", Category: types.CategoryDining, EstimatedCost: 25, Priority: 2},
				{Title: "Museum", StartTime: "09:00", EndTime: "11:00", Category: types.CategorySightseeing, EstimatedCost: 15, Priority: 1},
			},
		})
		plan.TotalEstimatedCost += 40
	}
	raw, _ := json.Marshal(plan)
	return string(raw)
}

func (suite *E2ETestSuite) token(userID string) string {
	claims := types.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    suite.jwt.Issuer,
			Audience:  jwt.ClaimStrings{suite.jwt.Audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(suite.jwt.SecretKey))
	suite.Require().NoError(err)
	return signed
}

// makeRequest sends a request as userID; an empty userID sends no token.
func (suite *E2ETestSuite) makeRequest(method, path string, body any, userID string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, suite.server.URL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+suite.token(userID))
	}
	return suite.client.Do(req)
}

func decodeResponse[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func tokyoTrip() types.GenerationRequest {
	return types.GenerationRequest{
		Destination:       "Tokyo, Japan",
		StartDate:         "2024-03-15",
		EndDate:           "2024-03-17",
		NumberOfTravelers: 2,
		TripType:          types.TripTypeMidRange,
		Preferences:       []string{"food", "temples"},
	}
}

func (suite *E2ETestSuite) TestItineraryLifecycleWorkflow() {
	t := suite.T()
	user := uuid.NewString()

	resp, err := suite.makeRequest(http.MethodPost, "/api/v1/ai/itinerary/generate", tokyoTrip(), user)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeResponse[types.ItineraryView](t, resp)

	require.NotEmpty(t, created.ItineraryID)
	require.Len(t, created.Days, 3)
	assert.Equal(t, "2024-03-16", created.Days[1].Date)
	assert.Equal(t, "09:00", created.Days[0].Activities[0].StartTime)
	assert.Equal(t, 120.0, created.TotalEstimatedCost)
	assert.Equal(t, []string{"food", "temples"}, created.Preferences)

	resp, err = suite.makeRequest(http.MethodGet, "/api/v1/ai/itinerary/"+created.ItineraryID, nil, user)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fetched := decodeResponse[types.ItineraryView](t, resp)
	assert.Equal(t, created.Days, fetched.Days)
	assert.Equal(t, created.TotalEstimatedCost, fetched.TotalEstimatedCost)

	resp, err = suite.makeRequest(http.MethodGet, "/api/v1/ai/itinerary/my-itineraries", nil, user)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeResponse[[]types.ItineraryView](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, created.ItineraryID, list[0].ItineraryID)
	assert.Empty(t, list[0].Days)

	resp, err = suite.makeRequest(http.MethodPost, "/api/v1/ai/itinerary/regenerate/"+created.ItineraryID,
		types.RegenerateOptions{ChangeTripType: types.TripTypeLuxury}, user)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	regenerated := decodeResponse[types.ItineraryView](t, resp)
	assert.NotEqual(t, created.ItineraryID, regenerated.ItineraryID)
	assert.Equal(t, types.TripTypeLuxury, regenerated.TripType)

	resp, err = suite.makeRequest(http.MethodDelete, "/api/v1/ai/itinerary/"+created.ItineraryID, nil, user)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	deleted := decodeResponse[types.Response](t, resp)
	assert.True(t, deleted.Success)

	resp, err = suite.makeRequest(http.MethodGet, "/api/v1/ai/itinerary/"+created.ItineraryID, nil, user)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func (suite *E2ETestSuite) TestQuickGenerateWorkflow() {
	t := suite.T()
	resp, err := suite.makeRequest(http.MethodPost, "/api/v1/ai/itinerary/quick-generate",
		types.QuickGenerateRequest{Destination: "Lisbon", Days: 4}, uuid.NewString())
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	view := decodeResponse[types.ItineraryView](t, resp)
	assert.Len(t, view.Days, 4)
	assert.Equal(t, 2, view.NumberOfTravelers)
}

func (suite *E2ETestSuite) TestImageAnalysisWorkflow() {
	t := suite.T()
	user := uuid.NewString()

	resp, err := suite.makeRequest(http.MethodPost, "/api/v1/ai/image-analysis",
		types.ImageAnalysisRequest{ImageURL: "https://example.com/kyoto.jpg", Question: "Where is this?"}, user)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	answer := decodeResponse[generativeAI.Completion](t, resp)
	assert.Contains(t, answer.Content, "Fushimi Inari")
	assert.EqualValues(t, 1, suite.providerCalls.Load())

	resp, err = suite.makeRequest(http.MethodPost, "/api/v1/ai/image-analysis",
		types.ImageAnalysisRequest{ImageURL: "https://example.com/kyoto.jpg"}, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp, err = suite.makeRequest(http.MethodPost, "/api/v1/ai/image-analysis", types.ImageAnalysisRequest{}, user)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
	assert.EqualValues(t, 1, suite.providerCalls.Load())
}

func (suite *E2ETestSuite) TestAuthenticationWorkflow() {
	t := suite.T()

	resp, err := suite.makeRequest(http.MethodGet, "/api/v1/ai/itinerary/my-itineraries", nil, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp, err = suite.makeRequest(http.MethodGet, "/api/v1/ai/health", nil, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	health := decodeResponse[map[string]any](t, resp)
	assert.Equal(t, true, health["healthy"])
}

func (suite *E2ETestSuite) TestOwnershipIsolationWorkflow() {
	t := suite.T()
	owner, intruder := uuid.NewString(), uuid.NewString()

	resp, err := suite.makeRequest(http.MethodPost, "/api/v1/ai/itinerary/generate", tokyoTrip(), owner)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeResponse[types.ItineraryView](t, resp)

	foreignResp, err := suite.makeRequest(http.MethodGet, "/api/v1/ai/itinerary/"+created.ItineraryID, nil, intruder)
	require.NoError(t, err)
	missingResp, err := suite.makeRequest(http.MethodGet, "/api/v1/ai/itinerary/"+uuid.NewString(), nil, intruder)
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, foreignResp.StatusCode)
	assert.Equal(t, missingResp.StatusCode, foreignResp.StatusCode)
	foreign := decodeResponse[map[string]any](t, foreignResp)
	missing := decodeResponse[map[string]any](t, missingResp)
	assert.Equal(t, missing["error"], foreign["error"])
	assert.Equal(t, missing["kind"], foreign["kind"])

	resp, err = suite.makeRequest(http.MethodDelete, "/api/v1/ai/itinerary/"+created.ItineraryID, nil, intruder)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp, err = suite.makeRequest(http.MethodGet, "/api/v1/ai/itinerary/"+created.ItineraryID, nil, owner)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func (suite *E2ETestSuite) TestErrorHandlingWorkflow() {
	t := suite.T()
	user := uuid.NewString()

	bad := tokyoTrip()
	bad.EndDate = "2024-03-10"
	resp, err := suite.makeRequest(http.MethodPost, "/api/v1/ai/itinerary/generate", bad, user)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", decodeResponse[map[string]any](t, resp)["kind"])
	assert.Zero(t, suite.providerCalls.Load())

	suite.providerDown.Store(true)
	resp, err = suite.makeRequest(http.MethodPost, "/api/v1/ai/itinerary/generate", tokyoTrip(), user)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "upstream_error", decodeResponse[map[string]any](t, resp)["kind"])
	assert.EqualValues(t, 2, suite.providerCalls.Load(), "one retry after the first failure")

	resp, err = suite.makeRequest(http.MethodGet, "/api/v1/ai/itinerary/my-itineraries", nil, user)
	require.NoError(t, err)
	assert.Empty(t, decodeResponse[[]types.ItineraryView](t, resp))

	resp, err = suite.makeRequest(http.MethodGet, "/api/v1/ai/health", nil, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}

func (suite *E2ETestSuite) TestConcurrentUserSessions() {
	t := suite.T()
	const users = 5

	var wg sync.WaitGroup
	statuses := make([]int, users)
	ids := make([]string, users)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = uuid.NewString()
			trip := tokyoTrip()
			trip.Destination = fmt.Sprintf("City %d", i)
			resp, err := suite.makeRequest(http.MethodPost, "/api/v1/ai/itinerary/generate", trip, ids[i])
			if err != nil {
				return
			}
			statuses[i] = resp.StatusCode
			resp.Body.Close()
		}(i)
	}
	wg.Wait()

	for i := 0; i < users; i++ {
		assert.Equal(t, http.StatusCreated, statuses[i], "user %d", i)
		resp, err := suite.makeRequest(http.MethodGet, "/api/v1/ai/itinerary/my-itineraries", nil, ids[i])
		require.NoError(t, err)
		list := decodeResponse[[]types.ItineraryView](t, resp)
		require.Len(t, list, 1)
		assert.Equal(t, fmt.Sprintf("City %d", i), list[0].Destination)
	}
}

func TestE2E(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E tests in short mode")
	}
	suite.Run(t, new(E2ETestSuite))
}
