package auth

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-itinerary-ai/config"
	"github.com/FACorreiaa/go-itinerary-ai/internal/types"
)

var testJWT = config.JWTConfig{
	SecretKey: "test-secret",
	Issuer:    "itinerary-ai",
	Audience:  "itinerary-ai-api",
}

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims types.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims() types.Claims {
	return types.Claims{
		UserID: "user-123",
		Role:   "user",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testJWT.Issuer,
			Audience:  jwt.ClaimStrings{testJWT.Audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestAuthenticate(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var gotUserID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = GetUserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := Authenticate(logger, testJWT)(next)

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "someone-else"
	wrongAudience := validClaims()
	wrongAudience.Audience = jwt.ClaimStrings{"other-api"}
	noUser := validClaims()
	noUser.UserID = ""
	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantError  string
	}{
		{"valid token", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testJWT.SecretKey), validClaims()), http.StatusOK, ""},
		{"missing header", "", http.StatusUnauthorized, "Authorization header required"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "Authorization header format must be Bearer {token}"},
		{"malformed token", "Bearer not-a-token", http.StatusUnauthorized, "Malformed token"},
		{"bad signature", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other-secret"), validClaims()), http.StatusUnauthorized, "Invalid token signature"},
		{"expired", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testJWT.SecretKey), expired), http.StatusUnauthorized, "Token has expired"},
		{"no expiry", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testJWT.SecretKey), noExpiry), http.StatusUnauthorized, "Invalid or expired token"},
		{"wrong issuer", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testJWT.SecretKey), wrongIssuer), http.StatusUnauthorized, "Invalid token issuer"},
		{"wrong audience", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testJWT.SecretKey), wrongAudience), http.StatusUnauthorized, "Invalid token audience"},
		{"missing user id", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testJWT.SecretKey), noUser), http.StatusUnauthorized, "Invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotUserID = ""
			req := httptest.NewRequest(http.MethodGet, "/api/v1/ai/itinerary/my-itineraries", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "user-123", gotUserID)
				return
			}
			assert.Empty(t, gotUserID)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.wantError, body["error"])
		})
	}
}

func TestAuthenticate_PanicsWithoutSecret(t *testing.T) {
	assert.Panics(t, func() {
		Authenticate(slog.Default(), config.JWTConfig{})
	})
}

func TestVerifyAudience(t *testing.T) {
	assert.True(t, VerifyAudience(nil, ""))
	assert.True(t, VerifyAudience(jwt.ClaimStrings{"a", "b"}, "b"))
	assert.False(t, VerifyAudience(jwt.ClaimStrings{"a"}, "b"))
	assert.False(t, VerifyAudience(nil, "b"))
}
