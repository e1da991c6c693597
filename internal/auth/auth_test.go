package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "gate-attendance"
)

func TestIssueParse(t *testing.T) {
	tok, err := Issue("gate-1", RoleStation, testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.ExpiresAt, 5*time.Second)

	claims, err := Parse(tok.AccessToken, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, "gate-1", claims.StationID)
	assert.Equal(t, RoleStation, claims.Role)
	assert.Equal(t, "gate-1", claims.Subject)
}

func TestParseRejects(t *testing.T) {
	valid, err := Issue("gate-1", RoleStation, testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	expired, err := Issue("gate-1", RoleStation, testIssuer, testKey, -time.Minute)
	require.NoError(t, err)
	anonymous, err := Issue("", RoleStation, testIssuer, testKey, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		key    string
		issuer string
	}{
		{"wrong key", valid.AccessToken, "other", testIssuer},
		{"wrong issuer", valid.AccessToken, testKey, "someone-else"},
		{"expired", expired.AccessToken, testKey, testIssuer},
		{"no station", anonymous.AccessToken, testKey, testIssuer},
		{"garbage", "not.a.jwt", testKey, testIssuer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.token, tt.key, tt.issuer)
			assert.Error(t, err)
		})
	}
}

func TestStationAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/who", StationAuth(testKey, testIssuer), func(c *gin.Context) {
		claims, ok := FromContext(c)
		require.True(t, ok)
		c.String(http.StatusOK, claims.StationID)
	})

	tok, err := Issue("gate-2", RoleStation, testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	other, err := Issue("gate-2", "admin", testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	expired, err := Issue("gate-2", RoleStation, testIssuer, testKey, -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"invalid", "Bearer nope", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"expired", "Bearer " + expired.AccessToken, http.StatusUnauthorized},
		{"wrong role", "Bearer " + other.AccessToken, http.StatusForbidden},
		{"valid", "Bearer " + tok.AccessToken, http.StatusOK},
		{"lower-case scheme", "bearer " + tok.AccessToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/who", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.code, w.Code)
			if tt.code == http.StatusOK {
				assert.Equal(t, "gate-2", w.Body.String())
			}
		})
	}
}
