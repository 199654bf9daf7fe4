package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/api/dto"
	"github.com/hugh/go-crm/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth_ValidToken_AuthorizationHeader(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret", 24*time.Hour)

	userID := uuid.New()
	orgID := uuid.New()

	token, err := jwtService.GenerateToken(userID, orgID, "rep@example.com", "manager")
	require.NoError(t, err)

	handler := Auth(jwtService)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := SessionFrom(r.Context())
		require.True(t, ok)
		assert.Equal(t, userID, session.UserID)
		assert.Equal(t, orgID, session.OrganizationID)
		assert.Equal(t, "rep@example.com", session.Email)
		assert.Equal(t, "manager", session.Role)

		assert.Equal(t, userID, GetUserID(r.Context()))
		assert.Equal(t, orgID, GetOrganizationID(r.Context()))
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/leads", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_ValidToken_Cookie(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret", 24*time.Hour)

	userID := uuid.New()
	token, err := jwtService.GenerateToken(userID, uuid.New(), "rep@example.com", "user")
	require.NoError(t, err)

	handler := Auth(jwtService)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userID, GetUserID(r.Context()))
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: token})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_Rejected(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret", 24*time.Hour)
	other := auth.NewJWTService("other-secret", 24*time.Hour)
	foreign, err := other.GenerateToken(uuid.New(), uuid.New(), "x@example.com", "admin")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing token", header: ""},
		{name: "malformed token", header: "Bearer garbage"},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz"},
		{name: "foreign signature", header: "Bearer " + foreign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := Auth(jwtService)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest("GET", "/api/leads", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			var body dto.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "Unauthorized", body.Error)
		})
	}
}

func TestSessionFrom_Empty(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	_, ok := SessionFrom(req.Context())
	assert.False(t, ok)
	assert.Equal(t, uuid.Nil, GetUserID(req.Context()))
	assert.Empty(t, GetUserRole(req.Context()))
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		role string
		want int
	}{
		{role: "admin", want: http.StatusOK},
		{role: "manager", want: http.StatusForbidden},
		{role: "", want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run("role "+tt.role, func(t *testing.T) {
			handler := RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("POST", "/api/users", nil)
			req = req.WithContext(WithSession(req.Context(), auth.Session{UserID: uuid.New(), Role: tt.role}))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestReadOnlyViewers(t *testing.T) {
	tests := []struct {
		method string
		role   string
		want   int
	}{
		{method: "GET", role: "viewer", want: http.StatusOK},
		{method: "POST", role: "viewer", want: http.StatusForbidden},
		{method: "DELETE", role: "viewer", want: http.StatusForbidden},
		{method: "POST", role: "user", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.role, func(t *testing.T) {
			handler := ReadOnlyViewers(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/api/leads", nil)
			req = req.WithContext(WithSession(req.Context(), auth.Session{Role: tt.role}))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
