package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/listings-portal/internal/model"
)

// echoIdentity writes the user id from context, or "anon".
var echoIdentity = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		_, _ = w.Write([]byte("anon"))
		return
	}
	_, _ = w.Write([]byte(id.UserID + ":" + string(id.Role)))
})

func TestRequireAuth_TokenSources(t *testing.T) {
	ts := newTestTokenService(t)
	token, err := ts.Generate(agent)
	require.NoError(t, err)

	h := RequireAuth(ts)(echoIdentity)

	tests := []struct {
		name  string
		setup func(r *http.Request)
	}{
		{"x-auth-token header", func(r *http.Request) { r.Header.Set(TokenHeader, token) }},
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }},
		{"query param", func(r *http.Request) {
			q := r.URL.Query()
			q.Set("token", token)
			r.URL.RawQuery = q.Encode()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "user-123:agent", rec.Body.String())
		})
	}
}

func TestRequireAuth_Rejects(t *testing.T) {
	ts := newTestTokenService(t)
	expired, _ := ts.GenerateWithDuration(agent, -time.Minute)
	h := RequireAuth(ts)(echoIdentity)

	tests := []struct {
		name    string
		token   string
		wantMsg string
	}{
		{"missing", "", "No token, authorization denied"},
		{"garbage", "abc.def.ghi", "Token is not valid"},
		{"expired", expired, "Token is not valid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.token != "" {
				req.Header.Set(TokenHeader, tt.token)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, `{"error":"`+tt.wantMsg+`"}`, rec.Body.String())
		})
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(model.RoleAgent, model.RoleManager)(echoIdentity)

	tests := []struct {
		name     string
		identity *model.Identity
		want     int
	}{
		{"no identity", nil, http.StatusUnauthorized},
		{"default user", &model.Identity{UserID: "u", Role: model.RoleDefault}, http.StatusForbidden},
		{"agent", &model.Identity{UserID: "u", Role: model.RoleAgent}, http.StatusOK},
		{"manager", &model.Identity{UserID: "u", Role: model.RoleManager}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.identity != nil {
				req = req.WithContext(WithIdentity(req.Context(), tt.identity))
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
