package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leca/image-vault/internal/database"
	"github.com/leca/image-vault/internal/imagestore"
	"github.com/leca/image-vault/internal/metrics"
	"github.com/leca/image-vault/internal/model"
)

// helper that returns "ok" when the request reaches the inner handler.
func okHandler(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"ok":true}`)); err != nil {
			t.Errorf("okHandler: failed to write response: %v", err)
		}
	})
}

// ---------- AuthMiddleware ----------

func TestAuthMiddleware_RejectsMissingAuth(t *testing.T) {
	handler := AuthMiddleware("")(okHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var resp Response
	err := json.NewDecoder(w.Result().Body).Decode(&resp)
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Len(t, resp.Errors, 1)
	assert.Equal(t, 9401, resp.Errors[0].Code)
}

func TestAuthMiddleware_AcceptsBearerToken(t *testing.T) {
	handler := AuthMiddleware("")(okHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware_RejectsWrongBearerToken(t *testing.T) {
	handler := AuthMiddleware("correct-token")(okHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_AcceptsCorrectBearerToken(t *testing.T) {
	handler := AuthMiddleware("correct-token")(okHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer correct-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware_RejectsEmptyBearer(t *testing.T) {
	handler := AuthMiddleware("")(okHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer ")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_RejectsBasicAuth(t *testing.T) {
	handler := AuthMiddleware("")(okHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.SetBasicAuth("alice", "secret")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// ---------- UserMiddleware ----------

type fakeUsers map[string]*model.UserInfo

func (f fakeUsers) FindUser(_ context.Context, username string) (*model.UserInfo, error) {
	if username == "broken" {
		return nil, errors.New("database is locked")
	}
	u, ok := f[username]
	if !ok {
		return nil, database.ErrNotFound
	}
	return u, nil
}

func TestUserMiddleware_ResolvesUser(t *testing.T) {
	users := fakeUsers{"alice": {Username: "alice", ObjectBasePath: "base-a"}}
	var captured *model.UserInfo
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetUser(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/images", nil)
	req.Header.Set(UserHeader, "alice")
	w := httptest.NewRecorder()
	UserMiddleware(users)(inner).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "base-a", captured.ObjectBasePath)
}

func TestUserMiddleware_Rejects(t *testing.T) {
	users := fakeUsers{}
	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"unknown user", "mallory", http.StatusUnauthorized},
		{"lookup failure", "broken", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/images", nil)
			if tt.header != "" {
				req.Header.Set(UserHeader, tt.header)
			}
			w := httptest.NewRecorder()
			UserMiddleware(users)(okHandler(t)).ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			var resp Response
			require.NoError(t, json.NewDecoder(w.Result().Body).Decode(&resp))
			assert.False(t, resp.Success)
		})
	}
}

func TestGetUser_EmptyContext(t *testing.T) {
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	assert.Nil(t, GetUser(ctx))
}

// ---------- RequestLogger ----------

func TestRequestLogger_LogsRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	r := chi.NewRouter()
	r.Use(RequestLogger(logger, metrics.New()))
	r.Get("/images/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short"))
	})

	req := httptest.NewRequest(http.MethodGet, "/images/abc", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/images/abc", entry["path"])
	assert.Equal(t, float64(http.StatusTeapot), entry["status"])
	assert.Equal(t, float64(5), entry["bytes"])
}

// ---------- WriteError ----------

func TestWriteError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", imagestore.ErrNotFound, http.StatusNotFound},
		{"user", imagestore.ErrUserNotFound, http.StatusUnauthorized},
		{"name taken", imagestore.ErrNameTaken, http.StatusConflict},
		{"duplicate user", database.ErrDuplicateName, http.StatusConflict},
		{"invalid", fmt.Errorf("%w: limit 0", imagestore.ErrInvalidArgument), http.StatusBadRequest},
		{"query", &imagestore.QueryError{Op: "find image", Err: errors.New("boom")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
