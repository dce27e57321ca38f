package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/indicadores/apiserver/config"
	"github.com/indicadores/apiserver/internal/apperr"
	"github.com/indicadores/apiserver/internal/auth"
	"github.com/indicadores/apiserver/internal/policy"
	"github.com/indicadores/apiserver/types"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{name: "valid", header: "Bearer abc.def", want: "abc.def"},
		{name: "case insensitive scheme", header: "bearer   abc ", want: "abc"},
		{name: "missing", header: "", wantErr: true},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", wantErr: true},
		{name: "empty token", header: "Bearer ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			got, err := bearerToken(req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("bearerToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("bearerToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequireAuthPlacesCaller(t *testing.T) {
	tokens, err := auth.NewTokenManager(config.JWTConfig{Secret: strings.Repeat("k", 32), TTL: time.Hour})
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	token, _, err := tokens.Issue(types.User{ID: 7, Email: "a@x.com", Role: types.RoleUser})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	var got policy.Caller
	h := RequireAuth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = callerFrom(r)
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	want := policy.Caller{UserID: 7, Email: "a@x.com", Role: types.RoleUser}
	if got != want {
		t.Fatalf("caller = %+v, want %+v", got, want)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token+"x")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("tampered token status = %d, want 401", rec.Code)
	}
}

func TestCallerFromEmptyContext(t *testing.T) {
	caller := callerFrom(httptest.NewRequest(http.MethodGet, "/", nil))
	if err := policy.Authorize(caller, policy.ViewCatalog); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("Authorize(zero caller) = %v, want unauthorized", err)
	}
}

func TestWriteServiceError(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
		wantRetry  string
		wantLogged bool
	}{
		{name: "validation", err: apperr.Validation("name is required"), wantStatus: http.StatusBadRequest, wantMsg: "name is required"},
		{name: "conflict", err: apperr.Conflict("duplicate"), wantStatus: http.StatusConflict, wantMsg: "duplicate"},
		{name: "throttled", err: apperr.TooManyRequests("slow down", 1500*time.Millisecond), wantStatus: http.StatusTooManyRequests, wantMsg: "slow down", wantRetry: "2"},
		{name: "internal", err: apperr.Internal("boom", errors.New("db down")), wantStatus: http.StatusInternalServerError, wantMsg: "boom", wantLogged: true},
		{name: "plain error", err: errors.New("secret detail"), wantStatus: http.StatusInternalServerError, wantMsg: "internal server error", wantLogged: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs.Reset()
			rec := httptest.NewRecorder()
			writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil), tt.err)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error != tt.wantMsg {
				t.Errorf("message = %q, want %q", body.Error, tt.wantMsg)
			}
			if got := rec.Header().Get("Retry-After"); got != tt.wantRetry {
				t.Errorf("Retry-After = %q, want %q", got, tt.wantRetry)
			}
			if logged := logs.Len() > 0; logged != tt.wantLogged {
				t.Errorf("logged = %v, want %v (%s)", logged, tt.wantLogged, logs.String())
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name  string  `json:"name" validate:"required,max=5"`
		Value float64 `json:"value" validate:"gte=0"`
		Email string  `json:"email" validate:"omitempty,email"`
	}

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{name: "valid", body: `{"name":"abc","value":1,"extra":true}`},
		{name: "empty body", body: ``, wantMsg: "request body is required"},
		{name: "malformed", body: `{"name":`, wantMsg: "invalid request"},
		{name: "trailing data", body: `{"name":"a"} {"name":"b"}`, wantMsg: "invalid request"},
		{name: "missing name", body: `{"value":1}`, wantMsg: "name is required"},
		{name: "too long", body: `{"name":"abcdef"}`, wantMsg: "name must be at most 5 characters"},
		{name: "negative", body: `{"name":"a","value":-1}`, wantMsg: "value must be greater than or equal to 0"},
		{name: "bad email", body: `{"name":"a","email":"nope"}`, wantMsg: "email must be a valid email address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst payload
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			err := decodeJSON(httptest.NewRecorder(), req, &dst)
			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("decodeJSON() error = %v", err)
				}
				return
			}
			if !apperr.Is(err, apperr.KindValidation) || apperr.MessageOf(err) != tt.wantMsg {
				t.Fatalf("decodeJSON() error = %v, want validation %q", err, tt.wantMsg)
			}
		})
	}
}

func TestParseIDAndBodyID(t *testing.T) {
	r := chi.NewRouter()
	var gotID int
	var gotErr error
	r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
		gotID, gotErr = parseID(r, "id")
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/42", nil))
	if gotErr != nil || gotID != 42 {
		t.Fatalf("parseID = %d, %v", gotID, gotErr)
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/0", nil))
	if !apperr.Is(gotErr, apperr.KindValidation) {
		t.Fatalf("parseID(0) error = %v", gotErr)
	}

	same, other := 42, 43
	if err := checkBodyID(nil, 42); err != nil {
		t.Fatalf("checkBodyID(nil) = %v", err)
	}
	if err := checkBodyID(&same, 42); err != nil {
		t.Fatalf("checkBodyID(same) = %v", err)
	}
	if err := checkBodyID(&other, 42); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("checkBodyID(other) = %v", err)
	}
}

type failingPinger struct{ err error }

func (p failingPinger) PingContext(ctx context.Context) error { return p.err }

func TestReadyz(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(failingPinger{err: errors.New("down")}).Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	rec = httptest.NewRecorder()
	NewHealthHandler(failingPinger{}).Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestWriteJSONUnencodable(t *testing.T) {
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(io.Discard, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusCreated, map[string]float64{"compliance_percentage": math.Inf(1)})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body.Error == "" {
		t.Fatalf("body = %q, err = %v", rec.Body.String(), err)
	}
}

func TestRequestLimits(t *testing.T) {
	tests := []struct {
		name    string
		req     any
		wantErr bool
	}{
		{"email at limit", RegisterRequest{Name: "A", Email: strings.Repeat("a", 144) + "@x.com", Password: "secret1"}, false},
		{"email over limit", RegisterRequest{Name: "A", Email: strings.Repeat("a", 145) + "@x.com", Password: "secret1"}, true},
		{"user email over limit", CreateUserRequest{Name: "A", Email: strings.Repeat("a", 145) + "@x.com", Password: "secret1", Role: "User"}, true},
		{"formula at limit", IndicatorRequest{Name: "Revenue", Formula: strings.Repeat("x", 1000), CategoryID: 1}, false},
		{"formula over limit", IndicatorRequest{Name: "Revenue", Formula: strings.Repeat("x", 1001), CategoryID: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateStruct(tt.req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateStruct() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
