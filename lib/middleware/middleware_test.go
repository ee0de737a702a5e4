package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/onkernel/devattach/lib/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

const testJWTSecret = "test-secret-key-for-testing"

func signToken(t *testing.T, method jwt.SigningMethod, secret any, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func authenticate(t *testing.T, secret, header string) (*http.Request, error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/instances", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	input := &openapi3filter.AuthenticationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{Request: req},
		SecuritySchemeName:     "bearerAuth",
		SecurityScheme:         &openapi3.SecurityScheme{Type: "http", Scheme: "bearer"},
	}
	err := OapiAuthenticationFunc(secret)(req.Context(), input)
	return input.RequestValidationInput.Request, err
}

func TestOapiAuthenticationFunc(t *testing.T) {
	valid := jwt.MapClaims{"sub": "user-123", "iat": time.Now().Unix(), "exp": time.Now().Add(time.Hour).Unix()}

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{
			name:   "valid token",
			header: "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testJWTSecret), valid),
		},
		{
			name:   "lowercase scheme",
			header: "bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testJWTSecret), valid),
		},
		{
			name:    "missing header",
			wantErr: errMissingHeader,
		},
		{
			name:    "basic scheme",
			header:  "Basic dXNlcjpwYXNz",
			wantErr: errHeaderFormat,
		},
		{
			name:    "wrong secret",
			header:  "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), valid),
			wantErr: errInvalidToken,
		},
		{
			name:    "other hmac method",
			header:  "Bearer " + signToken(t, jwt.SigningMethodHS512, []byte(testJWTSecret), valid),
			wantErr: errInvalidToken,
		},
		{
			name: "expired",
			header: "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testJWTSecret),
				jwt.MapClaims{"sub": "user-123", "exp": time.Now().Add(-time.Hour).Unix()}),
			wantErr: errInvalidToken,
		},
		{
			name: "no subject",
			header: "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testJWTSecret),
				jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}),
			wantErr: errInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := authenticate(t, testJWTSecret, tt.header)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, GetUserIDFromContext(req.Context()))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "user-123", GetUserIDFromContext(req.Context()))
		})
	}
}

func TestOapiAuthenticationWithoutSecret(t *testing.T) {
	token := signToken(t, jwt.SigningMethodHS256, []byte("any-secret"), jwt.MapClaims{"sub": "user"})
	_, err := authenticate(t, "", "Bearer "+token)
	assert.ErrorIs(t, err, errInvalidToken)
}

func TestOapiAuthenticationOtherScheme(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/instances", nil)
	err := OapiAuthenticationFunc(testJWTSecret)(req.Context(), &openapi3filter.AuthenticationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{Request: req},
		SecuritySchemeName:     "apiKey",
		SecurityScheme:         &openapi3.SecurityScheme{Type: "apiKey", In: "header", Name: "X-Key"},
	})
	assert.Error(t, err)
}

func TestOapiErrorHandler(t *testing.T) {
	tests := []struct {
		status   int
		wantCode string
	}{
		{http.StatusBadRequest, "invalid_request"},
		{http.StatusUnauthorized, "unauthorized"},
		{http.StatusNotFound, "not_found"},
		{http.StatusRequestEntityTooLarge, "request_too_large"},
		{http.StatusTeapot, "im_a_teapot"},
		{http.StatusUnsupportedMediaType, "unsupported_media_type"},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			rr := httptest.NewRecorder()
			OapiErrorHandler(rr, "something failed", tt.status)

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			var body ErrorBody
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, "something failed", body.Message)
		})
	}
}

type fakeResolver struct {
	ids map[string]string
}

var errLookup = errors.New("not found")

func (f fakeResolver) Resolve(ctx context.Context, idOrName string) (string, any, error) {
	id, ok := f.ids[idOrName]
	if !ok {
		return "", nil, errLookup
	}
	return id, &struct{ Name string }{Name: idOrName}, nil
}

func TestResolveInstance(t *testing.T) {
	var logs bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&logs, nil))

	var gotID string
	var gotName string
	r := chi.NewRouter()
	r.Use(InjectLogger(base))
	r.Route("/instances/{id}", func(r chi.Router) {
		r.Use(ResolveInstance(fakeResolver{ids: map[string]string{"web": "abc123"}}, func(w http.ResponseWriter, err error, lookup string) {
			OapiErrorHandler(w, lookup+": "+err.Error(), http.StatusNotFound)
		}))
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			gotID = GetResolvedID(r.Context())
			if inst := GetResolvedInstance[struct{ Name string }](r.Context()); inst != nil {
				gotName = inst.Name
			}
			logger.FromContext(r.Context()).InfoContext(r.Context(), "handled")
			w.WriteHeader(http.StatusOK)
		})
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/instances/web/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "abc123", gotID)
	assert.Equal(t, "web", gotName)
	assert.Contains(t, logs.String(), `"instance_id":"abc123"`)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/instances/missing/", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "missing: not found")
}

func TestGetResolvedInstanceWrongType(t *testing.T) {
	ctx := WithResolvedInstance(context.Background(), "id", 42)
	assert.Nil(t, GetResolvedInstance[string](ctx))
	assert.Equal(t, "id", GetResolvedID(ctx))
	assert.Empty(t, GetResolvedID(context.Background()))
}

func TestHTTPMetricsAndAccessLog(t *testing.T) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	httpMetrics, err := NewHTTPMetrics(provider.Meter("test"))
	require.NoError(t, err)

	var logs bytes.Buffer
	accessLog := slog.New(slog.NewJSONHandler(&logs, nil))

	r := chi.NewRouter()
	r.Use(httpMetrics.Middleware)
	r.Use(AccessLogger(accessLog))
	r.Get("/instances/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short"))
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/instances/abc", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
	assert.Equal(t, "http request", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "/instances/{id}", entry["path"])
	assert.Equal(t, float64(http.StatusTeapot), entry["status"])
	assert.Equal(t, float64(5), entry["bytes"])

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	byName := map[string]metricdata.Metrics{}
	for _, md := range rm.ScopeMetrics[0].Metrics {
		byName[md.Name] = md
	}
	assert.Contains(t, byName, "devattach_http_request_duration_seconds")

	inFlight, ok := byName["devattach_http_requests_in_flight"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, inFlight.DataPoints, 1)
	assert.Equal(t, int64(0), inFlight.DataPoints[0].Value)

	requests, ok := byName["devattach_http_requests_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, requests.DataPoints, 1)
	dp := requests.DataPoints[0]
	assert.Equal(t, int64(1), dp.Value)
	route, _ := dp.Attributes.Value("route")
	assert.Equal(t, "/instances/{id}", route.AsString())
	class, _ := dp.Attributes.Value("status_class")
	assert.Equal(t, "4xx", class.AsString())
}

func TestAccessLogLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusBadGateway, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var logs bytes.Buffer
			handler := AccessLogger(slog.New(slog.NewJSONHandler(&logs, nil)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/instances", nil))

			var entry map[string]any
			require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "/instances", entry["path"])
		})
	}
}
