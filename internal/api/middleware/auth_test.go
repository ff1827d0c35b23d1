package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phrazzld/puris-api/internal/api/shared"
	"github.com/phrazzld/puris-api/internal/config"
	"github.com/phrazzld/puris-api/internal/domain"
	"github.com/phrazzld/puris-api/internal/metrics"
	"github.com/phrazzld/puris-api/internal/platform/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	supplierBPNL = "BPNL4444444444XX"
	supplierKey  = "supplier-key-0123456789"
	customerBPNL = "BPNL1234567890ZZ"
	customerKey  = "customer-key-abcdefghij"
)

func testRegistry(t *testing.T) *PartnerRegistry {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(customerKey), bcrypt.MinCost)
	require.NoError(t, err)

	registry, err := NewPartnerRegistry([]config.PartnerConfig{
		{BPNL: supplierBPNL, Name: "Supplier Partner", Key: supplierKey},
		{BPNL: customerBPNL, Name: "Customer Partner", Key: string(hash)},
	})
	require.NoError(t, err)
	return registry
}

func TestNewPartnerRegistry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		partners []config.PartnerConfig
		wantErr  string
	}{
		{"no partners", nil, "at least one partner"},
		{"malformed bpnl", []config.PartnerConfig{{BPNL: "BPNL1", Key: supplierKey}}, "invalid business partner number"},
		{"duplicate partner", []config.PartnerConfig{
			{BPNL: supplierBPNL, Key: supplierKey},
			{BPNL: supplierBPNL, Key: customerKey},
		}, "duplicate partner"},
		{"empty key", []config.PartnerConfig{{BPNL: supplierBPNL}}, "has no key"},
		{"malformed hash", []config.PartnerConfig{{BPNL: supplierBPNL, Key: "$2a$broken"}}, "malformed key hash"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			registry, err := NewPartnerRegistry(tc.partners)
			require.Error(t, err)
			assert.Nil(t, registry)
			assert.Contains(t, err.Error(), tc.wantErr)
			assert.NotContains(t, err.Error(), supplierKey)
		})
	}
}

func TestPartnerRegistryAuthenticate(t *testing.T) {
	t.Parallel()

	registry := testRegistry(t)
	assert.Equal(t, 2, registry.Len())

	tests := []struct {
		name     string
		key      string
		wantBPNL string
		wantErr  error
	}{
		{"plaintext key", supplierKey, supplierBPNL, nil},
		{"hashed key", customerKey, customerBPNL, nil},
		{"hashed key again", customerKey, customerBPNL, nil},
		{"unknown key", "invalid-key", "", ErrInvalidAPIKey},
		{"empty key", "", "", ErrInvalidAPIKey},
		{"prefix of a key", supplierKey[:10], "", ErrInvalidAPIKey},
		{"hash used as key", "$2a$04$" + strings.Repeat("a", 53), "", ErrInvalidAPIKey},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			partner, err := registry.Authenticate(tc.key)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Empty(t, partner.BPNL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantBPNL, partner.BPNL)
		})
	}
}

func TestAPIKeyMiddleware_Authenticate(t *testing.T) {
	t.Parallel()

	registry := testRegistry(t)

	tests := []struct {
		name           string
		header         string
		key            string
		expectedStatus int
		expectedBPNL   string
	}{
		{"valid plaintext key", "X-API-KEY", supplierKey, http.StatusOK, supplierBPNL},
		{"valid hashed key", "X-API-KEY", customerKey, http.StatusOK, customerBPNL},
		{"invalid key", "X-API-KEY", "invalid-key", http.StatusUnauthorized, ""},
		{"empty key", "X-API-KEY", "", http.StatusUnauthorized, ""},
		{"key in another header", "Authorization", supplierKey, http.StatusUnauthorized, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			reg := prometheus.NewRegistry()
			mw := NewAPIKeyMiddleware(registry, "X-API-KEY", metrics.New(reg), nil)

			called := false
			var captured domain.Partner
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				captured, _ = PartnerFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/requests", nil)
			if tc.key != "" {
				req.Header.Set(tc.header, tc.key)
			}
			rr := httptest.NewRecorder()

			mw.Authenticate(next).ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedStatus, rr.Code)
			if tc.expectedStatus != http.StatusOK {
				assert.False(t, called, "next handler must not run")

				var body shared.ErrorResponse
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
				assert.Equal(t, "Invalid API key", body.Error)

				assert.Equal(t, float64(1), counterValue(t, reg, "puris_auth_failures_total"))
				return
			}

			assert.True(t, called)
			assert.Equal(t, tc.expectedBPNL, captured.BPNL)
		})
	}
}

func TestAPIKeyMiddleware_ConfigurableHeader(t *testing.T) {
	t.Parallel()

	mw := NewAPIKeyMiddleware(testRegistry(t), "API-Key", nil, nil)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil)
	req.Header.Set("API-Key", supplierKey)
	rr := httptest.NewRecorder()
	mw.Authenticate(next).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil)
	req.Header.Set("X-API-KEY", supplierKey)
	rr = httptest.NewRecorder()
	mw.Authenticate(next).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAPIKeyMiddleware_DoesNotLogKeys(t *testing.T) {
	t.Parallel()

	var logBuf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	mw := NewAPIKeyMiddleware(testRegistry(t), "X-API-KEY", nil, log)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info("handled")
	})

	for _, key := range []string{supplierKey, "leaked-candidate-key-42"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil)
		req = req.WithContext(logger.WithLogger(req.Context(), log))
		req.Header.Set("X-API-KEY", key)
		mw.Authenticate(next).ServeHTTP(httptest.NewRecorder(), req)
	}

	out := logBuf.String()
	assert.Contains(t, out, `"partner_bpnl":"`+supplierBPNL+`"`)
	assert.Contains(t, out, "Invalid API key")
	assert.NotContains(t, out, supplierKey)
	assert.NotContains(t, out, "leaked-candidate-key-42")
}

func TestPartnerFromContext(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := PartnerFromContext(req.Context())
	assert.False(t, ok)

	ctx := WithPartner(req.Context(), domain.Partner{BPNL: supplierBPNL})
	p, ok := PartnerFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, supplierBPNL, p.BPNL)

	_, ok = PartnerFromContext(WithPartner(req.Context(), domain.Partner{}))
	assert.False(t, ok)
}

func TestNewAPIKeyMiddlewarePanicsWithoutRegistry(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { NewAPIKeyMiddleware(nil, "X-API-KEY", nil, nil) })
}

// counterValue reads an unlabelled counter from reg.
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("%s not registered", name)
	return 0
}
