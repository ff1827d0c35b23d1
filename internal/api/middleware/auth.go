package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/phrazzld/puris-api/internal/api/shared"
	"github.com/phrazzld/puris-api/internal/config"
	"github.com/phrazzld/puris-api/internal/domain"
	"github.com/phrazzld/puris-api/internal/metrics"
	"github.com/phrazzld/puris-api/internal/platform/logger"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidAPIKey is returned when a call carries no API key or one that no
// registered partner owns.
var ErrInvalidAPIKey = errors.New("invalid api key")

type partnerContextKey struct{}

// WithPartner returns a copy of ctx carrying the authenticated partner.
func WithPartner(ctx context.Context, p domain.Partner) context.Context {
	return context.WithValue(ctx, partnerContextKey{}, p)
}

// PartnerFromContext returns the partner attached by the authentication
// middleware.
func PartnerFromContext(ctx context.Context) (domain.Partner, bool) {
	p, ok := ctx.Value(partnerContextKey{}).(domain.Partner)
	if !ok || p.BPNL == "" {
		return domain.Partner{}, false
	}
	return p, true
}

type partnerEntry struct {
	partner domain.Partner
	key     []byte
	hashed  bool
}

// PartnerRegistry resolves API keys to partners. It is built once at startup
// and only read afterwards.
type PartnerRegistry struct {
	entries []partnerEntry

	// verified caches digests of keys that already passed a bcrypt check.
	verified sync.Map
}

// NewPartnerRegistry builds a registry from the configured partners.
// A key starting with "$2" is a bcrypt hash; anything else is a plaintext key.
func NewPartnerRegistry(partners []config.PartnerConfig) (*PartnerRegistry, error) {
	if len(partners) == 0 {
		return nil, errors.New("at least one partner must be configured")
	}

	seen := make(map[string]bool, len(partners))
	entries := make([]partnerEntry, 0, len(partners))
	for _, p := range partners {
		if err := domain.ValidateBPNL(p.BPNL); err != nil {
			return nil, fmt.Errorf("partner registry: %w", err)
		}
		if seen[p.BPNL] {
			return nil, fmt.Errorf("partner registry: duplicate partner %s", p.BPNL)
		}
		if p.Key == "" {
			return nil, fmt.Errorf("partner registry: partner %s has no key", p.BPNL)
		}
		seen[p.BPNL] = true

		hashed := strings.HasPrefix(p.Key, "$2")
		if hashed {
			if _, err := bcrypt.Cost([]byte(p.Key)); err != nil {
				return nil, fmt.Errorf("partner registry: partner %s: malformed key hash: %w", p.BPNL, err)
			}
		}

		entries = append(entries, partnerEntry{
			partner: domain.Partner{BPNL: p.BPNL, Name: p.Name},
			key:     []byte(p.Key),
			hashed:  hashed,
		})
	}

	return &PartnerRegistry{entries: entries}, nil
}

// Len returns the number of registered partners.
func (r *PartnerRegistry) Len() int {
	return len(r.entries)
}

// Authenticate returns the partner owning key, or ErrInvalidAPIKey.
// Plaintext keys are compared in constant time against every entry.
func (r *PartnerRegistry) Authenticate(key string) (domain.Partner, error) {
	if key == "" {
		return domain.Partner{}, ErrInvalidAPIKey
	}

	digest := sha256.Sum256([]byte(key))
	if i, ok := r.verified.Load(digest); ok {
		return r.entries[i.(int)].partner, nil
	}

	candidate := []byte(key)
	match := -1
	for i, e := range r.entries {
		if e.hashed {
			continue
		}
		if subtle.ConstantTimeCompare(e.key, candidate) == 1 && match < 0 {
			match = i
		}
	}
	if match >= 0 {
		return r.entries[match].partner, nil
	}

	for i, e := range r.entries {
		if !e.hashed {
			continue
		}
		if bcrypt.CompareHashAndPassword(e.key, candidate) == nil {
			r.verified.Store(digest, i)
			return e.partner, nil
		}
	}

	return domain.Partner{}, ErrInvalidAPIKey
}

// APIKeyMiddleware authenticates partners by the API key header.
type APIKeyMiddleware struct {
	registry *PartnerRegistry
	header   string
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewAPIKeyMiddleware creates the middleware reading keys from header.
// m may be nil.
func NewAPIKeyMiddleware(
	registry *PartnerRegistry,
	header string,
	m *metrics.Metrics,
	logger *slog.Logger,
) *APIKeyMiddleware {
	if registry == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("registry cannot be nil for APIKeyMiddleware")
	}
	if header == "" {
		header = "X-API-KEY"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &APIKeyMiddleware{
		registry: registry,
		header:   header,
		metrics:  m,
		logger:   logger.With(slog.String("component", "api_key_middleware")),
	}
}

// Authenticate resolves the API key of every call. Known keys attach the
// partner to the request context; missing or unknown keys are answered with
// 401 and never reach next.
func (m *APIKeyMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		partner, err := m.registry.Authenticate(r.Header.Get(m.header))
		if err != nil {
			m.metrics.AuthFailure()
			shared.RespondWithErrorAndLog(
				w, r,
				http.StatusUnauthorized,
				"Invalid API key",
				err,
				shared.WithElevatedLogLevel(),
			)
			return
		}

		log := logger.FromContextOrDefault(r.Context(), m.logger).
			With(slog.String("partner_bpnl", partner.BPNL))

		ctx := WithPartner(r.Context(), partner)
		ctx = logger.WithLogger(ctx, log)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
