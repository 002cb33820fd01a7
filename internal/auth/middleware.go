package auth

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"example.com/runlog/internal/observability"
)

// DataKeyHeader carries the shared secret.
const DataKeyHeader = "x-data-key"

var (
	errBadDataKey   = errors.New("missing or invalid x-data-key")
	errMissingScope = errors.New("token lacks required scope")
)

// Skipper bypasses verification for matching requests.
type Skipper func(r *http.Request) bool

// Middleware checks the shared secret or bearer token on each request. When
// Require is false, unverified requests are logged and let through.
type Middleware struct {
	DataKey string
	Token   *TokenConfig
	Require bool
	Skipper Skipper
	Logger  *log.Logger
}

// DefaultSkipper exempts health and metrics endpoints.
func DefaultSkipper(r *http.Request) bool {
	return r.URL.Path == "/healthz" || r.URL.Path == "/metrics"
}

// Wrap attaches verification to next.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	logger := m.Logger
	if logger == nil {
		logger = log.Default()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Skipper != nil && m.Skipper(r) {
			next.ServeHTTP(w, r)
			return
		}
		if m.DataKey == "" && m.Token == nil {
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), Principal{Method: MethodNone})))
			return
		}

		principal, err := m.verify(r)
		if err != nil {
			if m.Require {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"type": "unauthorized", "detail": err.Error()})
				return
			}
			logger.Printf("%s %s: %v, allowing unverified request", r.Method, r.URL.Path, err)
			observability.RecordUnverified()
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

func (m Middleware) verify(r *http.Request) (Principal, error) {
	if key := r.Header.Get(DataKeyHeader); key != "" && m.DataKey != "" {
		if subtle.ConstantTimeCompare([]byte(key), []byte(m.DataKey)) == 1 {
			return Principal{Method: MethodDataKey}, nil
		}
		return Principal{Method: MethodNone}, errBadDataKey
	}

	header := r.Header.Get("Authorization")
	if header == "" || m.Token == nil {
		return Principal{Method: MethodNone}, errBadDataKey
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return Principal{Method: MethodNone}, ErrInvalidToken
	}
	claims, err := ParseToken(header[len("Bearer "):], *m.Token)
	if err != nil {
		return Principal{Method: MethodNone}, err
	}
	if !claims.HasScope(requiredScope(r.Method)) {
		return Principal{Method: MethodNone}, errMissingScope
	}
	return Principal{Method: MethodBearer, Claims: claims}, nil
}

func requiredScope(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ScopeDataRead
	default:
		return ScopeDataWrite
	}
}
