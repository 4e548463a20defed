package clientip

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

type ipCtxKey struct{}

// UnknownIP is returned when no valid IP can be determined.
const UnknownIP = "unknown"

// FromContext retrieves the client IP stored by the middleware.
func FromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(ipCtxKey{}).(string); ok {
		return ip
	}

	return UnknownIP
}

// Middleware resolves the client IP and stores it in the request context so
// downstream middleware can key rate limits on it.
type Middleware struct {
	logger *zap.Logger
}

// New creates a new client IP middleware.
func New(logger *zap.Logger) *Middleware {
	return &Middleware{logger: logger}
}

// AsRESTMiddleware returns a bunrouter middleware that annotates the request
// context with the resolved client IP.
func (m *Middleware) AsRESTMiddleware(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		ip := m.resolve(req.Request)
		if ip == UnknownIP {
			m.logger.Debug("No valid client IP found in request",
				zap.String("remoteAddr", req.RemoteAddr))
		}

		req = req.WithContext(context.WithValue(req.Context(), ipCtxKey{}, ip))

		return next(w, req)
	}
}

// resolve prefers the first X-Forwarded-For hop and falls back to the socket
// peer address.
func (m *Middleware) resolve(req *http.Request) string {
	if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}

	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		if net.ParseIP(req.RemoteAddr) != nil {
			return req.RemoteAddr
		}

		return UnknownIP
	}

	if net.ParseIP(host) == nil {
		return UnknownIP
	}

	return host
}
