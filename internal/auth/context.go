package auth

import "context"

// Method records how a request was verified.
type Method string

const (
	MethodNone    Method = "none"
	MethodDataKey Method = "data-key"
	MethodBearer  Method = "bearer"
)

// Principal describes the caller of a request.
type Principal struct {
	Method Method
	Claims *Claims // set for MethodBearer
}

type contextKey string

const principalKey contextKey = "runlog-auth-principal"

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext returns the principal stored by the middleware.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// Verified reports whether the caller presented a valid credential.
func (p Principal) Verified() bool {
	return p.Method == MethodDataKey || p.Method == MethodBearer
}
