package apiclient

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"shopdesk/internal/session"
)

var (
	ErrUnauthenticated = errors.New("not logged in")
	ErrSessionExpired  = errors.New("session expired, please log in again")
)

type publicKey struct{}

// withPublic marks a request that is sent without a bearer token and whose
// 401 is an ordinary failure, such as login.
func withPublic(ctx context.Context) context.Context {
	return context.WithValue(ctx, publicKey{}, true)
}

func isPublic(r *http.Request) bool {
	v, _ := r.Context().Value(publicKey{}).(bool)
	return v
}

// authTransport attaches the stored bearer token. A session already past its
// expiry is dropped locally, the same way a 401 is handled.
type authTransport struct {
	next      http.RoundTripper
	sessions  session.Store
	onExpired func()
}

func (t *authTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	req := r.Clone(r.Context())
	req.Header.Set("Accept", "application/json")
	if isPublic(r) {
		return t.next.RoundTrip(req)
	}

	s, err := t.sessions.Load()
	if err != nil || s.Token == "" {
		if r.Body != nil {
			_ = r.Body.Close()
		}
		return nil, ErrUnauthenticated
	}
	if s.Expired(time.Now()) {
		if r.Body != nil {
			_ = r.Body.Close()
		}
		expire(t.sessions, t.onExpired)
		return nil, ErrSessionExpired
	}
	req.Header.Set("Authorization", "Bearer "+s.Token)
	return t.next.RoundTrip(req)
}

// unauthorizedInterceptor turns any 401 on an authenticated request into a
// global logout: the session is cleared and the expiry hook runs.
type unauthorizedInterceptor struct {
	next      http.RoundTripper
	sessions  session.Store
	onExpired func()
}

func (t *unauthorizedInterceptor) RoundTrip(r *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(r)
	if err != nil || resp.StatusCode != http.StatusUnauthorized || isPublic(r) {
		return resp, err
	}
	_ = resp.Body.Close()

	expire(t.sessions, t.onExpired)
	return nil, ErrSessionExpired
}

func expire(sessions session.Store, onExpired func()) {
	if err := sessions.Clear(); err != nil {
		log.Printf("[apiclient] WARN: clear expired session: %v", err)
	}
	if onExpired != nil {
		onExpired()
	}
}
