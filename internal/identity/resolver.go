// Package identity derives the key under which a caller's progress is
// stored. A deployment uses exactly one strategy: the caller's network
// address, or a server-side session tracked through a signed cookie.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/gaetan-warin/LearnREST/internal/logging"
	"github.com/gaetan-warin/LearnREST/internal/session"
	"github.com/gaetan-warin/LearnREST/internal/util"
)

type Resolver interface {
	Resolve(w http.ResponseWriter, r *http.Request) (string, error)
}

// AddressResolver identifies callers by the host part of their remote
// address. Clients sharing a NAT share progress.
type AddressResolver struct{}

func (AddressResolver) Resolve(_ http.ResponseWriter, r *http.Request) (string, error) {
	if r.RemoteAddr == "" {
		return "unknown", nil
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr, nil
	}
	return host, nil
}

type SessionOptions struct {
	CookieName string
	Secret     []byte
	TTL        time.Duration
	Secure     bool
}

// SessionResolver hands each new client a session cookie and binds the
// session to a freshly generated identity kept in a session.Store.
type SessionResolver struct {
	store  session.Store
	opts   SessionOptions
	logger logging.Logger
	now    func() time.Time
}

func NewSessionResolver(store session.Store, opts SessionOptions, logger logging.Logger) *SessionResolver {
	return &SessionResolver{
		store:  store,
		opts:   opts,
		logger: logger.With("component", "identity"),
		now:    time.Now,
	}
}

func (s *SessionResolver) Resolve(w http.ResponseWriter, r *http.Request) (string, error) {
	ctx := r.Context()
	if cookie, err := r.Cookie(s.opts.CookieName); err == nil {
		identity, err := s.lookup(ctx, cookie.Value)
		if err == nil {
			return identity, nil
		}
		if !errors.Is(err, session.ErrNotFound) && !errors.Is(err, ErrInvalidToken) && !errors.Is(err, ErrExpiredToken) {
			return "", err
		}
		s.logger.Debug(ctx, "session cookie rejected, starting a new session", "reason", err)
	}
	return s.start(ctx, w)
}

func (s *SessionResolver) lookup(ctx context.Context, token string) (string, error) {
	sessionID, err := ParseToken(s.opts.Secret, token)
	if err != nil {
		return "", err
	}
	identity, err := s.store.Lookup(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return "", err
		}
		return "", fmt.Errorf("lookup session: %w", err)
	}
	return identity, nil
}

func (s *SessionResolver) start(ctx context.Context, w http.ResponseWriter) (string, error) {
	sessionID := uuid.NewString()
	identity := util.NewID("user")
	if err := s.store.Save(ctx, sessionID, identity, s.opts.TTL); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}

	issuedAt := s.now()
	token, err := IssueToken(s.opts.Secret, sessionID, issuedAt, s.opts.TTL)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}

	cookie := &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if s.opts.TTL > 0 {
		cookie.MaxAge = int(s.opts.TTL.Seconds())
		cookie.Expires = issuedAt.Add(s.opts.TTL)
	}
	http.SetCookie(w, cookie)

	s.logger.Info(ctx, "session started", "identity", identity)
	return identity, nil
}
