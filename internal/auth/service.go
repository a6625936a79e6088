package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bookbazaar/bazaar/pkg/client"
	"github.com/bookbazaar/bazaar/pkg/domain"
)

// refreshSkew refreshes a session slightly before the token actually expires.
const refreshSkew = time.Minute

var (
	// ErrSessionIssue replaces transport failures during sign-in.
	ErrSessionIssue = errors.New("network/auth session issue, try again")
	// ErrCredentialsRequired is returned when email or password is blank.
	ErrCredentialsRequired = errors.New("email and password are required")
	// ErrUsernameRequired is returned by SignUp without a username.
	ErrUsernameRequired = errors.New("username is required")
)

// Service signs users in and out and keeps the stored session current.
type Service struct {
	client *client.Client
	store  *Store
	log    *zap.Logger
	now    func() time.Time
}

// NewService returns a Service using the anon-key client c.
func NewService(c *client.Client, store *Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{client: c, store: store, log: log, now: time.Now}
}

// SignIn exchanges credentials for a session and stores it. Any stale local
// session is cleared first. A transport failure clears the local session again
// and retries once; if that also fails the caller gets ErrSessionIssue.
func (s *Service) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrCredentialsRequired
	}
	if err := s.store.Clear(); err != nil {
		s.log.Warn("clear stale session", zap.Error(err))
	}

	sess, err := s.client.SignInWithPassword(ctx, email, password)
	if client.IsTransport(err) {
		s.log.Warn("sign-in transport failure, retrying", zap.Error(err))
		if clearErr := s.store.Clear(); clearErr != nil {
			s.log.Warn("clear session before retry", zap.Error(clearErr))
		}
		sess, err = s.client.SignInWithPassword(ctx, email, password)
	}
	if err != nil {
		if client.IsTransport(err) {
			return nil, fmt.Errorf("%w: %v", ErrSessionIssue, err)
		}
		return nil, fmt.Errorf("auth.SignIn: %w", err)
	}

	if err := s.store.Save(sess); err != nil {
		return nil, fmt.Errorf("auth.SignIn: %w", err)
	}
	s.log.Info("signed in", zap.String("user_id", sess.User.ID.String()))
	return sess, nil
}

// SignUp registers an account. The backend may require email confirmation
// before the first SignIn succeeds, so no session is stored.
func (s *Service) SignUp(ctx context.Context, email, password, username string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)
	if email == "" || password == "" {
		return nil, ErrCredentialsRequired
	}
	if username == "" {
		return nil, ErrUsernameRequired
	}
	u, err := s.client.SignUp(ctx, email, password, username)
	if err != nil {
		return nil, fmt.Errorf("auth.SignUp: %w", err)
	}
	s.log.Info("signed up", zap.String("user_id", u.ID.String()))
	return u, nil
}

// SignOut revokes the session on the server when possible and always clears
// it locally.
func (s *Service) SignOut(ctx context.Context, sess *domain.Session) error {
	if sess != nil && sess.AccessToken != "" {
		if err := s.client.WithToken(sess.AccessToken).SignOut(ctx); err != nil {
			s.log.Warn("server sign-out failed", zap.Error(err))
		}
	}
	if err := s.store.Clear(); err != nil {
		return fmt.Errorf("auth.SignOut: %w", err)
	}
	return nil
}

// Restore loads the stored session, refreshing it when expired. It returns
// nil without error when the user must sign in again.
func (s *Service) Restore(ctx context.Context) (*domain.Session, error) {
	sess, err := s.store.Load()
	if err != nil || sess == nil {
		return nil, err
	}
	return s.Refresh(ctx, sess)
}

// NeedsRefresh reports whether sess is at or near the end of its access token.
func (s *Service) NeedsRefresh(sess *domain.Session) bool {
	return sess.Expired(s.now(), refreshSkew)
}

// Refresh renews sess when it is due and stores the result; a session that is
// still fresh is returned as is. A refresh token the server rejects clears the
// stored session and yields nil without error.
func (s *Service) Refresh(ctx context.Context, sess *domain.Session) (*domain.Session, error) {
	if !s.NeedsRefresh(sess) {
		return sess, nil
	}

	fresh, err := s.client.RefreshSession(ctx, sess.RefreshToken)
	if err != nil {
		if client.IsStatus(err, http.StatusUnauthorized) || client.IsStatus(err, http.StatusBadRequest) {
			s.log.Info("stored session rejected, signing out", zap.Error(err))
			return nil, s.store.Clear()
		}
		return nil, fmt.Errorf("auth.Refresh: %w", err)
	}
	if fresh.User.Username == "" && fresh.User.ID == sess.User.ID {
		fresh.User.Username = sess.User.Username
	}
	if err := s.store.Save(fresh); err != nil {
		return nil, fmt.Errorf("auth.Refresh: %w", err)
	}
	s.log.Debug("session refreshed", zap.String("user_id", fresh.User.ID.String()))
	return fresh, nil
}
