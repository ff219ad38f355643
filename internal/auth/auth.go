package auth

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
	oauth2v2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"fintrack/internal/log"
	"fintrack/internal/store"
)

// Registrar exchanges identity-provider claims for a backend user id.
type Registrar interface {
	RegisterUser(ctx context.Context, email, externalID string) (string, error)
}

// Identity is the resolved user after initialization.
type Identity struct {
	Email   string
	Subject string
	UserID  string
}

// Authenticator resolves the user's identity exactly once per process.
// Concurrent Init callers block until the first call finishes and then all
// observe the same result; repeated calls never re-run the flow.
type Authenticator struct {
	tokens    oauth2.TokenSource
	registrar Registrar
	settings  *store.Store
	logger    *log.Logger

	once     sync.Once
	identity Identity
	initErr  error

	// Swappable for tests; defaults to the Google userinfo endpoint.
	fetchUserinfo func(ctx context.Context, tokens oauth2.TokenSource) (email, subject string, err error)
}

// NewAuthenticator wires the token source, the backend registrar and the
// local settings store together.
func NewAuthenticator(tokens oauth2.TokenSource, registrar Registrar, settings *store.Store, logger *log.Logger) *Authenticator {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Authenticator{
		tokens:        tokens,
		registrar:     registrar,
		settings:      settings,
		logger:        logger.WithComponent(log.ComponentAuth),
		fetchUserinfo: googleUserinfo,
	}
}

// Init performs the one-shot identity flow: fetch userinfo from the
// provider, reuse the locally cached backend user id when present, register
// with the backend otherwise, and persist the result.
func (a *Authenticator) Init(ctx context.Context) (Identity, error) {
	a.once.Do(func() {
		a.identity, a.initErr = a.resolve(ctx)
		if a.initErr != nil {
			a.logger.ErrorContext(ctx, "Identity initialization failed",
				log.FieldError, a.initErr.Error())
			return
		}
		a.logger.InfoContext(ctx, "Identity initialized",
			log.FieldUserID, a.identity.UserID)
	})
	return a.identity, a.initErr
}

func (a *Authenticator) resolve(ctx context.Context) (Identity, error) {
	email, subject, err := a.fetchUserinfo(ctx, a.tokens)
	if err != nil {
		return Identity{}, fmt.Errorf("fetch userinfo: %w", err)
	}

	if userID, ok, err := a.settings.Setting(ctx, store.SettingUserID); err != nil {
		return Identity{}, fmt.Errorf("read cached user id: %w", err)
	} else if ok {
		return Identity{Email: email, Subject: subject, UserID: userID}, nil
	}

	userID, err := a.registrar.RegisterUser(ctx, email, subject)
	if err != nil {
		return Identity{}, fmt.Errorf("register with backend: %w", err)
	}

	if err := a.settings.SetSetting(ctx, store.SettingUserID, userID); err != nil {
		return Identity{}, fmt.Errorf("persist user id: %w", err)
	}

	return Identity{Email: email, Subject: subject, UserID: userID}, nil
}

// googleUserinfo asks the provider who the token belongs to.
func googleUserinfo(ctx context.Context, tokens oauth2.TokenSource) (string, string, error) {
	svc, err := oauth2v2.NewService(ctx, option.WithTokenSource(tokens))
	if err != nil {
		return "", "", fmt.Errorf("create userinfo service: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return "", "", fmt.Errorf("get userinfo: %w", err)
	}
	if info.Email == "" || info.Id == "" {
		return "", "", fmt.Errorf("userinfo response missing email or id")
	}
	return info.Email, info.Id, nil
}
