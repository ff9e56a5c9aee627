// Package auth signs subjects up and in, and resolves session tokens to
// the signed-in profile.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"metawave/cache"
	"metawave/core/session"
	"metawave/logger"
	"metawave/model"
	"metawave/repository"
	"metawave/schema"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionExpired     = errors.New("session expired")
	ErrNoSession          = errors.New("no session")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUnknownProvider    = errors.New("unknown sign-in provider")
)

var handleStrip = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// SignUpInput is the sign-up form.
type SignUpInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Handle   string `json:"handle" validate:"required,min=3,max=64,handle"`
}

// Session is a signed-in subject. Profile is nil when the subject has no
// profile yet.
type Session struct {
	Token     string         `json:"token,omitempty"`
	Subject   string         `json:"subject"`
	Email     string         `json:"email"`
	ExpiresAt time.Time      `json:"expires_at"`
	Profile   *model.Profile `json:"profile"`
}

type Service struct {
	creds     repository.CredentialRepository
	profiles  repository.ProfileRepository
	tokens    *Tokens
	revoked   cache.RevocationStore
	sessions  *session.Cache
	providers map[string]Provider
}

func NewService(
	creds repository.CredentialRepository,
	profiles repository.ProfileRepository,
	tokens *Tokens,
	revoked cache.RevocationStore,
	sessions *session.Cache,
	providers ...Provider,
) *Service {
	s := &Service{
		creds:     creds,
		profiles:  profiles,
		tokens:    tokens,
		revoked:   revoked,
		sessions:  sessions,
		providers: make(map[string]Provider, len(providers)),
	}
	for _, p := range providers {
		s.providers[p.Name()] = p
	}
	return s
}

// Provider looks up a configured OAuth provider.
func (s *Service) Provider(name string) (Provider, error) {
	p, ok := s.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

// SignUp creates the credential and the profile of a new subject.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*Session, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := schema.Validate(&in); err != nil {
		return nil, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	cred := &model.Credential{Email: in.Email, PasswordHash: hash, Provider: model.ProviderLocal}
	if err := s.creds.Create(ctx, cred); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	profile, err := s.profiles.Create(ctx, model.CreateProfileInput{
		ID:     cred.ID,
		Email:  in.Email,
		Name:   in.Name,
		Handle: in.Handle,
	})
	if err != nil {
		if delErr := s.creds.Delete(ctx, cred.ID); delErr != nil {
			logger.Error("failed to roll back credential",
				logger.String("subject", cred.ID), logger.ErrorField(delErr))
		}
		return nil, fmt.Errorf("create profile: %w", err)
	}
	logger.Info("subject signed up", logger.String("subject", cred.ID), logger.String("handle", profile.Handle))
	s.sessions.Set(profile)
	return s.issue(cred, profile)
}

// SignIn checks a password credential.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	cred, err := s.creds.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if cred.Provider != model.ProviderLocal || !CheckPasswordHash(password, cred.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	profile, err := s.profile(ctx, cred.ID)
	if err != nil {
		return nil, err
	}
	logger.Debug("subject signed in", logger.String("subject", cred.ID))
	return s.issue(cred, profile)
}

// SignOut revokes the token until it would have expired and drops the
// cached profile. An already expired token is a no-op.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if errors.Is(err, ErrSessionExpired) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return err
	}
	s.sessions.Invalidate(claims.Subject)
	logger.Debug("subject signed out", logger.String("subject", claims.Subject))
	return nil
}

// GetSession resolves a token to its subject and cached profile.
func (s *Service) GetSession(ctx context.Context, token string) (*Session, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrNoSession
	}
	profile, err := s.profile(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	return &Session{
		Subject:   claims.Subject,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
		Profile:   profile,
	}, nil
}

// OAuthSignIn exchanges an authorization code, creating the credential and
// profile on first sign-in.
func (s *Service) OAuthSignIn(ctx context.Context, providerName, code string) (*Session, error) {
	p, err := s.Provider(providerName)
	if err != nil {
		return nil, err
	}
	id, err := p.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	cred, err := s.creds.GetByProvider(ctx, providerName, id.Subject)
	if errors.Is(err, repository.ErrNotFound) {
		if id.Email == "" {
			return nil, fmt.Errorf("%s did not share an email address", providerName)
		}
		cred = &model.Credential{
			Email:           normalizeEmail(id.Email),
			Provider:        providerName,
			ProviderSubject: model.StrPtr(id.Subject),
		}
		if err := s.creds.Create(ctx, cred); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return nil, ErrEmailTaken
			}
			return nil, err
		}
		logger.Info("subject signed up with provider",
			logger.String("subject", cred.ID), logger.String("provider", providerName))
	} else if err != nil {
		return nil, err
	}

	profile, err := s.profile(ctx, cred.ID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		if profile, err = s.createProviderProfile(ctx, cred, id); err != nil {
			return nil, err
		}
		s.sessions.Set(profile)
	}
	return s.issue(cred, profile)
}

// createProviderProfile seeds the handle from the provider login, else the
// email local part.
func (s *Service) createProviderProfile(ctx context.Context, cred *model.Credential, id *Identity) (*model.Profile, error) {
	seed := strings.TrimSpace(id.Login)
	if seed == "" {
		seed = strings.SplitN(cred.Email, "@", 2)[0]
	}
	name := strings.TrimSpace(id.Name)
	if name == "" {
		name = seed
	}
	handle, err := s.uniqueHandle(ctx, seed)
	if err != nil {
		return nil, err
	}
	return s.profiles.Create(ctx, model.CreateProfileInput{
		ID:     cred.ID,
		Email:  cred.Email,
		Name:   name,
		Handle: handle,
	})
}

// uniqueHandle derives a free handle from seed: seed, seed_2, seed_3, ...
func (s *Service) uniqueHandle(ctx context.Context, seed string) (string, error) {
	base := handleStrip.ReplaceAllString(seed, "")
	if len(base) > 56 {
		base = base[:56]
	}
	if len(base) < 3 {
		base += "_user"
	}
	for i := 1; i <= 20; i++ {
		candidate := base
		if i > 1 {
			candidate = base + "_" + strconv.Itoa(i)
		}
		_, err := s.profiles.GetByHandle(ctx, candidate)
		if errors.Is(err, repository.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
	}
	return base + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:6], nil
}

// profile returns nil without error when the subject has no profile.
func (s *Service) profile(ctx context.Context, subject string) (*model.Profile, error) {
	p, err := s.sessions.Get(ctx, subject)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return p, err
}

func (s *Service) issue(cred *model.Credential, profile *model.Profile) (*Session, error) {
	token, claims, err := s.tokens.Issue(cred.ID, cred.Email)
	if err != nil {
		return nil, err
	}
	return &Session{
		Token:     token,
		Subject:   cred.ID,
		Email:     cred.Email,
		ExpiresAt: claims.ExpiresAt.Time,
		Profile:   profile,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
