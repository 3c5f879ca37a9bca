package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"app/internal/config"
	"app/internal/model"
	"app/internal/repository"
	"app/internal/util"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

var (
	// ErrEmailTaken indicates a signup attempt with an already registered email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials covers both unknown emails and wrong passwords so
	// responses do not reveal which one it was.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrSessionExpired indicates the refresh token is known but past its TTL.
	ErrSessionExpired = errors.New("session expired")
)

// TokenPair is what a successful authentication hands back to the client.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthService owns signup, login, token refresh and the Google OAuth flow.
type AuthService interface {
	SignUp(ctx context.Context, firstName, lastName, email, password string) (*model.User, *TokenPair, error)
	Login(ctx context.Context, email, password string) (*model.User, *TokenPair, error)
	// Refresh rotates the refresh token: the old one is revoked and a fresh
	// pair is issued.
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	// GoogleLoginURL returns the consent-screen URL for the given CSRF state.
	GoogleLoginURL(state string) string
	// GoogleCallback exchanges the authorization code, upserting a user for
	// the Google identity on first login.
	GoogleCallback(ctx context.Context, code string) (*model.User, *TokenPair, error)
}

type authService struct {
	users       repository.UserRepository
	sessions    repository.SessionRepository
	credits     CreditService
	oauthConfig *oauth2.Config

	jwtSecret      string
	accessTTL      time.Duration
	refreshTTL     time.Duration
	welcomeCredits int

	logger zerolog.Logger
	now    func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	credits CreditService,
	cfg *config.Config,
	logger zerolog.Logger,
) AuthService {
	return &authService{
		users:    users,
		sessions: sessions,
		credits:  credits,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.OAuthRedirectURL,
			Scopes:       []string{googleoauth.UserinfoEmailScope, googleoauth.UserinfoProfileScope},
			Endpoint:     google.Endpoint,
		},
		jwtSecret:      cfg.JWTSecret,
		accessTTL:      time.Duration(cfg.AccessTokenTTLMin) * time.Minute,
		refreshTTL:     time.Duration(cfg.RefreshTokenTTLHrs) * time.Hour,
		welcomeCredits: cfg.WelcomeCredits,
		logger:         logger.With().Str("service", "AuthService").Logger(),
		now:            time.Now,
	}
}

// SignUp registers a new email/password user and grants the welcome credits.
func (s *authService) SignUp(ctx context.Context, firstName, lastName, email, password string) (*model.User, *TokenPair, error) {
	existing, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("checking email %s: %w", email, err)
	}
	if existing != nil {
		return nil, nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &model.User{
		UserID:       uuid.NewString(),
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, nil, err
	}

	if s.welcomeCredits > 0 {
		if err := s.credits.Add(ctx, user.UserID, s.welcomeCredits, "Welcome bonus"); err != nil {
			// The account exists either way; the grant can be replayed by
			// support from the ledger.
			s.logger.Error().Err(err).Str("userId", user.UserID).Msg("Failed to grant welcome credits")
		}
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info().Str("userId", user.UserID).Msg("User signed up")
	return user, pair, nil
}

// Login verifies the password and opens a new session.
func (s *authService) Login(ctx context.Context, email, password string) (*model.User, *TokenPair, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching user %s: %w", email, err)
	}
	if user == nil || user.PasswordHash == "" {
		return nil, nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh validates a refresh token, revokes it, and issues a new pair.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	session, err := s.sessions.Find(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if s.now().After(session.ExpiresAt) {
		// Expired sessions are reaped lazily, here on first use.
		_ = s.sessions.Delete(ctx, refreshToken)
		return nil, ErrSessionExpired
	}

	user, err := s.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, repository.ErrSessionNotFound
	}

	if err := s.sessions.Delete(ctx, refreshToken); err != nil {
		return nil, err
	}
	return s.issueTokens(ctx, user)
}

// Logout revokes the session behind the refresh token.
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	return s.sessions.Delete(ctx, refreshToken)
}

func (s *authService) GoogleLoginURL(state string) string {
	return s.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (s *authService) GoogleCallback(ctx context.Context, code string) (*model.User, *TokenPair, error) {
	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("exchanging oauth code: %w", err)
	}

	oauthService, err := googleoauth.NewService(ctx,
		option.WithTokenSource(s.oauthConfig.TokenSource(ctx, token)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("creating oauth client: %w", err)
	}
	info, err := oauthService.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, nil, fmt.Errorf("fetching google userinfo: %w", err)
	}

	user, err := s.upsertGoogleUser(ctx, info)
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

func (s *authService) upsertGoogleUser(ctx context.Context, info *googleoauth.Userinfo) (*model.User, error) {
	user, err := s.users.GetUserByEmail(ctx, info.Email)
	if err != nil {
		return nil, fmt.Errorf("fetching user %s: %w", info.Email, err)
	}
	if user != nil {
		return user, nil
	}

	user = &model.User{
		UserID:        uuid.NewString(),
		FirstName:     info.GivenName,
		LastName:      info.FamilyName,
		Email:         info.Email,
		OAuthProvider: "google",
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	if s.welcomeCredits > 0 {
		if err := s.credits.Add(ctx, user.UserID, s.welcomeCredits, "Welcome bonus"); err != nil {
			s.logger.Error().Err(err).Str("userId", user.UserID).Msg("Failed to grant welcome credits")
		}
	}

	s.logger.Info().Str("userId", user.UserID).Msg("User signed up via Google")
	return user, nil
}

// issueTokens mints an access JWT and persists a new refresh session.
func (s *authService) issueTokens(ctx context.Context, user *model.User) (*TokenPair, error) {
	access, err := util.IssueJWT(user.UserID, user.Email, s.jwtSecret, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("issuing access token: %w", err)
	}

	refresh, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	session := model.Session{
		RefreshToken: refresh,
		UserID:       user.UserID,
		ExpiresAt:    s.now().Add(s.refreshTTL),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    s.now().Add(s.accessTTL),
	}, nil
}

func newRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
