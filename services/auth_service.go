package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"habitFlowAPI/internal/apperr"
	"habitFlowAPI/internal/user"
	"habitFlowAPI/storage"
)

// AuthService is a mocked local identity provider: sign-in always
// succeeds, the session record lives in the key-value store, and the
// bearer token is minted locally. No remote identity system is
// involved.
type AuthService struct {
	store      storage.Store
	signingKey []byte
	logger     *log.Logger
}

func NewAuthService(store storage.Store, signingKey []byte) *AuthService {
	return &AuthService{
		store:      store,
		signingKey: signingKey,
		logger:     log.With("component", "auth"),
	}
}

// localUserID derives a stable id from the email, so a returning user
// maps back to the same habits collection across sign-ins.
func localUserID(email string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.ToLower(email))).String()
}

// SignUp creates a mock user, persists the session record and returns a
// session token. The password is accepted, not verified.
func (s *AuthService) SignUp(ctx context.Context, req *user.SignUpRequest) (*user.SessionResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, apperr.Validationf("email and password are required")
	}
	if req.DisplayName == "" {
		return nil, apperr.Validationf("display name is required")
	}

	now := time.Now()
	u := &user.User{
		ID:          localUserID(req.Email),
		Email:       req.Email,
		DisplayName: req.DisplayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.saveSession(ctx, u); err != nil {
		return nil, err
	}
	return s.sessionResponse(u)
}

// SignIn simulates a successful login for any credentials and replaces
// the stored session record.
func (s *AuthService) SignIn(ctx context.Context, req *user.SignInRequest) (*user.SessionResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, apperr.Validationf("email and password are required")
	}

	now := time.Now()
	u := &user.User{
		ID:          localUserID(req.Email),
		Email:       req.Email,
		DisplayName: "Test User",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.saveSession(ctx, u); err != nil {
		return nil, err
	}
	return s.sessionResponse(u)
}

// SignOut clears the stored session record. Absence of the record is
// the signed-out state.
func (s *AuthService) SignOut(ctx context.Context) error {
	if err := s.store.Delete(ctx, storage.KeyUser); err != nil {
		return fmt.Errorf("%w: failed to clear session: %v", apperr.ErrStorage, err)
	}
	return nil
}

// CurrentUser returns the signed-in user, or ErrUnauthorized when no
// session record is stored.
func (s *AuthService) CurrentUser(ctx context.Context) (*user.User, error) {
	raw, err := s.store.Get(ctx, storage.KeyUser)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, apperr.ErrUnauthorized
		}
		return nil, fmt.Errorf("%w: failed to load session: %v", apperr.ErrStorage, err)
	}

	u := &user.User{}
	if err := json.Unmarshal([]byte(raw), u); err != nil {
		return nil, fmt.Errorf("%w: corrupt session record: %v", apperr.ErrStorage, err)
	}
	return u, nil
}

// UpdateProfile merges the provided fields over the session record.
func (s *AuthService) UpdateProfile(ctx context.Context, req *user.UpdateProfileRequest) (*user.User, error) {
	u, err := s.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	if req.Email != nil {
		if *req.Email == "" {
			return nil, apperr.Validationf("email cannot be empty")
		}
		u.Email = *req.Email
	}
	if req.DisplayName != nil {
		u.DisplayName = *req.DisplayName
	}
	if req.PhotoURL != nil {
		u.PhotoURL = *req.PhotoURL
	}
	u.UpdatedAt = time.Now()

	if err := s.saveSession(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// VerifyToken checks the bearer token signature and returns the user id
// it was minted for.
func (s *AuthService) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: token has no subject", apperr.ErrUnauthorized)
	}
	return sub, nil
}

func (s *AuthService) saveSession(ctx context.Context, u *user.User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}
	if err := s.store.Set(ctx, storage.KeyUser, string(raw)); err != nil {
		return fmt.Errorf("%w: failed to persist session: %v", apperr.ErrStorage, err)
	}
	return nil
}

func (s *AuthService) sessionResponse(u *user.User) (*user.SessionResponse, error) {
	claims := jwt.MapClaims{
		"sub": u.ID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(30 * 24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	s.logger.Info("session started", "user", u.ID, "email", u.Email)
	return &user.SessionResponse{Token: signed, User: u}, nil
}
