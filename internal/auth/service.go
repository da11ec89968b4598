package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"github.com/Raulcadiz/Carnavalix/internal/models"
)

var (
	// ErrInvalidCredentials covers both unknown users and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrValidation flags a rejected registration input.
	ErrValidation = errors.New("validation failed")
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-.]{3,30}$`)
	colorPattern    = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

// Config holds auth settings.
type Config struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// Service handles registration, login and session tokens.
type Service struct {
	repo   *Repository
	config Config
	clock  clockwork.Clock
}

// NewService creates an auth service.
func NewService(repo *Repository, config Config, clock clockwork.Clock) *Service {
	return &Service{repo: repo, config: config, clock: clock}
}

// RegisterRequest is a new account submission.
type RegisterRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	AvatarEmoji string `json:"avatar_emoji"`
	AvatarColor string `json:"avatar_color"`
}

// Register validates and creates an account. The caller is logged in
// immediately afterwards.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	password := strings.TrimSpace(req.Password)

	if !usernamePattern.MatchString(username) {
		return nil, fmt.Errorf("%w: usuario: 3-30 caracteres, solo letras, números, _ - .", ErrValidation)
	}
	if len(password) < 6 {
		return nil, fmt.Errorf("%w: contraseña mínima 6 caracteres", ErrValidation)
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = username
	}
	if len([]rune(displayName)) > 80 {
		displayName = string([]rune(displayName)[:80])
	}

	avatarEmoji := req.AvatarEmoji
	if avatarEmoji == "" {
		avatarEmoji = "🎭"
	}
	if len([]rune(avatarEmoji)) > 4 {
		avatarEmoji = string([]rune(avatarEmoji)[:4])
	}

	avatarColor := req.AvatarColor
	if !colorPattern.MatchString(avatarColor) {
		avatarColor = "#d4a843"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hash),
		DisplayName:  displayName,
		AvatarEmoji:  avatarEmoji,
		AvatarColor:  avatarColor,
		Active:       true,
		CreatedAt:    s.clock.Now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and records the visit.
func (s *Service) Login(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.repo.UserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.repo.TouchLastSeen(ctx, user.ID, s.clock.Now().UTC()); err != nil {
		return nil, err
	}
	return user, nil
}

// Token issues a signed session token for a user.
func (s *Service) Token(user *models.User) (string, error) {
	now := s.clock.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(user.ID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a session token and loads its user. Returns nil without
// error for invalid or expired tokens: the caller is simply anonymous.
func (s *Service) Verify(ctx context.Context, tokenString string) (*models.User, error) {
	if tokenString == "" {
		return nil, nil
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	}, jwt.WithTimeFunc(func() time.Time { return s.clock.Now() }))
	if err != nil || !token.Valid {
		return nil, nil
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return nil, nil
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, nil
	}

	return s.repo.UserByID(ctx, id)
}

// SetupMode reports whether no accounts exist yet; admin endpoints are open
// until the first registration.
func (s *Service) SetupMode(ctx context.Context) (bool, error) {
	hasUsers, err := s.repo.HasUsers(ctx)
	if err != nil {
		return false, err
	}
	return !hasUsers, nil
}

// UpdateProfile applies profile changes for a user.
func (s *Service) UpdateProfile(ctx context.Context, id int64, displayName, avatarEmoji, avatarColor *string) (*models.User, error) {
	if displayName != nil {
		trimmed := strings.TrimSpace(*displayName)
		if len([]rune(trimmed)) > 80 {
			trimmed = string([]rune(trimmed)[:80])
		}
		displayName = &trimmed
	}
	if avatarEmoji != nil {
		emoji := *avatarEmoji
		if emoji == "" {
			emoji = "🎭"
		}
		if len([]rune(emoji)) > 4 {
			emoji = string([]rune(emoji)[:4])
		}
		avatarEmoji = &emoji
	}
	if avatarColor != nil && !colorPattern.MatchString(*avatarColor) {
		avatarColor = nil
	}
	return s.repo.UpdateProfile(ctx, id, displayName, avatarEmoji, avatarColor)
}
