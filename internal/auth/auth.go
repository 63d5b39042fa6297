// Package auth handles accounts: registration, login, JWT issuance and the
// gin middleware protecting user routes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"market-signals/internal/database"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrWeakPassword       = errors.New("password too short")
)

const (
	bcryptCost        = 12
	maxPasswordLength = 128 // bcrypt input cap, also guards against DoS
)

// Claims are the JWT payload for an authenticated user.
type Claims struct {
	UserID int64  `json:"uid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Service wires password handling, token issuance and the user repository.
type Service struct {
	repo              *database.Repository
	secret            []byte
	tokenDuration     time.Duration
	minPasswordLength int
	logger            zerolog.Logger
}

func NewService(repo *database.Repository, secret string, tokenDuration time.Duration, minPasswordLength int, logger zerolog.Logger) *Service {
	return &Service{
		repo:              repo,
		secret:            []byte(secret),
		tokenDuration:     tokenDuration,
		minPasswordLength: minPasswordLength,
		logger:            logger.With().Str("component", "auth").Logger(),
	}
}

// Register creates an account and returns a fresh token.
func (s *Service) Register(ctx context.Context, email, password string) (string, *database.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return "", nil, fmt.Errorf("invalid email address")
	}
	if len(password) < s.minPasswordLength {
		return "", nil, ErrWeakPassword
	}
	if len(password) > maxPasswordLength {
		return "", nil, fmt.Errorf("password too long")
	}

	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return "", nil, ErrEmailTaken
	} else if !errors.Is(err, database.ErrNotFound) {
		return "", nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", nil, fmt.Errorf("failed to hash password: %w", err)
	}

	id, err := s.repo.CreateUser(ctx, email, string(hash))
	if err != nil {
		return "", nil, err
	}
	s.logger.Info().Str("email", email).Int64("user_id", id).Msg("User registered")

	user := &database.User{ID: id, Email: email}
	token, err := s.generateToken(user)
	return token, user, err
}

// Login verifies credentials and returns a fresh token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *database.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	return token, user, err
}

func (s *Service) generateToken(user *database.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenDuration)),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "market-signals",
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a token string.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
