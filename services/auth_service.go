package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"numberrush/models"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer       = "numberrush"
	MinPasswordLength = 6
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWeakPassword = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
)

// Claims identify a player. The subject is the account username, which is
// also the player id inside matches.
type Claims struct {
	AccountID uint `json:"aid"`
	jwt.RegisteredClaims
}

func (c *Claims) Username() string { return c.Subject }

type AuthService struct {
	gateway Gateway
	secret  []byte
	ttl     time.Duration
}

func NewAuthService(gateway Gateway, secret string, ttl time.Duration) *AuthService {
	return &AuthService{
		gateway: gateway,
		secret:  []byte(secret),
		ttl:     ttl,
	}
}

func (s *AuthService) Register(ctx context.Context, username, password string) (*models.Account, error) {
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	return s.gateway.Register(ctx, username, password)
}

// Login checks the credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *models.Account, error) {
	account, err := s.gateway.Authenticate(ctx, username, password)
	if err != nil {
		return "", nil, err
	}
	token, err := s.GenerateToken(account)
	if err != nil {
		return "", nil, err
	}
	return token, account, nil
}

func (s *AuthService) GenerateToken(account *models.Account) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		AccountID: account.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.Username,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *AuthService) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
