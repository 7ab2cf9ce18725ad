package services

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/spegrid/execreview-backend/internal/pkg/errors"
	"github.com/spegrid/execreview-backend/internal/platform/logger"
)

// AuthUser is the identity carried by a validated access token.
type AuthUser struct {
	Email string
	Role  string
}

type authClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService issues and validates access tokens for the single configured
// admin account.
type AuthService interface {
	Login(email, password string) (string, error)
	ParseToken(tokenString string) (*AuthUser, error)
}

type authService struct {
	log          *logger.Logger
	adminEmail   string
	adminPass    string
	jwtSecretKey string
	accessTTL    time.Duration
}

func NewAuthService(baseLog *logger.Logger, adminEmail, adminPass, jwtSecretKey string, accessTTL time.Duration) AuthService {
	return &authService{
		log:          baseLog.With("service", "AuthService"),
		adminEmail:   adminEmail,
		adminPass:    adminPass,
		jwtSecretKey: jwtSecretKey,
		accessTTL:    accessTTL,
	}
}

func (as *authService) Login(email, password string) (string, error) {
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(as.adminEmail)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(as.adminPass)) == 1
	if !emailOK || !passOK {
		as.log.Warn("Login rejected", "email", email)
		return "", errors.ErrUnauthorized
	}

	now := time.Now()
	claims := authClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   as.adminEmail,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.accessTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.jwtSecretKey))
}

func (as *authService) ParseToken(tokenString string) (*AuthUser, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Header["alg"])
		}
		return []byte(as.jwtSecretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*authClaims)
	if !ok || !parsed.Valid {
		return nil, errors.ErrUnauthorized
	}
	return &AuthUser{Email: claims.Subject, Role: claims.Role}, nil
}
