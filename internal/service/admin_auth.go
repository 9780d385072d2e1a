package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/wise-recon-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	adminRole   = "admin"
	adminIssuer = "wise-recon"
)

// AdminClaims are the claims of an admin access token.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminAuth exchanges the operator API key for short-lived admin tokens.
type AdminAuth struct {
	jwtSecret  []byte
	apiKeyHash []byte
	ttl        time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// NewAdminAuth creates a new AdminAuth. apiKeyHash is a bcrypt hash.
func NewAdminAuth(jwtSecret, apiKeyHash string, ttl time.Duration, logger *zap.Logger) *AdminAuth {
	return &AdminAuth{
		jwtSecret:  []byte(jwtSecret),
		apiKeyHash: []byte(apiKeyHash),
		ttl:        ttl,
		now:        time.Now,
		logger:     logger,
	}
}

// Enabled reports whether admin routes can issue tokens at all.
func (a *AdminAuth) Enabled() bool {
	return len(a.jwtSecret) > 0 && len(a.apiKeyHash) > 0
}

// Login checks apiKey and returns a signed admin token.
func (a *AdminAuth) Login(ctx context.Context, req *domain.AdminTokenRequest) (*domain.AdminTokenResponse, error) {
	_, span := tracer.Start(ctx, "AdminAuth.Login")
	defer span.End()

	if !a.Enabled() {
		return nil, &domain.ErrUnauthorized{Message: "admin API is disabled"}
	}
	if req.APIKey == "" {
		return nil, &domain.ErrValidation{Field: "api_key", Message: "required"}
	}
	if err := bcrypt.CompareHashAndPassword(a.apiKeyHash, []byte(req.APIKey)); err != nil {
		a.logger.Warn("admin login rejected")
		return nil, &domain.ErrUnauthorized{Message: "invalid API key"}
	}

	token, err := a.sign()
	if err != nil {
		return nil, fmt.Errorf("sign admin token: %w", err)
	}

	return &domain.AdminTokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(a.ttl.Seconds()),
	}, nil
}

// ValidateToken parses an HS256 admin token.
func (a *AdminAuth) ValidateToken(tokenString string) (*AdminClaims, error) {
	if !a.Enabled() {
		return nil, &domain.ErrUnauthorized{Message: "admin API is disabled"}
	}

	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.jwtSecret, nil
	},
		jwt.WithIssuer(adminIssuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	if claims.Role != adminRole {
		return nil, &domain.ErrUnauthorized{Message: "admin role required"}
	}
	return claims, nil
}

func (a *AdminAuth) sign() (string, error) {
	now := a.now()
	claims := AdminClaims{
		Role: adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminRole,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			Issuer:    adminIssuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtSecret)
}
