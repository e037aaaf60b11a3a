// Package auth turns a bearer JWT into the request's acting user and tenant.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"grocerystock/internal/domain"
	"grocerystock/internal/logger"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	ErrMissingToken  = errors.New("missing authorization token")
	ErrMissingTenant = errors.New("tenant_id is required in the token")
)

type Claims struct {
	UserID   int64  `json:"user_id"`
	TenantID *int64 `json:"tenant_id,omitempty"`
	Email    string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type Verifier struct {
	key []byte
}

func NewVerifier(signingKey string) *Verifier {
	return &Verifier{key: []byte(signingKey)}
}

// Issue signs an HS256 token for the given user and tenant.
func (v *Verifier) Issue(userID, tenantID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		TenantID: &tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
}

func (v *Verifier) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.TenantID == nil || *claims.TenantID == 0 {
		return nil, ErrMissingTenant
	}
	return claims, nil
}

type actorKey struct{}

func WithActor(ctx context.Context, a domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFrom(ctx context.Context) (domain.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(domain.Actor)
	return a, ok
}

// Middleware rejects requests without a valid bearer token and stores the
// caller as a domain.Actor on the request context.
func Middleware(v *Verifier, base *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := logger.FromContext(r.Context(), base)

			token, err := bearer(r.Header.Get("Authorization"))
			if err != nil {
				log.Warn("rejected request", zap.Error(err))
				unauthorized(w, err.Error())
				return
			}
			claims, err := v.Verify(token)
			if err != nil {
				log.Warn("invalid jwt", zap.Error(err))
				unauthorized(w, "invalid or expired token")
				return
			}

			actor := domain.Actor{UserID: claims.UserID, TenantID: *claims.TenantID}
			ctx := WithActor(r.Context(), actor)
			ctx = logger.WithContext(ctx, log.With(
				zap.Int64("user_id", actor.UserID),
				zap.Int64("tenant_id", actor.TenantID),
			))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearer(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", errors.New("invalid authorization format, expected Bearer token")
	}
	return strings.TrimSpace(token), nil
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
