package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey int

const callerKey contextKey = iota

var errUnauthenticated = errors.New("unauthenticated")

// Claims carries the caller address in the registered subject claim.
type Claims struct {
	jwt.RegisteredClaims
}

// AuthMiddleware authenticates requests with an HS256 bearer token whose
// subject is the caller's address.
type AuthMiddleware struct {
	secret []byte
	logger *zap.Logger
}

func NewAuthMiddleware(secret []byte, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{secret: secret, logger: logger}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "unauthenticated", 0, "missing authorization header")
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "unauthenticated", 0, "invalid authorization header format")
			return
		}

		caller, err := m.validateToken(parts[1])
		if err != nil {
			m.logger.Warn("token validation failed", zap.String("path", r.URL.Path), zap.Error(err))
			writeError(w, http.StatusUnauthorized, "unauthenticated", 0, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

func (m *AuthMiddleware) validateToken(tokenString string) (common.Address, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return common.Address{}, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return common.Address{}, errUnauthenticated
	}
	if !common.IsHexAddress(claims.Subject) {
		return common.Address{}, fmt.Errorf("subject %q is not an address", claims.Subject)
	}
	return common.HexToAddress(claims.Subject), nil
}

// IssueToken signs an HS256 token for caller.
func IssueToken(secret []byte, caller common.Address, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = caller.Hex()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: claims}).SignedString(secret)
}

// WithCaller stores the authenticated caller in ctx.
func WithCaller(ctx context.Context, caller common.Address) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFromContext returns the authenticated caller.
func CallerFromContext(ctx context.Context) (common.Address, bool) {
	caller, ok := ctx.Value(callerKey).(common.Address)
	return caller, ok
}
