package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// JWTValidator defines the interface for validating staff JWT tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator.
type JWTClaims struct {
	StaffUser string
	Role      string
}

type contextKeyStaffUser struct{}
type contextKeyStaffRole struct{}

var (
	ContextKeyStaffUser = contextKeyStaffUser{}
	ContextKeyStaffRole = contextKeyStaffRole{}
)

// GetStaffUser retrieves the authenticated staff username from the context.
func GetStaffUser(ctx context.Context) string {
	user, ok := ctx.Value(ContextKeyStaffUser).(string)
	if !ok {
		return ""
	}
	return user
}

// GetStaffRole retrieves the authenticated staff role from the context.
func GetStaffRole(ctx context.Context) string {
	role, ok := ctx.Value(ContextKeyStaffRole).(string)
	if !ok {
		return ""
	}
	return role
}

// RequireAuth rejects requests without a valid staff bearer token. Every
// write endpoint sits behind this so the audit trail always has a real actor.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestID(ctx)

			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx = context.WithValue(ctx, ContextKeyStaffUser, claims.StaffUser)
			ctx = context.WithValue(ctx, ContextKeyStaffRole, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
