package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const accountIDKey contextKey = "accountID"

const staffKeyHeader = "X-API-Key"

// DriverAuth validates bearer JWT tokens issued by the identity provider and
// extracts the driver account id.
func DriverAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				http.Error(w, "invalid authorization header", http.StatusUnauthorized)
				return
			}
			tokenStr := strings.TrimSpace(parts[1])
			token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrTokenInvalidClaims
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "invalid token claims", http.StatusUnauthorized)
				return
			}

			accountID, err := extractAccountID(claims)
			if err != nil {
				http.Error(w, "account id not found", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), accountIDKey, accountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StaffAuth verifies the staff terminal API key against its bcrypt hash.
func StaffAuth(keyHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(staffKeyHeader))
			if key == "" {
				http.Error(w, "missing api key", http.StatusUnauthorized)
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)); err != nil {
				http.Error(w, "invalid api key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractAccountID(claims jwt.MapClaims) (string, error) {
	switch v := claims["account_id"].(type) {
	case string:
		if v == "" {
			return "", fmt.Errorf("account_id empty")
		}
		return v, nil
	default:
		return "", fmt.Errorf("account_id not present")
	}
}

// AccountIDFromContext retrieves the authenticated account id from request context.
func AccountIDFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(accountIDKey)
	if val == nil {
		return "", false
	}
	id, ok := val.(string)
	return id, ok
}
