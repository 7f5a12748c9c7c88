package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
)

type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type contextKey string

const claimsContextKey contextKey = "subscriberClaims"

// SubscriberExists reports whether the account behind a token still exists.
type SubscriberExists func(ctx context.Context, userID string) (bool, error)

func JWTAccessTokenMiddleware(jwtManager JWTManagerInterface, exists SubscriberExists) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSONError(w, http.StatusUnauthorized, "Authorization header is required")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				writeJSONError(w, http.StatusUnauthorized, "Invalid token format")
				return
			}

			claims, err := jwtManager.ValidateAccessToken(tokenString)
			if err != nil {
				if errors.Is(err, ErrExpiredJWTToken) {
					writeJSONError(w, http.StatusUnauthorized, ErrExpiredJWTToken.Error())
					return
				}
				writeJSONError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			if exists != nil {
				ok, err := exists(r.Context(), claims.UserID)
				if err != nil {
					log.Printf("[Auth] subscriber lookup for %s failed: %v", claims.UserID, err)
					writeJSONError(w, http.StatusInternalServerError, "Internal server error")
					return
				}
				if !ok {
					writeJSONError(w, http.StatusUnauthorized, "Subscriber not found")
					return
				}
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*SubscriberClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*SubscriberClaims)
	return claims, ok
}

func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Status:  "error",
		Message: message,
	})
}
