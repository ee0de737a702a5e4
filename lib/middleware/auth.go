package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/golang-jwt/jwt/v5"
	"github.com/onkernel/devattach/lib/logger"
)

type contextKey string

const userIDKey contextKey = "user_id"

var (
	errMissingHeader = errors.New("authorization header required")
	errHeaderFormat  = errors.New("invalid authorization header format")
	errInvalidToken  = errors.New("invalid token")
)

// OapiAuthenticationFunc creates an AuthenticationFunc compatible with nethttp-middleware
// that validates HS256 JWT bearer tokens for operations with security requirements.
// The token subject is stored as the user ID.
func OapiAuthenticationFunc(jwtSecret string) openapi3filter.AuthenticationFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))

	return func(ctx context.Context, input *openapi3filter.AuthenticationInput) error {
		log := logger.FromContext(ctx)

		if input.SecurityScheme == nil {
			return nil
		}
		if input.SecurityScheme.Type != "http" || !strings.EqualFold(input.SecurityScheme.Scheme, "bearer") {
			return fmt.Errorf("unsupported security scheme: %s", input.SecurityScheme.Type)
		}

		req := input.RequestValidationInput.Request
		authHeader := req.Header.Get("Authorization")
		if authHeader == "" {
			log.DebugContext(ctx, "missing authorization header")
			return errMissingHeader
		}

		token, err := extractBearerToken(authHeader)
		if err != nil {
			log.DebugContext(ctx, "invalid authorization header", "error", err)
			return errHeaderFormat
		}

		if jwtSecret == "" {
			log.WarnContext(ctx, "rejecting request, JWT_SECRET not configured")
			return errInvalidToken
		}

		claims := &jwt.RegisteredClaims{}
		parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
			return []byte(jwtSecret), nil
		})
		if err != nil || !parsed.Valid {
			log.DebugContext(ctx, "failed to parse JWT", "error", err)
			return errInvalidToken
		}

		if claims.Subject == "" {
			log.DebugContext(ctx, "JWT without subject")
			return errInvalidToken
		}

		newCtx := context.WithValue(req.Context(), userIDKey, claims.Subject)
		*input.RequestValidationInput.Request = *req.WithContext(newCtx)
		return nil
	}
}

// extractBearerToken extracts the token from "Bearer <token>" format
func extractBearerToken(authHeader string) (string, error) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid authorization header format")
	}

	scheme := strings.ToLower(parts[0])
	if scheme != "bearer" {
		return "", fmt.Errorf("unsupported authorization scheme: %s", scheme)
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", fmt.Errorf("empty bearer token")
	}
	return token, nil
}

// GetUserIDFromContext extracts the user ID from context
func GetUserIDFromContext(ctx context.Context) string {
	if userID, ok := ctx.Value(userIDKey).(string); ok {
		return userID
	}
	return ""
}
