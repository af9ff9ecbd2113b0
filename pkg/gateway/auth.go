package gateway

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"
)

// Authentication modes for the submit route
const (
	AuthModeNone   = "none"
	AuthModeJWT    = "jwt"
	AuthModeAPIKey = "apikey"
)

// AuthConfig configures gateway authentication
type AuthConfig struct {
	// Mode selects the scheme: "none", "jwt" or "apikey"
	Mode string

	// JWTSecret is the HS256 signing secret (jwt mode)
	JWTSecret string

	// Issuer requires a matching `iss` claim when set (jwt mode)
	Issuer string

	// Leeway allows small clock skew for exp/nbf validation (jwt mode)
	Leeway time.Duration

	// APIKeyHashes are bcrypt hashes of accepted keys (apikey mode).
	// Plaintext keys are never stored in configuration.
	APIKeyHashes []string
}

// Middleware wraps a request handler with an authentication check
type Middleware func(next fasthttp.RequestHandler) fasthttp.RequestHandler

// AuthMiddleware builds the middleware for cfg.
// Fail-fast: misconfiguration surfaces at construction, not per request.
func AuthMiddleware(cfg AuthConfig) (Middleware, error) {
	switch cfg.Mode {
	case "", AuthModeNone:
		return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
			return next
		}, nil
	case AuthModeJWT:
		if cfg.JWTSecret == "" {
			return nil, fmt.Errorf("auth: jwt mode requires a secret")
		}
		return jwtMiddleware(cfg), nil
	case AuthModeAPIKey:
		if len(cfg.APIKeyHashes) == 0 {
			return nil, fmt.Errorf("auth: apikey mode requires at least one key hash")
		}
		return apiKeyMiddleware(cfg), nil
	default:
		return nil, fmt.Errorf("auth: unknown mode %q", cfg.Mode)
	}
}

// jwtMiddleware validates HS256 bearer tokens
func jwtMiddleware(cfg AuthConfig) Middleware {
	opts := []jwt.ParserOption{
		// Pin the algorithm family to avoid alg-confusion attacks
		jwt.WithValidMethods([]string{"HS256"}),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}
	parser := jwt.NewParser(opts...)
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(cfg.JWTSecret), nil
	}

	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			auth := string(ctx.Request.Header.Peek("Authorization"))
			const scheme = "Bearer "
			if !strings.HasPrefix(auth, scheme) {
				unauthorized(ctx, "missing bearer token")
				return
			}

			token, err := parser.Parse(strings.TrimPrefix(auth, scheme), keyFunc)
			if err != nil || !token.Valid {
				unauthorized(ctx, "invalid token")
				return
			}

			next(ctx)
		}
	}
}

// apiKeyMiddleware validates X-API-Key against bcrypt hashes
func apiKeyMiddleware(cfg AuthConfig) Middleware {
	hashes := make([][]byte, len(cfg.APIKeyHashes))
	for i, h := range cfg.APIKeyHashes {
		hashes[i] = []byte(h)
	}

	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			key := ctx.Request.Header.Peek("X-API-Key")
			if len(key) == 0 {
				unauthorized(ctx, "missing API key")
				return
			}

			for _, hash := range hashes {
				if bcrypt.CompareHashAndPassword(hash, key) == nil {
					next(ctx)
					return
				}
			}

			unauthorized(ctx, "invalid API key")
		}
	}
}

func unauthorized(ctx *fasthttp.RequestCtx, msg string) {
	writeError(ctx, fasthttp.StatusUnauthorized, msg)
}
