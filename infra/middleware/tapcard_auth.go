package middleware

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"tapcard_server/pkg/apperr"
	"tapcard_server/pkg/httputil"
	"tapcard_server/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

const (
	localOwnerRef  = "user_id"
	localSessionID = "session_id"
)

// GetUserID returns the authenticated owner reference (the token subject).
func GetUserID(c *fiber.Ctx) (string, bool) {
	ref, ok := c.Locals(localOwnerRef).(string)
	return ref, ok && ref != ""
}

// TokenBlacklist manages revoked tokens
type TokenBlacklist struct {
	redis  *redis.Client
	prefix string
}

var tokenBlacklist *TokenBlacklist

// InitTokenBlacklist initializes the token blacklist with Redis
func InitTokenBlacklist(redisClient *redis.Client) {
	if redisClient == nil {
		logger.Warn("Redis client not provided, token blacklist disabled")
		tokenBlacklist = nil
		return
	}
	tokenBlacklist = &TokenBlacklist{
		redis:  redisClient,
		prefix: "token:blacklist:",
	}
}

// IsTokenRevoked checks if a token is blacklisted
func IsTokenRevoked(ctx context.Context, tokenID string) bool {
	if tokenBlacklist == nil {
		return false
	}
	exists, _ := tokenBlacklist.redis.Exists(ctx, tokenBlacklist.prefix+tokenID).Result()
	return exists > 0
}

// JWKS represents a JSON Web Key Set
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key
type JWK struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

// JWKSCache caches JWKS with TTL
type JWKSCache struct {
	mu        sync.RWMutex
	jwks      *JWKS
	fetchedAt time.Time
	ttl       time.Duration
	url       string
}

var jwksCache = &JWKSCache{ttl: 10 * time.Minute}

func (c *JWKSCache) SetURL(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.url = url
}

func (c *JWKSCache) lookup(kid string) (*JWK, bool) {
	if c.jwks == nil {
		return nil, false
	}
	for i := range c.jwks.Keys {
		if c.jwks.Keys[i].Kid == kid {
			return &c.jwks.Keys[i], true
		}
	}
	return nil, false
}

// GetKey retrieves a key by kid, refreshing the set when it is stale.
func (c *JWKSCache) GetKey(kid string) (*JWK, error) {
	c.mu.RLock()
	fresh := c.jwks != nil && time.Since(c.fetchedAt) < c.ttl
	key, ok := c.lookup(kid)
	c.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}
	if fresh {
		return nil, fmt.Errorf("key not found: %s", kid)
	}

	if err := c.refresh(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if key, ok := c.lookup(kid); ok {
		return key, nil
	}
	return nil, fmt.Errorf("key not found: %s", kid)
}

func (c *JWKSCache) refresh() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.url == "" {
		return errors.New("JWKS URL not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	resp, err := httputil.DefaultClient().Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS fetch failed with status: %d", resp.StatusCode)
	}

	var jwks JWKS
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return fmt.Errorf("failed to decode JWKS: %w", err)
	}

	c.jwks = &jwks
	c.fetchedAt = time.Now()
	logger.Info("JWKS refreshed, %d keys loaded", len(jwks.Keys))
	return nil
}

func parseECPublicKey(jwk *JWK) (*ecdsa.PublicKey, error) {
	xBytes, err := base64.RawURLEncoding.DecodeString(jwk.X)
	if err != nil {
		return nil, fmt.Errorf("failed to decode x: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(jwk.Y)
	if err != nil {
		return nil, fmt.Errorf("failed to decode y: %w", err)
	}

	var curve elliptic.Curve
	switch jwk.Crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("unsupported curve: %s", jwk.Crv)
	}

	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}

func parseRSAPublicKey(jwk *JWK) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("failed to decode n: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("failed to decode e: %w", err)
	}

	var e int
	for _, b := range eBytes {
		e = e<<8 + int(b)
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: e}, nil
}

// InitJWKS points the key cache at the Supabase JWKS endpoint and prefetches it.
func InitJWKS(supabaseURL string) {
	if supabaseURL == "" {
		logger.Warn("SUPABASE_URL not configured, JWKS verification disabled")
		return
	}

	jwksURL := strings.TrimSuffix(supabaseURL, "/") + "/auth/v1/.well-known/jwks.json"
	jwksCache.SetURL(jwksURL)

	go func() {
		if err := jwksCache.refresh(); err != nil {
			logger.WithError(err).Warn("Failed to pre-fetch JWKS, will retry on first request")
		}
	}()
}

func keyFunc(secret string) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodHMAC:
			if secret == "" {
				return nil, errors.New("JWT secret not configured")
			}
			return []byte(secret), nil

		case *jwt.SigningMethodECDSA, *jwt.SigningMethodRSA:
			kid, ok := token.Header["kid"].(string)
			if !ok || kid == "" {
				return nil, errors.New("missing kid in token header")
			}
			jwk, err := jwksCache.GetKey(kid)
			if err != nil {
				return nil, fmt.Errorf("failed to get public key: %w", err)
			}
			if _, isEC := token.Method.(*jwt.SigningMethodECDSA); isEC {
				return parseECPublicKey(jwk)
			}
			return parseRSAPublicKey(jwk)

		default:
			return nil, fmt.Errorf("unsupported signing method: %v", token.Header["alg"])
		}
	}
}

func bearerToken(c *fiber.Ctx) string {
	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// parseClaims verifies the token and returns its claims. exp and nbf are
// checked by the parser; iat is allowed one minute of clock skew.
func parseClaims(ctx context.Context, secret, tokenString string) (jwt.MapClaims, *apperr.AppError) {
	token, err := jwt.Parse(tokenString, keyFunc(secret), jwt.WithIssuedAt(), jwt.WithLeeway(time.Minute))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.New(apperr.CodeInvalidToken, "token expired", http.StatusUnauthorized)
		}
		return nil, apperr.Wrap(err, apperr.CodeInvalidToken, "invalid token", http.StatusUnauthorized)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, apperr.New(apperr.CodeInvalidToken, "invalid claims", http.StatusUnauthorized)
	}

	if jti, ok := claims["jti"].(string); ok && jti != "" && IsTokenRevoked(ctx, jti) {
		return nil, apperr.New(apperr.CodeInvalidToken, "token has been revoked", http.StatusUnauthorized)
	}

	if sub, _ := claims["sub"].(string); sub == "" {
		return nil, apperr.New(apperr.CodeInvalidToken, "missing subject in token", http.StatusUnauthorized)
	}
	return claims, nil
}

func storeClaims(c *fiber.Ctx, claims jwt.MapClaims) {
	sub, _ := claims["sub"].(string)
	c.Locals(localOwnerRef, sub)
	if sid, ok := claims["session_id"].(string); ok {
		c.Locals(localSessionID, sid)
	}
	if email, ok := claims["email"].(string); ok {
		c.Locals("user_email", email)
	}
}

// JWTAuth requires a valid Supabase access token and stores its subject as
// the owner reference.
func JWTAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions {
			return c.Next()
		}

		tokenString := bearerToken(c)
		if tokenString == "" {
			return apperr.Unauthorized("missing authorization")
		}

		claims, appErr := parseClaims(c.UserContext(), secret, tokenString)
		if appErr != nil {
			logger.WithError(appErr.Err).Warn("JWT validation failed: %s", appErr.Message)
			return appErr
		}

		storeClaims(c, claims)
		return c.Next()
	}
}

// OptionalJWTAuth identifies the viewer when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalJWTAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := bearerToken(c)
		if tokenString == "" {
			return c.Next()
		}
		if claims, appErr := parseClaims(c.UserContext(), secret, tokenString); appErr == nil {
			storeClaims(c, claims)
		}
		return c.Next()
	}
}

// AdminKey guards operator routes with a static key sent as X-Admin-Key.
// An empty configured key disables the routes.
func AdminKey(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if key == "" {
			return apperr.Forbidden("admin api disabled")
		}
		got := c.Get("X-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			return apperr.Unauthorized("invalid admin key")
		}
		c.Locals(localOwnerRef, "admin")
		return c.Next()
	}
}
