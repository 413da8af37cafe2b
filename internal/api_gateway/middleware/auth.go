package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mortgage-deed-signing/internal/config"
	"github.com/mortgage-deed-signing/internal/domain/identity"
)

// ClaimsKey is the key under which the resolved identity is stored in the gin context
const ClaimsKey = "identity_claims"

var ErrMissingBearer = errors.New("missing bearer token")

// tokenClaims is the JWT body issued by the identity provider. The subject
// comes from the registered "sub" claim.
type tokenClaims struct {
	Role          identity.Role `json:"role"`
	PersonNumber  string        `json:"person_number,omitempty"`
	BankID        int64         `json:"bank_id,omitempty"`
	CooperativeID int64         `json:"cooperative_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier resolves HS256 bearer tokens into identity claims.
type TokenVerifier struct {
	secret   []byte
	issuer   string
	audience string
}

func NewTokenVerifier(cfg config.AuthConfig) *TokenVerifier {
	return &TokenVerifier{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.JWTIssuer,
		audience: cfg.JWTAudience,
	}
}

// Verify checks signature, expiry and, when configured, issuer and audience.
func (v *TokenVerifier) Verify(raw string) (identity.Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	var tc tokenClaims
	_, err := jwt.ParseWithClaims(raw, &tc, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return identity.Claims{}, err
	}

	claims := identity.Claims{
		Subject:       tc.Subject,
		Role:          tc.Role,
		PersonNumber:  tc.PersonNumber,
		BankID:        tc.BankID,
		CooperativeID: tc.CooperativeID,
	}
	if err := claims.Validate(); err != nil {
		return identity.Claims{}, fmt.Errorf("invalid identity claims: %w", err)
	}
	return claims, nil
}

// Issue signs claims valid for ttl. Used by local tooling and tests; production
// tokens come from the identity provider.
func (v *TokenVerifier) Issue(claims identity.Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	registered := jwt.RegisteredClaims{
		Subject:   claims.Subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    v.issuer,
		ID:        uuid.NewString(),
	}
	if v.audience != "" {
		registered.Audience = jwt.ClaimStrings{v.audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Role:             claims.Role,
		PersonNumber:     claims.PersonNumber,
		BankID:           claims.BankID,
		CooperativeID:    claims.CooperativeID,
		RegisteredClaims: registered,
	})
	return token.SignedString(v.secret)
}

// Auth rejects requests without a valid bearer token with 401 and stores the
// resolved claims for the handlers.
func Auth(logger *slog.Logger, verifier *TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or malformed Authorization header")
			return
		}

		claims, err := verifier.Verify(raw)
		if err != nil {
			logger.Warn("Rejected bearer token",
				"correlation_id", GetCorrelationID(c),
				"error", err)
			message := "Invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				message = "Token has expired"
			}
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", message)
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// GetClaims returns the identity resolved by Auth.
func GetClaims(c *gin.Context) (identity.Claims, bool) {
	v, exists := c.Get(ClaimsKey)
	if !exists {
		return identity.Claims{}, false
	}
	claims, ok := v.(identity.Claims)
	return claims, ok
}

func bearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMissingBearer
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingBearer
	}
	return token, nil
}
