// Package auth hashes principal passwords and issues the session tokens that
// carry the caller identity.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/songzhibin97/mailregistry/pkg/registry"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher handles password hashing and verification
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher creates a hasher; a cost outside bcrypt's range falls back
// to bcrypt.DefaultCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// HashPassword hashes a password using bcrypt
func (ph *PasswordHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), ph.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// VerifyPassword verifies a password against its hash
func (ph *PasswordHasher) VerifyPassword(password, hash string) error {
	if password == "" || hash == "" {
		return fmt.Errorf("password and hash are required")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return fmt.Errorf("password verification failed: %w", err)
	}

	return nil
}

// JWTManager handles JWT token generation and validation
type JWTManager struct {
	secret    []byte
	algorithm string
	expiresIn time.Duration
	issuer    string
}

// Claims are the JWT claims of a registry session
type Claims struct {
	Role registry.Role          `json:"role"`
	Kind registry.PrincipalKind `json:"kind"`
	jwt.RegisteredClaims
}

// Caller returns the identity carried by the claims
func (c *Claims) Caller() registry.Caller {
	return registry.Caller{ID: c.Subject, Role: c.Role, Kind: c.Kind}
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secret, algorithm string, expiresIn time.Duration, issuer string) (*JWTManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret cannot be empty")
	}
	if algorithm == "" {
		algorithm = "HS256"
	}
	if jwt.GetSigningMethod(algorithm) == nil {
		return nil, fmt.Errorf("unsupported JWT algorithm: %s", algorithm)
	}
	if expiresIn <= 0 {
		expiresIn = 8 * time.Hour
	}
	if issuer == "" {
		issuer = "mailregistry"
	}

	return &JWTManager{
		secret:    []byte(secret),
		algorithm: algorithm,
		expiresIn: expiresIn,
		issuer:    issuer,
	}, nil
}

// GenerateToken issues a token for caller and returns it with its expiry
func (jm *JWTManager) GenerateToken(caller registry.Caller) (string, time.Time, error) {
	if caller.ID == "" {
		return "", time.Time{}, fmt.Errorf("caller ID cannot be empty")
	}
	if !caller.Role.Valid() {
		return "", time.Time{}, fmt.Errorf("invalid caller role: %q", caller.Role)
	}

	now := time.Now()
	expiresAt := now.Add(jm.expiresIn)
	claims := &Claims{
		Role: caller.Role,
		Kind: caller.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    jm.issuer,
			Subject:   caller.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.GetSigningMethod(jm.algorithm), claims)
	signed, err := token.SignedString(jm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// ValidateToken validates a JWT token and returns the claims
func (jm *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("token cannot be empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jm.algorithm {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jm.secret, nil
	}, jwt.WithIssuer(jm.issuer))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("token carries an invalid role")
	}

	return claims, nil
}
