package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	Issuer          = "tableorder"
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour

	kindAccess  = "access"
	kindRefresh = "refresh"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims identify a staff member. Customers never hold tokens; they are
// scoped by table session instead.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
	Kind   string    `json:"kind"`
	jwt.RegisteredClaims
}

// TokenPair is what login and refresh hand back to the staff console.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// IssuePair signs a fresh access and refresh token for one staff member.
func IssuePair(secret string, userID uuid.UUID, role string) (TokenPair, error) {
	now := time.Now()
	access, err := sign(secret, userID, role, kindAccess, now, AccessTokenTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := sign(secret, userID, "", kindRefresh, now, RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: now.Add(AccessTokenTTL)}, nil
}

func GenerateToken(secret string, userID uuid.UUID, role string) (string, error) {
	return sign(secret, userID, role, kindAccess, time.Now(), AccessTokenTTL)
}

func GenerateRefreshToken(secret string, userID uuid.UUID) (string, error) {
	return sign(secret, userID, "", kindRefresh, time.Now(), RefreshTokenTTL)
}

// ValidateToken parses an access token.
func ValidateToken(secret, tokenStr string) (*Claims, error) {
	return parse(secret, tokenStr, kindAccess)
}

// ValidateRefreshToken returns the user a refresh token was issued to.
func ValidateRefreshToken(secret, tokenStr string) (uuid.UUID, error) {
	claims, err := parse(secret, tokenStr, kindRefresh)
	if err != nil {
		return uuid.Nil, err
	}
	return claims.UserID, nil
}

func sign(secret string, userID uuid.UUID, role, kind string, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID: userID,
		Role:   role,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func parse(secret, tokenStr, kind string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Kind != kind || claims.UserID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
