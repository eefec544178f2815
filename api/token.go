package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/smartwaste/smartwaste-api/apperrors"
)

// ChallengeTTL is how long a token waiting for a one-time code is valid
const ChallengeTTL = 10 * time.Minute

// Claims are the JWT claims issued by the API
type Claims struct {
	UserID    string `json:"userId"`
	TwoFactor bool   `json:"twoFactor,omitempty"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 signed tokens
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens returns a Tokens signing with secret. Session tokens live for ttl.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a session token for the user
func (t *Tokens) Issue(userID primitive.ObjectID) (string, error) {
	return t.sign(userID, false, t.ttl)
}

// IssueChallenge returns a short lived token that only admits the one-time code endpoints
func (t *Tokens) IssueChallenge(userID primitive.ObjectID) (string, error) {
	return t.sign(userID, true, ChallengeTTL)
}

func (t *Tokens) sign(userID primitive.ObjectID, twoFactor bool, ttl time.Duration) (string, error) {
	now := t.now()
	claims := Claims{
		UserID:    userID.Hex(),
		TwoFactor: twoFactor,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies token and returns its claims
func (t *Tokens) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("token expired: %w", apperrors.ErrUnauthorized)
		}
		return nil, fmt.Errorf("invalid token: %w", apperrors.ErrUnauthorized)
	}
	if _, err := primitive.ObjectIDFromHex(claims.UserID); err != nil {
		return nil, fmt.Errorf("invalid token subject: %w", apperrors.ErrUnauthorized)
	}
	return claims, nil
}

// UserObjectID returns the user id carried by the claims
func (c Claims) UserObjectID() primitive.ObjectID {
	id, _ := primitive.ObjectIDFromHex(c.UserID)
	return id
}
