package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenClaims identify the caller of an authenticated request.
type TokenClaims struct {
	UserID  string `json:"user_id"`
	IsStaff bool   `json:"staff"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 token for the user.
func GenerateToken(secret string, userID uuid.UUID, isStaff bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &TokenClaims{
		UserID:  userID.String(),
		IsStaff: isStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates tokenString and returns the user id and staff flag.
func ParseToken(secret, tokenString string) (uuid.UUID, bool, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return uuid.Nil, false, err
	}
	if !token.Valid {
		return uuid.Nil, false, jwt.ErrTokenInvalidClaims
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, false, err
	}
	return userID, claims.IsStaff, nil
}
