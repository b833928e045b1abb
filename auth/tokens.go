package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenData is the claim set carried by both access and refresh tokens.
type TokenData struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// EncodeToken signs a token for the user id with the given key and lifetime.
func EncodeToken(userID string, key string, ttl time.Duration) (string, error) {
	claims := &TokenData{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(key))
}

// DecodeToken verifies a token against the key and returns its claims. It
// fails on a bad signature, wrong signing method or expired token.
func DecodeToken(token string, key string) (*TokenData, error) {
	data := &TokenData{}
	_, err := jwt.ParseWithClaims(token, data, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(key), nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
