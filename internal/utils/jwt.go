package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims identifies the customer behind a request.
type TokenClaims struct {
	CustomerID string `json:"customer_id"`
	Name       string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed JWT for the provided customer.
func GenerateToken(secret, customerID, name string, ttl time.Duration) (string, error) {
	if customerID == "" {
		return "", errors.New("customer id is required")
	}

	claims := &TokenClaims{
		CustomerID: customerID,
		Name:       name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   customerID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates the token and returns its claims.
func ParseToken(secret, tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*TokenClaims); ok && token.Valid && claims.CustomerID != "" {
		return claims, nil
	}

	return nil, jwt.ErrTokenInvalidClaims
}
