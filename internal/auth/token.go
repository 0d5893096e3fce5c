// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

// Package auth verifies the opaque bearer token presented once at channel
// open and resolves the caller's tariff. Token issuance lives in an external
// credential service; this package only checks signatures and expiry.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/streamglass/streamglass/internal/config"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid bearer token")

// Identity is the verified caller.
type Identity struct {
	UserID   int64
	Username string
}

// Claims is the token payload issued by the credential service.
type Claims struct {
	UserID   int64  `json:"uid"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenVerifier validates HS256 bearer tokens.
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier builds a verifier from the security configuration.
// The secret must be at least 32 bytes.
func NewTokenVerifier(cfg *config.SecurityConfig) (*TokenVerifier, error) {
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 bytes, got %d", len(cfg.JWTSecret))
	}
	return &TokenVerifier{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
	}, nil
}

// Verify checks the token's signature, expiry, and issuer and returns the
// caller identity. Every failure collapses to ErrInvalidToken so the channel
// surface leaks nothing about why verification failed.
func (v *TokenVerifier) Verify(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, ErrInvalidToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	if claims.UserID <= 0 {
		return Identity{}, ErrInvalidToken
	}

	return Identity{UserID: claims.UserID, Username: claims.Username}, nil
}
