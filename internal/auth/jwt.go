package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/driftboard/presenced/internal/core"
)

// Claims represents the identity claims carried by a locally issued token.
type Claims struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	UserImage string `json:"userImage,omitempty"`
	jwt.RegisteredClaims
}

// JWTConfig holds settings for local token verification.
type JWTConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
}

// JWTVerifier validates bearer credentials locally as HS256 tokens instead of
// calling the remote verify endpoint. Used when auth_mode is "token".
type JWTVerifier struct {
	cfg *JWTConfig
}

// NewJWTVerifier builds a local token verifier.
func NewJWTVerifier(cfg *JWTConfig) *JWTVerifier {
	return &JWTVerifier{cfg: cfg}
}

// Verify parses and validates the token and resolves its identity claims.
// The roomID parameter is accepted for interface symmetry; room scoping is
// enforced through the audience claim when one is configured.
func (v *JWTVerifier) Verify(_ context.Context, token, _ string) (core.Identity, error) {
	if len(v.cfg.Secret) == 0 {
		return core.Identity{}, ErrMissingConfig
	}

	claims, err := ValidateToken(v.cfg, token)
	if err != nil {
		return core.Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	name := claims.UserName
	if name == "" {
		name = claims.UserID
	}
	return core.Identity{
		UserID:    claims.UserID,
		UserName:  name,
		UserImage: claims.UserImage,
	}, nil
}

// GenerateToken creates a signed token for the given identity. Intended for
// development setups and tests where no external identity service exists.
func GenerateToken(cfg *JWTConfig, identity core.Identity) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    identity.UserID,
		UserName:  identity.UserName,
		UserImage: identity.UserImage,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(cfg.Secret)
}

// ValidateToken parses and validates a token string.
func ValidateToken(cfg *JWTConfig, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return cfg.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("token missing userId claim")
	}

	if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
		return nil, fmt.Errorf("invalid issuer")
	}
	if cfg.Audience != "" {
		validAudience := false
		for _, aud := range claims.Audience {
			if aud == cfg.Audience {
				validAudience = true
				break
			}
		}
		if !validAudience {
			return nil, fmt.Errorf("invalid audience")
		}
	}

	return claims, nil
}
