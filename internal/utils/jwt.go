package utils

import (
	"fmt"
	"time"

	"solarchat/internal/config"
	"solarchat/internal/models"

	"github.com/golang-jwt/jwt/v4"
)

// IdentityClaims carries the {id, name, role} identity triple inside the
// token issued by the authentication collaborator.
type IdentityClaims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.StandardClaims
}

// GenerateIdentityToken issues a signed identity token. The chat core
// normally only consumes tokens, but issuing lives here so local
// development and tests can mint claims with the same shape.
func GenerateIdentityToken(userID, name, role string) (string, error) {
	cfg := config.Load()

	claims := IdentityClaims{
		UserID: userID,
		Name:   name,
		Role:   role,
		StandardClaims: jwt.StandardClaims{
			Issuer:    cfg.JWT.Issuer,
			Subject:   userID,
			ExpiresAt: time.Now().Add(time.Hour * time.Duration(cfg.JWT.ExpiryHour)).Unix(),
			NotBefore: time.Now().Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWT.Secret))
}

// ParseIdentityToken validates a token and extracts the identity claim.
func ParseIdentityToken(tokenString string) (models.Identity, error) {
	cfg := config.Load()

	claims := &IdentityClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(cfg.JWT.Secret), nil
	})
	if err != nil {
		return models.Identity{}, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return models.Identity{}, fmt.Errorf("invalid token")
	}

	identity := models.Identity{
		ID:   claims.UserID,
		Name: claims.Name,
		Role: claims.Role,
	}
	if err := identity.Validate(); err != nil {
		return models.Identity{}, fmt.Errorf("malformed identity claim: %w", err)
	}

	return identity, nil
}
