package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"simbi-market/internal/config"
	entity "simbi-market/internal/domain"
)

func GenerateToken(user *entity.User) (string, error) {
	jwtCfg := config.LoadJWT()

	claims := &entity.JWTClaims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(jwtCfg.TTLHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "simbi-market",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtCfg.Secret)
}

func ValidateToken(tokenString string) (*entity.JWTClaims, error) {
	jwtCfg := config.LoadJWT()
	token, err := jwt.ParseWithClaims(tokenString, &entity.JWTClaims{}, func(t *jwt.Token) (interface{}, error) {
		return jwtCfg.Secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*entity.JWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}
