package utils

import (
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Роли пользователей, которые допускаются к подключению
const (
	RoleDriver   = "DRIVER"
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "admin"
)

type Claims struct {
	UserID     uint   `json:"id"`
	LoggedInAs string `json:"logged_in_as,omitempty"`
	jwt.RegisteredClaims
}

// GenerateJWT выдает токен для пользователя с указанной ролью
func GenerateJWT(userID uint, loggedInAs string) (string, error) {
	claims := Claims{
		UserID:     userID,
		LoggedInAs: loggedInAs,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(os.Getenv("JWT_SECRET")))
}

// GenerateAdminJWT выдает долгоживущий токен для сервисных вызовов
func GenerateAdminJWT() (string, error) {
	claims := Claims{
		LoggedInAs: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().AddDate(1, 0, 0)), // Токен действителен 1 год
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(os.Getenv("JWT_SECRET")))
}

func ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(os.Getenv("JWT_SECRET")), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}
