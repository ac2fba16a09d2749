package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/joho/godotenv"
)

type Claims struct {
	UserID     uint   `json:"id"`
	LoggedInAs string `json:"logged_in_as,omitempty"`
	jwt.RegisteredClaims
}

func main() {
	userID := flag.Uint("user", 0, "идентификатор пользователя")
	role := flag.String("role", "DRIVER", "роль: DRIVER, CUSTOMER или admin")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Файл .env не найден, используем переменные окружения")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET не задан")
	}

	claims := Claims{
		UserID:     *userID,
		LoggedInAs: *role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().AddDate(1, 0, 0)), // Токен действителен 1 год
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		log.Fatalf("Ошибка генерации токена: %v", err)
	}

	fmt.Printf("Токен для пользователя %d (%s): %s\n", *userID, *role, tokenString)
}
