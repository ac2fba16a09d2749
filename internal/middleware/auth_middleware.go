package middleware

import (
	"net/http"
	"strings"

	"delivery-backend/internal/utils"

	"github.com/gin-gonic/gin"
)

// JWTAuth проверяет bearer-токен и кладет идентификатор и роль
// пользователя в контекст запроса
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Отсутствует токен авторизации"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Неверный формат токена"})
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Недействительный токен"})
			c.Abort()
			return
		}

		// Сервисные вызовы диспетчеризации идут с админским токеном
		if claims.LoggedInAs == utils.RoleAdmin {
			c.Set("user_id", uint(0)) // Для админа устанавливаем user_id = 0
			c.Set("role", utils.RoleAdmin)
			c.Next()
			return
		}

		if claims.UserID == 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Недействительный ID пользователя"})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("role", claims.LoggedInAs)
		c.Next()
	}
}
