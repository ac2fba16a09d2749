package routes

import (
	"delivery-backend/internal/handlers"
	"delivery-backend/internal/middleware"
	"delivery-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// SetupRoutes настраивает HTTP маршруты сервиса доставки.
// Весь API закрыт JWT аутентификацией: записи доставок создает
// и обновляет внешний сервис диспетчеризации заказов.
func SetupRoutes(api *gin.RouterGroup, progressSvc *services.ProgressService) {
	protected := api.Group("")
	protected.Use(middleware.JWTAuth())
	{
		// Роуты для записей о ходе доставки
		protected.POST("/progress", handlers.ProgressCreate(progressSvc))
		protected.GET("/progress", handlers.ProgressList(progressSvc))
		protected.GET("/progress/:id", handlers.ProgressGetByID(progressSvc))
		protected.PUT("/progress/:id", handlers.ProgressUpdate(progressSvc))
		protected.POST("/progress/:id/events", handlers.ProgressAppendEvent(progressSvc))
		protected.DELETE("/progress/:id", handlers.ProgressDelete(progressSvc))

		// Текущая запись и история доставок водителя
		protected.GET("/drivers/:driverId/progress", handlers.ProgressGetByDriver(progressSvc))
		protected.GET("/drivers/:driverId/progress/history", handlers.ProgressListByDriver(progressSvc))
	}
}
