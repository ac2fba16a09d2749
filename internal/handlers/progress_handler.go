package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"delivery-backend/internal/models"
	"delivery-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// ProgressCreateRequest - запрос диспетчеризации водителя
type ProgressCreateRequest struct {
	DriverID uint    `json:"driver_id" binding:"required"`
	OrderIDs []int64 `json:"order_ids"`
}

// progressError переводит доменную ошибку в HTTP ответ
func progressError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Запись доставки не найдена"})
	case errors.Is(err, services.ErrMaxOrdersExceeded):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Превышено максимальное количество заказов в доставке"})
	case errors.Is(err, services.ErrInvalidState), errors.Is(err, services.ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrRecordFinalized):
		c.JSON(http.StatusConflict, gin.H{"error": "Завершенная доставка не может быть изменена"})
	case errors.Is(err, services.ErrMissingInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Внутренняя ошибка сервера"})
	}
}

// ProgressCreate создает запись доставки для водителя или возвращает
// существующую активную
func ProgressCreate(svc *services.ProgressService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ProgressCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Требуется идентификатор водителя"})
			return
		}

		progress, err := svc.Create(c.Request.Context(), req.DriverID, req.OrderIDs)
		if err != nil {
			progressError(c, err)
			return
		}
		c.JSON(http.StatusCreated, progress)
	}
}

// ProgressGetByID возвращает запись доставки по идентификатору
func ProgressGetByID(svc *services.ProgressService) gin.HandlerFunc {
	return func(c *gin.Context) {
		progress, err := svc.FindByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			progressError(c, err)
			return
		}
		c.JSON(http.StatusOK, progress)
	}
}

// ProgressGetByDriver возвращает последнюю запись доставки водителя
func ProgressGetByDriver(svc *services.ProgressService) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID, err := strconv.ParseUint(c.Param("driverId"), 10, 64)
		if err != nil || driverID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный идентификатор водителя"})
			return
		}

		progress, err := svc.FindByDriver(c.Request.Context(), uint(driverID))
		if err != nil {
			progressError(c, err)
			return
		}
		c.JSON(http.StatusOK, progress)
	}
}

// ProgressUpdate применяет частичное обновление записи доставки
func ProgressUpdate(svc *services.ProgressService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var upd models.DeliveryProgressUpdate
		if err := c.ShouldBindJSON(&upd); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный формат обновления"})
			return
		}

		progress, err := svc.Update(c.Request.Context(), c.Param("id"), &upd)
		if err != nil {
			progressError(c, err)
			return
		}
		c.JSON(http.StatusOK, progress)
	}
}

// ProgressAppendEvent добавляет событие в историю доставки
func ProgressAppendEvent(svc *services.ProgressService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.DeliveryEventCreate
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Требуется тип события"})
			return
		}

		progress, err := svc.AppendEvent(c.Request.Context(), c.Param("id"), req.EventType, req.EventDetails)
		if err != nil {
			progressError(c, err)
			return
		}
		c.JSON(http.StatusOK, progress)
	}
}

// ProgressDelete удаляет запись доставки (административная операция)
func ProgressDelete(svc *services.ProgressService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Remove(c.Request.Context(), c.Param("id")); err != nil {
			progressError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Запись доставки удалена"})
	}
}

// ProgressList возвращает все записи доставок
func ProgressList(svc *services.ProgressService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.ListAll(c.Request.Context())
		if err != nil {
			progressError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"progress": list, "count": len(list)})
	}
}

// ProgressListByDriver возвращает страницу истории доставок водителя
func ProgressListByDriver(svc *services.ProgressService) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID, err := strconv.ParseUint(c.Param("driverId"), 10, 64)
		if err != nil || driverID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный идентификатор водителя"})
			return
		}

		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

		list, err := svc.ListByDriver(c.Request.Context(), uint(driverID), offset, limit)
		if err != nil {
			progressError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"progress": list, "count": len(list)})
	}
}
