package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"delivery-backend/internal/middleware"
	"delivery-backend/internal/models"
	"delivery-backend/internal/services"
	"delivery-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(&models.DeliveryProgress{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	svc := services.NewProgressService(db)

	r := gin.New()
	api := r.Group("/api", middleware.JWTAuth())
	{
		api.POST("/progress", ProgressCreate(svc))
		api.GET("/progress", ProgressList(svc))
		api.GET("/progress/:id", ProgressGetByID(svc))
		api.PUT("/progress/:id", ProgressUpdate(svc))
		api.POST("/progress/:id/events", ProgressAppendEvent(svc))
		api.DELETE("/progress/:id", ProgressDelete(svc))
		api.GET("/drivers/:driverId/progress", ProgressGetByDriver(svc))
		api.GET("/drivers/:driverId/progress/history", ProgressListByDriver(svc))
	}

	token, err := utils.GenerateAdminJWT()
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return r, token
}

func doRequest(t *testing.T, r *gin.Engine, token, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestProgressCreate_HTTP(t *testing.T) {
	r, token := setupRouter(t)

	w := doRequest(t, r, token, http.MethodPost, "/api/progress", gin.H{
		"driver_id": 1,
		"order_ids": []int64{10, 11},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var created models.DeliveryProgress
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.CurrentState != models.StateDriverReady || len(created.Stages) != 5 {
		t.Fatalf("unexpected record: state=%s stages=%d", created.CurrentState, len(created.Stages))
	}

	// Повторная диспетчеризация возвращает ту же запись
	w2 := doRequest(t, r, token, http.MethodPost, "/api/progress", gin.H{
		"driver_id": 1,
		"order_ids": []int64{12},
	})
	if w2.Code != http.StatusCreated {
		t.Fatalf("second create status = %d", w2.Code)
	}
	var again models.DeliveryProgress
	if err := json.Unmarshal(w2.Body.Bytes(), &again); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if again.ID != created.ID {
		t.Fatalf("re-dispatch created new record: %s vs %s", again.ID, created.ID)
	}
}

func TestProgressCreate_Unauthorized(t *testing.T) {
	r, _ := setupRouter(t)

	w := doRequest(t, r, "", http.MethodPost, "/api/progress", gin.H{"driver_id": 1})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestProgressUpdate_MaxOrders_HTTP(t *testing.T) {
	r, token := setupRouter(t)

	w := doRequest(t, r, token, http.MethodPost, "/api/progress", gin.H{
		"driver_id": 2,
		"order_ids": []int64{1},
	})
	var created models.DeliveryProgress
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	w2 := doRequest(t, r, token, http.MethodPut, "/api/progress/"+created.ID, gin.H{
		"order_ids": []int64{1, 2, 3, 4},
	})
	if w2.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422; body = %s", w2.Code, w2.Body.String())
	}
}

func TestProgressGetByID_NotFound(t *testing.T) {
	r, token := setupRouter(t)

	w := doRequest(t, r, token, http.MethodGet, "/api/progress/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestProgressAppendEvent_HTTP(t *testing.T) {
	r, token := setupRouter(t)

	w := doRequest(t, r, token, http.MethodPost, "/api/progress", gin.H{
		"driver_id": 3,
		"order_ids": []int64{1},
	})
	var created models.DeliveryProgress
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	w2 := doRequest(t, r, token, http.MethodPost, "/api/progress/"+created.ID+"/events", gin.H{
		"event_type": "pickup_complete",
	})
	if w2.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w2.Code, w2.Body.String())
	}
	var updated models.DeliveryProgress
	if err := json.Unmarshal(w2.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(updated.Events) != 1 || updated.Events[0].EventType != models.EventPickupComplete {
		t.Fatalf("events = %+v", updated.Events)
	}
}

func TestProgressDelete_HTTP(t *testing.T) {
	r, token := setupRouter(t)

	w := doRequest(t, r, token, http.MethodPost, "/api/progress", gin.H{
		"driver_id": 4,
		"order_ids": []int64{1},
	})
	var created models.DeliveryProgress
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if w2 := doRequest(t, r, token, http.MethodDelete, "/api/progress/"+created.ID, nil); w2.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w2.Code)
	}
	if w3 := doRequest(t, r, token, http.MethodGet, "/api/progress/"+created.ID, nil); w3.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", w3.Code)
	}
}

func TestProgressGetByDriver_HTTP(t *testing.T) {
	r, token := setupRouter(t)

	w := doRequest(t, r, token, http.MethodPost, "/api/progress", gin.H{
		"driver_id": 5,
		"order_ids": []int64{7},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}
	var created models.DeliveryProgress
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	w2 := doRequest(t, r, token, http.MethodGet, "/api/drivers/5/progress", nil)
	if w2.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w2.Code, w2.Body.String())
	}
	var found models.DeliveryProgress
	if err := json.Unmarshal(w2.Body.Bytes(), &found); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if found.ID != created.ID {
		t.Fatalf("found %s, want %s", found.ID, created.ID)
	}

	// У водителя без доставок записи нет
	if w3 := doRequest(t, r, token, http.MethodGet, "/api/drivers/99/progress", nil); w3.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w3.Code)
	}

	// Некорректный идентификатор отклоняется
	if w4 := doRequest(t, r, token, http.MethodGet, "/api/drivers/abc/progress", nil); w4.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w4.Code)
	}
}

func TestProgressListByDriver_HTTP(t *testing.T) {
	r, token := setupRouter(t)

	w := doRequest(t, r, token, http.MethodPost, "/api/progress", gin.H{
		"driver_id": 6,
		"order_ids": []int64{8},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}

	w2 := doRequest(t, r, token, http.MethodGet, "/api/drivers/6/progress/history?offset=0&limit=10", nil)
	if w2.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w2.Code, w2.Body.String())
	}
	var page struct {
		Progress []models.DeliveryProgress `json:"progress"`
		Count    int                       `json:"count"`
	}
	if err := json.Unmarshal(w2.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Count != 1 || len(page.Progress) != 1 {
		t.Fatalf("history page = %+v", page)
	}
}
