package websocket

import (
	"encoding/json"

	"delivery-backend/internal/models"
)

// Типы входящих и исходящих сообщений шлюза геолокации
const (
	MsgUpdateDriverLocation = "updateDriverLocation"
	MsgGetActiveDrivers     = "getActiveDrivers"
	MsgSubscribe            = "subscribeToDriverLocation"
	MsgUnsubscribe          = "unsubscribeFromDriverLocation"

	MsgDriverCurrentLocation = "driverCurrentLocation"
	MsgLocationUpdateAck     = "locationUpdateAck"
	MsgActiveDriversList     = "activeDriversList"
	MsgSubscriptionAck       = "subscriptionAck"
	MsgUnsubscriptionAck     = "unsubscriptionAck"
	MsgError                 = "error"

	MsgConnectionEstablished = "CONNECTION_ESTABLISHED"
	MsgPing                  = "PING"
	MsgPong                  = "PONG"
)

// Envelope - конверт входящего сообщения, payload разбирается
// по типу сообщения
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message - конверт исходящего сообщения
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// UpdateDriverLocationPayload - позиция водителя и пункт назначения.
// Указатели позволяют отличить отсутствующие координаты от нулевых.
type UpdateDriverLocationPayload struct {
	DriverLocation *models.Location `json:"driver_location"`
	Destination    *models.Location `json:"destination"`
}

// SubscribePayload - запрос подписки на позицию водителя
type SubscribePayload struct {
	DriverID uint `json:"driverId"`
}

// DriverCurrentLocationPayload рассылается подписчикам комнаты водителя.
// ETA равен null в догоняющем сообщении при подписке: он известен
// только в момент живого обновления.
type DriverCurrentLocationPayload struct {
	DriverID uint     `json:"driverId"`
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	ETA      *float64 `json:"eta"`
}

// LocationUpdateAckPayload - подтверждение водителю
type LocationUpdateAckPayload struct {
	Success bool     `json:"success"`
	ETA     *float64 `json:"eta,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// ActiveDriversListPayload - снимок активных водителей для клиента
type ActiveDriversListPayload struct {
	Drivers   []models.DriverPosition `json:"drivers"`
	Count     int                     `json:"count"`
	Timestamp int64                   `json:"timestamp"`
}

// SubscriptionAckPayload - подтверждение подписки или отписки
type SubscriptionAckPayload struct {
	Success  bool   `json:"success"`
	DriverID uint   `json:"driverId"`
	Error    string `json:"error,omitempty"`
}

// ErrorPayload - структурированная ошибка, соединение не разрывается
type ErrorPayload struct {
	Message string `json:"message"`
}
