package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

type DeliveryState string

const (
	StateDriverReady       DeliveryState = "driver_ready"          // Водитель назначен и готов
	StateWaitingForPickup  DeliveryState = "waiting_for_pickup"    // Ожидание готовности заказа
	StateRestaurantPickup  DeliveryState = "restaurant_pickup"     // Забор заказа из ресторана
	StateEnRouteToCustomer DeliveryState = "en_route_to_customer"  // В пути к клиенту
	StateDeliveryComplete  DeliveryState = "delivery_complete"     // Доставка завершена (терминальное состояние)
)

// DeliveryStateOrder - фиксированный порядок этапов доставки.
// Переходы допускаются только вперед по этому списку.
var DeliveryStateOrder = []DeliveryState{
	StateDriverReady,
	StateWaitingForPickup,
	StateRestaurantPickup,
	StateEnRouteToCustomer,
	StateDeliveryComplete,
}

var deliveryStateIndex = map[DeliveryState]int{
	StateDriverReady:       0,
	StateWaitingForPickup:  1,
	StateRestaurantPickup:  2,
	StateEnRouteToCustomer: 3,
	StateDeliveryComplete:  4,
}

// IsValid проверяет, что значение состояния входит в перечисление
func (s DeliveryState) IsValid() bool {
	_, ok := deliveryStateIndex[s]
	return ok
}

// IsTerminal возвращает true для завершенной доставки
func (s DeliveryState) IsTerminal() bool {
	return s == StateDeliveryComplete
}

// CanTransition проверяет, что переход from -> to движется только вперед.
// Переход в то же состояние разрешен (идемпотентное обновление).
func CanTransition(from, to DeliveryState) bool {
	fi, ok := deliveryStateIndex[from]
	if !ok {
		return false
	}
	ti, ok := deliveryStateIndex[to]
	if !ok {
		return false
	}
	return ti >= fi
}

// NextDeliveryState возвращает следующее состояние по фиксированному
// порядку этапов; для терминального состояния второй результат false
func NextDeliveryState(s DeliveryState) (DeliveryState, bool) {
	i, ok := deliveryStateIndex[s]
	if !ok || i+1 >= len(DeliveryStateOrder) {
		return "", false
	}
	return DeliveryStateOrder[i+1], true
}

type StageStatus string

const (
	StageStatusPending    StageStatus = "pending"     // Этап еще не начат
	StageStatusInProgress StageStatus = "in_progress" // Этап выполняется
	StageStatusCompleted  StageStatus = "completed"   // Этап завершен
	StageStatusFailed     StageStatus = "failed"      // Этап завершился с ошибкой
)

type EventType string

const (
	EventDriverStart      EventType = "driver_start"      // Водитель начал выполнение
	EventPickupComplete   EventType = "pickup_complete"   // Заказ забран из ресторана
	EventDeliveryComplete EventType = "delivery_complete" // Заказ доставлен клиенту
)

// DeliveryStage представляет один из пяти этапов доставки
type DeliveryStage struct {
	State     DeliveryState `json:"state"`
	Status    StageStatus   `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  int64         `json:"duration"` // Длительность этапа в секундах
	Details   string        `json:"details,omitempty"`
}

// DeliveryEvent представляет дискретное событие в истории доставки
type DeliveryEvent struct {
	EventType      EventType `json:"event_type"`
	EventTimestamp time.Time `json:"event_timestamp"`
	EventDetails   string    `json:"event_details,omitempty"`
}

// StageList хранится в БД как JSON-колонка
type StageList []DeliveryStage

func (l StageList) Value() (driver.Value, error) {
	return json.Marshal(l)
}

func (l *StageList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("неподдерживаемый тип для StageList: %T", src)
	}
}

// EventList хранится в БД как JSON-колонка, только добавление
type EventList []DeliveryEvent

func (l EventList) Value() (driver.Value, error) {
	return json.Marshal(l)
}

func (l *EventList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("неподдерживаемый тип для EventList: %T", src)
	}
}

// OrderIDList - список идентификаторов заказов, сериализуется в формате
// массива Postgres через lib/pq
type OrderIDList []int64

func (l OrderIDList) Value() (driver.Value, error) {
	return pq.Int64Array(l).Value()
}

func (l *OrderIDList) Scan(src interface{}) error {
	var arr pq.Int64Array
	if err := arr.Scan(src); err != nil {
		return err
	}
	*l = OrderIDList(arr)
	return nil
}

// MaxOrdersPerRun - максимальное число заказов в одной доставке
const MaxOrdersPerRun = 3

// DeliveryProgress - запись о выполнении мультизаказной доставки водителем.
// На каждого водителя может существовать не более одной записи
// в нетерминальном состоянии.
type DeliveryProgress struct {
	ID                     string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	DriverID               uint          `json:"driver_id" gorm:"not null;index"`
	OrderIDs               OrderIDList   `json:"order_ids" gorm:"type:text"`
	CurrentState           DeliveryState `json:"current_state" gorm:"type:varchar(30);default:'driver_ready'"`
	PreviousState          DeliveryState `json:"previous_state,omitempty" gorm:"type:varchar(30);default:''"`
	NextState              DeliveryState `json:"next_state,omitempty" gorm:"type:varchar(30);default:''"`
	Stages                 StageList     `json:"stages" gorm:"type:jsonb"`
	Events                 EventList     `json:"events" gorm:"type:jsonb"`
	EstimatedTimeRemaining float64       `json:"estimated_time_remaining" gorm:"default:0"`
	ActualTimeSpent        float64       `json:"actual_time_spent" gorm:"default:0"`
	TotalDistanceTravelled float64       `json:"total_distance_travelled" gorm:"default:0"`
	TotalTips              float64       `json:"total_tips" gorm:"default:0"`
	CreatedAt              time.Time     `json:"created_at"`
	UpdatedAt              time.Time     `json:"updated_at"`
}

func (DeliveryProgress) TableName() string {
	return "delivery_progress"
}

// NewStages создает пять этапов в фиксированном порядке:
// первый этап сразу in_progress, остальные pending.
func NewStages(now time.Time) StageList {
	stages := make(StageList, 0, len(DeliveryStateOrder))
	for i, state := range DeliveryStateOrder {
		status := StageStatusPending
		if i == 0 {
			status = StageStatusInProgress
		}
		stages = append(stages, DeliveryStage{
			State:     state,
			Status:    status,
			Timestamp: now,
		})
	}
	return stages
}

// DeliveryProgressUpdate - частичное обновление записи доставки.
// Указатели отличают "поле не передано" от нулевого значения.
type DeliveryProgressUpdate struct {
	OrderIDs               *OrderIDList   `json:"order_ids,omitempty"`
	CurrentState           *DeliveryState `json:"current_state,omitempty"`
	PreviousState          *DeliveryState `json:"previous_state,omitempty"`
	NextState              *DeliveryState `json:"next_state,omitempty"`
	Stages                 *StageList     `json:"stages,omitempty"`
	EstimatedTimeRemaining *float64       `json:"estimated_time_remaining,omitempty"`
	ActualTimeSpent        *float64       `json:"actual_time_spent,omitempty"`
	TotalDistanceTravelled *float64       `json:"total_distance_travelled,omitempty"`
	TotalTips              *float64       `json:"total_tips,omitempty"`
}

// DeliveryEventCreate - запрос на добавление события в историю доставки
type DeliveryEventCreate struct {
	EventType    EventType `json:"event_type" binding:"required"`
	EventDetails string    `json:"event_details"`
}

// IsValid проверяет тип события
func (t EventType) IsValid() bool {
	switch t {
	case EventDriverStart, EventPickupComplete, EventDeliveryComplete:
		return true
	}
	return false
}
