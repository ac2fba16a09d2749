package websocket

import (
	"fmt"
	"sync"

	"delivery-backend/internal/models"
)

// Role - роль подключения, определяется один раз при рукопожатии
// и не меняется до отключения
type Role string

const (
	RoleDriver   Role = "DRIVER"
	RoleCustomer Role = "CUSTOMER"
)

// RoomName возвращает имя комнаты трансляции позиции водителя
func RoomName(driverID uint) string {
	return fmt.Sprintf("driver_location_%d", driverID)
}

// Registry - реестр активных подключений и кэш последних позиций
// водителей. Принадлежит единственному экземпляру шлюза и изменяется
// только его обработчиками.
type Registry struct {
	mutex     sync.RWMutex
	drivers   map[uint]map[*Client]bool
	customers map[uint]map[*Client]bool
	rooms     map[string]map[*Client]bool
	positions map[uint]models.Location
}

func NewRegistry() *Registry {
	return &Registry{
		drivers:   make(map[uint]map[*Client]bool),
		customers: make(map[uint]map[*Client]bool),
		rooms:     make(map[string]map[*Client]bool),
		positions: make(map[uint]models.Location),
	}
}

// Add регистрирует подключение в реестре его роли
func (r *Registry) Add(client *Client) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	byUser := r.customers
	if client.role == RoleDriver {
		byUser = r.drivers
	}
	if _, ok := byUser[client.userID]; !ok {
		byUser[client.userID] = make(map[*Client]bool)
	}
	byUser[client.userID][client] = true
}

// Remove удаляет подключение из реестра роли и из всех комнат.
// Кэш позиции при этом сохраняется: снимок активных водителей
// продолжает отдавать последние координаты с isOnline=false.
func (r *Registry) Remove(client *Client) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	byUser := r.customers
	if client.role == RoleDriver {
		byUser = r.drivers
	}
	if conns, ok := byUser[client.userID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(byUser, client.userID)
		}
	}

	for name, members := range r.rooms {
		delete(members, client)
		if len(members) == 0 {
			delete(r.rooms, name)
		}
	}
}

// Join добавляет подключение в комнату, повторный вход не ошибка
func (r *Registry) Join(room string, client *Client) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.rooms[room]; !ok {
		r.rooms[room] = make(map[*Client]bool)
	}
	r.rooms[room][client] = true
}

// Leave убирает подключение из комнаты, выход без входа не ошибка
func (r *Registry) Leave(room string, client *Client) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if members, ok := r.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
}

// RoomMembers возвращает срез подключений комнаты
func (r *Registry) RoomMembers(room string) []*Client {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	members := make([]*Client, 0, len(r.rooms[room]))
	for client := range r.rooms[room] {
		members = append(members, client)
	}
	return members
}

// SetPosition перезаписывает последнюю известную позицию водителя
func (r *Registry) SetPosition(driverID uint, loc models.Location) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.positions[driverID] = loc
}

// Position возвращает последнюю известную позицию водителя
func (r *Registry) Position(driverID uint) (models.Location, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	loc, ok := r.positions[driverID]
	return loc, ok
}

// DriverOnline сообщает, есть ли у водителя живое подключение
func (r *Registry) DriverOnline(driverID uint) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.drivers[driverID]) > 0
}

// Snapshot возвращает снимок всех известных позиций водителей.
// isOnline отражает наличие живого подключения, а не свежесть позиции.
func (r *Registry) Snapshot() []models.DriverPosition {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	snapshot := make([]models.DriverPosition, 0, len(r.positions))
	for driverID, loc := range r.positions {
		snapshot = append(snapshot, models.DriverPosition{
			DriverID: driverID,
			Lat:      loc.Lat,
			Lng:      loc.Lng,
			IsOnline: len(r.drivers[driverID]) > 0,
		})
	}
	return snapshot
}
