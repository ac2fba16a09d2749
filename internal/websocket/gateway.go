package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"delivery-backend/internal/geo"
	"delivery-backend/internal/middleware"
	"delivery-backend/internal/models"
	"delivery-backend/internal/services"
	"delivery-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Gateway - шлюз трансляции геолокации. Держит долгоживущие
// подключения водителей и клиентов и рассылает обновления позиции
// только подписанным на конкретного водителя клиентам.
// Создается один раз при старте процесса и передается по ссылке,
// глобального состояния у пакета нет.
type Gateway struct {
	registry    *Registry
	cache       *services.LocationCacheService
	avgSpeedKmH float64
	upgrader    websocket.Upgrader
}

// NewGateway создает шлюз. avgSpeedKmH - средняя скорость для расчета
// ETA, cache - необязательное зеркало позиций в Redis.
func NewGateway(avgSpeedKmH float64, cache *services.LocationCacheService) *Gateway {
	return &Gateway{
		registry:    NewRegistry(),
		cache:       cache,
		avgSpeedKmH: avgSpeedKmH,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Разрешаем подключения с любых источников
			},
		},
	}
}

// Registry отдает реестр подключений шлюза
func (g *Gateway) Registry() *Registry {
	return g.registry
}

// extractToken достает bearer-токен из параметра запроса или заголовка
func extractToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	authHeader := c.GetHeader("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// Handler обрабатывает подключения к шлюзу геолокации.
// Непроверяемый токен или неизвестная роль обрывают соединение
// еще до апгрейда, дальнейшей обработки нет.
func (g *Gateway) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Upgrade") != "websocket" {
			c.String(http.StatusBadRequest, "Требуется WebSocket соединение")
			return
		}

		token := extractToken(c)
		if token == "" {
			log.Printf("Отклонено подключение без токена с %s", c.Request.RemoteAddr)
			c.String(http.StatusUnauthorized, "Отсутствует токен авторизации")
			return
		}

		claims, err := utils.ValidateToken(token)
		if err != nil {
			log.Printf("Отклонено подключение с недействительным токеном: %v", err)
			c.String(http.StatusUnauthorized, "Недействительный токен")
			return
		}

		var role Role
		switch claims.LoggedInAs {
		case utils.RoleDriver:
			role = RoleDriver
		case utils.RoleCustomer:
			role = RoleCustomer
		default:
			log.Printf("Отклонено подключение пользователя %d с неизвестной ролью %q", claims.UserID, claims.LoggedInAs)
			c.String(http.StatusUnauthorized, "Недопустимая роль")
			return
		}

		conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("Ошибка обновления соединения до WebSocket: %v", err)
			return
		}

		client := newClient(conn, claims.UserID, role)
		g.registry.Add(client)
		middleware.WSConnectionOpened(string(role))
		log.Printf("Подключение установлено: пользователь %d, роль %s", client.userID, client.role)

		client.sendMessage(MsgConnectionEstablished, gin.H{
			"user_id":   client.userID,
			"role":      client.role,
			"timestamp": time.Now().Unix(),
		})

		go client.writePump()
		go g.readPump(client)
	}
}

// readPump читает и обрабатывает сообщения одного подключения.
// Сообщения обрабатываются последовательно, поэтому рассылки одного
// водителя уходят подписчикам в порядке получения.
func (g *Gateway) readPump(client *Client) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Перехвачена паника в обработчике сообщений: %v", r)
		}
		g.disconnect(client)
	}()

	for {
		client.conn.SetReadDeadline(time.Now().Add(1 * time.Hour))

		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("Ошибка чтения сообщения от пользователя %d: %v", client.userID, err)
			}
			return
		}

		var envelope Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			client.sendMessage(MsgError, ErrorPayload{Message: "Некорректный формат сообщения"})
			continue
		}

		switch envelope.Type {
		case MsgPing:
			client.sendMessage(MsgPong, gin.H{"timestamp": time.Now().Unix()})
		case MsgUpdateDriverLocation:
			g.handleLocationUpdate(client, envelope.Payload)
		case MsgGetActiveDrivers:
			g.handleGetActiveDrivers(client)
		case MsgSubscribe:
			g.handleSubscribe(client, envelope.Payload)
		case MsgUnsubscribe:
			g.handleUnsubscribe(client, envelope.Payload)
		default:
			client.sendMessage(MsgError, ErrorPayload{Message: "Неизвестный тип сообщения: " + envelope.Type})
		}
	}
}

// disconnect снимает подключение с учета. Кэш позиции в реестре
// сохраняется для снимка активных водителей, зеркало в Redis
// очищается: новых обновлений от этого водителя не будет.
func (g *Gateway) disconnect(client *Client) {
	g.registry.Remove(client)
	client.closeSend()
	middleware.WSConnectionClosed(string(client.role))
	log.Printf("Подключение закрыто: пользователь %d, роль %s", client.userID, client.role)

	if client.role == RoleDriver && !g.registry.DriverOnline(client.userID) && g.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := g.cache.DropPosition(ctx, client.userID); err != nil {
			log.Printf("Ошибка очистки зеркала позиции водителя %d: %v", client.userID, err)
		}
	}
}

// handleLocationUpdate обрабатывает обновление позиции от водителя:
// обновляет кэш, считает ETA и рассылает позицию комнате водителя.
// Ошибки валидации возвращаются подтверждением с текстом ошибки,
// соединение не разрывается.
func (g *Gateway) handleLocationUpdate(client *Client, raw json.RawMessage) {
	if client.role != RoleDriver {
		client.sendMessage(MsgLocationUpdateAck, LocationUpdateAckPayload{
			Success: false,
			Error:   "Обновлять позицию может только водитель",
		})
		return
	}

	var payload UpdateDriverLocationPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		client.sendMessage(MsgLocationUpdateAck, LocationUpdateAckPayload{
			Success: false,
			Error:   "Некорректный формат координат",
		})
		return
	}
	if payload.DriverLocation == nil || payload.Destination == nil {
		client.sendMessage(MsgLocationUpdateAck, LocationUpdateAckPayload{
			Success: false,
			Error:   "Требуются координаты водителя и пункта назначения",
		})
		return
	}

	loc := *payload.DriverLocation
	g.registry.SetPosition(client.userID, loc)

	eta := geo.ETA(loc.Lat, loc.Lng, payload.Destination.Lat, payload.Destination.Lng, g.avgSpeedKmH)

	broadcast := DriverCurrentLocationPayload{
		DriverID: client.userID,
		Lat:      loc.Lat,
		Lng:      loc.Lng,
		ETA:      &eta,
	}
	data, err := json.Marshal(Message{Type: MsgDriverCurrentLocation, Payload: broadcast})
	if err != nil {
		log.Printf("Ошибка сериализации рассылки позиции: %v", err)
		return
	}

	members := g.registry.RoomMembers(RoomName(client.userID))
	for _, member := range members {
		member.enqueue(data)
	}
	middleware.TrackLocationUpdate(len(members))

	// Зеркалируем позицию для внешних читателей, ошибка не фатальна
	if g.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		mirror := models.DriverPosition{DriverID: client.userID, Lat: loc.Lat, Lng: loc.Lng, IsOnline: true}
		if err := g.cache.StorePosition(ctx, mirror); err != nil {
			log.Printf("Ошибка зеркалирования позиции водителя %d: %v", client.userID, err)
		}
		cancel()
	}

	client.sendMessage(MsgLocationUpdateAck, LocationUpdateAckPayload{
		Success: true,
		ETA:     &eta,
	})
}

// handleGetActiveDrivers отдает клиенту снимок известных позиций
func (g *Gateway) handleGetActiveDrivers(client *Client) {
	if client.role != RoleCustomer {
		client.sendMessage(MsgError, ErrorPayload{Message: "Список водителей доступен только клиенту"})
		return
	}

	snapshot := g.registry.Snapshot()
	client.sendMessage(MsgActiveDriversList, ActiveDriversListPayload{
		Drivers:   snapshot,
		Count:     len(snapshot),
		Timestamp: time.Now().Unix(),
	})
}

// handleSubscribe подключает клиента к комнате водителя. Если позиция
// водителя уже известна, она отправляется новому подписчику сразу,
// без ETA - тот станет известен при следующем живом обновлении.
func (g *Gateway) handleSubscribe(client *Client, raw json.RawMessage) {
	if client.role != RoleCustomer {
		client.sendMessage(MsgError, ErrorPayload{Message: "Подписка доступна только клиенту"})
		return
	}

	var payload SubscribePayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.DriverID == 0 {
		client.sendMessage(MsgSubscriptionAck, SubscriptionAckPayload{
			Success: false,
			Error:   "Требуется идентификатор водителя",
		})
		return
	}

	g.registry.Join(RoomName(payload.DriverID), client)

	if loc, ok := g.registry.Position(payload.DriverID); ok {
		client.sendMessage(MsgDriverCurrentLocation, DriverCurrentLocationPayload{
			DriverID: payload.DriverID,
			Lat:      loc.Lat,
			Lng:      loc.Lng,
			ETA:      nil,
		})
	}

	client.sendMessage(MsgSubscriptionAck, SubscriptionAckPayload{
		Success:  true,
		DriverID: payload.DriverID,
	})
}

// handleUnsubscribe отключает клиента от комнаты водителя
func (g *Gateway) handleUnsubscribe(client *Client, raw json.RawMessage) {
	if client.role != RoleCustomer {
		client.sendMessage(MsgError, ErrorPayload{Message: "Отписка доступна только клиенту"})
		return
	}

	var payload SubscribePayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.DriverID == 0 {
		client.sendMessage(MsgUnsubscriptionAck, SubscriptionAckPayload{
			Success: false,
			Error:   "Требуется идентификатор водителя",
		})
		return
	}

	g.registry.Leave(RoomName(payload.DriverID), client)

	client.sendMessage(MsgUnsubscriptionAck, SubscriptionAckPayload{
		Success:  true,
		DriverID: payload.DriverID,
	})
}
