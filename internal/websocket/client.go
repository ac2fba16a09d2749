package websocket

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// Размер буфера исходящих сообщений на одно подключение
const sendBufferSize = 64

// Client - одно живое подключение водителя или клиента.
// Роль присваивается при рукопожатии и далее не меняется.
// Все записи в сокет идут через канал send и единственную
// горутину writePump, что сохраняет порядок сообщений.
type Client struct {
	conn   *websocket.Conn
	userID uint
	role   Role

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(conn *websocket.Conn, userID uint, role Role) *Client {
	return &Client{
		conn:   conn,
		userID: userID,
		role:   role,
		send:   make(chan []byte, sendBufferSize),
	}
}

// writePump последовательно пишет сообщения из канала в сокет
func (c *Client) writePump() {
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("Ошибка отправки сообщения пользователю %d: %v", c.userID, err)
			c.conn.Close()
			// Дочитываем канал до закрытия, чтобы не блокировать отправителей
			for range c.send {
			}
			return
		}
	}
	c.conn.Close()
}

// enqueue ставит сообщение в очередь отправки. После закрытия канала
// сообщение молча отбрасывается. Если буфер клиента переполнен,
// соединение считается мертвым и закрывается, чтобы рассылка не
// блокировалась на медленном получателе.
func (c *Client) enqueue(message []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- message:
	default:
		log.Printf("Буфер отправки пользователя %d переполнен, закрываем соединение", c.userID)
		c.conn.Close()
	}
}

// sendMessage сериализует и ставит в очередь исходящее сообщение
func (c *Client) sendMessage(msgType string, payload interface{}) {
	data, err := json.Marshal(Message{Type: msgType, Payload: payload})
	if err != nil {
		log.Printf("Ошибка сериализации сообщения %s: %v", msgType, err)
		return
	}
	c.enqueue(data)
}

// closeSend закрывает канал отправки ровно один раз
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
