package ws

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5"

	"github.com/tableorder/api/internal/auth"
	"github.com/tableorder/api/internal/database"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // staff sockets carry a JWT, table sockets a live session id
	},
}

// Client is one WebSocket connection subscribed to a single room.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	room string
	send chan []byte
}

// ReadPump only watches for disconnects; clients never send commands over
// the socket.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket error: %v", err)
			}
			break
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// One event per frame: clients JSON.parse each message.
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) attach(w http.ResponseWriter, r *http.Request, room string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		room: room,
		send: make(chan []byte, 256),
	}
	h.join(client)

	go client.WritePump()
	go client.ReadPump()
}

// ServeStaff upgrades a staff console connection.
// Endpoint: WS /ws/staff?token=JWT
func ServeStaff(hub *Hub, jwtSecret string, w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	if _, err := auth.ValidateToken(jwtSecret, tokenStr); err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	hub.attach(w, r, StaffRoom)
}

// SessionLookup resolves a table's active session.
type SessionLookup interface {
	GetActiveSession(ctx context.Context, tableID uuid.UUID) (database.TableSession, error)
}

// ServeTable upgrades a customer connection for one table session. The
// session must still be the table's active one.
// Endpoint: WS /ws/tables/{tableId}?session_id=UUID
func ServeTable(hub *Hub, sessions SessionLookup, w http.ResponseWriter, r *http.Request) {
	tableID, err := uuid.Parse(chi.URLParam(r, "tableId"))
	if err != nil {
		http.Error(w, "invalid table id", http.StatusBadRequest)
		return
	}
	sessionID, err := uuid.Parse(r.URL.Query().Get("session_id"))
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	session, err := sessions.GetActiveSession(r.Context(), tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "no active session", http.StatusNotFound)
			return
		}
		log.Printf("ERROR: ws get active session: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if session.ID != sessionID {
		http.Error(w, "session is not active", http.StatusForbidden)
		return
	}

	hub.attach(w, r, SessionRoom(sessionID))
}
