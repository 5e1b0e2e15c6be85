package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"velha-online/internal/game"
	"velha-online/internal/session"
	"velha-online/internal/store"
)

// Hub upgrades websocket connections and runs one session per connection.
// Intents come in and snapshots go out as {action, data} envelopes.
type Hub struct {
	store   store.Store
	codeLen int

	mu      sync.Mutex
	clients map[string]*client
}

func NewHub(st store.Store, codeLen int) *Hub {
	return &Hub{
		store:   st,
		codeLen: codeLen,
		clients: make(map[string]*client),
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // trusted-client model, any origin may play
	},
}

type envelope struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type outEnvelope struct {
	Action string `json:"action"`
	Data   any    `json:"data,omitempty"`
}

type client struct {
	sess *session.Session
	conn *websocket.Conn

	outbox chan outEnvelope
	done   chan struct{}
	once   sync.Once
}

func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	sess := session.New(h.store, h.codeLen)
	cl := &client{
		sess:   sess,
		conn:   conn,
		outbox: make(chan outEnvelope, 32),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[sess.ID] = cl
	h.mu.Unlock()

	log.Printf("ws: client %s connected", sess.ID)

	go cl.writeLoop()
	cl.readLoop(c.Request.Context())

	cl.shutdown()
	h.mu.Lock()
	delete(h.clients, sess.ID)
	h.mu.Unlock()
	log.Printf("ws: client %s disconnected", sess.ID)
}

func (cl *client) shutdown() {
	cl.once.Do(func() {
		cl.sess.Leave()
		close(cl.done)
		_ = cl.conn.Close()
	})
}

// writeLoop is the only goroutine writing to the socket. It merges the
// session's update and chat streams with direct replies.
func (cl *client) writeLoop() {
	for {
		select {
		case <-cl.done:
			return
		case out := <-cl.outbox:
			if err := cl.conn.WriteJSON(out); err != nil {
				log.Printf("ws: write to %s failed: %v", cl.sess.ID, err)
				cl.shutdown()
				return
			}
		case up := <-cl.sess.Updates():
			if err := cl.conn.WriteJSON(outEnvelope{Action: "state", Data: stateData(up)}); err != nil {
				log.Printf("ws: write to %s failed: %v", cl.sess.ID, err)
				cl.shutdown()
				return
			}
		case msg := <-cl.sess.Chat():
			data := gin.H{
				"player_name": msg.PlayerName,
				"message":     msg.Text,
				"created_at":  msg.CreatedAt,
			}
			if err := cl.conn.WriteJSON(outEnvelope{Action: "chat", Data: data}); err != nil {
				log.Printf("ws: write to %s failed: %v", cl.sess.ID, err)
				cl.shutdown()
				return
			}
		}
	}
}

func (cl *client) readLoop(ctx context.Context) {
	for {
		var msg envelope
		if err := cl.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Action {
		case "host":
			var req struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				cl.reply("error", gin.H{"message": "invalid payload"})
				continue
			}
			code, err := cl.sess.Host(ctx, req.Name)
			if err != nil {
				cl.replyErr(err)
				continue
			}
			cl.reply("hosted", gin.H{"code": code})

		case "join":
			var req struct {
				Code string `json:"code"`
				Name string `json:"name"`
			}
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				cl.reply("error", gin.H{"message": "invalid payload"})
				continue
			}
			if err := cl.sess.Join(ctx, req.Code, req.Name); err != nil {
				cl.replyErr(err)
				continue
			}
			cl.reply("joined", gin.H{"code": cl.sess.RoomID()})

		case "move":
			var req struct {
				Index int `json:"index"`
			}
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				cl.reply("error", gin.H{"message": "invalid payload"})
				continue
			}
			if err := cl.sess.SubmitMove(ctx, req.Index); err != nil {
				cl.replyErr(err)
			}

		case "restart":
			if err := cl.sess.Restart(ctx); err != nil {
				cl.replyErr(err)
			}

		case "chat":
			var req struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				cl.reply("error", gin.H{"message": "invalid payload"})
				continue
			}
			if err := cl.sess.SendChat(ctx, req.Text); err != nil {
				cl.replyErr(err)
			}

		default:
			log.Printf("ws: client %s sent unknown action %q", cl.sess.ID, msg.Action)
			cl.reply("error", gin.H{"message": "unknown action"})
		}
	}
}

func (cl *client) reply(action string, data any) {
	select {
	case cl.outbox <- outEnvelope{Action: action, Data: data}:
	case <-cl.done:
	}
}

func (cl *client) replyErr(err error) {
	cl.reply("error", gin.H{"message": userMessage(err)})
}

func stateData(up session.Update) gin.H {
	cells := make([]string, game.Size)
	for i, c := range up.Board {
		cells[i] = string(c)
	}
	data := gin.H{
		"room_id": up.RoomID,
		"board":   cells,
		"my_turn": up.MyTurn,
		"status":  string(up.Status),
		"player1": up.PlayerOne,
		"player2": up.PlayerTwo,
	}
	if up.Winner != "" {
		data["winner"] = string(up.Winner)
	}
	if up.Notice != "" {
		data["notice"] = up.Notice
	}
	return data
}

// userMessage maps every failure class to a short human-readable message.
// Nothing is silently dropped; unknown errors surface as connectivity
// trouble rather than a fake success.
func userMessage(err error) string {
	switch {
	case errors.Is(err, store.ErrRoomNotFound):
		return "room not found, check the code"
	case errors.Is(err, session.ErrRoomFull):
		return "room is full"
	case errors.Is(err, session.ErrRoomClosed):
		return "this game has already finished"
	case errors.Is(err, session.ErrNotYourTurn):
		return "not your turn"
	case errors.Is(err, session.ErrCellOccupied):
		return "that cell is taken"
	case errors.Is(err, session.ErrCreateConflict):
		return "could not create a room, try again"
	case errors.Is(err, session.ErrNoActiveRoom):
		return "no active game"
	case errors.Is(err, session.ErrBusy):
		return "hold on, still applying your last action"
	case errors.Is(err, session.ErrGameInProgress):
		return "finish the game before restarting"
	case errors.Is(err, game.ErrIllegalMove):
		return "illegal move"
	default:
		return "server unreachable, try again"
	}
}
