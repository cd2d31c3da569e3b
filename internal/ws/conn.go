package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"recipedia/internal/auth"
	"recipedia/internal/config"
	"recipedia/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	frameJoinRoom  = "join-room"
	frameLeaveRoom = "leave-room"
	frameJoined    = "joined"
	frameLeft      = "left"
	frameError     = "error"
	frameRemoved   = "removed"

	sendQueueSize = 64
)

// MembershipChecker 判断用户能否订阅某个房间。
type MembershipChecker interface {
	IsMember(ctx context.Context, roomID, userID uint) (bool, error)
}

// Client 是一条 websocket 连接；rooms 只由 readPump 所在的 goroutine 读写。
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	members MembershipChecker
	userID  uint
	rooms   map[uint]*RoomHub
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type InboundMessage struct {
	Type   string `json:"type"`
	RoomID uint   `json:"room_id"`
}

type replyFrame struct {
	Type   string `json:"type"`
	RoomID uint   `json:"room_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Serve 升级为 websocket。token 取自 query 参数或 Authorization 头；
// 可选的 room_id 参数在连接建立时直接订阅该房间。
func Serve(h *Hub, db *gorm.DB, cfg config.Config, members MembershipChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token = auth.BearerToken(c)
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		user, err := auth.ResolveUser(db.WithContext(c.Request.Context()), cfg.JWTSecret, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var initial uint
		if s := c.Query("room_id"); s != "" {
			rid, err := strconv.ParseUint(s, 10, 64)
			if err != nil || rid == 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room_id"})
				return
			}
			ok, err := members.IsMember(c.Request.Context(), uint(rid), user.ID)
			if err != nil {
				log.Error().Err(err).Uint64("room_id", rid).Msg("check membership")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
			if !ok {
				c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this room"})
				return
			}
			initial = uint(rid)
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		client := &Client{
			hub:     h,
			conn:    conn,
			send:    make(chan []byte, sendQueueSize),
			members: members,
			userID:  user.ID,
			rooms:   make(map[uint]*RoomHub),
		}
		metrics.WsConnections.Inc()
		if initial != 0 {
			client.subscribe(initial)
		}

		go client.writePump()
		client.readPump()
	}
}

func (c *Client) reply(f replyFrame) {
	b, err := json.Marshal(f)
	if err != nil {
		return
	}
	select {
	case c.send <- b:
	default:
		metrics.RealtimeDroppedTotal.Inc()
	}
}

// subscribe 总是重新注册：注册是幂等的，而连接可能已被 Evict 移出房间。
func (c *Client) subscribe(roomID uint) {
	rh := c.hub.GetRoom(roomID)
	if rh == nil || !rh.join(c) {
		c.reply(replyFrame{Type: frameError, RoomID: roomID, Error: "server shutting down"})
		return
	}
	c.rooms[roomID] = rh
	c.reply(replyFrame{Type: frameJoined, RoomID: roomID})
}

func (c *Client) unsubscribe(roomID uint) {
	if rh, ok := c.rooms[roomID]; ok {
		rh.leave(c)
		delete(c.rooms, roomID)
	}
	c.reply(replyFrame{Type: frameLeft, RoomID: roomID})
}

func (c *Client) handle(in InboundMessage) {
	switch in.Type {
	case frameJoinRoom:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		ok, err := c.members.IsMember(ctx, in.RoomID, c.userID)
		cancel()
		switch {
		case err != nil:
			log.Error().Err(err).Uint("room_id", in.RoomID).Uint("user_id", c.userID).Msg("check membership")
			c.reply(replyFrame{Type: frameError, RoomID: in.RoomID, Error: "internal error"})
		case !ok:
			c.reply(replyFrame{Type: frameError, RoomID: in.RoomID, Error: "not a member of this room"})
		default:
			c.subscribe(in.RoomID)
		}
	case frameLeaveRoom:
		c.unsubscribe(in.RoomID)
	default:
		c.reply(replyFrame{Type: frameError, Error: "unknown frame type"})
	}
}

func (c *Client) readPump() {
	defer func() {
		// 先退订全部房间，再关闭 send，避免房间 goroutine 向已关闭的通道写入
		for id, rh := range c.rooms {
			rh.leave(c)
			delete(c.rooms, id)
		}
		close(c.send)
		metrics.WsConnections.Dec()
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(4 << 10)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var in InboundMessage
		if err := json.Unmarshal(data, &in); err != nil {
			c.reply(replyFrame{Type: frameError, Error: "malformed frame"})
			continue
		}
		c.handle(in)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			_ = w.Close()
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
