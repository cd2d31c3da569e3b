package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"recipedia/internal/metrics"

	"github.com/rs/zerolog/log"
)

const roomQueueSize = 256

// Envelope 是服务端推送给客户端的帧。
type Envelope struct {
	Type    string `json:"type"`
	RoomID  uint   `json:"room_id"`
	Payload any    `json:"payload,omitempty"`
}

// Hub 管理房间级别的广播组，组在首次订阅时创建。
type Hub struct {
	mu     sync.RWMutex
	rooms  map[uint]*RoomHub
	closed bool
}

func NewHub() *Hub { return &Hub{rooms: make(map[uint]*RoomHub)} }

// GetRoom 若房间未初始化则懒加载一个 RoomHub；Hub 关闭后返回 nil。
func (h *Hub) GetRoom(roomID uint) *RoomHub {
	h.mu.RLock()
	room := h.rooms[roomID]
	h.mu.RUnlock()
	if room != nil {
		return room
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	room = h.rooms[roomID]
	if room != nil {
		return room
	}
	room = NewRoomHub(roomID)
	h.rooms[roomID] = room
	go room.run()
	return room
}

func (h *Hub) lookup(roomID uint) *RoomHub {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[roomID]
}

func (h *Hub) Online(roomID uint) int {
	room := h.lookup(roomID)
	if room == nil {
		return 0
	}
	return room.Online()
}

// Broadcast 向房间内的订阅者推送事件；发送即忘，队列满时丢弃。
func (h *Hub) Broadcast(roomID uint, event string, payload any) {
	metrics.RealtimeEventsTotal.WithLabelValues(event).Inc()
	room := h.lookup(roomID)
	if room == nil {
		return
	}
	b, err := json.Marshal(Envelope{Type: event, RoomID: roomID, Payload: payload})
	if err != nil {
		log.Error().Err(err).Uint("room_id", roomID).Str("event", event).Msg("marshal realtime event")
		return
	}
	select {
	case room.broadcast <- b:
	case <-room.done:
	default:
		metrics.RealtimeDroppedTotal.Inc()
	}
}

// Evict 把某用户的全部连接移出房间，并通知这些连接已被移除。
// 返回后该房间的广播不会再发往这些连接。
func (h *Hub) Evict(roomID, userID uint) {
	room := h.lookup(roomID)
	if room == nil {
		return
	}
	select {
	case room.evict <- userID:
	case <-room.exited:
	}
}

// Close 停止全部房间 goroutine，用于优雅停服。
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, room := range h.rooms {
		room.stop()
		delete(h.rooms, id)
	}
}

type RoomHub struct {
	roomID     uint
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	evict      chan uint
	broadcast  chan []byte
	done       chan struct{}
	exited     chan struct{}
	stopOnce   sync.Once
	online     int32
}

func NewRoomHub(roomID uint) *RoomHub {
	return &RoomHub{
		roomID:     roomID,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		evict:      make(chan uint),
		broadcast:  make(chan []byte, roomQueueSize),
		done:       make(chan struct{}),
		exited:     make(chan struct{}),
	}
}

func (rh *RoomHub) stop() { rh.stopOnce.Do(func() { close(rh.done) }) }

// join 与 leave 在 run 退出后立即返回；run 退出后不会再向任何客户端发送。
func (rh *RoomHub) join(c *Client) bool {
	select {
	case rh.register <- c:
		return true
	case <-rh.exited:
		return false
	}
}

func (rh *RoomHub) leave(c *Client) {
	select {
	case rh.unregister <- c:
	case <-rh.exited:
	}
}

// run 串行处理订阅变更与广播；unregister 被接收后不会再向该客户端发送。
func (rh *RoomHub) run() {
	defer close(rh.exited)
	for {
		select {
		case <-rh.done:
			return
		case c := <-rh.register:
			rh.clients[c] = true
			atomic.StoreInt32(&rh.online, int32(len(rh.clients)))
		case c := <-rh.unregister:
			delete(rh.clients, c)
			atomic.StoreInt32(&rh.online, int32(len(rh.clients)))
		case userID := <-rh.evict:
			rh.dropUser(userID)
		case msg := <-rh.broadcast:
			for c := range rh.clients {
				select {
				case c.send <- msg:
				default:
					// 慢客户端只丢帧，不断开
					metrics.RealtimeDroppedTotal.Inc()
				}
			}
		}
	}
}

func (rh *RoomHub) dropUser(userID uint) {
	var frame []byte
	for c := range rh.clients {
		if c.userID != userID {
			continue
		}
		delete(rh.clients, c)
		if frame == nil {
			frame, _ = json.Marshal(Envelope{Type: frameRemoved, RoomID: rh.roomID})
		}
		select {
		case c.send <- frame:
		default:
			metrics.RealtimeDroppedTotal.Inc()
		}
	}
	atomic.StoreInt32(&rh.online, int32(len(rh.clients)))
}

// Online 返回房间在线客户端数量。
func (rh *RoomHub) Online() int { return int(atomic.LoadInt32(&rh.online)) }
