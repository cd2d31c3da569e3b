package server

import (
	"net/http"
	"strings"

	"recipedia/internal/auth"
	"recipedia/internal/service"

	"github.com/gin-gonic/gin"
)

type roomListItem struct {
	service.RoomDTO
	Online int `json:"online"`
}

// ListMyRooms 返回当前用户加入的房间，附带实时在线人数。
func (h *Handler) ListMyRooms(c *gin.Context) {
	rooms, err := h.svc.Rooms.ListForUser(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		writeError(c, err, "list rooms")
		return
	}
	out := make([]roomListItem, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, roomListItem{RoomDTO: r, Online: h.online(r.ID)})
	}
	c.JSON(http.StatusOK, gin.H{"rooms": out})
}

func (h *Handler) online(roomID uint) int {
	if h.hub == nil {
		return 0
	}
	return h.hub.Online(roomID)
}

func (h *Handler) CreateRoom(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	room, err := h.svc.Rooms.Create(c.Request.Context(), auth.GetUserID(c), req.Name)
	if err != nil {
		writeError(c, err, "create room")
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (h *Handler) GetRoom(c *gin.Context) {
	roomID, ok := paramID(c, "id")
	if !ok {
		return
	}
	room, err := h.svc.Rooms.Get(c.Request.Context(), roomID)
	if err != nil {
		writeError(c, err, "get room")
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handler) JoinRoom(c *gin.Context) {
	roomID, ok := paramID(c, "id")
	if !ok {
		return
	}
	room, err := h.svc.Rooms.Join(c.Request.Context(), auth.GetUserID(c), roomID)
	if err != nil {
		writeError(c, err, "join room")
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handler) AddRoomRecipe(c *gin.Context) {
	roomID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in service.RecipeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	recipe, err := h.svc.Rooms.AddRecipe(c.Request.Context(), auth.GetUserID(c), roomID, in)
	if err != nil {
		writeError(c, err, "add room recipe")
		return
	}
	c.JSON(http.StatusCreated, recipe)
}

// RemoveMember 仅房间创建者可以移除成员。
func (h *Handler) RemoveMember(c *gin.Context) {
	roomID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		MemberID uint `json:"memberId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.MemberID == 0 {
		badRequest(c, "invalid payload")
		return
	}
	room, err := h.svc.Rooms.RemoveMember(c.Request.Context(), auth.GetUserID(c), roomID, req.MemberID)
	if err != nil {
		writeError(c, err, "remove member")
		return
	}
	c.JSON(http.StatusOK, room)
}

// inviteBase 优先使用配置的公开地址，否则按请求推断。
func (h *Handler) inviteBase(c *gin.Context) string {
	if h.publicURL != "" {
		return h.publicURL
	}
	scheme := "http"
	if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}

func (h *Handler) CreateInvite(c *gin.Context) {
	roomID, ok := paramID(c, "id")
	if !ok {
		return
	}
	inv, err := h.svc.Invites.Create(c.Request.Context(), auth.GetUserID(c), roomID)
	if err != nil {
		writeError(c, err, "create invite")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"invite_code": inv.Code,
		"room_id":     inv.RoomID,
		"expires_at":  inv.ExpiresAt,
		"invite_url":  h.inviteBase(c) + "/rooms/join/" + inv.Code,
	})
}

func (h *Handler) ListInvites(c *gin.Context) {
	roomID, ok := paramID(c, "id")
	if !ok {
		return
	}
	invites, err := h.svc.Invites.ListForRoom(c.Request.Context(), auth.GetUserID(c), roomID)
	if err != nil {
		writeError(c, err, "list invites")
		return
	}
	c.JSON(http.StatusOK, gin.H{"invites": invites})
}

func (h *Handler) ConsumeInvite(c *gin.Context) {
	result, err := h.svc.Invites.Consume(c.Request.Context(), auth.GetUserID(c), c.Param("code"))
	if err != nil {
		writeError(c, err, "consume invite")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetBoard(c *gin.Context) {
	roomID, ok := paramID(c, "id")
	if !ok {
		return
	}
	board, err := h.svc.Boards.Get(c.Request.Context(), roomID, c.Query("date"))
	if err != nil {
		writeError(c, err, "get board")
		return
	}
	c.JSON(http.StatusOK, board)
}

func (h *Handler) AddSuggestion(c *gin.Context) {
	roomID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Meal string `json:"meal"`
		Dish string `json:"dish"`
		Date string `json:"date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	board, err := h.svc.Boards.AddSuggestion(c.Request.Context(), auth.GetUserID(c), roomID, req.Meal, req.Dish, req.Date)
	if err != nil {
		writeError(c, err, "add suggestion")
		return
	}
	c.JSON(http.StatusCreated, board)
}
