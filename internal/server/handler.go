package server

import (
	"net/http"
	"strconv"

	"recipedia/internal/service"
	"recipedia/internal/ws"

	"github.com/gin-gonic/gin"
)

// Services 是 handler 依赖的全部业务服务。
type Services struct {
	Users     *service.UserService
	Passwords *service.PasswordService
	Recipes   *service.RecipeService
	Rooms     *service.RoomService
	Invites   *service.InviteService
	Boards    *service.BoardService
	Reactions *service.ReactionService
	Profiles  *service.ProfileService
	Dishes    *service.DishService
}

// Handler 聚合所有 HTTP handler，依赖注入 service 层。
type Handler struct {
	svc       Services
	hub       *ws.Hub
	publicURL string
}

func NewHandler(svc Services, hub *ws.Hub, publicURL string) *Handler {
	return &Handler{svc: svc, hub: hub, publicURL: publicURL}
}

// paramID 解析路径中的正整数 id，失败时直接写 400。
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// Register 处理用户注册请求。
func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	result, err := h.svc.Users.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(c, err, "register")
		return
	}
	c.JSON(http.StatusCreated, result)
}

// Login 处理用户登录请求。
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		badRequest(c, "invalid payload")
		return
	}
	result, err := h.svc.Users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err, "login")
		return
	}
	c.JSON(http.StatusOK, result)
}

// Refresh 使用 refresh token 换取新的 token 对。
func (h *Handler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		badRequest(c, "invalid payload")
		return
	}
	result, err := h.svc.Users.RefreshTokens(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeError(c, err, "refresh token")
		return
	}
	c.JSON(http.StatusOK, result)
}

// ForgotPassword 无论邮箱是否注册都返回相同响应。
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		badRequest(c, "invalid payload")
		return
	}
	if err := h.svc.Passwords.Forgot(c.Request.Context(), req.Email); err != nil {
		writeError(c, err, "forgot password")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "if that email is registered, a reset link has been sent"})
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		badRequest(c, "invalid payload")
		return
	}
	if err := h.svc.Passwords.Reset(c.Request.Context(), req.Token, req.Password); err != nil {
		writeError(c, err, "reset password")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password has been reset"})
}

func (h *Handler) VerifyResetToken(c *gin.Context) {
	if err := h.svc.Passwords.Verify(c.Request.Context(), c.Param("token")); err != nil {
		writeError(c, err, "verify reset token")
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// SuggestDishes 按菜系给出菜名建议；目录不可用时返回空列表并标记 degraded。
func (h *Handler) SuggestDishes(c *gin.Context) {
	var req struct {
		Cuisine string `json:"cuisine"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	result, err := h.svc.Dishes.Suggest(c.Request.Context(), req.Cuisine)
	if err != nil {
		writeError(c, err, "suggest dishes")
		return
	}
	c.JSON(http.StatusOK, result)
}
