package server

import (
	"net/http"
	"time"

	"recipedia/internal/auth"
	"recipedia/internal/config"
	"recipedia/internal/metrics"
	"recipedia/internal/mw"
	"recipedia/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// SetupRouter 统一初始化 Gin 中间件、REST API 以及 WebSocket 端点。
// 返回的 stop 用于停服时回收限速器的后台 goroutine。
func SetupRouter(cfg config.Config, db *gorm.DB, hub *ws.Hub, svc Services) (*gin.Engine, func()) {
	// 控制单个 IP+路由的速率。
	general := mw.NewRateLimiter(rate.Every(time.Second/20), 40, 2*time.Minute)
	// 找回密码会发邮件，单独收紧到每 IP 每分钟 5 次。
	forgot := mw.NewRateLimiter(rate.Every(time.Minute/5), 5, 10*time.Minute)
	stop := func() {
		general.Stop()
		forgot.Stop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(mw.RequestLog())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env, cfg.CORSOrigins))
	r.Use(general.PerRoute())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := NewHandler(svc, hub, cfg.PublicURL)
	api := r.Group("/api")

	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/refresh", h.Refresh)
	api.POST("/auth/forgot-password", forgot.PerIP(), h.ForgotPassword)
	api.POST("/auth/reset-password", h.ResetPassword)
	api.GET("/auth/verify-reset-token/:token", h.VerifyResetToken)

	api.GET("/recipes", h.ListRecipes)
	api.GET("/recipes/:id", h.GetRecipe)
	api.POST("/ai/suggest", h.SuggestDishes)

	// 需要 Bearer Token 的业务接口。
	authed := api.Group("")
	authed.Use(auth.AuthMiddleware(cfg, db))

	authed.POST("/recipes", h.CreateRecipe)
	authed.PUT("/recipes/:id", h.UpdateRecipe)
	authed.DELETE("/recipes/:id", h.DeleteRecipe)

	authed.GET("/users/profile", h.Profile)
	authed.POST("/users/like/:ref", h.Like())
	authed.DELETE("/users/like/:ref", h.Unlike())
	authed.POST("/users/bookmark/:ref", h.Bookmark())
	authed.DELETE("/users/bookmark/:ref", h.Unbookmark())
	authed.POST("/users/add-video-data", h.AddVideoData)

	authed.GET("/rooms", h.ListMyRooms)
	authed.POST("/rooms", h.CreateRoom)
	authed.GET("/rooms/:id", h.GetRoom)
	authed.POST("/rooms/join/:id", h.JoinRoom)
	authed.POST("/rooms/join/invite/:code", h.ConsumeInvite)
	authed.POST("/rooms/:id/invite", h.CreateInvite)
	authed.GET("/rooms/:id/invites", h.ListInvites)
	authed.GET("/rooms/:id/suggestions", h.GetBoard)
	authed.POST("/rooms/:id/suggestions", h.AddSuggestion)
	authed.POST("/rooms/:id/recipes", h.AddRoomRecipe)
	authed.DELETE("/rooms/:id/members", h.RemoveMember)

	r.GET("/ws", ws.Serve(hub, db, cfg, svc.Rooms))
	return r, stop
}
