package server

import (
	"time"

	"recipedia/internal/config"
	"recipedia/internal/service"

	"gorm.io/gorm"
)

// Catalog 同时提供菜谱查询与按菜系的菜名建议。
type Catalog interface {
	service.Catalog
	service.DishSource
}

// NewServices 按配置组装全部业务服务。
func NewServices(cfg config.Config, db *gorm.DB, notifier service.Notifier, cat Catalog, mailer service.ResetMailer) Services {
	rooms := service.NewRoomService(db, notifier)
	recipes := service.NewRecipeService(db)
	reactions := service.NewReactionService(db)
	refs := service.NewRefResolver(db, cat, time.Duration(cfg.CatalogTimeoutSeconds)*time.Second)
	return Services{
		Users:     service.NewUserService(db, cfg),
		Passwords: service.NewPasswordService(db, mailer, cfg.ClientURL, time.Duration(cfg.ResetTokenTTLMinutes)*time.Minute),
		Recipes:   recipes,
		Rooms:     rooms,
		Invites:   service.NewInviteService(db, time.Duration(cfg.InviteTTLDays)*24*time.Hour, cfg.InviteCodeAttempts),
		Boards:    service.NewBoardService(db, notifier),
		Reactions: reactions,
		Profiles:  service.NewProfileService(db, rooms, recipes, reactions, refs),
		Dishes:    service.NewDishService(cat),
	}
}
