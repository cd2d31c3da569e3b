package service

import (
	"context"

	"recipedia/internal/catalog"
)

// 实时事件名称，与前端约定一致。
const (
	EventRecipeAdded     = "recipe-added"
	EventSuggestionAdded = "suggestion-added"
)

// Notifier 向订阅了某个房间的客户端广播事件，发送即忘，不保证送达。
// Evict 让被移出房间的用户立即停止接收该房间的事件。
type Notifier interface {
	Broadcast(roomID uint, event string, payload any)
	Evict(roomID, userID uint)
}

// Catalog 是外部菜谱目录的查询能力。
type Catalog interface {
	Lookup(ctx context.Context, id string) (catalog.Meal, error)
}

// ResetMailer 负责投递重置密码邮件。
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, to, resetURL string) error
}

type nopNotifier struct{}

func (nopNotifier) Broadcast(uint, string, any) {}

func (nopNotifier) Evict(uint, uint) {}
