package models

import (
	"time"

	"gorm.io/datatypes"
)

type User struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"size:64;not null"`
	Email        string `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string `gorm:"not null"`
	ProfileIcon  string `gorm:"size:512"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Room 的创建者即 OwnerID，对应成员列表中固定在首位的管理员。
type Room struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:128;not null"`
	OwnerID   uint   `gorm:"index;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoomMember 同时承担 Room.members 与 User.rooms 两个方向的引用，
// (room_id, user_id) 唯一，按 ID 升序即加入顺序。
type RoomMember struct {
	ID        uint `gorm:"primaryKey"`
	RoomID    uint `gorm:"uniqueIndex:idx_room_member;not null"`
	UserID    uint `gorm:"uniqueIndex:idx_room_member;index;not null"`
	CreatedAt time.Time
}

type Recipe struct {
	ID          uint                        `gorm:"primaryKey"`
	Title       string                      `gorm:"size:200;not null"`
	Description string                      `gorm:"type:text"`
	Ingredients datatypes.JSONSlice[string] `gorm:"not null"`
	Steps       datatypes.JSONSlice[string] `gorm:"not null"`
	Image       string                      `gorm:"size:512"`
	CreatorID   uint                        `gorm:"index;not null"`
	RoomID      *uint                       `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const (
	ReactionLike     = "like"
	ReactionBookmark = "bookmark"
)

// Reaction 记录用户对某个 RecipeRef 的点赞或收藏。
type Reaction struct {
	ID        uint    `gorm:"primaryKey"`
	UserID    uint    `gorm:"uniqueIndex:idx_reaction;not null"`
	Kind      string  `gorm:"uniqueIndex:idx_reaction;size:16;not null"`
	RefKind   RefKind `gorm:"uniqueIndex:idx_reaction;index:idx_reaction_ref;size:16;not null"`
	RefID     string  `gorm:"uniqueIndex:idx_reaction;index:idx_reaction_ref;size:64;not null"`
	CreatedAt time.Time
}

// VideoRecipe 缓存客户端提交的外部视频菜谱元数据。
type VideoRecipe struct {
	ID        uint           `gorm:"primaryKey"`
	UserID    uint           `gorm:"uniqueIndex:idx_video_user;not null"`
	VideoID   string         `gorm:"uniqueIndex:idx_video_user;size:64;not null"`
	Data      datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Invite struct {
	ID        uint      `gorm:"primaryKey"`
	RoomID    uint      `gorm:"index;not null"`
	CreatedBy uint      `gorm:"not null"`
	Code      string    `gorm:"uniqueIndex;size:16;not null"`
	ExpiresAt time.Time `gorm:"not null"`
	Used      bool      `gorm:"not null;default:false"`
	UsedBy    *uint
	CreatedAt time.Time
	UpdatedAt time.Time
}

type MealBoard struct {
	ID        uint   `gorm:"primaryKey"`
	RoomID    uint   `gorm:"uniqueIndex:idx_board_room_date;not null"`
	Date      string `gorm:"uniqueIndex:idx_board_room_date;size:10;not null"`
	CreatedAt time.Time
}

type MealSuggestion struct {
	ID        uint   `gorm:"primaryKey"`
	BoardID   uint   `gorm:"index;not null"`
	Slot      string `gorm:"size:16;not null"`
	UserID    uint   `gorm:"not null"`
	Dish      string `gorm:"size:200;not null"`
	CreatedAt time.Time
}

// PasswordReset 只保存 token 的 sha256 摘要。
type PasswordReset struct {
	ID        uint      `gorm:"primaryKey"`
	Email     string    `gorm:"index;size:255;not null"`
	TokenHash string    `gorm:"uniqueIndex;size:64;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	Used      bool      `gorm:"not null;default:false"`
	CreatedAt time.Time
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`
	Token     string    `gorm:"uniqueIndex;size:128;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	RevokedAt *time.Time
	CreatedAt time.Time
}

// All 返回需要自动迁移的全部模型。
func All() []any {
	return []any{
		&User{}, &Room{}, &RoomMember{}, &Recipe{}, &Reaction{}, &VideoRecipe{},
		&Invite{}, &MealBoard{}, &MealSuggestion{}, &PasswordReset{}, &RefreshToken{},
	}
}
