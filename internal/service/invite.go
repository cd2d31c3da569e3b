package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"recipedia/internal/metrics"
	"recipedia/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// 邀请码的计算状态：Used 与 Expired 都是终态，Used 优先。
const (
	InviteActive  = "active"
	InviteUsed    = "used"
	InviteExpired = "expired"
)

// InviteService 签发一次性房间邀请码并处理兑换。
type InviteService struct {
	db          *gorm.DB
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
	genCode     func() (string, error)
}

func NewInviteService(db *gorm.DB, ttl time.Duration, maxAttempts int) *InviteService {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &InviteService{db: db, ttl: ttl, maxAttempts: maxAttempts, now: time.Now, genCode: newInviteCode}
}

// newInviteCode 返回 4 字节加密随机数的大写十六进制表示，共 8 个字符。
func newInviteCode() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

type InviteDTO struct {
	Code      string    `json:"invite_code"`
	RoomID    uint      `json:"room_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type InviteView struct {
	Code          string    `json:"invite_code"`
	State         string    `json:"state"`
	CreatedByID   uint      `json:"created_by_id"`
	CreatedByName string    `json:"created_by_name"`
	UsedByID      *uint     `json:"used_by_id,omitempty"`
	UsedByName    string    `json:"used_by_name,omitempty"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
}

type RoomSummary struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type JoinResult struct {
	Room          RoomSummary `json:"room"`
	AlreadyMember bool        `json:"already_member"`
}

// Create 为房间成员签发邀请码；邀请码在所有历史邀请中唯一，冲突时重新生成。
func (s *InviteService) Create(ctx context.Context, requesterID, roomID uint) (*InviteDTO, error) {
	db := s.db.WithContext(ctx)
	if _, err := requireMember(db, roomID, requesterID); err != nil {
		return nil, err
	}
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		code, err := s.genCode()
		if err != nil {
			return nil, fmt.Errorf("generate invite code: %w", err)
		}
		var n int64
		if err := db.Model(&models.Invite{}).Where("code = ?", code).Count(&n).Error; err != nil {
			return nil, err
		}
		if n > 0 {
			metrics.InviteCodeCollisionsTotal.Inc()
			continue
		}
		inv := models.Invite{
			RoomID:    roomID,
			CreatedBy: requesterID,
			Code:      code,
			ExpiresAt: s.now().Add(s.ttl),
		}
		if err := db.Create(&inv).Error; err != nil {
			// 并发签发撞上唯一索引时按冲突处理
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				metrics.InviteCodeCollisionsTotal.Inc()
				continue
			}
			return nil, err
		}
		metrics.InvitesIssuedTotal.Inc()
		return &InviteDTO{Code: inv.Code, RoomID: roomID, ExpiresAt: inv.ExpiresAt}, nil
	}
	log.Warn().Uint("room_id", roomID).Int("attempts", s.maxAttempts).Msg("invite code space exhausted")
	return nil, ErrInviteCodeExhausted
}

// Consume 兑换邀请码：先加入成员，再以 used = false 为条件标记已用，二者在同一事务内。
// 已是成员时直接成功，邀请码保持未用。
func (s *InviteService) Consume(ctx context.Context, requesterID uint, code string) (*JoinResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrInviteNotFound
	}
	var result JoinResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inv models.Invite
		if err := tx.Where("code = ?", code).First(&inv).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInviteNotFound
			}
			return err
		}
		if inv.Used {
			return ErrInviteUsed
		}
		if s.now().After(inv.ExpiresAt) {
			return ErrInviteExpired
		}
		room, err := findRoom(tx, inv.RoomID)
		if err != nil {
			return err
		}
		result.Room = RoomSummary{ID: room.ID, Name: room.Name}

		added, err := addMember(tx, room.ID, requesterID)
		if err != nil {
			return err
		}
		if !added {
			result.AlreadyMember = true
			return nil
		}
		res := tx.Model(&models.Invite{}).
			Where("id = ? AND used = ?", inv.ID, false).
			Updates(map[string]any{"used": true, "used_by": requesterID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInviteUsed
		}
		return nil
	})
	metrics.InvitesConsumedTotal.WithLabelValues(consumeOutcome(err, result.AlreadyMember)).Inc()
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func consumeOutcome(err error, alreadyMember bool) string {
	switch {
	case err == nil && alreadyMember:
		return "already_member"
	case err == nil:
		return "joined"
	case errors.Is(err, ErrInviteNotFound):
		return "not_found"
	case errors.Is(err, ErrInviteUsed):
		return "used"
	case errors.Is(err, ErrInviteExpired):
		return "expired"
	default:
		return "error"
	}
}

// ListForRoom 返回房间的邀请记录，新建的在前，仅成员可见。
func (s *InviteService) ListForRoom(ctx context.Context, requesterID, roomID uint) ([]InviteView, error) {
	db := s.db.WithContext(ctx)
	if _, err := requireMember(db, roomID, requesterID); err != nil {
		return nil, err
	}
	var invites []models.Invite
	if err := db.Where("room_id = ?", roomID).Order("id desc").Find(&invites).Error; err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(invites)*2)
	for _, inv := range invites {
		ids = append(ids, inv.CreatedBy)
		if inv.UsedBy != nil {
			ids = append(ids, *inv.UsedBy)
		}
	}
	users, err := resolveUsers(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]InviteView, 0, len(invites))
	for _, inv := range invites {
		v := InviteView{
			Code:          inv.Code,
			State:         inviteState(inv, now),
			CreatedByID:   inv.CreatedBy,
			CreatedByName: users[inv.CreatedBy].Name,
			UsedByID:      inv.UsedBy,
			ExpiresAt:     inv.ExpiresAt,
			CreatedAt:     inv.CreatedAt,
		}
		if inv.UsedBy != nil {
			v.UsedByName = users[*inv.UsedBy].Name
		}
		out = append(out, v)
	}
	return out, nil
}

func inviteState(inv models.Invite, now time.Time) string {
	switch {
	case inv.Used:
		return InviteUsed
	case now.After(inv.ExpiresAt):
		return InviteExpired
	default:
		return InviteActive
	}
}
