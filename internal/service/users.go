package service

import (
	"context"
	"errors"

	"recipedia/internal/models"

	"gorm.io/gorm"
)

// resolveUsers 批量加载 ids 对应的用户，结果按 id 索引；不存在的 id 被忽略。
func resolveUsers(ctx context.Context, db *gorm.DB, ids []uint) (map[uint]models.User, error) {
	seen := make(map[uint]struct{}, len(ids))
	uniq := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	out := make(map[uint]models.User, len(uniq))
	if len(uniq) == 0 {
		return out, nil
	}
	var users []models.User
	if err := db.WithContext(ctx).Where("id IN ?", uniq).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func findRoom(db *gorm.DB, roomID uint) (*models.Room, error) {
	var room models.Room
	if err := db.First(&room, roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

func isMember(db *gorm.DB, roomID, userID uint) (bool, error) {
	var n int64
	err := db.Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&n).Error
	return n > 0, err
}

// requireMember 先校验房间存在，再校验成员身份。
func requireMember(db *gorm.DB, roomID, userID uint) (*models.Room, error) {
	room, err := findRoom(db, roomID)
	if err != nil {
		return nil, err
	}
	ok, err := isMember(db, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotMember
	}
	return room, nil
}
