package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"recipedia/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type event struct {
	RoomID  uint
	Name    string
	Payload any
}

type eviction struct {
	RoomID uint
	UserID uint
}

type recordingNotifier struct {
	mu        sync.Mutex
	events    []event
	evictions []eviction
}

func (n *recordingNotifier) Evict(roomID, userID uint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.evictions = append(n.evictions, eviction{RoomID: roomID, UserID: userID})
}

func (n *recordingNotifier) evicted() []eviction {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]eviction(nil), n.evictions...)
}

func (n *recordingNotifier) Broadcast(roomID uint, name string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event{RoomID: roomID, Name: name, Payload: payload})
}

func (n *recordingNotifier) all() []event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]event(nil), n.events...)
}

func newUser(t *testing.T, db *gorm.DB, name string) models.User {
	t.Helper()
	u := models.User{Name: name, Email: fmt.Sprintf("%s@example.com", name), PasswordHash: "x"}
	require.NoError(t, db.Create(&u).Error)
	return u
}

// memberIDs 以加入顺序返回房间成员。
func memberIDs(t *testing.T, db *gorm.DB, roomID uint) []uint {
	t.Helper()
	var ids []uint
	require.NoError(t, db.Model(&models.RoomMember{}).Where("room_id = ?", roomID).Order("id").Pluck("user_id", &ids).Error)
	return ids
}

// roomsOf 返回用户所在的房间 id。
func roomsOf(t *testing.T, db *gorm.DB, userID uint) []uint {
	t.Helper()
	var ids []uint
	require.NoError(t, db.Model(&models.RoomMember{}).Where("user_id = ?", userID).Order("id").Pluck("room_id", &ids).Error)
	return ids
}

var ctx = context.Background()
