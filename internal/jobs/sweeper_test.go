package jobs

import (
	"context"
	"testing"
	"time"

	"recipedia/internal/db/dbtest"
	"recipedia/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrune(t *testing.T) {
	gdb := dbtest.Open(t)
	now := time.Now()
	revoked := now.Add(-time.Minute)

	require.NoError(t, gdb.Create(&[]models.PasswordReset{
		{Email: "a@x.io", TokenHash: "h1", ExpiresAt: now.Add(time.Hour)},
		{Email: "a@x.io", TokenHash: "h2", ExpiresAt: now.Add(-time.Hour)},
		{Email: "a@x.io", TokenHash: "h3", ExpiresAt: now.Add(time.Hour), Used: true},
	}).Error)
	require.NoError(t, gdb.Create(&[]models.RefreshToken{
		{UserID: 1, Token: "t1", ExpiresAt: now.Add(time.Hour)},
		{UserID: 1, Token: "t2", ExpiresAt: now.Add(-time.Hour)},
		{UserID: 1, Token: "t3", ExpiresAt: now.Add(time.Hour), RevokedAt: &revoked},
	}).Error)
	require.NoError(t, gdb.Create(&models.Invite{RoomID: 1, CreatedBy: 1, Code: "DEADBEEF", ExpiresAt: now.Add(-time.Hour)}).Error)

	r, err := Prune(context.Background(), gdb, now)
	require.NoError(t, err)
	assert.Equal(t, PruneResult{PasswordResets: 2, RefreshTokens: 2}, r)

	var resets []models.PasswordReset
	require.NoError(t, gdb.Find(&resets).Error)
	require.Len(t, resets, 1)
	assert.Equal(t, "h1", resets[0].TokenHash)

	var invites int64
	require.NoError(t, gdb.Model(&models.Invite{}).Count(&invites).Error)
	assert.Equal(t, int64(1), invites, "expired invites are kept")
}

func TestNewSweeper_BadSchedule(t *testing.T) {
	_, err := NewSweeper(dbtest.Open(t), "not a schedule")
	assert.Error(t, err)
}

func TestSweeper_StartStop(t *testing.T) {
	s, err := NewSweeper(dbtest.Open(t), "@every 1h")
	require.NoError(t, err)
	s.Start()
	s.Stop()
}
