package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"recipedia/internal/auth"
	"recipedia/internal/config"
	"recipedia/internal/db/dbtest"
	"recipedia/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureMailer struct {
	mu   sync.Mutex
	urls map[string]string
	err  error
}

func (m *captureMailer) SendPasswordReset(_ context.Context, to, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.urls == nil {
		m.urls = map[string]string{}
	}
	m.urls[to] = url
	return m.err
}

func (m *captureMailer) token(t *testing.T, email string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	url, ok := m.urls[email]
	require.True(t, ok, "no mail sent to %s", email)
	const marker = "/reset-password/"
	return url[strings.Index(url, marker)+len(marker):]
}

func TestPasswordResetFlow(t *testing.T) {
	db := dbtest.Open(t)
	cfg := config.Config{JWTSecret: "s", AccessTokenTTLMinutes: 5, RefreshTokenTTLDays: 1}
	users := NewUserService(db, cfg)
	reg, err := users.Register(ctx, "Alice", "Alice@Example.com", "old-password")
	require.NoError(t, err)

	mailer := &captureMailer{}
	pw := NewPasswordService(db, mailer, "http://client", time.Hour)

	require.NoError(t, pw.Forgot(ctx, "nobody@example.com"))
	assert.Empty(t, mailer.urls)

	require.NoError(t, pw.Forgot(ctx, " alice@example.com "))
	token := mailer.token(t, "alice@example.com")
	assert.Len(t, token, 64)
	assert.True(t, strings.HasPrefix(mailer.urls["alice@example.com"], "http://client/reset-password/"))

	var stored models.PasswordReset
	require.NoError(t, db.First(&stored).Error)
	assert.Equal(t, auth.HashResetToken(token), stored.TokenHash)
	assert.NotEqual(t, token, stored.TokenHash)

	require.NoError(t, pw.Verify(ctx, token))
	assert.ErrorIs(t, pw.Verify(ctx, "nope"), ErrInvalidResetToken)
	assert.ErrorIs(t, pw.Reset(ctx, token, "123"), ErrValidation)

	require.NoError(t, pw.Reset(ctx, token, "new-password"))
	assert.ErrorIs(t, pw.Reset(ctx, token, "another-one"), ErrInvalidResetToken)
	assert.ErrorIs(t, pw.Verify(ctx, token), ErrInvalidResetToken)

	_, err = users.Login(ctx, "alice@example.com", "old-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = users.Login(ctx, "alice@example.com", "new-password")
	require.NoError(t, err)

	_, err = users.RefreshTokens(ctx, reg.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidCredentials, "old sessions are revoked")
}

func TestPasswordReset_Expired(t *testing.T) {
	db := dbtest.Open(t)
	newUser(t, db, "bob")
	mailer := &captureMailer{}
	pw := NewPasswordService(db, mailer, "http://client", time.Hour)
	require.NoError(t, pw.Forgot(ctx, "bob@example.com"))
	token := mailer.token(t, "bob@example.com")

	pw.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.ErrorIs(t, pw.Verify(ctx, token), ErrInvalidResetToken)
	assert.ErrorIs(t, pw.Reset(ctx, token, "new-password"), ErrInvalidResetToken)
}

func TestPasswordForgot_MailFailureIsHidden(t *testing.T) {
	db := dbtest.Open(t)
	newUser(t, db, "bob")
	pw := NewPasswordService(db, &captureMailer{err: errors.New("smtp down")}, "http://client", time.Hour)
	assert.NoError(t, pw.Forgot(ctx, "bob@example.com"))
	assert.ErrorIs(t, pw.Forgot(ctx, ""), ErrValidation)
}
