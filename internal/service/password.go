package service

import (
	"context"
	"errors"
	"time"

	"recipedia/internal/auth"
	"recipedia/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// PasswordService 实现忘记密码流程；token 只以 sha256 摘要入库，一次有效。
type PasswordService struct {
	db        *gorm.DB
	mailer    ResetMailer
	clientURL string
	ttl       time.Duration
	now       func() time.Time
}

func NewPasswordService(db *gorm.DB, mailer ResetMailer, clientURL string, ttl time.Duration) *PasswordService {
	return &PasswordService{db: db, mailer: mailer, clientURL: clientURL, ttl: ttl, now: time.Now}
}

// Forgot 无论邮箱是否注册都返回 nil，避免泄露账号是否存在。
func (s *PasswordService) Forgot(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return invalid("email is required")
	}
	db := s.db.WithContext(ctx)
	var user models.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	token, hash, err := auth.GenerateResetToken()
	if err != nil {
		return err
	}
	reset := models.PasswordReset{Email: email, TokenHash: hash, ExpiresAt: s.now().Add(s.ttl)}
	if err := db.Create(&reset).Error; err != nil {
		return err
	}
	if err := s.mailer.SendPasswordReset(ctx, email, s.clientURL+"/reset-password/"+token); err != nil {
		log.Error().Err(err).Uint("user_id", user.ID).Msg("send password reset mail")
	}
	return nil
}

func (s *PasswordService) findValid(db *gorm.DB, token string) (*models.PasswordReset, error) {
	if token == "" {
		return nil, ErrInvalidResetToken
	}
	var reset models.PasswordReset
	err := db.Where("token_hash = ? AND used = ? AND expires_at > ?", auth.HashResetToken(token), false, s.now()).
		First(&reset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidResetToken
		}
		return nil, err
	}
	return &reset, nil
}

// Verify 检查 token 是否存在、未使用且未过期。
func (s *PasswordService) Verify(ctx context.Context, token string) error {
	_, err := s.findValid(s.db.WithContext(ctx), token)
	return err
}

// Reset 消耗 token 并更新密码，同时吊销该用户全部 refresh token。
func (s *PasswordService) Reset(ctx context.Context, token, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reset, err := s.findValid(tx, token)
		if err != nil {
			return err
		}
		res := tx.Model(&models.PasswordReset{}).Where("id = ? AND used = ?", reset.ID, false).Update("used", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidResetToken
		}
		var user models.User
		if err := tx.Where("email = ?", reset.Email).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if err := tx.Model(&user).Update("password_hash", hash).Error; err != nil {
			return err
		}
		now := s.now()
		return tx.Model(&models.RefreshToken{}).
			Where("user_id = ? AND revoked_at IS NULL", user.ID).
			Update("revoked_at", &now).Error
	})
}
