// Package jobs 运行定时维护任务。
package jobs

import (
	"context"
	"time"

	"recipedia/internal/metrics"
	"recipedia/internal/models"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// PruneResult 记录一次清理删除的行数。
type PruneResult struct {
	PasswordResets int64 `json:"password_resets"`
	RefreshTokens  int64 `json:"refresh_tokens"`
}

// Prune 删除已过期或已使用的重置 token，以及已过期或已吊销的 refresh token。
// 邀请码不清理：邀请码在全部历史记录中保持唯一。
func Prune(ctx context.Context, db *gorm.DB, now time.Time) (PruneResult, error) {
	var r PruneResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("used = ? OR expires_at <= ?", true, now).Delete(&models.PasswordReset{})
		if res.Error != nil {
			return res.Error
		}
		r.PasswordResets = res.RowsAffected
		res = tx.Where("revoked_at IS NOT NULL OR expires_at <= ?", now).Delete(&models.RefreshToken{})
		if res.Error != nil {
			return res.Error
		}
		r.RefreshTokens = res.RowsAffected
		return nil
	})
	if err != nil {
		return PruneResult{}, err
	}
	metrics.SweptRowsTotal.WithLabelValues("password_resets").Add(float64(r.PasswordResets))
	metrics.SweptRowsTotal.WithLabelValues("refresh_tokens").Add(float64(r.RefreshTokens))
	return r, nil
}

type Sweeper struct {
	db   *gorm.DB
	cron *cron.Cron
}

// NewSweeper 按 schedule（标准 cron 表达式或 @every 形式）注册清理任务。
func NewSweeper(db *gorm.DB, schedule string) (*Sweeper, error) {
	s := &Sweeper{db: db, cron: cron.New()}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	r, err := Prune(ctx, s.db, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("sweep failed")
		return
	}
	log.Debug().Int64("password_resets", r.PasswordResets).Int64("refresh_tokens", r.RefreshTokens).Msg("sweep done")
}

func (s *Sweeper) Start() { s.cron.Start() }

// Stop 等待正在执行的任务结束。
func (s *Sweeper) Stop() { <-s.cron.Stop().Done() }
