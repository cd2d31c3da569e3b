// Package mail 投递重置密码邮件：配置了 SMTP 时走 gomail，否则只写日志，便于本地开发。
package mail

import (
	"context"
	"fmt"

	"recipedia/internal/config"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"
)

const resetSubject = "Reset your Recipedia password"

// Sender 的实现满足 service.ResetMailer。
type Sender interface {
	SendPasswordReset(ctx context.Context, to, resetURL string) error
}

// New 根据配置选择 SMTP 或日志实现。
func New(cfg config.Config) Sender {
	if cfg.SMTPHost == "" {
		return LogMailer{}
	}
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass),
		from:   cfg.MailFrom,
	}
}

// LogMailer 只把重置链接写进日志。
type LogMailer struct{}

func (LogMailer) SendPasswordReset(_ context.Context, to, resetURL string) error {
	log.Info().Str("to", to).Str("reset_url", resetURL).Msg("password reset mail (log only)")
	return nil
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", resetSubject)
	msg.SetBody("text/plain", resetText(resetURL))
	msg.AddAlternative("text/html", resetHTML(resetURL))
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send reset mail to %s: %w", to, err)
	}
	return nil
}

func resetText(url string) string {
	return "You requested a password reset.\n\n" +
		"Open the link below within one hour to choose a new password:\n" + url + "\n\n" +
		"If you did not request this, you can ignore this email.\n"
}

func resetHTML(url string) string {
	return `<p>You requested a password reset.</p>` +
		`<p><a href="` + url + `">Choose a new password</a> (valid for one hour)</p>` +
		`<p>If you did not request this, you can ignore this email.</p>`
}
