package config

import (
	"errors"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "dev-secret-change-me"

type Config struct {
	Port                  string
	DatabaseDSN           string
	JWTSecret             string
	Env                   string
	AccessTokenTTLMinutes int
	RefreshTokenTTLDays   int

	// ClientURL 是前端地址，用于拼接重置密码链接。
	ClientURL string
	// PublicURL 用于拼接邀请链接；为空时由请求的 Host 推断。
	PublicURL   string
	CORSOrigins []string

	CatalogBaseURL         string
	CatalogTimeoutSeconds  int
	CatalogCacheTTLMinutes int
	RedisAddr              string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	MailFrom string

	InviteTTLDays        int
	InviteCodeAttempts   int
	ResetTokenTTLMinutes int
	SweepSchedule        string
}

var defaults = map[string]any{
	"APP_PORT":                  "8080",
	"DATABASE_DSN":              "host=localhost user=postgres password=postgres dbname=recipedia port=5432 sslmode=disable TimeZone=UTC",
	"JWT_SECRET":                defaultJWTSecret,
	"APP_ENV":                   "dev",
	"ACCESS_TOKEN_TTL_MINUTES":  15,
	"REFRESH_TOKEN_TTL_DAYS":    7,
	"CLIENT_URL":                "http://localhost:5173",
	"PUBLIC_URL":                "",
	"CORS_ORIGINS":              "http://localhost:5173",
	"CATALOG_BASE_URL":          "https://www.themealdb.com/api/json/v1/1",
	"CATALOG_TIMEOUT_SECONDS":   3,
	"CATALOG_CACHE_TTL_MINUTES": 60,
	"REDIS_ADDR":                "",
	"SMTP_HOST":                 "",
	"SMTP_PORT":                 587,
	"SMTP_USER":                 "",
	"SMTP_PASS":                 "",
	"MAIL_FROM":                 "no-reply@recipedia.local",
	"INVITE_TTL_DAYS":           7,
	"INVITE_CODE_ATTEMPTS":      10,
	"RESET_TOKEN_TTL_MINUTES":   60,
	"SWEEP_SCHEDULE":            "@every 15m",
}

// Load 从环境变量（以及可选的 .env 文件）读取配置，非法的数值回落到默认值。
func Load() Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	return Config{
		Port:                   v.GetString("APP_PORT"),
		DatabaseDSN:            v.GetString("DATABASE_DSN"),
		JWTSecret:              v.GetString("JWT_SECRET"),
		Env:                    v.GetString("APP_ENV"),
		AccessTokenTTLMinutes:  positiveInt(v, "ACCESS_TOKEN_TTL_MINUTES"),
		RefreshTokenTTLDays:    positiveInt(v, "REFRESH_TOKEN_TTL_DAYS"),
		ClientURL:              strings.TrimRight(v.GetString("CLIENT_URL"), "/"),
		PublicURL:              strings.TrimRight(v.GetString("PUBLIC_URL"), "/"),
		CORSOrigins:            splitList(v.GetString("CORS_ORIGINS")),
		CatalogBaseURL:         strings.TrimRight(v.GetString("CATALOG_BASE_URL"), "/"),
		CatalogTimeoutSeconds:  positiveInt(v, "CATALOG_TIMEOUT_SECONDS"),
		CatalogCacheTTLMinutes: positiveInt(v, "CATALOG_CACHE_TTL_MINUTES"),
		RedisAddr:              v.GetString("REDIS_ADDR"),
		SMTPHost:               v.GetString("SMTP_HOST"),
		SMTPPort:               positiveInt(v, "SMTP_PORT"),
		SMTPUser:               v.GetString("SMTP_USER"),
		SMTPPass:               v.GetString("SMTP_PASS"),
		MailFrom:               v.GetString("MAIL_FROM"),
		InviteTTLDays:          positiveInt(v, "INVITE_TTL_DAYS"),
		InviteCodeAttempts:     positiveInt(v, "INVITE_CODE_ATTEMPTS"),
		ResetTokenTTLMinutes:   positiveInt(v, "RESET_TOKEN_TTL_MINUTES"),
		SweepSchedule:          v.GetString("SWEEP_SCHEDULE"),
	}
}

// Validate 检查启动所必需的配置项，非 dev 环境禁止使用默认 JWT 密钥。
func Validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("APP_PORT is required")
	}
	if cfg.DatabaseDSN == "" {
		return errors.New("DATABASE_DSN is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if cfg.Env != "dev" && cfg.JWTSecret == defaultJWTSecret {
		return errors.New("JWT_SECRET must be changed outside dev")
	}
	return nil
}

func positiveInt(v *viper.Viper, key string) int {
	n := v.GetInt(key)
	if n <= 0 {
		return defaults[key].(int)
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
