package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"recipedia/internal/auth"
	"recipedia/internal/config"
	"recipedia/internal/models"

	"gorm.io/gorm"
)

const minPasswordLen = 6

// UserService 封装注册、登录与 token 刷新。
type UserService struct {
	db  *gorm.DB
	cfg config.Config
}

func NewUserService(db *gorm.DB, cfg config.Config) *UserService {
	return &UserService{db: db, cfg: cfg}
}

type UserDTO struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	ProfileIcon string `json:"profile_icon,omitempty"`
}

func toUserDTO(u models.User) UserDTO {
	return UserDTO{ID: u.ID, Name: u.Name, Email: u.Email, ProfileIcon: u.ProfileIcon}
}

// AuthResult 注册或登录成功后返回的 token 对与用户信息。
type AuthResult struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	User         UserDTO `json:"user"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validatePassword(pw string) error {
	if len(pw) < minPasswordLen {
		return invalid("password must be at least 6 characters")
	}
	return nil
}

// Register 注册新用户并直接签发 token 对。
func (s *UserService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" {
		return nil, invalid("name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, invalid("a valid email is required")
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	user, err := s.createUser(ctx, name, email, password)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, *user)
}

// CreateUser 供运维命令直接创建账号，不签发 token。
func (s *UserService) CreateUser(ctx context.Context, name, email, password string) (*UserDTO, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" {
		return nil, invalid("name and email are required")
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	user, err := s.createUser(ctx, name, email, password)
	if err != nil {
		return nil, err
	}
	dto := toUserDTO(*user)
	return &dto, nil
}

func (s *UserService) createUser(ctx context.Context, name, email, password string) (*models.User, error) {
	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := models.User{Name: name, Email: email, PasswordHash: hash}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return &user, nil
}

// Login 校验邮箱密码并签发 token 对。
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(ctx, user)
}

func (s *UserService) issue(ctx context.Context, user models.User) (*AuthResult, error) {
	at, err := auth.GenerateAccessToken(user.ID, s.cfg.JWTSecret, s.cfg.AccessTokenTTLMinutes)
	if err != nil {
		return nil, err
	}
	rt, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	if err := auth.SaveRefreshToken(s.db.WithContext(ctx), user.ID, rt, s.refreshExpiry()); err != nil {
		return nil, err
	}
	return &AuthResult{AccessToken: at, RefreshToken: rt, User: toUserDTO(user)}, nil
}

func (s *UserService) refreshExpiry() time.Time {
	return time.Now().Add(time.Duration(s.cfg.RefreshTokenTTLDays) * 24 * time.Hour)
}

// RefreshResult 刷新 token 后返回的新 token 对。
type RefreshResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshTokens 验证旧 refresh token 并签发新 token 对（旋转刷新）。
func (s *UserService) RefreshTokens(ctx context.Context, oldRT string) (*RefreshResult, error) {
	var result RefreshResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := auth.ValidateRefreshToken(tx, oldRT)
		if err != nil {
			return ErrInvalidCredentials
		}
		if err := auth.RevokeRefreshToken(tx, oldRT); err != nil {
			return err
		}
		at, err := auth.GenerateAccessToken(rec.UserID, s.cfg.JWTSecret, s.cfg.AccessTokenTTLMinutes)
		if err != nil {
			return err
		}
		newRT, err := auth.GenerateRefreshToken()
		if err != nil {
			return err
		}
		if err := auth.SaveRefreshToken(tx, rec.UserID, newRT, s.refreshExpiry()); err != nil {
			return err
		}
		result.AccessToken = at
		result.RefreshToken = newRT
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// UserStats 是运维命令展示的用户概况。
type UserStats struct {
	UserDTO
	Rooms   int64 `json:"rooms"`
	Recipes int64 `json:"recipes"`
	Likes   int64 `json:"likes"`
}

// Stats 列出全部用户及其房间、菜谱、点赞数量。
func (s *UserService) Stats(ctx context.Context) ([]UserStats, error) {
	db := s.db.WithContext(ctx)
	var users []models.User
	if err := db.Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	out := make([]UserStats, 0, len(users))
	for _, u := range users {
		st := UserStats{UserDTO: toUserDTO(u)}
		if err := db.Model(&models.RoomMember{}).Where("user_id = ?", u.ID).Count(&st.Rooms).Error; err != nil {
			return nil, err
		}
		if err := db.Model(&models.Recipe{}).Where("creator_id = ?", u.ID).Count(&st.Recipes).Error; err != nil {
			return nil, err
		}
		if err := db.Model(&models.Reaction{}).Where("user_id = ? AND kind = ?", u.ID, models.ReactionLike).Count(&st.Likes).Error; err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}
