package service

import "errors"

// 业务层通用错误，handler 可根据错误类型映射到合适的 HTTP 状态码。
var (
	ErrValidation = errors.New("validation failed")

	ErrEmailTaken         = errors.New("email taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")

	ErrUserNotFound   = errors.New("user not found")
	ErrRoomNotFound   = errors.New("room not found")
	ErrRecipeNotFound = errors.New("recipe not found")
	ErrInviteNotFound = errors.New("invalid invite code")
	ErrMemberNotFound = errors.New("member not found")
	ErrNoDishes       = errors.New("no dishes found for this cuisine")

	ErrNotMember      = errors.New("not a member of this room")
	ErrNotRoomCreator = errors.New("only the room creator can do this")
	ErrNotRecipeOwner = errors.New("only the recipe creator can do this")

	ErrInviteUsed          = errors.New("invite already used")
	ErrInviteExpired       = errors.New("invite expired")
	ErrInviteCodeExhausted = errors.New("could not allocate a unique invite code")
)

// ValidationError 携带可直接展示给客户端的说明，errors.Is(err, ErrValidation) 成立。
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(msg string) error { return &ValidationError{Msg: msg} }
