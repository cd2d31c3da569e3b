package models

import (
	"errors"
	"strconv"
	"strings"
)

type RefKind string

const (
	RefInternal      RefKind = "internal"
	RefExternal      RefKind = "external"
	RefExternalVideo RefKind = "external_video"
)

const (
	externalPrefix      = "external_"
	externalVideoPrefix = "external_video_"
)

var ErrInvalidRecipeRef = errors.New("invalid recipe reference")

// RecipeRef 指向本地菜谱、外部目录菜谱或外部视频菜谱之一。
type RecipeRef struct {
	Kind RefKind
	ID   string
}

func InternalRef(id uint) RecipeRef {
	return RecipeRef{Kind: RefInternal, ID: strconv.FormatUint(uint64(id), 10)}
}

func ExternalRef(catalogID string) RecipeRef {
	return RecipeRef{Kind: RefExternal, ID: catalogID}
}

func ExternalVideoRef(videoID string) RecipeRef {
	return RecipeRef{Kind: RefExternalVideo, ID: videoID}
}

// ParseRecipeRef 解析线上格式："42"、"external_52772"、"external_video_<id>"。
func ParseRecipeRef(s string) (RecipeRef, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, externalVideoPrefix):
		id := strings.TrimPrefix(s, externalVideoPrefix)
		if !validExternalID(id) {
			return RecipeRef{}, ErrInvalidRecipeRef
		}
		return ExternalVideoRef(id), nil
	case strings.HasPrefix(s, externalPrefix):
		id := strings.TrimPrefix(s, externalPrefix)
		if !validExternalID(id) {
			return RecipeRef{}, ErrInvalidRecipeRef
		}
		return ExternalRef(id), nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return RecipeRef{}, ErrInvalidRecipeRef
	}
	return InternalRef(uint(n)), nil
}

// String 返回线上格式，与 ParseRecipeRef 互逆。
func (r RecipeRef) String() string {
	switch r.Kind {
	case RefExternal:
		return externalPrefix + r.ID
	case RefExternalVideo:
		return externalVideoPrefix + r.ID
	default:
		return r.ID
	}
}

// InternalID 仅对本地菜谱返回 true。
func (r RecipeRef) InternalID() (uint, bool) {
	if r.Kind != RefInternal {
		return 0, false
	}
	n, err := strconv.ParseUint(r.ID, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(n), true
}

func validExternalID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return false
		}
	}
	return true
}
