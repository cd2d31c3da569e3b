package service

import (
	"context"
	"errors"
	"strings"

	"recipedia/internal/catalog"

	"github.com/rs/zerolog/log"
)

const dishSuggestionCount = 5

// DishSource 按菜系给出随机菜名。
type DishSource interface {
	SuggestDishes(ctx context.Context, area string, n int) ([]string, error)
}

type DishService struct {
	src DishSource
}

func NewDishService(src DishSource) *DishService {
	return &DishService{src: src}
}

// DishSuggestions 中 Degraded 表示目录不可用，Dishes 为空。
type DishSuggestions struct {
	Cuisine  string   `json:"cuisine"`
	Dishes   []string `json:"dishes"`
	Degraded bool     `json:"degraded,omitempty"`
}

func (s *DishService) Suggest(ctx context.Context, cuisine string) (*DishSuggestions, error) {
	cuisine = strings.TrimSpace(cuisine)
	if cuisine == "" {
		return nil, invalid("cuisine is required")
	}
	out := &DishSuggestions{Cuisine: cuisine, Dishes: []string{}}
	dishes, err := s.src.SuggestDishes(ctx, cuisine, dishSuggestionCount)
	switch {
	case err == nil:
		out.Dishes = dishes
	case errors.Is(err, catalog.ErrNotFound):
		return nil, ErrNoDishes
	default:
		log.Warn().Err(err).Str("cuisine", cuisine).Msg("dish suggestions degraded")
		out.Degraded = true
	}
	return out, nil
}
