package service

import (
	"context"
	"errors"

	"recipedia/internal/models"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// ProfileService 聚合用户主页所需的数据。
type ProfileService struct {
	db        *gorm.DB
	rooms     *RoomService
	recipes   *RecipeService
	reactions *ReactionService
	refs      *RefResolver
}

func NewProfileService(db *gorm.DB, rooms *RoomService, recipes *RecipeService, reactions *ReactionService, refs *RefResolver) *ProfileService {
	return &ProfileService{db: db, rooms: rooms, recipes: recipes, reactions: reactions, refs: refs}
}

type ProfileDTO struct {
	User       UserDTO          `json:"user"`
	Rooms      []RoomDTO        `json:"rooms"`
	Uploaded   []RecipeDTO      `json:"uploaded_recipes"`
	Liked      []ResolvedRecipe `json:"liked_recipes"`
	Bookmarked []ResolvedRecipe `json:"bookmarked_recipes"`
}

func (s *ProfileService) Get(ctx context.Context, userID uint) (*ProfileDTO, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	p := &ProfileDTO{User: toUserDTO(user)}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		p.Rooms, err = s.rooms.ListForUser(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		p.Uploaded, err = s.recipes.ListByCreator(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		p.Liked, err = s.resolved(gctx, userID, models.ReactionLike)
		return err
	})
	g.Go(func() (err error) {
		p.Bookmarked, err = s.resolved(gctx, userID, models.ReactionBookmark)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProfileService) resolved(ctx context.Context, userID uint, kind string) ([]ResolvedRecipe, error) {
	refs, err := s.reactions.Refs(ctx, userID, kind)
	if err != nil {
		return nil, err
	}
	return s.refs.Resolve(ctx, userID, refs)
}
