package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"recipedia/internal/models"

	"gorm.io/gorm"
)

// RecipeService 负责独立菜谱的增删改查，编辑与删除仅限创建者。
type RecipeService struct {
	db *gorm.DB
}

func NewRecipeService(db *gorm.DB) *RecipeService {
	return &RecipeService{db: db}
}

type RecipeInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Ingredients []string `json:"ingredients"`
	Steps       []string `json:"steps"`
	Image       string   `json:"image"`
}

// RecipePatch 中为 nil 的字段保持不变。
type RecipePatch struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Ingredients *[]string `json:"ingredients"`
	Steps       *[]string `json:"steps"`
	Image       *string   `json:"image"`
}

type RecipeDTO struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Ingredients []string  `json:"ingredients"`
	Steps       []string  `json:"steps"`
	Image       string    `json:"image,omitempty"`
	CreatorID   uint      `json:"creator_id"`
	CreatorName string    `json:"creator_name"`
	RoomID      *uint     `json:"room_id,omitempty"`
	Likes       int64     `json:"likes"`
	Bookmarks   int64     `json:"bookmarks"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (in RecipeInput) normalize() (RecipeInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return in, invalid("title is required")
	}
	in.Description = strings.TrimSpace(in.Description)
	in.Image = strings.TrimSpace(in.Image)
	in.Ingredients = compact(in.Ingredients)
	in.Steps = compact(in.Steps)
	return in, nil
}

func (in RecipeInput) model(creatorID uint) models.Recipe {
	return models.Recipe{
		Title:       in.Title,
		Description: in.Description,
		Ingredients: in.Ingredients,
		Steps:       in.Steps,
		Image:       in.Image,
		CreatorID:   creatorID,
	}
}

// compact 去掉空白条目，且保证返回非 nil 切片。
func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

// List 返回全部菜谱，新建的在前。
func (s *RecipeService) List(ctx context.Context) ([]RecipeDTO, error) {
	var recipes []models.Recipe
	if err := s.db.WithContext(ctx).Order("id desc").Find(&recipes).Error; err != nil {
		return nil, err
	}
	return recipeDTOs(ctx, s.db, recipes)
}

// ListByCreator 返回用户上传的菜谱，包括在房间内添加的。
func (s *RecipeService) ListByCreator(ctx context.Context, userID uint) ([]RecipeDTO, error) {
	var recipes []models.Recipe
	if err := s.db.WithContext(ctx).Where("creator_id = ?", userID).Order("id desc").Find(&recipes).Error; err != nil {
		return nil, err
	}
	return recipeDTOs(ctx, s.db, recipes)
}

func (s *RecipeService) Create(ctx context.Context, requesterID uint, in RecipeInput) (*RecipeDTO, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	recipe := in.model(requesterID)
	if err := s.db.WithContext(ctx).Create(&recipe).Error; err != nil {
		return nil, err
	}
	return s.dto(ctx, recipe)
}

func (s *RecipeService) Get(ctx context.Context, id uint) (*RecipeDTO, error) {
	recipe, err := findRecipe(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	return s.dto(ctx, *recipe)
}

func (s *RecipeService) Update(ctx context.Context, requesterID, id uint, p RecipePatch) (*RecipeDTO, error) {
	var recipe *models.Recipe
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if recipe, err = findRecipe(tx, id); err != nil {
			return err
		}
		if recipe.CreatorID != requesterID {
			return ErrNotRecipeOwner
		}
		in := RecipeInput{
			Title:       recipe.Title,
			Description: recipe.Description,
			Ingredients: recipe.Ingredients,
			Steps:       recipe.Steps,
			Image:       recipe.Image,
		}
		if p.Title != nil {
			in.Title = *p.Title
		}
		if p.Description != nil {
			in.Description = *p.Description
		}
		if p.Ingredients != nil {
			in.Ingredients = *p.Ingredients
		}
		if p.Steps != nil {
			in.Steps = *p.Steps
		}
		if p.Image != nil {
			in.Image = *p.Image
		}
		if in, err = in.normalize(); err != nil {
			return err
		}
		recipe.Title = in.Title
		recipe.Description = in.Description
		recipe.Ingredients = in.Ingredients
		recipe.Steps = in.Steps
		recipe.Image = in.Image
		return tx.Save(recipe).Error
	})
	if err != nil {
		return nil, err
	}
	return s.dto(ctx, *recipe)
}

// Delete 删除菜谱及所有指向它的点赞与收藏。
func (s *RecipeService) Delete(ctx context.Context, requesterID, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recipe, err := findRecipe(tx, id)
		if err != nil {
			return err
		}
		if recipe.CreatorID != requesterID {
			return ErrNotRecipeOwner
		}
		ref := models.InternalRef(recipe.ID)
		if err := tx.Where("ref_kind = ? AND ref_id = ?", ref.Kind, ref.ID).Delete(&models.Reaction{}).Error; err != nil {
			return err
		}
		return tx.Delete(recipe).Error
	})
}

func (s *RecipeService) dto(ctx context.Context, recipe models.Recipe) (*RecipeDTO, error) {
	dtos, err := recipeDTOs(ctx, s.db, []models.Recipe{recipe})
	if err != nil {
		return nil, err
	}
	return &dtos[0], nil
}

func findRecipe(db *gorm.DB, id uint) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := db.First(&recipe, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, err
	}
	return &recipe, nil
}

type reactionCount struct {
	RefID string
	Kind  string
	N     int64
}

// recipeDTOs 批量补全创建者名称与点赞/收藏计数，保持输入顺序。
func recipeDTOs(ctx context.Context, db *gorm.DB, recipes []models.Recipe) ([]RecipeDTO, error) {
	out := make([]RecipeDTO, 0, len(recipes))
	if len(recipes) == 0 {
		return out, nil
	}
	creatorIDs := make([]uint, 0, len(recipes))
	refIDs := make([]string, 0, len(recipes))
	for _, r := range recipes {
		creatorIDs = append(creatorIDs, r.CreatorID)
		refIDs = append(refIDs, strconv.FormatUint(uint64(r.ID), 10))
	}
	users, err := resolveUsers(ctx, db, creatorIDs)
	if err != nil {
		return nil, err
	}
	var counts []reactionCount
	err = db.WithContext(ctx).Model(&models.Reaction{}).
		Select("ref_id, kind, COUNT(*) AS n").
		Where("ref_kind = ? AND ref_id IN ?", models.RefInternal, refIDs).
		Group("ref_id, kind").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	likes := make(map[string]int64)
	bookmarks := make(map[string]int64)
	for _, c := range counts {
		switch c.Kind {
		case models.ReactionLike:
			likes[c.RefID] = c.N
		case models.ReactionBookmark:
			bookmarks[c.RefID] = c.N
		}
	}
	for i, r := range recipes {
		out = append(out, RecipeDTO{
			ID:          r.ID,
			Title:       r.Title,
			Description: r.Description,
			Ingredients: nonNil(r.Ingredients),
			Steps:       nonNil(r.Steps),
			Image:       r.Image,
			CreatorID:   r.CreatorID,
			CreatorName: users[r.CreatorID].Name,
			RoomID:      r.RoomID,
			Likes:       likes[refIDs[i]],
			Bookmarks:   bookmarks[refIDs[i]],
			CreatedAt:   r.CreatedAt,
			UpdatedAt:   r.UpdatedAt,
		})
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
