package service

import (
	"context"
	"encoding/json"
	"time"

	"recipedia/internal/catalog"
	"recipedia/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const catalogConcurrency = 4

// RefResolver 把 RecipeRef 解析成可展示的菜谱：本地菜谱查库，外部菜谱查目录，视频菜谱读已保存的元数据。
type RefResolver struct {
	db      *gorm.DB
	catalog Catalog
	timeout time.Duration
}

// NewRefResolver 中 cat 可以为 nil，此时外部菜谱一律返回占位数据。
func NewRefResolver(db *gorm.DB, cat Catalog, timeout time.Duration) *RefResolver {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &RefResolver{db: db, catalog: cat, timeout: timeout}
}

type ResolvedRecipe struct {
	Ref         string          `json:"ref"`
	Kind        models.RefKind  `json:"kind"`
	Title       string          `json:"title"`
	Image       string          `json:"image,omitempty"`
	Category    string          `json:"category,omitempty"`
	Placeholder bool            `json:"placeholder,omitempty"`
	Recipe      *RecipeDTO      `json:"recipe,omitempty"`
	Video       json.RawMessage `json:"video,omitempty"`
}

// Resolve 保持输入顺序；已被删除的本地菜谱会被跳过。
func (r *RefResolver) Resolve(ctx context.Context, userID uint, refs []models.RecipeRef) ([]ResolvedRecipe, error) {
	var (
		internalIDs []uint
		videoIDs    []string
	)
	for _, ref := range refs {
		switch ref.Kind {
		case models.RefInternal:
			if id, ok := ref.InternalID(); ok {
				internalIDs = append(internalIDs, id)
			}
		case models.RefExternalVideo:
			videoIDs = append(videoIDs, ref.ID)
		}
	}

	recipes, err := r.internal(ctx, internalIDs)
	if err != nil {
		return nil, err
	}
	videos, err := r.videos(ctx, userID, videoIDs)
	if err != nil {
		return nil, err
	}
	meals := r.external(ctx, refs)

	out := make([]ResolvedRecipe, 0, len(refs))
	for i, ref := range refs {
		item := ResolvedRecipe{Ref: ref.String(), Kind: ref.Kind}
		switch ref.Kind {
		case models.RefInternal:
			id, _ := ref.InternalID()
			dto, ok := recipes[id]
			if !ok {
				continue
			}
			item.Title, item.Image, item.Recipe = dto.Title, dto.Image, dto
		case models.RefExternal:
			m := meals[i]
			item.Title, item.Image, item.Category = m.meal.Title, m.meal.Image, m.meal.Category
			item.Placeholder = m.placeholder
		case models.RefExternalVideo:
			data, ok := videos[ref.ID]
			item.Title = "Video recipe " + ref.ID
			if !ok {
				item.Placeholder = true
				break
			}
			item.Video = data
			if t := gjson.GetBytes(data, "title"); t.Exists() {
				item.Title = t.String()
			}
			item.Image = gjson.GetBytes(data, "thumbnail").String()
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *RefResolver) internal(ctx context.Context, ids []uint) (map[uint]*RecipeDTO, error) {
	out := make(map[uint]*RecipeDTO, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Recipe
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	dtos, err := recipeDTOs(ctx, r.db, rows)
	if err != nil {
		return nil, err
	}
	for i := range dtos {
		out[dtos[i].ID] = &dtos[i]
	}
	return out, nil
}

func (r *RefResolver) videos(ctx context.Context, userID uint, ids []string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.VideoRecipe
	if err := r.db.WithContext(ctx).Where("user_id = ? AND video_id IN ?", userID, ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, v := range rows {
		out[v.VideoID] = json.RawMessage(v.Data)
	}
	return out, nil
}

type lookedUp struct {
	meal        catalog.Meal
	placeholder bool
}

// external 并发查询目录，单次查询受 timeout 约束；失败时退回占位数据，不向上返回错误。
func (r *RefResolver) external(ctx context.Context, refs []models.RecipeRef) []lookedUp {
	out := make([]lookedUp, len(refs))
	var g errgroup.Group
	g.SetLimit(catalogConcurrency)
	for i, ref := range refs {
		if ref.Kind != models.RefExternal {
			continue
		}
		if r.catalog == nil {
			out[i] = lookedUp{meal: catalog.Placeholder(ref.ID), placeholder: true}
			continue
		}
		i, ref := i, ref
		g.Go(func() error {
			lctx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()
			m, err := r.catalog.Lookup(lctx, ref.ID)
			if err != nil {
				log.Debug().Err(err).Str("catalog_id", ref.ID).Msg("catalog lookup fell back to placeholder")
				out[i] = lookedUp{meal: catalog.Placeholder(ref.ID), placeholder: true}
				return nil
			}
			out[i] = lookedUp{meal: m}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
