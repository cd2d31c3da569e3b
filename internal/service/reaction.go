package service

import (
	"context"
	"encoding/json"

	"recipedia/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReactionService 处理点赞与收藏，目标可以是任意 RecipeRef。
type ReactionService struct {
	db *gorm.DB
}

func NewReactionService(db *gorm.DB) *ReactionService {
	return &ReactionService{db: db}
}

type ReactionState struct {
	Ref        string `json:"ref"`
	Liked      bool   `json:"liked"`
	Bookmarked bool   `json:"bookmarked"`
}

func (s *ReactionService) Like(ctx context.Context, userID uint, ref models.RecipeRef, videoData json.RawMessage) (*ReactionState, error) {
	return s.add(ctx, userID, models.ReactionLike, ref, videoData)
}

func (s *ReactionService) Unlike(ctx context.Context, userID uint, ref models.RecipeRef) (*ReactionState, error) {
	return s.remove(ctx, userID, models.ReactionLike, ref)
}

func (s *ReactionService) Bookmark(ctx context.Context, userID uint, ref models.RecipeRef, videoData json.RawMessage) (*ReactionState, error) {
	return s.add(ctx, userID, models.ReactionBookmark, ref, videoData)
}

func (s *ReactionService) Unbookmark(ctx context.Context, userID uint, ref models.RecipeRef) (*ReactionState, error) {
	return s.remove(ctx, userID, models.ReactionBookmark, ref)
}

// add 幂等；视频菜谱附带的元数据会覆盖已保存的那份。
func (s *ReactionService) add(ctx context.Context, userID uint, kind string, ref models.RecipeRef, videoData json.RawMessage) (*ReactionState, error) {
	if len(videoData) > 0 && !json.Valid(videoData) {
		return nil, invalid("recipeData must be valid JSON")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if id, ok := ref.InternalID(); ok {
			if _, err := findRecipe(tx, id); err != nil {
				return err
			}
		}
		r := models.Reaction{UserID: userID, Kind: kind, RefKind: ref.Kind, RefID: ref.ID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&r).Error; err != nil {
			return err
		}
		if ref.Kind == models.RefExternalVideo && len(videoData) > 0 && string(videoData) != "null" {
			return upsertVideo(tx, userID, ref.ID, videoData)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.State(ctx, userID, ref)
}

// remove 幂等；视频菜谱既未点赞也未收藏时一并删除其元数据。
func (s *ReactionService) remove(ctx context.Context, userID uint, kind string, ref models.RecipeRef) (*ReactionState, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND kind = ? AND ref_kind = ? AND ref_id = ?", userID, kind, ref.Kind, ref.ID).
			Delete(&models.Reaction{}).Error
		if err != nil || ref.Kind != models.RefExternalVideo {
			return err
		}
		var left int64
		if err := tx.Model(&models.Reaction{}).
			Where("user_id = ? AND ref_kind = ? AND ref_id = ?", userID, ref.Kind, ref.ID).
			Count(&left).Error; err != nil {
			return err
		}
		if left > 0 {
			return nil
		}
		return tx.Where("user_id = ? AND video_id = ?", userID, ref.ID).Delete(&models.VideoRecipe{}).Error
	})
	if err != nil {
		return nil, err
	}
	return s.State(ctx, userID, ref)
}

// AddVideoData 合并保存视频菜谱元数据，键为视频 id。
func (s *ReactionService) AddVideoData(ctx context.Context, userID uint, videos map[string]json.RawMessage) error {
	if len(videos) == 0 {
		return invalid("videoData is required")
	}
	for id, data := range videos {
		if _, err := models.ParseRecipeRef(models.ExternalVideoRef(id).String()); err != nil {
			return invalid("invalid video id " + id)
		}
		if !json.Valid(data) {
			return invalid("videoData for " + id + " must be valid JSON")
		}
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for id, data := range videos {
			if err := upsertVideo(tx, userID, id, data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *ReactionService) State(ctx context.Context, userID uint, ref models.RecipeRef) (*ReactionState, error) {
	var kinds []string
	err := s.db.WithContext(ctx).Model(&models.Reaction{}).
		Where("user_id = ? AND ref_kind = ? AND ref_id = ?", userID, ref.Kind, ref.ID).
		Pluck("kind", &kinds).Error
	if err != nil {
		return nil, err
	}
	st := &ReactionState{Ref: ref.String()}
	for _, k := range kinds {
		switch k {
		case models.ReactionLike:
			st.Liked = true
		case models.ReactionBookmark:
			st.Bookmarked = true
		}
	}
	return st, nil
}

// Refs 返回用户某类反应指向的全部 RecipeRef，最近的在前。
func (s *ReactionService) Refs(ctx context.Context, userID uint, kind string) ([]models.RecipeRef, error) {
	var rows []models.Reaction
	if err := s.db.WithContext(ctx).Where("user_id = ? AND kind = ?", userID, kind).Order("id desc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.RecipeRef, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.RecipeRef{Kind: r.RefKind, ID: r.RefID})
	}
	return out, nil
}

func upsertVideo(tx *gorm.DB, userID uint, videoID string, data json.RawMessage) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "video_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&models.VideoRecipe{UserID: userID, VideoID: videoID, Data: datatypes.JSON(data)}).Error
}
