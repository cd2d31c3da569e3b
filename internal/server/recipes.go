package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"recipedia/internal/auth"
	"recipedia/internal/models"
	"recipedia/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListRecipes(c *gin.Context) {
	recipes, err := h.svc.Recipes.List(c.Request.Context())
	if err != nil {
		writeError(c, err, "list recipes")
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipes": recipes})
}

func (h *Handler) GetRecipe(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	recipe, err := h.svc.Recipes.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "get recipe")
		return
	}
	c.JSON(http.StatusOK, recipe)
}

func (h *Handler) CreateRecipe(c *gin.Context) {
	var in service.RecipeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	recipe, err := h.svc.Recipes.Create(c.Request.Context(), auth.GetUserID(c), in)
	if err != nil {
		writeError(c, err, "create recipe")
		return
	}
	c.JSON(http.StatusCreated, recipe)
}

// UpdateRecipe 只更新请求体中出现的字段。
func (h *Handler) UpdateRecipe(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var patch service.RecipePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	recipe, err := h.svc.Recipes.Update(c.Request.Context(), auth.GetUserID(c), id, patch)
	if err != nil {
		writeError(c, err, "update recipe")
		return
	}
	c.JSON(http.StatusOK, recipe)
}

func (h *Handler) DeleteRecipe(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Recipes.Delete(c.Request.Context(), auth.GetUserID(c), id); err != nil {
		writeError(c, err, "delete recipe")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "recipe deleted"})
}

// Profile 返回当前用户资料及其房间、上传和收藏的菜谱。
func (h *Handler) Profile(c *gin.Context) {
	profile, err := h.svc.Profiles.Get(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		writeError(c, err, "get profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}

func parseRef(c *gin.Context) (models.RecipeRef, bool) {
	ref, err := models.ParseRecipeRef(c.Param("ref"))
	if err != nil {
		badRequest(c, "invalid recipe reference")
		return models.RecipeRef{}, false
	}
	return ref, true
}

// reactionBody 读取可选的 recipeData，请求体可以为空。
func reactionBody(c *gin.Context) (json.RawMessage, bool) {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil, true
	}
	var req struct {
		RecipeData json.RawMessage `json:"recipeData"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid payload")
		return nil, false
	}
	return req.RecipeData, true
}

type reactFunc func(c *gin.Context, userID uint, ref models.RecipeRef, data json.RawMessage) (*service.ReactionState, error)

func (h *Handler) react(op string, fn reactFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		ref, ok := parseRef(c)
		if !ok {
			return
		}
		data, ok := reactionBody(c)
		if !ok {
			return
		}
		state, err := fn(c, auth.GetUserID(c), ref, data)
		if err != nil {
			writeError(c, err, op)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

func (h *Handler) Like() gin.HandlerFunc {
	return h.react("like", func(c *gin.Context, uid uint, ref models.RecipeRef, data json.RawMessage) (*service.ReactionState, error) {
		return h.svc.Reactions.Like(c.Request.Context(), uid, ref, data)
	})
}

func (h *Handler) Unlike() gin.HandlerFunc {
	return h.react("unlike", func(c *gin.Context, uid uint, ref models.RecipeRef, _ json.RawMessage) (*service.ReactionState, error) {
		return h.svc.Reactions.Unlike(c.Request.Context(), uid, ref)
	})
}

func (h *Handler) Bookmark() gin.HandlerFunc {
	return h.react("bookmark", func(c *gin.Context, uid uint, ref models.RecipeRef, data json.RawMessage) (*service.ReactionState, error) {
		return h.svc.Reactions.Bookmark(c.Request.Context(), uid, ref, data)
	})
}

func (h *Handler) Unbookmark() gin.HandlerFunc {
	return h.react("unbookmark", func(c *gin.Context, uid uint, ref models.RecipeRef, _ json.RawMessage) (*service.ReactionState, error) {
		return h.svc.Reactions.Unbookmark(c.Request.Context(), uid, ref)
	})
}

// AddVideoData 合并保存视频菜谱元数据。
func (h *Handler) AddVideoData(c *gin.Context) {
	var req struct {
		VideoData map[string]json.RawMessage `json:"videoData"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	if err := h.svc.Reactions.AddVideoData(c.Request.Context(), auth.GetUserID(c), req.VideoData); err != nil {
		writeError(c, err, "add video data")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "video data saved"})
}
