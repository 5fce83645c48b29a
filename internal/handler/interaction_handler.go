package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"Walcord/internal/feed"
	"Walcord/internal/service"
)

type InteractionHandler struct {
	svc *service.InteractionService
}

func NewInteractionHandler(svc *service.InteractionService) *InteractionHandler {
	return &InteractionHandler{svc: svc}
}

// entity 解析 /:kind/:id
func entity(c *gin.Context) (feed.Kind, uint64, bool) {
	kind, err := feed.ParseKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return "", 0, false
	}
	id, ok := paramID(c, "id")
	return kind, id, ok
}

func (h *InteractionHandler) Like(c *gin.Context) {
	kind, id, ok := entity(c)
	if !ok {
		return
	}
	changed, err := h.svc.Like(c.Request.Context(), userIDFromCtx(c), kind, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}

func (h *InteractionHandler) Unlike(c *gin.Context) {
	kind, id, ok := entity(c)
	if !ok {
		return
	}
	changed, err := h.svc.Unlike(c.Request.Context(), userIDFromCtx(c), kind, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}

// Counts 计数和当前用户是否点过赞，只刷新这一行
func (h *InteractionHandler) Counts(c *gin.Context) {
	kind, id, ok := entity(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	counts, err := h.svc.Counts(ctx, kind, id)
	if err != nil {
		fail(c, err)
		return
	}
	liked, err := h.svc.IsLiked(ctx, userIDFromCtx(c), kind, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"like_count": counts.Likes, "comment_count": counts.Comments, "liked": liked})
}

func (h *InteractionHandler) Comment(c *gin.Context) {
	kind, id, ok := entity(c)
	if !ok {
		return
	}
	var req struct {
		Body string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	comment, err := h.svc.Comment(c.Request.Context(), userIDFromCtx(c), kind, id, req.Body)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (h *InteractionHandler) Comments(c *gin.Context) {
	kind, id, ok := entity(c)
	if !ok {
		return
	}
	cursor, limit := cursorQuery(c)
	rows, next, err := h.svc.Comments(c.Request.Context(), kind, id, cursor, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": rows, "next_cursor": next})
}

func (h *InteractionHandler) DeleteComment(c *gin.Context) {
	commentID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteComment(c.Request.Context(), userIDFromCtx(c), commentID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}
