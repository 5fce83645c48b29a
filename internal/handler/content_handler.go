package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"Walcord/internal/feed"
	"Walcord/internal/service"
)

type ContentHandler struct {
	svc *service.ContentService
}

func NewContentHandler(svc *service.ContentService) *ContentHandler {
	return &ContentHandler{svc: svc}
}

// Presign 先拿上传地址直传对象存储，再用返回的 key 创建内容
func (h *ContentHandler) Presign(c *gin.Context) {
	var req struct {
		Kind     string `json:"kind" binding:"required,oneof=concert memory"`
		Filename string `json:"filename" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	ticket, err := h.svc.PresignUpload(c.Request.Context(), userIDFromCtx(c), feed.Kind(req.Kind), req.Filename)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (h *ContentHandler) CreateConcert(c *gin.Context) {
	var req service.ConcertInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	concert, err := h.svc.CreateConcert(c.Request.Context(), userIDFromCtx(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": concert.ID})
}

func (h *ContentHandler) CreateMemory(c *gin.Context) {
	var req service.MemoryInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	memory, err := h.svc.CreateMemory(c.Request.Context(), userIDFromCtx(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": memory.ID})
}

type addMediaReq struct {
	Media []service.MediaInput `json:"media" binding:"required,dive"`
}

// AddConcertMedia 任何登录用户都可以给同一场演出补充现场照片
func (h *ContentHandler) AddConcertMedia(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req addMediaReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	if err := h.svc.AddConcertMedia(c.Request.Context(), userIDFromCtx(c), id, req.Media); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}

func (h *ContentHandler) AddMemoryMedia(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req addMediaReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	if err := h.svc.AddMemoryMedia(c.Request.Context(), userIDFromCtx(c), id, req.Media); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}
