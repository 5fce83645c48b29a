package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"Walcord/internal/feed"
	"Walcord/internal/service"
)

type FeedHandler struct {
	svc *service.FeedService
}

func NewFeedHandler(svc *service.FeedService) *FeedHandler {
	return &FeedHandler{svc: svc}
}

type feedQuery struct {
	Scope string `form:"scope" json:"scope"`
	feed.Filter
}

// bindOptionalJSON 所有字段都可选时使用，空 body 按零值处理
func bindOptionalJSON(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func caller(c *gin.Context) service.Caller {
	return service.Caller{ViewerID: userIDFromCtx(c), Addr: c.ClientIP()}
}

// scope 为空时使用场景默认值
func (q feedQuery) scope() (feed.Scope, error) {
	if q.Scope == "" {
		return "", nil
	}
	return feed.ParseScope(q.Scope)
}

// Page 无状态分页 GET /api/feed/surfaces/:surface?scope=&artist=&tour=&page=
func (h *FeedHandler) Page(c *gin.Context) {
	var q feedQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	scope, err := q.scope()
	if err != nil {
		fail(c, err)
		return
	}
	page, _ := strconv.Atoi(c.Query("page"))

	view, err := h.svc.Page(c.Request.Context(), userIDFromCtx(c), c.Param("surface"), scope, q.Filter, page)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Open 创建会话并返回第一页
func (h *FeedHandler) Open(c *gin.Context) {
	var q feedQuery
	if err := bindOptionalJSON(c, &q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	scope, err := q.scope()
	if err != nil {
		fail(c, err)
		return
	}
	view, err := h.svc.Open(c.Request.Context(), caller(c), c.Param("surface"), scope, q.Filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *FeedHandler) Session(c *gin.Context) {
	view, err := h.svc.Snapshot(c.Request.Context(), c.Param("sid"), userIDFromCtx(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Sentinel 客户端上报哨兵到视口底部的距离（像素）
func (h *FeedHandler) Sentinel(c *gin.Context) {
	var req struct {
		Distance *int `json:"distance" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	view, started, err := h.svc.Sentinel(c.Request.Context(), c.Param("sid"), userIDFromCtx(c), *req.Distance)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": view, "started": started})
}

// Reset 切换 scope 或 filter，从第一页重新开始
func (h *FeedHandler) Reset(c *gin.Context) {
	var q feedQuery
	if err := bindOptionalJSON(c, &q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	scope, err := q.scope()
	if err != nil {
		fail(c, err)
		return
	}
	view, err := h.svc.Reset(c.Request.Context(), c.Param("sid"), userIDFromCtx(c), scope, q.Filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *FeedHandler) Close(c *gin.Context) {
	if err := h.svc.Close(c.Param("sid"), caller(c)); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
