package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"Walcord/internal/service"
)

type FriendshipHandler struct {
	svc *service.FriendshipService
}

func NewFriendshipHandler(svc *service.FriendshipService) *FriendshipHandler {
	return &FriendshipHandler{svc: svc}
}

// Request 向 :id 发起好友申请；对方已向我申请时直接成为好友
func (h *FriendshipHandler) Request(c *gin.Context) {
	to, ok := paramID(c, "id")
	if !ok {
		return
	}
	status, changed, err := h.svc.Request(c.Request.Context(), userIDFromCtx(c), to)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "changed": changed})
}

// Accept 接受 :id 发来的申请
func (h *FriendshipHandler) Accept(c *gin.Context) {
	from, ok := paramID(c, "id")
	if !ok {
		return
	}
	changed, err := h.svc.Accept(c.Request.Context(), userIDFromCtx(c), from)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}

// Remove 删除好友、撤回或拒绝申请
func (h *FriendshipHandler) Remove(c *gin.Context) {
	other, ok := paramID(c, "id")
	if !ok {
		return
	}
	changed, err := h.svc.Remove(c.Request.Context(), userIDFromCtx(c), other)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}

func (h *FriendshipHandler) Status(c *gin.Context) {
	other, ok := paramID(c, "id")
	if !ok {
		return
	}
	status, err := h.svc.Status(c.Request.Context(), userIDFromCtx(c), other)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (h *FriendshipHandler) List(c *gin.Context) {
	cursor, limit := cursorQuery(c)
	rows, next, err := h.svc.List(c.Request.Context(), userIDFromCtx(c), cursor, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": rows, "next_cursor": next})
}

// Incoming 待我处理的申请
func (h *FriendshipHandler) Incoming(c *gin.Context) {
	cursor, limit := cursorQuery(c)
	rows, next, err := h.svc.Incoming(c.Request.Context(), userIDFromCtx(c), cursor, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": rows, "next_cursor": next})
}
