package router

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"Walcord/internal/handler"
	"Walcord/internal/logger"
	"Walcord/internal/middleware"
)

// Handlers 路由需要的全部 handler
type Handlers struct {
	User        *handler.UserHandler
	Email       *handler.EmailHandler
	Follow      *handler.FollowHandler
	Friendship  *handler.FriendshipHandler
	Interaction *handler.InteractionHandler
	Content     *handler.ContentHandler
	Feed        *handler.FeedHandler

	// Health 为空时 /ping 只返回 pong
	Health func(ctx context.Context) error
}

func InitRouter(h Handlers, auth middleware.Authenticator) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logger.Middleware())

	r.GET("/ping", func(c *gin.Context) {
		if h.Health != nil {
			if err := h.Health(c.Request.Context()); err != nil {
				logger.For(c).WithError(err).Warn("health check failed")
				c.JSON(http.StatusServiceUnavailable, gin.H{"msg": "unhealthy"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	requireUser := middleware.AuthMiddleware(auth)
	optionalUser := middleware.ViewerMiddleware(auth)

	// 邮件相关接口
	emailGroup := r.Group("/api/email")
	{
		emailGroup.POST("/:scope/code", h.Email.SendCode)
	}

	// 用户相关接口
	userGroup := r.Group("/api/user")
	{
		userGroup.POST("/register", h.User.Register)
		userGroup.POST("/login", h.User.Login)
		userGroup.POST("/logout", requireUser, h.User.Logout)
		userGroup.POST("/reset", h.User.ResetPassword)
	}

	// token相关接口
	tokenGroup := r.Group("/api/token")
	{
		tokenGroup.POST("/refresh", h.User.TokenRefresh)
	}

	// 登录态接口
	authGroup := r.Group("/api/auth")
	authGroup.Use(requireUser)
	{
		authGroup.POST("/change-password", h.User.ChangePassword)
	}

	// 用户关注相关接口
	followGroup := r.Group("/api/follow")
	followGroup.Use(requireUser)
	{
		followGroup.POST("", h.Follow.Follow)
		followGroup.GET("/followings", h.Follow.ListFollowings)
		followGroup.GET("/followers", h.Follow.ListFollowers)
		followGroup.GET("/relation", h.Follow.Relation)
	}

	// 好友相关接口
	friendGroup := r.Group("/api/friends")
	friendGroup.Use(requireUser)
	{
		friendGroup.GET("", h.Friendship.List)
		friendGroup.GET("/incoming", h.Friendship.Incoming)
		friendGroup.GET("/:id", h.Friendship.Status)
		friendGroup.POST("/:id/request", h.Friendship.Request)
		friendGroup.POST("/:id/accept", h.Friendship.Accept)
		friendGroup.DELETE("/:id", h.Friendship.Remove)
	}

	// 点赞评论，:kind 为 concert 或 memory
	entityGroup := r.Group("/api/entities/:kind/:id")
	{
		entityGroup.GET("/counts", optionalUser, h.Interaction.Counts)
		entityGroup.GET("/comments", h.Interaction.Comments)
		entityGroup.POST("/like", requireUser, h.Interaction.Like)
		entityGroup.DELETE("/like", requireUser, h.Interaction.Unlike)
		entityGroup.POST("/comments", requireUser, h.Interaction.Comment)
	}
	r.DELETE("/api/comments/:id", requireUser, h.Interaction.DeleteComment)

	// 内容发布
	contentGroup := r.Group("/api")
	contentGroup.Use(requireUser)
	{
		contentGroup.POST("/uploads/presign", h.Content.Presign)
		contentGroup.POST("/concerts", h.Content.CreateConcert)
		contentGroup.POST("/concerts/:id/media", h.Content.AddConcertMedia)
		contentGroup.POST("/memories", h.Content.CreateMemory)
		contentGroup.POST("/memories/:id/media", h.Content.AddMemoryMedia)
	}

	// feed 允许未登录访问，未登录时受限 scope 返回空
	feedGroup := r.Group("/api/feed")
	feedGroup.Use(optionalUser)
	{
		feedGroup.GET("/surfaces/:surface", h.Feed.Page)
		feedGroup.POST("/surfaces/:surface/sessions", h.Feed.Open)
		feedGroup.GET("/sessions/:sid", h.Feed.Session)
		feedGroup.POST("/sessions/:sid/sentinel", h.Feed.Sentinel)
		feedGroup.POST("/sessions/:sid/reset", h.Feed.Reset)
		feedGroup.DELETE("/sessions/:sid", h.Feed.Close)
	}

	return r
}
