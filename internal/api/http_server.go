package api

import (
	"net/http"
	"snapgraph/internal/auth"
	"snapgraph/internal/config"
	"snapgraph/internal/metrics"
	"snapgraph/internal/rbac"
	"snapgraph/internal/service"
	"snapgraph/internal/storage"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Services 路由层依赖的服务
type Services struct {
	Identity      *service.IdentityService
	Accounts      *service.AccountService
	Graph         *service.GraphService
	Content       *service.ContentService
	Notifications *service.NotificationService
}

// HTTPHandler HTTP 请求处理器
type HTTPHandler struct {
	cfg               config.Config
	storage           storage.Storage
	storagePublicBase string
	authManager       *auth.Manager
	metrics           *metrics.Metrics

	identity      *service.IdentityService
	accounts      *service.AccountService
	graph         *service.GraphService
	content       *service.ContentService
	notifications *service.NotificationService
}

// NewHTTPHandler 创建 HTTP 处理器实例。m 可以为 nil。
func NewHTTPHandler(cfg config.Config, store storage.Storage, svc Services, m *metrics.Metrics) (*HTTPHandler, error) {
	expiry := time.Duration(cfg.JWTExpirationMinutes) * time.Minute
	authManager, err := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer, expiry)
	if err != nil {
		return nil, err
	}

	return &HTTPHandler{
		cfg:               cfg,
		storage:           store,
		storagePublicBase: normalisePublicBase(cfg.StoragePublicBaseURL),
		authManager:       authManager,
		metrics:           m,
		identity:          svc.Identity,
		accounts:          svc.Accounts,
		graph:             svc.Graph,
		content:           svc.Content,
		notifications:     svc.Notifications,
	}, nil
}

// normalisePublicBase 规范化公共 URL 基础路径
func normalisePublicBase(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		trimmed = "/files"
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return strings.TrimRight(trimmed, "/")
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	return strings.TrimRight(trimmed, "/")
}

// RegisterRoutes 注册全部路由
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}
	h.mountFiles(r)

	apiGroup := r.Group("/api")

	authGroup := apiGroup.Group("/auth")
	authGroup.POST("/register", h.Register)
	authGroup.POST("/login", h.Login)
	authGroup.POST("/password/forgot", h.ForgotPassword)
	authGroup.POST("/password/reset/:token", h.ResetPassword)
	authGroup.GET("/me", h.AuthMiddleware(), h.Me)
	authGroup.POST("/confirm/resend", h.AuthMiddleware(), h.ResendConfirmation)
	authGroup.POST("/confirm/:token", h.AuthMiddleware(), h.Confirm)

	public := apiGroup.Group("")
	public.Use(h.OptionalAuth())
	public.GET("/users/:id", h.GetUser)
	public.GET("/users/:id/followers", h.ListFollowers)
	public.GET("/users/:id/following", h.ListFollowing)
	public.GET("/users/:id/collections", h.ListCollections)
	public.GET("/photos/:id", h.GetPhoto)
	public.GET("/photos/:id/collectors", h.ListCollectors)

	protected := apiGroup.Group("")
	protected.Use(h.AuthMiddleware())

	me := protected.Group("/users/me")
	me.POST("/email", h.RequestEmailChange)
	me.POST("/email/:token", h.ApplyEmailChange)
	me.GET("/notification-settings", h.GetNotificationSettings)
	me.PUT("/notification-settings", h.UpdateNotificationSettings)
	me.PUT("/avatar", h.RequireConfirmed(), h.UploadAvatar)
	me.DELETE("", h.DeleteMe)

	social := protected.Group("")
	social.Use(h.RequireConfirmed())
	social.GET("/feed", h.Feed)
	social.POST("/users/:id/follow", h.RequirePermission(rbac.PermissionFollow), h.Follow)
	social.DELETE("/users/:id/follow", h.RequirePermission(rbac.PermissionFollow), h.Unfollow)
	social.POST("/photos", h.RequirePermission(rbac.PermissionUpload), h.CreatePhoto)
	social.DELETE("/photos/:id", h.DeletePhoto)
	social.POST("/photos/:id/collect", h.RequirePermission(rbac.PermissionCollect), h.Collect)
	social.DELETE("/photos/:id/collect", h.RequirePermission(rbac.PermissionCollect), h.Uncollect)
	social.POST("/photos/:id/comments", h.RequirePermission(rbac.PermissionComment), h.AddComment)

	inbox := protected.Group("/notifications")
	inbox.GET("", h.ListNotifications)
	inbox.GET("/unread-count", h.UnreadNotificationCount)
	inbox.POST("/read-all", h.MarkAllNotificationsRead)
	inbox.POST("/:id/read", h.MarkNotificationRead)

	admin := protected.Group("/admin/users")
	admin.GET("", h.RequirePermission(rbac.PermissionModerate), h.ListUsers)
	admin.POST("/:id/lock", h.RequirePermission(rbac.PermissionModerate), h.LockUser)
	admin.POST("/:id/unlock", h.RequirePermission(rbac.PermissionModerate), h.UnlockUser)
	admin.POST("/:id/block", h.RequirePermission(rbac.PermissionModerate), h.BlockUser)
	admin.POST("/:id/unblock", h.RequirePermission(rbac.PermissionModerate), h.UnblockUser)
	admin.PUT("/:id/role", h.RequirePermission(rbac.PermissionAdminister), h.AssignRole)
}
