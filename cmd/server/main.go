package main

import (
	"context"
	"fmt"
	"net/http"
	"snapgraph/internal/api"
	"snapgraph/internal/auth"
	"snapgraph/internal/config"
	"snapgraph/internal/metrics"
	"snapgraph/internal/model"
	"snapgraph/internal/model/sql"
	"snapgraph/internal/service"
	"snapgraph/internal/storage"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

func main() {
	// 初始化配置
	cfg, err := config.ParseConfig()
	if err != nil {
		logrus.WithError(err).Error("Failed to parse config")
		return
	}

	// 初始化logger
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	repo, err := sql.InitRepository(&cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise repository")
		return
	}

	// 角色和权限必须与内置矩阵一致，否则拒绝启动
	if err := model.InitRoles(context.Background(), repo); err != nil {
		logrus.WithError(err).Fatal("failed to synchronise roles")
	}

	store, err := storage.NewStorage(cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise storage")
		return
	}

	secret, generated, err := auth.ResolveSecret(cfg.ActionTokenSecret)
	if err != nil {
		logrus.WithError(err).Error("failed to resolve action token secret")
		return
	}
	if generated {
		logrus.Warn("ACTION_TOKEN_SECRET not set, using a random secret; outstanding links expire on restart")
	}
	codec, err := auth.NewActionTokenCodec(secret, cfg.ActionTokenIssuer, auth.ActionTokenTTL{
		Confirm:       cfg.ConfirmTokenTTL,
		ResetPassword: cfg.ResetPasswordTokenTTL,
		ChangeEmail:   cfg.ChangeEmailTokenTTL,
	}, time.Now)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise action token codec")
		return
	}

	denylist, err := newDenylist(cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise token denylist")
		return
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.NewMetrics("snapgraph", prometheus.DefaultRegisterer)
	}

	notifier := service.NewNotificationService(repo, m, cfg.PublicBaseURL)
	services := api.Services{
		Identity: service.NewIdentityService(repo, store, service.IdentityOptions{
			AdminEmail:                        cfg.AdminEmail,
			DefaultReceiveFollowNotification:  cfg.DefaultReceiveFollowNotification,
			DefaultReceiveCommentNotification: cfg.DefaultReceiveCommentNotification,
			DefaultReceiveCollectNotification: cfg.DefaultReceiveCollectNotification,
		}),
		Accounts:      service.NewAccountService(repo, codec, denylist, service.LogMailer{}, m, cfg.PublicBaseURL),
		Graph:         service.NewGraphService(repo, notifier, m, cfg.FeedPageSize),
		Content:       service.NewContentService(repo, store, notifier),
		Notifications: notifier,
	}

	httpHandler, err := api.NewHTTPHandler(cfg, store, services, m)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise http handler")
		return
	}

	// 设置Gin模式
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// 添加中间件
	r.Use(LoggingMiddleware())
	r.Use(CORSMiddleware())
	r.Use(m.Middleware())
	r.Use(gin.Recovery())

	httpHandler.RegisterRoutes(r)

	serverHost := fmt.Sprintf("0.0.0.0:%s", cfg.HTTPPort)
	logrus.WithField("host", serverHost).Info("服务器启动")
	// 创建HTTP服务器
	httpServer := &http.Server{
		Addr:         serverHost,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	err = httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logrus.WithError(err).Error("服务器启动失败")
	}
}

// newDenylist 按配置创建已使用令牌的黑名单，未配置时返回 nil
func newDenylist(cfg config.Config) (auth.Denylist, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.TokenDenylist)) {
	case "":
		return nil, nil
	case "memory":
		return auth.NewMemoryDenylist(nil), nil
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		denylist, err := auth.NewRedisDenylist(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return denylist, nil
	default:
		return nil, fmt.Errorf("unsupported token denylist: %s", cfg.TokenDenylist)
	}
}

// CORSMiddleware CORS跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// LoggingMiddleware 日志记录中间件
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logrus.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"duration":  time.Since(start).String(),
			"size":      c.Writer.Size(),
			"client_ip": c.ClientIP(),
		}).Info("http_request")
	}
}
