package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"webserver/internal/config"
	"webserver/internal/pool"
)

// StatsProvider はワーカープールの状態を提供する
type StatsProvider interface {
	Stats() pool.Stats
}

// RootProvider は配信ルートのパスを提供する
type RootProvider interface {
	Dir() string
}

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ServerInfo は待ち受け設定
type ServerInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// StatusResponse はシステム状態のレスポンス
type StatusResponse struct {
	Status      string     `json:"status"`
	Server      ServerInfo `json:"server"`
	ContentRoot string     `json:"content_root"`
	Pool        pool.Stats `json:"pool"`
	Timestamp   time.Time  `json:"timestamp"`
}

// AdminHandler は管理用エンドポイントの実装
type AdminHandler struct {
	config *config.Config
	root   RootProvider
	stats  StatsProvider
}

// NewAdminRouter は管理用エンドポイントのルーターを作成する
func NewAdminRouter(cfg *config.Config, root RootProvider, stats StatsProvider) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	h := &AdminHandler{config: cfg, root: root, stats: stats}
	router.GET("/health", h.HealthCheck)
	router.GET("/api/status", h.GetStatus)
	return router
}

// HealthCheck はヘルスチェックエンドポイントの実装
func (h *AdminHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// GetStatus はシステム状態取得エンドポイントの実装
func (h *AdminHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		Status: "running",
		Server: ServerInfo{
			Host: h.config.Server.Host,
			Port: h.config.Server.Port,
		},
		ContentRoot: h.root.Dir(),
		Pool:        h.stats.Stats(),
		Timestamp:   time.Now(),
	})
}
