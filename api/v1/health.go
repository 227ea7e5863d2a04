package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"panel/pkg/version"
)

// Upstream 健康检查中展示的上游服务
type Upstream interface {
	Name() string
	Target() string
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	upstreams []Upstream
}

// NewHealthHandler 创建健康检查处理器实例
func NewHealthHandler(upstreams ...Upstream) *HealthHandler {
	return &HealthHandler{upstreams: upstreams}
}

// Health 返回服务状态
func (h *HealthHandler) Health(c *gin.Context) {
	services := make(map[string]string, len(h.upstreams))
	for _, u := range h.upstreams {
		services[u.Name()] = u.Target()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   version.GetVersion(),
		"services":  services,
	})
}
