package v1

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"panel/internal/errs"
	"panel/internal/service"
	"panel/pkg/api"
	"panel/pkg/middleware"
)

// NetworkHandler 网络错误页的重试处理器
type NetworkHandler struct {
	guardService service.GuardService
}

// NewNetworkHandler 创建网络重试处理器实例
func NewNetworkHandler(guardService service.GuardService) *NetworkHandler {
	return &NetworkHandler{guardService: guardService}
}

// Register 注册路由
func (h *NetworkHandler) Register(r *gin.RouterGroup) {
	r.POST("/network/retry", h.Retry)
}

// Retry 身份服务恢复后返回原页面地址
func (h *NetworkHandler) Retry(c *gin.Context) {
	var req struct {
		ReturnTo string `json:"returnTo"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		api.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	sess := middleware.MustGetSession(c)
	if err := h.guardService.Retry(c.Request.Context(), sess); err != nil {
		api.Error(c, api.StatusOf(err), errs.Message(err), gin.H{
			"errorType": service.ErrorType(err),
			"canRetry":  true,
		})
		return
	}
	api.Success(c, service.Redirect{Location: safeReturnTo(req.ReturnTo), Reason: "retry"})
}

// safeReturnTo 只允许站内路径
func safeReturnTo(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		return "/"
	}
	return p
}
