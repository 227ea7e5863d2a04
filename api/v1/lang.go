package v1

import (
	"github.com/gin-gonic/gin"

	"panel/internal/service"
)

// langOf 从查询参数中读取界面语言
func langOf(c *gin.Context, fallback string) string {
	return service.NormalizeLang(c.Query("lang"), fallback)
}
