package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"panel/internal/model"
	"panel/internal/service"
	"panel/pkg/api"
	"panel/pkg/middleware"
)

// AccountHandler 注册、激活、密码与第三方登录处理器
type AccountHandler struct {
	accountService service.AccountService
	defaultLang    string
}

// NewAccountHandler 创建账号处理器实例
func NewAccountHandler(accountService service.AccountService, defaultLang string) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		defaultLang:    defaultLang,
	}
}

// Register 注册路由
func (h *AccountHandler) Register(r *gin.RouterGroup) {
	r.POST("/register", h.SignUp)
	r.POST("/activate/:token", h.Activate)

	password := r.Group("/password")
	{
		password.POST("/forgot", h.ForgotPassword)
		password.POST("/reset", h.ResetPassword)
	}

	oauth := r.Group("/oauth")
	{
		oauth.GET("/:provider", h.OAuthStart)
		oauth.POST("/axmaril/callback", h.AxmarilCallback)
	}
}

// SignUp 创建账号，invitation 查询参数为邀请码
func (h *AccountHandler) SignUp(c *gin.Context) {
	var req model.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	sess := middleware.MustGetSession(c)
	if err := h.accountService.Register(c.Request.Context(), sess, req, c.Query("invitation")); err != nil {
		api.Fail(c, err)
		return
	}
	api.Success(c, gin.H{"registered": true})
}

// Activate 激活账号
func (h *AccountHandler) Activate(c *gin.Context) {
	sess := middleware.MustGetSession(c)
	if err := h.accountService.Activate(c.Request.Context(), sess, c.Param("token")); err != nil {
		api.Fail(c, err)
		return
	}
	api.Success(c, gin.H{"activated": true})
}

// ForgotPassword 发送重置密码邮件
func (h *AccountHandler) ForgotPassword(c *gin.Context) {
	var req model.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	sess := middleware.MustGetSession(c)
	if err := h.accountService.ForgotPassword(c.Request.Context(), sess, req); err != nil {
		api.Fail(c, err)
		return
	}
	api.Success(c, gin.H{"sent": true})
}

// ResetPassword 使用邮件中的令牌重置密码
func (h *AccountHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
		model.ResetPasswordRequest
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	sess := middleware.MustGetSession(c)
	if err := h.accountService.ResetPassword(c.Request.Context(), sess, req.Token, req.ResetPasswordRequest); err != nil {
		api.Fail(c, err)
		return
	}
	api.Success(c, gin.H{"reset": true})
}

// OAuthStart 跳转到第三方登录页
func (h *AccountHandler) OAuthStart(c *gin.Context) {
	sess := middleware.MustGetSession(c)
	target, err := h.accountService.OAuthStart(c.Request.Context(), sess, c.Param("provider"), langOf(c, h.defaultLang))
	if err != nil {
		api.Fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, target)
}

// AxmarilCallback 使用 Axmaril 回调令牌登录
func (h *AccountHandler) AxmarilCallback(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	sess := middleware.MustGetSession(c)
	redirect, err := h.accountService.AxmarilCallback(c.Request.Context(), sess, req.Token, langOf(c, h.defaultLang))
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.Success(c, redirect)
}
