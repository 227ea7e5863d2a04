package v1

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"panel/internal/model"
	"panel/internal/service"
	"panel/internal/session"
	"panel/pkg/api"
	"panel/pkg/middleware"
)

// AuthHandler 登录、二次验证与登出处理器
type AuthHandler struct {
	loginService  service.LoginService
	logoutService service.LogoutService
	defaultLang   string
}

// NewAuthHandler 创建认证处理器实例
func NewAuthHandler(loginService service.LoginService, logoutService service.LogoutService, defaultLang string) *AuthHandler {
	return &AuthHandler{
		loginService:  loginService,
		logoutService: logoutService,
		defaultLang:   defaultLang,
	}
}

// Register 注册路由
func (h *AuthHandler) Register(r *gin.RouterGroup) {
	r.GET("/session", h.Session)
	r.POST("/login", h.Login)
	r.POST("/login/dismiss", h.Dismiss)
	r.POST("/activation/resend", h.ResendActivation)
	r.POST("/logout", h.Logout)

	tfa := r.Group("/2fa")
	{
		tfa.POST("/selector", h.OpenSelector)
		tfa.POST("/method", h.SelectMethod)
		tfa.POST("/verify", h.Verify)
		tfa.POST("/cancel", h.Cancel)
	}
}

// sessionResponse 会话状态与当前登录尝试
type sessionResponse struct {
	session.View
	Attempt model.LoginAttempt `json:"attempt"`
}

// Session 返回当前会话状态
func (h *AuthHandler) Session(c *gin.Context) {
	sess := middleware.MustGetSession(c)
	api.Success(c, sessionResponse{
		View:    sess.State.View(),
		Attempt: sess.Attempt,
	})
}

// Login 提交用户名与密码
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	sess := middleware.MustGetSession(c)
	res, err := h.loginService.Submit(c.Request.Context(), sess, req, langOf(c, h.defaultLang))
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.Success(c, res)
}

// OpenSelector 打开验证方式选择
func (h *AuthHandler) OpenSelector(c *gin.Context) {
	sess := middleware.MustGetSession(c)
	res, err := h.loginService.OpenSelector(c.Request.Context(), sess)
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.Success(c, res)
}

// SelectMethod 选择二次验证方式
func (h *AuthHandler) SelectMethod(c *gin.Context) {
	var req struct {
		Channel string `json:"channel" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	ch, err := model.ParseChannel(req.Channel)
	if err != nil {
		api.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	sess := middleware.MustGetSession(c)
	res, err := h.loginService.SelectMethod(c.Request.Context(), sess, ch)
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.Success(c, res)
}

// Verify 提交验证码
func (h *AuthHandler) Verify(c *gin.Context) {
	var req model.OTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	sess := middleware.MustGetSession(c)
	res, err := h.loginService.Verify(c.Request.Context(), sess, req, langOf(c, h.defaultLang))
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.Success(c, res)
}

// Cancel 关闭二次验证
func (h *AuthHandler) Cancel(c *gin.Context) {
	sess := middleware.MustGetSession(c)
	res, err := h.loginService.Cancel(c.Request.Context(), sess)
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.Success(c, res)
}

// Dismiss 关闭未激活或失败提示
func (h *AuthHandler) Dismiss(c *gin.Context) {
	sess := middleware.MustGetSession(c)
	res, err := h.loginService.Dismiss(c.Request.Context(), sess)
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.Success(c, res)
}

// ResendActivation 重发激活邮件；请求体可以为空
func (h *AuthHandler) ResendActivation(c *gin.Context) {
	var req model.ResendActivationRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		api.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	sess := middleware.MustGetSession(c)
	if err := h.loginService.ResendActivation(c.Request.Context(), sess, req); err != nil {
		api.Fail(c, err)
		return
	}
	api.Success(c, gin.H{"sent": true})
}

// Logout 注销并返回登录页地址
func (h *AuthHandler) Logout(c *gin.Context) {
	sess := middleware.MustGetSession(c)
	redirect := h.logoutService.Logout(c.Request.Context(), sess, langOf(c, h.defaultLang))
	api.Success(c, redirect)
}
