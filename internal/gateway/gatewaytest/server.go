// Package gatewaytest 提供内存中的身份服务，用于测试网关与业务流程
package gatewaytest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

const (
	// AccessCookie 登录完成后的上游会话Cookie
	AccessCookie = "access_token"
	// PendingCookie 等待二次验证时的临时Cookie
	PendingCookie = "pending_2fa"
)

// User 测试账号
type User struct {
	ID             string
	Email          string
	Password       string
	FirstName      string
	LastName       string
	Admin          bool
	Active         bool
	Authenticator  bool
	WhatsApp       bool
	EmailMFA       bool
	PhoneNumber    string
	AccountType    string
	ActivationCode string

	hash       []byte
	totpSecret string
}

type failure struct {
	status int
	body   gin.H
}

// Server 模拟的身份服务
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	users    map[string]*User
	sessions map[string]string
	pending  map[string]string
	codes    map[string]string
	hits     map[string]int
	failures map[string][]failure
	delay    time.Duration
	sent     []string
}

// NewServer 启动模拟身份服务，测试结束时自动关闭
func NewServer(tb interface{ Cleanup(func()) }) *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{
		users:    make(map[string]*User),
		sessions: make(map[string]string),
		pending:  make(map[string]string),
		codes:    make(map[string]string),
		hits:     make(map[string]int),
		failures: make(map[string][]failure),
	}
	s.Server = httptest.NewServer(s.routes())
	tb.Cleanup(s.Close)
	return s
}

// AddUser 注册测试账号，启用验证器时生成 TOTP 密钥
func (s *Server) AddUser(u User) *User {
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	cp := u
	cp.hash = hash
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.AccountType == "" {
		cp.AccountType = "user"
	}
	if cp.Authenticator {
		key, err := totp.Generate(totp.GenerateOpts{Issuer: "panel-test", AccountName: cp.Email})
		if err != nil {
			panic(err)
		}
		cp.totpSecret = key.Secret()
	}

	s.mu.Lock()
	s.users[strings.ToLower(cp.Email)] = &cp
	s.mu.Unlock()
	return &cp
}

// TOTPCode 当前时间窗的验证器验证码
func (s *Server) TOTPCode(email string) string {
	s.mu.Lock()
	u := s.users[strings.ToLower(email)]
	s.mu.Unlock()
	if u == nil || u.totpSecret == "" {
		return ""
	}
	code, err := totp.GenerateCode(u.totpSecret, time.Now())
	if err != nil {
		return ""
	}
	return code
}

// SentCode 最近一次通过 WhatsApp 或邮件发出的验证码
func (s *Server) SentCode(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[strings.ToLower(email)]
}

// Sent 发出的通知记录（渠道:邮箱）
func (s *Server) Sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

// Hits 路径被请求的次数
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// FailNext 让下一次对 path 的请求返回指定状态码
func (s *Server) FailNext(path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body := gin.H{}
	if message != "" {
		body["detail"] = message
	}
	s.failures[path] = append(s.failures[path], failure{status: status, body: body})
}

// SetDelay 为每个请求增加延迟
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

func (s *Server) routes() http.Handler {
	r := gin.New()
	r.Use(s.track)

	auth := r.Group("/auth")
	{
		auth.GET("/info", s.info)
		auth.POST("/login", s.login)
		auth.POST("/2FA/login", s.verifyCode)
		auth.POST("/number/login", s.verifyNumber)
		auth.POST("/send-otp", s.sendOTP)
		auth.DELETE("/logout", s.logout)
		auth.POST("/send-activation-email", s.sendActivation)
		auth.POST("/register", s.register)
		auth.POST("/activation/:token", s.activate)
		auth.POST("/forgot-password", s.forgotPassword)
		auth.POST("/reset-password", s.resetPassword)
		auth.GET("/google/login", s.googleLogin)
		auth.GET("/axmaril/login-redirect", s.axmarilRedirect)
		auth.POST("/axmaril/login", s.axmarilLogin)
	}
	return r
}

func (s *Server) track(c *gin.Context) {
	path := c.Request.URL.Path

	s.mu.Lock()
	s.hits[path]++
	delay := s.delay
	var fail *failure
	if queue := s.failures[path]; len(queue) > 0 {
		fail = &queue[0]
		s.failures[path] = queue[1:]
	}
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-c.Request.Context().Done():
			c.Abort()
			return
		}
	}
	if fail != nil {
		c.AbortWithStatusJSON(fail.status, fail.body)
		return
	}
	c.Next()
}

func (s *Server) currentUser(c *gin.Context) *User {
	token, err := c.Cookie(AccessCookie)
	if err != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.sessions[token]
	if !ok {
		return nil
	}
	return s.users[email]
}

func (s *Server) pendingUser(c *gin.Context, email string) *User {
	token, err := c.Cookie(PendingCookie)
	if err != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pendingEmail, ok := s.pending[token]
	if !ok || pendingEmail != strings.ToLower(email) {
		return nil
	}
	return s.users[pendingEmail]
}

func (s *Server) issueSession(c *gin.Context, u *User) {
	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = strings.ToLower(u.Email)
	s.mu.Unlock()
	c.SetCookie(AccessCookie, token, 3600, "/", "", false, true)
	c.SetCookie(PendingCookie, "", -1, "/", "", false, true)
}

func payload(u *User) gin.H {
	return gin.H{
		"id":           u.ID,
		"email":        u.Email,
		"firstname":    u.FirstName,
		"lastname":     u.LastName,
		"accountType":  u.AccountType,
		"2FA":          yesNo(u.Authenticator),
		"whatsapp_mfa": yesNo(u.WhatsApp),
		"email_mfa":    yesNo(u.EmailMFA),
		"phone_number": u.PhoneNumber,
		"roles":        gin.H{"admin": u.Admin},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func (s *Server) info(c *gin.Context) {
	u := s.currentUser(c)
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
		return
	}
	c.JSON(http.StatusOK, payload(u))
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "Invalid payload"})
		return
	}

	s.mu.Lock()
	u := s.users[strings.ToLower(req.Username)]
	s.mu.Unlock()
	if u == nil || bcrypt.CompareHashAndPassword(u.hash, []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Incorrect username or password"})
		return
	}
	if !u.Active {
		c.JSON(http.StatusForbidden, gin.H{"detail": "Account not activated"})
		return
	}

	if u.Authenticator || u.WhatsApp || u.EmailMFA {
		token := uuid.NewString()
		s.mu.Lock()
		s.pending[token] = strings.ToLower(u.Email)
		s.mu.Unlock()
		c.SetCookie(PendingCookie, token, 600, "/", "", false, true)
		c.JSON(http.StatusOK, gin.H{
			"2FA":          yesNo(u.Authenticator),
			"whatsapp_mfa": yesNo(u.WhatsApp),
			"email_mfa":    yesNo(u.EmailMFA),
		})
		return
	}

	s.issueSession(c, u)
	c.JSON(http.StatusOK, payload(u))
}

type codeRequest struct {
	Code  string `json:"code"`
	Email string `json:"email"`
}

func (s *Server) verifyCode(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "Invalid payload"})
		return
	}
	u := s.pendingUser(c, req.Email)
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "No pending authentication"})
		return
	}
	if !u.Active {
		c.JSON(http.StatusForbidden, gin.H{"detail": "Account not activated"})
		return
	}

	var ok bool
	switch c.Query("fa_type") {
	case "otp":
		ok = u.totpSecret != "" && totp.Validate(req.Code, u.totpSecret)
	case "email":
		ok = u.EmailMFA && s.consumeCode(u.Email, req.Code)
	}
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid verification code"})
		return
	}
	s.issueSession(c, u)
	c.JSON(http.StatusOK, payload(u))
}

func (s *Server) verifyNumber(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "Invalid payload"})
		return
	}
	u := s.pendingUser(c, req.Email)
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "No pending authentication"})
		return
	}
	if !u.WhatsApp || !s.consumeCode(u.Email, req.Code) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid verification code"})
		return
	}
	s.issueSession(c, u)
	c.JSON(http.StatusOK, payload(u))
}

func (s *Server) consumeCode(email, code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(email)
	if want, ok := s.codes[key]; ok && want == code {
		delete(s.codes, key)
		return true
	}
	return false
}

func (s *Server) sendOTP(c *gin.Context) {
	email := strings.ToLower(c.Query("email"))
	faType := c.Query("fa_type")
	if faType != "number" && faType != "email" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Unsupported fa_type"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[email]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "User not found"})
		return
	}
	code := strings.ReplaceAll(uuid.NewString(), "-", "")
	digits := make([]byte, 0, 6)
	for i := 0; len(digits) < 6; i++ {
		digits = append(digits, '0'+code[i%len(code)]%10)
	}
	s.codes[email] = string(digits)
	s.sent = append(s.sent, faType+":"+email)
	c.JSON(http.StatusOK, gin.H{"message": "Code sent"})
}

func (s *Server) logout(c *gin.Context) {
	if token, err := c.Cookie(AccessCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
	}
	c.SetCookie(AccessCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (s *Server) sendActivation(c *gin.Context) {
	email := strings.ToLower(c.Query("email"))
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[email]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "User not found"})
		return
	}
	s.sent = append(s.sent, "activation:"+email)
	c.JSON(http.StatusOK, gin.H{"message": "Activation email sent"})
}

func (s *Server) register(c *gin.Context) {
	var req struct {
		Firstname   string `json:"firstname"`
		Lastname    string `json:"lastname"`
		Email       string `json:"email"`
		Password    string `json:"password"`
		AccountType string `json:"accountType"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "Invalid payload"})
		return
	}

	s.mu.Lock()
	_, exists := s.users[strings.ToLower(req.Email)]
	s.mu.Unlock()
	if exists {
		c.JSON(http.StatusConflict, gin.H{"detail": "Email already registered"})
		return
	}

	s.AddUser(User{
		Email:          req.Email,
		Password:       req.Password,
		FirstName:      req.Firstname,
		LastName:       req.Lastname,
		AccountType:    req.AccountType,
		ActivationCode: "act-" + strings.ToLower(req.Email),
	})
	s.mu.Lock()
	s.sent = append(s.sent, "activation:"+strings.ToLower(req.Email))
	s.mu.Unlock()
	c.JSON(http.StatusCreated, gin.H{"message": "Account created"})
}

func (s *Server) activate(c *gin.Context) {
	token := c.Param("token")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ActivationCode != "" && u.ActivationCode == token {
			u.Active = true
			u.ActivationCode = ""
			c.JSON(http.StatusOK, gin.H{"message": "Account activated"})
			return
		}
	}
	c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid or expired activation link"})
}

func (s *Server) forgotPassword(c *gin.Context) {
	email := strings.ToLower(c.Query("email"))
	s.mu.Lock()
	if _, ok := s.users[email]; ok {
		s.sent = append(s.sent, "reset:"+email)
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"message": "If the account exists, an email has been sent"})
}

func (s *Server) resetPassword(c *gin.Context) {
	var req struct {
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "Invalid payload"})
		return
	}
	email := strings.TrimPrefix(c.Query("token"), "reset-")

	s.mu.Lock()
	u := s.users[strings.ToLower(email)]
	s.mu.Unlock()
	if u == nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid or expired token"})
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	s.mu.Lock()
	u.hash = hash
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

func (s *Server) googleLogin(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"redirect_url": "https://accounts.google.com/o/oauth2/auth?redirect=" + c.Query("redirection_url"),
	})
}

func (s *Server) axmarilRedirect(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"redirect_uri": "https://axmaril.example/authorize?redirect=" + c.Query("redirection_url"),
	})
}

func (s *Server) axmarilLogin(c *gin.Context) {
	email := strings.TrimPrefix(c.Query("axmaril_token"), "axm-")
	s.mu.Lock()
	u := s.users[strings.ToLower(email)]
	s.mu.Unlock()
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid Axmaril token"})
		return
	}
	s.issueSession(c, u)
	c.JSON(http.StatusOK, payload(u))
}
