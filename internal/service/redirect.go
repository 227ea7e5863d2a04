package service

import (
	"errors"
	"net/url"
	"strings"

	"panel/internal/errs"
	"panel/internal/model"
)

// 受支持的界面语言
const (
	LangFR = "fr"
	LangEN = "en"
)

// NetworkErrorPath 网络错误页
const NetworkErrorPath = "/network-error"

// Redirect 守卫或流程给出的跳转指令
type Redirect struct {
	Location string `json:"location"`
	Reason   string `json:"reason"`
}

// Recorder 业务指标钩子，*metrics.Metrics 实现该接口
type Recorder interface {
	GuardDecision(kind, decision string)
	LoginTransition(phase string)
	IdentityFetch(source, result string)
	Logout()
}

type nopRecorder struct{}

func (nopRecorder) GuardDecision(string, string) {}
func (nopRecorder) LoginTransition(string)       {}
func (nopRecorder) IdentityFetch(string, string) {}
func (nopRecorder) Logout()                      {}

func recorderOrNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}

// NormalizeLang 非 fr/en 时回退到默认语言
func NormalizeLang(lang, fallback string) string {
	switch strings.ToLower(lang) {
	case LangFR:
		return LangFR
	case LangEN:
		return LangEN
	}
	if fallback == LangEN {
		return LangEN
	}
	return LangFR
}

// SignInPath 登录页
func SignInPath(lang string) string {
	return "/" + lang + "/sign-in"
}

// CustomerDashboardPath 客户面板首页
func CustomerDashboardPath(lang string) string {
	return "/" + lang + "/customer/dashboard"
}

// AdminDashboardPath 管理面板首页
func AdminDashboardPath(lang string) string {
	return "/" + lang + "/admin/dashboard"
}

// DashboardFor 按角色选择首页
func DashboardFor(id *model.Identity, lang string) string {
	if id != nil && id.IsAdmin {
		return AdminDashboardPath(lang)
	}
	return CustomerDashboardPath(lang)
}

// IsAdminPath 路径是否位于管理区
func IsAdminPath(path, lang string) bool {
	prefix := "/" + lang + "/admin"
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// ErrorType 网络错误页使用的错误分类
func ErrorType(err error) string {
	switch {
	case errs.IsTimeout(err):
		return "timeout"
	case errs.IsNetwork(err):
		return "network"
	}
	return "server"
}

// ErrorMessage 网络错误页展示的信息
func ErrorMessage(err error) string {
	var se *errs.ServerError
	if errs.IsNetwork(err) || errors.As(err, &se) {
		return errs.Message(err)
	}
	return errs.DefaultServerMessage
}

// NetworkErrorRedirect 跳转到可重试的网络错误页
func NetworkErrorRedirect(err error, returnTo string) *Redirect {
	if returnTo == "" {
		returnTo = "/"
	}
	q := url.Values{}
	q.Set("errorType", ErrorType(err))
	q.Set("message", ErrorMessage(err))
	q.Set("canRetry", "true")
	q.Set("returnTo", returnTo)
	return &Redirect{Location: NetworkErrorPath + "?" + q.Encode(), Reason: "network_error"}
}
