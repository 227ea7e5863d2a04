package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"panel/internal/session"
	"panel/pkg/logger"
)

// Proxy 将 /api/{service}/* 转发到对应微服务
//
// 浏览器只持有面板会话Cookie；上游Cookie由会话保存并在转发时注入。
type Proxy struct {
	name     string
	target   *url.URL
	observer Observer
	rp       *httputil.ReverseProxy
}

// NewProxy 创建反向代理
func NewProxy(name, target string, observer Observer) (*Proxy, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse %s service url: %w", name, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid %s service url %q", name, target)
	}

	p := &Proxy{name: name, target: u, observer: observer}
	p.rp = &httputil.ReverseProxy{
		Rewrite:        p.rewrite,
		ModifyResponse: p.modifyResponse,
		ErrorHandler:   p.handleError,
	}
	return p, nil
}

// Name 服务名称
func (p *Proxy) Name() string {
	return p.name
}

// Target 上游地址
func (p *Proxy) Target() string {
	return p.target.String()
}

// ServeHTTP 转发请求
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	p.rp.ServeHTTP(rec, r)
	if p.observer != nil {
		p.observer.ObserveUpstream(p.name, r.Method, rec.status, time.Since(start))
	}
}

func (p *Proxy) rewrite(pr *httputil.ProxyRequest) {
	pr.SetURL(p.target)
	pr.Out.URL.Path = strings.TrimRight(p.target.Path, "/") + strings.TrimPrefix(pr.In.URL.Path, "/api")
	pr.Out.URL.RawPath = ""
	pr.SetXForwarded()

	pr.Out.Header.Del("Cookie")
	if sess := session.FromContext(pr.In.Context()); sess != nil {
		for _, ck := range sess.Credentials.Cookies() {
			pr.Out.AddCookie(ck)
		}
	}
	logger.Debug("proxy %s %s -> %s", pr.In.Method, pr.In.URL.Path, pr.Out.URL.String())
}

func (p *Proxy) modifyResponse(resp *http.Response) error {
	sess := session.FromContext(resp.Request.Context())
	if sess == nil {
		resp.Header.Del("Set-Cookie")
		return nil
	}

	sess.Credentials.Merge(resp.Cookies())
	resp.Header.Del("Set-Cookie")

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		sess.Cache.Clear()
		sess.State.Reset()
	case isLogout(resp.Request) && resp.StatusCode >= 200 && resp.StatusCode < 300:
		sess.Destroy()
	}
	return nil
}

// isLogout 判断是否为上游注销请求
func isLogout(r *http.Request) bool {
	return r.Method == http.MethodDelete && strings.HasSuffix(strings.TrimRight(r.URL.Path, "/"), "/auth/logout")
}

func (p *Proxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	logger.Error("%s proxy error: %v", strings.ToUpper(p.name), err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   p.name + " service unavailable",
		"message": err.Error(),
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
