package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"panel/internal/errs"
)

const (
	// DefaultTimeout 单次请求默认超时
	DefaultTimeout = 30 * time.Second
	// DefaultRetryLimit 幂等请求的默认重试次数
	DefaultRetryLimit = 2

	defaultBackoff = 300 * time.Millisecond
	maxBodySize    = 4 << 20
)

// retryableStatus 可重试的状态码
var retryableStatus = map[int]bool{
	http.StatusRequestTimeout:        true,
	http.StatusRequestEntityTooLarge: true,
	http.StatusTooManyRequests:       true,
	http.StatusInternalServerError:   true,
	http.StatusBadGateway:            true,
	http.StatusServiceUnavailable:    true,
	http.StatusGatewayTimeout:        true,
}

// CredentialStore 浏览器会话持有的上游Cookie
type CredentialStore interface {
	Cookies() []*http.Cookie
	Merge(cookies []*http.Cookie)
}

// Observer 上游请求观测钩子
type Observer interface {
	ObserveUpstream(service, method string, status int, elapsed time.Duration)
}

// Request 一次上游调用
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    interface{}
	Timeout time.Duration
}

// Option 客户端配置项
type Option func(*Client)

// WithHTTPClient 指定底层 http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout 指定默认超时
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetry 指定重试次数与初始退避
func WithRetry(limit uint64, backoff time.Duration) Option {
	return func(c *Client) {
		c.retryLimit = limit
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

// WithObserver 指定观测钩子
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// Client 上游微服务客户端
type Client struct {
	name       string
	baseURL    string
	http       *http.Client
	timeout    time.Duration
	retryLimit uint64
	backoff    time.Duration
	observer   Observer
}

// NewClient 创建上游客户端
func NewClient(name, baseURL string, opts ...Option) *Client {
	c := &Client{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{},
		timeout:    DefaultTimeout,
		retryLimit: DefaultRetryLimit,
		backoff:    defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL 上游服务地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do 发送请求并返回响应体
//
// 传输失败、取消和超时返回 *errs.NetworkError，非2xx返回 *errs.ServerError。
// 只有 GET/PUT/DELETE 在可重试状态码上重试。
func (c *Client) Do(ctx context.Context, creds CredentialStore, req Request) ([]byte, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body []byte
	attempt := func(ctx context.Context) error {
		out, err := c.once(ctx, creds, req)
		if err != nil {
			if idempotent(req.Method) && isRetryable(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		body = out
		return nil
	}

	backoff := retry.WithMaxRetries(c.retryLimit, retry.NewExponential(c.backoff))
	if err := retry.Do(ctx, backoff, attempt); err != nil {
		return nil, c.normalize(req, err)
	}
	return body, nil
}

// DoJSON 发送请求并将响应解码到 out
func (c *Client) DoJSON(ctx context.Context, creds CredentialStore, req Request, out interface{}) error {
	body, err := c.Do(ctx, creds, req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.Path, err)
	}
	return nil
}

func (c *Client) once(ctx context.Context, creds CredentialStore, req Request) ([]byte, error) {
	httpReq, err := c.build(ctx, creds, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.observe(req.Method, 0, time.Since(start))
		return nil, c.networkError(ctx, req, err)
	}
	defer resp.Body.Close()

	if creds != nil {
		creds.Merge(resp.Cookies())
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	c.observe(req.Method, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, c.networkError(ctx, req, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &errs.ServerError{Status: resp.StatusCode, Message: errorMessage(data)}
	}
	return data, nil
}

func (c *Client) build(ctx context.Context, creds CredentialStore, req Request) (*http.Request, error) {
	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var reader io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", req.Method, req.Path, err)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", req.Method, req.Path, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if reader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if creds != nil {
		for _, ck := range creds.Cookies() {
			httpReq.AddCookie(ck)
		}
	}
	return httpReq, nil
}

func (c *Client) networkError(ctx context.Context, req Request, err error) error {
	var ne net.Error
	timeout := errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &ne) && ne.Timeout())
	return &errs.NetworkError{Op: req.Method + " " + req.Path, Timeout: timeout, Err: err}
}

// normalize retry.Do 在等待期间被取消时只返回 ctx.Err()
func (c *Client) normalize(req Request, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		if !errs.IsNetwork(err) {
			return &errs.NetworkError{
				Op:      req.Method + " " + req.Path,
				Timeout: errors.Is(err, context.DeadlineExceeded),
				Err:     err,
			}
		}
	}
	return err
}

func (c *Client) observe(method string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveUpstream(c.name, method, status, elapsed)
	}
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

func isRetryable(err error) bool {
	var se *errs.ServerError
	return errors.As(err, &se) && retryableStatus[se.Status]
}

// errorMessage 依次取响应体的 message、detail 字段
func errorMessage(body []byte) string {
	var payload struct {
		Message interface{} `json:"message"`
		Detail  interface{} `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return errs.DefaultServerMessage
	}
	if s := textOf(payload.Message); s != "" {
		return s
	}
	if s := textOf(payload.Detail); s != "" {
		return s
	}
	return errs.DefaultServerMessage
}

func textOf(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
