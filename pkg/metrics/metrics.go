package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "panel"

// Metrics 面板指标
type Metrics struct {
	registry *prometheus.Registry

	GuardDecisions   *prometheus.CounterVec
	LoginTransitions *prometheus.CounterVec
	IdentityFetches  *prometheus.CounterVec
	Logouts          prometheus.Counter
	UpstreamDuration *prometheus.HistogramVec
}

// New 创建指标并注册到独立的 Registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		GuardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_decisions_total",
			Help:      "Route guard outcomes by guard kind and decision.",
		}, []string{"kind", "decision"}),
		LoginTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_transitions_total",
			Help:      "Login state machine transitions by target phase.",
		}, []string{"phase"}),
		IdentityFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identity_fetches_total",
			Help:      "Identity lookups by source (cache or network) and result.",
		}, []string{"source", "result"}),
		Logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logouts_total",
			Help:      "Completed logouts.",
		}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of requests to upstream microservices.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "method", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.GuardDecisions,
		m.LoginTransitions,
		m.IdentityFetches,
		m.Logouts,
		m.UpstreamDuration,
	)
	return m
}

// Registry 指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveUpstream 记录一次上游请求，status 为 0 表示网络错误
func (m *Metrics) ObserveUpstream(service, method string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.UpstreamDuration.WithLabelValues(service, method, label).Observe(elapsed.Seconds())
}

// GuardDecision 记录守卫结果
func (m *Metrics) GuardDecision(kind, decision string) {
	m.GuardDecisions.WithLabelValues(kind, decision).Inc()
}

// LoginTransition 记录状态机进入的阶段
func (m *Metrics) LoginTransition(phase string) {
	m.LoginTransitions.WithLabelValues(phase).Inc()
}

// IdentityFetch 记录身份查询
func (m *Metrics) IdentityFetch(source, result string) {
	m.IdentityFetches.WithLabelValues(source, result).Inc()
}

// Logout 记录登出
func (m *Metrics) Logout() {
	m.Logouts.Inc()
}
