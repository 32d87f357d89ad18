package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"acdmx.com/pkg/metrics"
	"github.com/sony/gobreaker/v2"
)

type Rule struct {
	// Half-Open 状态允许通过的探测请求数
	MaxRequests uint32
	// Closed 状态计数窗口
	Interval time.Duration
	// >0 启用 rolling window
	BucketPeriod time.Duration
	// Open 持续时间，到期进入 Half-Open
	Timeout time.Duration

	// 触发条件二选一
	TripConsecutiveFailures uint32
	TripFailureRate         float64 // 0~1
	TripMinRequests         uint32
}

// ErrPermanent 包一层表示“调用方自己的错”，不计入熔断失败
var ErrPermanent = errors.New("permanent")

// Manager 按目标名懒创建熔断器
type Manager struct {
	service string
	mu      sync.RWMutex
	m       map[string]*gobreaker.CircuitBreaker[struct{}]

	defaultRule Rule
	rules       map[string]Rule
}

func NewManager(service string, defaultRule Rule, perTarget map[string]Rule) *Manager {
	if defaultRule.MaxRequests == 0 {
		defaultRule.MaxRequests = 5
	}
	if defaultRule.Timeout <= 0 {
		defaultRule.Timeout = 3 * time.Second
	}
	if defaultRule.Interval <= 0 {
		defaultRule.Interval = 10 * time.Second
	}
	if defaultRule.TripConsecutiveFailures == 0 && defaultRule.TripFailureRate == 0 {
		defaultRule.TripConsecutiveFailures = 10
	}
	if defaultRule.TripMinRequests == 0 {
		defaultRule.TripMinRequests = 20
	}
	return &Manager{
		service:     service,
		m:           make(map[string]*gobreaker.CircuitBreaker[struct{}], 8),
		defaultRule: defaultRule,
		rules:       perTarget,
	}
}

func (m *Manager) Get(target string) *gobreaker.CircuitBreaker[struct{}] {
	m.mu.RLock()
	cb := m.m[target]
	m.mu.RUnlock()
	if cb != nil {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cb = m.m[target]; cb != nil {
		return cb
	}

	rule, ok := m.rules[target]
	if !ok {
		rule = m.defaultRule
	}
	st := gobreaker.Settings{
		Name:         target,
		MaxRequests:  rule.MaxRequests,
		Interval:     rule.Interval,
		BucketPeriod: rule.BucketPeriod,
		Timeout:      rule.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if rule.TripConsecutiveFailures > 0 && c.ConsecutiveFailures >= rule.TripConsecutiveFailures {
				return true
			}
			if rule.TripFailureRate > 0 && c.Requests >= rule.TripMinRequests {
				return float64(c.TotalFailures)/float64(c.Requests) >= rule.TripFailureRate
			}
			return false
		},
		IsSuccessful: isSuccessfulForBreaker,
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CBState.WithLabelValues(m.service, name).Set(float64(to))
		},
	}
	cb = gobreaker.NewCircuitBreaker[struct{}](st)
	m.m[target] = cb
	return cb
}

// Do 经过熔断器执行 fn，熔断打开时直接返回 gobreaker.ErrOpenState
func (m *Manager) Do(target string, fn func() error) error {
	_, err := m.Get(target).Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.CBRejectTotal.WithLabelValues(m.service, target, err.Error()).Inc()
	}
	return err
}

func isSuccessfulForBreaker(err error) bool {
	if err == nil {
		return true
	}
	// 调用方取消、参数问题不代表下游不健康
	return errors.Is(err, context.Canceled) || errors.Is(err, ErrPermanent)
}
