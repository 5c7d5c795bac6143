package risk

import (
	"fmt"
	"sync/atomic"
)

// ErrCircuitBreakerOpen 表示断路器已打开，禁止继续下单。
var ErrCircuitBreakerOpen = fmt.Errorf("circuit breaker open")

// CircuitBreakerConfig 断路器配置。阈值 <= 0 表示关闭对应限制。
type CircuitBreakerConfig struct {
	// MaxConsecutiveErrors 连续可重试错误上限。
	MaxConsecutiveErrors int64
}

// State is a snapshot for status reporting.
type State struct {
	Halted            bool  `json:"halted"`
	ManualHalt        bool  `json:"manual_halt"`
	ConsecutiveErrors int64 `json:"consecutive_errors"`
	MaxErrors         int64 `json:"max_consecutive_errors"`
}

// CircuitBreaker uses atomics so the control plane can Halt/Resume while the loop runs.
type CircuitBreaker struct {
	halted     atomic.Bool
	manualHalt atomic.Bool

	consecutiveErrors    atomic.Int64
	maxConsecutiveErrors atomic.Int64
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	cb := &CircuitBreaker{}
	cb.SetConfig(cfg)
	return cb
}

func (cb *CircuitBreaker) SetConfig(cfg CircuitBreakerConfig) {
	if cb == nil {
		return
	}
	cb.maxConsecutiveErrors.Store(cfg.MaxConsecutiveErrors)
}

// Halt 手动熔断（人工介入）。
func (cb *CircuitBreaker) Halt() {
	if cb == nil {
		return
	}
	cb.manualHalt.Store(true)
	cb.halted.Store(true)
}

// Resume 手动恢复（会同时清空连续错误计数）。
func (cb *CircuitBreaker) Resume() {
	if cb == nil {
		return
	}
	cb.manualHalt.Store(false)
	cb.halted.Store(false)
	cb.consecutiveErrors.Store(0)
}

// AllowTrading 快路径检查是否允许下单。
func (cb *CircuitBreaker) AllowTrading() error {
	if cb == nil {
		return nil
	}
	if cb.halted.Load() {
		return ErrCircuitBreakerOpen
	}
	maxErr := cb.maxConsecutiveErrors.Load()
	if maxErr > 0 && cb.consecutiveErrors.Load() >= maxErr {
		cb.halted.Store(true)
		return ErrCircuitBreakerOpen
	}
	return nil
}

// OnSuccess 一个完整周期成功后调用，清空连续错误计数。
func (cb *CircuitBreaker) OnSuccess() {
	if cb == nil {
		return
	}
	cb.consecutiveErrors.Store(0)
}

// OnError 可重试错误后调用，累计连续错误计数。
func (cb *CircuitBreaker) OnError() {
	if cb == nil {
		return
	}
	cb.consecutiveErrors.Add(1)
}

// State returns a consistent-enough snapshot for reporting.
func (cb *CircuitBreaker) State() State {
	if cb == nil {
		return State{}
	}
	return State{
		Halted:            cb.halted.Load(),
		ManualHalt:        cb.manualHalt.Load(),
		ConsecutiveErrors: cb.consecutiveErrors.Load(),
		MaxErrors:         cb.maxConsecutiveErrors.Load(),
	}
}
