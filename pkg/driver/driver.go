// Package driver advances a simulator at a wall-clock cadence.
// 시뮬레이터 코어는 타이머를 갖지 않으며, 이 패키지가 외부에서 틱을 공급합니다.
package driver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go-elevator-dispatch/pkg/elevator"
)

const (
	MinSpeed = 0.1
	MaxSpeed = 3.0
)

// Ticker is the simulator surface the runner drives.
type Ticker interface {
	Tick() elevator.TickReport
}

// Config holds runner settings.
type Config struct {
	Interval time.Duration // 속도 1.0 기준 틱 간격
	Speed    float64       // 속도 배율, [MinSpeed, MaxSpeed]로 제한
	Paused   bool          // 일시 정지 상태로 시작
	OnTick   func(elevator.TickReport)
	Logger   *slog.Logger
}

// Runner issues ticks while running. Pausing simply stops issuing ticks.
// Runner는 실행 중일 때만 틱을 발행합니다. 일시 정지는 틱 발행 중단입니다.
type Runner struct {
	mu      sync.Mutex
	sim     Ticker
	cfg     Config
	speed   float64
	running bool
	logger  *slog.Logger
	wake    chan struct{} // 속도/상태 변경 시 타이머 재설정
}

// New creates a runner. A zero interval defaults to one second.
func New(sim Ticker, cfg Config) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Speed == 0 {
		cfg.Speed = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Runner{
		sim:     sim,
		cfg:     cfg,
		speed:   clampSpeed(cfg.Speed),
		running: !cfg.Paused,
		logger:  cfg.Logger,
		wake:    make(chan struct{}, 1),
	}
}

func clampSpeed(m float64) float64 {
	if m < MinSpeed {
		return MinSpeed
	}
	if m > MaxSpeed {
		return MaxSpeed
	}
	return m
}

// Run issues ticks until ctx is cancelled.
// Run은 컨텍스트가 취소될 때까지 틱을 발행합니다.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("Runner Started", "interval", r.cfg.Interval, "speed", r.Speed())

	timer := time.NewTimer(r.period())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Runner Stopping (Context Cancelled)")
			return ctx.Err()

		case <-r.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(r.period())

		case <-timer.C:
			if r.Running() {
				r.tick()
			}
			timer.Reset(r.period())
		}
	}
}

// Step issues a single tick regardless of the running flag.
func (r *Runner) Step() elevator.TickReport {
	return r.tick()
}

func (r *Runner) tick() elevator.TickReport {
	report := r.sim.Tick()
	if r.cfg.OnTick != nil {
		r.cfg.OnTick(report)
	}
	return report
}

func (r *Runner) period() time.Duration {
	return time.Duration(float64(r.cfg.Interval) / r.Speed())
}

func (r *Runner) notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Pause stops issuing ticks.
func (r *Runner) Pause() {
	r.setRunning(false)
}

// Resume starts issuing ticks again.
func (r *Runner) Resume() {
	r.setRunning(true)
}

// Toggle flips the running flag and returns the new paused state.
func (r *Runner) Toggle() bool {
	r.mu.Lock()
	r.running = !r.running
	paused := !r.running
	r.mu.Unlock()
	r.logger.Info("Runner toggled", "paused", paused)
	r.notify()
	return paused
}

func (r *Runner) setRunning(running bool) {
	r.mu.Lock()
	changed := r.running != running
	r.running = running
	r.mu.Unlock()
	if changed {
		r.logger.Info("Runner state changed", "running", running)
		r.notify()
	}
}

// Running reports whether ticks are being issued.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// SetSpeed sets the speed multiplier, clamped to [MinSpeed, MaxSpeed], and
// returns the value applied.
func (r *Runner) SetSpeed(m float64) float64 {
	r.mu.Lock()
	r.speed = clampSpeed(m)
	applied := r.speed
	r.mu.Unlock()
	r.notify()
	return applied
}

// Speed returns the current speed multiplier.
func (r *Runner) Speed() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.speed
}
