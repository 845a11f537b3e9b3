// Package elevator implements a discrete-step dispatch simulator for a single
// elevator car serving normal and emergency transport requests.
// 이 패키지는 단일 엘리베이터의 틱 기반 배차 시뮬레이터를 구현합니다.
// 일반 요청은 SCAN 알고리즘으로, 비상 요청은 A/B/C 그룹 우선순위로 처리합니다.
package elevator

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// TickReport is what a single Tick did and the state it left behind.
// TickReport는 한 틱의 결과와 그 이후의 상태를 나타냅니다.
type TickReport struct {
	Tick            uint64
	Floor           int
	Direction       Direction
	Door            DoorState
	Passengers      int
	EmergencyActive bool
	Target          int  // 이번 틱의 목표 층
	HasTarget       bool // 목표가 없으면 false (Idle)
	Served          []Request
	Statistics      Statistics
}

// PendingRequest is a read-only view of a queued request.
type PendingRequest struct {
	Request
	Wait     time.Duration
	Paused   bool // 비상 모드로 일시 정지된 일반 요청
	PickedUp bool // 비상 요청 탑승 완료 여부
}

// Simulator coordinates the car, the normal queues and the emergency handler.
// All operations are serialized by one mutex, so a submission never
// interleaves with a tick.
// Simulator는 카, 일반 큐, 비상 핸들러를 조율합니다. 모든 작업은 하나의 Mutex로 직렬화됩니다.
type Simulator struct {
	mu  sync.RWMutex
	cfg Config

	// --- Components ---
	car       *Car
	queue     *QueueManager
	emergency *EmergencyHandler
	stats     *Statistics

	tick uint64

	// --- Observability ---
	logger            *slog.Logger
	eventCh           chan Event // 외부 통신용 이벤트 채널
	recent            []Event
	droppedEventCount uint64
}

// New initializes a simulator with strict validation.
// 잘못된 설정(예: Min > Max)이 감지되면 즉시 에러를 반환합니다 (Fail Fast).
func New(cfg Config) (*Simulator, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	stats := &Statistics{}
	queue := NewQueueManager(cfg, stats)
	s := &Simulator{
		cfg:       cfg,
		car:       NewCar(cfg, stats),
		queue:     queue,
		emergency: NewEmergencyHandler(cfg, queue, stats),
		stats:     stats,
		logger:    cfg.Logger,
		eventCh:   make(chan Event, cfg.EventBuffer),
	}

	s.logger.Info("Simulator initialized",
		"min", cfg.MinFloor,
		"max", cfg.MaxFloor,
		"init_floor", cfg.InitialFloor,
		"capacity", cfg.Capacity,
	)
	return s, nil
}

// Ticks returns the number of ticks executed so far.
func (s *Simulator) Ticks() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tick
}

// Config returns the effective configuration.
func (s *Simulator) Config() Config {
	return s.cfg
}

// SubmitInternalRequest registers a button press inside the car.
func (s *Simulator) SubmitInternalRequest(floor int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.queue.SubmitInternal(floor)
	return s.submitted(r, err)
}

// SubmitExternalRequest registers an Up/Down hall call.
func (s *Simulator) SubmitExternalRequest(floor int, dir Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.queue.SubmitExternal(floor, dir)
	return s.submitted(r, err)
}

// SubmitEmergencyRequest registers an emergency transport from origin to
// destination. Emergency mode is engaged only by ActivateEmergencyMode unless
// AutoActivateEmergency is configured.
func (s *Simulator) SubmitEmergencyRequest(origin, destination int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.emergency.SubmitEmergency(origin, destination)
	if err := s.submitted(r, err); err != nil {
		return err
	}
	if s.cfg.AutoActivateEmergency {
		return s.activate()
	}
	return nil
}

func (s *Simulator) submitted(r Request, err error) error {
	if err != nil {
		s.logger.Warn("Request rejected", "error", err)
		return err
	}
	s.logger.Info(r.Kind.String()+" request registered", "request", r)
	s.publishEvent(EventRequestSubmitted, r)
	return nil
}

// ActivateEmergencyMode pauses normal requests and dispatches emergency
// requests only, until the emergency queue drains.
func (s *Simulator) ActivateEmergencyMode() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activate()
}

func (s *Simulator) activate() error {
	wasActive := s.emergency.Active()
	if err := s.emergency.Activate(); err != nil {
		s.logger.Warn("Emergency activation rejected", "error", err)
		return err
	}
	if !wasActive {
		s.publishEvent(EventEmergencyActivated, s.emergency.Len())
	}
	return nil
}

// AdjustPassengers boards (delta > 0) or alights (delta < 0) passengers.
// Alighting clears a deferred departure on the next tick.
func (s *Simulator) AdjustPassengers(delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.car.BoardPassengers(delta); err != nil {
		s.logger.Warn("Passenger adjustment rejected", "delta", delta, "error", err)
		s.publishEvent(EventOverCapacity, s.car.Passengers())
		return err
	}
	return nil
}

// Tick advances the simulation by one discrete step.
//  1. Emergency mode selects the next emergency stop; otherwise SCAN selects a normal one.
//  2. At the target with doors closed, a door cycle starts; elsewhere the car moves one floor.
//  3. The door cycle advances; when doors are fully open, satisfied requests are released.
func (s *Simulator) Tick() TickReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step()
}

func (s *Simulator) step() TickReport {
	s.tick++
	before := s.car.State()
	var served []Request

	// 탑승 보류 중이면 문이 열린 상태에서 재시도
	if s.car.Door() == DoorOpen && s.car.Holding() {
		served = append(served, s.serviceStop()...)
	}

	target, req, ok := s.selectTarget()
	switch {
	case !ok:
		s.car.SetIdle()
	case target == s.car.Floor():
		if s.car.OpenDoors() {
			s.logger.Info("Arrived at floor", "floor", target)
			// Idle 상태에서 문을 열면 방향을 먼저 정함
			if s.car.Direction() == DirIdle {
				s.car.SetDirection(s.headingAt(target, req))
			}
		}
	default:
		if s.car.MoveToward(target) {
			s.logger.Debug("Moving", "floor", s.car.Floor(), "dir", s.car.Direction(), "target", target)
		}
	}

	switch s.car.Step() {
	case TransitionOpened:
		s.logger.Info("Doors are now fully OPEN", "floor", s.car.Floor())
		served = append(served, s.serviceStop()...)
	case TransitionClosed:
		s.logger.Debug("Doors are now fully CLOSED", "floor", s.car.Floor())
	}

	s.publishCarChanges(before, s.car.State())

	return TickReport{
		Tick:            s.tick,
		Floor:           s.car.Floor(),
		Direction:       s.car.Direction(),
		Door:            s.car.Door(),
		Passengers:      s.car.Passengers(),
		EmergencyActive: s.emergency.Active(),
		Target:          target,
		HasTarget:       ok,
		Served:          served,
		Statistics:      *s.stats,
	}
}

// selectTarget asks the emergency handler when emergency mode is active and
// the queue manager otherwise; the two never mix.
func (s *Simulator) selectTarget() (int, Request, bool) {
	floor, dir := s.car.Floor(), s.car.Direction()
	if s.emergency.Active() {
		target, r, ok := s.emergency.NextEmergencyTarget(floor, dir)
		if !ok {
			s.logger.Error("Emergency mode active with empty queue", "floor", floor)
		}
		return target, r, ok
	}
	r, ok := s.queue.NextNormalTarget(floor, dir)
	return r.Origin, r, ok
}

// headingAt picks the direction for a car that was Idle and stops at its own
// floor for r: the way r travels, else toward the remaining work, else Up
// unless the car is at the top floor.
func (s *Simulator) headingAt(floor int, r Request) Direction {
	if dir := r.TravelDirection(); dir != DirIdle {
		return dir
	}
	above, below := s.queue.HasPendingAbove(floor), s.queue.HasPendingBelow(floor)
	if s.emergency.Active() {
		above, below = s.emergency.HasStopAbove(floor), s.emergency.HasStopBelow(floor)
	}
	switch {
	case above:
		return DirUp
	case below:
		return DirDown
	case floor < s.cfg.MaxFloor:
		return DirUp
	}
	return DirDown
}

// serviceStop releases every request satisfied by the open doors at the
// current floor, then re-checks emergency mode. Boarding failures hold the
// doors open until a later tick succeeds.
func (s *Simulator) serviceStop() []Request {
	floor := s.car.Floor()

	var served []Request
	var err error
	if s.emergency.Active() {
		served, err = s.emergency.ServiceStop(floor, s.car)
		if s.emergency.DeactivateIfDone() {
			s.publishEvent(EventEmergencyDeactivated, floor)
		}
	} else {
		served, err = s.queue.ServiceFloor(floor, s.car.Direction(), s.car)
	}

	deferred := errors.Is(err, ErrOverCapacity)
	if deferred && !s.car.Holding() {
		s.logger.Warn("Overloaded: Cannot Close Doors", "floor", floor, "passengers", s.car.Passengers())
		s.publishEvent(EventOverCapacity, s.car.Passengers())
	}
	s.car.HoldDoors(deferred)

	for _, r := range served {
		s.publishEvent(EventRequestServed, r)
	}
	return served
}

// EmergencyActive reports whether emergency mode is engaged.
func (s *Simulator) EmergencyActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.emergency.Active()
}

// State returns a snapshot of the car.
func (s *Simulator) State() CarState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.car.State()
}

// Statistics returns a snapshot of the accumulated statistics.
func (s *Simulator) Statistics() Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.stats
}

// PendingRequests returns all queued requests: normal requests in display
// order followed by emergency requests in submission order.
func (s *Simulator) PendingRequests() []PendingRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.cfg.Clock()
	paused := s.queue.Paused()
	var out []PendingRequest
	for _, r := range s.queue.Pending() {
		out = append(out, PendingRequest{Request: r, Wait: waitOf(r, now), Paused: paused})
	}
	for _, r := range s.emergency.Pending() {
		out = append(out, PendingRequest{Request: r, Wait: waitOf(r, now), PickedUp: s.emergency.PickedUp(r)})
	}
	return out
}

// EmergencyGroups returns the current A/B/C classification of pending
// emergency requests.
func (s *Simulator) EmergencyGroups() EmergencyGroups {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.emergency.Groups(s.car.Floor(), s.car.Direction())
}

// PlannedStops returns the next n floors the car will open its doors at if
// no further requests arrive. The live simulation is not touched.
func (s *Simulator) PlannedStops(n int) []int {
	s.mu.RLock()
	shadow := s.shadow()
	s.mu.RUnlock()

	span := s.cfg.MaxFloor - s.cfg.MinFloor + 1
	limit := (n + 1) * (span + s.cfg.DoorDwellTicks + 3) * 2

	var stops []int
	for i := 0; i < limit && len(stops) < n; i++ {
		if shadow.car.Door() == DoorOpen && shadow.car.Holding() {
			break // 탑승 보류는 외부 조치 없이 풀리지 않음
		}
		before := shadow.car.Door()
		shadow.step()
		if before == DoorOpening && shadow.car.Door() == DoorOpen {
			stops = append(stops, shadow.car.Floor())
		}
		if !shadow.pending() && shadow.car.DoorsClosed() {
			break
		}
	}
	return stops
}

// shadow builds an independent simulator over copies of the live components.
// Caller must hold s.mu.
func (s *Simulator) shadow() *Simulator {
	stats := *s.stats
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	queue := s.queue.clone(&stats, logger)
	return &Simulator{
		cfg:       s.cfg,
		car:       s.car.clone(&stats),
		queue:     queue,
		emergency: s.emergency.clone(queue, &stats, logger),
		stats:     &stats,
		tick:      s.tick,
		logger:    logger,
	}
}

// pending reports whether anything is left to dispatch.
func (s *Simulator) pending() bool {
	return s.emergency.Len() > 0 || !s.queue.IsEmpty()
}

func (s *Simulator) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.car.State()
	return fmt.Sprintf("floor=%d dir=%s door=%s passengers=%d/%d emergency=%t",
		st.Floor, st.Direction, st.Door, st.Passengers, st.Capacity, s.emergency.Active())
}
