package elevator

import "fmt"

// CarState is a snapshot of the physical state of the car.
// CarState는 카의 물리 상태 스냅샷입니다.
type CarState struct {
	Floor      int
	Direction  Direction
	Door       DoorState
	Passengers int
	Capacity   int
	DoorTimer  int // 현재 문 단계의 남은 틱 수
}

// DoorTransition is the door change produced by a single Step.
type DoorTransition int

const (
	TransitionNone DoorTransition = iota
	TransitionOpened
	TransitionClosing
	TransitionClosed
)

// Car is the physical state machine: position, direction, passenger load and
// door-cycle timing. It holds no knowledge of request queues.
// Car는 위치, 방향, 탑승 인원, 문 사이클만 관리하는 물리 상태 머신입니다.
type Car struct {
	state      CarState
	minFloor   int
	maxFloor   int
	dwellTicks int
	stats      *Statistics

	holdOpen     bool // 탑승 보류 중에는 문을 닫지 않음
	cycleStarted bool // 이번 틱에 시작된 문 사이클은 다음 Step부터 진행
}

// NewCar creates the car at the configured initial floor with doors closed.
func NewCar(cfg Config, stats *Statistics) *Car {
	cfg = cfg.withDefaults()
	return &Car{
		state: CarState{
			Floor:     cfg.InitialFloor,
			Direction: cfg.InitialDirection,
			Door:      DoorClosed,
			Capacity:  cfg.Capacity,
		},
		minFloor:   cfg.MinFloor,
		maxFloor:   cfg.MaxFloor,
		dwellTicks: cfg.DoorDwellTicks,
		stats:      stats,
	}
}

// State returns a copy of the car state.
func (c *Car) State() CarState {
	return c.state
}

func (c *Car) Floor() int           { return c.state.Floor }
func (c *Car) Direction() Direction { return c.state.Direction }
func (c *Car) Door() DoorState      { return c.state.Door }
func (c *Car) Passengers() int      { return c.state.Passengers }

// DoorsClosed reports whether the car may move.
func (c *Car) DoorsClosed() bool {
	return c.state.Door == DoorClosed
}

// Holding reports whether departure is deferred by a failed boarding.
func (c *Car) Holding() bool {
	return c.holdOpen
}

// SetIdle clears the direction. Ignored mid door-cycle.
func (c *Car) SetIdle() {
	if c.DoorsClosed() {
		c.state.Direction = DirIdle
	}
}

// MoveToward moves the car one floor toward target and reports whether it moved.
// 문이 닫혀 있고 목표 층이 현재 층과 다를 때만 한 층 이동합니다.
func (c *Car) MoveToward(target int) bool {
	if !c.DoorsClosed() || target == c.state.Floor {
		return false
	}
	if target < c.minFloor || target > c.maxFloor {
		panic(fmt.Sprintf("elevator: move target %d outside [%d, %d]", target, c.minFloor, c.maxFloor))
	}

	dir := directionTo(c.state.Floor, target)
	c.state.Direction = dir
	if dir == DirUp {
		c.state.Floor++
	} else {
		c.state.Floor--
	}
	if c.stats != nil {
		c.stats.FloorsTraveled++
	}
	return true
}

// OpenDoors starts a door cycle at the current floor. Only valid from Closed.
func (c *Car) OpenDoors() bool {
	if !c.DoorsClosed() {
		return false
	}
	c.state.Door = DoorOpening
	c.state.DoorTimer = 1
	c.cycleStarted = true
	return true
}

// HoldDoors keeps the doors open while a boarding is deferred.
func (c *Car) HoldDoors(hold bool) {
	c.holdOpen = hold
}

// Step advances the door cycle by one tick.
// Transitions: Opening -> Open -> (dwell) -> Closing -> Closed
func (c *Car) Step() DoorTransition {
	if c.cycleStarted {
		c.cycleStarted = false
		return TransitionNone
	}

	switch c.state.Door {
	case DoorOpening:
		c.state.Door = DoorOpen
		c.state.DoorTimer = c.dwellTicks
		return TransitionOpened

	case DoorOpen:
		// 탑승 보류 중이면 닫힘 카운트다운을 멈춤
		if c.holdOpen {
			return TransitionNone
		}
		c.state.DoorTimer--
		if c.state.DoorTimer > 0 {
			return TransitionNone
		}
		c.state.Door = DoorClosing
		c.state.DoorTimer = 1
		return TransitionClosing

	case DoorClosing:
		c.state.Door = DoorClosed
		c.state.DoorTimer = 0
		return TransitionClosed
	}
	return TransitionNone
}

// BoardPassengers adjusts the passenger count by delta. Boarding beyond
// capacity fails with ErrOverCapacity and leaves the count unchanged;
// alighting never drops the count below zero.
func (c *Car) BoardPassengers(delta int) error {
	next := c.state.Passengers + delta
	if next > c.state.Capacity {
		return fmt.Errorf("boarding %d with %d/%d aboard: %w", delta, c.state.Passengers, c.state.Capacity, ErrOverCapacity)
	}
	if next < 0 {
		next = 0
	}
	c.state.Passengers = next
	return nil
}

// clone returns an independent car for look-ahead simulation. CarState holds
// only values, so a struct copy is enough.
func (c *Car) clone(stats *Statistics) *Car {
	cp := *c
	cp.stats = stats
	return &cp
}

// SetDirection sets the heading of a car that starts a door cycle while Idle.
func (c *Car) SetDirection(dir Direction) {
	c.state.Direction = dir
}
