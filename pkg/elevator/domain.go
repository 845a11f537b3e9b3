package elevator

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// --- Domain Entities & Value Objects ---

// Direction indicates the vertical movement vector.
// Direction은 수직 이동 벡터를 나타냅니다.
type Direction string

const (
	DirUp   Direction = "Up"
	DirDown Direction = "Down"
	DirIdle Direction = "Idle"
)

// Opposite returns the reversed direction. Idle has no opposite.
func (d Direction) Opposite() Direction {
	switch d {
	case DirUp:
		return DirDown
	case DirDown:
		return DirUp
	}
	return DirIdle
}

// directionTo returns the direction of travel from one floor to another.
func directionTo(from, to int) Direction {
	switch {
	case to > from:
		return DirUp
	case to < from:
		return DirDown
	}
	return DirIdle
}

// isAhead reports whether floor lies at or beyond cur in direction dir.
func isAhead(floor, cur int, dir Direction) bool {
	switch dir {
	case DirUp:
		return floor >= cur
	case DirDown:
		return floor <= cur
	}
	return floor == cur
}

// DoorState represents the physical state of the door.
// DoorState는 문의 물리 상태를 나타냅니다.
type DoorState string

const (
	DoorClosed  DoorState = "Closed"
	DoorOpening DoorState = "Opening"
	DoorOpen    DoorState = "Open"
	DoorClosing DoorState = "Closing"
)

// RequestKind tells which queue a request lives in.
// RequestKind는 요청이 속한 큐를 나타냅니다.
type RequestKind int

const (
	KindInternal  RequestKind = iota // 카 내부 버튼
	KindExternal                     // 층 호출 버튼 (Up/Down)
	KindEmergency                    // 비상 이송 요청
)

func (k RequestKind) String() string {
	return [...]string{"Internal", "External", "Emergency"}[k]
}

// Request is a single pending call. It is immutable once created; serving
// a request removes it from its queue.
// Request는 대기 중인 호출 하나를 나타냅니다. 생성 후 변경되지 않습니다.
type Request struct {
	ID          uuid.UUID
	Kind        RequestKind
	Origin      int       // 호출 층 (Internal: 목적 층)
	Destination int       // 목적 층 (Normal 요청은 Origin과 동일)
	Direction   Direction // External 호출 방향. 그 외에는 Idle
	CreatedAt   time.Time

	seq uint64 // submission order within its queue
}

// TravelDirection is the direction a passenger of this request wants to go.
func (r Request) TravelDirection() Direction {
	if r.Kind == KindEmergency {
		return directionTo(r.Origin, r.Destination)
	}
	return r.Direction
}

func (r Request) String() string {
	switch r.Kind {
	case KindExternal:
		return fmt.Sprintf("External%s(%d)", r.Direction, r.Origin)
	case KindEmergency:
		return fmt.Sprintf("Emergency(%d->%d)", r.Origin, r.Destination)
	}
	return fmt.Sprintf("Internal(%d)", r.Origin)
}

// Group is the priority class of a pending emergency request relative to the
// car. It is recomputed on every evaluation and never stored on the request.
// Group은 현재 카 위치/방향 기준의 비상 요청 우선순위 분류입니다.
type Group int

const (
	GroupA Group = iota // 진행 방향, 역행 없이 도달 가능
	GroupB              // 반대 방향 또는 이미 지나친 요청
	GroupC              // 예외: 출발=도착, 또는 Idle 상태
)

func (g Group) String() string {
	return [...]string{"A", "B", "C"}[g]
}

// Statistics are accumulated for the lifetime of a run and never reset.
// Statistics는 실행 중 누적되며 초기화되지 않습니다.
type Statistics struct {
	FloorsTraveled          int
	NormalRequestsServed    int
	EmergencyRequestsServed int
	CumulativeWait          time.Duration
	RequestCount            int // 접수된 (중복 제외) 요청 수
	EmergencyActivations    int
}

// TotalServed returns normal plus emergency requests served.
func (s Statistics) TotalServed() int {
	return s.NormalRequestsServed + s.EmergencyRequestsServed
}

// AverageWait is derived, never stored.
func (s Statistics) AverageWait() time.Duration {
	n := s.TotalServed()
	if n == 0 {
		return 0
	}
	return s.CumulativeWait / time.Duration(n)
}

// --- Errors ---

var (
	// ErrInvalidFloor is returned when a request references a floor outside the configured range.
	ErrInvalidFloor = errors.New("invalid floor")
	// ErrInvalidDirection is returned when an external call has no Up/Down hint.
	ErrInvalidDirection = errors.New("invalid direction")
	// ErrNoEmergencyRequests is returned when activation is attempted on an empty emergency queue.
	ErrNoEmergencyRequests = errors.New("no emergency requests")
	// ErrOverCapacity is returned when boarding would exceed the car capacity.
	ErrOverCapacity = errors.New("over capacity")
)

// --- Configuration ---

const (
	DefaultMinFloor       = 1
	DefaultMaxFloor       = 10
	DefaultCapacity       = 8
	DefaultDoorDwellTicks = 2
	DefaultEventBuffer    = 1000
)

// Config holds immutable configuration parameters.
// Config는 시스템 시작 시 설정되며, 런타임 중에 변경되지 않습니다.
type Config struct {
	ID                    string
	MinFloor              int              // 최저 층
	MaxFloor              int              // 최고 층
	InitialFloor          int              // 초기 층 (0이면 MinFloor)
	InitialDirection      Direction        // 초기 방향 (기본 Idle)
	Capacity              int              // 최대 탑승 인원
	DoorDwellTicks        int              // 문 열림 유지 틱 수
	AutoActivateEmergency bool             // 비상 요청 접수 즉시 비상 모드 진입
	EventBuffer           int              // 이벤트 채널 버퍼 크기
	Clock                 func() time.Time // 요청 시각/대기 시간 계산용
	Logger                *slog.Logger
}

// withDefaults fills zero values. It is idempotent.
func (c Config) withDefaults() Config {
	if c.MinFloor == 0 && c.MaxFloor == 0 {
		c.MinFloor, c.MaxFloor = DefaultMinFloor, DefaultMaxFloor
	}
	if c.InitialFloor == 0 && (c.MinFloor > 0 || c.MaxFloor < 0) {
		c.InitialFloor = c.MinFloor
	}
	if c.InitialDirection == "" {
		c.InitialDirection = DirIdle
	}
	if c.Capacity == 0 {
		c.Capacity = DefaultCapacity
	}
	if c.DoorDwellTicks == 0 {
		c.DoorDwellTicks = DefaultDoorDwellTicks
	}
	if c.EventBuffer == 0 {
		c.EventBuffer = DefaultEventBuffer
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default().With("id", c.ID)
	}
	return c
}

// validate rejects configurations the simulator cannot run with.
func (c Config) validate() error {
	if c.MinFloor > c.MaxFloor {
		return fmt.Errorf("invalid config: MinFloor (%d) > MaxFloor (%d)", c.MinFloor, c.MaxFloor)
	}
	if c.InitialFloor < c.MinFloor || c.InitialFloor > c.MaxFloor {
		return fmt.Errorf("invalid config: InitialFloor (%d) outside [%d, %d]", c.InitialFloor, c.MinFloor, c.MaxFloor)
	}
	switch c.InitialDirection {
	case DirUp, DirDown, DirIdle:
	default:
		return fmt.Errorf("invalid config: InitialDirection %q", c.InitialDirection)
	}
	if c.Capacity < 0 {
		return fmt.Errorf("invalid config: Capacity (%d) < 0", c.Capacity)
	}
	if c.DoorDwellTicks < 0 {
		return fmt.Errorf("invalid config: DoorDwellTicks (%d) < 0", c.DoorDwellTicks)
	}
	return nil
}

// checkFloor wraps ErrInvalidFloor with range context.
func (c Config) checkFloor(floor int) error {
	if floor < c.MinFloor || floor > c.MaxFloor {
		return fmt.Errorf("floor %d out of range [%d, %d]: %w", floor, c.MinFloor, c.MaxFloor, ErrInvalidFloor)
	}
	return nil
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
