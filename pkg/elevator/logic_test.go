package elevator

import (
	"errors"
	"testing"
	"time"
)

func newTestQueue(clock *fakeClock) (*QueueManager, *Statistics) {
	stats := &Statistics{}
	cfg := Config{MinFloor: 1, MaxFloor: 10, Clock: clock.Now, Logger: quietLogger()}
	return NewQueueManager(cfg, stats), stats
}

func TestQueueManager_Submit(t *testing.T) {
	q, stats := newTestQueue(newFakeClock())

	// Valid Calls
	if _, err := q.SubmitInternal(3); err != nil {
		t.Errorf("Failed to add valid internal call: %v", err)
	}
	if _, err := q.SubmitExternal(4, DirUp); err != nil {
		t.Errorf("Failed to add valid external call: %v", err)
	}

	// Invalid Calls (Out of range)
	for _, floor := range []int{0, 11, -3} {
		if _, err := q.SubmitInternal(floor); !errors.Is(err, ErrInvalidFloor) {
			t.Errorf("Expected ErrInvalidFloor for internal %d, got %v", floor, err)
		}
		if _, err := q.SubmitExternal(floor, DirDown); !errors.Is(err, ErrInvalidFloor) {
			t.Errorf("Expected ErrInvalidFloor for external %d, got %v", floor, err)
		}
	}

	// Invalid Direction
	if _, err := q.SubmitExternal(5, DirIdle); !errors.Is(err, ErrInvalidDirection) {
		t.Errorf("Expected ErrInvalidDirection, got %v", err)
	}

	if q.Len() != 2 {
		t.Errorf("Expected 2 pending requests, got %d", q.Len())
	}
	if stats.RequestCount != 2 {
		t.Errorf("Expected RequestCount 2, got %d", stats.RequestCount)
	}
}

func TestQueueManager_Duplicates(t *testing.T) {
	clock := newFakeClock()
	q, stats := newTestQueue(clock)

	first, _ := q.SubmitInternal(6)
	clock.Advance(time.Second)
	second, _ := q.SubmitInternal(6)
	if first.ID != second.ID || !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("Expected duplicate to return the original request, got %v", second)
	}

	q.SubmitExternal(6, DirUp)
	q.SubmitExternal(6, DirUp)
	q.SubmitExternal(6, DirDown)
	if q.Len() != 3 {
		t.Errorf("Expected 3 distinct requests, got %d", q.Len())
	}
	if stats.RequestCount != 3 {
		t.Errorf("Expected RequestCount 3, got %d", stats.RequestCount)
	}
}

func TestQueueManager_NextNormalTarget_SCAN(t *testing.T) {
	type call struct {
		kind  RequestKind
		floor int
		dir   Direction
	}
	tests := []struct {
		name      string
		floor     int
		dir       Direction
		calls     []call
		wantFloor int
		wantKind  RequestKind
		wantNone  bool
	}{
		{
			name:      "idle, call above",
			floor:     5,
			dir:       DirIdle,
			calls:     []call{{KindInternal, 8, ""}},
			wantFloor: 8,
		},
		{
			name:      "moving up, calls above and below keeps going up",
			floor:     5,
			dir:       DirUp,
			calls:     []call{{KindInternal, 2, ""}, {KindInternal, 9, ""}},
			wantFloor: 9,
		},
		{
			name:      "moving up, nothing above reverses",
			floor:     5,
			dir:       DirUp,
			calls:     []call{{KindInternal, 2, ""}},
			wantFloor: 2,
		},
		{
			name:      "moving down, closest below",
			floor:     8,
			dir:       DirDown,
			calls:     []call{{KindInternal, 2, ""}, {KindExternal, 6, DirDown}, {KindInternal, 9, ""}},
			wantFloor: 6,
			wantKind:  KindExternal,
		},
		{
			name:      "current floor is inclusive",
			floor:     5,
			dir:       DirUp,
			calls:     []call{{KindInternal, 5, ""}, {KindInternal, 6, ""}},
			wantFloor: 5,
		},
		{
			name:      "internal wins over external at the same floor",
			floor:     2,
			dir:       DirUp,
			calls:     []call{{KindExternal, 4, DirUp}, {KindInternal, 4, ""}},
			wantFloor: 4,
			wantKind:  KindInternal,
		},
		{
			name:      "opposite hall call skipped while more is pending beyond",
			floor:     3,
			dir:       DirUp,
			calls:     []call{{KindExternal, 6, DirDown}, {KindInternal, 8, ""}},
			wantFloor: 8,
		},
		{
			name:      "opposite hall call taken at the reversal point",
			floor:     3,
			dir:       DirUp,
			calls:     []call{{KindExternal, 6, DirDown}, {KindExternal, 4, DirDown}},
			wantFloor: 6,
			wantKind:  KindExternal,
		},
		{
			name:      "idle tie prefers internal",
			floor:     5,
			dir:       DirIdle,
			calls:     []call{{KindExternal, 7, DirDown}, {KindInternal, 3, ""}},
			wantFloor: 3,
		},
		{
			name:     "no calls",
			floor:    5,
			dir:      DirUp,
			wantNone: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := newTestQueue(newFakeClock())
			for _, c := range tt.calls {
				var err error
				if c.kind == KindInternal {
					_, err = q.SubmitInternal(c.floor)
				} else {
					_, err = q.SubmitExternal(c.floor, c.dir)
				}
				if err != nil {
					t.Fatalf("submit %v: %v", c, err)
				}
			}

			r, ok := q.NextNormalTarget(tt.floor, tt.dir)
			if tt.wantNone {
				if ok {
					t.Errorf("Expected no target, got %v", r)
				}
				return
			}
			if !ok || r.Origin != tt.wantFloor || r.Kind != tt.wantKind {
				t.Errorf("Expected %s at %d, got %v (found=%t)", tt.wantKind, tt.wantFloor, r, ok)
			}
		})
	}
}

func TestQueueManager_PauseResume(t *testing.T) {
	q, _ := newTestQueue(newFakeClock())
	q.SubmitInternal(4)

	q.PauseNormal()
	q.SubmitExternal(7, DirUp)
	if r, ok := q.NextNormalTarget(1, DirIdle); ok {
		t.Errorf("Expected no target while paused, got %v", r)
	}
	if served, _ := q.ServiceFloor(4, DirIdle, nil); len(served) != 0 {
		t.Errorf("Expected nothing served while paused, got %v", served)
	}
	if q.Len() != 2 {
		t.Errorf("Expected paused requests to be retained, got %d", q.Len())
	}

	q.ResumeNormal()
	if r, ok := q.NextNormalTarget(1, DirIdle); !ok || r.Origin != 4 {
		t.Errorf("Expected target 4 after resume, got %v", r)
	}
}

func TestQueueManager_ServiceFloor(t *testing.T) {
	clock := newFakeClock()
	q, stats := newTestQueue(clock)
	q.SubmitInternal(6)
	q.SubmitExternal(6, DirUp)
	q.SubmitExternal(6, DirDown)
	q.SubmitInternal(9)

	clock.Advance(4 * time.Second)
	car := &countingBoarder{capacity: 8}

	// Arriving upward with work above: the Down call stays for the way back.
	served, err := q.ServiceFloor(6, DirUp, car)
	if err != nil {
		t.Fatalf("ServiceFloor: %v", err)
	}
	if len(served) != 2 {
		t.Fatalf("Expected 2 served, got %v", served)
	}
	if served[0].Kind != KindInternal || served[1].Direction != DirUp {
		t.Errorf("Expected internal then external Up, got %v", served)
	}
	if stats.NormalRequestsServed != 2 {
		t.Errorf("Expected 2 normal served, got %d", stats.NormalRequestsServed)
	}
	if stats.CumulativeWait != 8*time.Second {
		t.Errorf("Expected cumulative wait 8s, got %s", stats.CumulativeWait)
	}
	if car.count != 1 {
		t.Errorf("Expected one passenger boarded net, got %d", car.count)
	}

	// Idle arrival takes whatever is left at the floor.
	served, _ = q.ServiceFloor(6, DirIdle, car)
	if len(served) != 1 || served[0].Direction != DirDown {
		t.Errorf("Expected external Down served, got %v", served)
	}
	if !q.HasPendingAbove(6) || q.HasPendingBelow(6) {
		t.Errorf("Expected only floor 9 pending")
	}
}

func TestQueueManager_ServiceFloor_OverCapacity(t *testing.T) {
	q, stats := newTestQueue(newFakeClock())
	q.SubmitExternal(3, DirUp)

	full := &countingBoarder{capacity: 2, count: 2}
	served, err := q.ServiceFloor(3, DirUp, full)
	if !errors.Is(err, ErrOverCapacity) {
		t.Errorf("Expected ErrOverCapacity, got %v", err)
	}
	if len(served) != 0 || q.Len() != 1 {
		t.Errorf("Expected request to stay queued, served=%v len=%d", served, q.Len())
	}
	if stats.NormalRequestsServed != 0 {
		t.Errorf("Expected nothing counted, got %d", stats.NormalRequestsServed)
	}

	full.count = 1
	if served, err := q.ServiceFloor(3, DirUp, full); err != nil || len(served) != 1 {
		t.Errorf("Expected retry to serve, got %v, %v", served, err)
	}
	if !q.IsEmpty() {
		t.Errorf("Expected empty queue")
	}
}

func TestQueueManager_Pending_Order(t *testing.T) {
	q, _ := newTestQueue(newFakeClock())
	q.SubmitExternal(2, DirDown)
	q.SubmitInternal(7)
	q.SubmitExternal(5, DirUp)
	q.SubmitExternal(8, DirDown)
	q.SubmitInternal(3)
	q.SubmitExternal(1, DirUp)

	want := []string{"Internal(3)", "Internal(7)", "ExternalUp(1)", "ExternalUp(5)", "ExternalDown(8)", "ExternalDown(2)"}
	got := q.Pending()
	if len(got) != len(want) {
		t.Fatalf("Expected %d pending, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("Pending[%d]: expected %s, got %s", i, want[i], got[i])
		}
	}
}

// faultyBoarder rejects every adjustment.
type faultyBoarder struct{}

func (faultyBoarder) BoardPassengers(int) error { return errors.New("load sensor fault") }

func TestQueueManager_ServiceFloor_AlightFailurePanics(t *testing.T) {
	q, _ := newTestQueue(newFakeClock())
	q.SubmitInternal(4)

	defer func() {
		if recover() == nil {
			t.Error("Expected panic when alighting fails")
		}
	}()
	q.ServiceFloor(4, DirUp, faultyBoarder{})
}

func TestQueueManager_Clone(t *testing.T) {
	clock := newFakeClock()
	q, _ := newTestQueue(clock)
	in, _ := q.SubmitInternal(3)
	up, _ := q.SubmitExternal(5, DirUp)
	q.SubmitExternal(8, DirDown)

	shadowStats := &Statistics{}
	cp := q.clone(shadowStats, quietLogger())

	// 복사본은 ID, 생성 시각, 접수 순서를 그대로 유지
	r, ok := cp.NextNormalTarget(3, DirUp)
	if !ok || r.ID != in.ID || !r.CreatedAt.Equal(in.CreatedAt) || r.seq != in.seq {
		t.Errorf("Expected cloned request %+v, got %+v", in, r)
	}
	if cp.calls.internal[3] == q.calls.internal[3] {
		t.Error("Expected clone to own its request storage")
	}

	clock.Advance(2 * time.Second)
	served, err := cp.ServiceFloor(5, DirUp, &countingBoarder{capacity: 8})
	if err != nil || len(served) != 1 || served[0].ID != up.ID {
		t.Fatalf("Expected clone to serve call at 5, got %v, %v", served, err)
	}
	if shadowStats.NormalRequestsServed != 1 || shadowStats.CumulativeWait != 2*time.Second {
		t.Errorf("Unexpected clone statistics: %+v", shadowStats)
	}
	if q.Len() != 3 || cp.Len() != 2 {
		t.Errorf("Expected original 3 and clone 2 pending, got %d / %d", q.Len(), cp.Len())
	}
}
