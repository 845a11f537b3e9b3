package elevator

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/tiendc/go-deepcopy"
)

// Boarder adjusts the passenger load as requests are served.
// Car implements it.
type Boarder interface {
	BoardPassengers(delta int) error
}

// alight lets one passenger off. Alighting has no failure mode, so an error
// means the Boarder is broken.
func alight(b Boarder) {
	if b == nil {
		return
	}
	if err := b.BoardPassengers(-1); err != nil {
		panic(fmt.Sprintf("elevator: alighting failed: %v", err))
	}
}

// pendingCalls holds the normal queues keyed by floor. Values are pointers so
// deepcopy.Copy can reach their unexported fields.
type pendingCalls struct {
	internal map[int]*Request // 카 내부 호출
	up       map[int]*Request // 상향 층 호출
	down     map[int]*Request // 하향 층 호출
}

func newPendingCalls() pendingCalls {
	return pendingCalls{
		internal: make(map[int]*Request),
		up:       make(map[int]*Request),
		down:     make(map[int]*Request),
	}
}

// hall returns the hall-call queue for dir.
func (c pendingCalls) hall(dir Direction) map[int]*Request {
	if dir == DirUp {
		return c.up
	}
	return c.down
}

// QueueManager owns the internal and external request queues. Both can be
// paused together; paused requests are kept and come back on resume.
// QueueManager는 내부/외부 요청 큐를 관리합니다. 일시 정지된 요청은 보존됩니다.
type QueueManager struct {
	cfg    Config
	stats  *Statistics
	logger *slog.Logger

	calls  pendingCalls
	paused bool
	seq    uint64
}

// NewQueueManager creates empty queues for the configured floor range.
func NewQueueManager(cfg Config, stats *Statistics) *QueueManager {
	cfg = cfg.withDefaults()
	return &QueueManager{
		cfg:    cfg,
		stats:  stats,
		logger: cfg.Logger,
		calls:  newPendingCalls(),
	}
}

// SubmitInternal registers a car call. A floor already pending keeps its
// original request.
func (q *QueueManager) SubmitInternal(floor int) (Request, error) {
	if err := q.cfg.checkFloor(floor); err != nil {
		return Request{}, err
	}
	if r, ok := q.calls.internal[floor]; ok {
		q.logger.Debug("Call already registered", "kind", KindInternal, "floor", floor)
		return *r, nil
	}
	r := q.newRequest(KindInternal, floor, DirIdle)
	q.calls.internal[floor] = &r
	return r, nil
}

// SubmitExternal registers a hall call with an Up/Down hint.
func (q *QueueManager) SubmitExternal(floor int, dir Direction) (Request, error) {
	if err := q.cfg.checkFloor(floor); err != nil {
		return Request{}, err
	}
	if dir != DirUp && dir != DirDown {
		return Request{}, fmt.Errorf("external call at floor %d with direction %q: %w", floor, dir, ErrInvalidDirection)
	}
	calls := q.calls.hall(dir)
	if r, ok := calls[floor]; ok {
		q.logger.Debug("Call already registered", "kind", KindExternal, "floor", floor, "dir", dir)
		return *r, nil
	}
	r := q.newRequest(KindExternal, floor, dir)
	calls[floor] = &r
	return r, nil
}

func (q *QueueManager) newRequest(kind RequestKind, floor int, dir Direction) Request {
	q.seq++
	if q.stats != nil {
		q.stats.RequestCount++
	}
	return Request{
		ID:          uuid.New(),
		Kind:        kind,
		Origin:      floor,
		Destination: floor,
		Direction:   dir,
		CreatedAt:   q.cfg.Clock(),
		seq:         q.seq,
	}
}

// PauseNormal hides all normal requests from target selection and service.
func (q *QueueManager) PauseNormal() {
	if !q.paused {
		q.paused = true
		q.logger.Info("Normal requests paused", "pending", q.Len())
	}
}

// ResumeNormal makes paused requests eligible again.
func (q *QueueManager) ResumeNormal() {
	if q.paused {
		q.paused = false
		q.logger.Info("Normal requests resumed", "pending", q.Len())
	}
}

// Paused reports whether normal requests are paused.
func (q *QueueManager) Paused() bool {
	return q.paused
}

// Len returns the number of normal requests, paused or not.
func (q *QueueManager) Len() int {
	return len(q.calls.internal) + len(q.calls.up) + len(q.calls.down)
}

// IsEmpty reports whether no normal request is pending.
func (q *QueueManager) IsEmpty() bool {
	return q.Len() == 0
}

// HasPendingAbove reports whether any normal request lies strictly above floor.
func (q *QueueManager) HasPendingAbove(floor int) bool {
	return q.any(func(r Request) bool { return r.Origin > floor })
}

// HasPendingBelow reports whether any normal request lies strictly below floor.
func (q *QueueManager) HasPendingBelow(floor int) bool {
	return q.any(func(r Request) bool { return r.Origin < floor })
}

func (q *QueueManager) any(pred func(Request) bool) bool {
	for _, calls := range []map[int]*Request{q.calls.internal, q.calls.up, q.calls.down} {
		for _, r := range calls {
			if pred(*r) {
				return true
			}
		}
	}
	return false
}

func (q *QueueManager) all() []Request {
	reqs := make([]Request, 0, q.Len())
	for _, calls := range []map[int]*Request{q.calls.internal, q.calls.up, q.calls.down} {
		for _, r := range calls {
			reqs = append(reqs, *r)
		}
	}
	return reqs
}

// eligible reports whether r can be served by a car travelling in dir.
// A hall call against the travel direction is only taken at the reversal
// point, i.e. when nothing is pending beyond it.
func (q *QueueManager) eligible(r Request, dir Direction) bool {
	if r.Kind == KindInternal || dir == DirIdle || r.Direction == dir {
		return true
	}
	if dir == DirUp {
		return !q.HasPendingAbove(r.Origin)
	}
	return !q.HasPendingBelow(r.Origin)
}

// preferred orders two candidates at equal distance: internal before
// external, lower floor, then first submitted.
func preferred(a, b Request) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	if a.Origin != b.Origin {
		return a.Origin < b.Origin
	}
	return a.seq < b.seq
}

// NextNormalTarget implements SCAN.
// 1. 현재 진행 방향(현재 층 포함)에서 가장 가까운 요청을 선택합니다.
// 2. 진행 방향에 요청이 없으면 방향을 반전하여 가장 가까운 요청을 선택합니다.
// Idle 상태에서는 가장 가까운 요청을 선택합니다.
func (q *QueueManager) NextNormalTarget(floor int, dir Direction) (Request, bool) {
	if q.paused || q.IsEmpty() {
		return Request{}, false
	}
	if dir == DirIdle {
		return q.nearest(floor, func(Request) bool { return true })
	}
	if r, ok := q.closestAhead(floor, dir); ok {
		return r, true
	}
	return q.closestAhead(floor, dir.Opposite())
}

func (q *QueueManager) closestAhead(floor int, dir Direction) (Request, bool) {
	return q.nearest(floor, func(r Request) bool {
		return isAhead(r.Origin, floor, dir) && q.eligible(r, dir)
	})
}

func (q *QueueManager) nearest(floor int, pred func(Request) bool) (Request, bool) {
	var best Request
	found := false
	for _, r := range q.all() {
		if !pred(r) {
			continue
		}
		if !found {
			best, found = r, true
			continue
		}
		d, bd := abs(r.Origin-floor), abs(best.Origin-floor)
		if d < bd || (d == bd && preferred(r, best)) {
			best = r
		}
	}
	return best, found
}

// ServiceFloor removes every normal request satisfied by the car stopping at
// floor while travelling in dir, and accounts wait time for each. Internal
// requests alight a passenger and external calls board one; a call that
// cannot board stays queued and the ErrOverCapacity is returned.
func (q *QueueManager) ServiceFloor(floor int, dir Direction, b Boarder) ([]Request, error) {
	if q.paused {
		return nil, nil
	}

	var served []Request
	if r, ok := q.calls.internal[floor]; ok {
		alight(b)
		delete(q.calls.internal, floor)
		served = append(served, q.serve(*r))
	}

	var err error
	for _, hint := range []Direction{DirUp, DirDown} {
		calls := q.calls.hall(hint)
		r, ok := calls[floor]
		if !ok || !q.eligible(*r, dir) {
			continue
		}
		if b != nil {
			if berr := b.BoardPassengers(1); berr != nil {
				q.logger.Warn("Boarding deferred", "request", *r, "error", berr)
				err = berr
				continue
			}
		}
		delete(calls, floor)
		served = append(served, q.serve(*r))
	}
	return served, err
}

func (q *QueueManager) serve(r Request) Request {
	if q.stats != nil {
		q.stats.NormalRequestsServed++
		q.stats.CumulativeWait += q.cfg.Clock().Sub(r.CreatedAt)
	}
	q.logger.Info("Request served", "request", r)
	return r
}

// Pending returns normal requests for display: internal ascending, external
// Up ascending, external Down descending.
func (q *QueueManager) Pending() []Request {
	var internal, up, down []Request
	for _, r := range q.calls.internal {
		internal = append(internal, *r)
	}
	for _, r := range q.calls.up {
		up = append(up, *r)
	}
	for _, r := range q.calls.down {
		down = append(down, *r)
	}
	sort.Slice(internal, func(i, j int) bool { return internal[i].Origin < internal[j].Origin })
	sort.Slice(up, func(i, j int) bool { return up[i].Origin < up[j].Origin })
	sort.Slice(down, func(i, j int) bool { return down[i].Origin > down[j].Origin })

	out := make([]Request, 0, q.Len())
	out = append(out, internal...)
	out = append(out, up...)
	return append(out, down...)
}

// clone copies the queues for look-ahead simulation.
func (q *QueueManager) clone(stats *Statistics, logger *slog.Logger) *QueueManager {
	cp := *q
	cp.stats = stats
	cp.logger = logger
	cp.calls = pendingCalls{}
	if err := deepcopy.Copy(&cp.calls, &q.calls); err != nil {
		panic(err)
	}
	return &cp
}

// waitOf returns how long r has been pending.
func waitOf(r Request, now time.Time) time.Duration {
	return now.Sub(r.CreatedAt)
}
