package elevator

import (
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/tiendc/go-deepcopy"
)

type emergencyEntry struct {
	req      Request
	pickedUp bool
}

// nextStop is the origin until the passenger is aboard, then the destination.
func (e *emergencyEntry) nextStop() int {
	if e.pickedUp {
		return e.req.Destination
	}
	return e.req.Origin
}

func (e *emergencyEntry) group(floor int, dir Direction) Group {
	if !e.pickedUp {
		return Classify(e.req, floor, dir)
	}
	if dir == DirIdle {
		return GroupC
	}
	if isAhead(e.req.Destination, floor, dir) {
		return GroupA
	}
	return GroupB
}

// Classify assigns an emergency request awaiting pickup to a priority group
// relative to the car at floor moving in dir.
//   - A: travels in dir and its origin is at or ahead of the car.
//   - B: travels against dir, or its origin is behind the car.
//   - C: origin equals destination, or the car is Idle.
func Classify(r Request, floor int, dir Direction) Group {
	if dir == DirIdle || r.Origin == r.Destination {
		return GroupC
	}
	if r.TravelDirection() == dir && isAhead(r.Origin, floor, dir) {
		return GroupA
	}
	return GroupB
}

// EmergencyGroups is the classification of all pending emergency requests at
// one point in time.
type EmergencyGroups struct {
	A []Request
	B []Request
	C []Request
}

// Total returns the number of classified requests.
func (g EmergencyGroups) Total() int {
	return len(g.A) + len(g.B) + len(g.C)
}

// EmergencyHandler owns the emergency queue and emergency mode.
// INACTIVE -> Activate -> ACTIVE (normal paused) -> queue drains -> INACTIVE (normal resumed)
// EmergencyHandler는 비상 큐와 비상 모드 전환을 관리합니다.
type EmergencyHandler struct {
	cfg    Config
	queue  *QueueManager
	stats  *Statistics
	logger *slog.Logger

	entries []*emergencyEntry // 접수 순서
	active  bool
	seq     uint64
}

// NewEmergencyHandler wires the handler to the queue manager it pauses.
func NewEmergencyHandler(cfg Config, queue *QueueManager, stats *Statistics) *EmergencyHandler {
	cfg = cfg.withDefaults()
	return &EmergencyHandler{
		cfg:    cfg,
		queue:  queue,
		stats:  stats,
		logger: cfg.Logger,
	}
}

// SubmitEmergency enqueues an emergency transport. It does not engage
// emergency mode. An identical pending (origin, destination) is kept as is.
func (h *EmergencyHandler) SubmitEmergency(origin, destination int) (Request, error) {
	if err := h.cfg.checkFloor(origin); err != nil {
		return Request{}, err
	}
	if err := h.cfg.checkFloor(destination); err != nil {
		return Request{}, err
	}
	for _, e := range h.entries {
		if e.req.Origin == origin && e.req.Destination == destination {
			h.logger.Debug("Emergency already registered", "origin", origin, "destination", destination)
			return e.req, nil
		}
	}

	h.seq++
	if h.stats != nil {
		h.stats.RequestCount++
	}
	r := Request{
		ID:          uuid.New(),
		Kind:        KindEmergency,
		Origin:      origin,
		Destination: destination,
		Direction:   directionTo(origin, destination),
		CreatedAt:   h.cfg.Clock(),
		seq:         h.seq,
	}
	h.entries = append(h.entries, &emergencyEntry{req: r})
	return r, nil
}

// Activate engages emergency mode and pauses normal requests. Calling it
// while active is a no-op; requests submitted since are already part of
// the active queue.
func (h *EmergencyHandler) Activate() error {
	if len(h.entries) == 0 {
		return ErrNoEmergencyRequests
	}
	if h.active {
		h.logger.Debug("Emergency mode already active", "pending", len(h.entries))
		return nil
	}
	h.active = true
	h.queue.PauseNormal()
	if h.stats != nil {
		h.stats.EmergencyActivations++
	}
	h.logger.Warn("Emergency mode activated", "pending", len(h.entries))
	return nil
}

// Active reports whether emergency mode is engaged.
func (h *EmergencyHandler) Active() bool {
	return h.active
}

// Len returns the number of pending emergency requests.
func (h *EmergencyHandler) Len() int {
	return len(h.entries)
}

// DeactivateIfDone leaves emergency mode once the queue is empty and resumes
// normal requests. It must run after every service event.
func (h *EmergencyHandler) DeactivateIfDone() bool {
	if !h.active || len(h.entries) > 0 {
		return false
	}
	h.active = false
	h.queue.ResumeNormal()
	h.logger.Info("Emergency mode deactivated")
	return true
}

// NextEmergencyTarget selects from the lowest non-empty group the request
// whose next stop is closest to floor, first submitted on ties. The target is
// the origin before pickup and the destination after.
func (h *EmergencyHandler) NextEmergencyTarget(floor int, dir Direction) (int, Request, bool) {
	var best *emergencyEntry
	var bestGroup Group
	for _, e := range h.entries {
		g := e.group(floor, dir)
		if best == nil || g < bestGroup {
			best, bestGroup = e, g
			continue
		}
		if g > bestGroup {
			continue
		}
		d, bd := abs(e.nextStop()-floor), abs(best.nextStop()-floor)
		if d < bd || (d == bd && e.req.seq < best.req.seq) {
			best = e
		}
	}
	if best == nil {
		return 0, Request{}, false
	}
	return best.nextStop(), best.req, true
}

// Groups classifies all pending requests, ordered by distance of their next
// stop then submission.
func (h *EmergencyHandler) Groups(floor int, dir Direction) EmergencyGroups {
	var g EmergencyGroups
	ordered := h.snapshot()
	sort.SliceStable(ordered, func(i, j int) bool {
		return abs(ordered[i].nextStop()-floor) < abs(ordered[j].nextStop()-floor)
	})
	for _, e := range ordered {
		switch e.group(floor, dir) {
		case GroupA:
			g.A = append(g.A, e.req)
		case GroupB:
			g.B = append(g.B, e.req)
		default:
			g.C = append(g.C, e.req)
		}
	}
	return g
}

// HasStopAbove reports whether any pending next stop lies strictly above floor.
func (h *EmergencyHandler) HasStopAbove(floor int) bool {
	for _, e := range h.entries {
		if e.nextStop() > floor {
			return true
		}
	}
	return false
}

// HasStopBelow reports whether any pending next stop lies strictly below floor.
func (h *EmergencyHandler) HasStopBelow(floor int) bool {
	for _, e := range h.entries {
		if e.nextStop() < floor {
			return true
		}
	}
	return false
}

// PickedUp reports whether the passenger of r is aboard.
func (h *EmergencyHandler) PickedUp(r Request) bool {
	for _, e := range h.entries {
		if e.req.ID == r.ID {
			return e.pickedUp
		}
	}
	return false
}

// ServiceStop handles the doors opening at floor in emergency mode: drop-offs
// first, then pickups. A pickup that cannot board stays pending and its
// ErrOverCapacity is returned. Only completed transports are returned.
func (h *EmergencyHandler) ServiceStop(floor int, b Boarder) ([]Request, error) {
	var served []Request
	for _, e := range h.snapshot() {
		if e.pickedUp && e.req.Destination == floor {
			alight(b)
			served = append(served, h.OnEmergencyServiced(e.req))
		}
	}

	var err error
	for _, e := range h.snapshot() {
		if e.pickedUp || e.req.Origin != floor {
			continue
		}
		if b != nil {
			if berr := b.BoardPassengers(1); berr != nil {
				h.logger.Warn("Emergency pickup deferred", "request", e.req, "error", berr)
				err = berr
				continue
			}
		}
		e.pickedUp = true
		h.logger.Info("Emergency pickup", "request", e.req)
		if e.req.Destination == floor {
			alight(b)
			served = append(served, h.OnEmergencyServiced(e.req))
		}
	}
	return served, err
}

// OnEmergencyServiced removes r from the queue and accounts it.
func (h *EmergencyHandler) OnEmergencyServiced(r Request) Request {
	for i, e := range h.entries {
		if e.req.ID != r.ID {
			continue
		}
		h.entries = append(h.entries[:i], h.entries[i+1:]...)
		if h.stats != nil {
			h.stats.EmergencyRequestsServed++
			h.stats.CumulativeWait += h.cfg.Clock().Sub(r.CreatedAt)
		}
		h.logger.Info("Emergency complete", "request", r)
		break
	}
	return r
}

// Pending returns emergency requests in submission order.
func (h *EmergencyHandler) Pending() []Request {
	out := make([]Request, 0, len(h.entries))
	for _, e := range h.entries {
		out = append(out, e.req)
	}
	return out
}

func (h *EmergencyHandler) snapshot() []*emergencyEntry {
	out := make([]*emergencyEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// clone copies the handler onto a cloned queue manager.
func (h *EmergencyHandler) clone(queue *QueueManager, stats *Statistics, logger *slog.Logger) *EmergencyHandler {
	cp := *h
	cp.queue = queue
	cp.stats = stats
	cp.logger = logger
	cp.entries = nil
	if err := deepcopy.Copy(&cp.entries, &h.entries); err != nil {
		panic(err)
	}
	return &cp
}
