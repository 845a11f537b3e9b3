package elevator

import "time"

// EventType represents the category of a simulator event.
// EventType는 시뮬레이터 이벤트의 카테고리를 나타냅니다.
type EventType string

const (
	EventFloorChange          EventType = "FloorChange"
	EventDoorChange           EventType = "DoorChange"
	EventDirectionChange      EventType = "DirectionChange"
	EventRequestSubmitted     EventType = "RequestSubmitted"
	EventRequestServed        EventType = "RequestServed"
	EventEmergencyActivated   EventType = "EmergencyActivated"
	EventEmergencyDeactivated EventType = "EmergencyDeactivated"
	EventOverCapacity         EventType = "OverCapacity"
)

// maxRecentEvents bounds the in-memory event log.
const maxRecentEvents = 100

// Event carries the state change information.
// Event는 시스템 내에서 발생한 상태 변화 정보를 담고 있습니다.
type Event struct {
	Type      EventType
	Tick      uint64
	Payload   interface{}
	Timestamp time.Time
}

// publishEvent records an event and sends it to the channel without blocking.
// 채널이 가득 차면 이벤트를 버리고 메트릭을 증가시킵니다.
// Caller must hold s.mu.
func (s *Simulator) publishEvent(eventType EventType, payload interface{}) {
	if s.eventCh == nil {
		return
	}
	event := Event{
		Type:      eventType,
		Tick:      s.tick,
		Payload:   payload,
		Timestamp: s.cfg.Clock(),
	}

	s.recent = append(s.recent, event)
	if len(s.recent) > maxRecentEvents {
		s.recent = s.recent[len(s.recent)-maxRecentEvents:]
	}

	select {
	case s.eventCh <- event:
	default:
		s.droppedEventCount++
		// Log rarely to avoid disk I/O flooding
		if s.droppedEventCount%100 == 1 {
			s.logger.Error("Event Channel Saturated", "dropped", s.droppedEventCount, "type", eventType)
		}
	}
}

// publishCarChanges emits events for the differences between two car states.
func (s *Simulator) publishCarChanges(before, after CarState) {
	if before.Floor != after.Floor {
		s.publishEvent(EventFloorChange, after.Floor)
	}
	if before.Direction != after.Direction {
		s.publishEvent(EventDirectionChange, after.Direction)
	}
	if before.Door != after.Door {
		s.publishEvent(EventDoorChange, after.Door)
	}
}

// Events returns the read-only channel for state change notifications.
// Events는 상태 변경 알림을 위한 읽기 전용 채널을 반환합니다.
func (s *Simulator) Events() <-chan Event {
	return s.eventCh
}

// RecentEvents returns up to n of the latest events, oldest first.
func (s *Simulator) RecentEvents(n int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.recent) {
		n = len(s.recent)
	}
	out := make([]Event, n)
	copy(out, s.recent[len(s.recent)-n:])
	return out
}

// DroppedEventCount returns diagnostic metric for channel health.
// DroppedEventCount는 버퍼 오버플로우로 버려진 이벤트 수를 안전하게 반환합니다.
func (s *Simulator) DroppedEventCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.droppedEventCount
}
