package main

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"go-elevator-dispatch/pkg/driver"
	"go-elevator-dispatch/pkg/elevator"
	"go-elevator-dispatch/pkg/logging"

	"github.com/gorilla/websocket"
)

//go:embed static/*
var staticFiles embed.FS

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Message types
// 메시지 타입 정의
type ClientMessage struct {
	Action      string          `json:"action"`
	Config      *SimulatorSetup `json:"config,omitempty"`
	Floor       int             `json:"floor,omitempty"`
	Direction   string          `json:"direction,omitempty"`
	Origin      int             `json:"origin,omitempty"`
	Destination int             `json:"destination,omitempty"`
	Delta       int             `json:"delta,omitempty"`
	Speed       float64         `json:"speed,omitempty"`
}

type SimulatorSetup struct {
	ID            string  `json:"id"`
	MinFloor      int     `json:"minFloor"`
	MaxFloor      int     `json:"maxFloor"`
	InitialFloor  int     `json:"initialFloor"`
	Capacity      int     `json:"capacity"`
	DoorDwell     int     `json:"doorDwell"`     // ticks
	TickInterval  float64 `json:"tickInterval"`  // seconds at speed 1.0
	AutoEmergency bool    `json:"autoEmergency"` // 비상 요청 시 자동 활성화
}

type ServerMessage struct {
	Type      string `json:"type"`
	EventType string `json:"eventType,omitempty"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Error     string `json:"error,omitempty"`
	State     *View  `json:"state,omitempty"`
}

// View is the full snapshot sent to the browser.
type View struct {
	Tick            uint64                   `json:"tick"`
	Floor           int                      `json:"floor"`
	Direction       string                   `json:"direction"`
	Door            string                   `json:"door"`
	DoorTimer       int                      `json:"doorTimer"`
	Passengers      int                      `json:"passengers"`
	Capacity        int                      `json:"capacity"`
	EmergencyActive bool                     `json:"emergencyActive"`
	Running         bool                     `json:"running"`
	Speed           float64                  `json:"speed"`
	Pending         []RequestView            `json:"pending"`
	Groups          map[string][]RequestView `json:"groups"`
	Planned         []int                    `json:"planned"`
	Stats           StatsView                `json:"stats"`
}

type RequestView struct {
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	Kind        string  `json:"kind"`
	Origin      int     `json:"origin"`
	Destination int     `json:"destination"`
	WaitSeconds float64 `json:"waitSeconds"`
	Paused      bool    `json:"paused"`
	PickedUp    bool    `json:"pickedUp"`
}

type StatsView struct {
	FloorsTraveled       int     `json:"floorsTraveled"`
	NormalServed         int     `json:"normalServed"`
	EmergencyServed      int     `json:"emergencyServed"`
	AverageWaitSeconds   float64 `json:"averageWaitSeconds"`
	EmergencyActivations int     `json:"emergencyActivations"`
	DroppedEvents        uint64  `json:"droppedEvents"`
}

// plannedStopsShown bounds the lookahead computed per state push.
const plannedStopsShown = 8

// SimulatorSession manages a WebSocket connection with a simulator instance
// SimulatorSession은 시뮬레이터 인스턴스와의 WebSocket 연결을 관리합니다.
type SimulatorSession struct {
	conn    *websocket.Conn
	sim     *elevator.Simulator
	runner  *driver.Runner
	mu      sync.Mutex
	writeMu sync.Mutex
	done    chan struct{}
	cancel  context.CancelFunc
	stopped chan struct{} // 현재 시뮬레이터의 이벤트 리스너 종료 신호
}

func NewSimulatorSession(conn *websocket.Conn) *SimulatorSession {
	return &SimulatorSession{
		conn: conn,
		done: make(chan struct{}),
	}
}

func (s *SimulatorSession) HandleMessages() {
	slog.Info("Session started", "remote_addr", s.conn.RemoteAddr())
	defer func() {
		close(s.done)
		s.mu.Lock()
		s.shutdown()
		s.mu.Unlock()
		_ = s.conn.Close()
		slog.Info("Session ended", "remote_addr", s.conn.RemoteAddr())
	}()

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket read error", "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			slog.Warn("Failed to parse message", "error", err)
			continue
		}

		s.handleAction(msg)
	}
}

func (s *SimulatorSession) handleAction(msg ClientMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slog.Debug("Action received", "action", msg.Action, "payload", msg)

	if msg.Action == "init" {
		s.initSimulator(msg.Config)
		return
	}
	if s.sim == nil {
		return
	}

	var err error
	switch msg.Action {
	case "internal":
		err = s.sim.SubmitInternalRequest(msg.Floor)
	case "external":
		err = s.sim.SubmitExternalRequest(msg.Floor, elevator.Direction(msg.Direction))
	case "emergency":
		err = s.sim.SubmitEmergencyRequest(msg.Origin, msg.Destination)
	case "activate":
		err = s.sim.ActivateEmergencyMode()
	case "adjust":
		err = s.sim.AdjustPassengers(msg.Delta)
	case "pause":
		s.runner.Pause()
	case "resume":
		s.runner.Resume()
	case "toggle":
		s.runner.Toggle()
	case "speed":
		s.runner.SetSpeed(msg.Speed)
	case "step":
		s.runner.Step()
	case "stop":
		s.shutdown()
		s.sim = nil
		s.runner = nil
		return
	case "getState":
	default:
		slog.Warn("Unknown action", "action", msg.Action)
		return
	}

	if err != nil {
		slog.Warn("Action rejected", "action", msg.Action, "error", err)
		s.writeJSON(ServerMessage{Type: "error", Error: err.Error()})
	}
	s.sendState()
}

func (s *SimulatorSession) initSimulator(setup *SimulatorSetup) {
	if setup == nil {
		slog.Warn("No config provided for init")
		return
	}

	// Stop existing simulator if any
	s.shutdown()

	config := elevator.Config{
		ID:                    setup.ID,
		MinFloor:              setup.MinFloor,
		MaxFloor:              setup.MaxFloor,
		InitialFloor:          setup.InitialFloor,
		Capacity:              setup.Capacity,
		DoorDwellTicks:        setup.DoorDwell,
		AutoActivateEmergency: setup.AutoEmergency,
	}
	slog.Info("Simulator config", "setup", *setup)

	sim, err := elevator.New(config)
	if err != nil {
		slog.Error("Failed to initialize simulator", "error", err)
		s.writeJSON(ServerMessage{Type: "error", Error: err.Error()})
		return
	}
	s.sim = sim

	// 틱 알림은 리스너 고루틴에서 상태 전송으로 이어짐 (세션 락 재진입 방지)
	ticked := make(chan struct{}, 1)
	s.runner = driver.New(sim, driver.Config{
		Interval: time.Duration(setup.TickInterval * float64(time.Second)),
		OnTick: func(elevator.TickReport) {
			select {
			case ticked <- struct{}{}:
			default:
			}
		},
	})

	// Subscribe to events
	// 이벤트 구독
	s.stopped = make(chan struct{})
	go s.eventListener(sim, ticked, s.stopped)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	runner := s.runner
	go func() {
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Runner error", "error", err)
		}
	}()

	slog.Info("Simulator initialized", "id", setup.ID, "floors", setup.MinFloor, "to", setup.MaxFloor)

	// Send initial state
	s.sendState()
}

// shutdown stops the runner and the event listener of the current simulator.
// Requires s.mu.
func (s *SimulatorSession) shutdown() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.stopped != nil {
		close(s.stopped)
		s.stopped = nil
	}
}

func (s *SimulatorSession) eventListener(sim *elevator.Simulator, ticked, stop <-chan struct{}) {
	eventCh := sim.Events()
	for {
		select {
		case <-s.done:
			return
		case <-stop:
			return
		case <-ticked:
			s.pushState(sim)
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			s.sendEvent(event)
		}
	}
}

// pushState skips sessions that were re-initialized or stopped.
func (s *SimulatorSession) pushState(sim *elevator.Simulator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sim != sim {
		return
	}
	s.sendState()
}

// sendState requires s.mu.
func (s *SimulatorSession) sendState() {
	if s.sim == nil {
		return
	}
	view := buildView(s.sim, s.runner)
	s.writeJSON(ServerMessage{Type: "state", State: &view})
}

func buildView(sim *elevator.Simulator, runner *driver.Runner) View {
	st := sim.State()
	stats := sim.Statistics()

	pending := sim.PendingRequests()
	views := make([]RequestView, 0, len(pending))
	for _, p := range pending {
		views = append(views, RequestView{
			ID:          p.ID.String(),
			Label:       p.String(),
			Kind:        p.Kind.String(),
			Origin:      p.Origin,
			Destination: p.Destination,
			WaitSeconds: p.Wait.Seconds(),
			Paused:      p.Paused,
			PickedUp:    p.PickedUp,
		})
	}

	groups := sim.EmergencyGroups()
	return View{
		Tick:            sim.Ticks(),
		Floor:           st.Floor,
		Direction:       string(st.Direction),
		Door:            string(st.Door),
		DoorTimer:       st.DoorTimer,
		Passengers:      st.Passengers,
		Capacity:        st.Capacity,
		EmergencyActive: sim.EmergencyActive(),
		Running:         runner.Running(),
		Speed:           runner.Speed(),
		Pending:         views,
		Groups: map[string][]RequestView{
			"A": requestViews(groups.A),
			"B": requestViews(groups.B),
			"C": requestViews(groups.C),
		},
		Planned: sim.PlannedStops(plannedStopsShown),
		Stats: StatsView{
			FloorsTraveled:       stats.FloorsTraveled,
			NormalServed:         stats.NormalRequestsServed,
			EmergencyServed:      stats.EmergencyRequestsServed,
			AverageWaitSeconds:   stats.AverageWait().Seconds(),
			EmergencyActivations: stats.EmergencyActivations,
			DroppedEvents:        sim.DroppedEventCount(),
		},
	}
}

func requestViews(rs []elevator.Request) []RequestView {
	out := make([]RequestView, 0, len(rs))
	for _, r := range rs {
		out = append(out, RequestView{
			ID:          r.ID.String(),
			Label:       r.String(),
			Kind:        r.Kind.String(),
			Origin:      r.Origin,
			Destination: r.Destination,
		})
	}
	return out
}

func (s *SimulatorSession) sendEvent(event elevator.Event) {
	payload := event.Payload
	if r, ok := payload.(elevator.Request); ok {
		payload = r.String()
	}
	s.writeJSON(ServerMessage{
		Type:      "event",
		EventType: string(event.Type),
		Payload:   payload,
		Timestamp: event.Timestamp.Format("15:04:05"),
	})
}

func (s *SimulatorSession) writeJSON(msg ServerMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(msg); err != nil {
		slog.Error("Failed to write JSON message", "error", err)
	}
}

func handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	session := NewSimulatorSession(conn)
	session.HandleMessages()
}

type AppConfig struct {
	Port     string
	LogLevel string
}

func loadConfig() *AppConfig {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	return &AppConfig{
		Port:     port,
		LogLevel: level,
	}
}

func main() {
	cfg := loadConfig()

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	logging.Init(os.Stderr, level)

	// Serve static files from embedded filesystem
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatal(err)
	}

	http.Handle("/", http.FileServer(http.FS(staticFS)))
	http.HandleFunc("/ws", handleWebSocket)

	addr := ":" + cfg.Port
	slog.Info("Starting elevator dispatch server", "addr", addr)
	slog.Info("Open http://localhost:" + cfg.Port + " in your browser")

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal(err)
	}
}
