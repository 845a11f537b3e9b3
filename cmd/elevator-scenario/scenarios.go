package main

import (
	"go-elevator-dispatch/pkg/elevator"
)

// action is applied right before the tick numbered At (0 = before the first tick).
type action struct {
	At    uint64
	Label string
	Apply func(*elevator.Simulator) error
}

type scenario struct {
	Name        string
	Description string
	Config      elevator.Config
	Actions     []action
}

func internal(at uint64, floor int) action {
	return action{at, "internal", func(s *elevator.Simulator) error { return s.SubmitInternalRequest(floor) }}
}

func external(at uint64, floor int, dir elevator.Direction) action {
	return action{at, "external " + string(dir), func(s *elevator.Simulator) error { return s.SubmitExternalRequest(floor, dir) }}
}

func emergency(at uint64, origin, destination int) action {
	return action{at, "emergency", func(s *elevator.Simulator) error { return s.SubmitEmergencyRequest(origin, destination) }}
}

func activate(at uint64) action {
	return action{at, "activate", func(s *elevator.Simulator) error { return s.ActivateEmergencyMode() }}
}

func adjust(at uint64, delta int) action {
	return action{at, "adjust", func(s *elevator.Simulator) error { return s.AdjustPassengers(delta) }}
}

var scenarios = []scenario{
	{
		Name:        "basic",
		Description: "hall call Up at 3 and car call to 7 from idle at 1",
		Config:      elevator.Config{ID: "basic", MinFloor: 1, MaxFloor: 10, InitialFloor: 1},
		Actions: []action{
			external(0, 3, elevator.DirUp),
			internal(0, 7),
		},
	},
	{
		Name:        "emergency",
		Description: "emergency 2->9 pre-empts a pending car call while idle at 5",
		Config:      elevator.Config{ID: "emergency", MinFloor: 1, MaxFloor: 10, InitialFloor: 5},
		Actions: []action{
			internal(0, 8),
			emergency(0, 2, 9),
			activate(0),
		},
	},
	{
		Name:        "capacity",
		Description: "full car holds its doors at a hall call; only a passenger adjustment releases it",
		Config:      elevator.Config{ID: "capacity", MinFloor: 1, MaxFloor: 10, InitialFloor: 1, Capacity: 8},
		Actions: []action{
			adjust(0, 8),
			external(0, 3, elevator.DirUp),
			internal(0, 6),
			adjust(10, -1),
		},
	},
	{
		Name:        "groups",
		Description: "mixed emergency groups while moving up from 3, with normal traffic paused",
		Config:      elevator.Config{ID: "groups", MinFloor: 1, MaxFloor: 10, InitialFloor: 3, InitialDirection: elevator.DirUp},
		Actions: []action{
			internal(0, 7),
			external(0, 6, elevator.DirDown),
			emergency(0, 4, 10),
			emergency(0, 2, 1),
			activate(0),
			external(5, 4, elevator.DirUp),
		},
	},
	{
		Name:        "rush",
		Description: "morning rush: hall calls from the lobby and car calls to upper floors",
		Config:      elevator.Config{ID: "rush", MinFloor: 1, MaxFloor: 20, InitialFloor: 1, AutoActivateEmergency: true},
		Actions: []action{
			external(0, 1, elevator.DirUp),
			internal(2, 12),
			internal(2, 5),
			internal(2, 18),
			external(6, 9, elevator.DirDown),
			external(8, 14, elevator.DirUp),
			emergency(12, 16, 2),
			internal(20, 3),
		},
	},
}

func findScenario(name string) (scenario, bool) {
	for _, sc := range scenarios {
		if sc.Name == name {
			return sc, true
		}
	}
	return scenario{}, false
}
