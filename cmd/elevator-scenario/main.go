package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"go-elevator-dispatch/pkg/driver"
	"go-elevator-dispatch/pkg/elevator"
	"go-elevator-dispatch/pkg/logging"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var errTickLimit = errors.New("tick limit reached before the scenario drained")

// virtualClock advances one second per tick so wait times read as tick counts.
type virtualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *virtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *virtualClock) advance() {
	c.mu.Lock()
	c.now = c.now.Add(time.Second)
	c.mu.Unlock()
}

// scripted feeds scheduled actions into the simulator ahead of each tick.
type scripted struct {
	sim     *elevator.Simulator
	clock   *virtualClock
	actions []action
	next    int
	trace   io.Writer
}

func (s *scripted) Tick() elevator.TickReport {
	now := s.sim.Ticks()
	for s.next < len(s.actions) && s.actions[s.next].At <= now {
		a := s.actions[s.next]
		if err := a.Apply(s.sim); err != nil {
			fmt.Fprintf(s.trace, "        %s rejected: %v\n", a.Label, err)
		}
		s.next++
	}

	report := s.sim.Tick()
	s.clock.advance()

	target := "-"
	if report.HasTarget {
		target = fmt.Sprint(report.Target)
	}
	fmt.Fprintf(s.trace, "tick %3d  floor %2d  %-4s  %-7s  target %-2s  passengers %d",
		report.Tick, report.Floor, report.Direction, report.Door, target, report.Passengers)
	if report.EmergencyActive {
		fmt.Fprint(s.trace, "  [EMERGENCY]")
	}
	for _, r := range report.Served {
		fmt.Fprintf(s.trace, "  served %s", r)
	}
	fmt.Fprintln(s.trace)
	return report
}

func (s *scripted) drained() bool {
	return s.next == len(s.actions) &&
		len(s.sim.PendingRequests()) == 0 &&
		s.sim.State().Door == elevator.DoorClosed
}

type result struct {
	Name  string
	Ticks uint64
	Stats elevator.Statistics
	Stops []int
}

type options struct {
	MaxTicks uint64
	Interval time.Duration
	Speed    float64
	Trace    io.Writer
	Logger   *slog.Logger
}

func runScenario(ctx context.Context, sc scenario, opts options) (result, error) {
	clock := &virtualClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	cfg := sc.Config
	cfg.Clock = clock.Now
	cfg.Logger = opts.Logger.With("id", cfg.ID)

	sim, err := elevator.New(cfg)
	if err != nil {
		return result{}, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	script := &scripted{sim: sim, clock: clock, actions: sc.Actions, trace: opts.Trace}

	var stops []int
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var limitHit bool
	prevDoor := elevator.DoorClosed
	runner := driver.New(script, driver.Config{
		Interval: opts.Interval,
		Speed:    opts.Speed,
		Logger:   opts.Logger,
		OnTick: func(r elevator.TickReport) {
			if prevDoor == elevator.DoorOpening && r.Door == elevator.DoorOpen {
				stops = append(stops, r.Floor)
			}
			prevDoor = r.Door
			if script.drained() {
				cancel()
			} else if r.Tick >= opts.MaxTicks {
				limitHit = true
				cancel()
			}
		},
	})

	if opts.Interval > 0 {
		// 실시간 모드: 러너의 타이머가 틱을 공급
		err = runner.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return result{}, err
		}
	} else {
		for ctx.Err() == nil {
			runner.Step()
		}
	}

	res := result{Name: sc.Name, Ticks: sim.Ticks(), Stats: sim.Statistics(), Stops: stops}
	if limitHit {
		return res, fmt.Errorf("scenario %s: %w (%d ticks)", sc.Name, errTickLimit, opts.MaxTicks)
	}
	return res, nil
}

func printSummary(w io.Writer, results []result) error {
	p := message.NewPrinter(language.English)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	p.Fprintln(tw, "SCENARIO\tTICKS\tFLOORS\tNORMAL\tEMERGENCY\tACTIVATIONS\tAVG WAIT\tSTOPS")
	for _, r := range results {
		stops := make([]string, len(r.Stops))
		for i, f := range r.Stops {
			stops[i] = fmt.Sprint(f)
		}
		p.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%.1f\t%s\n",
			r.Name, r.Ticks, r.Stats.FloorsTraveled, r.Stats.NormalRequestsServed,
			r.Stats.EmergencyRequestsServed, r.Stats.EmergencyActivations,
			r.Stats.AverageWait().Seconds(), strings.Join(stops, " "))
	}
	return tw.Flush()
}

func main() {
	var (
		name     = flag.String("scenario", "all", "Scenario to run, or \"all\".")
		maxTicks = flag.Uint64("max-ticks", 500, "Abort a scenario after this many ticks.")
		interval = flag.Duration("interval", 0, "Wall-clock tick interval; 0 runs as fast as possible.")
		speed    = flag.Float64("speed", 1, "Speed multiplier for -interval (0.1 to 3.0).")
		quiet    = flag.Bool("quiet", false, "Only print the summary table.")
		level    = flag.String("log", "warn", "Log level (debug, info, warn, error).")
		list     = flag.Bool("list", false, "List scenarios and exit.")
	)
	flag.Parse()

	if *list {
		for _, sc := range scenarios {
			fmt.Printf("%-10s %s\n", sc.Name, sc.Description)
		}
		return
	}

	lvl, err := logging.ParseLevel(*level)
	if err != nil {
		log.Fatal(err)
	}
	logger := logging.Init(os.Stderr, lvl)

	selected := scenarios
	if *name != "all" {
		sc, ok := findScenario(*name)
		if !ok {
			log.Fatalf("unknown scenario %q (use -list)", *name)
		}
		selected = []scenario{sc}
	}

	var trace io.Writer = os.Stdout
	if *quiet {
		trace = io.Discard
	}

	ctx := context.Background()
	var results []result
	failed := false
	for _, sc := range selected {
		fmt.Fprintf(trace, "== %s: %s\n", sc.Name, sc.Description)
		res, err := runScenario(ctx, sc, options{
			MaxTicks: *maxTicks,
			Interval: *interval,
			Speed:    *speed,
			Trace:    trace,
			Logger:   logger,
		})
		if err != nil {
			slog.Error("Scenario failed", "scenario", sc.Name, "error", err)
			failed = true
		}
		results = append(results, res)
		fmt.Fprintln(trace)
	}

	if err := printSummary(os.Stdout, results); err != nil {
		log.Fatal(err)
	}
	if failed {
		os.Exit(1)
	}
}
