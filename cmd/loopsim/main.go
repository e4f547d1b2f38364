package main

import (
	"fmt"
	"time"

	"evloop/internal/job"
	"evloop/internal/sched"
)

func main() {
	// Read the configuration
	cfg := sched.Load("config.yml")
	fmt.Printf("Loaded config: %+v\n", cfg)

	s := sched.New(cfg)
	if cfg.TraceCSV != "" {
		if err := s.EnableCSVTrace(cfg.TraceCSV); err != nil {
			fmt.Println("trace disabled:", err)
		}
	}
	s.OnUncaught(func(err error) {
		fmt.Println("uncaught:", err)
	})

	// Kick off a simulated host completion before the loop even runs. It
	// still loses to every continuation queued on the loop itself.
	delivered := job.SimulateIO(s.IntakeSender(), 5*time.Millisecond, func() {
		fmt.Println("host : io completed")
	})

	s.RunRoot(func() {
		fmt.Println("root : start")

		s.ScheduleTimer(func() { fmt.Println("timer: 0ms fired") }, 0)
		s.ScheduleTimer(func() { fmt.Println("timer: 10ms fired") }, 10*time.Millisecond)

		d, r := s.NewDeferred()
		d.OnSettle(func(v any) (any, error) {
			fmt.Println("chain:", v)
			return "second hop", nil
		}, nil).OnSettle(func(v any) (any, error) {
			fmt.Println("chain:", v)
			return nil, nil
		}, nil)
		r.Resolve("settled in the same turn")

		fmt.Println("root : end")
	})

	// wait until the producer has handed its callback over, then drain
	<-delivered
	s.RunUntilIdle()

	fmt.Printf("Stats: %+v\n", s.Stats())
	s.Close()
}
