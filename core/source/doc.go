// Package source defines the producer side of the signal runtime: a
// Source binds to its consumer's emit function at Start and pushes signals
// until Stop.
//
// Provided sources:
//
//   - ClockSource adapts any clock (interval, test, bridge) by mapping
//     ticks to signals through a pure function.
//   - WatchSource emits a signal per file-system event (fsnotify).
//   - CronSource emits a signal per schedule fire (robfig/cron syntax).
//   - Group starts and stops a set of sources as one unit.
//
// Wiring sources to a bus:
//
//	clk, _ := clock.NewIntervalClock(time.Minute)
//	heartbeat, _ := source.NewClockSource(clk, func(t clock.Tick) signal.Signal {
//	    return signal.New("heartbeat", t.Seq, signal.WithSource("clock"))
//	})
//
//	group := source.NewGroup()
//	group.Add(heartbeat)
//	if err := group.Start(ctx, bus.Emit); err != nil {
//	    log.Fatal(err)
//	}
//	defer group.Stop()
package source
