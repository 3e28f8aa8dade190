// Package clock provides the timing primitives that drive scheduled signal
// production: a periodic interval clock with pluggable back-pressure
// policies, a deterministic virtual-time clock for tests, and a bridge
// clock driven by external pushes.
//
// All clocks share one contract: a single handler registered at Start
// receives ticks whose Seq values are strictly 0, 1, 2, … per start epoch,
// Stop cancels the pending cycle and is idempotent, and stats are zeroed
// at every Start.
//
// # Interval Clock
//
// The interval clock schedules with chained single-shot timers and selects
// one of three back-pressure policies at Start:
//
//   - block (default): fixed-delay. The next tick is scheduled after the
//     handler completes, so a slow handler stretches the period. Nothing
//     is ever dropped and drift is reported as zero.
//   - drop: fixed-rate. The next tick is scheduled before the handler
//     runs; ticks arriving while the handler is busy are dropped. After a
//     delayed tick, up to MaxCatchUpTicks compensation ticks fire, and any
//     remaining backlog is skipped in whole intervals.
//   - adaptive: fixed-rate with an accumulator of pending elapsed time.
//     Each cycle fires the regular tick plus bounded catch-up ticks
//     strictly sequentially, then clamps the leftover backlog.
//
//	clk, err := clock.NewIntervalClock(100*time.Millisecond,
//	    clock.WithBackpressure(clock.BackpressureDrop),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = clk.Start(ctx, func(ctx context.Context, tick clock.Tick) error {
//	    return doWork(ctx, tick)
//	})
//	defer clk.Stop()
//
// A drift-warning callback can be registered to detect sustained overload:
// five consecutive ticks with |drift| above 80% of the interval trigger it.
//
// # Test Clock
//
// The test clock never touches real timers. Tests advance virtual time
// explicitly and handler calls happen synchronously before the advancing
// call returns, which makes timing behavior fully deterministic:
//
//	clk := clock.NewTestClock(100 * time.Millisecond)
//	_ = clk.Start(ctx, handler)
//	_ = clk.AdvanceBy(ctx, 250*time.Millisecond) // fires exactly 2 ticks
//	_ = clk.Flush(ctx)                           // drains the 50ms residue
//
// Handler errors propagate out of Tick, AdvanceBy, and Flush so tests can
// assert on them; real clocks swallow and count them instead.
//
// # Bridge Clock
//
// The bridge clock turns external events into ticks. Wire it to whatever
// pushes the host program receives:
//
//	clk := clock.NewBridgeClock()
//	_ = clk.Start(ctx, handler)
//	clk.Push() // one tick, reason "bridge"
package clock
