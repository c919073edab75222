// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for the
// acquisition engine.
//
// Every component that reads the time or waits (the clock
// synchronizer, the load-time wait before the first navigation, the
// readiness poll in the HTTP session, the scheduler loop) accepts a
// Clock instead of calling the time package directly. Production code
// passes Real(); tests pass Fake() and drive time explicitly.
//
// # Wiring Pattern
//
//	engine, err := acquire.New(acquire.Config{
//	    Clock: clock.Real(),
//	    // ...
//	})
//
// In tests:
//
//	fake := clock.Fake(time.Date(2026, 3, 2, 8, 59, 0, 0, time.UTC))
//	go func() { done <- engine.Acquire(ctx, request) }()
//	fake.WaitForTimers(1)      // the load-time wait has registered
//	fake.Advance(time.Minute)  // release it deterministically
//
// # FakeClock Synchronization
//
// When a goroutine calls Sleep, After, NewTicker, or WaitUntil on a
// FakeClock, it registers a pending waiter. WaitForTimers blocks until
// a given number of waiters are registered, which removes the race
// between timer registration and Advance.
package clock
