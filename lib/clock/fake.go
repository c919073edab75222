// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"container/heap"
	"sync"
	"time"
)

// Fake returns a FakeClock reading initial. Time stands still until
// Advance or Set moves it.
//
// FakeClock is safe for concurrent use.
func Fake(initial time.Time) *FakeClock {
	c := &FakeClock{now: initial}
	c.changed = sync.NewCond(&c.mu)
	return c
}

// FakeClock is a deterministic Clock for tests. Pending timers,
// tickers and sleeps are kept in deadline order and fire only when the
// clock is moved past them.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	queue   timerQueue
	nextSeq uint64

	// changed is broadcast whenever a waiter is registered, so
	// WaitForTimers can observe goroutines reaching their wait.
	changed *sync.Cond
}

// fakeTimer is one pending After, Sleep or ticker period.
type fakeTimer struct {
	deadline time.Time
	channel  chan time.Time

	// period is non-zero for tickers, which are requeued at the next
	// deadline past the time they fired at.
	period time.Duration

	// seq breaks deadline ties in registration order.
	seq   uint64
	index int
}

// timerQueue is a min-heap of timers ordered by deadline.
type timerQueue []*fakeTimer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].deadline.Equal(q[j].deadline) {
		return q[i].seq < q[j].seq
	}
	return q[i].deadline.Before(q[j].deadline)
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	timer := x.(*fakeTimer)
	timer.index = len(*q)
	*q = append(*q, timer)
}

func (q *timerQueue) Pop() any {
	old := *q
	last := len(old) - 1
	timer := old[last]
	old[last] = nil
	timer.index = -1
	*q = old[:last]
	return timer
}

// schedule queues timer. Caller holds mu.
func (c *FakeClock) schedule(timer *fakeTimer) {
	c.nextSeq++
	timer.seq = c.nextSeq
	heap.Push(&c.queue, timer)
	c.changed.Broadcast()
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After returns a channel that receives once the clock has been moved
// d past the current time. A non-positive d delivers immediately and
// registers nothing.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.now
		return channel
	}
	c.schedule(&fakeTimer{deadline: c.now.Add(d), channel: channel})
	return channel
}

// NewTicker returns a Ticker firing every d of fake time. Panics if
// d <= 0.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	timer := &fakeTimer{deadline: c.now.Add(d), channel: channel, period: d}
	c.schedule(timer)

	return &Ticker{
		C: channel,
		stopFunc: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if timer.index >= 0 {
				heap.Remove(&c.queue, timer.index)
			}
		},
	}
}

// Sleep blocks until the clock has been moved d past the current
// time.
func (c *FakeClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	<-c.After(d)
}

// Set moves the clock to t and fires everything that became due. A t
// before Now is ignored.
func (c *FakeClock) Set(t time.Time) {
	c.Advance(t.Sub(c.Now()))
}

// Advance moves the clock forward by d and fires every timer whose
// deadline is at or before the new time, earliest first. A ticker
// fires at most once per call. Sends never block: a ticker whose
// previous tick was not consumed drops the new one, like time.Ticker.
func (c *FakeClock) Advance(d time.Duration) {
	if d < 0 {
		return
	}

	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now

	var due []*fakeTimer
	var requeue []*fakeTimer
	for c.queue.Len() > 0 && !c.queue[0].deadline.After(target) {
		timer := heap.Pop(&c.queue).(*fakeTimer)
		due = append(due, timer)
		if timer.period > 0 {
			for !timer.deadline.After(target) {
				timer.deadline = timer.deadline.Add(timer.period)
			}
			requeue = append(requeue, timer)
		}
	}
	for _, timer := range requeue {
		heap.Push(&c.queue, timer)
	}
	c.mu.Unlock()

	for _, timer := range due {
		select {
		case timer.channel <- target:
		default:
		}
	}
}

// WaitForTimers blocks until at least n timers, tickers or sleeps are
// pending. Use it to let a goroutine reach its wait before advancing:
//
//	go func() { fakeClock.Sleep(5 * time.Second) }()
//	fakeClock.WaitForTimers(1)
//	fakeClock.Advance(5 * time.Second)
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.queue.Len() < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of pending timers, tickers and
// sleeps.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Len()
}
