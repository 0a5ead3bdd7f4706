// Package sched provides cancellable one-shot timers driven by an explicit
// clock. Nothing fires on its own: the owner calls RunDue with the current
// time, which keeps all callbacks on the owner's goroutine.
package sched

import (
	"container/heap"
	"time"
)

// Handle identifies a scheduled task. The zero Handle is never issued.
type Handle uint64

type task struct {
	id       Handle
	deadline time.Time
	seq      uint64
	fn       func(time.Time)
	index    int
}

type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Scheduler is a min-heap of deadlines. It is not safe for concurrent use.
type Scheduler struct {
	tasks taskHeap
	live  map[Handle]*task
	next  Handle
	seq   uint64
}

// New returns an empty scheduler.
func New() *Scheduler {
	return &Scheduler{live: make(map[Handle]*task)}
}

// After schedules fn to run once d has elapsed from now. Negative durations
// are treated as zero. Tasks with equal deadlines run in scheduling order.
func (s *Scheduler) After(now time.Time, d time.Duration, fn func(time.Time)) Handle {
	if d < 0 {
		d = 0
	}
	s.next++
	s.seq++
	t := &task{
		id:       s.next,
		deadline: now.Add(d),
		seq:      s.seq,
		fn:       fn,
	}
	heap.Push(&s.tasks, t)
	s.live[t.id] = t
	return t.id
}

// Cancel removes a pending task. It reports false if the task already ran
// or was cancelled.
func (s *Scheduler) Cancel(h Handle) bool {
	t, ok := s.live[h]
	if !ok {
		return false
	}
	delete(s.live, h)
	heap.Remove(&s.tasks, t.index)
	return true
}

// CancelAll removes every pending task and returns how many were removed.
func (s *Scheduler) CancelAll() int {
	n := len(s.tasks)
	s.tasks = nil
	s.live = make(map[Handle]*task)
	return n
}

// Pending returns the number of scheduled tasks.
func (s *Scheduler) Pending() int {
	return len(s.tasks)
}

// Scheduled reports whether h is still pending.
func (s *Scheduler) Scheduled(h Handle) bool {
	_, ok := s.live[h]
	return ok
}

// Next returns the earliest deadline.
func (s *Scheduler) Next() (time.Time, bool) {
	if len(s.tasks) == 0 {
		return time.Time{}, false
	}
	return s.tasks[0].deadline, true
}

// RunDue runs every task whose deadline is at or before now, in deadline
// order, and returns how many ran. Tasks scheduled by a callback are run in
// the same pass if they are already due.
func (s *Scheduler) RunDue(now time.Time) int {
	ran := 0
	for len(s.tasks) > 0 {
		t := s.tasks[0]
		if t.deadline.After(now) {
			break
		}
		heap.Pop(&s.tasks)
		delete(s.live, t.id)
		t.fn(t.deadline)
		ran++
	}
	return ran
}
