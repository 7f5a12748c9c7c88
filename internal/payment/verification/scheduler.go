package verification

import "time"

// scheduler owns both cadences of a session so stopping it tears down the countdown
// and the next poll together.
type scheduler struct {
	countdown *time.Ticker
	poll      *time.Timer
}

func newScheduler(tick, firstPoll time.Duration) *scheduler {
	return &scheduler{
		countdown: time.NewTicker(tick),
		poll:      time.NewTimer(firstPoll),
	}
}

func (s *scheduler) ticks() <-chan time.Time {
	return s.countdown.C
}

func (s *scheduler) polls() <-chan time.Time {
	return s.poll.C
}

func (s *scheduler) schedulePoll(after time.Duration) {
	s.poll.Reset(after)
}

func (s *scheduler) stop() {
	s.countdown.Stop()
	s.poll.Stop()
}
