package relay

import "time"

// DefaultMaxDuration applies to both roleplay and lesson sessions.
const DefaultMaxDuration = 5 * time.Minute

// Lifecycle tracks a session's wall-clock deadline and its ended flag. It is
// owned by the session loop and is not safe for concurrent use.
type Lifecycle struct {
	start       time.Time
	maxDuration time.Duration
	now         func() time.Time

	ended bool
	timer *time.Timer
}

// NewLifecycle starts the clock at now().
func NewLifecycle(maxDuration time.Duration, now func() time.Time) *Lifecycle {
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDuration
	}
	if now == nil {
		now = time.Now
	}
	return &Lifecycle{start: now(), maxDuration: maxDuration, now: now}
}

func (l *Lifecycle) Start() time.Time { return l.start }

func (l *Lifecycle) MaxDuration() time.Duration { return l.maxDuration }

// Elapsed is the time since start, capped at the maximum duration.
func (l *Lifecycle) Elapsed() time.Duration {
	d := l.now().Sub(l.start)
	if d < 0 {
		return 0
	}
	return min(d, l.maxDuration)
}

// Expired reports whether the deadline has passed. Activity never extends it.
func (l *Lifecycle) Expired() bool {
	return l.now().Sub(l.start) >= l.maxDuration
}

// Arm schedules fire at the deadline. Re-arming replaces the previous timer.
func (l *Lifecycle) Arm(fire func()) {
	l.Disarm()
	remaining := l.maxDuration - l.now().Sub(l.start)
	if remaining < 0 {
		remaining = 0
	}
	l.timer = time.AfterFunc(remaining, fire)
}

func (l *Lifecycle) Disarm() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

// TryEnd sets the ended flag and reports whether this call was the one that set it.
func (l *Lifecycle) TryEnd() bool {
	if l.ended {
		return false
	}
	l.ended = true
	return true
}

func (l *Lifecycle) Ended() bool { return l.ended }
