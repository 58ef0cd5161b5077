package recalc

import (
	"sync"
	"time"
)

type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Job is a point-in-time view of a full recalculation. Failures are reported
// as counts only; individual opportunity errors are not retained.
type Job struct {
	ID           string     `json:"id"`
	Trigger      string     `json:"trigger"`
	State        State      `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	Duration     string     `json:"duration,omitempty"`
	RuleCount    int        `json:"rule_count"`
	Total        int        `json:"total"`
	Processed    int        `json:"processed"`
	Succeeded    int        `json:"succeeded"`
	Failed       int        `json:"failed"`
	Batches      int        `json:"batches"`
	SkippedRules int        `json:"skipped_rules"`
	FollowUp     bool       `json:"follow_up_queued"`
	Error        string     `json:"error,omitempty"`
}

// Done reports whether the job has reached a terminal state.
func (j Job) Done() bool { return j.State != StateRunning }

// run is the coordinator's mutable record of a job. All fields except stop
// are guarded by the coordinator's mutex.
type run struct {
	job      Job
	stop     chan struct{}
	stopOnce sync.Once
}

func newRun(id, trigger string, now time.Time) *run {
	return &run{
		job: Job{
			ID:        id,
			Trigger:   trigger,
			State:     StateRunning,
			StartedAt: now,
		},
		stop: make(chan struct{}),
	}
}

func (r *run) requestStop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *run) stopped() bool {
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}
