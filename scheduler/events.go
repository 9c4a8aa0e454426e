package scheduler

import (
	"time"

	"github.com/rchlabs/rch/rchapi"
)

// Event is one entry in a BuildRequest's event stream. Events for a single
// BuildRequest are published to every subscriber in strict status order; a
// subscriber whose buffer is full misses that event (see
// subscriberSet.publish). Events across distinct BuildRequests carry no
// ordering guarantee.
type Event struct {
	BuildRequestID string             `json:"build_request_id"`
	Status         rchapi.BuildStatus `json:"status"`
	WorkerID       string             `json:"worker_id,omitempty"`
	Detail         string             `json:"detail,omitempty"`
	Reason         rchapi.Reason      `json:"reason,omitempty"`
	At             time.Time          `json:"at"`
}

func terminal(status rchapi.BuildStatus) bool {
	switch status {
	case rchapi.Completed, rchapi.Failed, rchapi.Cancelled:
		return true
	default:
		return false
	}
}

// subscriberSet fans one BuildRequest's events out to every attached
// subscriber (the original requester plus any fingerprint-deduped
// attachers), each on its own buffered channel so one slow reader never
// blocks another.
type subscriberSet struct {
	chans []chan Event
}

func (s *subscriberSet) attach() <-chan Event {
	ch := make(chan Event, 32)
	s.chans = append(s.chans, ch)
	return ch
}

func (s *subscriberSet) publish(ev Event) {
	for _, ch := range s.chans {
		select {
		case ch <- ev:
		default:
			// A stalled subscriber must never block the others or the
			// build's own progress; it simply misses this event.
		}
	}
}

func (s *subscriberSet) closeAll() {
	for _, ch := range s.chans {
		close(ch)
	}
}
