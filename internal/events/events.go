package events

import "time"

type Type string

const (
	QueueStarted      Type = "queue_started"
	QueueLeft         Type = "queue_left"
	QueueCancelled    Type = "queue_cancelled"
	ReadyCheckStarted Type = "ready_check_started"
	ReadyCheckTick    Type = "ready_check_tick"
	ReadyCheckExpired Type = "ready_check_expired"
	MatchFound        Type = "match_found"
	PollFailed        Type = "poll_failed"
	VetoActionApplied Type = "veto_action_applied"
	VetoCompleted     Type = "veto_completed"

	// Pushed by the queue service.
	ExternalMatched   Type = "external_matched"
	ExternalCancelled Type = "external_cancelled"
)

// Event is what the core hands to the host layer. Key scopes the event: a
// player id for coordinator events, a room code for veto events.
type Event struct {
	Type    Type      `json:"type"`
	Key     string    `json:"key"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

type Publisher interface {
	Publish(Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Event)

func (f PublisherFunc) Publish(e Event) { f(e) }

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(Event) {})

type tee []Publisher

// Tee publishes each event to every publisher in order.
func Tee(pubs ...Publisher) Publisher {
	return tee(pubs)
}

func (t tee) Publish(e Event) {
	for _, p := range t {
		if p != nil {
			p.Publish(e)
		}
	}
}
