// Package event carries test lifecycle transitions and request outcomes from
// the load-test driver to the components observing a test.
//
// The set of events is closed: a test state change, a request being issued,
// a response being received and the terminal request/response pair. Each
// kind has its own listener interface; a subscriber implements the ones it
// cares about.
package event

import (
	"sync"

	"github.com/wesleyorama2/surge/internal/request"
)

// Kind identifies an event.
type Kind int

const (
	KindTestState Kind = iota
	KindRequestIssued
	KindResponseReceived
	KindRequestResponse
)

func (k Kind) String() string {
	switch k {
	case KindTestState:
		return "test-state"
	case KindRequestIssued:
		return "request-issued"
	case KindResponseReceived:
		return "response-received"
	case KindRequestResponse:
		return "request-response"
	default:
		return "unknown"
	}
}

// State is a load-test lifecycle state.
type State int

const (
	StateNew State = iota
	StateRunning
	StateStopping
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StateListener is notified of test state transitions.
type StateListener interface {
	OnTestState(State)
}

// RequestListener is notified when a request has been handed to the client.
type RequestListener interface {
	OnRequest(*request.Request)
}

// ResponseListener is notified when a response, real or synthesised, is
// available.
type ResponseListener interface {
	OnResponse(*request.Response)
}

// PairListener is notified exactly once per issued request.
type PairListener interface {
	OnRequestResponse(*request.Request, *request.Response)
}

// Bus delivers events synchronously to its subscribers, in subscription
// order. Listeners are called from the publishing goroutine and must not
// block for long.
type Bus struct {
	mu        sync.RWMutex
	states    []StateListener
	requests  []RequestListener
	responses []ResponseListener
	pairs     []PairListener
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers s for every listener interface it implements and
// returns the kinds it was registered for.
func (b *Bus) Subscribe(s any) []Kind {
	b.mu.Lock()
	defer b.mu.Unlock()

	var kinds []Kind
	if l, ok := s.(StateListener); ok {
		b.states = append(b.states, l)
		kinds = append(kinds, KindTestState)
	}
	if l, ok := s.(RequestListener); ok {
		b.requests = append(b.requests, l)
		kinds = append(kinds, KindRequestIssued)
	}
	if l, ok := s.(ResponseListener); ok {
		b.responses = append(b.responses, l)
		kinds = append(kinds, KindResponseReceived)
	}
	if l, ok := s.(PairListener); ok {
		b.pairs = append(b.pairs, l)
		kinds = append(kinds, KindRequestResponse)
	}
	return kinds
}

// PublishState delivers a state transition.
func (b *Bus) PublishState(s State) {
	b.mu.RLock()
	ls := b.states
	b.mu.RUnlock()

	for _, l := range ls {
		l.OnTestState(s)
	}
}

// PublishRequest delivers an issued request.
func (b *Bus) PublishRequest(req *request.Request) {
	b.mu.RLock()
	ls := b.requests
	b.mu.RUnlock()

	for _, l := range ls {
		l.OnRequest(req)
	}
}

// PublishResponse delivers a response.
func (b *Bus) PublishResponse(resp *request.Response) {
	b.mu.RLock()
	ls := b.responses
	b.mu.RUnlock()

	for _, l := range ls {
		l.OnResponse(resp)
	}
}

// PublishPair delivers the terminal event of a request.
func (b *Bus) PublishPair(req *request.Request, resp *request.Response) {
	b.mu.RLock()
	ls := b.pairs
	b.mu.RUnlock()

	for _, l := range ls {
		l.OnRequestResponse(req, resp)
	}
}
