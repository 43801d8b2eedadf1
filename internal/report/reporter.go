// Package report defines the progress observer shared by sync, grading and
// task runs. Reporting is optional: a nil Reporter is replaced with Nop.
package report

import (
	"time"
)

// Reporter receives lifecycle callbacks from long-running operations
type Reporter interface {
	OnStart(op string, attrs map[string]any)
	OnProgress(op string, message string, current int, total int)
	OnComplete(op string, attrs map[string]any)
	OnError(op string, err error)
}

// Kind identifies the callback an Event came from
type Kind string

const (
	KindStart    Kind = "start"
	KindProgress Kind = "progress"
	KindComplete Kind = "complete"
	KindError    Kind = "error"
)

// Event is a serializable form of a Reporter callback
type Event struct {
	RunID     string         `json:"run_id,omitempty"`
	Op        string         `json:"op"`
	Kind      Kind           `json:"kind"`
	Message   string         `json:"message,omitempty"`
	Current   int            `json:"current,omitempty"`
	Total     int            `json:"total,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Or returns r, or Nop when r is nil
func Or(r Reporter) Reporter {
	if r == nil {
		return Nop{}
	}
	return r
}

// Nop discards every callback
type Nop struct{}

func (Nop) OnStart(string, map[string]any) {}
func (Nop) OnProgress(string, string, int, int) {}
func (Nop) OnComplete(string, map[string]any) {}
func (Nop) OnError(string, error) {}

// Multi fans callbacks out to several reporters in order
type Multi []Reporter

// NewMulti builds a Multi, dropping nil reporters
func NewMulti(reporters ...Reporter) Multi {
	m := make(Multi, 0, len(reporters))
	for _, r := range reporters {
		if r != nil {
			m = append(m, r)
		}
	}
	return m
}

func (m Multi) OnStart(op string, attrs map[string]any) {
	for _, r := range m {
		r.OnStart(op, attrs)
	}
}

func (m Multi) OnProgress(op string, message string, current int, total int) {
	for _, r := range m {
		r.OnProgress(op, message, current, total)
	}
}

func (m Multi) OnComplete(op string, attrs map[string]any) {
	for _, r := range m {
		r.OnComplete(op, attrs)
	}
}

func (m Multi) OnError(op string, err error) {
	for _, r := range m {
		r.OnError(op, err)
	}
}

// Sink turns callbacks into Events and hands them to a function.
// RunID, when set, is stamped on every event.
type Sink struct {
	RunID string
	Emit  func(Event)
	now   func() time.Time
}

// NewSink creates a Sink for the given run
func NewSink(runID string, emit func(Event)) *Sink {
	return &Sink{RunID: runID, Emit: emit, now: time.Now}
}

func (s *Sink) emit(e Event) {
	e.RunID = s.RunID
	if s.now != nil {
		e.Timestamp = s.now().UTC()
	} else {
		e.Timestamp = time.Now().UTC()
	}
	s.Emit(e)
}

func (s *Sink) OnStart(op string, attrs map[string]any) {
	s.emit(Event{Op: op, Kind: KindStart, Attrs: attrs})
}

func (s *Sink) OnProgress(op string, message string, current int, total int) {
	s.emit(Event{Op: op, Kind: KindProgress, Message: message, Current: current, Total: total})
}

func (s *Sink) OnComplete(op string, attrs map[string]any) {
	s.emit(Event{Op: op, Kind: KindComplete, Attrs: attrs})
}

func (s *Sink) OnError(op string, err error) {
	e := Event{Op: op, Kind: KindError}
	if err != nil {
		e.Error = err.Error()
	}
	s.emit(e)
}
