// Package session implements the restoration workflow for one photo as an
// explicit finite-state machine.
//
// Transition is a pure function over State and Event. Session applies events
// under a mutex and performs the single side effect, the remote restoration
// call, at the boundary. Completions carry the attempt number they belong to;
// Transition drops any completion whose attempt is no longer current, so a
// slow response can never overwrite a reset or a newer attempt.
package session

import (
	"github.com/fpang/photo-restore/internal/chat"
	"github.com/fpang/photo-restore/internal/filehandler"
)

// Status is the tag of the State union.
type Status int

const (
	StatusIdle Status = iota
	StatusHasImage
	StatusProcessing
	StatusSuccess
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusHasImage:
		return "has_image"
	case StatusProcessing:
		return "processing"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result pairs the photo that was sent with the restored image. Both are
// always present.
type Result struct {
	Original filehandler.SourceImage
	Restored filehandler.SourceImage
}

// State is a snapshot of a session.
//
//   - Image is set in HasImage, Processing, Success and Failed.
//   - Result is set only in Success.
//   - Error is set only in Failed; ErrorKind classifies it.
//
// Attempt identifies the most recent restoration attempt and only grows.
// Version counts applied transitions.
type State struct {
	Status    Status
	Image     *filehandler.SourceImage
	Result    *Result
	Error     string
	ErrorKind chat.ErrorKind
	Attempt   uint64
	Version   uint64
}

// Event is an input to Transition.
type Event interface {
	isEvent()
}

// Acquired delivers a validated photo.
type Acquired struct {
	Image filehandler.SourceImage
}

// Started requests a restoration of the held photo.
type Started struct{}

// Succeeded reports a restored image for an attempt.
type Succeeded struct {
	Attempt  uint64
	Restored filehandler.SourceImage
}

// Failed reports a failed attempt with a user-facing message.
type Failed struct {
	Attempt uint64
	Kind    chat.ErrorKind
	Message string
}

// ResetRequested discards the photo and any outcome.
type ResetRequested struct{}

func (Acquired) isEvent()       {}
func (Started) isEvent()        {}
func (Succeeded) isEvent()      {}
func (Failed) isEvent()         {}
func (ResetRequested) isEvent() {}

// Transition returns the state that follows s on ev, and whether anything
// changed. It never mutates s. Events that do not apply in the current state
// (Start while Processing, Reset while Idle, completions for a stale attempt)
// return s unchanged.
func Transition(s State, ev Event) (State, bool) {
	switch e := ev.(type) {
	case Acquired:
		if s.Status == StatusProcessing || e.Image.Empty() {
			return s, false
		}
		img := e.Image
		return State{
			Status:  StatusHasImage,
			Image:   &img,
			Attempt: s.Attempt,
			Version: s.Version + 1,
		}, true

	case Started:
		if s.Status != StatusHasImage && s.Status != StatusFailed {
			return s, false
		}
		return State{
			Status:  StatusProcessing,
			Image:   s.Image,
			Attempt: s.Attempt + 1,
			Version: s.Version + 1,
		}, true

	case Succeeded:
		if !s.current(e.Attempt) {
			return s, false
		}
		if e.Restored.Empty() {
			return s.failed(chat.ErrEmptyResult, msgNoImage), true
		}
		return State{
			Status:  StatusSuccess,
			Image:   s.Image,
			Result:  &Result{Original: *s.Image, Restored: e.Restored},
			Attempt: s.Attempt,
			Version: s.Version + 1,
		}, true

	case Failed:
		if !s.current(e.Attempt) {
			return s, false
		}
		msg := e.Message
		if msg == "" {
			msg = msgGeneric
		}
		return s.failed(e.Kind, msg), true

	case ResetRequested:
		if s.Status == StatusIdle {
			return s, false
		}
		return State{
			Status:  StatusIdle,
			Attempt: s.Attempt,
			Version: s.Version + 1,
		}, true
	}

	return s, false
}

// current reports whether a completion for attempt applies to s.
func (s State) current(attempt uint64) bool {
	return s.Status == StatusProcessing && attempt == s.Attempt && s.Image != nil
}

func (s State) failed(kind chat.ErrorKind, msg string) State {
	return State{
		Status:    StatusFailed,
		Image:     s.Image,
		Error:     msg,
		ErrorKind: kind,
		Attempt:   s.Attempt,
		Version:   s.Version + 1,
	}
}

// HasImage reports whether the state holds a photo.
func (s State) HasImage() bool {
	return s.Image != nil
}
