package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fpang/photo-restore/internal/chat"
	"github.com/fpang/photo-restore/internal/filehandler"
	"github.com/rs/zerolog/log"
)

const (
	msgNoImage = "No image data returned from the model."
	msgGeneric = "Something went wrong during the restoration process. Please try again."
)

// ErrBusy is returned when a new photo is offered while a restoration is running.
var ErrBusy = errors.New("a restoration is already in progress")

// Restorer performs one remote restoration call.
type Restorer interface {
	Restore(ctx context.Context, img filehandler.SourceImage, instruction string) ([]byte, error)
}

// Observer receives every state the session moves to, in order. It is
// called with the session lock held and must not call back into the Session.
type Observer func(State)

// Session owns one photo and the outcome of its latest restoration attempt.
// At most one attempt is in flight at a time.
type Session struct {
	id          string
	restorer    Restorer
	instruction string
	observer    Observer

	mu       sync.Mutex
	state    State
	cancel   context.CancelFunc
	lastUsed time.Time

	inflight sync.WaitGroup
	group    *sync.WaitGroup // shared with the owning Manager, may be nil
}

// New creates an idle session. observer may be nil.
func New(id string, restorer Restorer, instruction string, observer Observer) *Session {
	return &Session{
		id:          id,
		restorer:    restorer,
		instruction: instruction,
		observer:    observer,
		lastUsed:    time.Now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AcquireImage validates an upload and makes it the session's photo,
// discarding any previous result or error. Invalid uploads return a
// *filehandler.ValidationError and leave the state untouched.
func (s *Session) AcquireImage(data []byte, mediaType string) error {
	img, err := filehandler.Acquire(data, mediaType)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()

	if s.state.Status == StatusProcessing {
		return ErrBusy
	}
	s.apply(Acquired{Image: img})

	log.Info().
		Str("session", s.id).
		Str("mime_type", img.MIMEType).
		Int("size_bytes", len(img.Data)).
		Msg("Photo acquired")
	return nil
}

// StartRestoration launches a restoration of the held photo. It returns false
// and does nothing when there is no photo or an attempt is already running.
func (s *Session) StartRestoration() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()

	if !s.apply(Started{}) {
		log.Debug().
			Str("session", s.id).
			Str("status", s.state.Status.String()).
			Msg("Ignoring restoration request")
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	attempt := s.state.Attempt
	img := *s.state.Image

	log.Info().
		Str("session", s.id).
		Uint64("attempt", attempt).
		Msg("Restoration started")

	s.inflight.Add(1)
	if s.group != nil {
		s.group.Add(1)
	}
	go s.run(ctx, attempt, img)
	return true
}

// Reset discards the photo and any outcome, returning to Idle. An in-flight
// attempt is cancelled and its result dropped when it arrives.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.apply(ResetRequested{}) {
		log.Info().Str("session", s.id).Msg("Session reset")
	}
}

// Wait blocks until no restoration goroutine is running.
func (s *Session) Wait() {
	s.inflight.Wait()
}

// IdleSince returns the time of the last call that touched the session.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// run performs the remote call outside the lock and feeds the outcome back
// as an event tagged with its attempt.
func (s *Session) run(ctx context.Context, attempt uint64, img filehandler.SourceImage) {
	defer s.inflight.Done()
	if s.group != nil {
		defer s.group.Done()
	}

	data, err := s.restorer.Restore(ctx, img, s.instruction)

	var ev Event
	if err != nil {
		ev = Failed{Attempt: attempt, Kind: failureKind(err), Message: failureMessage(err)}
	} else {
		ev = Succeeded{Attempt: attempt, Restored: filehandler.SourceImage{Data: data, MIMEType: filehandler.CanonicalMIMEType}}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.apply(ev) {
		log.Debug().
			Str("session", s.id).
			Uint64("attempt", attempt).
			Uint64("current_attempt", s.state.Attempt).
			Msg("Discarding stale restoration result")
		return
	}

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	log.Info().
		Str("session", s.id).
		Uint64("attempt", attempt).
		Str("status", s.state.Status.String()).
		Msg("Restoration finished")
}

// apply runs Transition and notifies the observer on change. Callers hold s.mu.
func (s *Session) apply(ev Event) bool {
	next, changed := Transition(s.state, ev)
	if !changed {
		return false
	}
	s.state = next
	if s.observer != nil {
		s.observer(next)
	}
	return true
}

// failureKind classifies a restoration error. Errors that did not come from
// the restoration client count as transport failures.
func failureKind(err error) chat.ErrorKind {
	var restoreErr *chat.Error
	if errors.As(err, &restoreErr) {
		return restoreErr.Kind
	}
	return chat.ErrTransport
}

// failureMessage extracts the user-facing text from a restoration error.
func failureMessage(err error) string {
	var restoreErr *chat.Error
	if errors.As(err, &restoreErr) && restoreErr.Message != "" {
		return restoreErr.Message
	}
	if err.Error() != "" {
		return err.Error()
	}
	return msgGeneric
}
