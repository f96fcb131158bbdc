package session

import (
	"testing"

	"github.com/fpang/photo-restore/internal/chat"
	"github.com/fpang/photo-restore/internal/filehandler"
)

var photo = filehandler.SourceImage{Data: []byte("photo-bytes"), MIMEType: "image/jpeg"}

func processing(attempt uint64) State {
	img := photo
	return State{Status: StatusProcessing, Image: &img, Attempt: attempt, Version: 3}
}

func TestTransitionAcquire(t *testing.T) {
	img := photo
	starts := []State{
		{},
		{Status: StatusHasImage, Image: &img},
		{Status: StatusFailed, Image: &img, Error: "boom", Attempt: 2},
		{Status: StatusSuccess, Image: &img, Result: &Result{Original: img, Restored: img}, Attempt: 4},
	}
	next := filehandler.SourceImage{Data: []byte("other"), MIMEType: "image/png"}

	for _, s := range starts {
		t.Run(s.Status.String(), func(t *testing.T) {
			got, changed := Transition(s, Acquired{Image: next})
			if !changed {
				t.Fatal("expected change")
			}
			if got.Status != StatusHasImage {
				t.Errorf("status = %v, want has_image", got.Status)
			}
			if got.Image == nil || string(got.Image.Data) != "other" {
				t.Errorf("image not replaced: %+v", got.Image)
			}
			if got.Result != nil || got.Error != "" {
				t.Errorf("stale outcome kept: result=%v error=%q", got.Result, got.Error)
			}
			if got.Attempt != s.Attempt {
				t.Errorf("attempt = %d, want %d", got.Attempt, s.Attempt)
			}
			if got.Version != s.Version+1 {
				t.Errorf("version = %d, want %d", got.Version, s.Version+1)
			}
		})
	}
}

func TestTransitionAcquireIgnored(t *testing.T) {
	s := processing(1)
	if got, changed := Transition(s, Acquired{Image: photo}); changed || got != s {
		t.Error("acquire while processing should be ignored")
	}
	if _, changed := Transition(State{}, Acquired{}); changed {
		t.Error("empty image should be ignored")
	}
}

func TestTransitionStart(t *testing.T) {
	img := photo
	tests := []struct {
		name    string
		state   State
		applies bool
	}{
		{"idle", State{}, false},
		{"has_image", State{Status: StatusHasImage, Image: &img}, true},
		{"processing", processing(1), false},
		{"success", State{Status: StatusSuccess, Image: &img, Result: &Result{}}, false},
		{"failed", State{Status: StatusFailed, Image: &img, Error: "x", Attempt: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := Transition(tt.state, Started{})
			if changed != tt.applies {
				t.Fatalf("changed = %v, want %v", changed, tt.applies)
			}
			if !tt.applies {
				if got != tt.state {
					t.Errorf("state modified on ignored start")
				}
				return
			}
			if got.Status != StatusProcessing {
				t.Errorf("status = %v, want processing", got.Status)
			}
			if got.Attempt != tt.state.Attempt+1 {
				t.Errorf("attempt = %d, want %d", got.Attempt, tt.state.Attempt+1)
			}
			if got.Error != "" {
				t.Errorf("error not cleared: %q", got.Error)
			}
			if got.Image != tt.state.Image {
				t.Error("image changed on start")
			}
		})
	}
}

func TestTransitionSucceeded(t *testing.T) {
	s := processing(2)
	restored := filehandler.SourceImage{Data: []byte("restored"), MIMEType: filehandler.CanonicalMIMEType}

	got, changed := Transition(s, Succeeded{Attempt: 2, Restored: restored})
	if !changed {
		t.Fatal("expected change")
	}
	if got.Status != StatusSuccess {
		t.Fatalf("status = %v, want success", got.Status)
	}
	if string(got.Result.Original.Data) != string(photo.Data) {
		t.Errorf("original = %q, want %q", got.Result.Original.Data, photo.Data)
	}
	if string(got.Result.Restored.Data) != "restored" {
		t.Errorf("restored = %q", got.Result.Restored.Data)
	}
}

func TestTransitionSucceededEmptyFails(t *testing.T) {
	got, changed := Transition(processing(1), Succeeded{Attempt: 1})
	if !changed {
		t.Fatal("expected change")
	}
	if got.Status != StatusFailed || got.Error != msgNoImage {
		t.Errorf("got %v %q, want failed %q", got.Status, got.Error, msgNoImage)
	}
	if got.ErrorKind != chat.ErrEmptyResult {
		t.Errorf("kind = %v, want empty_result", got.ErrorKind)
	}
	if got.Image == nil {
		t.Error("photo should be kept for retry")
	}
}

func TestTransitionFailed(t *testing.T) {
	got, _ := Transition(processing(1), Failed{Attempt: 1, Kind: chat.ErrRemote, Message: "API rate limit exceeded"})
	if got.Status != StatusFailed || got.Error != "API rate limit exceeded" {
		t.Errorf("got %v %q", got.Status, got.Error)
	}
	if got.ErrorKind != chat.ErrRemote {
		t.Errorf("kind = %v, want remote", got.ErrorKind)
	}
	if got.Result != nil {
		t.Error("result set on failure")
	}

	got, _ = Transition(processing(1), Failed{Attempt: 1})
	if got.Error != msgGeneric {
		t.Errorf("error = %q, want generic message", got.Error)
	}
}

func TestTransitionRejectsStaleCompletion(t *testing.T) {
	restored := filehandler.SourceImage{Data: []byte("late"), MIMEType: filehandler.CanonicalMIMEType}
	img := photo
	tests := []struct {
		name  string
		state State
		event Event
	}{
		{"older attempt succeeded", processing(3), Succeeded{Attempt: 2, Restored: restored}},
		{"older attempt failed", processing(3), Failed{Attempt: 2, Message: "late"}},
		{"after reset", State{Attempt: 3}, Succeeded{Attempt: 3, Restored: restored}},
		{"after new photo", State{Status: StatusHasImage, Image: &img, Attempt: 3}, Failed{Attempt: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := Transition(tt.state, tt.event)
			if changed || got != tt.state {
				t.Errorf("stale completion applied: %+v", got)
			}
		})
	}
}

func TestTransitionReset(t *testing.T) {
	img := photo
	for _, s := range []State{
		{Status: StatusHasImage, Image: &img},
		processing(5),
		{Status: StatusFailed, Image: &img, Error: "x", Attempt: 1},
		{Status: StatusSuccess, Image: &img, Result: &Result{}, Attempt: 1},
	} {
		t.Run(s.Status.String(), func(t *testing.T) {
			got, changed := Transition(s, ResetRequested{})
			if !changed {
				t.Fatal("expected change")
			}
			if got.Status != StatusIdle || got.Image != nil || got.Result != nil || got.Error != "" {
				t.Errorf("not fully reset: %+v", got)
			}
			if got.Attempt != s.Attempt {
				t.Errorf("attempt = %d, want %d", got.Attempt, s.Attempt)
			}
		})
	}

	if _, changed := Transition(State{}, ResetRequested{}); changed {
		t.Error("reset from idle should be a no-op")
	}
}

func TestTransitionDoesNotMutateInput(t *testing.T) {
	s := processing(1)
	before := s

	Transition(s, Succeeded{Attempt: 1, Restored: photo})
	Transition(s, ResetRequested{})

	if s != before || string(s.Image.Data) != string(photo.Data) {
		t.Error("Transition mutated its input")
	}
}

func TestStatusString(t *testing.T) {
	if got := Status(99).String(); got != "unknown" {
		t.Errorf("String() = %q, want unknown", got)
	}
	if got := StatusHasImage.String(); got != "has_image" {
		t.Errorf("String() = %q, want has_image", got)
	}
}
