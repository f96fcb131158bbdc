package main

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-restore/internal/cli"
	"github.com/fpang/photo-restore/internal/config"
	"github.com/fpang/photo-restore/internal/filehandler"
	"github.com/fpang/photo-restore/internal/session"
	"github.com/fpang/photo-restore/internal/store"
)

// archiver persists successful restorations. *store.Archive implements it.
type archiver interface {
	Save(ctx context.Context, sessionID string, attempt uint64, original, restored filehandler.SourceImage) (*store.Restoration, error)
	Find(ctx context.Context, sessionID string, attempt uint64) (*store.Restoration, error)
	Latest(ctx context.Context, sessionID string) (*store.Restoration, error)
	DownloadURL(ctx context.Context, rec *store.Restoration) (string, error)
}

// picker opens a native file dialog and returns the chosen path.
type picker func() (string, error)

// server holds the state shared by the HTTP handlers.
type server struct {
	sessions  *session.Manager
	model     string
	maxUpload int64
	pick      picker
	archive   archiver

	archiveMu sync.Mutex
	archived  map[string]*store.Restoration // session ID -> latest archived attempt
	archiving sync.WaitGroup
}

// restorer is what the server needs from the restoration client.
type restorer interface {
	session.Restorer
	Model() string
}

func newServer(client restorer, instruction string, cfg *config.Config) *server {
	s := &server{
		model:     client.Model(),
		maxUpload: cfg.MaxUploadBytes(),
		pick:      cli.SelectPhoto,
		archived:  make(map[string]*store.Restoration),
	}
	s.sessions = session.NewManager(client, instruction, s.observerFor, cfg.SessionTTL)
	return s
}

// observerFor logs every transition of a session and archives successes.
// It runs under the session lock, so archiving happens on its own goroutine.
func (s *server) observerFor(id string) session.Observer {
	return func(st session.State) {
		log.Debug().
			Str("session", id).
			Str("status", st.Status.String()).
			Uint64("version", st.Version).
			Msg("Session state changed")

		if st.Status == session.StatusSuccess && s.archive != nil {
			s.archiving.Add(1)
			go s.archiveResult(id, st.Attempt, *st.Result)
		}
	}
}

func (s *server) archiveResult(id string, attempt uint64, result session.Result) {
	defer s.archiving.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rec, err := s.archive.Save(ctx, id, attempt, result.Original, result.Restored)
	if err != nil {
		log.Error().Err(err).Str("session", id).Uint64("attempt", attempt).Msg("Failed to archive restoration")
		return
	}

	s.remember(rec)
}

// remember caches rec unless a newer attempt of its session is cached.
func (s *server) remember(rec *store.Restoration) {
	s.archiveMu.Lock()
	defer s.archiveMu.Unlock()
	if prev, ok := s.archived[rec.SessionID]; !ok || prev.Attempt < rec.Attempt {
		s.archived[rec.SessionID] = rec
	}
}

// lookupArchived returns the archive record for an attempt, asking the
// archive itself when the cache misses.
func (s *server) lookupArchived(ctx context.Context, id string, attempt uint64) (*store.Restoration, error) {
	if rec := s.archivedFor(id, attempt); rec != nil {
		return rec, nil
	}
	rec, err := s.archive.Find(ctx, id, attempt)
	if err != nil || rec == nil {
		return nil, err
	}
	s.remember(rec)
	return rec, nil
}

// archivedFor returns the archive record for the given attempt, if any.
func (s *server) archivedFor(id string, attempt uint64) *store.Restoration {
	s.archiveMu.Lock()
	defer s.archiveMu.Unlock()
	if rec, ok := s.archived[id]; ok && rec.Attempt == attempt {
		return rec
	}
	return nil
}

func (s *server) forget(id string) {
	s.archiveMu.Lock()
	delete(s.archived, id)
	s.archiveMu.Unlock()
}

// pruneArchived drops archive records of sessions that no longer exist.
func (s *server) pruneArchived() {
	s.archiveMu.Lock()
	defer s.archiveMu.Unlock()
	for id := range s.archived {
		if _, ok := s.sessions.Get(id); !ok {
			delete(s.archived, id)
		}
	}
}

// sweepLoop drops idle sessions every interval until ctx is done.
func (s *server) sweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if s.sessions.Sweep(now) > 0 {
				s.pruneArchived()
			}
		}
	}
}
