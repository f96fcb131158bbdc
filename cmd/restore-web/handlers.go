package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-restore/internal/filehandler"
	"github.com/fpang/photo-restore/internal/httputil"
	"github.com/fpang/photo-restore/internal/session"
)

const sessionsPrefix = "/api/sessions/"

func (s *server) routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/sessions", s.handleCreateSession)
	mux.HandleFunc(sessionsPrefix, s.handleSessionRoutes)
}

// stateView is the JSON shape of a session snapshot.
type stateView struct {
	ID             string                     `json:"id"`
	Status         string                     `json:"status"`
	MIMEType       string                     `json:"mimeType,omitempty"`
	Width          int                        `json:"width,omitempty"`
	Height         int                        `json:"height,omitempty"`
	RestoredWidth  int                        `json:"restoredWidth,omitempty"`
	RestoredHeight int                        `json:"restoredHeight,omitempty"`
	Error          string                     `json:"error,omitempty"`
	ErrorKind      string                     `json:"errorKind,omitempty"`
	Attempt        uint64                     `json:"attempt"`
	Version        uint64                     `json:"version"`
	HasResult      bool                       `json:"hasResult"`
	Metadata       *filehandler.ImageMetadata `json:"metadata,omitempty"`
	ArchiveURL     string                     `json:"archiveUrl,omitempty"`
}

func (s *server) view(r *http.Request, sess *session.Session) stateView {
	st := sess.State()
	v := stateView{
		ID:        sess.ID(),
		Status:    st.Status.String(),
		Error:     st.Error,
		Attempt:   st.Attempt,
		Version:   st.Version,
		HasResult: st.Result != nil,
	}
	if st.Status == session.StatusFailed {
		v.ErrorKind = st.ErrorKind.String()
	}
	if st.Image != nil {
		v.MIMEType = st.Image.MIMEType
		v.Width, v.Height, _ = filehandler.Dimensions(*st.Image)
		if md, err := filehandler.ExtractImageMetadata(*st.Image); err == nil {
			v.Metadata = md
		}
	}
	if st.Result != nil {
		v.RestoredWidth, v.RestoredHeight, _ = filehandler.Dimensions(st.Result.Restored)
	}
	if st.Result != nil && s.archive != nil {
		rec, err := s.lookupArchived(r.Context(), sess.ID(), st.Attempt)
		if err != nil {
			log.Warn().Err(err).Str("session", sess.ID()).Msg("Failed to look up archived restoration")
		}
		if rec != nil {
			if url, err := s.archive.DownloadURL(r.Context(), rec); err != nil {
				log.Warn().Err(err).Str("session", sess.ID()).Msg("Failed to presign archive URL")
			} else {
				v.ArchiveURL = url
			}
		}
	}
	return v
}

// GET /api/health
func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"model":    s.model,
		"sessions": s.sessions.Len(),
		"archive":  s.archive != nil,
	})
}

// POST /api/sessions
func (s *server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sess := s.sessions.Create()
	httputil.RespondJSON(w, http.StatusCreated, map[string]string{"id": sess.ID()})
}

// /api/sessions/{id}[/{action}]
func (s *server) handleSessionRoutes(w http.ResponseWriter, r *http.Request) {
	id, action, ok := httputil.ParseSessionRoute(r.URL.Path, sessionsPrefix)
	if !ok {
		httputil.Error(w, http.StatusNotFound, "not found")
		return
	}
	sess, found := s.sessions.Get(id)
	if !found {
		httputil.Error(w, http.StatusNotFound, "session not found")
		return
	}

	type route struct {
		method  string
		handler func(http.ResponseWriter, *http.Request, *session.Session)
	}
	routes := map[string]route{
		"":         {http.MethodGet, s.handleGetSession},
		"image":    {http.MethodPost, s.handleUpload},
		"pick":     {http.MethodPost, s.handlePick},
		"restore":  {http.MethodPost, s.handleRestore},
		"reset":    {http.MethodPost, s.handleReset},
		"original": {http.MethodGet, s.handleOriginal},
		"restored": {http.MethodGet, s.handleRestored},
		"download": {http.MethodGet, s.handleDownload},
		"bundle":   {http.MethodGet, s.handleBundle},
		"archive":  {http.MethodGet, s.handleArchive},
	}

	if action == "" && r.Method == http.MethodDelete {
		s.sessions.Delete(id)
		s.forget(id)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	rt, known := routes[action]
	if !known {
		httputil.Error(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != rt.method {
		httputil.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rt.handler(w, r, sess)
}

// GET /api/sessions/{id}
func (s *server) handleGetSession(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	httputil.RespondJSON(w, http.StatusOK, s.view(r, sess))
}

// POST /api/sessions/{id}/image (multipart field "file")
func (s *server) handleUpload(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.Error(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("The photo is larger than %d MB.", s.maxUpload>>20))
			return
		}
		httputil.Error(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	log.Debug().
		Str("session", sess.ID()).
		Str("filename", header.Filename).
		Int64("size", header.Size).
		Msg("Photo uploaded")

	s.acquire(w, r, sess, data, header.Header.Get("Content-Type"))
}

// POST /api/sessions/{id}/pick
// Opens a native file dialog on the machine running the server.
func (s *server) handlePick(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	path, err := s.pick()
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"canceled": true})
			return
		}
		log.Error().Err(err).Msg("File picker failed")
		httputil.Error(w, http.StatusInternalServerError, "file picker failed")
		return
	}

	img, err := filehandler.LoadSourceImage(path)
	if err != nil {
		s.acquireError(w, err)
		return
	}
	s.acquire(w, r, sess, img.Data, img.MIMEType)
}

func (s *server) acquire(w http.ResponseWriter, r *http.Request, sess *session.Session, data []byte, mediaType string) {
	if err := sess.AcquireImage(data, mediaType); err != nil {
		s.acquireError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, s.view(r, sess))
}

func (s *server) acquireError(w http.ResponseWriter, err error) {
	var verr *filehandler.ValidationError
	switch {
	case errors.As(err, &verr):
		httputil.Error(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, session.ErrBusy):
		httputil.Error(w, http.StatusConflict, err.Error())
	default:
		httputil.Error(w, http.StatusBadRequest, err.Error())
	}
}

// POST /api/sessions/{id}/restore
func (s *server) handleRestore(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	started := sess.StartRestoration()
	httputil.RespondJSON(w, http.StatusAccepted, map[string]bool{"started": started})
}

// POST /api/sessions/{id}/reset
func (s *server) handleReset(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	sess.Reset()
	httputil.RespondJSON(w, http.StatusOK, s.view(r, sess))
}

// GET /api/sessions/{id}/original[?preview=1]
func (s *server) handleOriginal(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	st := sess.State()
	if st.Image == nil {
		httputil.Error(w, http.StatusNotFound, "no photo")
		return
	}
	s.serveImage(w, r, *st.Image)
}

// GET /api/sessions/{id}/restored[?preview=1]
func (s *server) handleRestored(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	st := sess.State()
	if st.Result == nil {
		httputil.Error(w, http.StatusNotFound, "no restored image")
		return
	}
	s.serveImage(w, r, st.Result.Restored)
}

func (s *server) serveImage(w http.ResponseWriter, r *http.Request, img filehandler.SourceImage) {
	if r.URL.Query().Get("preview") != "" {
		prev, err := filehandler.Preview(img, filehandler.DefaultPreviewMaxDimension)
		if err != nil {
			log.Warn().Err(err).Msg("Preview failed; serving full image")
		} else {
			img = prev
		}
	}
	w.Header().Set("Content-Type", img.MIMEType)
	w.Header().Set("Cache-Control", "no-store")
	w.Write(img.Data)
}

// GET /api/sessions/{id}/download?format=png|jpeg|webp
func (s *server) handleDownload(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	st := sess.State()
	if st.Result == nil {
		httputil.Error(w, http.StatusNotFound, "no restored image")
		return
	}
	format, err := filehandler.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := filehandler.Export(st.Result.Restored, format)
	if err != nil {
		log.Error().Err(err).Str("format", string(format)).Msg("Export failed")
		httputil.Error(w, http.StatusInternalServerError, "failed to export image")
		return
	}

	filename := fmt.Sprintf("restored-image-%d.%s", time.Now().UnixMilli(), format.Extension())
	w.Header().Set("Content-Type", format.MIMEType())
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Write(data)
}

// GET /api/sessions/{id}/bundle
func (s *server) handleBundle(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	st := sess.State()
	if st.Result == nil {
		httputil.Error(w, http.StatusNotFound, "no restored image")
		return
	}
	data, err := filehandler.Bundle(st.Result.Original, st.Result.Restored)
	if err != nil {
		log.Error().Err(err).Msg("Bundle failed")
		httputil.Error(w, http.StatusInternalServerError, "failed to build bundle")
		return
	}

	filename := fmt.Sprintf("restoration-%d.zip", time.Now().UnixMilli())
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Write(data)
}

// GET /api/sessions/{id}/archive
// Returns the newest archived attempt of the session, which survives a reset.
func (s *server) handleArchive(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if s.archive == nil {
		httputil.Error(w, http.StatusNotFound, "archive not configured")
		return
	}
	rec, err := s.archive.Latest(r.Context(), sess.ID())
	if err != nil {
		log.Error().Err(err).Str("session", sess.ID()).Msg("Failed to read archive")
		httputil.Error(w, http.StatusBadGateway, "failed to read archive")
		return
	}
	if rec == nil {
		httputil.Error(w, http.StatusNotFound, "nothing archived")
		return
	}
	url, err := s.archive.DownloadURL(r.Context(), rec)
	if err != nil {
		log.Error().Err(err).Str("session", sess.ID()).Msg("Failed to presign archive URL")
		httputil.Error(w, http.StatusBadGateway, "failed to presign archive URL")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"attempt":   rec.Attempt,
		"createdAt": rec.CreatedAt,
		"model":     rec.Model,
		"url":       url,
	})
}
