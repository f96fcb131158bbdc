package store

import (
	"context"
	"fmt"
	"time"

	"github.com/fpang/photo-restore/internal/filehandler"
	"github.com/rs/zerolog/log"
)

// Archive saves restoration results to S3 and indexes them in a RecordStore.
type Archive struct {
	objects *Objects
	records RecordStore
	model   string
}

// NewArchive creates an Archive. model is recorded on every entry.
func NewArchive(objects *Objects, records RecordStore, model string) *Archive {
	return &Archive{objects: objects, records: records, model: model}
}

// ObjectKey returns the S3 key of one image of an attempt.
func ObjectKey(sessionID string, attempt uint64, name string) string {
	return fmt.Sprintf("%s/%d/%s", sessionID, attempt, name)
}

// Save uploads both images of a successful attempt and writes its record.
func (a *Archive) Save(ctx context.Context, sessionID string, attempt uint64, original, restored filehandler.SourceImage) (*Restoration, error) {
	start := time.Now()
	rec := &Restoration{
		SessionID:   sessionID,
		Attempt:     attempt,
		OriginalKey: ObjectKey(sessionID, attempt, "original"+original.Extension()),
		RestoredKey: ObjectKey(sessionID, attempt, "restored"+restored.Extension()),
		MIMEType:    restored.MIMEType,
		Model:       a.model,
	}

	if err := a.objects.Put(ctx, rec.OriginalKey, original.Data, original.MIMEType); err != nil {
		return nil, fmt.Errorf("archive original: %w", err)
	}
	if err := a.objects.Put(ctx, rec.RestoredKey, restored.Data, restored.MIMEType); err != nil {
		return nil, fmt.Errorf("archive restored: %w", err)
	}
	if err := a.records.PutRestoration(ctx, rec); err != nil {
		return nil, fmt.Errorf("archive record: %w", err)
	}

	log.Info().
		Str("session", sessionID).
		Uint64("attempt", attempt).
		Str("restored_key", rec.RestoredKey).
		Dur("duration", time.Since(start)).
		Msg("Restoration archived")
	return rec, nil
}

// Find returns the archived record of one attempt, or nil when that attempt
// was never archived.
func (a *Archive) Find(ctx context.Context, sessionID string, attempt uint64) (*Restoration, error) {
	return a.records.GetRestoration(ctx, sessionID, attempt)
}

// Latest returns the most recent archived attempt of a session, or nil.
func (a *Archive) Latest(ctx context.Context, sessionID string) (*Restoration, error) {
	recs, err := a.records.ListRestorations(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[len(recs)-1], nil
}

// DownloadURL returns a presigned URL for the restored image of rec.
func (a *Archive) DownloadURL(ctx context.Context, rec *Restoration) (string, error) {
	return a.objects.PresignedURL(ctx, rec.RestoredKey, DefaultURLExpiry)
}
