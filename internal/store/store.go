// Package store archives successful restorations. Image bytes go to S3 and a
// restoration record goes to DynamoDB.
//
// The table uses a single-table layout: every record for a session shares
// the partition key SESSION#{sessionId}, and each attempt is a sort key
// RESTORATION#{attempt:08d}. A TTL attribute (expiresAt) removes records
// after RecordTTL; the bucket is expected to carry a matching lifecycle rule.
package store

import (
	"context"
	"time"
)

// RecordTTL is the lifetime of archived records.
const RecordTTL = 24 * time.Hour

// Restoration describes one archived restoration attempt.
type Restoration struct {
	SessionID   string `json:"sessionId" dynamodbav:"sessionId"`
	Attempt     uint64 `json:"attempt" dynamodbav:"attempt"`
	OriginalKey string `json:"originalKey" dynamodbav:"originalKey"`
	RestoredKey string `json:"restoredKey" dynamodbav:"restoredKey"`
	MIMEType    string `json:"mimeType" dynamodbav:"mimeType"`
	Model       string `json:"model,omitempty" dynamodbav:"model,omitempty"`
	CreatedAt   int64  `json:"createdAt" dynamodbav:"createdAt"`
}

// RecordStore persists restoration records.
//
// GetRestoration returns (nil, nil) when the record does not exist.
// PutRestoration performs full-item replacement.
type RecordStore interface {
	PutRestoration(ctx context.Context, rec *Restoration) error
	GetRestoration(ctx context.Context, sessionID string, attempt uint64) (*Restoration, error)
	ListRestorations(ctx context.Context, sessionID string) ([]*Restoration, error)
}
