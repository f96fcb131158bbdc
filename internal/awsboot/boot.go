// Package awsboot builds the AWS clients the restoration commands need.
// Nothing here is required: AWS is only touched when the archive or the SSM
// key parameter is configured.
package awsboot

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-restore/internal/auth"
	"github.com/fpang/photo-restore/internal/config"
	"github.com/fpang/photo-restore/internal/logging"
	"github.com/fpang/photo-restore/internal/store"
)

// Clients holds what the commands use from AWS. Fields are nil when the
// matching feature is not configured.
type Clients struct {
	Config  aws.Config
	SSM     *ssm.Client
	Archive *store.Archive
}

// Init loads the default AWS config and builds clients for the features
// enabled in cfg. It returns a zero Clients when cfg needs no AWS.
func Init(ctx context.Context, cfg *config.Config, model string) (Clients, error) {
	if !cfg.NeedsAWS() {
		return Clients{}, nil
	}

	start := time.Now()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return Clients{}, fmt.Errorf("load AWS config: %w", err)
	}
	log.Debug().Str("region", awsCfg.Region).Dur("elapsed", time.Since(start)).Msg("AWS config loaded")

	clients := Clients{Config: awsCfg}
	if cfg.APIKeyParam != "" {
		clients.SSM = ssm.NewFromConfig(awsCfg)
	}
	if cfg.ArchiveEnabled() {
		clients.Archive = NewArchive(awsCfg, cfg.ArchiveBucket, cfg.ArchiveTable, model)
	}
	return clients, nil
}

// NewArchive wires an S3 bucket and a DynamoDB table into a store.Archive.
func NewArchive(awsCfg aws.Config, bucket, table, model string) *store.Archive {
	s3Client := s3.NewFromConfig(awsCfg)
	objects := store.NewObjects(s3Client, s3.NewPresignClient(s3Client), bucket)
	records := store.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), table)
	log.Debug().Str("bucket", bucket).Str("table", table).Msg("Restoration archive configured")
	return store.NewArchive(objects, records, model)
}

// ResolveAPIKey looks up the Gemini key, consulting SSM only when a client
// was built for it. An empty key with a nil error never happens.
func ResolveAPIKey(ctx context.Context, clients Clients, cfg *config.Config) (string, error) {
	var params auth.ParameterStore
	if clients.SSM != nil {
		params = clients.SSM
	}
	return auth.GetAPIKey(ctx, params, cfg.APIKeyParam)
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
