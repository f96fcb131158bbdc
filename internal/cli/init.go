// Package cli holds the terminal plumbing shared by the restoration CLI.
package cli

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-restore/internal/awsboot"
	"github.com/fpang/photo-restore/internal/chat"
	"github.com/fpang/photo-restore/internal/config"
)

// InitRestorationClient resolves the model and API key for cfg and builds a
// restoration client. A missing key is returned as an error: the CLI has no
// use for a client that can only fail.
func InitRestorationClient(ctx context.Context, cfg *config.Config) (*chat.RestorationClient, awsboot.Clients, error) {
	model := cfg.Model
	if model == "" {
		model = chat.GetModelName()
	}

	clients, err := awsboot.Init(ctx, cfg, model)
	if err != nil {
		return nil, awsboot.Clients{}, err
	}

	apiKey, err := awsboot.ResolveAPIKey(ctx, clients, cfg)
	if err != nil {
		return nil, clients, err
	}

	client, err := chat.NewRestorationClient(ctx, apiKey, model)
	if err != nil {
		return nil, clients, err
	}

	log.Info().Str("model", client.Model()).Msg("Gemini client initialized")
	return client, clients, nil
}
