package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fpang/photo-restore/internal/filehandler"
	"github.com/fpang/photo-restore/internal/metrics"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// outcomeCancelled is the metric outcome of a call abandoned by its caller.
const outcomeCancelled = "cancelled"

// contentGenerator is the slice of genai.Models the restoration client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Request is one restoration attempt: the photo plus the instruction sent with it.
type Request struct {
	Image       filehandler.SourceImage
	Instruction string
}

// RestorationClient sends photos to a Gemini image model for restoration.
// It keeps no state between calls.
type RestorationClient struct {
	models contentGenerator
	model  string
}

// NewGeminiClient creates a genai client for the Gemini API backend.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// NewRestorationClient creates a client for the given model. An empty apiKey
// is allowed: every Restore call then fails with a validation error before
// reaching the network, so a server can start and report the problem per
// request.
func NewRestorationClient(ctx context.Context, apiKey, model string) (*RestorationClient, error) {
	if model == "" {
		model = DefaultModelName
	}
	if apiKey == "" {
		log.Warn().Msg("No Gemini API key configured; restorations will fail until one is provided")
		return &RestorationClient{model: model}, nil
	}

	client, err := NewGeminiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return &RestorationClient{models: client.Models, model: model}, nil
}

// Model returns the model ID requests are sent to.
func (c *RestorationClient) Model() string {
	return c.model
}

// Restore sends img with instruction to the model and returns the restored
// image as canonical PNG bytes. Every failure is returned as *Error.
func (c *RestorationClient) Restore(ctx context.Context, img filehandler.SourceImage, instruction string) ([]byte, error) {
	start := time.Now()

	out, err := c.restore(ctx, Request{Image: img, Instruction: instruction})
	if err != nil {
		restoreErr := classifyError(err)
		if errors.Is(err, context.Canceled) {
			metrics.RecordRestoration(c.model, outcomeCancelled, time.Since(start), 0)
			log.Info().Dur("duration", time.Since(start)).Msg("Restoration cancelled")
			return nil, restoreErr
		}
		metrics.RecordRestoration(c.model, restoreErr.Kind.String(), time.Since(start), 0)
		log.Warn().
			Str("kind", restoreErr.Kind.String()).
			Err(restoreErr.Err).
			Str("message", restoreErr.Message).
			Dur("duration", time.Since(start)).
			Msg("Restoration failed")
		return nil, restoreErr
	}

	metrics.RecordRestoration(c.model, "success", time.Since(start), len(out))
	log.Info().
		Int("output_bytes", len(out)).
		Dur("duration", time.Since(start)).
		Msg("Restoration complete")
	return out, nil
}

func (c *RestorationClient) restore(ctx context.Context, req Request) ([]byte, error) {
	if c.models == nil {
		return nil, validationError(msgMissingKey)
	}

	img, err := preparePayload(req.Image)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("model", c.model).
		Int("image_bytes", len(img.Data)).
		Str("image_mime", img.MIMEType).
		Msg("Sending photo to Gemini for restoration")

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: img.MIMEType, Data: img.Data}},
			{Text: req.Instruction},
		},
	}}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
	}

	resp, err := c.models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return nil, err
	}

	data, ok := firstInlineImage(resp)
	if !ok {
		return nil, &Error{Kind: ErrEmptyResult, Message: msgNoImage}
	}

	normalized, err := filehandler.NormalizePNG(data)
	if err != nil {
		return nil, &Error{Kind: ErrEmptyResult, Message: msgUnreadable, Err: err}
	}
	return normalized.Data, nil
}

// preparePayload validates the photo and separates a data URL header from
// its payload, so only raw image bytes travel in the inline part.
func preparePayload(img filehandler.SourceImage) (filehandler.SourceImage, error) {
	if img.Empty() {
		return img, validationError(msgEmptyImage)
	}

	if embedded, payload, ok, err := filehandler.StripDataURL(img.Data); ok {
		if err != nil {
			return img, &Error{Kind: ErrValidation, Message: "The photo data could not be decoded.", Err: err}
		}
		mediaType := img.MIMEType
		if mediaType == "" {
			mediaType = embedded
		}
		img = filehandler.SourceImage{Data: payload, MIMEType: mediaType}
	}

	img.MIMEType = filehandler.NormalizeMIMEType(img.MIMEType)
	if !filehandler.IsSupportedType(img.MIMEType) {
		return img, validationError(msgUnsupported)
	}
	if img.Empty() {
		return img, validationError(msgEmptyImage)
	}
	return img, nil
}

// firstInlineImage returns the first part of the first candidate that carries
// inline data. Text and other parts are skipped.
func firstInlineImage(resp *genai.GenerateContentResponse) ([]byte, bool) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, false
	}
	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return nil, false
	}
	for _, part := range candidate.Content.Parts {
		if part == nil || part.InlineData == nil {
			continue
		}
		if len(part.InlineData.Data) > 0 {
			return part.InlineData.Data, true
		}
	}
	return nil, false
}
