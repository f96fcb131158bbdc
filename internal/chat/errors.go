package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// ErrorKind categorizes restoration failures.
type ErrorKind int

const (
	// ErrValidation is a bad input or missing credential, detected before any call.
	ErrValidation ErrorKind = iota
	// ErrTransport is a network, timeout, or cancellation failure.
	ErrTransport
	// ErrRemote is an error response from the model API.
	ErrRemote
	// ErrEmptyResult means the model answered without an image.
	ErrEmptyResult
)

func (k ErrorKind) String() string {
	switch k {
	case ErrValidation:
		return "validation"
	case ErrTransport:
		return "transport"
	case ErrRemote:
		return "remote"
	case ErrEmptyResult:
		return "empty_result"
	default:
		return "unknown"
	}
}

// Error is the single error shape returned by RestorationClient.
// Message is safe to show to the user; Err keeps the underlying cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Messages for failures that have no underlying cause worth classifying.
const (
	msgMissingKey   = "API Key is missing."
	msgEmptyImage   = "The photo is empty."
	msgNoImage      = "No image data returned from the model."
	msgUnreadable   = "The model returned an image that could not be read."
	msgUnsupported  = "This image format is not supported for restoration. Please use JPEG, PNG or WEBP."
	msgGenericError = "Failed to restore image."
)

func validationError(msg string) *Error {
	return &Error{Kind: ErrValidation, Message: msg}
}

// classifyError maps a raw error from the model call to an *Error.
func classifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var restoreErr *Error
	if errors.As(err, &restoreErr) {
		return restoreErr
	}

	// The SDK has returned APIError both by value and by pointer across releases.
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyAPIError(&apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return classifyAPIError(apiErrPtr)
	}

	switch {
	case errors.Is(err, context.Canceled):
		return &Error{Kind: ErrTransport, Message: "The restoration request was cancelled", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: ErrTransport, Message: "The restoration request timed out - try again", Err: err}
	}

	errLower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errLower, "api key not valid") ||
		strings.Contains(errLower, "api_key_invalid") ||
		strings.Contains(errLower, "permission denied"):
		log.Error().Err(err).Msg("Invalid API key")
		return &Error{Kind: ErrRemote, Message: "API key is invalid or has been revoked", Err: err}

	case strings.Contains(errLower, "quota") ||
		strings.Contains(errLower, "resource exhausted") ||
		strings.Contains(errLower, "rate limit"):
		log.Error().Err(err).Msg("API quota exceeded")
		return &Error{Kind: ErrRemote, Message: "API quota exceeded or rate limited - try again later", Err: err}

	case strings.Contains(errLower, "connection") ||
		strings.Contains(errLower, "network") ||
		strings.Contains(errLower, "timeout") ||
		strings.Contains(errLower, "dial") ||
		strings.Contains(errLower, "no such host") ||
		strings.Contains(errLower, "unreachable"):
		log.Error().Err(err).Msg("Network error during restoration")
		return &Error{Kind: ErrTransport, Message: "Network error - check your internet connection", Err: err}

	default:
		log.Error().Err(err).Msg("Unknown error during restoration")
		return &Error{Kind: ErrTransport, Message: msgGenericError, Err: err}
	}
}

// classifyAPIError categorizes an error response from the Gemini API.
func classifyAPIError(err *genai.APIError) *Error {
	switch err.Code {
	case 400:
		log.Error().Int("code", err.Code).Str("message", err.Message).Msg("Bad request")
		return &Error{Kind: ErrRemote, Message: "The model rejected the request: " + err.Message, Err: err}

	case 401, 403:
		log.Error().Int("code", err.Code).Msg("Authentication failed - invalid API key")
		return &Error{Kind: ErrRemote, Message: "API key is invalid, expired, or lacks permissions", Err: err}

	case 429:
		log.Error().Int("code", err.Code).Msg("Rate limit exceeded")
		return &Error{Kind: ErrRemote, Message: "API rate limit exceeded - try again later", Err: err}

	case 500, 502, 503, 504:
		log.Error().Int("code", err.Code).Msg("Gemini server error")
		return &Error{Kind: ErrRemote, Message: "Gemini API server error - try again later", Err: err}

	default:
		log.Error().Int("code", err.Code).Str("message", err.Message).Msg("Google API error")
		msg := err.Message
		if msg == "" {
			msg = msgGenericError
		}
		return &Error{Kind: ErrRemote, Message: msg, Err: err}
	}
}
