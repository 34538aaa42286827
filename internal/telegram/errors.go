package telegram

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/jrostami/channel-scout/internal/pipeline"
)

// rateLimitError carries the server-provided backoff for 429 responses.
type rateLimitError struct {
	retryAfter time.Duration
	cause      error
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("%v: %v", pipeline.ErrRateLimited, e.cause)
}

func (e *rateLimitError) Unwrap() error { return pipeline.ErrRateLimited }

func (e *rateLimitError) RetryAfter() time.Duration { return e.retryAfter }

// mapSendError resolves a Bot API failure into the pipeline's typed send
// errors: unknown or blocked recipients, rate limiting with its retry-after
// hint, and everything else as transport unavailability.
func mapSendError(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			return &rateLimitError{
				retryAfter: time.Duration(apiErr.RetryAfter) * time.Second,
				cause:      err,
			}
		case apiErr.Code == 403:
			return fmt.Errorf("%w: %v", pipeline.ErrRecipientNotFound, err)
		case apiErr.Code == 400 && notFoundMessage(apiErr.Message):
			return fmt.Errorf("%w: %v", pipeline.ErrRecipientNotFound, err)
		}
		return fmt.Errorf("%w: %v", pipeline.ErrTransportUnavailable, err)
	}

	// Non-API failures (network, timeouts) are transport problems. Some
	// library paths surface API errors as plain strings, so keep the
	// message checks from the polling bots as a fallback.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Too Many Requests") || strings.Contains(msg, "429"):
		return &rateLimitError{cause: err}
	case notFoundMessage(msg):
		return fmt.Errorf("%w: %v", pipeline.ErrRecipientNotFound, err)
	}

	return fmt.Errorf("%w: %v", pipeline.ErrTransportUnavailable, err)
}

func notFoundMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, marker := range []string{
		"chat not found",
		"user not found",
		"user_id_invalid",
		"bot was blocked",
		"deactivated",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
