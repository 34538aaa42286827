package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/jrostami/channel-scout/internal/extract"
	"github.com/jrostami/channel-scout/internal/logger"
	"go.uber.org/zap"
)

// Typed send failures the transport resolves its errors into.
var (
	ErrRecipientNotFound    = errors.New("recipient not found")
	ErrRateLimited          = errors.New("rate limited")
	ErrTransportUnavailable = errors.New("transport unavailable")
)

// Inbound is one observed channel post. It lives for a single Process call
// and is never persisted.
type Inbound struct {
	Text      string
	ChannelID string
}

// Reason explains why a message was skipped.
type Reason string

const (
	ReasonNotRelevant      Reason = "not_relevant"
	ReasonNoHandleFound    Reason = "no_handle_found"
	ReasonSendFailed       Reason = "send_failed"
	ReasonAlreadyContacted Reason = "already_contacted"
	ReasonDeclined         Reason = "declined_by_operator"
)

// Outcome is the terminal result of one pipeline run.
type Outcome struct {
	Delivered bool
	Reason    Reason
	Handle    extract.Handle
}

func delivered(handle extract.Handle) Outcome {
	return Outcome{Delivered: true, Handle: handle}
}

func skipped(reason Reason, handle extract.Handle) Outcome {
	return Outcome{Reason: reason, Handle: handle}
}

// Classifier decides whether post text is worth responding to.
type Classifier interface {
	Relevant(text string) bool
}

// Composer builds the outreach message body for a matched post.
type Composer interface {
	Compose(ctx context.Context, matched string) string
}

// Sender delivers a message body to a recipient over the messaging transport.
// Failures must resolve to one of the typed send errors above.
type Sender interface {
	Send(ctx context.Context, recipient, body string) error
}

// Approver reviews a composed message before dispatch. Used by the
// interactive confirmation mode.
type Approver interface {
	Approve(recipient, body string) (bool, error)
}

// Config carries the orchestrator's send policy.
type Config struct {
	// MaxSendAttempts bounds tries for rate-limited or unavailable sends.
	// 1 means no retry. Recipient-not-found is never retried.
	MaxSendAttempts int
	SendTimeout     time.Duration
	RetryWait       time.Duration
}

// Deps aggregates the pipeline's collaborators. Classifier, Composer and
// Sender are required; the rest are optional.
type Deps struct {
	Classifier Classifier
	Extract    func(text string) (extract.Handle, bool)
	Composer   Composer
	Sender     Sender
	Dedup      *DedupSet
	Approver   Approver
	Logger     *zap.Logger
}

const (
	defaultSendTimeout = 10 * time.Second
	defaultRetryWait   = 3 * time.Second

	maxLogLength = 120
)

// Pipeline applies classify, extract, compose and send to one inbound post at
// a time. Stages share no mutable state except the dedup set, so concurrent
// Process calls on independent messages are safe.
type Pipeline struct {
	cfg  Config
	deps Deps
}

func New(cfg Config, deps Deps) *Pipeline {
	if cfg.MaxSendAttempts < 1 {
		cfg.MaxSendAttempts = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = defaultRetryWait
	}
	if deps.Extract == nil {
		deps.Extract = extract.Extract
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &Pipeline{cfg: cfg, deps: deps}
}

// Process runs the full pipeline for one post and returns its terminal
// outcome. It never panics or returns an error: every condition besides
// startup misconfiguration resolves to Delivered or Skipped.
func (p *Pipeline) Process(ctx context.Context, msg Inbound) Outcome {
	outcome := p.process(ctx, msg)

	fields := []zap.Field{
		zap.String("channel", msg.ChannelID),
		zap.Bool("delivered", outcome.Delivered),
		zap.String("text_preview", logger.TruncateForLog(msg.Text, maxLogLength)),
	}
	if outcome.Handle != "" {
		fields = append(fields, zap.String("handle", outcome.Handle.String()))
	}
	if !outcome.Delivered {
		fields = append(fields, zap.String("reason", string(outcome.Reason)))
	}

	p.deps.Logger.Info("message processed", fields...)

	return outcome
}

func (p *Pipeline) process(ctx context.Context, msg Inbound) Outcome {
	if !p.deps.Classifier.Relevant(msg.Text) {
		return skipped(ReasonNotRelevant, "")
	}

	handle, ok := p.deps.Extract(msg.Text)
	if !ok {
		return skipped(ReasonNoHandleFound, "")
	}

	if p.deps.Dedup != nil && !p.deps.Dedup.MarkIfNew(handle.String()) {
		return skipped(ReasonAlreadyContacted, handle)
	}

	body := p.deps.Composer.Compose(ctx, msg.Text)

	if p.deps.Approver != nil {
		approved, err := p.deps.Approver.Approve(handle.String(), body)
		if err != nil {
			p.deps.Logger.Warn("approval prompt failed", zap.Error(err))
			return skipped(ReasonDeclined, handle)
		}
		if !approved {
			return skipped(ReasonDeclined, handle)
		}
	}

	return p.send(ctx, handle, body)
}

func (p *Pipeline) send(ctx context.Context, handle extract.Handle, body string) Outcome {
	for attempt := 1; ; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, p.cfg.SendTimeout)
		err := p.deps.Sender.Send(sendCtx, handle.String(), body)
		cancel()

		if err == nil {
			return delivered(handle)
		}

		if ctx.Err() != nil {
			// Cancelled mid-send: delivery status is unknown, never
			// assume success.
			p.deps.Logger.Warn("send abandoned, delivery status unknown",
				zap.String("handle", handle.String()),
				zap.Error(err),
			)
			return skipped(ReasonSendFailed, handle)
		}

		if errors.Is(err, ErrRecipientNotFound) {
			// Extracted from free text; unreachable identities are
			// expected. Log and drop without retrying.
			p.deps.Logger.Info("recipient not reachable, dropping",
				zap.String("handle", handle.String()),
			)
			return skipped(ReasonSendFailed, handle)
		}

		if attempt >= p.cfg.MaxSendAttempts {
			p.deps.Logger.Warn("send failed",
				zap.String("handle", handle.String()),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			return skipped(ReasonSendFailed, handle)
		}

		wait := p.cfg.RetryWait * time.Duration(attempt)
		var ra interface{ RetryAfter() time.Duration }
		if errors.As(err, &ra) && ra.RetryAfter() > 0 {
			wait = ra.RetryAfter()
		}

		p.deps.Logger.Warn("send failed, retrying",
			zap.String("handle", handle.String()),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)

		if waitErr := waitFor(ctx, wait); waitErr != nil {
			return skipped(ReasonSendFailed, handle)
		}
	}
}
