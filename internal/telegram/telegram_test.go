package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/jrostami/channel-scout/internal/pipeline"
)

func TestMapSendError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		expect error
	}{
		{
			name:   "chat not found",
			err:    &tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"},
			expect: pipeline.ErrRecipientNotFound,
		},
		{
			name:   "forbidden",
			err:    &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"},
			expect: pipeline.ErrRecipientNotFound,
		},
		{
			name:   "rate limited",
			err:    &tgbotapi.Error{Code: 429, Message: "Too Many Requests: retry after 5"},
			expect: pipeline.ErrRateLimited,
		},
		{
			name:   "server error",
			err:    &tgbotapi.Error{Code: 502, Message: "Bad Gateway"},
			expect: pipeline.ErrTransportUnavailable,
		},
		{
			name:   "network error",
			err:    errors.New("dial tcp: connection refused"),
			expect: pipeline.ErrTransportUnavailable,
		},
		{
			name:   "stringly rate limit",
			err:    errors.New("Too Many Requests"),
			expect: pipeline.ErrRateLimited,
		},
		{
			name:   "stringly not found",
			err:    errors.New("Bad Request: user not found"),
			expect: pipeline.ErrRecipientNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mapped := mapSendError(tt.err)
			if !errors.Is(mapped, tt.expect) {
				t.Fatalf("mapSendError(%v) = %v, expected %v", tt.err, mapped, tt.expect)
			}
		})
	}
}

func TestMapSendErrorCarriesRetryAfter(t *testing.T) {
	t.Parallel()

	apiErr := &tgbotapi.Error{
		Code:               429,
		Message:            "Too Many Requests: retry after 7",
		ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 7},
	}

	mapped := mapSendError(apiErr)

	var ra interface{ RetryAfter() time.Duration }
	if !errors.As(mapped, &ra) {
		t.Fatalf("expected retry-after carrier, got %T", mapped)
	}

	if got := ra.RetryAfter(); got != 7*time.Second {
		t.Fatalf("expected 7s retry-after, got %s", got)
	}
}

func TestInboundFromUpdate(t *testing.T) {
	t.Parallel()

	allowed := map[string]struct{}{"@design_jobs": {}}

	channelPost := func(username, text, caption string) tgbotapi.Update {
		return tgbotapi.Update{ChannelPost: &tgbotapi.Message{
			Chat:    &tgbotapi.Chat{UserName: username},
			Text:    text,
			Caption: caption,
		}}
	}

	tests := []struct {
		name   string
		update tgbotapi.Update
		expect pipeline.Inbound
		ok     bool
	}{
		{
			name:   "post from watched channel",
			update: channelPost("design_jobs", "Hiring UI/UX designer, DM @janedoe", ""),
			expect: pipeline.Inbound{Text: "Hiring UI/UX designer, DM @janedoe", ChannelID: "@design_jobs"},
			ok:     true,
		},
		{
			name:   "caption used when text empty",
			update: channelPost("design_jobs", "", "UI/UX role, DM @janedoe"),
			expect: pipeline.Inbound{Text: "UI/UX role, DM @janedoe", ChannelID: "@design_jobs"},
			ok:     true,
		},
		{
			name:   "post from unwatched channel",
			update: channelPost("other_channel", "Hiring UI/UX designer", ""),
			ok:     false,
		},
		{
			name:   "empty post",
			update: channelPost("design_jobs", "   ", ""),
			ok:     false,
		},
		{
			name:   "not a channel post",
			update: tgbotapi.Update{Message: &tgbotapi.Message{Text: "direct message"}},
			ok:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			msg, ok := inboundFromUpdate(tt.update, allowed)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if msg != tt.expect {
				t.Fatalf("expected %+v, got %+v", tt.expect, msg)
			}
		})
	}
}

func TestNormalizeChannel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		expect string
	}{
		{input: "design_jobs", expect: "@design_jobs"},
		{input: "@design_jobs", expect: "@design_jobs"},
		{input: "  @spaced  ", expect: "@spaced"},
		{input: "", expect: ""},
		{input: "@", expect: ""},
	}

	for _, tt := range tests {
		if got := normalizeChannel(tt.input); got != tt.expect {
			t.Fatalf("normalizeChannel(%q) = %q, expected %q", tt.input, got, tt.expect)
		}
	}
}

type fakeBot struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func (f *fakeBot) GetChat(tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error) {
	return tgbotapi.Chat{}, f.err
}

func (f *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	ch := make(chan tgbotapi.Update)
	close(ch)
	return ch
}

func (f *fakeBot) StopReceivingUpdates() {}

func TestClientSendAddsSigil(t *testing.T) {
	t.Parallel()

	bot := &fakeBot{}
	client := &Client{bot: bot, logger: zap.NewNop()}

	if err := client.Send(context.Background(), "janedoe", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(bot.sent) != 1 {
		t.Fatalf("expected one send, got %d", len(bot.sent))
	}

	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("unexpected chattable type %T", bot.sent[0])
	}

	if msg.ChannelUsername != "@janedoe" {
		t.Fatalf("expected recipient @janedoe, got %q", msg.ChannelUsername)
	}

	if msg.Text != "hello" {
		t.Fatalf("unexpected body %q", msg.Text)
	}
}

func TestClientSendMapsFailure(t *testing.T) {
	t.Parallel()

	bot := &fakeBot{err: &tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"}}
	client := &Client{bot: bot, logger: zap.NewNop()}

	err := client.Send(context.Background(), "@ghost_user_404", "hello")
	if !errors.Is(err, pipeline.ErrRecipientNotFound) {
		t.Fatalf("expected recipient-not-found, got %v", err)
	}
}
