package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/jrostami/channel-scout/internal/pipeline"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	pollTimeoutSec     = 30
)

// Client owns the Bot API connection. It serves both sides of the pipeline:
// the channel-post listener and the outbound message sender.
type Client struct {
	bot    botAPI
	logger *zap.Logger
}

// botAPI is the slice of tgbotapi.BotAPI the client uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

func New(token string, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram bot token is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{
		Timeout: defaultHTTPTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}

	logger.Info("telegram bot connected",
		zap.String("username", bot.Self.UserName),
		zap.Int64("id", bot.Self.ID),
	)

	return &Client{bot: bot, logger: logger}, nil
}

// Send delivers the body to the recipient as plain text. Failures resolve to
// the pipeline's typed send errors. A context cancelled before the call is
// reported as unavailable; cancellation during the call leaves delivery
// status unknown to the caller.
func (c *Client) Send(ctx context.Context, recipient, body string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", pipeline.ErrTransportUnavailable, err)
	}

	username := recipient
	if !strings.HasPrefix(username, "@") {
		username = "@" + username
	}

	c.logger.Debug("sending message", zap.String("recipient", username), zap.Int("body_length", len(body)))

	if _, err := c.bot.Send(tgbotapi.NewMessageToChannel(username, body)); err != nil {
		return mapSendError(err)
	}

	return nil
}

// ResolveChannels checks each configured channel is visible to the bot and
// returns the usable ones. Unreachable channels are logged and skipped, not
// fatal, matching the bootstrap behavior for channels the account has not
// joined yet.
func (c *Client) ResolveChannels(channels []string) []string {
	resolved := make([]string, 0, len(channels))
	for _, channel := range channels {
		channel = normalizeChannel(channel)
		if channel == "" {
			continue
		}

		chat, err := c.bot.GetChat(tgbotapi.ChatInfoConfig{
			ChatConfig: tgbotapi.ChatConfig{SuperGroupUsername: channel},
		})
		if err != nil {
			c.logger.Warn("channel is not reachable, skipping",
				zap.String("channel", channel),
				zap.Error(err),
			)
			continue
		}

		c.logger.Info("watching channel",
			zap.String("channel", channel),
			zap.String("title", chat.Title),
		)
		resolved = append(resolved, channel)
	}

	return resolved
}

// Listen starts long polling and emits one Inbound per new post in the given
// channels. The returned channel is closed when ctx is cancelled.
func (c *Client) Listen(ctx context.Context, channels []string, buffer int) <-chan pipeline.Inbound {
	if buffer <= 0 {
		buffer = 100
	}

	allowed := make(map[string]struct{}, len(channels))
	for _, channel := range channels {
		if channel = normalizeChannel(channel); channel != "" {
			allowed[strings.ToLower(channel)] = struct{}{}
		}
	}

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeoutSec
	cfg.AllowedUpdates = []string{"channel_post"}

	updates := c.bot.GetUpdatesChan(cfg)
	out := make(chan pipeline.Inbound, buffer)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("telegram listener stopping")
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				msg, ok := inboundFromUpdate(update, allowed)
				if !ok {
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
				}
			}
		}
	}()

	c.logger.Info("telegram polling started", zap.Int("channels", len(allowed)))

	return out
}

// inboundFromUpdate filters an update down to a post from a watched channel.
func inboundFromUpdate(update tgbotapi.Update, allowed map[string]struct{}) (pipeline.Inbound, bool) {
	post := update.ChannelPost
	if post == nil || post.Chat == nil {
		return pipeline.Inbound{}, false
	}

	username := strings.ToLower(normalizeChannel(post.Chat.UserName))
	if username == "" {
		return pipeline.Inbound{}, false
	}

	if len(allowed) > 0 {
		if _, ok := allowed[username]; !ok {
			return pipeline.Inbound{}, false
		}
	}

	text := strings.TrimSpace(post.Text)
	if text == "" {
		text = strings.TrimSpace(post.Caption)
	}
	if text == "" {
		return pipeline.Inbound{}, false
	}

	return pipeline.Inbound{Text: text, ChannelID: username}, true
}

// normalizeChannel returns the channel username with a leading @.
func normalizeChannel(channel string) string {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return ""
	}
	if !strings.HasPrefix(channel, "@") {
		channel = "@" + channel
	}
	if len(channel) == 1 {
		return ""
	}
	return channel
}
