package compose

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"github.com/jrostami/channel-scout/internal/logger"
	"go.uber.org/zap"
)

// Generator produces text for a prompt. The live implementation talks to
// Gemini; a nil Generator means the deterministic template is always used.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

//go:embed prompt.md
var promptTemplate string

const (
	// Telegram rejects messages above 4096 characters; stay below it.
	defaultMaxLength = 4000
	defaultTimeout   = 20 * time.Second

	excerptLength = 120

	fallbackBody = "سلام! 👋\nآگهی شما را دیدم و به عنوان طراح رابط و تجربه کاربری آماده همکاری هستم. خوشحال می‌شوم درباره جزئیات پروژه صحبت کنیم."

	maxLogLength = 200
)

// Config carries composer settings. Zero values fall back to defaults.
type Config struct {
	CVURL        string
	PortfolioURL string
	MaxLength    int
	Timeout      time.Duration
}

// Composer turns a matched post into an outreach message body. The body comes
// from the generator when one is configured and reachable, otherwise from a
// deterministic template. Both profile links are always appended verbatim and
// are never truncated.
type Composer struct {
	gen    Generator
	cfg    Config
	logger *zap.Logger
}

func New(gen Generator, cfg Config, log *zap.Logger) *Composer {
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = defaultMaxLength
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Composer{gen: gen, cfg: cfg, logger: log}
}

// Compose returns a ready-to-send message for the matched post text. It never
// fails: generator errors and timeouts resolve to the fallback template.
func (c *Composer) Compose(ctx context.Context, matched string) string {
	body := c.generate(ctx, matched)
	if body == "" {
		body = c.fallback(matched)
	}

	return c.assemble(body)
}

func (c *Composer) generate(ctx context.Context, matched string) string {
	if c.gen == nil {
		return ""
	}

	prompt := buildPrompt(matched)

	genCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := c.gen.GenerateContent(genCtx, prompt)
	if err != nil {
		c.logger.Warn("generator failed, using deterministic template",
			zap.Error(err),
			zap.String("matched_preview", logger.TruncateForLog(matched, maxLogLength)),
		)
		return ""
	}

	c.logger.Debug("generated outreach body",
		zap.Int("body_length", utf8.RuneCountInString(body)),
		zap.String("body_preview", logger.TruncateForLog(body, maxLogLength)),
	)

	return strings.TrimSpace(body)
}

// fallback builds the non-networked message body. Deterministic for fixed
// input: identical matched text always yields identical output.
func (c *Composer) fallback(matched string) string {
	excerpt := strings.TrimSpace(matched)
	if excerpt == "" {
		return fallbackBody
	}

	if runes := []rune(excerpt); len(runes) > excerptLength {
		excerpt = string(runes[:excerptLength]) + "…"
	}

	return fallbackBody + "\n\nدرباره آگهی: " + excerpt
}

// assemble appends the profile links and enforces the platform length limit.
// Only the body is trimmed to fit; the links block stays intact.
func (c *Composer) assemble(body string) string {
	links := "رزومه: " + c.cfg.CVURL + "\nنمونه‌کار: " + c.cfg.PortfolioURL

	separator := "\n\n"
	budget := c.cfg.MaxLength - utf8.RuneCountInString(links) - utf8.RuneCountInString(separator)
	if budget <= 0 {
		return links
	}

	if runes := []rune(body); len(runes) > budget {
		body = strings.TrimSpace(string(runes[:budget-1])) + "…"
	}

	return body + separator + links
}

func buildPrompt(matched string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "متن آگهی:\n{{POST_TEXT}}"
	}

	return strings.ReplaceAll(template, "{{POST_TEXT}}", matched)
}
