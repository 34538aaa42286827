package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jrostami/channel-scout/internal/ai/gemini"
	"github.com/jrostami/channel-scout/internal/classify"
	"github.com/jrostami/channel-scout/internal/compose"
	"github.com/jrostami/channel-scout/internal/logger"
	"github.com/jrostami/channel-scout/internal/pipeline"
	"github.com/jrostami/channel-scout/internal/secrets"
	"github.com/jrostami/channel-scout/internal/telegram"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptSend = "Send"
	PromptSkip = "Skip"

	inboundBuffer = 100
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the channel-scout main command",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("confirm", "c", false, "review each outgoing message before it is sent")
	runCmd.Flags().IntP("workers", "w", 1, "number of concurrent pipeline workers")
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, unknown, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	for _, key := range unknown {
		logger.Warn("unknown configuration key", zap.String("key", key))
	}

	logger.Info("starting the channel-scout", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if err := validateConfig(config); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	token, err := secrets.Load(secrets.Source{
		Name: "telegram bot token",
		File: config.Telegram.TokenFile,
		Env:  "TELEGRAM_TOKEN",
	})
	if err != nil {
		logger.Fatal(
			"loading telegram bot token",
			zap.Error(err),
			zap.String("hint", "set TELEGRAM_TOKEN_FILE environment variable or the 'telegram.token-file' key in the configuration file"),
		)
	}

	tg, err := telegram.New(token, logger)
	if err != nil {
		logger.Fatal("connecting to telegram", zap.Error(err))
	}

	classifier, err := classify.New(config.Keywords)
	if err != nil {
		logger.Fatal("building keyword classifier", zap.Error(err))
	}

	logger.Info("keyword classifier ready", zap.Strings("keywords", classifier.Keywords()))

	composer := newComposer(ctx, config, logger)

	pipe := pipeline.New(sendPolicy(config), pipeline.Deps{
		Classifier: classifier,
		Composer:   composer,
		Sender:     tg,
		Dedup:      dedupSet(config),
		Approver:   approver(cmd),
		Logger:     logger,
	})

	channels := tg.ResolveChannels(config.Channels)
	if len(channels) == 0 {
		logger.Fatal("no configured channel is reachable", zap.Strings("channels", config.Channels))
	}

	posts := tg.Listen(ctx, channels, inboundBuffer)

	workers := workerCount(cmd, logger)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for post := range posts {
				pipe.Process(ctx, post)
			}
		}()
	}

	wg.Wait()
	logger.Info("exiting", zap.String("reason", "listener stopped"))
}

func newComposer(ctx context.Context, config *Config, logger *zap.Logger) *compose.Composer {
	cfg := compose.Config{
		CVURL:        config.Profile.CVURL,
		PortfolioURL: config.Profile.PortfolioURL,
	}
	if config.Send != nil {
		cfg.MaxLength = config.Send.MessageLimit
	}

	generator := newGenerator(ctx, config, logger)
	if generator == nil {
		return compose.New(nil, cfg, logger)
	}

	if config.AI != nil && config.AI.Gemini != nil {
		cfg.Timeout = config.AI.Gemini.Timeout
	}

	return compose.New(generator, cfg, logger)
}

// newGenerator builds the Gemini generator, or nil when AI is disabled or the
// key cannot be loaded. A nil generator means every message takes the
// deterministic template path.
func newGenerator(ctx context.Context, config *Config, logger *zap.Logger) compose.Generator {
	if config.AI == nil || !config.AI.Enabled || config.AI.Gemini == nil {
		return nil
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: config.AI.Gemini.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		logger.Warn("gemini key unavailable, using deterministic template", zap.Error(err))
		return nil
	}

	genLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", config.AI.Gemini.Model),
	)

	generator, err := gemini.NewGenerator(ctx, apiKey, config.AI.Gemini.Model, config.AI.Gemini.MaxRetries, genLogger)
	if err != nil {
		logger.Warn("gemini generator unavailable, using deterministic template", zap.Error(err))
		return nil
	}

	return generator
}

func sendPolicy(config *Config) pipeline.Config {
	policy := pipeline.Config{}
	if config.Send != nil {
		policy.MaxSendAttempts = config.Send.MaxAttempts
		policy.SendTimeout = config.Send.Timeout
	}

	return policy
}

func dedupSet(config *Config) *pipeline.DedupSet {
	if !config.Dedup {
		return nil
	}

	return pipeline.NewDedupSet()
}

// approver returns the interactive review gate when --confirm is set.
func approver(cmd *cobra.Command) pipeline.Approver {
	if cmd.Flag("confirm").Value.String() != "true" {
		return nil
	}

	return promptApprover{}
}

func workerCount(cmd *cobra.Command, logger *zap.Logger) int {
	workers, err := cmd.Flags().GetInt("workers")
	if err != nil || workers < 1 {
		workers = 1
	}

	// The interactive prompt cannot serve several goroutines at once.
	if workers > 1 && cmd.Flag("confirm").Value.String() == "true" {
		logger.Warn("confirm mode forces a single worker", zap.Int("requested", workers))
		workers = 1
	}

	return workers
}

type promptApprover struct{}

func (promptApprover) Approve(recipient, body string) (bool, error) {
	fmt.Printf("\n--- message for %s ---\n%s\n---\n", recipient, body)

	prompt := promptui.Select{
		Label: fmt.Sprintf("Send this message to %s?", recipient),
		Items: []string{PromptSend, PromptSkip},
	}

	_, action, err := prompt.Run()
	if err != nil {
		return false, err
	}

	return action == PromptSend, nil
}
