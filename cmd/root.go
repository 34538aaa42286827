package cmd

import (
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "channel-scout"
)

type Config struct {
	Telegram *TelegramConfig `mapstructure:"telegram"`
	Channels []string        `mapstructure:"channels"`
	Keywords []string        `mapstructure:"keywords"`
	Profile  *ProfileConfig  `mapstructure:"profile"`
	AI       *AIConfig       `mapstructure:"ai"`
	Send     *SendConfig     `mapstructure:"send"`
	Dedup    bool            `mapstructure:"dedup"`
}

type TelegramConfig struct {
	TokenFile string `mapstructure:"token-file"`
}

type ProfileConfig struct {
	CVURL        string `mapstructure:"cv-url"`
	PortfolioURL string `mapstructure:"portfolio-url"`
}

type AIConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Gemini  *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile string        `mapstructure:"api-key-file"`
	Model      string        `mapstructure:"model"`
	MaxRetries int           `mapstructure:"max-retries"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type SendConfig struct {
	MaxAttempts  int           `mapstructure:"max-attempts"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MessageLimit int           `mapstructure:"message-limit"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "channel-scout watches telegram channels for UI/UX job posts and sends personalized outreach messages",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("telegram.token-file", "TELEGRAM_TOKEN_FILE"); err != nil {
		log.Fatalf("binding TELEGRAM_TOKEN_FILE environment variable: %v", err)
	}

	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is channel-scout.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	viper.SetDefault("dedup", true)
}

func initConfig() {
	// Config needed only for run command now. If there is no config, we can skip initialization
	if runCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}
