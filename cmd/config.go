package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// ambientKeys are viper entries owned by flags and logging, not by Config.
var ambientKeys = map[string]struct{}{
	"debug": {},
	"json":  {},
}

// getConfig decodes the viper settings into Config and reports unknown keys
// so typos in the config file surface at startup rather than as silently
// missing settings.
func getConfig() (*Config, []string, error) {
	var config Config
	var metadata mapstructure.Metadata

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		Metadata: &metadata,
		Result:   &config,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("building config decoder: %w", err)
	}

	if err := decoder.Decode(viper.AllSettings()); err != nil {
		return nil, nil, fmt.Errorf("decoding config: %w", err)
	}

	unknown := make([]string, 0, len(metadata.Unused))
	for _, key := range metadata.Unused {
		if _, ok := ambientKeys[strings.ToLower(key)]; ok {
			continue
		}
		unknown = append(unknown, key)
	}

	return &config, unknown, nil
}

// validateConfig enforces the startup invariants: every required setting must
// be present before the pipeline starts.
func validateConfig(config *Config) error {
	if config == nil {
		return errors.New("config is required")
	}

	var missing []string

	if config.Telegram == nil || strings.TrimSpace(config.Telegram.TokenFile) == "" {
		missing = append(missing, "telegram.token-file")
	}

	if len(config.Channels) == 0 {
		missing = append(missing, "channels")
	}

	if config.Profile == nil || strings.TrimSpace(config.Profile.CVURL) == "" {
		missing = append(missing, "profile.cv-url")
	}

	if config.Profile == nil || strings.TrimSpace(config.Profile.PortfolioURL) == "" {
		missing = append(missing, "profile.portfolio-url")
	}

	if config.AI != nil && config.AI.Enabled {
		if config.AI.Gemini == nil || strings.TrimSpace(config.AI.Gemini.APIKeyFile) == "" {
			missing = append(missing, "ai.gemini.api-key-file")
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}

	return nil
}
