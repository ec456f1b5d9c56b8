package service

import (
	"go.uber.org/zap"

	"github.com/ifuryst/autopost/internal/config"
	"github.com/ifuryst/autopost/internal/service/publisher"
	"github.com/ifuryst/autopost/internal/service/publisher/linkedin"
	"github.com/ifuryst/autopost/internal/service/publisher/medium"
)

// RegisterDefaults registers the built-in Medium and LinkedIn agents.
// Calling it again replaces the existing entries.
func RegisterDefaults(registry *publisher.Registry, cfg config.AgentsConfig, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	var mediumOpts []medium.Option
	if cfg.Medium.BaseURL != "" {
		mediumOpts = append(mediumOpts, medium.WithBaseURL(cfg.Medium.BaseURL))
	}
	if err := registry.RegisterAgent(medium.PlatformName, medium.NewMediumAgent(logger, mediumOpts...),
		cfg.Medium.IsEnabled(), agentSettings(cfg.Medium)); err != nil {
		return err
	}

	var linkedInOpts []linkedin.Option
	if cfg.LinkedIn.BaseURL != "" {
		linkedInOpts = append(linkedInOpts, linkedin.WithBaseURL(cfg.LinkedIn.BaseURL))
	}
	if err := registry.RegisterAgent(linkedin.PlatformName, linkedin.NewLinkedInAgent(logger, linkedInOpts...),
		cfg.LinkedIn.IsEnabled(), agentSettings(cfg.LinkedIn)); err != nil {
		return err
	}

	logger.Info("Default publishing agents registered",
		zap.Strings("platforms", registry.GetSupportedPlatforms()))
	return nil
}

func agentSettings(cfg config.AgentConfig) map[string]string {
	settings := map[string]string{}
	if cfg.BaseURL != "" {
		settings["base_url"] = cfg.BaseURL
	}
	return settings
}
