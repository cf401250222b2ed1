package prune

import (
	"strings"
	"time"

	"github.com/temirov/ghcr-prune/internal/retention"
)

const (
	defaultTokenSourceValueConstant = "env:GHCR_TOKEN"

	pruneAgeDaysConfigKeySuffixConstant        = ".prune_age_days"
	dryRunConfigKeySuffixConstant              = ".dry_run"
	tokenSourceConfigKeySuffixConstant         = ".token_source"
	baseURLConfigKeySuffixConstant             = ".base_url"
	pageSizeConfigKeySuffixConstant            = ".page_size"
	tagProtectionWindowConfigKeySuffixConstant = ".tag_protection_window"
)

// Configuration aggregates settings for the prune command.
type Configuration struct {
	Prune PruneConfiguration `mapstructure:"prune"`
}

// PruneConfiguration stores defaults merged underneath command-line flags.
type PruneConfiguration struct {
	PruneAgeDays        float64       `mapstructure:"prune_age_days"`
	DryRun              bool          `mapstructure:"dry_run"`
	TokenSource         string        `mapstructure:"token_source"`
	ServiceBaseURL      string        `mapstructure:"base_url"`
	PageSize            int           `mapstructure:"page_size"`
	TagProtectionWindow time.Duration `mapstructure:"tag_protection_window"`
}

// DefaultConfiguration supplies baseline values for prune configuration.
func DefaultConfiguration() Configuration {
	return Configuration{
		Prune: PruneConfiguration{
			TokenSource:         defaultTokenSourceValueConstant,
			TagProtectionWindow: retention.DefaultTagProtectionWindow,
		},
	}
}

// DefaultConfigurationValues exposes prune defaults keyed for the configuration loader.
func DefaultConfigurationValues(configurationKeyPrefix string) map[string]any {
	return map[string]any{
		configurationKeyPrefix + tokenSourceConfigKeySuffixConstant:         defaultTokenSourceValueConstant,
		configurationKeyPrefix + tagProtectionWindowConfigKeySuffixConstant: retention.DefaultTagProtectionWindow.String(),
	}
}

// Sanitize trims configured values and restores required defaults.
func (configuration Configuration) Sanitize() Configuration {
	sanitized := configuration
	sanitized.Prune = configuration.Prune.Sanitize()
	return sanitized
}

// Sanitize trims prune configuration values and restores required defaults.
func (configuration PruneConfiguration) Sanitize() PruneConfiguration {
	sanitized := configuration
	sanitized.TokenSource = strings.TrimSpace(configuration.TokenSource)
	if len(sanitized.TokenSource) == 0 {
		sanitized.TokenSource = defaultTokenSourceValueConstant
	}
	sanitized.ServiceBaseURL = strings.TrimSpace(configuration.ServiceBaseURL)
	if sanitized.PageSize < 0 {
		sanitized.PageSize = 0
	}
	if sanitized.TagProtectionWindow <= 0 {
		sanitized.TagProtectionWindow = retention.DefaultTagProtectionWindow
	}
	return sanitized
}
