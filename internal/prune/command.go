package prune

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/ghcr-prune/internal/ghcr"
)

const (
	pruneCommandUseConstant               = "ghcr-prune [flags] container [container ...]"
	pruneCommandShortDescriptionConstant  = "Prune old untagged GHCR container versions"
	pruneCommandLongDescriptionConstant   = "ghcr-prune deletes untagged container versions older than the prune age from GitHub Container Registry packages. Pass the literal container name all to prune every owned container package."
	commandExecutionErrorTemplateConstant = "prune failed: %w"
	pruneAgeFlagNameConstant              = "prune-age"
	pruneAgeFlagDescriptionConstant       = "Delete untagged versions older than this many days"
	dryRunFlagNameConstant                = "dry-run"
	dryRunFlagShorthandConstant           = "n"
	dryRunFlagDescriptionConstant         = "List versions that would be deleted without deleting them"
	tokenSourceFlagNameConstant           = "token-source"
	tokenSourceFlagDescriptionConstant    = "Token source (env:NAME or file:/path)"
	pruneAgeMissingErrorMessageConstant   = "prune age in days must be provided"
	tokenSourceParseErrorTemplateConstant = "invalid token source: %w"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current prune configuration.
type ConfigurationProvider func() Configuration

// PruneServiceResolver creates prune executors for the command.
type PruneServiceResolver interface {
	Resolve(logger *zap.Logger) (PruneExecutor, error)
}

// CommandBuilder assembles the prune root command.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	ServiceResolver       PruneServiceResolver
	HTTPClient            ghcr.HTTPClient
	ServiceBaseURL        string
	PageSize              int
	EnvironmentLookup     EnvironmentLookup
	FileReader            FileReader
	TokenResolver         TokenResolver
	ReportWriter          io.Writer
}

// Build constructs the prune command with its flag set.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	pruneCommand := &cobra.Command{
		Use:   pruneCommandUseConstant,
		Short: pruneCommandShortDescriptionConstant,
		Long:  pruneCommandLongDescriptionConstant,
		Args:  cobra.MinimumNArgs(1),
		RunE:  builder.runPrune,
	}

	pruneCommand.Flags().Float64(pruneAgeFlagNameConstant, 0, pruneAgeFlagDescriptionConstant)
	pruneCommand.Flags().BoolP(dryRunFlagNameConstant, dryRunFlagShorthandConstant, false, dryRunFlagDescriptionConstant)
	pruneCommand.Flags().String(tokenSourceFlagNameConstant, "", tokenSourceFlagDescriptionConstant)

	return pruneCommand, nil
}

func (builder *CommandBuilder) runPrune(command *cobra.Command, arguments []string) error {
	pruneOptions, optionsError := builder.parsePruneOptions(command, arguments)
	if optionsError != nil {
		return optionsError
	}

	logger := builder.resolveLogger()
	pruneService, serviceError := builder.resolvePruneService(logger)
	if serviceError != nil {
		return serviceError
	}

	_, executionError := pruneService.Execute(command.Context(), pruneOptions)
	if executionError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, executionError)
	}

	return nil
}

func (builder *CommandBuilder) parsePruneOptions(command *cobra.Command, arguments []string) (PruneOptions, error) {
	configuration := builder.resolveConfiguration()

	pruneAgeValue := configuration.Prune.PruneAgeDays
	if command.Flags().Changed(pruneAgeFlagNameConstant) {
		flagPruneAgeValue, pruneAgeFlagError := command.Flags().GetFloat64(pruneAgeFlagNameConstant)
		if pruneAgeFlagError != nil {
			return PruneOptions{}, pruneAgeFlagError
		}
		pruneAgeValue = flagPruneAgeValue
	} else if configuration.Prune.PruneAgeDays == 0 {
		return PruneOptions{}, fmt.Errorf(pruneAgeMissingErrorMessageConstant)
	}

	dryRunValue := configuration.Prune.DryRun
	if command.Flags().Changed(dryRunFlagNameConstant) {
		flagDryRunValue, dryRunFlagError := command.Flags().GetBool(dryRunFlagNameConstant)
		if dryRunFlagError != nil {
			return PruneOptions{}, dryRunFlagError
		}
		dryRunValue = flagDryRunValue
	}

	tokenSourceFlagValue, tokenSourceFlagError := command.Flags().GetString(tokenSourceFlagNameConstant)
	if tokenSourceFlagError != nil {
		return PruneOptions{}, tokenSourceFlagError
	}
	tokenSourceValue := selectStringValue(tokenSourceFlagValue, configuration.Prune.TokenSource)
	parsedTokenSource, tokenParseError := ParseTokenSource(tokenSourceValue)
	if tokenParseError != nil {
		return PruneOptions{}, fmt.Errorf(tokenSourceParseErrorTemplateConstant, tokenParseError)
	}

	pruneOptions := PruneOptions{
		Containers:          arguments,
		PruneAgeDays:        pruneAgeValue,
		DryRun:              dryRunValue,
		TokenSource:         parsedTokenSource,
		TagProtectionWindow: configuration.Prune.TagProtectionWindow,
	}

	return pruneOptions, nil
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}

	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}

	return logger
}

func (builder *CommandBuilder) resolveConfiguration() Configuration {
	configuration := DefaultConfiguration()
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}
	configuration = configuration.Sanitize()

	trimmedServiceBaseURL := strings.TrimSpace(builder.ServiceBaseURL)
	if len(trimmedServiceBaseURL) == 0 {
		trimmedServiceBaseURL = configuration.Prune.ServiceBaseURL
	}
	builder.ServiceBaseURL = trimmedServiceBaseURL

	if builder.PageSize <= 0 && configuration.Prune.PageSize > 0 {
		builder.PageSize = configuration.Prune.PageSize
	}

	return configuration
}

func (builder *CommandBuilder) resolvePruneService(logger *zap.Logger) (PruneExecutor, error) {
	if builder.ServiceResolver != nil {
		return builder.ServiceResolver.Resolve(logger)
	}

	defaultResolver := &DefaultPruneServiceResolver{
		HTTPClient:        builder.HTTPClient,
		ServiceBaseURL:    builder.ServiceBaseURL,
		PageSize:          builder.PageSize,
		EnvironmentLookup: builder.EnvironmentLookup,
		FileReader:        builder.FileReader,
		TokenResolver:     builder.TokenResolver,
		ReportWriter:      builder.ReportWriter,
	}

	return defaultResolver.Resolve(logger)
}

func selectStringValue(flagValue string, configurationValue string) string {
	trimmedFlagValue := strings.TrimSpace(flagValue)
	if len(trimmedFlagValue) > 0 {
		return trimmedFlagValue
	}

	return strings.TrimSpace(configurationValue)
}
