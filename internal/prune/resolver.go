package prune

import (
	"io"

	"go.uber.org/zap"

	"github.com/temirov/ghcr-prune/internal/ghcr"
)

// DefaultPruneServiceResolver builds prune services backed by the GHCR REST API.
type DefaultPruneServiceResolver struct {
	HTTPClient        ghcr.HTTPClient
	ServiceBaseURL    string
	PageSize          int
	EnvironmentLookup EnvironmentLookup
	FileReader        FileReader
	TokenResolver     TokenResolver
	ReportWriter      io.Writer
}

// Resolve creates a prune executor using configured collaborators or sensible defaults.
func (resolver *DefaultPruneServiceResolver) Resolve(logger *zap.Logger) (PruneExecutor, error) {
	resolvedTokenResolver := resolver.TokenResolver
	if resolvedTokenResolver == nil {
		resolvedTokenResolver = NewTokenResolver(resolver.EnvironmentLookup, resolver.FileReader)
	}

	registryClientFactory := func(token string) (RegistryClient, error) {
		serviceConfiguration := ghcr.ServiceConfiguration{
			BaseURL:  resolver.ServiceBaseURL,
			PageSize: resolver.PageSize,
			Token:    token,
		}
		return ghcr.NewPackageVersionService(logger, resolver.HTTPClient, serviceConfiguration)
	}

	pruneService, serviceCreationError := NewPruneService(logger, resolvedTokenResolver, registryClientFactory, resolver.ReportWriter)
	if serviceCreationError != nil {
		return nil, serviceCreationError
	}

	return pruneService, nil
}
