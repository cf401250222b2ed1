package prune

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/ghcr-prune/internal/ghcr"
	"github.com/temirov/ghcr-prune/internal/retention"
)

const (
	// AllContainersSentinel requests enumeration of every owned container package.
	AllContainersSentinel = "all"

	containerHeaderTemplateConstant          = "Pruning images of %s...\n"
	dryRunReportHeaderConstant               = "  Would delete:\n"
	deletionReportHeaderConstant             = "  Deleted:\n"
	reportLineTemplateConstant               = "  %s\n"
	noContainersErrorMessageConstant         = "at least one container must be provided"
	mixedAllSentinelErrorMessageConstant     = "the all sentinel cannot be combined with named containers"
	tokenResolutionErrorTemplateConstant     = "unable to resolve authentication token: %w"
	containerListingErrorTemplateConstant    = "unable to list owned containers: %w"
	versionListingErrorTemplateConstant      = "unable to list versions of %s: %w"
	versionDeletionErrorTemplateConstant     = "unable to delete version %d of %s: %w"
	nilClientFactoryErrorMessageConstant     = "registry client factory must be provided"
	nilTokenResolverErrorMessageConstant     = "token resolver must be provided"
	containerPrunedInfoMessageConstant       = "container pruned"
	logFieldContainerConstant                = "container"
	logFieldCandidateCountConstant           = "candidate_count"
	logFieldDeletedCountConstant             = "deleted_count"
	logFieldDryRunConstant                   = "dry_run"
	hoursPerDayConstant                      = 24
)

// RegistryClient lists containers and versions and deletes versions by identifier.
type RegistryClient interface {
	ListOwnedContainers(executionContext context.Context) ([]string, error)
	ListVersions(executionContext context.Context, containerName string) ([]ghcr.PackageVersion, error)
	DeleteVersion(executionContext context.Context, containerName string, versionIdentifier int64) error
}

// RegistryClientFactory constructs an authenticated registry client from a resolved token.
type RegistryClientFactory func(token string) (RegistryClient, error)

// PruneOptions carries one invocation's settings.
type PruneOptions struct {
	Containers          []string
	PruneAgeDays        float64
	DryRun              bool
	TokenSource         TokenSourceConfiguration
	TagProtectionWindow time.Duration
}

// PruneResult summarizes one invocation for logging and tests.
type PruneResult struct {
	ContainersProcessed int
	CandidateCount      int
	DeletedCount        int
}

// PruneExecutor runs the prune flow for a set of containers.
type PruneExecutor interface {
	Execute(executionContext context.Context, options PruneOptions) (PruneResult, error)
}

// PruneService orchestrates listing, retention selection, deletion, and reporting.
//
// Containers are processed strictly sequentially; the first failure aborts
// the remaining run.
type PruneService struct {
	logger                *zap.Logger
	tokenResolver         TokenResolver
	registryClientFactory RegistryClientFactory
	reportWriter          io.Writer
	clock                 func() time.Time
}

// NewPruneService validates collaborators and builds a prune service.
func NewPruneService(logger *zap.Logger, tokenResolver TokenResolver, registryClientFactory RegistryClientFactory, reportWriter io.Writer) (*PruneService, error) {
	if tokenResolver == nil {
		return nil, errors.New(nilTokenResolverErrorMessageConstant)
	}
	if registryClientFactory == nil {
		return nil, errors.New(nilClientFactoryErrorMessageConstant)
	}

	resolvedLogger := logger
	if resolvedLogger == nil {
		resolvedLogger = zap.NewNop()
	}

	resolvedReportWriter := reportWriter
	if resolvedReportWriter == nil {
		resolvedReportWriter = os.Stdout
	}

	service := &PruneService{
		logger:                resolvedLogger,
		tokenResolver:         tokenResolver,
		registryClientFactory: registryClientFactory,
		reportWriter:          resolvedReportWriter,
		clock:                 time.Now,
	}

	return service, nil
}

// WithClock overrides the time source; it exists for deterministic tests.
func (service *PruneService) WithClock(clock func() time.Time) *PruneService {
	if clock != nil {
		service.clock = clock
	}
	return service
}

// Execute resolves credentials, expands the container list, and prunes each container in order.
func (service *PruneService) Execute(executionContext context.Context, options PruneOptions) (PruneResult, error) {
	requestedContainers, containerValidationError := validateRequestedContainers(options.Containers)
	if containerValidationError != nil {
		return PruneResult{}, containerValidationError
	}

	resolvedToken, tokenResolutionError := service.tokenResolver.ResolveToken(executionContext, options.TokenSource)
	if tokenResolutionError != nil {
		return PruneResult{}, fmt.Errorf(tokenResolutionErrorTemplateConstant, tokenResolutionError)
	}

	registryClient, clientCreationError := service.registryClientFactory(resolvedToken)
	if clientCreationError != nil {
		return PruneResult{}, clientCreationError
	}

	containerNames := requestedContainers
	if len(requestedContainers) == 1 && requestedContainers[0] == AllContainersSentinel {
		ownedContainers, listingError := registryClient.ListOwnedContainers(executionContext)
		if listingError != nil {
			return PruneResult{}, fmt.Errorf(containerListingErrorTemplateConstant, listingError)
		}
		containerNames = ownedContainers
	}

	tagProtectionWindow := options.TagProtectionWindow
	if tagProtectionWindow <= 0 {
		tagProtectionWindow = retention.DefaultTagProtectionWindow
	}

	pruneResult := PruneResult{}
	for _, containerName := range containerNames {
		containerResult, containerError := service.pruneContainer(executionContext, registryClient, containerName, options, tagProtectionWindow)
		pruneResult.CandidateCount += containerResult.CandidateCount
		pruneResult.DeletedCount += containerResult.DeletedCount
		if containerError != nil {
			return pruneResult, containerError
		}
		pruneResult.ContainersProcessed++
	}

	return pruneResult, nil
}

func (service *PruneService) pruneContainer(executionContext context.Context, registryClient RegistryClient, containerName string, options PruneOptions, tagProtectionWindow time.Duration) (PruneResult, error) {
	fmt.Fprintf(service.reportWriter, containerHeaderTemplateConstant, containerName)

	cutoff := service.clock().Add(-durationFromDays(options.PruneAgeDays))

	packageVersions, listingError := registryClient.ListVersions(executionContext, containerName)
	if listingError != nil {
		return PruneResult{}, fmt.Errorf(versionListingErrorTemplateConstant, containerName, listingError)
	}

	deletionCandidates := retention.SelectForDeletion(packageVersions, cutoff, tagProtectionWindow)

	reportHeader := deletionReportHeaderConstant
	if options.DryRun {
		reportHeader = dryRunReportHeaderConstant
	}

	containerResult := PruneResult{}
	for _, deletionCandidate := range deletionCandidates {
		if !options.DryRun {
			deletionError := registryClient.DeleteVersion(executionContext, containerName, deletionCandidate.ID)
			if deletionError != nil {
				return containerResult, fmt.Errorf(versionDeletionErrorTemplateConstant, deletionCandidate.ID, containerName, deletionError)
			}
			containerResult.DeletedCount++
		}
		if containerResult.CandidateCount == 0 {
			fmt.Fprint(service.reportWriter, reportHeader)
		}
		fmt.Fprintf(service.reportWriter, reportLineTemplateConstant, deletionCandidate.Name)
		containerResult.CandidateCount++
	}

	service.logger.Info(
		containerPrunedInfoMessageConstant,
		zap.String(logFieldContainerConstant, containerName),
		zap.Int(logFieldCandidateCountConstant, containerResult.CandidateCount),
		zap.Int(logFieldDeletedCountConstant, containerResult.DeletedCount),
		zap.Bool(logFieldDryRunConstant, options.DryRun),
	)

	return containerResult, nil
}

func validateRequestedContainers(requestedContainers []string) ([]string, error) {
	sanitizedContainers := make([]string, 0, len(requestedContainers))
	for _, containerCandidate := range requestedContainers {
		trimmedContainer := strings.TrimSpace(containerCandidate)
		if len(trimmedContainer) == 0 {
			continue
		}
		sanitizedContainers = append(sanitizedContainers, trimmedContainer)
	}

	if len(sanitizedContainers) == 0 {
		return nil, errors.New(noContainersErrorMessageConstant)
	}

	if len(sanitizedContainers) > 1 {
		for _, containerName := range sanitizedContainers {
			if containerName == AllContainersSentinel {
				return nil, errors.New(mixedAllSentinelErrorMessageConstant)
			}
		}
	}

	return sanitizedContainers, nil
}

func durationFromDays(days float64) time.Duration {
	return time.Duration(days * hoursPerDayConstant * float64(time.Hour))
}
