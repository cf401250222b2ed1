package prune_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/ghcr-prune/internal/ghcr"
	"github.com/temirov/ghcr-prune/internal/prune"
	"github.com/temirov/ghcr-prune/internal/retention"
)

const (
	serviceTestTokenConstant         = "service-test-token"
	serviceTestContainerNameConstant = "demo-image"
	otherContainerNameConstant       = "other-image"
	tokenEnvironmentNameConstant     = "GHCR_TOKEN"
)

var serviceReferenceInstant = time.Date(2026, time.April, 1, 9, 0, 0, 0, time.UTC)

type deletionRecord struct {
	containerName     string
	versionIdentifier int64
}

type stubRegistryClient struct {
	ownedContainers      []string
	versionsByContainer  map[string][]ghcr.PackageVersion
	deletionErrorByID    map[int64]error
	listVersionsError    error
	listContainersError  error
	recordedDeletions    []deletionRecord
	recordedListRequests []string
}

func (client *stubRegistryClient) ListOwnedContainers(executionContext context.Context) ([]string, error) {
	if client.listContainersError != nil {
		return nil, client.listContainersError
	}
	return client.ownedContainers, nil
}

func (client *stubRegistryClient) ListVersions(executionContext context.Context, containerName string) ([]ghcr.PackageVersion, error) {
	client.recordedListRequests = append(client.recordedListRequests, containerName)
	if client.listVersionsError != nil {
		return nil, client.listVersionsError
	}
	return client.versionsByContainer[containerName], nil
}

func (client *stubRegistryClient) DeleteVersion(executionContext context.Context, containerName string, versionIdentifier int64) error {
	client.recordedDeletions = append(client.recordedDeletions, deletionRecord{containerName: containerName, versionIdentifier: versionIdentifier})
	if client.deletionErrorByID != nil {
		if deletionError, exists := client.deletionErrorByID[versionIdentifier]; exists {
			return deletionError
		}
	}
	return nil
}

type stubTokenResolver struct {
	token string
	err   error
}

func (resolver *stubTokenResolver) ResolveToken(resolutionContext context.Context, source prune.TokenSourceConfiguration) (string, error) {
	if resolver.err != nil {
		return "", resolver.err
	}
	return resolver.token, nil
}

func newServiceUnderTest(testInstance *testing.T, registryClient *stubRegistryClient, reportBuffer *bytes.Buffer) *prune.PruneService {
	factory := func(token string) (prune.RegistryClient, error) {
		require.Equal(testInstance, serviceTestTokenConstant, token)
		return registryClient, nil
	}

	service, creationError := prune.NewPruneService(zap.NewNop(), &stubTokenResolver{token: serviceTestTokenConstant}, factory, reportBuffer)
	require.NoError(testInstance, creationError)

	return service.WithClock(func() time.Time { return serviceReferenceInstant })
}

func defaultPruneOptions(containers ...string) prune.PruneOptions {
	return prune.PruneOptions{
		Containers:          containers,
		PruneAgeDays:        7,
		TokenSource:         prune.TokenSourceConfiguration{Type: prune.TokenSourceTypeEnvironment, Reference: tokenEnvironmentNameConstant},
		TagProtectionWindow: retention.DefaultTagProtectionWindow,
	}
}

func oldUntaggedVersion(identifier int64, name string) ghcr.PackageVersion {
	return ghcr.PackageVersion{ID: identifier, Name: name, CreatedAt: serviceReferenceInstant.Add(-30 * 24 * time.Hour)}
}

func TestExecuteDeletesEligibleVersionsInOrder(testInstance *testing.T) {
	testInstance.Parallel()

	registryClient := &stubRegistryClient{versionsByContainer: map[string][]ghcr.PackageVersion{
		serviceTestContainerNameConstant: {
			oldUntaggedVersion(3, "sha256:ccc"),
			oldUntaggedVersion(9, "sha256:iii"),
			{ID: 5, Name: "sha256:eee", CreatedAt: serviceReferenceInstant.Add(-2 * time.Hour)},
		},
	}}
	reportBuffer := &bytes.Buffer{}

	service := newServiceUnderTest(testInstance, registryClient, reportBuffer)

	pruneResult, executionError := service.Execute(context.Background(), defaultPruneOptions(serviceTestContainerNameConstant))
	require.NoError(testInstance, executionError)

	require.Equal(testInstance, 1, pruneResult.ContainersProcessed)
	require.Equal(testInstance, 2, pruneResult.CandidateCount)
	require.Equal(testInstance, 2, pruneResult.DeletedCount)

	require.Equal(testInstance, []deletionRecord{
		{containerName: serviceTestContainerNameConstant, versionIdentifier: 9},
		{containerName: serviceTestContainerNameConstant, versionIdentifier: 3},
	}, registryClient.recordedDeletions)

	expectedReport := "Pruning images of demo-image...\n" +
		"  Deleted:\n" +
		"  sha256:iii\n" +
		"  sha256:ccc\n"
	require.Equal(testInstance, expectedReport, reportBuffer.String())
}

func TestExecuteDryRunSkipsDeletionButReports(testInstance *testing.T) {
	testInstance.Parallel()

	registryClient := &stubRegistryClient{versionsByContainer: map[string][]ghcr.PackageVersion{
		serviceTestContainerNameConstant: {oldUntaggedVersion(4, "sha256:ddd")},
	}}
	reportBuffer := &bytes.Buffer{}

	service := newServiceUnderTest(testInstance, registryClient, reportBuffer)

	pruneOptions := defaultPruneOptions(serviceTestContainerNameConstant)
	pruneOptions.DryRun = true

	pruneResult, executionError := service.Execute(context.Background(), pruneOptions)
	require.NoError(testInstance, executionError)

	require.Empty(testInstance, registryClient.recordedDeletions)
	require.Equal(testInstance, 1, pruneResult.CandidateCount)
	require.Equal(testInstance, 0, pruneResult.DeletedCount)

	expectedReport := "Pruning images of demo-image...\n" +
		"  Would delete:\n" +
		"  sha256:ddd\n"
	require.Equal(testInstance, expectedReport, reportBuffer.String())
}

func TestExecuteOmitsReportHeaderWithoutCandidates(testInstance *testing.T) {
	testInstance.Parallel()

	registryClient := &stubRegistryClient{versionsByContainer: map[string][]ghcr.PackageVersion{
		serviceTestContainerNameConstant: {
			{ID: 2, Name: "sha256:bbb", CreatedAt: serviceReferenceInstant.Add(-30 * 24 * time.Hour), Tags: []string{"latest"}},
		},
	}}
	reportBuffer := &bytes.Buffer{}

	service := newServiceUnderTest(testInstance, registryClient, reportBuffer)

	_, executionError := service.Execute(context.Background(), defaultPruneOptions(serviceTestContainerNameConstant))
	require.NoError(testInstance, executionError)

	require.Equal(testInstance, "Pruning images of demo-image...\n", reportBuffer.String())
}

func TestExecuteExpandsAllSentinel(testInstance *testing.T) {
	testInstance.Parallel()

	registryClient := &stubRegistryClient{
		ownedContainers: []string{otherContainerNameConstant, serviceTestContainerNameConstant},
		versionsByContainer: map[string][]ghcr.PackageVersion{
			serviceTestContainerNameConstant: {oldUntaggedVersion(1, "sha256:aaa")},
			otherContainerNameConstant:       {},
		},
	}
	reportBuffer := &bytes.Buffer{}

	service := newServiceUnderTest(testInstance, registryClient, reportBuffer)

	pruneResult, executionError := service.Execute(context.Background(), defaultPruneOptions(prune.AllContainersSentinel))
	require.NoError(testInstance, executionError)

	require.Equal(testInstance, 2, pruneResult.ContainersProcessed)
	require.Equal(testInstance, []string{otherContainerNameConstant, serviceTestContainerNameConstant}, registryClient.recordedListRequests)
}

func TestExecuteRejectsAllSentinelMixedWithNames(testInstance *testing.T) {
	testInstance.Parallel()

	registryClient := &stubRegistryClient{}
	reportBuffer := &bytes.Buffer{}

	service := newServiceUnderTest(testInstance, registryClient, reportBuffer)

	_, executionError := service.Execute(context.Background(), defaultPruneOptions(prune.AllContainersSentinel, serviceTestContainerNameConstant))
	require.Error(testInstance, executionError)
	require.ErrorContains(testInstance, executionError, "cannot be combined")
	require.Empty(testInstance, registryClient.recordedListRequests)
}

func TestExecuteRequiresContainers(testInstance *testing.T) {
	testInstance.Parallel()

	registryClient := &stubRegistryClient{}
	service := newServiceUnderTest(testInstance, registryClient, &bytes.Buffer{})

	_, executionError := service.Execute(context.Background(), defaultPruneOptions())
	require.Error(testInstance, executionError)
	require.ErrorContains(testInstance, executionError, "at least one container")
}

func TestExecuteStopsAtFirstDeletionFailure(testInstance *testing.T) {
	testInstance.Parallel()

	deletionFailure := errors.New("version already deleted")
	registryClient := &stubRegistryClient{
		versionsByContainer: map[string][]ghcr.PackageVersion{
			serviceTestContainerNameConstant: {
				oldUntaggedVersion(9, "sha256:iii"),
				oldUntaggedVersion(3, "sha256:ccc"),
			},
			otherContainerNameConstant: {oldUntaggedVersion(8, "sha256:hhh")},
		},
		deletionErrorByID: map[int64]error{9: deletionFailure},
	}
	reportBuffer := &bytes.Buffer{}

	service := newServiceUnderTest(testInstance, registryClient, reportBuffer)

	pruneResult, executionError := service.Execute(context.Background(), defaultPruneOptions(serviceTestContainerNameConstant, otherContainerNameConstant))
	require.Error(testInstance, executionError)
	require.ErrorIs(testInstance, executionError, deletionFailure)

	require.Len(testInstance, registryClient.recordedDeletions, 1)
	require.Equal(testInstance, []string{serviceTestContainerNameConstant}, registryClient.recordedListRequests)
	require.Equal(testInstance, 0, pruneResult.DeletedCount)
	require.Equal(testInstance, 0, pruneResult.ContainersProcessed)
}

func TestExecuteFailsBeforeNetworkWhenTokenMissing(testInstance *testing.T) {
	testInstance.Parallel()

	tokenFailure := errors.New("environment variable GHCR_TOKEN is not set")
	registryClient := &stubRegistryClient{}

	factoryInvoked := false
	factory := func(token string) (prune.RegistryClient, error) {
		factoryInvoked = true
		return registryClient, nil
	}

	service, creationError := prune.NewPruneService(zap.NewNop(), &stubTokenResolver{err: tokenFailure}, factory, &bytes.Buffer{})
	require.NoError(testInstance, creationError)

	_, executionError := service.Execute(context.Background(), defaultPruneOptions(serviceTestContainerNameConstant))
	require.Error(testInstance, executionError)
	require.ErrorIs(testInstance, executionError, tokenFailure)
	require.False(testInstance, factoryInvoked)
	require.Empty(testInstance, registryClient.recordedListRequests)
}
