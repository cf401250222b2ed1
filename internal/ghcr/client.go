package ghcr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultServiceBaseURLConstant           = "https://api.github.com"
	defaultPageSizeConstant                 = 100
	maximumPageSizeConstant                 = 100
	defaultRequestTimeoutConstant           = 30 * time.Second
	acceptHeaderNameConstant                = "Accept"
	acceptHeaderValueConstant               = "application/vnd.github+json"
	authorizationHeaderNameConstant         = "Authorization"
	authorizationHeaderTemplateConstant     = "Bearer %s"
	ownedPackagesPathConstant               = "/user/packages"
	containerVersionsPathTemplateConstant   = "/user/packages/container/%s/versions"
	versionDeletionPathTemplateConstant     = "/user/packages/container/%s/versions/%d"
	packageTypeQueryParameterConstant       = "package_type"
	containerPackageTypeValueConstant       = "container"
	pageQueryParameterConstant              = "page"
	perPageQueryParameterConstant           = "per_page"
	missingTokenErrorMessageConstant        = "authentication token must be provided"
	requestCreationErrorTemplateConstant    = "unable to create request for %s: %w"
	requestExecutionErrorTemplateConstant   = "request to %s failed: %w"
	responseDecodingErrorTemplateConstant   = "unable to decode response from %s: %w"
	apiErrorMessageTemplateConstant         = "%s %s returned status %d: %s"
	apiErrorFallbackMessageConstant         = "request rejected"
	versionListedDebugMessageConstant       = "listed container versions"
	containerListedDebugMessageConstant     = "listed owned containers"
	versionDeletedDebugMessageConstant      = "deleted container version"
	logFieldContainerConstant               = "container"
	logFieldVersionCountConstant            = "version_count"
	logFieldContainerCountConstant          = "container_count"
	logFieldVersionIdentifierConstant       = "version_id"
	responseBodyInspectionLimitConstant     = 8192
	deleteExpectedStatusNoContentConstant   = http.StatusNoContent
	deleteAcceptableStatusAcceptedConstant  = http.StatusAccepted
	deleteAcceptableStatusOKConstant        = http.StatusOK
	pageSizeFloorConstant                   = 1
)

// HTTPClient abstracts the transport used for GitHub API calls.
type HTTPClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// ServiceConfiguration customizes the PackageVersionService endpoints and paging.
type ServiceConfiguration struct {
	BaseURL  string
	PageSize int
	Token    string
}

// APIError describes a GitHub REST API rejection.
type APIError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Message    string
}

// Error renders the API failure with its endpoint and status code.
func (apiError *APIError) Error() string {
	message := apiError.Message
	if len(strings.TrimSpace(message)) == 0 {
		message = apiErrorFallbackMessageConstant
	}
	return fmt.Sprintf(apiErrorMessageTemplateConstant, apiError.Method, apiError.Endpoint, apiError.StatusCode, message)
}

// PackageVersionService lists and deletes GHCR container package versions.
//
// The authorization header is fixed at construction time and every request
// reuses the same underlying HTTP client connection pool.
type PackageVersionService struct {
	logger              *zap.Logger
	httpClient          HTTPClient
	serviceBaseURL      string
	pageSize            int
	authorizationHeader string
}

// NewPackageVersionService validates the configuration and builds a service instance.
func NewPackageVersionService(logger *zap.Logger, httpClient HTTPClient, configuration ServiceConfiguration) (*PackageVersionService, error) {
	trimmedToken := strings.TrimSpace(configuration.Token)
	if len(trimmedToken) == 0 {
		return nil, errors.New(missingTokenErrorMessageConstant)
	}

	resolvedLogger := logger
	if resolvedLogger == nil {
		resolvedLogger = zap.NewNop()
	}

	resolvedHTTPClient := httpClient
	if resolvedHTTPClient == nil {
		resolvedHTTPClient = &http.Client{Timeout: defaultRequestTimeoutConstant}
	}

	resolvedBaseURL := strings.TrimSuffix(strings.TrimSpace(configuration.BaseURL), "/")
	if len(resolvedBaseURL) == 0 {
		resolvedBaseURL = defaultServiceBaseURLConstant
	}

	resolvedPageSize := configuration.PageSize
	if resolvedPageSize < pageSizeFloorConstant {
		resolvedPageSize = defaultPageSizeConstant
	}
	if resolvedPageSize > maximumPageSizeConstant {
		resolvedPageSize = maximumPageSizeConstant
	}

	service := &PackageVersionService{
		logger:              resolvedLogger,
		httpClient:          resolvedHTTPClient,
		serviceBaseURL:      resolvedBaseURL,
		pageSize:            resolvedPageSize,
		authorizationHeader: fmt.Sprintf(authorizationHeaderTemplateConstant, trimmedToken),
	}

	return service, nil
}

// ListOwnedContainers returns the sorted names of all container packages owned by the caller.
func (service *PackageVersionService) ListOwnedContainers(executionContext context.Context) ([]string, error) {
	containerNames := []string{}

	for pageNumber := 1; ; pageNumber++ {
		endpoint := service.buildEndpoint(ownedPackagesPathConstant, url.Values{
			packageTypeQueryParameterConstant: []string{containerPackageTypeValueConstant},
			pageQueryParameterConstant:        []string{fmt.Sprintf("%d", pageNumber)},
			perPageQueryParameterConstant:     []string{fmt.Sprintf("%d", service.pageSize)},
		})

		pagePayloads := []containerPackagePayload{}
		if requestError := service.executeJSONRequest(executionContext, http.MethodGet, endpoint, &pagePayloads); requestError != nil {
			return nil, requestError
		}

		for _, packagePayload := range pagePayloads {
			containerNames = append(containerNames, packagePayload.Name)
		}

		if len(pagePayloads) < service.pageSize {
			break
		}
	}

	sort.Strings(containerNames)

	service.logger.Debug(containerListedDebugMessageConstant, zap.Int(logFieldContainerCountConstant, len(containerNames)))

	return containerNames, nil
}

// ListVersions returns every version of the named container package, tagged and untagged.
func (service *PackageVersionService) ListVersions(executionContext context.Context, containerName string) ([]PackageVersion, error) {
	versionsPath := fmt.Sprintf(containerVersionsPathTemplateConstant, url.PathEscape(containerName))
	packageVersions := []PackageVersion{}

	for pageNumber := 1; ; pageNumber++ {
		endpoint := service.buildEndpoint(versionsPath, url.Values{
			pageQueryParameterConstant:    []string{fmt.Sprintf("%d", pageNumber)},
			perPageQueryParameterConstant: []string{fmt.Sprintf("%d", service.pageSize)},
		})

		pagePayloads := []packageVersionPayload{}
		if requestError := service.executeJSONRequest(executionContext, http.MethodGet, endpoint, &pagePayloads); requestError != nil {
			return nil, requestError
		}

		for _, versionPayload := range pagePayloads {
			packageVersions = append(packageVersions, versionPayload.toPackageVersion())
		}

		if len(pagePayloads) < service.pageSize {
			break
		}
	}

	service.logger.Debug(
		versionListedDebugMessageConstant,
		zap.String(logFieldContainerConstant, containerName),
		zap.Int(logFieldVersionCountConstant, len(packageVersions)),
	)

	return packageVersions, nil
}

// DeleteVersion removes one version of the named container package by identifier.
func (service *PackageVersionService) DeleteVersion(executionContext context.Context, containerName string, versionIdentifier int64) error {
	deletionPath := fmt.Sprintf(versionDeletionPathTemplateConstant, url.PathEscape(containerName), versionIdentifier)
	endpoint := service.buildEndpoint(deletionPath, nil)

	if requestError := service.executeJSONRequest(executionContext, http.MethodDelete, endpoint, nil); requestError != nil {
		return requestError
	}

	service.logger.Debug(
		versionDeletedDebugMessageConstant,
		zap.String(logFieldContainerConstant, containerName),
		zap.Int64(logFieldVersionIdentifierConstant, versionIdentifier),
	)

	return nil
}

func (service *PackageVersionService) buildEndpoint(path string, queryValues url.Values) string {
	endpoint := service.serviceBaseURL + path
	if len(queryValues) > 0 {
		endpoint = endpoint + "?" + queryValues.Encode()
	}
	return endpoint
}

func (service *PackageVersionService) executeJSONRequest(executionContext context.Context, method string, endpoint string, target any) error {
	request, requestCreationError := http.NewRequestWithContext(executionContext, method, endpoint, nil)
	if requestCreationError != nil {
		return fmt.Errorf(requestCreationErrorTemplateConstant, endpoint, requestCreationError)
	}

	request.Header.Set(acceptHeaderNameConstant, acceptHeaderValueConstant)
	request.Header.Set(authorizationHeaderNameConstant, service.authorizationHeader)

	response, requestExecutionError := service.httpClient.Do(request)
	if requestExecutionError != nil {
		return fmt.Errorf(requestExecutionErrorTemplateConstant, endpoint, requestExecutionError)
	}
	defer func() {
		_ = response.Body.Close()
	}()

	if !statusIndicatesSuccess(method, response.StatusCode) {
		return service.buildAPIError(method, endpoint, response)
	}

	if target == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, responseBodyInspectionLimitConstant))
		return nil
	}

	if decodeError := json.NewDecoder(response.Body).Decode(target); decodeError != nil {
		return fmt.Errorf(responseDecodingErrorTemplateConstant, endpoint, decodeError)
	}

	return nil
}

func statusIndicatesSuccess(method string, statusCode int) bool {
	if method == http.MethodDelete {
		switch statusCode {
		case deleteExpectedStatusNoContentConstant, deleteAcceptableStatusAcceptedConstant, deleteAcceptableStatusOKConstant:
			return true
		default:
			return false
		}
	}
	return statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices
}

func (service *PackageVersionService) buildAPIError(method string, endpoint string, response *http.Response) error {
	apiError := &APIError{
		Method:     method,
		Endpoint:   endpoint,
		StatusCode: response.StatusCode,
	}

	bodyBytes, readError := io.ReadAll(io.LimitReader(response.Body, responseBodyInspectionLimitConstant))
	if readError == nil {
		messagePayload := struct {
			Message string `json:"message"`
		}{}
		if unmarshalError := json.Unmarshal(bodyBytes, &messagePayload); unmarshalError == nil {
			apiError.Message = messagePayload.Message
		}
	}

	return apiError
}
