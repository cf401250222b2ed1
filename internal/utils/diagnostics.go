package utils

import (
	"errors"
	"net"
	"net/url"
	"strings"
)

// SimplifyErrorMessage renders a best-effort single-line diagnostic for an error.
//
// Transport failures wrapped by net/http bury the interesting cause inside
// url.Error and net.OpError layers; this peels those layers for the message
// only. The typed error chain itself is left untouched for callers that
// inspect it with errors.Is or errors.As.
func SimplifyErrorMessage(candidateError error) string {
	if candidateError == nil {
		return ""
	}

	var urlError *url.Error
	if errors.As(candidateError, &urlError) && urlError.Err != nil {
		var operationError *net.OpError
		if errors.As(urlError.Err, &operationError) && operationError.Err != nil {
			return strings.TrimSpace(operationError.Err.Error())
		}
		return strings.TrimSpace(urlError.Err.Error())
	}

	return strings.TrimSpace(candidateError.Error())
}
