package analyzer

import "errors"

var (
	// ErrUnsupportedScheme is returned for document URIs that are not file:// URIs.
	ErrUnsupportedScheme = errors.New("unexpected document scheme in uri")

	// ErrInvalidPosition is returned for negative line or character values.
	ErrInvalidPosition = errors.New("invalid position")

	// ErrAnalyzerStart indicates the analyzer process could not be started.
	ErrAnalyzerStart = errors.New("failed to start analyzer")

	// ErrAnalyzerTimeout indicates the analyzer exceeded its timeout and was killed.
	ErrAnalyzerTimeout = errors.New("analyzer timed out")

	// ErrAnalyzerFailed indicates a non-zero exit without any output.
	ErrAnalyzerFailed = errors.New("analyzer failed")
)
