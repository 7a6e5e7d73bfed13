package analyzer

import "fmt"

// FailureKind classifies why an analysis produced no blueprint.
type FailureKind string

const (
	// FailureService covers transport, auth, quota and timeout problems.
	FailureService FailureKind = "service_error"
	// FailureEmptyResponse means the service answered with no text at all.
	FailureEmptyResponse FailureKind = "empty_response"
	// FailureMalformedOutput means text came back but did not parse or
	// validate as a blueprint.
	FailureMalformedOutput FailureKind = "malformed_output"
)

// Error is the classified analysis failure surfaced to callers. RawText keeps
// the unparseable response for diagnostics; Safety marks an empty response
// that the service attributed to its safety filter.
type Error struct {
	Kind    FailureKind
	Safety  bool
	RawText string
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case FailureEmptyResponse:
		if e.Safety {
			return "analyzer: request blocked by safety filter"
		}
		return "analyzer: service returned an empty response"
	case FailureMalformedOutput:
		if e.Err != nil {
			return fmt.Sprintf("analyzer: response is not a valid blueprint: %v", e.Err)
		}
		return "analyzer: response is not a valid blueprint"
	default:
		if e.Err != nil {
			return fmt.Sprintf("analyzer: %v", e.Err)
		}
		return "analyzer: analysis failed"
	}
}

func (e *Error) Unwrap() error { return e.Err }

func serviceError(err error) *Error {
	return &Error{Kind: FailureService, Err: err}
}
