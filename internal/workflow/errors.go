// File: internal/workflow/errors.go
package workflow

import "fmt"

// FailureKind classifies why an attempt failed. Every kind is fatal to the
// current attempt; all of them except exhaustion of the acquisition chain
// point at the page or the network rather than the local environment, and
// all are recoverable through the retry policy.
type FailureKind string

const (
	FailDriverUnavailable FailureKind = "DriverUnavailable"
	FailPageLoad          FailureKind = "PageLoadTimeout"
	FailInputNotFound     FailureKind = "InputNotFound"
	FailSubmit            FailureKind = "SubmitFailed"
	FailResults           FailureKind = "ResultsTimeout"
)

// Stage names, in workflow order.
const (
	StageAcquire      = "acquire"
	StageLaunch       = "launch"
	StageLocateInput  = "locate_input"
	StageSelectOption = "select_option"
	StageFill         = "fill"
	StageSubmit       = "submit"
	StageAwaitResults = "await_results"
	StageHandoff      = "handoff"
)

// AttemptError is the failure of one attempt, annotated with the stage that
// produced it and its classification.
type AttemptError struct {
	Kind  FailureKind
	Stage string
	Err   error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("stage %s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }
