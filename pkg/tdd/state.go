package tdd

import (
	"fmt"
	"time"

	"github.com/alantheprice/proven/pkg/execution"
	"github.com/alantheprice/proven/pkg/types"
)

// Phase is the state machine position of a run
type Phase string

const (
	RedPending         Phase = "RedPending"
	RedApproved        Phase = "RedApproved"
	RedVerifiedFailing Phase = "RedVerifiedFailing"
	RedRejected        Phase = "RedRejected"
	GreenPending       Phase = "GreenPending"
	GreenApproved      Phase = "GreenApproved"
	GreenRetrying      Phase = "GreenRetrying"
	Done               Phase = "Done"
	Aborted            Phase = "Aborted"
)

// transitions lists the legal moves out of each phase
var transitions = map[Phase][]Phase{
	RedPending:         {RedApproved, RedRejected, Aborted},
	RedRejected:        {RedPending, Aborted},
	RedApproved:        {RedVerifiedFailing, RedPending, Aborted},
	RedVerifiedFailing: {GreenPending, Aborted},
	GreenPending:       {GreenApproved, GreenPending, Aborted},
	GreenApproved:      {Done, GreenRetrying, Aborted},
	GreenRetrying:      {GreenPending, Aborted},
}

// CanTransition reports whether from -> to is a legal move
func CanTransition(from, to Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible
func (p Phase) Terminal() bool { return p == Done || p == Aborted }

// AbortReason says why a run ended without passing tests
type AbortReason string

const (
	ReasonGenerationRejected AbortReason = "generation-rejected"
	ReasonRedDidNotFail      AbortReason = "red-phase-did-not-fail"
	ReasonMaxRetriesExceeded AbortReason = "max-retries-exceeded"
	ReasonUserCancelled      AbortReason = "user-cancelled"
	ReasonTimeout            AbortReason = "timeout"
	ReasonGenerationFailed   AbortReason = "generation-failed"
	ReasonToolchainMissing   AbortReason = "toolchain-missing"
	ReasonExecutionFailed    AbortReason = "execution-failed"
	ReasonPersistFailed      AbortReason = "persist-failed"
)

// Process exit codes
const (
	ExitDone               = 0
	ExitUsage              = 1
	ExitGenerationRejected = 2
	ExitRedDidNotFail      = 3
	ExitMaxRetriesExceeded = 4
	ExitGenerationFailed   = 5
	ExitToolchainMissing   = 6
	ExitTimeout            = 7
	ExitPersistFailed      = 8
	ExitExecutionFailed    = 9
	ExitUserCancelled      = 130
)

// ExitCode maps an abort reason to the process exit status
func (r AbortReason) ExitCode() int {
	switch r {
	case ReasonGenerationRejected:
		return ExitGenerationRejected
	case ReasonRedDidNotFail:
		return ExitRedDidNotFail
	case ReasonMaxRetriesExceeded:
		return ExitMaxRetriesExceeded
	case ReasonGenerationFailed:
		return ExitGenerationFailed
	case ReasonToolchainMissing:
		return ExitToolchainMissing
	case ReasonTimeout:
		return ExitTimeout
	case ReasonPersistFailed:
		return ExitPersistFailed
	case ReasonExecutionFailed:
		return ExitExecutionFailed
	case ReasonUserCancelled:
		return ExitUserCancelled
	}
	return ExitUsage
}

// Describe is a one-line human explanation of the reason
func (r AbortReason) Describe() string {
	switch r {
	case ReasonGenerationRejected:
		return "generated artifacts were rejected too many times"
	case ReasonRedDidNotFail:
		return "generated tests kept passing or erroring without an implementation"
	case ReasonMaxRetriesExceeded:
		return "implementation still failed the tests after the maximum number of retries"
	case ReasonUserCancelled:
		return "run cancelled by the user"
	case ReasonTimeout:
		return "run exceeded its time budget"
	case ReasonGenerationFailed:
		return "the generation service returned an unrecoverable error"
	case ReasonToolchainMissing:
		return "the test toolchain is not installed"
	case ReasonExecutionFailed:
		return "the test runner could not be executed"
	case ReasonPersistFailed:
		return "an artifact could not be written to disk"
	}
	return string(r)
}

// Outcome is the terminal result of a run, empty while it is running
type Outcome string

const (
	OutcomeDone    Outcome = "done"
	OutcomeAborted Outcome = "aborted"
)

// Transition is one entry of a run's history
type Transition struct {
	From Phase     `json:"from"`
	To   Phase     `json:"to"`
	At   time.Time `json:"at"`
	Note string    `json:"note,omitempty"`
}

// RunState is the working record of one run. The engine owns it; observers
// may read it during a callback but must not keep or modify it.
type RunState struct {
	RunID  string
	Task   types.Task
	Target execution.Target
	Phase  Phase

	// RedAttempts counts test generations
	RedAttempts int
	// ImplAttempts counts implementation generations, including ones the
	// reviewer turned down; it numbers implementation artifacts
	ImplAttempts int
	// GreenAttempts counts implementation executions that did not pass
	GreenAttempts int
	// GreenRejections counts reviews turned down for the current implementation attempt
	GreenRejections int

	Test           *types.Artifact
	Implementation *types.Artifact
	Artifacts      []types.Artifact
	LastResult     *types.ExecutionResult
	Feedback       []types.Feedback
	History        []Transition

	// Executions records, in order, whether each test run had an implementation
	Executions []bool

	Outcome    Outcome
	Reason     AbortReason
	Diagnostic string
	Err        error

	StartedAt  time.Time
	FinishedAt time.Time
}

// ExitCode is the process exit status for the run's outcome
func (s *RunState) ExitCode() int {
	switch s.Outcome {
	case OutcomeDone:
		return ExitDone
	case OutcomeAborted:
		return s.Reason.ExitCode()
	}
	return ExitUsage
}

// Summary renders the outcome on one line
func (s *RunState) Summary() string {
	switch s.Outcome {
	case OutcomeDone:
		passed := 0
		if s.LastResult != nil {
			passed = s.LastResult.Passed
		}
		return fmt.Sprintf("done: %d tests passing after %d implementation run(s)", passed, s.GreenAttempts+1)
	case OutcomeAborted:
		return fmt.Sprintf("aborted (%s): %s", s.Reason, s.Reason.Describe())
	}
	return fmt.Sprintf("running (%s)", s.Phase)
}

// superseded returns the artifact of a's kind generated just before a
func (s *RunState) superseded(a types.Artifact) *types.Artifact {
	seen := false
	for i := len(s.Artifacts) - 1; i >= 0; i-- {
		if s.Artifacts[i].Kind != a.Kind {
			continue
		}
		if seen {
			prev := s.Artifacts[i]
			return &prev
		}
		seen = true
	}
	return nil
}
