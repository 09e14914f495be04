// Package approval is the checkpoint between generating an artifact and
// persisting it. Reviews are requests on a queue that a driver (console,
// websocket client, policy) resolves with a Decision.
package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alantheprice/proven/pkg/types"
)

// ErrInputClosed ends a review whose input ran out before a decision
var ErrInputClosed = errors.New("approval input closed before a decision")

// Action is the reviewer's verdict
type Action string

const (
	Accept     Action = "accept"
	Reject     Action = "reject"
	Regenerate Action = "regenerate"
)

// Decision is the outcome of one review. Note is the rejection reason or
// regeneration feedback and may be empty.
type Decision struct {
	Action Action `json:"action"`
	Note   string `json:"note,omitempty"`
}

// ParseAction accepts full names and the single-letter console shortcuts
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "a", "y", "yes", "accept":
		return Accept, nil
	case "r", "n", "no", "reject":
		return Reject, nil
	case "g", "regen", "regenerate":
		return Regenerate, nil
	}
	return "", fmt.Errorf("unknown approval action %q (use accept, reject or regenerate)", s)
}

// Submission is what the reviewer sees: the new artifact and, when this
// is a retry, the artifact it replaces.
type Submission struct {
	Artifact   types.Artifact
	Superseded *types.Artifact
}

// Gate reviews a submission. Review may block for human input and must
// return ctx's error when ctx ends first, or ErrInputClosed when the
// reviewer's input is gone.
type Gate interface {
	Review(ctx context.Context, s Submission) (Decision, error)
}

// AutoApprove accepts everything without waiting
type AutoApprove struct{}

// Review implements Gate
func (AutoApprove) Review(ctx context.Context, s Submission) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	return Decision{Action: Accept}, nil
}
