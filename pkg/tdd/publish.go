package tdd

import (
	"github.com/alantheprice/proven/pkg/events"
	"github.com/alantheprice/proven/pkg/types"
)

// Publisher forwards run progress to an event bus
type Publisher struct {
	bus *events.EventBus
}

// NewPublisher returns an Observer publishing to bus
func NewPublisher(bus *events.EventBus) *Publisher {
	return &Publisher{bus: bus}
}

func (p *Publisher) RunStarted(s *RunState) {
	p.bus.Publish(events.EventTypeRunStarted, s.RunID, map[string]any{
		"description": s.Task.Description,
		"name":        s.Task.Name,
		"test_path":   s.Target.TestPath(),
		"source_path": s.Target.SourcePath(),
	})
}

func (p *Publisher) PhaseChanged(s *RunState, t Transition) {
	p.bus.Publish(events.EventTypePhaseChanged, s.RunID, events.PhaseChangedEvent(string(t.From), string(t.To), t.Note))
}

func (p *Publisher) ArtifactGenerated(s *RunState, a types.Artifact) {
	p.bus.Publish(events.EventTypeArtifactGenerated, s.RunID, events.ArtifactEvent(string(a.Kind), a.Path, a.Attempt, a.Content))
}

func (p *Publisher) ExecutionFinished(s *RunState, withImplementation bool, r *types.ExecutionResult) {
	p.bus.Publish(events.EventTypeExecutionCompleted, s.RunID, events.ExecutionCompletedEvent(
		withImplementation, string(r.Status), r.Passed, r.Failed, r.Errors, r.TimedOut, r.Duration))
}

func (p *Publisher) RunFinished(s *RunState) {
	if s.Err != nil && s.Reason != ReasonMaxRetriesExceeded {
		p.bus.Publish(events.EventTypeError, s.RunID, events.ErrorEvent(s.Reason.Describe(), s.Err))
	}
	p.bus.Publish(events.EventTypeRunFinished, s.RunID, events.RunFinishedEvent(string(s.Outcome), string(s.Reason), s.Diagnostic))
}
