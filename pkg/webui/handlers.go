package webui

import (
	"net/http"
	"time"

	"github.com/alantheprice/proven/pkg/approval"
)

// pendingApproval is the API view of a queue request
type pendingApproval struct {
	RequestID string    `json:"request_id"`
	Kind      string    `json:"kind"`
	Path      string    `json:"path"`
	Attempt   int       `json:"attempt"`
	Content   string    `json:"content"`
	Previous  string    `json:"previous,omitempty"`
	Created   time.Time `json:"created"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"uptime":          time.Since(s.startTime).String(),
		"connections":     s.countConnections(),
		"remote_approval": s.remoteApproval,
	})
}

// handleAPIApprovals lists pending requests so a client that connects
// mid-review can catch up
func (s *Server) handleAPIApprovals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	out := []pendingApproval{}
	if s.queue != nil {
		for _, req := range s.queue.Pending() {
			out = append(out, toPending(req))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func toPending(req *approval.Request) pendingApproval {
	a := req.Submission.Artifact
	p := pendingApproval{
		RequestID: req.ID,
		Kind:      string(a.Kind),
		Path:      a.Path,
		Attempt:   a.Attempt,
		Content:   a.Content,
		Created:   req.Created,
	}
	if prev := req.Submission.Superseded; prev != nil {
		p.Previous = prev.Content
	}
	return p
}
