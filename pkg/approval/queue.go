package approval

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Request is one pending review
type Request struct {
	ID         string
	Submission Submission
	Created    time.Time

	once     sync.Once
	decision Decision
	err      error
	done     chan struct{}
}

// Resolve answers the request. Only the first call has an effect; it
// reports whether this call was the one that resolved it.
func (r *Request) Resolve(d Decision) bool {
	resolved := false
	r.once.Do(func() {
		r.decision = d
		close(r.done)
		resolved = true
	})
	return resolved
}

// Abandon ends the request without a decision; Review returns err.
// Like Resolve, only the first call has an effect.
func (r *Request) Abandon(err error) bool {
	abandoned := false
	r.once.Do(func() {
		r.err = err
		close(r.done)
		abandoned = true
	})
	return abandoned
}

// Err is the reason the request was abandoned, nil when it was resolved
func (r *Request) Err() error {
	<-r.done
	return r.err
}

// Done is closed once the request has been resolved or abandoned
func (r *Request) Done() <-chan struct{} { return r.done }

// Decision is the answer, valid once Done is closed
func (r *Request) Decision() Decision {
	<-r.done
	return r.decision
}

// Queue implements Gate as a request/response boundary. Drivers receive
// requests from Requests() or by ID and resolve them.
type Queue struct {
	mu       sync.Mutex
	pending  map[string]*Request
	requests chan *Request
	notify   []func(*Request)
}

// NewQueue creates a queue whose Requests channel holds buffer requests
func NewQueue(buffer int) *Queue {
	return &Queue{
		pending:  make(map[string]*Request),
		requests: make(chan *Request, buffer),
	}
}

// OnRequest registers fn to be called for every new request. It runs on
// the reviewing goroutine and must not block.
func (q *Queue) OnRequest(fn func(*Request)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.notify = append(q.notify, fn)
}

// Requests delivers new requests to a single driver
func (q *Queue) Requests() <-chan *Request { return q.requests }

// Review implements Gate
func (q *Queue) Review(ctx context.Context, s Submission) (Decision, error) {
	req := &Request{
		ID:         uuid.NewString(),
		Submission: s,
		Created:    time.Now(),
		done:       make(chan struct{}),
	}

	q.mu.Lock()
	q.pending[req.ID] = req
	notify := append([]func(*Request){}, q.notify...)
	q.mu.Unlock()
	defer q.forget(req.ID)

	for _, fn := range notify {
		fn(req)
	}

	select {
	case q.requests <- req:
	case <-req.done:
	case <-ctx.Done():
		req.Abandon(ctx.Err())
		return Decision{}, ctx.Err()
	}

	select {
	case <-req.done:
		if req.err != nil {
			return Decision{}, req.err
		}
		return req.decision, nil
	case <-ctx.Done():
		// Close done so drivers stop waiting on this request
		req.Abandon(ctx.Err())
		return Decision{}, ctx.Err()
	}
}

// Resolve answers a pending request by ID
func (q *Queue) Resolve(id string, d Decision) error {
	q.mu.Lock()
	req, ok := q.pending[id]
	q.mu.Unlock()
	if !ok {
		return fmt.Errorf("no pending approval request %q", id)
	}
	if !req.Resolve(d) {
		return fmt.Errorf("approval request %q was already resolved", id)
	}
	return nil
}

// Pending lists unresolved requests, oldest first
func (q *Queue) Pending() []*Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Request, 0, len(q.pending))
	for _, r := range q.pending {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out
}

func (q *Queue) forget(id string) {
	q.mu.Lock()
	delete(q.pending, id)
	q.mu.Unlock()
}
