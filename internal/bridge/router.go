package bridge

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type pendingResult struct {
	msg Message
	err error
}

// pendingRequest is one outstanding logical request. The result channel is
// buffered so the router never blocks on a caller, and an entry is removed
// from the table at the instant it resolves, which makes double resolution
// impossible.
type pendingRequest struct {
	id      uuid.UUID
	accepts map[Kind]struct{}
	ch      chan pendingResult
}

// router correlates inbound messages with outstanding requests. Entries are
// kept in registration order; ties always go to the oldest entry.
type router struct {
	mu     sync.Mutex
	queue  []*pendingRequest
	logger *zap.Logger
}

func newRouter(logger *zap.Logger) *router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &router{logger: logger}
}

// register installs a pending request accepting the given discriminators.
func (r *router) register(kinds ...Kind) *pendingRequest {
	p := &pendingRequest{
		id:      uuid.New(),
		accepts: make(map[Kind]struct{}, len(kinds)),
		ch:      make(chan pendingResult, 1),
	}
	for _, k := range kinds {
		p.accepts[k] = struct{}{}
	}
	r.mu.Lock()
	r.queue = append(r.queue, p)
	r.mu.Unlock()
	return p
}

// deregister withdraws a pending request, reporting whether it was still in
// the table. A false return means the request resolved concurrently and its
// result is already in the channel.
func (r *router) deregister(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.queue {
		if p.id == id {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			return true
		}
	}
	return false
}

// route delivers one inbound message. pong and info are discarded outright.
// An error reply resolves the oldest pending request regardless of its accept
// set; any other message resolves the oldest request that accepts its
// discriminator. The return reports whether a request was resolved.
func (r *router) route(msg Message) bool {
	kind := msg.Kind()
	if kind == KindPong || kind == KindInfo {
		return false
	}

	r.mu.Lock()
	idx := -1
	if kind == KindError {
		if len(r.queue) > 0 {
			idx = 0
		}
	} else {
		for i, p := range r.queue {
			if _, ok := p.accepts[kind]; ok {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return false
	}
	p := r.queue[idx]
	r.queue = append(r.queue[:idx], r.queue[idx+1:]...)
	r.mu.Unlock()

	if rep, ok := msg.(*ErrorReply); ok {
		p.ch <- pendingResult{err: &ServerError{Message: rep.Message}}
		r.logger.Debug("request resolved with server error",
			zap.String("request_id", p.id.String()),
			zap.String("message", rep.Message))
		return true
	}
	p.ch <- pendingResult{msg: msg}
	return true
}

// routeFailure resolves the oldest pending request accepting kind with err.
// Used when a payload matched a discriminator but could not be decoded.
func (r *router) routeFailure(kind Kind, err error) bool {
	r.mu.Lock()
	idx := -1
	for i, p := range r.queue {
		if _, ok := p.accepts[kind]; ok {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return false
	}
	p := r.queue[idx]
	r.queue = append(r.queue[:idx], r.queue[idx+1:]...)
	r.mu.Unlock()

	p.ch <- pendingResult{err: err}
	return true
}

// failAll resolves every pending request with err, each exactly once.
func (r *router) failAll(err error) {
	r.mu.Lock()
	drained := r.queue
	r.queue = nil
	r.mu.Unlock()

	for _, p := range drained {
		p.ch <- pendingResult{err: err}
	}
	if len(drained) > 0 {
		r.logger.Debug("failed all pending requests",
			zap.Int("count", len(drained)),
			zap.Error(err))
	}
}
