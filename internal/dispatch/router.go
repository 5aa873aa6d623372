// README: Message router decodes inbound frames and fans them out to subscribers.
package dispatch

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// Handler receives every decoded frame. Delivery order across handlers is
// unspecified; handlers must not assume ordering relative to each other.
type Handler func(Frame)

// Router fans inbound frames out to registered handlers. Frames are
// processed one at a time in arrival order (the read pump is the only
// caller of OnFrame), so handlers observe consistent state without their
// own locking.
type Router struct {
	mu       sync.Mutex
	next     int
	handlers map[int]Handler
	log      *logrus.Logger
}

func NewRouter(log *logrus.Logger) *Router {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Router{handlers: make(map[int]Handler), log: log}
}

// Subscribe registers a handler and returns an opaque token for Unsubscribe.
func (r *Router) Subscribe(h Handler) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.handlers[r.next] = h
	return r.next
}

// Unsubscribe removes a handler. Unsubscribing an unknown or already
// removed token is a no-op.
func (r *Router) Unsubscribe(token int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, token)
}

// OnFrame parses one raw frame and delivers it to every handler present
// at the moment of delivery. Handlers added or removed while a dispatch is
// in flight do not affect that dispatch's delivery set. Malformed frames
// are logged and dropped.
func (r *Router) OnFrame(raw []byte) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		r.log.WithError(err).Warn("dropping malformed frame")
		return
	}

	r.mu.Lock()
	snapshot := make([]Handler, 0, len(r.handlers))
	for _, h := range r.handlers {
		snapshot = append(snapshot, h)
	}
	r.mu.Unlock()

	for _, h := range snapshot {
		h(f)
	}
}
