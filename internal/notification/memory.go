package notification

import (
	"context"
	"sync"
)

// Recorder is a Sender that records messages for test assertions. An optional
// error makes every send fail, exercising the best-effort path.
type Recorder struct {
	mu   sync.Mutex
	sent []Message

	// FailWith, when set, is returned by every Send.
	FailWith error
}

// NewRecorder creates an empty recording sender.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(ctx context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	r.sent = append(r.sent, msg)
	return nil
}

// Sent returns a copy of all successfully recorded messages.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.sent))
	copy(out, r.sent)
	return out
}
