// Package conntest provides an in-memory roomrelay.Conn for tests.
package conntest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/luciancaetano/roomrelay"
)

// ErrClosed is returned by Send once the recorder has been closed.
var ErrClosed = errors.New(roomrelay.ErrConnectionClosed)

// Recorder is a roomrelay.Conn that stores every frame it is sent.
type Recorder struct {
	id   string
	ctx  context.Context
	stop context.CancelFunc

	mu        sync.Mutex
	frames    [][]byte
	closed    bool
	closeCode int
	reason    string
	failSend  bool
}

// New creates an open recorder with the given connection id.
func New(id string) *Recorder {
	ctx, cancel := context.WithCancel(context.Background())
	return &Recorder{id: id, ctx: ctx, stop: cancel}
}

func (r *Recorder) ID() string { return r.id }

func (r *Recorder) RemoteAddr() string { return "127.0.0.1:0" }

func (r *Recorder) Context() context.Context { return r.ctx }

func (r *Recorder) Close(ctx context.Context) error {
	return r.CloseWithCode(ctx, 1000, "")
}

// Send records data unless the recorder is closed or set to fail.
func (r *Recorder) Send(_ context.Context, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.failSend {
		return ErrClosed
	}
	r.frames = append(r.frames, append([]byte(nil), data...))
	return nil
}

// CloseWithCode marks the recorder closed. Only the first call is recorded.
func (r *Recorder) CloseWithCode(_ context.Context, code int, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.closeCode = code
	r.reason = reason
	r.stop()
	return nil
}

func (r *Recorder) IsAlive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed
}

// FailSends makes every subsequent Send return an error.
func (r *Recorder) FailSends() {
	r.mu.Lock()
	r.failSend = true
	r.mu.Unlock()
}

// Frames returns a copy of the recorded frames.
func (r *Recorder) Frames() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.frames))
	copy(out, r.frames)
	return out
}

// Messages decodes every recorded frame as a JSON object.
func (r *Recorder) Messages() []map[string]any {
	var out []map[string]any
	for _, f := range r.Frames() {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the most recent decoded message, or nil.
func (r *Recorder) Last() map[string]any {
	msgs := r.Messages()
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

// Reset forgets recorded frames.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.frames = nil
	r.mu.Unlock()
}

// Closed reports whether the recorder was closed and with which code and reason.
func (r *Recorder) Closed() (bool, int, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed, r.closeCode, r.reason
}
