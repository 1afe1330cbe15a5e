package logging

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zapcore"
)

// DefaultRingSize is the number of entries kept when NewRing gets a non-positive size.
const DefaultRingSize = 1000

// Level names exposed to log consumers.
const (
	LevelDebug   = "debug"
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Entry is one recorded log line.
type Entry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Ring keeps the most recent log entries and fans new ones out to subscribers.
type Ring struct {
	mu      sync.Mutex
	size    int
	entries []Entry
	subs    map[int]chan Entry
	nextSub int
}

// NewRing creates a ring holding at most size entries.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Ring{
		size:    size,
		entries: make([]Entry, 0, size),
		subs:    make(map[int]chan Entry),
	}
}

// Core returns a zapcore.Core that records into the ring.
func (r *Ring) Core(enab zapcore.LevelEnabler) zapcore.Core {
	if enab == nil {
		enab = zapcore.DebugLevel
	}
	return &ringCore{LevelEnabler: enab, ring: r}
}

// Recent returns up to limit of the newest entries, oldest first.
// A non-positive limit returns everything.
func (r *Ring) Recent(limit int) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := 0
	if limit > 0 && limit < len(r.entries) {
		start = len(r.entries) - limit
	}
	out := make([]Entry, len(r.entries)-start)
	copy(out, r.entries[start:])
	return out
}

// Clear drops all recorded entries.
func (r *Ring) Clear() {
	r.mu.Lock()
	r.entries = r.entries[:0]
	r.mu.Unlock()
}

// Subscribe registers a live listener. The returned cancel func must be
// called to release it. Entries are dropped for subscribers that fall behind.
func (r *Ring) Subscribe() (<-chan Entry, func()) {
	ch := make(chan Entry, 64)

	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
			close(ch)
		})
	}
}

func (r *Ring) add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) >= r.size {
		copy(r.entries, r.entries[1:])
		r.entries = r.entries[:len(r.entries)-1]
	}
	r.entries = append(r.entries, e)

	for _, ch := range r.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

type ringCore struct {
	zapcore.LevelEnabler
	ring   *Ring
	fields []zapcore.Field
}

func (c *ringCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &ringCore{LevelEnabler: c.LevelEnabler, ring: c.ring, fields: merged}
}

func (c *ringCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *ringCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	e := Entry{
		ID:        uuid.NewString(),
		Timestamp: ent.Time,
		Level:     levelName(ent.Level, enc.Fields),
		Message:   ent.Message,
	}
	if len(enc.Fields) > 0 {
		e.Fields = enc.Fields
	}
	c.ring.add(e)
	return nil
}

func (c *ringCore) Sync() error { return nil }

func levelName(l zapcore.Level, fields map[string]any) string {
	switch {
	case l >= zapcore.ErrorLevel:
		return LevelError
	case l == zapcore.WarnLevel:
		return LevelWarning
	case l == zapcore.DebugLevel:
		return LevelDebug
	}
	if outcome, ok := fields["outcome"].(string); ok && outcome == "success" {
		return LevelSuccess
	}
	return LevelInfo
}
