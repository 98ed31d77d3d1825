package audit

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/helix-trading/helix/internal/bus"
)

// Entry event types.
const (
	EventTransition = "transition"
	EventScan       = "scan"
	EventToken      = "token"
	EventTrade      = "trade"
	EventConfig     = "config"
)

// Entry is a single audit trail entry. Every operator-visible decision the
// bot makes gets recorded as an Entry, creating an in-memory log for
// debugging and post-mortems.
type Entry struct {
	EventType string    `json:"event_type"` // transition|scan|token|trade|config
	Timestamp time.Time `json:"ts"`
	Mint      string    `json:"mint,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Payload   string    `json:"payload"` // JSON of the full event
}

// Trail records session transitions, scan cycles, and trade outcomes.
// It maintains a FIFO buffer capped at maxBuf; once the buffer is full the
// oldest entries are discarded. A maxBuf of 0 disables buffering.
type Trail struct {
	mu      sync.Mutex
	entries []Entry
	maxBuf  int
}

// NewTrail creates an audit trail keeping at most maxBuf entries.
func NewTrail(maxBuf int) *Trail {
	if maxBuf < 0 {
		maxBuf = 0
	}
	return &Trail{
		entries: make([]Entry, 0, maxBuf),
		maxBuf:  maxBuf,
	}
}

// AttachBus subscribes the trail to scan events. Returns the combined
// unsubscribe function.
func (t *Trail) AttachBus(b *bus.Bus) func() {
	unsubScan := b.Subscribe(bus.TopicScanComplete, func(e bus.Event) {
		if ev, ok := e.(bus.ScanCompleteEvent); ok {
			t.RecordScan(ev)
		}
	})
	unsubToken := b.Subscribe(bus.TopicNewToken, func(e bus.Event) {
		if ev, ok := e.(bus.NewTokenEvent); ok {
			t.RecordToken(ev)
		}
	})
	return func() {
		unsubScan()
		unsubToken()
	}
}

// RecordTransition logs a session mode change.
func (t *Trail) RecordTransition(from, to string) {
	t.record(Entry{
		EventType: EventTransition,
		Timestamp: time.Now(),
		Detail:    from + "->" + to,
		Payload:   mustMarshal(map[string]string{"from": from, "to": to}),
	})
}

// RecordScan logs one completed scan cycle.
func (t *Trail) RecordScan(ev bus.ScanCompleteEvent) {
	summary := struct {
		Generation  uint64 `json:"generation"`
		TokensFound int    `json:"tokens_found"`
		HighRisk    int    `json:"high_risk"`
		DurationMS  int64  `json:"duration_ms"`
	}{ev.Generation, ev.TokensFound, ev.HighRisk, ev.Duration.Milliseconds()}

	t.record(Entry{
		EventType: EventScan,
		Timestamp: ev.Timestamp,
		Payload:   mustMarshal(summary),
	})
}

// RecordToken logs a freshly discovered token.
func (t *Trail) RecordToken(ev bus.NewTokenEvent) {
	t.record(Entry{
		EventType: EventToken,
		Timestamp: ev.Timestamp,
		Mint:      string(ev.Result.Mint),
		Detail:    ev.Result.Symbol,
		Payload:   mustMarshal(ev.Result),
	})
}

// RecordTrade logs a trade attempt outcome.
func (t *Trail) RecordTrade(op string, success bool) {
	detail := op + ": failed"
	if success {
		detail = op + ": ok"
	}
	t.record(Entry{
		EventType: EventTrade,
		Timestamp: time.Now(),
		Detail:    detail,
		Payload:   mustMarshal(map[string]any{"op": op, "success": success}),
	})
}

// RecordConfig logs a scanner config replacement.
func (t *Trail) RecordConfig(cfg any) {
	t.record(Entry{
		EventType: EventConfig,
		Timestamp: time.Now(),
		Payload:   mustMarshal(cfg),
	})
}

// ForMint returns all entries for a given mint, oldest first.
func (t *Trail) ForMint(mint string) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	var result []Entry
	for _, e := range t.entries {
		if e.Mint == mint {
			result = append(result, e)
		}
	}
	return result
}

// Entries returns a copy of the buffer, oldest first.
func (t *Trail) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := make([]Entry, len(t.entries))
	copy(result, t.entries)
	return result
}

// Len returns the number of buffered entries.
func (t *Trail) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Trail) record(entry Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.maxBuf == 0 {
		return
	}
	if len(t.entries) >= t.maxBuf {
		// Shift left: discard the oldest entry.
		copy(t.entries, t.entries[1:])
		t.entries[len(t.entries)-1] = entry
		return
	}
	t.entries = append(t.entries, entry)
}

// mustMarshal marshals v to JSON, returning "{}" on error.
func mustMarshal(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("audit: marshal payload failed")
		return "{}"
	}
	return string(data)
}
