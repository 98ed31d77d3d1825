package bus

import (
	"time"

	"github.com/google/uuid"

	"github.com/helix-trading/helix/internal/classify"
)

// Topic identifies an event stream on the bus. Topics are a closed
// enumeration so consumers cannot subscribe to typos.
type Topic string

const (
	// TopicNewToken carries one NewTokenEvent per token classified in a cycle.
	TopicNewToken Topic = "token.new"

	// TopicScanComplete fires once per scan cycle, after every per-token
	// classification for that cycle has resolved.
	TopicScanComplete Topic = "scan.complete"
)

// BaseEvent contains fields common to all events.
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"ts"`
	Producer  string    `json:"producer"`
}

// NewBaseEvent creates a new BaseEvent with a generated ID.
func NewBaseEvent(producer string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		Timestamp: time.Now(),
		Producer:  producer,
	}
}

// Event is any payload published on the bus.
type Event interface {
	EventTopic() Topic
}

// NewTokenEvent announces a freshly classified token.
type NewTokenEvent struct {
	BaseEvent
	Generation uint64                   `json:"generation"`
	Result     classify.TokenScanResult `json:"result"`
}

func (NewTokenEvent) EventTopic() Topic { return TopicNewToken }

// ScanCompleteEvent announces the end of one scan cycle.
type ScanCompleteEvent struct {
	BaseEvent
	Generation  uint64                     `json:"generation"`
	Results     []classify.TokenScanResult `json:"results"`
	TokensFound int                        `json:"tokens_found"`
	HighRisk    int                        `json:"high_risk"`
	Duration    time.Duration              `json:"duration"`
}

func (ScanCompleteEvent) EventTopic() Topic { return TopicScanComplete }
