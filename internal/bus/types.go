package bus

import "fmt"

// Channel is a named, logical delivery point. Channels are created implicitly
// on first publish or subscribe and persist for the bus lifetime.
type Channel string

// Well-known channels connecting the orchestrator to its collaborators.
const (
	ChannelAnalysisRequest   Channel = "analysis.request"
	ChannelAnalysisResult    Channel = "analysis.result"
	ChannelEngagementRequest Channel = "engagement.request"
	ChannelEngagementResult  Channel = "engagement.result"
	ChannelSchedulingRequest Channel = "scheduling.request"
	ChannelSchedulingResult  Channel = "scheduling.result"
	ChannelSystemError       Channel = "system.error"
	ChannelSystemTimeout     Channel = "system.timeout"
	ChannelQualityInsight    Channel = "quality.insight"
)

// ResultChannels lists every collaborator result channel the orchestrator
// subscribes to.
func ResultChannels() []Channel {
	return []Channel{
		ChannelAnalysisResult,
		ChannelEngagementResult,
		ChannelSchedulingResult,
	}
}

// MessageType is the closed tag enumeration carried by every envelope.
// Consumers switch on it exhaustively; unknown tags never enter the system
// because Validate rejects them at publish time.
type MessageType string

const (
	TypeAnalysisRequest   MessageType = "analysis.request"
	TypeAnalysisResult    MessageType = "analysis.result"
	TypeEngagementRequest MessageType = "engagement.request"
	TypeEngagementResult  MessageType = "engagement.result"
	TypeSchedulingRequest MessageType = "scheduling.request"
	TypeSchedulingResult  MessageType = "scheduling.result"
	TypeSystemError       MessageType = "system.error"
	TypeSystemTimeout     MessageType = "system.timeout"
	TypeQualityInsight    MessageType = "quality.insight"
)

var messageTypes = map[MessageType]struct{}{
	TypeAnalysisRequest:   {},
	TypeAnalysisResult:    {},
	TypeEngagementRequest: {},
	TypeEngagementResult:  {},
	TypeSchedulingRequest: {},
	TypeSchedulingResult:  {},
	TypeSystemError:       {},
	TypeSystemTimeout:     {},
	TypeQualityInsight:    {},
}

// ParseMessageType validates a raw tag.
func ParseMessageType(raw string) (MessageType, error) {
	mt := MessageType(raw)
	if _, ok := messageTypes[mt]; !ok {
		return "", fmt.Errorf("unknown message type %q", raw)
	}
	return mt, nil
}

func (m MessageType) String() string { return string(m) }

// Valid reports whether the tag belongs to the closed enumeration.
func (m MessageType) Valid() bool {
	_, ok := messageTypes[m]
	return ok
}

// Priority orders messages within a subscriber's queue. Higher values are
// dispatched first; ties are FIFO. Dispatch is non-preemptive: a message
// already handed to a handler completes before a newer, higher-priority one
// starts.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical

	numPriorities = 4
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Valid reports whether the priority is one of the four defined bands.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}

// ParsePriority maps a label to its band.
func ParsePriority(raw string) (Priority, error) {
	switch raw {
	case "low":
		return PriorityLow, nil
	case "normal":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	case "critical":
		return PriorityCritical, nil
	default:
		return 0, fmt.Errorf("unknown priority %q", raw)
	}
}
