package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mimiclab/simlink/internal/common/cnst"
	"github.com/tidwall/gjson"
)

// Message is one structured frame exchanged with the backend. On the wire it
// is a flat JSON object: the reserved keys type, message_id and timestamp plus
// the type-specific payload fields at the same level. Messages are immutable
// once sent.
type Message struct {
	Type      string
	MessageID string
	Timestamp string // ISO-8601
	Payload   map[string]any

	raw []byte // original frame bytes for inbound messages
}

// NewMessage builds an outbound message of the given type. The timestamp is
// stamped immediately; the message_id is assigned by the session on send if
// still empty.
func NewMessage(msgType string, payload map[string]any) *Message {
	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}
}

// ParseMessage decodes an inbound frame. Malformed frames and frames without
// a type tag are rejected.
func ParseMessage(data []byte) (*Message, error) {
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		return nil, cnst.ErrMalformedFrame
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", cnst.ErrMalformedFrame, err)
	}
	typ, _ := fields["type"].(string)
	if typ == "" {
		return nil, cnst.ErrMissingType
	}
	m := &Message{Type: typ, raw: data}
	if id, ok := fields["message_id"].(string); ok {
		m.MessageID = id
	}
	if ts, ok := fields["timestamp"].(string); ok {
		m.Timestamp = ts
	}
	delete(fields, "type")
	delete(fields, "message_id")
	delete(fields, "timestamp")
	m.Payload = fields
	return m, nil
}

// MarshalJSON flattens the payload fields next to the reserved keys.
func (m *Message) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(m.Payload)+3)
	for k, v := range m.Payload {
		obj[k] = v
	}
	obj["type"] = m.Type
	if m.MessageID != "" {
		obj["message_id"] = m.MessageID
	}
	if m.Timestamp != "" {
		obj["timestamp"] = m.Timestamp
	}
	return json.Marshal(obj)
}

// Get probes a field of the frame by gjson path.
func (m *Message) Get(path string) gjson.Result {
	if m.raw == nil {
		data, err := json.Marshal(m)
		if err != nil {
			return gjson.Result{}
		}
		m.raw = data
	}
	return gjson.GetBytes(m.raw, path)
}

// Raw returns the original frame bytes for inbound messages, nil otherwise.
func (m *Message) Raw() []byte {
	return m.raw
}

// Kind classifies a message type into the known control-plane kinds, with
// KindUnknown as the forward-compatible fallback.
type Kind int

const (
	KindUnknown Kind = iota
	KindPing
	KindStatusPoll
	KindReward
	KindParameter
	KindPoseLoad
	KindAnimationLoad
	KindQualityChange
	KindChatTurn
)

func (k Kind) String() string {
	switch k {
	case KindPing:
		return "ping"
	case KindStatusPoll:
		return "status_poll"
	case KindReward:
		return "reward"
	case KindParameter:
		return "parameter"
	case KindPoseLoad:
		return "pose_load"
	case KindAnimationLoad:
		return "animation_load"
	case KindQualityChange:
		return "quality_change"
	case KindChatTurn:
		return "chat_turn"
	default:
		return "unknown"
	}
}

// KindOf maps a wire type tag to its Kind.
func KindOf(msgType string) Kind {
	switch msgType {
	case cnst.TypePing:
		return KindPing
	case cnst.TypeDebugModelInfo:
		return KindStatusPoll
	case cnst.TypeRewardUpdate:
		return KindReward
	case cnst.TypeParameterUpdate:
		return KindParameter
	case cnst.TypePoseLoad:
		return KindPoseLoad
	case cnst.TypeAnimationLoad:
		return KindAnimationLoad
	case cnst.TypeQualityChange:
		return KindQualityChange
	case cnst.TypeChatTurn:
		return KindChatTurn
	default:
		return KindUnknown
	}
}

// Kind returns the message's Kind.
func (m *Message) Kind() Kind {
	return KindOf(m.Type)
}
