package cnst

// Message type tags exchanged with the simulation backend. The session layer
// itself only interprets a handful of them; everything else passes through to
// registered handlers untouched.
const (
	// TypePing is the heartbeat probe sent while the session is connected.
	TypePing = "ping"

	// TypeDebugModelInfo is the high-frequency status poll. Replies carry the
	// is_computing flag.
	TypeDebugModelInfo = "debug_model_info"

	// TypeRewardUpdate carries new reward weight assignments.
	TypeRewardUpdate = "update_reward_weights"

	// TypeParameterUpdate carries simulation parameter changes.
	TypeParameterUpdate = "update_parameters"

	// TypePoseLoad asks the backend to load a named pose.
	TypePoseLoad = "load_pose"

	// TypeAnimationLoad asks the backend to load a timeline animation.
	TypeAnimationLoad = "load_animation"

	// TypeQualityChange switches the preview video quality.
	TypeQualityChange = "change_quality"

	// TypeChatTurn is an LLM behavior-generation chat turn.
	TypeChatTurn = "chat_message"
)

// ReplySuffix is appended to a request type to form the conventional reply
// type, e.g. "update_reward_weights" -> "update_reward_weights_updated".
const ReplySuffix = "_updated"

// FieldIsComputing is the frame field that drives the shared busy flag.
const FieldIsComputing = "is_computing"
