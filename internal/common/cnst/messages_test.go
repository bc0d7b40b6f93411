package cnst

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageTypeConstants(t *testing.T) {
	assert.Equal(t, "ping", TypePing)
	assert.Equal(t, "debug_model_info", TypeDebugModelInfo)
	assert.Equal(t, "update_reward_weights", TypeRewardUpdate)
	assert.Equal(t, "update_parameters", TypeParameterUpdate)
	assert.Equal(t, "load_pose", TypePoseLoad)
	assert.Equal(t, "load_animation", TypeAnimationLoad)
	assert.Equal(t, "change_quality", TypeQualityChange)
	assert.Equal(t, "chat_message", TypeChatTurn)
}

func TestReplySuffix(t *testing.T) {
	assert.Equal(t, "update_reward_weights_updated", TypeRewardUpdate+ReplySuffix)
}
