package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelToTopicAndKey(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		topic   string
		key     string
	}{
		{"short id", MessageSentChannel("4f1c"), "dm-message-sent", "4f1c"},
		{"uuid id", MessageSentChannel("0b9e4a7c-3c1d-4f7e-9a55-2d6f0e8b1c42"), "dm-message-sent", "0b9e4a7c-3c1d-4f7e-9a55-2d6f0e8b1c42"},
		{"literal channel", "dm:conversation:C123:message_sent", "dm-message-sent", "C123"},
		{"other event", "dm:conversation:C123:typing", "dm-typing", "C123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topic, key, err := channelToTopicAndKey(tt.channel)
			require.NoError(t, err)
			assert.Equal(t, tt.topic, topic)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestChannelToTopicAndKeyRejectsMalformed(t *testing.T) {
	for _, bad := range []string{
		"",
		"dm",
		"dm:conversation:1",
		"dm:room:1:message_sent",
		":conversation:1:message_sent",
		"dm:conversation::message_sent",
		"dm:conversation:1:",
		"dm:conversation:1:message_sent:extra",
	} {
		_, _, err := channelToTopicAndKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestPatternToTopic(t *testing.T) {
	topic, err := patternToTopic(ChannelMessageSentPattern)
	require.NoError(t, err)
	assert.Equal(t, "dm-message-sent", topic)

	channelTopic, _, err := channelToTopicAndKey(MessageSentChannel("abc"))
	require.NoError(t, err)
	assert.Equal(t, channelTopic, topic)

	for _, bad := range []string{"", "dm:*", "dm:room:*:message_sent", "dm:conversation:*"} {
		_, err := patternToTopic(bad)
		assert.Error(t, err, bad)
	}
}

func TestKnownTopics(t *testing.T) {
	assert.Equal(t, []string{"dm-message-sent"}, knownTopics())
}

func TestSanitizeGroupID(t *testing.T) {
	assert.Equal(t, "dm-conversation-x-message_sent", sanitizeGroupID("dm:conversation:x:message_sent"))
	assert.Equal(t, "dm-conversation---message_sent", sanitizeGroupID(ChannelMessageSentPattern))
}
