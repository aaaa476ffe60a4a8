package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-io-live/messenger-service/pkg/log"
)

func TestLogWritesAuditFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := log.WithLogger(context.Background(), log.New(log.Config{Level: "info"}, &buf))

	LogWithDetail(ctx, ActionSendMessage, 7, 42, "peer=9", "message sent")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, log.LogTypeAudit, entry[log.FieldLogType])
	assert.Equal(t, ActionSendMessage, entry[FieldAction])
	assert.Equal(t, float64(7), entry[log.FieldUserID])
	assert.Equal(t, float64(42), entry[log.FieldConversationID])
	assert.Equal(t, "peer=9", entry[FieldDetail])
	assert.Equal(t, "message sent", entry["message"])
}
