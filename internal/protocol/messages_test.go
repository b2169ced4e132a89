package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeRoundTrip(t *testing.T) {
	t.Parallel()
	raw := Encode(EventMentorJoined, MentorPresence{MentorID: "9"})

	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	require.Equal(t, EventMentorJoined, env.Event)

	var p MentorPresence
	require.NoError(t, json.Unmarshal(env.Data, &p))
	require.Equal(t, "9", p.MentorID)
}

func TestEncodeNilPayload(t *testing.T) {
	t.Parallel()
	raw := Encode(EventStreamEnded, nil)

	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	require.Equal(t, EventStreamEnded, env.Event)
	require.Empty(t, env.Data)
}

func TestSessionRefIgnoresExtraFields(t *testing.T) {
	t.Parallel()
	var ref SessionRef
	require.NoError(t, json.Unmarshal([]byte(`{"sessionId":"sess-1","sdp":"v=0","candidate":{}}`), &ref))
	require.Equal(t, "sess-1", ref.SessionID)
}
