package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWireShape(t *testing.T) {
	tests := []struct {
		name string
		in   Event
		want string
	}{
		{"no payload", StatusQuery{}, `{"type":"StatusQuery"}`},
		{"status zero keeps data", StatusUpdate{Status: 0}, `{"type":"StatusUpdate","data":{"status":0}}`},
		{"status ok", StatusUpdate{Status: StatusOK}, `{"type":"StatusUpdate","data":{"status":1}}`},
		{"empty list", ContainerList{Containers: []ContainerSummary{}}, `{"type":"ContainerList","data":{"containers":[]}}`},
		{"start", ContainerEvent{Kind: TagContainerStart, ContainerID: "abc"}, `{"type":"ContainerStart","data":{"containerId":"abc"}}`},
		{"bare lifecycle", ContainerEvent{Kind: TagContainerDie}, `{"type":"ContainerDie"}`},
		{"nil", nil, `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.want, string(Encode(tt.in)))
		})
	}
}

func TestEncodeDegradesOnBadPayload(t *testing.T) {
	out := Encode(ContainerInspect{ContainerID: "abc", Container: json.RawMessage(`{not json`)})
	assert.JSONEq(t, `{"type":"ContainerInspect"}`, string(out))
}

func TestRoundTrip(t *testing.T) {
	events := []Event{
		StatusQuery{},
		StatusUpdate{Status: StatusUnreachable},
		StatusUpdate{Status: StatusError},
		ContainerList{},
		ContainerList{Containers: []ContainerSummary{
			{
				ID:     "c1",
				Names:  []string{"/web"},
				Image:  "nginx:latest",
				State:  "running",
				Status: "Up 2 hours",
				Ports:  []Port{{IP: "0.0.0.0", PrivatePort: 80, PublicPort: 8080, Type: "tcp"}},
				Labels: map[string]string{"tier": "front"},
			},
		}},
		ContainerInspect{ContainerID: "c1"},
		ContainerInspect{ContainerID: "c1", Container: json.RawMessage(`{"Id":"c1","State":{"Running":true}}`)},
		ContainerEvent{Kind: TagContainerStop, ContainerID: "c1"},
		ContainerEvent{
			Kind:        TagContainerHealthStatus,
			ContainerID: "c1",
			Name:        "web",
			Image:       "nginx",
			Attributes:  map[string]string{"status": "healthy"},
			Time:        1700000000,
		},
		SystemStatus{},
		SystemStatus{Hostname: "node-1", CPUCount: 4, CPUPercent: 12.5, Load1: 0.5},
		CommandError{Command: TagContainerStart, ContainerID: "c1", Message: "no such container"},
	}
	for _, ev := range events {
		t.Run(string(ev.Tag()), func(t *testing.T) {
			got, err := Decode(Encode(ev))
			require.NoError(t, err)
			assert.Equal(t, ev, got)
		})
	}
}

func TestDecodeAcceptsLegacyIDAlias(t *testing.T) {
	got, err := Decode([]byte(`{"type":"ContainerRestart","data":{"ID":"abc"}}`))
	require.NoError(t, err)
	assert.Equal(t, ContainerEvent{Kind: TagContainerRestart, ContainerID: "abc"}, got)

	got, err = Decode([]byte(`{"type":"ContainerInspect","data":{"ID":"def"}}`))
	require.NoError(t, err)
	assert.Equal(t, ContainerInspect{ContainerID: "def"}, got)
}

func TestDecodeMissingDataIsEmptyPayload(t *testing.T) {
	for _, in := range []string{
		`{"type":"ContainerStart"}`,
		`{"type":"ContainerStart","data":null}`,
		`{"type":"ContainerStart","data":{}}`,
	} {
		got, err := Decode([]byte(in))
		require.NoError(t, err, in)
		assert.Equal(t, ContainerEvent{Kind: TagContainerStart}, got, in)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		kind error
		tag  Tag
	}{
		{"not json", `{"type":`, ErrMalformed, ""},
		{"plain text", `hello`, ErrMalformed, ""},
		{"array", `[1,2,3]`, ErrMalformed, ""},
		{"empty chunk", ``, ErrMalformed, ""},
		{"no type", `{"data":{}}`, ErrMissingType, ""},
		{"empty type", `{"type":""}`, ErrMissingType, ""},
		{"unknown", `{"type":"ContainerExplode"}`, ErrUnknownType, "ContainerExplode"},
		{"status is string", `{"type":"StatusUpdate","data":{"status":"up"}}`, ErrPayloadShape, TagStatusUpdate},
		{"data is array", `{"type":"ContainerStop","data":[1]}`, ErrPayloadShape, TagContainerStop},
		{"data is string", `{"type":"StatusQuery","data":"x"}`, ErrPayloadShape, TagStatusQuery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode([]byte(tt.in))
			assert.Nil(t, ev)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)

			var de *DecodeError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.tag, de.Tag)
		})
	}
}

func TestEveryTagDecodes(t *testing.T) {
	for _, tag := range Tags() {
		ev, err := Decode(Encode(mustZero(t, tag)))
		require.NoError(t, err, tag)
		assert.Equal(t, tag, ev.Tag())
	}
}

func mustZero(t *testing.T, tag Tag) Event {
	t.Helper()
	ev, err := decoders[tag](nil)
	require.NoError(t, err)
	return ev
}

func TestIsCommand(t *testing.T) {
	assert.True(t, IsCommand(TagStatusQuery))
	assert.True(t, IsCommand(TagContainerRestart))
	assert.True(t, IsCommand(TagSystemStatus))
	assert.False(t, IsCommand(TagStatusUpdate))
	assert.False(t, IsCommand(TagContainerDie))
	assert.True(t, IsLifecycle(TagContainerDie))
	assert.False(t, IsLifecycle(TagContainerList))
}
