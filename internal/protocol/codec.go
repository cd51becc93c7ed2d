package protocol

import (
	"bytes"
	"encoding/json"

	"github.com/BryanFRD/admin-api/internal/jsoncodec"
)

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type decoder func(data []byte) (Event, error)

var decoders = map[Tag]decoder{
	TagStatusQuery:      payload(StatusQuery{}),
	TagStatusUpdate:     payload(StatusUpdate{}),
	TagContainerList:    payload(ContainerList{}),
	TagContainerInspect: payload(ContainerInspect{}),
	TagSystemStatus:     payload(SystemStatus{}),
	TagCommandError:     payload(CommandError{}),
}

func init() {
	for _, tag := range lifecycleTags {
		decoders[tag] = payload(ContainerEvent{Kind: tag})
	}
}

// payload decodes data into a copy of zero. Absent or null data leaves the
// zero value untouched.
func payload[T Event](zero T) decoder {
	return func(data []byte) (Event, error) {
		v := zero
		if len(data) > 0 {
			if err := jsoncodec.Unmarshal(data, &v); err != nil {
				return nil, err
			}
		}
		return v, nil
	}
}

var emptyObject = []byte("{}")

// Encode serializes e into one envelope. It never fails: a payload that
// cannot be marshalled is dropped and only the type is sent.
func Encode(e Event) []byte {
	if e == nil {
		return []byte("{}")
	}
	env := envelope{Type: string(e.Tag())}
	if data, err := jsoncodec.Marshal(e); err == nil && !bytes.Equal(data, emptyObject) {
		env.Data = data
	}
	out, err := jsoncodec.Marshal(env)
	if err != nil {
		out, err = jsoncodec.Marshal(envelope{Type: env.Type})
		if err != nil {
			return []byte("{}")
		}
	}
	return out
}

// Decode parses exactly one envelope from chunk.
func Decode(chunk []byte) (Event, error) {
	var env envelope
	if err := jsoncodec.Unmarshal(chunk, &env); err != nil {
		return nil, &DecodeError{Kind: ErrMalformed, Cause: err}
	}
	if env.Type == "" {
		return nil, &DecodeError{Kind: ErrMissingType}
	}
	tag := Tag(env.Type)
	dec, ok := decoders[tag]
	if !ok {
		return nil, &DecodeError{Kind: ErrUnknownType, Tag: tag}
	}
	ev, err := dec(env.Data)
	if err != nil {
		return nil, &DecodeError{Kind: ErrPayloadShape, Tag: tag, Cause: err}
	}
	return ev, nil
}
