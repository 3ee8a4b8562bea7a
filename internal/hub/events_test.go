package hub

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInbound(t *testing.T) {
	t.Run("join-room trims fields", func(t *testing.T) {
		in, err := DecodeInbound([]byte(`{"event":"join-room","data":{"roomId":" r1 ","username":" bob "}}`))
		require.NoError(t, err)
		assert.Equal(t, Inbound{Event: EventJoinRoom, RoomID: "r1", Username: "bob"}, in)
	})

	t.Run("drawing keeps data verbatim", func(t *testing.T) {
		in, err := DecodeInbound([]byte(`{"event":"drawing","data":{"roomId":"r1","data":{"type":"path","d":[1,2]}}}`))
		require.NoError(t, err)
		assert.Equal(t, "r1", in.RoomID)
		assert.JSONEq(t, `{"type":"path","d":[1,2]}`, string(in.Data))
	})

	t.Run("drawing without data", func(t *testing.T) {
		_, err := DecodeInbound([]byte(`{"event":"drawing","data":{"roomId":"r1"}}`))
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("update-canvas accepts canvasData or data", func(t *testing.T) {
		in, err := DecodeInbound([]byte(`{"event":"update-canvas","data":{"roomId":"r1","canvasData":{"v":1}}}`))
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":1}`, string(in.Canvas))

		in, err = DecodeInbound([]byte(`{"event":"update-canvas","data":{"roomId":"r1","data":"abc"}}`))
		require.NoError(t, err)
		assert.Equal(t, `"abc"`, string(in.Canvas))

		_, err = DecodeInbound([]byte(`{"event":"update-canvas","data":{"roomId":"r1"}}`))
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("cursor-move", func(t *testing.T) {
		in, err := DecodeInbound([]byte(`{"event":"cursor-move","data":{"roomId":"r1","x":1.5,"y":-2}}`))
		require.NoError(t, err)
		assert.Equal(t, 1.5, in.X)
		assert.Equal(t, -2.0, in.Y)
	})

	t.Run("clear-canvas room reference forms", func(t *testing.T) {
		for frame, want := range map[string]string{
			`{"event":"clear-canvas","data":{"roomId":"r1"}}`: "r1",
			`{"event":"clear-canvas","data":"r1"}`:            "r1",
			`{"event":"undo"}`:                                "",
			`{"event":"redo","data":null}`:                    "",
		} {
			in, err := DecodeInbound([]byte(frame))
			require.NoError(t, err, frame)
			assert.Equal(t, want, in.RoomID, frame)
		}
	})

	t.Run("unknown event", func(t *testing.T) {
		_, err := DecodeInbound([]byte(`{"event":"teleport","data":{}}`))
		assert.ErrorIs(t, err, ErrUnknownEvent)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := DecodeInbound([]byte(`hello`))
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})
}

func TestOutboundEncode(t *testing.T) {
	frame, err := Outbound{Target: "a", Event: EventCanvasState, Payload: CanvasStatePayload{}}.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"canvas-state","data":{"snapshot":null}}`, string(frame))

	frame, err = errorTo("a", ErrNotInRoom).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"error","data":{"reason":"join a room first"}}`, string(frame))

	frame, err = Outbound{Event: EventDrawing, Payload: json.RawMessage(`{"type":"rect"}`)}.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"drawing","data":{"type":"rect"}}`, string(frame))
}

func TestDrawingKind(t *testing.T) {
	kind, canvas := drawingKind(json.RawMessage(`{"type":"canvas","canvas":{"objects":[]}}`))
	assert.Equal(t, drawingTypeCanvas, kind)
	assert.JSONEq(t, `{"objects":[]}`, string(canvas))

	kind, _ = drawingKind(json.RawMessage(`[1,2,3]`))
	assert.Empty(t, kind)
}
