package live

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recera/kgview/pkg/interaction"
)

func TestPointerCodec(t *testing.T) {
	tests := []interaction.Event{
		{Kind: interaction.Down, X: 12.5, Y: 300},
		{Kind: interaction.Move, X: -4.25, Y: 0.01},
		{Kind: interaction.Wheel, X: 400, Y: 300, DeltaY: -120},
		{Kind: interaction.Leave},
	}
	for _, ev := range tests {
		t.Run(ev.Kind.String(), func(t *testing.T) {
			got, err := DecodePointer(EncodePointer(ev))
			require.NoError(t, err)
			assert.Equal(t, ev.Kind, got.Kind)
			assert.InDelta(t, ev.X, got.X, 0.005)
			assert.InDelta(t, ev.Y, got.Y, 0.005)
			assert.InDelta(t, ev.DeltaY, got.DeltaY, 0.005)
		})
	}
}

func TestPointerWireFormat(t *testing.T) {
	// x=1px -> 100 -> zigzag 200 -> 0xc8 0x01; y=-0.01px -> -1 -> zigzag 1.
	data := EncodePointer(interaction.Event{Kind: interaction.Up, X: 1, Y: -0.01})
	assert.Equal(t, []byte{byte(FrameEvent), byte(interaction.Up), 0xc8, 0x01, 0x01, 0x00}, data)
}

func TestDecodePointerRejectsBadFrames(t *testing.T) {
	tests := map[string][]byte{
		"empty":        nil,
		"short":        {byte(FrameEvent)},
		"wrong frame":  {byte(FrameControl), 1, 0, 0, 0},
		"unknown kind": {byte(FrameEvent), 9, 0, 0, 0},
		"truncated":    {byte(FrameEvent), byte(interaction.Move), 0x80},
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodePointer(data)
			assert.Error(t, err)
		})
	}
}

func TestControlCodec(t *testing.T) {
	data := EncodeControl(ControlHello, 7)
	name, dec, err := DecodeControl(data)
	require.NoError(t, err)
	assert.Equal(t, ControlHello, name)
	seq, err := dec.ReadUvarint()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), seq)

	_, _, err = DecodeControl([]byte{byte(FrameEvent)})
	assert.Error(t, err)

	// Oversized string length.
	_, _, err = DecodeControl([]byte{byte(FrameControl), 0xff, 0xff, 0x03})
	assert.Error(t, err)
}
