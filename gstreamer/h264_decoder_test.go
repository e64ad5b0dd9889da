package gstreamer

import (
	"testing"

	"github.com/mengelbart/vplay"
	"github.com/stretchr/testify/assert"
)

func TestNewH264DecoderUnknownElement(t *testing.T) {
	track := vplay.TrackInfo{Codec: vplay.H264, Width: 64, Height: 48}
	_, err := NewH264Decoder(track, H264DecoderElement("vplay-no-such-decoder"))
	assert.ErrorIs(t, err, vplay.ErrDecoderInit)
}

func TestNewEngineFactory(t *testing.T) {
	track := vplay.TrackInfo{Codec: vplay.H264, Width: 64, Height: 48}
	e, err := NewEngineFactory(H264DecoderElement("vplay-no-such-decoder"))(track)
	assert.Nil(t, e)
	assert.ErrorIs(t, err, vplay.ErrDecoderInit)
}

func TestNewH264DecoderRejectsOtherCodecs(t *testing.T) {
	track := vplay.TrackInfo{Codec: vplay.Codec(7), Width: 64, Height: 48}
	_, err := NewH264Decoder(track, H264DecoderTrace(true))
	assert.ErrorIs(t, err, vplay.ErrDecoderInit)
}
