package vplay

import "fmt"

type Codec int

const (
	H264 Codec = iota
)

func NewCodec(s string) (Codec, error) {
	switch s {
	case "H264", "avc1":
		return H264, nil
	}
	return H264, fmt.Errorf("unknown codec: %s", s)
}

func (c Codec) String() string {
	switch c {
	case H264:
		return "H264"
	}
	return "unknown"
}

// FourCC returns the sample entry type used for the codec in MP4 files.
func (c Codec) FourCC() string {
	switch c {
	case H264:
		return "avc1"
	}
	return "????"
}

func (c Codec) MediaType() string {
	return "video"
}
