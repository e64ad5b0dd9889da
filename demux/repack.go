package demux

import (
	"fmt"
)

var startCode = []byte{0x00, 0x00, 0x00, 0x01}

// AVCRepacker converts AVCC samples (NAL units with big-endian length
// prefixes) to Annex-B. The parameter sets are emitted in front of the first
// repacked sample only.
type AVCRepacker struct {
	lengthSize int
	header     []byte
	headerSent bool
}

func NewAVCRepacker(lengthSize int, sps, pps [][]byte) (*AVCRepacker, error) {
	switch lengthSize {
	case 1, 2, 4:
	default:
		return nil, fmt.Errorf("invalid NAL length size: %v", lengthSize)
	}
	var header []byte
	for _, nalus := range [][][]byte{sps, pps} {
		for _, nalu := range nalus {
			header = append(header, startCode...)
			header = append(header, nalu...)
		}
	}
	return &AVCRepacker{
		lengthSize: lengthSize,
		header:     header,
	}, nil
}

// Repack implements vplay.Repacker.
func (p *AVCRepacker) Repack(sample []byte) ([]byte, error) {
	var out []byte
	if p.headerSent {
		out = make([]byte, 0, len(sample)+16)
	} else {
		out = make([]byte, 0, len(p.header)+len(sample)+16)
		out = append(out, p.header...)
	}
	rest := sample
	for len(rest) > 0 {
		if len(rest) < p.lengthSize {
			return nil, fmt.Errorf("truncated NAL length prefix: %v bytes left", len(rest))
		}
		n := 0
		for _, b := range rest[:p.lengthSize] {
			n = n<<8 | int(b)
		}
		rest = rest[p.lengthSize:]
		if n > len(rest) {
			return nil, fmt.Errorf("NAL length %v exceeds remaining %v bytes", n, len(rest))
		}
		out = append(out, startCode...)
		out = append(out, rest[:n]...)
		rest = rest[n:]
	}
	p.headerSent = true
	return out, nil
}

func withStartCode(nalu []byte) []byte {
	b := make([]byte, 0, len(startCode)+len(nalu))
	b = append(b, startCode...)
	return append(b, nalu...)
}
