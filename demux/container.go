// Package demux reads H.264 video samples from MP4 files and turns them into
// Annex-B encoded chunks.
package demux

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/abema/go-mp4"
	"github.com/mengelbart/vplay"
	"github.com/yapingcat/gomedia/go-codec"
)

// File is what Open needs from the underlying container file.
type File interface {
	io.ReadSeeker
	io.ReaderAt
}

type sample struct {
	offset uint64
	size   uint32
	start  int64
	ctts   int64
}

// Container is an opened MP4 file with one selected H.264 video track.
type Container struct {
	file        File
	track       vplay.TrackInfo
	samples     []sample
	syncSamples []uint32
}

// Open parses the container header and selects the first H.264 video track
// that carries an inline avcC configuration box.
func Open(f File) (*Container, error) {
	info, err := mp4.Probe(f)
	if err != nil {
		return nil, fmt.Errorf("failed to probe mp4: %w", err)
	}
	var track *mp4.Track
	for _, t := range info.Tracks {
		if t.Codec == mp4.CodecAVC1 && t.AVC != nil && !t.Encrypted {
			track = t
			break
		}
	}
	if track == nil {
		return nil, vplay.ErrNoSuitableTrack
	}
	trak, err := findTrak(f, track.TrackID)
	if err != nil {
		return nil, err
	}
	avcC, err := readAVCC(f, trak)
	if err != nil {
		return nil, err
	}
	if len(avcC) < 7 {
		return nil, fmt.Errorf("%w: avcC too short", vplay.ErrNoSuitableTrack)
	}
	lengthSize := int(avcC[4]&0x03) + 1
	if lengthSize == 3 {
		return nil, fmt.Errorf("invalid NAL length size: %v", lengthSize)
	}
	sps, pps, err := splitParameterSets(avcC)
	if err != nil {
		return nil, err
	}
	syncSamples, err := readSyncSamples(f, trak)
	if err != nil {
		return nil, err
	}

	c := &Container{
		file:        f,
		samples:     buildSampleTable(track),
		syncSamples: syncSamples,
	}
	if len(c.samples) == 0 {
		return nil, fmt.Errorf("%w: track %v has no samples", vplay.ErrNoSuitableTrack, track.TrackID)
	}

	width, height := int(track.AVC.Width), int(track.AVC.Height)
	if width == 0 || height == 0 {
		w, h := codec.GetH264Resolution(withStartCode(sps[0]))
		width, height = int(w), int(h)
	}
	durationUnits := int64(track.Duration)
	if durationUnits == 0 {
		last := c.samples[len(c.samples)-1]
		durationUnits = last.start + int64(track.Samples[len(track.Samples)-1].TimeDelta)
	}
	duration := vplay.UnitsToDuration(durationUnits, track.Timescale)
	fps := 0.0
	if duration > 0 {
		fps = float64(len(c.samples)) / duration.Seconds()
	}
	c.track = vplay.TrackInfo{
		TrackID:               track.TrackID,
		Codec:                 vplay.H264,
		SampleCount:           uint32(len(c.samples)),
		Timescale:             track.Timescale,
		FPS:                   fps,
		Bitrate:               track.Samples.GetBitrate(track.Timescale),
		Width:                 width,
		Height:                height,
		DefaultSampleDuration: track.Samples[0].TimeDelta,
		Duration:              duration,
		LengthSize:            lengthSize,
		SPS:                   sps,
		PPS:                   pps,
	}
	return c, nil
}

// Track returns the metadata of the selected track.
func (c *Container) Track() vplay.TrackInfo {
	return c.track
}

// SyncSamples returns the 1-based sample numbers of the keyframes, or nil if
// the track has no sync sample table.
func (c *Container) SyncSamples() []uint32 {
	return c.syncSamples
}

// IsSync reports whether sample n is a keyframe. Without a sync sample table
// every sample is a keyframe.
func (c *Container) IsSync(n uint32) bool {
	if c.syncSamples == nil {
		return true
	}
	_, found := searchSync(c.syncSamples, n)
	return found
}

// ReadSample reads the raw, length-prefixed payload of sample n (1-based).
func (c *Container) ReadSample(n uint32) ([]byte, error) {
	if n == 0 || int(n) > len(c.samples) {
		return nil, fmt.Errorf("sample %v out of range [1, %v]", n, len(c.samples))
	}
	s := c.samples[n-1]
	buf := make([]byte, s.size)
	if _, err := c.file.ReadAt(buf, int64(s.offset)); err != nil {
		return nil, fmt.Errorf("failed to read sample %v: %w", n, err)
	}
	return buf, nil
}

// Timestamps returns the presentation and decode timestamp of sample n.
func (c *Container) Timestamps(n uint32) (pts, dts time.Duration) {
	s := c.samples[n-1]
	ts := c.track.Timescale
	return vplay.UnitsToDuration(s.start+s.ctts, ts), vplay.UnitsToDuration(s.start, ts)
}

func buildSampleTable(t *mp4.Track) []sample {
	samples := make([]sample, 0, len(t.Samples))
	var start int64
	i := 0
	for _, chunk := range t.Chunks {
		offset := chunk.DataOffset
		for j := uint32(0); j < chunk.SamplesPerChunk && i < len(t.Samples); j++ {
			s := t.Samples[i]
			samples = append(samples, sample{
				offset: offset,
				size:   s.Size,
				start:  start,
				ctts:   s.CompositionTimeOffset,
			})
			offset += uint64(s.Size)
			start += int64(s.TimeDelta)
			i++
		}
	}
	return samples
}

func findTrak(r io.ReadSeeker, trackID uint32) (*mp4.BoxInfo, error) {
	traks, err := mp4.ExtractBox(r, nil, mp4.BoxPath{mp4.BoxTypeMoov(), mp4.BoxTypeTrak()})
	if err != nil {
		return nil, err
	}
	for _, trak := range traks {
		tkhds, err := mp4.ExtractBoxWithPayload(r, trak, mp4.BoxPath{mp4.BoxTypeTkhd()})
		if err != nil {
			return nil, err
		}
		for _, b := range tkhds {
			if tkhd, ok := b.Payload.(*mp4.Tkhd); ok && tkhd.TrackID == trackID {
				return trak, nil
			}
		}
	}
	return nil, fmt.Errorf("trak box for track %v not found", trackID)
}

func readAVCC(r File, trak *mp4.BoxInfo) ([]byte, error) {
	boxes, err := mp4.ExtractBox(r, trak, mp4.BoxPath{
		mp4.BoxTypeMdia(),
		mp4.BoxTypeMinf(),
		mp4.BoxTypeStbl(),
		mp4.BoxTypeStsd(),
		mp4.BoxTypeAvc1(),
		mp4.BoxTypeAvcC(),
	})
	if err != nil {
		return nil, err
	}
	if len(boxes) == 0 {
		return nil, vplay.ErrNoSuitableTrack
	}
	bi := boxes[0]
	buf := make([]byte, bi.Size-bi.HeaderSize)
	if _, err := r.ReadAt(buf, int64(bi.Offset+bi.HeaderSize)); err != nil {
		return nil, fmt.Errorf("failed to read avcC: %w", err)
	}
	return buf, nil
}

func readSyncSamples(r io.ReadSeeker, trak *mp4.BoxInfo) ([]uint32, error) {
	boxes, err := mp4.ExtractBoxWithPayload(r, trak, mp4.BoxPath{
		mp4.BoxTypeMdia(),
		mp4.BoxTypeMinf(),
		mp4.BoxTypeStbl(),
		mp4.BoxTypeStss(),
	})
	if err != nil {
		return nil, err
	}
	if len(boxes) == 0 {
		return nil, nil
	}
	stss, ok := boxes[0].Payload.(*mp4.Stss)
	if !ok {
		return nil, errors.New("unexpected stss payload")
	}
	return stss.SampleNumber, nil
}

// splitParameterSets returns the SPS and PPS NAL units of an avcC record
// without start codes.
func splitParameterSets(avcC []byte) (sps, pps [][]byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: malformed avcC: %v", vplay.ErrNoSuitableTrack, r)
		}
	}()
	spss, ppss := codec.CovertExtradata(avcC)
	if len(spss) == 0 || len(ppss) == 0 {
		return nil, nil, fmt.Errorf("%w: avcC without SPS or PPS", vplay.ErrNoSuitableTrack)
	}
	for _, s := range spss {
		sps = append(sps, s[len(startCode):])
	}
	for _, p := range ppss {
		pps = append(pps, p[len(startCode):])
	}
	return sps, pps, nil
}
