package vplay

import "errors"

var (
	ErrNoSuitableTrack        = errors.New("no H.264 video track with avcC configuration found")
	ErrUnsupportedPixelFormat = errors.New("unsupported pixel format")
	ErrDecoderInit            = errors.New("failed to initialize decoder")
)
