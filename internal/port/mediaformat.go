package port

import "time"

// MediaFormat describes the PCM or compressed stream shape flowing
// through a port. The container treats compressed formats as opaque
// byte streams; only PCM formats participate in frame-length and
// timestamp-extrapolation math.
type MediaFormat struct {
	SampleRate     int
	NumChannels    int
	BitsPerSample  int
	BytesPerSample int
	// Interleaved is true for PCM packed-deinterleaved layout (one
	// buffer, channels interleaved byte-wise); false for PCM unpacked
	// (one buffer per channel).
	Interleaved bool
	Compressed  bool
}

// BytesPerFrame returns the byte stride of one multi-channel PCM sample
// for packed layouts; it is meaningless for compressed formats.
func (mf *MediaFormat) BytesPerFrame() int {
	if mf == nil {
		return 0
	}
	return mf.NumChannels * mf.BytesPerSample
}

// BytesToDuration converts a byte count produced under mf into a
// playback duration, used by timestamp extrapolation (spec §4.9). It
// returns zero for a nil or non-PCM format.
func BytesToDuration(bytes int, mf *MediaFormat) time.Duration {
	if mf == nil || mf.Compressed || mf.SampleRate <= 0 {
		return 0
	}
	frameBytes := mf.BytesPerFrame()
	if frameBytes <= 0 {
		return 0
	}
	frames := bytes / frameBytes
	return time.Duration(frames) * time.Second / time.Duration(mf.SampleRate)
}

// Equal reports whether two media formats describe the same stream
// shape, used to decide whether a media-format change event must fire.
func (mf *MediaFormat) Equal(other *MediaFormat) bool {
	if mf == nil || other == nil {
		return mf == other
	}
	return *mf == *other
}
