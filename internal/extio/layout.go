package extio

import "github.com/spf-audio/gencntr/internal/port"

// copyStraight copies up to n unconsumed bytes of a single-buffer src
// (raw compressed, or already-unpacked single channel) into dst's
// single buffer, advancing both cursors. Returns bytes actually copied.
func copyStraight(dst *port.BufferSet, src *Message, n int) int {
	avail := src.Remaining()
	free := dst.FreeSpace()
	if n > avail {
		n = avail
	}
	if n > free {
		n = free
	}
	if n <= 0 {
		return 0
	}
	srcBuf := src.Data.Bufs[0]
	dstBuf := dst.Bufs[0]
	copy(dstBuf.Data[dstBuf.ActualDataLen:], srcBuf.Data[src.Consumed:src.Consumed+n])
	dstBuf.ActualDataLen += n
	src.Consumed += n
	return n
}

// copyPerChannel copies n bytes into each of dst's per-channel buffers
// from the corresponding channel of a V2 deinterleaved src, advancing
// the shared cursor on channel 0 (per the "actual length lives only on
// channel 0" convention).
func copyPerChannel(dst *port.BufferSet, src *Message, n int) int {
	avail := src.Remaining()
	free := dst.FreeSpace()
	if n > avail {
		n = avail
	}
	if n > free {
		n = free
	}
	if n <= 0 {
		return 0
	}
	nCh := len(dst.Bufs)
	if len(src.Data.Bufs) < nCh {
		nCh = len(src.Data.Bufs)
	}
	dstOff := dst.Bufs[0].ActualDataLen
	for i := 0; i < nCh; i++ {
		copy(dst.Bufs[i].Data[dstOff:], src.Data.Bufs[i].Data[src.Consumed:src.Consumed+n])
	}
	dst.Bufs[0].ActualDataLen += n
	src.Consumed += n
	return n
}

// deinterleave copies n interleaved bytes from a packed src buffer into
// dst's N per-channel unpacked buffers, per spec §4.3 step 7's "PCM
// packed-deinterleaved -> deinterleaved-unpacked" conversion. n must be
// a whole number of multi-channel samples; any remainder is left
// unconsumed for the next call.
func deinterleave(dst *port.BufferSet, src *Message, mf *port.MediaFormat, n int) int {
	frame := mf.BytesPerFrame()
	if frame <= 0 {
		return 0
	}
	avail := src.Remaining()
	if n > avail {
		n = avail
	}
	n -= n % frame
	freeFrames := dst.FreeSpace() / mf.BytesPerSample
	maxBytes := freeFrames * mf.BytesPerSample * mf.NumChannels
	if n > maxBytes {
		n -= n % frame
		if n > maxBytes {
			n = maxBytes - maxBytes%frame
		}
	}
	if n <= 0 {
		return 0
	}
	samples := n / frame
	srcBuf := src.Data.Bufs[0].Data
	dstOff := dst.Bufs[0].ActualDataLen
	for s := 0; s < samples; s++ {
		base := src.Consumed + s*frame
		for ch := 0; ch < mf.NumChannels; ch++ {
			srcStart := base + ch*mf.BytesPerSample
			dstStart := dstOff + s*mf.BytesPerSample
			copy(dst.Bufs[ch].Data[dstStart:dstStart+mf.BytesPerSample], srcBuf[srcStart:srcStart+mf.BytesPerSample])
		}
	}
	dst.Bufs[0].ActualDataLen += samples * mf.BytesPerSample
	src.Consumed += n
	return n
}

// CopyLayout dispatches to the right conversion based on the source and
// destination layouts (spec §4.3 step 7).
func CopyLayout(dst *port.BufferSet, dstUnpacked bool, src *Message, mf *port.MediaFormat, n int) int {
	switch {
	case src.IsPCMPacked && dstUnpacked:
		return deinterleave(dst, src, mf, n)
	case len(src.Data.Bufs) > 1 && len(dst.Bufs) == len(src.Data.Bufs):
		return copyPerChannel(dst, src, n)
	default:
		return copyStraight(dst, src, n)
	}
}
