// Package hwdemo wires real hardware I/O — a microphone and a GPIO
// push-to-talk-style line — into the engine for manual, on-device
// testing. Nothing here is exercised by the container's data path
// itself; both files are optional front ends a platform entry point can
// choose to attach, sitting outside the processing core and only
// feeding or gating it, the way a modem's audio/PTT front end does.
package hwdemo

import (
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/spf-audio/gencntr/internal/dwlog"
	"github.com/spf-audio/gencntr/internal/extio"
	"github.com/spf-audio/gencntr/internal/port"
)

// CaptureFrameMs is the PortAudio buffer size in milliseconds, a 10ms
// frame chosen for lower latency over the coarser 40ms buffering older
// audio front ends typically default to.
const CaptureFrameMs = 10

// Capturer reads PCM frames from a real input device and feeds them
// into an external input port's ingress queue as MsgDataV1 messages,
// converting PortAudio's float32 samples to the 16-bit PCM the engine
// expects on the wire.
type Capturer struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	buf    []float32

	in         *extio.Input
	sampleRate int
	channels   int

	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewCapturer returns a Capturer that will push frames into in once
// Start is called. sampleRate/channels describe the device format the
// stream is opened with; samples are converted to 16-bit PCM before
// they are pushed.
func NewCapturer(in *extio.Input, sampleRate, channels int) *Capturer {
	return &Capturer{in: in, sampleRate: sampleRate, channels: channels}
}

// Start opens the default input device and begins the capture loop.
// Calling Start on an already-running Capturer is a no-op.
func (c *Capturer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}

	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		return fmt.Errorf("resolving default input device: %w", err)
	}

	frames := c.sampleRate * CaptureFrameMs / 1000
	buf := make([]float32, frames*c.channels)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: c.channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(c.sampleRate),
		FramesPerBuffer: frames,
	}
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return fmt.Errorf("opening capture stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("starting capture stream: %w", err)
	}

	c.stream = stream
	c.buf = buf
	c.stopCh = make(chan struct{})
	c.running = true

	c.wg.Add(1)
	go func() { defer c.wg.Done(); c.captureLoop(buf) }()

	dwlog.Printf(dwlog.Info, -1, "hwdemo: capture started on %s at %d Hz", dev.Name, c.sampleRate)
	return nil
}

// Stop halts the capture stream and waits for the capture goroutine to
// exit before releasing the native stream: unblock the blocking read
// first, then wg.Wait before Close, to avoid freeing a stream a
// goroutine still touches.
func (c *Capturer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	stream := c.stream
	if stream != nil {
		stream.Stop()
	}
	c.mu.Unlock()

	c.wg.Wait()

	c.mu.Lock()
	if stream != nil {
		stream.Close()
	}
	c.stream = nil
	c.mu.Unlock()
}

func (c *Capturer) captureLoop(buf []float32) {
	pcm := make([]byte, len(buf)*2)
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		if err := c.stream.Read(); err != nil {
			dwlog.Printf(dwlog.Warn, -1, "hwdemo: capture read: %v", err)
			return
		}

		for i, s := range buf {
			v := int16(clamp(s) * 32767)
			pcm[2*i] = byte(v)
			pcm[2*i+1] = byte(v >> 8)
		}

		d := port.NewBufferSet(1, len(pcm), port.OriginInternal)
		copy(d.Bufs[0].Data, pcm)
		d.SetActualDataLen(len(pcm))

		msg := &extio.Message{
			Kind:        extio.MsgDataV1,
			Data:        d,
			Timestamp:   time.Now().UnixNano(),
			TSValid:     true,
			IsPCMPacked: c.channels > 1,
		}
		if err := c.in.Enqueue(msg); err != nil {
			dwlog.Printf(dwlog.Overrun, -1, "hwdemo: capture enqueue: %v", err)
		}
	}
}

func clamp(v float32) float32 {
	if v > 1.0 {
		return 1.0
	}
	if v < -1.0 {
		return -1.0
	}
	return v
}
