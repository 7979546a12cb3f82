package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// readChunk bounds how much PCM is pulled per read so cancellation is
// checked at a reasonable cadence.
const readChunk = 8192

// Record reads exactly duration worth of PCM from the stream without
// altering its configuration. Short reads from a dying stream surface as
// errors; a canceled context stops between chunks.
func Record(ctx context.Context, s Stream, duration time.Duration) ([]byte, error) {
	total := int(float64(s.Format().BytesPerSecond()) * duration.Seconds())
	// Keep whole frames.
	frame := s.Format().Channels * 2
	total -= total % frame

	buf := make([]byte, 0, total)
	chunk := make([]byte, readChunk)
	for len(buf) < total {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		want := total - len(buf)
		if want > len(chunk) {
			want = len(chunk)
		}
		n, err := io.ReadFull(s, chunk[:want])
		buf = append(buf, chunk[:n]...)
		if err != nil {
			return nil, fmt.Errorf("audio: capture stream ended early after %d bytes: %w", len(buf), err)
		}
	}
	return buf, nil
}

// livePipeDepth bounds how much PCM the pipe holds between recordings.
const livePipeDepth = 32

// livePipe keeps draining the capture stream so PCM never backs up in the
// OS pipe while nobody records. The window holds the most recent chunks
// only; Drain drops whatever accumulated since the last borrower.
//
// Read and Drain are for a single borrower at a time; SharedDevice
// serializes them.
type livePipe struct {
	src    Stream
	chunks chan []byte
	done   chan struct{}
	once   sync.Once

	rest []byte
	err  error // set by pump before chunks closes
}

func newLivePipe(src Stream) *livePipe {
	p := &livePipe{
		src:    src,
		chunks: make(chan []byte, livePipeDepth),
		done:   make(chan struct{}),
	}
	go p.pump()
	return p
}

func (p *livePipe) pump() {
	defer close(p.chunks)
	for {
		select {
		case <-p.done:
			return
		default:
		}
		buf := make([]byte, readChunk)
		n, err := p.src.Read(buf)
		if n > 0 {
			p.push(buf[:n])
		}
		if err != nil {
			p.err = err
			return
		}
	}
}

// push appends a chunk, evicting the oldest when the window is full.
func (p *livePipe) push(chunk []byte) {
	for {
		select {
		case p.chunks <- chunk:
			return
		default:
		}
		select {
		case <-p.chunks:
		default:
		}
	}
}

func (p *livePipe) Read(b []byte) (int, error) {
	if len(p.rest) == 0 {
		chunk, ok := <-p.chunks
		if !ok {
			if p.err != nil {
				return 0, p.err
			}
			return 0, io.EOF
		}
		p.rest = chunk
	}
	n := copy(b, p.rest)
	p.rest = p.rest[n:]
	return n, nil
}

// Drain discards everything buffered so the next Read starts at current
// room audio.
func (p *livePipe) Drain() {
	p.rest = nil
	for {
		select {
		case _, ok := <-p.chunks:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func (p *livePipe) Format() Format { return p.src.Format() }

func (p *livePipe) Close() error {
	var err error
	p.once.Do(func() {
		close(p.done)
		err = p.src.Close()
	})
	return err
}

// SharedDevice wraps a Device so the underlying stream is acquired once and
// then borrowed by each recording. Live preview and recording share the one
// handle; Record serializes borrowers and starts each clip from current
// audio rather than whatever queued up since the last one.
type SharedDevice struct {
	dev Device

	mu     sync.Mutex
	stream *livePipe
}

// NewSharedDevice creates a SharedDevice over dev.
func NewSharedDevice(dev Device) *SharedDevice {
	return &SharedDevice{dev: dev}
}

// Record borrows the shared stream for duration and returns the captured
// PCM along with its format.
func (s *SharedDevice) Record(ctx context.Context, duration time.Duration) ([]byte, Format, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		stream, err := s.dev.Acquire(ctx)
		if err != nil {
			return nil, Format{}, fmt.Errorf("%w: %v", ErrNoDevice, err)
		}
		s.stream = newLivePipe(stream)
	}

	s.stream.Drain()
	pcm, err := Record(ctx, s.stream, duration)
	if err != nil {
		// A broken stream is released so the next cycle reacquires.
		s.stream.Close()
		s.stream = nil
		return nil, Format{}, err
	}
	return pcm, s.stream.Format(), nil
}

// Probe reports whether the capture device can currently be acquired. Used
// by the session preflight check; the acquired handle is kept for reuse.
func (s *SharedDevice) Probe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		return nil
	}
	stream, err := s.dev.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	s.stream = newLivePipe(stream)
	return nil
}

// Close releases the shared stream if one is held.
func (s *SharedDevice) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}
	err := s.stream.Close()
	s.stream = nil
	return err
}
