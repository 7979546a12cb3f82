package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"time"
)

// FFmpegDevice captures microphone PCM by spawning ffmpeg and reading s16le
// from its stdout. It needs no cgo and works with whatever input backend
// the platform ffmpeg was built with.
type FFmpegDevice struct {
	// Binary is the ffmpeg executable. Defaults to "ffmpeg".
	Binary string

	// InputFormat is the ffmpeg input demuxer (pulse, alsa, avfoundation,
	// dshow). Defaults per platform.
	InputFormat string

	// InputDevice is the capture source name. Defaults to "default".
	InputDevice string

	// Format is the PCM format ffmpeg is asked to produce. Defaults to
	// mono 48 kHz, downconverted later for the speech model.
	Format Format
}

func (d *FFmpegDevice) defaults() FFmpegDevice {
	out := *d
	if out.Binary == "" {
		out.Binary = "ffmpeg"
	}
	if out.InputFormat == "" {
		switch runtime.GOOS {
		case "darwin":
			out.InputFormat = "avfoundation"
		case "windows":
			out.InputFormat = "dshow"
		default:
			out.InputFormat = "pulse"
		}
	}
	if out.InputDevice == "" {
		out.InputDevice = "default"
	}
	if out.Format.SampleRate == 0 {
		out.Format.SampleRate = 48000
	}
	if out.Format.Channels == 0 {
		out.Format.Channels = 1
	}
	return out
}

// Acquire starts the ffmpeg capture process. An ffmpeg that exits before
// producing audio (missing device, denied access) fails the acquisition.
func (d *FFmpegDevice) Acquire(ctx context.Context) (Stream, error) {
	cfg := d.defaults()

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Format.Channels),
		"-ar", strconv.Itoa(cfg.Format.SampleRate),
		"-f", "s16le",
		"-",
	}

	cmd := exec.CommandContext(ctx, cfg.Binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("audio: ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("audio: start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("audio: ffmpeg exited before capture started: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
		}
		return nil, errors.New("audio: ffmpeg exited before capture started")
	case <-time.After(250 * time.Millisecond):
	}

	return &ffmpegStream{
		format:  cfg.Format,
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

type ffmpegStream struct {
	format Format
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	closeOnce sync.Once
	closeErr  error
}

func (s *ffmpegStream) Format() Format { return s.format }

func (s *ffmpegStream) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *ffmpegStream) Close() error {
	s.closeOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.closeErr = ignoreExit(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			if err, ok := <-s.waitErr; ok {
				s.closeErr = ignoreExit(err)
			}
		}

		if err := s.stdout.Close(); err != nil && !errors.Is(err, os.ErrClosed) && s.closeErr == nil {
			s.closeErr = err
		}
		if s.closeErr != nil && s.stderr.Len() > 0 {
			s.closeErr = fmt.Errorf("%w: %s", s.closeErr, bytes.TrimSpace(s.stderr.Bytes()))
		}
	})
	return s.closeErr
}

// ignoreExit drops the expected non-zero exit from interrupting ffmpeg.
func ignoreExit(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
