package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"lahja/internal/ports"
)

// Config controls the microphone recorder process.
type Config struct {
	Command     string
	InputFormat string
	InputDevice string
	SampleRate  int
	Channels    int
	ChunkSize   int
}

// FFMPEGCapture records microphone audio as WAV using an ffmpeg child
// process and exposes it as a chunk stream.
type FFMPEGCapture struct {
	cfg Config
}

func NewFFMPEGCapture(cfg Config) *FFMPEGCapture {
	if cfg.Command == "" {
		cfg.Command = "ffmpeg"
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	return &FFMPEGCapture{cfg: cfg}
}

// Supported reports whether the recorder binary is resolvable.
func (c *FFMPEGCapture) Supported() bool {
	_, err := exec.LookPath(c.cfg.Command)
	return err == nil
}

// Acquire starts the recorder process. The context only bounds startup; a
// live session outlives it and is ended through Stop.
func (c *FFMPEGCapture) Acquire(ctx context.Context) (ports.DeviceSession, error) {
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", c.cfg.InputFormat,
		"-i", c.cfg.InputDevice,
		"-ac", strconv.Itoa(c.cfg.Channels),
		"-ar", strconv.Itoa(c.cfg.SampleRate),
		"-f", "wav",
		"-",
	}

	cmd := exec.Command(c.cfg.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create recorder stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start recorder: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		_ = stdout.Close()
		if err != nil {
			return nil, fmt.Errorf("recorder exited before capture started: %w: %s", err, trimSpaceSafe(stderr.String()))
		}
		return nil, errors.New("recorder exited before capture started")
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-waitErr
		_ = stdout.Close()
		return nil, ctx.Err()
	case <-time.After(250 * time.Millisecond):
	}

	session := &ffmpegSession{
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
		chunks:  make(chan []byte, 32),
	}
	go session.readLoop(c.cfg.ChunkSize)
	return session, nil
}

type ffmpegSession struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	chunks chan []byte

	stopRequested atomic.Bool
	stopOnce      sync.Once
	stopErr       error
	closeOnce     sync.Once

	mu      sync.Mutex
	readErr error
}

func (s *ffmpegSession) Chunks() <-chan []byte {
	return s.chunks
}

func (s *ffmpegSession) readLoop(chunkSize int) {
	defer close(s.chunks)
	buf := make([]byte, chunkSize)
	for {
		n, err := s.stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.chunks <- chunk
		}
		if err != nil {
			if !s.stopRequested.Load() {
				// A stream that ends without a stop request means the
				// recorder died under us.
				failure := err
				if errors.Is(err, io.EOF) {
					failure = errors.New("recorder exited unexpectedly")
				}
				s.mu.Lock()
				s.readErr = failure
				s.mu.Unlock()
			}
			return
		}
	}
}

// Stop signals the recorder to finish and waits for it to exit. The WAV
// stream is flushed before the process goes away, so pending chunks stay
// readable until the channel closes.
func (s *ffmpegSession) Stop() error {
	s.stopOnce.Do(func() {
		s.stopRequested.Store(true)
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if s.stopErr == nil {
				s.stopErr = closeErr
			}
		}

		if s.stopErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, trimSpaceSafe(s.stderr.String()))
		}
	})

	return s.stopErr
}

// Err reports a stream failure observed while the session was live. The
// stderr buffer is only read after the process has exited; os/exec keeps
// writing to it until then.
func (s *ffmpegSession) Err() error {
	s.mu.Lock()
	readErr := s.readErr
	s.mu.Unlock()
	if readErr == nil {
		return nil
	}

	select {
	case <-s.waitErr:
	case <-time.After(1200 * time.Millisecond):
		return readErr
	}

	if s.stderr != nil && s.stderr.Len() > 0 {
		return fmt.Errorf("%w: %s", readErr, trimSpaceSafe(s.stderr.String()))
	}
	return readErr
}

func (s *ffmpegSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.Stop()
	})
	return err
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimSpaceSafe(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}
