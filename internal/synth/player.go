package synth

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"sync"

	"go.uber.org/zap"
)

// FFPlayPlayer plays fetched audio bytes through an ffplay child process.
type FFPlayPlayer struct {
	command string
	log     *zap.Logger

	mu      sync.Mutex
	current *utterance
}

func NewFFPlayPlayer(command string, log *zap.Logger) *FFPlayPlayer {
	if command == "" {
		command = "ffplay"
	}
	return &FFPlayPlayer{command: command, log: log}
}

func (p *FFPlayPlayer) Play(ctx context.Context, audio []byte) error {
	cmd := exec.CommandContext(ctx, p.command,
		"-nodisp",
		"-autoexit",
		"-loglevel", "quiet",
		"-i", "pipe:0",
	)
	cmd.Stdin = bytes.NewReader(audio)

	p.mu.Lock()
	p.stopLocked()
	if err := cmd.Start(); err != nil {
		p.mu.Unlock()
		return err
	}
	active := &utterance{cmd: cmd}
	p.current = active
	p.mu.Unlock()

	err := cmd.Wait()

	p.mu.Lock()
	if p.current == active {
		p.current = nil
	}
	superseded := active.superseded
	p.mu.Unlock()

	if superseded || ctx.Err() != nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		p.log.Warn("playback exited abnormally", zap.Error(err))
		return errors.New("audio playback failed")
	}
	return err
}

// Stop kills the in-flight playback, if any.
func (p *FFPlayPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *FFPlayPlayer) stopLocked() {
	if p.current == nil {
		return
	}
	p.current.superseded = true
	if p.current.cmd.Process != nil {
		_ = p.current.cmd.Process.Kill()
	}
	p.current = nil
}
