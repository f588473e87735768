package synth

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"lahja/internal/domain"
	"lahja/internal/ports"
)

// EspeakEngine synthesizes speech locally through an espeak-ng child
// process. One utterance plays at a time; a new Speak supersedes the old.
type EspeakEngine struct {
	command string
	log     *zap.Logger

	warmOnce sync.Once

	mu      sync.Mutex
	current *utterance
}

type utterance struct {
	cmd        *exec.Cmd
	superseded bool
}

func NewEspeakEngine(command string, log *zap.Logger) *EspeakEngine {
	if command == "" {
		command = "espeak-ng"
	}
	return &EspeakEngine{command: command, log: log}
}

// WarmUp lists the installed voices in the background and reports them once.
func (e *EspeakEngine) WarmUp(ctx context.Context, onReady func([]domain.Voice)) {
	e.warmOnce.Do(func() {
		go func() {
			out, err := exec.CommandContext(ctx, e.command, "--voices").Output()
			if err != nil {
				e.log.Warn("voice listing failed", zap.Error(err))
				onReady(nil)
				return
			}
			voices := parseVoiceList(out)
			e.log.Info("voice catalog loaded", zap.Int("voices", len(voices)))
			onReady(voices)
		}()
	})
}

func (e *EspeakEngine) Speak(ctx context.Context, req ports.SpeechRequest) error {
	cmd := exec.CommandContext(ctx, e.command, buildEspeakArgs(req)...)
	cmd.Stdin = strings.NewReader(req.Text)

	e.mu.Lock()
	e.cancelLocked()
	if err := cmd.Start(); err != nil {
		e.mu.Unlock()
		return err
	}
	active := &utterance{cmd: cmd}
	e.current = active
	e.mu.Unlock()

	err := cmd.Wait()

	e.mu.Lock()
	if e.current == active {
		e.current = nil
	}
	superseded := active.superseded
	e.mu.Unlock()

	if superseded || ctx.Err() != nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return errors.New("speech synthesis failed: " + strings.TrimSpace(string(exitErr.Stderr)))
	}
	return err
}

// Cancel kills the in-flight utterance, if any.
func (e *EspeakEngine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelLocked()
}

func (e *EspeakEngine) cancelLocked() {
	if e.current == nil {
		return
	}
	e.current.superseded = true
	if e.current.cmd.Process != nil {
		_ = e.current.cmd.Process.Kill()
	}
	e.current = nil
}

// buildEspeakArgs maps normalized utterance settings onto espeak flags.
// Rate 1.0 is espeak's default 175 wpm; pitch 1.0 is its default 50.
func buildEspeakArgs(req ports.SpeechRequest) []string {
	rate := req.Rate
	if rate <= 0 {
		rate = 1.0
	}
	pitch := req.Pitch
	if pitch <= 0 {
		pitch = 1.0
	}
	speed := int(math.Round(rate * 175))
	if speed < 80 {
		speed = 80
	}
	level := int(math.Round(pitch * 50))
	if level < 0 {
		level = 0
	}
	if level > 99 {
		level = 99
	}

	voice := req.Lang
	if req.Voice != nil && req.Voice.Name != "" {
		voice = req.Voice.Name
	}

	args := []string{
		"-s", strconv.Itoa(speed),
		"-p", strconv.Itoa(level),
	}
	if voice != "" {
		args = append(args, "-v", voice)
	}
	return append(args, "--stdin")
}

// parseVoiceList reads `espeak-ng --voices` output. Columns are
// Pty Language Age/Gender VoiceName File Other Languages.
func parseVoiceList(out []byte) []domain.Voice {
	var voices []domain.Voice
	scanner := bufio.NewScanner(bytes.NewReader(out))
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			first = false
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		voices = append(voices, domain.Voice{Name: fields[3], Lang: fields[1]})
	}
	return voices
}
