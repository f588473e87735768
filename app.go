package main

import (
	"context"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"lahja/internal/bootstrap"
	"lahja/internal/bridge"
	"lahja/internal/config"
	"lahja/internal/domain"
)

const (
	eventState  = "lahja:state"
	eventStatus = "lahja:status"
	eventError  = "lahja:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context
	log *zap.Logger

	bridge  *bridge.Bridge
	cfg     config.Config
	bootErr error
}

func NewApp(log *zap.Logger) *App {
	return &App{log: log}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, a.log)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.bridge = services.Bridge
	a.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonReady)
}

// PressStart begins a press-and-hold capture session.
func (a *App) PressStart(phrase domain.PhraseContext) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.bridge.PressStart(phrase)
	return nil
}

// PressEnd releases the capture control.
func (a *App) PressEnd() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.bridge.PressEnd()
	return nil
}

// PollCapture delivers a settled analysis result, guidance, or no-update.
func (a *App) PollCapture(seq uint64, phrase domain.PhraseContext) (domain.PollResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.PollResult{}, err
	}
	return a.bridge.CapturePoll(seq, phrase), nil
}

// PollFeedback speaks feedback text aloud.
func (a *App) PollFeedback(seq uint64, feedback string) (domain.TriggerResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.TriggerResult{}, err
	}
	return a.bridge.FeedbackPoll(seq, feedback), nil
}

// PollPlay plays backend-synthesized feedback audio.
func (a *App) PollPlay(seq uint64, feedback string) (domain.TriggerResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.TriggerResult{}, err
	}
	return a.bridge.PlayPoll(seq, feedback), nil
}

// PollDownload saves backend-synthesized feedback audio locally.
func (a *App) PollDownload(seq uint64, feedback string) (domain.TriggerResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.TriggerResult{}, err
	}
	return a.bridge.DownloadPoll(seq, feedback), nil
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.bridge == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateIdle, Active: false, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle, Active: false}
	}
	return a.bridge.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"coachBaseURL":     a.cfg.Coach.BaseURL,
		"speechEngine":     a.cfg.Speech.Engine,
		"targetLang":       a.cfg.Speech.TargetLang,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"downloadDir":      a.cfg.Store.Dir,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.bridge == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// SessionStateChanged emits capture lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventState, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

// StatusText emits free-form status line updates.
func (a *App) StatusText(text string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventStatus, map[string]string{"text": text})
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonReady:
		return "Ready"
	case domain.SessionReasonAcquiringDevice:
		return "Opening microphone..."
	case domain.SessionReasonRecordingStarted:
		return "Recording"
	case domain.SessionReasonAnalyzing:
		return "Recording stopped. Analyzing..."
	case domain.SessionReasonAnalysisComplete:
		return "Analysis complete"
	case domain.SessionReasonAnalysisFailed:
		return "Analysis failed"
	case domain.SessionReasonCaptureUnsupported:
		return "Microphone capture unavailable"
	case domain.SessionReasonDeviceFailed:
		return "Microphone failed"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeCapability:
		return "Microphone capture unavailable"
	case domain.ErrorCodePermission:
		return "Microphone access denied"
	case domain.ErrorCodeDevice:
		return "Microphone error"
	case domain.ErrorCodeTransport:
		return "Coach backend unreachable"
	case domain.ErrorCodeProtocol:
		return "Coach backend returned an invalid response"
	case domain.ErrorCodeSpeech:
		return "Speech playback issue"
	case domain.ErrorCodeStorage:
		return "Could not save feedback audio"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
