package domain

import "encoding/json"

// SessionState models the press-to-result capture lifecycle.
type SessionState string

const (
	SessionStateIdle      SessionState = "idle"
	SessionStateAcquiring SessionState = "acquiring_device"
	SessionStateRecording SessionState = "recording"
	SessionStateStopping  SessionState = "stopping"
	SessionStateUploading SessionState = "uploading"
	SessionStateSettled   SessionState = "settled"
)

// Terminal reports whether the state ends a capture session.
func (s SessionState) Terminal() bool {
	return s == SessionStateIdle || s == SessionStateSettled
}

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonReady              SessionStateReason = "ready"
	SessionReasonAcquiringDevice    SessionStateReason = "acquiring_device"
	SessionReasonRecordingStarted   SessionStateReason = "recording_started"
	SessionReasonAnalyzing          SessionStateReason = "analyzing"
	SessionReasonAnalysisComplete   SessionStateReason = "analysis_complete"
	SessionReasonAnalysisFailed     SessionStateReason = "analysis_failed"
	SessionReasonCaptureUnsupported SessionStateReason = "capture_unsupported"
	SessionReasonDeviceFailed       SessionStateReason = "device_failed"
)

// ErrorCode identifies failure classes surfaced to the host.
type ErrorCode string

const (
	ErrorCodeStartup    ErrorCode = "startup"
	ErrorCodeCapability ErrorCode = "capability_unavailable"
	ErrorCodePermission ErrorCode = "permission_denied"
	ErrorCodeDevice     ErrorCode = "device_error"
	ErrorCodeTransport  ErrorCode = "transport_failure"
	ErrorCodeProtocol   ErrorCode = "protocol_failure"
	ErrorCodeSpeech     ErrorCode = "speech"
	ErrorCodeStorage    ErrorCode = "storage"
)

// PhraseContext is the practice-phrase bundle attached to one capture
// session. It is snapshotted when the session begins and stays fixed even
// if the host changes its inputs afterwards.
type PhraseContext struct {
	Native          string `json:"native"`
	Hint            string `json:"hint"`
	Transliteration string `json:"arabic_transliteration"`
}

// AnalysisResult is the settled outcome of one capture session: either an
// opaque JSON payload from the analysis backend or a failure message.
type AnalysisResult struct {
	Payload json.RawMessage `json:"payload,omitempty"`
	Err     string          `json:"error,omitempty"`
}

// Success wraps a backend payload.
func Success(payload json.RawMessage) AnalysisResult {
	return AnalysisResult{Payload: payload}
}

// Failure wraps a human-readable failure message.
func Failure(message string) AnalysisResult {
	return AnalysisResult{Err: message}
}

// Ok reports whether the result carries a payload rather than an error.
func (r AnalysisResult) Ok() bool {
	return r.Err == ""
}

// Voice is one available synthesis voice.
type Voice struct {
	Name string `json:"name"`
	Lang string `json:"lang"`
}

// PollResult is what a capture poll returns: either a settled analysis
// result or the no-update sentinel telling the host to leave its prior UI
// state alone.
type PollResult struct {
	NoUpdate bool            `json:"noUpdate"`
	Result   *AnalysisResult `json:"result,omitempty"`
}

// NoUpdate is the sentinel poll result.
func NoUpdate() PollResult {
	return PollResult{NoUpdate: true}
}

// ResultOf wraps a settled analysis result for the host.
func ResultOf(result AnalysisResult) PollResult {
	return PollResult{Result: &result}
}

// FailurePoll wraps a failure message for the host.
func FailurePoll(message string) PollResult {
	r := Failure(message)
	return PollResult{Result: &r}
}

// TriggerResult is what the speak/play/download polls return. Token is a
// monotonic opaque value issued on each actual side effect so the host can
// detect that something happened without inspecting payload identity.
type TriggerResult struct {
	NoUpdate bool   `json:"noUpdate"`
	Token    int64  `json:"token,omitempty"`
	Err      string `json:"error,omitempty"`
	Path     string `json:"path,omitempty"`
}

// Status summarizes the current runtime status.
type Status struct {
	State   SessionState `json:"state"`
	Active  bool         `json:"active"`
	Message string       `json:"message,omitempty"`
}
