package model

import (
	"errors"
	"fmt"
	"sync"
)

type VoiceState string

const (
	VoiceIdle       VoiceState = "idle"
	VoiceListening  VoiceState = "listening"
	VoiceProcessing VoiceState = "processing"
	VoiceSpeaking   VoiceState = "speaking"
	VoiceError      VoiceState = "error"
)

type VoiceEvent string

const (
	EventCaptureStarted  VoiceEvent = "captureStarted"
	EventCaptureResult   VoiceEvent = "captureResult"
	EventCaptureAborted  VoiceEvent = "captureAborted"
	EventTurnStarted     VoiceEvent = "turnStarted"
	EventServiceReplied  VoiceEvent = "serviceReplied"
	EventPlaybackStarted VoiceEvent = "playbackStarted"
	EventPlaybackEnded   VoiceEvent = "playbackEnded"
	EventTimedOut        VoiceEvent = "timedOut"
	EventFailed          VoiceEvent = "failed"
	EventReset           VoiceEvent = "reset"
)

var ErrInvalidTransition = errors.New("invalid voice state transition")

type transitionKey struct {
	from  VoiceState
	event VoiceEvent
}

// voiceTransitions is the whole machine. Anything not listed is rejected.
var voiceTransitions = map[transitionKey]VoiceState{
	{VoiceIdle, EventCaptureStarted}:  VoiceListening,
	{VoiceError, EventCaptureStarted}: VoiceListening,
	{VoiceIdle, EventTurnStarted}:     VoiceProcessing,
	{VoiceError, EventTurnStarted}:    VoiceProcessing,

	{VoiceListening, EventCaptureResult}:  VoiceProcessing,
	{VoiceListening, EventCaptureAborted}: VoiceIdle,
	{VoiceListening, EventTimedOut}:       VoiceError,
	{VoiceListening, EventFailed}:         VoiceError,

	// a new typed turn supersedes the one in flight
	{VoiceProcessing, EventTurnStarted}:    VoiceProcessing,
	{VoiceProcessing, EventServiceReplied}: VoiceSpeaking,
	{VoiceProcessing, EventTimedOut}:       VoiceError,
	{VoiceProcessing, EventFailed}:         VoiceError,

	{VoiceSpeaking, EventPlaybackStarted}: VoiceSpeaking,
	{VoiceSpeaking, EventPlaybackEnded}:   VoiceIdle,
	{VoiceSpeaking, EventTurnStarted}:     VoiceProcessing,
	{VoiceSpeaking, EventCaptureStarted}:  VoiceListening,
	{VoiceSpeaking, EventFailed}:          VoiceError,
}

// Transition is what listeners observe.
type Transition struct {
	From  VoiceState
	Event VoiceEvent
	To    VoiceState
}

// VoiceMachine holds the single authoritative voice/UI state.
type VoiceMachine struct {
	mu        sync.Mutex
	state     VoiceState
	listeners []func(Transition)
}

func NewVoiceMachine() *VoiceMachine {
	return &VoiceMachine{state: VoiceIdle}
}

func (m *VoiceMachine) State() VoiceState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnTransition registers a listener; listeners run synchronously after the state changed.
func (m *VoiceMachine) OnTransition(fn func(Transition)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Fire applies ev. Reset is accepted from every state.
func (m *VoiceMachine) Fire(ev VoiceEvent) (VoiceState, error) {
	m.mu.Lock()
	from := m.state
	var to VoiceState
	if ev == EventReset {
		to = VoiceIdle
	} else {
		next, ok := voiceTransitions[transitionKey{from, ev}]
		if !ok {
			m.mu.Unlock()
			return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, from)
		}
		to = next
	}
	m.state = to
	listeners := append([]func(Transition){}, m.listeners...)
	m.mu.Unlock()

	tr := Transition{From: from, Event: ev, To: to}
	for _, fn := range listeners {
		fn(tr)
	}
	return to, nil
}

// Busy reports whether a turn or capture is underway.
func (m *VoiceMachine) Busy() bool {
	switch m.State() {
	case VoiceListening, VoiceProcessing, VoiceSpeaking:
		return true
	}
	return false
}

// Capabilities is detected once at startup and consumed everywhere else.
type Capabilities struct {
	CanRecognizeSpeech  bool `json:"canRecognizeSpeech"`
	CanSynthesizeSpeech bool `json:"canSynthesizeSpeech"`
}
