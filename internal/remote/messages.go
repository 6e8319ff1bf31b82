// ABOUTME: Remote control message type definitions
// ABOUTME: JSON envelopes exchanged between controllers and a running player
package remote

import (
	"github.com/Resonate-Protocol/etabla-go/internal/player"
)

// ProtocolVersion is bumped on incompatible message changes
const ProtocolVersion = 1

// Message types
const (
	TypeHello       = "client/hello"
	TypeServerHello = "server/hello"
	TypePlay        = "play"
	TypeStop        = "stop"
	TypeToggle      = "toggle"
	TypeRequest     = "request"
	TypeStatus      = "status"
	TypeError       = "server/error"
)

// Message is the top-level wrapper for all messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// ClientHello is sent by controllers to open a session
type ClientHello struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
}

// ServerHello is the player's response to client/hello
type ServerHello struct {
	ServerID        string   `json:"server_id"`
	Name            string   `json:"name"`
	Version         int      `json:"version"`
	SoftwareVersion string   `json:"software_version"`
	Patterns        []string `json:"patterns"`
}

// RequestPatch changes some fields of the current request. Absent fields
// keep their current value.
type RequestPatch struct {
	Pattern  *string  `json:"pattern,omitempty"`
	Tempo    *float64 `json:"tempo,omitempty"`
	Key      *string  `json:"key,omitempty"`
	FineTune *float64 `json:"fine_tune,omitempty"`
}

// StatusPayload is the player's state pushed on every change
type StatusPayload struct {
	State         string  `json:"state"`
	Playing       bool    `json:"playing"`
	Pattern       string  `json:"pattern"`
	Tempo         float64 `json:"tempo"`
	Key           string  `json:"key"`
	FineTune      float64 `json:"fine_tune"`
	SourcePath    string  `json:"source_path,omitempty"`
	SourceTempo   int     `json:"source_tempo,omitempty"`
	TempoRatio    float64 `json:"tempo_ratio,omitempty"`
	Semitones     float64 `json:"semitones"`
	Session       string  `json:"session,omitempty"`
	Title         string  `json:"title,omitempty"`
	Loops         int     `json:"loops"`
	Beat          int     `json:"beat"`
	BeatsPerCycle int     `json:"beats_per_cycle"`
	Error         string  `json:"error,omitempty"`
	Recoverable   bool    `json:"recoverable,omitempty"`
}

// ErrorPayload reports a rejected message
type ErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewStatusPayload flattens controller state for the wire
func NewStatusPayload(st player.Status, beat player.BeatState) StatusPayload {
	p := StatusPayload{
		State:         st.State.String(),
		Playing:       st.Playing,
		Pattern:       st.Request.Pattern,
		Tempo:         st.Request.Tempo,
		Key:           st.Request.Key.String(),
		FineTune:      st.Request.FineTune,
		SourcePath:    st.Entry.Path,
		SourceTempo:   st.Entry.Tempo,
		TempoRatio:    st.Transform.TempoRatio,
		Semitones:     st.Transform.Semitones,
		Session:       st.SessionID,
		Title:         st.Title,
		Loops:         st.Loops,
		Beat:          beat.Beat,
		BeatsPerCycle: beat.BeatsPerCycle,
	}
	if st.LastError != nil {
		p.Error = st.LastError.Error()
		p.Recoverable = player.Recoverable(st.LastError)
	}
	return p
}
