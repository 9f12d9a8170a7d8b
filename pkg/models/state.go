package models

import "time"

// Trace is one human-readable progress message appended by a pipeline stage.
type Trace struct {
	Stage   string    `json:"stage"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// State is the value passed between pipeline stages. Stages never modify the
// State they receive; they return a new one built with the With* methods.
type State struct {
	Company   string           `json:"company"`
	Ticker    string           `json:"ticker"`
	SessionID string           `json:"session_id"`
	Collected *CollectedRecord `json:"collected,omitempty"`
	Analysis  *AnalysisResult  `json:"analysis,omitempty"`
	Messages  []Trace          `json:"messages"`
}

// NewState returns the initial state for a run.
func NewState(company, ticker, sessionID string) State {
	return State{
		Company:   company,
		Ticker:    ticker,
		SessionID: sessionID,
		Messages:  []Trace{},
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	out.Messages = make([]Trace, len(s.Messages))
	copy(out.Messages, s.Messages)
	if s.Collected != nil {
		c := s.Collected.Clone()
		out.Collected = &c
	}
	if s.Analysis != nil {
		a := *s.Analysis
		out.Analysis = &a
	}
	return out
}

// WithCollected returns a copy of s carrying rec and an appended trace.
func (s State) WithCollected(rec CollectedRecord, trace Trace) State {
	out := s.Clone()
	c := rec.Clone()
	out.Collected = &c
	out.Messages = append(out.Messages, trace)
	return out
}

// WithAnalysis returns a copy of s carrying res and an appended trace.
func (s State) WithAnalysis(res AnalysisResult, trace Trace) State {
	out := s.Clone()
	out.Analysis = &res
	out.Messages = append(out.Messages, trace)
	return out
}
