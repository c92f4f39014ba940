package model

import (
	"encoding/json"
	"fmt"
	"math"
)

// DefaultMinDurationSeconds applies when an anchor is created without a minimum duration.
const DefaultMinDurationSeconds = 60

// Position is a point in the AR session's world coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// UnmarshalJSON rejects positions that do not carry all three components as
// JSON numbers. Quoted numbers are rejected too.
func (p *Position) UnmarshalJSON(data []byte) error {
	var raw struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
		Z *float64 `json:"z"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("position: %w", err)
	}
	if raw.X == nil || raw.Y == nil || raw.Z == nil {
		return fmt.Errorf("position: x, y and z are required")
	}
	p.X, p.Y, p.Z = *raw.X, *raw.Y, *raw.Z
	return nil
}

// Finite reports whether every component is a finite number.
func (p Position) Finite() bool {
	for _, v := range [3]float64{p.X, p.Y, p.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Distance returns the euclidean distance between two positions.
func (p Position) Distance(o Position) float64 {
	dx, dy, dz := p.X-o.X, p.Y-o.Y, p.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// HistoryEntry is a free-form event appended to an anchor's history.
type HistoryEntry struct {
	Event     string         `json:"event"`
	Actor     string         `json:"actor,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

func (h HistoryEntry) clone() HistoryEntry {
	out := h
	if h.Details != nil {
		out.Details = make(map[string]any, len(h.Details))
		for k, v := range h.Details {
			out.Details[k] = v
		}
	}
	return out
}

// AnchorRecord is one chore location placed in the AR scene.
// Timestamps are epoch milliseconds.
type AnchorRecord struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Description        string         `json:"description"`
	Position           *Position      `json:"position"`
	AssignedKidID      string         `json:"assignedKidId,omitempty"`
	Completed          bool           `json:"completed"`
	QRStartCode        string         `json:"qrStartCode"`
	QREndCode          string         `json:"qrEndCode"`
	MinDurationSeconds int            `json:"minDurationSeconds"`
	StartedAt          *int64         `json:"startedAt"`
	FinishedAt         *int64         `json:"finishedAt"`
	History            []HistoryEntry `json:"history"`
}

// Clone returns a deep copy that shares no mutable state with r.
func (r AnchorRecord) Clone() AnchorRecord {
	out := r
	if r.Position != nil {
		p := *r.Position
		out.Position = &p
	}
	if r.StartedAt != nil {
		v := *r.StartedAt
		out.StartedAt = &v
	}
	if r.FinishedAt != nil {
		v := *r.FinishedAt
		out.FinishedAt = &v
	}
	if r.History != nil {
		out.History = make([]HistoryEntry, len(r.History))
		for i, h := range r.History {
			out.History[i] = h.clone()
		}
	}
	return out
}

// EffectiveMinDuration returns MinDurationSeconds, or the default when unset.
func (r AnchorRecord) EffectiveMinDuration() int {
	if r.MinDurationSeconds <= 0 {
		return DefaultMinDurationSeconds
	}
	return r.MinDurationSeconds
}

// ChoreState is the derived progress of the chore attached to an anchor.
type ChoreState string

const (
	StateUnstarted  ChoreState = "unstarted"
	StateStarted    ChoreState = "started"
	StateCompleted  ChoreState = "completed"
	StateIncomplete ChoreState = "incomplete"
)

// State derives the chore state. A completed flag wins over timestamps so the
// manual approval path reads as completed.
func (r AnchorRecord) State() ChoreState {
	switch {
	case r.Completed:
		return StateCompleted
	case r.StartedAt != nil && r.FinishedAt != nil:
		return StateIncomplete
	case r.StartedAt != nil:
		return StateStarted
	default:
		return StateUnstarted
	}
}

// AnchorInput is the candidate passed to AddAnchor.
type AnchorInput struct {
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	Position           *Position `json:"position"`
	AssignedKidID      string    `json:"assignedKidId,omitempty"`
	MinDurationSeconds int       `json:"minDurationSeconds,omitempty"`
}

// InputFromRecord extracts the user-editable fields of a record.
func InputFromRecord(r AnchorRecord) AnchorInput {
	in := AnchorInput{
		Name:               r.Name,
		Description:        r.Description,
		AssignedKidID:      r.AssignedKidID,
		MinDurationSeconds: r.MinDurationSeconds,
	}
	if r.Position != nil {
		p := *r.Position
		in.Position = &p
	}
	return in
}

// QRCodes are the start/end challenge tokens of an anchor.
type QRCodes struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// CloneAll deep-copies a slice of records.
func CloneAll(in []AnchorRecord) []AnchorRecord {
	if in == nil {
		return nil
	}
	out := make([]AnchorRecord, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
