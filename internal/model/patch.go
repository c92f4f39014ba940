package model

// Patch is a partial-field update. Nil fields are left untouched; a non-nil
// History replaces the whole sequence.
type Patch struct {
	Completed     *bool          `json:"completed,omitempty"`
	AssignedKidID *string        `json:"assignedKidId,omitempty"`
	StartedAt     *int64         `json:"startedAt,omitempty"`
	FinishedAt    *int64         `json:"finishedAt,omitempty"`
	History       []HistoryEntry `json:"history,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Completed == nil && p.AssignedKidID == nil && p.StartedAt == nil &&
		p.FinishedAt == nil && p.History == nil
}

// Apply writes the patch into r.
func (p Patch) Apply(r *AnchorRecord) {
	if p.Completed != nil {
		r.Completed = *p.Completed
	}
	if p.AssignedKidID != nil {
		r.AssignedKidID = *p.AssignedKidID
	}
	if p.StartedAt != nil {
		v := *p.StartedAt
		r.StartedAt = &v
	}
	if p.FinishedAt != nil {
		v := *p.FinishedAt
		r.FinishedAt = &v
	}
	if p.History != nil {
		r.History = make([]HistoryEntry, len(p.History))
		for i, h := range p.History {
			r.History[i] = h.clone()
		}
	}
}

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }
