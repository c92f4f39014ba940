package anchor

import (
	"sync"

	"github.com/jwgray1010/PawCoin/internal/model"
)

// ActionKind names the lifecycle operation a HistoryAction reverses.
type ActionKind string

const (
	ActionAdd    ActionKind = "add"
	ActionRemove ActionKind = "remove"
	ActionUpdate ActionKind = "update"
)

// HistoryAction is one reversible, locally originated mutation. Add and
// Remove carry Record; Update carries Before and After. All images are
// independent copies.
type HistoryAction struct {
	Kind   ActionKind
	Record model.AnchorRecord
	Before model.AnchorRecord
	After  model.AnchorRecord
}

func (a HistoryAction) clone() HistoryAction {
	return HistoryAction{
		Kind:   a.Kind,
		Record: a.Record.Clone(),
		Before: a.Before.Clone(),
		After:  a.After.Clone(),
	}
}

// Ledger holds the undoable and redoable stacks.
type Ledger struct {
	mu       sync.Mutex
	undoable []HistoryAction
	redoable []HistoryAction
}

// Record pushes a fresh action and invalidates the redo chain.
func (l *Ledger) Record(a HistoryAction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.undoable = append(l.undoable, a.clone())
	l.redoable = nil
}

// PopUndo removes and returns the most recent undoable action.
func (l *Ledger) PopUndo() (HistoryAction, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return pop(&l.undoable)
}

// PushUndo puts a onto the undoable stack without touching the redo chain.
func (l *Ledger) PushUndo(a HistoryAction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.undoable = append(l.undoable, a.clone())
}

// PopRedo removes and returns the most recently undone action.
func (l *Ledger) PopRedo() (HistoryAction, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return pop(&l.redoable)
}

// PushRedo puts a onto the redoable stack.
func (l *Ledger) PushRedo(a HistoryAction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.redoable = append(l.redoable, a.clone())
}

func (l *Ledger) CanUndo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.undoable) > 0
}

func (l *Ledger) CanRedo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.redoable) > 0
}

// Len returns the sizes of the undoable and redoable stacks.
func (l *Ledger) Len() (undo, redo int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.undoable), len(l.redoable)
}

func pop(stack *[]HistoryAction) (HistoryAction, bool) {
	s := *stack
	if len(s) == 0 {
		return HistoryAction{}, false
	}
	a := s[len(s)-1]
	*stack = s[:len(s)-1]
	return a, true
}
