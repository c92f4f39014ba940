// Package anchor owns the chore anchor lifecycle: the local cache mirroring
// the remote collection, the observer bus, the undo/redo ledger and the
// operations that move an anchor through Unstarted, Started and Finished.
package anchor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwgray1010/PawCoin/internal/events"
	"github.com/jwgray1010/PawCoin/internal/model"
	"github.com/jwgray1010/PawCoin/internal/remote"
)

// Outcome of FinishChore.
const (
	OutcomeCompleted = "completed"
	OutcomeTooShort  = "too_short"
)

// FinishResult reports the gated completion decision of FinishChore.
type FinishResult struct {
	FinishedAt int64   `json:"finishedAt"`
	Completed  bool    `json:"completed"`
	Duration   float64 `json:"duration"`
	Outcome    string  `json:"outcome"`
}

// Manager is the single entry point for anchor mutations. One Manager is
// expected per device session; its cache, bus and ledger are not shared.
//
// Remote failures never panic past the Manager: they are logged, counted and
// returned as errors alongside the zero result.
type Manager struct {
	store  remote.Store
	bus    *events.Bus[Snapshot]
	cache  *Cache
	ledger *Ledger

	log              zerolog.Logger
	now              func() time.Time
	newID            func() string
	preserveIdentity bool

	feedMu      sync.Mutex
	feedGen     uint64
	unsubscribe remote.Unsubscribe
}

// NewManager builds a Manager on top of store.
func NewManager(store remote.Store, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("anchor: store is required")
	}
	m := &Manager{
		store:            store,
		ledger:           &Ledger{},
		log:              zerolog.Nop(),
		now:              time.Now,
		newID:            uuid.NewString,
		preserveIdentity: true,
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	m.bus = events.NewBus[Snapshot](m.log)
	m.cache = NewCache(m.bus)
	return m, nil
}

// AddListener subscribes fn to every cache change.
func (m *Manager) AddListener(fn func(Snapshot)) events.Subscription {
	return m.bus.Subscribe(fn)
}

// RemoveListener drops a listener registered with AddListener.
func (m *Manager) RemoveListener(s events.Subscription) bool {
	return m.bus.Unsubscribe(s)
}

// All returns a snapshot of the cached anchors.
func (m *Manager) All() []model.AnchorRecord { return m.cache.All() }

// Get returns the cached anchor with id.
func (m *Manager) Get(id string) (model.AnchorRecord, bool) { return m.cache.Get(id) }

func (m *Manager) CanUndo() bool { return m.ledger.CanUndo() }
func (m *Manager) CanRedo() bool { return m.ledger.CanRedo() }

// LoadAnchors replaces the cache with the remote collection.
func (m *Manager) LoadAnchors(ctx context.Context) ([]model.AnchorRecord, error) {
	recs, err := m.store.GetAll(ctx)
	if err != nil {
		return nil, m.fail("load", "", err)
	}
	m.cache.ReplaceAll(recs)
	m.succeed("load")
	return m.cache.All(), nil
}

// ListenToAnchors subscribes the cache to the remote feed. Every push replaces
// the whole cache; the ledger is never touched. Listening again replaces the
// previous subscription. Listeners may call StopListening or ListenToAnchors
// from inside a notification.
func (m *Manager) ListenToAnchors(ctx context.Context) error {
	m.feedMu.Lock()
	m.feedGen++
	gen := m.feedGen
	m.feedMu.Unlock()

	unsub, err := m.store.SubscribeCollection(ctx, func(recs []model.AnchorRecord) {
		m.log.Debug().Int("anchors", len(recs)).Msg("feed snapshot")
		m.cache.ReplaceAll(recs)
	})
	if err != nil {
		return m.fail("listen", "", err)
	}

	m.feedMu.Lock()
	if m.feedGen != gen {
		// stopped or re-listened while subscribing
		m.feedMu.Unlock()
		unsub()
		return nil
	}
	prev := m.unsubscribe
	m.unsubscribe = unsub
	m.feedMu.Unlock()
	if prev != nil {
		prev()
	}
	return nil
}

// StopListening tears down the feed subscription, if any.
func (m *Manager) StopListening() {
	m.feedMu.Lock()
	m.feedGen++
	unsub := m.unsubscribe
	m.unsubscribe = nil
	m.feedMu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// AddAnchor validates in, mints its identity and writes it. Validation
// failures return before any store call.
func (m *Manager) AddAnchor(ctx context.Context, in model.AnchorInput) (*model.AnchorRecord, error) {
	if err := model.Validate(in); err != nil {
		operationsTotal.WithLabelValues("add", resultInvalid).Inc()
		m.log.Warn().Err(err).Msg("anchor rejected")
		return nil, err
	}
	rec := m.mint(in)
	if err := m.put(ctx, rec); err != nil {
		return nil, m.fail("add", rec.ID, err)
	}
	m.ledger.Record(HistoryAction{Kind: ActionAdd, Record: rec})
	m.succeed("add")
	out := rec.Clone()
	return &out, nil
}

// UpdateAnchor writes rec in full and records the change for undo.
func (m *Manager) UpdateAnchor(ctx context.Context, rec model.AnchorRecord) (bool, error) {
	if rec.ID == "" {
		operationsTotal.WithLabelValues("update", resultInvalid).Inc()
		return false, model.ErrMissingID
	}
	if err := model.ValidateRecord(rec); err != nil {
		operationsTotal.WithLabelValues("update", resultInvalid).Inc()
		return false, err
	}
	before, err := m.preImage(ctx, "update", rec.ID)
	if err != nil {
		return false, m.fail("update", rec.ID, err)
	}
	if err := m.put(ctx, rec); err != nil {
		return false, m.fail("update", rec.ID, err)
	}
	m.ledger.Record(HistoryAction{Kind: ActionUpdate, Before: before, After: rec})
	m.succeed("update")
	return true, nil
}

// RemoveAnchor deletes id and records the removed record for undo.
func (m *Manager) RemoveAnchor(ctx context.Context, id string) (bool, error) {
	before, err := m.preImage(ctx, "remove", id)
	if err != nil {
		return false, m.fail("remove", id, err)
	}
	if err := m.delete(ctx, id); err != nil {
		return false, m.fail("remove", id, err)
	}
	m.ledger.Record(HistoryAction{Kind: ActionRemove, Record: before})
	m.succeed("remove")
	return true, nil
}

// CompleteAnchor marks id completed without any duration check.
func (m *Manager) CompleteAnchor(ctx context.Context, id string) (bool, error) {
	return m.patch(ctx, "complete", id, model.Patch{Completed: model.Bool(true)})
}

// AssignKidToAnchor sets the assigned kid. An empty kidID unassigns.
func (m *Manager) AssignKidToAnchor(ctx context.Context, id, kidID string) (bool, error) {
	return m.patch(ctx, "assign", id, model.Patch{AssignedKidID: model.String(kidID)})
}

// StartChore stamps startedAt with the current time, overwriting any
// earlier start.
func (m *Manager) StartChore(ctx context.Context, id string) (bool, error) {
	return m.patch(ctx, "start", id, model.Patch{StartedAt: model.Int64(m.nowMillis())})
}

// FinishChore stamps finishedAt and completes the chore only when at least
// the anchor's minimum duration has elapsed since it was started. The record
// is read from the remote store.
func (m *Manager) FinishChore(ctx context.Context, id string) (*FinishResult, error) {
	rec, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, m.fail("finish", id, err)
	}
	finishedAt := m.nowMillis()
	var duration float64
	if rec.StartedAt != nil {
		duration = float64(finishedAt-*rec.StartedAt) / 1000
	}
	completed := duration >= float64(rec.EffectiveMinDuration())

	p := model.Patch{FinishedAt: model.Int64(finishedAt), Completed: model.Bool(completed)}
	if err := m.store.Update(ctx, id, p); err != nil {
		return nil, m.fail("finish", id, err)
	}
	m.cache.Patch(id, p)
	m.succeed("finish")

	res := &FinishResult{FinishedAt: finishedAt, Completed: completed, Duration: duration, Outcome: OutcomeTooShort}
	if completed {
		res.Outcome = OutcomeCompleted
	}
	m.log.Info().Str("anchor_id", id).Float64("duration", duration).Str("outcome", res.Outcome).Msg("chore finished")
	return res, nil
}

// AddHistory appends entry, stamped with the current time, to id's history.
func (m *Manager) AddHistory(ctx context.Context, id string, entry model.HistoryEntry) (bool, error) {
	rec, err := m.store.Get(ctx, id)
	if err != nil {
		return false, m.fail("history", id, err)
	}
	entry.Timestamp = m.nowMillis()
	history := make([]model.HistoryEntry, 0, len(rec.History)+1)
	history = append(history, rec.History...)
	history = append(history, entry)
	return m.patch(ctx, "history", id, model.Patch{History: history})
}

// GetQrCodes returns the start and end challenge tokens of id.
func (m *Manager) GetQrCodes(ctx context.Context, id string) (*model.QRCodes, error) {
	rec, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, m.fail("qr", id, err)
	}
	return &model.QRCodes{Start: rec.QRStartCode, End: rec.QREndCode}, nil
}

// ClearAllAnchors deletes every remote anchor and empties the cache. The
// undo history is kept.
func (m *Manager) ClearAllAnchors(ctx context.Context) (bool, error) {
	if err := m.store.DeleteAll(ctx); err != nil {
		return false, m.fail("clear", "", err)
	}
	m.cache.ReplaceAll(nil)
	m.succeed("clear")
	return true, nil
}

// Undo reverses the most recent undoable action. It returns false with a nil
// error when there is nothing to undo. If reversing fails the action stays
// on the undo stack.
func (m *Manager) Undo(ctx context.Context) (bool, error) {
	a, ok := m.ledger.PopUndo()
	if !ok {
		return false, nil
	}
	var err error
	switch a.Kind {
	case ActionAdd:
		err = m.delete(ctx, a.Record.ID)
	case ActionRemove:
		err = m.restore(ctx, &a)
	case ActionUpdate:
		err = m.put(ctx, a.Before)
	}
	if err != nil {
		m.ledger.PushUndo(a)
		return false, m.fail("undo", a.target(), err)
	}
	m.ledger.PushRedo(a)
	historyTotal.WithLabelValues("undo").Inc()
	return true, nil
}

// Redo re-applies the most recently undone action.
func (m *Manager) Redo(ctx context.Context) (bool, error) {
	a, ok := m.ledger.PopRedo()
	if !ok {
		return false, nil
	}
	var err error
	switch a.Kind {
	case ActionAdd:
		err = m.restore(ctx, &a)
	case ActionRemove:
		err = m.delete(ctx, a.Record.ID)
	case ActionUpdate:
		err = m.put(ctx, a.After)
	}
	if err != nil {
		m.ledger.PushRedo(a)
		return false, m.fail("redo", a.target(), err)
	}
	m.ledger.PushUndo(a)
	historyTotal.WithLabelValues("redo").Inc()
	return true, nil
}

func (a HistoryAction) target() string {
	if a.Kind == ActionUpdate {
		return a.After.ID
	}
	return a.Record.ID
}

// The helpers below apply a mutation without touching the ledger. Public
// operations record history themselves; Undo and Redo call only these.

func (m *Manager) put(ctx context.Context, rec model.AnchorRecord) error {
	if err := m.store.Put(ctx, rec); err != nil {
		return err
	}
	m.cache.Upsert(rec)
	return nil
}

func (m *Manager) delete(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.cache.Remove(id)
	return nil
}

// restore re-creates a removed record. On success the action is rewritten to
// the identity actually written so the opposite operation targets it.
func (m *Manager) restore(ctx context.Context, a *HistoryAction) error {
	rec := a.Record
	if !m.preserveIdentity {
		rec = m.mint(model.InputFromRecord(rec))
	}
	if err := m.put(ctx, rec); err != nil {
		return err
	}
	a.Record = rec
	return nil
}

func (m *Manager) patch(ctx context.Context, op, id string, p model.Patch) (bool, error) {
	if err := m.store.Update(ctx, id, p); err != nil {
		return false, m.fail(op, id, err)
	}
	m.cache.Patch(id, p)
	m.succeed(op)
	return true, nil
}

// preImage returns the current record for id, preferring the cache.
func (m *Manager) preImage(ctx context.Context, op, id string) (model.AnchorRecord, error) {
	if rec, ok := m.cache.Get(id); ok {
		return rec, nil
	}
	rec, err := m.store.Get(ctx, id)
	if err != nil {
		return model.AnchorRecord{}, err
	}
	if rec == nil {
		return model.AnchorRecord{}, model.NotFound(op, id)
	}
	return *rec, nil
}

func (m *Manager) mint(in model.AnchorInput) model.AnchorRecord {
	minDuration := in.MinDurationSeconds
	if minDuration <= 0 {
		minDuration = model.DefaultMinDurationSeconds
	}
	rec := model.AnchorRecord{
		ID:                 m.newID(),
		Name:               in.Name,
		Description:        in.Description,
		AssignedKidID:      in.AssignedKidID,
		QRStartCode:        m.newID(),
		QREndCode:          m.newID(),
		MinDurationSeconds: minDuration,
		History:            []model.HistoryEntry{},
	}
	if in.Position != nil {
		p := *in.Position
		rec.Position = &p
	}
	return rec
}

func (m *Manager) nowMillis() int64 { return m.now().UnixMilli() }

func (m *Manager) succeed(op string) {
	operationsTotal.WithLabelValues(op, resultOK).Inc()
}

func (m *Manager) fail(op, id string, err error) error {
	result := resultError
	if model.IsNotFound(err) {
		result = resultNotFound
	}
	operationsTotal.WithLabelValues(op, result).Inc()
	m.log.Error().Stack().Err(err).Str("op", op).Str("anchor_id", id).Msg("anchor operation failed")
	return err
}
