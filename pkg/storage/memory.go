package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/hutch/pkg/types"
)

// MemoryStore implements Store in process memory. It backs the test
// suites and local development; semantics (not-found kinds, uniqueness
// conflicts, transactional rollback) mirror PostgresStore. Transactions
// serialize on one mutex, which also stands in for row locks.
type MemoryStore struct {
	mu   sync.Mutex
	tx   bool
	root *MemoryStore
	data memData
}

type memData struct {
	seq           int64
	users         map[uuid.UUID]*types.User
	workspaces    map[uuid.UUID]*types.Workspace
	subscriptions map[uuid.UUID]*types.Subscription
	events        map[string]*types.PaymentEvent
	order         map[uuid.UUID]int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	s := &MemoryStore{
		data: memData{
			users:         make(map[uuid.UUID]*types.User),
			workspaces:    make(map[uuid.UUID]*types.Workspace),
			subscriptions: make(map[uuid.UUID]*types.Subscription),
			events:        make(map[string]*types.PaymentEvent),
			order:         make(map[uuid.UUID]int64),
		},
	}
	s.root = s
	return s
}

// WithTx serializes on the store mutex, snapshots the data, and restores
// the snapshot if fn fails so aborted transactions leave no trace.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if s.tx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	view := &MemoryStore{tx: true, root: s}
	if err := fn(view); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }
func (s *MemoryStore) Close() error                   { return nil }

func (s *MemoryStore) lock() func() {
	if s.tx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemoryStore) state() *memData {
	return &s.root.data
}

// Users

func (s *MemoryStore) CreateUser(ctx context.Context, user *types.User) error {
	defer s.lock()()
	d := s.state()
	for _, u := range d.users {
		if u.Email == user.Email {
			return types.NewError(types.KindConflict, "email already registered")
		}
	}
	d.users[user.ID] = cloneUser(user)
	d.track(user.ID)
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id uuid.UUID) (*types.User, error) {
	defer s.lock()()
	u, ok := s.state().users[id]
	if !ok {
		return nil, types.NewError(types.KindNotFound, "user not found")
	}
	return cloneUser(u), nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	defer s.lock()()
	for _, u := range s.state().users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, types.NewError(types.KindNotFound, "user not found")
}

func (s *MemoryStore) LockUser(ctx context.Context, id uuid.UUID) error {
	defer s.lock()()
	if _, ok := s.state().users[id]; !ok {
		return types.NewError(types.KindNotFound, "user not found")
	}
	return nil
}

func (s *MemoryStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	defer s.lock()()
	d := s.state()
	if _, ok := d.users[id]; !ok {
		return types.NewError(types.KindNotFound, "user not found")
	}
	delete(d.users, id)
	for wid, ws := range d.workspaces {
		if ws.OwnerID == id {
			delete(d.workspaces, wid)
		}
	}
	for sid, sub := range d.subscriptions {
		if sub.UserID == id {
			for _, ev := range d.events {
				if ev.SubscriptionID.Valid && ev.SubscriptionID.UUID == sid {
					ev.SubscriptionID = uuid.NullUUID{}
				}
			}
			delete(d.subscriptions, sid)
		}
	}
	return nil
}

// Workspaces

func (s *MemoryStore) CreateWorkspace(ctx context.Context, ws *types.Workspace) error {
	defer s.lock()()
	d := s.state()
	for _, existing := range d.workspaces {
		if existing.OwnerID == ws.OwnerID && existing.Name == ws.Name {
			return types.NewError(types.KindConflict, "workspace name already in use")
		}
		if existing.ProxyCredential == ws.ProxyCredential {
			return types.NewError(types.KindInternal, "proxy credential collision")
		}
	}
	d.workspaces[ws.ID] = cloneWorkspace(ws)
	d.track(ws.ID)
	return nil
}

func (s *MemoryStore) GetWorkspace(ctx context.Context, id uuid.UUID) (*types.Workspace, error) {
	defer s.lock()()
	ws, ok := s.state().workspaces[id]
	if !ok {
		return nil, types.NewError(types.KindNotFound, "workspace not found")
	}
	return cloneWorkspace(ws), nil
}

func (s *MemoryStore) GetWorkspaceForUpdate(ctx context.Context, id uuid.UUID) (*types.Workspace, error) {
	return s.GetWorkspace(ctx, id)
}

func (s *MemoryStore) GetWorkspaceByCredential(ctx context.Context, credential string) (*types.Workspace, error) {
	defer s.lock()()
	for _, ws := range s.state().workspaces {
		if ws.ProxyCredential == credential {
			return cloneWorkspace(ws), nil
		}
	}
	return nil, types.NewError(types.KindNotFound, "workspace not found")
}

func (s *MemoryStore) ListWorkspacesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*types.Workspace, error) {
	defer s.lock()()
	d := s.state()
	out := []*types.Workspace{}
	for _, ws := range d.workspaces {
		if ws.OwnerID == ownerID {
			out = append(out, cloneWorkspace(ws))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return d.order[out[i].ID] < d.order[out[j].ID]
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) CountWorkspacesByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	defer s.lock()()
	count := 0
	for _, ws := range s.state().workspaces {
		if ws.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) UpdateWorkspace(ctx context.Context, ws *types.Workspace) error {
	defer s.lock()()
	d := s.state()
	if _, ok := d.workspaces[ws.ID]; !ok {
		return types.NewError(types.KindNotFound, "workspace not found")
	}
	for _, existing := range d.workspaces {
		if existing.ID != ws.ID && existing.OwnerID == ws.OwnerID && existing.Name == ws.Name {
			return types.NewError(types.KindConflict, "workspace name already in use")
		}
	}
	d.workspaces[ws.ID] = cloneWorkspace(ws)
	return nil
}

func (s *MemoryStore) DeleteWorkspace(ctx context.Context, id uuid.UUID) error {
	defer s.lock()()
	d := s.state()
	if _, ok := d.workspaces[id]; !ok {
		return types.NewError(types.KindNotFound, "workspace not found")
	}
	delete(d.workspaces, id)
	return nil
}

// Subscriptions

func (s *MemoryStore) CreateSubscription(ctx context.Context, sub *types.Subscription) error {
	defer s.lock()()
	d := s.state()
	for _, existing := range d.subscriptions {
		if sub.ProviderSubscriptionID != nil && existing.ProviderSubscriptionID != nil &&
			*existing.ProviderSubscriptionID == *sub.ProviderSubscriptionID {
			return types.NewError(types.KindConflict, "subscription already registered")
		}
		if existing.UserID == sub.UserID && !existing.State.Terminal() && !sub.State.Terminal() {
			return types.NewError(types.KindConflict, "user already has a subscription in progress")
		}
	}
	d.subscriptions[sub.ID] = cloneSubscription(sub)
	d.track(sub.ID)
	return nil
}

func (s *MemoryStore) GetSubscriptionByProviderID(ctx context.Context, providerID string) (*types.Subscription, error) {
	defer s.lock()()
	for _, sub := range s.state().subscriptions {
		if sub.ProviderSubscriptionID != nil && *sub.ProviderSubscriptionID == providerID {
			return cloneSubscription(sub), nil
		}
	}
	return nil, types.NewError(types.KindNotFound, "subscription not found")
}

func (s *MemoryStore) GetSubscriptionByProviderIDForUpdate(ctx context.Context, providerID string) (*types.Subscription, error) {
	return s.GetSubscriptionByProviderID(ctx, providerID)
}

func (s *MemoryStore) GetLatestSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*types.Subscription, error) {
	defer s.lock()()
	sub := s.latestWhere(func(candidate *types.Subscription) bool {
		return candidate.UserID == userID
	})
	if sub == nil {
		return nil, types.NewError(types.KindNotFound, "subscription not found")
	}
	return cloneSubscription(sub), nil
}

func (s *MemoryStore) GetNonTerminalSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*types.Subscription, error) {
	defer s.lock()()
	sub := s.latestWhere(func(candidate *types.Subscription) bool {
		return candidate.UserID == userID && !candidate.State.Terminal()
	})
	if sub == nil {
		return nil, types.NewError(types.KindNotFound, "subscription not found")
	}
	return cloneSubscription(sub), nil
}

func (s *MemoryStore) latestWhere(match func(*types.Subscription) bool) *types.Subscription {
	d := s.state()
	var best *types.Subscription
	for _, sub := range d.subscriptions {
		if !match(sub) {
			continue
		}
		if best == nil ||
			sub.CreatedAt.After(best.CreatedAt) ||
			(sub.CreatedAt.Equal(best.CreatedAt) && d.order[sub.ID] > d.order[best.ID]) {
			best = sub
		}
	}
	return best
}

func (s *MemoryStore) UpdateSubscription(ctx context.Context, sub *types.Subscription) error {
	defer s.lock()()
	d := s.state()
	if _, ok := d.subscriptions[sub.ID]; !ok {
		return types.NewError(types.KindNotFound, "subscription not found")
	}
	d.subscriptions[sub.ID] = cloneSubscription(sub)
	return nil
}

func (s *MemoryStore) HasActiveSubscription(ctx context.Context, userID uuid.UUID) (bool, error) {
	defer s.lock()()
	now := time.Now().UTC()
	for _, sub := range s.state().subscriptions {
		if sub.UserID == userID && sub.Entitled(now) {
			return true, nil
		}
	}
	return false, nil
}

// Inventory counts

func (s *MemoryStore) CountWorkspacesByState(ctx context.Context) (map[types.WorkspaceState]int, error) {
	defer s.lock()()
	counts := make(map[types.WorkspaceState]int)
	for _, ws := range s.state().workspaces {
		counts[ws.RuntimeState]++
	}
	return counts, nil
}

func (s *MemoryStore) CountSubscriptionsByState(ctx context.Context) (map[types.SubscriptionState]int, error) {
	defer s.lock()()
	counts := make(map[types.SubscriptionState]int)
	for _, sub := range s.state().subscriptions {
		counts[sub.State]++
	}
	return counts, nil
}

// Payment events

func (s *MemoryStore) InsertPaymentEvent(ctx context.Context, ev *types.PaymentEvent) (bool, error) {
	defer s.lock()()
	d := s.state()
	if _, dup := d.events[ev.ProviderEventID]; dup {
		return false, nil
	}
	d.events[ev.ProviderEventID] = cloneEvent(ev)
	return true, nil
}

// PaymentEvents returns all recorded events, for tests.
func (s *MemoryStore) PaymentEvents() []*types.PaymentEvent {
	defer s.lock()()
	out := make([]*types.PaymentEvent, 0, len(s.state().events))
	for _, ev := range s.state().events {
		out = append(out, cloneEvent(ev))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (d *memData) track(id uuid.UUID) {
	d.seq++
	d.order[id] = d.seq
}

func (d *memData) clone() memData {
	out := memData{
		seq:           d.seq,
		users:         make(map[uuid.UUID]*types.User, len(d.users)),
		workspaces:    make(map[uuid.UUID]*types.Workspace, len(d.workspaces)),
		subscriptions: make(map[uuid.UUID]*types.Subscription, len(d.subscriptions)),
		events:        make(map[string]*types.PaymentEvent, len(d.events)),
		order:         make(map[uuid.UUID]int64, len(d.order)),
	}
	for k, v := range d.users {
		out.users[k] = cloneUser(v)
	}
	for k, v := range d.workspaces {
		out.workspaces[k] = cloneWorkspace(v)
	}
	for k, v := range d.subscriptions {
		out.subscriptions[k] = cloneSubscription(v)
	}
	for k, v := range d.events {
		out.events[k] = cloneEvent(v)
	}
	for k, v := range d.order {
		out.order[k] = v
	}
	return out
}

func cloneUser(u *types.User) *types.User {
	c := *u
	return &c
}

func cloneWorkspace(w *types.Workspace) *types.Workspace {
	c := *w
	c.EngineHandle = clonePtr(w.EngineHandle)
	c.LastStartedAt = clonePtr(w.LastStartedAt)
	return &c
}

func cloneSubscription(s *types.Subscription) *types.Subscription {
	c := *s
	c.ProviderSubscriptionID = clonePtr(s.ProviderSubscriptionID)
	c.PeriodStart = clonePtr(s.PeriodStart)
	c.PeriodEnd = clonePtr(s.PeriodEnd)
	c.CancelledAt = clonePtr(s.CancelledAt)
	return &c
}

func cloneEvent(e *types.PaymentEvent) *types.PaymentEvent {
	c := *e
	c.ProviderPaymentID = clonePtr(e.ProviderPaymentID)
	c.AmountMinorUnits = clonePtr(e.AmountMinorUnits)
	c.Currency = clonePtr(e.Currency)
	c.RawPayload = append([]byte(nil), e.RawPayload...)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
