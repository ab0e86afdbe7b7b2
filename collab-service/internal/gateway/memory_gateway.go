package gateway

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/weiawesome/artisans-live/collab-service/internal/domain"
)

// memState is the data shared by a MemoryGateway and its transactional views.
type memState struct {
	mu            sync.RWMutex
	txMu          sync.Mutex
	nextID        int64
	users         map[int64]*domain.User
	messages      map[int64]*domain.ChatMessage
	notifications map[int64]*domain.Notification
	bids          map[int64]*domain.Bid
	targets       map[string]*domain.Target
	team          map[string]*domain.TeamMember
	fault         func(op string) error
}

// MemoryGateway is an in-memory Gateway used as a test double. Writes made
// inside WithinTx are visible to readers outside the transaction before it
// commits, so it is never selected by the service binary. Inside WithinTx
// the undo log is non-nil and collects inverse operations.
type MemoryGateway struct {
	s    *memState
	undo *[]func()
}

// NewMemoryGateway creates an empty in-memory gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{s: &memState{
		users:         make(map[int64]*domain.User),
		messages:      make(map[int64]*domain.ChatMessage),
		notifications: make(map[int64]*domain.Notification),
		bids:          make(map[int64]*domain.Bid),
		targets:       make(map[string]*domain.Target),
		team:          make(map[string]*domain.TeamMember),
	}}
}

// SetFault installs a hook consulted before every operation. A non-nil
// return fails that operation with the returned error.
func (g *MemoryGateway) SetFault(fn func(op string) error) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	g.s.fault = fn
}

// PutUser inserts or replaces a user.
func (g *MemoryGateway) PutUser(u *domain.User) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	cp := *u
	g.s.users[u.ID] = &cp
	g.bump(u.ID)
}

// PutTarget inserts or replaces a service request or project.
func (g *MemoryGateway) PutTarget(t *domain.Target) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	g.s.targets[t.Type.Key(t.ID)] = cloneTarget(t)
	g.bump(t.ID)
}

// Messages returns every persisted chat message ordered by id.
func (g *MemoryGateway) Messages() []*domain.ChatMessage {
	g.s.mu.RLock()
	defer g.s.mu.RUnlock()

	out := make([]*domain.ChatMessage, 0, len(g.s.messages))
	for _, m := range g.s.messages {
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// bump keeps generated ids above externally chosen ones. Requires s.mu.
func (g *MemoryGateway) bump(id int64) {
	if id > g.s.nextID {
		g.s.nextID = id
	}
}

// nextIDLocked requires s.mu.
func (g *MemoryGateway) nextIDLocked() int64 {
	g.s.nextID++
	return g.s.nextID
}

// check runs the fault hook. Requires s.mu (read or write).
func (g *MemoryGateway) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if g.s.fault != nil {
		if err := g.s.fault(op); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

// record registers an inverse operation when inside a transaction.
// Requires s.mu held for writing.
func (g *MemoryGateway) record(fn func()) {
	if g.undo != nil {
		*g.undo = append(*g.undo, fn)
	}
}

func (g *MemoryGateway) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	g.s.mu.RLock()
	defer g.s.mu.RUnlock()
	if err := g.check(ctx, "GetUser"); err != nil {
		return nil, err
	}

	u, ok := g.s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (g *MemoryGateway) ListUsersByRole(ctx context.Context, roles ...domain.Role) ([]*domain.User, error) {
	g.s.mu.RLock()
	defer g.s.mu.RUnlock()
	if err := g.check(ctx, "ListUsersByRole"); err != nil {
		return nil, err
	}

	want := make(map[domain.Role]bool, len(roles))
	for _, r := range roles {
		want[r] = true
	}

	var out []*domain.User
	for _, u := range g.s.users {
		if want[u.Role] {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (g *MemoryGateway) GetUserPoints(ctx context.Context, id int64) (int64, error) {
	u, err := g.GetUser(ctx, id)
	if err != nil {
		return 0, err
	}
	return u.Points, nil
}

func (g *MemoryGateway) UpdateUserPoints(ctx context.Context, id int64, delta int64) (int64, error) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	if err := g.check(ctx, "UpdateUserPoints"); err != nil {
		return 0, err
	}

	u, ok := g.s.users[id]
	if !ok {
		return 0, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	if u.Points+delta < 0 {
		return 0, fmt.Errorf("user %d: %w", id, domain.ErrInsufficientFunds)
	}

	u.Points += delta
	g.record(func() { u.Points -= delta })
	return u.Points, nil
}

func (g *MemoryGateway) CreateMessage(ctx context.Context, msg *domain.ChatMessage) error {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	if err := g.check(ctx, "CreateMessage"); err != nil {
		return err
	}

	cp := *msg
	g.s.messages[msg.ID] = &cp
	g.record(func() { delete(g.s.messages, msg.ID) })
	return nil
}

func (g *MemoryGateway) CreateNotification(ctx context.Context, n *domain.Notification) error {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	if err := g.check(ctx, "CreateNotification"); err != nil {
		return err
	}

	n.ID = g.nextIDLocked()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	id := n.ID
	g.s.notifications[id] = n.Clone()
	g.record(func() { delete(g.s.notifications, id) })
	return nil
}

func (g *MemoryGateway) GetNotification(ctx context.Context, id int64) (*domain.Notification, error) {
	g.s.mu.RLock()
	defer g.s.mu.RUnlock()
	if err := g.check(ctx, "GetNotification"); err != nil {
		return nil, err
	}

	n, ok := g.s.notifications[id]
	if !ok {
		return nil, fmt.Errorf("notification %d: %w", id, domain.ErrNotFound)
	}
	return n.Clone(), nil
}

// markReadLocked requires s.mu held for writing.
func (g *MemoryGateway) markReadLocked(n *domain.Notification) {
	if n.Read {
		return
	}
	n.Read = true
	g.record(func() { n.Read = false })
}

func (g *MemoryGateway) MarkNotificationAsRead(ctx context.Context, userID, id int64) (*domain.Notification, error) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	if err := g.check(ctx, "MarkNotificationAsRead"); err != nil {
		return nil, err
	}

	n, ok := g.s.notifications[id]
	if !ok || n.UserID != userID {
		return nil, fmt.Errorf("notification %d: %w", id, domain.ErrNotFound)
	}
	g.markReadLocked(n)
	return n.Clone(), nil
}

func (g *MemoryGateway) MarkAllNotificationsAsRead(ctx context.Context, userID int64) ([]int64, error) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	if err := g.check(ctx, "MarkAllNotificationsAsRead"); err != nil {
		return nil, err
	}

	ids := []int64{}
	for id, n := range g.s.notifications {
		if n.UserID == userID && !n.Read {
			g.markReadLocked(n)
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (g *MemoryGateway) MarkNotificationsAsRead(ctx context.Context, userID int64, ids []int64) ([]int64, error) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	if err := g.check(ctx, "MarkNotificationsAsRead"); err != nil {
		return nil, err
	}

	owned := []int64{}
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		n, ok := g.s.notifications[id]
		if !ok || n.UserID != userID || seen[id] {
			continue
		}
		seen[id] = true
		g.markReadLocked(n)
		owned = append(owned, id)
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i] < owned[j] })
	return owned, nil
}

func (g *MemoryGateway) notificationsFor(userID int64, unreadOnly bool) []*domain.Notification {
	var out []*domain.Notification
	for _, n := range g.s.notifications {
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		out = append(out, n.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (g *MemoryGateway) GetUnreadNotificationsByUserID(ctx context.Context, userID int64) ([]*domain.Notification, error) {
	g.s.mu.RLock()
	defer g.s.mu.RUnlock()
	if err := g.check(ctx, "GetUnreadNotificationsByUserID"); err != nil {
		return nil, err
	}
	return g.notificationsFor(userID, true), nil
}

func (g *MemoryGateway) ListNotificationsByUserID(ctx context.Context, userID int64, limit int) ([]*domain.Notification, error) {
	g.s.mu.RLock()
	defer g.s.mu.RUnlock()
	if err := g.check(ctx, "ListNotificationsByUserID"); err != nil {
		return nil, err
	}

	all := g.notificationsFor(userID, false)
	out := make([]*domain.Notification, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, all[i])
	}
	return out, nil
}

func (g *MemoryGateway) DeleteNotification(ctx context.Context, userID, id int64) error {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	if err := g.check(ctx, "DeleteNotification"); err != nil {
		return err
	}

	n, ok := g.s.notifications[id]
	if !ok || n.UserID != userID {
		return fmt.Errorf("notification %d: %w", id, domain.ErrNotFound)
	}
	delete(g.s.notifications, id)
	g.record(func() { g.s.notifications[id] = n })
	return nil
}

func (g *MemoryGateway) CreateBid(ctx context.Context, bid *domain.Bid) error {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	if err := g.check(ctx, "CreateBid"); err != nil {
		return err
	}

	now := time.Now().UTC()
	bid.ID = g.nextIDLocked()
	bid.CreatedAt = now
	bid.UpdatedAt = now

	id := bid.ID
	cp := *bid
	g.s.bids[id] = &cp
	g.record(func() { delete(g.s.bids, id) })
	return nil
}

func (g *MemoryGateway) GetBid(ctx context.Context, id int64) (*domain.Bid, error) {
	g.s.mu.RLock()
	defer g.s.mu.RUnlock()
	if err := g.check(ctx, "GetBid"); err != nil {
		return nil, err
	}

	b, ok := g.s.bids[id]
	if !ok {
		return nil, fmt.Errorf("bid %d: %w", id, domain.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

func (g *MemoryGateway) UpdateBid(ctx context.Context, id int64, patch domain.BidPatch) (*domain.Bid, error) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	if err := g.check(ctx, "UpdateBid"); err != nil {
		return nil, err
	}

	b, ok := g.s.bids[id]
	if !ok {
		return nil, fmt.Errorf("bid %d: %w", id, domain.ErrNotFound)
	}
	if b.Status != patch.Expect {
		return nil, fmt.Errorf("bid %d is %s: %w", id, b.Status, domain.ErrInvalidState)
	}

	prev := *b
	b.Status = patch.Status
	b.UpdatedAt = time.Now().UTC()
	g.record(func() { *b = prev })

	cp := *b
	return &cp, nil
}

func (g *MemoryGateway) DeleteBid(ctx context.Context, id int64) error {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	if err := g.check(ctx, "DeleteBid"); err != nil {
		return err
	}

	b, ok := g.s.bids[id]
	if !ok {
		return fmt.Errorf("bid %d: %w", id, domain.ErrNotFound)
	}
	delete(g.s.bids, id)
	g.record(func() { g.s.bids[id] = b })
	return nil
}

func (g *MemoryGateway) filterBids(keep func(*domain.Bid) bool) []*domain.Bid {
	var out []*domain.Bid
	for _, b := range g.s.bids {
		if keep(b) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (g *MemoryGateway) GetBidsByTarget(ctx context.Context, targetType domain.TargetType, targetID int64) ([]*domain.Bid, error) {
	g.s.mu.RLock()
	defer g.s.mu.RUnlock()
	if err := g.check(ctx, "GetBidsByTarget"); err != nil {
		return nil, err
	}
	return g.filterBids(func(b *domain.Bid) bool {
		return b.TargetType == targetType && b.TargetID == targetID
	}), nil
}

func (g *MemoryGateway) GetBidsByBidder(ctx context.Context, bidderID int64) ([]*domain.Bid, error) {
	g.s.mu.RLock()
	defer g.s.mu.RUnlock()
	if err := g.check(ctx, "GetBidsByBidder"); err != nil {
		return nil, err
	}

	out := g.filterBids(func(b *domain.Bid) bool { return b.BidderID == bidderID })
	// newest first, matching the SQL gateway
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func cloneTarget(t *domain.Target) *domain.Target {
	cp := *t
	if t.AssigneeID != nil {
		id := *t.AssigneeID
		cp.AssigneeID = &id
	}
	return &cp
}

func (g *MemoryGateway) getTarget(ctx context.Context, op string, key string, what string, id int64) (*domain.Target, error) {
	g.s.mu.RLock()
	defer g.s.mu.RUnlock()
	if err := g.check(ctx, op); err != nil {
		return nil, err
	}

	t, ok := g.s.targets[key]
	if !ok {
		return nil, fmt.Errorf("%s %d: %w", what, id, domain.ErrNotFound)
	}
	return cloneTarget(t), nil
}

func (g *MemoryGateway) GetServiceRequest(ctx context.Context, id int64) (*domain.Target, error) {
	return g.getTarget(ctx, "GetServiceRequest", domain.TargetServiceRequest.Key(id), "service request", id)
}

func (g *MemoryGateway) GetProject(ctx context.Context, id int64) (*domain.Target, error) {
	return g.getTarget(ctx, "GetProject", domain.TargetProject.Key(id), "project", id)
}

func (g *MemoryGateway) updateTarget(ctx context.Context, op string, key string, what string, id int64, patch domain.TargetPatch) error {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	if err := g.check(ctx, op); err != nil {
		return err
	}

	t, ok := g.s.targets[key]
	if !ok {
		return fmt.Errorf("%s %d: %w", what, id, domain.ErrNotFound)
	}

	prev := cloneTarget(t)
	t.Status = patch.Status
	if patch.AssigneeID != nil {
		assignee := *patch.AssigneeID
		t.AssigneeID = &assignee
	}
	g.record(func() { *t = *prev })
	return nil
}

func (g *MemoryGateway) UpdateServiceRequest(ctx context.Context, id int64, patch domain.TargetPatch) error {
	return g.updateTarget(ctx, "UpdateServiceRequest", domain.TargetServiceRequest.Key(id), "service request", id, patch)
}

func (g *MemoryGateway) UpdateProject(ctx context.Context, id int64, patch domain.TargetPatch) error {
	return g.updateTarget(ctx, "UpdateProject", domain.TargetProject.Key(id), "project", id, patch)
}

func teamKey(m *domain.TeamMember) string {
	return fmt.Sprintf("%s:%d", m.TargetType.Key(m.TargetID), m.UserID)
}

func (g *MemoryGateway) AddTeamMember(ctx context.Context, m *domain.TeamMember) error {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	if err := g.check(ctx, "AddTeamMember"); err != nil {
		return err
	}

	key := teamKey(m)
	prev, existed := g.s.team[key]
	cp := *m
	g.s.team[key] = &cp
	g.record(func() {
		if existed {
			g.s.team[key] = prev
		} else {
			delete(g.s.team, key)
		}
	})
	return nil
}

func (g *MemoryGateway) ListTeamMembers(ctx context.Context, targetType domain.TargetType, targetID int64) ([]*domain.TeamMember, error) {
	g.s.mu.RLock()
	defer g.s.mu.RUnlock()
	if err := g.check(ctx, "ListTeamMembers"); err != nil {
		return nil, err
	}

	var out []*domain.TeamMember
	for _, m := range g.s.team {
		if m.TargetType == targetType && m.TargetID == targetID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// WithinTx serialises transactions and undoes every write made through tx
// when fn fails or ctx ends first. Nested calls join the outer transaction.
func (g *MemoryGateway) WithinTx(ctx context.Context, fn func(tx Gateway) error) error {
	if g.undo != nil {
		return fn(g)
	}

	g.s.txMu.Lock()
	defer g.s.txMu.Unlock()

	undo := make([]func(), 0, 8)
	tx := &MemoryGateway{s: g.s, undo: &undo}

	err := fn(tx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		g.s.mu.Lock()
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		g.s.mu.Unlock()
		return err
	}
	return nil
}
