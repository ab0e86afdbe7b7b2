package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/artisans-live/collab-service/internal/config"
	"github.com/weiawesome/artisans-live/collab-service/internal/domain"
	"github.com/weiawesome/artisans-live/collab-service/internal/events"
	"github.com/weiawesome/artisans-live/collab-service/internal/gateway"
	"github.com/weiawesome/artisans-live/collab-service/internal/hub"
	"github.com/weiawesome/artisans-live/collab-service/internal/service"
)

const (
	ownerID   = int64(1)
	adminID   = int64(9)
	provider1 = int64(10)
	provider2 = int64(11)
	requestID = int64(100)
	draftID   = int64(200)
)

var (
	owner = domain.Actor{ID: ownerID, Name: "olive", Role: domain.RoleClient}
	admin = domain.Actor{ID: adminID, Name: "ada", Role: domain.RoleAdmin}
	p1    = domain.Actor{ID: provider1, Name: "pat", Role: domain.RoleContractor}
	p2    = domain.Actor{ID: provider2, Name: "sue", Role: domain.RoleSupplier}
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.Event
}

func (r *recordingPublisher) Publish(ctx context.Context, evt *events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recordingPublisher) Close() error {
	return nil
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	gw       *gateway.MemoryGateway
	notifier service.NotificationService
	events   *recordingPublisher
	ledger   Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gw := gateway.NewMemoryGateway()
	gw.PutUser(&domain.User{ID: ownerID, Username: "olive", Role: domain.RoleClient})
	gw.PutUser(&domain.User{ID: adminID, Username: "ada", Role: domain.RoleAdmin})
	gw.PutUser(&domain.User{ID: provider1, Username: "pat", Role: domain.RoleContractor, Points: 100})
	gw.PutUser(&domain.User{ID: provider2, Username: "sue", Role: domain.RoleSupplier, Points: 100})
	gw.PutTarget(&domain.Target{ID: requestID, Type: domain.TargetServiceRequest, OwnerID: ownerID, Title: "Fix roof", Status: domain.StatusPublished})
	gw.PutTarget(&domain.Target{ID: draftID, Type: domain.TargetProject, OwnerID: ownerID, Title: "New deck", Status: domain.StatusDraft})

	h := hub.NewHub(config.WebSocketConfig{})
	notifier := service.NewNotificationService(gw, h, config.NotificationConfig{})
	pub := &recordingPublisher{}

	return &fixture{
		gw:       gw,
		notifier: notifier,
		events:   pub,
		ledger:   NewLedger(gw, notifier, pub, config.LedgerConfig{WriteTimeout: time.Second}),
	}
}

func (f *fixture) bid(t *testing.T, actor domain.Actor, points int64) *domain.Bid {
	t.Helper()
	b, err := f.ledger.CreateBid(context.Background(), actor, &domain.CreateBidRequest{
		TargetType:  string(domain.TargetServiceRequest),
		TargetID:    requestID,
		Amount:      1500,
		PointsToUse: points,
		Proposal:    "  two days  ",
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) balance(t *testing.T, userID int64) int64 {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

func (f *fixture) titles(t *testing.T, userID int64) []string {
	t.Helper()
	ns, err := f.notifier.ListUnread(context.Background(), userID)
	require.NoError(t, err)
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.Title
	}
	return out
}

func (f *fixture) status(t *testing.T, bidID int64) domain.BidStatus {
	t.Helper()
	b, err := f.ledger.GetBid(context.Background(), bidID)
	require.NoError(t, err)
	return b.Status
}

func TestCreateBidEscrowsPoints(t *testing.T) {
	f := newFixture(t)

	b := f.bid(t, p1, 50)

	assert.Equal(t, domain.BidPending, b.Status)
	assert.Equal(t, "two days", b.Proposal)
	assert.Equal(t, int64(50), f.balance(t, provider1))
	assert.Equal(t, []string{"New bid received"}, f.titles(t, ownerID))
	assert.Equal(t, []string{"New bid received"}, f.titles(t, adminID))
	assert.Equal(t, []string{events.TypeBidCreated}, f.events.types())
}

func TestCreateBidRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := func(mut func(r *domain.CreateBidRequest)) *domain.CreateBidRequest {
		r := &domain.CreateBidRequest{
			TargetType:  "service_request",
			TargetID:    requestID,
			Amount:      10,
			PointsToUse: 10,
		}
		mut(r)
		return r
	}

	tests := []struct {
		name  string
		actor domain.Actor
		req   *domain.CreateBidRequest
		want  error
	}{
		{"zero amount", p1, req(func(r *domain.CreateBidRequest) { r.Amount = 0 }), domain.ErrValidation},
		{"negative points", p1, req(func(r *domain.CreateBidRequest) { r.PointsToUse = -1 }), domain.ErrValidation},
		{"unknown type", p1, req(func(r *domain.CreateBidRequest) { r.TargetType = "invoice" }), domain.ErrValidation},
		{"client cannot bid", owner, req(func(r *domain.CreateBidRequest) {}), domain.ErrForbidden},
		{"missing target", p1, req(func(r *domain.CreateBidRequest) { r.TargetID = 999 }), domain.ErrNotFound},
		{"draft target", p1, req(func(r *domain.CreateBidRequest) {
			r.TargetType = "project"
			r.TargetID = draftID
		}), domain.ErrNotOpenForBidding},
		{"too many points", p1, req(func(r *domain.CreateBidRequest) { r.PointsToUse = 101 }), domain.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.CreateBid(ctx, tt.actor, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, int64(100), f.balance(t, provider1))
	bids, err := f.ledger.ListBidsByBidder(ctx, provider1)
	require.NoError(t, err)
	assert.Empty(t, bids)
}

func TestCreateBidDuplicate(t *testing.T) {
	f := newFixture(t)
	first := f.bid(t, p1, 20)

	_, err := f.ledger.CreateBid(context.Background(), p1, &domain.CreateBidRequest{
		TargetType: "request", TargetID: requestID, Amount: 10, PointsToUse: 20,
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateBid)
	assert.Equal(t, int64(80), f.balance(t, provider1))

	_, err = f.ledger.WithdrawBid(context.Background(), p1, first.ID)
	require.NoError(t, err)

	f.bid(t, p1, 20)
	assert.Equal(t, int64(80), f.balance(t, provider1))
}

func TestAcceptBidCascade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b1 := f.bid(t, p1, 30)
	b2 := f.bid(t, p2, 40)

	res, err := f.ledger.AcceptBid(ctx, admin, b1.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.BidAccepted, res.Bid.Status)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, b2.ID, res.Rejected[0].ID)
	assert.Equal(t, domain.BidRejected, f.status(t, b2.ID))

	target, err := f.gw.GetServiceRequest(ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAssigned, target.Status)
	require.NotNil(t, target.AssigneeID)
	assert.Equal(t, provider1, *target.AssigneeID)

	team, err := f.gw.ListTeamMembers(ctx, domain.TargetServiceRequest, requestID)
	require.NoError(t, err)
	require.Len(t, team, 1)
	assert.Equal(t, provider1, team[0].UserID)

	assert.Contains(t, f.titles(t, provider1), "Bid accepted")
	assert.Contains(t, f.titles(t, provider2), "Bid not selected")
	assert.Contains(t, f.titles(t, ownerID), "Bid awarded")

	// rejection keeps the escrow
	assert.Equal(t, int64(70), f.balance(t, provider1))
	assert.Equal(t, int64(60), f.balance(t, provider2))

	assert.Equal(t, []string{
		events.TypeBidCreated,
		events.TypeBidCreated,
		events.TypeBidAccepted,
		events.TypeBidRejected,
	}, f.events.types())
}

func TestAcceptBidRequiresOwnerOrAdmin(t *testing.T) {
	f := newFixture(t)
	b := f.bid(t, p1, 0)

	_, err := f.ledger.AcceptBid(context.Background(), p2, b.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	res, err := f.ledger.AcceptBid(context.Background(), owner, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BidAccepted, res.Bid.Status)

	_, err = f.ledger.AcceptBid(context.Background(), owner, b.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = f.ledger.RejectBid(context.Background(), owner, b.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = f.ledger.AcceptBid(context.Background(), owner, 12345)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAcceptBidRollsBackOnWriteFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b1 := f.bid(t, p1, 30)
	b2 := f.bid(t, p2, 40)

	boom := errors.New("disk full")
	var updates int
	f.gw.SetFault(func(op string) error {
		if op == "UpdateBid" {
			updates++
			if updates == 2 {
				return boom
			}
		}
		return nil
	})

	_, err := f.ledger.AcceptBid(ctx, admin, b1.ID)
	require.ErrorIs(t, err, boom)
	f.gw.SetFault(nil)

	assert.Equal(t, domain.BidPending, f.status(t, b1.ID))
	assert.Equal(t, domain.BidPending, f.status(t, b2.ID))

	target, err := f.gw.GetServiceRequest(ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, target.Status)
	assert.Nil(t, target.AssigneeID)

	team, err := f.gw.ListTeamMembers(ctx, domain.TargetServiceRequest, requestID)
	require.NoError(t, err)
	assert.Empty(t, team)
	assert.NotContains(t, f.titles(t, provider1), "Bid accepted")

	_, err = f.ledger.AcceptBid(ctx, admin, b2.ID)
	require.NoError(t, err)
}

func TestAcceptBidRollsBackOnTimeout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b1 := f.bid(t, p1, 30)
	b2 := f.bid(t, p2, 40)

	slow := NewLedger(f.gw, f.notifier, f.events, config.LedgerConfig{WriteTimeout: 50 * time.Millisecond})
	f.gw.SetFault(func(op string) error {
		if op == "AddTeamMember" {
			time.Sleep(100 * time.Millisecond)
		}
		return nil
	})

	_, err := slow.AcceptBid(ctx, owner, b1.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	f.gw.SetFault(nil)

	assert.Equal(t, domain.BidPending, f.status(t, b1.ID))
	assert.Equal(t, domain.BidPending, f.status(t, b2.ID))

	target, err := f.gw.GetServiceRequest(ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, target.Status)
	assert.Nil(t, target.AssigneeID)

	team, err := f.gw.ListTeamMembers(ctx, domain.TargetServiceRequest, requestID)
	require.NoError(t, err)
	assert.Empty(t, team)
}

func TestAcceptBidOnClosedTargetFails(t *testing.T) {
	for _, status := range []domain.TargetStatus{domain.StatusCancelled, domain.StatusCompleted} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			b := f.bid(t, p1, 30)
			f.gw.PutTarget(&domain.Target{ID: requestID, Type: domain.TargetServiceRequest, OwnerID: ownerID, Title: "Fix roof", Status: status})

			_, err := f.ledger.AcceptBid(ctx, owner, b.ID)
			require.ErrorIs(t, err, domain.ErrInvalidState)
			assert.Equal(t, domain.BidPending, f.status(t, b.ID))

			target, err := f.gw.GetServiceRequest(ctx, requestID)
			require.NoError(t, err)
			assert.Equal(t, status, target.Status)
			assert.Nil(t, target.AssigneeID)

			team, err := f.gw.ListTeamMembers(ctx, domain.TargetServiceRequest, requestID)
			require.NoError(t, err)
			assert.Empty(t, team)
		})
	}
}

func TestConcurrentAcceptOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	b1 := f.bid(t, p1, 10)
	b2 := f.bid(t, p2, 10)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		invalid int
	)
	for _, id := range []int64{b1.ID, b2.ID, b1.ID, b2.ID} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := f.ledger.AcceptBid(context.Background(), admin, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrInvalidState):
				invalid++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 3, invalid)

	statuses := []domain.BidStatus{f.status(t, b1.ID), f.status(t, b2.ID)}
	assert.ElementsMatch(t, []domain.BidStatus{domain.BidAccepted, domain.BidRejected}, statuses)
}

func TestWithdrawRefundsOnce(t *testing.T) {
	f := newFixture(t)
	b := f.bid(t, p1, 50)
	require.Equal(t, int64(50), f.balance(t, provider1))

	_, err := f.ledger.WithdrawBid(context.Background(), p2, b.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	got, err := f.ledger.WithdrawBid(context.Background(), p1, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BidWithdrawn, got.Status)
	assert.Equal(t, int64(100), f.balance(t, provider1))
	assert.Contains(t, f.titles(t, ownerID), "Bid withdrawn")

	_, err = f.ledger.WithdrawBid(context.Background(), p1, b.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, int64(100), f.balance(t, provider1))
}

func TestRejectKeepsEscrow(t *testing.T) {
	f := newFixture(t)
	b := f.bid(t, p1, 25)

	got, err := f.ledger.RejectBid(context.Background(), owner, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BidRejected, got.Status)
	assert.Equal(t, int64(75), f.balance(t, provider1))
	assert.Contains(t, f.titles(t, provider1), "Bid rejected")

	_, err = f.ledger.WithdrawBid(context.Background(), p1, b.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestDeleteBidRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.bid(t, p1, 40)

	assert.ErrorIs(t, f.ledger.DeleteBid(ctx, p2, b.ID), domain.ErrForbidden)
	require.NoError(t, f.ledger.DeleteBid(ctx, p1, b.ID))
	assert.Equal(t, int64(100), f.balance(t, provider1))

	_, err := f.ledger.GetBid(ctx, b.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.ledger.DeleteBid(ctx, p1, b.ID), domain.ErrNotFound)
}

func TestEscrowAccounting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.gw.PutTarget(&domain.Target{ID: 300, Type: domain.TargetProject, OwnerID: ownerID, Title: "Garage", Status: domain.StatusBidding})
	f.gw.PutTarget(&domain.Target{ID: 301, Type: domain.TargetProject, OwnerID: ownerID, Title: "Shed", Status: domain.StatusBidding})

	a := f.bid(t, p1, 20)
	b, err := f.ledger.CreateBid(ctx, p1, &domain.CreateBidRequest{TargetType: "project", TargetID: 300, Amount: 5, PointsToUse: 30})
	require.NoError(t, err)
	c, err := f.ledger.CreateBid(ctx, p1, &domain.CreateBidRequest{TargetType: "project", TargetID: 301, Amount: 5, PointsToUse: 25})
	require.NoError(t, err)

	_, err = f.ledger.WithdrawBid(ctx, p1, a.ID)
	require.NoError(t, err)
	_, err = f.ledger.RejectBid(ctx, owner, b.ID)
	require.NoError(t, err)
	_, err = f.ledger.AcceptBid(ctx, owner, c.ID)
	require.NoError(t, err)

	bids, err := f.ledger.ListBidsByBidder(ctx, provider1)
	require.NoError(t, err)
	var escrowed int64
	for _, bid := range bids {
		if bid.Status != domain.BidWithdrawn {
			escrowed += bid.PointsToUse
		}
	}
	assert.Equal(t, int64(55), escrowed)
	assert.Equal(t, 100-escrowed, f.balance(t, provider1))
}

func TestConcurrentBidsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := int64(0); i < 8; i++ {
		f.gw.PutTarget(&domain.Target{ID: 400 + i, Type: domain.TargetProject, OwnerID: ownerID, Title: "Lot", Status: domain.StatusPublished})
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := int64(0); i < 8; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := f.ledger.CreateBid(ctx, p1, &domain.CreateBidRequest{TargetType: "project", TargetID: id, Amount: 1, PointsToUse: 30})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		}(400 + i)
	}
	wg.Wait()

	assert.Equal(t, 3, ok)
	assert.Equal(t, int64(10), f.balance(t, provider1))
}

func TestGrantPoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.GrantPoints(ctx, owner, &domain.GrantPointsRequest{UserID: provider1, Amount: 10})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.ledger.GrantPoints(ctx, admin, &domain.GrantPointsRequest{UserID: provider1, Amount: 0})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.ledger.GrantPoints(ctx, admin, &domain.GrantPointsRequest{UserID: 777, Amount: 5})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	balance, err := f.ledger.GrantPoints(ctx, admin, &domain.GrantPointsRequest{UserID: provider1, Amount: 25, Reason: "welcome"})
	require.NoError(t, err)
	assert.Equal(t, int64(125), balance)
	assert.Equal(t, []string{"Points granted"}, f.titles(t, provider1))
	assert.Equal(t, []string{events.TypePointsGranted}, f.events.types())
}

func TestOpenForBidding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.OpenForBidding(ctx, p1, domain.TargetProject, draftID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	target, err := f.ledger.OpenForBidding(ctx, owner, domain.TargetProject, draftID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, target.Status)

	assert.Equal(t, []string{"New project available"}, f.titles(t, provider1))
	assert.Equal(t, []string{"New project available"}, f.titles(t, provider2))
	assert.Empty(t, f.titles(t, ownerID))

	_, err = f.ledger.OpenForBidding(ctx, owner, domain.TargetProject, draftID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = f.ledger.CreateBid(ctx, p1, &domain.CreateBidRequest{TargetType: "project", TargetID: draftID, Amount: 1})
	require.NoError(t, err)
}

func TestListBidsForTarget(t *testing.T) {
	f := newFixture(t)
	b1 := f.bid(t, p1, 0)
	b2 := f.bid(t, p2, 0)

	bids, err := f.ledger.ListBidsForTarget(context.Background(), domain.TargetServiceRequest, requestID)
	require.NoError(t, err)
	require.Len(t, bids, 2)
	assert.Equal(t, b1.ID, bids[0].ID)
	assert.Equal(t, b2.ID, bids[1].ID)

	_, err = f.ledger.ListBidsForTarget(context.Background(), domain.TargetProject, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
