package orders

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Deduh/foodbot-back/internal/domain"
	"github.com/Deduh/foodbot-back/internal/metrics"
	"github.com/Deduh/foodbot-back/internal/store"
)

type fakeOrderRepo struct {
	orders map[string]*store.Order
	// beforeCAS runs before each compare-and-set, to simulate races.
	beforeCAS func()
	// spuriousFailures forces that many CAS attempts to report a lost race
	// without changing the row.
	spuriousFailures int
}

func newFakeOrderRepo(orders ...*store.Order) *fakeOrderRepo {
	m := make(map[string]*store.Order)
	for _, o := range orders {
		m[o.ID] = o
	}
	return &fakeOrderRepo{orders: m}
}

func (f *fakeOrderRepo) Get(_ context.Context, id string) (*store.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, domain.NotFoundf("order %s", id)
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderRepo) CompareAndSetStatus(_ context.Context, id string, from, to store.OrderStatus) (bool, error) {
	if f.beforeCAS != nil {
		f.beforeCAS()
	}
	if f.spuriousFailures > 0 {
		f.spuriousFailures--
		return false, nil
	}
	o, ok := f.orders[id]
	if !ok {
		return false, domain.NotFoundf("order %s", id)
	}
	if o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func ownerOf(restaurantID string) Actor {
	return Actor{UserID: "owner-1", Role: store.RoleRestaurantOwner, RestaurantID: restaurantID}
}

func admin() Actor {
	return Actor{UserID: "admin-1", Role: store.RoleAdmin}
}

func pendingOrder(id string) *store.Order {
	return &store.Order{ID: id, RestaurantID: "r1", Status: store.StatusPending}
}

func TestOperatorTransitionTable(t *testing.T) {
	all := []store.OrderStatus{
		store.StatusPending, store.StatusConfirmed, store.StatusPreparing,
		store.StatusDelivering, store.StatusCompleted,
		store.StatusCancelledByUser, store.StatusCancelledByRestaurant,
	}
	allowed := map[store.OrderStatus]map[store.OrderStatus]bool{
		store.StatusPending:    {store.StatusConfirmed: true, store.StatusCancelledByRestaurant: true},
		store.StatusConfirmed:  {store.StatusPreparing: true, store.StatusCancelledByRestaurant: true},
		store.StatusPreparing:  {store.StatusDelivering: true, store.StatusCancelledByRestaurant: true},
		store.StatusDelivering: {store.StatusCompleted: true},
	}

	for _, from := range all {
		for _, to := range all {
			repo := newFakeOrderRepo(&store.Order{ID: "o1", RestaurantID: "r1", Status: from})
			eng := NewEngine(repo, nil)
			_, err := eng.Transition(context.Background(), "o1", to, ownerOf("r1"))

			want := allowed[from][to] && from != to
			if want && err != nil {
				t.Errorf("%s -> %s: unexpected error %v", from, to, err)
			}
			if !want && !errors.Is(err, domain.ErrInvalidTransition) {
				t.Errorf("%s -> %s: err = %v, want ErrInvalidTransition", from, to, err)
			}
		}
	}
}

func TestSameStatusIsRejected(t *testing.T) {
	repo := newFakeOrderRepo(pendingOrder("o1"))
	eng := NewEngine(repo, nil)
	_, err := eng.Transition(context.Background(), "o1", store.StatusPending, admin())
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestForeignOwnerIsForbidden(t *testing.T) {
	repo := newFakeOrderRepo(pendingOrder("o1"))
	eng := NewEngine(repo, nil)
	_, err := eng.Transition(context.Background(), "o1", store.StatusConfirmed, ownerOf("other-restaurant"))
	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
	if repo.orders["o1"].Status != store.StatusPending {
		t.Error("forbidden request must not mutate the order")
	}
}

func TestOwnerCannotSetCancelledByUser(t *testing.T) {
	repo := newFakeOrderRepo(pendingOrder("o1"))
	eng := NewEngine(repo, nil)

	if _, err := eng.Transition(context.Background(), "o1", store.StatusConfirmed, ownerOf("r1")); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	_, err := eng.Transition(context.Background(), "o1", store.StatusCancelledByUser, ownerOf("r1"))
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestCustomerCancelsOwnPendingOrder(t *testing.T) {
	o := pendingOrder("o1")
	o.UserID = sql.NullString{String: "cust-9", Valid: true}
	repo := newFakeOrderRepo(o)
	eng := NewEngine(repo, nil)

	got, err := eng.Transition(context.Background(), "o1",
		store.StatusCancelledByUser, Actor{UserID: "cust-9", Role: store.RoleCustomer})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != store.StatusCancelledByUser {
		t.Errorf("status = %s", got.Status)
	}
}

func TestCustomerCannotCancelForeignOrder(t *testing.T) {
	o := pendingOrder("o1")
	o.UserID = sql.NullString{String: "cust-9", Valid: true}
	repo := newFakeOrderRepo(o)
	eng := NewEngine(repo, nil)

	_, err := eng.Transition(context.Background(), "o1",
		store.StatusCancelledByUser, Actor{UserID: "someone-else", Role: store.RoleCustomer})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}

func TestLostRaceIsRevalidatedAgainstFreshStatus(t *testing.T) {
	repo := newFakeOrderRepo(pendingOrder("o1"))
	eng := NewEngine(repo, nil)

	// A concurrent confirm lands between the read and the CAS.
	raced := false
	repo.beforeCAS = func() {
		if !raced {
			raced = true
			repo.orders["o1"].Status = store.StatusCancelledByRestaurant
		}
	}

	_, err := eng.Transition(context.Background(), "o1", store.StatusConfirmed, admin())
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition after losing the race", err)
	}
	if repo.orders["o1"].Status != store.StatusCancelledByRestaurant {
		t.Error("losing request must not override the winner")
	}
}

func TestLostRaceRetriesWhenStillValid(t *testing.T) {
	repo := newFakeOrderRepo(pendingOrder("o1"))
	eng := NewEngine(repo, nil)

	// First CAS loses the race but the transition is still legal after the
	// reload, so the engine retries and succeeds.
	repo.spuriousFailures = 1
	got, err := eng.Transition(context.Background(), "o1", store.StatusConfirmed, admin())
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if got.Status != store.StatusConfirmed {
		t.Errorf("status = %s", got.Status)
	}
}

func TestTransitionOutcomesAreCounted(t *testing.T) {
	m := metrics.Registry("orderstest")
	repo := newFakeOrderRepo(pendingOrder("o1"))
	eng := NewEngine(repo, m)

	appliedBefore := testutil.ToFloat64(m.OrderTransitions.WithLabelValues(string(store.StatusConfirmed), "applied"))
	rejectedBefore := testutil.ToFloat64(m.OrderTransitions.WithLabelValues(string(store.StatusCompleted), "rejected"))

	if _, err := eng.Transition(context.Background(), "o1", store.StatusConfirmed, admin()); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if _, err := eng.Transition(context.Background(), "o1", store.StatusCompleted, admin()); err == nil {
		t.Fatal("CONFIRMED -> COMPLETED should be rejected")
	}

	if got := testutil.ToFloat64(m.OrderTransitions.WithLabelValues(string(store.StatusConfirmed), "applied")) - appliedBefore; got != 1 {
		t.Errorf("applied count delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.OrderTransitions.WithLabelValues(string(store.StatusCompleted), "rejected")) - rejectedBefore; got != 1 {
		t.Errorf("rejected count delta = %v, want 1", got)
	}
}
