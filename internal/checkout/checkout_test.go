package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/metrics"
	"storefront/internal/session"
	"storefront/internal/store/memory"
)

type recordingPublisher struct {
	events []domain.OrderCompletedEvent
	err    error
}

func (p *recordingPublisher) PublishOrderCompleted(_ context.Context, e domain.OrderCompletedEvent) error {
	p.events = append(p.events, e)
	return p.err
}

type fixture struct {
	sessions  *session.Memory
	cart      *cart.Service
	repo      *memory.Store
	publisher *recordingPublisher
	metrics   *metrics.Registry
	ctrl      *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sessions := session.NewMemory(time.Hour)
	repo := memory.NewSeeded()
	carts := cart.New(sessions, repo)
	pub := &recordingPublisher{}
	reg := metrics.NewRegistry()
	fixed := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	ctrl := NewController(sessions, carts, repo,
		WithPublisher(pub),
		WithMetrics(reg),
		WithClock(func() time.Time { return fixed }),
	)
	return &fixture{sessions: sessions, cart: carts, repo: repo, publisher: pub, metrics: reg, ctrl: ctrl}
}

func validBilling() domain.BillingRequest {
	addr := domain.Address{
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Street:     "12 Analytical Way",
		City:       "London",
		PostalCode: "N1 9GU",
		Country:    "GB",
	}
	return domain.BillingRequest{
		Email:             "ada@example.com",
		ShipMethod:        "standard",
		Billing:           addr,
		ShippingAsBilling: true,
	}
}

func boolPtr(v bool) *bool { return &v }

func TestDeriveStage(t *testing.T) {
	cases := []struct {
		name  string
		draft *domain.Order
		want  Stage
	}{
		{"no draft", nil, StageShopping},
		{"draft header", &domain.Order{Draft: boolPtr(true)}, StageBilling},
		{"draft without flag", &domain.Order{}, StageBilling},
		{"ship method set", &domain.Order{Draft: boolPtr(true), ShipMethod: "express"}, StagePurchase},
		{"ship method without flag", &domain.Order{ShipMethod: "express"}, StagePurchase},
		{"completed", &domain.Order{Draft: boolPtr(false), ShipMethod: "express"}, StageFinish},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveStage(tc.draft))
		})
	}
}

func TestViewEmptyCartIsShopping(t *testing.T) {
	f := newFixture(t)

	view, err := f.ctrl.View(context.Background(), "sid")
	require.NoError(t, err)
	assert.Equal(t, StageShopping, view.Stage)
	assert.True(t, view.EmptyCart)
	assert.Nil(t, view.Draft)
}

func TestViewRecomputesPurchaseFromPersistedDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sessions.Set(ctx, "sid", session.KeyOrder, domain.Order{Draft: boolPtr(true), ShipMethod: "standard"}))

	view, err := f.ctrl.View(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, StagePurchase, view.Stage)
}

func TestProceedRequiresItems(t *testing.T) {
	f := newFixture(t)

	_, err := f.ctrl.Proceed(context.Background(), "sid")
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestFullCheckoutFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.cart.Add(ctx, "sid", domain.CartAddRequest{ProductID: "P-1001", Qty: 2})
	require.NoError(t, err)
	_, err = f.cart.Add(ctx, "sid", domain.CartAddRequest{ProductID: "P-1006", Qty: 1})
	require.NoError(t, err)

	view, err := f.ctrl.Proceed(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, StageBilling, view.Stage)
	require.NotNil(t, view.Draft)
	assert.Equal(t, int64(2*4900+12900), view.Draft.SubtotalCents)

	view, err = f.ctrl.SubmitBilling(ctx, "sid", validBilling())
	require.NoError(t, err)
	assert.Equal(t, StagePurchase, view.Stage)
	// 22700 * 6% = 1362
	assert.Equal(t, int64(1362), view.Draft.TaxCents)
	assert.Equal(t, int64(22700+1362), view.Draft.TotalCents)
	require.NotNil(t, view.Draft.Shipping)
	assert.Equal(t, "London", view.Draft.Shipping.City)

	view, err = f.ctrl.Confirm(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, StageFinish, view.Stage)
	require.NotNil(t, view.Draft)
	assert.NotEmpty(t, view.Draft.ID)
	require.NotNil(t, view.Draft.Draft)
	assert.False(t, *view.Draft.Draft)
	require.NotNil(t, view.Draft.CompletedAt)

	c, err := f.cart.Get(ctx, "sid")
	require.NoError(t, err)
	assert.True(t, c.Empty())

	// The draft is gone, so a fresh view starts over.
	after, err := f.ctrl.View(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, StageShopping, after.Stage)

	orders, err := f.ctrl.Orders(ctx, "sid", 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, view.Draft.ID, orders[0].ID)

	archived, err := f.repo.ListOrders(ctx, "sid", 10)
	require.NoError(t, err)
	require.Len(t, archived, 1)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, 3, f.publisher.events[0].ItemCount)
	assert.Equal(t, view.Draft.ID, f.publisher.events[0].OrderID)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.CheckoutTransition.WithLabelValues("FINISH")))
}

func TestSubmitBillingValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.cart.Add(ctx, "sid", domain.CartAddRequest{ProductID: "P-1001", Qty: 1})
	require.NoError(t, err)
	_, err = f.ctrl.Proceed(ctx, "sid")
	require.NoError(t, err)

	req := validBilling()
	req.Email = ""
	req.ShipMethod = "teleport"
	req.ShippingAsBilling = false
	_, err = f.ctrl.SubmitBilling(ctx, "sid", req)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "required", verr.Fields["email"])
	assert.Equal(t, "invalid", verr.Fields["ship_method"])
	assert.Equal(t, "required", verr.Fields["shipping.street"])
	assert.NotContains(t, verr.Fields, "billing.street")

	view, err := f.ctrl.View(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, StageBilling, view.Stage)
}

func TestSubmitBillingRejectsMalformedEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.cart.Add(ctx, "sid", domain.CartAddRequest{ProductID: "P-1001", Qty: 1})
	require.NoError(t, err)
	_, err = f.ctrl.Proceed(ctx, "sid")
	require.NoError(t, err)

	req := validBilling()
	req.Email = "not-an-address"
	_, err = f.ctrl.SubmitBilling(ctx, "sid", req)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, map[string]string{"email": msgInvalid}, verr.Fields)
}

func TestWrongStageTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ctrl.SubmitBilling(ctx, "sid", validBilling())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.ctrl.Confirm(ctx, "sid")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.cart.Add(ctx, "sid", domain.CartAddRequest{ProductID: "P-1001", Qty: 1})
	require.NoError(t, err)
	_, err = f.ctrl.Proceed(ctx, "sid")
	require.NoError(t, err)
	_, err = f.ctrl.Proceed(ctx, "sid")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestClearedSessionResetsToShopping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.cart.Add(ctx, "sid", domain.CartAddRequest{ProductID: "P-1001", Qty: 1})
	require.NoError(t, err)
	_, err = f.ctrl.Proceed(ctx, "sid")
	require.NoError(t, err)

	f.sessions.Clear("sid")

	view, err := f.ctrl.View(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, StageShopping, view.Stage)
	assert.True(t, view.EmptyCart)
}

func TestConfirmSurvivesPublishFailure(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")
	ctx := context.Background()
	_, err := f.cart.Add(ctx, "sid", domain.CartAddRequest{ProductID: "P-1005", Qty: 1})
	require.NoError(t, err)
	_, err = f.ctrl.Proceed(ctx, "sid")
	require.NoError(t, err)
	_, err = f.ctrl.SubmitBilling(ctx, "sid", validBilling())
	require.NoError(t, err)

	view, err := f.ctrl.Confirm(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, StageFinish, view.Stage)
}

func TestCartChangesAfterProceedAreOrdered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.cart.Add(ctx, "sid", domain.CartAddRequest{ProductID: "P-1001", Qty: 1})
	require.NoError(t, err)
	_, err = f.ctrl.Proceed(ctx, "sid")
	require.NoError(t, err)

	_, err = f.cart.Add(ctx, "sid", domain.CartAddRequest{ProductID: "P-1002", Qty: 1})
	require.NoError(t, err)
	view, err := f.ctrl.SubmitBilling(ctx, "sid", validBilling())
	require.NoError(t, err)
	require.Len(t, view.Draft.Items, 2)
	assert.Equal(t, int64(4900+5900), view.Draft.SubtotalCents)
	assert.Equal(t, int64(648), view.Draft.TaxCents)

	_, err = f.cart.Add(ctx, "sid", domain.CartAddRequest{ProductID: "P-1005", Qty: 1})
	require.NoError(t, err)
	view, err = f.ctrl.Confirm(ctx, "sid")
	require.NoError(t, err)
	require.Len(t, view.Draft.Items, 3)
	// 14700 * 6% = 882
	assert.Equal(t, int64(14700+882), view.Draft.TotalCents)
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, 3, f.publisher.events[0].ItemCount)
}

func TestConfirmRejectsEmptiedCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.cart.Add(ctx, "sid", domain.CartAddRequest{ProductID: "P-1001", Qty: 1})
	require.NoError(t, err)
	_, err = f.ctrl.Proceed(ctx, "sid")
	require.NoError(t, err)
	_, err = f.ctrl.SubmitBilling(ctx, "sid", validBilling())
	require.NoError(t, err)
	require.NoError(t, f.cart.Clear(ctx, "sid"))

	_, err = f.ctrl.Confirm(ctx, "sid")
	assert.ErrorIs(t, err, ErrEmptyCart)

	view, err := f.ctrl.View(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, StagePurchase, view.Stage)
	assert.Empty(t, f.publisher.events)
}

func TestComputeTaxRoundsHalfUp(t *testing.T) {
	assert.Equal(t, int64(0), computeTax(0))
	assert.Equal(t, int64(1), computeTax(9))   // 0.54
	assert.Equal(t, int64(2), computeTax(25))  // 1.50
	assert.Equal(t, int64(294), computeTax(4900))
}
