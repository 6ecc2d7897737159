// Package checkout drives the SHOPPING → BILLING → PURCHASE → FINISH flow.
// All state lives in the session store; the stage is recomputed from the
// persisted draft on every call.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/metrics"
	"storefront/internal/session"
	"storefront/internal/xid"
)

// taxRatePercent is a fixed policy rate applied to the item subtotal.
const taxRatePercent = 6

const maxSessionOrders = 50

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidTransition = errors.New("invalid checkout transition")
)

type CartStore interface {
	Get(ctx context.Context, sessionID string) (domain.Cart, error)
	Clear(ctx context.Context, sessionID string) error
}

type OrderArchive interface {
	CreateOrder(ctx context.Context, sessionID string, order domain.Order) error
	ListOrders(ctx context.Context, sessionID string, limit int) ([]domain.Order, error)
}

type View struct {
	Stage     Stage         `json:"stage"`
	Cart      domain.Cart   `json:"cart"`
	Draft     *domain.Order `json:"draft,omitempty"`
	EmptyCart bool          `json:"empty_cart"`
}

type Controller struct {
	sessions  session.Store
	cart      CartStore
	archive   OrderArchive
	publisher events.Publisher
	metrics   *metrics.Registry
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*Controller)

func WithPublisher(p events.Publisher) Option {
	return func(c *Controller) {
		if p != nil {
			c.publisher = p
		}
	}
}

func WithMetrics(m *metrics.Registry) Option {
	return func(c *Controller) { c.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func NewController(sessions session.Store, cart CartStore, archive OrderArchive, opts ...Option) *Controller {
	c := &Controller{
		sessions:  sessions,
		cart:      cart,
		archive:   archive,
		publisher: events.NoopPublisher{},
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) View(ctx context.Context, sessionID string) (View, error) {
	cart, err := c.cart.Get(ctx, sessionID)
	if err != nil {
		return View{}, err
	}
	draft, err := c.loadDraft(ctx, sessionID)
	if err != nil {
		return View{}, err
	}
	stage := DeriveStage(draft)
	return View{
		Stage:     stage,
		Cart:      cart,
		Draft:     draft,
		EmptyCart: stage == StageShopping && cart.Empty(),
	}, nil
}

// Proceed moves a non-empty cart into BILLING by persisting a draft header.
func (c *Controller) Proceed(ctx context.Context, sessionID string) (View, error) {
	view, err := c.View(ctx, sessionID)
	if err != nil {
		return View{}, err
	}
	if view.Stage != StageShopping {
		return View{}, fmt.Errorf("%w: proceed from %s", ErrInvalidTransition, view.Stage)
	}
	if view.Cart.Empty() {
		return View{}, ErrEmptyCart
	}

	draftFlag := true
	subtotal := view.Cart.SubtotalCents()
	draft := &domain.Order{
		Draft:         &draftFlag,
		Items:         append([]domain.CartItem(nil), view.Cart.Items...),
		SubtotalCents: subtotal,
		TotalCents:    subtotal,
		CreatedAt:     c.now().UTC(),
	}
	if err := c.saveDraft(ctx, sessionID, draft); err != nil {
		return View{}, err
	}
	c.observe(StageBilling)

	view.Stage = StageBilling
	view.Draft = draft
	return view, nil
}

// SubmitBilling attaches addresses and totals to the draft. Invalid forms
// return *ValidationError and leave the draft untouched.
func (c *Controller) SubmitBilling(ctx context.Context, sessionID string, req domain.BillingRequest) (View, error) {
	view, err := c.View(ctx, sessionID)
	if err != nil {
		return View{}, err
	}
	if view.Stage != StageBilling {
		return View{}, fmt.Errorf("%w: billing from %s", ErrInvalidTransition, view.Stage)
	}

	normalizeBilling(&req)
	if err := validateBilling(req); err != nil {
		return View{}, err
	}

	if view.Cart.Empty() {
		return View{}, ErrEmptyCart
	}

	draft := view.Draft
	billing := req.Billing
	shipping := req.Shipping
	draft.Email = req.Email
	draft.ShipMethod = req.ShipMethod
	draft.Billing = &billing
	draft.Shipping = &shipping
	priceFromCart(draft, view.Cart)

	if err := c.saveDraft(ctx, sessionID, draft); err != nil {
		return View{}, err
	}
	c.observe(StagePurchase)

	view.Stage = StagePurchase
	return view, nil
}

// Confirm completes the order. The session record is authoritative; archive
// and event failures after it is written are logged only.
func (c *Controller) Confirm(ctx context.Context, sessionID string) (View, error) {
	view, err := c.View(ctx, sessionID)
	if err != nil {
		return View{}, err
	}
	if view.Stage != StagePurchase {
		return View{}, fmt.Errorf("%w: confirm from %s", ErrInvalidTransition, view.Stage)
	}

	if view.Cart.Empty() {
		return View{}, ErrEmptyCart
	}

	// The cart stays editable after Proceed, so the order is priced from
	// what is actually being cleared.
	order := *view.Draft
	priceFromCart(&order, view.Cart)
	done := false
	completedAt := c.now().UTC()
	order.Draft = &done
	order.ID = xid.New("ord")
	order.CompletedAt = &completedAt

	var completed []domain.Order
	if _, err := c.sessions.Get(ctx, sessionID, session.KeyOrders, &completed); err != nil {
		return View{}, fmt.Errorf("load orders: %w", err)
	}
	completed = append(completed, order)
	if len(completed) > maxSessionOrders {
		completed = completed[len(completed)-maxSessionOrders:]
	}
	if err := c.sessions.Set(ctx, sessionID, session.KeyOrders, completed); err != nil {
		return View{}, fmt.Errorf("save orders: %w", err)
	}

	if err := c.cart.Clear(ctx, sessionID); err != nil {
		return View{}, err
	}
	if err := c.sessions.Delete(ctx, sessionID, session.KeyOrder); err != nil {
		return View{}, fmt.Errorf("delete draft: %w", err)
	}
	c.observe(StageFinish)

	if c.archive != nil {
		if err := c.archive.CreateOrder(ctx, sessionID, order); err != nil {
			c.logger.Warn("archive order failed", zap.String("order_id", order.ID), zap.Error(err))
		}
	}
	event := domain.OrderCompletedEvent{
		OrderID:     order.ID,
		SessionID:   sessionID,
		ItemCount:   domain.Cart{Items: order.Items}.ItemCount(),
		TotalCents:  order.TotalCents,
		CompletedAt: completedAt,
	}
	if err := c.publisher.PublishOrderCompleted(ctx, event); err != nil {
		c.logger.Warn("publish order event failed", zap.String("order_id", order.ID), zap.Error(err))
	}
	c.logger.Info("order completed",
		zap.String("order_id", order.ID),
		zap.Int64("total_cents", order.TotalCents),
	)

	return View{
		Stage: StageFinish,
		Cart:  domain.Cart{Items: []domain.CartItem{}},
		Draft: &order,
	}, nil
}

// Orders lists completed orders, newest first. The session record is used
// when present; otherwise the archive is consulted.
func (c *Controller) Orders(ctx context.Context, sessionID string, limit int) ([]domain.Order, error) {
	if limit < 1 {
		limit = maxSessionOrders
	}
	var completed []domain.Order
	found, err := c.sessions.Get(ctx, sessionID, session.KeyOrders, &completed)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	if !found && c.archive != nil {
		return c.archive.ListOrders(ctx, sessionID, limit)
	}

	out := make([]domain.Order, 0, min(limit, len(completed)))
	for i := len(completed) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, completed[i])
	}
	return out, nil
}

func (c *Controller) loadDraft(ctx context.Context, sessionID string) (*domain.Order, error) {
	var draft domain.Order
	found, err := c.sessions.Get(ctx, sessionID, session.KeyOrder, &draft)
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &draft, nil
}

func (c *Controller) saveDraft(ctx context.Context, sessionID string, draft *domain.Order) error {
	if err := c.sessions.Set(ctx, sessionID, session.KeyOrder, draft); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

func (c *Controller) observe(stage Stage) {
	if c.metrics != nil {
		c.metrics.CheckoutTransition.WithLabelValues(stage.String()).Inc()
	}
}

func priceFromCart(order *domain.Order, cart domain.Cart) {
	order.Items = append([]domain.CartItem(nil), cart.Items...)
	order.SubtotalCents = cart.SubtotalCents()
	order.TaxCents = computeTax(order.SubtotalCents)
	order.TotalCents = order.SubtotalCents + order.TaxCents
}

// computeTax rounds half up to the cent.
func computeTax(subtotalCents int64) int64 {
	if subtotalCents <= 0 {
		return 0
	}
	return (subtotalCents*taxRatePercent + 50) / 100
}
