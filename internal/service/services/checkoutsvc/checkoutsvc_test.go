package checkoutsvc

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/iaddressrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/icartrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/iinventoryrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/iorderlinerepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/checkout/internal/gateway"
	"github.com/corray333/backend-labs/checkout/internal/service/models/actor"
	"github.com/corray333/backend-labs/checkout/internal/service/models/cart"
	"github.com/corray333/backend-labs/checkout/internal/service/models/currency"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/orderline"
	"github.com/corray333/backend-labs/checkout/internal/service/models/payment"
	"github.com/corray333/backend-labs/checkout/internal/service/models/product"
)

// memStore is an in-memory stand-in for the database. Units of work take a
// full snapshot on Begin and restore it on Rollback, so the all-or-nothing
// behavior of the real transactions is observable in tests.
type memStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	stock       map[int64]int
	addresses   map[int64]int64 // address id -> owner user id
	carts       map[int64][]cart.SnapshotLine
	orders      map[int64]order.Order
	lines       map[int64][]orderline.OrderLine
	nextOrderID int64
	nextLineID  int64
}

func newMemStore() *memStore {
	return &memStore{
		stock:     map[int64]int{},
		addresses: map[int64]int64{},
		carts:     map[int64][]cart.SnapshotLine{},
		orders:    map[int64]order.Order{},
		lines:     map[int64][]orderline.OrderLine{},
	}
}

type storeState struct {
	stock       map[int64]int
	carts       map[int64][]cart.SnapshotLine
	orders      map[int64]order.Order
	lines       map[int64][]orderline.OrderLine
	nextOrderID int64
	nextLineID  int64
}

func (s *memStore) snapshot() *storeState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &storeState{
		stock:       map[int64]int{},
		carts:       map[int64][]cart.SnapshotLine{},
		orders:      map[int64]order.Order{},
		lines:       map[int64][]orderline.OrderLine{},
		nextOrderID: s.nextOrderID,
		nextLineID:  s.nextLineID,
	}
	for k, v := range s.stock {
		st.stock[k] = v
	}
	for k, v := range s.carts {
		st.carts[k] = append([]cart.SnapshotLine(nil), v...)
	}
	for k, v := range s.orders {
		st.orders[k] = v
	}
	for k, v := range s.lines {
		st.lines[k] = append([]orderline.OrderLine(nil), v...)
	}

	return st
}

func (s *memStore) restore(st *storeState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stock = st.stock
	s.carts = st.carts
	s.orders = st.orders
	s.lines = st.lines
	s.nextOrderID = st.nextOrderID
	s.nextLineID = st.nextLineID
}

type fakeUOW struct {
	store  *memStore
	backup *storeState
}

func (u *fakeUOW) Begin(_ context.Context) error {
	u.store.txMu.Lock()
	u.backup = u.store.snapshot()

	return nil
}

func (u *fakeUOW) Commit(_ context.Context) error {
	u.backup = nil
	u.store.txMu.Unlock()

	return nil
}

func (u *fakeUOW) Rollback(_ context.Context) error {
	if u.backup != nil {
		u.store.restore(u.backup)
		u.backup = nil
		u.store.txMu.Unlock()
	}

	return nil
}

func (u *fakeUOW) OrderRepository() iorderrepo.IOrderRepository {
	return &fakeOrderRepo{store: u.store}
}

func (u *fakeUOW) OrderLineRepository() iorderlinerepo.IOrderLineRepository {
	return &fakeOrderLineRepo{store: u.store}
}

func (u *fakeUOW) InventoryRepository() iinventoryrepo.IInventoryRepository {
	return &fakeInventoryRepo{store: u.store}
}

func (u *fakeUOW) CartRepository() icartrepo.ICartRepository {
	return &fakeCartRepo{store: u.store}
}

func (u *fakeUOW) AddressRepository() iaddressrepo.IAddressRepository {
	return &fakeAddressRepo{store: u.store}
}

type fakeOrderRepo struct {
	store *memStore
}

func (r *fakeOrderRepo) Insert(_ context.Context, o order.Order) (order.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, existing := range r.store.orders {
		if existing.OrderNumber == o.OrderNumber {
			return order.Order{}, errors.New("duplicate order number")
		}
	}

	r.store.nextOrderID++
	o.ID = r.store.nextOrderID
	r.store.orders[o.ID] = o

	return o, nil
}

func (r *fakeOrderRepo) GetByID(_ context.Context, id int64) (*order.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	o, ok := r.store.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}

	return &o, nil
}

func (r *fakeOrderRepo) Query(_ context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var result []order.Order
	for _, o := range r.store.orders {
		if len(filter.UserIds) > 0 && !containsInt64(filter.UserIds, o.UserID) {
			continue
		}
		if len(filter.Ids) > 0 && !containsInt64(filter.Ids, o.ID) {
			continue
		}
		result = append(result, o)
	}

	return result, nil
}

func (r *fakeOrderRepo) SetPaymentIntent(_ context.Context, orderID int64, intentID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	o, ok := r.store.orders[orderID]
	if !ok {
		return order.ErrNotFound
	}
	o.PaymentIntentID = intentID
	r.store.orders[orderID] = o

	return nil
}

func (r *fakeOrderRepo) SetPaymentResult(
	_ context.Context,
	orderID int64,
	status order.Status,
	paymentStatus order.PaymentStatus,
	externalTxnID string,
) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	o, ok := r.store.orders[orderID]
	if !ok {
		return order.ErrNotFound
	}
	o.Status = status
	o.PaymentStatus = paymentStatus
	if externalTxnID != "" {
		o.ExternalTxnID = externalTxnID
	}
	r.store.orders[orderID] = o

	return nil
}

func (r *fakeOrderRepo) UpdateStatus(
	_ context.Context,
	orderID int64,
	status order.Status,
	shippedAt *time.Time,
	deliveredAt *time.Time,
) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	o, ok := r.store.orders[orderID]
	if !ok {
		return order.ErrNotFound
	}
	o.Status = status
	if shippedAt != nil && o.ShippedAt == nil {
		o.ShippedAt = shippedAt
	}
	if deliveredAt != nil && o.DeliveredAt == nil {
		o.DeliveredAt = deliveredAt
	}
	r.store.orders[orderID] = o

	return nil
}

type fakeOrderLineRepo struct {
	store *memStore
}

func (r *fakeOrderLineRepo) BulkInsert(_ context.Context, lines []orderline.OrderLine) ([]orderline.OrderLine, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	inserted := make([]orderline.OrderLine, len(lines))
	for i, line := range lines {
		r.store.nextLineID++
		line.ID = r.store.nextLineID
		r.store.lines[line.OrderID] = append(r.store.lines[line.OrderID], line)
		inserted[i] = line
	}

	return inserted, nil
}

func (r *fakeOrderLineRepo) ListByOrderIDs(_ context.Context, orderIDs []int64) ([]orderline.OrderLine, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var result []orderline.OrderLine
	for _, id := range orderIDs {
		result = append(result, r.store.lines[id]...)
	}

	return result, nil
}

type fakeInventoryRepo struct {
	store *memStore
}

func (r *fakeInventoryRepo) TryReserve(_ context.Context, productID int64, qty int) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.stock[productID]
	if !ok || current < qty {
		return false, nil
	}
	r.store.stock[productID] = current - qty

	return true, nil
}

func (r *fakeInventoryRepo) Release(_ context.Context, productID int64, qty int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.stock[productID]
	if !ok {
		return product.ErrNotFound
	}
	r.store.stock[productID] = current + qty

	return nil
}

type fakeCartRepo struct {
	store *memStore
}

func (r *fakeCartRepo) Snapshot(_ context.Context, userID int64) (*cart.Snapshot, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return &cart.Snapshot{
		UserID:  userID,
		TakenAt: time.Now().UTC(),
		Lines:   append([]cart.SnapshotLine(nil), r.store.carts[userID]...),
	}, nil
}

func (r *fakeCartRepo) DeleteLines(_ context.Context, userID int64, lineIDs []int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var kept []cart.SnapshotLine
	for _, line := range r.store.carts[userID] {
		if !containsInt64(lineIDs, line.CartLineID) {
			kept = append(kept, line)
		}
	}
	r.store.carts[userID] = kept

	return nil
}

type fakeAddressRepo struct {
	store *memStore
}

func (r *fakeAddressRepo) BelongsToUser(_ context.Context, addressID, userID int64) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.addresses[addressID] == userID, nil
}

type fakeGateway struct {
	mu           sync.Mutex
	intentCalls  int
	captureCalls int
	refundCalls  int
	captureErr   error
	refundErr    error
	txnID        string
}

func (g *fakeGateway) CreateIntent(_ context.Context, amountCents int64, cur currency.Currency) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intentCalls++

	return &payment.Intent{
		ID:          fmt.Sprintf("int_%d", g.intentCalls),
		ApprovalURL: "https://gateway.example.com/approve/int_1",
		AmountCents: amountCents,
		Currency:    cur,
	}, nil
}

func (g *fakeGateway) Capture(_ context.Context, _ string) (*payment.CaptureResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.captureCalls++
	if g.captureErr != nil {
		return nil, g.captureErr
	}

	return &payment.CaptureResult{TransactionID: g.txnID}, nil
}

func (g *fakeGateway) Refund(_ context.Context, _ string, _ int64) (*payment.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refundCalls++
	if g.refundErr != nil {
		return nil, g.refundErr
	}

	return &payment.RefundResult{RefundID: "ref_1"}, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *fakeNotifier) NotifyOrderConfirmed(_ context.Context, _ order.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++

	return nil
}

func containsInt64(haystack []int64, needle int64) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}

	return false
}

const (
	buyerID   = int64(7)
	addressID = int64(11)
)

func seedStore() *memStore {
	store := newMemStore()
	store.addresses[addressID] = buyerID
	store.stock[101] = 5
	store.stock[102] = 3

	discount := int64(800)
	store.carts[buyerID] = []cart.SnapshotLine{
		{
			CartLineID:      1,
			ProductID:       101,
			VendorID:        21,
			ProductTitle:    "Walnut desk organizer",
			ProductImageURL: "https://img.example.com/101.jpg",
			Quantity:        2,
			ListPriceCents:  1000,
			StockQuantity:   5,
		},
		{
			CartLineID:         2,
			ProductID:          102,
			VendorID:           22,
			ProductTitle:       "Ceramic pour-over set",
			ProductImageURL:    "https://img.example.com/102.jpg",
			Quantity:           1,
			ListPriceCents:     1200,
			DiscountPriceCents: &discount,
			StockQuantity:      3,
		},
	}

	return store
}

func newTestService(store *memStore, gw *fakeGateway, notifier *fakeNotifier) *CheckoutService {
	return MustNewCheckoutService(
		WithGateway(gw),
		WithNotifier(notifier),
		WithPricing(Pricing{ShippingFlatCents: 500, TaxRateBasisPts: 1000}),
		WithUnitOfWorkFactory(func() unitOfWork {
			return &fakeUOW{store: store}
		}),
	)
}

func placeTestOrder(t *testing.T, svc *CheckoutService) order.Order {
	t.Helper()

	placed, err := svc.PlaceOrder(context.Background(), buyerID, addressID, payment.MethodGateway)
	if err != nil {
		t.Fatalf("expected order placement to succeed, got error: %v", err)
	}

	return placed
}

func TestPlaceOrderSuccess(t *testing.T) {
	store := seedStore()
	svc := newTestService(store, &fakeGateway{txnID: "txn_1"}, &fakeNotifier{})

	placed := placeTestOrder(t, svc)

	if placed.Status != order.StatusPending {
		t.Errorf("expected status pending, got %s", placed.Status)
	}
	if placed.PaymentStatus != order.PaymentStatusPending {
		t.Errorf("expected payment status pending, got %s", placed.PaymentStatus)
	}
	if !regexp.MustCompile(`^ORD-\d{8}-[0-9A-F]{8}$`).MatchString(placed.OrderNumber) {
		t.Errorf("unexpected order number format %q", placed.OrderNumber)
	}

	// 2 x 1000 list + 1 x 800 discounted.
	if placed.SubtotalCents != 2800 {
		t.Errorf("expected subtotal 2800, got %d", placed.SubtotalCents)
	}
	if placed.DiscountCents != 400 {
		t.Errorf("expected discount 400, got %d", placed.DiscountCents)
	}
	if placed.TaxCents != 280 {
		t.Errorf("expected tax 280, got %d", placed.TaxCents)
	}
	if err := placed.ValidateTotals(); err != nil {
		t.Errorf("placed order violates the totals invariant: %v", err)
	}

	if len(placed.Lines) != 2 {
		t.Fatalf("expected 2 order lines, got %d", len(placed.Lines))
	}
	if placed.Lines[1].UnitPriceCents != 800 {
		t.Errorf("expected discounted unit price 800, got %d", placed.Lines[1].UnitPriceCents)
	}
	if placed.Lines[0].LineTotalCents != 2000 {
		t.Errorf("expected line total 2000, got %d", placed.Lines[0].LineTotalCents)
	}

	if store.stock[101] != 3 || store.stock[102] != 2 {
		t.Errorf("expected stock decremented to 3/2, got %d/%d", store.stock[101], store.stock[102])
	}
	if len(store.carts[buyerID]) != 0 {
		t.Errorf("expected cart to be emptied, %d lines remain", len(store.carts[buyerID]))
	}
}

func TestPlaceOrderInsufficientStockRollsBackEverything(t *testing.T) {
	store := seedStore()
	store.stock[102] = 0 // second line cannot be reserved
	svc := newTestService(store, &fakeGateway{}, &fakeNotifier{})

	_, err := svc.PlaceOrder(context.Background(), buyerID, addressID, payment.MethodGateway)
	if !errors.Is(err, product.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}

	if store.stock[101] != 5 {
		t.Errorf("expected first line's reservation to be rolled back, stock is %d", store.stock[101])
	}
	if len(store.orders) != 0 {
		t.Errorf("expected no order to be created, found %d", len(store.orders))
	}
	if len(store.carts[buyerID]) != 2 {
		t.Errorf("expected cart to be untouched, %d lines remain", len(store.carts[buyerID]))
	}
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	store := seedStore()
	store.carts[buyerID] = nil
	svc := newTestService(store, &fakeGateway{}, &fakeNotifier{})

	_, err := svc.PlaceOrder(context.Background(), buyerID, addressID, payment.MethodGateway)
	if !errors.Is(err, cart.ErrEmptyCart) {
		t.Fatalf("expected empty cart error, got %v", err)
	}
}

func TestPlaceOrderForeignAddressRejected(t *testing.T) {
	store := seedStore()
	store.addresses[addressID] = 999
	svc := newTestService(store, &fakeGateway{}, &fakeNotifier{})

	_, err := svc.PlaceOrder(context.Background(), buyerID, addressID, payment.MethodGateway)
	if !errors.Is(err, ErrAddressNotOwned) {
		t.Fatalf("expected address ownership error, got %v", err)
	}
}

func TestPlaceOrderLastUnitGoesToExactlyOneBuyer(t *testing.T) {
	store := newMemStore()
	store.stock[101] = 1
	otherBuyer := int64(8)
	otherAddress := int64(12)
	store.addresses[addressID] = buyerID
	store.addresses[otherAddress] = otherBuyer
	line := cart.SnapshotLine{
		CartLineID:     1,
		ProductID:      101,
		VendorID:       21,
		ProductTitle:   "Walnut desk organizer",
		Quantity:       1,
		ListPriceCents: 1000,
		StockQuantity:  1,
	}
	store.carts[buyerID] = []cart.SnapshotLine{line}
	store.carts[otherBuyer] = []cart.SnapshotLine{line}

	svc := newTestService(store, &fakeGateway{}, &fakeNotifier{})

	var wg sync.WaitGroup
	results := make([]error, 2)
	buyers := []struct {
		userID    int64
		addressID int64
	}{
		{buyerID, addressID},
		{otherBuyer, otherAddress},
	}
	for i, b := range buyers {
		wg.Add(1)
		go func(i int, userID, addressID int64) {
			defer wg.Done()
			_, results[i] = svc.PlaceOrder(context.Background(), userID, addressID, payment.MethodGateway)
		}(i, b.userID, b.addressID)
	}
	wg.Wait()

	var successes, stockFailures int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, product.ErrInsufficientStock):
			stockFailures++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if successes != 1 || stockFailures != 1 {
		t.Fatalf("expected exactly one buyer to win the last unit, got %d successes and %d stock failures",
			successes, stockFailures)
	}
	if store.stock[101] != 0 {
		t.Errorf("expected stock 0 after the race, got %d", store.stock[101])
	}
}

func TestBeginExternalPayment(t *testing.T) {
	store := seedStore()
	gw := &fakeGateway{txnID: "txn_1"}
	svc := newTestService(store, gw, &fakeNotifier{})
	placed := placeTestOrder(t, svc)
	owner := actor.Actor{ID: buyerID, Role: actor.RoleUser}

	intent, err := svc.BeginExternalPayment(context.Background(), placed.ID, owner)
	if err != nil {
		t.Fatalf("expected intent creation to succeed, got error: %v", err)
	}
	if intent.AmountCents != placed.TotalCents {
		t.Errorf("expected intent amount %d, got %d", placed.TotalCents, intent.AmountCents)
	}
	if store.orders[placed.ID].PaymentIntentID != intent.ID {
		t.Errorf("expected intent id %q to be recorded on the order", intent.ID)
	}

	if _, err := svc.BeginExternalPayment(
		context.Background(), placed.ID, actor.Actor{ID: 999, Role: actor.RoleUser},
	); !errors.Is(err, actor.ErrForbidden) {
		t.Errorf("expected foreign user to be forbidden, got %v", err)
	}
}

func TestFinalizePaymentConfirmsOrder(t *testing.T) {
	store := seedStore()
	gw := &fakeGateway{txnID: "txn_1"}
	notifier := &fakeNotifier{}
	svc := newTestService(store, gw, notifier)
	placed := placeTestOrder(t, svc)
	owner := actor.Actor{ID: buyerID, Role: actor.RoleUser}

	if _, err := svc.BeginExternalPayment(context.Background(), placed.ID, owner); err != nil {
		t.Fatalf("begin payment failed: %v", err)
	}

	confirmed, err := svc.FinalizePayment(context.Background(), placed.ID, "", owner)
	if err != nil {
		t.Fatalf("expected capture to succeed, got error: %v", err)
	}
	if confirmed.Status != order.StatusConfirmed {
		t.Errorf("expected status confirmed, got %s", confirmed.Status)
	}
	if confirmed.PaymentStatus != order.PaymentStatusPaid {
		t.Errorf("expected payment status paid, got %s", confirmed.PaymentStatus)
	}
	if confirmed.ExternalTxnID != "txn_1" {
		t.Errorf("expected external txn id txn_1, got %q", confirmed.ExternalTxnID)
	}
	if notifier.calls != 1 {
		t.Errorf("expected one confirmation notification, got %d", notifier.calls)
	}
}

func TestFinalizePaymentIsIdempotent(t *testing.T) {
	store := seedStore()
	gw := &fakeGateway{txnID: "txn_1"}
	notifier := &fakeNotifier{}
	svc := newTestService(store, gw, notifier)
	placed := placeTestOrder(t, svc)
	owner := actor.Actor{ID: buyerID, Role: actor.RoleUser}

	if _, err := svc.BeginExternalPayment(context.Background(), placed.ID, owner); err != nil {
		t.Fatalf("begin payment failed: %v", err)
	}

	first, err := svc.FinalizePayment(context.Background(), placed.ID, "", owner)
	if err != nil {
		t.Fatalf("first capture failed: %v", err)
	}
	second, err := svc.FinalizePayment(context.Background(), placed.ID, "", owner)
	if err != nil {
		t.Fatalf("second capture failed: %v", err)
	}

	if second.ExternalTxnID != first.ExternalTxnID {
		t.Errorf("expected repeated capture to return the same transaction id, got %q and %q",
			first.ExternalTxnID, second.ExternalTxnID)
	}
	if gw.captureCalls != 1 {
		t.Errorf("expected exactly one gateway capture call, got %d", gw.captureCalls)
	}
	if notifier.calls != 1 {
		t.Errorf("expected exactly one notification, got %d", notifier.calls)
	}
}

func TestFinalizePaymentDeclined(t *testing.T) {
	store := seedStore()
	gw := &fakeGateway{captureErr: fmt.Errorf("%w: intent int_1", gateway.ErrDeclined)}
	svc := newTestService(store, gw, &fakeNotifier{})
	placed := placeTestOrder(t, svc)
	owner := actor.Actor{ID: buyerID, Role: actor.RoleUser}

	if _, err := svc.BeginExternalPayment(context.Background(), placed.ID, owner); err != nil {
		t.Fatalf("begin payment failed: %v", err)
	}

	_, err := svc.FinalizePayment(context.Background(), placed.ID, "", owner)
	if !errors.Is(err, gateway.ErrDeclined) {
		t.Fatalf("expected declined error, got %v", err)
	}

	stored := store.orders[placed.ID]
	if stored.Status != order.StatusPending {
		t.Errorf("expected declined order to stay pending, got %s", stored.Status)
	}
	if stored.PaymentStatus != order.PaymentStatusFailed {
		t.Errorf("expected payment status failed, got %s", stored.PaymentStatus)
	}
	// Reserved stock stays reserved; a retry with another method may succeed.
	if store.stock[101] != 3 {
		t.Errorf("expected stock to remain reserved after decline, got %d", store.stock[101])
	}
}

func TestFinalizePaymentGatewayUnavailable(t *testing.T) {
	store := seedStore()
	gw := &fakeGateway{captureErr: fmt.Errorf("%w: capture returned 503", gateway.ErrUnavailable)}
	svc := newTestService(store, gw, &fakeNotifier{})
	placed := placeTestOrder(t, svc)
	owner := actor.Actor{ID: buyerID, Role: actor.RoleUser}

	if _, err := svc.BeginExternalPayment(context.Background(), placed.ID, owner); err != nil {
		t.Fatalf("begin payment failed: %v", err)
	}

	_, err := svc.FinalizePayment(context.Background(), placed.ID, "", owner)
	if !errors.Is(err, gateway.ErrUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}

	// Unreachable is not declined: the payment state must be untouched so
	// the client can simply retry.
	stored := store.orders[placed.ID]
	if stored.PaymentStatus != order.PaymentStatusPending {
		t.Errorf("expected payment status pending after outage, got %s", stored.PaymentStatus)
	}
}

func TestFinalizePaymentWithoutIntent(t *testing.T) {
	store := seedStore()
	svc := newTestService(store, &fakeGateway{}, &fakeNotifier{})
	placed := placeTestOrder(t, svc)
	owner := actor.Actor{ID: buyerID, Role: actor.RoleUser}

	_, err := svc.FinalizePayment(context.Background(), placed.ID, "", owner)
	if !errors.Is(err, ErrNoPaymentIntent) {
		t.Fatalf("expected no-intent error, got %v", err)
	}
}

func TestCancelOrderRestoresStock(t *testing.T) {
	store := seedStore()
	svc := newTestService(store, &fakeGateway{}, &fakeNotifier{})
	placed := placeTestOrder(t, svc)
	owner := actor.Actor{ID: buyerID, Role: actor.RoleUser}

	cancelled, err := svc.CancelOrder(context.Background(), placed.ID, owner)
	if err != nil {
		t.Fatalf("expected cancellation to succeed, got error: %v", err)
	}
	if cancelled.Status != order.StatusCancelled {
		t.Errorf("expected status cancelled, got %s", cancelled.Status)
	}

	if store.stock[101] != 5 || store.stock[102] != 3 {
		t.Errorf("expected stock restored to 5/3, got %d/%d", store.stock[101], store.stock[102])
	}
}

func TestCancelOrderAfterShippingRejected(t *testing.T) {
	store := seedStore()
	svc := newTestService(store, &fakeGateway{}, &fakeNotifier{})
	placed := placeTestOrder(t, svc)
	admin := actor.Actor{ID: 1, Role: actor.RoleAdmin}
	owner := actor.Actor{ID: buyerID, Role: actor.RoleUser}

	for _, next := range []order.Status{order.StatusConfirmed, order.StatusProcessing, order.StatusShipped} {
		if _, err := svc.UpdateOrderStatus(context.Background(), placed.ID, next, admin); err != nil {
			t.Fatalf("transition to %s failed: %v", next, err)
		}
	}

	_, err := svc.CancelOrder(context.Background(), placed.ID, owner)
	if !errors.Is(err, order.ErrInvalidTransition) {
		t.Fatalf("expected shipped order cancellation to be rejected, got %v", err)
	}
	if store.stock[101] != 3 {
		t.Errorf("expected stock untouched by rejected cancellation, got %d", store.stock[101])
	}
}

func TestCancelOrderForeignUserForbidden(t *testing.T) {
	store := seedStore()
	svc := newTestService(store, &fakeGateway{}, &fakeNotifier{})
	placed := placeTestOrder(t, svc)

	_, err := svc.CancelOrder(context.Background(), placed.ID, actor.Actor{ID: 999, Role: actor.RoleUser})
	if !errors.Is(err, actor.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestUpdateOrderStatusForwardOnly(t *testing.T) {
	store := seedStore()
	svc := newTestService(store, &fakeGateway{}, &fakeNotifier{})
	placed := placeTestOrder(t, svc)
	admin := actor.Actor{ID: 1, Role: actor.RoleAdmin}

	if _, err := svc.UpdateOrderStatus(
		context.Background(), placed.ID, order.StatusProcessing, admin,
	); !errors.Is(err, order.ErrInvalidTransition) {
		t.Fatalf("expected skipping a step to be rejected, got %v", err)
	}

	updated, err := svc.UpdateOrderStatus(context.Background(), placed.ID, order.StatusConfirmed, admin)
	if err != nil {
		t.Fatalf("expected pending -> confirmed to succeed, got error: %v", err)
	}
	if updated.Status != order.StatusConfirmed {
		t.Errorf("expected status confirmed, got %s", updated.Status)
	}

	if _, err := svc.UpdateOrderStatus(
		context.Background(), placed.ID, order.StatusPending, admin,
	); !errors.Is(err, order.ErrInvalidTransition) {
		t.Fatalf("expected backward transition to be rejected, got %v", err)
	}

	if _, err := svc.UpdateOrderStatus(
		context.Background(), placed.ID, order.StatusConfirmed, actor.Actor{ID: buyerID, Role: actor.RoleUser},
	); !errors.Is(err, actor.ErrForbidden) {
		t.Fatalf("expected plain users to be forbidden, got %v", err)
	}
}

func TestUpdateOrderStatusStampsShippedAt(t *testing.T) {
	store := seedStore()
	svc := newTestService(store, &fakeGateway{}, &fakeNotifier{})
	placed := placeTestOrder(t, svc)
	admin := actor.Actor{ID: 1, Role: actor.RoleAdmin}

	for _, next := range []order.Status{order.StatusConfirmed, order.StatusProcessing} {
		if _, err := svc.UpdateOrderStatus(context.Background(), placed.ID, next, admin); err != nil {
			t.Fatalf("transition to %s failed: %v", next, err)
		}
	}

	shipped, err := svc.UpdateOrderStatus(context.Background(), placed.ID, order.StatusShipped, admin)
	if err != nil {
		t.Fatalf("transition to shipped failed: %v", err)
	}
	if shipped.ShippedAt == nil {
		t.Fatal("expected ShippedAt to be stamped on shipping")
	}
	if shipped.DeliveredAt != nil {
		t.Fatal("expected DeliveredAt to remain unset before delivery")
	}

	delivered, err := svc.UpdateOrderStatus(context.Background(), placed.ID, order.StatusDelivered, admin)
	if err != nil {
		t.Fatalf("transition to delivered failed: %v", err)
	}
	if delivered.DeliveredAt == nil {
		t.Fatal("expected DeliveredAt to be stamped on delivery")
	}
}

func TestRefundOrder(t *testing.T) {
	store := seedStore()
	gw := &fakeGateway{txnID: "txn_1"}
	svc := newTestService(store, gw, &fakeNotifier{})
	placed := placeTestOrder(t, svc)
	owner := actor.Actor{ID: buyerID, Role: actor.RoleUser}
	admin := actor.Actor{ID: 1, Role: actor.RoleAdmin}

	if _, err := svc.RefundOrder(context.Background(), placed.ID, owner); !errors.Is(err, actor.ErrForbidden) {
		t.Fatalf("expected refund to be admin-only, got %v", err)
	}
	if _, err := svc.RefundOrder(context.Background(), placed.ID, admin); !errors.Is(err, ErrNotPaid) {
		t.Fatalf("expected unpaid order refund to be rejected, got %v", err)
	}

	if _, err := svc.BeginExternalPayment(context.Background(), placed.ID, owner); err != nil {
		t.Fatalf("begin payment failed: %v", err)
	}
	if _, err := svc.FinalizePayment(context.Background(), placed.ID, "", owner); err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	refunded, err := svc.RefundOrder(context.Background(), placed.ID, admin)
	if err != nil {
		t.Fatalf("expected refund to succeed, got error: %v", err)
	}
	if refunded.PaymentStatus != order.PaymentStatusRefunded {
		t.Errorf("expected payment status refunded, got %s", refunded.PaymentStatus)
	}
	if gw.refundCalls != 1 {
		t.Errorf("expected one gateway refund call, got %d", gw.refundCalls)
	}
}

func TestListOrdersScopesNonAdminsToTheirOwn(t *testing.T) {
	store := seedStore()
	svc := newTestService(store, &fakeGateway{}, &fakeNotifier{})
	placed := placeTestOrder(t, svc)

	// A different user asking for everyone's orders still only sees theirs.
	orders, err := svc.ListOrders(
		context.Background(),
		order.QueryOrdersModel{UserIds: []int64{buyerID}},
		actor.Actor{ID: 999, Role: actor.RoleUser},
	)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("expected foreign user to see no orders, got %d", len(orders))
	}

	orders, err = svc.ListOrders(
		context.Background(),
		order.QueryOrdersModel{},
		actor.Actor{ID: buyerID, Role: actor.RoleUser},
	)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != placed.ID {
		t.Fatalf("expected the owner to see exactly their order")
	}
	if len(orders[0].Lines) != 2 {
		t.Errorf("expected lines to be attached, got %d", len(orders[0].Lines))
	}
}

func TestGetOrderVendorAccess(t *testing.T) {
	store := seedStore()
	svc := newTestService(store, &fakeGateway{}, &fakeNotifier{})
	placed := placeTestOrder(t, svc)

	// Vendor 21 has a line on the order, vendor 23 does not.
	if _, err := svc.GetOrder(
		context.Background(), placed.ID, actor.Actor{ID: 21, Role: actor.RoleVendor},
	); err != nil {
		t.Errorf("expected vendor with a line to read the order, got %v", err)
	}
	if _, err := svc.GetOrder(
		context.Background(), placed.ID, actor.Actor{ID: 23, Role: actor.RoleVendor},
	); !errors.Is(err, actor.ErrForbidden) {
		t.Errorf("expected unrelated vendor to be forbidden, got %v", err)
	}
	if _, err := svc.GetOrder(
		context.Background(), placed.ID, actor.Actor{ID: 999, Role: actor.RoleUser},
	); !errors.Is(err, actor.ErrForbidden) {
		t.Errorf("expected unrelated user to be forbidden, got %v", err)
	}
}

func TestFinalizePaymentAfterCancelRejected(t *testing.T) {
	store := seedStore()
	gw := &fakeGateway{txnID: "txn_1"}
	svc := newTestService(store, gw, &fakeNotifier{})
	placed := placeTestOrder(t, svc)
	owner := actor.Actor{ID: buyerID, Role: actor.RoleUser}

	if _, err := svc.BeginExternalPayment(context.Background(), placed.ID, owner); err != nil {
		t.Fatalf("begin payment failed: %v", err)
	}
	if _, err := svc.CancelOrder(context.Background(), placed.ID, owner); err != nil {
		t.Fatalf("cancellation failed: %v", err)
	}

	// The approval redirect comes back after the order was cancelled and
	// its stock released. The capture must not resurrect the order.
	_, err := svc.FinalizePayment(context.Background(), placed.ID, "", owner)
	if !errors.Is(err, order.ErrInvalidTransition) {
		t.Fatalf("expected capture after cancel to be rejected, got %v", err)
	}

	stored := store.orders[placed.ID]
	if stored.Status != order.StatusCancelled {
		t.Errorf("expected order to stay cancelled, got %s", stored.Status)
	}
	if stored.PaymentStatus != order.PaymentStatusPending {
		t.Errorf("expected payment status untouched, got %s", stored.PaymentStatus)
	}
	if gw.captureCalls != 0 {
		t.Errorf("expected no gateway capture call, got %d", gw.captureCalls)
	}
	if store.stock[101] != 5 || store.stock[102] != 3 {
		t.Errorf("expected released stock to stay released, got %d/%d",
			store.stock[101], store.stock[102])
	}
}

func TestBeginExternalPaymentAfterCancelRejected(t *testing.T) {
	store := seedStore()
	gw := &fakeGateway{}
	svc := newTestService(store, gw, &fakeNotifier{})
	placed := placeTestOrder(t, svc)
	owner := actor.Actor{ID: buyerID, Role: actor.RoleUser}

	if _, err := svc.CancelOrder(context.Background(), placed.ID, owner); err != nil {
		t.Fatalf("cancellation failed: %v", err)
	}

	_, err := svc.BeginExternalPayment(context.Background(), placed.ID, owner)
	if !errors.Is(err, order.ErrInvalidTransition) {
		t.Fatalf("expected intent creation for a cancelled order to be rejected, got %v", err)
	}
	if gw.intentCalls != 0 {
		t.Errorf("expected no gateway intent call, got %d", gw.intentCalls)
	}
}

func TestBeginExternalPaymentCashOnDelivery(t *testing.T) {
	store := seedStore()
	svc := newTestService(store, &fakeGateway{}, &fakeNotifier{})
	owner := actor.Actor{ID: buyerID, Role: actor.RoleUser}

	placed, err := svc.PlaceOrder(context.Background(), buyerID, addressID, payment.MethodCashOnDelivery)
	if err != nil {
		t.Fatalf("placement failed: %v", err)
	}

	if _, err := svc.BeginExternalPayment(
		context.Background(), placed.ID, owner,
	); !errors.Is(err, ErrWrongPaymentMethod) {
		t.Fatalf("expected cash-on-delivery order to be rejected by the gateway flow, got %v", err)
	}
}

func TestFinalizePaymentForeignIntentRejected(t *testing.T) {
	store := seedStore()
	gw := &fakeGateway{txnID: "txn_1"}
	svc := newTestService(store, gw, &fakeNotifier{})
	placed := placeTestOrder(t, svc)
	owner := actor.Actor{ID: buyerID, Role: actor.RoleUser}

	if _, err := svc.BeginExternalPayment(context.Background(), placed.ID, owner); err != nil {
		t.Fatalf("begin payment failed: %v", err)
	}

	// An approval token from some other intent must not mark this order
	// paid with that intent's transaction.
	_, err := svc.FinalizePayment(context.Background(), placed.ID, "int_other", owner)
	if !errors.Is(err, ErrIntentMismatch) {
		t.Fatalf("expected mismatched approval token to be rejected, got %v", err)
	}
	if gw.captureCalls != 0 {
		t.Errorf("expected no gateway capture call, got %d", gw.captureCalls)
	}
	if store.orders[placed.ID].PaymentStatus != order.PaymentStatusPending {
		t.Errorf("expected payment status untouched, got %s", store.orders[placed.ID].PaymentStatus)
	}
}
