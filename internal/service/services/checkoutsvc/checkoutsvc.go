package checkoutsvc

import (
	"context"
	"errors"

	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/iaddressrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/icartrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/iinventoryrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/inotificationrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/iorderlinerepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/postgres"
	"github.com/corray333/backend-labs/checkout/internal/dal/uow"
	"github.com/corray333/backend-labs/checkout/internal/service/models/currency"
	"github.com/corray333/backend-labs/checkout/internal/service/models/payment"
	"github.com/spf13/viper"
)

var (
	ErrAddressNotOwned    = errors.New("shipping address does not belong to the user")
	ErrAlreadyPaid        = errors.New("order is already paid")
	ErrNoPaymentIntent    = errors.New("order has no payment intent to capture")
	ErrIntentMismatch     = errors.New("approval token does not match the order's payment intent")
	ErrWrongPaymentMethod = errors.New("order is not payable through the gateway")
	ErrNotPaid            = errors.New("order has no captured payment to refund")
)

// CheckoutService drives the cart-to-order pipeline: placement with stock
// reservation, the two-phase payment round trip, cancellation with stock
// release, and fulfillment status transitions.
type CheckoutService struct {
	pgClient *postgres.Client
	gateway  paymentGateway
	notifier inotificationrepo.INotificationRepository
	newUOW   func() unitOfWork
	pricing  Pricing
}

// unitOfWork is the explicit transaction boundary of the pipeline. Every
// repository obtained between Begin and Commit runs on one transaction.
type unitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	OrderRepository() iorderrepo.IOrderRepository
	OrderLineRepository() iorderlinerepo.IOrderLineRepository
	InventoryRepository() iinventoryrepo.IInventoryRepository
	CartRepository() icartrepo.ICartRepository
	AddressRepository() iaddressrepo.IAddressRepository
}

// paymentGateway is the two-phase external payment protocol.
type paymentGateway interface {
	CreateIntent(ctx context.Context, amountCents int64, cur currency.Currency) (*payment.Intent, error)
	Capture(ctx context.Context, intentID string) (*payment.CaptureResult, error)
	Refund(ctx context.Context, transactionID string, amountCents int64) (*payment.RefundResult, error)
}

// Pricing holds the order-level pricing knobs applied on top of line
// subtotals.
type Pricing struct {
	ShippingFlatCents int64
	TaxRateBasisPts   int64
}

// TaxCents computes tax on the subtotal, rounded down.
func (p Pricing) TaxCents(subtotalCents int64) int64 {
	return subtotalCents * p.TaxRateBasisPts / 10000
}

// option is a function that configures the CheckoutService.
type option func(*CheckoutService)

// MustNewCheckoutService creates a new CheckoutService.
func MustNewCheckoutService(opts ...option) *CheckoutService {
	s := &CheckoutService{
		pricing: Pricing{
			ShippingFlatCents: viper.GetInt64("checkout.shipping_flat_cents"),
			TaxRateBasisPts:   viper.GetInt64("checkout.tax_rate_basis_points"),
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil {
		s.newUOW = func() unitOfWork {
			return uow.NewUnitOfWork(s.pgClient)
		}
	}

	return s
}

// WithPostgresClient sets the Postgres client for the CheckoutService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *CheckoutService) {
		s.pgClient = pgClient
	}
}

// WithGateway sets the payment gateway adapter.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithGateway(gw paymentGateway) option {
	return func(s *CheckoutService) {
		s.gateway = gw
	}
}

// WithNotifier sets the notification sink.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithNotifier(notifier inotificationrepo.INotificationRepository) option {
	return func(s *CheckoutService) {
		s.notifier = notifier
	}
}

// WithUnitOfWorkFactory overrides how units of work are created. Tests use
// this to run the pipeline against in-memory repositories.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWorkFactory(factory func() unitOfWork) option {
	return func(s *CheckoutService) {
		s.newUOW = factory
	}
}

// WithPricing overrides the pricing knobs read from config.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPricing(p Pricing) option {
	return func(s *CheckoutService) {
		s.pricing = p
	}
}
