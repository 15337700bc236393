package payment

import "github.com/corray333/backend-labs/checkout/internal/service/models/currency"

// Method is how the customer pays. The gateway method requires an
// off-site approval round trip before capture.
type Method string

const (
	MethodGateway        Method = "gateway"
	MethodCashOnDelivery Method = "cash_on_delivery"
)

func (m Method) String() string {
	return string(m)
}

// RequiresApproval reports whether the method needs the external
// create-intent / capture round trip.
func (m Method) RequiresApproval() bool {
	return m == MethodGateway
}

// Intent is the ephemeral first phase of the two-phase payment protocol.
// It is not persisted beyond the intent id recorded on the order.
type Intent struct {
	ID          string            `json:"intentId"`
	ApprovalURL string            `json:"approvalUrl"`
	AmountCents int64             `json:"amountCents"`
	Currency    currency.Currency `json:"currency"`
}

// CaptureResult is the outcome of the second phase.
type CaptureResult struct {
	TransactionID string `json:"transactionId"`
}

// RefundResult is the outcome of refunding a captured transaction.
type RefundResult struct {
	RefundID string `json:"refundId"`
}
