package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/checkout/internal/service/models/actor"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/payment"
	beginpayment "github.com/corray333/backend-labs/checkout/internal/transport/http/begin_payment"
	cancelorder "github.com/corray333/backend-labs/checkout/internal/transport/http/cancel_order"
	capturepayment "github.com/corray333/backend-labs/checkout/internal/transport/http/capture_payment"
	getorder "github.com/corray333/backend-labs/checkout/internal/transport/http/get_order"
	listorders "github.com/corray333/backend-labs/checkout/internal/transport/http/list_orders"
	placeorder "github.com/corray333/backend-labs/checkout/internal/transport/http/place_order"
	refundorder "github.com/corray333/backend-labs/checkout/internal/transport/http/refund_order"
	updatestatus "github.com/corray333/backend-labs/checkout/internal/transport/http/update_status"
	"github.com/corray333/backend-labs/checkout/pkg/http/middleware/auth"
	"github.com/corray333/backend-labs/checkout/pkg/http/middleware/trace"
	"github.com/corray333/backend-labs/checkout/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
)

type service interface {
	PlaceOrder(ctx context.Context, userID int64, shippingAddressID int64, method payment.Method) (order.Order, error)
	BeginExternalPayment(ctx context.Context, orderID int64, act actor.Actor) (*payment.Intent, error)
	FinalizePayment(ctx context.Context, orderID int64, approvalToken string, act actor.Actor) (order.Order, error)
	RefundOrder(ctx context.Context, orderID int64, act actor.Actor) (order.Order, error)
	CancelOrder(ctx context.Context, orderID int64, act actor.Actor) (order.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, newStatus order.Status, act actor.Actor) (order.Order, error)
	GetOrder(ctx context.Context, orderID int64, act actor.Actor) (order.Order, error)
	ListOrders(ctx context.Context, filter order.QueryOrdersModel, act actor.Actor) ([]order.Order, error)
}

type HTTPTransport struct {
	server  *http.Server
	router  *chi.Mux
	service service
}

func NewHTTPTransport(service service) *HTTPTransport {
	router := newRouter()
	server := newServer(router)
	return &HTTPTransport{
		server:  server,
		router:  router,
		service: service,
	}
}

func (h *HTTPTransport) Run() error {
	return h.server.ListenAndServe()
}

func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// RegisterRoutes registers the routes for the HTTPTransport.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Route("/api/orders", func(r chi.Router) {
		r.Use(auth.NewAuthMiddleware())

		r.Post("/", h.placeOrder)
		r.Get("/", h.listOrders)
		r.Post("/checkout/gateway", h.beginPayment)
		r.Post("/checkout/gateway/capture", h.capturePayment)
		r.Get("/{id}", h.getOrder)
		r.Put("/{id}/status", h.updateStatus)
		r.Put("/{id}/cancel", h.cancelOrder)
		r.Post("/{id}/refund", h.refundOrder)
	})
}

func (h *HTTPTransport) placeOrder(w http.ResponseWriter, r *http.Request) {
	placeorder.PlaceOrder(w, r, h.service)
}

func (h *HTTPTransport) listOrders(w http.ResponseWriter, r *http.Request) {
	listorders.ListOrders(w, r, h.service)
}

func (h *HTTPTransport) beginPayment(w http.ResponseWriter, r *http.Request) {
	beginpayment.BeginPayment(w, r, h.service)
}

func (h *HTTPTransport) capturePayment(w http.ResponseWriter, r *http.Request) {
	capturepayment.CapturePayment(w, r, h.service)
}

func (h *HTTPTransport) getOrder(w http.ResponseWriter, r *http.Request) {
	getorder.GetOrder(w, r, h.service)
}

func (h *HTTPTransport) updateStatus(w http.ResponseWriter, r *http.Request) {
	updatestatus.UpdateStatus(w, r, h.service)
}

func (h *HTTPTransport) cancelOrder(w http.ResponseWriter, r *http.Request) {
	cancelorder.CancelOrder(w, r, h.service)
}

func (h *HTTPTransport) refundOrder(w http.ResponseWriter, r *http.Request) {
	refundorder.RefundOrder(w, r, h.service)
}

func newRouter() *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(trace.NewTraceMiddleware)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))

	allowedOrigins := viper.GetStringSlice("server.http.cors.allowed_origins")
	allowedMethods := viper.GetStringSlice("server.http.cors.allowed_methods")
	allowedHeaders := viper.GetStringSlice("server.http.cors.allowed_headers")
	exposedHeaders := viper.GetStringSlice("server.http.cors.exposed_headers")
	allowCredentials := viper.GetBool("server.http.cors.allow_credentials")
	maxAge := viper.GetInt("server.http.cors.max_age")

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})

	router.Use(c.Handler)

	return router
}

func newServer(router http.Handler) *http.Server {
	return &http.Server{
		Addr:    "0.0.0.0:" + viper.GetString("server.http.port"),
		Handler: router,
	}
}
