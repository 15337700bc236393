package listorders

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/corray333/backend-labs/checkout/internal/service/models/actor"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/httperr"
	"github.com/corray333/backend-labs/checkout/pkg/http/middleware/auth"
	"github.com/gorilla/schema"
)

// service is an interface for the service layer.
type service interface {
	ListOrders(ctx context.Context, filter order.QueryOrdersModel, act actor.Actor) ([]order.Order, error)
}

type queryOrdersRequest struct {
	Ids     []int64 `schema:"ids,omitempty"`
	UserIds []int64 `schema:"userIds,omitempty"`
	Limit   int     `schema:"limit,omitempty"`
	Offset  int     `schema:"offset,omitempty"`
}

func (q *queryOrdersRequest) ToModel() order.QueryOrdersModel {
	return order.QueryOrdersModel{
		Ids:     q.Ids,
		UserIds: q.UserIds,
		Limit:   q.Limit,
		Offset:  q.Offset,
	}
}

// ListOrders handles listing orders. Non-admin callers only ever see their
// own orders; the service enforces the scoping.
func ListOrders(w http.ResponseWriter, r *http.Request, service service) {
	act, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)

		return
	}

	decoder := schema.NewDecoder()
	query := &queryOrdersRequest{}
	if err := decoder.Decode(query, r.URL.Query()); err != nil {
		httperr.WriteStatus(w, http.StatusBadRequest, err)

		return
	}

	orders, err := service.ListOrders(r.Context(), query.ToModel(), act)
	if err != nil {
		httperr.Write(w, r, err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(orders); err != nil {
		httperr.Write(w, r, err)
	}
}
