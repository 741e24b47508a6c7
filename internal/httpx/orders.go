package httpx

import (
	"net/http"

	"clarte-be/internal/auth"
	"clarte-be/internal/order"
	"clarte-be/internal/validation"

	"github.com/go-chi/chi/v5"
)

type OrdersHandler struct {
	svc order.Service
}

func NewOrdersHandler(svc order.Service) *OrdersHandler {
	return &OrdersHandler{svc: svc}
}

// Create accepts guest and authenticated checkouts. Authenticated buyers
// may omit contact fields.
func (h *OrdersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in order.CreateInput
	if err := DecodeJSON(w, r, &in); err != nil {
		Error(w, r, err)
		return
	}

	if id, ok := auth.FromContext(r.Context()); ok {
		uid := id.UserID
		in.UserID = &uid
		if in.CustomerEmail == "" {
			in.CustomerEmail = id.Email
		}
	}

	o, err := h.svc.Create(r.Context(), in)
	if err != nil {
		Error(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, order.ToDetail(o))
}

func (h *OrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	orders, err := h.svc.ListForUser(r.Context(), id.UserID)
	if err != nil {
		Error(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// Get serves the owner, a guest proving the order email through ?email=,
// or an admin.
func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "reference")

	var (
		o   *order.Order
		err error
	)
	if id, ok := auth.FromContext(r.Context()); ok && id.IsAdmin() {
		o, err = h.svc.Get(r.Context(), ref)
	} else {
		o, err = h.svc.GetForBuyer(r.Context(), ref, auth.UserID(r.Context()), r.URL.Query().Get("email"))
	}
	if err != nil {
		Error(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, order.ToDetail(o))
}

func (h *OrdersHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	o, err := h.svc.Cancel(r.Context(), chi.URLParam(r, "reference"), id.UserID)
	if err != nil {
		Error(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, order.ToDetail(o))
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}

	next, err := order.ParseStatus(req.Status)
	if err != nil {
		verr := &validation.Error{}
		verr.Add("status", "must be one of pending, paid, shipped, delivered, cancelled")
		Error(w, r, verr)
		return
	}

	o, err := h.svc.UpdateStatus(r.Context(), chi.URLParam(r, "reference"), next)
	if err != nil {
		Error(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, order.ToDetail(o))
}
