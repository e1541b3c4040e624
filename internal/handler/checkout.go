package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/jx"

	"github.com/xenking/takeaway/internal/domain/checkout"
	"github.com/xenking/takeaway/internal/domain/fault"
	"github.com/xenking/takeaway/internal/domain/order"
)

// Checkout turns a cart into an order (cash) or a pending card payment.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkout.Request
	if err := decodeBody(r, func(d *jx.Decoder) (err error) {
		req, err = decodeCheckout(d)
		return err
	}); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.checkout.Checkout(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status, message := http.StatusCreated, "Pedido creado con éxito"
	if res.Method == checkout.MethodCard {
		status, message = http.StatusAccepted, "Pago pendiente de confirmación"
	}
	writeData(w, status, message, func(e *jx.Encoder) {
		encodeCheckoutResult(e, res)
	})
}

// ConfirmCheckout is the payment return URL. The processor appends
// ?payment_intent=<id>; repeated calls return the same order.
func (h *Handler) ConfirmCheckout(w http.ResponseWriter, r *http.Request) {
	pi := r.URL.Query().Get("payment_intent")
	if pi == "" {
		writeError(w, r, fault.MissingField("payment_intent"))
		return
	}
	o, err := h.checkout.Confirm(r.Context(), pi)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if h.cfg.ConfirmRedirect != "" && strings.Contains(r.Header.Get("Accept"), "text/html") {
		http.Redirect(w, r, strings.ReplaceAll(h.cfg.ConfirmRedirect, "{orderId}", o.ID), http.StatusSeeOther)
		return
	}
	writeData(w, http.StatusOK, "Pago confirmado", func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

// OrdersReport lists orders in a status whose last status change falls in
// [from, to], with their count and revenue.
func (h *Handler) OrdersReport(w http.ResponseWriter, r *http.Request) {
	var status order.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		s, err := order.ParseStatus(raw)
		if err != nil {
			writeError(w, r, err)
			return
		}
		status = s
	}
	from, err := parseTimeParam(r, "from")
	if err != nil {
		writeError(w, r, fault.Validation("invalid from %q", r.URL.Query().Get("from")))
		return
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		writeError(w, r, fault.Validation("invalid to %q", r.URL.Query().Get("to")))
		return
	}

	rep, err := h.orders.Report(r.Context(), status, from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Informe generado con éxito", func(e *jx.Encoder) {
		encodeReport(e, rep)
	})
}
