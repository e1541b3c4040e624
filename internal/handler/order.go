package handler

import (
	"bytes"
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/takeaway/internal/domain/order"
	"github.com/xenking/takeaway/internal/receipt"
)

// ListOrders returns orders matching the query filter. The dashboard polls it.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	f, err := order.ParseFilter(queryParams(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	orders, err := h.orders.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Pedidos recuperados con éxito", func(e *jx.Encoder) {
		encodeOrders(e, orders)
	})
}

// GetOrder returns one order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), idParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Pedido recuperado con éxito", func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

// CreateOrder records a fully specified order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var in order.CreateInput
	if err := decodeBody(r, func(d *jx.Decoder) (err error) {
		in, err = decodeOrderCreate(d)
		return err
	}); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Pedido creado con éxito", func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

// UpdateOrder applies a staff update. Status changes follow the lifecycle.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	var p order.Patch
	if err := decodeBody(r, func(d *jx.Decoder) (err error) {
		p, err = decodeOrderPatch(d)
		return err
	}); err != nil {
		writeError(w, r, err)
		return
	}
	if id := idParam(r); id != "" {
		p.ID = id
	}
	o, err := h.orders.Update(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Pedido actualizado con éxito", func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

// CancelOrder lets a customer withdraw an order the kitchen has not started.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Cancel(r.Context(), idParam(r), order.ActorCustomer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Pedido cancelado con éxito", func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

// DeleteOrder removes an order and returns it.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Delete(r.Context(), idParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Pedido eliminado con éxito", func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

// OrderReceipt renders the order as a plain-text receipt.
func (h *Handler) OrderReceipt(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), idParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := receipt.Write(&buf, h.cfg.Restaurant, o); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
