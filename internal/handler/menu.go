package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/takeaway/internal/domain/fault"
	"github.com/xenking/takeaway/internal/domain/menu"
)

// ListMenu returns menu items, filtered by exact match on query parameters.
func (h *Handler) ListMenu(w http.ResponseWriter, r *http.Request) {
	f, err := menu.ParseFilter(queryParams(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := h.menu.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Elementos del menú recuperados con éxito", func(e *jx.Encoder) {
		encodeMenuItems(e, items)
	})
}

// GetMenuItem returns one menu item.
func (h *Handler) GetMenuItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.menu.Get(r.Context(), idParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Elemento del menú recuperado con éxito", func(e *jx.Encoder) {
		encodeMenuItem(e, item)
	})
}

// CreateMenuItem adds an item to the menu.
func (h *Handler) CreateMenuItem(w http.ResponseWriter, r *http.Request) {
	var body menuBody
	if err := decodeBody(r, func(d *jx.Decoder) (err error) {
		body, err = decodeMenuBody(d)
		return err
	}); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := h.menu.Create(r.Context(), body.createInput())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Elemento del menú creado con éxito", func(e *jx.Encoder) {
		encodeMenuItem(e, item)
	})
}

// UpdateMenuItem changes the fields present in the body. The id comes from the
// path, the query string or the body, in that order.
func (h *Handler) UpdateMenuItem(w http.ResponseWriter, r *http.Request) {
	var body menuBody
	if err := decodeBody(r, func(d *jx.Decoder) (err error) {
		body, err = decodeMenuBody(d)
		return err
	}); err != nil {
		writeError(w, r, err)
		return
	}
	id := idParam(r)
	if id == "" {
		id = body.ID
	}
	if id == "" {
		writeError(w, r, fault.MissingField("id"))
		return
	}
	item, err := h.menu.Update(r.Context(), id, body.patch())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Elemento del menú actualizado con éxito", func(e *jx.Encoder) {
		encodeMenuItem(e, item)
	})
}

// DeleteMenuItem removes an item and returns it.
func (h *Handler) DeleteMenuItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.menu.Delete(r.Context(), idParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Elemento del menú eliminado con éxito", func(e *jx.Encoder) {
		encodeMenuItem(e, item)
	})
}
