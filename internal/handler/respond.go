package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/takeaway/internal/domain/fault"
	"github.com/xenking/takeaway/pkg/httpmiddleware"
)

const maxBodyBytes = 1 << 20

// writeData writes the success envelope {"message": ..., "data": ...}.
func writeData(w http.ResponseWriter, status int, message string, data func(e *jx.Encoder)) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("message")
	e.Str(message)
	if data != nil {
		e.FieldStart("data")
		data(&e)
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func statusOf(k fault.Kind) int {
	switch k {
	case fault.KindValidation:
		return http.StatusBadRequest
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindConflict:
		return http.StatusConflict
	case fault.KindPaymentRequired:
		return http.StatusPaymentRequired
	case fault.KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status code and writes {"error": ...}. Causes of
// server-side failures are logged, never sent.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := fault.KindOf(err)
	status := statusOf(kind)
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("kind", kind.String()),
			zap.Error(err),
		)
	}
	httpmiddleware.WriteError(w, status, fault.PublicMessage(err))
}

// decodeBody reads the request body and hands a decoder over it to fn.
func decodeBody(r *http.Request, fn func(d *jx.Decoder) error) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fault.Validation("read request body: %v", err)
	}
	if len(body) == 0 {
		return fault.Validation("request body is empty")
	}
	if err := fn(jx.DecodeBytes(body)); err != nil {
		return badJSON(err)
	}
	return nil
}

// queryParams flattens the query string, keeping the first value per key.
func queryParams(r *http.Request, skip ...string) map[string]string {
	out := make(map[string]string)
outer:
	for k, v := range r.URL.Query() {
		for _, s := range skip {
			if k == s {
				continue outer
			}
		}
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
