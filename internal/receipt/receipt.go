// Package receipt renders orders as plain-text receipts.
package receipt

import (
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/xenking/takeaway/internal/domain/order"
)

// Restaurant is printed in the receipt heading.
type Restaurant struct {
	Name    string
	Address string
	Phone   string
}

// Write renders o to w.
func Write(w io.Writer, r Restaurant, o *order.Order) error {
	if r.Name != "" {
		fmt.Fprintln(w, r.Name)
	}
	if r.Address != "" {
		fmt.Fprintln(w, r.Address)
	}
	if r.Phone != "" {
		fmt.Fprintf(w, "Tel. %s\n", r.Phone)
	}
	fmt.Fprintf(w, "\nPedido %s\n", o.ID)
	fmt.Fprintf(w, "Fecha: %s\n", o.CreatedAt.Format("02/01/2006 15:04"))
	if o.CustomerName != "" {
		fmt.Fprintf(w, "Cliente: %s\n", o.CustomerName)
	}
	if o.CustomerPhone != "" {
		fmt.Fprintf(w, "Teléfono: %s\n", o.CustomerPhone)
	}
	if o.PickupDateTime != "" {
		fmt.Fprintf(w, "Recogida: %s\n", o.PickupDateTime)
	}
	fmt.Fprintln(w)

	table := tablewriter.NewWriter(w)
	table.Header("Producto", "Cant.", "Precio", "Dto.", "Importe")
	amounts := lineAmounts(o.Items, o.Total)
	for i, it := range o.Items {
		discount := ""
		if it.Discount > 0 {
			discount = strconv.Itoa(it.Discount) + "%"
		}
		if err := table.Append(
			it.Name,
			strconv.Itoa(it.Quantity),
			it.Price.StringFixed(2),
			discount,
			amounts[i].StringFixed(2),
		); err != nil {
			return errors.Wrap(err, "append receipt line")
		}
	}
	table.Footer("", "", "", "Total", order.FormatTotal(o.Total)+" €")
	if err := table.Render(); err != nil {
		return errors.Wrap(err, "render receipt")
	}

	state := "PENDIENTE DE PAGO"
	if o.Paid {
		state = "PAGADO"
	}
	fmt.Fprintf(w, "\n%s\n", state)
	if o.Notation != "" {
		fmt.Fprintf(w, "Notas: %s\n", o.Notation)
	}
	fmt.Fprintln(w, "\nGracias por su compra. ¡Esperamos verle de nuevo!")
	return nil
}

// lineAmounts rounds each line to cents so that the lines add up to total.
// Lines are floored and the leftover cents go to the lines with the largest
// fractions. A total that no such split reaches falls back to plain rounding.
func lineAmounts(items []order.Item, total decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(items))
	fracs := make([]decimal.Decimal, len(items))
	sum := decimal.Zero
	for i, it := range items {
		cents := it.LineTotal().Shift(2)
		out[i] = cents.Floor()
		fracs[i] = cents.Sub(out[i])
		sum = sum.Add(out[i])
	}

	left := total.Round(2).Shift(2).Sub(sum).IntPart()
	if left < 0 || left > int64(len(items)) {
		for i, it := range items {
			out[i] = it.LineTotal().Round(2)
		}
		return out
	}

	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int { return fracs[b].Cmp(fracs[a]) })
	for _, i := range idx[:left] {
		out[i] = out[i].Add(decimal.NewFromInt(1))
	}
	for i := range out {
		out[i] = out[i].Shift(-2)
	}
	return out
}
