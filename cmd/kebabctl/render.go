package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/olekukonko/tablewriter"

	"github.com/xenking/takeaway/internal/domain/menu"
	"github.com/xenking/takeaway/internal/domain/order"
)

func yesNo(b bool) string {
	if b {
		return "sí"
	}
	return "no"
}

func renderMenu(w io.Writer, items []menu.Item) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Nombre", "Precio", "Dto.", "Agotado")
	for _, it := range items {
		discount := ""
		if it.Discount > 0 {
			discount = strconv.Itoa(it.Discount) + "%"
		}
		if err := table.Append(it.ID, it.Name, it.Price.StringFixed(2), discount, yesNo(it.IsOutOfStock)); err != nil {
			return errors.Wrap(err, "append menu row")
		}
	}
	if err := table.Render(); err != nil {
		return errors.Wrap(err, "render menu")
	}
	return nil
}

func orderRows(table *tablewriter.Table, orders []order.Order) error {
	for _, o := range orders {
		if err := table.Append(
			o.ID,
			string(o.Status),
			o.CustomerName,
			order.ItemsSummary(o.Items),
			order.FormatTotal(o.Total),
			yesNo(o.Paid),
			o.LastStatusChangedAt.Local().Format("02/01 15:04"),
		); err != nil {
			return errors.Wrap(err, "append order row")
		}
	}
	return nil
}

var orderHeader = []any{"ID", "Estado", "Cliente", "Productos", "Total", "Pagado", "Cambio"}

func renderOrders(w io.Writer, orders []order.Order) error {
	table := tablewriter.NewWriter(w)
	table.Header(orderHeader...)
	if err := orderRows(table, orders); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return errors.Wrap(err, "render orders")
	}
	return nil
}

func renderReport(w io.Writer, r *order.Report) error {
	span := "todo"
	switch {
	case r.From != nil && r.To != nil:
		span = r.From.Local().Format("02/01/2006 15:04") + " - " + r.To.Local().Format("02/01/2006 15:04")
	case r.From != nil:
		span = "desde " + r.From.Local().Format("02/01/2006 15:04")
	case r.To != nil:
		span = "hasta " + r.To.Local().Format("02/01/2006 15:04")
	}
	fmt.Fprintf(w, "Estado: %s\nPeriodo: %s\n\n", r.Status, span)

	table := tablewriter.NewWriter(w)
	table.Header(orderHeader...)
	if err := orderRows(table, r.Orders); err != nil {
		return err
	}
	table.Footer("", "", "", strconv.Itoa(r.Count)+" pedidos", order.FormatTotal(r.Revenue)+" €", "", "")
	if err := table.Render(); err != nil {
		return errors.Wrap(err, "render report")
	}
	return nil
}
