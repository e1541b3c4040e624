package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/takeaway/internal/domain/fault"
)

// Report partitions orders by status within a date range.
//
// The range applies to LastStatusChangedAt, so a report of delivered orders
// between two dates lists orders handed out in that window, whenever they
// were placed.
type Report struct {
	Status  Status
	From    *time.Time
	To      *time.Time
	Orders  []Order
	Count   int
	Revenue decimal.Decimal
}

// Report collects orders currently in status whose last status change falls
// within [from, to]. Either bound may be nil. An empty status means entregado.
func (s *Service) Report(ctx context.Context, status Status, from, to *time.Time) (*Report, error) {
	if status == "" {
		status = StatusDelivered
	}
	if !status.Valid() {
		return nil, fault.Validation("unknown order status %q", status)
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, fault.Validation("report range ends before it starts")
	}

	orders, err := s.List(ctx, Filter{Status: &status, From: from, To: to})
	if err != nil {
		return nil, err
	}

	r := &Report{
		Status:  status,
		From:    from,
		To:      to,
		Orders:  orders,
		Count:   len(orders),
		Revenue: decimal.Zero,
	}
	for _, o := range orders {
		r.Revenue = r.Revenue.Add(o.Total)
	}
	return r, nil
}
