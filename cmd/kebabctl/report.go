package main

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/xenking/takeaway/internal/domain/order"
)

func reportCmd(e *env) *cobra.Command {
	var status, from, to string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Orders and revenue for a status within a time range",
		Long: `Lists orders whose last status change falls within [from, to] and sums
their totals. Without flags it reports every delivered order.

Times are RFC 3339 (2026-10-18T00:00:00Z) or plain dates (2026-10-18).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var st order.Status
			if status != "" {
				s, err := order.ParseStatus(status)
				if err != nil {
					return err
				}
				st = s
			}
			fromT, err := parseBound(from, false)
			if err != nil {
				return err
			}
			toT, err := parseBound(to, true)
			if err != nil {
				return err
			}

			rep, err := e.orders.Report(cmd.Context(), st, fromT, toT)
			if err != nil {
				return err
			}
			return renderReport(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "Status to report on (default entregado)")
	cmd.Flags().StringVar(&from, "from", "", "Range start")
	cmd.Flags().StringVar(&to, "to", "", "Range end")
	return cmd
}

// parseBound parses a range bound. A plain date as the upper bound covers the
// whole day.
func parseBound(s string, upper bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := order.ParseTimestamp(s); err == nil {
		return &t, nil
	}
	d, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return nil, errors.Errorf("invalid time %q: want RFC 3339 or YYYY-MM-DD", s)
	}
	if upper {
		d = d.AddDate(0, 0, 1).Add(-time.Millisecond)
	}
	return &d, nil
}
