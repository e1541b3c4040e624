package main

import (
	"github.com/spf13/cobra"

	"github.com/xenking/takeaway/internal/domain/order"
)

func ordersCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "orders",
		Aliases: []string{"pedidos"},
		Short:   "Inspect and move orders through the kitchen",
	}
	cmd.AddCommand(ordersListCmd(e), ordersAdvanceCmd(e), ordersPaidCmd(e))
	return cmd
}

func ordersListCmd(e *env) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := map[string]string{}
			if status != "" {
				params["status"] = status
			}
			f, err := order.ParseFilter(params)
			if err != nil {
				return err
			}
			orders, err := e.orders.List(cmd.Context(), f)
			if err != nil {
				return err
			}
			return renderOrders(cmd.OutOrStdout(), orders)
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "Only orders in this status")
	return cmd
}

func ordersAdvanceCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "advance <id> <status>",
		Short: "Move an order to the next status (preparando, listo, entregado, cancelado)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := order.ParseStatus(args[1])
			if err != nil {
				return err
			}
			o, err := e.orders.Transition(cmd.Context(), args[0], to, order.ActorStaff)
			if err != nil {
				return err
			}
			cmd.Printf("%s is now %s\n", o.ID, o.Status)
			return nil
		},
	}
}

func ordersPaidCmd(e *env) *cobra.Command {
	var unpaid bool
	cmd := &cobra.Command{
		Use:   "paid <id>",
		Short: "Record payment at the counter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := e.orders.MarkPaid(cmd.Context(), args[0], !unpaid)
			if err != nil {
				return err
			}
			state := "paid"
			if !o.Paid {
				state = "unpaid"
			}
			cmd.Printf("%s marked %s\n", o.ID, state)
			return nil
		},
	}
	cmd.Flags().BoolVar(&unpaid, "unpaid", false, "Clear the paid flag instead")
	return cmd
}
