package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hisab/internal/core"
	"hisab/internal/ledger"
	"hisab/internal/services"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Monthly snapshot with carry-over and recent activity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runReport(cmd, func(e *env, month core.Date) (any, func(io.Writer), error) {
			d, err := e.dashboard.Dashboard(cmd.Context(), month)
			return d, func(w io.Writer) { printDashboard(w, d) }, err
		})
	},
}

var balancesCmd = &cobra.Command{
	Use:   "balances",
	Short: "Cumulative payable per renter and family member",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runReport(cmd, func(e *env, month core.Date) (any, func(io.Writer), error) {
			b, err := e.dashboard.Balances(cmd.Context(), month)
			return b, func(w io.Writer) { printBalances(w, b) }, err
		})
	},
}

var allTimeCmd = &cobra.Command{
	Use:   "all-time",
	Short: "Building-wide totals from initiation through the selected month",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runReport(cmd, func(e *env, month core.Date) (any, func(io.Writer), error) {
			a, err := e.dashboard.AllTime(cmd.Context(), month)
			return a, func(w io.Writer) { printAllTime(w, a) }, err
		})
	},
}

var rentStatusCmd = &cobra.Command{
	Use:   "rent-status",
	Short: "Per-room rent due, paid and payable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runReport(cmd, func(e *env, month core.Date) (any, func(io.Writer), error) {
			v, err := e.dashboard.RentStatus(cmd.Context(), month)
			return v, func(w io.Writer) { printRentStatus(w, v) }, err
		})
	},
}

type reportFunc func(e *env, month core.Date) (view any, render func(io.Writer), err error)

func runReport(cmd *cobra.Command, fn reportFunc) error {
	month, err := selectedMonth()
	if err != nil {
		return err
	}
	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	view, render, err := fn(e, month)
	if err != nil {
		return err
	}
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	render(os.Stdout)
	return nil
}

func amount(a float64) string {
	return core.FormatAmount(a)
}

func printDashboard(w io.Writer, d ledger.Dashboard) {
	s := d.Summary
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Month\t%s\t\n", s.Month.MonthKey())
	fmt.Fprintf(tw, "Reference date\t%s\t\n", s.ReferenceDate)
	fmt.Fprintf(tw, "Rent collected\t%s\t\n", amount(s.Rent.Collected))
	fmt.Fprintf(tw, "Rent expected\t%s\t\n", amount(s.Rent.Expected))
	fmt.Fprintf(tw, "Rent payable\t%s\t\n", amount(s.Rent.Payable))
	fmt.Fprintf(tw, "Payouts paid\t%s\t\n", amount(s.Payouts.Paid))
	fmt.Fprintf(tw, "Payouts expected\t%s\t\n", amount(s.Payouts.Expected))
	fmt.Fprintf(tw, "Payouts payable\t%s\t\n", amount(s.Payouts.Payable))
	fmt.Fprintf(tw, "Utility bills\t%s\t\n", amount(s.Bills))
	fmt.Fprintf(tw, "Other expenses\t%s\t\n", amount(s.Expenses))
	fmt.Fprintf(tw, "Balance\t%s\t\n", amount(s.Balance))
	fmt.Fprintf(tw, "Carry-over\t%s\t\n", amount(d.CarryOver))
	fmt.Fprintf(tw, "Final balance\t%s\t\n", amount(d.FinalBalance))
	tw.Flush()

	if len(d.Activity) == 0 {
		return
	}
	fmt.Fprintln(w, "\nRecent activity")
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, a := range d.Activity {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.Date, a.Kind, a.Description, amount(a.Amount))
	}
	tw.Flush()
}

func printBalances(w io.Writer, b services.BalancesView) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Cumulative payable %s through %s\n", b.Initiation.MonthKey(), b.Selected.MonthKey())
	fmt.Fprintln(tw, "RENTER\tSTATUS\tPAYABLE")
	for _, r := range b.RenterRows {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, r.Status, amount(r.CumulativePayable))
	}
	fmt.Fprintln(tw, "\nFAMILY MEMBER\t\tPAYABLE")
	members := append([]core.FamilyMember(nil), b.FamilyMemberRows...)
	sort.SliceStable(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	for _, m := range members {
		fmt.Fprintf(tw, "%s\t\t%s\n", m.Name, amount(m.CumulativePayable))
	}
	tw.Flush()
}

func printAllTime(w io.Writer, a ledger.AllTime) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Period\t%s .. %s (%d months)\t\n", a.From.MonthKey(), a.Through.MonthKey(), a.Months)
	fmt.Fprintf(tw, "Rent collected\t%s\t\n", amount(a.Rent.Collected))
	fmt.Fprintf(tw, "Rent expected\t%s\t\n", amount(a.Rent.Expected))
	fmt.Fprintf(tw, "Rent payable\t%s\t\n", amount(a.Rent.Payable))
	fmt.Fprintf(tw, "Payouts paid\t%s\t\n", amount(a.Payouts.Paid))
	fmt.Fprintf(tw, "Payouts payable\t%s\t\n", amount(a.Payouts.Payable))
	fmt.Fprintf(tw, "Utility bills\t%s\t\n", amount(a.Bills))
	fmt.Fprintf(tw, "Other expenses\t%s\t\n", amount(a.Expenses))
	fmt.Fprintf(tw, "Total income\t%s\t\n", amount(a.TotalIncome))
	fmt.Fprintf(tw, "Total outgoing\t%s\t\n", amount(a.TotalOutgoing))
	fmt.Fprintf(tw, "Balance\t%s\t\n", amount(a.Balance))
	tw.Flush()
}

func printRentStatus(w io.Writer, v services.RentStatusView) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROOM\tOCCUPANT\tDUE\tPAID\tPAYABLE\tCUMULATIVE")
	for _, row := range v.Rows {
		room, occupant := "-", "vacant"
		if row.Room != nil {
			room = row.Room.Number
		}
		if row.Occupant != nil {
			occupant = row.Occupant.Name
		}
		printStatusRow(tw, room, occupant, row)
	}
	printStatusRow(tw, "TOTAL", "", v.Totals)
	tw.Flush()
}

func printStatusRow(w io.Writer, room, occupant string, row ledger.RoomStatus) {
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", room, occupant,
		amount(row.RentDue), amount(row.PaidThisMonth), amount(row.PayableThisMonth), amount(row.CumulativePayable))
}
