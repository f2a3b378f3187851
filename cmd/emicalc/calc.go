package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mcclellann/emiTracker/pkg/amortization"
	"github.com/mcclellann/emiTracker/pkg/models"
	"github.com/mcclellann/emiTracker/pkg/report"
)

type loanFlags struct {
	principal float64
	rate      float64
	tenure    int
	emi       float64
}

func (f *loanFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.principal, "loan", 0, "loan amount")
	cmd.Flags().Float64Var(&f.rate, "rate", 0, "annual interest rate in percent")
	cmd.Flags().IntVar(&f.tenure, "tenure", 0, "tenure in months")
	cmd.Flags().Float64Var(&f.emi, "emi", 0, "monthly EMI (default: derived)")
	cmd.MarkFlagRequired("loan")
	cmd.MarkFlagRequired("rate")
	cmd.MarkFlagRequired("tenure")
}

func (f *loanFlags) params() models.LoanParameters {
	p := models.LoanParameters{Principal: f.principal, AnnualRate: f.rate, TenureMonths: f.tenure, EMI: f.emi}
	if p.EMI <= 0 {
		p.EMI = float64(amortization.EMI(p.Principal, p.AnnualRate, p.TenureMonths))
	}
	return p
}

func newEMICmd() *cobra.Command {
	var f loanFlags
	cmd := &cobra.Command{
		Use:   "emi",
		Short: "Compute the monthly EMI of a loan",
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := amortization.Generate(f.params(), nil, nil)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			p := f.params()
			fmt.Fprintf(out, "Monthly EMI:    %s\n", report.Money(p.EMI))
			fmt.Fprintf(out, "Total interest: %s\n", report.Money(sched.TotalInterest))
			fmt.Fprintf(out, "Total payable:  %s\n", report.Money(sched.TotalPayable))
			fmt.Fprintf(out, "Tenure:         %s\n", report.FormatTenure(p.TenureMonths))
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newScheduleCmd() *cobra.Command {
	var (
		f     loanFlags
		years bool
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the amortization schedule of a loan",
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := amortization.Generate(f.params(), nil, nil)
			if err != nil {
				return err
			}
			if years {
				printYears(cmd.OutOrStdout(), amortization.AllYears(sched.Rows, nil, nil))
				return nil
			}
			printRows(cmd.OutOrStdout(), sched.Rows, f.rate)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&years, "years", false, "print one line per year instead of per month")
	return cmd
}

func printRows(w io.Writer, rows []models.ScheduleRow, globalRate float64) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Month\tOpening\tRate\tInterest\tPrincipal\tEMI\tPrepayment\tCharges\tClosing\tPaid\t")
	for _, row := range rows {
		rate := row.InterestRate
		if rate <= 0 {
			rate = globalRate
		}
		paid := ""
		if row.Paid {
			paid = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			row.Month,
			report.FormatIndian(row.OpeningBalance),
			strconv.FormatFloat(rate, 'f', -1, 64),
			report.FormatIndian(row.InterestAmount),
			report.FormatIndian(row.PrincipalAmount),
			report.FormatIndian(row.EMIAmount),
			report.FormatIndian(row.Prepayment),
			report.FormatIndian(row.Charges),
			report.FormatIndian(row.ClosingBalance),
			paid,
		)
	}
	tw.Flush()
}

func printYears(w io.Writer, years []models.YearSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Year\tMonths\tPrincipal\tInterest\tPrepayments\tCharges\tClosing\t")
	for _, y := range years {
		fmt.Fprintf(tw, "%d\t%d-%d\t%s\t%s\t%s\t%s\t%s\t\n",
			y.Year, y.StartMonth, y.EndMonth,
			report.FormatIndian(y.Principal),
			report.FormatIndian(y.Interest),
			report.FormatIndian(y.Prepayments),
			report.FormatIndian(y.Charges),
			report.FormatIndian(y.ClosingBalance),
		)
	}
	tw.Flush()
}
