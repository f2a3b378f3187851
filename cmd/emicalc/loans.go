package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mcclellann/emiTracker/pkg/models"
	"github.com/mcclellann/emiTracker/pkg/registry"
	"github.com/mcclellann/emiTracker/pkg/report"
)

func newLoansCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loans",
		Short: "Manage stored loans",
	}
	cmd.AddCommand(
		newLoansListCmd(a),
		newLoansCreateCmd(a),
		newLoansUseCmd(a),
		newLoansDeleteCmd(a),
		newLoansShowCmd(a),
	)
	return cmd
}

func newLoansListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored loans",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRegistry(func(reg *registry.Registry) error {
				loans, err := reg.List()
				if err != nil {
					return err
				}
				current := reg.Current()
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "\tID\tNAME\tTYPE")
				for _, l := range loans {
					marker := ""
					if current != nil && current.ID == l.ID {
						marker = "*"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", marker, l.ID, l.Name, l.Label())
				}
				return tw.Flush()
			})
		},
	}
}

func newLoansCreateCmd(a *app) *cobra.Command {
	var (
		loanType   string
		customType string
		f          loanFlags
	)
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a loan and make it current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRegistry(func(reg *registry.Registry) error {
				loan, err := reg.Create(args[0], models.LoanType(loanType), customType)
				if err != nil {
					return err
				}
				if f.principal > 0 {
					sess := reg.Session()
					sess.SetParams(models.LoanParameters{Principal: f.principal, AnnualRate: f.rate, TenureMonths: f.tenure, EMI: f.emi})
					if err := sess.Generate(); err != nil {
						return err
					}
				}
				if err := reg.Save(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), loan.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&loanType, "type", string(models.LoanTypePersonal), "loan type (home, payday, gold, personal, education, mortgage, car, business, other)")
	cmd.Flags().StringVar(&customType, "custom-type", "", "label for loans of type other")
	cmd.Flags().Float64Var(&f.principal, "loan", 0, "loan amount; generates a schedule when set")
	cmd.Flags().Float64Var(&f.rate, "rate", 0, "annual interest rate in percent")
	cmd.Flags().IntVar(&f.tenure, "tenure", 0, "tenure in months")
	cmd.Flags().Float64Var(&f.emi, "emi", 0, "monthly EMI (default: derived)")
	return cmd
}

func newLoansUseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "use ID",
		Short: "Make a loan current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRegistry(func(reg *registry.Registry) error {
				return reg.SwitchTo(args[0])
			})
		},
	}
}

func newLoansDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a loan and all of its data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRegistry(func(reg *registry.Registry) error {
				return reg.Delete(args[0])
			})
		},
	}
}

func newLoansShowCmd(a *app) *cobra.Command {
	var years bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the schedule and savings of the current loan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRegistry(func(reg *registry.Registry) error {
				current := reg.Current()
				if current == nil {
					return registry.ErrNoCurrentLoan
				}
				sess := reg.Session()
				out := cmd.OutOrStdout()
				p := sess.Params()
				fmt.Fprintf(out, "%s (%s)\n", current.Name, current.Label())
				fmt.Fprintf(out, "Loan %s at %g%% for %s, EMI %s\n\n",
					report.Money(p.Principal), p.AnnualRate, report.FormatTenure(p.TenureMonths), report.Money(p.EMI))

				if years {
					summaries, err := sess.Years()
					if err != nil {
						return err
					}
					printYears(out, summaries)
				} else {
					if !sess.HasSchedule() {
						fmt.Fprintln(out, "No schedule generated.")
						return nil
					}
					printRows(out, sess.Rows(), p.AnnualRate)
				}

				sv, err := sess.Savings()
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
				fmt.Fprintf(out, "Paid months:       %d\n", sv.PaidMonths)
				fmt.Fprintf(out, "Current balance:   %s\n", report.Money(sv.CurrentBalance))
				fmt.Fprintf(out, "Remaining tenure:  %s\n", report.FormatRemaining(sv.RemainingTenure, sv.RemainingUnbounded))
				fmt.Fprintf(out, "Interest saved:    %s\n", report.Money(sv.InterestSaved))
				fmt.Fprintf(out, "Time saved:        %s\n", report.FormatTenure(sv.TimeSaved))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&years, "years", false, "print one line per year")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var details string
	cmd := &cobra.Command{
		Use:   "export [FILE]",
		Short: "Export the current loan as CSV",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return a.withRegistry(func(reg *registry.Registry) error {
				render := reg.ExportCSV
				switch details {
				case "":
				case "payments":
					render = reg.ExportPayments
				case "prepayments":
					render = reg.ExportPrepayments
				case "charges":
					render = reg.ExportCharges
				default:
					return fmt.Errorf("unknown details %q: use payments, prepayments or charges", details)
				}

				w, closeFn, err := openOutput(cmd, path)
				if err != nil {
					return err
				}
				if err := render(w); err != nil {
					closeFn()
					return err
				}
				return closeFn()
			})
		},
	}
	cmd.Flags().StringVar(&details, "details", "", "export a history instead: payments, prepayments or charges")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import a complete CSV export into the current loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			return a.withRegistry(func(reg *registry.Registry) error {
				if err := reg.ImportCSV(f); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported into %s\n", reg.Current().Name)
				return nil
			})
		},
	}
}
