// Package cli implements installmentctl, the operator command line for the
// installment engine. It shares configuration and services with the API.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sjperalta/fintera-installments/internal/amortization"
	"github.com/sjperalta/fintera-installments/internal/config"
	"github.com/sjperalta/fintera-installments/internal/database"
	"github.com/sjperalta/fintera-installments/internal/events"
	"github.com/sjperalta/fintera-installments/internal/models"
	"github.com/sjperalta/fintera-installments/internal/repository"
	"github.com/sjperalta/fintera-installments/internal/services"
)

// NewRootCmd builds the command tree. clock may be nil for the wall clock.
func NewRootCmd(clock services.Clock) *cobra.Command {
	if clock == nil {
		clock = services.SystemClock
	}

	root := &cobra.Command{
		Use:           "installmentctl",
		Short:         "Operate the installment financing engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("database-url", "", "Database URL (defaults to DATABASE_URL)")
	root.PersistentFlags().Bool("sql-log", false, "Log SQL statements")

	root.AddCommand(
		newPreviewCmd(clock),
		newMigrateCmd(),
		newReconcileCmd(clock),
		newClassifyCmd(clock),
	)
	return root
}

// Execute runs the command tree against os.Args
func Execute() error {
	return NewRootCmd(nil).Execute()
}

// ─── preview ────────────────────────────────────────────────────────────────

func newPreviewCmd(clock services.Clock) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Quote EMI, totals and schedule for financing terms",
		Long: `Compute the fixed monthly installment and full amortization schedule
for the given terms without touching the database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(cmd, clock)
		},
	}
	cmd.Flags().String("principal", "", "Base amount to finance")
	cmd.Flags().String("down-payment", "0", "Down payment subtracted from the principal")
	cmd.Flags().String("rate", "0", "Annual nominal rate in percent")
	cmd.Flags().Int("tenure", 0, "Number of monthly installments")
	cmd.Flags().String("start", "", "Plan start date (YYYY-MM-DD, defaults to today)")
	cmd.Flags().Bool("json", false, "Print the quote as JSON")
	_ = cmd.MarkFlagRequired("principal")
	_ = cmd.MarkFlagRequired("tenure")
	return cmd
}

func runPreview(cmd *cobra.Command, clock services.Clock) error {
	flags := cmd.Flags()
	principalFlag, _ := flags.GetString("principal")
	downFlag, _ := flags.GetString("down-payment")
	rateFlag, _ := flags.GetString("rate")
	tenure, _ := flags.GetInt("tenure")
	startFlag, _ := flags.GetString("start")
	asJSON, _ := flags.GetBool("json")

	base, err := decimal.NewFromString(principalFlag)
	if err != nil {
		return fmt.Errorf("invalid --principal %q", principalFlag)
	}
	down, err := decimal.NewFromString(downFlag)
	if err != nil {
		return fmt.Errorf("invalid --down-payment %q", downFlag)
	}
	rate, err := decimal.NewFromString(rateFlag)
	if err != nil {
		return fmt.Errorf("invalid --rate %q", rateFlag)
	}

	today := clock.Today()
	start := today
	if startFlag != "" {
		if start, err = models.ParseDate(startFlag); err != nil {
			return fmt.Errorf("invalid --start: %w", err)
		}
	}

	principal, err := amortization.FinancedPrincipal(base, down)
	if err != nil {
		return err
	}
	quote, err := amortization.Preview(amortization.Terms{
		Principal:  principal,
		AnnualRate: rate,
		Tenure:     tenure,
		StartDate:  start,
	}, today)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(quote)
	}
	return printQuote(out, quote)
}

func printQuote(out io.Writer, q *amortization.Quote) error {
	fmt.Fprintf(out, "Financed principal: %s\n", q.FinancedPrincipal.StringFixed(2))
	fmt.Fprintf(out, "EMI:                %s\n", q.EMI.StringFixed(2))
	fmt.Fprintf(out, "Total payable:      %s\n", q.TotalPayable.StringFixed(2))
	fmt.Fprintf(out, "Total interest:     %s\n\n", q.TotalInterest.StringFixed(2))

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tDUE\tEMI\tPRINCIPAL\tINTEREST\tBALANCE\tSTATUS\t")
	for _, l := range q.Schedule {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			l.InstallmentNo, l.DueDate, l.EMI.StringFixed(2), l.Principal.StringFixed(2),
			l.Interest.StringFixed(2), l.Balance.StringFixed(2), l.Status)
	}
	return tw.Flush()
}

// ─── migrate ────────────────────────────────────────────────────────────────

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeDB, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			if err := database.Migrate(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
			return nil
		},
	}
}

// ─── reconcile ──────────────────────────────────────────────────────────────

func newReconcileCmd(clock services.Clock) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile CUSTOMER_ID",
		Short: "Apply a customer's credit balance to their unpaid installments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			customerID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || customerID == 0 {
				return fmt.Errorf("invalid customer id %q", args[0])
			}

			svcs, closeDB, err := openServices(cmd, clock)
			if err != nil {
				return err
			}
			defer closeDB()

			result, err := svcs.Reconcile.Reconcile(cmd.Context(), uint(customerID))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(result.Applications) == 0 {
				fmt.Fprintf(out, "Nothing applied; balance %s\n", result.RemainingBalance.StringFixed(2))
				return nil
			}
			for _, a := range result.Applications {
				fmt.Fprintf(out, "Installment #%d: applied %s (%s)\n", a.InstallmentNo, a.Amount.StringFixed(2), a.Status)
			}
			fmt.Fprintf(out, "Plan %d is %s; applied %s, remaining balance %s\n",
				result.PlanID, result.PlanStatus, result.Applied.StringFixed(2), result.RemainingBalance.StringFixed(2))
			return nil
		},
	}
}

// ─── classify ───────────────────────────────────────────────────────────────

func newClassifyCmd(clock services.Clock) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "List active plans with an installment past due",
		RunE: func(cmd *cobra.Command, args []string) error {
			svcs, closeDB, err := openServices(cmd, clock)
			if err != nil {
				return err
			}
			defer closeDB()

			asOf := clock.Today()
			if v, _ := cmd.Flags().GetString("as-of"); v != "" {
				if asOf, err = models.ParseDate(v); err != nil {
					return fmt.Errorf("invalid --as-of: %w", err)
				}
			}

			plans, err := svcs.Plan.ListDefaulted(cmd.Context(), asOf)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(plans) == 0 {
				fmt.Fprintf(out, "No defaulted plans as of %s\n", asOf)
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "PLAN\tCUSTOMER\tNEXT DUE\tREMAINING")
			for _, p := range plans {
				next := "-"
				if p.NextDueDate != nil {
					next = p.NextDueDate.String()
				}
				fmt.Fprintf(tw, "%d\t%d\t%s\t%d\n", p.ID, p.CustomerID, next, p.RemainingInstallments)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("as-of", "", "Classification date (YYYY-MM-DD, defaults to today)")
	return cmd
}

// ─── wiring ─────────────────────────────────────────────────────────────────

func openDB(cmd *cobra.Command) (*gorm.DB, func(), error) {
	url, _ := cmd.Flags().GetString("database-url")
	if url == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, err
		}
		url = cfg.DatabaseURL
	}

	opts := database.DefaultOptions(true)
	if verbose, _ := cmd.Flags().GetBool("sql-log"); verbose {
		opts.LogLevel = gormlogger.Info
	}

	db, err := database.Connect(url, opts)
	if err != nil {
		return nil, nil, err
	}
	return db, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}, nil
}

// openServices wires services without a worker so events publish inline
// to the log before the command exits.
func openServices(cmd *cobra.Command, clock services.Clock) (*services.Services, func(), error) {
	db, closeDB, err := openDB(cmd)
	if err != nil {
		return nil, nil, err
	}
	repos := repository.NewRepositories(db)
	return services.NewServices(repos, nil, events.LogPublisher{}, nil, clock), closeDB, nil
}
