package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/shopspring/decimal"

	"github.com/Siva2k2k/es-tm/internal/billing"
	"github.com/Siva2k2k/es-tm/internal/config"
	"github.com/Siva2k2k/es-tm/internal/holiday"
	"github.com/Siva2k2k/es-tm/internal/invoice"
	"github.com/Siva2k2k/es-tm/internal/server"
	"github.com/Siva2k2k/es-tm/internal/store"
	"github.com/Siva2k2k/es-tm/internal/timesheet"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A missing .env is fine, flags and the environment still apply
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("Failed to load .env", "error", err)
		os.Exit(1)
	}

	defaults := config.Default()
	fs := ff.NewFlagSet("timesheetd")
	var (
		addr          = fs.StringLong("addr", ":8080", "HTTP listen address")
		dbPath        = fs.StringLong("db", "timesheetd.db", "Database file path")
		authUser      = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass      = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		weekStart     = fs.StringLong("week-start", "monday", "First day of the timesheet week")
		weekendDays   = fs.StringLong("weekend-days", "saturday,sunday", "Comma separated weekend days")
		overtimeBasis = fs.StringLong("overtime-basis", string(defaults.OvertimeBasis), "Overtime threshold basis: 'daily' or 'weekly'")
		dailyOT       = fs.Float64Long("daily-overtime-hours", defaults.DailyOvertimeThreshold, "Hours per day before overtime")
		weeklyOT      = fs.Float64Long("weekly-overtime-hours", defaults.WeeklyOvertimeThreshold, "Hours per week before overtime")
		leadApproval  = fs.BoolLong("lead-approval", "Route submitted timesheets through a lead first")
		taxRate       = fs.StringLong("tax-rate", "0", "Invoice tax rate as a fraction, e.g. 0.0825")
		paymentTerms  = fs.IntLong("payment-terms-days", defaults.PaymentTermsDays, "Days between invoice issue and due date")
		holidays      = fs.StringLong("holidays", "", "Comma separated company holidays (YYYY-MM-DD)")
		holidayAPI    = fs.StringLong("holiday-api-url", "", "Public holiday API base URL (optional)")
		holidayCC     = fs.StringLong("holiday-country", "", "Country code for the public holiday API")
		node          = fs.IntLong("node", 1, "Invoice number node id, unique per instance (0-1023)")
		_             = fs.StringLong("config", "", "Config file (optional)")
		_             = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("TIMESHEETD"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	rules, err := buildRules(*weekStart, *weekendDays, *overtimeBasis, *dailyOT, *weeklyOT, *leadApproval, *taxRate, *paymentTerms)
	if err != nil {
		slog.Error("Invalid business rules", "error", err)
		os.Exit(1)
	}

	calendar, err := buildCalendar(*holidays, *holidayAPI, *holidayCC)
	if err != nil {
		slog.Error("Invalid holiday configuration", "error", err)
		os.Exit(1)
	}

	// Initialize database
	slog.Info("Initializing database...", "path", *dbPath)
	db, err := store.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	numbers, err := invoice.NewSnowflakeNumbers(int64(*node))
	if err != nil {
		slog.Error("Failed to initialize invoice numbers", "error", err)
		os.Exit(1)
	}

	// Initialize services
	catalog := billing.NewCatalog(db)
	calculator := billing.NewCalculator(catalog, calendar, rules)
	timesheets := timesheet.NewService(db, calendar, calculator, rules)
	invoices := invoice.NewService(db, numbers, rules)

	basicAuth := server.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	srv := &http.Server{
		Addr:    *addr,
		Handler: server.NewServer(timesheets, catalog, invoices, basicAuth),

		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Starting server", "address", *addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			stop()
		}
	}()
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	<-ctx.Done()
	slog.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown error", "error", err)
	}
}

func buildRules(weekStart, weekendDays, basis string, dailyOT, weeklyOT float64, leadApproval bool, taxRate string, paymentTerms int) (config.Rules, error) {
	rules := config.Default()

	start, err := config.ParseWeekday(weekStart)
	if err != nil {
		return rules, fmt.Errorf("week start: %w", err)
	}
	weekend, err := config.ParseWeekdays(weekendDays)
	if err != nil {
		return rules, fmt.Errorf("weekend days: %w", err)
	}
	tax, err := decimal.NewFromString(taxRate)
	if err != nil {
		return rules, fmt.Errorf("tax rate %q: %w", taxRate, err)
	}

	rules.WeekStart = start
	rules.WeekendDays = weekend
	rules.OvertimeBasis = config.OvertimeBasis(strings.ToLower(strings.TrimSpace(basis)))
	rules.DailyOvertimeThreshold = dailyOT
	rules.WeeklyOvertimeThreshold = weeklyOT
	rules.LeadApproval = leadApproval
	rules.TaxRate = tax
	rules.PaymentTermsDays = paymentTerms
	return rules, rules.Validate()
}

func buildCalendar(dates, apiURL, country string) (holiday.Calendar, error) {
	days, err := holiday.ParseDates(dates)
	if err != nil {
		return nil, err
	}
	calendar := holiday.Union{holiday.NewStatic(days...)}
	if apiURL != "" || country != "" {
		remote, err := holiday.NewRemote(apiURL, country)
		if err != nil {
			return nil, err
		}
		slog.Info("Using public holiday API", "country", country)
		calendar = append(calendar, remote)
	}
	return calendar, nil
}
