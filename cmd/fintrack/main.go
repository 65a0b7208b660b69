// Command fintrack is the terminal front end for the transaction tracker.
// Every operation goes through the dual-mode client: the API server when it
// answers, the local JSON store when it does not.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"fintrack/internal/client"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/importer"
	"fintrack/internal/localstore"
	applog "fintrack/internal/log"
)

const usage = `Usage: fintrack <command> [flags]

Commands:
  add      record a single transaction
  list     list transactions with optional filters
  get      show one transaction by id
  update   replace a transaction's fields by id
  delete   remove a transaction by id
  import   bulk-load transactions from a CSV file
  summary  report income, expenses and balance
  status   show whether the API server is reachable
  sync     push locally stored records to the API server

Run 'fintrack <command> -h' for command flags.
`

func main() {
	_ = godotenv.Load()

	// keep stdout for command output; diagnostics go to stderr
	logger := applog.New(applog.Config{
		Component: "cli",
		Handler:   slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}),
	})
	applog.SetDefault(logger)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := run(ctx, cfg, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newClient(ctx context.Context, cfg *config.Config) *client.Client {
	local := localstore.New(cfg.LocalStorePath(), cfg.LocalBackupDir())
	return client.New(ctx, cfg.APIBaseURL, local, client.Options{
		RemoteTimeout: cfg.RemoteTimeout,
		ProbeTimeout:  cfg.ProbeTimeout,
	})
}

func run(ctx context.Context, cfg *config.Config, command string, args []string) error {
	switch command {
	case "add":
		return cmdAdd(ctx, cfg, args)
	case "list":
		return cmdList(ctx, cfg, args)
	case "get":
		return cmdGet(ctx, cfg, args)
	case "update":
		return cmdUpdate(ctx, cfg, args)
	case "delete":
		return cmdDelete(ctx, cfg, args)
	case "import":
		return cmdImport(ctx, cfg, args)
	case "summary":
		return cmdSummary(ctx, cfg, args)
	case "status":
		return cmdStatus(ctx, cfg, args)
	case "sync":
		return cmdSync(ctx, cfg, args)
	case "-h", "--help", "help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

// inputFlags registers the transaction field flags shared by add and update.
func inputFlags(fs *flag.FlagSet) (date, category, description, amount, typ *string) {
	date = fs.String("date", core.Today().String(), "calendar date, YYYY-MM-DD")
	category = fs.String("category", "", "category label")
	description = fs.String("description", "", "free-form description")
	amount = fs.String("amount", "", "non-negative decimal amount")
	typ = fs.String("type", "", "income or expense")
	return
}

func buildInput(date, category, description, amount, typ string) (core.TransactionInput, error) {
	d, err := core.ParseDate(date)
	if err != nil {
		return core.TransactionInput{}, err
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return core.TransactionInput{}, fmt.Errorf("invalid amount %q", amount)
	}
	t, err := core.ParseType(typ)
	if err != nil {
		return core.TransactionInput{}, err
	}
	in := core.TransactionInput{
		Date:        d,
		Category:    category,
		Description: description,
		Amount:      amt,
		Type:        t,
	}.Normalize()
	return in, in.Validate()
}

func cmdAdd(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	date, category, description, amount, typ := inputFlags(fs)
	fs.Parse(args)

	in, err := buildInput(*date, *category, *description, *amount, *typ)
	if err != nil {
		return err
	}

	c := newClient(ctx, cfg)
	t, err := c.Create(ctx, in)
	if err != nil {
		return err
	}

	fmt.Printf("recorded #%d (%s): %s %s %s [%s]\n", t.ID, c.Mode(), t.Date, t.Category, t.Amount, t.Type)
	return nil
}

func cmdList(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	start := fs.String("start", "", "start date, inclusive (YYYY-MM-DD)")
	end := fs.String("end", "", "end date, inclusive (YYYY-MM-DD)")
	category := fs.String("category", "", "exact category match")
	typ := fs.String("type", "", "income or expense")
	skip := fs.Int("skip", 0, "records to skip")
	limit := fs.Int("limit", 0, "page size (default 100)")
	fs.Parse(args)

	f := core.Filter{Category: *category, Skip: *skip, Limit: *limit}
	var err error
	if f.StartDate, err = optionalDate(*start); err != nil {
		return err
	}
	if f.EndDate, err = optionalDate(*end); err != nil {
		return err
	}
	if *typ != "" {
		if f.Type, err = core.ParseType(*typ); err != nil {
			return err
		}
	}

	c := newClient(ctx, cfg)
	items, err := c.List(ctx, f)
	if err != nil {
		return err
	}

	printTable(items)
	fmt.Printf("%d transaction(s), mode: %s\n", len(items), c.Mode())
	return nil
}

func cmdGet(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	id := fs.Int64("id", 0, "transaction id")
	fs.Parse(args)

	c := newClient(ctx, cfg)
	t, err := c.Get(ctx, *id)
	if err != nil {
		return err
	}

	printTable([]core.Transaction{t})
	return nil
}

func cmdUpdate(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	id := fs.Int64("id", 0, "transaction id")
	date, category, description, amount, typ := inputFlags(fs)
	fs.Parse(args)

	in, err := buildInput(*date, *category, *description, *amount, *typ)
	if err != nil {
		return err
	}

	c := newClient(ctx, cfg)
	t, err := c.Update(ctx, *id, in)
	if err != nil {
		return err
	}

	fmt.Printf("updated #%d (%s)\n", t.ID, c.Mode())
	return nil
}

func cmdDelete(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.Int64("id", 0, "transaction id")
	fs.Parse(args)

	c := newClient(ctx, cfg)
	if err := c.Delete(ctx, *id); err != nil {
		return err
	}

	fmt.Printf("deleted #%d (%s)\n", *id, c.Mode())
	return nil
}

func cmdImport(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	file := fs.String("file", "", "CSV file with columns date,category,description,amount,type")
	fs.Parse(args)

	if *file == "" {
		return fmt.Errorf("-file is required")
	}
	f, err := os.Open(*file)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	inputs, err := importer.ParseCSV(f)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no transactions in %s", *file)
	}

	c := newClient(ctx, cfg)
	n, err := c.BulkCreate(ctx, inputs)
	if err != nil {
		return err
	}

	fmt.Printf("imported %d transaction(s) from %s (%s)\n", n, *file, c.Mode())
	return nil
}

func cmdSummary(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	start := fs.String("start", "", "start date, inclusive (YYYY-MM-DD)")
	end := fs.String("end", "", "end date, inclusive (YYYY-MM-DD)")
	period := fs.String("period", "", "relative window: this-month, this-year or all-time")
	fs.Parse(args)

	c := newClient(ctx, cfg)

	// a relative window is resolved client-side over the listed records
	if *period != "" {
		if *start != "" || *end != "" {
			return fmt.Errorf("-period cannot be combined with -start/-end")
		}
		items, err := c.List(ctx, core.Filter{Limit: 10000})
		if err != nil {
			return err
		}
		filtered, name := core.FilterByPeriod(items, core.PeriodFilter(*period), time.Now())
		printSummary(core.Summary{Totals: core.Summarize(filtered), Period: name}, c.Mode())
		return nil
	}

	startDate, err := optionalDate(*start)
	if err != nil {
		return err
	}
	endDate, err := optionalDate(*end)
	if err != nil {
		return err
	}

	sum, err := c.Summary(ctx, startDate, endDate)
	if err != nil {
		return err
	}

	printSummary(sum, c.Mode())
	return nil
}

func cmdStatus(ctx context.Context, cfg *config.Config, args []string) error {
	flag.NewFlagSet("status", flag.ExitOnError).Parse(args)

	c := newClient(ctx, cfg)
	fmt.Printf("api:        %s\n", cfg.APIBaseURL)
	fmt.Printf("mode:       %s\n", c.Mode())
	fmt.Printf("local file: %s\n", cfg.LocalStorePath())
	return nil
}

func cmdSync(ctx context.Context, cfg *config.Config, args []string) error {
	flag.NewFlagSet("sync", flag.ExitOnError).Parse(args)

	c := newClient(ctx, cfg)
	n, err := c.SyncLocalToRemote(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Println("local store is empty, nothing to sync")
		return nil
	}

	fmt.Printf("synced %d local transaction(s) to %s\n", n, cfg.APIBaseURL)
	return nil
}

func optionalDate(s string) (*core.Date, error) {
	if s == "" {
		return nil, nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func printTable(items []core.Transaction) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tCATEGORY\tDESCRIPTION\tAMOUNT\tTYPE")
	for _, t := range items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Date, t.Category, t.Description, t.Amount, t.Type)
	}
	w.Flush()
}

func printSummary(sum core.Summary, mode string) {
	fmt.Printf("period:   %s\n", sum.Period)
	fmt.Printf("income:   %s\n", sum.Income)
	fmt.Printf("expenses: %s\n", sum.Expenses)
	fmt.Printf("balance:  %s\n", sum.Balance)
	fmt.Printf("mode:     %s\n", mode)
}
