// Command portfolio is the CLI entrypoint: it wires config, logging, the
// three sqlite databases, and every domain service together, then dispatches
// to one of the subcommands below. Flag parsing is stdlib flag.FlagSet per
// subcommand — the teacher's own cmd/ entrypoints never reach for a CLI
// framework either, so this follows the same plain approach rather than
// importing one for its own sake.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aristath/portfolio/internal/analysis"
	"github.com/aristath/portfolio/internal/apperrors"
	"github.com/aristath/portfolio/internal/backup"
	"github.com/aristath/portfolio/internal/cache"
	"github.com/aristath/portfolio/internal/config"
	"github.com/aristath/portfolio/internal/database"
	"github.com/aristath/portfolio/internal/dataservice"
	"github.com/aristath/portfolio/internal/downloaders"
	"github.com/aristath/portfolio/internal/health"
	"github.com/aristath/portfolio/internal/httpapi"
	"github.com/aristath/portfolio/internal/ledger"
	"github.com/aristath/portfolio/internal/logger"
	"github.com/aristath/portfolio/internal/models"
	"github.com/aristath/portfolio/internal/scheduler"
	"github.com/aristath/portfolio/internal/storage"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage())
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 3
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true, Service: "portfolio-" + args[0]})

	app, err := newApp(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		return apperrors.ExitCode(err)
	}
	defer app.Close()

	cmd, rest := args[0], args[1:]
	handler, ok := commands[cmd]
	if !ok {
		fmt.Fprintln(os.Stderr, usage())
		return 1
	}

	if err := handler(app, rest); err != nil {
		fmt.Fprintln(os.Stderr, apperrors.KindOf(err)+":", err)
		return apperrors.ExitCode(err)
	}
	return 0
}

func usage() string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	return "usage: portfolio <" + strings.Join(names, "|") + "> [flags]"
}

// app bundles every wired dependency a subcommand might need.
type app struct {
	cfg *config.Config
	log zerolog.Logger

	marketDB *database.DB
	ledgerDB *database.DB
	cacheDB  *database.DB

	market *storage.MarketStore
	ledger *storage.LedgerStore

	ledgerSvc  *ledger.Service
	calculator *ledger.Calculator
	dataSvc    *dataservice.Service
	engine     *analysis.Engine
	scheduler  *scheduler.Scheduler
	backupSvc  *backup.Service
}

func newApp(cfg *config.Config, log zerolog.Logger) (*app, error) {
	if _, err := health.CheckDiskSpace(cfg.DataDir, 100*1024*1024); err != nil {
		log.Warn().Err(err).Msg("pre-flight disk space check failed, continuing anyway")
	}

	marketDB, err := openAndMigrate(cfg.DataDir, "market", database.ProfileStandard)
	if err != nil {
		return nil, err
	}
	ledgerDB, err := openAndMigrate(cfg.DataDir, "ledger", database.ProfileLedger)
	if err != nil {
		return nil, err
	}
	cacheDB, err := openAndMigrate(cfg.DataDir, "cache", database.ProfileCache)
	if err != nil {
		return nil, err
	}

	market := storage.NewMarketStore(marketDB, log)
	ledgerStore := storage.NewLedgerStore(ledgerDB, log)

	retry := downloaders.RetryConfig{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.BaseDelay, MinInterval: time.Second}
	primary := downloaders.NewFinnhub(cfg.FinnhubAPIKey, retry)
	bulk := downloaders.NewStooq(retry)
	tertiary := downloaders.NewTwelveData(cfg.TwelveDataAPIKey, retry)

	dataSvc := dataservice.New(market, dataservice.Config{
		StockIncrementalThresholdDays: cfg.StockIncrementalThresholdDays,
		FinancialRefreshDays:          cfg.FinancialRefreshDays,
		InterSymbolDelay:              cfg.InterSymbolDelay,
	}, primary, bulk, tertiary, primary, log)

	analysisCfg := analysis.Config{
		DropAlertDays:           cfg.DropAlertDays,
		DropAlertThresholdPct:   cfg.DropAlertThresholdPct,
		DropAlert7dThresholdPct: cfg.DropAlert7dThresholdPct,
	}
	engine := analysis.New([]analysis.Operator{
		analysis.MA{},
		analysis.RSI{},
		analysis.NewDropAlert(analysisCfg.DropAlertDays, analysisCfg.DropAlertThresholdPct),
		analysis.NewDropAlert7d(analysisCfg.DropAlert7dThresholdPct),
		analysis.FinRatios{},
		analysis.FinHealth{},
		analysis.Volatility{},
	}, log)

	a := &app{
		cfg: cfg, log: log,
		marketDB: marketDB, ledgerDB: ledgerDB, cacheDB: cacheDB,
		market: market, ledger: ledgerStore,
		ledgerSvc:  ledger.New(ledgerStore, market, log),
		calculator: ledger.NewCalculator(ledgerStore, market, log, cfg.LogLevel == "debug"),
		dataSvc:    dataSvc,
		engine:     engine,
		scheduler:  scheduler.New(log),
	}

	cacheStore := cache.NewStore(cacheDB)
	_ = a.scheduler.AddJob("0 3 * * *", cache.NewCleanupJob(cacheStore, log))

	if cfg.Backup.Enabled {
		s3Client, err := backup.NewS3Client(context.Background(), backup.S3Config{
			Bucket: cfg.Backup.Bucket, Endpoint: cfg.Backup.Endpoint,
			AccessKey: cfg.Backup.AccessKey, SecretKey: cfg.Backup.SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("configure backup: %w", err)
		}
		a.backupSvc = backup.New(s3Client, []*database.DB{marketDB, ledgerDB}, cfg.DataDir+"/.backup-staging", cfg.Backup.RetentionDays, log)
		_ = a.scheduler.AddJob("0 2 * * *", a.backupSvc)
	}

	return a, nil
}

func openAndMigrate(dataDir, name string, profile database.DatabaseProfile) (*database.DB, error) {
	db, err := database.New(database.Config{Path: dataDir + "/" + name + ".db", Profile: profile, Name: name})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", name, err)
	}
	if err := db.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate %s database: %w", name, err)
	}
	return db, nil
}

func (a *app) Close() {
	a.marketDB.Close()
	a.ledgerDB.Close()
	a.cacheDB.Close()
}

// analysisRunner builds a Runner bound to app's engine/market/config, used
// by both the `analyze` command and (if mounted) the HTTP query surface.
func (a *app) analysisRunner() *analysis.Runner {
	return analysis.NewRunner(a.market, a.engine, analysis.Config{
		DropAlertDays:           a.cfg.DropAlertDays,
		DropAlertThresholdPct:   a.cfg.DropAlertThresholdPct,
		DropAlert7dThresholdPct: a.cfg.DropAlert7dThresholdPct,
	}, a.market, a.log)
}

type commandFunc func(a *app, args []string) error

var commands = map[string]commandFunc{
	"download":           cmdDownload,
	"query":               cmdQuery,
	"analyze":            cmdAnalyze,
	"buy":                cmdBuy,
	"sell":               cmdSell,
	"positions":          cmdPositions,
	"lots":               cmdLots,
	"sales":              cmdSales,
	"calculate-pnl":      cmdCalculatePnL,
	"batch-calculate":    cmdBatchCalculate,
	"tax-report":         cmdTaxReport,
	"rebalance-simulate": cmdRebalanceSimulate,
	"serve":              cmdServe,
}

// cmdServe starts the scheduler (backup rotation, cache cleanup) and, if
// configured, the read-only HTTP query API, blocking until SIGINT/SIGTERM.
func cmdServe(a *app, args []string) error {
	a.scheduler.Start()
	defer a.scheduler.Stop()

	var httpServer *http.Server
	if a.cfg.Port > 0 {
		mux := httpapi.New(a.market, a.ledger, a.analysisRunner, a.log)
		httpServer = &http.Server{Addr: fmt.Sprintf(":%d", a.cfg.Port), Handler: mux}
		go func() {
			a.log.Info().Int("port", a.cfg.Port).Msg("http query api listening")
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.log.Error().Err(err).Msg("http server exited")
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	a.log.Info().Msg("shutting down")
	a.scheduler.LogMetrics()

	if httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			a.log.Error().Err(err).Msg("http server shutdown error")
		}
	}
	return nil
}

func splitSymbols(s string) []string {
	var out []string
	for _, sym := range strings.Split(s, ",") {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym != "" {
			out = append(out, sym)
		}
	}
	return out
}

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

func today() string { return time.Now().Format("2006-01-02") }

func periodStart(period string) string {
	now := time.Now()
	switch period {
	case "6mo":
		return now.AddDate(0, -6, 0).Format("2006-01-02")
	case "1y":
		return now.AddDate(-1, 0, 0).Format("2006-01-02")
	default:
		return "2000-01-01"
	}
}

func cmdDownload(a *app, args []string) error {
	fs := newFlagSet("download")
	symbols := fs.String("s", "", "comma-separated symbols")
	startDate := fs.String("start-date", "", "backfill anchor date (YYYY-MM-DD)")
	comprehensive := fs.Bool("comprehensive", false, "also refresh financials")
	financialOnly := fs.Bool("financial-only", false, "skip price download, only refresh financials")
	if err := fs.Parse(args); err != nil {
		return err
	}
	syms := splitSymbols(*symbols)
	if len(syms) == 0 {
		syms = a.cfg.Watchlist
	}
	if len(syms) == 0 {
		return apperrors.New(apperrors.Validation, "no symbols given and watchlist is empty")
	}

	ctx := context.Background()
	for _, sym := range syms {
		if !*financialOnly {
			res := a.dataSvc.UpdateStock(ctx, sym, *startDate)
			if res.Err != nil {
				fmt.Printf("%s: price download failed: %v\n", sym, res.Err)
			} else {
				fmt.Printf("%s: %s, %d bars\n", sym, res.Strategy, res.BarsWritten)
			}
		}
		if *comprehensive || *financialOnly {
			skipped, err := a.dataSvc.RefreshFinancials(ctx, sym)
			switch {
			case err != nil:
				fmt.Printf("%s: financial refresh failed: %v\n", sym, err)
			case skipped:
				fmt.Printf("%s: financial refresh skipped (recently refreshed)\n", sym)
			default:
				fmt.Printf("%s: financials refreshed\n", sym)
			}
		}
	}
	return nil
}

func cmdQuery(a *app, args []string) error {
	fs := newFlagSet("query")
	symbol := fs.String("s", "", "symbol")
	start := fs.String("start-date", "", "")
	end := fs.String("end-date", "", "")
	limit := fs.Int("limit", 10, "rows to show at head/tail")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *symbol == "" {
		return apperrors.New(apperrors.Validation, "-s is required")
	}

	bars, err := a.market.GetStockData(strings.ToUpper(*symbol), *start, *end)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d rows\n", *symbol, len(bars))
	printBars("head", bars, *limit, false)
	printBars("tail", bars, *limit, true)
	return nil
}

func printBars(label string, bars []models.PriceBar, limit int, fromEnd bool) {
	if len(bars) == 0 || limit <= 0 {
		return
	}
	n := limit
	if n > len(bars) {
		n = len(bars)
	}
	fmt.Println(label + ":")
	slice := bars[:n]
	if fromEnd {
		slice = bars[len(bars)-n:]
	}
	for _, b := range slice {
		fmt.Printf("  %s  close=%s  volume=%d\n", b.Date, b.Close.String(), b.Volume)
	}
}

func cmdAnalyze(a *app, args []string) error {
	fs := newFlagSet("analyze")
	symbols := fs.String("s", "", "comma-separated symbols")
	period := fs.String("period", "1y", "6mo|1y|max")
	output := fs.String("output", "", "write JSON here instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	syms := splitSymbols(*symbols)
	if len(syms) == 0 {
		return apperrors.New(apperrors.Validation, "-s is required")
	}

	runner := a.analysisRunner()
	start := periodStart(*period)
	results := make(map[string]analysis.Result, len(syms))
	for _, sym := range syms {
		results[sym] = runner.Run(sym, start, today())
	}

	encoded, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encode analysis results: %w", err)
	}
	if *output == "" {
		fmt.Println(string(encoded))
		return nil
	}
	return os.WriteFile(*output, encoded, 0644)
}

func cmdBuy(a *app, args []string) error {
	fs := newFlagSet("buy")
	symbol := fs.String("s", "", "symbol")
	quantity := fs.String("q", "", "quantity")
	price := fs.String("p", "", "price per share")
	date := fs.String("d", "", "transaction date YYYY-MM-DD")
	platform := fs.String("platform", "", "")
	notes := fs.String("notes", "", "")
	externalID := fs.String("external-id", "", "idempotency key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	qty, err := decimal.NewFromString(*quantity)
	if err != nil {
		return apperrors.Wrap(apperrors.Validation, "invalid quantity", err)
	}
	p, err := decimal.NewFromString(*price)
	if err != nil {
		return apperrors.Wrap(apperrors.Validation, "invalid price", err)
	}

	res, err := a.ledgerSvc.RecordBuy(ledger.BuyRequest{
		Symbol: *symbol, Quantity: qty, Price: p, TransactionDate: *date,
		Platform: *platform, Notes: *notes, ExternalID: *externalID,
	})
	if err != nil {
		return err
	}
	fmt.Printf("lot #%d: %s x%s @ %s (idempotent=%v)\n", res.Lot.ID, res.Transaction.Symbol, qty.String(), p.String(), res.Idempotent)
	return nil
}

func cmdSell(a *app, args []string) error {
	fs := newFlagSet("sell")
	symbol := fs.String("s", "", "symbol")
	quantity := fs.String("q", "", "quantity")
	price := fs.String("p", "", "price per share")
	date := fs.String("d", "", "transaction date YYYY-MM-DD")
	basis := fs.String("basis", "fifo", "fifo|lifo|specific|average")
	specificLots := fs.String("specific-lots", "", "lot=ID:QTY,...")
	externalID := fs.String("external-id", "", "idempotency key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	qty, err := decimal.NewFromString(*quantity)
	if err != nil {
		return apperrors.Wrap(apperrors.Validation, "invalid quantity", err)
	}
	p, err := decimal.NewFromString(*price)
	if err != nil {
		return apperrors.Wrap(apperrors.Validation, "invalid price", err)
	}
	method, err := parseCostBasisMethod(*basis)
	if err != nil {
		return err
	}
	lots, err := parseSpecificLots(*specificLots)
	if err != nil {
		return err
	}

	res, err := a.ledgerSvc.RecordSell(ledger.SellRequest{
		Symbol: *symbol, Quantity: qty, Price: p, TransactionDate: *date,
		Method: method, SpecificLots: lots, ExternalID: *externalID,
	})
	if err != nil {
		return err
	}
	fmt.Printf("realized %s across %d lot(s) (idempotent=%v)\n", res.TotalRealized.String(), len(res.Allocations), res.Idempotent)
	return nil
}

func parseCostBasisMethod(s string) (models.CostBasisMethod, error) {
	switch strings.ToLower(s) {
	case "", "fifo":
		return models.FIFO, nil
	case "lifo":
		return models.LIFO, nil
	case "specific":
		return models.SpecificLot, nil
	case "average":
		return models.AverageCost, nil
	default:
		return "", apperrors.New(apperrors.Validation, "unknown --basis: "+s)
	}
}

func parseSpecificLots(s string) (map[int64]decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	out := make(map[int64]decimal.Decimal)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimPrefix(strings.TrimSpace(pair), "lot=")
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, apperrors.New(apperrors.Validation, "malformed --specific-lots entry: "+pair)
		}
		id, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.Validation, "malformed lot id in --specific-lots", err)
		}
		qty, err := decimal.NewFromString(parts[1])
		if err != nil {
			return nil, apperrors.Wrap(apperrors.Validation, "malformed quantity in --specific-lots", err)
		}
		out[id] = qty
	}
	return out, nil
}

func cmdPositions(a *app, args []string) error {
	fs := newFlagSet("positions")
	symbol := fs.String("s", "", "symbol (all symbols if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	symbols := splitSymbols(*symbol)
	if len(symbols) == 0 {
		var err error
		symbols, err = a.ledger.ListSymbols()
		if err != nil {
			return err
		}
	}

	for _, sym := range symbols {
		lots, err := a.ledger.GetPositionLots(sym, true)
		if err != nil {
			return err
		}
		quantity := decimal.Zero
		for _, l := range lots {
			quantity = quantity.Add(l.RemainingQuantity)
		}
		if quantity.IsZero() {
			continue
		}
		fmt.Printf("%s: %s shares across %d open lot(s)\n", sym, quantity.String(), len(lots))
	}
	return nil
}

func cmdLots(a *app, args []string) error {
	fs := newFlagSet("lots")
	symbol := fs.String("s", "", "symbol")
	activeOnly := fs.Bool("active-only", true, "show only open lots")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *symbol == "" {
		return apperrors.New(apperrors.Validation, "-s is required")
	}

	lots, err := a.ledger.GetPositionLots(strings.ToUpper(*symbol), *activeOnly)
	if err != nil {
		return err
	}
	for _, l := range lots {
		fmt.Printf("#%d  %s  remaining=%s/%s  cost=%s  closed=%v\n",
			l.ID, l.PurchaseDate, l.RemainingQuantity.String(), l.OriginalQuantity.String(), l.CostBasis.String(), l.IsClosed)
	}
	return nil
}

func cmdSales(a *app, args []string) error {
	fs := newFlagSet("sales")
	symbol := fs.String("s", "", "symbol")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *symbol == "" {
		return apperrors.New(apperrors.Validation, "-s is required")
	}

	sells, err := a.ledger.ListTransactions(strings.ToUpper(*symbol), models.Sell)
	if err != nil {
		return err
	}
	for _, t := range sells {
		allocs, err := a.ledger.GetSaleAllocations(t.ID)
		if err != nil {
			return err
		}
		realized := decimal.Zero
		for _, al := range allocs {
			realized = realized.Add(al.RealizedPnL)
		}
		fmt.Printf("%s  sold %s @ %s  realized=%s  (%d lot(s))\n",
			t.TransactionDate, t.Quantity.String(), t.Price.String(), realized.String(), len(allocs))
	}
	return nil
}

func cmdCalculatePnL(a *app, args []string) error {
	fs := newFlagSet("calculate-pnl")
	date := fs.String("date", "", "valuation date YYYY-MM-DD")
	symbol := fs.String("s", "", "symbol (all symbols with lots if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *date == "" {
		return apperrors.New(apperrors.Validation, "--date is required")
	}

	symbols := splitSymbols(*symbol)
	if len(symbols) == 0 {
		var err error
		symbols, err = a.ledger.ListSymbols()
		if err != nil {
			return err
		}
	}

	for _, sym := range symbols {
		row, err := a.calculator.Calculate(sym, *date, ledger.Close)
		if err == ledger.ErrNoPrice {
			fmt.Printf("%s: no price available, skipped\n", sym)
			continue
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s: market_value=%s unrealized=%s realized=%s\n", sym, row.MarketValue.String(), row.UnrealizedPnL.String(), row.RealizedPnL.String())
	}
	return nil
}

func cmdBatchCalculate(a *app, args []string) error {
	fs := newFlagSet("batch-calculate")
	symbol := fs.String("s", "", "comma-separated symbols (all with lots if omitted)")
	start := fs.String("start-date", "", "")
	end := fs.String("end-date", "", "")
	onlyTradingDays := fs.Bool("only-trading-days", false, "")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *start == "" || *end == "" {
		return apperrors.New(apperrors.Validation, "--start-date and --end-date are required")
	}

	symbols := splitSymbols(*symbol)
	if len(symbols) == 0 {
		var err error
		symbols, err = a.ledger.ListSymbols()
		if err != nil {
			return err
		}
	}

	results, err := a.calculator.CalculateBatch(ledger.BatchRequest{
		Symbols: symbols, StartDate: *start, EndDate: *end,
		OnlyTradingDays: *onlyTradingDays, Field: ledger.Close,
	})
	if err != nil {
		return err
	}
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	fmt.Printf("computed %d rows across %d symbol(s), %d failed\n", len(results), len(symbols), failed)
	return nil
}

func cmdTaxReport(a *app, args []string) error {
	fs := newFlagSet("tax-report")
	start := fs.String("start-date", "", "")
	end := fs.String("end-date", "", "")
	symbol := fs.String("s", "", "comma-separated symbols (all with lots if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	symbols := splitSymbols(*symbol)
	if len(symbols) == 0 {
		var err error
		symbols, err = a.ledger.ListSymbols()
		if err != nil {
			return err
		}
	}

	grandTotal := decimal.Zero
	for _, sym := range symbols {
		sells, err := a.ledger.ListTransactions(sym, models.Sell)
		if err != nil {
			return err
		}
		symbolTotal := decimal.Zero
		for _, t := range sells {
			if *start != "" && t.TransactionDate < *start {
				continue
			}
			if *end != "" && t.TransactionDate > *end {
				continue
			}
			allocs, err := a.ledger.GetSaleAllocations(t.ID)
			if err != nil {
				return err
			}
			for _, al := range allocs {
				symbolTotal = symbolTotal.Add(al.RealizedPnL)
			}
		}
		if symbolTotal.IsZero() {
			continue
		}
		fmt.Printf("%s: realized=%s\n", sym, symbolTotal.String())
		grandTotal = grandTotal.Add(symbolTotal)
	}
	fmt.Printf("total realized: %s\n", grandTotal.String())
	return nil
}

// cmdRebalanceSimulate previews which lots a sell would consume and the
// realized P&L it would produce, without recording a transaction (spec §6's
// -q/-p pair applied as a dry run against the matcher instead of
// Service.RecordSell). No lot list is taken, so --basis specific is rejected.
func cmdRebalanceSimulate(a *app, args []string) error {
	fs := newFlagSet("rebalance-simulate")
	symbol := fs.String("s", "", "symbol")
	quantity := fs.String("q", "", "hypothetical sell quantity")
	price := fs.String("p", "", "hypothetical sell price")
	basis := fs.String("basis", "fifo", "fifo|lifo|specific|average")
	if err := fs.Parse(args); err != nil {
		return err
	}

	qty, err := decimal.NewFromString(*quantity)
	if err != nil {
		return apperrors.Wrap(apperrors.Validation, "invalid quantity", err)
	}
	p, err := decimal.NewFromString(*price)
	if err != nil {
		return apperrors.Wrap(apperrors.Validation, "invalid price", err)
	}
	method, err := parseCostBasisMethod(*basis)
	if err != nil {
		return err
	}

	sym := strings.ToUpper(*symbol)
	lots, err := a.ledger.GetPositionLots(sym, true)
	if err != nil {
		return err
	}
	matcher, err := ledger.NewMatcher(method, nil)
	if err != nil {
		return err
	}
	matches, err := matcher.Match(lots, qty)
	if err != nil {
		return err
	}

	realized := decimal.Zero
	for _, m := range matches {
		realized = realized.Add(m.Quantity.Mul(p.Sub(m.Lot.CostBasis)))
		fmt.Printf("  lot #%d: sell %s @ cost %s\n", m.Lot.ID, m.Quantity.String(), m.Lot.CostBasis.String())
	}
	fmt.Printf("hypothetical realized P&L: %s\n", realized.String())
	return nil
}
