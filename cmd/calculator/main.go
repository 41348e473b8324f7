// Command calculator values a crypto portfolio on an exchange, tracks price
// checkpoints and runs rule-based buy and sell strategies, either once from
// the command line or on a schedule.
//
// Usage:
//
//	calculator [--config config.yaml] [--exchange simulate] [--fiat EUR,USD] [--confirm] <command> [args]
//
// Commands:
//
//	value                              portfolio value in both fiat currencies
//	checkpoints [update|remove ASSET]  list, create or drop price checkpoints
//	ratings [reset]                    current and target allocation
//	history                            journaled trades
//	buy|sell ASSET AMOUNT [RATE]       market order, or limit order at RATE BTC
//	buy-all|sell-all ASSET             spend all BTC, or sell the whole balance
//	sell-profit AMOUNT                 sell gains of at least AMOUNT fiat
//	sell-investors PERCENT             sell assets whose investment rate reached PERCENT
//	buy-dip PERCENT RATE               buy assets down PERCENT with investment rate below RATE
//	buy-investors RATE                 buy assets with investment rate below RATE
//	buy-best|buy-worst                 buy the best or worst performer
//	run                                refresh and run configured strategies on schedule
//	setup [FILE]                       configuration wizard
//
// Required environment variables (or a .env file):
//
//	For Binance: BINANCE_API_KEY, BINANCE_API_SECRET
//	For Bybit: BYBIT_API_KEY, BYBIT_API_SECRET
//	For Hyperliquid: HYPERLIQUID_PRIVATE_KEY, optionally HYPERLIQUID_ACCOUNT_ADDRESS
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/calculator/config"
	"github.com/vadiminshakov/calculator/internal"
	"github.com/vadiminshakov/calculator/internal/domain"
	"github.com/vadiminshakov/calculator/internal/logger"
	"github.com/vadiminshakov/calculator/internal/services/strategy"
	"github.com/vadiminshakov/calculator/internal/setup"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	conf, rest, err := config.Get(flag.NewFlagSet("calculator", flag.ExitOnError), args)
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		return errors.New("no command given, see calculator --help")
	}
	cmd, params := rest[0], rest[1:]

	if cmd == "setup" {
		path := setup.DefaultConfigFile
		if len(params) > 0 {
			path = params[0]
		}
		return setup.RunTUI(path)
	}

	l, err := logger.New(logger.Config{
		Level:      conf.Log.Level,
		File:       conf.Log.File,
		MaxSize:    conf.Log.MaxSizeMB,
		MaxBackups: conf.Log.MaxBackups,
		MaxAge:     conf.Log.MaxAgeDays,
	})
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()
	zap.ReplaceGlobals(l)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bot, err := internal.NewBot(ctx, conf, l, setup.PromptConfirmer{})
	if err != nil {
		return err
	}
	defer func() { _ = bot.Close() }()

	return dispatch(ctx, bot, cmd, params)
}

func dispatch(ctx context.Context, bot *internal.Bot, cmd string, params []string) error {
	switch cmd {
	case "value":
		return printValue(bot)
	case "checkpoints":
		return checkpoints(bot, params)
	case "ratings":
		if len(params) > 0 && params[0] == "reset" {
			bot.Store.ResetInitialRatings()
		}
		return printRatings(bot)
	case "history":
		return printHistory(bot)
	case "buy", "sell":
		return manual(ctx, bot, cmd, params)
	case "buy-all", "sell-all":
		if len(params) != 1 {
			return fmt.Errorf("usage: %s ASSET", cmd)
		}
		var (
			res domain.TradeResult
			err error
		)
		if cmd == "buy-all" {
			res, err = bot.Engine.AutoBuyAll(ctx, params[0])
		} else {
			res, err = bot.Engine.AutoSellAll(ctx, params[0])
		}
		if err != nil {
			return err
		}
		fmt.Println(res.Message())
		return nil
	case "run":
		if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	default:
		sc, err := strategyFromArgs(cmd, params)
		if err != nil {
			return err
		}
		report, err := bot.RunStrategy(ctx, sc)
		if err != nil {
			return err
		}
		printReport(report)
		return nil
	}
}

func manual(ctx context.Context, bot *internal.Bot, cmd string, params []string) error {
	if len(params) < 2 || len(params) > 3 {
		return fmt.Errorf("usage: %s ASSET AMOUNT [RATE]", cmd)
	}
	nums, err := decimals(params[1:])
	if err != nil {
		return err
	}
	asset, amount := params[0], nums[0]

	var res domain.TradeResult
	switch {
	case cmd == "buy" && len(nums) == 2:
		res, err = bot.Engine.AutoBuyAtRate(ctx, asset, amount, nums[1])
	case cmd == "buy":
		res, err = bot.Engine.AutoBuy(ctx, asset, amount)
	case len(nums) == 2:
		res, err = bot.Engine.AutoSellAtRate(ctx, asset, amount, nums[1])
	default:
		res, err = bot.Engine.AutoSell(ctx, asset, amount)
	}
	if err != nil {
		return err
	}
	fmt.Println(res.Message())
	return nil
}

// strategyFromArgs maps a strategy command and its thresholds to a strategy config.
func strategyFromArgs(cmd string, params []string) (config.StrategyConfig, error) {
	want := map[string]int{
		strategy.StrategySellProfit:    1,
		strategy.StrategySellInvestors: 1,
		strategy.StrategyBuyDip:        2,
		strategy.StrategyBuyInvestors:  1,
		strategy.StrategyBuyBest:       0,
		strategy.StrategyBuyWorst:      0,
	}
	n, ok := want[cmd]
	if !ok {
		return config.StrategyConfig{}, fmt.Errorf("unknown command %q", cmd)
	}
	if len(params) != n {
		return config.StrategyConfig{}, fmt.Errorf("%s takes %d argument(s), got %d", cmd, n, len(params))
	}
	nums, err := decimals(params)
	if err != nil {
		return config.StrategyConfig{}, err
	}

	sc := config.StrategyConfig{Name: cmd}
	switch cmd {
	case strategy.StrategySellProfit:
		sc.Amount = nums[0]
	case strategy.StrategySellInvestors:
		sc.Percent = nums[0]
	case strategy.StrategyBuyDip:
		sc.Percent, sc.Rate = nums[0], nums[1]
	case strategy.StrategyBuyInvestors:
		sc.Rate = nums[0]
	}
	return sc, nil
}

func decimals(raw []string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, 0, len(raw))
	for _, s := range raw {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", s)
		}
		out = append(out, d)
	}
	return out, nil
}

func checkpoints(bot *internal.Bot, params []string) error {
	cps := bot.Store.Checkpoints()
	if len(params) == 2 {
		switch params[0] {
		case "update":
			if _, err := cps.Update(params[1], false); err != nil {
				return err
			}
		case "remove":
			cps.Remove(params[1])
		default:
			return fmt.Errorf("unknown checkpoints action %q", params[0])
		}
	} else if len(params) != 0 {
		return errors.New("usage: checkpoints [update|remove ASSET]")
	}

	changes := cps.Changes()
	assets := make([]string, 0, len(changes))
	for asset := range changes {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	unit := bot.Store.FiatCurrencies().Primary()
	if cps.Basis() == domain.CheckpointBasisBTC {
		unit = domain.BTC
	}
	t := table.New().Headers("ASSET", "INITIAL "+unit, "CURRENT "+unit, "CHANGE %")
	for _, asset := range assets {
		cp := changes[asset]
		t.Row(asset, cp.InitialPrice.StringFixed(8), cp.CurrentPrice.StringFixed(8), cp.Percent.StringFixed(2))
	}
	fmt.Println(t.Render())
	return nil
}

func printValue(bot *internal.Bot) error {
	values, err := bot.Value()
	if err != nil {
		return err
	}
	primary := values[0]

	assets := make([]string, 0, len(primary.Values))
	for asset := range primary.Values {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	balances := bot.Store.Balances()
	t := table.New().Headers("ASSET", "BALANCE", "VALUE "+primary.Currency)
	for _, asset := range assets {
		t.Row(asset, balances[asset].String(), primary.Values[asset].StringFixed(2))
	}
	fmt.Println(t.Render())

	for _, v := range values {
		fmt.Printf("Total: %s %s\n", v.Total.StringFixed(2), v.Currency)
	}
	for _, s := range primary.Skipped {
		fmt.Printf("Not valued: %s\n", s.Error())
	}
	return nil
}

func printRatings(bot *internal.Bot) error {
	current := bot.Store.CurrentRatings()
	initial := bot.Store.InitialRatings()

	assets := make([]string, 0, len(initial))
	for asset := range initial {
		assets = append(assets, asset)
	}
	for asset := range current {
		if _, ok := initial[asset]; !ok {
			assets = append(assets, asset)
		}
	}
	sort.Strings(assets)

	t := table.New().Headers("ASSET", "TARGET %", "CURRENT %", "INVESTMENT RATE")
	hundred := decimal.NewFromInt(100)
	for _, asset := range assets {
		rate := "-"
		if r, ok := domain.InvestmentRate(current, initial, asset); ok {
			rate = r.StringFixed(2)
		}
		t.Row(asset, initial[asset].Mul(hundred).StringFixed(2), current[asset].Mul(hundred).StringFixed(2), rate)
	}
	fmt.Println(t.Render())
	return nil
}

func printHistory(bot *internal.Bot) error {
	records, err := bot.Journal.TradesAfter(0)
	if err != nil {
		return err
	}
	t := table.New().Headers("#", "TIME", "EXCHANGE", "STRATEGY", "TRADE")
	for _, r := range records {
		t.Row(fmt.Sprint(r.Index), r.Entry.Time.Format(time.RFC3339), r.Entry.Exchange, r.Entry.Strategy, r.Entry.Result.Message())
	}
	fmt.Println(t.Render())
	return nil
}

func printReport(report strategy.Report) {
	for _, r := range report.Results {
		fmt.Println(r.Message())
	}
	for _, f := range report.Failures {
		fmt.Printf("Failed: %s\n", f.Error())
	}
	for _, s := range report.Skipped {
		fmt.Printf("Skipped: %s\n", s.Error())
	}
	if len(report.Results)+len(report.Failures) == 0 {
		fmt.Printf("%s: nothing to trade\n", report.Strategy)
	}
}
