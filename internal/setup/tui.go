package setup

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/calculator/config"
	"github.com/vadiminshakov/calculator/internal/domain"
)

// DefaultConfigFile file the wizard writes to when no path is given.
const DefaultConfigFile = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// answers raw wizard input.
type answers struct {
	exchange        string
	primaryFiat     string
	secondaryFiat   string
	basis           string
	confirmTrades   bool
	spendPercent    string
	refreshInterval string
	strategies      []string
	schedule        string
	profitAmount    string
	percent         string
	rate            string
	logFile         string
}

func defaultAnswers() answers {
	return answers{
		exchange:        "simulate",
		primaryFiat:     domain.EUR,
		secondaryFiat:   domain.USD,
		basis:           string(domain.CheckpointBasisFiat),
		spendPercent:    "100",
		refreshInterval: "1m",
		schedule:        "@every 1h",
		profitAmount:    "100",
		percent:         "110",
		rate:            "90",
	}
}

func screen(step string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("CALCULATOR CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(step))
}

// RunTUI launches the terminal configuration wizard and writes the result to path.
func RunTUI(path string) error {
	if path == "" {
		path = DefaultConfigFile
	}
	a := defaultAnswers()

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("CALCULATOR CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Let's set up your portfolio.\n"))

	fmt.Println(stepStyle.Render("STEP 1: EXCHANGE"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select Exchange").
				Options(
					huh.NewOption("Binance", "binance"),
					huh.NewOption("Bybit", "bybit"),
					huh.NewOption("Hyperliquid", "hyperliquid"),
					huh.NewOption("Simulation", "simulate"),
				).
				Value(&a.exchange),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("STEP 2: CURRENCIES")
	fiatOptions := huh.NewOptions(domain.EUR, domain.USD, domain.GBP, domain.JPY, domain.CNY)
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Primary fiat currency").
				Description("Used for values and profit targets").
				Options(fiatOptions...).
				Value(&a.primaryFiat),
			huh.NewSelect[string]().
				Title("Secondary fiat currency").
				Options(fiatOptions...).
				Value(&a.secondaryFiat),
			huh.NewSelect[string]().
				Title("Checkpoint prices in").
				Options(
					huh.NewOption("Primary fiat", string(domain.CheckpointBasisFiat)),
					huh.NewOption("BTC", string(domain.CheckpointBasisBTC)),
				).
				Value(&a.basis),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("STEP 3: TRADING")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Confirm every order before it is placed?").
				Value(&a.confirmTrades),
			huh.NewInput().
				Title("BTC balance % spent by buy-best / buy-worst").
				Description("Percentage of BTC balance (1-100)").
				Value(&a.spendPercent).
				Validate(validatePercent),
			huh.NewInput().
				Title("Ticker refresh interval").
				Description("Duration string (e.g. 30s, 1m, 5m)").
				Value(&a.refreshInterval).
				Validate(validateDuration),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("STEP 4: STRATEGIES")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Strategies to run on a schedule").
				Options(
					huh.NewOption("Sell profit in fiat", "sell-profit"),
					huh.NewOption("Sell by investment rate", "sell-investors"),
					huh.NewOption("Buy the dip", "buy-dip"),
					huh.NewOption("Buy by investment rate", "buy-investors"),
					huh.NewOption("Buy the best", "buy-best"),
					huh.NewOption("Buy the worst", "buy-worst"),
				).
				Value(&a.strategies),
			huh.NewInput().
				Title("Schedule").
				Description("Cron with seconds or @every (e.g. @every 1h)").
				Value(&a.schedule),
		),
	).Run()
	if err != nil {
		return err
	}

	if len(a.strategies) > 0 {
		screen("STEP 5: THRESHOLDS")
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Profit to take").
					Description("Gain in primary fiat that triggers sell-profit").
					Value(&a.profitAmount).
					Validate(validatePositive),
				huh.NewInput().
					Title("Percent threshold").
					Description("Investment rate for sell-investors, price drop for buy-dip").
					Value(&a.percent).
					Validate(validatePositive),
				huh.NewInput().
					Title("Investment rate threshold").
					Description("Buy when current/target weight is below this % (e.g. 90)").
					Value(&a.rate).
					Validate(validatePositive),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	screen("STEP 6: LOGGING")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Log file").
				Description("Leave empty to log to the terminal only").
				Value(&a.logFile),
		),
	).Run()
	if err != nil {
		return err
	}

	conf, err := a.config()
	if err != nil {
		return err
	}

	screen("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Exchange: %s\nFiat: %s/%s\nCheckpoints: %s\nConfirm orders: %t\nStrategies: %s\n",
		conf.Exchange, conf.FiatCurrencies.Primary(), conf.FiatCurrencies.Secondary(),
		conf.CheckpointBasis, conf.TradingWithConfirmation, strings.Join(a.strategies, ", "),
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	var save bool
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&save),
		),
	).Run()
	if err != nil {
		return err
	}
	if !save {
		return fmt.Errorf("setup cancelled by user")
	}

	if err := Save(path, conf); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s", path)))
	return nil
}

// config turns the answers into a validated configuration.
func (a answers) config() (config.Config, error) {
	interval, err := time.ParseDuration(a.refreshInterval)
	if err != nil {
		return config.Config{}, err
	}

	tmp := config.ConfigTmp{
		Exchange:                a.exchange,
		FiatCurrencies:          []string{a.primaryFiat, a.secondaryFiat},
		CheckpointBasis:         a.basis,
		TradingWithConfirmation: a.confirmTrades,
		SpendPercent:            a.spendPercent,
		RefreshInterval:         interval,
		Log:                     config.LogConfigTmp{File: a.logFile},
	}

	for _, name := range a.strategies {
		st := config.StrategyTmp{Name: name, Schedule: a.schedule}
		switch name {
		case "sell-profit":
			st.Amount = a.profitAmount
		case "sell-investors":
			st.Percent = a.percent
		case "buy-dip":
			st.Percent = a.percent
			st.Rate = a.rate
		case "buy-investors":
			st.Rate = a.rate
		}
		tmp.Strategies = append(tmp.Strategies, st)
	}

	return config.Parse(tmp)
}

// Save writes the configuration as YAML.
func Save(path string, conf config.Config) error {
	data, err := yaml.Marshal(conf.Tmp())
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

func validatePercent(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.LessThan(decimal.NewFromInt(1)) || d.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("must be between 1 and 100")
	}
	return nil
}

func validatePositive(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if !d.IsPositive() {
		return fmt.Errorf("must be greater than zero")
	}
	return nil
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}
