package setup

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/vadiminshakov/calculator/internal/domain"
)

var orderStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(highlight).
	Padding(0, 1)

// PromptConfirmer asks on the terminal before every order.
type PromptConfirmer struct{}

// Confirm shows the order and waits for a yes or no.
func (PromptConfirmer) Confirm(ctx context.Context, order domain.TradeOrder) (bool, error) {
	fmt.Println(orderStyle.Render(OrderSummary(order)))

	var ok bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Place this order?").
				Affirmative("Place").
				Negative("Skip").
				Value(&ok),
		),
	).RunWithContext(ctx)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// OrderSummary describes an order for the confirmation prompt.
func OrderSummary(order domain.TradeOrder) string {
	price := "market price"
	if order.Mode == domain.RateModeLimit {
		price = fmt.Sprintf("%s %s", order.Rate.String(), order.Pair().To)
	}
	return fmt.Sprintf("%s %s %s\nat %s\nclient id %s",
		order.Side.String(), order.Amount.String(), order.Asset, price, order.ID)
}
