package behavior

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/voundbrand/go-authority/core"
)

// TypePricing is the descriptor type of the cart pricing behavior.
const TypePricing = "pricing"

// Quote is a fully priced cart. All amounts are integer minor units; every
// division rounds half up so the same cart always quotes the same total.
type Quote struct {
	Subtotal int64      `json:"subtotal"`
	Discount int64      `json:"discount"`
	Tax      int64      `json:"tax"`
	Total    int64      `json:"total"`
	Groups   []TaxGroup `json:"groups,omitempty"`
}

// TaxGroup aggregates the cart lines sharing one tax rate. The group carries
// its proportional share of the cart-level discount so tax applies to the
// discounted amount.
type TaxGroup struct {
	Rate     int64 `json:"rate"`
	Subtotal int64 `json:"subtotal"`
	Discount int64 `json:"discount"`
	Tax      int64 `json:"tax"`
}

// PriceCart prices a cart at the given cart-level discount percent.
//
// The discount is computed once on the grand subtotal, then apportioned to
// each tax-rate group by the group's share of that subtotal. Tax is charged
// per group on the discounted group amount. The total uses the cart-level
// discount, not the sum of the apportioned shares, so apportionment rounding
// never changes what the customer pays.
func PriceCart(cart Cart, discountPercent int64) (Quote, error) {
	if len(cart.Lines) == 0 {
		return Quote{}, fmt.Errorf("behavior: cart has no lines")
	}
	if discountPercent < 0 || discountPercent > 100 {
		return Quote{}, fmt.Errorf("behavior: discount percent %d is out of range", discountPercent)
	}

	var grand int64
	subtotals := make(map[int64]int64)
	for _, line := range cart.Lines {
		if err := line.Validate(); err != nil {
			return Quote{}, err
		}
		lineSubtotal := line.UnitPrice * line.Quantity
		grand += lineSubtotal
		subtotals[line.TaxRate] += lineSubtotal
	}

	discount := roundHalfUp(grand*discountPercent, 100)

	rates := make([]int64, 0, len(subtotals))
	for rate := range subtotals {
		rates = append(rates, rate)
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i] < rates[j] })

	quote := Quote{
		Subtotal: grand,
		Discount: discount,
		Groups:   make([]TaxGroup, 0, len(rates)),
	}
	for _, rate := range rates {
		group := TaxGroup{Rate: rate, Subtotal: subtotals[rate]}
		if discount > 0 && grand > 0 {
			group.Discount = roundHalfUp(group.Subtotal*discount, grand)
		}
		group.Tax = roundHalfUp((group.Subtotal-group.Discount)*rate, 100)
		quote.Tax += group.Tax
		quote.Groups = append(quote.Groups, group)
	}
	quote.Total = grand - discount + quote.Tax
	return quote, nil
}

// roundHalfUp divides numerator by denominator rounding .5 up. Inputs here
// are non-negative money amounts.
func roundHalfUp(numerator int64, denominator int64) int64 {
	if denominator <= 0 {
		return 0
	}
	return (numerator + denominator/2) / denominator
}

// PricingBehavior prices the run's cart. A real run records a transaction
// and emits an analytics event; a dry run returns the same numbers and
// writes nothing.
type PricingBehavior struct {
	transactions TransactionStore
	tasks        core.TaskStore
	logger       core.Logger
	now          func() time.Time
}

func NewPricingBehavior(transactions TransactionStore, tasks core.TaskStore, logger core.Logger) *PricingBehavior {
	return &PricingBehavior{
		transactions: transactions,
		tasks:        tasks,
		logger:       glog.Ensure(logger),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (b *PricingBehavior) Type() string { return TypePricing }

func (b *PricingBehavior) Execute(ctx context.Context, run RunContext, config map[string]any) Result {
	if run.Cart == nil || len(run.Cart.Lines) == 0 {
		return Result{Type: TypePricing, Error: "cart is required"}
	}
	discountPercent, err := discountPercentFor(config, run.DiscountCode)
	if err != nil {
		return Result{Type: TypePricing, Error: err.Error()}
	}
	quote, err := PriceCart(*run.Cart, discountPercent)
	if err != nil {
		return Result{Type: TypePricing, Error: err.Error()}
	}

	data := quoteData(quote)
	if run.DryRun {
		return Result{
			Type:    TypePricing,
			Success: true,
			Message: fmt.Sprintf("priced %d lines for %d (dry run)", len(run.Cart.Lines), quote.Total),
			Data:    data,
		}
	}

	if b.transactions == nil {
		return Result{Type: TypePricing, Error: "transaction store is not configured"}
	}
	transaction, err := b.transactions.Create(ctx, CreateTransactionInput{
		OrgID:      run.OrgID,
		WorkflowID: run.WorkflowID,
		Subtotal:   quote.Subtotal,
		Discount:   quote.Discount,
		Tax:        quote.Tax,
		Total:      quote.Total,
		Lines:      run.Cart.Lines,
	})
	if err != nil {
		return Result{Type: TypePricing, Error: fmt.Sprintf("record transaction: %v", err)}
	}
	data["transaction_id"] = transaction.ID
	b.enqueuePricedEvent(ctx, run, quote, transaction.ID)

	return Result{
		Type:    TypePricing,
		Success: true,
		Message: fmt.Sprintf("priced %d lines for %d", len(run.Cart.Lines), quote.Total),
		Data:    data,
	}
}

// enqueuePricedEvent emits the analytics outbox event for a recorded
// transaction. Best effort: losing the event never voids the transaction.
func (b *PricingBehavior) enqueuePricedEvent(ctx context.Context, run RunContext, quote Quote, transactionID string) {
	if b.tasks == nil {
		return
	}
	_, err := b.tasks.Enqueue(ctx, core.EnqueueTaskInput{
		Kind:           core.TaskKindAnalyticsEvent,
		IdempotencyKey: "workflow_priced:" + transactionID,
		Payload: map[string]any{
			"event":          "workflow_priced",
			"org_id":         run.OrgID,
			"workflow_id":    run.WorkflowID,
			"transaction_id": transactionID,
			"total":          quote.Total,
		},
	})
	if err != nil {
		b.logger.Error("enqueue pricing analytics event failed",
			"org_id", run.OrgID,
			"transaction_id", transactionID,
			"error", err,
		)
	}
}

// discountPercentFor resolves the run's discount code against the behavior
// config. Codes match case-insensitively. An empty code means no discount; a
// code the config does not know is an error, silently charging full price
// against a typo is worse than failing the behavior.
func discountPercentFor(config map[string]any, code string) (int64, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return 0, nil
	}
	codes, _ := config["discount_codes"].(map[string]any)
	for name, value := range codes {
		if strings.ToUpper(strings.TrimSpace(name)) != code {
			continue
		}
		percent, ok := configInt64(value)
		if !ok || percent < 0 || percent > 100 {
			return 0, fmt.Errorf("discount code %q has an invalid percent", code)
		}
		return percent, nil
	}
	return 0, fmt.Errorf("discount code %q is not configured", code)
}

func quoteData(quote Quote) map[string]any {
	groups := make([]map[string]any, 0, len(quote.Groups))
	for _, group := range quote.Groups {
		groups = append(groups, map[string]any{
			"rate":     group.Rate,
			"subtotal": group.Subtotal,
			"discount": group.Discount,
			"tax":      group.Tax,
		})
	}
	return map[string]any{
		"subtotal": quote.Subtotal,
		"discount": quote.Discount,
		"tax":      quote.Tax,
		"total":    quote.Total,
		"groups":   groups,
	}
}

var _ Behavior = (*PricingBehavior)(nil)
