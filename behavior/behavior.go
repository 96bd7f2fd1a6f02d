// Package behavior runs ordered, configurable workflow rule chains. Each
// behavior computes one unit of workflow logic and reports a structured
// result; the engine owns ordering, isolation, and the chain's failure
// policy. A dry run computes everything a real run would and writes nothing.
package behavior

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrChainNotFound reports that no chain is configured for an org and
// workflow pair.
var ErrChainNotFound = errors.New("behavior: chain not found")

// Policy decides what a behavior failure does to the rest of the chain.
type Policy string

const (
	// PolicyContinue records the failure and keeps executing.
	PolicyContinue Policy = "continue"
	// PolicyRollback stops the chain at the first failure.
	PolicyRollback Policy = "rollback"
	// PolicyNotify keeps executing and enqueues a failure notice task.
	PolicyNotify Policy = "notify"
)

func (p Policy) Valid() bool {
	switch p {
	case PolicyContinue, PolicyRollback, PolicyNotify:
		return true
	default:
		return false
	}
}

// Descriptor configures one behavior instance inside a chain. Priority
// orders execution ascending; equal priorities keep their declared order.
type Descriptor struct {
	Type     string         `json:"type"`
	Enabled  bool           `json:"enabled"`
	Priority int            `json:"priority"`
	Config   map[string]any `json:"config,omitempty"`
}

func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.Type) == "" {
		return fmt.Errorf("behavior: descriptor type is required")
	}
	return nil
}

// Chain is the per-organization, per-workflow behavior configuration.
type Chain struct {
	ID            string
	OrgID         string
	WorkflowID    string
	ErrorHandling Policy
	Behaviors     []Descriptor
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (c Chain) Validate() error {
	if strings.TrimSpace(c.OrgID) == "" {
		return fmt.Errorf("behavior: chain org id is required")
	}
	if strings.TrimSpace(c.WorkflowID) == "" {
		return fmt.Errorf("behavior: chain workflow id is required")
	}
	if c.ErrorHandling != "" && !c.ErrorHandling.Valid() {
		return fmt.Errorf("behavior: unknown error handling policy %q", c.ErrorHandling)
	}
	for _, descriptor := range c.Behaviors {
		if err := descriptor.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Result is the outcome contract every behavior reports. A failed behavior
// fills Error and leaves Success false; it never panics the chain.
type Result struct {
	Type    string         `json:"type"`
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// RunContext carries the runtime inputs of one chain execution.
type RunContext struct {
	OrgID        string
	UserID       string
	WorkflowID   string
	DryRun       bool
	Cart         *Cart
	DiscountCode string
}

// Cart is the pricing input. All money is integer minor units.
type Cart struct {
	Lines []LineItem `json:"lines"`
}

type LineItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name,omitempty"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int64  `json:"quantity"`
	TaxRate   int64  `json:"tax_rate"`
}

func (l LineItem) Validate() error {
	if l.UnitPrice < 0 {
		return fmt.Errorf("behavior: line %q has a negative unit price", l.ProductID)
	}
	if l.Quantity <= 0 {
		return fmt.Errorf("behavior: line %q has a non-positive quantity", l.ProductID)
	}
	if l.TaxRate < 0 || l.TaxRate > 100 {
		return fmt.Errorf("behavior: line %q has an invalid tax rate", l.ProductID)
	}
	return nil
}

// Behavior is one executable chain member. Execute reports failures inside
// the Result; returned errors do not exist in this contract.
type Behavior interface {
	Type() string
	Execute(ctx context.Context, run RunContext, config map[string]any) Result
}

// RunReport is the chain-level outcome: per-behavior results in execution
// order, plus whether a rollback policy halted the chain early.
type RunReport struct {
	Results []Result `json:"results"`
	Halted  bool     `json:"halted"`
}

func (r RunReport) Failures() int {
	failures := 0
	for _, result := range r.Results {
		if !result.Success {
			failures++
		}
	}
	return failures
}

// ChainStore persists chain configurations per organization and workflow.
type ChainStore interface {
	GetChain(ctx context.Context, orgID string, workflowID string) (Chain, error)
	SaveChain(ctx context.Context, chain Chain) (Chain, error)
}

// Transaction is the priced-cart record a real pricing run writes.
type Transaction struct {
	ID         string
	OrgID      string
	WorkflowID string
	Subtotal   int64
	Discount   int64
	Tax        int64
	Total      int64
	Lines      []LineItem
	CreatedAt  time.Time
}

type CreateTransactionInput struct {
	OrgID      string
	WorkflowID string
	Subtotal   int64
	Discount   int64
	Tax        int64
	Total      int64
	Lines      []LineItem
}

type TransactionStore interface {
	Create(ctx context.Context, in CreateTransactionInput) (Transaction, error)
	ListByOrg(ctx context.Context, orgID string) ([]Transaction, error)
}

func configBool(config map[string]any, key string) bool {
	if len(config) == 0 {
		return false
	}
	switch typed := config[key].(type) {
	case bool:
		return typed
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(typed))
		return err == nil && parsed
	case float64:
		return typed != 0
	case int:
		return typed != 0
	case json.Number:
		parsed, err := typed.Int64()
		return err == nil && parsed != 0
	default:
		return false
	}
}

func configString(config map[string]any, key string) string {
	if len(config) == 0 {
		return ""
	}
	value, ok := config[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func configStrings(config map[string]any, key string) []string {
	if len(config) == 0 {
		return nil
	}
	switch typed := config[key].(type) {
	case []string:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			trimmed := strings.TrimSpace(fmt.Sprint(item))
			if trimmed != "" && trimmed != "<nil>" {
				out = append(out, trimmed)
			}
		}
		return out
	default:
		return nil
	}
}

func configInt64(value any) (int64, bool) {
	switch typed := value.(type) {
	case int:
		return int64(typed), true
	case int64:
		return typed, true
	case float64:
		return int64(typed), true
	case json.Number:
		parsed, err := typed.Int64()
		if err != nil {
			return 0, false
		}
		return parsed, true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
