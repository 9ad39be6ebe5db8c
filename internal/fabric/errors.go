package fabric

import (
	"errors"
	"fmt"
)

// EmptyChainError means the role has no models behind it. Its message
// is part of the tool-facing contract and is returned inline to
// callers.
type EmptyChainError struct {
	Role string
}

func (e *EmptyChainError) Error() string {
	return fmt.Sprintf("ERROR: No models defined for role '%s' in YAML.", e.Role)
}

// BudgetExceededError means every non-skipped attempt in the chain was
// vetoed by the budget manager. Any genuine provider failure in the
// chain yields ErrAllModelsFailed instead, so callers can tell "budget
// is blocking everything" from "the fleet is down".
type BudgetExceededError struct {
	Reason string
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("BUDGET_EXCEEDED: %s. Configure local models as fallback.", e.Reason)
}

// ErrAllModelsFailed means every model in the chain raised or returned
// empty text.
var ErrAllModelsFailed = errors.New("all models failed")
