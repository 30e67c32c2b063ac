package writer

import (
	"context"
	"errors"
	"fmt"
)

// Transaction runs a set of operations as a unit. If one fails, the ones
// already executed are reverted in reverse order.
type Transaction struct {
	operations []Operation
	committed  bool
}

// NewTransaction creates an empty transaction.
func NewTransaction() *Transaction {
	return &Transaction{
		operations: make([]Operation, 0),
	}
}

// Add stages an operation (doesn't run it yet).
func (t *Transaction) Add(op Operation) {
	t.operations = append(t.operations, op)
}

// Len returns the number of staged operations.
func (t *Transaction) Len() int {
	return len(t.operations)
}

// Commit executes every staged operation in order.
func (t *Transaction) Commit(ctx context.Context) error {
	if t.committed {
		return fmt.Errorf("transaction already committed")
	}

	done := make([]Operation, 0, len(t.operations))
	for _, op := range t.operations {
		if err := op.Execute(ctx); err != nil {
			if rbErr := rollback(done); rbErr != nil {
				return errors.Join(fmt.Errorf("%s: %w", op.Description(), err), fmt.Errorf("rollback: %w", rbErr))
			}
			return fmt.Errorf("%s: %w", op.Description(), err)
		}
		done = append(done, op)
	}

	t.committed = true
	return nil
}

// Rollback reverts every staged operation. It does nothing once Commit has
// succeeded, so it is safe to defer.
func (t *Transaction) Rollback() error {
	if t.committed {
		return nil
	}
	return rollback(t.operations)
}

func rollback(ops []Operation) error {
	var errs []error
	for i := len(ops) - 1; i >= 0; i-- {
		r, ok := ops[i].(Reverter)
		if !ok {
			continue
		}
		if err := r.Revert(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
