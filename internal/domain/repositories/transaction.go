package repositories

import "context"

// TxFn is a function that runs within a transaction
type TxFn func(ctx context.Context) error

// TransactionManager handles database transactions.
type TransactionManager interface {
	// ExecTx executes a function within a transaction. Commit hooks
	// registered through OnCommit inside fn run after a successful commit
	// and are discarded on rollback.
	ExecTx(ctx context.Context, fn TxFn) error
}

// hookKey is the context key for the per-transaction commit hook list.
type hookKeyType string

const hookKey hookKeyType = "tx_commit_hooks"

// CommitHooks collects callbacks to run after the surrounding transaction
// commits. The blob store is not covered by the metadata transaction, so
// physical blob deletions are parked here and flushed only once the
// metadata they referenced is gone for sure.
type CommitHooks struct {
	hooks []func()
}

// Add appends a hook. Hooks run in registration order.
func (c *CommitHooks) Add(fn func()) {
	c.hooks = append(c.hooks, fn)
}

// Run executes all registered hooks.
func (c *CommitHooks) Run() {
	for _, fn := range c.hooks {
		fn()
	}
}

// WithCommitHooks stores a hook list in the context.
func WithCommitHooks(ctx context.Context, hooks *CommitHooks) context.Context {
	return context.WithValue(ctx, hookKey, hooks)
}

// OnCommit registers fn to run after the surrounding transaction commits.
// Returns false when no transaction scope is present, in which case the
// caller must run the work itself.
func OnCommit(ctx context.Context, fn func()) bool {
	hooks, ok := ctx.Value(hookKey).(*CommitHooks)
	if !ok {
		return false
	}
	hooks.Add(fn)
	return true
}
