package port

import "context"

// Transactor runs fn inside a single database transaction. Repositories
// called with the derived context participate in that transaction. The
// identity service uses separate WithinTx calls where a side effect must
// commit independently of the caller's outcome (failed-attempt counters).
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
