package repositories

import "context"

// Id generator domains. Each domain is an independent counter.
const (
	IDDomainDocuments = "documents"
)

// IDGenerator allocates identifiers. Implementations must be safe under
// concurrent callers and must not enlist in the caller's transaction: an id
// is burned even when the surrounding save rolls back.
type IDGenerator interface {
	NextID(ctx context.Context, domain string) (int64, error)
}
