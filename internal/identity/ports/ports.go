package ports

import (
	"context"

	id "unikyc/pkg/domain"
)

// NameService is the external name registry.
//
// ResolveForward returns ok=false when the label has no forward record.
// ResolveBackward returns every reverse name registered for an address,
// possibly none.
type NameService interface {
	ResolveForward(ctx context.Context, label string) (id.Address, bool, error)
	ResolveBackward(ctx context.Context, addr id.Address) ([]string, error)
}
