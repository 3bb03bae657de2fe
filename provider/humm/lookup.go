package humm

import (
	"context"
	"errors"

	"github.com/mstgnz/hummpay/infra/store"
)

// OrderLookupStrategy resolves an order from a provider tracking id.
// A nil order with a nil error means no match.
type OrderLookupStrategy interface {
	LookupOrder(ctx context.Context, externalID string) (*store.Order, error)
}

// OrderLookupFunc adapts a function to OrderLookupStrategy.
type OrderLookupFunc func(ctx context.Context, externalID string) (*store.Order, error)

func (f OrderLookupFunc) LookupOrder(ctx context.Context, externalID string) (*store.Order, error) {
	return f(ctx, externalID)
}

// AttributeLookup matches the tracking id saved on the order when the payment was initiated.
func AttributeLookup(p Platform) OrderLookupStrategy {
	return OrderLookupFunc(func(ctx context.Context, externalID string) (*store.Order, error) {
		ids, err := p.FindEntityIDsByAttribute(ctx, store.KeyGroupOrder, TrackingIDAttribute, externalID)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return nil, nil
		}
		return ignoreNotFound(p.GetOrderByID(ctx, ids[0]))
	})
}

// CaptureTransactionLookup matches the order's capture transaction id.
func CaptureTransactionLookup(p Platform) OrderLookupStrategy {
	return OrderLookupFunc(func(ctx context.Context, externalID string) (*store.Order, error) {
		return ignoreNotFound(p.FindOrderByCaptureTransactionID(ctx, externalID))
	})
}

// DefaultOrderLookups returns the strategies in the order they are tried.
func DefaultOrderLookups(p Platform) []OrderLookupStrategy {
	return []OrderLookupStrategy{AttributeLookup(p), CaptureTransactionLookup(p)}
}

// lookupOrder returns the first match. A soft deleted match yields nil
// without consulting the remaining strategies.
func lookupOrder(ctx context.Context, strategies []OrderLookupStrategy, externalID string) (*store.Order, error) {
	for _, strategy := range strategies {
		order, err := strategy.LookupOrder(ctx, externalID)
		if err != nil {
			return nil, err
		}
		if order == nil {
			continue
		}
		if order.Deleted {
			return nil, nil
		}
		return order, nil
	}
	return nil, nil
}

func ignoreNotFound(order *store.Order, err error) (*store.Order, error) {
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return order, err
}
