package fetch

import "context"

// OrderLineFetcher retrieves the current open order line snapshot.
type OrderLineFetcher interface {
	FetchOrderLines(ctx context.Context) ([]OrderLine, error)
}

// RoutePlanFetcher retrieves the current route plan snapshot.
type RoutePlanFetcher interface {
	FetchRoutePlans(ctx context.Context) ([]RoutePlan, error)
}

// OnhandFetcher retrieves the current onhand inventory snapshot.
type OnhandFetcher interface {
	FetchOnhand(ctx context.Context) ([]OnhandItem, error)
}
