package ports

import "context"

// HealthChecker reports the reachability of one external dependency.
// The /health endpoint aggregates one checker per backing store.
type HealthChecker interface {
	// Ping verifies connectivity; nil means healthy.
	Ping(ctx context.Context) error
	// Name identifies the dependency in the health response.
	Name() string
}
