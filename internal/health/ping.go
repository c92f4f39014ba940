package health

import "context"

// HealthPinger is implemented by dependencies that can verify connectivity.
type HealthPinger interface {
	HealthPing(ctx context.Context) error
}
