package port

import "context"

// EmailGuard holds short-lived reservations on emails being created so that
// concurrent creates across replicas fail fast. The store's unique
// constraint stays authoritative.
type EmailGuard interface {
	// Reserve returns false if the email is already reserved.
	Reserve(ctx context.Context, email string) (bool, error)

	Release(ctx context.Context, email string) error
}
