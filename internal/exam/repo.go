package exam

import "context"

// Store holds test definitions keyed by test id.
type Store interface {
	// Save validates d and replaces whatever is stored under d.TestID.
	Save(ctx context.Context, d Definition) error
	// Load returns ok=false when no definition exists for testID; err is
	// reserved for backend failures and undecodable stored values.
	Load(ctx context.Context, testID string) (d Definition, ok bool, err error)
}
