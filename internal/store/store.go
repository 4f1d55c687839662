package store

import (
	"context"

	"housemarket/internal/market"
)

// Store persists the house, user and portfolio registries.
type Store interface {
	Load(ctx context.Context) (market.Snapshot, error)
	Save(ctx context.Context, snap market.Snapshot) error
	// SaveUsers overwrites only the user registry.
	SaveUsers(ctx context.Context, users []market.UserRecord) error
}
