package artifacts

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kuitang/shop-e2e/internal/errs"
)

// MultiStore saves every artifact to several stores concurrently.
type MultiStore struct {
	stores []Store
}

// NewMultiStore fans out to stores. The first store is the primary: its
// location is what Save returns.
func NewMultiStore(stores ...Store) *MultiStore {
	return &MultiStore{stores: stores}
}

// Save writes data to every store and returns the primary's location. Any
// store failing fails the whole save.
func (m *MultiStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	if len(m.stores) == 0 {
		return "", errs.New(errs.Configuration, "multi store has no stores")
	}

	locations := make([]string, len(m.stores))
	g, gctx := errgroup.WithContext(ctx)
	for i, store := range m.stores {
		g.Go(func() error {
			loc, err := store.Save(gctx, name, data)
			if err != nil {
				return err
			}
			locations[i] = loc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errs.CodeOf(err) == errs.Internal {
			return "", errs.Wrap(errs.IO, "save artifact", err)
		}
		return "", err
	}
	return locations[0], nil
}
