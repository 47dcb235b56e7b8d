package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/urbix/urbix-etl/internal/store"
)

// openStore connects to the configured backend and ensures the schema. The
// caller closes the returned store.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.EnsureSchema(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "ensure schema")
	}
	return st, nil
}
