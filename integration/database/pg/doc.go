// Package pg provides a PostgreSQL-backed implementation of the session
// store contract.
//
// It exists as the compatibility path for deployments that keep sessions in
// the relational database instead of moving to a key-value backend. Rows
// live in a sessions(session_key, session_value, session_expiry) table with
// a btree index on session_expiry for the reclamation scan.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	store := pg.NewStore(pool)
//	_ = store.EnsureTable(ctx)
package pg
