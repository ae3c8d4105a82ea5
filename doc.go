// Package redistx implements client-side MULTI/EXEC transactions for
// Redis-style servers: command queueing over an existing connection,
// optimistic locking with WATCH, automatic replay of aborted transactions
// and reconciliation of the EXEC reply array with the queued commands.
//
// The package does not talk to the network itself; it drives a Client
// collaborator (see the client subpackage for a TCP implementation).
//
// Fluent style:
//
//	tx, _ := redistx.New(c, redistx.Options{})
//	tx.Do(ctx, "set", "name", "redistx")
//	tx.Do(ctx, "incr", "visits")
//	results, err := tx.Exec(ctx)
//
// Block style with watched keys and automatic retry:
//
//	tx, _ := redistx.New(c, redistx.Options{Watch: []string{"balance"}, Retries: 3})
//	results, err := tx.Execute(ctx, func(ctx context.Context, tx *redistx.Tx) error {
//		_, err := tx.Do(ctx, "decr", "balance")
//		return err
//	})
package redistx
