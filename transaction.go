package redistx

import (
	"context"

	"github.com/tidwall/resp"
	"go.uber.org/zap"
)

// Block is a user-supplied transaction body. It receives the transaction it
// runs inside and queues commands on it; Execute replays it from scratch on
// every retry, so it must not carry side effects that cannot be repeated.
type Block func(ctx context.Context, tx *Tx) error

// Tx drives one MULTI/EXEC transaction over an existing client connection.
// It queues commands, tracks the protocol phase and reconciles the EXEC
// reply array with the queued commands. A Tx is not safe for concurrent use.
type Tx struct {
	client   Client
	canWatch bool
	opts     Options
	state    txState
	pending  []Command
	log      *zap.Logger
}

// New validates that the client can run transactions and returns a fresh
// one. The connection must be a single-node connection and the command
// profile must support MULTI, EXEC and DISCARD. WATCH support is recorded
// but only enforced when Watch or Unwatch is actually called.
func New(c Client, opts Options) (*Tx, error) {
	if c.Connection().Aggregated() {
		return nil, &CapabilityError{Reason: "cannot run a MULTI/EXEC transaction over an aggregate connection"}
	}
	if !c.Profile().Supports("MULTI", "EXEC", "DISCARD") {
		return nil, &CapabilityError{Reason: "MULTI, EXEC and DISCARD are not supported by the current profile"}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	tx := &Tx{
		client:   c,
		canWatch: c.Profile().Supports("WATCH", "UNWATCH"),
		opts:     opts,
		log:      log,
	}
	tx.reset()
	return tx, nil
}

// reset returns the transaction to its pristine state: all flags cleared and
// the pending queue empty.
func (tx *Tx) reset() {
	tx.state.reset()
	tx.pending = nil
}

// initialize is the idempotent setup run before the first command. It enters
// CAS mode and issues the configured WATCH keys when requested. MULTI is
// sent right away unless the transaction is in CAS mode; a previously
// discarded transaction always re-sends MULTI and drops CAS mode, since the
// optimistic phase ended with the discard.
func (tx *Tx) initialize(ctx context.Context) error {
	if tx.state.initialized {
		return nil
	}
	if tx.opts.CAS {
		tx.state.cas = true
	}
	if len(tx.opts.Watch) > 0 {
		if _, err := tx.Watch(ctx, tx.opts.Watch...); err != nil {
			return err
		}
	}
	discarded := tx.state.discarded
	if !tx.state.cas || discarded {
		if _, err := tx.client.Multi(ctx); err != nil {
			return err
		}
		tx.log.Debug("transaction entered MULTI")
		if discarded {
			tx.state.cas = false
		}
	}
	tx.state.discarded = false
	tx.state.initialized = true
	return nil
}

// Watch marks keys for optimistic locking. It fails once MULTI has been
// sent: the server rejects WATCH inside an open transaction.
func (tx *Tx) Watch(ctx context.Context, keys ...string) (resp.Value, error) {
	if !tx.canWatch {
		return resp.Value{}, &CapabilityError{Reason: "WATCH and UNWATCH are not supported by the current profile"}
	}
	if !tx.state.watchAllowed() {
		return resp.Value{}, &StateError{Reason: "sending WATCH after MULTI is not allowed"}
	}
	reply, err := tx.client.Watch(ctx, keys...)
	if err != nil {
		return resp.Value{}, err
	}
	tx.state.watching = true
	tx.log.Debug("watching keys", zap.Strings("keys", keys))
	return reply, nil
}

// Multi promotes the transaction out of CAS mode by sending MULTI to the
// server. On a transaction that has not initialized yet it behaves like the
// first queued command would and runs the normal initialization.
func (tx *Tx) Multi(ctx context.Context) (*Tx, error) {
	if tx.state.initialized && tx.state.cas {
		tx.state.cas = false
		if _, err := tx.client.Multi(ctx); err != nil {
			return nil, err
		}
		tx.log.Debug("transaction promoted from CAS to MULTI")
		return tx, nil
	}
	if err := tx.initialize(ctx); err != nil {
		return nil, err
	}
	return tx, nil
}

// Unwatch releases all watched keys. The UNWATCH command goes through the
// generic dispatch path, so outside CAS mode it is queued like any other
// command.
func (tx *Tx) Unwatch(ctx context.Context) (*Tx, error) {
	if !tx.canWatch {
		return nil, &CapabilityError{Reason: "WATCH and UNWATCH are not supported by the current profile"}
	}
	tx.state.watching = false
	if _, err := tx.Do(ctx, "UNWATCH"); err != nil {
		return nil, err
	}
	return tx, nil
}

// Discard abandons the transaction: UNWATCH is sent when still in the
// optimistic phase, DISCARD otherwise, and all local state is dropped. The
// discarded flag stays set so the next initialize knows a fresh MULTI is
// required. Discarding a transaction that never initialized is a no-op.
func (tx *Tx) Discard(ctx context.Context) (*Tx, error) {
	if !tx.state.initialized {
		return tx, nil
	}
	var err error
	if tx.state.cas {
		_, err = tx.client.Unwatch(ctx)
	} else {
		_, err = tx.client.Discard(ctx)
	}
	if err != nil {
		return nil, err
	}
	tx.reset()
	tx.state.discarded = true
	tx.log.Debug("transaction discarded")
	return tx, nil
}

// Do dispatches one named command through the transaction. In CAS mode the
// command runs immediately and its decoded reply is returned. Otherwise the
// server must acknowledge it with +QUEUED; the command object is appended to
// the pending queue and the transaction itself is returned for chaining.
func (tx *Tx) Do(ctx context.Context, name string, args ...string) (interface{}, error) {
	if err := tx.initialize(ctx); err != nil {
		return nil, err
	}
	cmd := tx.client.NewCommand(name, args...)
	reply, err := tx.client.Do(ctx, cmd)
	if err != nil {
		return nil, err
	}

	if tx.state.cas {
		if reply.Type() == resp.Error && tx.client.Options().RaiseErrors {
			return nil, &ServerError{Message: reply.Error().Error()}
		}
		return cmd.ParseResponse(reply), nil
	}

	if reply.Type() != resp.SimpleString || reply.String() != "QUEUED" {
		return nil, tx.protocolError("the server did not return a +QUEUED status reply")
	}
	tx.pending = append(tx.pending, cmd)
	tx.log.Debug("command queued", zap.String("command", name))
	return tx, nil
}

// Exec commits the transaction built through the fluent interface. It is
// Execute without a block.
func (tx *Tx) Exec(ctx context.Context) ([]interface{}, error) {
	return tx.Execute(ctx, nil)
}

// Execute runs the transaction to completion and returns the decoded
// results of the queued commands, in queue order. When block is given it is
// invoked to build the transaction; if the server then aborts EXEC because a
// watched key changed, the whole transaction is reset and the block replayed
// until it commits or the retry budget is spent. A nil result with a nil
// error means the block queued nothing, so there was nothing to execute.
func (tx *Tx) Execute(ctx context.Context, block Block) ([]interface{}, error) {
	if err := tx.checkBeforeExecute(ctx, block); err != nil {
		return nil, err
	}

	var execReply resp.Value
	for attempts := tx.opts.Retries; ; attempts-- {
		if block != nil {
			if err := tx.runBlock(ctx, block); err != nil {
				return nil, err
			}
		}

		if len(tx.pending) == 0 {
			if tx.state.watching {
				if _, err := tx.Discard(ctx); err != nil {
					return nil, err
				}
			}
			return nil, nil
		}

		reply, err := tx.client.Exec(ctx)
		if err != nil {
			return nil, err
		}
		if reply.IsNull() {
			if attempts == 0 {
				tx.log.Debug("transaction aborted, retries exhausted")
				return nil, &AbortError{Tx: tx}
			}
			tx.reset()
			tx.log.Debug("transaction aborted, retrying", zap.Int("attempts_left", attempts))
			if tx.opts.OnRetry != nil {
				tx.opts.OnRetry(tx, attempts)
			}
			continue
		}
		execReply = reply
		break
	}

	replies := execReply.Array()
	if len(replies) != len(tx.pending) {
		return nil, tx.protocolError("EXEC returned an unexpected number of reply items")
	}
	results := make([]interface{}, 0, len(replies))
	for _, reply := range replies {
		if reply.Type() == resp.Error && tx.client.Options().RaiseErrors {
			return nil, &ServerError{Message: reply.Error().Error()}
		}
		cmd := tx.pending[0]
		tx.pending = tx.pending[1:]
		results = append(results, cmd.ParseResponse(reply))
	}
	return results, nil
}

// checkBeforeExecute enforces the Execute entry rules: no reentrant calls
// from inside a block, no block on top of fluently queued commands, and no
// retry budget without a block to replay.
func (tx *Tx) checkBeforeExecute(ctx context.Context, block Block) error {
	if tx.state.executing() {
		return &StateError{Reason: "cannot invoke Execute inside an active transaction block"}
	}
	if block != nil {
		if len(tx.pending) > 0 {
			tx.Discard(ctx)
			return &StateError{Reason: "cannot execute a transaction block after using the fluent interface"}
		}
		return nil
	}
	if tx.opts.Retries > 0 {
		tx.Discard(ctx)
		return &ArgumentError{Reason: "automatic retries are supported only when a transaction block is provided"}
	}
	return nil
}

// runBlock invokes the user block with the inside-block flag held. Protocol
// and server errors pass through untouched so the caller can inspect the
// transaction; any other failure of the block abandons what was queued.
func (tx *Tx) runBlock(ctx context.Context, block Block) error {
	tx.state.insideBlock = true
	defer func() {
		tx.state.insideBlock = false
	}()

	err := block(ctx, tx)
	if err != nil && discardOnBlockError(err) {
		tx.Discard(ctx)
	}
	return err
}

func (tx *Tx) protocolError(reason string) error {
	return &ProtocolError{Addr: tx.client.Connection().Addr(), Reason: reason}
}
