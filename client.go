package redistx

import (
	"context"

	"github.com/tidwall/resp"
)

// Client is the already-connected protocol client a transaction runs over.
// The transaction never dials or closes anything itself: it only sequences
// commands through this interface. See the client package for the TCP
// implementation.
type Client interface {
	// Connection returns the underlying connection handle. It is used to
	// refuse aggregate (multi-node) connections and to tag protocol errors
	// with the server address.
	Connection() Connection

	// Profile exposes which commands the connected server profile supports.
	Profile() Profile

	// Options returns the client-level behaviour toggles.
	Options() ClientOptions

	// NewCommand builds a command object for the named command.
	NewCommand(name string, args ...string) Command

	// Do sends one command and returns its raw reply.
	Do(ctx context.Context, cmd Command) (resp.Value, error)

	Multi(ctx context.Context) (resp.Value, error)
	Exec(ctx context.Context) (resp.Value, error)
	Discard(ctx context.Context) (resp.Value, error)
	Watch(ctx context.Context, keys ...string) (resp.Value, error)
	Unwatch(ctx context.Context) (resp.Value, error)
}

// Connection describes the single connection a client owns.
type Connection interface {
	// Aggregated reports whether the connection fans out to multiple nodes.
	// Transactions refuse to run over aggregate connections.
	Aggregated() bool

	// Addr is the remote server address, used in error messages.
	Addr() string
}

// Profile is the set of commands the active server profile understands.
type Profile interface {
	// Supports reports whether every named command is available.
	Supports(names ...string) bool
}

// ClientOptions are the client-level toggles the transaction consults.
type ClientOptions struct {
	// RaiseErrors makes server error replies surface as Go errors instead
	// of being handed back as values inside the result sequence.
	RaiseErrors bool
}
