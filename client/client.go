// Package client is a minimal TCP client for Redis-style servers exposing
// the collaborator contract the redistx transaction core runs over: one
// connection, blocking request/response round trips, raw RESP replies.
package client

import (
	"bytes"
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/resp"

	"github.com/dipendra-mule/redistx"
)

// Config describes one client connection.
type Config struct {
	Addr string

	// RaiseErrors makes server error replies surface as Go errors when a
	// transaction decodes results; when false they come back as values.
	RaiseErrors bool

	// Profile overrides the set of commands the server is assumed to
	// support. Defaults to DefaultProfile.
	Profile redistx.Profile
}

// Client owns a single connection to the server. It is not safe for
// concurrent use: the protocol is strictly sequential per connection.
type Client struct {
	addr    string
	conn    net.Conn
	rd      *resp.Reader
	opts    redistx.ClientOptions
	profile redistx.Profile
}

// Dial connects to the configured server.
func Dial(cfg Config) (*Client, error) {
	conn, err := net.Dial("tcp", cfg.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", cfg.Addr)
	}
	profile := cfg.Profile
	if profile == nil {
		profile = DefaultProfile()
	}
	return &Client{
		addr:    cfg.Addr,
		conn:    conn,
		rd:      resp.NewReader(conn),
		opts:    redistx.ClientOptions{RaiseErrors: cfg.RaiseErrors},
		profile: profile,
	}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// roundTrip writes one command array and reads one reply. A context
// deadline, when present, is applied to the whole round trip; there is no
// mid-flight cancellation beyond that.
func (c *Client) roundTrip(ctx context.Context, name string, args ...string) (resp.Value, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return resp.Value{}, errors.Wrap(err, "set deadline")
	}

	vals := make([]resp.Value, 0, len(args)+1)
	vals = append(vals, resp.StringValue(name))
	for _, arg := range args {
		vals = append(vals, resp.StringValue(arg))
	}

	buf := &bytes.Buffer{}
	wr := resp.NewWriter(buf)
	if err := wr.WriteArray(vals); err != nil {
		return resp.Value{}, errors.Wrapf(err, "encode %s", name)
	}
	if _, err := c.conn.Write(buf.Bytes()); err != nil {
		return resp.Value{}, errors.Wrapf(err, "write %s", name)
	}

	v, _, err := c.rd.ReadValue()
	if err != nil {
		return resp.Value{}, errors.Wrapf(err, "read %s reply", name)
	}
	return v, nil
}

func (c *Client) Connection() redistx.Connection {
	return connection{addr: c.addr}
}

func (c *Client) Profile() redistx.Profile {
	return c.profile
}

func (c *Client) Options() redistx.ClientOptions {
	return c.opts
}

func (c *Client) NewCommand(name string, args ...string) redistx.Command {
	return redistx.NewCommand(name, args...)
}

func (c *Client) Do(ctx context.Context, cmd redistx.Command) (resp.Value, error) {
	return c.roundTrip(ctx, cmd.Name(), cmd.Args()...)
}

func (c *Client) Multi(ctx context.Context) (resp.Value, error) {
	return c.roundTrip(ctx, "MULTI")
}

func (c *Client) Exec(ctx context.Context) (resp.Value, error) {
	return c.roundTrip(ctx, "EXEC")
}

func (c *Client) Discard(ctx context.Context) (resp.Value, error) {
	return c.roundTrip(ctx, "DISCARD")
}

func (c *Client) Watch(ctx context.Context, keys ...string) (resp.Value, error) {
	return c.roundTrip(ctx, "WATCH", keys...)
}

func (c *Client) Unwatch(ctx context.Context) (resp.Value, error) {
	return c.roundTrip(ctx, "UNWATCH")
}

// connection is the single-node connection handle handed to transactions.
type connection struct {
	addr string
}

func (c connection) Aggregated() bool { return false }
func (c connection) Addr() string     { return c.addr }
