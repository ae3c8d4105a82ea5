package redistx

import (
	"context"
	"strings"

	"github.com/tidwall/resp"
)

// fakeClient scripts raw server replies and records every call the
// transaction makes, in order.
type fakeClient struct {
	aggregated bool
	profile    []string
	opts       ClientOptions

	calls []string

	// doReplies are consumed one per Do call; when exhausted the fake
	// falls back to a +QUEUED ack.
	doReplies []resp.Value

	// execReplies are consumed one per Exec call; a null value simulates
	// a server-side abort.
	execReplies []resp.Value
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		profile: []string{
			"MULTI", "EXEC", "DISCARD", "WATCH", "UNWATCH",
			"GET", "SET", "DEL", "INCR", "DECR",
		},
	}
}

type fakeConn struct {
	aggregated bool
}

func (c fakeConn) Aggregated() bool { return c.aggregated }
func (c fakeConn) Addr() string     { return "127.0.0.1:6379" }

type fakeProfile struct {
	commands []string
}

func (p fakeProfile) Supports(names ...string) bool {
	for _, name := range names {
		found := false
		for _, cmd := range p.commands {
			if strings.EqualFold(cmd, name) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (f *fakeClient) Connection() Connection { return fakeConn{aggregated: f.aggregated} }
func (f *fakeClient) Profile() Profile       { return fakeProfile{commands: f.profile} }
func (f *fakeClient) Options() ClientOptions { return f.opts }

func (f *fakeClient) NewCommand(name string, args ...string) Command {
	return NewCommand(name, args...)
}

func (f *fakeClient) Do(ctx context.Context, cmd Command) (resp.Value, error) {
	call := "DO " + cmd.Name()
	if len(cmd.Args()) > 0 {
		call += " " + strings.Join(cmd.Args(), " ")
	}
	f.calls = append(f.calls, call)
	if len(f.doReplies) > 0 {
		reply := f.doReplies[0]
		f.doReplies = f.doReplies[1:]
		return reply, nil
	}
	return resp.SimpleStringValue("QUEUED"), nil
}

func (f *fakeClient) Multi(ctx context.Context) (resp.Value, error) {
	f.calls = append(f.calls, "MULTI")
	return resp.SimpleStringValue("OK"), nil
}

func (f *fakeClient) Exec(ctx context.Context) (resp.Value, error) {
	f.calls = append(f.calls, "EXEC")
	if len(f.execReplies) > 0 {
		reply := f.execReplies[0]
		f.execReplies = f.execReplies[1:]
		return reply, nil
	}
	return resp.ArrayValue(nil), nil
}

func (f *fakeClient) Discard(ctx context.Context) (resp.Value, error) {
	f.calls = append(f.calls, "DISCARD")
	return resp.SimpleStringValue("OK"), nil
}

func (f *fakeClient) Watch(ctx context.Context, keys ...string) (resp.Value, error) {
	f.calls = append(f.calls, "WATCH "+strings.Join(keys, " "))
	return resp.SimpleStringValue("OK"), nil
}

func (f *fakeClient) Unwatch(ctx context.Context) (resp.Value, error) {
	f.calls = append(f.calls, "UNWATCH")
	return resp.SimpleStringValue("OK"), nil
}
