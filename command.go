package redistx

import "github.com/tidwall/resp"

// Command is a single protocol command queued inside a transaction. The
// transaction keeps the command object itself in its pending queue so that,
// once EXEC returns, each raw reply can be decoded by the command that
// produced it.
type Command interface {
	Name() string
	Args() []string

	// ParseResponse decodes the raw reply for this command into a Go value.
	ParseResponse(reply resp.Value) interface{}
}

type command struct {
	name string
	args []string
}

// NewCommand builds a basic command that decodes replies with DecodeValue.
// Clients that need typed decoding can provide their own Command
// implementations instead.
func NewCommand(name string, args ...string) Command {
	return &command{name: name, args: args}
}

func (c *command) Name() string { return c.name }

func (c *command) Args() []string { return c.args }

func (c *command) ParseResponse(reply resp.Value) interface{} {
	return DecodeValue(reply)
}

// DecodeValue translates a raw RESP value into a plain Go value: integers
// become int, strings stay strings, null replies become nil, error replies
// become error values and arrays are decoded element by element.
func DecodeValue(v resp.Value) interface{} {
	if v.IsNull() {
		return nil
	}
	switch v.Type() {
	case resp.Integer:
		return v.Integer()
	case resp.Error:
		return v.Error()
	case resp.Array:
		elems := v.Array()
		out := make([]interface{}, 0, len(elems))
		for _, e := range elems {
			out = append(out, DecodeValue(e))
		}
		return out
	default:
		return v.String()
	}
}
