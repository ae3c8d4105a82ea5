package client

import "strings"

// CommandProfile is a static set of command names a server is known to
// support.
type CommandProfile struct {
	commands map[string]struct{}
}

// NewProfile builds a profile from the given command names.
func NewProfile(names ...string) *CommandProfile {
	commands := make(map[string]struct{}, len(names))
	for _, name := range names {
		commands[strings.ToUpper(name)] = struct{}{}
	}
	return &CommandProfile{commands: commands}
}

// DefaultProfile covers the commands the bundled test server and any real
// Redis-style server understand, transactions included.
func DefaultProfile() *CommandProfile {
	return NewProfile(
		"PING", "GET", "SET", "DEL", "INCR", "DECR", "INCRBY", "DECRBY",
		"MULTI", "EXEC", "DISCARD", "WATCH", "UNWATCH",
	)
}

func (p *CommandProfile) Supports(names ...string) bool {
	for _, name := range names {
		if _, ok := p.commands[strings.ToUpper(name)]; !ok {
			return false
		}
	}
	return true
}
