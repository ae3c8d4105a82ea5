// Package redtest runs a small in-process Redis-style server for exercising
// clients and transactions over a real TCP connection. It speaks enough of
// the protocol for transaction tests: string and counter commands plus
// MULTI/EXEC/DISCARD/WATCH/UNWATCH with genuine queue and abort semantics.
package redtest

import (
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/tidwall/resp"
)

type handlerFunc func(sess *session, args []resp.Value) resp.Value

var handlers = map[string]handlerFunc{
	"PING":    ping,
	"GET":     get,
	"SET":     set,
	"DEL":     del,
	"INCR":    incr,
	"DECR":    decr,
	"INCRBY":  incrByCmd,
	"DECRBY":  decrByCmd,
	"UNWATCH": unwatch,
}

// Server listens on a loopback port until closed.
type Server struct {
	ln    net.Listener
	store *Store

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// Listen starts a server on an ephemeral loopback port.
func Listen() (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &Server{
		ln:    ln,
		store: NewStore(),
		conns: map[net.Conn]struct{}{},
	}
	go s.serve()
	return s, nil
}

func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Store exposes the keyspace directly so tests can invalidate watched keys
// behind a transaction's back.
func (s *Server) Store() *Store {
	return s.store
}

func (s *Server) Close() {
	s.ln.Close()
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
}

func (s *Server) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	sess := &session{
		store: s.store,
		wr:    resp.NewWriter(conn),
	}
	rd := resp.NewReader(conn)
	for {
		v, _, err := rd.ReadValue()
		if err != nil {
			return
		}
		if v.Type() != resp.Array || len(v.Array()) == 0 {
			sess.reply(resp.ErrorValue(fmt.Errorf("ERR expected a command array")))
			continue
		}
		parts := v.Array()
		name := strings.ToUpper(parts[0].String())
		sess.dispatch(name, parts[1:])
	}
}

// session is the per-connection transaction state: whether MULTI is open,
// the commands queued so far and the versions of the watched keys.
type session struct {
	store   *Store
	wr      *resp.Writer
	inMulti bool
	queued  []queuedCommand
	watched map[string]uint64
}

type queuedCommand struct {
	name string
	args []resp.Value
}

func (sess *session) dispatch(name string, args []resp.Value) {
	switch name {
	case "MULTI":
		if sess.inMulti {
			sess.reply(resp.ErrorValue(fmt.Errorf("ERR MULTI calls can not be nested")))
			return
		}
		sess.inMulti = true
		sess.queued = nil
		sess.reply(resp.SimpleStringValue("OK"))
	case "EXEC":
		sess.exec()
	case "DISCARD":
		if !sess.inMulti {
			sess.reply(resp.ErrorValue(fmt.Errorf("ERR DISCARD without MULTI")))
			return
		}
		sess.inMulti = false
		sess.queued = nil
		sess.watched = nil
		sess.reply(resp.SimpleStringValue("OK"))
	case "WATCH":
		if sess.inMulti {
			sess.reply(resp.ErrorValue(fmt.Errorf("ERR WATCH inside MULTI is not allowed")))
			return
		}
		if sess.watched == nil {
			sess.watched = map[string]uint64{}
		}
		for _, key := range args {
			sess.watched[key.String()] = sess.store.Version(key.String())
		}
		sess.reply(resp.SimpleStringValue("OK"))
	default:
		handler, ok := handlers[name]
		if !ok {
			sess.reply(resp.ErrorValue(fmt.Errorf("ERR unknown command '%s'", strings.ToLower(name))))
			return
		}
		if sess.inMulti {
			sess.queued = append(sess.queued, queuedCommand{name: name, args: args})
			sess.reply(resp.SimpleStringValue("QUEUED"))
			return
		}
		sess.reply(handler(sess, args))
	}
}

// exec commits the open transaction, or replies null when a watched key was
// written since WATCH.
func (sess *session) exec() {
	if !sess.inMulti {
		sess.reply(resp.ErrorValue(fmt.Errorf("ERR EXEC without MULTI")))
		return
	}
	sess.inMulti = false

	aborted := false
	for key, version := range sess.watched {
		if sess.store.Version(key) != version {
			aborted = true
			break
		}
	}
	sess.watched = nil

	if aborted {
		sess.queued = nil
		sess.reply(resp.NullValue())
		return
	}

	results := make([]resp.Value, 0, len(sess.queued))
	for _, cmd := range sess.queued {
		results = append(results, handlers[cmd.name](sess, cmd.args))
	}
	sess.queued = nil
	sess.reply(resp.ArrayValue(results))
}

func (sess *session) reply(v resp.Value) {
	if err := writeValue(sess.wr, v); err != nil {
		log.Println("redtest: write reply:", err)
	}
}

func writeValue(wr *resp.Writer, v resp.Value) error {
	if v.IsNull() {
		return wr.WriteNull()
	}
	switch v.Type() {
	case resp.Integer:
		return wr.WriteInteger(v.Integer())
	case resp.SimpleString:
		return wr.WriteSimpleString(v.String())
	case resp.Error:
		return wr.WriteError(v.Error())
	case resp.Array:
		return wr.WriteArray(v.Array())
	default:
		return wr.WriteString(v.String())
	}
}

func ping(sess *session, args []resp.Value) resp.Value {
	if len(args) == 1 {
		return resp.StringValue(args[0].String())
	}
	return resp.SimpleStringValue("PONG")
}

func get(sess *session, args []resp.Value) resp.Value {
	if len(args) != 1 {
		return arityError("get")
	}
	val, ok := sess.store.Get(args[0].String())
	if !ok {
		return resp.NullValue()
	}
	return resp.StringValue(val)
}

func set(sess *session, args []resp.Value) resp.Value {
	if len(args) != 2 {
		return arityError("set")
	}
	sess.store.Set(args[0].String(), args[1].String())
	return resp.SimpleStringValue("OK")
}

func del(sess *session, args []resp.Value) resp.Value {
	if len(args) == 0 {
		return arityError("del")
	}
	n := 0
	for _, key := range args {
		if sess.store.Delete(key.String()) {
			n++
		}
	}
	return resp.IntegerValue(n)
}

func incr(sess *session, args []resp.Value) resp.Value {
	return incrBy(sess, args, 1, "incr")
}

func decr(sess *session, args []resp.Value) resp.Value {
	return incrBy(sess, args, -1, "decr")
}

func incrBy(sess *session, args []resp.Value, delta int, name string) resp.Value {
	if len(args) != 1 {
		return arityError(name)
	}
	n, err := sess.store.IncrBy(args[0].String(), delta)
	if err != nil {
		return resp.ErrorValue(err)
	}
	return resp.IntegerValue(n)
}

func incrByCmd(sess *session, args []resp.Value) resp.Value {
	return incrByN(sess, args, 1, "incrby")
}

func decrByCmd(sess *session, args []resp.Value) resp.Value {
	return incrByN(sess, args, -1, "decrby")
}

func incrByN(sess *session, args []resp.Value, sign int, name string) resp.Value {
	if len(args) != 2 {
		return arityError(name)
	}
	delta, err := strconv.Atoi(args[1].String())
	if err != nil {
		return resp.ErrorValue(fmt.Errorf("ERR value is not an integer or out of range"))
	}
	n, err := sess.store.IncrBy(args[0].String(), sign*delta)
	if err != nil {
		return resp.ErrorValue(err)
	}
	return resp.IntegerValue(n)
}

func unwatch(sess *session, args []resp.Value) resp.Value {
	sess.watched = nil
	return resp.SimpleStringValue("OK")
}

func arityError(name string) resp.Value {
	return resp.ErrorValue(fmt.Errorf("ERR wrong number of arguments for '%s' command", name))
}
