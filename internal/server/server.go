// Package server wires together the frame codec, command model,
// keyspace, and replication role state into the concurrent connection
// engine: one goroutine per accepted connection, modeled on the
// teacher's clientHandler(conn net.Conn) shape.
package server

import (
	"fmt"
	"net"

	"github.com/sandia-minimega/redis-go/internal/logging"
	"github.com/sandia-minimega/redis-go/internal/replication"
	"github.com/sandia-minimega/redis-go/internal/store"
)

// Server owns the listener, the keyspace, and the role singleton for
// one process.
type Server struct {
	Port uint16

	db   *store.Keyspace
	role *replication.State

	ln net.Listener
}

// New constructs a Server in the leader role.
func New(port uint16) *Server {
	return &Server{
		Port: port,
		db:   store.New(),
		role: replication.NewLeader(),
	}
}

// NewFollowerOf constructs a Server in the follower role, tracking
// leaderHost/leaderPort for the handshake goroutine Run starts.
func NewFollowerOf(port uint16, leaderHost string, leaderPort uint16) *Server {
	return &Server{
		Port: port,
		db:   store.New(),
		role: replication.NewFollower(leaderHost, leaderPort),
	}
}

// Run binds the listener, starts the follower handshake goroutine if
// applicable, and serves connections until the listener is closed.
func (s *Server) Run() error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.ln = ln
	logging.Infof("listening on %s", addr)

	if !s.role.IsLeader() {
		go s.runFollowerLoop()
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("accept: %w", err)
		}
		go s.handleConnection(conn)
	}
}

// runFollowerLoop performs the handshake and streaming apply; if the
// leader stream dies, spec 4.G/7 says the process keeps serving local
// clients with stale data rather than crashing, so a failed handshake
// is logged and not retried automatically (no reconnect policy is
// specified).
func (s *Server) runFollowerLoop() {
	if err := replication.RunFollower(s.role, s.db, s.Port); err != nil {
		logging.Errorf("follower replication stopped: %v", err)
	}
}

func (s *Server) Close() error {
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}
