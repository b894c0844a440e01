package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/sandia-minimega/redis-go/internal/command"
	"github.com/sandia-minimega/redis-go/internal/logging"
	"github.com/sandia-minimega/redis-go/internal/resp"
	"github.com/sandia-minimega/redis-go/internal/rerr"
)

// handleConnection is the per-connection worker: decode frame, derive
// command, dispatch, write reply, repeat. A malformed client frame
// closes the connection (spec 7's implementer's choice, documented
// here as this endpoint's fixed policy).
func (s *Server) handleConnection(conn net.Conn) {
	connID := uuid.NewString()
	log := logging.WithField("conn", connID)
	log.Debugf("accepted connection from %s", conn.RemoteAddr())

	defer conn.Close()

	r := resp.NewReader(conn)

	for {
		f, err := r.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debugf("connection closed: %v", err)
			}
			return
		}

		c, err := command.Parse(f)
		if err != nil {
			if errors.Is(err, rerr.ErrUnknownCommand) {
				writeFrame(conn, resp.ErrorFrame(fmt.Sprintf("ERR %v", err)))
				continue
			}
			log.Debugf("malformed command, closing: %v", err)
			return
		}

		if c.Kind == command.KindPSync {
			s.handlePSync(conn, r, connID)
			return
		}

		reply := s.dispatch(c)
		if reply.Kind == resp.KindEmpty {
			continue
		}
		if err := writeFrame(conn, reply); err != nil {
			log.Debugf("write failed, closing: %v", err)
			return
		}
	}
}

func writeFrame(conn net.Conn, f resp.Frame) error {
	_, err := conn.Write(resp.Encode(f))
	return err
}

// dispatch executes one client command against the keyspace and role
// state, fanning writes out to followers when this process is the
// leader (spec 4.F). On a follower, SET is rejected, INFO reports the
// follower's fields and WAIT returns 0; the other commands behave
// identically regardless of role.
func (s *Server) dispatch(c command.Command) resp.Frame {
	switch c.Kind {
	case command.KindPing:
		return resp.Simple("PONG")
	case command.KindEcho:
		return resp.Simple(c.Text)
	case command.KindGet:
		v, ok := s.db.Get(c.Key)
		if !ok {
			return resp.NullBulk()
		}
		return resp.Bulk(v)
	case command.KindSet:
		return s.dispatchSet(c)
	case command.KindInfo:
		return s.dispatchInfo(c)
	case command.KindReplConf:
		return resp.Simple("OK")
	case command.KindWait:
		return s.dispatchWait(c)
	default:
		return resp.ErrorFrame("ERR unsupported command for this connection")
	}
}

func (s *Server) dispatchSet(c command.Command) resp.Frame {
	if !s.role.IsLeader() {
		return resp.ErrorFrame(rerr.ErrReadOnlyReplica.Error())
	}

	s.db.Set(c.Key, c.Value, c.HasTTL, c.TTLMs)

	frame := command.Render(c)
	s.role.BroadcastSET(frame)

	return resp.Simple("OK")
}

func (s *Server) dispatchInfo(c command.Command) resp.Frame {
	if c.Section != "" && c.Section != "replication" {
		return resp.ErrorFrame(fmt.Sprintf("ERR unsupported INFO section %q", c.Section))
	}

	if s.role.IsLeader() {
		replOffset, _ := s.role.Offsets()
		text := fmt.Sprintf("role:master\r\nmaster_replid:%s\r\nmaster_repl_offset:%d\r\n", s.role.ReplID(), replOffset)
		return resp.BulkFromString(text)
	}
	text := fmt.Sprintf("role:slave\r\nmaster_repl_offset:%d\r\n", s.role.AckOffset())
	return resp.BulkFromString(text)
}

func (s *Server) dispatchWait(c command.Command) resp.Frame {
	if !s.role.IsLeader() {
		return resp.Int(0)
	}
	n := s.role.Wait(c.MinReplicas, time.Duration(c.TimeoutMs)*time.Millisecond)
	return resp.Int(int64(n))
}
