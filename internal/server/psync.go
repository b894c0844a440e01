package server

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/sandia-minimega/redis-go/internal/command"
	"github.com/sandia-minimega/redis-go/internal/logging"
	"github.com/sandia-minimega/redis-go/internal/replication"
	"github.com/sandia-minimega/redis-go/internal/resp"
)

// handlePSync implements spec 4.F's PSYNC row and 4.E's promotion note:
// reply FULLRESYNC, send the snapshot blob, register the socket as a
// follower, then run the replica-inbound loop on the connection's
// buffered reader, on this same goroutine, until the follower's socket
// closes. Only
// "full resync" (offset -1) is supported; spec explicitly excludes
// partial resync, so the request's own replid/offset fields are not
// consulted.
func (s *Server) handlePSync(conn net.Conn, r *resp.Reader, connID string) {
	log := logging.WithField("conn", connID)

	if !s.role.IsLeader() {
		log.Warnf("PSYNC received on a follower, closing")
		return
	}

	replOffset, _ := s.role.Offsets()
	fullresync := resp.Simple(fmt.Sprintf("FULLRESYNC %s %d", s.role.ReplID(), replOffset))
	if err := writeFrame(conn, fullresync); err != nil {
		log.Debugf("write FULLRESYNC failed: %v", err)
		return
	}

	header := []byte(fmt.Sprintf("$%d\r\n", len(emptySnapshot)))
	if _, err := conn.Write(header); err != nil {
		log.Debugf("write snapshot header failed: %v", err)
		return
	}
	if _, err := conn.Write(emptySnapshot); err != nil {
		log.Debugf("write snapshot body failed: %v", err)
		return
	}

	handle := s.role.RegisterFollower(conn)
	s.replicaInbound(r, handle, log)
}

// replicaInbound reads REPLCONF ACK frames from a registered follower
// for as long as its socket stays open, recording each into the
// FollowerHandle WAIT polls against. It runs once per follower on the
// goroutine of the connection that sent PSYNC, which nothing joins,
// matching the teacher's own unjoined clientHandler goroutines (see
// spec 9's note on replica-inbound lifecycle).
func (s *Server) replicaInbound(r *resp.Reader, handle *replication.FollowerHandle, log *logrus.Entry) {
	defer s.role.RemoveFollower(handle)
	defer handle.Conn.Close()

	for {
		f, err := r.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debugf("replica inbound closed: %v", err)
			}
			return
		}

		c, err := command.Parse(f)
		if err != nil {
			log.Debugf("malformed replica-inbound frame, closing: %v", err)
			return
		}

		if c.Kind == command.KindReplConf && c.ReplConfMode == command.ReplConfAck {
			s.role.RecordAck(handle, c.Ack)
		}
	}
}
