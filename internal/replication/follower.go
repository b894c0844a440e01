package replication

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/sandia-minimega/redis-go/internal/command"
	"github.com/sandia-minimega/redis-go/internal/logging"
	"github.com/sandia-minimega/redis-go/internal/resp"
	"github.com/sandia-minimega/redis-go/internal/rerr"
	"github.com/sandia-minimega/redis-go/internal/store"
)

// Applier is the subset of store.Keyspace the follower apply loop
// needs; kept as an interface so tests can substitute a recorder.
type Applier interface {
	Set(key string, value []byte, hasTTL bool, ttlMs int64)
}

var _ Applier = (*store.Keyspace)(nil)

// RunFollower dials the leader, performs the four-step handshake, reads
// past the opaque snapshot blob, then applies the replicated command
// stream forever. It returns only on a fatal error (protocol mismatch
// or a dead socket), matching spec 4.G: "the process may continue
// serving local clients with stale data" is the caller's job, not
// this function's — the caller decides whether to retry.
func RunFollower(s *State, db Applier, listenPort uint16) error {
	host, port := s.LeaderAddr()
	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial leader %s: %w", addr, err)
	}
	defer conn.Close()

	r := resp.NewReader(conn)

	startOffset, err := handshake(conn, r, listenPort)
	if err != nil {
		return err
	}
	s.SetAckOffset(startOffset)
	logging.Infof("follower handshake complete, streaming from offset %d", startOffset)

	return streamLoop(s, db, conn, r)
}

func sendFrame(conn net.Conn, f resp.Frame) error {
	_, err := conn.Write(resp.Encode(f))
	return err
}

func expectSimple(r *resp.Reader, want string) error {
	f, err := r.ReadFrame()
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if f.Kind != resp.KindSimpleString || !strings.EqualFold(f.Simple, want) {
		return fmt.Errorf("%w: expected +%s, got %+v", rerr.ErrProtocolMismatch, want, f)
	}
	return nil
}

// handshake runs the five-state machine from spec 4.G and returns the
// repl_offset the leader reported in its FULLRESYNC reply.
func handshake(conn net.Conn, r *resp.Reader, listenPort uint16) (int64, error) {
	if err := sendFrame(conn, resp.ArrayOfBulkStrings("PING")); err != nil {
		return 0, fmt.Errorf("send PING: %w", err)
	}
	if err := expectSimple(r, "PONG"); err != nil {
		return 0, err
	}

	lp := command.Render(command.Command{Kind: command.KindReplConf, ReplConfMode: command.ReplConfListeningPort, ListenPort: listenPort})
	if err := sendFrame(conn, lp); err != nil {
		return 0, fmt.Errorf("send REPLCONF listening-port: %w", err)
	}
	if err := expectSimple(r, "OK"); err != nil {
		return 0, err
	}

	capa := command.Render(command.Command{Kind: command.KindReplConf, ReplConfMode: command.ReplConfCapability, ReplConfArg: "psync2"})
	if err := sendFrame(conn, capa); err != nil {
		return 0, fmt.Errorf("send REPLCONF capa: %w", err)
	}
	if err := expectSimple(r, "OK"); err != nil {
		return 0, err
	}

	psync := command.Render(command.Command{Kind: command.KindPSync, ReplIDOrQuestionMark: "?", OffsetOrMinusOne: -1})
	if err := sendFrame(conn, psync); err != nil {
		return 0, fmt.Errorf("send PSYNC: %w", err)
	}

	reply, err := r.ReadFrame()
	if err != nil {
		return 0, fmt.Errorf("read FULLRESYNC: %w", err)
	}
	if reply.Kind != resp.KindSimpleString || !strings.HasPrefix(reply.Simple, "FULLRESYNC ") {
		return 0, fmt.Errorf("%w: expected +FULLRESYNC, got %+v", rerr.ErrProtocolMismatch, reply)
	}
	fields := strings.Fields(reply.Simple)
	if len(fields) != 3 {
		return 0, fmt.Errorf("%w: malformed FULLRESYNC reply %q", rerr.ErrProtocolMismatch, reply.Simple)
	}
	offset, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad FULLRESYNC offset %q", rerr.ErrProtocolMismatch, fields[2])
	}

	if err := skipSnapshot(r); err != nil {
		return 0, err
	}

	return offset, nil
}

// skipSnapshot reads the `$<len>` header and discards exactly that many
// bytes; the blob's contents are opaque to this system.
func skipSnapshot(r *resp.Reader) error {
	line, err := r.ReadLine()
	if err != nil {
		return fmt.Errorf("read snapshot header: %w", err)
	}
	if len(line) == 0 || line[0] != '$' {
		return fmt.Errorf("%w: expected snapshot header, got %q", rerr.ErrProtocolMismatch, line)
	}
	n, err := strconv.Atoi(string(line[1:]))
	if err != nil || n < 0 {
		return fmt.Errorf("%w: bad snapshot length %q", rerr.ErrProtocolMismatch, line)
	}
	if _, err := r.ReadExact(n); err != nil {
		return fmt.Errorf("read snapshot body: %w", err)
	}
	return nil
}

// streamLoop applies every command frame read from the leader, one at
// a time, advancing ack_offset by the frame's encoded length before
// applying it, per spec 4.G.
func streamLoop(s *State, db Applier, conn net.Conn, r *resp.Reader) error {
	for {
		f, n, err := r.ReadFrameWithLen()
		if err != nil {
			return fmt.Errorf("replication stream closed: %w", err)
		}

		ack := s.AddAckOffset(int64(n))

		c, err := command.Parse(f)
		if errors.Is(err, rerr.ErrUnknownCommand) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %v", rerr.ErrProtocolMismatch, err)
		}

		switch c.Kind {
		case command.KindSet:
			db.Set(c.Key, c.Value, c.HasTTL, c.TTLMs)
		case command.KindReplConf:
			if c.ReplConfMode == command.ReplConfGetAck {
				reply := command.Render(command.Command{Kind: command.KindReplConf, ReplConfMode: command.ReplConfAck, Ack: ack})
				if err := sendFrame(conn, reply); err != nil {
					return fmt.Errorf("send REPLCONF ACK: %w", err)
				}
			}
		case command.KindPing:
			// accepted silently
		default:
			// unrecognized commands on the replication stream are
			// accepted silently rather than treated as fatal, since
			// the leader only ever emits SET/PING/REPLCONF GETACK.
		}
	}
}
