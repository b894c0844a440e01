// Package replication implements the leader/follower role state, the
// follower registry, fan-out of writes to followers, the follower-side
// handshake and stream application, and the WAIT consistency gate.
//
// A single State value is the process-global role singleton, guarded
// by one exclusive lock the same way the teacher's Server guards its
// client and VM registries: the lock is taken only long enough to
// mutate the map or read/write an offset, except in BroadcastSET and
// SendGetAck, where the lock is held across the follower socket writes
// to preserve per-socket ordering.
package replication

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/sandia-minimega/redis-go/internal/logging"
	"github.com/sandia-minimega/redis-go/internal/resp"
)

// RoleKind tags whether this process is the leader or a follower.
type RoleKind int

const (
	RoleLeader RoleKind = iota
	RoleFollower
)

// FollowerHandle is the leader's view of one registered follower: the
// outbound socket used to replicate writes to it, and the last byte
// offset it has acknowledged. LastAckOffset is read by WAIT's polling
// loop without taking the role lock, so it is an atomic rather than a
// plain field guarded by State.mu.
type FollowerHandle struct {
	ID            string
	Conn          net.Conn
	lastAckOffset atomic.Int64
}

func (f *FollowerHandle) LastAckOffset() int64 { return f.lastAckOffset.Load() }

// setAck enforces the monotonic-non-decreasing invariant: a stale or
// reordered ACK never moves the offset backwards.
func (f *FollowerHandle) setAck(offset int64) {
	for {
		cur := f.lastAckOffset.Load()
		if offset <= cur {
			return
		}
		if f.lastAckOffset.CompareAndSwap(cur, offset) {
			return
		}
	}
}

// State is the process-global role singleton.
type State struct {
	mu sync.Mutex

	kind RoleKind

	// Leader fields.
	replID       string
	replOffset   uint64
	dataOffset   uint64
	followers    []*FollowerHandle
	nextFollower int

	// Follower fields.
	leaderHost string
	leaderPort uint16
	ackOffset  atomic.Int64
}

// NewLeader constructs role state for a freshly started leader process:
// a fresh random 40-char hex replication id and zeroed offsets.
func NewLeader() *State {
	return &State{kind: RoleLeader, replID: generateReplID()}
}

// NewFollower constructs role state for a process started with
// --replicaof pointing at host:port.
func NewFollower(host string, port uint16) *State {
	return &State{kind: RoleFollower, leaderHost: host, leaderPort: port}
}

func generateReplID() string {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand.Read only fails if the OS CSPRNG is unusable,
		// which is unrecoverable for a process that needs a stable
		// per-run identity.
		panic(fmt.Sprintf("replication: cannot generate replid: %v", err))
	}
	return hex.EncodeToString(buf)
}

func (s *State) IsLeader() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kind == RoleLeader
}

func (s *State) ReplID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replID
}

func (s *State) LeaderAddr() (host string, port uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leaderHost, s.leaderPort
}

// Offsets returns the current repl_offset and data_offset under lock.
func (s *State) Offsets() (replOffset, dataOffset uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replOffset, s.dataOffset
}

// FollowerCount returns the number of registered followers.
func (s *State) FollowerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.followers)
}

// RegisterFollower adds conn to the follower registry, returning the
// handle the replica-inbound worker (spawned by the caller) should use
// to record ACKs.
func (s *State) RegisterFollower(conn net.Conn) *FollowerHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextFollower++
	h := &FollowerHandle{ID: fmt.Sprintf("follower-%d", s.nextFollower), Conn: conn}
	s.followers = append(s.followers, h)
	logging.Infof("registered follower %s (%s)", h.ID, conn.RemoteAddr())
	return h
}

// RemoveFollower drops h from the registry, e.g. after its socket
// errors in the replica-inbound worker.
func (s *State) RemoveFollower(h *FollowerHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, f := range s.followers {
		if f == h {
			s.followers = append(s.followers[:i], s.followers[i+1:]...)
			logging.Infof("removed follower %s", h.ID)
			return
		}
	}
}

// RecordAck updates h's last known acknowledged offset. Called by the
// replica-inbound worker when it parses a REPLCONF ACK frame.
func (s *State) RecordAck(h *FollowerHandle, offset int64) {
	h.setAck(offset)
}

// snapshotFollowers copies the current follower slice under lock so
// WAIT's polling loop can read LastAckOffset lock-free afterwards.
func (s *State) snapshotFollowers() []*FollowerHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*FollowerHandle, len(s.followers))
	copy(out, s.followers)
	return out
}

// BroadcastSET writes the rendered SET frame to every registered
// follower, advances repl_offset by its encoded length, sets
// data_offset to the new repl_offset, and returns the new data_offset. The role lock is held across the
// socket writes: because this is the only path that writes to follower
// sockets on behalf of a mutating client command, holding the lock here
// (rather than snapshotting and releasing) is what guarantees writes to
// any one follower socket happen in commit order. A follower whose
// write fails is dropped from the registry; the offset still advances
// for every follower the broadcast was attempted against.
func (s *State) BroadcastSET(frame resp.Frame) uint64 {
	encoded := resp.Encode(frame)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.replOffset += uint64(len(encoded))
	s.dataOffset = s.replOffset

	var alive []*FollowerHandle
	for _, f := range s.followers {
		if _, err := f.Conn.Write(encoded); err != nil {
			logging.Warnf("follower %s write failed, dropping: %v", f.ID, err)
			continue
		}
		alive = append(alive, f)
	}
	s.followers = alive

	return s.dataOffset
}

// SendGetAck writes a REPLCONF GETACK * frame to every follower and
// advances repl_offset (not data_offset: probes must never move WAIT's
// quorum target). Held under the same lock as BroadcastSET so a probe
// can never interleave with a SET broadcast on the same socket.
func (s *State) SendGetAck(frame resp.Frame) {
	encoded := resp.Encode(frame)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.replOffset += uint64(len(encoded))

	var alive []*FollowerHandle
	for _, f := range s.followers {
		if _, err := f.Conn.Write(encoded); err != nil {
			logging.Warnf("follower %s write failed, dropping: %v", f.ID, err)
			continue
		}
		alive = append(alive, f)
	}
	s.followers = alive
}

// DataOffset returns the current data_offset, used by WAIT's
// short-circuit check and as its quorum target.
func (s *State) DataOffset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dataOffset
}

// AckOffset returns the follower-side cumulative consumed-bytes
// counter, reported verbatim in REPLCONF ACK.
func (s *State) AckOffset() int64 {
	return s.ackOffset.Load()
}

// SetAckOffset overwrites the follower-side counter, used once at the
// end of the handshake to seed it from the leader's FULLRESYNC offset.
func (s *State) SetAckOffset(v int64) {
	s.ackOffset.Store(v)
}

// AddAckOffset advances the follower-side counter by n bytes, called
// before applying each frame consumed from the leader's stream.
func (s *State) AddAckOffset(n int64) int64 {
	return s.ackOffset.Add(n)
}
