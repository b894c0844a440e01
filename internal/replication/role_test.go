package replication_test

import (
	"net"
	"testing"
	"time"

	"github.com/sandia-minimega/redis-go/internal/command"
	"github.com/sandia-minimega/redis-go/internal/replication"
	"github.com/sandia-minimega/redis-go/internal/resp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLeaderReplIDShape(t *testing.T) {
	s := replication.NewLeader()
	id := s.ReplID()
	assert.Len(t, id, 40)
	assert.True(t, s.IsLeader())
}

func TestBroadcastSETAdvancesOffsets(t *testing.T) {
	s := replication.NewLeader()
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	h := s.RegisterFollower(server)
	_ = h

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 256)
		n, _ := client.Read(buf)
		done <- buf[:n]
	}()

	frame := command.Render(command.Command{Kind: command.KindSet, Key: "k", Value: []byte("v")})
	encoded := resp.Encode(frame)

	newOffset := s.BroadcastSET(frame)
	assert.EqualValues(t, len(encoded), newOffset)

	replOffset, dataOffset := s.Offsets()
	assert.EqualValues(t, len(encoded), replOffset)
	assert.EqualValues(t, len(encoded), dataOffset)

	select {
	case got := <-done:
		assert.Equal(t, encoded, got)
	case <-time.After(time.Second):
		t.Fatal("follower never received broadcast frame")
	}
}

func TestWaitShortCircuitsWithNoWrites(t *testing.T) {
	s := replication.NewLeader()
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	s.RegisterFollower(server)

	start := time.Now()
	n := s.Wait(0, 100*time.Millisecond)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, 1, n)
}

func TestWaitTimesOutBelowQuorum(t *testing.T) {
	s := replication.NewLeader()
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	s.RegisterFollower(server)

	go func() {
		buf := make([]byte, 4096)
		for {
			if _, err := client.Read(buf); err != nil {
				return
			}
		}
	}()

	frame := command.Render(command.Command{Kind: command.KindSet, Key: "k", Value: []byte("v")})
	s.BroadcastSET(frame)

	n := s.Wait(1, 40*time.Millisecond)
	assert.Equal(t, 0, n)
}

func TestWaitSatisfiedByAck(t *testing.T) {
	s := replication.NewLeader()
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	h := s.RegisterFollower(server)

	go func() {
		buf := make([]byte, 4096)
		for {
			if _, err := client.Read(buf); err != nil {
				return
			}
		}
	}()

	frame := command.Render(command.Command{Kind: command.KindSet, Key: "k", Value: []byte("v")})
	newOffset := s.BroadcastSET(frame)

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.RecordAck(h, int64(newOffset))
	}()

	n := s.Wait(1, time.Second)
	require.Equal(t, 1, n)
}

func TestFollowerHandleAckMonotonic(t *testing.T) {
	s := replication.NewLeader()
	_, server := net.Pipe()
	defer server.Close()
	h := s.RegisterFollower(server)

	s.RecordAck(h, 100)
	s.RecordAck(h, 50)
	assert.EqualValues(t, 100, h.LastAckOffset())
}
