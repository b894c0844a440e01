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

type recordingApplier struct {
	sets []string
}

func (r *recordingApplier) Set(key string, value []byte, hasTTL bool, ttlMs int64) {
	r.sets = append(r.sets, key+"="+string(value))
}

func TestRunFollowerHandshakeAndApply(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	leaderAddr := listener.Addr().(*net.TCPAddr)

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		conn, err := listener.Accept()
		require.NoError(t, err)
		defer conn.Close()

		r := resp.NewReader(conn)

		expectCommand(t, r, command.KindPing)
		_, _ = conn.Write(resp.Encode(resp.Simple("PONG")))

		expectCommand(t, r, command.KindReplConf)
		_, _ = conn.Write(resp.Encode(resp.Simple("OK")))

		expectCommand(t, r, command.KindReplConf)
		_, _ = conn.Write(resp.Encode(resp.Simple("OK")))

		expectCommand(t, r, command.KindPSync)
		_, _ = conn.Write(resp.Encode(resp.Simple("FULLRESYNC abc123 0")))

		snapshot := []byte("fake!")
		_, _ = conn.Write([]byte("$5\r\n"))
		_, _ = conn.Write(snapshot)

		setFrame := command.Render(command.Command{Kind: command.KindSet, Key: "k", Value: []byte("v")})
		_, _ = conn.Write(resp.Encode(setFrame))

		time.Sleep(20 * time.Millisecond)
	}()

	s := replication.NewFollower("127.0.0.1", uint16(leaderAddr.Port))
	applier := &recordingApplier{}

	go func() {
		_ = replication.RunFollower(s, applier, 6380)
	}()

	<-serverDone
	time.Sleep(20 * time.Millisecond)

	assert.Contains(t, applier.sets, "k=v")
	assert.Greater(t, s.AckOffset(), int64(0))
}

func expectCommand(t *testing.T, r *resp.Reader, kind command.Kind) {
	t.Helper()
	f, err := r.ReadFrame()
	require.NoError(t, err)
	c, err := command.Parse(f)
	require.NoError(t, err)
	require.Equal(t, kind, c.Kind)
}
