package command_test

import (
	"testing"

	"github.com/sandia-minimega/redis-go/internal/command"
	"github.com/sandia-minimega/redis-go/internal/resp"
	"github.com/sandia-minimega/redis-go/internal/rerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePing(t *testing.T) {
	c, err := command.Parse(resp.ArrayOfBulkStrings("PING"))
	require.NoError(t, err)
	assert.Equal(t, command.KindPing, c.Kind)
}

func TestParseSetWithPX(t *testing.T) {
	c, err := command.Parse(resp.ArrayOfBulkStrings("SET", "k", "v", "PX", "100"))
	require.NoError(t, err)
	assert.Equal(t, command.KindSet, c.Kind)
	assert.Equal(t, "k", c.Key)
	assert.Equal(t, []byte("v"), c.Value)
	assert.True(t, c.HasTTL)
	assert.EqualValues(t, 100, c.TTLMs)
}

func TestParseSetWithoutPX(t *testing.T) {
	c, err := command.Parse(resp.ArrayOfBulkStrings("SET", "k", "v"))
	require.NoError(t, err)
	assert.False(t, c.HasTTL)
}

func TestParseSetCaseInsensitivePX(t *testing.T) {
	c, err := command.Parse(resp.ArrayOfBulkStrings("SET", "k", "v", "px", "50"))
	require.NoError(t, err)
	assert.True(t, c.HasTTL)
	assert.EqualValues(t, 50, c.TTLMs)
}

func TestParseReplConfVariants(t *testing.T) {
	c, err := command.Parse(resp.ArrayOfBulkStrings("REPLCONF", "listening-port", "6380"))
	require.NoError(t, err)
	assert.Equal(t, command.ReplConfListeningPort, c.ReplConfMode)
	assert.EqualValues(t, 6380, c.ListenPort)

	c, err = command.Parse(resp.ArrayOfBulkStrings("REPLCONF", "ACK", "-1"))
	require.NoError(t, err)
	assert.Equal(t, command.ReplConfAck, c.ReplConfMode)
	assert.EqualValues(t, -1, c.Ack)
}

func TestParsePSync(t *testing.T) {
	c, err := command.Parse(resp.ArrayOfBulkStrings("PSYNC", "?", "-1"))
	require.NoError(t, err)
	assert.Equal(t, "?", c.ReplIDOrQuestionMark)
	assert.EqualValues(t, -1, c.OffsetOrMinusOne)
}

func TestParseWait(t *testing.T) {
	c, err := command.Parse(resp.ArrayOfBulkStrings("WAIT", "2", "1000"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, c.MinReplicas)
	assert.EqualValues(t, 1000, c.TimeoutMs)
}

func TestParseUnknownCommand(t *testing.T) {
	_, err := command.Parse(resp.ArrayOfBulkStrings("FROBNICATE"))
	assert.ErrorIs(t, err, rerr.ErrUnknownCommand)
}

func TestRenderRoundTrip(t *testing.T) {
	cases := []command.Command{
		{Kind: command.KindPing},
		{Kind: command.KindEcho, Text: "hi"},
		{Kind: command.KindSet, Key: "k", Value: []byte("v")},
		{Kind: command.KindSet, Key: "k", Value: []byte("v"), HasTTL: true, TTLMs: 100},
		{Kind: command.KindGet, Key: "k"},
	}
	for _, c := range cases {
		f := command.Render(c)
		parsed, err := command.Parse(f)
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}
}
