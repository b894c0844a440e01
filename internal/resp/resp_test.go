package resp_test

import (
	"testing"

	"github.com/sandia-minimega/redis-go/internal/resp"
	"github.com/sandia-minimega/redis-go/internal/rerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := []resp.Frame{
		resp.Simple("PONG"),
		resp.Simple("OK"),
		resp.ErrorFrame("ERR unknown command"),
		resp.Int(42),
		resp.Int(-1),
		resp.NullBulk(),
		resp.BulkFromString("hello"),
		resp.Bulk([]byte{0x00, 0x01, 0xff}),
		resp.ArrayOfBulkStrings("SET", "k", "v"),
		resp.Array(),
	}

	for _, f := range cases {
		encoded := resp.Encode(f)
		rest, decoded, err := resp.Decode(encoded)
		require.NoError(t, err)
		assert.Empty(t, rest)
		assert.Equal(t, f, decoded)
	}
}

func TestDecodeLeavesSuffixUntouched(t *testing.T) {
	f := resp.ArrayOfBulkStrings("PING")
	encoded := resp.Encode(f)
	suffix := []byte("garbage-that-is-not-a-frame")
	rest, decoded, err := resp.Decode(append(encoded, suffix...))
	require.NoError(t, err)
	assert.Equal(t, suffix, rest)
	assert.Equal(t, f, decoded)
}

func TestDecodeIncomplete(t *testing.T) {
	full := resp.Encode(resp.ArrayOfBulkStrings("ECHO", "hi"))
	for n := 0; n < len(full); n++ {
		_, _, err := resp.Decode(full[:n])
		assert.ErrorIsf(t, err, rerr.ErrIncomplete, "prefix length %d", n)
	}
}

func TestDecodeMalformed(t *testing.T) {
	_, _, err := resp.Decode([]byte("!nope\r\n"))
	assert.ErrorIs(t, err, rerr.ErrMalformed)

	_, _, err = resp.Decode([]byte("*abc\r\n"))
	assert.ErrorIs(t, err, rerr.ErrMalformed)

	_, _, err = resp.Decode([]byte("$3\r\nabXY\r\n"))
	assert.ErrorIs(t, err, rerr.ErrMalformed)
}

func TestEncodeEmptyIsZeroBytes(t *testing.T) {
	assert.Empty(t, resp.Encode(resp.Empty()))
}
