package server

// emptySnapshot is the fixed opaque blob this leader sends during full
// resync (spec 6: "a fixed 88-byte opaque snapshot -- an empty dataset
// header in the upstream format"). Its bytes are never interpreted by
// this system; only its length is load-bearing, since the follower
// must consume exactly that many bytes to stay in sync with the stream
// that follows.
var emptySnapshot = buildEmptySnapshot()

func buildEmptySnapshot() []byte {
	const totalLen = 88
	header := []byte("REDIS0011")
	footer := make([]byte, 9) // EOF opcode (0xFF) + 8-byte checksum placeholder
	footer[0] = 0xFF

	blob := make([]byte, totalLen)
	copy(blob, header)
	copy(blob[totalLen-len(footer):], footer)
	return blob
}
