package resp

import (
	"io"

	"github.com/sandia-minimega/redis-go/internal/rerr"
)

// Reader buffers bytes off an io.Reader and hands back one Frame at a
// time, refilling from the underlying stream whenever Decode reports
// ErrIncomplete. Both the client session loop and the follower's
// handshake/streaming loop use it: the incremental-decode contract is
// the same whether the bytes come from a client or from the leader.
type Reader struct {
	src io.Reader
	buf []byte
}

func NewReader(src io.Reader) *Reader {
	return &Reader{src: src, buf: make([]byte, 0, 4096)}
}

// ReadFrame blocks until one complete frame is available and returns
// it, consuming exactly its bytes from the internal buffer. It returns
// the underlying io.Reader's error (typically io.EOF) once the stream
// ends, whether or not a partial frame is still buffered, and the
// rerr.ErrMalformed-wrapping error from Decode unchanged
// if the buffered prefix cannot be parsed.
func (r *Reader) ReadFrame() (Frame, error) {
	f, _, err := r.ReadFrameWithLen()
	return f, err
}

// ReadFrameWithLen behaves like ReadFrame but also returns the number
// of bytes the frame consumed, needed by the follower apply loop to
// advance ack_offset by exactly the frame's wire length.
func (r *Reader) ReadFrameWithLen() (Frame, int, error) {
	for {
		before := len(r.buf)
		rest, f, err := Decode(r.buf)
		if err == nil {
			consumed := before - len(rest)
			r.buf = rest
			return f, consumed, nil
		}
		if err != rerr.ErrIncomplete {
			return Frame{}, 0, err
		}

		chunk := make([]byte, 4096)
		n, rerrv := r.src.Read(chunk)
		if n > 0 {
			r.buf = append(r.buf, chunk[:n]...)
		}
		if rerrv != nil {
			if n > 0 {
				// try once more to decode what we just appended before
				// surfacing the read error.
				continue
			}
			return Frame{}, 0, rerrv
		}
	}
}

// ReadExact consumes exactly n bytes (used to skip the opaque snapshot
// blob during full resync), refilling from the stream as needed.
func (r *Reader) ReadExact(n int) ([]byte, error) {
	for len(r.buf) < n {
		chunk := make([]byte, 4096)
		read, err := r.src.Read(chunk)
		if read > 0 {
			r.buf = append(r.buf, chunk[:read]...)
		}
		if err != nil {
			if len(r.buf) >= n {
				break
			}
			return nil, err
		}
	}
	out := r.buf[:n]
	r.buf = r.buf[n:]
	return out, nil
}

// ReadLine returns the next CRLF-terminated line (without the CRLF),
// refilling as needed. Used to read the `$<len>` header that precedes
// the snapshot blob.
func (r *Reader) ReadLine() ([]byte, error) {
	for {
		line, rest, err := readLine(r.buf)
		if err == nil {
			r.buf = rest
			return line, nil
		}
		chunk := make([]byte, 4096)
		n, rerrv := r.src.Read(chunk)
		if n > 0 {
			r.buf = append(r.buf, chunk[:n]...)
		}
		if rerrv != nil {
			if n > 0 {
				continue
			}
			return nil, rerrv
		}
	}
}

// Buffered reports how many undecoded bytes are currently held, purely
// for diagnostics/tests.
func (r *Reader) Buffered() int { return len(r.buf) }
