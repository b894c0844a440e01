// Package command derives the server's tagged Command representation
// from a parsed resp.Frame and renders it back for replication fan-out.
package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sandia-minimega/redis-go/internal/resp"
	"github.com/sandia-minimega/redis-go/internal/rerr"
)

// Kind discriminates the Command variants. Only the fields documented
// next to a Kind are meaningful for that variant.
type Kind int

const (
	KindPing Kind = iota
	KindEcho
	KindSet
	KindGet
	KindInfo
	KindReplConf
	KindPSync
	KindWait
)

// ReplConfMode discriminates REPLCONF's sub-variants.
type ReplConfMode int

const (
	ReplConfListeningPort ReplConfMode = iota
	ReplConfCapability
	ReplConfGetAck
	ReplConfAck
)

// Command is a tagged union over every request this server accepts,
// both from ordinary clients and over the replication stream.
type Command struct {
	Kind Kind

	// ECHO
	Text string

	// SET
	Key      string
	Value    []byte
	TTLMs    int64
	HasTTL   bool

	// GET reuses Key above.

	// INFO
	Section string // empty means "no section requested"

	// REPLCONF
	ReplConfMode ReplConfMode
	ReplConfArg  string // Capability / GetAck raw text
	ListenPort   uint16
	Ack          int64

	// PSYNC
	ReplIDOrQuestionMark string
	OffsetOrMinusOne     int64

	// WAIT
	MinReplicas int32
	TimeoutMs   uint64
}

// Parse derives a Command from a top-level Array-of-BulkStrings frame.
func Parse(f resp.Frame) (Command, error) {
	if f.Kind != resp.KindArray || len(f.Array) == 0 {
		return Command{}, fmt.Errorf("%w: expected non-empty array", rerr.ErrBadArguments)
	}

	parts := make([]string, len(f.Array))
	for i, item := range f.Array {
		if item.Kind != resp.KindBulkString {
			return Command{}, fmt.Errorf("%w: array element %d is not a bulk string", rerr.ErrBadArguments, i)
		}
		parts[i] = string(item.Bulk)
	}

	name := strings.ToUpper(parts[0])
	args := parts[1:]

	switch name {
	case "PING":
		return Command{Kind: KindPing}, nil
	case "ECHO":
		if len(args) != 1 {
			return Command{}, fmt.Errorf("%w: ECHO takes exactly one argument", rerr.ErrBadArguments)
		}
		return Command{Kind: KindEcho, Text: args[0]}, nil
	case "SET":
		return parseSet(args)
	case "GET":
		if len(args) != 1 {
			return Command{}, fmt.Errorf("%w: GET takes exactly one argument", rerr.ErrBadArguments)
		}
		return Command{Kind: KindGet, Key: args[0]}, nil
	case "INFO":
		section := ""
		if len(args) >= 1 {
			section = strings.ToLower(args[0])
		}
		return Command{Kind: KindInfo, Section: section}, nil
	case "REPLCONF":
		return parseReplConf(args)
	case "PSYNC":
		return parsePSync(args)
	case "WAIT":
		return parseWait(args)
	default:
		return Command{}, fmt.Errorf("%w: %s", rerr.ErrUnknownCommand, name)
	}
}

func parseSet(args []string) (Command, error) {
	if len(args) < 2 {
		return Command{}, fmt.Errorf("%w: SET requires key and value", rerr.ErrBadArguments)
	}
	c := Command{Kind: KindSet, Key: args[0], Value: []byte(args[1])}

	rest := args[2:]
	for len(rest) >= 2 {
		if strings.EqualFold(rest[0], "PX") {
			ms, err := strconv.ParseInt(rest[1], 10, 64)
			if err != nil {
				return Command{}, fmt.Errorf("%w: PX value %q not an integer", rerr.ErrBadArguments, rest[1])
			}
			c.HasTTL = true
			c.TTLMs = ms
		}
		rest = rest[2:]
	}
	return c, nil
}

func parseReplConf(args []string) (Command, error) {
	if len(args) < 2 {
		return Command{}, fmt.Errorf("%w: REPLCONF requires mode and argument", rerr.ErrBadArguments)
	}
	mode, arg := strings.ToLower(args[0]), args[1]

	switch mode {
	case "listening-port":
		port, err := strconv.ParseUint(arg, 10, 16)
		if err != nil {
			return Command{}, fmt.Errorf("%w: listening-port %q not a u16", rerr.ErrBadArguments, arg)
		}
		return Command{Kind: KindReplConf, ReplConfMode: ReplConfListeningPort, ListenPort: uint16(port)}, nil
	case "capa":
		return Command{Kind: KindReplConf, ReplConfMode: ReplConfCapability, ReplConfArg: arg}, nil
	case "getack":
		return Command{Kind: KindReplConf, ReplConfMode: ReplConfGetAck, ReplConfArg: arg}, nil
	case "ack":
		n, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return Command{}, fmt.Errorf("%w: ack offset %q not an integer", rerr.ErrBadArguments, arg)
		}
		return Command{Kind: KindReplConf, ReplConfMode: ReplConfAck, Ack: n}, nil
	default:
		return Command{}, fmt.Errorf("%w: REPLCONF mode %q", rerr.ErrBadArguments, mode)
	}
}

func parsePSync(args []string) (Command, error) {
	if len(args) != 2 {
		return Command{}, fmt.Errorf("%w: PSYNC requires replid and offset", rerr.ErrBadArguments)
	}
	offset, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return Command{}, fmt.Errorf("%w: PSYNC offset %q not an integer", rerr.ErrBadArguments, args[1])
	}
	return Command{Kind: KindPSync, ReplIDOrQuestionMark: args[0], OffsetOrMinusOne: offset}, nil
}

func parseWait(args []string) (Command, error) {
	if len(args) != 2 {
		return Command{}, fmt.Errorf("%w: WAIT requires numreplicas and timeout", rerr.ErrBadArguments)
	}
	n, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		return Command{}, fmt.Errorf("%w: WAIT numreplicas %q not an integer", rerr.ErrBadArguments, args[0])
	}
	t, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return Command{}, fmt.Errorf("%w: WAIT timeout %q not an integer", rerr.ErrBadArguments, args[1])
	}
	return Command{Kind: KindWait, MinReplicas: int32(n), TimeoutMs: t}, nil
}

// Render round-trips a Command back to an Array-of-BulkStrings frame,
// matching the request form a client or the leader would have sent it
// in. It is used both for replication fan-out and for the follower's
// REPLCONF ACK replies.
func Render(c Command) resp.Frame {
	switch c.Kind {
	case KindPing:
		return resp.ArrayOfBulkStrings("PING")
	case KindEcho:
		return resp.ArrayOfBulkStrings("ECHO", c.Text)
	case KindSet:
		if c.HasTTL {
			return resp.ArrayOfBulkStrings("SET", c.Key, string(c.Value), "PX", strconv.FormatInt(c.TTLMs, 10))
		}
		return resp.Array(resp.BulkFromString("SET"), resp.BulkFromString(c.Key), resp.Bulk(c.Value))
	case KindGet:
		return resp.ArrayOfBulkStrings("GET", c.Key)
	case KindInfo:
		if c.Section == "" {
			return resp.ArrayOfBulkStrings("INFO")
		}
		return resp.ArrayOfBulkStrings("INFO", c.Section)
	case KindReplConf:
		switch c.ReplConfMode {
		case ReplConfListeningPort:
			return resp.ArrayOfBulkStrings("REPLCONF", "listening-port", strconv.FormatUint(uint64(c.ListenPort), 10))
		case ReplConfCapability:
			return resp.ArrayOfBulkStrings("REPLCONF", "capa", c.ReplConfArg)
		case ReplConfGetAck:
			return resp.ArrayOfBulkStrings("REPLCONF", "GETACK", c.ReplConfArg)
		case ReplConfAck:
			return resp.ArrayOfBulkStrings("REPLCONF", "ACK", strconv.FormatInt(c.Ack, 10))
		}
	case KindPSync:
		return resp.ArrayOfBulkStrings("PSYNC", c.ReplIDOrQuestionMark, strconv.FormatInt(c.OffsetOrMinusOne, 10))
	case KindWait:
		return resp.ArrayOfBulkStrings("WAIT", strconv.FormatInt(int64(c.MinReplicas), 10), strconv.FormatUint(c.TimeoutMs, 10))
	}
	return resp.Array()
}

