// Package config holds the process's startup configuration, parsed by
// cmd/redis-server's cobra command and handed to internal/server.
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config is the fully-validated set of flags this process was started
// with.
type Config struct {
	Port uint16

	// IsReplica is true when --replicaof was given.
	IsReplica  bool
	LeaderHost string
	LeaderPort uint16
}

// ParseReplicaOf splits the --replicaof flag value ("host port") into
// its two fields, matching the upstream CLI convention of passing both
// tokens as one argument.
func ParseReplicaOf(value string) (host string, port uint16, err error) {
	fields := strings.Fields(value)
	if len(fields) != 2 {
		return "", 0, fmt.Errorf("--replicaof requires \"<host> <port>\", got %q", value)
	}
	p, err := strconv.ParseUint(fields[1], 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("--replicaof port %q is not a valid u16: %w", fields[1], err)
	}
	return fields[0], uint16(p), nil
}
