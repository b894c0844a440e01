package replication

import (
	"time"

	"github.com/sandia-minimega/redis-go/internal/command"
)

// Wait implements the WAIT consistency gate (spec 4.H): it blocks the
// calling goroutine until k followers have acknowledged the leader's
// current data_offset, or t elapses, and returns the observed count.
func (s *State) Wait(k int32, t time.Duration) int {
	target := s.DataOffset()
	if target == 0 {
		return s.FollowerCount()
	}

	followers := s.snapshotFollowers()

	getack := command.Render(command.Command{
		Kind:         command.KindReplConf,
		ReplConfMode: command.ReplConfGetAck,
		ReplConfArg:  "*",
	})
	s.SendGetAck(getack)

	deadline := time.Now().Add(t)
	const pollInterval = time.Millisecond
	for {
		count := countAcked(followers, target)
		if count >= int(k) || time.Now().After(deadline) {
			return count
		}
		remaining := time.Until(deadline)
		if remaining < pollInterval {
			time.Sleep(remaining)
		} else {
			time.Sleep(pollInterval)
		}
	}
}

func countAcked(followers []*FollowerHandle, target uint64) int {
	n := 0
	for _, f := range followers {
		if f.LastAckOffset() >= int64(target) {
			n++
		}
	}
	return n
}
