package dispatch

import "hash/fnv"

// shardIndex steers srcIP deterministically to one of n workers, the
// same technique ratelimit uses to assign per-IP state to a shard, so
// that the same IP consistently lands with the same worker across both
// subsystems (spec §5: "A given source IP is steered (by hash) to
// exactly one worker").
func shardIndex(srcIP string, n int) int {
	if n <= 1 {
		return 0
	}

	h := fnv.New32a()
	h.Write([]byte(srcIP)) //nolint:errcheck

	return int(h.Sum32() % uint32(n))
}
