package queue

import "fmt"

// Key layout inside the broker, all rooted at the connection prefix:
//
//	<prefix>:q:<queue>:seq        enqueue sequence counter (INCR)
//	<prefix>:q:<queue>:waiting    ZSET of job ids, score = priority band + seq
//	<prefix>:q:<queue>:delayed    ZSET of job ids, score = ready-at unix millis
//	<prefix>:q:<queue>:active     gauge of in-flight jobs
//	<prefix>:q:<queue>:job:<id>   HASH with the job record
//	<prefix>:q:<queue>:completed  LIST of retained completed job ids
//	<prefix>:q:<queue>:failed     LIST of retained failed job ids
type keys struct {
	prefix string
	queue  string
}

func newKeys(prefix, queue string) keys {
	return keys{prefix: prefix, queue: queue}
}

func (k keys) root() string      { return fmt.Sprintf("%s:q:%s", k.prefix, k.queue) }
func (k keys) seq() string       { return k.root() + ":seq" }
func (k keys) waiting() string   { return k.root() + ":waiting" }
func (k keys) delayed() string   { return k.root() + ":delayed" }
func (k keys) active() string    { return k.root() + ":active" }
func (k keys) completed() string { return k.root() + ":completed" }
func (k keys) failed() string    { return k.root() + ":failed" }
func (k keys) job(id string) string {
	return fmt.Sprintf("%s:job:%s", k.root(), id)
}

// waitingScore composes the waiting-set score so that higher-priority jobs
// pop first (ZPOPMIN) and ties fall back to enqueue order. The priority band
// dominates the sequence number; both stay integer-exact in a float64.
func waitingScore(priority int, seq int64) float64 {
	if priority < 1 {
		priority = 1
	}
	if priority > MaxPriority {
		priority = MaxPriority
	}
	return float64(MaxPriority-priority)*prioBand + float64(seq)
}

// prioBand must exceed any realistic sequence counter value.
const prioBand = 1e12
