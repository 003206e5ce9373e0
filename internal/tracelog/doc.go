// Package tracelog is the producer side of the trace protocol: an append-only
// log that assigns fresh path ids, checks every event against the path state
// before it is written and serializes appends in causal order.
package tracelog
