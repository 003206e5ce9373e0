// Package validate replays a recorded trace through a fresh path-state tracker
// and reports its structural consistency: the located violations, the paths
// left open at the end and summary statistics. Validate handles a complete
// trace in either wire form; Stream validates a stream-form log as it grows.
package validate
