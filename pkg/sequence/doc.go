// Package sequence drives ordered multi-step command sequences.
//
// The glasses activate features through fixed packet sequences whose
// ordering and inter-step timing they silently depend on: a sequence
// sent out of order is simply ignored, with no error coming back. A
// Runner executes the steps one at a time, sleeping the configured wait
// after each, and collects the outcome in a Summary.
//
// Acknowledgment timeouts are soft failures. Ordering, not delivery
// confirmation, dominates whether the device accepts a sequence, so a
// missing ack is recorded and the run continues. Only transport errors
// abort a run, reported as a SequenceError naming the step reached.
// Runs never retry; re-running the whole sequence is the caller's call.
//
// Sequences can be built in code or loaded from YAML for probing
// experiments.
package sequence
