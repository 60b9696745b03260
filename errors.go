package ignite

import (
	"errors"
	"fmt"
)

// Sentinel errors covering the taxonomy in the error handling design: stale
// topology and not-owner are resolved inline by the state machine and never
// escape it; the rest can surface from collaborator calls.
var (
	// ErrStaleTopology names the case of a demand whose topology version
	// does not match the current view. The handler drops such demands
	// silently without returning this error; they never reach the
	// message bus.
	ErrStaleTopology = errors.New("ignite: demand topology version is stale")

	// ErrNotOwner means the local partition is absent, not OWNING, or its
	// reservation failed. The caller appends a missed(p) marker and
	// moves on; it is not propagated further.
	ErrNotOwner = errors.New("ignite: local node is not a valid source for partition")

	// ErrRecipientGone is returned by the message bus when the demander
	// has left the cluster. The handler stops the turn immediately.
	ErrRecipientGone = errors.New("ignite: recipient left the cluster")

	// ErrUnresolvedDeployment means a class loader id on an overflow
	// entry could not be resolved. The entry is skipped.
	ErrUnresolvedDeployment = errors.New("ignite: class loader id did not resolve to deployment info")
)

// IteratorCloseError wraps a failure to close an iterator or deregister a
// listener during eviction. The engine's own teardown (closeScanState) does
// not construct it: it logs close failures directly and proceeds.
type IteratorCloseError struct {
	Partition int32
	Err       error
}

func (e *IteratorCloseError) Error() string {
	return fmt.Sprintf("ignite: closing iterator for partition %d: %v", e.Partition, e.Err)
}

func (e *IteratorCloseError) Unwrap() error { return e.Err }

// InternalFailureError wraps an unexpected failure inside the state machine.
// The state machine does not construct it: on an iterator failure it logs
// the error directly, aborts the current demand, and leaves the context
// stored for the topology event subscriber to clean up.
type InternalFailureError struct {
	Demander   DemanderID
	WorkerSlot int
	Partition  int32
	Err        error
}

func (e *InternalFailureError) Error() string {
	return fmt.Sprintf("ignite: internal failure supplying partition %d to %s/%d: %v",
		e.Partition, e.Demander, e.WorkerSlot, e.Err)
}

func (e *InternalFailureError) Unwrap() error { return e.Err }
