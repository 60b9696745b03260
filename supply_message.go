package ignite

// entrySource tags which phase an entry was captured in, used only for
// metrics attribution — the wire message itself does not distinguish
// in-memory from promotion entries (only overflow entries carry deployment
// info).
type entrySource uint8

const (
	sourceInMemory entrySource = iota
	sourceOverflow
	sourcePromotion
)

// supplyMessageBuilder accumulates entries into a size-bounded outbound
// batch. It is not safe for concurrent use — the demand handler owns it for
// the duration of exactly one turn.
type supplyMessageBuilder struct {
	updateSequence  int64
	topologyVersion TopologyVersion

	entries map[int32][]EntryInfo
	missed  map[int32]bool
	last    map[int32]bool
	deploy  *DeploymentInfo

	size int // conservative running upper bound, in bytes
}

// entryOverhead is a conservative per-entry framing allowance (length
// prefixes, version, ttl, expire-time, flags) on top of the key/value
// payload, matching the builder's mandate to return a conservative upper
// bound rather than an exact size.
const entryOverhead = 40

func newSupplyMessageBuilder(updateSequence int64, version TopologyVersion) *supplyMessageBuilder {
	return &supplyMessageBuilder{
		updateSequence:  updateSequence,
		topologyVersion: version,
		entries:         make(map[int32][]EntryInfo),
		missed:          make(map[int32]bool),
		last:            make(map[int32]bool),
	}
}

func entrySize(info EntryInfo) int {
	return len(info.KeyBytes) + len(info.ValueBytes) + entryOverhead
}

// addEntry appends an in-memory or promotion-drained entry for part,
// preserving the order entries were added.
func (b *supplyMessageBuilder) addEntry(part int32, info EntryInfo) {
	b.entries[part] = append(b.entries[part], info)
	b.size += entrySize(info)
}

// addOverflowEntry is distinguished from addEntry only so the caller's
// deployment-info attachment can be scoped to overflow scans; on the wire
// both carry the same EntryInfo layout.
func (b *supplyMessageBuilder) addOverflowEntry(part int32, info EntryInfo) {
	b.addEntry(part, info)
}

// missed marks part as no longer sourced by this node. Idempotent.
func (b *supplyMessageBuilder) markMissed(part int32) {
	b.missed[part] = true
}

// last marks part's batch as terminal. Idempotent.
func (b *supplyMessageBuilder) markLast(part int32) {
	b.last[part] = true
}

// setDeploymentInfo is idempotent with first-wins semantics: once set, later
// calls are no-ops.
func (b *supplyMessageBuilder) setDeploymentInfo(d DeploymentInfo) {
	if b.deploy != nil {
		return
	}
	cp := d
	b.deploy = &cp
}

// messageSize returns a conservative upper bound on the serialized size of
// the message built so far.
func (b *supplyMessageBuilder) messageSize() int {
	return b.size
}

// wouldExceed reports whether admitting info would push the batch to or
// past limit. The check happens before appending, so the caller closes the
// batch first and info goes into the next one; a batch never grows past
// limit by admitting an entry on top of it.
func (b *supplyMessageBuilder) wouldExceed(limit int, info EntryInfo) bool {
	return b.size+entrySize(info) >= limit
}

// reset clears the builder back to empty, keeping its identity — callers
// hold a single *supplyMessageBuilder for the life of a turn and rotate its
// contents rather than reallocating, so nothing downstream can be left
// pointing at a stale batch.
func (b *supplyMessageBuilder) reset(updateSequence int64, version TopologyVersion) {
	b.updateSequence = updateSequence
	b.topologyVersion = version
	b.entries = make(map[int32][]EntryInfo)
	b.missed = make(map[int32]bool)
	b.last = make(map[int32]bool)
	b.deploy = nil
	b.size = 0
}

func (b *supplyMessageBuilder) build() SupplyMessage {
	return SupplyMessage{
		UpdateSequence:  b.updateSequence,
		TopologyVersion: b.topologyVersion,
		Entries:         b.entries,
		Missed:          b.missed,
		Last:            b.last,
		DeploymentInfo:  b.deploy,
	}
}
