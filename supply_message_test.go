package ignite

import "testing"

func TestSupplyMessageBuilderPreservesAddOrder(t *testing.T) {
	b := newSupplyMessageBuilder(1, TopologyVersion{Major: 1})
	e1 := EntryInfo{KeyBytes: []byte("a"), ValueBytes: []byte("1")}
	e2 := EntryInfo{KeyBytes: []byte("b"), ValueBytes: []byte("2")}

	b.addEntry(7, e1)
	b.addEntry(7, e2)

	got := b.build().Entries[7]
	if len(got) != 2 || string(got[0].KeyBytes) != "a" || string(got[1].KeyBytes) != "b" {
		t.Fatalf("addEntry did not preserve order: %+v", got)
	}
}

func TestSupplyMessageBuilderWouldExceedAtLimit(t *testing.T) {
	b := newSupplyMessageBuilder(1, TopologyVersion{})
	info := EntryInfo{KeyBytes: []byte("k"), ValueBytes: []byte("v")}
	limit := entrySize(info)

	if !b.wouldExceed(limit, info) {
		t.Fatalf("an entry landing exactly at the limit must close the batch, not extend it")
	}
	if b.wouldExceed(limit+1, info) {
		t.Fatalf("an entry strictly under the limit must not trigger closure")
	}
}

func TestSupplyMessageBuilderMarkMissedAndLastAreIdempotent(t *testing.T) {
	b := newSupplyMessageBuilder(1, TopologyVersion{})
	b.markMissed(3)
	b.markMissed(3)
	b.markLast(3)
	b.markLast(3)

	msg := b.build()
	if len(msg.Missed) != 1 || !msg.Missed[3] {
		t.Fatalf("markMissed must be idempotent, got %+v", msg.Missed)
	}
	if len(msg.Last) != 1 || !msg.Last[3] {
		t.Fatalf("markLast must be idempotent, got %+v", msg.Last)
	}
}

func TestSupplyMessageBuilderSetDeploymentInfoFirstWins(t *testing.T) {
	b := newSupplyMessageBuilder(1, TopologyVersion{})
	first := DeploymentInfo{LoaderID: "l1", ClassName: "A"}
	second := DeploymentInfo{LoaderID: "l2", ClassName: "B"}

	b.setDeploymentInfo(first)
	b.setDeploymentInfo(second)

	got := b.build().DeploymentInfo
	if got == nil || got.LoaderID != "l1" {
		t.Fatalf("setDeploymentInfo must keep the first value, got %+v", got)
	}
}

func TestSupplyMessageBuilderResetKeepsIdentityAndOldBatchIntact(t *testing.T) {
	b := newSupplyMessageBuilder(1, TopologyVersion{Major: 1})
	b.addEntry(0, EntryInfo{KeyBytes: []byte("a")})
	first := b.build()

	b.reset(2, TopologyVersion{Major: 2})
	b.addEntry(0, EntryInfo{KeyBytes: []byte("b")})
	second := b.build()

	if len(first.Entries[0]) != 1 || string(first.Entries[0][0].KeyBytes) != "a" {
		t.Fatalf("reset must not mutate a previously built message, got %+v", first.Entries[0])
	}
	if len(second.Entries[0]) != 1 || string(second.Entries[0][0].KeyBytes) != "b" {
		t.Fatalf("reset must produce a clean batch, got %+v", second.Entries[0])
	}
	if second.UpdateSequence != 2 || second.TopologyVersion.Major != 2 {
		t.Fatalf("reset must update the carried sequence/version, got %+v", second)
	}
	if b.messageSize() != entrySize(EntryInfo{KeyBytes: []byte("b")}) {
		t.Fatalf("reset must zero the running size, got %d", b.messageSize())
	}
}
