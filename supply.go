package ignite

import (
	"context"
	"time"
)

// turnSignal is the outcome of one partition's scan within a turn: it tells
// runTurn whether to continue to the next phase, move to the next
// partition, suspend (storing a context), or stop the turn outright because
// the demander is gone.
type turnSignal uint8

const (
	signalPhaseDone turnSignal = iota
	signalPartitionMissed
	signalSuspend
	signalRecipientGone
	signalInternalFailure
)

// runTurn is the supply state machine: it drives the per-partition,
// four-phase scan loop, feeding a supplyMessageBuilder and transmitting
// completed batches via the message bus. existing is the resumed context,
// or nil for a fresh demand.
func (e *Engine) runTurn(ctx context.Context, d DemandMessage, existing *SupplyContext) {
	resumed := existing != nil
	maxBatches := e.cfg.Rebalance.BatchesCount
	if resumed {
		maxBatches = 1
	}

	wc := existing
	if wc == nil {
		wc = &SupplyContext{
			demander:            d.DemanderID,
			workerSlot:          d.WorkerSlot,
			topologyVersion:     d.TopologyVersion,
			remainingPartitions: append([]int32(nil), d.Partitions...),
		}
	}

	batchesSent := 0
	builder := newSupplyMessageBuilder(d.UpdateSequence, d.TopologyVersion)

	// transmit sends the builder's batch and resets it to an empty one.
	// throttle is applied only when more batches are expected to follow
	// within this turn; it is never applied after the final reply.
	transmit := func(throttleAfter bool) error {
		msg := builder.build()
		e.metrics.batchSizeHist.Update(int64(builder.messageSize()))
		err := e.Bus.SendOrdered(ctx, d.DemanderID, d.ReplyTopic, msg, OrderedReliable, d.Timeout)
		builder.reset(d.UpdateSequence, d.TopologyVersion)
		if err != nil {
			return err
		}
		if throttleAfter && e.cfg.Rebalance.Throttle > 0 {
			time.Sleep(e.cfg.Rebalance.Throttle)
		}
		return nil
	}

	for {
		partition, ok := wc.nextPartition()
		if !ok {
			// Partition set exhausted with no suspension: emit the
			// final batch, which may be empty except for markers,
			// and return with no context stored.
			_ = transmit(false)
			return
		}

		var part Partition
		if wc.reserved != nil {
			// Resuming mid-partition: the reservation follows the
			// context across suspensions, so it is not re-acquired.
			part = wc.reserved
		} else {
			p := e.Partitions.LocalPartition(partition, d.TopologyVersion)
			if p == nil || p.State() != PartitionOwning || !p.Reserve() {
				builder.markMissed(partition)
				e.metrics.missedMeter.Mark(1)
				continue
			}
			part = p
			wc.reserved = part
		}
		wc.currentPartition = partition

		signal := e.scanPartition(ctx, d, wc, part, builder, transmit, &batchesSent, maxBatches)

		switch signal {
		case signalSuspend:
			wc.hasCurrentPartition = true
			e.metrics.suspendedCounter.Inc(1)
			e.Contexts.Put(wc)
			return
		case signalRecipientGone:
			wc.evict()
			return
		case signalInternalFailure:
			// Logged by the caller that detected it; leave the
			// context (with its reservation and listener) for the
			// topology event subscriber to reclaim.
			wc.hasCurrentPartition = true
			e.Contexts.Put(wc)
			return
		case signalPartitionMissed:
			wc.closeScanState()
			part.Release()
			wc.reserved = nil
			wc.cursor = cursorNone
			wc.currentPartition = 0
			wc.deployAttached = false
			e.metrics.missedMeter.Mark(1)
			continue
		default: // signalPhaseDone: the partition ran phases 1-3 to completion
			builder.markLast(partition)
			e.metrics.lastMeter.Mark(1)
			wc.closeScanState()
			part.Release()
			wc.reserved = nil
			wc.cursor = cursorNone
			wc.currentPartition = 0
			wc.deployAttached = false
			continue
		}
	}
}

// scanPartition drives one partition through phases 0-3. It returns
// signalPhaseDone only when all three data sources have been exhausted
// without suspension, missed detection, or a gone recipient.
func (e *Engine) scanPartition(
	ctx context.Context,
	d DemandMessage,
	wc *SupplyContext,
	part Partition,
	builder *supplyMessageBuilder,
	transmit func(throttleAfter bool) error,
	batchesSent *int,
	maxBatches int,
) turnSignal {
	// Phase 0 — prologue. Only on a genuinely fresh start for this
	// partition (no context, or a context still at phase 0) do we stand
	// up a promotion listener.
	if wc.cursor == cursorNone {
		if e.Overflow != nil && e.Overflow.Enabled() {
			l := newPromotionListener()
			e.Overflow.AddOverflowListener(wc.currentPartition, l)
			e.Overflow.AddPromotionListener(wc.currentPartition, l)
			wc.listener = l
			wc.overflow = e.Overflow
		}
		wc.cursor = cursorInMemory
	}

	// Phase 1 — in-memory scan.
	if wc.cursor == cursorInMemory {
		if wc.memIter == nil {
			wc.memIter = part.Entries()
		}
		sig := e.scanInMemory(ctx, d, wc, builder, transmit, batchesSent, maxBatches)
		if sig != signalPhaseDone {
			return sig
		}
		if wc.memIter != nil {
			_ = wc.memIter.Close()
			wc.memIter = nil
		}
		wc.cursor = cursorOverflow
	}

	// Phase 2 — overflow scan, only if overflow is enabled.
	if wc.cursor == cursorOverflow {
		if e.Overflow != nil && e.Overflow.Enabled() {
			if wc.ofIter == nil {
				wc.ofIter = e.Overflow.Iterator(wc.currentPartition)
			}
			if wc.ofIter != nil {
				sig := e.scanOverflow(ctx, d, wc, builder, transmit, batchesSent, maxBatches)
				if sig != signalPhaseDone {
					return sig
				}
				if err := wc.ofIter.Close(); err != nil {
					Logger.Errorw("closing overflow iterator", "partition", wc.currentPartition, "error", err)
				}
				wc.ofIter = nil
			}
		}
		wc.cursor = cursorPromotion
	}

	// Phase 3 — promotion drain. The listener is deregistered and removed
	// from the overflow store before its buffer is read, and the buffer is
	// read exactly once here.
	if wc.cursor == cursorPromotion {
		if wc.listener != nil && wc.promoBuf == nil {
			wc.listener.deregister()
			if wc.overflow != nil {
				wc.overflow.RemoveOverflowListener(wc.currentPartition, wc.listener)
				wc.overflow.RemovePromotionListener(wc.currentPartition, wc.listener)
			}
			wc.promoBuf = wc.listener.entries()
			wc.listener = nil
			wc.overflow = nil
			wc.promoIdx = 0
		}
		sig := e.scanPromotion(ctx, d, wc, builder, transmit, batchesSent, maxBatches)
		if sig != signalPhaseDone {
			return sig
		}
		wc.promoBuf = nil
		wc.promoIdx = 0
	}

	return signalPhaseDone
}

// admitOrSuspend applies the shared saturation rule: once info would push
// the batch at or past the size limit, the accumulated batch is always
// transmitted first — it is never discarded — and only then does the turn
// budget decide whether scanning continues with a fresh batch or the caller
// must suspend, leaving info to be replayed as the first entry of the next
// turn. It returns ok=false when the caller must suspend without admitting
// info.
func (e *Engine) admitOrSuspend(
	builder *supplyMessageBuilder,
	info EntryInfo,
	transmit func(throttleAfter bool) error,
	batchesSent *int,
	maxBatches int,
) (ok bool, gone bool) {
	if !builder.wouldExceed(e.cfg.Rebalance.BatchSize, info) {
		return true, false
	}
	*batchesSent++
	finalBatchOfTurn := *batchesSent >= maxBatches
	if err := transmit(!finalBatchOfTurn); err != nil {
		return false, true
	}
	if finalBatchOfTurn {
		return false, false
	}
	return true, false
}

func (e *Engine) scanInMemory(
	ctx context.Context,
	d DemandMessage,
	wc *SupplyContext,
	builder *supplyMessageBuilder,
	transmit func(throttleAfter bool) error,
	batchesSent *int,
	maxBatches int,
) turnSignal {
	it := wc.memIter
	for {
		var info EntryInfo
		if wc.memPending != nil {
			info = *wc.memPending
			wc.memPending = nil
		} else {
			if !it.Next() {
				if err := it.Err(); err != nil {
					Logger.Errorw("in-memory iterator failed", "partition", wc.currentPartition, "error", err)
					return signalInternalFailure
				}
				return signalPhaseDone
			}
			info = it.Entry()
		}

		if !e.Affinity.Belongs(d.DemanderID, wc.currentPartition, d.TopologyVersion) {
			builder.markMissed(wc.currentPartition)
			return signalPartitionMissed
		}

		ok, gone := e.admitOrSuspend(builder, info, transmit, batchesSent, maxBatches)
		if gone {
			return signalRecipientGone
		}
		if !ok {
			wc.memPending = &info
			return signalSuspend
		}

		if e.cfg.Preload != nil && !e.cfg.Preload(wc.currentPartition, info) {
			continue
		}
		if info.IsNew {
			continue
		}

		builder.addEntry(wc.currentPartition, info)
		e.metrics.recordEntry(sourceInMemory)
	}
}

func (e *Engine) scanOverflow(
	ctx context.Context,
	d DemandMessage,
	wc *SupplyContext,
	builder *supplyMessageBuilder,
	transmit func(throttleAfter bool) error,
	batchesSent *int,
	maxBatches int,
) turnSignal {
	it := wc.ofIter
	for {
		var oe OverflowEntry
		if wc.ofPending != nil {
			oe = *wc.ofPending
			wc.ofPending = nil
		} else {
			if !it.Next() {
				if err := it.Err(); err != nil {
					Logger.Errorw("overflow iterator failed", "partition", wc.currentPartition, "error", err)
					return signalInternalFailure
				}
				return signalPhaseDone
			}
			oe = it.Entry()
		}

		if !e.Affinity.Belongs(d.DemanderID, wc.currentPartition, d.TopologyVersion) {
			builder.markMissed(wc.currentPartition)
			return signalPartitionMissed
		}

		info := overflowToEntryInfo(oe)

		ok, gone := e.admitOrSuspend(builder, info, transmit, batchesSent, maxBatches)
		if gone {
			return signalRecipientGone
		}
		if !ok {
			wc.ofPending = &oe
			return signalSuspend
		}

		if !wc.deployAttached && oe.HasClassLoader() {
			loaderID := oe.KeyClassLoaderID
			if loaderID == "" {
				loaderID = oe.ValueClassLoaderID
			}
			di, resolved := e.Deployment.ClassLoaderFor(loaderID)
			if !resolved {
				continue // ErrUnresolvedDeployment: skip this entry, keep scanning
			}
			builder.setDeploymentInfo(di)
			wc.deployAttached = true
		}

		if e.cfg.Preload != nil && !e.cfg.Preload(wc.currentPartition, info) {
			continue
		}

		builder.addOverflowEntry(wc.currentPartition, info)
		e.metrics.recordEntry(sourceOverflow)
	}
}

func (e *Engine) scanPromotion(
	ctx context.Context,
	d DemandMessage,
	wc *SupplyContext,
	builder *supplyMessageBuilder,
	transmit func(throttleAfter bool) error,
	batchesSent *int,
	maxBatches int,
) turnSignal {
	for wc.promoIdx < len(wc.promoBuf) {
		info := wc.promoBuf[wc.promoIdx].Entry

		if !e.Affinity.Belongs(d.DemanderID, wc.currentPartition, d.TopologyVersion) {
			builder.markMissed(wc.currentPartition)
			return signalPartitionMissed
		}

		ok, gone := e.admitOrSuspend(builder, info, transmit, batchesSent, maxBatches)
		if gone {
			return signalRecipientGone
		}
		if !ok {
			return signalSuspend
		}

		if e.cfg.Preload != nil && !e.cfg.Preload(wc.currentPartition, info) {
			wc.promoIdx++
			continue
		}
		if info.IsNew {
			wc.promoIdx++
			continue
		}

		builder.addEntry(wc.currentPartition, info)
		e.metrics.recordEntry(sourcePromotion)
		wc.promoIdx++
	}
	return signalPhaseDone
}

func overflowToEntryInfo(oe OverflowEntry) EntryInfo {
	var expireMillis int64
	if !oe.ExpireTime.IsZero() {
		expireMillis = oe.ExpireTime.UnixMilli()
	}
	return EntryInfo{
		KeyBytes:         oe.KeyBytes,
		ValueBytes:       oe.ValueBytes,
		Version:          oe.Version,
		TTLMillis:        oe.TTL.Milliseconds(),
		ExpireTimeMillis: expireMillis,
	}
}
