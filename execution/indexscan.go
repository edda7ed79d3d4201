package execution

import (
	"bytes"

	"github.com/TheBenCollins/fdb-document-layer/checkpoint"
	"github.com/TheBenCollins/fdb-document-layer/document"
)

// IndexScan reads an index's key range, extracts the primary key from the
// tail of each entry, and emits a handle pointing at the primary document.
// Index entries may be duplicated (arrays produce multiple entries per
// document); DeduplicateIndexStream must follow this to collapse them.
func IndexScan(cx *Context, ix document.Index, begin, end []byte) Stream {
	scanID := cx.Check.AddScan(begin, end)
	bounds := cx.Check.GetBounds(scanID)
	out, task := newStage(cx.Check)

	go func() {
		defer close(out)
		defer close(task.Done)

		// A fresh single-slot semaphore throttles the iterator's own
		// read-ahead; the shared document lock is taken separately, once
		// per entry, right before it is forwarded.
		it := cx.Txn.GetRange(cx.Ctx, bounds.Begin, bounds.End, checkpoint.NewFlowControlLock(1, cx.Metrics))
		defer it.Close()

		var lastKey []byte

		for {
			select {
			case <-task.Stop:
				if cx.Check.BoundsWanted() {
					if lastKey != nil {
						cx.Check.SetSplitBound(scanID, document.KeyAfter(lastKey))
					} else {
						cx.Check.SetSplitBound(scanID, append([]byte{}, bounds.Begin...))
					}
				}
				return
			default:
			}

			row, ok, err := it.Next(cx.Ctx)
			if err != nil {
				sendErr(out, err)
				return
			}
			if !ok {
				if cx.Check.BoundsWanted() {
					cx.Check.SetSplitBound(scanID, append([]byte{}, document.Sentinel...))
				}
				return
			}

			pk, derr := ix.PrimaryKeyOf(row.Key)
			if derr != nil {
				sendErr(out, derr)
				return
			}

			coll := document.Collection{Prefix: ix.CollPrefix}
			handle := document.NewTxnHandle(cx.Txn, coll.DocPrefix(pk), scanID, append([]byte{}, row.Key...))

			if err := cx.Check.Lock().Take(cx.Ctx); err != nil {
				if cx.Check.BoundsWanted() {
					if lastKey != nil {
						cx.Check.SetSplitBound(scanID, document.KeyAfter(lastKey))
					} else {
						cx.Check.SetSplitBound(scanID, append([]byte{}, bounds.Begin...))
					}
				}
				return
			}
			if !sendDoc(out, task.Stop, handle) {
				cx.Check.Lock().Release()
				if cx.Check.BoundsWanted() {
					if lastKey != nil {
						cx.Check.SetSplitBound(scanID, document.KeyAfter(lastKey))
					} else {
						cx.Check.SetSplitBound(scanID, append([]byte{}, bounds.Begin...))
					}
				}
				return
			}
			lastKey = append([]byte{}, row.Key...)
		}
	}()

	return out
}

// DeduplicateIndexStream collapses an IndexScan's possibly-repeated
// entries per document down to exactly one, emitted only when the
// current entry carries the lexicographically LARGEST indexed value
// (among this document's values that fall strictly below indexUpperBound).
// field is the single indexed path; compound indexes are not
// deduplicated here, since compound-index push-down is a suffix
// refinement, not a dedup concern.
func DeduplicateIndexStream(cx *Context, in Stream, field string, indexUpperBound []byte) Stream {
	out, task := newStage(cx.Check)

	go func() {
		defer close(out)
		defer close(task.Done)

		for {
			r, ok, cancelled := recvDoc(in, task.Stop)
			if cancelled {
				return
			}
			if !ok {
				return
			}
			if r.Err != nil {
				sendErr(out, r.Err)
				return
			}

			keep, err := isLargestEligible(cx, r.Doc, field, indexUpperBound)
			if err != nil {
				sendErr(out, err)
				return
			}
			if !keep {
				cx.Check.Lock().Release()
				continue
			}
			if !sendDoc(out, task.Stop, r.Doc) {
				cx.Check.Lock().Release()
				if cx.Check.BoundsWanted() {
					// The document that triggered this cancelled send is the
					// only one outstanding at this stage (it processes one
					// input item at a time), so its own scanKey is the split.
					cx.Check.SetSplitBound(r.Doc.ScanID(), append([]byte{}, r.Doc.ScanKey()...))
				}
				return
			}
		}
	}()

	return out
}

func isLargestEligible(cx *Context, doc document.Handle, field string, upperBound []byte) (bool, error) {
	raw, ok, err := doc.Get(cx.Ctx, []byte(field))
	if err != nil || !ok {
		return false, err
	}
	values, err := document.DecodeValues(raw)
	if err != nil {
		return false, err
	}

	var maxEligible []byte
	for _, v := range values {
		enc := document.EncodeKeyPart(nil, v)
		if bytes.Compare(enc, upperBound) >= 0 {
			continue
		}
		if maxEligible == nil || bytes.Compare(enc, maxEligible) > 0 {
			maxEligible = enc
		}
	}
	if maxEligible == nil {
		return false, nil
	}
	return hasPrefixValue(doc.ScanKey(), maxEligible), nil
}

// hasPrefixValue reports whether scanKey's leading encoded index value
// equals want; scanKey is the full index entry key (indexed value(s) ++
// primary key), so want must be a prefix of it.
func hasPrefixValue(scanKey, want []byte) bool {
	return len(scanKey) >= len(want) && bytes.Equal(scanKey[:len(want)], want)
}
