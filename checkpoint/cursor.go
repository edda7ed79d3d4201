package checkpoint

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/s2"

	"github.com/TheBenCollins/fdb-document-layer/document"
	"github.com/TheBenCollins/fdb-document-layer/metrics"
)

// EncodeCursor serializes pc's resumable state — every scan's current
// bounds and every operator's resumable counter — into an opaque,
// compressed cursor a caller can hand back across a process boundary,
// letting a paginated query API resume a running scan outside the
// current process. EncodeCursor must only be called on a checkpoint
// produced by StopAndCheckpoint; calling it mid-execution would race the
// operators still mutating pc.
func (pc *PlanCheckpoint) EncodeCursor() []byte {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	var buf bytes.Buffer
	writeUvarint(&buf, uint64(len(pc.scans)))
	for _, e := range pc.scans {
		writeBytes(&buf, e.bounds.Begin)
		writeBytes(&buf, e.bounds.End)
	}
	writeUvarint(&buf, uint64(len(pc.states)))
	for _, s := range pc.states {
		writeVarint(&buf, s)
	}

	return s2.Encode(nil, buf.Bytes())
}

// DecodeCursor rebuilds a PlanCheckpoint from a blob produced by
// EncodeCursor, with a new flow-control permit pool of size permits and
// reg's metrics. The returned checkpoint's scansAdded/statesAdded start at
// zero, matching a checkpoint's contract just after StopAndCheckpoint:
// the next execution's AddScan/AddState calls reuse these slots in
// order.
func DecodeCursor(blob []byte, permits int64, reg *metrics.Registry) (*PlanCheckpoint, error) {
	raw, err := s2.Decode(nil, blob)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: decode cursor: %w", err)
	}
	r := bytes.NewReader(raw)

	nScans, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read scan count: %w", err)
	}
	scans := make([]*scanEntry, 0, nScans)
	for i := uint64(0); i < nScans; i++ {
		begin, err := readBytes(r)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: read scan %d begin: %w", i, err)
		}
		end, err := readBytes(r)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: read scan %d end: %w", i, err)
		}
		scans = append(scans, &scanEntry{
			bounds: ScanBounds{Begin: begin, End: end},
			split:  append([]byte{}, document.Sentinel...),
		})
	}

	nStates, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read state count: %w", err)
	}
	states := make([]int64, 0, nStates)
	for i := uint64(0); i < nStates; i++ {
		v, err := binary.ReadVarint(r)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: read state %d: %w", i, err)
		}
		states = append(states, v)
	}

	if reg == nil {
		reg = metrics.Noop()
	}
	return &PlanCheckpoint{
		lock:    NewFlowControlLock(permits, reg),
		metrics: reg,
		scans:   scans,
		states:  states,
	}, nil
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func writeVarint(buf *bytes.Buffer, v int64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutVarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeUvarint(buf, uint64(len(b)))
	buf.Write(b)
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}
