package document

import (
	"context"
	"sync"

	"github.com/TheBenCollins/fdb-document-layer/kv"
)

// Handle is a reference to a subdocument living inside an open
// transaction. Every handle carries the scanId of the leaf scan that
// produced it and a scanKey used by the checkpoint / split-bound
// protocol.
//
// Writes made through Set/Clear are staged (they do not touch the
// underlying transaction) until CommitChanges is called; FlushChanges is
// the operator that actually materializes them into the transaction.
type Handle interface {
	ScanID() int
	ScanKey() []byte

	Get(ctx context.Context, key []byte) ([]byte, bool, error)
	Set(key, value []byte)
	Clear(key []byte)

	// CommitChanges stages this handle's pending writes into its
	// transaction. It is idempotent: calling it twice with no
	// intervening Set/Clear is a no-op.
	CommitChanges(ctx context.Context) error

	// ToDataValue synchronously projects the handle to a plain map. A
	// MemHandle (what Project emits) returns its whole in-memory
	// document; a TxnHandle returns only the fields written through Set
	// on that handle, not fields that exist only in the transaction.
	ToDataValue() (map[string]interface{}, error)
}

type pendingOp struct {
	value []byte
	clear bool
}

// TxnHandle is a Handle backed by a live transaction: reads and writes are
// scoped to keys under Prefix within Txn. A field name passed to
// Get/Set/Clear is stored at prefix ++ EncodeKeyPart(Str(field)), the
// same layout Collection.CellKey builds.
type TxnHandle struct {
	mu      sync.Mutex
	txn     kv.Transaction
	prefix  []byte
	scanID  int
	scanKey []byte
	pending map[string]pendingOp
	fields  map[string]interface{} // best-effort in-memory mirror, for ToDataValue
}

// NewTxnHandle wraps txn, scoping this handle's Get/Set/Clear calls under
// prefix (typically the encoded primary key of the document).
func NewTxnHandle(txn kv.Transaction, prefix []byte, scanID int, scanKey []byte) *TxnHandle {
	return &TxnHandle{
		txn:     txn,
		prefix:  append([]byte{}, prefix...),
		scanID:  scanID,
		scanKey: append([]byte{}, scanKey...),
		pending: make(map[string]pendingOp),
		fields:  make(map[string]interface{}),
	}
}

func (h *TxnHandle) ScanID() int      { return h.scanID }
func (h *TxnHandle) ScanKey() []byte  { return h.scanKey }

func (h *TxnHandle) fullKey(key []byte) []byte {
	out := make([]byte, 0, len(h.prefix)+len(key)+3)
	out = append(out, h.prefix...)
	return EncodeKeyPart(out, Str(string(key)))
}

func (h *TxnHandle) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	h.mu.Lock()
	if op, ok := h.pending[string(key)]; ok {
		h.mu.Unlock()
		if op.clear {
			return nil, false, nil
		}
		return op.value, true, nil
	}
	h.mu.Unlock()
	return h.txn.Get(ctx, h.fullKey(key))
}

func (h *TxnHandle) Set(key, value []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending[string(key)] = pendingOp{value: append([]byte{}, value...)}
	h.fields[string(key)] = value
}

func (h *TxnHandle) Clear(key []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending[string(key)] = pendingOp{clear: true}
	delete(h.fields, string(key))
}

// CommitChanges materializes staged writes into the transaction. It does
// not commit the transaction itself; the caller (usually FlushChanges or
// a non-isolated wrapper) controls transaction lifetime.
func (h *TxnHandle) CommitChanges(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for k, op := range h.pending {
		full := h.fullKey([]byte(k))
		if op.clear {
			h.txn.Clear(full)
		} else {
			h.txn.Set(full, op.value)
		}
	}
	h.pending = make(map[string]pendingOp)
	return nil
}

func (h *TxnHandle) ToDataValue() (map[string]interface{}, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]interface{}, len(h.fields))
	for k, v := range h.fields {
		out[k] = v
	}
	return out, nil
}

// MemHandle is a Handle over a fully in-memory document, used by Project
// and by FindAndModify when projecting a freshly inserted document.
type MemHandle struct {
	scanID  int
	scanKey []byte
	fields  map[string]interface{}
}

func NewMemHandle(scanID int, scanKey []byte, fields map[string]interface{}) *MemHandle {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	return &MemHandle{scanID: scanID, scanKey: append([]byte{}, scanKey...), fields: fields}
}

func (h *MemHandle) ScanID() int     { return h.scanID }
func (h *MemHandle) ScanKey() []byte { return h.scanKey }

func (h *MemHandle) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	v, ok := h.fields[string(key)]
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	return b, true, nil
}

func (h *MemHandle) Set(key, value []byte) { h.fields[string(key)] = append([]byte{}, value...) }
func (h *MemHandle) Clear(key []byte)      { delete(h.fields, string(key)) }
func (h *MemHandle) CommitChanges(context.Context) error { return nil }

func (h *MemHandle) ToDataValue() (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(h.fields))
	for k, v := range h.fields {
		out[k] = v
	}
	return out, nil
}
