package document

// Collection is the key layout a scan or index reads from: a directory
// prefix under which cells are stored. It is the unbound half of a
// collection context — a KV transaction makes it bound. A document's
// fields are stored as one cell per top-level field, all sharing a
// primary-key prefix:
//
//	Prefix ++ EncodeKey(pk) ++ EncodeKey(Str(field)) -> raw field bytes
//
// TableScan reads this range as a flat sequence of cells and dedups on
// the primary-key prefix; IndexScan reads a parallel range under
// IndexPrefix whose keys are
//
//	IndexPrefix ++ EncodeKey(indexed_value_1..n) ++ EncodeKey(pk) -> empty
type Collection struct {
	Prefix      []byte
	MetaVersion uint64 // bumped whenever an index build changes the collection's metadata
}

// DocPrefix returns the shared prefix of every cell belonging to pk.
func (c Collection) DocPrefix(pk Value) []byte {
	out := make([]byte, 0, len(c.Prefix)+16)
	out = append(out, c.Prefix...)
	return EncodeKeyPart(out, pk)
}

// CellKey returns the key of a single field cell of document pk.
func (c Collection) CellKey(pk Value, field string) []byte {
	return EncodeKeyPart(c.DocPrefix(pk), Str(field))
}

// Bounds returns the half-open range covering every cell of every
// document in the collection.
func (c Collection) Bounds() (begin, end []byte) {
	begin = append([]byte{}, c.Prefix...)
	end = StrInc(append([]byte{}, c.Prefix...))
	return begin, end
}

// PrimaryKeyOf strips c's prefix off a cell key and decodes the leading
// primary-key value, returning it along with the byte length of
// Prefix++EncodeKey(pk) (i.e. where the field-name cell suffix begins).
func (c Collection) PrimaryKeyOf(cellKey []byte) (pk Value, prefixLen int, err error) {
	rest := cellKey[len(c.Prefix):]
	pk, n, err := DecodeKeyPart(rest)
	if err != nil {
		return Value{}, 0, err
	}
	return pk, len(c.Prefix) + n, nil
}

// Index is a secondary index's key layout: IndexPrefix followed by the
// encoded indexed values and a trailing encoded primary key.
type Index struct {
	Name       string
	Prefix     []byte
	Fields     []string // indexed path names, in key order
	CollPrefix []byte   // the indexed collection's Prefix, for building doc handles
}

// Bounds returns the half-open range covering every entry of the index.
func (ix Index) Bounds() (begin, end []byte) {
	begin = append([]byte{}, ix.Prefix...)
	end = StrInc(append([]byte{}, ix.Prefix...))
	return begin, end
}

// EntryKey builds a full index entry key from indexed field values plus
// the owning document's primary key.
func (ix Index) EntryKey(values []Value, pk Value) []byte {
	all := append(append([]Value{}, values...), pk)
	out := append([]byte{}, ix.Prefix...)
	return append(out, EncodeKey(all...)...)
}

// PrimaryKeyOf decodes the trailing primary-key value off a full index
// entry key, after skipping len(ix.Fields) encoded indexed values.
func (ix Index) PrimaryKeyOf(entryKey []byte) (pk Value, err error) {
	rest := entryKey[len(ix.Prefix):]
	for range ix.Fields {
		_, n, derr := DecodeKeyPart(rest)
		if derr != nil {
			return Value{}, derr
		}
		rest = rest[n:]
	}
	pk, _, err = DecodeKeyPart(rest)
	return pk, err
}
