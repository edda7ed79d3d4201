package predicate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheBenCollins/fdb-document-layer/document"
)

type stubDoc struct {
	fields map[string][]byte
}

func (d stubDoc) ScanID() int     { return 0 }
func (d stubDoc) ScanKey() []byte { return nil }
func (d stubDoc) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	v, ok := d.fields[string(key)]
	return v, ok, nil
}
func (d stubDoc) Set(key, value []byte)                   {}
func (d stubDoc) Clear(key []byte)                        {}
func (d stubDoc) CommitChanges(context.Context) error     { return nil }
func (d stubDoc) ToDataValue() (map[string]interface{}, error) {
	return nil, nil
}

func newDoc(fields map[string]document.Value) stubDoc {
	raw := make(map[string][]byte, len(fields))
	for k, v := range fields {
		raw[k] = document.EncodeKeyPart(nil, v)
	}
	return stubDoc{fields: raw}
}

func TestAndShortCircuitsOnFirstFalse(t *testing.T) {
	doc := newDoc(map[string]document.Value{"a": document.Int(1)})
	p := And(
		Any(FieldPath{Name: "a"}, Eq{Value: document.Int(1)}),
		Any(FieldPath{Name: "b"}, Eq{Value: document.Int(1)}), // b missing
	)
	ok, err := p.Evaluate(context.Background(), doc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOrMatchesFirstTrue(t *testing.T) {
	doc := newDoc(map[string]document.Value{"a": document.Int(2)})
	p := Or(
		Any(FieldPath{Name: "a"}, Eq{Value: document.Int(1)}),
		Any(FieldPath{Name: "a"}, Eq{Value: document.Int(2)}),
	)
	ok, err := p.Evaluate(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNegateFlipsResult(t *testing.T) {
	doc := newDoc(map[string]document.Value{"a": document.Int(1)})
	p := Negate(Any(FieldPath{Name: "a"}, Eq{Value: document.Int(1)}))
	ok, err := p.Evaluate(context.Background(), doc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAllAndNoneAreConstant(t *testing.T) {
	doc := newDoc(nil)
	ok, err := All().Evaluate(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = None().Evaluate(context.Background(), doc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAndOfOneCollapsesToChild(t *testing.T) {
	leaf := Any(FieldPath{Name: "a"}, Eq{Value: document.Int(1)})
	assert.True(t, And(leaf).IsAny())
	assert.True(t, Or(leaf).IsAny())
}

func TestFieldPathEvaluateAllDecodesArray(t *testing.T) {
	doc := stubDoc{fields: map[string][]byte{
		"tags": document.EncodeValues([]document.Value{document.Str("a"), document.Str("b")}),
	}}
	vs, present, err := FieldPath{Name: "tags"}.EvaluateAll(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, []document.Value{document.Str("a"), document.Str("b")}, vs)
}
