package forest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndReadBack(t *testing.T) {
	f := New()

	v := Object(
		F("name", String("ada")),
		F("age", Int(36)),
		F("scores", Array(Float(1.5), Float(2.5), Null())),
		F("active", Bool(true)),
	)
	idx := f.Append(v)
	require.Equal(t, 0, idx)
	require.Equal(t, 1, f.TreeCount())

	got := f.Value(0)
	require.Equal(t, KindObject, got.Kind)
	require.Len(t, got.Fields, 4)

	// Members come back ordered by dictionary ID, which is intern order
	// of the keys: name, age, scores, active.
	assert.Equal(t, "name", got.Fields[0].Key)
	assert.Equal(t, "age", got.Fields[1].Key)
	assert.Equal(t, "scores", got.Fields[2].Key)
	assert.Equal(t, "active", got.Fields[3].Key)
	assert.Equal(t, "ada", got.Fields[0].Value.Str)
	assert.Equal(t, int64(36), got.Fields[1].Value.Int)
	assert.True(t, got.Fields[3].Value.Bool)

	scores := got.Fields[2].Value
	require.Equal(t, KindArray, scores.Kind)
	require.Len(t, scores.Elems, 3)
	assert.Equal(t, 2.5, scores.Elems[1].Float)
	assert.Equal(t, KindNull, scores.Elems[2].Kind)
}

func TestRoundTripEquality(t *testing.T) {
	f := New()
	trees := []Value{
		Object(F("a", Object(F("b", Int(5))))),
		Array(Interned("x"), Interned("y"), Interned("x")),
		Int(-42),
		Null(),
		Object(),
		Array(),
		Binary([]byte{0, 1, 2}),
		TypedNull(KindFloat),
		Datetime(1700000000_000000),
		Duration(3600_000000),
		Date(19700),
	}
	for _, v := range trees {
		f.Append(v)
	}
	require.Equal(t, len(trees), f.TreeCount())

	for i := range trees {
		got := f.Value(i)
		assert.True(t, got.Equal(f.Value(i)), "tree %d unstable", i)
	}

	// Round-trip the round trip: re-append reconstructed values into a
	// second forest and compare again.
	f2 := New()
	for i := range trees {
		f2.Append(f.Value(i))
	}
	for i := range trees {
		assert.True(t, f.Value(i).Equal(f2.Value(i)), "tree %d differs", i)
	}
}

func TestTypedNullRoundTrip(t *testing.T) {
	f := New()
	f.Append(Object(F("x", TypedNull(KindInt))))

	got := f.Value(0)
	require.Len(t, got.Fields, 1)
	assert.Equal(t, KindInt, got.Fields[0].Value.Kind)
	assert.True(t, got.Fields[0].Value.Null)
}

func TestChildLookup(t *testing.T) {
	f := New()
	f.Append(Object(
		F("b", Int(1)),
		F("a", Object(F("inner", Int(2)))),
		F("c", Int(3)),
	))

	root := f.Roots[0]
	require.Equal(t, KindObject, Kind(f.Kinds[root]))

	aID, ok := f.Dict.Lookup("a")
	require.True(t, ok)
	node, ok := f.Child(root, aID)
	require.True(t, ok)
	assert.Equal(t, KindObject, Kind(f.Kinds[node]))

	innerID, ok := f.Dict.Lookup("inner")
	require.True(t, ok)
	inner, ok := f.Child(node, innerID)
	require.True(t, ok)
	assert.Equal(t, KindInt, Kind(f.Kinds[inner]))
	assert.Equal(t, int64(2), f.Pools.Int.Values[f.Data0[inner]])

	_, ok = f.Child(root, 9999)
	assert.False(t, ok)
}

func TestSubtreeSpans(t *testing.T) {
	f := New()
	f.Append(Array(Int(1), Array(Int(2), Int(3)), Int(4)))
	f.Append(Int(5))

	start, end := f.TreeSpan(0)
	assert.Equal(t, uint32(0), start)
	assert.Equal(t, uint32(6), end)

	start, end = f.TreeSpan(1)
	assert.Equal(t, uint32(6), start)
	assert.Equal(t, uint32(7), end)
}

func TestDictionaryStableIDs(t *testing.T) {
	d := NewDictionary()
	a := d.Intern("alpha")
	b := d.Intern("beta")
	assert.Equal(t, a, d.Intern("alpha"))
	assert.Equal(t, uint32(0), a)
	assert.Equal(t, uint32(1), b)

	s, ok := d.At(b)
	require.True(t, ok)
	assert.Equal(t, "beta", s)

	_, ok = d.At(99)
	assert.False(t, ok)

	d2 := DictionaryFromStrings(d.Strings())
	id, ok := d2.Lookup("beta")
	require.True(t, ok)
	assert.Equal(t, b, id)
}

func TestPoolNullTracking(t *testing.T) {
	var p Int64Pool
	i0 := p.Add(10, false)
	i1 := p.Add(0, true)
	i2 := p.Add(20, false)

	assert.True(t, p.IsValid(i0))
	assert.False(t, p.IsValid(i1))
	assert.True(t, p.IsValid(i2))
	assert.Equal(t, 3, p.Len())
}
