package bsatn

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEncode_S1 is the spec's literal Product scenario: Product{foo:String}
// with foo="bar" encodes as a u32 length of 3 followed by "bar".
func TestEncode_S1(t *testing.T) {
	ty := Product(Field{Name: "foo", Type: String()})
	val := NewProduct(NewString("bar"))

	got, err := Encode(ty, val)
	require.NoError(t, err)

	want := []byte{0x03, 0x00, 0x00, 0x00, 'b', 'a', 'r'}
	assert.Equal(t, want, got)
}

// TestEncode_S2 is the spec's literal Sum scenario: Sum{bar:U32,foo:String}
// selecting variant "bar" with value 5 encodes as tag 0 followed by the
// little-endian u32 5.
func TestEncode_S2(t *testing.T) {
	ty := Sum(
		Field{Name: "bar", Type: U32()},
		Field{Name: "foo", Type: String()},
	)
	val := NewSum(0, NewU32(5))

	got, err := Encode(ty, val)
	require.NoError(t, err)

	want := []byte{0x00, 0x05, 0x00, 0x00, 0x00}
	assert.Equal(t, want, got)
}

func TestRoundTrip_Primitives(t *testing.T) {
	cases := []struct {
		name string
		ty   Type
		val  Value
	}{
		{"bool true", Bool(), NewBool(true)},
		{"bool false", Bool(), NewBool(false)},
		{"i8 negative", I8(), NewI8(-5)},
		{"u8", U8(), NewU8(200)},
		{"i16", I16(), NewI16(-1000)},
		{"u16", U16(), NewU16(60000)},
		{"i32", I32(), NewI32(-70000)},
		{"u32", U32(), NewU32(4000000000)},
		{"i64", I64(), NewI64(-1 << 40)},
		{"u64", U64(), NewU64(1 << 63)},
		{"f32", F32(), NewF32(3.5)},
		{"f64", F64(), NewF64(-2.25)},
		{"string", String(), NewString("hello, world")},
		{"string empty", String(), NewString("")},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			encoded, err := Encode(c.ty, c.val)
			require.NoError(t, err)

			decoded, rest, err := Decode(c.ty, encoded)
			require.NoError(t, err)
			assert.Empty(t, rest)
			assert.Equal(t, c.val, decoded)
		})
	}
}

func TestRoundTrip_I128_U256(t *testing.T) {
	negI128, ok := new(big.Int).SetString("-170141183460469231731687303715884105000", 10)
	require.True(t, ok)

	bigU256, ok := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	require.True(t, ok)

	cases := []struct {
		name string
		ty   Type
		val  Value
	}{
		{"i128 negative", I128(), NewI128(negI128)},
		{"u256 max", U256(), NewU256(bigU256)},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			encoded, err := Encode(c.ty, c.val)
			require.NoError(t, err)

			decoded, rest, err := Decode(c.ty, encoded)
			require.NoError(t, err)
			assert.Empty(t, rest)
			assert.Equal(t, 0, c.val.Int().Cmp(decoded.Int()))
		})
	}
}

func TestRoundTrip_Product(t *testing.T) {
	ty := Product(
		Field{Name: "id", Type: U64()},
		Field{Name: "name", Type: String()},
		Field{Name: "active", Type: Bool()},
	)
	val := NewProduct(NewU64(42), NewString("alice"), NewBool(true))

	encoded, err := Encode(ty, val)
	require.NoError(t, err)

	decoded, rest, err := Decode(ty, encoded)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, val, decoded)
}

func TestRoundTrip_NestedArrayOfProduct(t *testing.T) {
	elemTy := Product(
		Field{Name: "x", Type: I32()},
		Field{Name: "y", Type: I32()},
	)
	ty := Array(elemTy)
	val := NewArray(
		NewProduct(NewI32(1), NewI32(2)),
		NewProduct(NewI32(-3), NewI32(4)),
	)

	encoded, err := Encode(ty, val)
	require.NoError(t, err)

	decoded, rest, err := Decode(ty, encoded)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, val, decoded)
}

func TestRoundTrip_EmptyArray(t *testing.T) {
	ty := Array(U32())
	val := NewArray()

	encoded, err := Encode(ty, val)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, encoded)

	decoded, rest, err := Decode(ty, encoded)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, 0, len(decoded.Items()))
}

func TestDecode_TruncatedInput(t *testing.T) {
	ty := U32()
	_, _, err := Decode(ty, []byte{0x01, 0x02})

	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, KindTruncatedInput, decErr.Kind)
	assert.ErrorIs(t, decErr, ErrTruncatedInput)
}

func TestDecode_UnknownVariantTag(t *testing.T) {
	ty := Sum(Field{Name: "only", Type: Bool()})
	_, _, err := Decode(ty, []byte{0x07, 0x00})

	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, KindUnknownVariantTag, decErr.Kind)
}

func TestDecode_InvalidUTF8(t *testing.T) {
	ty := String()
	data := append([]byte{0x02, 0x00, 0x00, 0x00}, 0xff, 0xfe)
	_, _, err := Decode(ty, data)

	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, KindInvalidUTF8, decErr.Kind)
}

func TestDecode_LengthOverflow(t *testing.T) {
	ty := String()
	data := []byte{0xff, 0xff, 0xff, 0x7f} // declares ~2GB, no payload follows
	_, _, err := Decode(ty, data)

	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, KindLengthOverflow, decErr.Kind)
}

func TestDecode_LeavesRemainderForFraming(t *testing.T) {
	ty := U16()
	data := []byte{0x01, 0x00, 0xAA, 0xBB, 0xCC}

	val, rest, err := Decode(ty, data)
	require.NoError(t, err)
	assert.Equal(t, int64(1), val.Int().Int64())
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, rest)
}
