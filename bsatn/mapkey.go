package bsatn

import "encoding/base64"

// IntoMapKey derives a comparable Go value usable as a map key for a
// table-cache row identity, per spec §4.2's intoMapKey. Scalar types
// (including newtypes over a single scalar, once unwrapped by the caller)
// return their primitive value unchanged so that e.g. a U64 primary key
// hashes as a plain uint64 and a String primary key hashes as a plain
// string. Integers wider than 64 bits have no Go primitive type and are
// keyed by their decimal string. Every other shape — Product, Sum, or Array — is serialized and
// base64-encoded, since neither byte slices nor the values themselves are
// comparable and cannot back a Go map key directly.
func IntoMapKey(t Type, v Value) (any, error) {
	switch t.Kind {
	case KindBool:
		return v.boolVal, nil
	case KindI8, KindI16, KindI32, KindI64:
		return v.Int().Int64(), nil
	case KindU8, KindU16, KindU32, KindU64:
		return v.Int().Uint64(), nil
	case KindI128, KindU128, KindI256, KindU256:
		return v.Int().String(), nil
	case KindF32:
		return v.f32Val, nil
	case KindF64:
		return v.f64Val, nil
	case KindString:
		return v.strVal, nil
	default:
		encoded, err := Encode(t, v)
		if err != nil {
			return nil, err
		}
		return base64.StdEncoding.EncodeToString(encoded), nil
	}
}
