package bsatn

import "math/big"

// Newtypes are Products with a single conventionally-named element, per
// spec §3. They exist so callers get a named Type without the codec
// needing any special-casing: Encode/Decode treat them as ordinary
// single-field Products.

// IdentityType is a 256-bit public identity, carried as a single U256
// element named "__identity__".
func IdentityType() Type {
	return Product(Field{Name: "__identity__", Type: U256()})
}

func NewIdentity(raw *big.Int) Value {
	return NewProduct(NewU256(raw))
}

// ConnectionIDType is a 128-bit per-connection identifier.
func ConnectionIDType() Type {
	return Product(Field{Name: "__connection_id__", Type: U128()})
}

func NewConnectionID(raw *big.Int) Value {
	return NewProduct(NewU128(raw))
}

// UUIDType is a 128-bit RFC-4122 identifier.
func UUIDType() Type {
	return Product(Field{Name: "__uuid__", Type: U128()})
}

func NewUUID(raw *big.Int) Value {
	return NewProduct(NewU128(raw))
}

// TimestampType is microseconds since the Unix epoch, signed so that
// instants before 1970 are representable.
func TimestampType() Type {
	return Product(Field{Name: "__timestamp_micros_since_unix_epoch__", Type: I64()})
}

func NewTimestamp(microsSinceEpoch int64) Value {
	return NewProduct(NewI64(microsSinceEpoch))
}

func (v Value) TimestampMicros() int64 {
	if len(v.elements) != 1 {
		return 0
	}
	return v.elements[0].Int().Int64()
}

// TimeDurationType is a signed microsecond duration.
func TimeDurationType() Type {
	return Product(Field{Name: "__time_duration_micros__", Type: I64()})
}

func NewTimeDuration(micros int64) Value {
	return NewProduct(NewI64(micros))
}

// ScheduleAtType is a Sum of a fixed Timestamp (one-shot) or an Interval
// (repeating TimeDuration).
func ScheduleAtType() Type {
	return Sum(
		Field{Name: "Time", Type: TimestampType()},
		Field{Name: "Interval", Type: TimeDurationType()},
	)
}

func NewScheduleAtTime(microsSinceEpoch int64) Value {
	return NewSum(0, NewTimestamp(microsSinceEpoch))
}

func NewScheduleAtInterval(micros int64) Value {
	return NewSum(1, NewTimeDuration(micros))
}
