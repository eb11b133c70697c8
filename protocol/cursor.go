package protocol

import (
	"encoding/binary"
	"fmt"
)

// reader is a zero-allocation byte-slice cursor, in the same spirit as the
// fixed-header parsers this package's messages replaced: no io.Reader,
// no intermediate buffering, just bounds-checked slicing.
type reader struct {
	data []byte
	pos  int
}

func newReader(data []byte) *reader { return &reader{data: data} }

func (r *reader) need(n int) error {
	if len(r.data)-r.pos < n {
		return fmt.Errorf("protocol: need %d bytes at offset %d, have %d", n, r.pos, len(r.data)-r.pos)
	}
	return nil
}

func (r *reader) u8() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) i64() (int64, error) {
	v, err := r.u64()
	return int64(v), err
}

func (r *reader) bytes16() ([16]byte, error) {
	var out [16]byte
	if err := r.need(16); err != nil {
		return out, err
	}
	copy(out[:], r.data[r.pos:r.pos+16])
	r.pos += 16
	return out, nil
}

func (r *reader) bool() (bool, error) {
	b, err := r.u8()
	return b != 0, err
}

// str reads a u32 length prefix followed by that many UTF-8 bytes.
func (r *reader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	s := string(r.data[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

// blob reads a u32 length prefix followed by that many raw bytes.
func (r *reader) blob() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	b := r.data[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

// rowList reads a RowSizeHintKind byte followed by its payload, then a
// blob of concatenated row bytes.
func (r *reader) rowList() (RowList, error) {
	kind, err := r.u8()
	if err != nil {
		return RowList{}, err
	}

	var hint RowSizeHint
	switch RowSizeHintKind(kind) {
	case FixedSize:
		n, err := r.u32()
		if err != nil {
			return RowList{}, err
		}
		hint = FixedSizeHint(n)

	case RowOffsets:
		count, err := r.u32()
		if err != nil {
			return RowList{}, err
		}
		offsets := make([]uint64, count)
		for i := range offsets {
			o, err := r.u64()
			if err != nil {
				return RowList{}, err
			}
			offsets[i] = o
		}
		hint = OffsetsHint(offsets)

	default:
		return RowList{}, fmt.Errorf("protocol: unknown row size hint kind %d", kind)
	}

	data, err := r.blob()
	if err != nil {
		return RowList{}, err
	}
	return RowList{SizeHint: hint, RowsData: data}, nil
}

func (r *reader) remainder() []byte { return r.data[r.pos:] }

// writer accumulates an outbound message's bytes. Methods never fail.
type writer struct{ buf []byte }

func (w *writer) u8(b byte)    { w.buf = append(w.buf, b) }
func (w *writer) boolean(b bool) {
	if b {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *writer) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) i64(v int64) { w.u64(uint64(v)) }

func (w *writer) bytes16(b [16]byte) { w.buf = append(w.buf, b[:]...) }

func (w *writer) str(s string) {
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) blob(b []byte) {
	w.u32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *writer) rowList(rl RowList) {
	w.u8(byte(rl.SizeHint.Kind))
	switch rl.SizeHint.Kind {
	case FixedSize:
		w.u32(rl.SizeHint.Fixed)
	case RowOffsets:
		w.u32(uint32(len(rl.SizeHint.Offsets)))
		for _, o := range rl.SizeHint.Offsets {
			w.u64(o)
		}
	}
	w.blob(rl.RowsData)
}
