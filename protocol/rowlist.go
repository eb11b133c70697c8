package protocol

// RowSizeHintKind selects how a RowList's concatenated row bytes are split
// back into individual rows.
type RowSizeHintKind byte

const (
	// FixedSize means every row is exactly N bytes; N travels alongside.
	FixedSize RowSizeHintKind = iota
	// RowOffsets means rows have independent lengths, recorded as
	// cumulative end-offsets into RowsData.
	RowOffsets
)

// RowSizeHint describes how to split RowsData into individual BSATN-encoded
// rows, per spec §5's two row-framing strategies.
type RowSizeHint struct {
	Kind    RowSizeHintKind
	Fixed   uint32
	Offsets []uint64
}

func FixedSizeHint(n uint32) RowSizeHint { return RowSizeHint{Kind: FixedSize, Fixed: n} }

func OffsetsHint(offsets []uint64) RowSizeHint {
	return RowSizeHint{Kind: RowOffsets, Offsets: offsets}
}

// RowList is a batch of BSATN-encoded rows packed into one contiguous
// buffer, split according to SizeHint. Using one buffer instead of
// []byte rows avoids an allocation per row on the hot insert/delete path.
type RowList struct {
	SizeHint RowSizeHint
	RowsData []byte
}

// Rows splits RowsData into individual row byte slices. Each returned
// slice aliases RowsData; callers must not mutate it in place.
func (rl RowList) Rows() ([][]byte, error) {
	switch rl.SizeHint.Kind {
	case FixedSize:
		n := int(rl.SizeHint.Fixed)
		if n == 0 {
			if len(rl.RowsData) != 0 {
				return nil, ErrRowListMismatch
			}
			return nil, nil
		}
		if len(rl.RowsData)%n != 0 {
			return nil, ErrRowListMismatch
		}
		count := len(rl.RowsData) / n
		rows := make([][]byte, count)
		for i := 0; i < count; i++ {
			rows[i] = rl.RowsData[i*n : (i+1)*n]
		}
		return rows, nil

	case RowOffsets:
		rows := make([][]byte, len(rl.SizeHint.Offsets))
		var start uint64
		for i, end := range rl.SizeHint.Offsets {
			if end < start || end > uint64(len(rl.RowsData)) {
				return nil, ErrRowListMismatch
			}
			rows[i] = rl.RowsData[start:end]
			start = end
		}
		if start != uint64(len(rl.RowsData)) {
			return nil, ErrRowListMismatch
		}
		return rows, nil

	default:
		return nil, ErrRowListMismatch
	}
}

// NewFixedRowList packs same-length rows using the FixedSize hint.
func NewFixedRowList(rowWidth uint32, rows [][]byte) RowList {
	data := make([]byte, 0, int(rowWidth)*len(rows))
	for _, r := range rows {
		data = append(data, r...)
	}
	return RowList{SizeHint: FixedSizeHint(rowWidth), RowsData: data}
}

// NewOffsetsRowList packs variable-length rows using the RowOffsets hint.
func NewOffsetsRowList(rows [][]byte) RowList {
	offsets := make([]uint64, len(rows))
	data := make([]byte, 0)
	var cursor uint64
	for i, r := range rows {
		data = append(data, r...)
		cursor += uint64(len(r))
		offsets[i] = cursor
	}
	return RowList{SizeHint: OffsetsHint(offsets), RowsData: data}
}
