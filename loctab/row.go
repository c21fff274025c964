package loctab

import (
	"encoding/binary"
	"errors"

	"github.com/viant/sqlite-loc/composition"
	"github.com/viant/sqlite-loc/metric"
)

// row is an indexed shadow-table row.
type row struct {
	RowID   int64
	ID      string
	Formula string
	comp    composition.Composition
}

func parseRow(r row) (row, error) {
	c, err := composition.Parse(r.Formula)
	if err != nil {
		return r, err
	}
	r.comp = c
	return r, nil
}

var rowMetric = metric.Infallible(func(a, b row) float64 { return composition.Distance(a.comp, b.comp) })

// rowCodec stores the rowid, id and raw formula; compositions are re-parsed
// on decode.
type rowCodec struct{}

func (rowCodec) Encode(r row) ([]byte, error) {
	out := binary.AppendVarint(nil, r.RowID)
	out = binary.AppendUvarint(out, uint64(len(r.ID)))
	out = append(out, r.ID...)
	return append(out, r.Formula...), nil
}

func (rowCodec) Decode(data []byte) (row, error) {
	rowID, n := binary.Varint(data)
	if n <= 0 {
		return row{}, errors.New("loc: bad row id")
	}
	data = data[n:]
	size, n := binary.Uvarint(data)
	if n <= 0 || uint64(len(data)-n) < size {
		return row{}, errors.New("loc: bad row key")
	}
	data = data[n:]
	return parseRow(row{RowID: rowID, ID: string(data[:size]), Formula: string(data[size:])})
}
