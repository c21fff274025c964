package main

import (
	"encoding/binary"
	"errors"

	"github.com/viant/sqlite-loc/composition"
	"github.com/viant/sqlite-loc/metric"
	"github.com/viant/sqlite-loc/store"
)

// material is an indexed formula row.
type material struct {
	ID      string
	Formula string
	comp    composition.Composition
}

func parseItem(item store.Item) (material, error) {
	c, err := composition.Parse(item.Formula)
	if err != nil {
		return material{}, err
	}
	return material{ID: item.ID, Formula: item.Formula, comp: c}, nil
}

func parseQuery(formula string) (material, error) {
	return parseItem(store.Item{Formula: formula})
}

var materialMetric = metric.Infallible(func(a, b material) float64 { return composition.Distance(a.comp, b.comp) })

type materialCodec struct{}

func (materialCodec) Encode(m material) ([]byte, error) {
	out := binary.AppendUvarint(nil, uint64(len(m.ID)))
	out = append(out, m.ID...)
	return append(out, m.Formula...), nil
}

func (materialCodec) Decode(data []byte) (material, error) {
	size, n := binary.Uvarint(data)
	if n <= 0 || uint64(len(data)-n) < size {
		return material{}, errors.New("loc: bad material id")
	}
	data = data[n:]
	return parseItem(store.Item{ID: string(data[:size]), Formula: string(data[size:])})
}
