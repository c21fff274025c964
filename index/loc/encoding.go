package loc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring"
	"github.com/viant/sqlite-loc/metric"
	"golang.org/x/crypto/blake2b"
)

const magic = "LOC1"

const (
	flagExperimental = 1 << iota
	flagStructure
)

// Smallest encoded member (id, distance, flags, three empty length-prefixed
// fields) and cluster (center id, radius, member count, center member).
const (
	minMemberSize  = 4 + 8 + 1 + 3*4
	minClusterSize = 4 + 8 + 4 + minMemberSize
)

var errTruncated = errors.New("loc: truncated index blob")

// Codec converts items to and from bytes.
type Codec[T any] interface {
	Encode(item T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// IsBlob reports whether data looks like an encoded index.
func IsBlob(data []byte) bool {
	return len(data) >= len(magic)+blake2b.Size256 && string(data[:len(magic)]) == magic
}

// Encode serialises the index. The metric is not stored; Decode must be
// given the same one.
func (x *Index[T]) Encode(codec Codec[T]) ([]byte, error) {
	out := make([]byte, 0, 64+x.size*32)
	putU32 := func(v uint32) { out = binary.LittleEndian.AppendUint32(out, v) }
	putF64 := func(v float64) { out = binary.LittleEndian.AppendUint64(out, math.Float64bits(v)) }
	putBytes := func(b []byte) { putU32(uint32(len(b))); out = append(out, b...) }

	out = append(out, magic...)
	putU32(uint32(x.k))
	putU32(uint32(x.size))
	putU32(uint32(len(x.clusters)))
	for ci := range x.clusters {
		c := &x.clusters[ci]
		putU32(uint32(c.CenterID))
		putF64(c.Radius)
		putU32(uint32(len(c.Members)))
		for i := range c.Members {
			mem := &c.Members[i]
			item, err := codec.Encode(mem.Item)
			if err != nil {
				return nil, fmt.Errorf("loc: encode item %d: %w", mem.ID, err)
			}
			putU32(uint32(mem.ID))
			putF64(mem.Distance)
			var flags byte
			if mem.Experimental {
				flags |= flagExperimental
			}
			if mem.Structure {
				flags |= flagStructure
			}
			out = append(out, flags)
			putBytes([]byte(mem.Ref))
			var keys []byte
			if mem.Keys != nil {
				if keys, err = mem.Keys.ToBytes(); err != nil {
					return nil, fmt.Errorf("loc: encode keys %d: %w", mem.ID, err)
				}
			}
			putBytes(keys)
			putBytes(item)
		}
	}
	sum := blake2b.Sum256(out)
	return append(out, sum[:]...), nil
}

// Decode restores an index written by Encode. Options other than the logger
// and parallelism are ignored; k is restored from data.
func Decode[T any](data []byte, codec Codec[T], m metric.Metric[T], opts ...Option) (*Index[T], error) {
	if m == nil {
		return nil, fmt.Errorf("loc: metric is nil: %w", ErrInvalidArgument)
	}
	if !IsBlob(data) {
		return nil, errors.New("loc: not an index blob")
	}
	body := data[:len(data)-blake2b.Size256]
	sum := blake2b.Sum256(body)
	if !bytes.Equal(sum[:], data[len(body):]) {
		return nil, errors.New("loc: index blob checksum mismatch")
	}
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	off := len(magic)
	need := func(n int) bool { return off+n <= len(body) }
	getU32 := func() uint32 { v := binary.LittleEndian.Uint32(body[off : off+4]); off += 4; return v }
	getF64 := func() float64 { v := math.Float64frombits(binary.LittleEndian.Uint64(body[off : off+8])); off += 8; return v }
	getBytes := func() ([]byte, bool) {
		if !need(4) {
			return nil, false
		}
		n := int(getU32())
		if !need(n) {
			return nil, false
		}
		b := body[off : off+n]
		off += n
		return b, true
	}

	if !need(12) {
		return nil, errTruncated
	}
	k := int(getU32())
	size := int(getU32())
	count := int(getU32())
	if count > (len(body)-off)/minClusterSize {
		return nil, fmt.Errorf("loc: cluster count %d exceeds blob: %w", count, errTruncated)
	}
	clusters := make([]Cluster[T], count)
	members := 0
	for ci := range clusters {
		if !need(16) {
			return nil, errTruncated
		}
		c := &clusters[ci]
		c.CenterID = int(getU32())
		c.Radius = getF64()
		n := int(getU32())
		if n > (len(body)-off)/minMemberSize {
			return nil, fmt.Errorf("loc: member count %d exceeds blob: %w", n, errTruncated)
		}
		members += n
		c.Members = make([]Member[T], n)
		center := false
		for i := range c.Members {
			if !need(13) {
				return nil, errTruncated
			}
			mem := &c.Members[i]
			mem.ID = int(getU32())
			mem.Distance = getF64()
			flags := body[off]
			off++
			mem.Experimental = flags&flagExperimental != 0
			mem.Structure = flags&flagStructure != 0
			ref, ok := getBytes()
			if !ok {
				return nil, errTruncated
			}
			mem.Ref = string(ref)
			keys, ok := getBytes()
			if !ok {
				return nil, errTruncated
			}
			if len(keys) > 0 {
				mem.Keys = roaring.New()
				if err := mem.Keys.UnmarshalBinary(keys); err != nil {
					return nil, fmt.Errorf("loc: decode keys %d: %w", mem.ID, err)
				}
			}
			raw, ok := getBytes()
			if !ok {
				return nil, errTruncated
			}
			if mem.Item, err = codec.Decode(raw); err != nil {
				return nil, fmt.Errorf("loc: decode item %d: %w", mem.ID, err)
			}
			if mem.ID == c.CenterID && !center {
				c.Center, center = mem.Item, true
			}
		}
		if !center {
			return nil, fmt.Errorf("loc: cluster %d has no center member", ci)
		}
	}
	if members != size {
		return nil, fmt.Errorf("loc: index blob holds %d members, header says %d", members, size)
	}
	if off != len(body) {
		return nil, fmt.Errorf("loc: %d trailing bytes in index blob", len(body)-off)
	}
	if k < 1 {
		k = DefaultK
	}
	return &Index[T]{
		clusters: clusters,
		metric:   metric.Safe(m),
		k:        k,
		size:     size,
		workers:  o.workers,
		logger:   o.logger,
		report:   BuildReport{Input: size, Indexed: size, Clusters: len(clusters)},
	}, nil
}
