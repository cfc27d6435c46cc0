// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kvstore

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/golang/snappy"
)

// Uint32Codec encodes values as a fixed-width 4-byte big-endian
// uint32, used for id allocations and per-cycle counts.
type Uint32Codec struct{}

func (Uint32Codec) Encode(v interface{}) ([]byte, error) {
	n, ok := v.(uint32)
	if !ok {
		return nil, fmt.Errorf("kvstore: Uint32Codec: unexpected type %T", v)
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], n)
	return b[:], nil
}

func (Uint32Codec) Decode(b []byte) (interface{}, error) {
	if len(b) != 4 {
		return nil, fmt.Errorf("kvstore: Uint32Codec: bad length %d", len(b))
	}
	return binary.BigEndian.Uint32(b), nil
}

// Bounds is the randomized-region offset pair stored per aptamer id.
type Bounds struct {
	Start, End uint32
}

// BoundsCodec encodes a Bounds as two big-endian uint32s.
type BoundsCodec struct{}

func (BoundsCodec) Encode(v interface{}) ([]byte, error) {
	bnd, ok := v.(Bounds)
	if !ok {
		return nil, fmt.Errorf("kvstore: BoundsCodec: unexpected type %T", v)
	}
	var b [8]byte
	binary.BigEndian.PutUint32(b[0:4], bnd.Start)
	binary.BigEndian.PutUint32(b[4:8], bnd.End)
	return b[:], nil
}

func (BoundsCodec) Decode(b []byte) (interface{}, error) {
	if len(b) != 8 {
		return nil, fmt.Errorf("kvstore: BoundsCodec: bad length %d", len(b))
	}
	return Bounds{
		Start: binary.BigEndian.Uint32(b[0:4]),
		End:   binary.BigEndian.Uint32(b[4:8]),
	}, nil
}

// SnappyCodec wraps another codec, transparently compressing its
// encoded form with snappy. It is used for the optional structural
// profile store, where values are large enough for compression to be
// worthwhile.
type SnappyCodec struct {
	Inner Codec
}

func (c SnappyCodec) Encode(v interface{}) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, b), nil
}

func (c SnappyCodec) Decode(b []byte) (interface{}, error) {
	raw, err := snappy.Decode(nil, b)
	if err != nil {
		return nil, err
	}
	return c.Inner.Decode(raw)
}

// BytesCodec passes []byte values through unmodified, for stores
// whose callers already hold a raw byte encoding. None of the stores
// in this module uses it: the sequence→id map uses Uint32Codec and
// the profile store uses SnappyCodec over ProfileCodec.
type BytesCodec struct{}

func (BytesCodec) Encode(v interface{}) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("kvstore: BytesCodec: unexpected type %T", v)
	}
	return b, nil
}

func (BytesCodec) Decode(b []byte) (interface{}, error) {
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// ProfileCodec encodes a flat []float64 (a 6×L structural profile in
// row-major order) as consecutive big-endian IEEE-754 doubles.
type ProfileCodec struct{}

func (ProfileCodec) Encode(v interface{}) ([]byte, error) {
	f, ok := v.([]float64)
	if !ok {
		return nil, fmt.Errorf("kvstore: ProfileCodec: unexpected type %T", v)
	}
	b := make([]byte, 8*len(f))
	for i, x := range f {
		binary.BigEndian.PutUint64(b[i*8:i*8+8], math.Float64bits(x))
	}
	return b, nil
}

func (ProfileCodec) Decode(b []byte) (interface{}, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("kvstore: ProfileCodec: bad length %d", len(b))
	}
	f := make([]float64, len(b)/8)
	for i := range f {
		f[i] = math.Float64frombits(binary.BigEndian.Uint64(b[i*8 : i*8+8]))
	}
	return f, nil
}
