package rdb

import (
	"encoding/binary"
	"fmt"
)

// MessagePack type bytes used by RDB files
const (
	mpFixMap   = 0x80
	mpFixArray = 0x90
	mpFixStr   = 0xa0
	mpNil      = 0xc0
	mpFalse    = 0xc2
	mpTrue     = 0xc3
	mpBin8     = 0xc4
	mpBin16    = 0xc5
	mpBin32    = 0xc6
	mpUint8    = 0xcc
	mpUint16   = 0xcd
	mpUint32   = 0xce
	mpUint64   = 0xcf
	mpInt8     = 0xd0
	mpInt16    = 0xd1
	mpInt32    = 0xd2
	mpInt64    = 0xd3
	mpStr8     = 0xd9
	mpStr16    = 0xda
	mpStr32    = 0xdb
	mpMap16    = 0xde
	mpMap32    = 0xdf
	mpNegFix   = 0xe0
)

// decoder reads the MessagePack subset found in RDB files: maps of
// scalar values. Nested arrays and maps are rejected.
type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) peek() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, fmt.Errorf("%w: unexpected end of data at %d", ErrFormat, d.pos)
	}
	return d.data[d.pos], nil
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || len(d.data)-d.pos < n {
		return nil, fmt.Errorf("%w: %d bytes past end of data at %d", ErrFormat, n, d.pos)
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// uint reads an n byte big-endian unsigned integer.
func (d *decoder) uint(n int) (uint64, error) {
	b, err := d.take(n)
	if err != nil {
		return 0, err
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v, nil
}

func (d *decoder) game() (Game, error) {
	n, err := d.mapLen()
	if err != nil {
		return Game{}, err
	}
	var g Game
	for i := 0; i < n; i++ {
		k, err := d.value()
		if err != nil {
			return Game{}, err
		}
		key, ok := k.(string)
		if !ok {
			return Game{}, fmt.Errorf("%w: map key is %T", ErrFormat, k)
		}
		v, err := d.value()
		if err != nil {
			return Game{}, fmt.Errorf("%s: %w", key, err)
		}
		setField(&g, key, v)
	}
	return g, nil
}

func (d *decoder) mapLen() (int, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	switch t := b[0]; {
	case t >= mpFixMap && t < mpFixArray:
		return int(t - mpFixMap), nil
	case t == mpMap16:
		n, err := d.uint(2)
		return int(n), err
	case t == mpMap32:
		n, err := d.uint(4)
		return int(n), err
	default:
		return 0, fmt.Errorf("%w: expected map, got 0x%02x", ErrFormat, t)
	}
}

// value decodes one scalar as nil, bool, uint64, int64, string or []byte.
func (d *decoder) value() (any, error) {
	b, err := d.take(1)
	if err != nil {
		return nil, err
	}
	t := b[0]
	switch {
	case t < mpFixMap:
		return uint64(t), nil
	case t >= mpNegFix:
		return int64(int8(t)), nil
	case t >= mpFixStr && t < mpNil:
		s, err := d.take(int(t - mpFixStr))
		return string(s), err
	}

	switch t {
	case mpNil:
		return nil, nil
	case mpFalse:
		return false, nil
	case mpTrue:
		return true, nil
	case mpBin8, mpBin16, mpBin32:
		return d.bytes(1 << (t - mpBin8))
	case mpStr8, mpStr16, mpStr32:
		s, err := d.bytes(1 << (t - mpStr8))
		return string(s), err
	case mpUint8, mpUint16, mpUint32, mpUint64:
		return d.uint(1 << (t - mpUint8))
	case mpInt8, mpInt16, mpInt32, mpInt64:
		n := 1 << (t - mpInt8)
		raw, err := d.take(n)
		if err != nil {
			return nil, err
		}
		switch n {
		case 1:
			return int64(int8(raw[0])), nil
		case 2:
			return int64(int16(binary.BigEndian.Uint16(raw))), nil
		case 4:
			return int64(int32(binary.BigEndian.Uint32(raw))), nil
		default:
			return int64(binary.BigEndian.Uint64(raw)), nil
		}
	}
	return nil, fmt.Errorf("%w: unsupported type 0x%02x at %d", ErrFormat, t, d.pos-1)
}

// bytes reads a length prefix of lenSize bytes and the payload after it.
func (d *decoder) bytes(lenSize int) ([]byte, error) {
	n, err := d.uint(lenSize)
	if err != nil {
		return nil, err
	}
	if n > uint64(len(d.data)) {
		return nil, fmt.Errorf("%w: length %d exceeds data", ErrFormat, n)
	}
	return d.take(int(n))
}
