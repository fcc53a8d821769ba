// Package settings reads and writes stacking parameters in the binary .param
// format: an 8-byte "PARAMS" header, a big-endian uint16 count, then per entry
// a length-prefixed UTF-8 name, a type tag and a big-endian value.
package settings

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
)

var header = [8]byte{'P', 'A', 'R', 'A', 'M', 'S', 0, 0}

// ErrInvalidFormat is returned for streams that are not parameter files
var ErrInvalidFormat = errors.New("invalid parameter file")

// Tag identifies the type of a stored value
type Tag uint8

const (
	TagInt   Tag = 0x01 // int32
	TagBool  Tag = 0x02 // one byte, non-zero is true
	TagFloat Tag = 0x03 // float64
)

// Value is one stored parameter
type Value struct {
	Tag   Tag
	Int   int32
	Bool  bool
	Float float64
}

func IntValue(v int) Value       { return Value{Tag: TagInt, Int: int32(v)} }
func BoolValue(v bool) Value     { return Value{Tag: TagBool, Bool: v} }
func FloatValue(v float64) Value { return Value{Tag: TagFloat, Float: v} }

// AsInt converts numeric values; floats are truncated.
func (v Value) AsInt() (int, bool) {
	switch v.Tag {
	case TagInt:
		return int(v.Int), true
	case TagFloat:
		return int(v.Float), true
	}
	return 0, false
}

func (v Value) AsFloat() (float64, bool) {
	switch v.Tag {
	case TagInt:
		return float64(v.Int), true
	case TagFloat:
		return v.Float, true
	}
	return 0, false
}

func (v Value) AsBool() (bool, bool) {
	switch v.Tag {
	case TagBool:
		return v.Bool, true
	case TagInt:
		return v.Int != 0, true
	}
	return false, false
}

// Params maps parameter names to values
type Params map[string]Value

// Encode writes p to w. Entries are written in name order.
func Encode(w io.Writer, p Params) error {
	if len(p) > math.MaxUint16 {
		return fmt.Errorf("too many parameters: %d", len(p))
	}

	names := make([]string, 0, len(p))
	for name := range p {
		if len(name) > math.MaxUint8 {
			return fmt.Errorf("parameter name too long: %q", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	bw := bufio.NewWriter(w)
	bw.Write(header[:])
	binary.Write(bw, binary.BigEndian, uint16(len(names)))

	for _, name := range names {
		v := p[name]
		bw.WriteByte(uint8(len(name)))
		bw.WriteString(name)
		bw.WriteByte(byte(v.Tag))

		switch v.Tag {
		case TagInt:
			binary.Write(bw, binary.BigEndian, v.Int)
		case TagBool:
			var b byte
			if v.Bool {
				b = 1
			}
			bw.WriteByte(b)
		case TagFloat:
			binary.Write(bw, binary.BigEndian, v.Float)
		default:
			return fmt.Errorf("parameter %q has unknown type tag 0x%02x", name, byte(v.Tag))
		}
	}
	return bw.Flush()
}

// Decode reads a parameter stream. Only the first six header bytes are
// compared. An unknown type tag aborts decoding since the value length is
// unknown.
func Decode(r io.Reader) (Params, error) {
	br := bufio.NewReader(r)

	var head [8]byte
	if _, err := io.ReadFull(br, head[:]); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrInvalidFormat, err)
	}
	if string(head[:6]) != "PARAMS" {
		return nil, fmt.Errorf("%w: bad header %q", ErrInvalidFormat, head[:6])
	}

	var count uint16
	if err := binary.Read(br, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("%w: reading count: %v", ErrInvalidFormat, err)
	}

	p := make(Params, count)
	for i := 0; i < int(count); i++ {
		nameLen, err := br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidFormat, i, err)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(br, name); err != nil {
			return nil, fmt.Errorf("%w: entry %d name: %v", ErrInvalidFormat, i, err)
		}
		tag, err := br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: entry %q tag: %v", ErrInvalidFormat, name, err)
		}

		v := Value{Tag: Tag(tag)}
		switch v.Tag {
		case TagInt:
			err = binary.Read(br, binary.BigEndian, &v.Int)
		case TagBool:
			var b byte
			b, err = br.ReadByte()
			v.Bool = b != 0
		case TagFloat:
			err = binary.Read(br, binary.BigEndian, &v.Float)
		default:
			return nil, fmt.Errorf("%w: entry %q has unknown type tag 0x%02x", ErrInvalidFormat, name, tag)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: entry %q value: %v", ErrInvalidFormat, name, err)
		}
		p[string(name)] = v
	}
	return p, nil
}

// Save writes p to the file at path
func Save(path string, p Params) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Encode(f, p); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// Load reads the parameter file at path
func Load(path string) (Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	p, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return p, nil
}
