// Package nbt implements the subset of the Minecraft named binary tag
// format the launcher needs: decoding a named root compound and looking
// up compounds, lists, strings and numerics inside it, plus a small
// encoder for writing fixtures and server lists back out.
//
// All multi-byte values are big-endian. Strings are treated as UTF-8.
package nbt

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Tag type IDs as written on the wire.
const (
	TagEnd byte = iota
	TagByte
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagByteArray
	TagString
	TagList
	TagCompound
	TagIntArray
	TagLongArray
)

// maxLen bounds array/string lengths so a corrupt file cannot force a
// huge allocation. level.dat and servers.dat are small files.
const maxLen = 1 << 26

// Compound is a decoded TAG_Compound: named child payloads.
type Compound map[string]any

// List is a decoded TAG_List: homogeneous payloads plus their tag type.
type List struct {
	ElementType byte
	Items       []any
}

// Compound returns the named child compound.
func (c Compound) Compound(name string) (Compound, bool) {
	child, ok := c[name].(Compound)
	return child, ok
}

// List returns the named child list if its element type matches.
func (c Compound) List(name string, elementType byte) (List, bool) {
	list, ok := c[name].(List)
	if !ok || list.ElementType != elementType {
		return List{}, false
	}
	return list, true
}

// String returns the named string payload.
func (c Compound) String(name string) (string, bool) {
	s, ok := c[name].(string)
	return s, ok
}

// Byte returns the named byte payload.
func (c Compound) Byte(name string) (int8, bool) {
	b, ok := c[name].(int8)
	return b, ok
}

// Int64 returns any integral payload (byte, short, int, long) widened
// to int64.
func (c Compound) Int64(name string) (int64, bool) {
	switch v := c[name].(type) {
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

// DecodeNamed reads a named root tag, which is a compound in every file
// the launcher touches. It returns the root's name and its payload.
func DecodeNamed(r io.Reader) (string, Compound, error) {
	br := &byteReader{r: r}

	typ, err := br.byte()
	if err != nil {
		return "", nil, err
	}
	if typ != TagCompound {
		return "", nil, fmt.Errorf("nbt: root tag is type %d, expected compound", typ)
	}
	name, err := readString(br)
	if err != nil {
		return "", nil, err
	}
	payload, err := readPayload(br, TagCompound)
	if err != nil {
		return "", nil, err
	}
	return name, payload.(Compound), nil
}

func readPayload(br *byteReader, typ byte) (any, error) {
	switch typ {
	case TagByte:
		b, err := br.byte()
		return int8(b), err
	case TagShort:
		var v int16
		err := br.read(&v)
		return v, err
	case TagInt:
		var v int32
		err := br.read(&v)
		return v, err
	case TagLong:
		var v int64
		err := br.read(&v)
		return v, err
	case TagFloat:
		var v float32
		err := br.read(&v)
		return v, err
	case TagDouble:
		var v float64
		err := br.read(&v)
		return v, err
	case TagByteArray:
		n, err := br.length()
		if err != nil {
			return nil, err
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(br.r, buf); err != nil {
			return nil, err
		}
		return buf, nil
	case TagString:
		return readString(br)
	case TagList:
		elem, err := br.byte()
		if err != nil {
			return nil, err
		}
		n, err := br.length()
		if err != nil {
			return nil, err
		}
		list := List{ElementType: elem, Items: make([]any, 0, n)}
		for i := 0; i < n; i++ {
			item, err := readPayload(br, elem)
			if err != nil {
				return nil, err
			}
			list.Items = append(list.Items, item)
		}
		return list, nil
	case TagCompound:
		compound := Compound{}
		for {
			childType, err := br.byte()
			if err != nil {
				return nil, err
			}
			if childType == TagEnd {
				return compound, nil
			}
			name, err := readString(br)
			if err != nil {
				return nil, err
			}
			child, err := readPayload(br, childType)
			if err != nil {
				return nil, err
			}
			compound[name] = child
		}
	case TagIntArray:
		n, err := br.length()
		if err != nil {
			return nil, err
		}
		arr := make([]int32, n)
		for i := range arr {
			if err := br.read(&arr[i]); err != nil {
				return nil, err
			}
		}
		return arr, nil
	case TagLongArray:
		n, err := br.length()
		if err != nil {
			return nil, err
		}
		arr := make([]int64, n)
		for i := range arr {
			if err := br.read(&arr[i]); err != nil {
				return nil, err
			}
		}
		return arr, nil
	}
	return nil, fmt.Errorf("nbt: unknown tag type %d", typ)
}

func readString(br *byteReader) (string, error) {
	var n uint16
	if err := br.read(&n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(br.r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

type byteReader struct {
	r   io.Reader
	one [1]byte
}

func (br *byteReader) byte() (byte, error) {
	if _, err := io.ReadFull(br.r, br.one[:]); err != nil {
		return 0, err
	}
	return br.one[0], nil
}

func (br *byteReader) read(v any) error {
	return binary.Read(br.r, binary.BigEndian, v)
}

func (br *byteReader) length() (int, error) {
	var n int32
	if err := br.read(&n); err != nil {
		return 0, err
	}
	if n < 0 || n > maxLen {
		return 0, fmt.Errorf("nbt: invalid length %d", n)
	}
	return int(n), nil
}
