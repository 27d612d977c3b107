package nbt

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// EncodeNamed writes a named root compound. Accepted payload types are
// the ones Decode produces: int8, int16, int32, int64, float32,
// float64, string, []byte, []int32, []int64, Compound and List.
// Compound children are written in sorted name order so output is
// deterministic.
func EncodeNamed(w io.Writer, name string, c Compound) error {
	if err := writeByte(w, TagCompound); err != nil {
		return err
	}
	if err := writeString(w, name); err != nil {
		return err
	}
	return writePayload(w, c)
}

func writePayload(w io.Writer, value any) error {
	switch v := value.(type) {
	case int8:
		return writeByte(w, byte(v))
	case int16, int32, int64, float32, float64:
		return binary.Write(w, binary.BigEndian, v)
	case string:
		return writeString(w, v)
	case []byte:
		if err := writeLength(w, len(v)); err != nil {
			return err
		}
		_, err := w.Write(v)
		return err
	case []int32:
		if err := writeLength(w, len(v)); err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, v)
	case []int64:
		if err := writeLength(w, len(v)); err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, v)
	case List:
		if err := writeByte(w, v.ElementType); err != nil {
			return err
		}
		if err := writeLength(w, len(v.Items)); err != nil {
			return err
		}
		for _, item := range v.Items {
			if tagType(item) != v.ElementType {
				return fmt.Errorf("nbt: list item %T does not match element type %d", item, v.ElementType)
			}
			if err := writePayload(w, item); err != nil {
				return err
			}
		}
		return nil
	case Compound:
		names := make([]string, 0, len(v))
		for name := range v {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			child := v[name]
			if err := writeByte(w, tagType(child)); err != nil {
				return err
			}
			if err := writeString(w, name); err != nil {
				return err
			}
			if err := writePayload(w, child); err != nil {
				return err
			}
		}
		return writeByte(w, TagEnd)
	}
	return fmt.Errorf("nbt: cannot encode %T", value)
}

func tagType(value any) byte {
	switch value.(type) {
	case int8:
		return TagByte
	case int16:
		return TagShort
	case int32:
		return TagInt
	case int64:
		return TagLong
	case float32:
		return TagFloat
	case float64:
		return TagDouble
	case []byte:
		return TagByteArray
	case string:
		return TagString
	case List:
		return TagList
	case Compound:
		return TagCompound
	case []int32:
		return TagIntArray
	case []int64:
		return TagLongArray
	}
	return TagEnd
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func writeLength(w io.Writer, n int) error {
	return binary.Write(w, binary.BigEndian, int32(n))
}
