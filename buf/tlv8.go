package buf

import "fmt"

// Item is one decoded TLV8 record: a one-byte type tag and its value.
// Runs of consecutive same-type records longer than 255 bytes (the
// wire encoding's per-record ceiling) are already concatenated by
// Decode before an Item reaches the caller.
type Item struct {
	Type  byte
	Value []byte
}

// Separator is the HAP TLV8 type tag used between repeated records in
// a list response (e.g. ListM1's pairings array).
const Separator = 0xff

// Encode renders items as a flat TLV8 byte stream, splitting any value
// longer than 255 bytes into consecutive same-type 255-byte records.
func Encode(items []Item) []byte {
	var out []byte
	for _, it := range items {
		out = append(out, FormatValue(it.Type, it.Value)...)
	}
	return out
}

// FormatValue renders a single logical value as one or more TLV8
// records of the same type, chunked at 255 bytes. A zero-length value
// still emits one zero-length record.
func FormatValue(typ byte, value []byte) []byte {
	if len(value) == 0 {
		return []byte{typ, 0}
	}
	var out []byte
	for len(value) > 0 {
		n := len(value)
		if n > 255 {
			n = 255
		}
		out = append(out, typ, byte(n))
		out = append(out, value[:n]...)
		value = value[n:]
	}
	return out
}

// Decode parses a flat TLV8 byte stream into items, concatenating runs
// of consecutive same-type records (HAP's Value-TLV fragmentation)
// into a single Item.
func Decode(data []byte) ([]Item, error) {
	var items []Item
	lastChunkLen := -1 // -1: no item yet, or the previous record was < 255 (run closed)

	for len(data) > 0 {
		if len(data) < 2 {
			return nil, fmt.Errorf("buf: truncated tlv8 record header")
		}
		typ := data[0]
		n := int(data[1])
		data = data[2:]
		if len(data) < n {
			return nil, fmt.Errorf("buf: truncated tlv8 record body")
		}
		value := data[:n]
		data = data[n:]

		continuesRun := len(items) > 0 && items[len(items)-1].Type == typ && lastChunkLen == 255
		if continuesRun {
			items[len(items)-1].Value = append(items[len(items)-1].Value, value...)
		} else {
			items = append(items, Item{Type: typ, Value: append([]byte{}, value...)})
		}
		lastChunkLen = n
	}
	return items, nil
}

// Find returns the value of the first item with the given type, or
// (nil, false) if absent.
func Find(items []Item, typ byte) ([]byte, bool) {
	for _, it := range items {
		if it.Type == typ {
			return it.Value, true
		}
	}
	return nil, false
}

// FindAll returns every item matching typ, in order, e.g. every
// Identifier in a ListM1 response's Separator-delimited records.
func FindAll(items []Item, typ byte) [][]byte {
	var out [][]byte
	for _, it := range items {
		if it.Type == typ {
			out = append(out, it.Value)
		}
	}
	return out
}

// Split breaks a flat record stream into groups at each Separator
// item, used to decode ListM1's repeated {Identifier, PublicKey,
// Permissions} records.
func Split(items []Item) [][]Item {
	var groups [][]Item
	var cur []Item
	for _, it := range items {
		if it.Type == Separator {
			groups = append(groups, cur)
			cur = nil
			continue
		}
		cur = append(cur, it)
	}
	groups = append(groups, cur)
	return groups
}
