package ip

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.haplib.dev/hap/accessory"
)

// accessoryJSON/serviceJSON/characteristicJSON mirror the HAP
// accessory-database JSON shape GET /accessories renders and
// GET/PUT /characteristics operate on.
type characteristicJSON struct {
	Aid   uint64      `json:"aid"`
	Iid   uint16      `json:"iid"`
	Type  string      `json:"type,omitempty"`
	Value interface{} `json:"value,omitempty"`
	Perms []string    `json:"perms,omitempty"`
	Ev     *bool      `json:"ev,omitempty"`
	Status *int       `json:"status,omitempty"`
}

type serviceJSON struct {
	Iid             uint16                `json:"iid"`
	Type            string                `json:"type"`
	Characteristics []characteristicJSON  `json:"characteristics"`
}

type accessoryJSON struct {
	Aid      uint64        `json:"aid"`
	Services []serviceJSON `json:"services"`
}

// renderAccessories builds the full GET /accessories JSON body.
func renderAccessories(db *accessory.Db) ([]byte, error) {
	out := struct {
		Accessories []accessoryJSON `json:"accessories"`
	}{}
	for _, a := range db.Accessories() {
		aj := accessoryJSON{Aid: a.Aid()}
		for _, svc := range a.Services() {
			sj := serviceJSON{Iid: svc.Iid(), Type: svc.Uuid()}
			for _, c := range svc.Characteristics() {
				val, err := characteristicValue(c)
				if err != nil {
					return nil, err
				}
				sj.Characteristics = append(sj.Characteristics, characteristicJSON{
					Aid: a.Aid(), Iid: c.Iid(), Type: c.Uuid(), Value: val,
					Perms: permStrings(c.Perm()),
				})
			}
			aj.Services = append(aj.Services, sj)
		}
		out.Accessories = append(out.Accessories, aj)
	}
	return json.Marshal(out)
}

// charQuery is one `aid.iid` pair from a GET /characteristics?id=...
// query string, plus the shared meta/perms/type/ev flags.
type charQuery struct {
	aid, iid uint64
	meta, perms, typ, ev bool
}

// parseCharQuery parses `id=aid.iid,aid.iid,...&meta=0|1&...` into a
// list of lookups, applying the shared flags to each.
func parseCharQuery(raw string) ([]charQuery, error) {
	values := make(map[string]string)
	for _, kv := range strings.Split(raw, "&") {
		if kv == "" {
			continue
		}
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			values[parts[0]] = parts[1]
		}
	}
	idParam, ok := values["id"]
	if !ok {
		return nil, fmt.Errorf("ip: missing id parameter")
	}

	flag := func(name string) bool { return values[name] == "1" }
	meta, perms, typ, ev := flag("meta"), flag("perms"), flag("type"), flag("ev")

	var queries []charQuery
	for _, pair := range strings.Split(idParam, ",") {
		dot := strings.IndexByte(pair, '.')
		if dot < 0 {
			return nil, fmt.Errorf("ip: malformed id pair %q", pair)
		}
		aid, err := strconv.ParseUint(pair[:dot], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ip: malformed aid in %q", pair)
		}
		iid, err := strconv.ParseUint(pair[dot+1:], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ip: malformed iid in %q", pair)
		}
		queries = append(queries, charQuery{aid: aid, iid: iid, meta: meta, perms: perms, typ: typ, ev: ev})
	}
	return queries, nil
}

// renderCharacteristics resolves each query against db and builds the
// GET /characteristics JSON body; a query for a missing (aid, iid)
// gets a per-element 404 status rather than failing the whole batch.
func renderCharacteristics(db *accessory.Db, queries []charQuery, sessionID uint64) ([]byte, error) {
	out := struct {
		Characteristics []characteristicJSON `json:"characteristics"`
	}{}
	for _, q := range queries {
		c := db.Characteristic(q.aid, uint16(q.iid))
		if c == nil {
			notFound := 404
			out.Characteristics = append(out.Characteristics, characteristicJSON{
				Aid: q.aid, Iid: uint16(q.iid), Status: &notFound,
			})
			continue
		}
		val, err := characteristicValue(c)
		if err != nil {
			return nil, err
		}
		cj := characteristicJSON{Aid: q.aid, Iid: c.Iid(), Value: val}
		if q.typ {
			cj.Type = c.Uuid()
		}
		if q.perms {
			cj.Perms = permStrings(c.Perm())
		}
		if q.ev {
			enabled := c.ConnectedEventEnabled(sessionID)
			cj.Ev = &enabled
		}
		out.Characteristics = append(out.Characteristics, cj)
	}
	return json.Marshal(out)
}

// writeRequest is one element of a PUT /characteristics body.
type writeRequest struct {
	Aid   uint64          `json:"aid"`
	Iid   uint16          `json:"iid"`
	Value json.RawMessage `json:"value"`
	Ev    *bool           `json:"ev"`
}

// applyCharacteristicsWrite parses and applies a PUT /characteristics
// body, rejecting writes to non-paired-write characteristics and `ev`
// toggles on characteristics without the Events permission.
func applyCharacteristicsWrite(db *accessory.Db, sessionID uint64, body []byte) error {
	var req struct {
		Characteristics []writeRequest `json:"characteristics"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return fmt.Errorf("ip: malformed write body: %w", err)
	}

	for _, w := range req.Characteristics {
		c := db.Characteristic(w.Aid, w.Iid)
		if c == nil {
			return fmt.Errorf("ip: unknown characteristic %d.%d", w.Aid, w.Iid)
		}
		op := accessory.Op{SessionID: sessionID}

		if len(w.Value) > 0 {
			if c.Perm()&accessory.PermPairedWrite == 0 {
				return fmt.Errorf("ip: characteristic %d.%d is not paired-writable", w.Aid, w.Iid)
			}
			raw, err := encodeJSONValue(c.Format(), w.Value)
			if err != nil {
				return err
			}
			if err := c.Write(op, raw); err != nil {
				return err
			}
		}
		if w.Ev != nil {
			if c.Perm()&accessory.PermConnectedEvent == 0 {
				return fmt.Errorf("ip: characteristic %d.%d has no Events permission", w.Aid, w.Iid)
			}
			c.ConnectedEvent(sessionID, *w.Ev)
		}
	}
	return nil
}

// characteristicValue fetches a characteristic's current bytes and
// decodes them into a JSON-representable Go value per its Format.
func characteristicValue(c *accessory.Characteristic) (interface{}, error) {
	raw, err := c.Read(accessory.Op{}, nil, nil)
	if err != nil {
		return nil, nil // signature-only characteristics carry no Value
	}
	return decodeFormatValue(c.Format(), raw), nil
}

func decodeFormatValue(f accessory.FormatType, raw []byte) interface{} {
	switch f {
	case accessory.FormatBool:
		return len(raw) > 0 && raw[0] != 0
	case accessory.FormatUint8:
		if len(raw) < 1 {
			return 0
		}
		return raw[0]
	case accessory.FormatUint16:
		if len(raw) < 2 {
			return 0
		}
		return binary.LittleEndian.Uint16(raw)
	case accessory.FormatUint32, accessory.FormatIid:
		if len(raw) < 4 {
			return 0
		}
		return binary.LittleEndian.Uint32(raw)
	case accessory.FormatUint64:
		if len(raw) < 8 {
			return 0
		}
		return binary.LittleEndian.Uint64(raw)
	case accessory.FormatInt:
		if len(raw) < 4 {
			return 0
		}
		return int32(binary.LittleEndian.Uint32(raw))
	case accessory.FormatFloat:
		if len(raw) < 4 {
			return 0
		}
		return math.Float32frombits(binary.LittleEndian.Uint32(raw))
	case accessory.FormatString:
		return string(raw)
	default:
		return raw
	}
}

func encodeJSONValue(f accessory.FormatType, raw json.RawMessage) ([]byte, error) {
	switch f {
	case accessory.FormatBool:
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		if v {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case accessory.FormatUint8:
		var v uint8
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return []byte{v}, nil
	case accessory.FormatUint16:
		var v uint16
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		out := make([]byte, 2)
		binary.LittleEndian.PutUint16(out, v)
		return out, nil
	case accessory.FormatUint32, accessory.FormatIid:
		var v uint32
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		out := make([]byte, 4)
		binary.LittleEndian.PutUint32(out, v)
		return out, nil
	case accessory.FormatUint64:
		var v uint64
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		out := make([]byte, 8)
		binary.LittleEndian.PutUint64(out, v)
		return out, nil
	case accessory.FormatInt:
		var v int32
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		out := make([]byte, 4)
		binary.LittleEndian.PutUint32(out, uint32(v))
		return out, nil
	case accessory.FormatFloat:
		var v float32
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		out := make([]byte, 4)
		binary.LittleEndian.PutUint32(out, math.Float32bits(v))
		return out, nil
	case accessory.FormatString:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return []byte(v), nil
	default:
		return raw, nil
	}
}

// permStrings renders a Permission bitmask as the HAP JSON perms list.
func permStrings(p accessory.Permission) []string {
	var out []string
	add := func(bit accessory.Permission, name string) {
		if p&bit != 0 {
			out = append(out, name)
		}
	}
	add(accessory.PermPairedRead, "pr")
	add(accessory.PermPairedWrite, "pw")
	add(accessory.PermRead, "rd")
	add(accessory.PermWrite, "wr")
	add(accessory.PermConnectedEvent, "ev")
	add(accessory.PermDisconnectedEvent, "de")
	add(accessory.PermBroadcastNotify, "bn")
	add(accessory.PermAdditionalAuth, "aa")
	add(accessory.PermTimedWrite, "tw")
	add(accessory.PermHidden, "hd")
	return out
}
