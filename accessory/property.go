// Package accessory implements the HAP data model: Property,
// Characteristic, Service, Accessory, and the Db that roots them,
// following HAP's IID/AID assignment and read/write dispatch rules.
package accessory

import "go.haplib.dev/hap/buf"

// PropertyType tags what role a Property plays within its owning
// Characteristic or Service.
type PropertyType byte

const (
	PropValue PropertyType = iota
	PropFormat
	PropUnit
	PropMinValue
	PropMaxValue
	PropStepValue
	PropMaxLength
	PropValidValues
	PropValidRange
	PropPermissions
	PropDescription
	PropCharIid
	PropSvcIid
	PropCharType
	PropSvcType
	PropSvcProp
	PropSvcLinked
	PropEvent
	PropTtl
)

// FormatType tags the wire encoding of a Property's value buffer.
type FormatType byte

const (
	FormatNull FormatType = iota
	FormatBool
	FormatUint8
	FormatUint16
	FormatUint32
	FormatUint64
	FormatInt
	FormatFloat
	FormatString
	FormatData
	FormatTlv
	FormatUuid
	FormatFormat
	FormatUnit
	FormatIid
)

// sizeOfFormat returns the fixed wire size for simple (non-variable)
// formats, or 0 for variable-length ones (String, Data, Tlv).
func sizeOfFormat(f FormatType) int {
	switch f {
	case FormatBool, FormatUint8, FormatFormat, FormatUnit:
		return 1
	case FormatUint16:
		return 2
	case FormatUint32, FormatFloat, FormatIid:
		return 4
	case FormatUint64:
		return 8
	case FormatInt:
		return 4
	case FormatUuid:
		return 16
	default:
		return 0
	}
}

// Property is the smallest typed element in the data model: a tagged
// value living in a fixed-capacity buffer, with a back-pointer (not an
// ownership edge) to the Characteristic it belongs to.
type Property struct {
	Type   PropertyType
	Format FormatType
	value  *buf.Buffer
	owner  *Characteristic
}

// NewProperty allocates a Property with the given maximum value
// length. For simple formats maxLen should equal sizeOfFormat(format);
// NewProperty panics if a simple format's declared length disagrees,
// since that would be a caller bug, not a runtime condition.
func NewProperty(typ PropertyType, format FormatType, maxLen int) *Property {
	if fixed := sizeOfFormat(format); fixed != 0 && fixed != maxLen {
		panic("accessory: maxLen disagrees with fixed format size")
	}
	return &Property{Type: typ, Format: format, value: buf.New(maxLen)}
}

// Value returns the raw little-endian bytes currently stored.
func (p *Property) Value() []byte { return p.value.Bytes() }

// SetValue overwrites the stored value, rejecting a write whose length
// exceeds the declared capacity, or that disagrees with a simple
// format's fixed size.
func (p *Property) SetValue(v []byte) error {
	if fixed := sizeOfFormat(p.Format); fixed != 0 && len(v) != fixed {
		return ErrLengthMismatch
	}
	p.value.Reset()
	return p.value.Append(v)
}

// Owner returns the Characteristic this Property belongs to, or nil
// for a Property attached directly to a Service.
func (p *Property) Owner() *Characteristic { return p.owner }
