package accessory

// Service is a UUID-identified ordered collection of Characteristics
// sharing a service-wide IID and an optional service-properties bag.
type Service struct {
	iid    uint16
	name   string
	uuid   string
	prop   uint16
	linked []uint16
	primary bool
	chars  []*Characteristic
	sig    *Characteristic // service-signature characteristic, present iff prop != 0
}

// NewService constructs a Service with iid/name/uuid and an optional
// property mask (prop=0 for none). When prop is non-zero a
// service-signature characteristic is required and must be attached by
// the caller via SetSignature.
func NewService(iid uint16, name, uuid string, prop uint16) *Service {
	return &Service{iid: iid, name: name, uuid: uuid, prop: prop}
}

func (s *Service) Iid() uint16    { return s.iid }
func (s *Service) Uuid() string   { return s.uuid }
func (s *Service) Name() string   { return s.name }
func (s *Service) SvcProp() uint16 { return s.prop }
func (s *Service) Linked() []uint16 { return s.linked }

// SetLinked records the optional SvcLinked property (cross-references
// to other services' IIDs).
func (s *Service) SetLinked(iids []uint16) { s.linked = iids }

// SetPrimary marks this as the accessory's primary service.
func (s *Service) SetPrimary(v bool) { s.primary = v }
func (s *Service) IsPrimary() bool   { return s.primary }

// SetSignature attaches the service-signature characteristic required
// when SvcProp is non-empty.
func (s *Service) SetSignature(c *Characteristic) {
	s.sig = c
	c.owner = s
}
func (s *Service) Signature() *Characteristic { return s.sig }

// Add appends a Characteristic to this Service.
func (s *Service) Add(c *Characteristic) { s.chars = append(s.chars, c) }

// Characteristics returns the service's characteristics in declaration
// order.
func (s *Service) Characteristics() []*Characteristic { return s.chars }

// ForEachChar walks the service's characteristics in order, stopping
// early if f returns false.
func (s *Service) ForEachChar(f func(*Characteristic) bool) {
	for _, c := range s.chars {
		if !f(c) {
			return
		}
	}
}

// Characteristic looks up a characteristic by IID within this service.
func (s *Service) Characteristic(iid uint16) *Characteristic {
	for _, c := range s.chars {
		if c.Iid() == iid {
			return c
		}
	}
	return nil
}
