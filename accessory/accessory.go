package accessory

// AccessoryInformationUUID is the well-known service UUID the first
// Accessory in a Db must expose: the first accessory always exposes
// the Accessory-Information service. The concrete characteristic set
// living under it is an external collaborator supplied by the caller.
const AccessoryInformationUUID = "0000003E-0000-1000-8000-0026BB765291"

// Accessory is an ordered collection of Services under a single
// Accessory ID (AID).
type Accessory struct {
	aid      uint64
	services []*Service
}

// NewAccessory constructs an Accessory bound to a fixed AID.
func NewAccessory(aid uint64) *Accessory {
	return &Accessory{aid: aid}
}

func (a *Accessory) Aid() uint64 { return a.aid }

// Add appends a Service to this Accessory.
func (a *Accessory) Add(s *Service) { a.services = append(a.services, s) }

// Services returns the accessory's services in declaration order.
func (a *Accessory) Services() []*Service { return a.services }

// ForEachService walks the accessory's services in order, stopping
// early if f returns false.
func (a *Accessory) ForEachService(f func(*Service) bool) {
	for _, s := range a.services {
		if !f(s) {
			return
		}
	}
}

// Service looks up a service by IID within this accessory.
func (a *Accessory) Service(iid uint16) *Service {
	for _, s := range a.services {
		if s.Iid() == iid {
			return s
		}
	}
	return nil
}

// HasAccessoryInformation reports whether this accessory exposes the
// mandatory Accessory-Information service.
func (a *Accessory) HasAccessoryInformation() bool {
	for _, s := range a.services {
		if s.Uuid() == AccessoryInformationUUID {
			return true
		}
	}
	return false
}
