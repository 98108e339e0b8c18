package accessory

import "fmt"

// Db is the root holding one or more Accessories. IID assignment walks
// the tree in declaration order, assigning AIDs and then IIDs
// sequentially; once assigned, IIDs are stable across reboots as long
// as the configuration number is unchanged.
type Db struct {
	accessories []*Accessory
}

// NewDb constructs an empty Db.
func NewDb() *Db { return &Db{} }

// Add appends an Accessory. The first Accessory added must carry the
// Accessory-Information service; this is checked at SetId time rather
// than here, since Add may run before services are attached.
func (d *Db) Add(a *Accessory) { d.accessories = append(d.accessories, a) }

// Accessories returns the Db's accessories in declaration order.
func (d *Db) Accessories() []*Accessory { return d.accessories }

// Accessory looks up an accessory by AID.
func (d *Db) Accessory(aid uint64) *Accessory {
	for _, a := range d.accessories {
		if a.Aid() == aid {
			return a
		}
	}
	return nil
}

// Characteristic resolves an (aid, iid) pair to its Characteristic, or
// nil if either half of the path doesn't exist.
func (d *Db) Characteristic(aid uint64, iid uint16) *Characteristic {
	a := d.Accessory(aid)
	if a == nil {
		return nil
	}
	for _, svc := range a.Services() {
		if c := svc.Characteristic(iid); c != nil {
			return c
		}
	}
	return nil
}

// SetId walks the tree in declaration order assigning iid = 1..N to
// each accessory's services and characteristics, and returns the next
// free IID (N+1) of the last accessory. IID numbering restarts at 1 for
// every accessory (accessories do not share an IID space; only AIDs are
// global).
func (d *Db) SetId() (uint16, error) {
	if len(d.accessories) == 0 {
		return 0, fmt.Errorf("accessory: db has no accessories")
	}
	if !d.accessories[0].HasAccessoryInformation() {
		return 0, fmt.Errorf("accessory: first accessory must expose Accessory-Information")
	}

	var last uint16
	for _, a := range d.accessories {
		next := uint16(1)
		for _, svc := range a.services {
			svc.iid = next
			next++
			for _, c := range svc.chars {
				c.iid = next
				next++
			}
		}
		last = next
	}
	return last, nil
}
