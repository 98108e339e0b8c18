package ip

import (
	"encoding/json"
	"fmt"
	"time"

	"go.haplib.dev/hap/accessory"
)

// pollInterval is how often a connection's background poll loop checks
// for pending characteristic events to push as an EVENT pseudo-response.
const pollInterval = 1 * time.Second

// pendingEvents walks db collecting every characteristic with a
// pending event for sessionID, draining each as it goes, and renders
// them in the same JSON shape as GET /characteristics. It returns
// ok=false if nothing was pending.
func pendingEvents(db *accessory.Db, sessionID uint64) ([]byte, bool, error) {
	out := struct {
		Characteristics []characteristicJSON `json:"characteristics"`
	}{}

	for _, a := range db.Accessories() {
		for _, svc := range a.Services() {
			for _, c := range svc.Characteristics() {
				if !c.TakePendingEvent(sessionID) {
					continue
				}
				val, err := characteristicValue(c)
				if err != nil {
					return nil, false, err
				}
				out.Characteristics = append(out.Characteristics, characteristicJSON{
					Aid: a.Aid(), Iid: c.Iid(), Value: val,
				})
			}
		}
	}
	if len(out.Characteristics) == 0 {
		return nil, false, nil
	}
	body, err := json.Marshal(out)
	return body, true, err
}

// eventResponse renders an "EVENT/1.0 200 OK" pseudo-response carrying
// body as its JSON payload, matching the status-line-without-a-request
// shape HAP controllers expect for unsolicited event pushes.
func eventResponse(body []byte) []byte {
	head := fmt.Sprintf("EVENT/1.0 200 OK\r\nContent-Type: application/hap+json\r\nContent-Length: %d\r\n\r\n", len(body))
	return append([]byte(head), body...)
}
