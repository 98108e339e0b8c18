package accessory

import (
	"bytes"
	"testing"
)

func buildSimpleDb(t *testing.T) *Db {
	t.Helper()
	db := NewDb()
	acc := NewAccessory(1)

	info := NewService(0, "AccessoryInformation", AccessoryInformationUUID, 0)
	nameChar := NewCharacteristic(0, "Name", "00000023-0000-1000-8000-0026BB765291", PermPairedRead)
	nameValue := NewProperty(PropValue, FormatString, 64)
	nameValue.SetValue([]byte("Lamp"))
	nameChar.Add(nameValue)
	info.Add(nameChar)
	acc.Add(info)

	lightbulb := NewService(0, "Lightbulb", "00000043-0000-1000-8000-0026BB765291", 0)
	onChar := NewCharacteristic(0, "On", "00000025-0000-1000-8000-0026BB765291", PermPairedRead|PermPairedWrite|PermConnectedEvent)
	onValue := NewProperty(PropValue, FormatBool, 1)
	onValue.SetValue([]byte{0})
	onChar.Add(onValue)
	lightbulb.Add(onChar)
	acc.Add(lightbulb)

	db.Add(acc)
	return db
}

func TestSetIdAssignsSequentialIids(t *testing.T) {
	db := buildSimpleDb(t)
	last, err := db.SetId()
	if err != nil {
		t.Fatalf("SetId: %v", err)
	}
	if last != 5 {
		t.Fatalf("next free iid = %d, want 5 (2 services + 2 characteristics use 1..4)", last)
	}

	acc := db.Accessory(1)
	info := acc.Service(1)
	if info == nil || info.Iid() != 1 {
		t.Fatalf("AccessoryInformation should have iid 1")
	}
	lightbulb := acc.Service(3)
	if lightbulb == nil || lightbulb.Iid() != 3 {
		t.Fatalf("Lightbulb should have iid 3")
	}
}

func TestSetIdRequiresAccessoryInformationFirst(t *testing.T) {
	db := NewDb()
	acc := NewAccessory(1)
	acc.Add(NewService(0, "Lightbulb", "00000043-0000-1000-8000-0026BB765291", 0))
	db.Add(acc)

	if _, err := db.SetId(); err == nil {
		t.Fatal("expected SetId to reject a first accessory without Accessory-Information")
	}
}

func TestCharacteristicReadWriteRoundTrip(t *testing.T) {
	db := buildSimpleDb(t)
	db.SetId()

	on := db.Characteristic(1, 4)
	if on == nil {
		t.Fatal("expected to resolve (aid=1,iid=4) to the On characteristic")
	}

	if err := on.Write(Op{}, []byte{1}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	rsp, err := on.Read(Op{}, nil, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(rsp, []byte{1}) {
		t.Fatalf("Read returned %x, want 01", rsp)
	}
}

func TestWriteRejectsLengthMismatch(t *testing.T) {
	db := buildSimpleDb(t)
	db.SetId()
	on := db.Characteristic(1, 4)

	if err := on.Write(Op{}, []byte{1, 2}); err != ErrLengthMismatch {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestConnectedEventSubscription(t *testing.T) {
	c := NewCharacteristic(1, "On", "uuid", PermConnectedEvent)
	c.ConnectedEvent(42, true)
	if !c.ConnectedEventEnabled(42) {
		t.Fatal("expected session 42 to be subscribed")
	}
	c.ConnectedEvent(42, false)
	if c.ConnectedEventEnabled(42) {
		t.Fatal("expected session 42 to be unsubscribed")
	}
}

func TestTimedWriteStashAndExecute(t *testing.T) {
	c := NewCharacteristic(1, "On", "uuid", PermPairedWrite|PermTimedWrite)
	v := NewProperty(PropValue, FormatBool, 1)
	v.SetValue([]byte{0})
	c.Add(v)

	c.StashTimedWrite([]byte{1}, 10_000_000_000) // 10s
	if err := c.ExecuteTimedWrite(Op{}); err != nil {
		t.Fatalf("ExecuteTimedWrite: %v", err)
	}
	if !bytes.Equal(v.Value(), []byte{1}) {
		t.Fatalf("value after execute = %x, want 01", v.Value())
	}
}

func TestExecuteTimedWriteWithoutStashFails(t *testing.T) {
	c := NewCharacteristic(1, "On", "uuid", PermTimedWrite)
	if err := c.ExecuteTimedWrite(Op{}); err == nil {
		t.Fatal("expected error when no timed write is pending")
	}
}
