package buf

import (
	"bytes"
	"testing"
)

func TestAppendRespectsCapacity(t *testing.T) {
	b := New(4)
	if err := b.Append([]byte{1, 2}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := b.Append([]byte{3, 4, 5}); err != ErrCapacity {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}
	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (failed append must not partially apply)", b.Len())
	}
}

func TestTakeUnderflow(t *testing.T) {
	b := New(4)
	b.Append([]byte{1, 2})
	if _, err := b.Take(3); err != ErrUnderflow {
		t.Fatalf("expected ErrUnderflow, got %v", err)
	}
}

func TestLittleEndianRoundTrip(t *testing.T) {
	b := New(16)
	b.AppendUint16LE(0xBEEF)
	b.AppendUint32LE(0xDEADBEEF)
	b.AppendUint64LE(0x0102030405060708)

	v16, _ := b.TakeUint16LE()
	if v16 != 0xBEEF {
		t.Fatalf("uint16 = %x, want BEEF", v16)
	}
	v32, _ := b.TakeUint32LE()
	if v32 != 0xDEADBEEF {
		t.Fatalf("uint32 = %x, want DEADBEEF", v32)
	}
	rest, _ := b.Take(8)
	want := []byte{8, 7, 6, 5, 4, 3, 2, 1}
	if !bytes.Equal(rest, want) {
		t.Fatalf("uint64 bytes = %x, want %x", rest, want)
	}
}

func TestRewindAllowsReRead(t *testing.T) {
	b := New(4)
	b.Append([]byte{0xAA, 0xBB})
	first, _ := b.TakeByte()
	b.Rewind()
	second, _ := b.TakeByte()
	if first != second {
		t.Fatalf("Rewind did not reproduce the same first byte: %x vs %x", first, second)
	}
}

func TestWrap(t *testing.T) {
	b := Wrap([]byte{1, 2, 3})
	if b.Len() != 3 || b.Cap() != 3 {
		t.Fatalf("Wrap: Len=%d Cap=%d, want 3,3", b.Len(), b.Cap())
	}
}
