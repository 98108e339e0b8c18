package bignum

import "testing"

func TestAddSubRoundTrip(t *testing.T) {
	a := FromBytes([]byte{0x01, 0x00})
	b := FromBytes([]byte{0x00, 0xff})

	sum := NewDigits(4)
	if err := sum.Add(a, b); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if sum.v.Int64() != 0x1ff {
		t.Fatalf("sum = %v, want 0x1ff", sum.v)
	}

	back := NewDigits(4)
	if err := back.Sub(sum, b); err != nil {
		t.Fatalf("Sub: %v", err)
	}
	if back.Cmp(a) != 0 {
		t.Fatalf("sub did not undo add: got %v want %v", back.v, a.v)
	}
}

func TestCapacityRejected(t *testing.T) {
	a := FromBytes([]byte{0xff})
	b := FromBytes([]byte{0xff})
	dst := NewDigits(1)
	if err := dst.Add(a, b); err != ErrCapacity {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}
}

// small prime so the test doesn't need to carry a 3072-bit literal.
var smallN = []byte{0x65} // 101, prime

func TestBarrettReductionMatchesMod(t *testing.T) {
	e := NewEngine(smallN)
	for x := 0; x < 500; x++ {
		src := NewDigits(2)
		src.v.SetInt64(int64(x))
		dst := e.NewDigits()
		if err := e.Mod(dst, src); err != nil {
			t.Fatalf("Mod(%d): %v", x, err)
		}
		want := x % 101
		if dst.v.Int64() != int64(want) {
			t.Fatalf("Mod(%d) = %d, want %d", x, dst.v.Int64(), want)
		}
	}
}

func TestExpModMatchesRepeatedMul(t *testing.T) {
	e := NewEngine(smallN)
	base := e.NewDigits()
	base.v.SetInt64(7)
	exp := e.NewDigits()
	exp.v.SetInt64(13)

	got := e.NewDigits()
	if err := e.ExpMod(got, base, exp); err != nil {
		t.Fatalf("ExpMod: %v", err)
	}

	want := int64(1)
	for i := 0; i < 13; i++ {
		want = (want * 7) % 101
	}
	if got.v.Int64() != want {
		t.Fatalf("ExpMod(7,13,101) = %d, want %d", got.v.Int64(), want)
	}
}

func TestMulModAndAddMod(t *testing.T) {
	e := NewEngine(smallN)
	a := e.NewDigits()
	a.v.SetInt64(60)
	b := e.NewDigits()
	b.v.SetInt64(80)

	sum := e.NewDigits()
	if err := e.AddMod(sum, a, b); err != nil {
		t.Fatalf("AddMod: %v", err)
	}
	if sum.v.Int64() != (60+80)%101 {
		t.Fatalf("AddMod = %d, want %d", sum.v.Int64(), (60+80)%101)
	}

	prod := e.NewDigits()
	if err := e.MulMod(prod, a, b); err != nil {
		t.Fatalf("MulMod: %v", err)
	}
	if prod.v.Int64() != (60*80)%101 {
		t.Fatalf("MulMod = %d, want %d", prod.v.Int64(), (60*80)%101)
	}
}
