package artifact

import "testing"

func TestDeriveDoesNotAlias(t *testing.T) {
	src := []byte{0x00, 0x61, 0x73, 0x6d}
	primary := New(PrimaryBinary, "demo", ".wasm", src)
	src[0] = 0xff
	if primary.Data[0] != 0x00 {
		t.Fatal("New must copy its input")
	}

	reducedData := []byte{0x00, 0x61}
	reduced := primary.Derive(ReducedBinary, ".wasm", reducedData)
	reducedData[0] = 0xff
	if reduced.Data[0] != 0x00 || reduced.Name != "demo" || reduced.Kind != ReducedBinary {
		t.Fatalf("unexpected derived artifact %+v", reduced)
	}
	if len(primary.Data) != 4 {
		t.Fatal("input artifact changed")
	}
}

func TestKindText(t *testing.T) {
	for _, k := range []Kind{PrimaryBinary, ReducedBinary, GlueSource, ShimSource} {
		text, err := k.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText: %v", err)
		}
		var got Kind
		if err := got.UnmarshalText(text); err != nil || got != k {
			t.Fatalf("round trip %s -> %v (%v)", k, got, err)
		}
	}
	var k Kind
	if err := k.UnmarshalText([]byte("object-file")); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if !PrimaryBinary.IsBinary() || !ReducedBinary.IsBinary() || GlueSource.IsBinary() || ShimSource.IsBinary() {
		t.Fatal("IsBinary mismatch")
	}
}

func TestHashAndBinary(t *testing.T) {
	a := New(PrimaryBinary, "m", ".wasm", []byte("abc"))
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if a.Hash() != want {
		t.Fatalf("Hash = %s", a.Hash())
	}
	list := []Artifact{New(GlueSource, "m", ".js", []byte("x")), a}
	bin, ok := Binary(list)
	if !ok || bin.Kind != PrimaryBinary {
		t.Fatalf("Binary = %+v,%v", bin, ok)
	}
	if _, ok := Binary(list[:1]); ok {
		t.Fatal("no binary expected")
	}
	cloned := CloneAll(list)
	cloned[1].Data[0] = 'z'
	if list[1].Data[0] != 'a' {
		t.Fatal("CloneAll must deep copy")
	}
}

func TestSafeName(t *testing.T) {
	cases := map[string]string{
		"":         "module",
		"demo":     "demo",
		"my-crate": "my_crate",
		"a/b\\c":   "a_b_c",
		"..":       "module",
		"v1.2":     "v1.2",
		"naïve":    "na__ve",
	}
	for in, want := range cases {
		if got := SafeName(in); got != want {
			t.Errorf("SafeName(%q) = %q, want %q", in, got, want)
		}
	}
}
