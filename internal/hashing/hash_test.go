package hashing

import "testing"

func TestHash64Deterministic(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	a := Hash64(data)
	b := Hash64(data)
	if a != b {
		t.Fatalf("Hash64 not deterministic: %x != %x", a, b)
	}
}

func TestHash64DiffersOnChange(t *testing.T) {
	a := Hash64([]byte("foo"))
	b := Hash64([]byte("bar"))
	if a == b {
		t.Fatalf("Hash64(foo) == Hash64(bar) == %x, expected different hashes", a)
	}
}

func TestAccumulatorMatchesConcatenation(t *testing.T) {
	parts := [][]byte{[]byte("hello, "), []byte("world"), []byte("!")}
	var concat []byte
	for _, p := range parts {
		concat = append(concat, p...)
	}
	want := Hash64(concat)

	acc := NewAccumulator()
	for _, p := range parts {
		acc.Add(p)
	}
	got := acc.Sum64()

	if got != want {
		t.Fatalf("accumulator Sum64() = %x, want Hash64(concat) = %x", got, want)
	}
}

func TestAccumulatorAddString(t *testing.T) {
	want := Hash64([]byte("abc"))
	got := NewAccumulator().AddString("abc").Sum64()
	if got != want {
		t.Fatalf("AddString mismatch: %x != %x", got, want)
	}
}

func TestHash32IsLowBitsOfHash64(t *testing.T) {
	data := []byte("some node name")
	if Hash32(data) != uint32(Hash64(data)) {
		t.Fatal("Hash32 should equal the low 32 bits of Hash64")
	}
}

func TestCRC32Deterministic(t *testing.T) {
	data := []byte("stable input")
	if CRC32(data) != CRC32(data) {
		t.Fatal("CRC32 not deterministic")
	}
}
