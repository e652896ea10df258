package hashing

import (
	"bytes"
	"strings"
	"testing"
)

func TestCompressRoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat("the graph database payload ", 200))
	for _, level := range []int{0, -1, -2, 1, 5, 9} {
		level := level
		t.Run("", func(t *testing.T) {
			blob, err := Compress(payload, level)
			if err != nil {
				t.Fatalf("Compress(level=%d): %v", level, err)
			}
			if !IsValidData(blob) {
				t.Fatalf("Compress(level=%d) produced invalid header", level)
			}
			got, err := Decompress(blob)
			if err != nil {
				t.Fatalf("Decompress(level=%d): %v", level, err)
			}
			if !bytes.Equal(got, payload) {
				t.Fatalf("Decompress(level=%d) round trip mismatch", level)
			}
		})
	}
}

func TestCompressLevelZeroStores(t *testing.T) {
	payload := []byte("not compressed")
	blob, err := Compress(payload, 0)
	if err != nil {
		t.Fatal(err)
	}
	if blob[0] != flagStored || blob[1] != 0 || blob[2] != 0 || blob[3] != 0 {
		t.Fatalf("expected flagStored header, got %v", blob[:4])
	}
}

func TestIsValidDataRejectsTruncated(t *testing.T) {
	if IsValidData(nil) {
		t.Fatal("nil should be invalid")
	}
	if IsValidData([]byte{1, 2, 3}) {
		t.Fatal("too-short header should be invalid")
	}
	blob, err := Compress([]byte("hello"), 3)
	if err != nil {
		t.Fatal(err)
	}
	if IsValidData(blob[:len(blob)-1]) {
		t.Fatal("truncated blob should be invalid")
	}
}

func TestDecompressRejectsInvalid(t *testing.T) {
	if _, err := Decompress([]byte("garbage")); err == nil {
		t.Fatal("expected error decompressing garbage")
	}
}
