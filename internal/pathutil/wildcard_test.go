package pathutil

import "testing"

func TestIsWildcardMatch(t *testing.T) {
	cases := []struct {
		pattern, s string
		want       bool
	}{
		{"*.cpp", "File.cpp", true},
		{"*.cpp", "File.CPP", false},
		{"*", "", true},
		{"*", "anything", true},
		{"test_*.go", "test_foo.go", true},
		{"test_*.go", "nope.go", false},
		{"a?c", "abc", true},
		{"a?c", "ac", false},
	}
	for _, c := range cases {
		if got := IsWildcardMatch(c.pattern, c.s); got != c.want {
			t.Errorf("IsWildcardMatch(%q, %q) = %v, want %v", c.pattern, c.s, got, c.want)
		}
	}
}

func TestIsWildcardMatchICaseInsensitive(t *testing.T) {
	if !IsWildcardMatchI("*.cpp", "File.CPP") {
		t.Error("expected case-insensitive match")
	}
}

func TestFindRespectsLengthBound(t *testing.T) {
	s := "hello world"
	if idx := Find(s, 5, 'w'); idx != -1 {
		t.Errorf("Find should not see past bound 5, got idx=%d", idx)
	}
	if idx := Find(s, len(s), 'w'); idx != 6 {
		t.Errorf("Find(%q, len, 'w') = %d, want 6", s, idx)
	}
}

func TestFindLastRespectsLengthBound(t *testing.T) {
	s := "a.b.c"
	if idx := FindLast(s, len(s), '.'); idx != 3 {
		t.Errorf("FindLast = %d, want 3", idx)
	}
	if idx := FindLast(s, 2, '.'); idx != 1 {
		t.Errorf("FindLast bounded = %d, want 1", idx)
	}
}

func TestEqualsIAndEndsWithI(t *testing.T) {
	if !EqualsI("Foo", "foo") {
		t.Error("EqualsI should ignore case")
	}
	if EqualsI("Foo", "fooo") {
		t.Error("EqualsI should require equal length")
	}
	if !EndsWithI("File.CPP", ".cpp") {
		t.Error("EndsWithI should ignore case")
	}
}
