package pathutil

import "testing"

func TestCleanPathIdempotent(t *testing.T) {
	cases := []string{
		"c:/a//b/../c/./d\\e",
		"/a/./b/../../c",
		"relative/../path",
		"",
	}
	for _, c := range cases {
		once := CleanPath(c)
		twice := CleanPath(once)
		if once != twice {
			t.Errorf("CleanPath(%q) = %q, CleanPath(that) = %q, want idempotent", c, once, twice)
		}
	}
}

func TestCleanPathDriveLetter(t *testing.T) {
	got := CleanPath("c:/a//b/../c/./d\\e")
	want := "c:/a/c/d/e"
	if got != want {
		t.Errorf("CleanPath(...) = %q, want %q", got, want)
	}
}

func TestCleanPathNeverPopsPastRoot(t *testing.T) {
	got := CleanPath("/../../a")
	want := "/a"
	if got != want {
		t.Errorf("CleanPath(/../../a) = %q, want %q", got, want)
	}
}

func TestCleanPathMakeFullNonAbsolute(t *testing.T) {
	if _, err := CleanPathMakeFull("relative/path", false); err == nil {
		t.Fatal("expected error for non-absolute path with makeFull=false")
	}
}

func TestCleanPathMakeFullAbsolutePassesThrough(t *testing.T) {
	got, err := CleanPathMakeFull("/a/b", false)
	if err != nil {
		t.Fatalf("CleanPathMakeFull: %v", err)
	}
	if got != "/a/b" {
		t.Errorf("got %q, want /a/b", got)
	}
}
