package env

import (
	"os"
	"testing"
)

func TestImportVarsDistinguishesAbsentFromEmpty(t *testing.T) {
	const unsetName = "NBUILD_TEST_UNSET_VAR_XYZ"
	const emptyName = "NBUILD_TEST_EMPTY_VAR_XYZ"
	os.Unsetenv(unsetName)
	if err := os.Setenv(emptyName, ""); err != nil {
		t.Fatalf("Setenv: %v", err)
	}
	defer os.Unsetenv(emptyName)

	vars := ImportVars([]string{unsetName, emptyName})
	if vars[0].Hash != 0 {
		t.Errorf("unset var hash = %d, want 0 (absence sentinel)", vars[0].Hash)
	}
	if vars[1].Hash == 0 {
		t.Error("empty-but-set var hash must not collide with the absence sentinel")
	}
}

func TestImportVarsIsStableForUnchangedValue(t *testing.T) {
	const name = "NBUILD_TEST_STABLE_VAR_XYZ"
	if err := os.Setenv(name, "same-value"); err != nil {
		t.Fatalf("Setenv: %v", err)
	}
	defer os.Unsetenv(name)

	h1 := ImportVars([]string{name})[0].Hash
	h2 := ImportVars([]string{name})[0].Hash
	if h1 != h2 {
		t.Errorf("ImportVars hash not stable across calls: %d != %d", h1, h2)
	}
}

func TestLibVarNameMatchesPlatform(t *testing.T) {
	name := LibVarName()
	if name != "LIB" && name != "LD_LIBRARY_PATH" {
		t.Errorf("unexpected LibVarName() = %q", name)
	}
}

func TestBlockIsDoubleNullTerminated(t *testing.T) {
	b := Block()
	if len(b) == 0 {
		t.Fatal("Block() returned empty output")
	}
	if b[len(b)-1] != 0 {
		t.Error("Block() must end with a trailing NUL")
	}
}
