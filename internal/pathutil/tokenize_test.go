package pathutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTokenizeBasic(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"one_token", []string{"one_token"}},
		{"this is four tokens", []string{"this", "is", "four", "tokens"}},
		{"     token", []string{"token"}},
		{"token      ", []string{"token"}},
		{"   lots  of      spaces   ", []string{"lots", "of", "spaces"}},
	}
	for _, c := range cases {
		got := Tokenize(c.in, ' ', false)
		if diff := cmp.Diff(c.want, got); diff != "" {
			t.Errorf("Tokenize(%q) mismatch (-want +got):\n%s", c.in, diff)
		}
	}
}

func TestTokenizeQuotedSpan(t *testing.T) {
	in := `this is "only three tokens"`
	gotKeep := Tokenize(in, ' ', false)
	wantKeep := []string{"this", "is", `"only three tokens"`}
	if diff := cmp.Diff(wantKeep, gotKeep); diff != "" {
		t.Errorf("no quote removal mismatch (-want +got):\n%s", diff)
	}

	gotStrip := Tokenize(in, ' ', true)
	wantStrip := []string{"this", "is", "only three tokens"}
	if diff := cmp.Diff(wantStrip, gotStrip); diff != "" {
		t.Errorf("with quote removal mismatch (-want +got):\n%s", diff)
	}
}

func TestTokenizeQuoteInsideToken(t *testing.T) {
	in := `this is -DARG="a b"`
	gotKeep := Tokenize(in, ' ', false)
	wantKeep := []string{"this", "is", `-DARG="a b"`}
	if diff := cmp.Diff(wantKeep, gotKeep); diff != "" {
		t.Errorf("no quote removal mismatch (-want +got):\n%s", diff)
	}

	gotStrip := Tokenize(in, ' ', true)
	wantStrip := []string{"this", "is", "-DARG=a b"}
	if diff := cmp.Diff(wantStrip, gotStrip); diff != "" {
		t.Errorf("with quote removal mismatch (-want +got):\n%s", diff)
	}
}

func TestTokenizeEscapedQuotes(t *testing.T) {
	cases := []struct {
		in           string
		wantKeep     []string
		wantStripped []string
	}{
		{`-D=\"`, []string{`-D=\"`}, []string{`-D="`}},
		{`-D=\" -D2`, []string{`-D=\"`, "-D2"}, []string{`-D="`, "-D2"}},
		{`"-D=   \"   "`, []string{`"-D=   \"   "`}, []string{`-D=   "   `}},
		{`"-D=\" string \"  "`, []string{`"-D=\" string \"  "`}, []string{`-D=" string "  `}},
		{`\"`, []string{`\"`}, []string{`"`}},
	}
	for _, c := range cases {
		gotKeep := Tokenize(c.in, ' ', false)
		if diff := cmp.Diff(c.wantKeep, gotKeep); diff != "" {
			t.Errorf("Tokenize(%q, removeQuotes=false) mismatch (-want +got):\n%s", c.in, diff)
		}
		gotStripped := Tokenize(c.in, ' ', true)
		if diff := cmp.Diff(c.wantStripped, gotStripped); diff != "" {
			t.Errorf("Tokenize(%q, removeQuotes=true) mismatch (-want +got):\n%s", c.in, diff)
		}
	}
}

func TestTokenizeUnterminatedQuote(t *testing.T) {
	in := `-X="`
	gotKeep := Tokenize(in, ' ', false)
	if want := []string{`-X="`}; cmp.Diff(want, gotKeep) != "" {
		t.Errorf("no quote removal: got %#v, want %#v", gotKeep, want)
	}
	gotStrip := Tokenize(in, ' ', true)
	if want := []string{"-X="}; cmp.Diff(want, gotStrip) != "" {
		t.Errorf("with quote removal: got %#v, want %#v", gotStrip, want)
	}
}

func TestTokenizeAlternateSplitChar(t *testing.T) {
	in := `c:\path\path;d:\path;e:\`
	got := Tokenize(in, ';', false)
	want := []string{`c:\path\path`, `d:\path`, `e:\`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Tokenize(%q, ';') mismatch (-want +got):\n%s", in, diff)
	}
}
