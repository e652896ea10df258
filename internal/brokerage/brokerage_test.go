package brokerage

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sampleToken() Token {
	return Token{
		Version:   "1",
		User:      "jdoe",
		HostName:  "buildbox7",
		IPv4:      "10.0.0.12",
		CPUsUsed:  2,
		CPUsTotal: 8,
		MemoryMiB: 16384,
		Mode:      ModeIdle,
	}
}

func TestTokenStringParseRoundTrip(t *testing.T) {
	tok := sampleToken()
	got, err := ParseToken([]byte(tok.String()))
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if got != tok {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, tok)
	}
}

func TestTokenStringParseRoundTripWithDomain(t *testing.T) {
	tok := sampleToken()
	tok.DomainName = "corp.example.com"
	tok.FQDN = "buildbox7.corp.example.com"
	got, err := ParseToken([]byte(tok.String()))
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if got != tok {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, tok)
	}
}

func TestAnnounceWritesTokenFileByIPv4(t *testing.T) {
	dir := t.TempDir()
	b := New(dir, sampleToken())
	if err := b.Announce(); err != nil {
		t.Fatalf("Announce: %v", err)
	}
	path := filepath.Join(dir, "10.0.0.12")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected token file at %s: %v", path, err)
	}
	parsed, err := ParseToken(data)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if parsed.HostName != "buildbox7" {
		t.Errorf("HostName = %q, want buildbox7", parsed.HostName)
	}
}

func TestAnnounceFallsBackToHostNameForLoopbackIP(t *testing.T) {
	dir := t.TempDir()
	tok := sampleToken()
	tok.IPv4 = "127.0.0.1"
	b := New(dir, tok)
	if err := b.Announce(); err != nil {
		t.Fatalf("Announce: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "buildbox7")); err != nil {
		t.Errorf("expected token filed keyed by hostname for loopback IP: %v", err)
	}
}

func TestWithdrawRemovesTokenFile(t *testing.T) {
	dir := t.TempDir()
	b := New(dir, sampleToken())
	if err := b.Announce(); err != nil {
		t.Fatalf("Announce: %v", err)
	}
	if err := b.Withdraw(); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "10.0.0.12")); !os.IsNotExist(err) {
		t.Error("expected token file to be gone after Withdraw")
	}
	// Withdrawing again (no file present) must not error.
	if err := b.Withdraw(); err != nil {
		t.Errorf("second Withdraw: %v", err)
	}
}

func TestSweepRemovesOnlyStaleTokens(t *testing.T) {
	dir := t.TempDir()
	fresh := New(dir, sampleToken())
	if err := fresh.Announce(); err != nil {
		t.Fatalf("Announce fresh: %v", err)
	}

	staleTok := sampleToken()
	staleTok.IPv4 = "10.0.0.99"
	stale := New(dir, staleTok)
	if err := stale.Announce(); err != nil {
		t.Fatalf("Announce stale: %v", err)
	}
	old := time.Now().Add(-StaleAge - time.Hour)
	if err := os.Chtimes(filepath.Join(dir, "10.0.0.99"), old, old); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	removed, err := Sweep(dir)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 1 {
		t.Errorf("Sweep removed %d, want 1", removed)
	}
	if _, err := os.Stat(filepath.Join(dir, "10.0.0.12")); err != nil {
		t.Error("fresh token should survive Sweep")
	}
}

func TestListReturnsAllAnnouncedTokens(t *testing.T) {
	dir := t.TempDir()
	a := New(dir, sampleToken())
	if err := a.Announce(); err != nil {
		t.Fatalf("Announce a: %v", err)
	}
	tok2 := sampleToken()
	tok2.IPv4 = "10.0.0.13"
	tok2.HostName = "buildbox8"
	b := New(dir, tok2)
	if err := b.Announce(); err != nil {
		t.Fatalf("Announce b: %v", err)
	}

	toks, err := List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(toks) != 2 {
		t.Fatalf("List returned %d tokens, want 2", len(toks))
	}
}

func TestRefreshTouchesMtimeWithoutRewriting(t *testing.T) {
	dir := t.TempDir()
	b := New(dir, sampleToken())
	if err := b.Announce(); err != nil {
		t.Fatalf("Announce: %v", err)
	}
	before, err := os.Stat(b.filePath)
	if err != nil {
		t.Fatalf("Stat before Refresh: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if err := b.Refresh(sampleToken()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	after, err := os.Stat(b.filePath)
	if err != nil {
		t.Fatalf("Stat after Refresh: %v", err)
	}
	if !after.ModTime().After(before.ModTime()) {
		t.Errorf("Refresh with an unchanged token did not advance mtime: before=%v after=%v", before.ModTime(), after.ModTime())
	}
	if after.Size() != before.Size() {
		t.Errorf("Refresh with an unchanged token rewrote the file instead of touching mtime: before size=%d after size=%d", before.Size(), after.Size())
	}
}

func TestRetryChtimesSucceedsOnExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	mtime := time.Now().Add(-time.Hour).Truncate(time.Second)
	if err := retryChtimes(path, mtime, mtimeRetryTimeout); err != nil {
		t.Fatalf("retryChtimes: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !info.ModTime().Equal(mtime) {
		t.Errorf("mtime = %v, want %v", info.ModTime(), mtime)
	}
}

func TestRetryChtimesFailsForMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "does-not-exist")
	if err := retryChtimes(path, time.Now(), 30*time.Millisecond); err == nil {
		t.Fatal("retryChtimes on a missing file should return an error")
	}
}
