// Package brokerage implements worker-availability signaling via a shared
// directory of small text token files. It is touched out-of-band by
// worker processes; the orchestrator never reads it directly.
package brokerage

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio"
	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"
)

// Refresh/sweep cadences: four timers covering availability refresh,
// address re-resolution, stale-token sweep interval, and stale-token age.
const (
	RefreshInterval  = 10 * time.Second
	AddressReresolve = 5 * time.Minute
	SweepInterval    = 12 * time.Hour
	StaleAge         = 24 * time.Hour
)

// mtimeRetryTimeout bounds retryChtimes: a transient sharing-violation-style
// failure touching the token file's mtime is retried for this long before
// the caller gives up and falls back to rewriting the file from scratch.
const mtimeRetryTimeout = 200 * time.Millisecond

// mtimeRetryBackoff is the pause between retryChtimes attempts.
const mtimeRetryBackoff = 10 * time.Millisecond

// Mode mirrors the worker CLI's -mode flag.
type Mode string

const (
	ModeDisabled     Mode = "disabled"
	ModeIdle         Mode = "idle"
	ModeDedicated    Mode = "dedicated"
	ModeProportional Mode = "proportional"
)

// Token is the full field set of a brokerage token file: version, user,
// host, optional domain name/FQDN, IPv4 address, CPU policy, memory
// threshold, and mode.
type Token struct {
	Version    string
	User       string
	HostName   string
	DomainName string // empty if not resolved
	FQDN       string // empty unless DomainName is set
	IPv4       string
	CPUsUsed   int
	CPUsTotal  int
	MemoryMiB  int
	Mode       Mode
}

// String serializes t as line-oriented "Key: value\n" text.
func (t Token) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Version: %s\n", t.Version)
	fmt.Fprintf(&b, "User: %s\n", t.User)
	fmt.Fprintf(&b, "Host Name: %s\n", t.HostName)
	if t.DomainName != "" {
		fmt.Fprintf(&b, "Domain Name: %s\n", t.DomainName)
		fmt.Fprintf(&b, "FQDN: %s\n", t.FQDN)
	}
	fmt.Fprintf(&b, "IPv4 Address: %s\n", t.IPv4)
	fmt.Fprintf(&b, "CPUs: %d/%d\n", t.CPUsUsed, t.CPUsTotal)
	fmt.Fprintf(&b, "Memory: %d\n", t.MemoryMiB)
	fmt.Fprintf(&b, "Mode: %s\n", t.Mode)
	return b.String()
}

// ParseToken parses the "Key: value\n" format String produces.
func ParseToken(data []byte) (Token, error) {
	var t Token
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	for sc.Scan() {
		line := sc.Text()
		key, val, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		switch key {
		case "Version":
			t.Version = val
		case "User":
			t.User = val
		case "Host Name":
			t.HostName = val
		case "Domain Name":
			t.DomainName = val
		case "FQDN":
			t.FQDN = val
		case "IPv4 Address":
			t.IPv4 = val
		case "CPUs":
			fmt.Sscanf(val, "%d/%d", &t.CPUsUsed, &t.CPUsTotal)
		case "Memory":
			fmt.Sscanf(val, "%d", &t.MemoryMiB)
		case "Mode":
			t.Mode = Mode(val)
		}
	}
	return t, sc.Err()
}

// Broker manages one worker's availability token in a shared directory.
type Broker struct {
	dir      string
	token    Token
	filePath string

	lastWrite     time.Time
	lastResolve   time.Time
}

// New returns a Broker that will announce in dir once Announce is called.
// filePath is computed from token.IPv4, falling back to token.HostName if
// the IP cannot be resolved or resolves to loopback.
func New(dir string, token Token) *Broker {
	b := &Broker{dir: dir, token: token}
	b.filePath = b.resolveFilePath()
	return b
}

func (b *Broker) resolveFilePath() string {
	name := b.token.IPv4
	if name == "" || isLoopback(name) {
		name = b.token.HostName
	}
	return filepath.Join(b.dir, name)
}

func isLoopback(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}

// Announce writes (or rewrites) the token file. The caller is expected to
// call this once at startup and then Refresh on RefreshInterval.
func (b *Broker) Announce() error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return xerrors.Errorf("brokerage: mkdir %s: %w", b.dir, err)
	}
	if err := renameio.WriteFile(b.filePath, []byte(b.token.String()), 0o644); err != nil {
		return xerrors.Errorf("brokerage: announce %s: %w", b.filePath, err)
	}
	b.lastWrite = time.Now()
	return nil
}

// Refresh updates the token file's mtime when settings are unchanged
// (cadence ≤10s), or rewrites it entirely when token differs from the
// last-announced value.
func (b *Broker) Refresh(token Token) error {
	changed := token != b.token
	b.token = token

	newPath := b.resolveFilePath()
	if newPath != b.filePath {
		_ = os.Remove(b.filePath)
		b.filePath = newPath
		changed = true
	}

	if changed {
		return b.Announce()
	}
	now := time.Now()
	if err := retryChtimes(b.filePath, now, mtimeRetryTimeout); err != nil {
		// Touching mtime failed even after the bounded retry (e.g. the
		// file was swept); rewrite from scratch rather than erroring out
		// of the refresh loop.
		return b.Announce()
	}
	b.lastWrite = now
	return nil
}

// retryChtimes sets path's mtime, retrying transient sharing-violation-style
// errors for up to timeout before surfacing the last error. On each retry it
// also tries re-opening the file and setting its time via the open
// descriptor (unix.Futimes), which can succeed when a path-based Chtimes
// keeps losing a race with whatever process last wrote the file.
func retryChtimes(path string, mtime time.Time, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		lastErr = os.Chtimes(path, mtime, mtime)
		if lastErr == nil {
			return nil
		}
		if !time.Now().Before(deadline) {
			return lastErr
		}

		if fd, openErr := unix.Open(path, unix.O_RDWR, 0); openErr == nil {
			ts := unix.NsecToTimeval(mtime.UnixNano())
			lastErr = unix.Futimes(fd, []unix.Timeval{ts, ts})
			unix.Close(fd)
			if lastErr == nil {
				return nil
			}
		}

		time.Sleep(mtimeRetryBackoff)
	}
}

// Withdraw deletes the token file.
func (b *Broker) Withdraw() error {
	err := os.Remove(b.filePath)
	if err != nil && !os.IsNotExist(err) {
		return xerrors.Errorf("brokerage: withdraw %s: %w", b.filePath, err)
	}
	return nil
}

// Sweep deletes token files in dir whose mtime is older than StaleAge,
// meant to run on SweepInterval.
func Sweep(dir string) (removed int, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-StaleAge)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if os.Remove(filepath.Join(dir, e.Name())) == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// List returns every currently-announced token found in dir, skipping any
// file that fails to parse.
func List(dir string) ([]Token, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []Token
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		tok, err := ParseToken(data)
		if err != nil {
			continue
		}
		out = append(out, tok)
	}
	return out, nil
}
