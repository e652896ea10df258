// Package ngdb implements the versioned binary graph database: a
// content-hash-integrity-checked file recording used build-
// description input files, the environment block, imported-env-var
// hashes, file-exists probes, and the node arena with its dependency
// lists. Node-type payload encoding is delegated to an optional
// PayloadCodec a Builder may implement; graph structure (name, type,
// state-independent fields, dependency edges) is always recorded here.
package ngdb

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	"github.com/nodegraph/nbuild"
	"github.com/nodegraph/nbuild/internal/hashing"
	"github.com/nodegraph/nbuild/internal/ngerr"
	"github.com/orcaman/writerseeker"
	"golang.org/x/xerrors"
)

// Magic is the fixed 3-byte database header magic.
const Magic = "NGD"

// Version is the current on-disk format version. Bumping it makes every
// existing database MissingOrIncompatible on next load.
const Version = uint32(1)

// UsedFile is one build-description input tracked for invalidation.
type UsedFile struct {
	Name  string
	Mtime uint64
	Hash  uint64
}

// ImportedEnvVar is one explicitly-imported environment variable's
// recorded value hash. Hash == 0 means "was absent and
// absence is acceptable".
type ImportedEnvVar struct {
	Name string
	Hash uint32
}

// FileExistsProbe records whether a path existed at parse time.
type FileExistsProbe struct {
	Name   string
	Exists bool
}

// Database is the full deserialized contents of an .ngdb file, minus the
// reconstructed Graph (callers rebuild the graph themselves with
// Database.Nodes/Dependencies via graph.FromDatabase, since only the caller knows
// which Builder to attach to each NodeType).
type Database struct {
	OriginalPath string
	UsedFiles    []UsedFile
	Env          []byte // double-null-terminated environment block
	LibVar       string
	ImportedEnv  []ImportedEnvVar
	LibVarHash   uint32
	Probes       []FileExistsProbe

	Nodes         []NodeRecord
	Dependencies  [][]DepRecord // parallel to Nodes: one entry per node, File nodes included
}

// NodeRecord is one node's graph-structural fields, independent of its
// Builder payload.
type NodeRecord struct {
	Name         string
	Type         nbuild.NodeType
	Stamp        uint64
	ControlFlags uint32
	StatFlags    uint32
	PreBuildDeps []DepRecord
	StaticDeps   []DepRecord
	DynamicDeps  []DepRecord
	Payload      []byte // optional, from PayloadCodec.EncodePayload
}

// DepRecord is one serialized dependency edge: the target's node index
// (stable within this database), the last-observed stamp, and weak flag.
type DepRecord struct {
	TargetIndex int32
	Stamp       uint64
	Weak        bool
}

// PayloadCodec is optionally implemented by a Builder to persist its
// variant-specific fields (e.g. CopyFileBuilder.Dest) across a save/load
// cycle. A Builder that doesn't implement it is restored with zero-value
// payload fields and relies on PostLoad/re-Initialize to fix itself up.
type PayloadCodec interface {
	EncodePayload() ([]byte, error)
	DecodePayload([]byte) error
}

// LoadResult classifies Load's outcome.
type LoadResult int

const (
	LoadOK LoadResult = iota
	LoadOkNeedsReparse
	LoadMissingOrIncompatible
	LoadError
	LoadErrorMoved
)

func putLenString(buf *bytes.Buffer, s string) {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(s)))
	buf.Write(n[:])
	buf.WriteString(s)
}

func readLenString(r *bufio.Reader) (string, error) {
	var n [4]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return "", err
	}
	length := binary.LittleEndian.Uint32(n[:])
	b := make([]byte, length)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// Save encodes db into a complete, content-hash-integrity-checked .ngdb
// byte stream. It writes the header (content_hash zeroed) and the body
// into writerseeker's in-memory buffer, reads the whole stream back out,
// and patches the body's hash into the header bytes of that copy.
func Save(db *Database) ([]byte, error) {
	ws := &writerseeker.WriterSeeker{}

	// Reserve header space: magic(3) + version(4) + content_hash(8).
	header := make([]byte, 3+4+8)
	copy(header, Magic)
	binary.LittleEndian.PutUint32(header[3:7], Version)
	if _, err := ws.Write(header); err != nil {
		return nil, err
	}

	var body bytes.Buffer
	encodeBody(&body, db)

	if _, err := ws.Write(body.Bytes()); err != nil {
		return nil, err
	}

	contentHash := hashing.Hash64(body.Bytes())

	full, err := io.ReadAll(ws.Reader())
	if err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint64(full[7:15], contentHash)
	return full, nil
}

func encodeBody(buf *bytes.Buffer, db *Database) {
	putLenString(buf, db.OriginalPath)

	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(len(db.UsedFiles)))
	buf.Write(u32[:])
	for _, f := range db.UsedFiles {
		putLenString(buf, f.Name)
		var b8 [8]byte
		binary.LittleEndian.PutUint64(b8[:], f.Mtime)
		buf.Write(b8[:])
		binary.LittleEndian.PutUint64(b8[:], f.Hash)
		buf.Write(b8[:])
	}

	binary.LittleEndian.PutUint32(u32[:], uint32(len(db.Env)))
	buf.Write(u32[:])
	buf.Write(db.Env)
	putLenString(buf, db.LibVar)

	binary.LittleEndian.PutUint32(u32[:], uint32(len(db.ImportedEnv)))
	buf.Write(u32[:])
	for _, e := range db.ImportedEnv {
		putLenString(buf, e.Name)
		binary.LittleEndian.PutUint32(u32[:], e.Hash)
		buf.Write(u32[:])
	}

	binary.LittleEndian.PutUint32(u32[:], db.LibVarHash)
	buf.Write(u32[:])

	binary.LittleEndian.PutUint32(u32[:], uint32(len(db.Probes)))
	buf.Write(u32[:])
	for _, p := range db.Probes {
		putLenString(buf, p.Name)
		if p.Exists {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	}

	binary.LittleEndian.PutUint32(u32[:], uint32(len(db.Nodes)))
	buf.Write(u32[:])
	for _, n := range db.Nodes {
		encodeNode(buf, n)
	}
	for _, deps := range db.Dependencies {
		binary.LittleEndian.PutUint32(u32[:], uint32(len(deps)))
		buf.Write(u32[:])
		for _, d := range deps {
			encodeDep(buf, d)
		}
	}
}

func encodeDep(buf *bytes.Buffer, d DepRecord) {
	var b4 [4]byte
	var b8 [8]byte
	binary.LittleEndian.PutUint32(b4[:], uint32(d.TargetIndex))
	buf.Write(b4[:])
	binary.LittleEndian.PutUint64(b8[:], d.Stamp)
	buf.Write(b8[:])
	if d.Weak {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func decodeDep(r *bufio.Reader) (DepRecord, error) {
	var b4 [4]byte
	var b8 [8]byte
	if _, err := io.ReadFull(r, b4[:]); err != nil {
		return DepRecord{}, err
	}
	idx := int32(binary.LittleEndian.Uint32(b4[:]))
	if _, err := io.ReadFull(r, b8[:]); err != nil {
		return DepRecord{}, err
	}
	stamp := binary.LittleEndian.Uint64(b8[:])
	weakByte, err := r.ReadByte()
	if err != nil {
		return DepRecord{}, err
	}
	return DepRecord{TargetIndex: idx, Stamp: stamp, Weak: weakByte != 0}, nil
}

func encodeDepList(buf *bytes.Buffer, deps []DepRecord) {
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(len(deps)))
	buf.Write(u32[:])
	for _, d := range deps {
		encodeDep(buf, d)
	}
}

func decodeDepList(r *bufio.Reader) ([]DepRecord, error) {
	var u32 [4]byte
	if _, err := io.ReadFull(r, u32[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(u32[:])
	out := make([]DepRecord, n)
	for i := range out {
		d, err := decodeDep(r)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

func encodeNode(buf *bytes.Buffer, n NodeRecord) {
	putLenString(buf, n.Name)
	var u32 [4]byte
	var u64 [8]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(n.Type))
	buf.Write(u32[:])
	binary.LittleEndian.PutUint64(u64[:], n.Stamp)
	buf.Write(u64[:])
	binary.LittleEndian.PutUint32(u32[:], n.ControlFlags)
	buf.Write(u32[:])
	binary.LittleEndian.PutUint32(u32[:], n.StatFlags)
	buf.Write(u32[:])
	encodeDepList(buf, n.PreBuildDeps)
	encodeDepList(buf, n.StaticDeps)
	encodeDepList(buf, n.DynamicDeps)
	binary.LittleEndian.PutUint32(u32[:], uint32(len(n.Payload)))
	buf.Write(u32[:])
	buf.Write(n.Payload)
}

func decodeNode(r *bufio.Reader) (NodeRecord, error) {
	var rec NodeRecord
	name, err := readLenString(r)
	if err != nil {
		return rec, err
	}
	rec.Name = name

	var u32 [4]byte
	var u64 [8]byte
	if _, err := io.ReadFull(r, u32[:]); err != nil {
		return rec, err
	}
	rec.Type = nbuild.NodeType(binary.LittleEndian.Uint32(u32[:]))
	if _, err := io.ReadFull(r, u64[:]); err != nil {
		return rec, err
	}
	rec.Stamp = binary.LittleEndian.Uint64(u64[:])
	if _, err := io.ReadFull(r, u32[:]); err != nil {
		return rec, err
	}
	rec.ControlFlags = binary.LittleEndian.Uint32(u32[:])
	if _, err := io.ReadFull(r, u32[:]); err != nil {
		return rec, err
	}
	rec.StatFlags = binary.LittleEndian.Uint32(u32[:])

	if rec.PreBuildDeps, err = decodeDepList(r); err != nil {
		return rec, err
	}
	if rec.StaticDeps, err = decodeDepList(r); err != nil {
		return rec, err
	}
	if rec.DynamicDeps, err = decodeDepList(r); err != nil {
		return rec, err
	}

	if _, err := io.ReadFull(r, u32[:]); err != nil {
		return rec, err
	}
	plen := binary.LittleEndian.Uint32(u32[:])
	payload := make([]byte, plen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return rec, err
	}
	rec.Payload = payload
	return rec, nil
}

// Load parses raw bytes into a Database, verifying the content hash first.
// It does not compare against any previously-loaded state; callers use
// LoadFile to get the MissingOrIncompatible/Moved/Corrupt classification.
func Load(raw []byte) (*Database, error) {
	if len(raw) < 15 || string(raw[:3]) != Magic {
		return nil, xerrors.Errorf("ngdb: bad header: %w", ngerr.ErrDBIncompatible)
	}
	version := binary.LittleEndian.Uint32(raw[3:7])
	if version != Version {
		return nil, xerrors.Errorf("ngdb: version %d != %d: %w", version, Version, ngerr.ErrDBIncompatible)
	}
	wantHash := binary.LittleEndian.Uint64(raw[7:15])
	body := raw[15:]
	if hashing.Hash64(body) != wantHash {
		return nil, xerrors.Errorf("ngdb: %w", ngerr.ErrDBCorrupt)
	}

	r := bufio.NewReader(bytes.NewReader(body))
	db := &Database{}

	var err error
	if db.OriginalPath, err = readLenString(r); err != nil {
		return nil, wrapIO(err)
	}

	var u32 [4]byte
	if _, err := io.ReadFull(r, u32[:]); err != nil {
		return nil, wrapIO(err)
	}
	nUsed := binary.LittleEndian.Uint32(u32[:])
	db.UsedFiles = make([]UsedFile, nUsed)
	for i := range db.UsedFiles {
		name, err := readLenString(r)
		if err != nil {
			return nil, wrapIO(err)
		}
		var b8 [8]byte
		if _, err := io.ReadFull(r, b8[:]); err != nil {
			return nil, wrapIO(err)
		}
		mtime := binary.LittleEndian.Uint64(b8[:])
		if _, err := io.ReadFull(r, b8[:]); err != nil {
			return nil, wrapIO(err)
		}
		hash := binary.LittleEndian.Uint64(b8[:])
		db.UsedFiles[i] = UsedFile{Name: name, Mtime: mtime, Hash: hash}
	}

	if _, err := io.ReadFull(r, u32[:]); err != nil {
		return nil, wrapIO(err)
	}
	envLen := binary.LittleEndian.Uint32(u32[:])
	db.Env = make([]byte, envLen)
	if _, err := io.ReadFull(r, db.Env); err != nil {
		return nil, wrapIO(err)
	}
	if db.LibVar, err = readLenString(r); err != nil {
		return nil, wrapIO(err)
	}

	if _, err := io.ReadFull(r, u32[:]); err != nil {
		return nil, wrapIO(err)
	}
	nImported := binary.LittleEndian.Uint32(u32[:])
	db.ImportedEnv = make([]ImportedEnvVar, nImported)
	for i := range db.ImportedEnv {
		name, err := readLenString(r)
		if err != nil {
			return nil, wrapIO(err)
		}
		if _, err := io.ReadFull(r, u32[:]); err != nil {
			return nil, wrapIO(err)
		}
		db.ImportedEnv[i] = ImportedEnvVar{Name: name, Hash: binary.LittleEndian.Uint32(u32[:])}
	}

	if _, err := io.ReadFull(r, u32[:]); err != nil {
		return nil, wrapIO(err)
	}
	db.LibVarHash = binary.LittleEndian.Uint32(u32[:])

	if _, err := io.ReadFull(r, u32[:]); err != nil {
		return nil, wrapIO(err)
	}
	nProbes := binary.LittleEndian.Uint32(u32[:])
	db.Probes = make([]FileExistsProbe, nProbes)
	for i := range db.Probes {
		name, err := readLenString(r)
		if err != nil {
			return nil, wrapIO(err)
		}
		existsByte, err := r.ReadByte()
		if err != nil {
			return nil, wrapIO(err)
		}
		db.Probes[i] = FileExistsProbe{Name: name, Exists: existsByte != 0}
	}

	if _, err := io.ReadFull(r, u32[:]); err != nil {
		return nil, wrapIO(err)
	}
	nNodes := binary.LittleEndian.Uint32(u32[:])
	db.Nodes = make([]NodeRecord, nNodes)
	for i := range db.Nodes {
		rec, err := decodeNode(r)
		if err != nil {
			return nil, wrapIO(err)
		}
		db.Nodes[i] = rec
	}

	db.Dependencies = make([][]DepRecord, nNodes)
	for i := range db.Dependencies {
		deps, err := decodeDepList(r)
		if err != nil {
			return nil, wrapIO(err)
		}
		db.Dependencies[i] = deps
	}

	return db, nil
}

func wrapIO(err error) error {
	return xerrors.Errorf("ngdb: short/malformed read: %w: %v", ngerr.ErrDBCorrupt, err)
}

// ForceReparse reports whether any recorded UsedFile, imported-env-var
// hash, LIB-equivalent hash, or file-exists probe differs from the current
// environment. A non-nil error from statFn (typically "file missing") also
// forces a reparse rather than aborting the load.
func (db *Database) ForceReparse(statFn func(path string) (mtime uint64, hash uint64, err error), probeFn func(path string) bool, importedEnv map[string]uint32, libVarHash uint32) bool {
	for _, f := range db.UsedFiles {
		mtime, hash, err := statFn(f.Name)
		if err != nil || mtime != f.Mtime || hash != f.Hash {
			return true
		}
	}
	for _, e := range db.ImportedEnv {
		if importedEnv[e.Name] != e.Hash {
			return true
		}
	}
	if libVarHash != db.LibVarHash {
		return true
	}
	for _, p := range db.Probes {
		if probeFn(p.Name) != p.Exists {
			return true
		}
	}
	return false
}
