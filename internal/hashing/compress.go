package hashing

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/xerrors"
)

// headerSize is the fixed 12-byte header every Compress output begins with:
// a flag saying whether the payload is actually compressed, the
// uncompressed size, and the compressed size. A negative level picks the
// fast (s2) codec family, a positive level picks the high-ratio (zstd)
// family, and level 0 stores the data uncompressed but keeps the same
// header shape so callers never need to branch on how a blob was written.
const headerSize = 12

const (
	flagStored     uint32 = 0
	flagCompressed uint32 = 1
)

// Compress encodes data with the codec family selected by level: level < 0
// uses s2 (fast, lower ratio), level > 0 uses zstd (slower, higher ratio),
// and level == 0 stores data unmodified. The result always begins with a
// 12-byte header describing itself, so Decompress never needs to be told
// which codec produced it.
func Compress(data []byte, level int) ([]byte, error) {
	var body []byte
	flag := flagCompressed
	switch {
	case level == 0:
		flag = flagStored
		body = data
	case level < 0:
		b, err := s2EncodeLevel(data, level)
		if err != nil {
			return nil, xerrors.Errorf("hashing: s2 encode: %w", err)
		}
		body = b
	default:
		b, err := zstdEncodeLevel(data, level)
		if err != nil {
			return nil, xerrors.Errorf("hashing: zstd encode: %w", err)
		}
		body = b
	}

	out := make([]byte, headerSize+len(body))
	binary.LittleEndian.PutUint32(out[0:4], flag)
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[8:12], uint32(len(body)))
	copy(out[headerSize:], body)
	return out, nil
}

// Decompress reverses Compress. It validates the header before trusting the
// declared sizes, so a truncated or foreign blob fails cleanly instead of
// allocating an attacker- or corruption-controlled buffer size.
func Decompress(blob []byte) ([]byte, error) {
	if !IsValidData(blob) {
		return nil, xerrors.New("hashing: invalid compressed data")
	}
	flag := binary.LittleEndian.Uint32(blob[0:4])
	uncompressedSize := binary.LittleEndian.Uint32(blob[4:8])
	compressedSize := binary.LittleEndian.Uint32(blob[8:12])
	body := blob[headerSize : headerSize+int(compressedSize)]

	if flag == flagStored {
		out := make([]byte, len(body))
		copy(out, body)
		return out, nil
	}

	// zstd and s2 frames are self-describing; try zstd first since it is the
	// codec used for anything we expect to be large enough that a wrong
	// guess would be expensive to detect late.
	if out, err := zstdDecode(body, int(uncompressedSize)); err == nil {
		return out, nil
	}
	out, err := s2Decode(body)
	if err != nil {
		return nil, xerrors.Errorf("hashing: decompress: %w", err)
	}
	return out, nil
}

// IsValidData reports whether blob has a well-formed Compress header: large
// enough to contain one, and with a declared compressed size that actually
// fits within the remaining bytes.
func IsValidData(blob []byte) bool {
	if len(blob) < headerSize {
		return false
	}
	flag := binary.LittleEndian.Uint32(blob[0:4])
	if flag != flagStored && flag != flagCompressed {
		return false
	}
	compressedSize := binary.LittleEndian.Uint32(blob[8:12])
	return len(blob)-headerSize >= int(compressedSize)
}

func s2EncodeLevel(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	opts := []s2.WriterOption{s2.WriterBetterCompression()}
	if level <= -2 {
		opts = []s2.WriterOption{s2.WriterUncompressed()}
	}
	w := s2.NewWriter(&buf, opts...)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func s2Decode(data []byte) ([]byte, error) {
	r := s2.NewReader(bytes.NewReader(data))
	return io.ReadAll(r)
}

func zstdEncodeLevel(data []byte, level int) ([]byte, error) {
	zlevel := zstd.SpeedDefault
	switch {
	case level >= 9:
		zlevel = zstd.SpeedBestCompression
	case level >= 5:
		zlevel = zstd.SpeedBetterCompression
	case level >= 1:
		zlevel = zstd.SpeedFastest
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zlevel))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func zstdDecode(data []byte, hint int) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, make([]byte, 0, hint))
}
