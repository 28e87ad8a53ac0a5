// Package mcpl reads the header of MCPL particle files, plain or gzipped.
// Only the header is decoded; particle records are never read.
package mcpl

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/klauspost/pgzip"
)

// ErrNotMCPL is returned when a file does not start with the MCPL magic.
var ErrNotMCPL = errors.New("not an MCPL file")

const (
	magic = "MCPL"

	// maxStringLen bounds header strings so a corrupt length cannot trigger
	// a huge allocation.
	maxStringLen = 1 << 20

	// maxComments bounds the comment count for the same reason.
	maxComments = 1 << 16
)

var gzipMagic = []byte{0x1f, 0x8b}

// Header is the fixed part of an MCPL file header.
type Header struct {
	Version          int
	LittleEndian     bool
	Gzipped          bool
	NParticles       uint64
	NBlobs           uint32
	UserFlags        bool
	Polarisation     bool
	SinglePrecision  bool
	UniversalPDGCode int32
	ParticleSize     uint32
	UniversalWeight  float64
	SourceName       string
	Comments         []string
}

// ReadHeaderFile opens path and reads its header.
func ReadHeaderFile(path string) (*Header, error) {
	f, err := os.Open(path) //nolint:gosec // paths come from dump records
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h, err := ReadHeader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return h, nil
}

// ReadHeader reads an MCPL header from r, transparently decompressing gzip
// input.
func ReadHeader(r io.Reader) (*Header, error) {
	br := bufio.NewReader(r)

	gzipped := false

	if peek, err := br.Peek(2); err == nil && peek[0] == gzipMagic[0] && peek[1] == gzipMagic[1] {
		gz, err := pgzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		defer func() { _ = gz.Close() }()

		br = bufio.NewReader(gz)
		gzipped = true
	}

	h, err := decodeHeader(br)
	if err != nil {
		return nil, err
	}

	h.Gzipped = gzipped

	return h, nil
}

// headerReader accumulates the first read error so decodeHeader can read
// field after field and check once.
type headerReader struct {
	r     io.Reader
	order binary.ByteOrder
	err   error
}

func (hr *headerReader) read(v any) {
	if hr.err != nil {
		return
	}

	hr.err = binary.Read(hr.r, hr.order, v)
}

func (hr *headerReader) readUint32() uint32 {
	var v uint32

	hr.read(&v)

	return v
}

func (hr *headerReader) readString() string {
	n := hr.readUint32()
	if hr.err != nil {
		return ""
	}

	if n > maxStringLen {
		hr.err = fmt.Errorf("header string of %d bytes exceeds limit", n)

		return ""
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(hr.r, buf); err != nil {
		hr.err = err

		return ""
	}

	return string(buf)
}

func decodeHeader(r io.Reader) (*Header, error) {
	var start [8]byte
	if _, err := io.ReadFull(r, start[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotMCPL, err)
	}

	if string(start[:4]) != magic {
		return nil, ErrNotMCPL
	}

	version, err := strconv.Atoi(string(start[4:7]))
	if err != nil {
		return nil, fmt.Errorf("%w: bad version %q", ErrNotMCPL, start[4:7])
	}

	h := &Header{Version: version}

	hr := &headerReader{r: r}

	switch start[7] {
	case 'L':
		h.LittleEndian = true
		hr.order = binary.LittleEndian
	case 'B':
		hr.order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: bad endianness marker %q", ErrNotMCPL, start[7])
	}

	hr.read(&h.NParticles)
	nComments := hr.readUint32()
	h.NBlobs = hr.readUint32()
	h.UserFlags = hr.readUint32() != 0
	h.Polarisation = hr.readUint32() != 0
	h.SinglePrecision = hr.readUint32() != 0
	hr.read(&h.UniversalPDGCode)
	h.ParticleSize = hr.readUint32()

	if hr.readUint32() != 0 {
		var bits uint64

		hr.read(&bits)
		h.UniversalWeight = math.Float64frombits(bits)
	}

	h.SourceName = hr.readString()

	if hr.err == nil && nComments > maxComments {
		hr.err = fmt.Errorf("header declares %d comments, limit is %d", nComments, maxComments)
	}

	if hr.err == nil && nComments > 0 {
		h.Comments = make([]string, 0, min(nComments, 64))
		for i := uint32(0); i < nComments && hr.err == nil; i++ {
			h.Comments = append(h.Comments, hr.readString())
		}
	}

	if hr.err != nil {
		return nil, fmt.Errorf("reading header: %w", hr.err)
	}

	return h, nil
}
