// Package npy reads and writes little-endian, self-describing float32
// matrices compatible with NumPy's .npy format (spec §6.1). No third-party
// library in the reference corpus implements this format; see DESIGN.md for
// why this package is hand-rolled against the standard library only.
package npy

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	magic       = "\x93NUMPY"
	majorVer    = 1
	minorVer    = 0
	headerAlign = 64
)

// Matrix is a dense row-major float32 matrix of shape (Rows, Cols).
type Matrix struct {
	Rows int
	Cols int
	Data []float32
}

// NewMatrix allocates a zeroed matrix of the given shape.
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{Rows: rows, Cols: cols, Data: make([]float32, rows*cols)}
}

// Row returns a slice view of row i. Mutating it mutates the matrix.
func (m *Matrix) Row(i int) []float32 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// Read parses a .npy file into a Matrix. Only 2D float32 '<f4' arrays are
// supported, matching what this package ever writes.
func Read(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadFrom(bufio.NewReader(f))
}

// ReadFrom parses a .npy stream into a Matrix.
func ReadFrom(r io.Reader) (*Matrix, error) {
	var magicBuf [6]byte
	if _, err := io.ReadFull(r, magicBuf[:]); err != nil {
		return nil, fmt.Errorf("npy: reading magic: %w", err)
	}
	if string(magicBuf[:]) != magic {
		return nil, fmt.Errorf("npy: bad magic %q", magicBuf)
	}

	var ver [2]byte
	if _, err := io.ReadFull(r, ver[:]); err != nil {
		return nil, fmt.Errorf("npy: reading version: %w", err)
	}

	var headerLen int
	switch ver[0] {
	case 1:
		var hl16 uint16
		if err := binary.Read(r, binary.LittleEndian, &hl16); err != nil {
			return nil, fmt.Errorf("npy: reading header length: %w", err)
		}
		headerLen = int(hl16)
	default:
		var hl32 uint32
		if err := binary.Read(r, binary.LittleEndian, &hl32); err != nil {
			return nil, fmt.Errorf("npy: reading header length: %w", err)
		}
		headerLen = int(hl32)
	}

	headerBuf := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, fmt.Errorf("npy: reading header: %w", err)
	}

	shape, dtype, err := parseHeader(string(headerBuf))
	if err != nil {
		return nil, err
	}
	if dtype != "<f4" {
		return nil, fmt.Errorf("npy: unsupported dtype %q (only <f4)", dtype)
	}
	if len(shape) != 2 {
		return nil, fmt.Errorf("npy: unsupported shape %v (only 2D)", shape)
	}

	rows, cols := shape[0], shape[1]
	data := make([]float32, rows*cols)
	buf := make([]byte, 4*len(data))
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("npy: reading data: %w", err)
	}
	for i := range data {
		bits := binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
		data[i] = math.Float32frombits(bits)
	}

	return &Matrix{Rows: rows, Cols: cols, Data: data}, nil
}

// Write atomically writes m to path via a temp file + rename, per spec §5/§6's
// atomicity rule (readers never observe a half-written matrix).
func Write(path string, m *Matrix) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	w := bufio.NewWriter(tmp)
	if err := WriteTo(w, m); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// WriteTo serializes m in .npy format to w.
func WriteTo(w io.Writer, m *Matrix) error {
	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d, %d), }", m.Rows, m.Cols)

	// Pad header so that magic(6) + version(2) + headerLen(2) + header is a
	// multiple of headerAlign, as NumPy itself does.
	preLen := len(magic) + 2 + 2
	total := preLen + len(header) + 1 // +1 for trailing newline
	pad := 0
	if rem := total % headerAlign; rem != 0 {
		pad = headerAlign - rem
	}
	header = header + strings.Repeat(" ", pad) + "\n"

	if _, err := w.Write([]byte(magic)); err != nil {
		return err
	}
	if _, err := w.Write([]byte{majorVer, minorVer}); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(header))); err != nil {
		return err
	}
	if _, err := w.Write([]byte(header)); err != nil {
		return err
	}

	buf := make([]byte, 4*len(m.Data))
	for i, v := range m.Data {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(v))
	}
	_, err := w.Write(buf)
	return err
}

// parseHeader extracts shape and dtype from a NumPy dict-literal header
// string, e.g. "{'descr': '<f4', 'fortran_order': False, 'shape': (3, 512), }".
func parseHeader(h string) (shape []int, dtype string, err error) {
	if idx := strings.Index(h, "'descr':"); idx >= 0 {
		rest := h[idx+len("'descr':"):]
		rest = strings.TrimLeft(rest, " ")
		if !strings.HasPrefix(rest, "'") {
			return nil, "", fmt.Errorf("npy: malformed descr in header")
		}
		end := strings.Index(rest[1:], "'")
		if end < 0 {
			return nil, "", fmt.Errorf("npy: malformed descr in header")
		}
		dtype = rest[1 : 1+end]
	} else {
		return nil, "", fmt.Errorf("npy: missing descr in header")
	}

	openParen := strings.Index(h, "'shape':")
	if openParen < 0 {
		return nil, "", fmt.Errorf("npy: missing shape in header")
	}
	rest := h[openParen:]
	lp := strings.Index(rest, "(")
	rp := strings.Index(rest, ")")
	if lp < 0 || rp < 0 || rp < lp {
		return nil, "", fmt.Errorf("npy: malformed shape in header")
	}
	inner := rest[lp+1 : rp]
	for _, part := range strings.Split(inner, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, convErr := strconv.Atoi(part)
		if convErr != nil {
			return nil, "", fmt.Errorf("npy: bad shape element %q: %w", part, convErr)
		}
		shape = append(shape, n)
	}
	return shape, dtype, nil
}

