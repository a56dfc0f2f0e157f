package ndarray

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NPY layout:
//
//	magic(6) | major(1) | minor(1) | hlen(u16 le for v1, u32 le for v2/v3) | header(hlen) | data
//
// header is a Python dict literal with descr, fortran_order and shape,
// padded with spaces and terminated by '\n' so data starts on a 64-byte boundary.
var npyMagic = [...]byte{0x93, 'N', 'U', 'M', 'P', 'Y'}

const npyAlign = 64

type npyHeader struct {
	descr   string
	fortran bool
	shape   []int
}

type dtype struct {
	order binary.ByteOrder
	kind  byte // f, i, u, b
	size  int
}

// DecodeNPY parses a NumPy .npy file of versions 1.0 through 3.0.
func DecodeNPY(b []byte) (*Array, error) {
	if len(b) < len(npyMagic)+2 || !bytes.Equal(b[:len(npyMagic)], npyMagic[:]) {
		return nil, fmt.Errorf("%w: missing magic string", ErrBadHeader)
	}
	off := len(npyMagic)
	major, minor := b[off], b[off+1]
	off += 2

	var hlen int
	switch major {
	case 1:
		if len(b) < off+2 {
			return nil, fmt.Errorf("%w: short header length", ErrBadHeader)
		}
		hlen = int(binary.LittleEndian.Uint16(b[off:]))
		off += 2
	case 2, 3:
		if len(b) < off+4 {
			return nil, fmt.Errorf("%w: short header length", ErrBadHeader)
		}
		hlen = int(binary.LittleEndian.Uint32(b[off:]))
		off += 4
	default:
		return nil, fmt.Errorf("%w: unsupported version %d.%d", ErrBadHeader, major, minor)
	}
	if hlen < 0 || hlen > len(b)-off {
		return nil, fmt.Errorf("%w: header length %d exceeds file", ErrBadHeader, hlen)
	}

	hdr, err := parseNPYHeader(string(b[off : off+hlen]))
	if err != nil {
		return nil, err
	}
	off += hlen

	dt, err := parseDescr(hdr.descr)
	if err != nil {
		return nil, err
	}

	n, err := sizeOf(hdr.shape)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadHeader, err)
	}
	payload := b[off:]
	if n > len(payload)/dt.size {
		return nil, fmt.Errorf("%w: shape %v needs %d elements of %d bytes, have %d bytes", ErrTruncated, hdr.shape, n, dt.size, len(payload))
	}

	data := make([]float64, n)
	for i := range data {
		data[i] = dt.read(payload[i*dt.size:])
	}
	if hdr.fortran && len(hdr.shape) > 1 {
		data = fortranToC(hdr.shape, data)
	}
	return &Array{Shape: hdr.shape, Data: data}, nil
}

// EncodeNPY writes a version 1.0 file with little-endian float32 data.
func EncodeNPY(a *Array) ([]byte, error) {
	dict := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': %s, }", pyTuple(a.Shape))

	major := byte(1)
	prefix := len(npyMagic) + 2 + 2
	if total := prefix + len(dict) + 1; total > math.MaxUint16 {
		major = 2
		prefix = len(npyMagic) + 2 + 4
	}
	pad := npyAlign - (prefix+len(dict)+1)%npyAlign
	if pad == npyAlign {
		pad = 0
	}
	header := dict + strings.Repeat(" ", pad) + "\n"

	var buf bytes.Buffer
	buf.Grow(prefix + len(header) + 4*len(a.Data))
	buf.Write(npyMagic[:])
	buf.WriteByte(major)
	buf.WriteByte(0)

	if major == 1 {
		var u2 [2]byte
		binary.LittleEndian.PutUint16(u2[:], uint16(len(header)))
		buf.Write(u2[:])
	} else {
		var u4 [4]byte
		binary.LittleEndian.PutUint32(u4[:], uint32(len(header)))
		buf.Write(u4[:])
	}
	buf.WriteString(header)

	var u4 [4]byte
	for _, f := range a.Data {
		binary.LittleEndian.PutUint32(u4[:], math.Float32bits(float32(f)))
		buf.Write(u4[:])
	}
	return buf.Bytes(), nil
}

func pyTuple(shape []int) string {
	switch len(shape) {
	case 0:
		return "()"
	case 1:
		return "(" + strconv.Itoa(shape[0]) + ",)"
	}
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = strconv.Itoa(d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func parseDescr(s string) (dtype, error) {
	if len(s) < 3 {
		return dtype{}, fmt.Errorf("%w: %q", ErrUnsupportedDtype, s)
	}
	var dt dtype
	switch s[0] {
	case '<', '|', '=':
		dt.order = binary.LittleEndian
	case '>':
		dt.order = binary.BigEndian
	default:
		return dtype{}, fmt.Errorf("%w: %q", ErrUnsupportedDtype, s)
	}
	size, err := strconv.Atoi(s[2:])
	if err != nil {
		return dtype{}, fmt.Errorf("%w: %q", ErrUnsupportedDtype, s)
	}
	dt.kind, dt.size = s[1], size

	ok := false
	switch dt.kind {
	case 'f':
		ok = size == 4 || size == 8
	case 'i', 'u':
		ok = size == 1 || size == 2 || size == 4 || size == 8
	case 'b':
		ok = size == 1
	}
	if !ok {
		return dtype{}, fmt.Errorf("%w: %q", ErrUnsupportedDtype, s)
	}
	return dt, nil
}

func (dt dtype) read(b []byte) float64 {
	switch dt.kind {
	case 'f':
		if dt.size == 4 {
			return float64(math.Float32frombits(dt.order.Uint32(b)))
		}
		return math.Float64frombits(dt.order.Uint64(b))
	case 'b':
		if b[0] != 0 {
			return 1
		}
		return 0
	case 'u':
		switch dt.size {
		case 1:
			return float64(b[0])
		case 2:
			return float64(dt.order.Uint16(b))
		case 4:
			return float64(dt.order.Uint32(b))
		default:
			return float64(dt.order.Uint64(b))
		}
	default:
		switch dt.size {
		case 1:
			return float64(int8(b[0]))
		case 2:
			return float64(int16(dt.order.Uint16(b)))
		case 4:
			return float64(int32(dt.order.Uint32(b)))
		default:
			return float64(int64(dt.order.Uint64(b)))
		}
	}
}

// fortranToC reorders column-major data into row-major order.
func fortranToC(shape []int, src []float64) []float64 {
	dst := make([]float64, len(src))
	idx := make([]int, len(shape))
	for c := range dst {
		f, stride := 0, 1
		for k := range shape {
			f += idx[k] * stride
			stride *= shape[k]
		}
		dst[c] = src[f]

		for k := len(idx) - 1; k >= 0; k-- {
			idx[k]++
			if idx[k] < shape[k] {
				break
			}
			idx[k] = 0
		}
	}
	return dst
}

func parseNPYHeader(s string) (npyHeader, error) {
	p := &pyLiteral{s: s}
	var hdr npyHeader
	seen := map[string]bool{}

	p.skipSpace()
	if !p.consume('{') {
		return hdr, fmt.Errorf("%w: header is not a dict", ErrBadHeader)
	}
	for {
		p.skipSpace()
		if p.consume('}') {
			break
		}
		key, err := p.str()
		if err != nil {
			return hdr, err
		}
		p.skipSpace()
		if !p.consume(':') {
			return hdr, fmt.Errorf("%w: expected ':' after %q", ErrBadHeader, key)
		}
		p.skipSpace()

		switch key {
		case "descr":
			if hdr.descr, err = p.str(); err != nil {
				return hdr, err
			}
		case "fortran_order":
			if hdr.fortran, err = p.boolean(); err != nil {
				return hdr, err
			}
		case "shape":
			if hdr.shape, err = p.tuple(); err != nil {
				return hdr, err
			}
		default:
			return hdr, fmt.Errorf("%w: unexpected key %q", ErrBadHeader, key)
		}
		seen[key] = true

		p.skipSpace()
		if !p.consume(',') {
			p.skipSpace()
			if !p.consume('}') {
				return hdr, fmt.Errorf("%w: expected ',' or '}'", ErrBadHeader)
			}
			break
		}
	}
	for _, k := range []string{"descr", "fortran_order", "shape"} {
		if !seen[k] {
			return hdr, fmt.Errorf("%w: missing key %q", ErrBadHeader, k)
		}
	}
	return hdr, nil
}

type pyLiteral struct {
	s   string
	pos int
}

func (p *pyLiteral) skipSpace() {
	for p.pos < len(p.s) && strings.IndexByte(" \t\r\n", p.s[p.pos]) >= 0 {
		p.pos++
	}
}

func (p *pyLiteral) consume(c byte) bool {
	if p.pos < len(p.s) && p.s[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *pyLiteral) str() (string, error) {
	if p.pos >= len(p.s) || (p.s[p.pos] != '\'' && p.s[p.pos] != '"') {
		return "", fmt.Errorf("%w: expected string at offset %d", ErrBadHeader, p.pos)
	}
	quote := p.s[p.pos]
	end := strings.IndexByte(p.s[p.pos+1:], quote)
	if end < 0 {
		return "", fmt.Errorf("%w: unterminated string", ErrBadHeader)
	}
	v := p.s[p.pos+1 : p.pos+1+end]
	p.pos += end + 2
	return v, nil
}

func (p *pyLiteral) boolean() (bool, error) {
	switch {
	case strings.HasPrefix(p.s[p.pos:], "True"):
		p.pos += 4
		return true, nil
	case strings.HasPrefix(p.s[p.pos:], "False"):
		p.pos += 5
		return false, nil
	}
	return false, fmt.Errorf("%w: expected True or False at offset %d", ErrBadHeader, p.pos)
}

func (p *pyLiteral) tuple() ([]int, error) {
	if !p.consume('(') {
		return nil, fmt.Errorf("%w: expected tuple at offset %d", ErrBadHeader, p.pos)
	}
	shape := []int{}
	for {
		p.skipSpace()
		if p.consume(')') {
			return shape, nil
		}
		start := p.pos
		for p.pos < len(p.s) && p.s[p.pos] >= '0' && p.s[p.pos] <= '9' {
			p.pos++
		}
		d, err := strconv.Atoi(p.s[start:p.pos])
		if err != nil {
			return nil, fmt.Errorf("%w: bad dimension %q", ErrBadHeader, p.s[start:p.pos])
		}
		// Python 2 era files write long-int suffixes.
		p.consume('L')
		shape = append(shape, d)

		p.skipSpace()
		if !p.consume(',') {
			p.skipSpace()
			if !p.consume(')') {
				return nil, fmt.Errorf("%w: expected ',' or ')' in shape", ErrBadHeader)
			}
			return shape, nil
		}
	}
}
