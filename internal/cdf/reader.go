package cdf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/gzip"
)

// Maximum VXR nesting depth accepted before assuming a cycle.
const maxVXRDepth = 16

// maxDataBytes caps every buffer whose size comes from a file field:
// one variable's records, or a decompressed file or value record.
const maxDataBytes = 1 << 28

// File is a parsed CDF held fully in memory.
type File struct {
	buf      []byte
	order    binary.ByteOrder
	encoding Encoding
	rowMajor bool

	Version, Release int32

	vars  map[string]*Variable
	names []string
}

// Variable describes one rVariable or zVariable.
type Variable struct {
	Name     string
	Num      int32
	Type     DataType
	NumElems int32
	Dims     []int32 // dimension sizes of one record
	DimVarys []bool  // variance per dimension
	RecVary  bool
	MaxRec   int32 // last written record number, -1 when empty
	Z        bool

	vxrHead    int64
	compressed bool
	cprOffset  int64
	pad        []byte
}

// Records returns the number of records of v.
func (v *Variable) Records() int {
	if v.MaxRec < 0 {
		return 0
	}
	if !v.RecVary {
		return 1
	}
	return int(v.MaxRec) + 1
}

// Shape returns the sizes of the varying dimensions of one record.
func (v *Variable) Shape() []int {
	var shape []int
	for i, d := range v.Dims {
		if v.DimVarys[i] {
			shape = append(shape, int(d))
		}
	}
	return shape
}

// Values returns the number of values per record.
func (v *Variable) Values() int {
	n := int(v.NumElems)
	for _, d := range v.Shape() {
		n *= d
	}
	return n
}

func (v *Variable) recordBytes() int64 {
	return int64(v.Values()) * int64(v.Type.Size())
}

// Parse parses a complete CDF image.
func Parse(data []byte) (*File, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: %d bytes is too short for a CDF", ErrFormat, len(data))
	}
	magic := binary.BigEndian.Uint32(data[0:4])
	switch magic {
	case MagicV3:
	case MagicV26, MagicUncompressed:
		return nil, fmt.Errorf("%w: CDF version 2 files", ErrUnsupported)
	default:
		return nil, fmt.Errorf("%w: bad magic 0x%08X", ErrFormat, magic)
	}

	switch binary.BigEndian.Uint32(data[4:8]) {
	case MagicUncompressed:
	case MagicCompressed:
		var err error
		if data, err = inflateFile(data); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: bad compression magic 0x%08X", ErrFormat, binary.BigEndian.Uint32(data[4:8]))
	}

	f := &File{buf: data, vars: make(map[string]*Variable)}
	if err := f.readHeaders(); err != nil {
		return nil, err
	}
	return f, nil
}

// inflateFile expands a whole-file compressed CDF into its uncompressed image.
func inflateFile(data []byte) ([]byte, error) {
	c := newCursor(data, 8)
	size := c.header(RecordCCR)
	cprOff := c.i64()
	uSize := c.i64()
	c.skip(4)
	if c.err != nil {
		return nil, c.err
	}
	if size < 32 {
		return nil, fmt.Errorf("%w: CCR of %d bytes is shorter than its header", ErrFormat, size)
	}
	if uSize < 0 || uSize > maxDataBytes {
		return nil, fmt.Errorf("%w: CCR uncompressed size %d", ErrFormat, uSize)
	}
	payload := c.take(size - 32)
	if c.err != nil {
		return nil, c.err
	}

	ctype, err := readCPR(data, cprOff)
	if err != nil {
		return nil, err
	}
	body, err := decompress(ctype, payload, uSize)
	if err != nil {
		return nil, err
	}
	if int64(len(body)) != uSize {
		return nil, fmt.Errorf("%w: decompressed %d bytes, CCR says %d", ErrFormat, len(body), uSize)
	}

	out := make([]byte, 8, 8+len(body))
	binary.BigEndian.PutUint32(out[0:4], MagicV3)
	binary.BigEndian.PutUint32(out[4:8], MagicUncompressed)
	return append(out, body...), nil
}

func readCPR(buf []byte, off int64) (int32, error) {
	c := newCursor(buf, off)
	c.header(RecordCPR)
	ctype := c.i32()
	if c.err != nil {
		return 0, c.err
	}
	return ctype, nil
}

// decompress expands data, failing once the output passes limit bytes.
func decompress(ctype int32, data []byte, limit int64) ([]byte, error) {
	switch ctype {
	case CompressNone:
		return data, nil
	case CompressGzip:
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %v", ErrFormat, err)
		}
		defer zr.Close()
		out, err := io.ReadAll(io.LimitReader(zr, limit+1))
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %v", ErrFormat, err)
		}
		if int64(len(out)) > limit {
			return nil, fmt.Errorf("%w: gzip data expands past %d bytes", ErrFormat, limit)
		}
		return out, nil
	case CompressRLE:
		return unRLE(data, limit)
	default:
		return nil, fmt.Errorf("%w: compression type %d", ErrUnsupported, ctype)
	}
}

// unRLE expands CDF run-length encoding of zeros: a 0x00 byte followed by
// n stands for n+1 zero bytes. The output may not pass limit bytes.
func unRLE(data []byte, limit int64) ([]byte, error) {
	out := make([]byte, 0, min(int64(len(data))*2, limit))
	for i := 0; i < len(data); i++ {
		if data[i] != 0 {
			if int64(len(out)) >= limit {
				return nil, fmt.Errorf("%w: RLE data expands past %d bytes", ErrFormat, limit)
			}
			out = append(out, data[i])
			continue
		}
		if i+1 >= len(data) {
			return nil, fmt.Errorf("%w: RLE run without count", ErrFormat)
		}
		i++
		run := int64(data[i]) + 1
		if int64(len(out))+run > limit {
			return nil, fmt.Errorf("%w: RLE data expands past %d bytes", ErrFormat, limit)
		}
		out = append(out, make([]byte, run)...)
	}
	return out, nil
}

func (f *File) readHeaders() error {
	c := newCursor(f.buf, 8)
	c.header(RecordCDR)
	gdrOff := c.i64()
	f.Version = c.i32()
	f.Release = c.i32()
	f.encoding = Encoding(c.i32())
	flags := c.i32()
	if c.err != nil {
		return c.err
	}
	little, ok := f.encoding.littleEndian()
	if !ok {
		return fmt.Errorf("%w: data encoding %d", ErrUnsupported, f.encoding)
	}
	f.order = binary.ByteOrder(binary.BigEndian)
	if little {
		f.order = binary.LittleEndian
	}
	f.rowMajor = flags&cdrRowMajor != 0
	if flags&cdrSingleFile == 0 {
		return fmt.Errorf("%w: multi-file CDF", ErrUnsupported)
	}

	g := newCursor(f.buf, gdrOff)
	g.header(RecordGDR)
	rHead := g.i64()
	zHead := g.i64()
	g.skip(8 + 8) // ADRhead, eof
	nr := g.i32()
	g.skip(4 + 4) // NumAttr, rMaxRec
	rNumDims := g.i32()
	nz := g.i32()
	g.skip(8 + 4 + 4 + 4) // UIRhead, rfuC, LeapSecondLastUpdated, rfuE
	if g.err == nil && (rNumDims < 0 || rNumDims > 64) {
		return fmt.Errorf("%w: %d rDimensions", ErrFormat, rNumDims)
	}
	rDims := make([]int32, rNumDims)
	for i := range rDims {
		rDims[i] = g.i32()
	}
	if g.err != nil {
		return g.err
	}

	if err := f.readVDRs(rHead, nr, false, rDims); err != nil {
		return err
	}
	if err := f.readVDRs(zHead, nz, true, nil); err != nil {
		return err
	}
	sort.Strings(f.names)
	return nil
}

func (f *File) readVDRs(head int64, count int32, z bool, rDims []int32) error {
	off := head
	seen := make(map[int64]bool)
	for i := int32(0); i < count && off != 0; i++ {
		if seen[off] {
			return fmt.Errorf("%w: VDR chain loops back to offset %d", ErrFormat, off)
		}
		seen[off] = true
		v, next, err := f.readVDR(off, z, rDims)
		if err != nil {
			return err
		}
		f.vars[v.Name] = v
		f.names = append(f.names, v.Name)
		off = next
	}
	return nil
}

func (f *File) readVDR(off int64, z bool, rDims []int32) (*Variable, int64, error) {
	want := RecordRVDR
	if z {
		want = RecordZVDR
	}
	c := newCursor(f.buf, off)
	c.header(want)
	next := c.i64()
	v := &Variable{Z: z}
	v.Type = DataType(c.i32())
	v.MaxRec = c.i32()
	v.vxrHead = c.i64()
	c.skip(8) // VXRtail
	flags := c.i32()
	c.skip(4 + 4 + 4 + 4) // SRecords, rfuB, rfuC, rfuF
	v.NumElems = c.i32()
	v.Num = c.i32()
	v.cprOffset = c.i64()
	c.skip(4) // BlockingFactor
	v.Name = c.name(256)

	dims := rDims
	if z {
		n := c.i32()
		if c.err == nil && (n < 0 || n > 64) {
			return nil, 0, fmt.Errorf("%w: variable %q has %d dimensions", ErrFormat, v.Name, n)
		}
		dims = make([]int32, n)
		for i := range dims {
			dims[i] = c.i32()
		}
	}
	v.Dims = dims
	v.DimVarys = make([]bool, len(dims))
	for i := range v.DimVarys {
		v.DimVarys[i] = c.i32() != 0
	}
	v.RecVary = flags&vdrRecordVariance != 0
	v.compressed = flags&vdrCompressed != 0
	if c.err != nil {
		return nil, 0, c.err
	}

	if v.Type.Size() == 0 {
		return nil, 0, fmt.Errorf("%w: variable %q has data type %d", ErrUnsupported, v.Name, int32(v.Type))
	}
	if v.NumElems < 1 {
		return nil, 0, fmt.Errorf("%w: variable %q has %d elements", ErrFormat, v.Name, v.NumElems)
	}
	for _, d := range v.Dims {
		if d < 1 {
			return nil, 0, fmt.Errorf("%w: variable %q has dimension size %d", ErrFormat, v.Name, d)
		}
	}
	if flags&vdrPadValue != 0 {
		v.pad = c.take(int64(v.NumElems) * int64(v.Type.Size()))
		if c.err != nil {
			return nil, 0, c.err
		}
	}
	if err := f.checkSize(v); err != nil {
		return nil, 0, err
	}
	return v, next, nil
}

// checkSize rejects variables whose records could not be held in memory,
// or, when stored uncompressed without a pad value, in the file itself.
func (f *File) checkSize(v *Variable) error {
	per := int64(v.NumElems)
	for _, d := range v.Shape() {
		if per *= int64(d); per > maxDataBytes {
			break
		}
	}
	recBytes := per * int64(v.Type.Size())
	if per > maxDataBytes || recBytes > maxDataBytes {
		return fmt.Errorf("%w: variable %q has %d values per record", ErrFormat, v.Name, per)
	}
	total := int64(v.Records()) * recBytes
	if total > maxDataBytes {
		return fmt.Errorf("%w: variable %q claims %d records of %d bytes", ErrFormat, v.Name, v.Records(), recBytes)
	}
	if !v.compressed && v.pad == nil && total > int64(len(f.buf)) {
		return fmt.Errorf("%w: variable %q claims %d records, more than the %d-byte file holds",
			ErrFormat, v.Name, v.Records(), len(f.buf))
	}
	return nil
}

// Variables returns all variable names, sorted.
func (f *File) Variables() []string {
	return append([]string(nil), f.names...)
}

// Variable looks up a variable by name.
func (f *File) Variable(name string) (*Variable, error) {
	v, ok := f.vars[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoVariable, name)
	}
	return v, nil
}

// Encoding returns the data encoding declared in the CDR.
func (f *File) Encoding() Encoding {
	return f.encoding
}

// RowMajor reports the file's variable majority.
func (f *File) RowMajor() bool {
	return f.rowMajor
}
