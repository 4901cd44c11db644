// Package cdftest builds small CDF v3 images for tests.
package cdftest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/klauspost/compress/gzip"

	"github.com/KI7MT/ki7mt-ai-lab-cme/internal/cdf"
)

// Var is one zVariable to write. Values holds every value, records back
// to back, row-major within a record. Int8 and TT2000 variables read
// from Ints instead. Epoch16 takes two Values (seconds, picoseconds) per
// record.
type Var struct {
	Name    string
	Type    cdf.DataType
	Dims    []int32
	Records int
	Values  []float64
	Ints    []int64

	Chunk    int       // records per value record, 0 = all in one
	Gzip     bool      // store CVVRs
	Nested   bool      // add a second VXR level
	Pad      []float64 // pad value, one per element
	Declared int       // records claimed by the VDR, 0 = Records
}

// Options controls file-level layout.
type Options struct {
	LittleEndian bool
	Gzip         bool // whole-file compression
}

type builder struct {
	buf   []byte
	order binary.AppendByteOrder
}

func (b *builder) off() int64 { return int64(len(b.buf)) }

func (b *builder) i32(v int32) {
	b.buf = binary.BigEndian.AppendUint32(b.buf, uint32(v))
}

func (b *builder) u32(v uint32) {
	b.buf = binary.BigEndian.AppendUint32(b.buf, v)
}

func (b *builder) i64(v int64) {
	b.buf = binary.BigEndian.AppendUint64(b.buf, uint64(v))
}

func (b *builder) zeros(n int) {
	b.buf = append(b.buf, make([]byte, n)...)
}

func (b *builder) name(s string, width int) {
	n := make([]byte, width)
	copy(n, s)
	b.buf = append(b.buf, n...)
}

func (b *builder) patch64(at int64, v int64) {
	binary.BigEndian.PutUint64(b.buf[at:], uint64(v))
}

// Build returns a CDF image holding vars.
func Build(vars []Var, opts Options) ([]byte, error) {
	b := &builder{order: binary.BigEndian}
	enc := cdf.EncodingNetwork
	if opts.LittleEndian {
		b.order = binary.LittleEndian
		enc = cdf.EncodingIBMPC
	}

	b.u32(cdf.MagicV3)
	b.u32(cdf.MagicUncompressed)

	// CDR
	cdr := b.off()
	b.i64(312)
	b.i32(cdf.RecordCDR)
	gdrField := b.off()
	b.i64(0)
	b.i32(3) // Version
	b.i32(9) // Release
	b.i32(int32(enc))
	b.i32(3) // row major, single file
	b.zeros(4 * 5)
	b.name("cdftest", 256)
	if b.off()-cdr != 312 {
		return nil, fmt.Errorf("cdftest: CDR is %d bytes", b.off()-cdr)
	}

	// GDR
	gdr := b.off()
	b.patch64(gdrField, gdr)
	b.i64(84)
	b.i32(cdf.RecordGDR)
	b.i64(0) // rVDRhead
	zHeadField := b.off()
	b.i64(0)
	b.i64(0) // ADRhead
	eofField := b.off()
	b.i64(0)
	b.i32(0)  // NrVars
	b.i32(0)  // NumAttr
	b.i32(-1) // rMaxRec
	b.i32(0)  // rNumDims
	b.i32(int32(len(vars)))
	b.i64(0) // UIRhead
	b.zeros(4 * 3)

	prevNext := zHeadField
	for num, v := range vars {
		at, err := b.writeVar(v, int32(num))
		if err != nil {
			return nil, err
		}
		b.patch64(prevNext, at)
		prevNext = at + 12
	}
	b.patch64(eofField, b.off())

	if !opts.Gzip {
		return b.buf, nil
	}
	return compressFile(b.buf)
}

func (b *builder) writeVar(v Var, num int32) (int64, error) {
	size := v.Type.Size()
	if size == 0 {
		return 0, fmt.Errorf("cdftest: variable %q has unknown type", v.Name)
	}
	per := 1
	for _, d := range v.Dims {
		per *= int(d)
	}
	recBytes := per * size

	data, err := b.encode(v, per)
	if err != nil {
		return 0, err
	}

	vdr := b.off()
	vdrSize := int64(344 + 8*len(v.Dims))
	if v.Pad != nil {
		vdrSize += int64(size)
	}
	flags := int32(1)
	if v.Gzip {
		flags |= 4
	}
	if v.Pad != nil {
		flags |= 2
	}

	b.i64(vdrSize)
	b.i32(cdf.RecordZVDR)
	b.i64(0) // VDRnext
	b.i32(int32(v.Type))
	declared := v.Records
	if v.Declared > declared {
		declared = v.Declared
	}
	b.i32(int32(declared - 1))
	vxrField := b.off()
	b.i64(0) // VXRhead
	b.i64(0) // VXRtail
	b.i32(flags)
	b.zeros(4 * 4)
	b.i32(1) // NumElems
	b.i32(num)
	cprField := b.off()
	b.i64(-1)
	b.i32(0) // BlockingFactor
	b.name(v.Name, 256)
	b.i32(int32(len(v.Dims)))
	for _, d := range v.Dims {
		b.i32(d)
	}
	for range v.Dims {
		b.i32(-1)
	}
	if v.Pad != nil {
		pv := Var{Name: v.Name, Type: v.Type, Records: 1, Values: v.Pad}
		for _, x := range v.Pad {
			pv.Ints = append(pv.Ints, int64(x))
		}
		pad, err := b.encode(pv, 1)
		if err != nil {
			return 0, err
		}
		b.buf = append(b.buf, pad...)
	}

	if v.Gzip {
		b.patch64(cprField, b.off())
		b.i64(28)
		b.i32(cdf.RecordCPR)
		b.i32(cdf.CompressGzip)
		b.i32(0)
		b.i32(1)
		b.i32(6)
	}

	chunk := v.Chunk
	if chunk <= 0 {
		chunk = v.Records
	}
	type entry struct {
		first, last int32
		off         int64
	}
	var entries []entry
	for first := 0; first < v.Records; first += chunk {
		last := min(first+chunk, v.Records) - 1
		payload := data[first*recBytes : (last+1)*recBytes]
		at := b.off()
		if v.Gzip {
			var zb bytes.Buffer
			zw := gzip.NewWriter(&zb)
			if _, err := zw.Write(payload); err != nil {
				return 0, err
			}
			if err := zw.Close(); err != nil {
				return 0, err
			}
			b.i64(int64(24 + zb.Len()))
			b.i32(cdf.RecordCVVR)
			b.i32(0)
			b.i64(int64(zb.Len()))
			b.buf = append(b.buf, zb.Bytes()...)
		} else {
			b.i64(int64(12 + len(payload)))
			b.i32(cdf.RecordVVR)
			b.buf = append(b.buf, payload...)
		}
		entries = append(entries, entry{int32(first), int32(last), at})
	}

	vxr := b.off()
	b.i64(int64(28 + 16*len(entries)))
	b.i32(cdf.RecordVXR)
	b.i64(0)
	b.i32(int32(len(entries)))
	b.i32(int32(len(entries)))
	for _, e := range entries {
		b.i32(e.first)
	}
	for _, e := range entries {
		b.i32(e.last)
	}
	for _, e := range entries {
		b.i64(e.off)
	}

	head := vxr
	if v.Nested && len(entries) > 0 {
		head = b.off()
		b.i64(28 + 16)
		b.i32(cdf.RecordVXR)
		b.i64(0)
		b.i32(1)
		b.i32(1)
		b.i32(0)
		b.i32(int32(v.Records - 1))
		b.i64(vxr)
	}
	b.patch64(vxrField, head)
	b.patch64(vxrField+8, head)
	return vdr, nil
}

func (b *builder) encode(v Var, per int) ([]byte, error) {
	n := v.Records * per
	var out []byte
	o := b.order
	switch v.Type {
	case cdf.Int8, cdf.TT2000:
		if len(v.Ints) < n {
			return nil, fmt.Errorf("cdftest: variable %q needs %d ints, has %d", v.Name, n, len(v.Ints))
		}
		for _, x := range v.Ints[:n] {
			out = o.AppendUint64(out, uint64(x))
		}
		return out, nil
	case cdf.Epoch16:
		n *= 2
	}
	if len(v.Values) < n {
		return nil, fmt.Errorf("cdftest: variable %q needs %d values, has %d", v.Name, n, len(v.Values))
	}
	for _, x := range v.Values[:n] {
		switch v.Type {
		case cdf.Int1, cdf.Byte:
			out = append(out, byte(int8(x)))
		case cdf.UInt1:
			out = append(out, byte(x))
		case cdf.Int2:
			out = o.AppendUint16(out, uint16(int16(x)))
		case cdf.UInt2:
			out = o.AppendUint16(out, uint16(x))
		case cdf.Int4:
			out = o.AppendUint32(out, uint32(int32(x)))
		case cdf.UInt4:
			out = o.AppendUint32(out, uint32(x))
		case cdf.Real4, cdf.Float:
			out = o.AppendUint32(out, math.Float32bits(float32(x)))
		case cdf.Real8, cdf.Double, cdf.Epoch, cdf.Epoch16:
			out = o.AppendUint64(out, math.Float64bits(x))
		default:
			return nil, fmt.Errorf("cdftest: cannot encode %s", v.Type)
		}
	}
	return out, nil
}

func compressFile(img []byte) ([]byte, error) {
	var zb bytes.Buffer
	zw := gzip.NewWriter(&zb)
	if _, err := zw.Write(img[8:]); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	b := &builder{}
	b.u32(cdf.MagicV3)
	b.u32(cdf.MagicCompressed)
	ccrSize := int64(32 + zb.Len())
	b.i64(ccrSize)
	b.i32(cdf.RecordCCR)
	b.i64(8 + ccrSize) // CPR follows the CCR
	b.i64(int64(len(img) - 8))
	b.i32(0)
	b.buf = append(b.buf, zb.Bytes()...)
	b.i64(28)
	b.i32(cdf.RecordCPR)
	b.i32(cdf.CompressGzip)
	b.i32(0)
	b.i32(1)
	b.i32(6)
	return b.buf, nil
}

// WriteFile builds a CDF and writes it to path.
func WriteFile(path string, vars []Var, opts Options) error {
	img, err := Build(vars, opts)
	if err != nil {
		return err
	}
	return os.WriteFile(path, img, 0o644)
}
