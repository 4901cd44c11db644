package cdf

import (
	"fmt"
	"math"
	"time"
)

// raw returns the bytes of every record of v, records back to back.
// Records missing from the index are filled with the pad value, or zeros.
func (f *File) raw(v *Variable) ([]byte, error) {
	nrec := int64(v.Records())
	recBytes := v.recordBytes()
	if recBytes <= 0 || nrec > maxDataBytes/recBytes {
		return nil, fmt.Errorf("%w: variable %q: %d records of %d bytes", ErrFormat, v.Name, nrec, recBytes)
	}
	out := make([]byte, nrec*recBytes)
	if len(v.pad) > 0 {
		for i := 0; i < len(out); i += len(v.pad) {
			copy(out[i:], v.pad)
		}
	}
	if nrec == 0 {
		return out, nil
	}

	ctype := CompressNone
	if v.compressed {
		var err error
		if ctype, err = readCPR(f.buf, v.cprOffset); err != nil {
			return nil, fmt.Errorf("variable %q: %w", v.Name, err)
		}
	}
	w := &vxrWalk{f: f, ctype: ctype, recBytes: recBytes, out: out, seen: make(map[int64]bool)}
	if err := w.walk(v.vxrHead, 0); err != nil {
		return nil, fmt.Errorf("variable %q: %w", v.Name, err)
	}
	return out, nil
}

// vxrWalk copies the value records of one variable into out.
type vxrWalk struct {
	f        *File
	ctype    int32
	recBytes int64
	out      []byte
	seen     map[int64]bool // VXR offsets already visited
}

func (w *vxrWalk) walk(off int64, depth int) error {
	if depth > maxVXRDepth {
		return fmt.Errorf("%w: VXR tree deeper than %d", ErrFormat, maxVXRDepth)
	}
	for off != 0 {
		if w.seen[off] {
			return fmt.Errorf("%w: VXR at %d visited twice", ErrFormat, off)
		}
		w.seen[off] = true

		c := newCursor(w.f.buf, off)
		c.header(RecordVXR)
		next := c.i64()
		n := c.i32()
		used := c.i32()
		if c.err != nil {
			return c.err
		}
		// Each entry takes 16 bytes: first, last, offset.
		if n < 0 || used < 0 || used > n || int64(n)*16 > c.remaining() {
			return fmt.Errorf("%w: VXR at %d has %d/%d entries", ErrFormat, off, used, n)
		}
		first := make([]int32, n)
		last := make([]int32, n)
		offs := make([]int64, n)
		for i := range first {
			first[i] = c.i32()
		}
		for i := range last {
			last[i] = c.i32()
		}
		for i := range offs {
			offs[i] = c.i64()
		}
		if c.err != nil {
			return c.err
		}

		for i := int32(0); i < used; i++ {
			if err := w.entry(offs[i], first[i], last[i], depth); err != nil {
				return err
			}
		}
		off = next
	}
	return nil
}

func (w *vxrWalk) entry(off int64, first, last int32, depth int) error {
	if first < 0 || last < first {
		return fmt.Errorf("%w: VXR entry covers records %d..%d", ErrFormat, first, last)
	}
	c := newCursor(w.f.buf, off)
	c.skip(8)
	typ := c.i32()
	if c.err != nil {
		return c.err
	}

	want := (int64(last) - int64(first) + 1) * w.recBytes
	var data []byte
	switch typ {
	case RecordVXR:
		return w.walk(off, depth+1)
	case RecordVVR:
		data = c.take(want)
	case RecordCVVR:
		c.skip(4) // rfuA
		csize := c.i64()
		data = c.take(csize)
		if c.err == nil {
			var err error
			if data, err = decompress(w.ctype, data, min(want, maxDataBytes)); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: VXR entry points at record type %d", ErrFormat, typ)
	}
	if c.err != nil {
		return c.err
	}

	start := int64(first) * w.recBytes
	if start >= int64(len(w.out)) {
		return nil
	}
	if int64(len(data)) < want {
		return fmt.Errorf("%w: records %d..%d hold %d bytes, want %d", ErrFormat, first, last, len(data), want)
	}
	copy(w.out[start:], data[:want])
	return nil
}

// Float64s returns every value of a numeric variable converted to
// float64, records back to back in row-major order, and the number of
// values per record.
func (f *File) Float64s(name string) ([]float64, int, error) {
	v, err := f.Variable(name)
	if err != nil {
		return nil, 0, err
	}
	if !v.Type.Numeric() {
		return nil, 0, fmt.Errorf("%w: variable %q has non-numeric type %s", ErrUnsupported, name, v.Type)
	}
	raw, err := f.raw(v)
	if err != nil {
		return nil, 0, err
	}

	size := v.Type.Size()
	vals := make([]float64, len(raw)/size)
	for i := range vals {
		vals[i] = f.decode(v.Type, raw[i*size:(i+1)*size])
	}

	per := v.Values()
	shape := v.Shape()
	if !f.rowMajor && len(shape) > 1 && v.NumElems == 1 {
		for r := 0; r < v.Records(); r++ {
			columnToRow(vals[r*per:(r+1)*per], shape)
		}
	}
	return vals, per, nil
}

func (f *File) decode(t DataType, b []byte) float64 {
	o := f.order
	switch t {
	case Int1, Byte:
		return float64(int8(b[0]))
	case UInt1:
		return float64(b[0])
	case Int2:
		return float64(int16(o.Uint16(b)))
	case UInt2:
		return float64(o.Uint16(b))
	case Int4:
		return float64(int32(o.Uint32(b)))
	case UInt4:
		return float64(o.Uint32(b))
	case Int8, TT2000:
		return float64(int64(o.Uint64(b)))
	case Real4, Float:
		return float64(math.Float32frombits(o.Uint32(b)))
	case Real8, Double, Epoch:
		return math.Float64frombits(o.Uint64(b))
	default:
		return math.NaN()
	}
}

// columnToRow reorders one record from column-major (first index fastest)
// to row-major (last index fastest), in place.
func columnToRow(rec []float64, shape []int) {
	src := append([]float64(nil), rec...)
	idx := make([]int, len(shape))
	for i := range src {
		// i is the column-major linear index; decode it.
		rem := i
		for d := 0; d < len(shape); d++ {
			idx[d] = rem % shape[d]
			rem /= shape[d]
		}
		row := 0
		for d := 0; d < len(shape); d++ {
			row = row*shape[d] + idx[d]
		}
		rec[row] = src[i]
	}
}

// Times returns a scalar time variable converted to UTC.
func (f *File) Times(name string) ([]time.Time, error) {
	v, err := f.Variable(name)
	if err != nil {
		return nil, err
	}
	switch v.Type {
	case Epoch, Epoch16, TT2000:
	default:
		return nil, fmt.Errorf("%w: variable %q has type %s, want an epoch type", ErrUnsupported, name, v.Type)
	}
	if v.Values() != 1 {
		return nil, fmt.Errorf("%w: time variable %q has %d values per record", ErrFormat, name, v.Values())
	}
	raw, err := f.raw(v)
	if err != nil {
		return nil, err
	}

	o := f.order
	size := v.Type.Size()
	times := make([]time.Time, len(raw)/size)
	for i := range times {
		b := raw[i*size : (i+1)*size]
		switch v.Type {
		case Epoch:
			times[i] = EpochTime(math.Float64frombits(o.Uint64(b)))
		case Epoch16:
			times[i] = Epoch16Time(math.Float64frombits(o.Uint64(b[:8])), math.Float64frombits(o.Uint64(b[8:])))
		case TT2000:
			times[i] = TT2000Time(int64(o.Uint64(b)))
		}
	}
	return times, nil
}
