// Package cdf reads NASA Common Data Format (CDF) version 3 files.
//
// Only the subset needed to pull record-varying numeric variables out of
// single-file CDFs is implemented:
//   - rVariables and zVariables, any number of dimensions
//   - VXR index trees (chained and nested), VVR and CVVR value records
//   - GZIP and RLE variable compression, GZIP whole-file compression
//   - network/big-endian and little-endian data encodings
//   - CDF_EPOCH, CDF_EPOCH16 and CDF_TIME_TT2000 time values
//
// Record metadata is always big-endian (XDR); the CDR encoding only
// applies to variable data.
package cdf

import (
	"errors"
	"fmt"
)

var (
	ErrFormat      = errors.New("cdf: malformed file")
	ErrUnsupported = errors.New("cdf: unsupported feature")
	ErrNoVariable  = errors.New("cdf: no such variable")
)

// Magic numbers (first two words of the file).
const (
	MagicV3           uint32 = 0xCDF30001
	MagicV26          uint32 = 0xCDF26002
	MagicUncompressed uint32 = 0x0000FFFF
	MagicCompressed   uint32 = 0xCCCC0001
)

// Internal record types.
const (
	RecordCDR  int32 = 1
	RecordGDR  int32 = 2
	RecordRVDR int32 = 3
	RecordVXR  int32 = 6
	RecordVVR  int32 = 7
	RecordZVDR int32 = 8
	RecordCCR  int32 = 10
	RecordCPR  int32 = 11
	RecordCVVR int32 = 13
)

// Compression types found in CPR records.
const (
	CompressNone    int32 = 0
	CompressRLE     int32 = 1
	CompressHuffman int32 = 2
	CompressAHuff   int32 = 3
	CompressGzip    int32 = 5
)

// VDR flag bits.
const (
	vdrRecordVariance = 1 << 0
	vdrPadValue       = 1 << 1
	vdrCompressed     = 1 << 2
)

// CDR flag bits.
const (
	cdrRowMajor   = 1 << 0
	cdrSingleFile = 1 << 1
)

// Encoding holds the CDR data encoding code.
type Encoding int32

const (
	EncodingNetwork    Encoding = 1
	EncodingSun        Encoding = 2
	EncodingVAX        Encoding = 3
	EncodingDECStation Encoding = 4
	EncodingSGi        Encoding = 5
	EncodingIBMPC      Encoding = 6
	EncodingIBMRS      Encoding = 7
	EncodingPPC        Encoding = 9
	EncodingHP         Encoding = 11
	EncodingNeXT       Encoding = 12
	EncodingAlphaOSF1  Encoding = 13
	EncodingAlphaVMSd  Encoding = 14
	EncodingAlphaVMSg  Encoding = 15
	EncodingAlphaVMSi  Encoding = 16
	EncodingARMLittle  Encoding = 17
	EncodingARMBig     Encoding = 18
)

// littleEndian reports the byte order of the encoding. ok is false for
// encodings using non-IEEE floats.
func (e Encoding) littleEndian() (little bool, ok bool) {
	switch e {
	case EncodingNetwork, EncodingSun, EncodingSGi, EncodingIBMRS,
		EncodingPPC, EncodingHP, EncodingNeXT, EncodingARMBig:
		return false, true
	case EncodingDECStation, EncodingIBMPC, EncodingAlphaOSF1,
		EncodingAlphaVMSi, EncodingARMLittle:
		return true, true
	default:
		return false, false
	}
}

// DataType is a CDF data type code.
type DataType int32

const (
	Int1    DataType = 1
	Int2    DataType = 2
	Int4    DataType = 4
	Int8    DataType = 8
	UInt1   DataType = 11
	UInt2   DataType = 12
	UInt4   DataType = 14
	Real4   DataType = 21
	Real8   DataType = 22
	Epoch   DataType = 31
	Epoch16 DataType = 32
	TT2000  DataType = 33
	Byte    DataType = 41
	Float   DataType = 44
	Double  DataType = 45
	Char    DataType = 51
	UChar   DataType = 52
)

// Size returns the element size in bytes, or 0 for unknown types.
func (t DataType) Size() int {
	switch t {
	case Int1, UInt1, Byte, Char, UChar:
		return 1
	case Int2, UInt2:
		return 2
	case Int4, UInt4, Real4, Float:
		return 4
	case Int8, Real8, Double, Epoch, TT2000:
		return 8
	case Epoch16:
		return 16
	default:
		return 0
	}
}

// Numeric reports whether values of t convert to float64.
func (t DataType) Numeric() bool {
	switch t {
	case Char, UChar, Epoch16:
		return false
	default:
		return t.Size() > 0
	}
}

func (t DataType) String() string {
	switch t {
	case Int1:
		return "CDF_INT1"
	case Int2:
		return "CDF_INT2"
	case Int4:
		return "CDF_INT4"
	case Int8:
		return "CDF_INT8"
	case UInt1:
		return "CDF_UINT1"
	case UInt2:
		return "CDF_UINT2"
	case UInt4:
		return "CDF_UINT4"
	case Real4:
		return "CDF_REAL4"
	case Real8:
		return "CDF_REAL8"
	case Epoch:
		return "CDF_EPOCH"
	case Epoch16:
		return "CDF_EPOCH16"
	case TT2000:
		return "CDF_TIME_TT2000"
	case Byte:
		return "CDF_BYTE"
	case Float:
		return "CDF_FLOAT"
	case Double:
		return "CDF_DOUBLE"
	case Char:
		return "CDF_CHAR"
	case UChar:
		return "CDF_UCHAR"
	default:
		return fmt.Sprintf("DataType(%d)", int32(t))
	}
}
