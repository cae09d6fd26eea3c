// Package rrddv2 reads the legacy fixed-layout shared-memory metric format
// ("RRDD v2"): a binary header with CRC32-checked timestamp/value payload
// followed by a CRC32-checked JSON metadata blob. The framing discipline
// (magic constant, checksum, length-prefixed trailer) follows the same
// pattern used for cc-backend's binary checkpoint formats, adapted to the
// v2 file's fixed, big-endian layout.
package rrddv2

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"math"
)

// constantString is the fixed ASCII magic at the start of every v2 file.
const constantString = "DATASOURCES"

const (
	offConstant       = 0
	offDataChecksum   = 11
	offMetaChecksum   = 15
	offNValues        = 19
	offTimestamp      = 23
	offValuesStart    = 31
	headerFixedLength = offValuesStart
)

// ParseError distinguishes the four documented v2 parse failure modes.
type ParseError struct {
	Kind string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rrddv2: %s: %s", e.Kind, e.Err)
	}
	return fmt.Sprintf("rrddv2: %s", e.Kind)
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErr(kind string, err error) error { return &ParseError{Kind: kind, Err: err} }

const (
	ErrInvalidConstantString = "InvalidConstantString"
	ErrInvalidChecksum       = "InvalidChecksum"
	ErrNonMatchingLength     = "NonMatchingLength"
	ErrDataSourceParse       = "DataSourceParse"
)

// ValueType is the declared interpretation of a DataSource's raw 8-byte slot.
type ValueType int

const (
	ValueTypeUndefined ValueType = iota
	ValueTypeInt64
	ValueTypeFloat
)

// SourceType is the DataSource's reporting discipline: gauge values stand on
// their own, absolute/derive values are running totals a Counter tracks.
type SourceType int

const (
	SourceAbsolute SourceType = iota
	SourceGauge
	SourceDerive
)

// Owner identifies which object a DataSource belongs to.
type OwnerKind int

const (
	OwnerHost OwnerKind = iota
	OwnerVM
	OwnerSR
)

// Owner pairs an OwnerKind with the VM/SR uuid when applicable.
type Owner struct {
	Kind OwnerKind
	UUID string // empty for OwnerHost
}

// DataSourceMeta is one entry of the v2 metadata JSON, after defaults have
// been applied (spec §4.2).
type DataSourceMeta struct {
	Description string
	Units       string
	Type        SourceType
	ValueType   ValueType
	Min         float64
	Max         float64
	Owner       Owner
	Default     bool
}

// rawDataSourceMeta mirrors the on-wire JSON shape before defaulting.
type rawDataSourceMeta struct {
	Description *string  `json:"description"`
	Units       *string  `json:"units"`
	Type        *string  `json:"type"`
	ValueType   *string  `json:"value_type"`
	Value       *float64 `json:"value"`
	Min         *float64 `json:"min"`
	Max         *float64 `json:"max"`
	Owner       *string  `json:"owner"`
	Default     *bool    `json:"default"`
}

// Metadata is the insertion-ordered mapping from source name to record. JSON
// objects are unordered in Go's encoding/json, so order is tracked
// explicitly in Names alongside the Sources lookup map.
type Metadata struct {
	Names   []string
	Sources map[string]DataSourceMeta
}

// decodeOrderedObject decodes a top-level JSON object of
// name -> rawDataSourceMeta while preserving source-name insertion order,
// which encoding/json's native map decoding does not.
func decodeOrderedObject(raw []byte) ([]string, []rawDataSourceMeta, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil {
		return nil, nil, err
	} else if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected JSON object")
	}

	var names []string
	var vals []rawDataSourceMeta
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		name, _ := keyTok.(string)

		var v rawDataSourceMeta
		if err := dec.Decode(&v); err != nil {
			return nil, nil, err
		}
		names = append(names, name)
		vals = append(vals, v)
	}
	return names, vals, nil
}

func parseOwner(raw string) Owner {
	switch {
	case raw == "" || raw == "host":
		return Owner{Kind: OwnerHost}
	case len(raw) > 3 && raw[:3] == "vm ":
		return Owner{Kind: OwnerVM, UUID: raw[3:]}
	case len(raw) > 3 && raw[:3] == "sr ":
		return Owner{Kind: OwnerSR, UUID: raw[3:]}
	default:
		return Owner{Kind: OwnerHost}
	}
}

func parseSourceType(raw string) SourceType {
	switch raw {
	case "gauge":
		return SourceGauge
	case "derive":
		return SourceDerive
	default:
		return SourceAbsolute
	}
}

func parseValueType(raw string) ValueType {
	switch raw {
	case "int64":
		return ValueTypeInt64
	case "float":
		return ValueTypeFloat
	default:
		return ValueTypeUndefined
	}
}

// ParseMetadata decodes the v2 JSON metadata blob, applying the documented
// defaults for any absent field (spec §4.2): empty description/unit,
// type=absolute, value=Undefined, min=-Inf, max=+Inf, owner=host,
// default=false.
func ParseMetadata(raw []byte) (*Metadata, error) {
	names, rawVals, err := decodeOrderedObject(raw)
	if err != nil {
		return nil, parseErr(ErrDataSourceParse, err)
	}

	md := &Metadata{Names: names, Sources: make(map[string]DataSourceMeta, len(names))}
	for i, name := range names {
		r := rawVals[i]
		m := DataSourceMeta{
			Type:      SourceAbsolute,
			ValueType: ValueTypeUndefined,
			Min:       math.Inf(-1),
			Max:       math.Inf(1),
			Owner:     Owner{Kind: OwnerHost},
		}
		if r.Description != nil {
			m.Description = *r.Description
		}
		if r.Units != nil {
			m.Units = *r.Units
		}
		if r.Type != nil {
			m.Type = parseSourceType(*r.Type)
		}
		if r.ValueType != nil {
			m.ValueType = parseValueType(*r.ValueType)
		}
		if r.Min != nil {
			m.Min = *r.Min
		}
		if r.Max != nil {
			m.Max = *r.Max
		}
		if r.Owner != nil {
			m.Owner = parseOwner(*r.Owner)
		}
		if r.Default != nil {
			m.Default = *r.Default
		}
		md.Sources[name] = m
	}
	return md, nil
}

// Header is the parsed fixed-layout section of a v2 file, plus its raw
// value slots (undecoded, interpretation is metadata-driven).
type Header struct {
	DataChecksum     uint32
	MetadataChecksum uint32
	NValues          uint32
	Timestamp        uint64
	RawValues        [][8]byte
	Metadata         []byte // raw JSON bytes, for change-detection by the caller
}

// ParseHeader validates and decodes the fixed header plus trailing metadata
// blob from a full v2 file image (as obtained from a memory-mapped file; see
// ReadFile in mmap.go).
func ParseHeader(buf []byte) (*Header, error) {
	if len(buf) < headerFixedLength {
		return nil, parseErr(ErrNonMatchingLength, fmt.Errorf("short file: %d bytes", len(buf)))
	}
	if string(buf[offConstant:offConstant+len(constantString)]) != constantString {
		return nil, parseErr(ErrInvalidConstantString, nil)
	}

	dataChecksum := binary.BigEndian.Uint32(buf[offDataChecksum:offMetaChecksum])
	metaChecksum := binary.BigEndian.Uint32(buf[offMetaChecksum:offNValues])
	nValues := binary.BigEndian.Uint32(buf[offNValues:offTimestamp])
	timestamp := binary.BigEndian.Uint64(buf[offTimestamp:offValuesStart])

	valuesEnd := offValuesStart + 8*int(nValues)
	if len(buf) < valuesEnd+4 {
		return nil, parseErr(ErrNonMatchingLength, fmt.Errorf("file too short for %d values", nValues))
	}

	rawValues := make([][8]byte, nValues)
	for i := 0; i < int(nValues); i++ {
		copy(rawValues[i][:], buf[offValuesStart+8*i:offValuesStart+8*(i+1)])
	}

	// data_checksum covers timestamp bytes followed by the concatenated raw
	// values (spec §4.2).
	crcInput := make([]byte, 8+8*int(nValues))
	binary.BigEndian.PutUint64(crcInput[:8], timestamp)
	copy(crcInput[8:], buf[offValuesStart:valuesEnd])
	if crc32.ChecksumIEEE(crcInput) != dataChecksum {
		return nil, parseErr(ErrInvalidChecksum, fmt.Errorf("data checksum mismatch"))
	}

	metaLen := binary.BigEndian.Uint32(buf[valuesEnd : valuesEnd+4])
	metaStart := valuesEnd + 4
	metaEnd := metaStart + int(metaLen)
	if len(buf) < metaEnd {
		return nil, parseErr(ErrNonMatchingLength, fmt.Errorf("file too short for metadata of length %d", metaLen))
	}
	metaBytes := buf[metaStart:metaEnd]
	if crc32.ChecksumIEEE(metaBytes) != metaChecksum {
		return nil, parseErr(ErrInvalidChecksum, fmt.Errorf("metadata checksum mismatch"))
	}

	return &Header{
		DataChecksum:     dataChecksum,
		MetadataChecksum: metaChecksum,
		NValues:          nValues,
		Timestamp:        timestamp,
		RawValues:        rawValues,
		Metadata:         metaBytes,
	}, nil
}

// DecodeValue interprets a raw 8-byte slot per the declared ValueType:
// int64 as big-endian i64, float as IEEE-754 big-endian f64, anything else
// as Undefined (a documented Open Question: the reader does not cross-check
// the declared type against other metadata, it simply trusts it).
func DecodeValue(raw [8]byte, vt ValueType) (kindIsInt bool, f float64, i int64) {
	switch vt {
	case ValueTypeInt64:
		return true, 0, int64(binary.BigEndian.Uint64(raw[:]))
	case ValueTypeFloat:
		bits := binary.BigEndian.Uint64(raw[:])
		return false, math.Float64frombits(bits), 0
	default:
		return false, math.NaN(), 0
	}
}

// WriteHeader serializes values+metadata into the v2 on-disk layout,
// computing both checksums. Used by tests to emit a well-formed legacy
// shared-memory file.
func WriteHeader(timestamp uint64, values [][8]byte, metadata []byte) []byte {
	n := len(values)
	crcInput := make([]byte, 8+8*n)
	binary.BigEndian.PutUint64(crcInput[:8], timestamp)
	for i, v := range values {
		copy(crcInput[8+8*i:8+8*(i+1)], v[:])
	}
	dataChecksum := crc32.ChecksumIEEE(crcInput)
	metaChecksum := crc32.ChecksumIEEE(metadata)

	buf := make([]byte, offValuesStart+8*n+4+len(metadata))
	copy(buf[offConstant:], constantString)
	binary.BigEndian.PutUint32(buf[offDataChecksum:], dataChecksum)
	binary.BigEndian.PutUint32(buf[offMetaChecksum:], metaChecksum)
	binary.BigEndian.PutUint32(buf[offNValues:], uint32(n))
	binary.BigEndian.PutUint64(buf[offTimestamp:], timestamp)
	for i, v := range values {
		copy(buf[offValuesStart+8*i:], v[:])
	}
	metaLenOff := offValuesStart + 8*n
	binary.BigEndian.PutUint32(buf[metaLenOff:], uint32(len(metadata)))
	copy(buf[metaLenOff+4:], metadata)
	return buf
}
