package rrddv3

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/xcp-ng/xcp-metrics-go/pkg/metrics"
)

const constantString = "OPENMETRICS1"

const (
	offConstant   = 0
	offChecksum   = 12
	offTimestamp  = 16
	offPayloadLen = 24
	headerLength  = 28
)

// ParseError distinguishes the documented v3 envelope failure modes.
type ParseError struct {
	Kind string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rrddv3: %s: %s", e.Kind, e.Err)
	}
	return fmt.Sprintf("rrddv3: %s", e.Kind)
}

func (e *ParseError) Unwrap() error { return e.Err }

const (
	ErrInvalidHeader    = "InvalidHeader"
	ErrInvalidChecksum  = "InvalidChecksum"
	ErrInvalidTimestamp = "InvalidTimestamp"
	ErrIoError          = "IoError"
	ErrParse            = "Parse"
)

func parseErr(kind string, err error) error { return &ParseError{Kind: kind, Err: err} }

// Envelope is a parsed, validated v3 frame: the timestamp plus the decoded
// payload MetricSet.
type Envelope struct {
	Timestamp time.Time
	Set       *metrics.MetricSet
}

// Parse validates the envelope's constant string and CRC32, then decodes
// the binary MetricSet payload.
func Parse(buf []byte) (*Envelope, error) {
	if len(buf) < headerLength {
		return nil, parseErr(ErrInvalidHeader, fmt.Errorf("short buffer: %d bytes", len(buf)))
	}
	if string(buf[offConstant:offConstant+len(constantString)]) != constantString {
		return nil, parseErr(ErrInvalidHeader, fmt.Errorf("bad magic"))
	}

	checksum := binary.BigEndian.Uint32(buf[offChecksum:offTimestamp])
	timestampSecs := binary.BigEndian.Uint64(buf[offTimestamp:offPayloadLen])
	payloadLen := binary.BigEndian.Uint32(buf[offPayloadLen:headerLength])

	if len(buf) < headerLength+int(payloadLen) {
		return nil, parseErr(ErrIoError, fmt.Errorf("short payload: want %d have %d", payloadLen, len(buf)-headerLength))
	}
	payload := buf[headerLength : headerLength+int(payloadLen)]

	crcInput := make([]byte, 0, 12+len(payload))
	crcInput = append(crcInput, buf[offTimestamp:headerLength]...)
	crcInput = append(crcInput, payload...)
	if crc32.ChecksumIEEE(crcInput) != checksum {
		return nil, parseErr(ErrInvalidChecksum, nil)
	}

	if timestampSecs > 1<<62 {
		return nil, parseErr(ErrInvalidTimestamp, nil)
	}

	set, err := DecodePayload(payload)
	if err != nil {
		return nil, parseErr(ErrParse, err)
	}

	return &Envelope{Timestamp: time.Unix(int64(timestampSecs), 0).UTC(), Set: set}, nil
}

// Write serializes set into a complete v3 frame: header with checksum = 0,
// CRC32 computed over header[16:] ‖ payload, then patched into bytes 12..16,
// matching the emit procedure in spec §4.3.
func Write(timestamp time.Time, set *metrics.MetricSet) []byte {
	payload := EncodePayload(set)

	buf := make([]byte, headerLength+len(payload))
	copy(buf[offConstant:], constantString)
	binary.BigEndian.PutUint64(buf[offTimestamp:], uint64(timestamp.Unix()))
	binary.BigEndian.PutUint32(buf[offPayloadLen:], uint32(len(payload)))
	copy(buf[headerLength:], payload)

	crc := crc32.ChecksumIEEE(buf[offTimestamp:])
	binary.BigEndian.PutUint32(buf[offChecksum:], crc)
	return buf
}
