// Package wire implements the MessagePack framing shared by callers and the
// server: requests travel as one encoded string of the form
// "<operation>|<payload>", responses as a two-element record with success at
// index 0 and content at index 1. Both directions are measured in
// encoded-byte length against the configured limits.
package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	// DefaultMaxBytes caps one encoded frame in either direction.
	DefaultMaxBytes = 1 << 20

	// Delimiter separates operation name from payload; only the first
	// occurrence is significant.
	Delimiter = "|"
)

var (
	ErrRequestTooLarge  = errors.New("wire: request frame exceeds limit")
	ErrResponseTooLarge = errors.New("wire: response frame exceeds limit")
	ErrNotStringFrame   = errors.New("wire: frame is not a msgpack string")
	ErrShortFrame       = errors.New("wire: short frame")
)

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxRequestBytes  int
	MaxResponseBytes int
}

func DefaultLimits() Limits {
	return Limits{
		MaxRequestBytes:  DefaultMaxBytes,
		MaxResponseBytes: DefaultMaxBytes,
	}
}

func (l Limits) WithDefaults() Limits {
	if l.MaxRequestBytes <= 0 {
		l.MaxRequestBytes = DefaultMaxBytes
	}
	if l.MaxResponseBytes <= 0 {
		l.MaxResponseBytes = DefaultMaxBytes
	}
	return l
}

// EncodeRequest encodes one request string as a msgpack string frame.
func EncodeRequest(s string) ([]byte, error) {
	return msgpack.Marshal(s)
}

// ReadRequest reads exactly one request frame. The msgpack string header is
// sniffed first so the declared frame length is checked against
// MaxRequestBytes before any payload is buffered.
func ReadRequest(r *bufio.Reader, limits Limits) (string, error) {
	limits = limits.WithDefaults()

	tag, err := r.Peek(1)
	if err != nil {
		return "", readErr(err)
	}

	headerLen, payloadLen, err := sniffStringHeader(r, tag[0])
	if err != nil {
		return "", err
	}
	total := headerLen + payloadLen
	if total > limits.MaxRequestBytes {
		// Consume the declared frame before rejecting. Closing with unread
		// inbound bytes resets the connection and the peer never sees the
		// rejection response.
		_, _ = io.CopyN(io.Discard, r, int64(total))
		return "", fmt.Errorf("%w: %d > %d", ErrRequestTooLarge, total, limits.MaxRequestBytes)
	}

	buf := make([]byte, total)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", readErr(err)
	}

	var s string
	if err := msgpack.Unmarshal(buf, &s); err != nil {
		return "", fmt.Errorf("wire: decode request: %w", err)
	}
	return s, nil
}

// sniffStringHeader returns (header length, payload length) for one msgpack
// string frame without consuming reader bytes.
func sniffStringHeader(r *bufio.Reader, tag byte) (int, int, error) {
	switch {
	case tag >= 0xa0 && tag <= 0xbf: // fixstr
		return 1, int(tag & 0x1f), nil
	case tag == 0xd9: // str8
		hdr, err := r.Peek(2)
		if err != nil {
			return 0, 0, readErr(err)
		}
		return 2, int(hdr[1]), nil
	case tag == 0xda: // str16
		hdr, err := r.Peek(3)
		if err != nil {
			return 0, 0, readErr(err)
		}
		return 3, int(binary.BigEndian.Uint16(hdr[1:3])), nil
	case tag == 0xdb: // str32
		hdr, err := r.Peek(5)
		if err != nil {
			return 0, 0, readErr(err)
		}
		return 5, int(binary.BigEndian.Uint32(hdr[1:5])), nil
	default:
		return 0, 0, fmt.Errorf("%w: tag 0x%02x", ErrNotStringFrame, tag)
	}
}

// SplitRequest splits a decoded request string on the first delimiter.
// Absence of a delimiter means payload is the empty string, not omitted.
func SplitRequest(s string) (operation, payload string) {
	operation, payload, _ = strings.Cut(s, Delimiter)
	return operation, payload
}

// resultRecord pins success and content to msgpack array indices 0 and 1 so
// the encoding stays stable even if fields are added later.
type resultRecord struct {
	_msgpack struct{} `msgpack:",as_array"`

	Success bool
	Content any
}

// EncodeResult encodes one response record.
func EncodeResult(success bool, content any) ([]byte, error) {
	return msgpack.Marshal(resultRecord{Success: success, Content: content})
}

// CheckResponseSize reports whether an encoded response fits under the
// response cap.
func CheckResponseSize(encoded []byte, limits Limits) error {
	limits = limits.WithDefaults()
	if len(encoded) > limits.MaxResponseBytes {
		return fmt.Errorf("%w: %d > %d", ErrResponseTooLarge, len(encoded), limits.MaxResponseBytes)
	}
	return nil
}

// DecodeResult decodes one response record. Used by callers and tests; the
// server only encodes.
func DecodeResult(b []byte) (success bool, content any, err error) {
	var rec resultRecord
	if err := msgpack.Unmarshal(b, &rec); err != nil {
		return false, nil, fmt.Errorf("wire: decode result: %w", err)
	}
	return rec.Success, rec.Content, nil
}

// ReadResult reads and decodes exactly one response record from the stream.
func ReadResult(r io.Reader) (success bool, content any, err error) {
	dec := msgpack.NewDecoder(r)
	var rec resultRecord
	if err := dec.Decode(&rec); err != nil {
		return false, nil, fmt.Errorf("wire: read result: %w", err)
	}
	return rec.Success, rec.Content, nil
}

func readErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrShortFrame
	}
	return err
}
