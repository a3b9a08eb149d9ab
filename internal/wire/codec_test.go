package wire

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestRequestRoundTrip(t *testing.T) {
	encoded, err := EncodeRequest("login|username:password")
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	got, err := ReadRequest(bufio.NewReader(bytes.NewReader(encoded)), DefaultLimits())
	if err != nil {
		t.Fatalf("read request: %v", err)
	}
	if got != "login|username:password" {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestReadRequestSniffsLongerHeaders(t *testing.T) {
	// str8 and str16 frames; fixstr is covered by the round-trip test.
	for _, size := range []int{40, 300} {
		s := strings.Repeat("a", size)
		encoded, err := EncodeRequest(s)
		if err != nil {
			t.Fatalf("encode request: %v", err)
		}
		got, err := ReadRequest(bufio.NewReader(bytes.NewReader(encoded)), DefaultLimits())
		if err != nil {
			t.Fatalf("read request size=%d: %v", size, err)
		}
		if got != s {
			t.Fatalf("size=%d mismatch: got len %d", size, len(got))
		}
	}
}

func TestReadRequestEnforcesLimitBeforeBuffering(t *testing.T) {
	encoded, err := EncodeRequest(strings.Repeat("a", 100))
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	limits := Limits{MaxRequestBytes: 64, MaxResponseBytes: DefaultMaxBytes}
	_, err = ReadRequest(bufio.NewReader(bytes.NewReader(encoded)), limits)
	if !errors.Is(err, ErrRequestTooLarge) {
		t.Fatalf("expected ErrRequestTooLarge, got %v", err)
	}
}

func TestReadRequestConsumesOversizedFrame(t *testing.T) {
	encoded, err := EncodeRequest(strings.Repeat("a", 100))
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	// A byte after the frame stands in for whatever the peer sends next; the
	// reader must land exactly on it after the rejected frame.
	r := bufio.NewReader(bytes.NewReader(append(encoded, 0xc3)))
	limits := Limits{MaxRequestBytes: 64, MaxResponseBytes: DefaultMaxBytes}
	if _, err := ReadRequest(r, limits); !errors.Is(err, ErrRequestTooLarge) {
		t.Fatalf("expected ErrRequestTooLarge, got %v", err)
	}
	next, err := r.ReadByte()
	if err != nil {
		t.Fatalf("read after rejected frame: %v", err)
	}
	if next != 0xc3 {
		t.Fatalf("oversized frame not fully consumed, next byte 0x%02x", next)
	}
}

func TestReadRequestRejectsNonStringFrame(t *testing.T) {
	// 0x92 opens a two-element msgpack array.
	_, err := ReadRequest(bufio.NewReader(bytes.NewReader([]byte{0x92, 0xc3, 0xc2})), DefaultLimits())
	if !errors.Is(err, ErrNotStringFrame) {
		t.Fatalf("expected ErrNotStringFrame, got %v", err)
	}
}

func TestReadRequestShortFrame(t *testing.T) {
	// fixstr header declaring 5 bytes with only 2 present.
	_, err := ReadRequest(bufio.NewReader(bytes.NewReader([]byte{0xa5, 'a', 'b'})), DefaultLimits())
	if !errors.Is(err, ErrShortFrame) {
		t.Fatalf("expected ErrShortFrame, got %v", err)
	}
}

func TestSplitRequest(t *testing.T) {
	cases := []struct {
		in, op, payload string
	}{
		{"login|username:password", "login", "username:password"},
		{"echo|a|b|c", "echo", "a|b|c"},
		{"ping", "ping", ""},
		{"ping|", "ping", ""},
		{"", "", ""},
		{"|payload", "", "payload"},
	}
	for _, tc := range cases {
		gotOp, gotPayload := SplitRequest(tc.in)
		if gotOp != tc.op || gotPayload != tc.payload {
			t.Fatalf("split %q: got (%q, %q) want (%q, %q)", tc.in, gotOp, gotPayload, tc.op, tc.payload)
		}
	}
}

func TestResultRecordUsesFixedArrayIndices(t *testing.T) {
	encoded, err := EncodeResult(true, "Logged in!")
	if err != nil {
		t.Fatalf("encode result: %v", err)
	}
	// Two-element array header, then true at index 0.
	if encoded[0] != 0x92 {
		t.Fatalf("expected fixarray(2) header, got 0x%02x", encoded[0])
	}
	if encoded[1] != 0xc3 {
		t.Fatalf("expected true at index 0, got 0x%02x", encoded[1])
	}

	success, content, err := DecodeResult(encoded)
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !success || content != "Logged in!" {
		t.Fatalf("decode mismatch: success=%v content=%v", success, content)
	}
}

func TestResultNilContentStaysNil(t *testing.T) {
	encoded, err := EncodeResult(false, nil)
	if err != nil {
		t.Fatalf("encode result: %v", err)
	}
	success, content, err := DecodeResult(encoded)
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if success || content != nil {
		t.Fatalf("expected (false, nil), got (%v, %v)", success, content)
	}
}

func TestReadResultFromStream(t *testing.T) {
	encoded, err := EncodeResult(true, "pong")
	if err != nil {
		t.Fatalf("encode result: %v", err)
	}
	success, content, err := ReadResult(bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	if !success || content != "pong" {
		t.Fatalf("read mismatch: success=%v content=%v", success, content)
	}
}

func TestCheckResponseSize(t *testing.T) {
	encoded, err := EncodeResult(true, strings.Repeat("x", 100))
	if err != nil {
		t.Fatalf("encode result: %v", err)
	}
	limits := Limits{MaxRequestBytes: DefaultMaxBytes, MaxResponseBytes: 64}
	if err := CheckResponseSize(encoded, limits); !errors.Is(err, ErrResponseTooLarge) {
		t.Fatalf("expected ErrResponseTooLarge, got %v", err)
	}
	if err := CheckResponseSize(encoded, DefaultLimits()); err != nil {
		t.Fatalf("unexpected error under default limits: %v", err)
	}
}

func TestLimitsWithDefaults(t *testing.T) {
	l := Limits{}.WithDefaults()
	if l.MaxRequestBytes != DefaultMaxBytes || l.MaxResponseBytes != DefaultMaxBytes {
		t.Fatalf("unexpected defaults: %+v", l)
	}
	l = Limits{MaxRequestBytes: 10, MaxResponseBytes: 20}.WithDefaults()
	if l.MaxRequestBytes != 10 || l.MaxResponseBytes != 20 {
		t.Fatalf("explicit limits overwritten: %+v", l)
	}
}
