// Package wire implements the primitive encoding used by every frame of
// the daemon control, per-session control, and delivery protocols:
// big-endian ("network byte order") fixed-width integers and
// length-prefixed strings. It plays the role the original tool's
// net_send_uint32/net_recv_uint32/net_send_string/net_recv_string helpers
// played in galnet.c, and is deliberately small enough to not need a
// generic framing library — see DESIGN.md for why this stays hand-rolled
// rather than reaching for a third-party codec.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxStringLength bounds the length prefix accepted for an incoming string,
// guarding the daemon against a malicious or buggy peer claiming an
// enormous payload.
const MaxStringLength = 1 << 20

// WriteUint32 writes v in network byte order.
func WriteUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// ReadUint32 reads a network-byte-order uint32.
func ReadUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// WriteInt64 writes v in network byte order.
func WriteInt64(w io.Writer, v int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	_, err := w.Write(buf[:])
	return err
}

// ReadInt64 reads a network-byte-order int64.
func ReadInt64(r io.Reader) (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(buf[:])), nil
}

// WriteString writes a 4-byte big-endian length prefix followed by the
// string's bytes.
func WriteString(w io.Writer, s string) error {
	if err := WriteUint32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// ReadString reads a length-prefixed string written by WriteString.
func ReadString(r io.Reader) (string, error) {
	length, err := ReadUint32(r)
	if err != nil {
		return "", err
	}
	if length > MaxStringLength {
		return "", fmt.Errorf("string length %d exceeds maximum %d", length, MaxStringLength)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
