package kasa

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"
)

// initialKey seeds the XOR autokey scrambling TP-Link devices apply to
// every payload. It is obfuscation, not encryption; the constant is fixed
// by the devices themselves.
const initialKey = 171

// maxResponseSize bounds how large a device response we accept.
const maxResponseSize = 1 << 20 // 1MB

// scramble applies the TP-Link XOR autokey to a plaintext payload.
// Each output byte becomes the key for the next.
func scramble(plain []byte) []byte {
	out := make([]byte, len(plain))
	key := byte(initialKey)
	for i, b := range plain {
		out[i] = b ^ key
		key = out[i]
	}
	return out
}

// unscramble reverses scramble. Each input byte is the key for the next.
func unscramble(wire []byte) []byte {
	out := make([]byte, len(wire))
	key := byte(initialKey)
	for i, b := range wire {
		out[i] = b ^ key
		key = b
	}
	return out
}

// roundTrip sends one scrambled, length-prefixed request to the device and
// reads one response frame. A fresh connection per exchange keeps the
// adapter stateless between invokes; these devices drop idle connections
// quickly anyway.
func roundTrip(ctx context.Context, addr string, timeout time.Duration, request []byte) ([]byte, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	defer conn.Close() //nolint:errcheck // Read side already consumed

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("setting deadline: %w", err)
	}

	// Frame: 4-byte big-endian length, then the scrambled payload.
	frame := make([]byte, 4+len(request))
	binary.BigEndian.PutUint32(frame, uint32(len(request)))
	copy(frame[4:], scramble(request))

	if _, err := conn.Write(frame); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}

	var header [4]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		return nil, fmt.Errorf("reading response header: %w", err)
	}
	size := binary.BigEndian.Uint32(header[:])
	if size == 0 || size > maxResponseSize {
		return nil, fmt.Errorf("implausible response size %d", size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(conn, body); err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return unscramble(body), nil
}
