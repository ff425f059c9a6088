// Package ws is a minimal RFC 6455 websocket implementation: server upgrade,
// client dial, and text/control frames without fragmentation or extensions.
package ws

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/sha1"
	"crypto/tls"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	OpContinuation byte = 0x0
	OpText         byte = 0x1
	OpBinary       byte = 0x2
	OpClose        byte = 0x8
	OpPing         byte = 0x9
	OpPong         byte = 0xA

	websocketMagicGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
)

var (
	// ErrClosed is returned by ReadMessage after the peer sent a close frame.
	ErrClosed = errors.New("websocket closed")
	// ErrFrameTooLarge is returned when a frame exceeds the read limit.
	ErrFrameTooLarge = errors.New("websocket frame too large")
)

type Config struct {
	// AllowedOrigins is an origin allow-list. Empty allows every origin; entries
	// may use a leading "*." host wildcard such as https://*.learnhub.io.
	AllowedOrigins []string
	ReadLimit      int
	WriteTimeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		ReadLimit:    4096,
		WriteTimeout: 10 * time.Second,
	}
}

type Conn struct {
	conn         net.Conn
	rw           *bufio.ReadWriter
	readLimit    int
	writeTimeout time.Duration
	// client connections mask outgoing frames.
	client  bool
	writeMu sync.Mutex
	closeMu sync.Once
}

func Upgrade(w http.ResponseWriter, r *http.Request, cfg Config) (*Conn, error) {
	cfg = normalizeConfig(cfg)
	if err := validateWebSocketHeaders(r, cfg); err != nil {
		return nil, err
	}

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		return nil, fmt.Errorf("response does not support hijacking")
	}

	conn, rw, err := hijacker.Hijack()
	if err != nil {
		return nil, err
	}

	accept := computeWebSocketAccept(strings.TrimSpace(r.Header.Get("Sec-WebSocket-Key")))
	response := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + accept + "\r\n\r\n"
	if _, err := rw.WriteString(response); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := rw.Flush(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &Conn{
		conn:         conn,
		rw:           rw,
		readLimit:    cfg.ReadLimit,
		writeTimeout: cfg.WriteTimeout,
	}, nil
}

// Dial opens a client connection to a ws:// or wss:// URL.
func Dial(ctx context.Context, rawURL string, header http.Header, cfg Config) (*Conn, error) {
	cfg = normalizeConfig(cfg)
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse websocket url: %w", err)
	}

	var useTLS bool
	switch target.Scheme {
	case "ws", "http":
		target.Scheme = "http"
	case "wss", "https":
		target.Scheme = "https"
		useTLS = true
	default:
		return nil, fmt.Errorf("unsupported websocket scheme %q", target.Scheme)
	}
	addr := target.Host
	if target.Port() == "" {
		if useTLS {
			addr = net.JoinHostPort(target.Hostname(), "443")
		} else {
			addr = net.JoinHostPort(target.Hostname(), "80")
		}
	}

	var conn net.Conn
	if useTLS {
		dialer := &tls.Dialer{Config: &tls.Config{ServerName: target.Hostname(), MinVersion: tls.VersionTLS12}}
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	} else {
		var dialer net.Dialer
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	keyBytes := make([]byte, 16)
	if _, err := rand.Read(keyBytes); err != nil {
		_ = conn.Close()
		return nil, err
	}
	key := base64.StdEncoding.EncodeToString(keyBytes)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	for name, values := range header {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Sec-WebSocket-Key", key)
	req.Header.Set("Sec-WebSocket-Version", "13")
	if err := req.Write(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("write websocket handshake: %w", err)
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read websocket handshake: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		_ = conn.Close()
		return nil, &HandshakeError{StatusCode: resp.StatusCode}
	}
	if resp.Header.Get("Sec-WebSocket-Accept") != computeWebSocketAccept(key) {
		_ = conn.Close()
		return nil, fmt.Errorf("websocket handshake: bad accept key")
	}
	_ = conn.SetDeadline(time.Time{})

	return &Conn{
		conn:         conn,
		rw:           bufio.NewReadWriter(br, bufio.NewWriter(conn)),
		readLimit:    cfg.ReadLimit,
		writeTimeout: cfg.WriteTimeout,
		client:       true,
	}, nil
}

// HandshakeError reports a rejected upgrade.
type HandshakeError struct {
	StatusCode int
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("websocket handshake rejected with status %d", e.StatusCode)
}

func (c *Conn) Close() error {
	var err error
	c.closeMu.Do(func() {
		err = c.conn.Close()
	})
	return err
}

// CloseWithReason sends a close frame with code and reason, then closes the connection.
func (c *Conn) CloseWithReason(code uint16, reason string) error {
	payload := make([]byte, 2, 2+len(reason))
	binary.BigEndian.PutUint16(payload, code)
	payload = append(payload, reason...)
	_ = c.WriteFrame(OpClose, payload)
	return c.Close()
}

// SetReadDeadline bounds the next reads.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *Conn) WriteJSON(payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.WriteFrame(OpText, raw)
}

func (c *Conn) WriteFrame(opcode byte, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))

	header := make([]byte, 0, 14)
	header = append(header, 0x80|opcode)

	var maskBit byte
	if c.client {
		maskBit = 0x80
	}
	payloadLen := len(payload)
	switch {
	case payloadLen < 126:
		header = append(header, maskBit|byte(payloadLen))
	case payloadLen <= 65535:
		header = append(header, maskBit|126)
		var ext [2]byte
		binary.BigEndian.PutUint16(ext[:], uint16(payloadLen))
		header = append(header, ext[:]...)
	default:
		header = append(header, maskBit|127)
		var ext [8]byte
		binary.BigEndian.PutUint64(ext[:], uint64(payloadLen))
		header = append(header, ext[:]...)
	}

	if c.client {
		var mask [4]byte
		if _, err := rand.Read(mask[:]); err != nil {
			return err
		}
		header = append(header, mask[:]...)
		masked := make([]byte, payloadLen)
		for idx := range payload {
			masked[idx] = payload[idx] ^ mask[idx%4]
		}
		payload = masked
	}

	if _, err := c.rw.Write(header); err != nil {
		return err
	}
	if payloadLen > 0 {
		if _, err := c.rw.Write(payload); err != nil {
			return err
		}
	}
	return c.rw.Flush()
}

func (c *Conn) ReadFrame() (byte, []byte, error) {
	var header [2]byte
	if _, err := io.ReadFull(c.rw, header[:]); err != nil {
		return 0, nil, err
	}

	opcode := header[0] & 0x0F
	masked := (header[1] & 0x80) != 0
	payloadLen := int(header[1] & 0x7F)

	switch payloadLen {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(c.rw, ext[:]); err != nil {
			return 0, nil, err
		}
		payloadLen = int(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err := io.ReadFull(c.rw, ext[:]); err != nil {
			return 0, nil, err
		}
		size := binary.BigEndian.Uint64(ext[:])
		if size > uint64(c.readLimit) {
			return 0, nil, ErrFrameTooLarge
		}
		payloadLen = int(size)
	}

	if payloadLen > c.readLimit {
		return 0, nil, ErrFrameTooLarge
	}

	var mask [4]byte
	if masked {
		if _, err := io.ReadFull(c.rw, mask[:]); err != nil {
			return 0, nil, err
		}
	}

	payload := make([]byte, payloadLen)
	if payloadLen > 0 {
		if _, err := io.ReadFull(c.rw, payload); err != nil {
			return 0, nil, err
		}
	}

	if masked {
		for idx := 0; idx < payloadLen; idx++ {
			payload[idx] ^= mask[idx%4]
		}
	}

	return opcode, payload, nil
}

// ReadMessage returns the next data frame. Pings are answered, pongs skipped,
// and a close frame is echoed before ErrClosed is returned.
func (c *Conn) ReadMessage() ([]byte, error) {
	for {
		opcode, payload, err := c.ReadFrame()
		if err != nil {
			return nil, err
		}
		switch opcode {
		case OpText, OpBinary:
			return payload, nil
		case OpPing:
			if err := c.WriteFrame(OpPong, payload); err != nil {
				return nil, err
			}
		case OpPong:
		case OpClose:
			_ = c.WriteFrame(OpClose, nil)
			return nil, ErrClosed
		default:
			return nil, fmt.Errorf("unsupported websocket opcode 0x%x", opcode)
		}
	}
}

// ReadJSON decodes the next data frame into v.
func (c *Conn) ReadJSON(v interface{}) error {
	payload, err := c.ReadMessage()
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, v)
}

func normalizeConfig(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = defaults.ReadLimit
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	return cfg
}

func validateWebSocketHeaders(r *http.Request, cfg Config) error {
	if !headerHasToken(r.Header, "Connection", "upgrade") || !headerHasToken(r.Header, "Upgrade", "websocket") {
		return fmt.Errorf("websocket upgrade headers missing")
	}
	if strings.TrimSpace(r.Header.Get("Sec-WebSocket-Version")) != "13" {
		return fmt.Errorf("unsupported websocket version")
	}
	if strings.TrimSpace(r.Header.Get("Sec-WebSocket-Key")) == "" {
		return fmt.Errorf("missing websocket key")
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin != "" && !isAllowedOrigin(origin, cfg.AllowedOrigins) {
		return fmt.Errorf("websocket origin %q is not allowed", origin)
	}
	return nil
}

func isAllowedOrigin(origin string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, candidate := range allowed {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.EqualFold(candidate, origin) {
			return true
		}
		scheme, host, ok := strings.Cut(candidate, "://*.")
		if !ok {
			continue
		}
		prefix := scheme + "://"
		if strings.HasPrefix(origin, prefix) && strings.HasSuffix(strings.ToLower(origin), "."+strings.ToLower(host)) {
			return true
		}
	}
	return false
}

func headerHasToken(headers http.Header, key, expected string) bool {
	for _, value := range headers.Values(key) {
		for _, token := range strings.Split(value, ",") {
			if strings.EqualFold(strings.TrimSpace(token), expected) {
				return true
			}
		}
	}
	return false
}

func computeWebSocketAccept(secKey string) string {
	sum := sha1.Sum([]byte(secKey + websocketMagicGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}
