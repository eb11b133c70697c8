// Package transport owns the WebSocket connection to the server: the
// URL/handshake, a single-writer send loop (gorilla/websocket forbids
// concurrent writes on one connection), and an ordered receive loop that
// decompresses and hands decoded ServerMessages to a caller-supplied
// sink, preserving the order the server sent them in.
package transport

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/replistream/client-go/internal/logging"
	"github.com/replistream/client-go/protocol"
	"github.com/replistream/client-go/stats"
)

// Sink receives decoded server messages, in order, from the receive
// loop's own goroutine. Implementations must not block for long, since
// the receive loop does not read ahead.
type Sink interface {
	HandleMessage(protocol.ServerMessage)
	HandleClose(err error)
}

// Config configures a Connection. Following the teacher's
// ManagerConfig/PoolConfig shape: a struct of fields plus a
// DefaultConfig constructor.
type Config struct {
	URI         string
	ModuleName  string
	Token       string
	Compression protocol.Compression
	LightMode   bool
	Logger      logging.Logger

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// DefaultConfig returns a Config with conservative timeouts, leaving
// URI/ModuleName/Token for the caller to set.
func DefaultConfig() Config {
	return Config{
		Compression:      protocol.CompressionNone,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}

// Connection is one WebSocket connection to the server.
type Connection struct {
	cfg  Config
	log  logging.Logger
	conn *websocket.Conn

	connectionID [16]byte

	writeMu sync.Mutex // gorilla/websocket: at most one concurrent writer

	closeOnce sync.Once
	closeCh   chan struct{}

	counters stats.Counters
}

// Dial opens the WebSocket connection and generates a fresh connection
// id (a random UUID, truncated to its 16 raw bytes — the wire type is a
// 128-bit ConnectionId newtype, not a formatted UUID string).
func Dial(cfg Config, sink Sink) (*Connection, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("transport: generating connection id: %w", err)
	}

	endpoint, err := BuildURL(cfg.URI, cfg.ModuleName, hex.EncodeToString(id[:]), cfg.Compression, cfg.LightMode)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
		Subprotocols:     []string{Subprotocol},
	}

	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	}

	wsConn, _, err := dialer.Dial(endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("transport: dial: %w", err)
	}

	c := &Connection{
		cfg:          cfg,
		log:          logging.Default(cfg.Logger),
		conn:         wsConn,
		connectionID: id,
		closeCh:      make(chan struct{}),
	}

	go c.receiveLoop(sink)

	return c, nil
}

func (c *Connection) ConnectionID() [16]byte { return c.connectionID }

// Send compresses and frames msg, then writes it as a single binary
// WebSocket message. Safe for concurrent use: writes serialize on
// writeMu, since gorilla/websocket connections support only one writer
// at a time.
func (c *Connection) Send(msg protocol.ClientMessage) error {
	payload := protocol.EncodeClientMessage(msg)
	framed, err := protocol.EncodeFrame(c.cfg.Compression, payload)
	if err != nil {
		return fmt.Errorf("transport: encoding frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.cfg.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, framed); err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}

	c.counters.AddSent(uint64(len(framed)))
	return nil
}

// receiveLoop reads frames one at a time and delivers them to sink in
// order, on this single goroutine, so a caller's table-cache mutations
// never race against each other across two messages.
func (c *Connection) receiveLoop(sink Sink) {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			sink.HandleClose(err)
			return
		}

		c.counters.AddReceived(uint64(len(raw)))

		payload, err := protocol.DecodeFrame(raw)
		if err != nil {
			c.log.Warn("transport: dropping frame that failed to decompress", "err", err)
			continue
		}

		msg, err := protocol.DecodeServerMessage(payload)
		if err != nil {
			c.log.Warn("transport: dropping frame that failed to decode", "err", err)
			continue
		}

		sink.HandleMessage(msg)
	}
}

// Close closes the underlying WebSocket connection. Safe to call more
// than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}

// Stats returns a snapshot of this connection's byte/message counters.
func (c *Connection) Stats() *stats.Counters { return &c.counters }
