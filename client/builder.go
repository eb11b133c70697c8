package client

import (
	"github.com/replistream/client-go/internal/logging"
	"github.com/replistream/client-go/protocol"
	"github.com/replistream/client-go/transport"
)

// Builder collects connection parameters and lifecycle callbacks before
// Build dials the server.
type Builder struct {
	uri         string
	moduleName  string
	token       string
	compression protocol.Compression
	lightMode   bool
	logger      logging.Logger

	onConnect      []func()
	onConnectError []func(error)
	onDisconnect   []func(error)
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) WithURI(uri string) *Builder            { b.uri = uri; return b }
func (b *Builder) WithModuleName(name string) *Builder    { b.moduleName = name; return b }
func (b *Builder) WithToken(token string) *Builder        { b.token = token; return b }
func (b *Builder) WithLightMode(on bool) *Builder         { b.lightMode = on; return b }
func (b *Builder) WithLogger(log logging.Logger) *Builder { b.logger = log; return b }

func (b *Builder) WithCompression(c protocol.Compression) *Builder {
	b.compression = c
	return b
}

// OnConnect registers a callback fired once the server's InitialConnection
// message arrives.
func (b *Builder) OnConnect(fn func()) *Builder {
	b.onConnect = append(b.onConnect, fn)
	return b
}

// OnConnectError registers a callback fired if the connection fails
// before or is torn down after a successful handshake.
func (b *Builder) OnConnectError(fn func(error)) *Builder {
	b.onConnectError = append(b.onConnectError, fn)
	return b
}

// OnDisconnect registers a callback fired when the connection ends, by
// either Disconnect or a transport failure.
func (b *Builder) OnDisconnect(fn func(error)) *Builder {
	b.onDisconnect = append(b.onDisconnect, fn)
	return b
}

// Build dials the server and returns a live Connection. The transport's
// receive loop begins delivering messages to it immediately.
func (b *Builder) Build() (*Connection, error) {
	log := logging.Default(b.logger)

	cfg := transport.DefaultConfig()
	cfg.URI = b.uri
	cfg.ModuleName = b.moduleName
	cfg.Token = b.token
	cfg.Compression = b.compression
	cfg.LightMode = b.lightMode
	cfg.Logger = log

	conn := newConnection(nil, log)
	conn.onConnect = b.onConnect
	conn.onConnectError = b.onConnectError
	conn.onDisconnect = b.onDisconnect

	t, err := transport.Dial(cfg, conn)
	if err != nil {
		for _, fn := range b.onConnectError {
			fn(&ConnectionError{Err: err})
		}
		return nil, err
	}
	conn.t = t

	return conn, nil
}
