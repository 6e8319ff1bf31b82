// ABOUTME: WebSocket client for controlling a running player
// ABOUTME: Handles connection, handshake, commands, and status routing
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/Resonate-Protocol/etabla-go/internal/discovery"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ClientConfig holds client configuration
type ClientConfig struct {
	Addr     string // host:port
	Path     string // default: /etabla
	Name     string
	ClientID string // default: random
}

// Client is a remote controller connection
type Client struct {
	config ClientConfig
	conn   *websocket.Conn
	hello  ServerHello
	mu     sync.RWMutex

	// Message channels
	Statuses chan StatusPayload
	Errors   chan ErrorPayload

	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// Dial connects to a player and performs the handshake
func Dial(ctx context.Context, config ClientConfig) (*Client, error) {
	if config.Path == "" {
		config.Path = discovery.Path
	}
	if config.ClientID == "" {
		config.ClientID = uuid.NewString()
	}

	u := url.URL{Scheme: "ws", Host: config.Addr, Path: config.Path}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	cctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		config:    config,
		conn:      conn,
		Statuses:  make(chan StatusPayload, 16),
		Errors:    make(chan ErrorPayload, 4),
		connected: true,
		ctx:       cctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	if err := c.handshake(); err != nil {
		c.Close()
		close(c.done)
		return nil, fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()

	return c, nil
}

func (c *Client) handshake() error {
	hello := ClientHello{
		ClientID: c.config.ClientID,
		Name:     c.config.Name,
		Version:  ProtocolVersion,
	}
	if err := c.send(Message{Type: TypeHello, Payload: hello}); err != nil {
		return fmt.Errorf("failed to send %s: %w", TypeHello, err)
	}

	c.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer c.conn.SetReadDeadline(time.Time{})

	var msg envelope
	if err := c.conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("failed to read %s: %w", TypeServerHello, err)
	}

	switch msg.Type {
	case TypeServerHello:
	case TypeError:
		var e ErrorPayload
		json.Unmarshal(msg.Payload, &e)
		return fmt.Errorf("rejected: %s", e.Message)
	default:
		return fmt.Errorf("expected %s, got %s", TypeServerHello, msg.Type)
	}

	if err := json.Unmarshal(msg.Payload, &c.hello); err != nil {
		return fmt.Errorf("failed to parse %s: %w", TypeServerHello, err)
	}

	log.Printf("Handshake complete with %s", c.hello.Name)
	return nil
}

// Hello returns the player's handshake response
func (c *Client) Hello() ServerHello {
	return c.hello
}

// Done is closed when the connection ends
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Play asks the player to start
func (c *Client) Play() error {
	return c.send(Message{Type: TypePlay})
}

// Stop asks the player to stop
func (c *Client) Stop() error {
	return c.send(Message{Type: TypeStop})
}

// Toggle asks the player to toggle playback
func (c *Client) Toggle() error {
	return c.send(Message{Type: TypeToggle})
}

// SendRequest changes the player's request
func (c *Client) SendRequest(patch RequestPatch) error {
	return c.send(Message{Type: TypeRequest, Payload: patch})
}

func (c *Client) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return fmt.Errorf("not connected")
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return c.conn.WriteJSON(msg)
}

// readMessages reads and routes incoming messages
func (c *Client) readMessages() {
	defer close(c.done)
	defer c.Close()

	for {
		var msg envelope
		if err := c.conn.ReadJSON(&msg); err != nil {
			select {
			case <-c.ctx.Done():
			default:
				log.Printf("Read error: %v", err)
			}
			return
		}

		switch msg.Type {
		case TypeStatus:
			var st StatusPayload
			if err := json.Unmarshal(msg.Payload, &st); err != nil {
				log.Printf("Failed to parse status: %v", err)
				continue
			}
			c.deliverStatus(st)

		case TypeError:
			var e ErrorPayload
			json.Unmarshal(msg.Payload, &e)
			select {
			case c.Errors <- e:
			default:
				log.Printf("Player error: %s: %s", e.Error, e.Message)
			}

		default:
			log.Printf("Unknown message type: %s", msg.Type)
		}
	}
}

// deliverStatus keeps only the newest statuses when the reader falls behind
func (c *Client) deliverStatus(st StatusPayload) {
	for {
		select {
		case c.Statuses <- st:
			return
		case <-c.ctx.Done():
			return
		default:
		}
		select {
		case <-c.Statuses:
		default:
		}
	}
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.conn.Close()
	}
}
