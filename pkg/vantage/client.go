package vantage

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	disconnected uint32 = 0
	connecting   uint32 = 1
	connected    uint32 = 2
)

// DiagnosticCallback receives every unsolicited line read from the
// controller: status reports, event-log output and anything else the
// firmware decides to print.
type DiagnosticCallback func(line string)

// Client is the interface definition as used by this library, the interface
// is primarily to allow mocking tests.
type Client interface {
	// Connect dials the host-command port, performs the LOGIN exchange when
	// credentials are configured and enables status and event-log
	// monitoring.
	Connect() error
	// Disconnect closes the connection and stops the read loop.
	Disconnect() error
	// IsConnected reports whether the session is established.
	IsConnected() bool

	// GetLoadLevel queries the current level (percent) of one load.
	GetLoadLevel(id int) (float64, error)
	// QueryAll queries the level of every given load over the existing
	// session. The result is complete or the call fails.
	QueryAll(ids []int) ([]LoadLevel, error)
	// SetLoadLevel commands one load to the given level (percent).
	SetLoadLevel(id int, level float64) error

	DiagnosticSubscribe(id string, callback DiagnosticCallback) error
	DiagnosticUnsubscribe(id string) error
}

// client implements the host-command protocol: newline-terminated commands,
// "R:" prefixed replies, "S:" status reports and "EL:" event-log lines
// interleaved on the same stream.
type client struct {
	// status is written by the read loop goroutine when the stream dies, so
	// every access goes through atomics.
	status  atomic.Uint32
	options ClientOptions

	conn       net.Conn
	writeMutex sync.Mutex

	pending      map[string]chan string
	pendingMutex sync.Mutex

	callbacks     map[string]DiagnosticCallback
	callbackMutex sync.Mutex
}

// NewClient will create a Vantage client with all the options specified in
// the provided ClientOptions. The client must have the Connect() method
// called on it before it may be used.
func NewClient(options *ClientOptions) Client {
	return &client{
		options:   *options,
		pending:   map[string]chan string{},
		callbacks: map[string]DiagnosticCallback{},
	}
}

func (c *client) Connect() error {
	if c.status.Load() == connected {
		// Already connected to the controller.
		return nil
	}
	c.status.Store(connecting)

	address := net.JoinHostPort(c.options.Host, strconv.Itoa(c.options.Port))
	log.Info().Str("address", address).Msg("Connecting to Vantage controller.")
	conn, err := net.DialTimeout("tcp", address, c.options.ConnectTimeout)
	if err != nil {
		c.status.Store(disconnected)
		return fmt.Errorf("unable to connect to Vantage controller: %w", err)
	}
	c.conn = conn

	go c.readLoop()

	if c.options.Username != "" {
		command := fmt.Sprintf("LOGIN %s %s", c.options.Username, c.options.Password)
		if _, err := c.request(command, "LOGIN"); err != nil {
			c.conn.Close()
			c.status.Store(disconnected)
			return fmt.Errorf("login to Vantage controller failed: %w", err)
		}
	}

	// Enable unsolicited load status reports and the event log tap. The
	// replies are routed to the diagnostic stream and ignored.
	for _, command := range []string{"STATUS LOAD", "ELENABLE STATUS ON", "ELLOG STATUS ON"} {
		if err := c.writeLine(command); err != nil {
			c.conn.Close()
			c.status.Store(disconnected)
			return fmt.Errorf("error enabling controller monitoring: %w", err)
		}
	}

	c.status.Store(connected)
	return nil
}

func (c *client) Disconnect() error {
	if c.status.Load() == disconnected {
		// Already disconnected.
		return nil
	}
	c.status.Store(disconnected)
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("error closing connection to Vantage controller: %w", err)
	}
	return nil
}

func (c *client) IsConnected() bool {
	return c.status.Load() == connected
}

func (c *client) GetLoadLevel(id int) (float64, error) {
	reply, err := c.request(fmt.Sprintf("GETLOAD %d", id), fmt.Sprintf("GETLOAD %d", id))
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(reply)
	if len(fields) < 3 {
		return 0, fmt.Errorf("malformed GETLOAD reply: %q", reply)
	}
	level, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return 0, fmt.Errorf("malformed level in GETLOAD reply %q: %w", reply, err)
	}
	return level, nil
}

func (c *client) QueryAll(ids []int) ([]LoadLevel, error) {
	levels := make([]LoadLevel, 0, len(ids))
	for _, id := range ids {
		level, err := c.GetLoadLevel(id)
		if err != nil {
			return nil, fmt.Errorf("error querying load %d: %w", id, err)
		}
		levels = append(levels, LoadLevel{Id: id, Level: level})
	}
	return levels, nil
}

func (c *client) SetLoadLevel(id int, level float64) error {
	if level < 0 {
		level = 0
	} else if level > 100 {
		level = 100
	}
	command := fmt.Sprintf("LOAD %d %.1f", id, level)
	_, err := c.request(command, fmt.Sprintf("LOAD %d", id))
	return err
}

func (c *client) DiagnosticSubscribe(id string, callback DiagnosticCallback) error {
	c.callbackMutex.Lock()
	defer c.callbackMutex.Unlock()
	if _, exists := c.callbacks[id]; exists {
		return errors.New("diagnostic callback with id " + id + " already exists")
	}
	c.callbacks[id] = callback
	return nil
}

func (c *client) DiagnosticUnsubscribe(id string) error {
	c.callbackMutex.Lock()
	defer c.callbackMutex.Unlock()
	if _, exists := c.callbacks[id]; !exists {
		return errors.New("diagnostic callback with id " + id + " does not exist")
	}
	delete(c.callbacks, id)
	return nil
}

// request writes one command and waits for the "R:<replyKey>" reply.
func (c *client) request(command string, replyKey string) (string, error) {
	reply := make(chan string, 1)

	c.pendingMutex.Lock()
	if _, exists := c.pending[replyKey]; exists {
		c.pendingMutex.Unlock()
		return "", fmt.Errorf("request already in flight for %q", replyKey)
	}
	c.pending[replyKey] = reply
	c.pendingMutex.Unlock()

	defer func() {
		c.pendingMutex.Lock()
		delete(c.pending, replyKey)
		c.pendingMutex.Unlock()
	}()

	if err := c.writeLine(command); err != nil {
		return "", err
	}

	select {
	case line := <-reply:
		return line, nil
	case <-time.After(c.options.RequestTimeout):
		return "", fmt.Errorf("timeout waiting for reply to %q", command)
	}
}

func (c *client) writeLine(line string) error {
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	if c.conn == nil {
		return errors.New("not connected to Vantage controller")
	}
	if _, err := c.conn.Write([]byte(line + "\r\n")); err != nil {
		return fmt.Errorf("error writing to Vantage controller: %w", err)
	}
	return nil
}

// readLoop reads the stream line by line. Replies are matched against
// pending requests, everything else goes to the diagnostic subscribers.
func (c *client) readLoop() {
	scanner := bufio.NewScanner(c.conn)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		log.Trace().Str("line", line).Msg("Controller line received.")

		if strings.HasPrefix(line, "R:") && c.dispatchReply(line) {
			continue
		}
		c.dispatchDiagnostic(line)
	}
	if err := scanner.Err(); err != nil && c.status.Load() == connected {
		log.Error().Err(err).Msg("Controller stream reading error.")
	}
	c.status.Store(disconnected)
	log.Warn().Msg("Closing controller stream reader.")
}

func (c *client) dispatchReply(line string) bool {
	body := strings.TrimSpace(line[len("R:"):])

	c.pendingMutex.Lock()
	defer c.pendingMutex.Unlock()
	for key, reply := range c.pending {
		if body == key || strings.HasPrefix(body, key+" ") {
			select {
			case reply <- body:
			default:
			}
			return true
		}
	}
	return false
}

func (c *client) dispatchDiagnostic(line string) {
	c.callbackMutex.Lock()
	callbacks := make([]DiagnosticCallback, 0, len(c.callbacks))
	for _, callback := range c.callbacks {
		callbacks = append(callbacks, callback)
	}
	c.callbackMutex.Unlock()

	for _, callback := range callbacks {
		callback(line)
	}
}
