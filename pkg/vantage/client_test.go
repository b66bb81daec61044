package vantage

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeController speaks just enough of the host-command protocol for the
// client tests: it answers GETLOAD and LOAD and can push unsolicited lines.
type fakeController struct {
	listener net.Listener
	lines    chan string

	conn net.Conn
}

func newFakeController(t *testing.T) *fakeController {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	f := &fakeController{listener: listener, lines: make(chan string, 16)}
	go f.serve()
	t.Cleanup(func() { listener.Close() })
	return f
}

func (f *fakeController) serve() {
	conn, err := f.listener.Accept()
	if err != nil {
		return
	}
	f.conn = conn
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		f.lines <- line
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "GETLOAD":
			conn.Write([]byte("R:GETLOAD " + fields[1] + " 75.0\r\n"))
		case "LOAD":
			conn.Write([]byte("R:LOAD " + fields[1] + "\r\n"))
		}
	}
}

func (f *fakeController) push(line string) {
	f.conn.Write([]byte(line + "\r\n"))
}

func (f *fakeController) address() (string, int) {
	addr := f.listener.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func newConnectedClient(t *testing.T, f *fakeController) Client {
	host, port := f.address()
	client := NewClient(NewClientOptions().SetHost(host).SetPort(port))
	require.NoError(t, client.Connect())
	t.Cleanup(func() { client.Disconnect() })
	return client
}

func TestClientConnectEnablesMonitoring(t *testing.T) {
	f := newFakeController(t)
	client := newConnectedClient(t, f)
	assert.True(t, client.IsConnected())

	expected := []string{"STATUS LOAD", "ELENABLE STATUS ON", "ELLOG STATUS ON"}
	for _, command := range expected {
		select {
		case line := <-f.lines:
			assert.Equal(t, command, line)
		case <-time.After(2 * time.Second):
			t.Fatalf("controller never received %q", command)
		}
	}
}

func TestClientGetLoadLevel(t *testing.T) {
	f := newFakeController(t)
	client := newConnectedClient(t, f)

	level, err := client.GetLoadLevel(118)
	assert.NoError(t, err)
	assert.Equal(t, 75.0, level)
}

func TestClientQueryAll(t *testing.T) {
	f := newFakeController(t)
	client := newConnectedClient(t, f)

	levels, err := client.QueryAll([]int{42, 118})
	assert.NoError(t, err)
	assert.Equal(t, []LoadLevel{{Id: 42, Level: 75.0}, {Id: 118, Level: 75.0}}, levels)
}

func TestClientSetLoadLevelClamps(t *testing.T) {
	f := newFakeController(t)
	client := newConnectedClient(t, f)

	// Drain the monitoring commands first.
	for i := 0; i < 3; i++ {
		<-f.lines
	}

	assert.NoError(t, client.SetLoadLevel(118, 250))
	select {
	case line := <-f.lines:
		assert.Equal(t, "LOAD 118 100.0", line)
	case <-time.After(2 * time.Second):
		t.Fatal("controller never received the LOAD command")
	}
}

func TestClientSurvivesServerSideClose(t *testing.T) {
	f := newFakeController(t)
	client := newConnectedClient(t, f)

	// Wait for the monitoring commands so the fake has accepted the
	// connection before closing it.
	for i := 0; i < 3; i++ {
		<-f.lines
	}

	// Poll the connection state from another goroutine while the stream
	// dies under the read loop; exercised under the race detector.
	done := make(chan struct{})
	go func() {
		defer close(done)
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if !client.IsConnected() {
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	f.conn.Close()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("client never noticed the dropped connection")
	}
	assert.False(t, client.IsConnected())
	assert.NoError(t, client.Disconnect())
}

func TestClientDispatchesDiagnosticLines(t *testing.T) {
	f := newFakeController(t)
	client := newConnectedClient(t, f)

	// Wait for the monitoring commands so the fake has accepted the
	// connection before pushing lines back.
	for i := 0; i < 3; i++ {
		<-f.lines
	}

	received := make(chan string, 1)
	require.NoError(t, client.DiagnosticSubscribe("test", func(line string) {
		select {
		case received <- line:
		default:
		}
	}))
	assert.Error(t, client.DiagnosticSubscribe("test", func(string) {}))

	f.push("EL: 301 Button.GetState 1")
	select {
	case line := <-received:
		assert.Equal(t, "EL: 301 Button.GetState 1", line)
	case <-time.After(2 * time.Second):
		t.Fatal("diagnostic line never dispatched")
	}

	assert.NoError(t, client.DiagnosticUnsubscribe("test"))
	assert.Error(t, client.DiagnosticUnsubscribe("test"))
}
