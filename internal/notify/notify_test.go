package notify

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illegalcall/linkbio/internal/config"
)

// mockSMTPServer accepts one conversation per connection and hands the
// transcript to the test.
type mockSMTPServer struct {
	listener net.Listener
	messages chan string
}

func newMockSMTPServer(t *testing.T) *mockSMTPServer {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &mockSMTPServer{listener: ln, messages: make(chan string, 4)}
	go s.listenAndServe()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *mockSMTPServer) port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

func (s *mockSMTPServer) listenAndServe() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConnection(conn)
	}
}

func (s *mockSMTPServer) handleConnection(conn net.Conn) {
	defer conn.Close()
	conn.Write([]byte("220 mock.smtp.server Service Ready\r\n"))

	scanner := bufio.NewScanner(conn)
	var builder strings.Builder
	inData := false
	for scanner.Scan() {
		line := scanner.Text()
		builder.WriteString(line + "\n")
		if inData {
			if line == "." {
				inData = false
				conn.Write([]byte("250 OK: queued as 12345\r\n"))
			}
			continue
		}
		switch {
		case strings.HasPrefix(line, "EHLO"), strings.HasPrefix(line, "HELO"):
			conn.Write([]byte("250-mock.smtp.server Hello\r\n250 AUTH LOGIN PLAIN\r\n"))
		case strings.HasPrefix(line, "AUTH"):
			conn.Write([]byte("235 Authentication succeeded\r\n"))
		case strings.HasPrefix(line, "MAIL FROM:"), strings.HasPrefix(line, "RCPT TO:"):
			conn.Write([]byte("250 OK\r\n"))
		case strings.HasPrefix(line, "DATA"):
			inData = true
			conn.Write([]byte("354 End data with <CR><LF>.<CR><LF>\r\n"))
		case strings.HasPrefix(line, "QUIT"):
			conn.Write([]byte("221 Bye\r\n"))
			s.messages <- builder.String()
			return
		default:
			conn.Write([]byte("250 OK\r\n"))
		}
	}
}

func newNotifier(t *testing.T, port int) *SMTPNotifier {
	n, err := NewSMTPNotifier(config.EmailConfig{
		From:     "tips@example.com",
		Password: "password",
		Host:     "127.0.0.1",
		Port:     port,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return n
}

func TestTipReceived(t *testing.T) {
	server := newMockSMTPServer(t)
	n := newNotifier(t, server.port())

	err := n.TipReceived(context.Background(), "creator@example.com", TipNotice{
		RecipientName: "Alice",
		Amount:        "5.00 USD",
		NetAmount:     "4.50 USD",
		PayerEmail:    "fan@example.com",
	})
	require.NoError(t, err)

	select {
	case transcript := <-server.messages:
		assert.Contains(t, transcript, "RCPT TO:<creator@example.com>")
		assert.Contains(t, transcript, "To: creator@example.com")
		assert.Contains(t, transcript, "Subject: You received a tip!")
		assert.Contains(t, transcript, "Hi Alice")
		assert.Contains(t, transcript, "5.00 USD")
		assert.Contains(t, transcript, "4.50 USD")
		assert.Contains(t, transcript, "fan@example.com")
	case <-time.After(2 * time.Second):
		t.Fatal("mock SMTP server did not receive a message")
	}
}

func TestTipReceivedEscapesContent(t *testing.T) {
	server := newMockSMTPServer(t)
	n := newNotifier(t, server.port())

	require.NoError(t, n.TipReceived(context.Background(), "creator@example.com", TipNotice{
		RecipientName: "<script>alert(1)</script>",
		Amount:        "1.00 USD",
	}))

	transcript := <-server.messages
	assert.NotContains(t, transcript, "<script>")
	assert.Contains(t, transcript, "&lt;script&gt;")
}

func TestTipReceivedRejectsBadRecipients(t *testing.T) {
	n := newNotifier(t, 1)
	assert.Error(t, n.TipReceived(context.Background(), "", TipNotice{}))
	assert.Error(t, n.TipReceived(context.Background(), "a@example.com\r\nBcc: x@example.com", TipNotice{}))
}

func TestTipReceivedServerUnavailable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	n := newNotifier(t, port)
	err = n.TipReceived(context.Background(), "creator@example.com", TipNotice{Amount: "1.00 USD"})
	assert.ErrorContains(t, err, "failed to send email")
}

func TestFormatAmount(t *testing.T) {
	tests := map[int64]string{500: "5.00 USD", 450: "4.50 USD", 5: "0.05 USD", 0: "0.00 USD", -150: "-1.50 USD"}
	for minor, want := range tests {
		assert.Equal(t, want, FormatAmount(minor, "usd"), strconv.FormatInt(minor, 10))
	}
}
