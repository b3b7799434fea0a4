// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
)

type receivedMessage struct {
	From string
	To   []string
	Data string
}

// testSMTPServer is a minimal SMTP server on a random port. It accepts any
// number of connections and only implements the commands the sender uses.
type testSMTPServer struct {
	Host string
	Port int

	// Credentials enables AUTH PLAIN when non-empty ("user:pass").
	Credentials string
	// RejectRcpt makes RCPT TO fail for matching addresses.
	RejectRcpt func(addr string) bool

	ln       net.Listener
	wg       sync.WaitGroup
	mu       sync.Mutex
	conns    []net.Conn
	accepted int
	messages []receivedMessage
}

func startTestSMTPServer(t *testing.T, configure ...func(*testSMTPServer)) *testSMTPServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	s := &testSMTPServer{ln: ln, Host: "127.0.0.1", Port: ln.Addr().(*net.TCPAddr).Port}
	for _, c := range configure {
		c(s)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.conns = append(s.conns, conn)
			s.accepted++
			s.mu.Unlock()
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.serve(conn)
			}()
		}
	}()

	t.Cleanup(s.stop)
	return s
}

func (s *testSMTPServer) stop() {
	_ = s.ln.Close()
	s.mu.Lock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *testSMTPServer) Messages() []receivedMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]receivedMessage(nil), s.messages...)
}

func (s *testSMTPServer) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

func (s *testSMTPServer) serve(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	fmt.Fprintf(conn, "220 localhost Test SMTP Service Ready\r\n")

	var current receivedMessage
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "EHLO"), strings.HasPrefix(upper, "HELO"):
			if s.Credentials != "" {
				fmt.Fprintf(conn, "250-localhost Hello\r\n250-AUTH PLAIN\r\n250 OK\r\n")
			} else {
				fmt.Fprintf(conn, "250-localhost Hello\r\n250 OK\r\n")
			}
		case strings.HasPrefix(upper, "AUTH PLAIN"):
			fields := strings.Fields(line)
			ok := false
			if len(fields) == 3 {
				raw, _ := base64.StdEncoding.DecodeString(fields[2])
				parts := strings.Split(string(raw), "\x00")
				ok = len(parts) == 3 && parts[1]+":"+parts[2] == s.Credentials
			}
			if ok {
				fmt.Fprintf(conn, "235 2.7.0 Authentication successful\r\n")
			} else {
				fmt.Fprintf(conn, "535 5.7.8 Authentication credentials invalid\r\n")
			}
		case strings.HasPrefix(upper, "MAIL FROM:"):
			current = receivedMessage{From: addrOf(line)}
			fmt.Fprintf(conn, "250 OK\r\n")
		case strings.HasPrefix(upper, "RCPT TO:"):
			addr := addrOf(line)
			if s.RejectRcpt != nil && s.RejectRcpt(addr) {
				fmt.Fprintf(conn, "550 5.1.1 No such user\r\n")
				continue
			}
			current.To = append(current.To, addr)
			fmt.Fprintf(conn, "250 OK\r\n")
		case upper == "DATA":
			fmt.Fprintf(conn, "354 End data with <CR><LF>.<CR><LF>\r\n")
			var b strings.Builder
			for {
				dline, derr := r.ReadString('\n')
				if derr != nil {
					return
				}
				if strings.TrimRight(dline, "\r\n") == "." {
					break
				}
				b.WriteString(dline)
			}
			current.Data = b.String()
			s.mu.Lock()
			s.messages = append(s.messages, current)
			s.mu.Unlock()
			fmt.Fprintf(conn, "250 OK: queued as 12345\r\n")
		case upper == "RSET", upper == "NOOP":
			fmt.Fprintf(conn, "250 OK\r\n")
		case upper == "QUIT":
			fmt.Fprintf(conn, "221 Bye\r\n")
			return
		default:
			fmt.Fprintf(conn, "250 OK\r\n")
		}
	}
}

func addrOf(line string) string {
	start := strings.Index(line, "<")
	end := strings.Index(line, ">")
	if start < 0 || end < start {
		return ""
	}
	return line[start+1 : end]
}
