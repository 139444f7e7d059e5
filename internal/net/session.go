package net

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// MaxLineLength bounds a single console command line.
const MaxLineLength = 4096

const writeTimeout = 10 * time.Second

// Session is a single operator console connection. Network I/O runs in
// dedicated goroutines; Send and FlushOutput belong to the game loop.
type Session struct {
	ID   uint64
	conn net.Conn
	IP   string

	InQueue  chan string // game loop reads command lines from here
	OutQueue chan string // writer goroutine reads from here

	outBuf []string // buffered replies, flushed by OutputSystem (game loop only)

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	onClose   func(id uint64)

	log *zap.Logger
}

func NewSession(conn net.Conn, id uint64, inSize, outSize int, log *zap.Logger) *Session {
	return &Session{
		ID:       id,
		conn:     conn,
		IP:       conn.RemoteAddr().String(),
		InQueue:  make(chan string, inSize),
		OutQueue: make(chan string, outSize),
		closeCh:  make(chan struct{}),
		log:      log.With(zap.Uint64("session", id)),
	}
}

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Send buffers a reply line. It is not written until FlushOutput runs.
func (s *Session) Send(line string) {
	if s.closed.Load() {
		return
	}
	s.outBuf = append(s.outBuf, line)
}

// FlushOutput drains the output buffer to OutQueue for the writeLoop goroutine.
// Non-blocking: if OutQueue is full, the session is disconnected.
func (s *Session) FlushOutput() {
	for _, line := range s.outBuf {
		select {
		case s.OutQueue <- line:
		default:
			s.log.Warn("console output queue full, disconnecting")
			s.Close()
			s.outBuf = s.outBuf[:0]
			return
		}
	}
	s.outBuf = s.outBuf[:0]
}

// Pending returns the number of buffered, unflushed replies.
func (s *Session) Pending() int { return len(s.outBuf) }

// Close shuts the session down. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.closeCh)
		s.conn.Close()
		if s.onClose != nil {
			s.onClose(s.ID)
		}
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// readLoop reads newline-terminated commands and pushes non-empty ones onto
// InQueue. It blocks while InQueue is full.
func (s *Session) readLoop() {
	defer s.Close()

	sc := bufio.NewScanner(s.conn)
	sc.Buffer(make([]byte, 0, 256), MaxLineLength)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		select {
		case s.InQueue <- line:
		case <-s.closeCh:
			return
		}
	}
	if err := sc.Err(); err != nil && !s.closed.Load() {
		s.log.Debug("console read error", zap.Error(err))
	}
}

func (s *Session) writeLoop() {
	defer s.Close()

	w := bufio.NewWriter(s.conn)
	for {
		select {
		case line := <-s.OutQueue:
			if !s.writeLine(w, line) {
				return
			}
			for len(s.OutQueue) > 0 {
				if !s.writeLine(w, <-s.OutQueue) {
					return
				}
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := w.Flush(); err != nil {
				if !s.closed.Load() {
					s.log.Debug("console write error", zap.Error(err))
				}
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

func (s *Session) writeLine(w *bufio.Writer, line string) bool {
	if _, err := w.WriteString(line); err != nil {
		return false
	}
	return w.WriteByte('\n') == nil
}
