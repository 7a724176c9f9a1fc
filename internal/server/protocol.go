package server

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/coder/websocket"
)

// MaxFrameSize caps a single framed message at 1 MiB. A declared length of
// zero or above the cap is a protocol violation and terminates the stream
// without reading the payload.
const MaxFrameSize = 1 << 20

var (
	ErrEmptyFrame    = errors.New("declared frame length is zero")
	ErrFrameTooLarge = errors.New("declared frame length exceeds maximum")
)

// readFrame reads one length-prefixed message: a 4-byte big-endian length
// followed by exactly that many payload bytes. io.ReadFull loops partial
// reads until the frame is complete or the stream closes.
func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(lenBuf[:])
	if length == 0 {
		return nil, ErrEmptyFrame
	}
	if length > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// writeFrame sends the length prefix and payload, looping partial writes
// until everything is on the wire or the stream reports an error.
func writeFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyFrame
	}
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if err := writeFull(w, lenBuf[:]); err != nil {
		return err
	}
	return writeFull(w, payload)
}

func writeFull(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

// endpoint is one client's message stream. The TCP transport frames messages
// with the length prefix; the websocket transport relies on websocket frames
// for delimiting. The router cannot tell the two apart.
//
// WriteMessage must be safe for concurrent use: broadcasts and peer
// notifications originate from other connections' handlers.
type endpoint interface {
	ReadMessage() ([]byte, error)
	WriteMessage(payload []byte) error
	Close() error
	RemoteAddr() string
}

type tcpEndpoint struct {
	conn net.Conn
	wmu  sync.Mutex
}

func newTCPEndpoint(conn net.Conn) *tcpEndpoint {
	return &tcpEndpoint{conn: conn}
}

func (e *tcpEndpoint) ReadMessage() ([]byte, error) {
	return readFrame(e.conn)
}

func (e *tcpEndpoint) WriteMessage(payload []byte) error {
	e.wmu.Lock()
	defer e.wmu.Unlock()
	return writeFrame(e.conn, payload)
}

func (e *tcpEndpoint) Close() error {
	return e.conn.Close()
}

func (e *tcpEndpoint) RemoteAddr() string {
	return e.conn.RemoteAddr().String()
}

type wsEndpoint struct {
	conn   *websocket.Conn
	ctx    context.Context
	remote string
	wmu    sync.Mutex
}

func newWSEndpoint(ctx context.Context, conn *websocket.Conn, remote string) *wsEndpoint {
	conn.SetReadLimit(MaxFrameSize)
	return &wsEndpoint{conn: conn, ctx: ctx, remote: remote}
}

func (e *wsEndpoint) ReadMessage() ([]byte, error) {
	for {
		msgType, data, err := e.conn.Read(e.ctx)
		if err != nil {
			return nil, err
		}
		if msgType != websocket.MessageText {
			continue
		}
		return data, nil
	}
}

func (e *wsEndpoint) WriteMessage(payload []byte) error {
	e.wmu.Lock()
	defer e.wmu.Unlock()
	return e.conn.Write(e.ctx, websocket.MessageText, payload)
}

func (e *wsEndpoint) Close() error {
	return e.conn.Close(websocket.StatusNormalClosure, "closing")
}

func (e *wsEndpoint) RemoteAddr() string {
	return e.remote
}
