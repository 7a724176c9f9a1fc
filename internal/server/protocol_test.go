package server

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
)

func TestFrame_RoundTrip(t *testing.T) {
	assert := assert.New(t)

	payload := []byte(`{"request":"list_games","data":{}}`)
	var buf bytes.Buffer

	assert.NoError(writeFrame(&buf, payload))

	got, err := readFrame(&buf)
	assert.NoError(err)
	assert.Equal(payload, got)
}

func TestFrame_LengthPrefixIsBigEndian(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	assert.NoError(writeFrame(&buf, []byte("abc")))

	raw := buf.Bytes()
	assert.Equal(uint32(3), binary.BigEndian.Uint32(raw[:4]))
	assert.Equal([]byte("abc"), raw[4:])
}

func TestReadFrame_PartialReads(t *testing.T) {
	assert := assert.New(t)

	payload := bytes.Repeat([]byte("x"), 300)
	var buf bytes.Buffer
	assert.NoError(writeFrame(&buf, payload))

	// OneByteReader forces the decoder to loop until every byte arrives.
	got, err := readFrame(iotest.OneByteReader(&buf))
	assert.NoError(err)
	assert.Equal(payload, got)
}

func TestReadFrame_ZeroLength(t *testing.T) {
	r := bytes.NewReader([]byte{0, 0, 0, 0})

	_, err := readFrame(r)

	assert.ErrorIs(t, err, ErrEmptyFrame)
}

func TestReadFrame_OversizeLength(t *testing.T) {
	assert := assert.New(t)

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], MaxFrameSize+1)

	// No payload follows: the decoder must reject the length without
	// blocking on the body.
	_, err := readFrame(bytes.NewReader(prefix[:]))

	assert.ErrorIs(err, ErrFrameTooLarge)
}

func TestReadFrame_TruncatedPayload(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	assert.NoError(writeFrame(&buf, []byte("hello world")))
	truncated := buf.Bytes()[:buf.Len()-4]

	_, err := readFrame(bytes.NewReader(truncated))

	assert.ErrorIs(err, io.ErrUnexpectedEOF)
}

func TestReadFrame_EOFOnClosedStream(t *testing.T) {
	_, err := readFrame(bytes.NewReader(nil))

	assert.ErrorIs(t, err, io.EOF)
}

func TestWriteFrame_RejectsEmptyAndOversize(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	assert.ErrorIs(writeFrame(&buf, nil), ErrEmptyFrame)
	assert.ErrorIs(writeFrame(&buf, make([]byte, MaxFrameSize+1)), ErrFrameTooLarge)
	assert.Zero(buf.Len(), "nothing may reach the wire on a rejected frame")
}

// chunkWriter accepts at most n bytes per Write call, exercising the
// partial-write loop.
type chunkWriter struct {
	buf bytes.Buffer
	n   int
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	if len(p) > w.n {
		p = p[:w.n]
	}
	return w.buf.Write(p)
}

func TestWriteFrame_PartialWrites(t *testing.T) {
	assert := assert.New(t)

	payload := bytes.Repeat([]byte("y"), 100)
	w := &chunkWriter{n: 7}

	assert.NoError(writeFrame(w, payload))

	got, err := readFrame(&w.buf)
	assert.NoError(err)
	assert.Equal(payload, got)
}
