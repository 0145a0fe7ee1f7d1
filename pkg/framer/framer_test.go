package framer

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadPduSlowPathTPKT(t *testing.T) {
	frame := []byte{0x03, 0x00, 0x00, 0x07, 0x02, 0xF0, 0x80}
	f := New(&rwPair{r: bytes.NewReader(frame)})

	action, got, err := f.ReadPdu()
	require.NoError(t, err)
	require.Equal(t, SlowPath, action)
	require.Equal(t, frame, got)
}

func TestReadPduFastPathShortForm(t *testing.T) {
	frame := []byte{0x04, 0x06, 0xAA, 0xBB, 0xCC, 0xDD}
	f := New(&rwPair{r: bytes.NewReader(frame)})

	action, got, err := f.ReadPdu()
	require.NoError(t, err)
	require.Equal(t, FastPath, action)
	require.Equal(t, frame, got)
}

func TestReadPduFastPathLongForm(t *testing.T) {
	payload := make([]byte, 300)
	frame := append([]byte{0x00, 0x80 | byte((len(payload)+3)>>8), byte(len(payload) + 3)}, payload...)
	f := New(&rwPair{r: bytes.NewReader(frame)})

	action, got, err := f.ReadPdu()
	require.NoError(t, err)
	require.Equal(t, FastPath, action)
	require.Equal(t, frame, got)
}

func TestReadPduRejectsZeroLengthFrame(t *testing.T) {
	frame := []byte{0x03, 0x00, 0x00, 0x04} // length == header length
	f := New(&rwPair{r: bytes.NewReader(frame)})

	_, _, err := f.ReadPdu()
	require.ErrorIs(t, err, ErrZeroLengthFrame)
}

func TestReadPduEOFMidFrame(t *testing.T) {
	frame := []byte{0x03, 0x00, 0x00, 0x10, 0x02} // declares 16 bytes, only 5 present
	f := New(&rwPair{r: bytes.NewReader(frame)})

	_, _, err := f.ReadPdu()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadByHintDropsSpuriousFrames(t *testing.T) {
	spurious := []byte{0x03, 0x00, 0x00, 0x07, 0x02, 0xF0, 0x80}
	wanted := []byte{0x03, 0x00, 0x00, 0x08, 0x02, 0xF0, 0x80, 0x01}
	stream := append(append([]byte{}, spurious...), wanted...)
	f := New(&rwPair{r: bytes.NewReader(stream)})

	hint := PduHintFunc(func(buf []byte) HintResult {
		return HintResult{Ready: true, Matched: len(buf) == len(wanted), Length: len(buf)}
	})

	got, err := f.ReadByHint(hint)
	require.NoError(t, err)
	require.Equal(t, wanted, got)
}

func TestWriteAllPassesThrough(t *testing.T) {
	var out bytes.Buffer
	f := New(&rwPair{r: bytes.NewReader(nil), w: &out})
	require.NoError(t, f.WriteAll([]byte{1, 2, 3}))
	require.Equal(t, []byte{1, 2, 3}, out.Bytes())
}

type rwPair struct {
	r io.Reader
	w io.Writer
}

func (p *rwPair) Read(b []byte) (int, error) {
	return p.r.Read(b)
}

func (p *rwPair) Write(b []byte) (int, error) {
	if p.w == nil {
		return len(b), nil
	}
	return p.w.Write(b)
}
