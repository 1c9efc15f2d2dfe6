package wire

import "fmt"

// Frame is one unit sent over the connection: a header and an opaque,
// msgType-dependent payload.
type Frame struct {
	Header  Header
	Payload []byte
}

// EncodeFrame returns header followed by payload.
func EncodeFrame(h Header, payload []byte) []byte {
	b := NewBuffer(HeaderSize + len(payload))
	h.Encode(b)
	b.PutBytes(payload)
	return b.Bytes()
}

// DecodeFrame splits data into header and payload. The payload is a
// sub-slice of data (zero-copy). The header is not validated.
func DecodeFrame(data []byte) (*Frame, error) {
	b := FromBytes(data)
	var f Frame
	if err := f.Header.Decode(b); err != nil {
		return nil, fmt.Errorf("decoding header: %w", err)
	}
	f.Payload = b.Rest()
	return &f, nil
}

// Buffer returns a Buffer positioned at the start of the payload.
func (f *Frame) Buffer() *Buffer {
	return FromBytes(f.Payload)
}
