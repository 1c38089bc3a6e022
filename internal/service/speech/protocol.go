package speech

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Binary frame layout of the Volcengine streaming ASR protocol: a 4 byte
// header, an optional 4 byte sequence, an error code for error frames, a 4 byte
// payload size and the payload itself. All integers are big endian.

const (
	protocolVersion = 0b0001
	headerWords     = 0b0001
)

// FrameType is the 4 bit message type.
type FrameType uint8

const (
	FrameFullClientRequest  FrameType = 0b0001
	FrameAudioOnlyRequest   FrameType = 0b0010
	FrameFullServerResponse FrameType = 0b1001
	FrameServerAck          FrameType = 0b1011
	FrameError              FrameType = 0b1111
)

// FrameFlags is the 4 bit sequence flag field.
type FrameFlags uint8

const (
	FlagNoSequence       FrameFlags = 0b0000
	FlagPositiveSequence FrameFlags = 0b0001
	FlagLastNoSequence   FrameFlags = 0b0010
	FlagNegativeSequence FrameFlags = 0b0011
)

// Serialization is the 4 bit payload serialization field.
type Serialization uint8

const (
	SerializationNone Serialization = 0b0000
	SerializationJSON Serialization = 0b0001
)

// Compression is the 4 bit payload compression field.
type Compression uint8

const (
	CompressionNone Compression = 0b0000
	CompressionGzip Compression = 0b0001
)

var errShortFrame = errors.New("frame too short")

// Frame is one decoded protocol message.
type Frame struct {
	Type          FrameType
	Flags         FrameFlags
	Serialization Serialization
	Compression   Compression
	Sequence      int32
	ErrorCode     uint32
	Payload       []byte
}

func (f *Frame) hasSequence() bool {
	return f.Flags == FlagPositiveSequence || f.Flags == FlagNegativeSequence
}

// IsLast reports whether the frame closes the stream.
func (f *Frame) IsLast() bool {
	return f.Flags == FlagLastNoSequence || f.Flags == FlagNegativeSequence
}

// Encode serializes the frame.
func (f *Frame) Encode() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 12+len(f.Payload)))
	buf.WriteByte(protocolVersion<<4 | headerWords)
	buf.WriteByte(byte(f.Type)<<4 | byte(f.Flags))
	buf.WriteByte(byte(f.Serialization)<<4 | byte(f.Compression))
	buf.WriteByte(0)

	word := make([]byte, 4)
	if f.hasSequence() {
		binary.BigEndian.PutUint32(word, uint32(f.Sequence))
		buf.Write(word)
	}
	if f.Type == FrameError {
		binary.BigEndian.PutUint32(word, f.ErrorCode)
		buf.Write(word)
	}
	binary.BigEndian.PutUint32(word, uint32(len(f.Payload)))
	buf.Write(word)
	buf.Write(f.Payload)

	return buf.Bytes()
}

// DecodeFrame parses one binary websocket message.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < 4 {
		return nil, errShortFrame
	}
	if version := data[0] >> 4; version != protocolVersion {
		return nil, fmt.Errorf("unsupported protocol version: %d", version)
	}

	f := &Frame{
		Type:          FrameType(data[1] >> 4),
		Flags:         FrameFlags(data[1] & 0x0F),
		Serialization: Serialization(data[2] >> 4),
		Compression:   Compression(data[2] & 0x0F),
	}

	offset := int(data[0]&0x0F) * 4
	next := func() (uint32, error) {
		if len(data) < offset+4 {
			return 0, errShortFrame
		}
		v := binary.BigEndian.Uint32(data[offset:])
		offset += 4
		return v, nil
	}

	if f.hasSequence() {
		seq, err := next()
		if err != nil {
			return nil, fmt.Errorf("failed to read sequence: %w", err)
		}
		f.Sequence = int32(seq)
	}
	if f.Type == FrameError {
		code, err := next()
		if err != nil {
			return nil, fmt.Errorf("failed to read error code: %w", err)
		}
		f.ErrorCode = code
	}

	size, err := next()
	if err != nil {
		return nil, fmt.Errorf("failed to read payload size: %w", err)
	}
	if len(data) < offset+int(size) {
		return nil, fmt.Errorf("payload truncated: want %d bytes, have %d", size, len(data)-offset)
	}
	f.Payload = data[offset : offset+int(size)]

	return f, nil
}

// newClientRequest builds the opening frame carrying the JSON session
// parameters.
func newClientRequest(params []byte) (*Frame, error) {
	payload, err := gzipBytes(params)
	if err != nil {
		return nil, err
	}
	return &Frame{
		Type:          FrameFullClientRequest,
		Flags:         FlagNoSequence,
		Serialization: SerializationJSON,
		Compression:   CompressionGzip,
		Payload:       payload,
	}, nil
}

// newAudioRequest builds an audio frame. The last frame of a stream carries a
// negated sequence number.
func newAudioRequest(chunk []byte, sequence int32, last bool) (*Frame, error) {
	payload, err := gzipBytes(chunk)
	if err != nil {
		return nil, err
	}
	flags := FlagPositiveSequence
	if last {
		flags = FlagNegativeSequence
		sequence = -sequence
	}
	return &Frame{
		Type:          FrameAudioOnlyRequest,
		Flags:         flags,
		Serialization: SerializationNone,
		Compression:   CompressionGzip,
		Sequence:      sequence,
		Payload:       payload,
	}, nil
}

// Body returns the payload with compression removed.
func (f *Frame) Body() ([]byte, error) {
	switch f.Compression {
	case CompressionNone:
		return f.Payload, nil
	case CompressionGzip:
		return gunzipBytes(f.Payload)
	default:
		return nil, fmt.Errorf("unsupported compression method: %d", f.Compression)
	}
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("gzip write failed: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("gzip close failed: %w", err)
	}
	return buf.Bytes(), nil
}

func gunzipBytes(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader creation failed: %w", err)
	}
	defer reader.Close()

	result, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("gzip read failed: %w", err)
	}
	return result, nil
}
