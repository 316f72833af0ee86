package kv

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ndanilov/cutroom/internal/models"
)

// JSON returns a codec storing values as their JSON form.
func JSON[T any]() Codec[T] {
	return jsonCodec[T]{}
}

type jsonCodec[T any] struct{}

func (jsonCodec[T]) Encode(value T) ([]byte, error) {
	return json.Marshal(value)
}

func (jsonCodec[T]) Decode(data []byte) (T, error) {
	var value T
	err := json.Unmarshal(data, &value)
	return value, err
}

// Blobs returns the codec for binary values crossing the
// database boundary: a length-prefixed metadata header
// followed by the raw payload, so the blob bytes are stored
// as-is instead of being re-encoded.
func Blobs() Codec[models.Blob] {
	return blobCodec{}
}

type blobHeader struct {
	Name    string    `json:"name"`
	MIME    string    `json:"mime"`
	ModTime time.Time `json:"modTime"`
}

type blobCodec struct{}

func (blobCodec) Encode(blob models.Blob) ([]byte, error) {
	header, err := json.Marshal(blobHeader{
		Name:    blob.Name,
		MIME:    blob.MIME,
		ModTime: blob.ModTime,
	})
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 4+len(header)+len(blob.Data))
	binary.BigEndian.PutUint32(buf, uint32(len(header)))
	copy(buf[4:], header)
	copy(buf[4+len(header):], blob.Data)

	return buf, nil
}

func (blobCodec) Decode(data []byte) (models.Blob, error) {
	if len(data) < 4 {
		return models.Blob{}, fmt.Errorf("blob record too short: %d bytes", len(data))
	}

	headerLen := binary.BigEndian.Uint32(data)
	if uint32(len(data)-4) < headerLen {
		return models.Blob{}, fmt.Errorf("blob record truncated: header %d bytes, have %d", headerLen, len(data)-4)
	}

	var header blobHeader
	if err := json.Unmarshal(data[4:4+headerLen], &header); err != nil {
		return models.Blob{}, err
	}

	payload := make([]byte, len(data)-4-int(headerLen))
	copy(payload, data[4+headerLen:])

	return models.Blob{
		Name:    header.Name,
		MIME:    header.MIME,
		ModTime: header.ModTime,
		Data:    payload,
	}, nil
}
