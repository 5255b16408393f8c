package storage

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Первый байт значения в хранилище со сжатием
const (
	flagRaw  byte = 0x00 // дальше данные как есть
	flagZstd byte = 0x01 // дальше кадр zstd
)

// PayloadCompressor сжимает полезную нагрузку для KV-хранилищ (Badger, Redis).
// Сжатое значение несёт флаговый байт, содержимое полезной нагрузки не анализируется.
// nil-компрессор работает как passthrough в обе стороны.
type PayloadCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewPayloadCompressor создаёт zstd-компрессор.
func NewPayloadCompressor() (*PayloadCompressor, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &PayloadCompressor{enc: enc, dec: dec}, nil
}

// Compress сжимает данные и добавляет флаг. Безопасен для конкурентного вызова.
func (c *PayloadCompressor) Compress(data []byte) []byte {
	if c == nil {
		return data
	}
	out := make([]byte, 1, len(data)/2+16)
	out[0] = flagZstd
	return c.enc.EncodeAll(data, out)
}

// Decompress распаковывает значение, записанное Compress.
// Значения без известного флага (записанные до включения сжатия) возвращаются как есть.
func (c *PayloadCompressor) Decompress(data []byte) ([]byte, error) {
	if c == nil || len(data) == 0 {
		return data, nil
	}
	switch data[0] {
	case flagRaw:
		return data[1:], nil
	case flagZstd:
		out, err := c.dec.DecodeAll(data[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("ошибка распаковки: %w", err)
		}
		return out, nil
	default:
		return data, nil
	}
}

// Close освобождает ресурсы кодеков
func (c *PayloadCompressor) Close() {
	if c == nil {
		return
	}
	c.dec.Close()
	_ = c.enc.Close()
}
