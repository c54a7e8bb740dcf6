package extract

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// rawCapture archives the still-undecoded sub-packet payloads for one
// player to a zstd-compressed file, so the decoder can be re-run against
// captured input without re-parsing the demo. Payloads are written
// length-prefixed (uint32 little-endian) back to back.
type rawCapture struct {
	file *os.File
	enc  *zstd.Encoder
}

func newRawCapture(dir, playerID string) (*rawCapture, error) {
	path := filepath.Join(dir, fmt.Sprintf("%s.raw.zst", sanitizeFilename(playerID)))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create raw capture file: %w", err)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to initialize zstd writer: %w", err)
	}
	return &rawCapture{file: f, enc: enc}, nil
}

func (c *rawCapture) write(payload []byte) error {
	var lenPrefix [4]byte
	lenPrefix[0] = byte(len(payload))
	lenPrefix[1] = byte(len(payload) >> 8)
	lenPrefix[2] = byte(len(payload) >> 16)
	lenPrefix[3] = byte(len(payload) >> 24)
	if _, err := c.enc.Write(lenPrefix[:]); err != nil {
		return err
	}
	_, err := c.enc.Write(payload)
	return err
}

func (c *rawCapture) Close() error {
	if err := c.enc.Close(); err != nil {
		c.file.Close()
		return err
	}
	return c.file.Close()
}
