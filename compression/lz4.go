package compression

import (
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// Compress writes src to output as a single lz4 frame with content checksums.
func Compress(output io.Writer, src io.Reader) (int64, error) {

	zw := lz4.NewWriter(output)

	if err := zw.Apply(lz4.ChecksumOption(true), lz4.CompressionLevelOption(lz4.Fast)); err != nil {
		return 0, fmt.Errorf("unable to configure lz4 writer: %w", err)
	}

	written, err := io.Copy(zw, src)
	if err != nil {
		return written, fmt.Errorf("unable to compress: %w", err)
	}

	flushErr := zw.Flush()
	if flushErr != nil {
		return written, flushErr
	}

	return written, zw.Close()
}

// Decompress reads one lz4 frame from src into output.
func Decompress(output io.Writer, src io.Reader) (int64, error) {

	zr := lz4.NewReader(src)

	read, err := io.Copy(output, zr)
	if err != nil {
		return read, fmt.Errorf("unable to decompress: %w", err)
	}

	return read, nil
}
