package decider

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// chunkSize is the read size used when streaming files through the checksum.
const chunkSize = 64 * 1024

// pdfVolatilePrefixes are metadata entries rewritten on every PDF render.
var pdfVolatilePrefixes = [][]byte{
	[]byte("/CreationDate"),
	[]byte("/ModDate"),
	[]byte("/ID"),
}

// HashFile returns the content hash of the file at path. PDF files are
// hashed line by line with volatile metadata lines excluded.
func HashFile(path string) (uint64, error) {
	f, err := os.Open(path) // #nosec G304 -- build inputs are user project files
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return hashPDF(f)
	}
	return hashStream(f)
}

// HashText returns the content hash of a literal string parameter.
func HashText(s string) uint64 {
	return xxhash.Sum64String(s)
}

func hashStream(r io.Reader) (uint64, error) {
	d := xxhash.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(d, r, buf); err != nil {
		return 0, err
	}
	return d.Sum64(), nil
}

func hashPDF(r io.Reader) (uint64, error) {
	d := xxhash.New()
	br := bufio.NewReaderSize(r, chunkSize)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 && !isVolatilePDFLine(line) {
			_, _ = d.Write(line)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	return d.Sum64(), nil
}

func isVolatilePDFLine(line []byte) bool {
	trimmed := bytes.TrimLeft(line, " \t")
	for _, p := range pdfVolatilePrefixes {
		if bytes.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

// ShortHash renders a hash as a hex string truncated to n characters. A
// non-positive n returns the full 16-character form.
func ShortHash(sum uint64, n int) string {
	s := strconv.FormatUint(sum, 16)
	s = strings.Repeat("0", 16-len(s)) + s
	if n > 0 && n < len(s) {
		return s[:n]
	}
	return s
}
