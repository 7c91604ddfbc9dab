package segment

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// WriteResult tells whether Write created the artifact or found it in place.
type WriteResult int

const (
	Written WriteResult = iota
	Exists
)

// Write persists s under root unless an artifact already sits at its path.
// The file is created with O_EXCL so a concurrent or repeated run never
// overwrites an existing artifact; the samples are written to a temporary
// file first and linked into place only when complete.
func Write(root string, s *Segment) (string, WriteResult, error) {
	dst := Path(root, s)
	if _, err := os.Stat(dst); err == nil {
		return dst, Exists, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return dst, 0, err
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return dst, 0, err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return dst, 0, err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := encode(tmp, s.Samples); err != nil {
		tmp.Close()
		return dst, 0, err
	}
	if err := tmp.Close(); err != nil {
		return dst, 0, err
	}
	if err := os.Link(tmpName, dst); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return dst, Exists, nil
		}
		return dst, 0, err
	}
	return dst, Written, nil
}

// encode writes one sample per row in the %.18e layout numpy's savetxt uses.
func encode(w io.Writer, samples []float64) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 32)
	for _, v := range samples {
		buf = strconv.AppendFloat(buf[:0], v, 'e', 18, 64)
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Read parses an artifact back into samples. Every non-blank row must hold
// exactly one number; an artifact without any is ErrEmptyContent.
func Read(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decode(f)
}

func decode(r io.Reader) ([]float64, error) {
	var out []float64
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		s := strings.TrimSpace(sc.Text())
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrEmptyContent
	}
	return out, nil
}

// EncodeLine renders one training row: comma-joined samples, a colon, and the
// label.
func EncodeLine(samples []float64, l Label) []byte {
	var b bytes.Buffer
	for i, v := range samples {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	b.WriteByte(':')
	b.WriteByte(byte(l))
	b.WriteByte('\n')
	return b.Bytes()
}
