package datafile

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"path"
	"strings"
)

// MaxLineSize bounds a single line of a delimited file.
const MaxLineSize = 16 << 20

const lineTerminator = "\n"

// Window selects which part of a file's content is streamed.
// A negative Limit means no limit. Offset and Limit only apply to delimited
// files; anything else is copied through unchanged.
type Window struct {
	Delimited bool
	Offset    int
	Limit     int
}

// Full returns a window that streams the whole content.
func Full(delimited bool) Window {
	return Window{Delimited: delimited, Limit: -1}
}

// Classifier reports whether a file name denotes line-delimited text.
type Classifier func(name string) bool

// ExtensionClassifier matches file names by suffix, ignoring case.
func ExtensionClassifier(exts ...string) Classifier {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = struct{}{}
	}
	return func(name string) bool {
		_, ok := set[strings.ToLower(path.Ext(name))]
		return ok
	}
}

// WriteWindow streams src to dst according to w and returns the number of
// bytes written. Delimited content is re-framed line by line with "\n";
// lines before the window start are read and discarded. Output is buffered
// and flushed on every return path, so bytes produced before an error still
// reach dst.
func WriteWindow(dst io.Writer, src io.Reader, w Window) (written int64, err error) {
	cw := &countingWriter{w: dst}
	if !w.Delimited {
		if _, err := io.Copy(cw, src); err != nil {
			return cw.n, fmt.Errorf("stream content: %w", err)
		}
		return cw.n, nil
	}

	out := bufio.NewWriter(cw)
	defer func() {
		if ferr := out.Flush(); ferr != nil && err == nil {
			err = fmt.Errorf("flush content: %w", ferr)
		}
		written = cw.n
	}()

	start := max(w.Offset, 0)
	end := start + w.Limit
	if w.Limit < 0 || end < start {
		end = math.MaxInt
	}
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	sc.Split(scanLines)

	for i := 0; i < end; i++ {
		if !sc.Scan() {
			break
		}
		if w.Limit >= 0 && i < start {
			continue
		}
		if _, err := out.Write(sc.Bytes()); err != nil {
			return 0, fmt.Errorf("write line %d: %w", i, err)
		}
		if _, err := out.WriteString(lineTerminator); err != nil {
			return 0, fmt.Errorf("write line %d: %w", i, err)
		}
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("read content: %w", err)
	}
	return 0, nil
}

// scanLines splits on "\n", "\r\n" or a lone "\r". A trailing line without
// a terminator is returned as the final token.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if atEOF {
			return i + 1, data[:i], nil
		}
		// Need one more byte to tell "\r" from "\r\n".
		return 0, nil, nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
