package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/soochol/datafiles/internal/codec"
	"github.com/soochol/datafiles/internal/upload"
)

const spoolPattern = "datafiles-upload-*"

// spool holds the temp files backing binary parts of one request.
type spool struct {
	files []*os.File
}

func (s *spool) file(r io.Reader) (*os.File, error) {
	f, err := os.CreateTemp("", spoolPattern)
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	s.files = append(s.files, f)
	src := &partReader{r: r}
	if _, err := io.Copy(f, src); err != nil {
		if src.err != nil {
			return nil, readError(src.err)
		}
		return nil, fmt.Errorf("spool part: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind spool file: %w", err)
	}
	return f, nil
}

// Close removes every spool file.
func (s *spool) Close() {
	for _, f := range s.files {
		f.Close()
		if err := os.Remove(f.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("remove spool file failed", "path", f.Name(), "err", err)
		}
	}
	s.files = nil
}

// readParts turns a multipart request into ordered upload parts. Descriptor
// and alternate text parts are buffered in memory; binary parts are spooled
// to temp files, since later parts follow them on the wire. The returned
// spool must be closed once the parts are no longer needed.
func readParts(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]upload.Part, *spool, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: expected a multipart request: %v", errBadRequest, err)
	}

	sp := &spool{}
	var parts []upload.Part
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			sp.Close()
			return nil, nil, readError(err)
		}

		part := upload.Part{Name: p.FormName(), ContentType: p.Header.Get("Content-Type")}
		switch part.Kind() {
		case upload.KindContent:
			// Spool failures are server-side; only errors reading the
			// part itself come back classified as client errors.
			f, err := sp.file(p)
			if err != nil {
				p.Close()
				sp.Close()
				return nil, nil, err
			}
			part.Body = f
		case upload.KindDescriptor:
			part.Body, err = buffer(p)
		case upload.KindText:
			if strings.EqualFold(part.Name, upload.AlternateDescriptorField) {
				part.Body, err = buffer(p)
			} else {
				part.Body = http.NoBody
			}
		default:
			part.Body = http.NoBody
		}
		p.Close()
		if err != nil {
			sp.Close()
			return nil, nil, readError(err)
		}
		parts = append(parts, part)
	}
	return parts, sp, nil
}

// buffer reads a descriptor part into memory, rejecting oversized documents.
func buffer(r io.Reader) (io.Reader, error) {
	b, err := io.ReadAll(io.LimitReader(r, codec.MaxDescriptorSize+1))
	if err != nil {
		return nil, err
	}
	if len(b) > codec.MaxDescriptorSize {
		return nil, fmt.Errorf("%w: larger than %d bytes", codec.ErrMalformed, codec.MaxDescriptorSize)
	}
	return bytes.NewReader(b), nil
}

// partReader remembers the error of the part being read, telling a broken
// request apart from a failing spool write.
type partReader struct {
	r   io.Reader
	err error
}

func (p *partReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if err != nil && err != io.EOF {
		p.err = err
	}
	return n, err
}

// readError keeps body-size and client errors distinguishable from I/O failures.
func readError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || errors.Is(err, codec.ErrMalformed) {
		return err
	}
	return fmt.Errorf("%w: reading multipart body: %v", errBadRequest, err)
}
