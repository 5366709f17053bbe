// Package upload classifies the parts of a data file upload and extracts
// the descriptor and raw content from them.
package upload

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strings"

	"github.com/soochol/datafiles/internal/codec"
	"github.com/soochol/datafiles/internal/datafile"
)

// AlternateDescriptorField is the text part name carrying an XML descriptor.
const AlternateDescriptorField = "xmlString"

// ErrMissingDescriptor is returned when no part carried a descriptor.
var ErrMissingDescriptor = errors.New("requests to store data files must include a data file descriptor")

// Kind is the role of an upload part, derived from its declared media type.
type Kind int

const (
	KindIgnored Kind = iota
	KindDescriptor
	KindText
	KindContent
)

// Part is one named, typed part of an upload, in wire order.
type Part struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// Kind classifies the part. Parts without a content type are text/plain.
func (p Part) Kind() Kind {
	ct := p.ContentType
	if strings.TrimSpace(ct) == "" {
		ct = "text/plain"
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return KindIgnored
	}
	switch mt {
	case "application/xml", "text/xml", "application/json":
		return KindDescriptor
	case "text/plain":
		return KindText
	case "application/octet-stream":
		return KindContent
	}
	return KindIgnored
}

// Decoder turns a part payload into a descriptor.
type Decoder interface {
	// Decode decodes a structured document declared as contentType.
	Decode(contentType string, r io.Reader) (*datafile.Descriptor, error)
	// DecodeText decodes descriptor text sent as a plain text field.
	DecodeText(r io.Reader) (*datafile.Descriptor, error)
}

// CodecDecoder decodes with the codec package; text fields are parsed as
// XML with entity declarations rejected.
type CodecDecoder struct{}

func (CodecDecoder) Decode(contentType string, r io.Reader) (*datafile.Descriptor, error) {
	return codec.DecodeDescriptor(contentType, r)
}

func (CodecDecoder) DecodeText(r io.Reader) (*datafile.Descriptor, error) {
	return codec.DecodeXMLDescriptor(r)
}

// Result is what an upload carried.
type Result struct {
	Descriptor *datafile.Descriptor
	// Content is the last binary part, or nil when none was sent.
	Content io.Reader
}

// Dispatch visits every part once, in order. Structured parts and the
// alternate text field are decoded into the descriptor, binary parts become
// the content; for both the last part wins. Other text parts and unknown
// kinds are skipped. A decode failure aborts the dispatch, and an upload
// without any descriptor fails with ErrMissingDescriptor.
func Dispatch(parts []Part, dec Decoder) (*Result, error) {
	res := &Result{}
	for _, p := range parts {
		switch p.Kind() {
		case KindDescriptor:
			d, err := dec.Decode(p.ContentType, p.Body)
			if err != nil {
				return nil, fmt.Errorf("part %q: %w", p.Name, err)
			}
			res.Descriptor = d
		case KindText:
			if !strings.EqualFold(p.Name, AlternateDescriptorField) {
				slog.Debug("ignoring text part", "name", p.Name)
				continue
			}
			d, err := dec.DecodeText(p.Body)
			if err != nil {
				return nil, fmt.Errorf("part %q: %w", p.Name, err)
			}
			res.Descriptor = d
		case KindContent:
			res.Content = p.Body
		default:
			slog.Debug("ignoring upload part", "name", p.Name, "content_type", p.ContentType)
		}
	}
	if res.Descriptor == nil {
		return nil, ErrMissingDescriptor
	}
	return res, nil
}
