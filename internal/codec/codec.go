// Package codec decodes and encodes data file descriptors as JSON or XML.
//
// XML input is parsed with entity declarations rejected: a DOCTYPE carrying
// an internal subset with <!ENTITY ...> fails the decode, references to
// undefined entities are syntax errors, and external DTDs are never fetched.
package codec

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/soochol/datafiles/internal/datafile"
)

// MaxDescriptorSize bounds a single encoded descriptor.
const MaxDescriptorSize = 1 << 20

var (
	// ErrMalformed marks descriptor documents that cannot be decoded.
	ErrMalformed = errors.New("malformed data file descriptor")
	// ErrEntityDeclared is returned for XML documents that declare entities.
	ErrEntityDeclared = fmt.Errorf("%w: entity declarations are not allowed", ErrMalformed)
	// ErrUnsupportedType is returned for content types that carry no descriptor.
	ErrUnsupportedType = errors.New("unsupported descriptor content type")
)

// Format is a wire encoding for descriptors.
type Format int

const (
	JSON Format = iota
	XML
)

// ContentType returns the media type written for f.
func (f Format) ContentType() string {
	if f == XML {
		return "application/xml; charset=utf-8"
	}
	return "application/json"
}

// FormatOf maps a media type to a descriptor format.
func FormatOf(contentType string) (Format, error) {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	switch mt {
	case "application/json":
		return JSON, nil
	case "application/xml", "text/xml", "text/plain":
		return XML, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedType, mt)
}

// Negotiate picks the response format from an Accept header. XML is chosen
// only when an XML media type is listed before any JSON one.
func Negotiate(accept string) Format {
	for _, part := range strings.Split(accept, ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		switch mt {
		case "application/xml", "text/xml":
			return XML
		case "application/json":
			return JSON
		}
	}
	return JSON
}

// DecodeDescriptor decodes a descriptor in the format implied by contentType.
// text/plain payloads are treated as XML text.
func DecodeDescriptor(contentType string, r io.Reader) (*datafile.Descriptor, error) {
	f, err := FormatOf(contentType)
	if err != nil {
		return nil, err
	}
	if f == JSON {
		return DecodeJSONDescriptor(r)
	}
	return DecodeXMLDescriptor(r)
}

// DecodeJSONDescriptor decodes a JSON descriptor. Unknown fields are ignored.
func DecodeJSONDescriptor(r io.Reader) (*datafile.Descriptor, error) {
	var d datafile.Descriptor
	if err := json.NewDecoder(io.LimitReader(r, MaxDescriptorSize)).Decode(&d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &d, nil
}

// DecodeXMLDescriptor decodes a <dataFile> document with entity
// declarations rejected. The element may be in any namespace.
func DecodeXMLDescriptor(r io.Reader) (*datafile.Descriptor, error) {
	dec := xml.NewDecoder(io.LimitReader(r, MaxDescriptorSize))
	dec.Strict = true
	dec.Entity = nil
	dec.CharsetReader = asciiOnly

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("%w: no root element", ErrMalformed)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		switch t := tok.(type) {
		case xml.Directive:
			if declaresEntity(t) {
				return nil, ErrEntityDeclared
			}
		case xml.StartElement:
			if t.Name.Local != "dataFile" {
				return nil, fmt.Errorf("%w: unexpected root element <%s>", ErrMalformed, t.Name.Local)
			}
			var d datafile.Descriptor
			if err := dec.DecodeElement(&d, &t); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
			}
			return &d, nil
		}
	}
}

func declaresEntity(d xml.Directive) bool {
	upper := bytes.ToUpper(d)
	return bytes.HasPrefix(bytes.TrimSpace(upper), []byte("DOCTYPE")) &&
		bytes.Contains(upper, []byte("<!ENTITY"))
}

func asciiOnly(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "us-ascii", "ascii":
		return input, nil
	}
	return nil, fmt.Errorf("unsupported charset %q", charset)
}

// Encode writes v in format f. XML output starts with the standard header.
func Encode(w io.Writer, f Format, v any) error {
	if f == XML {
		if _, err := io.WriteString(w, xml.Header); err != nil {
			return err
		}
		return xml.NewEncoder(w).Encode(v)
	}
	return json.NewEncoder(w).Encode(v)
}
