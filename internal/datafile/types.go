// Package datafile holds the data file model, descriptor reconciliation and
// line-windowed content streaming.
package datafile

import (
	"encoding/xml"
	"errors"
	"time"
)

// Namespace is the XML namespace used when encoding descriptors.
const Namespace = "urn:datafiles:v1"

// ErrNotFound is returned when a data file id does not resolve.
var ErrNotFound = errors.New("data file not found")

// Record is the persisted metadata of one data file.
type Record struct {
	ID         int64
	Path       string
	Comments   string
	Creator    string
	StorageKey string // content store key, never client supplied
	Size       int64
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// Descriptor is the wire representation of a Record. Its XML element is
// <dataFile>; ToDescriptor sets the name and namespace.
type Descriptor struct {
	XMLName  xml.Name   `json:"-"`
	ID       int64      `json:"id,omitempty" xml:"id,omitempty"`
	Name     string     `json:"name" xml:"name"`
	Comments string     `json:"comments,omitempty" xml:"comments,omitempty"`
	Creator  string     `json:"creator,omitempty" xml:"creator,omitempty"`
	Size     int64      `json:"size,omitempty" xml:"size,omitempty"`
	Created  *time.Time `json:"created,omitempty" xml:"created,omitempty"`
	Modified *time.Time `json:"modified,omitempty" xml:"modified,omitempty"`
}

// DescriptorList is the envelope returned by list operations.
type DescriptorList struct {
	XMLName   xml.Name     `json:"-"`
	DataFiles []Descriptor `json:"dataFiles" xml:"dataFile"`
}

// NewDescriptorList wraps descriptors in a namespaced list envelope.
func NewDescriptorList(ds []Descriptor) DescriptorList {
	if ds == nil {
		ds = []Descriptor{}
	}
	return DescriptorList{
		XMLName:   xml.Name{Space: Namespace, Local: "dataFiles"},
		DataFiles: ds,
	}
}

// ToDescriptor converts a record to its wire form.
func ToDescriptor(r *Record) Descriptor {
	d := Descriptor{
		XMLName:  xml.Name{Space: Namespace, Local: "dataFile"},
		ID:       r.ID,
		Name:     r.Path,
		Comments: r.Comments,
		Creator:  r.Creator,
		Size:     r.Size,
	}
	if !r.CreatedAt.IsZero() {
		t := r.CreatedAt
		d.Created = &t
	}
	if !r.ModifiedAt.IsZero() {
		t := r.ModifiedAt
		d.Modified = &t
	}
	return d
}

// FromDescriptor builds a new, unsaved record from a descriptor. The id and
// the store-maintained fields are left for the record store to assign.
func FromDescriptor(d *Descriptor) *Record {
	return &Record{
		Path:     d.Name,
		Comments: d.Comments,
		Creator:  d.Creator,
	}
}
