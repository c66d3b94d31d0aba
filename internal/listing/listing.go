// Package listing defines the job listing entity shared by every pipeline stage.
package listing

import "fmt"

// Sentinel is written in place of a field that could not be extracted.
const Sentinel = "N/A"

// Header is the fixed column layout of the listing store.
var Header = []string{"Title", "Category", "Location", "Link"}

// Field is an optional text value. The zero value is a missing field.
type Field struct {
	value   string
	present bool
}

// Text returns a present field holding s (which may be empty).
func Text(s string) Field {
	return Field{value: s, present: true}
}

// Missing returns a field with no value.
func Missing() Field {
	return Field{}
}

// Value returns the raw text and whether the field is present.
func (f Field) Value() (string, bool) {
	return f.value, f.present
}

// Present reports whether the field carries a value.
func (f Field) Present() bool {
	return f.present
}

// String serializes the field, substituting Sentinel when it is missing.
func (f Field) String() string {
	if !f.present {
		return Sentinel
	}
	return f.value
}

// ParseField is the inverse of String for persisted cells.
// A cell equal to Sentinel parses as missing.
func ParseField(cell string) Field {
	if cell == Sentinel {
		return Missing()
	}
	return Text(cell)
}

// Listing is one job record extracted from a listing page.
type Listing struct {
	Title    Field
	Category Field
	Location Field
	Link     Field
}

// Key returns the dedup key: the serialized link, compared byte for byte.
func (l Listing) Key() string {
	return l.Link.String()
}

// Degraded reports whether any field is missing.
func (l Listing) Degraded() bool {
	return !l.Title.Present() || !l.Category.Present() || !l.Location.Present() || !l.Link.Present()
}

// Row serializes the listing in Header order.
func (l Listing) Row() []string {
	return []string{l.Title.String(), l.Category.String(), l.Location.String(), l.Link.String()}
}

// FromRow parses a row written by Row.
func FromRow(cells []string) (Listing, error) {
	if len(cells) != len(Header) {
		return Listing{}, fmt.Errorf("expected %d cells, got %d", len(Header), len(cells))
	}
	return Listing{
		Title:    ParseField(cells[0]),
		Category: ParseField(cells[1]),
		Location: ParseField(cells[2]),
		Link:     ParseField(cells[3]),
	}, nil
}
