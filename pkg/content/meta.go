package content

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"time"
)

// Core meta fields written by the pipeline. Callers cannot override them
// through extension fields, except mtime.
const (
	FieldType            = "type"
	FieldLen             = "len"
	FieldDigest          = "digest"
	FieldContentEncoding = "Content-Encoding"
	FieldMtime           = "mtime"
)

// Fields added by the source rendering workflow.
const (
	FieldSourceType = "sourceType"
	FieldFragment   = "fragment"
	FieldSrcKey     = "srcKey"
	FieldSrcID      = "srcId"
)

// ReservedFields are processing hints that are never stored and never
// surface as extension fields. "compress" is the legacy compression gate;
// revisions are always compressed, so it is ignored.
var ReservedFields = []string{"compress"}

var coreFields = []string{FieldType, FieldLen, FieldDigest, FieldContentEncoding, FieldMtime}

// IsReserved reports whether field is a reserved processing hint.
func IsReserved(field string) bool {
	return slices.Contains(ReservedFields, field)
}

// mtime layouts accepted when reading meta or a caller-supplied mtime.
var mtimeLayouts = []string{time.RFC3339Nano, time.RFC1123, time.RFC1123Z}

func parseMtime(s string) (time.Time, error) {
	for _, layout := range mtimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized mtime %q", s)
}

func formatMtime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Meta is the metadata of one stored revision.
type Meta struct {
	ID              ContentID
	Type            string
	Len             int64 // stored (compressed) bytes
	Digest          string
	ContentEncoding string // empty when stored uncompressed
	Mtime           time.Time

	// Ext holds caller extension fields. Reserved fields never appear.
	Ext map[string]string
}

// Fields flattens the meta back to its stored field map.
func (m *Meta) Fields() map[string]string {
	fields := maps.Clone(m.Ext)
	if fields == nil {
		fields = make(map[string]string)
	}
	fields[FieldType] = m.Type
	fields[FieldLen] = strconv.FormatInt(m.Len, 10)
	fields[FieldDigest] = m.Digest
	fields[FieldMtime] = formatMtime(m.Mtime)
	if m.ContentEncoding != "" {
		fields[FieldContentEncoding] = m.ContentEncoding
	}
	return fields
}

func (m *Meta) clone() *Meta {
	c := *m
	c.Ext = maps.Clone(m.Ext)
	return &c
}

// validateExt rejects extension fields that newMetaFields could not store
// faithfully. Only mtime is checked; everything else is opaque.
func validateExt(ext map[string]string) error {
	if supplied, ok := ext[FieldMtime]; ok {
		if _, err := parseMtime(supplied); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidMeta, err)
		}
	}
	return nil
}

// newMetaFields builds the stored field map for a finished write. Core
// fields always win over ext; an ext mtime is kept, normalized. Callers
// run validateExt first, so a bad mtime never reaches here from a write.
func newMetaFields(contentType string, length int64, digest, encoding string, ext map[string]string, now time.Time) map[string]string {
	fields := make(map[string]string, len(ext)+len(coreFields))
	for k, v := range ext {
		if IsReserved(k) || slices.Contains(coreFields, k) {
			continue
		}
		fields[k] = v
	}

	mtime := now
	if supplied, ok := ext[FieldMtime]; ok {
		if t, err := parseMtime(supplied); err == nil {
			mtime = t
		}
	}

	fields[FieldType] = contentType
	fields[FieldLen] = strconv.FormatInt(length, 10)
	fields[FieldDigest] = digest
	fields[FieldMtime] = formatMtime(mtime)
	if encoding != "" {
		fields[FieldContentEncoding] = encoding
	}
	return fields
}

// parseMeta decodes a stored field map. Reserved fields are dropped even if
// an older writer stored them.
func parseMeta(id ContentID, fields map[string]string) (*Meta, error) {
	m := &Meta{
		ID:              id,
		Type:            fields[FieldType],
		Digest:          fields[FieldDigest],
		ContentEncoding: fields[FieldContentEncoding],
		Ext:             make(map[string]string),
	}

	if s, ok := fields[FieldLen]; ok {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("meta %s: bad len %q", id, s)
		}
		m.Len = n
	}

	if s, ok := fields[FieldMtime]; ok {
		t, err := parseMtime(s)
		if err != nil {
			return nil, fmt.Errorf("meta %s: %w", id, err)
		}
		m.Mtime = t
	}

	for k, v := range fields {
		if IsReserved(k) || slices.Contains(coreFields, k) {
			continue
		}
		m.Ext[k] = v
	}
	return m, nil
}
