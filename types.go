package extractous

import (
	"sort"

	"github.com/FranciscoLopezStriderIntel/extractous/internal/tika"
)

// Input is a single document to extract. Build it with FileInput, URLInput or
// BytesInput.
type Input struct {
	in tika.Input
}

// FileInput reads a local file.
func FileInput(path string) Input { return Input{in: tika.FileInput(path)} }

// URLInput fetches a URL. The request is made by the engine, not by Go.
func URLInput(url string) Input { return Input{in: tika.URLInput(url)} }

// BytesInput extracts an in-memory buffer. The buffer is copied.
func BytesInput(data []byte) Input { return Input{in: tika.BytesInput(data)} }

// WithContentType returns a copy of the input carrying a MIME type hint for
// type detection.
func (i Input) WithContentType(mimeType string) Input {
	i.in.ContentType = mimeType
	return i
}

// WithName returns a copy of the input whose resource name, used as a
// detection hint, is name.
func (i Input) WithName(name string) Input {
	i.in.Name = name
	return i
}

// String describes the input without dumping buffers.
func (i Input) String() string { return i.in.String() }

// Result is the content and metadata of one document.
type Result struct {
	Content  string
	Metadata Metadata
	// Truncated reports that Content was cut at the configured max length.
	Truncated bool
}

// Metadata maps metadata names to their values. The values of one name keep
// the order the engine reported them in; the map itself is unordered, so use
// Keys to walk the names in sorted order.
type Metadata map[string][]string

// Common metadata names.
const (
	MetaContentType = "Content-Type"
	MetaPageCount   = "xmpTPg:NPages"
	MetaParsedBy    = "X-TIKA:Parsed-By"
	MetaResource    = "resourceName"
)

// Get returns the first value of name, or "".
func (m Metadata) Get(name string) string {
	if vs := m[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Values returns every value of name.
func (m Metadata) Values(name string) []string { return m[name] }

// Has reports whether name is present.
func (m Metadata) Has(name string) bool {
	_, ok := m[name]
	return ok
}

// Keys returns the metadata names in sorted order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func fromTikaMetadata(md tika.Metadata) Metadata {
	if md == nil {
		return Metadata{}
	}
	return Metadata(md)
}
