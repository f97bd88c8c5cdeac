package tika

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
)

// InputKind tags the Input variant.
type InputKind int

const (
	KindFile InputKind = iota + 1
	KindURL
	KindBytes
)

func (k InputKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindURL:
		return "url"
	case KindBytes:
		return "bytes"
	default:
		return fmt.Sprintf("input(%d)", int(k))
	}
}

// Input is one document to parse. It is consumed by a single parse call.
type Input struct {
	Kind InputKind
	Path string
	URL  string
	Data []byte
	// ContentType is an optional MIME hint passed to detection.
	ContentType string
	// Name overrides the resource name passed to detection.
	Name string
}

// FileInput reads a local file.
func FileInput(path string) Input { return Input{Kind: KindFile, Path: path} }

// URLInput fetches a URL from inside the engine.
func URLInput(u string) Input { return Input{Kind: KindURL, URL: u} }

// BytesInput parses an in-memory buffer. The slice is copied into the VM.
func BytesInput(data []byte) Input { return Input{Kind: KindBytes, Data: data} }

// ResourceName is the file name hint handed to type detection.
func (in Input) ResourceName() string {
	if in.Name != "" {
		return in.Name
	}
	switch in.Kind {
	case KindFile:
		return filepath.Base(in.Path)
	case KindURL:
		u, err := url.Parse(in.URL)
		if err != nil || u.Path == "" || u.Path == "/" {
			return ""
		}
		return path.Base(u.Path)
	default:
		return ""
	}
}

// String describes the input for logs without dumping buffers.
func (in Input) String() string {
	switch in.Kind {
	case KindFile:
		return "file:" + in.Path
	case KindURL:
		return "url:" + in.URL
	case KindBytes:
		return fmt.Sprintf("bytes[%d]", len(in.Data))
	default:
		return in.Kind.String()
	}
}

// Validate rejects inputs that cannot be opened at all.
func (in Input) Validate() error {
	switch in.Kind {
	case KindFile:
		if in.Path == "" {
			return fmt.Errorf("%w: empty file path", ErrOpenInput)
		}
	case KindURL:
		if in.URL == "" {
			return fmt.Errorf("%w: empty url", ErrOpenInput)
		}
	case KindBytes:
	default:
		return fmt.Errorf("%w: unknown input kind %d", ErrOpenInput, int(in.Kind))
	}
	return nil
}
