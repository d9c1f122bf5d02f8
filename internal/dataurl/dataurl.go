// Package dataurl converts between raw image bytes and the self-describing
// "data:<mime>;base64,<payload>" string form that the browser's FileReader
// produces and the frontend displays.
package dataurl

import (
	"encoding/base64"
	"fmt"
	"io"
	"regexp"
)

// mimePattern extracts the MIME type from a data URL header, i.e. the
// substring between "data:" and the first following ";".
var mimePattern = regexp.MustCompile(`^data:([^;,]+);`)

// MalformedEncodingError reports a failure to read or parse a data URL.
// Cause carries the underlying I/O or decode error when one exists.
type MalformedEncodingError struct {
	Stage string // "failed to read file", "invalid data URL format", "could not extract MIME type"
	Cause error
}

func (e *MalformedEncodingError) Error() string {
	if e.Cause != nil {
		return e.Stage + ": " + e.Cause.Error()
	}
	return e.Stage
}

func (e *MalformedEncodingError) Unwrap() error {
	return e.Cause
}

// Payload is a MIME type paired with a base64-encoded body, header stripped.
// Immutable once produced.
type Payload struct {
	MIMEType string
	Data     string
}

// Parse splits a data URL into its MIME type and base64 payload. The split is
// on the first comma; the MIME type is matched between ":" and the first ";"
// of the header. Parse never returns a partial result.
func Parse(dataURL string) (*Payload, error) {
	var header, body string
	for i := 0; i < len(dataURL); i++ {
		if dataURL[i] == ',' {
			header, body = dataURL[:i], dataURL[i+1:]
			break
		}
	}
	if header == "" {
		return nil, &MalformedEncodingError{Stage: "invalid data URL format"}
	}

	m := mimePattern.FindStringSubmatch(header)
	if m == nil {
		return nil, &MalformedEncodingError{Stage: "could not extract MIME type"}
	}

	return &Payload{MIMEType: m[1], Data: body}, nil
}

// FromReader reads r to EOF and encodes the bytes as a base64 payload with
// the declared MIME type. Read failures surface as MalformedEncodingError
// with the underlying error attached.
func FromReader(r io.Reader, mimeType string) (*Payload, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &MalformedEncodingError{Stage: "failed to read file", Cause: err}
	}
	return FromBytes(raw, mimeType), nil
}

// FromBytes encodes raw bytes as a base64 payload with the declared MIME type.
func FromBytes(raw []byte, mimeType string) *Payload {
	return &Payload{
		MIMEType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(raw),
	}
}

// Encode reconstructs the displayable data URL for a MIME type and base64 body.
func Encode(mimeType, data string) string {
	return "data:" + mimeType + ";base64," + data
}

// URL returns the payload in data URL form.
func (p *Payload) URL() string {
	return Encode(p.MIMEType, p.Data)
}

// Decode returns the raw bytes of the base64 payload body.
func (p *Payload) Decode() ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	return raw, nil
}
