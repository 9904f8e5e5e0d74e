// Package protocol is the ProtocolAdapter: it translates TUS 1.0.0 HTTP
// requests into engine.Engine calls and engine results back into HTTP
// responses. It knows nothing about how uploads are stored, only how the
// wire format works.
package protocol

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/tusgate/tusgate/pkg/engine"
)

const resumableVersion = "1.0.0"

const uploadLengthDeferred = "1"

// parseMetadata parses the Upload-Metadata header, e.g.
// "name bHVucmpzLnBuZw==,type aW1hZ2UvcG5n", same comma-separated
// "key base64(value)" pairs the creation extension defines. A key with no
// value is kept with an empty string, matching the empty-value round-trip
// decision recorded in the project's design notes.
func parseMetadata(header string) engine.MetaData {
	if header == "" {
		return nil
	}

	meta := make(engine.MetaData)
	for _, element := range strings.Split(header, ",") {
		element = strings.TrimSpace(element)
		if element == "" {
			continue
		}

		parts := strings.SplitN(element, " ", 2)
		key := parts[0]
		if key == "" || len(parts) > 2 {
			continue
		}

		value := ""
		if len(parts) == 2 {
			dec, err := base64.StdEncoding.DecodeString(parts[1])
			if err != nil {
				continue
			}
			value = string(dec)
		}
		meta[key] = value
	}
	return meta
}

// serializeMetadata is the inverse of parseMetadata, used when answering a
// HEAD request.
func serializeMetadata(meta engine.MetaData) string {
	if len(meta) == 0 {
		return ""
	}

	parts := make([]string, 0, len(meta))
	for key, value := range meta {
		parts = append(parts, key+" "+base64.StdEncoding.EncodeToString([]byte(value)))
	}
	return strings.Join(parts, ",")
}

// concatHeader is the parsed form of an Upload-Concat header.
type concatHeader struct {
	isPartial bool
	isFinal   bool
	partURLs  []string
}

// parseConcat parses "partial" or "final;<url> <url> …" per the
// concatenation extension.
func parseConcat(header string) (concatHeader, error) {
	var c concatHeader
	if header == "" {
		return c, nil
	}

	if header == "partial" {
		c.isPartial = true
		return c, nil
	}

	const prefix = "final;"
	if !strings.HasPrefix(header, prefix) || len(header) <= len(prefix) {
		return c, engine.ErrInvalidConcat
	}

	c.isFinal = true
	for _, url := range strings.Split(header[len(prefix):], " ") {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		c.partURLs = append(c.partURLs, url)
	}
	if len(c.partURLs) == 0 {
		return concatHeader{}, engine.ErrInvalidConcat
	}

	return c, nil
}

// extractID strips basePath from a full or relative upload URL/path and
// returns the bare id, e.g. "https://example.com/files/abc" -> "abc".
func extractID(urlOrPath, basePath string) (string, error) {
	_, id, ok := strings.Cut(urlOrPath, basePath)
	if !ok {
		return "", engine.ErrNotFound
	}
	return strings.Trim(id, "/"), nil
}

// parseChecksum parses the Upload-Checksum header, e.g. "sha1 <base64>".
func parseChecksum(header string) (*engine.Checksum, error) {
	if header == "" {
		return nil, nil
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return nil, engine.ErrUnsupportedChecksumAlgorithm
	}

	algo := engine.ChecksumAlgorithm(strings.ToLower(parts[0]))
	value, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, engine.ErrUnsupportedChecksumAlgorithm
	}

	return &engine.Checksum{Algorithm: algo, Value: value}, nil
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
