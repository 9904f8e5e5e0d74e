package hookdispatch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tusgate/tusgate/pkg/engine"
)

func testSnapshot() engine.Snapshot {
	return engine.Snapshot{
		Upload: engine.Record{ID: "upload-1", Length: 10, Offset: 5, Storage: "filesystem", Path: "2026/08/01/upload-1"},
		Request: engine.RequestInfo{
			Method:     "PATCH",
			URI:        "/files/upload-1",
			RemoteAddr: "127.0.0.1",
			Header:     map[string][]string{"X-Custom": {"a", "b"}},
		},
	}
}

func TestMarshalDefaultFormatIsLowercaseSingleValued(t *testing.T) {
	body, err := Marshal(FormatDefault, engine.EventPostFinish, testSnapshot())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))

	assert.Equal(t, "post-finish", decoded["type"])
	upload, ok := decoded["upload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "upload-1", upload["id"])

	request, ok := decoded["request"].(map[string]any)
	require.True(t, ok)
	headers, ok := request["headers"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a", headers["X-Custom"])
}

func TestMarshalV2FormatMatchesDefault(t *testing.T) {
	defaultBody, err := Marshal(FormatDefault, engine.EventPostFinish, testSnapshot())
	require.NoError(t, err)
	v2Body, err := Marshal(FormatV2, engine.EventPostFinish, testSnapshot())
	require.NoError(t, err)
	assert.JSONEq(t, string(defaultBody), string(v2Body))
}

func TestMarshalTusdFormatIsCapitalizedMultiValued(t *testing.T) {
	body, err := Marshal(FormatTusd, engine.EventPostFinish, testSnapshot())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))

	upload, ok := decoded["Upload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "upload-1", upload["ID"])

	storage, ok := upload["Storage"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "filesystem", storage["Type"])
	assert.Equal(t, "2026/08/01/upload-1", storage["Path"])

	request, ok := decoded["HTTPRequest"].(map[string]any)
	require.True(t, ok)
	header, ok := request["Header"].(map[string]any)
	require.True(t, ok)
	values, ok := header["X-Custom"].([]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []any{"a", "b"}, values)
}

func TestZeroValueFormatBehavesAsDefault(t *testing.T) {
	var format Format
	body, err := Marshal(format, engine.EventPostFinish, testSnapshot())
	require.NoError(t, err)

	defaultBody, err := Marshal(FormatDefault, engine.EventPostFinish, testSnapshot())
	require.NoError(t, err)
	assert.JSONEq(t, string(defaultBody), string(body))
}
