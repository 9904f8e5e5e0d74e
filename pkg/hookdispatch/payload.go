package hookdispatch

import (
	"encoding/json"

	"github.com/tusgate/tusgate/pkg/engine"
)

// Format selects the wire shape used to serialize an UploadSnapshot for
// delivery to a notifier (spec §4.4, §6 "format {default, v2, tusd}").
type Format string

const (
	// FormatDefault is {upload, request} with lowercase field names and a
	// single-valued header map.
	FormatDefault Format = "default"
	// FormatV2 is an alias of FormatDefault: the wire shape did not change
	// between the "v1"/"v2" naming, only the field was renamed in
	// configuration. Kept as a distinct constant so -hooks-format=v2 is
	// accepted rather than rejected.
	FormatV2 Format = "v2"
	// FormatTusd reproduces the shape tusd's webhooks and subprocess hooks
	// use: capitalized Upload/HTTPRequest, Header as string to
	// list-of-strings, and a nested Storage object.
	FormatTusd Format = "tusd"
)

// Payload is the JSON wire format of the "default" (and "v2") formats,
// modeled on the teacher's hooks.HookRequest. Exported so the concrete
// notifier packages under pkg/hooks/* can construct one directly in tests
// without going through Marshal.
type Payload struct {
	Type    engine.EventKind `json:"type"`
	Upload  engine.Record    `json:"upload"`
	Request PayloadRequest   `json:"request"`
}

// PayloadRequest is the "default"-format request object: a single-valued
// header map, one value per header name.
type PayloadRequest struct {
	Method     string            `json:"method"`
	URI        string            `json:"uri"`
	RemoteAddr string            `json:"remoteAddr"`
	Header     map[string]string `json:"headers"`
}

// NewPayload builds the "default"-format wire payload for a dispatched
// event.
func NewPayload(kind engine.EventKind, snap engine.Snapshot) Payload {
	return Payload{
		Type:   kind,
		Upload: snap.Upload,
		Request: PayloadRequest{
			Method:     snap.Request.Method,
			URI:        snap.Request.URI,
			RemoteAddr: snap.Request.RemoteAddr,
			Header:     firstValues(snap.Request.Header),
		},
	}
}

// TusdPayload is the "tusd"-format wire payload: capitalized field names,
// a multi-valued Header map and a nested Storage descriptor, matching what
// tusd itself sends to its hook transports.
type TusdPayload struct {
	Upload      TusdUpload      `json:"Upload"`
	HTTPRequest TusdHTTPRequest `json:"HTTPRequest"`
}

type TusdStorage struct {
	Type string `json:"Type"`
	Path string `json:"Path"`
}

type TusdUpload struct {
	ID             string            `json:"ID"`
	Size           int64             `json:"Size"`
	SizeIsDeferred bool              `json:"SizeIsDeferred"`
	Offset         int64             `json:"Offset"`
	IsPartial      bool              `json:"IsPartial"`
	IsFinal        bool              `json:"IsFinal"`
	PartialUploads []string          `json:"PartialUploads,omitempty"`
	MetaData       map[string]string `json:"MetaData,omitempty"`
	Storage        TusdStorage       `json:"Storage"`
}

type TusdHTTPRequest struct {
	Method     string              `json:"Method"`
	URI        string              `json:"URI"`
	RemoteAddr string              `json:"RemoteAddr"`
	Header     map[string][]string `json:"Header"`
}

// NewTusdPayload builds the "tusd"-format wire payload for a dispatched
// event.
func NewTusdPayload(kind engine.EventKind, snap engine.Snapshot) TusdPayload {
	u := snap.Upload
	return TusdPayload{
		Upload: TusdUpload{
			ID:             u.ID,
			Size:           u.Length,
			SizeIsDeferred: u.DeferredSize,
			Offset:         u.Offset,
			IsPartial:      u.IsPartial,
			IsFinal:        u.IsFinal,
			PartialUploads: u.Parts,
			MetaData:       u.Metadata,
			Storage:        TusdStorage{Type: u.Storage, Path: u.Path},
		},
		HTTPRequest: TusdHTTPRequest{
			Method:     snap.Request.Method,
			URI:        snap.Request.URI,
			RemoteAddr: snap.Request.RemoteAddr,
			Header:     snap.Request.Header,
		},
	}
}

// Marshal serializes an event's UploadSnapshot using the wire shape
// selected by format. An empty format behaves as FormatDefault, so
// notifiers with a zero-value Format field still produce valid output.
func Marshal(format Format, kind engine.EventKind, snap engine.Snapshot) ([]byte, error) {
	if format == FormatTusd {
		return json.Marshal(NewTusdPayload(kind, snap))
	}
	return json.Marshal(NewPayload(kind, snap))
}

func firstValues(header map[string][]string) map[string]string {
	if header == nil {
		return nil
	}
	out := make(map[string]string, len(header))
	for k, v := range header {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// Response is the JSON shape a notifier may reply with to influence a
// pre-event's verdict, modeled on the teacher's hooks.HookResponse.
type Response struct {
	RejectUpload   bool            `json:"rejectUpload"`
	Reason         string          `json:"reason"`
	ChangeMetadata engine.MetaData `json:"changeMetadata"`
}

// ToResult adapts a parsed Response into the Result shape Dispatcher uses.
func (r Response) ToResult() Result {
	return Result{Reject: r.RejectUpload, Reason: r.Reason, MetadataChange: r.ChangeMetadata}
}
