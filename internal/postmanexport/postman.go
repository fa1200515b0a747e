// Package postmanexport renders the global variable scope and parsed
// request scripts into Postman's collection/environment JSON schemas, for
// the export-environment and export-collection CLI subcommands.
package postmanexport

// CollectionDoc is a trimmed Postman Collection v2.1 document: enough of the
// schema for request scripts to round-trip into Postman's "Import" dialog,
// not the full schema's auth/proxy/certificate machinery.
type CollectionDoc struct {
	Info     Information `json:"info"`
	Item     []Item      `json:"item"`
	Event    []Event     `json:"event,omitempty"`
	Variable []Variable  `json:"variable,omitempty"`
}

type Information struct {
	PostmanID string `json:"_postman_id"`
	Name      string `json:"name"`
	Schema    string `json:"schema"`
}

const schemaURL = "https://schema.getpostman.com/json/collection/v2.1.0/collection.json"

// Item is either a folder (one per source file, holding Item) or a leaf
// request (one per RequestScript, holding Request).
type Item struct {
	Name    string   `json:"name"`
	Event   []Event  `json:"event,omitempty"`
	Request *Request `json:"request,omitempty"`
	Item    []Item   `json:"item,omitempty"`
}

type Request struct {
	Method string  `json:"method"`
	Header []Header `json:"header,omitempty"`
	Body   *Body    `json:"body,omitempty"`
	URL    string   `json:"url"`
}

type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Body struct {
	Mode string `json:"mode"`
	Raw  string `json:"raw"`
}

// Event binds a handler script to a Postman lifecycle hook: "prerequest"
// for our pre-request handler, "test" for our response handler.
type Event struct {
	Listen string `json:"listen"`
	Script Script `json:"script"`
}

type Script struct {
	Exec []string `json:"exec"`
	Type string   `json:"type"`
}

type EnvironmentDoc struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Values []Variable `json:"values"`
}

type Variable struct {
	Key     string `json:"key"`
	Value   any    `json:"value"`
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
}
