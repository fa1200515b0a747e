package postmanexport

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/kvz-tools/dothttp/internal/restscript"
)

// Environment renders one snapshot of the global scope as a Postman
// Environment, grounded on original_source/src/export/mod.rs's environment
// function: one Variable per snapshot entry, type left at the default.
func Environment(name string, snapshot map[string]any) EnvironmentDoc {
	env := EnvironmentDoc{ID: uuid.New().String(), Name: name}
	for key, value := range snapshot {
		env.Values = append(env.Values, Variable{Key: key, Value: value, Type: "default", Enabled: true})
	}
	return env
}

// NamedDocument pairs a parsed request file with the display name Postman
// should use for the folder that holds its requests.
type NamedDocument struct {
	FileName string
	Document *restscript.Document
}

// Collection renders a set of parsed files as a Postman Collection: one
// folder per file, one request item per RequestScript inside it. Handler
// scripts are carried over verbatim as prerequest/test events rather than
// translated into Postman's pm.* API — they still target this tool's own
// client/request/response object model, so they document intent on import
// but need hand-adaptation before they execute inside Postman itself.
func Collection(name string, docs []NamedDocument) CollectionDoc {
	col := CollectionDoc{
		Info: Information{PostmanID: uuid.New().String(), Name: name, Schema: schemaURL},
	}
	for _, doc := range docs {
		folder := Item{Name: doc.FileName}
		for i, script := range doc.Document.Scripts {
			folder.Item = append(folder.Item, requestItem(i, script))
		}
		col.Item = append(col.Item, folder)
	}
	return col
}

func requestItem(index int, script restscript.RequestScript) Item {
	name := script.Name
	if name == "" {
		name = defaultScriptName(index)
	}

	item := Item{
		Name: name,
		Request: &Request{
			Method: script.Request.Method,
			URL:    script.Request.Target.Raw(),
			Header: requestHeaders(script.Request.Headers),
		},
	}
	if script.HasBody {
		item.Request.Body = &Body{Mode: "raw", Raw: script.Body.Raw()}
	}
	if script.HasPreHandler {
		item.Event = append(item.Event, Event{Listen: "prerequest", Script: Script{Exec: scriptLines(script.PreHandler), Type: "text/javascript"}})
	}
	if script.HasResponseHandler {
		item.Event = append(item.Event, Event{Listen: "test", Script: Script{Exec: scriptLines(script.ResponseHandler), Type: "text/javascript"}})
	}
	return item
}

func requestHeaders(fields []restscript.HeaderField) []Header {
	var headers []Header
	for _, f := range fields {
		headers = append(headers, Header{Key: f.Name.Raw(), Value: f.Value.Raw()})
	}
	return headers
}

func scriptLines(script string) []string {
	return strings.Split(script, "\n")
}

func defaultScriptName(index int) string {
	return "#" + strconv.Itoa(index+1)
}
