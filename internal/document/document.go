// Package document models the document-store side of a change
// notification: the before/after snapshots handed to a trigger and the
// context the trigger runtime attaches to the invocation.
package document

// Snapshot is one side of a change notification. Exists distinguishes
// "the document was not there" from "the document was there and empty",
// so callers never have to null-pun on Data.
type Snapshot struct {
	Exists bool
	Data   map[string]any
}

// Existing returns a snapshot for a document that was present at the
// time of the trigger.
func Existing(data map[string]any) Snapshot {
	return Snapshot{Exists: true, Data: data}
}

// Missing returns a snapshot for a document that did not exist.
func Missing() Snapshot {
	return Snapshot{}
}

// TriggerContext carries the metadata the trigger runtime supplies with
// each invocation: a unique id for the firing, the resource path of the
// changed document, and the path parameters extracted from it.
type TriggerContext struct {
	TriggerID string
	Resource  string
	Params    map[string]string
}

// Param returns the named path parameter, or "" when absent.
func (tc TriggerContext) Param(name string) string {
	return tc.Params[name]
}
