// Package watch turns filesystem notifications for the source tree into debounced
// recompilation requests.
package watch

// Kind classifies a filesystem event.
type Kind string

const (
	KindAccess Kind = "access"
	KindCreate Kind = "create"
	KindModify Kind = "modify"
	KindRemove Kind = "remove"
	KindRename Kind = "rename"
)

// Event is one change to one path.
type Event struct {
	Kind Kind
	Path string
}

// Source produces filesystem events until it is closed.
type Source interface {
	Events() <-chan Event
	Errors() <-chan error
	Close() error
}
