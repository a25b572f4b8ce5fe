package multiparse

import "fmt"

// A Parser turns one line of input into at most one JSON record.
//
// Implementations are stateless per line: AppendLine is called concurrently
// from every worker in the pipeline with no coordination between calls, so
// any internal state must be immutable after construction (or guarded by the
// implementation itself).
type Parser interface {
	// Name identifies the parser in the registry and on the command line.
	Name() string

	// Description is a one-line human readable summary, shown by `list`.
	Description() string

	// AppendLine appends at most one serialized JSON record for line to
	// dst and returns the extended buffer, reporting whether a record was
	// appended.  The record must be self-delimiting and contain no newline;
	// the pipeline appends the terminating '\n' itself.  Returning false
	// means the line was declined (blank, unparseable) and contributes no
	// output.
	AppendLine(dst []byte, line string) ([]byte, bool)
}

// A Registry holds the parsers available to a run.  It is built explicitly
// at startup and handed to whatever needs lookup; there is no package-level
// registration.
type Registry struct {
	byName map[string]Parser
	names  []string
}

// NewRegistry builds a registry from the given parsers.  Registering two
// parsers with the same name is a programming error and panics.
func NewRegistry(parsers ...Parser) *Registry {
	r := &Registry{byName: make(map[string]Parser, len(parsers))}
	for _, p := range parsers {
		name := p.Name()
		if _, exists := r.byName[name]; exists {
			panic(fmt.Sprintf("multiparse: duplicate parser name %q", name))
		}
		r.byName[name] = p
		r.names = append(r.names, name)
	}
	return r
}

// Lookup returns the parser registered under name.
func (r *Registry) Lookup(name string) (Parser, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// Names returns the parser names in registration order.
func (r *Registry) Names() []string {
	return r.names
}
