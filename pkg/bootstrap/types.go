// Package bootstrap loads the list of remote handlers to register at startup.
package bootstrap

import (
	"sort"
	"time"
)

// RemoteHandler is one handler served by another process over COMMS.
type RemoteHandler struct {
	Subject     string `json:"subject,omitempty" yaml:"subject,omitempty"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	TimeoutMs   int    `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
	Disabled    bool   `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// Timeout returns the per-call timeout, or zero for the remote handler default.
func (h RemoteHandler) Timeout() time.Duration {
	return time.Duration(h.TimeoutMs) * time.Millisecond
}

// BootstrapConfig is the root bootstrap configuration.
type BootstrapConfig struct {
	Name          string                   `json:"name" yaml:"name"`
	Version       string                   `json:"version" yaml:"version"`
	Description   string                   `json:"description,omitempty" yaml:"description,omitempty"`
	SubjectPrefix string                   `json:"subjectPrefix,omitempty" yaml:"subjectPrefix,omitempty"`
	Handlers      map[string]RemoteHandler `json:"handlers" yaml:"handlers"`
	Aliases       map[string]string        `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	ChangeEvents  ChangeEventSubjects      `json:"changeEventSubjects" yaml:"changeEventSubjects"`
}

// ChangeEventSubjects defines event subject patterns.
type ChangeEventSubjects struct {
	Global  string `json:"global" yaml:"global"`
	Pattern string `json:"pattern" yaml:"pattern"`
}

// ResolvedBootstrap provides fast lookup of bootstrap handlers.
type ResolvedBootstrap struct {
	name          string
	version       string
	subjectPrefix string
	handlers      map[string]*RemoteHandler
	aliases       map[string]string
	changeEvents  ChangeEventSubjects
}

// Get returns a handler entry by name or alias. Disabled entries are not returned.
func (rb *ResolvedBootstrap) Get(name string) *RemoteHandler {
	h, ok := rb.handlers[name]
	if !ok {
		if target, isAlias := rb.aliases[name]; isAlias {
			h, ok = rb.handlers[target]
		}
	}
	if !ok || h.Disabled {
		return nil
	}
	return h
}

// Names returns the enabled handler names in sorted order.
func (rb *ResolvedBootstrap) Names() []string {
	names := make([]string, 0, len(rb.handlers))
	for name, h := range rb.handlers {
		if !h.Disabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Aliases returns alias names in sorted order, each resolving to an enabled handler.
func (rb *ResolvedBootstrap) Aliases() []string {
	out := make([]string, 0, len(rb.aliases))
	for alias := range rb.aliases {
		if _, direct := rb.handlers[alias]; direct {
			continue
		}
		if rb.Get(alias) != nil {
			out = append(out, alias)
		}
	}
	sort.Strings(out)
	return out
}

// ResolveAlias resolves an alias to the handler name it points at.
func (rb *ResolvedBootstrap) ResolveAlias(alias string) string {
	if resolved, ok := rb.aliases[alias]; ok {
		return resolved
	}
	return alias
}

// SubjectPrefix returns the prefix for handlers without an explicit subject.
func (rb *ResolvedBootstrap) SubjectPrefix() string {
	return rb.subjectPrefix
}

// GlobalChangeSubject returns the global change event subject.
func (rb *ResolvedBootstrap) GlobalChangeSubject() string {
	return rb.changeEvents.Global
}

// ChangeSubjectPattern returns the per-change subject template, with {handler} and
// {operation} placeholders.
func (rb *ResolvedBootstrap) ChangeSubjectPattern() string {
	return rb.changeEvents.Pattern
}

// Name returns the bootstrap config name.
func (rb *ResolvedBootstrap) Name() string {
	return rb.name
}

// Version returns the bootstrap config version.
func (rb *ResolvedBootstrap) Version() string {
	return rb.version
}
