package commsutil

import (
	"fmt"
	"strings"
)

// Default COMMS subjects.
const (
	SubjectFetcher       = "fetcher.requests.v1"
	SubjectHandlerPrefix = "fetcher.handler"
	SubjectChangeEvent   = "resource.changed"
	QueueGroup           = "fetcher"
)

// BuildChangeSubject builds a granular change event subject.
func BuildChangeSubject(handler, operation string) string {
	return fmt.Sprintf("%s.%s.%s", SubjectChangeEvent, token(handler), token(operation))
}

// ExpandChangeSubject fills the {handler} and {operation} placeholders of pattern.
// An empty pattern yields BuildChangeSubject.
func ExpandChangeSubject(pattern, handler, operation string) string {
	if pattern == "" {
		return BuildChangeSubject(handler, operation)
	}
	return strings.NewReplacer("{handler}", token(handler), "{operation}", token(operation)).Replace(pattern)
}

// BuildHandlerSubject builds the subject a remote handler listens on.
func BuildHandlerSubject(prefix, handler string) string {
	if prefix == "" {
		prefix = SubjectHandlerPrefix
	}
	return fmt.Sprintf("%s.%s", prefix, token(handler))
}

// token makes s safe as a single subject token.
func token(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "_"
	}
	return strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(s)
}
