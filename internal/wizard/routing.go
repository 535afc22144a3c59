package wizard

import (
	"errors"
	"strings"

	"github.com/mark3labs/reposync/internal/provisioning"
)

const (
	connectionFailedTitle   = "Repository connection failed"
	connectionFailedMessage = "Unable to connect to the repository. Check the connection settings and try again."
	noIdentifierMessage     = "Repository saved but no identifier returned"
	saveFailedTitle         = "Repository request failed"
)

var providerPrefixes = []string{"github.", "gitlab.", "bitbucket.", "git.", "local."}

// NormalizeField maps a server field path ("spec.github.branch",
// "secure.token") onto a form FieldPath ("repository.branch").
func NormalizeField(raw string) FieldPath {
	f := strings.TrimSpace(raw)
	for _, p := range []string{"spec.", "secure."} {
		f = strings.TrimPrefix(f, p)
	}
	for _, p := range providerPrefixes {
		if strings.HasPrefix(f, p) {
			f = strings.TrimPrefix(f, p)
			break
		}
	}
	if f == "" {
		return ""
	}
	if strings.HasPrefix(f, "repository.") || strings.HasPrefix(f, "migrate.") || strings.HasPrefix(f, "auth.") {
		return FieldPath(f)
	}
	return FieldPath("repository." + f)
}

// inlineError is a field error that can be attached to a rendered field.
type inlineError struct {
	Field   FieldPath
	Message string
}

// routing is the exclusive split of one failure into inline errors and an
// optional step banner. banner is nil when every error is shown inline.
type routing struct {
	inline []inlineError
	banner *ErrorPayload
}

// routeFailure resolves the failure shape once and decides where each piece of
// it is shown.
func routeFailure(err error, step StepDescriptor, auth AuthMode) routing {
	var fe *provisioning.FetchError
	if !errors.As(err, &fe) {
		return routing{banner: &ErrorPayload{Title: connectionFailedTitle, Message: []string{connectionFailedMessage}}}
	}

	title := fe.Title
	if title == "" {
		title = saveFailedTitle
	}

	fields := provisioning.ExtractFieldErrors(err)
	if len(fields) == 0 {
		var msg []string
		if fe.Message != "" {
			msg = []string{fe.Message}
		}
		return routing{banner: &ErrorPayload{Title: title, Message: msg}}
	}

	if len(fields) == 1 && NormalizeField(fields[0].Field) == FieldToken && auth != AuthPAT {
		return routing{banner: &ErrorPayload{Title: connectionFailedTitle, Message: []string{connectionFailedMessage}}}
	}

	var r routing
	var hidden []string
	for _, f := range fields {
		field := NormalizeField(f.Field)
		if field != "" && step.Shows(field) {
			r.inline = append(r.inline, inlineError{Field: field, Message: f.Detail})
			continue
		}
		hidden = append(hidden, f.Detail)
	}

	if len(hidden) > 0 {
		r.banner = &ErrorPayload{Title: title, Message: []string{strings.Join(hidden, "\n")}}
	}
	return r
}
