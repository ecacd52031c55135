// Package remote resolves links carried by events and aggregates to remote
// resources, and follows named relations to invoke remote commands.
//
// The traversal protocol is deliberately small: a resource representation
// carries a body plus a flat map of named relation links (e.g. "self",
// "commands.reserve"). Following a command relation executes the next saga
// step on a remote aggregate and returns its resulting representation.
package remote

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/orderflow/internal/platform/errors"
)

// Resource is one remote aggregate representation.
type Resource struct {
	// Body holds the decoded representation.
	Body map[string]any
	// Links maps relation names to resolvable links.
	Links map[string]string
}

// Link returns the named relation link, or "" when absent.
func (r Resource) Link(rel string) string {
	if r.Links == nil {
		return ""
	}
	return r.Links[rel]
}

// CommandLink returns the link for a "commands.<name>" sub-relation.
func (r Resource) CommandLink(name string) string {
	return r.Link("commands." + strings.TrimSpace(name))
}

// StringField returns a string field from the body, or "" when absent.
func (r Resource) StringField(key string) string {
	value, _ := r.Body[key].(string)
	return value
}

// Proxy resolves links to remote resources and invokes remote commands.
type Proxy interface {
	// Resolve fetches the resource behind a link.
	Resolve(ctx context.Context, link string) (Resource, error)
	// Command follows the resource's "commands.<name>" relation and
	// executes it with the given body.
	Command(ctx context.Context, resource Resource, name string, body map[string]any) (Resource, error)
}

// FollowCommand resolves a link and executes a named command on the
// resulting resource in one call.
func FollowCommand(ctx context.Context, proxy Proxy, link, name string, body map[string]any) (Resource, error) {
	if proxy == nil {
		return Resource{}, fmt.Errorf("remote proxy is not configured")
	}
	link = strings.TrimSpace(link)
	if link == "" {
		return Resource{}, apperrors.New(apperrors.CodeRemoteStepFailure, "remote link is required")
	}

	resource, err := proxy.Resolve(ctx, link)
	if err != nil {
		return Resource{}, apperrors.Wrap(apperrors.CodeRemoteStepFailure, fmt.Sprintf("resolve %s", link), err)
	}
	result, err := proxy.Command(ctx, resource, name, body)
	if err != nil {
		return Resource{}, apperrors.Wrap(apperrors.CodeRemoteStepFailure, fmt.Sprintf("command %s on %s", name, link), err)
	}
	return result, nil
}
