package domain

import (
	"strings"

	"github.com/thushan/ngsiproxy/internal/core/constants"
)

// AuthType selects how the broker request is authenticated
type AuthType string

const (
	AuthNone             AuthType = "none"
	AuthOAuth2           AuthType = "oauth2"
	AuthXAuthTokenFiware AuthType = "x-auth-token-fiware" // deprecated, IdM token on X-Auth-Token
)

// Normalise maps the empty value to AuthNone so callers never see ""
func (a AuthType) Normalise() AuthType {
	if a == "" {
		return AuthNone
	}
	return a
}

// RequiresToken reports whether a user access token has to be attached
func (a AuthType) RequiresToken() bool {
	return a.Normalise() != AuthNone
}

// Entity is one entity pattern of a registry resource as entered in the catalog form
type Entity struct {
	ID        string `json:"id" yaml:"id"`
	Value     string `json:"value" yaml:"value"`
	IsPattern string `json:"isPattern,omitempty" yaml:"isPattern,omitempty"`
	Delete    string `json:"delete,omitempty" yaml:"delete,omitempty"`
}

func (e Entity) Pattern() bool {
	return e.IsPattern == constants.CheckboxOn
}

func (e Entity) Deleted() bool {
	return e.Delete == constants.CheckboxOn
}

// Resource is the read-only view of a cataloged NGSI resource. Extras holds
// every persisted key the typed fields don't cover, including the flattened
// entity__N__* keys written by the catalog hooks.
type Resource struct {
	Extras      map[string]string `json:"extras,omitempty" yaml:"extras,omitempty"`
	ID          string            `json:"id" yaml:"id"`
	PackageID   string            `json:"package_id,omitempty" yaml:"package_id,omitempty"`
	Name        string            `json:"name,omitempty" yaml:"name,omitempty"`
	URL         string            `json:"url" yaml:"url"`
	Format      string            `json:"format" yaml:"format"`
	Payload     string            `json:"payload,omitempty" yaml:"payload,omitempty"`
	Tenant      string            `json:"tenant,omitempty" yaml:"tenant,omitempty"`
	ServicePath string            `json:"service_path,omitempty" yaml:"service_path,omitempty"`
	AuthType    AuthType          `json:"auth_type" yaml:"auth_type"`
	AttrsStr    string            `json:"attrs_str,omitempty" yaml:"attrs_str,omitempty"`
	Expression  string            `json:"expression,omitempty" yaml:"expression,omitempty"`
	Entity      []Entity          `json:"entity,omitempty" yaml:"entity,omitempty"`
}

// IsRegistry reports whether the resource uses the registration query mode.
// Format comparison is case-insensitive.
func (r *Resource) IsRegistry() bool {
	return strings.EqualFold(r.Format, constants.FormatNGSIRegistry)
}

// IsQuery reports whether the resource is a plain NGSI query resource
func (r *Resource) IsQuery() bool {
	return strings.EqualFold(r.Format, constants.FormatNGSI)
}

// Clone returns a deep copy so hooks can mutate without touching stored state
func (r *Resource) Clone() *Resource {
	if r == nil {
		return nil
	}
	c := *r
	if r.Extras != nil {
		c.Extras = make(map[string]string, len(r.Extras))
		for k, v := range r.Extras {
			c.Extras[k] = v
		}
	}
	if r.Entity != nil {
		c.Entity = append([]Entity(nil), r.Entity...)
	}
	return &c
}
