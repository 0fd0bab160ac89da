package mapping

import (
	"github.com/marmos91/attrsync/pkg/entity"
)

// Default connector object classes.
const (
	ObjectClassAccount = "__ACCOUNT__"
	ObjectClassGroup   = "__GROUP__"
)

// Provision binds an any type to an object class on a resource, together
// with its ordered mapping items.
type Provision struct {
	AnyType     string `yaml:"any_type" json:"any_type"`
	ObjectClass string `yaml:"object_class" json:"object_class"`

	// ConnObjectLink is an expression computing the outbound NAME.
	ConnObjectLink string `yaml:"conn_object_link,omitempty" json:"conn_object_link,omitempty"`

	Items []Item `yaml:"items" json:"items"`
}

// Resource is an external system reachable through a connector.
type Resource struct {
	Key string `yaml:"key" json:"key"`

	// RandomPasswordIfNotProvided makes outbound propagation generate a
	// password when the user has none to send.
	RandomPasswordIfNotProvided bool `yaml:"random_password_if_not_provided,omitempty" json:"random_password_if_not_provided,omitempty"`

	// PasswordPolicy names the password policy applied to users on this resource.
	PasswordPolicy string `yaml:"password_policy,omitempty" json:"password_policy,omitempty"`

	Provisions []Provision `yaml:"provisions" json:"provisions"`
}

// Provision returns the provision for anyType, or nil.
func (r *Resource) Provision(anyType string) *Provision {
	if r == nil {
		return nil
	}
	for i := range r.Provisions {
		if r.Provisions[i].AnyType == anyType {
			return &r.Provisions[i]
		}
	}
	return nil
}

// ObjectClassFor returns the provision's object class, defaulting on the
// entity kind when unset.
func (p *Provision) ObjectClassFor() string {
	if p.ObjectClass != "" {
		return p.ObjectClass
	}
	if entity.KindForAnyType(p.AnyType) == entity.KindGroup {
		return ObjectClassGroup
	}
	return ObjectClassAccount
}
