package commands

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/marmos91/attrsync/cmd/attrsync/cmdutil"
	"github.com/marmos91/attrsync/pkg/connector"
	"github.com/marmos91/attrsync/pkg/entity"
	"github.com/marmos91/attrsync/pkg/mapping"
)

// objectFile is the on-disk form of a connector object.
type objectFile struct {
	ObjectClass string           `yaml:"object_class"`
	UID         string           `yaml:"uid"`
	Name        string           `yaml:"name"`
	Attributes  map[string][]any `yaml:"attributes"`
}

func readObject(path string) (*connector.Object, error) {
	var f objectFile
	if err := cmdutil.ReadYAML(path, &f); err != nil {
		return nil, err
	}
	if f.ObjectClass == "" {
		f.ObjectClass = mapping.ObjectClassAccount
	}
	obj := &connector.Object{ObjectClass: f.ObjectClass, UID: f.UID, Name: f.Name}
	for _, name := range slices.Sorted(maps.Keys(f.Attributes)) {
		obj.Attributes = append(obj.Attributes, connector.NewAttribute(name, f.Attributes[name]...))
	}
	return obj, nil
}

// readEntity decodes an entity file. An empty path yields nil.
func readEntity(path string) (*entity.Entity, error) {
	if path == "" {
		return nil, nil
	}
	var e entity.Entity
	if err := cmdutil.ReadYAML(path, &e); err != nil {
		return nil, err
	}
	if e.Type == "" {
		e.Type = e.Kind.String()
	}
	e.EnsureMaps()
	for name, a := range e.Plain {
		if a.Schema == "" {
			a.Schema = name
		}
	}
	for name, a := range e.Virtual {
		if a.Schema == "" {
			a.Schema = name
		}
	}
	for name, a := range e.Derived {
		if a.Schema == "" {
			a.Schema = name
		}
	}
	return &e, nil
}

// entityView renders an entity as a field/value table. The clear-text
// password is never shown.
type entityView struct {
	*entity.Entity `yaml:",inline"`
}

func newEntityView(e *entity.Entity) entityView {
	c := e.Clone()
	if c.Password != "" {
		c.Password = ""
		c.EncodedPassword = "******"
	}
	return entityView{c}
}

func (v entityView) Headers() []string { return []string{"Field", "Value"} }

func (v entityView) Rows() [][]string {
	e := v.Entity
	rows := [][]string{
		{"kind", e.Kind.String()},
		{"type", e.Type},
		{"key", e.Key},
		{"realm", e.Realm},
	}
	if e.Kind == entity.KindUser {
		rows = append(rows, []string{"username", e.Username})
	} else {
		rows = append(rows, []string{"name", e.Name})
	}
	if e.EncodedPassword != "" {
		rows = append(rows, []string{"password", e.EncodedPassword})
	}
	rows = append(rows, []string{"resources", strings.Join(e.Resources, ", ")})
	rows = appendAttrRows(rows, "plain", e.Plain)
	rows = appendAttrRows(rows, "derived", e.Derived)
	rows = appendAttrRows(rows, "virtual", e.Virtual)
	return rows
}

func appendAttrRows(rows [][]string, family string, attrs map[string]*entity.Attr) [][]string {
	for _, name := range slices.Sorted(maps.Keys(attrs)) {
		rows = append(rows, []string{family + "." + name, strings.Join(attrs[name].EffectiveValues(), ", ")})
	}
	return rows
}

// attributesView renders connector attributes with passwords masked.
type attributesView struct {
	AccountID  string              `json:"account_id" yaml:"account_id"`
	Name       string              `json:"name" yaml:"name"`
	Attributes map[string][]string `json:"attributes" yaml:"attributes"`
	Warnings   []string            `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func newAttributesView(accountID, name string, attrs []connector.Attribute) *attributesView {
	v := &attributesView{AccountID: accountID, Name: name, Attributes: make(map[string][]string, len(attrs))}
	for _, a := range attrs {
		if a.Name == connector.PasswordAttr {
			v.Attributes[a.Name] = []string{"******"}
			continue
		}
		v.Attributes[a.Name] = a.Strings()
	}
	return v
}

func (v *attributesView) Headers() []string { return []string{"Attribute", "Values"} }

func (v *attributesView) Rows() [][]string {
	rows := [][]string{{"account id", v.AccountID}}
	for _, name := range slices.Sorted(maps.Keys(v.Attributes)) {
		rows = append(rows, []string{name, strings.Join(v.Attributes[name], ", ")})
	}
	for _, w := range v.Warnings {
		rows = append(rows, []string{"warning", w})
	}
	return rows
}

func warningStrings[W fmt.Stringer](warnings []W) []string {
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, w.String())
	}
	return out
}
