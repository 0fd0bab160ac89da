package store

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/marmos91/attrsync/internal/logger"
	"github.com/marmos91/attrsync/pkg/mapping"
	"github.com/marmos91/attrsync/pkg/policy"
)

// Document is the YAML form of a full catalog: resources with their mapping
// items, schema declarations, password policies and realm bindings.
//
//	schemas:
//	  plain:
//	    - {name: email, type: String}
//	policies:
//	  strong: {min_length: 12, digit_required: true}
//	realms:
//	  /: strong
//	resources:
//	  - key: ldap
//	    password_policy: strong
//	    provisions: [...]
type Document struct {
	Schemas   SchemaSet               `yaml:"schemas,omitempty"`
	Policies  map[string]policy.Rules `yaml:"policies,omitempty"`
	Realms    map[string]string       `yaml:"realms,omitempty"`
	Resources []*mapping.Resource     `yaml:"resources"`
}

// ReadDocument parses a catalog document from path.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file %s: %w", path, err)
	}
	return &doc, nil
}

// Import saves every part of doc. Existing records with the same keys are
// replaced.
func (s *GORMStore) Import(ctx context.Context, doc *Document) error {
	if err := s.SaveSchemas(ctx, doc.Schemas); err != nil {
		return fmt.Errorf("failed to save schemas: %w", err)
	}
	for name, rules := range doc.Policies {
		if err := s.SavePolicy(ctx, name, rules); err != nil {
			return fmt.Errorf("failed to save password policy %s: %w", name, err)
		}
	}
	for realm, name := range doc.Realms {
		if err := s.SetRealmPolicy(ctx, realm, name); err != nil {
			return fmt.Errorf("failed to bind realm %s: %w", realm, err)
		}
	}
	for _, r := range doc.Resources {
		if err := s.SaveResource(ctx, r); err != nil {
			return err
		}
	}

	logger.InfoCtx(ctx, "catalog imported",
		"resources", len(doc.Resources),
		"schemas", doc.Schemas.Len(),
		"policies", len(doc.Policies),
		"realms", len(doc.Realms))
	return nil
}

// Export reads the whole catalog back into a Document.
func (s *GORMStore) Export(ctx context.Context) (*Document, error) {
	resources, err := s.ListResources(ctx)
	if err != nil {
		return nil, err
	}
	schemas, err := s.ListSchemas(ctx)
	if err != nil {
		return nil, err
	}
	policies, err := s.ListPolicies(ctx)
	if err != nil {
		return nil, err
	}
	realms, err := s.RealmPolicies(ctx)
	if err != nil {
		return nil, err
	}
	return &Document{Schemas: schemas, Policies: policies, Realms: realms, Resources: resources}, nil
}
