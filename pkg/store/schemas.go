package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marmos91/attrsync/pkg/entity"
)

// ============================================
// SCHEMA OPERATIONS
// ============================================

// SchemaSet groups schema declarations by family.
type SchemaSet struct {
	Plain   []entity.PlainSchema   `yaml:"plain,omitempty"`
	Derived []entity.DerivedSchema `yaml:"derived,omitempty"`
	Virtual []entity.VirtualSchema `yaml:"virtual,omitempty"`
}

// Len returns the number of declarations.
func (s SchemaSet) Len() int {
	return len(s.Plain) + len(s.Derived) + len(s.Virtual)
}

// SaveSchemas creates or replaces every declaration in set.
func (s *GORMStore) SaveSchemas(ctx context.Context, set SchemaSet) error {
	var models []SchemaModel
	for _, ps := range set.Plain {
		models = append(models, SchemaModel{
			Family: SchemaFamilyPlain, Name: ps.Name, Type: ps.Type.String(),
			Multivalue: ps.Multivalue, Unique: ps.Unique,
		})
	}
	for _, ds := range set.Derived {
		models = append(models, SchemaModel{Family: SchemaFamilyDerived, Name: ds.Name, Expression: ds.Expression})
	}
	for _, vs := range set.Virtual {
		models = append(models, SchemaModel{Family: SchemaFamilyVirtual, Name: vs.Name, ReadOnly: vs.ReadOnly})
	}
	if len(models) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range models {
			models[i].ID = uuid.New().String()
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "family"}, {Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{"type", "multivalue", "is_unique", "read_only", "expression"}),
			}).Create(&models[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ListSchemas returns every stored declaration.
func (s *GORMStore) ListSchemas(ctx context.Context) (SchemaSet, error) {
	var models []SchemaModel
	if err := s.db.WithContext(ctx).Order("family, name").Find(&models).Error; err != nil {
		return SchemaSet{}, err
	}

	var set SchemaSet
	for _, m := range models {
		switch m.Family {
		case SchemaFamilyPlain:
			t, err := entity.ParseAttrType(m.Type)
			if err != nil {
				return SchemaSet{}, err
			}
			set.Plain = append(set.Plain, entity.PlainSchema{Name: m.Name, Type: t, Multivalue: m.Multivalue, Unique: m.Unique})
		case SchemaFamilyDerived:
			set.Derived = append(set.Derived, entity.DerivedSchema{Name: m.Name, Expression: m.Expression})
		case SchemaFamilyVirtual:
			set.Virtual = append(set.Virtual, entity.VirtualSchema{Name: m.Name, ReadOnly: m.ReadOnly})
		}
	}
	return set, nil
}

// LoadSchemas registers every stored declaration into schemas.
func (s *GORMStore) LoadSchemas(ctx context.Context, schemas *entity.Schemas) error {
	set, err := s.ListSchemas(ctx)
	if err != nil {
		return err
	}
	set.Register(schemas)
	return nil
}

// Register adds every declaration of set to schemas.
func (s SchemaSet) Register(schemas *entity.Schemas) {
	schemas.AddPlain(s.Plain...)
	schemas.AddDerived(s.Derived...)
	schemas.AddVirtual(s.Virtual...)
}
