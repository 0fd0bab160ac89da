package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/marmos91/attrsync/pkg/entity"
	"github.com/marmos91/attrsync/pkg/mapping"
	"github.com/marmos91/attrsync/pkg/policy"
)

// allModels returns every model migrated on SQLite. Keep migrations/ in step.
func allModels() []any {
	return []any{
		&ResourceModel{},
		&ProvisionModel{},
		&ItemModel{},
		&SchemaModel{},
		&PolicyModel{},
		&RealmModel{},
	}
}

// ResourceModel is a persisted mapping.Resource.
type ResourceModel struct {
	ID                          string           `gorm:"primaryKey;size:36"`
	Key                         string           `gorm:"column:resource_key;uniqueIndex;not null;size:255"`
	RandomPasswordIfNotProvided bool             `gorm:"default:false"`
	PasswordPolicy              string           `gorm:"size:255"`
	Provisions                  []ProvisionModel `gorm:"foreignKey:ResourceID;constraint:OnDelete:CASCADE"`
	CreatedAt                   time.Time        `gorm:"autoCreateTime"`
	UpdatedAt                   time.Time        `gorm:"autoUpdateTime"`
}

func (ResourceModel) TableName() string { return "resources" }

// ProvisionModel is a persisted mapping.Provision.
type ProvisionModel struct {
	ID             string      `gorm:"primaryKey;size:36"`
	ResourceID     string      `gorm:"not null;size:36;uniqueIndex:idx_provision_any_type"`
	AnyType        string      `gorm:"not null;size:255;uniqueIndex:idx_provision_any_type"`
	ObjectClass    string      `gorm:"size:255"`
	ConnObjectLink string      `gorm:"type:text"`
	Items          []ItemModel `gorm:"foreignKey:ProvisionID;constraint:OnDelete:CASCADE"`
}

func (ProvisionModel) TableName() string { return "provisions" }

// ItemModel is a persisted mapping.Item. Position keeps catalog order.
type ItemModel struct {
	ID                 string `gorm:"primaryKey;size:36"`
	ProvisionID        string `gorm:"not null;size:36;index"`
	Position           int    `gorm:"not null"`
	IntAttrName        string `gorm:"size:255"`
	ExtAttrName        string `gorm:"size:255"`
	Kind               string `gorm:"not null;size:50"`
	Entity             string `gorm:"not null;size:50"`
	AccountID          bool   `gorm:"default:false"`
	Password           bool   `gorm:"default:false"`
	MandatoryCondition string `gorm:"type:text"`
	Multivalue         bool   `gorm:"default:false"`
	Purpose            string `gorm:"size:50"`
}

func (ItemModel) TableName() string { return "mapping_items" }

// Schema families stored in SchemaModel.Family.
const (
	SchemaFamilyPlain   = "plain"
	SchemaFamilyDerived = "derived"
	SchemaFamilyVirtual = "virtual"
)

// SchemaModel is a persisted plain, derived or virtual schema declaration.
type SchemaModel struct {
	ID         string `gorm:"primaryKey;size:36"`
	Family     string `gorm:"not null;size:20;uniqueIndex:idx_schema_name"`
	Name       string `gorm:"not null;size:255;uniqueIndex:idx_schema_name"`
	Type       string `gorm:"size:50"`
	Multivalue bool   `gorm:"default:false"`
	Unique     bool   `gorm:"column:is_unique;default:false"`
	ReadOnly   bool   `gorm:"default:false"`
	Expression string `gorm:"type:text"`
}

func (SchemaModel) TableName() string { return "schemas" }

// PolicyModel is a named password policy; Rules holds policy.Rules as JSON.
type PolicyModel struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Name      string    `gorm:"uniqueIndex;not null;size:255"`
	Rules     string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (PolicyModel) TableName() string { return "password_policies" }

// GetRules decodes the stored rules.
func (p *PolicyModel) GetRules() (*policy.Rules, error) {
	var r policy.Rules
	if err := json.Unmarshal([]byte(p.Rules), &r); err != nil {
		return nil, fmt.Errorf("policy %s: %w", p.Name, err)
	}
	return &r, nil
}

// SetRules encodes r into the model.
func (p *PolicyModel) SetRules(r policy.Rules) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	p.Rules = string(data)
	return nil
}

// RealmModel binds a realm path to a password policy.
type RealmModel struct {
	ID             string `gorm:"primaryKey;size:36"`
	Path           string `gorm:"uniqueIndex;not null;size:1024"`
	PasswordPolicy string `gorm:"size:255"`
}

func (RealmModel) TableName() string { return "realms" }

func resourceToModel(r *mapping.Resource) *ResourceModel {
	m := &ResourceModel{
		Key:                         r.Key,
		RandomPasswordIfNotProvided: r.RandomPasswordIfNotProvided,
		PasswordPolicy:              r.PasswordPolicy,
	}
	for _, p := range r.Provisions {
		pm := ProvisionModel{
			AnyType:        p.AnyType,
			ObjectClass:    p.ObjectClass,
			ConnObjectLink: p.ConnObjectLink,
		}
		for i, it := range p.Items {
			pm.Items = append(pm.Items, ItemModel{
				Position:           i,
				IntAttrName:        it.IntAttrName,
				ExtAttrName:        it.ExtAttrName,
				Kind:               it.Kind.String(),
				Entity:             it.Entity.String(),
				AccountID:          it.AccountID,
				Password:           it.Password,
				MandatoryCondition: it.MandatoryCondition,
				Multivalue:         it.Multivalue,
				Purpose:            it.Purpose.String(),
			})
		}
		m.Provisions = append(m.Provisions, pm)
	}
	return m
}

func (m *ResourceModel) toResource() (*mapping.Resource, error) {
	r := &mapping.Resource{
		Key:                         m.Key,
		RandomPasswordIfNotProvided: m.RandomPasswordIfNotProvided,
		PasswordPolicy:              m.PasswordPolicy,
	}
	for _, pm := range m.Provisions {
		p := mapping.Provision{
			AnyType:        pm.AnyType,
			ObjectClass:    pm.ObjectClass,
			ConnObjectLink: pm.ConnObjectLink,
		}
		for _, im := range pm.Items {
			it, err := im.toItem()
			if err != nil {
				return nil, fmt.Errorf("resource %s: %w", m.Key, err)
			}
			p.Items = append(p.Items, it)
		}
		r.Provisions = append(r.Provisions, p)
	}
	return r, nil
}

func (im *ItemModel) toItem() (mapping.Item, error) {
	kind, err := mapping.ParseKind(im.Kind)
	if err != nil {
		return mapping.Item{}, err
	}
	ek, err := entity.ParseKind(im.Entity)
	if err != nil {
		return mapping.Item{}, err
	}
	purpose, err := mapping.ParsePurpose(im.Purpose)
	if err != nil {
		return mapping.Item{}, err
	}
	return mapping.Item{
		IntAttrName:        im.IntAttrName,
		ExtAttrName:        im.ExtAttrName,
		Kind:               kind,
		Entity:             ek,
		AccountID:          im.AccountID,
		Password:           im.Password,
		MandatoryCondition: im.MandatoryCondition,
		Multivalue:         im.Multivalue,
		Purpose:            purpose,
	}, nil
}
