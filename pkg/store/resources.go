package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marmos91/attrsync/pkg/mapping"
)

// ============================================
// RESOURCE OPERATIONS
// ============================================

func preloadResource(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Provisions", func(db *gorm.DB) *gorm.DB { return db.Order("any_type") }).
		Preload("Provisions.Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") })
}

// GetResource returns the resource with the given key.
func (s *GORMStore) GetResource(ctx context.Context, key string) (*mapping.Resource, error) {
	var m ResourceModel
	err := preloadResource(s.db.WithContext(ctx)).
		Where("resource_key = ?", key).
		First(&m).Error
	if err != nil {
		return nil, convertNotFoundError(err, "resource "+key)
	}
	return m.toResource()
}

// ListResources returns every resource ordered by key. It implements
// mapping.Source.
func (s *GORMStore) ListResources(ctx context.Context) ([]*mapping.Resource, error) {
	var models []ResourceModel
	if err := preloadResource(s.db.WithContext(ctx)).
		Order("resource_key").
		Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]*mapping.Resource, 0, len(models))
	for i := range models {
		r, err := models[i].toResource()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// CreateResource stores a new resource. It fails with ErrDuplicate when the
// key is taken and with mapping.ErrInvalidMapping when a provision is invalid.
func (s *GORMStore) CreateResource(ctx context.Context, r *mapping.Resource) (string, error) {
	if err := validateResource(r); err != nil {
		return "", err
	}
	m := resourceToModel(r)
	assignIDs(m)

	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueConstraintError(err) {
			return "", fmt.Errorf("resource %s: %w", r.Key, ErrDuplicate)
		}
		return "", err
	}
	return m.ID, nil
}

// SaveResource creates the resource or replaces every provision and item of
// an existing one with the same key.
func (s *GORMStore) SaveResource(ctx context.Context, r *mapping.Resource) error {
	if err := validateResource(r); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing ResourceModel
		err := tx.Where("resource_key = ?", r.Key).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			m := resourceToModel(r)
			assignIDs(m)
			return tx.Create(m).Error
		case err != nil:
			return err
		}

		if err := deleteProvisions(tx, existing.ID); err != nil {
			return err
		}

		m := resourceToModel(r)
		m.ID = existing.ID
		assignIDs(m)
		if err := tx.Model(&existing).Updates(map[string]any{
			"random_password_if_not_provided": m.RandomPasswordIfNotProvided,
			"password_policy":                 m.PasswordPolicy,
		}).Error; err != nil {
			return err
		}
		for i := range m.Provisions {
			if err := tx.Create(&m.Provisions[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteResource removes a resource with its provisions and items.
func (s *GORMStore) DeleteResource(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m ResourceModel
		if err := tx.Where("resource_key = ?", key).First(&m).Error; err != nil {
			return convertNotFoundError(err, "resource "+key)
		}
		if err := deleteProvisions(tx, m.ID); err != nil {
			return err
		}
		return tx.Delete(&m).Error
	})
}

func deleteProvisions(tx *gorm.DB, resourceID string) error {
	var ids []string
	if err := tx.Model(&ProvisionModel{}).
		Where("resource_id = ?", resourceID).
		Pluck("id", &ids).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("provision_id IN ?", ids).Delete(&ItemModel{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&ProvisionModel{}).Error
}

func validateResource(r *mapping.Resource) error {
	if r == nil || r.Key == "" {
		return fmt.Errorf("%w: resource without key", mapping.ErrInvalidMapping)
	}
	for i := range r.Provisions {
		if err := mapping.Validate(&r.Provisions[i]); err != nil {
			return fmt.Errorf("resource %s: %w", r.Key, err)
		}
	}
	return nil
}

func assignIDs(m *ResourceModel) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	for i := range m.Provisions {
		p := &m.Provisions[i]
		p.ID = uuid.New().String()
		p.ResourceID = m.ID
		for j := range p.Items {
			p.Items[j].ID = uuid.New().String()
			p.Items[j].ProvisionID = p.ID
		}
	}
}
