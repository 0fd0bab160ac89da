package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marmos91/attrsync/pkg/policy"
)

// ============================================
// PASSWORD POLICY OPERATIONS
// ============================================

// GetPolicy returns the rules of the named policy.
func (s *GORMStore) GetPolicy(ctx context.Context, name string) (*policy.Rules, error) {
	var m PolicyModel
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&m).Error; err != nil {
		return nil, convertNotFoundError(err, "password policy "+name)
	}
	return m.GetRules()
}

// ListPolicies returns every policy keyed by name.
func (s *GORMStore) ListPolicies(ctx context.Context) (map[string]policy.Rules, error) {
	var models []PolicyModel
	if err := s.db.WithContext(ctx).Order("name").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make(map[string]policy.Rules, len(models))
	for i := range models {
		r, err := models[i].GetRules()
		if err != nil {
			return nil, err
		}
		out[models[i].Name] = *r
	}
	return out, nil
}

// SavePolicy creates or replaces the named policy.
func (s *GORMStore) SavePolicy(ctx context.Context, name string, rules policy.Rules) error {
	m := PolicyModel{ID: uuid.New().String(), Name: name}
	if err := m.SetRules(rules); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"rules", "updated_at"}),
	}).Create(&m).Error
}

// DeletePolicy removes the named policy.
func (s *GORMStore) DeletePolicy(ctx context.Context, name string) error {
	res := s.db.WithContext(ctx).Where("name = ?", name).Delete(&PolicyModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("password policy %s: %w", name, ErrNotFound)
	}
	return nil
}

// SetRealmPolicy binds realm to the named policy. An empty name unbinds it.
func (s *GORMStore) SetRealmPolicy(ctx context.Context, realm, policyName string) error {
	m := RealmModel{ID: uuid.New().String(), Path: realm, PasswordPolicy: policyName}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"password_policy"}),
	}).Create(&m).Error
}

// RealmPolicies returns every realm binding keyed by realm path.
func (s *GORMStore) RealmPolicies(ctx context.Context) (map[string]string, error) {
	var models []RealmModel
	if err := s.db.WithContext(ctx).Order("path").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(models))
	for _, m := range models {
		out[m.Path] = m.PasswordPolicy
	}
	return out, nil
}

// RealmRules implements policy.Store. Realms without a policy yield nil.
func (s *GORMStore) RealmRules(ctx context.Context, realm string) (*policy.Rules, error) {
	var m RealmModel
	err := s.db.WithContext(ctx).Where("path = ?", realm).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.rulesOrNil(ctx, m.PasswordPolicy)
}

// ResourceRules implements policy.Store. Resources without a policy yield nil.
func (s *GORMStore) ResourceRules(ctx context.Context, resourceKey string) (*policy.Rules, error) {
	var m ResourceModel
	err := s.db.WithContext(ctx).Select("password_policy").Where("resource_key = ?", resourceKey).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.rulesOrNil(ctx, m.PasswordPolicy)
}

// rulesOrNil resolves a policy name. Dangling names are treated as no policy.
func (s *GORMStore) rulesOrNil(ctx context.Context, name string) (*policy.Rules, error) {
	if name == "" {
		return nil, nil
	}
	rules, err := s.GetPolicy(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return rules, err
}
