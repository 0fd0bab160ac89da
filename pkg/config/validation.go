package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return formatValidationErrors(verrs)
		}
		return err
	}

	if cfg.Catalog.Source == CatalogSourceDatabase {
		if err := cfg.Database.Validate(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	for key, c := range cfg.Connectors {
		if c.Type == ConnectorTypeLDAP && c.LDAP == nil {
			return fmt.Errorf("connectors.%s: ldap section is required for type ldap", key)
		}
	}

	return nil
}

// formatValidationErrors turns validator errors into one readable error
// naming the field path and the failed tag.
func formatValidationErrors(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s (value %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
