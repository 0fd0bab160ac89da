package entity

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// AttrType is the declared type of a plain schema.
type AttrType int

const (
	TypeString AttrType = iota
	TypeLong
	TypeDouble
	TypeBoolean
	TypeDate
	TypeEnum
	TypeBinary
)

// DateLayouts are tried in order when coercing textual dates.
var DateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func (t AttrType) String() string {
	switch t {
	case TypeString:
		return "String"
	case TypeLong:
		return "Long"
	case TypeDouble:
		return "Double"
	case TypeBoolean:
		return "Boolean"
	case TypeDate:
		return "Date"
	case TypeEnum:
		return "Enum"
	case TypeBinary:
		return "Binary"
	default:
		return fmt.Sprintf("AttrType(%d)", int(t))
	}
}

// ParseAttrType parses the textual form produced by AttrType.String.
func ParseAttrType(s string) (AttrType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "string":
		return TypeString, nil
	case "long":
		return TypeLong, nil
	case "double":
		return TypeDouble, nil
	case "boolean":
		return TypeBoolean, nil
	case "date":
		return TypeDate, nil
	case "enum":
		return TypeEnum, nil
	case "binary":
		return TypeBinary, nil
	default:
		return TypeString, fmt.Errorf("unknown attribute type %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t AttrType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *AttrType) UnmarshalText(text []byte) error {
	parsed, err := ParseAttrType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Coerce converts a raw connector value into the canonical string form of t.
// Binary values are base64 encoded, dates are RFC3339, numbers use their
// shortest decimal form.
func Coerce(t AttrType, raw any) (string, error) {
	switch t {
	case TypeString, TypeEnum:
		return stringOf(raw), nil

	case TypeBinary:
		switch v := raw.(type) {
		case []byte:
			return base64.StdEncoding.EncodeToString(v), nil
		case string:
			return base64.StdEncoding.EncodeToString([]byte(v)), nil
		default:
			return "", fmt.Errorf("cannot convert %T to %s", raw, t)
		}

	case TypeLong:
		switch v := raw.(type) {
		case int:
			return strconv.FormatInt(int64(v), 10), nil
		case int32:
			return strconv.FormatInt(int64(v), 10), nil
		case int64:
			return strconv.FormatInt(v, 10), nil
		case uint32:
			return strconv.FormatUint(uint64(v), 10), nil
		case uint64:
			return strconv.FormatUint(v, 10), nil
		}
		n, err := strconv.ParseInt(strings.TrimSpace(stringOf(raw)), 10, 64)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(n, 10), nil

	case TypeDouble:
		switch v := raw.(type) {
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		case float32:
			return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(stringOf(raw)), 64)
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil

	case TypeBoolean:
		if v, ok := raw.(bool); ok {
			return strconv.FormatBool(v), nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(stringOf(raw)))
		if err != nil {
			return "", err
		}
		return strconv.FormatBool(b), nil

	case TypeDate:
		if v, ok := raw.(time.Time); ok {
			return v.UTC().Format(time.RFC3339), nil
		}
		s := strings.TrimSpace(stringOf(raw))
		for _, layout := range DateLayouts {
			if d, err := time.Parse(layout, s); err == nil {
				return d.UTC().Format(time.RFC3339), nil
			}
		}
		return "", fmt.Errorf("cannot parse %q as date", s)

	default:
		return "", fmt.Errorf("unsupported attribute type %s", t)
	}
}

func stringOf(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// PlainSchema declares a statically stored attribute.
type PlainSchema struct {
	Name       string   `yaml:"name" json:"name"`
	Type       AttrType `yaml:"type" json:"type"`
	Multivalue bool     `yaml:"multivalue" json:"multivalue"`
	Unique     bool     `yaml:"unique" json:"unique"`
}

// DerivedSchema declares a read-only attribute computed from an expression.
type DerivedSchema struct {
	Name       string `yaml:"name" json:"name"`
	Expression string `yaml:"expression" json:"expression"`
}

// VirtualSchema declares an attribute whose values live on external resources.
// Read-only virtual schemas are never propagated outward.
type VirtualSchema struct {
	Name     string `yaml:"name" json:"name"`
	ReadOnly bool   `yaml:"readonly" json:"readonly"`
}

// Schemas is a concurrent registry of schema declarations.
type Schemas struct {
	mu      sync.RWMutex
	plain   map[string]PlainSchema
	derived map[string]DerivedSchema
	virtual map[string]VirtualSchema
}

// NewSchemas creates an empty registry.
func NewSchemas() *Schemas {
	return &Schemas{
		plain:   make(map[string]PlainSchema),
		derived: make(map[string]DerivedSchema),
		virtual: make(map[string]VirtualSchema),
	}
}

func (s *Schemas) AddPlain(schemas ...PlainSchema) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ps := range schemas {
		s.plain[ps.Name] = ps
	}
}

func (s *Schemas) AddDerived(schemas ...DerivedSchema) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ds := range schemas {
		s.derived[ds.Name] = ds
	}
}

func (s *Schemas) AddVirtual(schemas ...VirtualSchema) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, vs := range schemas {
		s.virtual[vs.Name] = vs
	}
}

// Plain returns the named plain schema. Undeclared schemas are reported as
// single-valued strings with ok=false.
func (s *Schemas) Plain(name string) (PlainSchema, bool) {
	if s == nil {
		return PlainSchema{Name: name}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ps, ok := s.plain[name]
	if !ok {
		return PlainSchema{Name: name}, false
	}
	return ps, true
}

func (s *Schemas) Derived(name string) (DerivedSchema, bool) {
	if s == nil {
		return DerivedSchema{Name: name}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ds, ok := s.derived[name]
	return ds, ok
}

func (s *Schemas) Virtual(name string) (VirtualSchema, bool) {
	if s == nil {
		return VirtualSchema{Name: name}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	vs, ok := s.virtual[name]
	if !ok {
		return VirtualSchema{Name: name}, false
	}
	return vs, true
}
