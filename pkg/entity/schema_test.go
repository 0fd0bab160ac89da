package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name    string
		typ     AttrType
		raw     any
		want    string
		wantErr bool
	}{
		{"StringFromString", TypeString, "alice", "alice", false},
		{"StringFromBytes", TypeString, []byte("bob"), "bob", false},
		{"StringFromInt", TypeString, 42, "42", false},
		{"BinaryFromBytes", TypeBinary, []byte{0x01, 0x02}, "AQI=", false},
		{"BinaryFromInt", TypeBinary, 7, "", true},
		{"LongFromInt64", TypeLong, int64(12), "12", false},
		{"LongFromString", TypeLong, " 34 ", "34", false},
		{"LongInvalid", TypeLong, "abc", "", true},
		{"DoubleFromString", TypeDouble, "1.50", "1.5", false},
		{"BooleanFromString", TypeBoolean, "TRUE", "true", false},
		{"BooleanInvalid", TypeBoolean, "maybe", "", true},
		{"DateOnly", TypeDate, "2024-03-01", "2024-03-01T00:00:00Z", false},
		{"DateRFC3339", TypeDate, "2024-03-01T10:00:00+02:00", "2024-03-01T08:00:00Z", false},
		{"DateFromTime", TypeDate, time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC), "2020-01-02T03:04:05Z", false},
		{"DateInvalid", TypeDate, "yesterday", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.typ, tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAttrType(t *testing.T) {
	for _, typ := range []AttrType{TypeString, TypeLong, TypeDouble, TypeBoolean, TypeDate, TypeEnum, TypeBinary} {
		parsed, err := ParseAttrType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, parsed)
	}

	_, err := ParseAttrType("blob")
	assert.Error(t, err)
}

func TestSchemas(t *testing.T) {
	s := NewSchemas()
	s.AddPlain(PlainSchema{Name: "email", Type: TypeString, Multivalue: true})
	s.AddVirtual(VirtualSchema{Name: "phone", ReadOnly: true})
	s.AddDerived(DerivedSchema{Name: "cn", Expression: "{{ .firstname }}"})

	ps, ok := s.Plain("email")
	assert.True(t, ok)
	assert.True(t, ps.Multivalue)

	ps, ok = s.Plain("undeclared")
	assert.False(t, ok)
	assert.Equal(t, TypeString, ps.Type)

	vs, ok := s.Virtual("phone")
	assert.True(t, ok)
	assert.True(t, vs.ReadOnly)

	ds, ok := s.Derived("cn")
	assert.True(t, ok)
	assert.Equal(t, "{{ .firstname }}", ds.Expression)

	var nilSchemas *Schemas
	_, ok = nilSchemas.Plain("email")
	assert.False(t, ok)
}
