package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resourceRows [][]string

func (r resourceRows) Headers() []string { return []string{"Resource", "Any Type"} }
func (r resourceRows) Rows() [][]string  { return r }

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{input: "", want: FormatTable},
		{input: "table", want: FormatTable},
		{input: "JSON", want: FormatJSON},
		{input: " yml ", want: FormatYAML},
		{input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrinterTable(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable, false)

	require.NoError(t, p.Print(resourceRows{{"ldap", "USER"}, {"crm", "GROUP"}}))
	out := buf.String()
	assert.Contains(t, out, "RESOURCE")
	assert.Contains(t, out, "ldap")
	assert.Contains(t, out, "GROUP")
}

func TestPrinterFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable, false)

	require.NoError(t, p.Print(map[string]string{"account_id": "rossini"}))
	assert.Contains(t, buf.String(), `"account_id": "rossini"`)
}

func TestPrinterYAML(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatYAML, false)

	require.NoError(t, p.Print([]struct {
		Schema string `yaml:"schema"`
	}{{Schema: "phone"}, {Schema: "mail"}}))
	assert.Contains(t, buf.String(), "- schema: phone")
	assert.Contains(t, buf.String(), "- schema: mail")
}

func TestPrinterStatusLines(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, FormatTable, false).Warning("random password used")
	assert.Equal(t, "random password used\n", buf.String())

	buf.Reset()
	NewPrinter(&buf, FormatTable, true).Success("pushed")
	assert.Equal(t, "\033[32mpushed\033[0m\n", buf.String())
}

func TestSimpleTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SimpleTable(&buf, [][2]string{{"Cache backend", "badger"}, {"Cache TTL", "5m0s"}}))
	assert.Contains(t, buf.String(), "Cache backend")
	assert.Contains(t, buf.String(), "badger")
	assert.Contains(t, buf.String(), "5m0s")
}
