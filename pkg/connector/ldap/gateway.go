// Package ldap implements a connector gateway over an LDAP directory.
package ldap

import (
	"context"
	"fmt"
	"strings"

	ldapv3 "github.com/go-ldap/ldap/v3"

	"github.com/marmos91/attrsync/internal/logger"
	"github.com/marmos91/attrsync/pkg/connector"
	"github.com/marmos91/attrsync/pkg/mapping"
)

// Conn is the subset of an LDAP connection used by the gateway.
type Conn interface {
	Bind(username, password string) error
	Search(req *ldapv3.SearchRequest) (*ldapv3.SearchResult, error)
	Add(req *ldapv3.AddRequest) error
	Modify(req *ldapv3.ModifyRequest) error
	Close()
}

// Dialer opens an authenticated-ready connection to the directory.
type Dialer func(ctx context.Context, url string) (Conn, error)

// Config describes one LDAP-backed resource.
type Config struct {
	URL          string `mapstructure:"url" yaml:"url" validate:"required"`
	BindDN       string `mapstructure:"bind_dn" yaml:"bind_dn"`
	BindPassword string `mapstructure:"bind_password" yaml:"bind_password"`
	BaseDN       string `mapstructure:"base_dn" yaml:"base_dn" validate:"required"`

	// UIDAttribute holds the account id. Default: uid.
	UIDAttribute string `mapstructure:"uid_attribute" yaml:"uid_attribute"`

	// PasswordAttribute receives __PASSWORD__. Default: userPassword.
	PasswordAttribute string `mapstructure:"password_attribute" yaml:"password_attribute"`

	// ObjectClasses maps connector object classes to LDAP object classes.
	// Defaults: __ACCOUNT__ -> inetOrgPerson, __GROUP__ -> groupOfNames.
	ObjectClasses map[string]string `mapstructure:"object_classes" yaml:"object_classes"`
}

// ApplyDefaults fills in unset fields.
func (c *Config) ApplyDefaults() {
	if c.UIDAttribute == "" {
		c.UIDAttribute = "uid"
	}
	if c.PasswordAttribute == "" {
		c.PasswordAttribute = "userPassword"
	}
	if c.ObjectClasses == nil {
		c.ObjectClasses = make(map[string]string)
	}
	if _, ok := c.ObjectClasses[mapping.ObjectClassAccount]; !ok {
		c.ObjectClasses[mapping.ObjectClassAccount] = "inetOrgPerson"
	}
	if _, ok := c.ObjectClasses[mapping.ObjectClassGroup]; !ok {
		c.ObjectClasses[mapping.ObjectClassGroup] = "groupOfNames"
	}
}

// Gateway is a connector.Gateway over a single LDAP directory. A fresh
// connection is opened for every call.
type Gateway struct {
	cfg  Config
	dial Dialer
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithDialer replaces the network dialer, mainly for tests.
func WithDialer(d Dialer) Option {
	return func(g *Gateway) { g.dial = d }
}

// New creates a gateway for cfg.
func New(cfg Config, opts ...Option) *Gateway {
	cfg.ApplyDefaults()
	g := &Gateway{cfg: cfg, dial: dialURL}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func dialURL(_ context.Context, url string) (Conn, error) {
	conn, err := ldapv3.DialURL(url)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (g *Gateway) connect(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := g.dial(ctx, g.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", g.cfg.URL, err)
	}
	if g.cfg.BindDN != "" {
		if err := conn.Bind(g.cfg.BindDN, g.cfg.BindPassword); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to bind as %s: %w", g.cfg.BindDN, err)
		}
	}
	return conn, nil
}

func (g *Gateway) ldapObjectClass(objectClass string) string {
	if oc, ok := g.cfg.ObjectClasses[objectClass]; ok {
		return oc
	}
	// Keys read through viper arrive lowercased.
	for k, oc := range g.cfg.ObjectClasses {
		if strings.EqualFold(k, objectClass) {
			return oc
		}
	}
	return objectClass
}

func (g *Gateway) find(conn Conn, objectClass, accountID string) (*ldapv3.Entry, error) {
	filter := fmt.Sprintf("(&(objectClass=%s)(%s=%s))",
		ldapv3.EscapeFilter(g.ldapObjectClass(objectClass)),
		g.cfg.UIDAttribute,
		ldapv3.EscapeFilter(accountID))

	req := ldapv3.NewSearchRequest(g.cfg.BaseDN,
		ldapv3.ScopeWholeSubtree, ldapv3.NeverDerefAliases, 0, 0, false,
		filter, nil, nil)

	result, err := conn.Search(req)
	if err != nil {
		if ldapv3.IsErrorWithCode(err, ldapv3.LDAPResultNoSuchObject) {
			return nil, nil
		}
		return nil, fmt.Errorf("search %s failed: %w", filter, err)
	}

	switch len(result.Entries) {
	case 0:
		return nil, nil
	case 1:
		return result.Entries[0], nil
	default:
		return nil, fmt.Errorf("search %s returned %d entries", filter, len(result.Entries))
	}
}

// Fetch implements connector.Gateway.
func (g *Gateway) Fetch(ctx context.Context, _ string, objectClass, accountID string) (*connector.Object, error) {
	conn, err := g.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	entry, err := g.find(conn, objectClass, accountID)
	if err != nil || entry == nil {
		return nil, err
	}

	obj := &connector.Object{ObjectClass: objectClass, UID: accountID, Name: entry.DN}
	for _, attr := range entry.Attributes {
		values := make([]any, 0, len(attr.Values))
		for _, v := range attr.Values {
			values = append(values, v)
		}
		obj.Attributes = append(obj.Attributes, connector.Attribute{Name: attr.Name, Values: values})
	}
	return obj, nil
}

// Push implements connector.Gateway. Existing entries are modified with
// replace semantics; missing entries are added under __NAME__ as DN.
func (g *Gateway) Push(ctx context.Context, _ string, objectClass, accountID string, attrs []connector.Attribute) error {
	conn, err := g.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	entry, err := g.find(conn, objectClass, accountID)
	if err != nil {
		return err
	}

	dn := ""
	values := make(map[string][]string, len(attrs))
	names := make([]string, 0, len(attrs))
	for _, a := range attrs {
		name := a.Name
		switch name {
		case connector.NameAttr:
			dn = connector.DecodeSecret(a.First())
			continue
		case connector.UIDAttr:
			continue
		case connector.EnableAttr:
			logger.Debug("ldap gateway ignores enable flag", logger.AccountID(accountID))
			continue
		case connector.PasswordAttr:
			name = g.cfg.PasswordAttribute
		}
		if _, seen := values[name]; !seen {
			names = append(names, name)
		}
		values[name] = append(values[name], a.Strings()...)
	}

	if entry != nil {
		req := ldapv3.NewModifyRequest(entry.DN, nil)
		for _, name := range names {
			req.Replace(name, values[name])
		}
		if err := conn.Modify(req); err != nil {
			return fmt.Errorf("modify %s failed: %w", entry.DN, err)
		}
		return nil
	}

	if dn == "" || !strings.Contains(dn, "=") {
		dn = fmt.Sprintf("%s=%s,%s", g.cfg.UIDAttribute, escapeRDNValue(accountID), g.cfg.BaseDN)
	}
	req := ldapv3.NewAddRequest(dn, nil)
	req.Attribute("objectClass", []string{g.ldapObjectClass(objectClass)})
	if _, ok := values[g.cfg.UIDAttribute]; !ok {
		req.Attribute(g.cfg.UIDAttribute, []string{accountID})
	}
	for _, name := range names {
		req.Attribute(name, values[name])
	}
	if err := conn.Add(req); err != nil {
		return fmt.Errorf("add %s failed: %w", dn, err)
	}
	return nil
}

// escapeRDNValue escapes v for use as an attribute value in a DN, following
// RFC 4514 section 2.4.
func escapeRDNValue(v string) string {
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c == 0:
			b.WriteString(`\00`)
			continue
		case strings.IndexByte(`"+,;<>\=`, c) >= 0,
			i == 0 && (c == ' ' || c == '#'),
			i == len(v)-1 && c == ' ':
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}
