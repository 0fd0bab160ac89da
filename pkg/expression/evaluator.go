// Package expression evaluates template expressions against entity state.
//
// Expressions use text/template syntax extended with the sprig function
// library, for example:
//
//	uid={{ .username }},ou=people,dc=example,dc=com
//	{{ .firstname | lower }}.{{ .surname | lower }}@example.com
//
// A string without template actions evaluates to itself.
package expression

import (
	"maps"
	"slices"
	"strings"
	"text/template"
	"text/template/parse"

	"github.com/Masterminds/sprig/v3"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/marmos91/attrsync/internal/logger"
)

// DefaultCacheSize bounds the number of parsed expressions kept in memory.
const DefaultCacheSize = 512

// Evaluator renders expressions against a variable context.
//
// Implementations never fail: undefined variables render as blank and
// malformed expressions evaluate to the empty string.
type Evaluator interface {
	Evaluate(expr string, vars map[string]any) string
}

// TemplateEvaluator is the text/template based Evaluator.
type TemplateEvaluator struct {
	parsed *lru.Cache[string, *compiled]
	funcs  template.FuncMap
}

// compiled is a parsed expression and the top-level variables it reads.
type compiled struct {
	tmpl   *template.Template
	fields []string
}

// NewTemplateEvaluator creates an evaluator caching up to size parsed
// expressions. A size <= 0 selects DefaultCacheSize.
func NewTemplateEvaluator(size int) (*TemplateEvaluator, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *compiled](size)
	if err != nil {
		return nil, err
	}
	return &TemplateEvaluator{parsed: cache, funcs: sprig.TxtFuncMap()}, nil
}

// MustTemplateEvaluator is NewTemplateEvaluator with DefaultCacheSize that
// panics on error.
func MustTemplateEvaluator() *TemplateEvaluator {
	ev, err := NewTemplateEvaluator(DefaultCacheSize)
	if err != nil {
		panic(err)
	}
	return ev
}

// Evaluate implements Evaluator.
func (e *TemplateEvaluator) Evaluate(expr string, vars map[string]any) string {
	if !strings.Contains(expr, "{{") {
		return expr
	}

	c, err := e.parse(expr)
	if err != nil {
		logger.Debug("invalid expression", "expression", expr, logger.Err(err))
		return ""
	}

	var sb strings.Builder
	if err := c.tmpl.Execute(&sb, bind(vars, c.fields)); err != nil {
		logger.Debug("expression evaluation failed", "expression", expr, logger.Err(err))
		return ""
	}
	return sb.String()
}

func (e *TemplateEvaluator) parse(expr string) (*compiled, error) {
	if c, ok := e.parsed.Get(expr); ok {
		return c, nil
	}
	tmpl, err := template.New("expr").
		Option("missingkey=zero").
		Funcs(e.funcs).
		Parse(expr)
	if err != nil {
		return nil, err
	}
	c := &compiled{tmpl: tmpl, fields: fieldNames(tmpl.Tree.Root)}
	e.parsed.Add(expr, c)
	return c, nil
}

// bind returns vars with every referenced but undefined or nil variable set
// to the empty string, so it renders blank. vars is copied only when needed.
func bind(vars map[string]any, fields []string) map[string]any {
	out := vars
	copied := false
	for _, f := range fields {
		if v, ok := vars[f]; ok && v != nil {
			continue
		}
		if !copied {
			out = maps.Clone(vars)
			if out == nil {
				out = make(map[string]any, len(fields))
			}
			copied = true
		}
		out[f] = ""
	}
	return out
}

// fieldNames collects the first identifier of every field and $ variable
// chain in the tree, in order of first appearance.
func fieldNames(root parse.Node) []string {
	var names []string
	add := func(name string) {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	var walk func(parse.Node)
	walk = func(n parse.Node) {
		switch n := n.(type) {
		case *parse.ListNode:
			if n == nil {
				return
			}
			for _, c := range n.Nodes {
				walk(c)
			}
		case *parse.ActionNode:
			walk(n.Pipe)
		case *parse.IfNode:
			walk(n.Pipe)
			walk(n.List)
			walk(n.ElseList)
		case *parse.RangeNode:
			walk(n.Pipe)
			walk(n.List)
			walk(n.ElseList)
		case *parse.WithNode:
			walk(n.Pipe)
			walk(n.List)
			walk(n.ElseList)
		case *parse.TemplateNode:
			walk(n.Pipe)
		case *parse.PipeNode:
			if n == nil {
				return
			}
			for _, c := range n.Cmds {
				walk(c)
			}
		case *parse.CommandNode:
			for _, a := range n.Args {
				walk(a)
			}
		case *parse.ChainNode:
			walk(n.Node)
		case *parse.FieldNode:
			add(n.Ident[0])
		case *parse.VariableNode:
			if len(n.Ident) > 1 && n.Ident[0] == "$" {
				add(n.Ident[1])
			}
		}
	}
	walk(root)
	return names
}

// IsBlank reports whether s is empty or whitespace only.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
