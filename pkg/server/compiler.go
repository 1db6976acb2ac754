package server

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"

	"github.com/tosone/falkordb/pkg/datatypes"
	"github.com/tosone/falkordb/pkg/plan"
)

// Compiler turns a query string into an execution plan. The full query
// language lives outside this engine; the server depends only on this
// interface and ships with a restricted pattern compiler covering the
// command surface exercised by tests and tooling.
type Compiler interface {
	Compile(ctx *plan.Context, query string) (*plan.Plan, error)
}

// PatternCompiler compiles a restricted declarative subset:
//
//	CREATE (alias:Label... {key: literal, ...})
//	MATCH (alias[:Label]) [WHERE predicate [AND predicate]...]
//	    RETURN item[, item...] [ORDER BY item [DESC]]
//	    [SKIP expr] [LIMIT expr]
//
// where item is alias.prop or id(alias), predicates compare id(alias)
// or alias.prop against literals or $parameters, and SKIP/LIMIT take an
// integer literal or a $parameter.
type PatternCompiler struct{}

// compileErr marks query-text rejections (compile errors, not runtime
// exceptions).
func compileErr(format string, args ...any) error {
	return errors.Errorf("compile: "+format, args...)
}

type tokenizer struct {
	toks []string
	pos  int
}

func tokenize(q string) (*tokenizer, error) {
	var toks []string
	i := 0
	runes := []rune(q)
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '\'' || r == '"':
			j := i + 1
			for j < len(runes) && runes[j] != r {
				j++
			}
			if j == len(runes) {
				return nil, compileErr("unterminated string literal")
			}
			toks = append(toks, string(runes[i:j+1]))
			i = j + 1
		case strings.ContainsRune("(){}:,.$", r):
			toks = append(toks, string(r))
			i++
		case r == '<' || r == '>':
			if i+1 < len(runes) && runes[i+1] == '=' {
				toks = append(toks, string(runes[i:i+2]))
				i += 2
			} else {
				toks = append(toks, string(r))
				i++
			}
		case r == '=':
			toks = append(toks, "=")
			i++
		case r == '!':
			if i+1 < len(runes) && runes[i+1] == '=' {
				toks = append(toks, "!=")
				i += 2
			} else {
				return nil, compileErr("unexpected '!'")
			}
		default:
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_' || runes[j] == '-' || runes[j] == '.') {
				// '.' binds into numbers only; identifiers break on it
				if runes[j] == '.' && !unicode.IsDigit(runes[i]) {
					break
				}
				j++
			}
			if j == i {
				return nil, compileErr("unexpected character %q", string(r))
			}
			toks = append(toks, string(runes[i:j]))
			i = j
		}
	}
	return &tokenizer{toks: toks}, nil
}

func (t *tokenizer) peek() string {
	if t.pos >= len(t.toks) {
		return ""
	}
	return t.toks[t.pos]
}

func (t *tokenizer) next() string {
	tok := t.peek()
	if tok != "" {
		t.pos++
	}
	return tok
}

func (t *tokenizer) expect(tok string) error {
	if got := t.next(); !strings.EqualFold(got, tok) {
		return compileErr("expected %q, got %q", tok, got)
	}
	return nil
}

func (t *tokenizer) peekUpper() string { return strings.ToUpper(t.peek()) }

// Compile dispatches on the leading keyword.
func (c *PatternCompiler) Compile(ctx *plan.Context, query string) (*plan.Plan, error) {
	toks, err := tokenize(query)
	if err != nil {
		return nil, err
	}
	switch toks.peekUpper() {
	case "CREATE":
		return c.compileCreate(ctx, toks)
	case "MATCH":
		return c.compileMatch(ctx, toks)
	default:
		return nil, compileErr("unsupported query %q", query)
	}
}

// literal parses a literal or $parameter into an expression.
func literal(t *tokenizer) (plan.Expression, error) {
	tok := t.next()
	switch {
	case tok == "":
		return nil, compileErr("unexpected end of query")
	case tok == "$":
		name := t.next()
		if name == "" {
			return nil, compileErr("missing parameter name")
		}
		return plan.NewParameter(name), nil
	case tok[0] == '\'' || tok[0] == '"':
		return plan.NewConstant(datatypes.NewString(tok[1 : len(tok)-1])), nil
	case strings.EqualFold(tok, "true"):
		return plan.NewConstant(datatypes.NewBool(true)), nil
	case strings.EqualFold(tok, "false"):
		return plan.NewConstant(datatypes.NewBool(false)), nil
	case strings.EqualFold(tok, "null"):
		return plan.NewConstant(datatypes.NewNull()), nil
	default:
		if i, err := strconv.ParseInt(tok, 10, 64); err == nil {
			return plan.NewConstant(datatypes.NewInt(i)), nil
		}
		if f, err := strconv.ParseFloat(tok, 64); err == nil {
			return plan.NewConstant(datatypes.NewDouble(f)), nil
		}
		return nil, compileErr("invalid literal %q", tok)
	}
}

// nodePattern parses (alias[:Label...] [{props}]).
type nodePattern struct {
	alias  string
	labels []string
	props  []plan.PropSetter
}

func parseNodePattern(t *tokenizer) (*nodePattern, error) {
	if err := t.expect("("); err != nil {
		return nil, err
	}
	np := &nodePattern{}
	if tok := t.peek(); tok != ":" && tok != ")" && tok != "{" {
		np.alias = t.next()
	}
	for t.peek() == ":" {
		t.next()
		label := t.next()
		if label == "" {
			return nil, compileErr("missing label name")
		}
		np.labels = append(np.labels, label)
	}
	if t.peek() == "{" {
		t.next()
		for t.peek() != "}" {
			key := t.next()
			if key == "" {
				return nil, compileErr("missing property name")
			}
			if err := t.expect(":"); err != nil {
				return nil, err
			}
			exp, err := literal(t)
			if err != nil {
				return nil, err
			}
			np.props = append(np.props, plan.PropSetter{Name: key, Exp: exp})
			if t.peek() == "," {
				t.next()
			}
		}
		t.next() // consume '}'
	}
	if err := t.expect(")"); err != nil {
		return nil, err
	}
	if np.alias == "" {
		np.alias = "@anon"
	}
	return np, nil
}

func (c *PatternCompiler) compileCreate(ctx *plan.Context, t *tokenizer) (*plan.Plan, error) {
	if err := t.expect("CREATE"); err != nil {
		return nil, err
	}
	p := plan.NewPlan(ctx)
	var nodes []plan.NodeTemplate
	for {
		np, err := parseNodePattern(t)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, plan.NodeTemplate{Alias: np.alias, Labels: np.labels, Props: np.props})
		if t.peek() != "," {
			break
		}
		t.next()
	}
	if tok := t.peek(); tok != "" {
		return nil, compileErr("unexpected trailing input %q", tok)
	}
	create := p.AddOp(plan.NewCreate(p, nodes, nil))
	p.SetRoot(p.AddOp(plan.NewResults(p, nil, nil), create))
	return p, nil
}

// parseReturnItem parses one projected expression: alias.prop or id(alias).
func parseReturnItem(t *tokenizer, p *plan.Plan, alias string) (string, plan.Expression, error) {
	tok := t.next()
	if strings.EqualFold(tok, "id") {
		if err := t.expect("("); err != nil {
			return "", nil, err
		}
		a := t.next()
		if err := t.expect(")"); err != nil {
			return "", nil, err
		}
		if a != alias {
			return "", nil, compileErr("unknown alias %q", a)
		}
		return "id(" + a + ")", plan.NewEntityID(p.MapAlias(a)), nil
	}
	if t.peek() == "." {
		t.next()
		prop := t.next()
		if tok != alias {
			return "", nil, compileErr("unknown alias %q", tok)
		}
		return tok + "." + prop, plan.NewProperty(p.MapAlias(tok), prop), nil
	}
	return "", nil, compileErr("unsupported return item %q", tok)
}

func cmpFromToken(tok string) (plan.CmpOp, bool) {
	switch tok {
	case "=":
		return plan.CmpEQ, true
	case "!=", "<>":
		return plan.CmpNE, true
	case "<":
		return plan.CmpLT, true
	case "<=":
		return plan.CmpLE, true
	case ">":
		return plan.CmpGT, true
	case ">=":
		return plan.CmpGE, true
	}
	return 0, false
}

func (c *PatternCompiler) compileMatch(ctx *plan.Context, t *tokenizer) (*plan.Plan, error) {
	if err := t.expect("MATCH"); err != nil {
		return nil, err
	}
	np, err := parseNodePattern(t)
	if err != nil {
		return nil, err
	}
	if len(np.props) > 0 {
		return nil, compileErr("inline property patterns are not supported in MATCH")
	}

	p := plan.NewPlan(ctx)
	aliasSlot := p.MapAlias(np.alias)

	// WHERE clauses: id() ranges tighten the scan, the rest filter
	idRange := plan.NewUnsignedRange()
	rangeConstrained := false
	var predicates []plan.Expression

	if strings.EqualFold(t.peekUpper(), "WHERE") {
		t.next()
		for {
			tok := t.next()
			if strings.EqualFold(tok, "id") {
				if err := t.expect("("); err != nil {
					return nil, err
				}
				if a := t.next(); a != np.alias {
					return nil, compileErr("unknown alias %q", a)
				}
				if err := t.expect(")"); err != nil {
					return nil, err
				}
				op, ok := cmpFromToken(t.next())
				if !ok {
					return nil, compileErr("expected comparison operator")
				}
				exp, err := literal(t)
				if err != nil {
					return nil, err
				}
				v, err := exp.Evaluate(ctx, nil)
				if err != nil {
					return nil, err
				}
				if v.Kind() != datatypes.TypeInt64 || v.Int() < 0 {
					return nil, compileErr("id() compares against non-negative integers")
				}
				idRange.Tighten(op, uint64(v.Int()))
				rangeConstrained = true
			} else if t.peek() == "." {
				t.next()
				prop := t.next()
				if tok != np.alias {
					return nil, compileErr("unknown alias %q", tok)
				}
				op, ok := cmpFromToken(t.next())
				if !ok {
					return nil, compileErr("expected comparison operator")
				}
				exp, err := literal(t)
				if err != nil {
					return nil, err
				}
				predicates = append(predicates,
					plan.NewComparison(op, plan.NewProperty(aliasSlot, prop), exp))
			} else {
				return nil, compileErr("unsupported predicate near %q", tok)
			}
			if strings.EqualFold(t.peekUpper(), "AND") {
				t.next()
				continue
			}
			break
		}
	}

	// scan selection
	var tail int
	if len(np.labels) > 0 {
		scan := plan.NewNodeByLabelScan(p, np.alias, np.labels[0])
		if rangeConstrained {
			scan.SetIDRange(idRange)
		}
		tail = p.AddOp(scan)
	} else if rangeConstrained {
		tail = p.AddOp(plan.NewNodeByIDSeek(p, np.alias, idRange))
	} else {
		tail = p.AddOp(plan.NewAllNodeScan(p, np.alias))
	}
	for _, pred := range predicates {
		tail = p.AddOp(plan.NewFilter(p, pred), tail)
	}

	// RETURN
	if err := t.expect("RETURN"); err != nil {
		return nil, err
	}
	var projections []plan.Projection
	for {
		name, exp, err := parseReturnItem(t, p, np.alias)
		if err != nil {
			return nil, err
		}
		projections = append(projections, plan.Projection{Alias: name, Exp: exp})
		if t.peek() == "," {
			t.next()
			continue
		}
		break
	}
	project := plan.NewProject(p, projections)
	tail = p.AddOp(project, tail)

	// ORDER BY
	if strings.EqualFold(t.peekUpper(), "ORDER") {
		t.next()
		if err := t.expect("BY"); err != nil {
			return nil, err
		}
		var keys []plan.SortKey
		for {
			name, _, err := parseReturnItem(t, p, np.alias)
			if err != nil {
				return nil, err
			}
			key := plan.SortKey{Exp: plan.NewSlotRef(p.MapAlias(name))}
			if strings.EqualFold(t.peekUpper(), "DESC") {
				t.next()
				key.Descending = true
			} else if strings.EqualFold(t.peekUpper(), "ASC") {
				t.next()
			}
			keys = append(keys, key)
			if t.peek() == "," {
				t.next()
				continue
			}
			break
		}
		tail = p.AddOp(plan.NewSort(p, keys), tail)
	}

	// SKIP / LIMIT
	if strings.EqualFold(t.peekUpper(), "SKIP") {
		t.next()
		exp, err := literal(t)
		if err != nil {
			return nil, err
		}
		op, err := plan.NewSkip(p, exp)
		if err != nil {
			return nil, err
		}
		tail = p.AddOp(op, tail)
	}
	if strings.EqualFold(t.peekUpper(), "LIMIT") {
		t.next()
		exp, err := literal(t)
		if err != nil {
			return nil, err
		}
		op, err := plan.NewLimit(p, exp)
		if err != nil {
			return nil, err
		}
		tail = p.AddOp(op, tail)
	}

	if tok := t.peek(); tok != "" {
		return nil, compileErr("unexpected trailing input %q", tok)
	}

	cols := project.Columns()
	slots := make([]int, len(cols))
	for i, name := range cols {
		slots[i] = p.MapAlias(name)
	}
	p.SetRoot(p.AddOp(plan.NewResults(p, cols, slots), tail))
	return p, nil
}
