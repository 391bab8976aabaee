package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/graphq/internal/graph"
	"github.com/roach88/graphq/internal/ir"
	"github.com/roach88/graphq/internal/query"
)

// EntityColumns are the columns returned by a compiled SELECT, in scan order.
const EntityColumns = "e.id, e.kind, e.type, e.traits, e.source_id, e.target_id, e.hidden, e.props"

// SQLCompiler compiles index requests to parameterized SQL for SQLite.
//
// The predicate tree is compiled relaxed: leaves without exact pushdown
// compile to true, and NOT groups keep only their fully exact children, so
// the statement selects a superset of the matches (see query.MatchRelaxed).
//
// Every SELECT ends its ORDER BY with e.id so results are deterministic.
// Values are always bound as parameters, never interpolated.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts an index request to a SELECT over EntityColumns.
// Returns (sql, params, error).
func (c *SQLCompiler) Compile(req query.IndexRequest) (string, []any, error) {
	joins, joinParams, orderBy, err := c.compileOrder(req.Order)
	if err != nil {
		return "", nil, err
	}
	where, params, err := c.compileWhere(req)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(EntityColumns)
	sb.WriteString(" FROM entities e")
	sb.WriteString(joins)
	sb.WriteString(" WHERE ")
	sb.WriteString(where)
	sb.WriteString(" ORDER BY ")
	sb.WriteString(orderBy)

	all := append(joinParams, params...)
	switch {
	case req.PageSize > 0:
		sb.WriteString(" LIMIT ? OFFSET ?")
		all = append(all, req.PageSize, req.Offset())
	case req.Limit > 0:
		sb.WriteString(" LIMIT ?")
		all = append(all, req.Limit)
	}
	return sb.String(), all, nil
}

// CompileCount converts an index request to a SELECT COUNT(*) over the same
// rows Compile selects, ignoring order and paging.
func (c *SQLCompiler) CompileCount(req query.IndexRequest) (string, []any, error) {
	where, params, err := c.compileWhere(req)
	if err != nil {
		return "", nil, err
	}
	return "SELECT COUNT(*) FROM entities e WHERE " + where, params, nil
}

func (c *SQLCompiler) compileWhere(req query.IndexRequest) (string, []any, error) {
	var parts []string
	var params []any
	if req.Kind != "" {
		parts = append(parts, "e.kind = ?")
		params = append(params, string(req.Kind))
	}
	if req.Root != nil {
		sql, p, err := c.compileNode(req.Root)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		if sql != sqlTrue {
			parts = append(parts, sql)
			params = append(params, p...)
		}
	}
	if len(parts) == 0 {
		return sqlTrue, nil, nil
	}
	return strings.Join(parts, " AND "), params, nil
}

const (
	sqlTrue  = "1"
	sqlFalse = "0"
)

// compileNode compiles a subtree. Groups follow query.MatchRelaxed.
func (c *SQLCompiler) compileNode(n query.Node) (string, []any, error) {
	switch v := n.(type) {
	case *query.Group:
		return c.compileGroup(v)
	case query.Predicate:
		if v.Pushdown() != query.PushExact {
			return sqlTrue, nil, nil
		}
		return c.compileLeaf(v)
	default:
		return sqlTrue, nil, nil
	}
}

func (c *SQLCompiler) compileGroup(g *query.Group) (string, []any, error) {
	or := g.Op() == query.OperatorOr
	var parts []string
	var params []any
	for _, child := range g.Children() {
		if g.Op() == query.OperatorNot && !query.FullyExact(child) {
			continue
		}
		sql, p, err := c.compileNode(child)
		if err != nil {
			return "", nil, err
		}
		if g.Op() == query.OperatorNot {
			sql = negate(sql)
		}
		switch {
		case sql == sqlTrue && or:
			return sqlTrue, nil, nil
		case sql == sqlFalse && !or:
			return sqlFalse, nil, nil
		case sql == sqlTrue || sql == sqlFalse:
			continue
		}
		parts = append(parts, sql)
		params = append(params, p...)
	}

	switch {
	case len(parts) == 0 && or:
		return sqlFalse, nil, nil
	case len(parts) == 0:
		return sqlTrue, nil, nil
	case or:
		return "(" + strings.Join(parts, " OR ") + ")", params, nil
	default:
		return "(" + strings.Join(parts, " AND ") + ")", params, nil
	}
}

func negate(sql string) string {
	switch sql {
	case sqlTrue:
		return sqlFalse
	case sqlFalse:
		return sqlTrue
	}
	return "NOT (" + sql + ")"
}

func (c *SQLCompiler) compileLeaf(p query.Predicate) (string, []any, error) {
	switch leaf := p.(type) {
	case *query.Type:
		sql := "(e.type = ? OR EXISTS (SELECT 1 FROM traits t WHERE t.entity_id = e.id AND t.trait = ?))"
		if leaf.Negate {
			sql = "NOT " + sql
		}
		return sql, []any{leaf.Name, leaf.Name}, nil

	case *query.UUID:
		ids := leaf.IDs()
		params := make([]any, len(ids))
		for i, id := range ids {
			params[i] = id
		}
		return "e.id IN (" + placeholders(len(ids)) + ")", params, nil

	case *query.Visibility:
		return "(e.hidden = 0 AND (e.kind <> 'relationship' OR (" +
			"EXISTS (SELECT 1 FROM entities v WHERE v.id = e.source_id AND v.hidden = 0) AND " +
			"EXISTS (SELECT 1 FROM entities v WHERE v.id = e.target_id AND v.hidden = 0))))", nil, nil

	case *query.Empty:
		return c.compileEmpty(leaf)
	case *query.Fulltext:
		return c.compileFulltext(leaf)
	case *query.Comparison:
		return c.compileComparison(leaf)
	case *query.Range:
		return c.compileRange(leaf)
	case *query.Array:
		return c.compileArray(leaf)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// columns names the value columns a condition reads. Property values live in
// props rows; the identity key reads the entity row itself.
type columns struct {
	vtype, vtext, vfold, vnum string
}

var (
	propColumns     = columns{vtype: "p.vtype", vtext: "p.vtext", vfold: "p.vfold", vnum: "p.vnum"}
	identityColumns = columns{vtype: "'string'", vtext: "e.id", vfold: "e.id_fold", vnum: "NULL"}
)

func columnsFor(key graph.PropertyKey) columns {
	if key.IsIdentity() {
		return identityColumns
	}
	return propColumns
}

// anyElement wraps a per-element condition: some flattened element of the
// property satisfies it.
func anyElement(key graph.PropertyKey, cond string, params []any) (string, []any) {
	if key.IsIdentity() {
		return "(" + cond + ")", params
	}
	sql := "EXISTS (SELECT 1 FROM props p WHERE p.entity_id = e.id AND p.key = ? AND p.pos >= 0 AND (" + cond + "))"
	return sql, append([]any{key.Name}, params...)
}

// summary tests the summary row of a property; without extra it tests that
// the property is present and not null.
func summary(key graph.PropertyKey, extra string) (string, []any) {
	sql := fmt.Sprintf("EXISTS (SELECT 1 FROM props p WHERE p.entity_id = e.id AND p.key = ? AND p.pos = %d%s)", SummaryPos, extra)
	return sql, []any{key.Name}
}

// valueCond compares an element against v with a SQL operator. The element
// must have a type comparable with v. ok is false when no element can
// satisfy the comparison.
func valueCond(cols columns, op string, v ir.IRValue) (sql string, params []any, ok bool) {
	switch val := v.(type) {
	case ir.IRString:
		return fmt.Sprintf("%s = '%s' AND %s %s ?", cols.vtype, TypeString, cols.vtext, op), []any{string(val)}, true
	case ir.IRInt:
		return fmt.Sprintf("%s IN ('%s', '%s') AND %s %s ?", cols.vtype, TypeInt, TypeFloat, cols.vnum, op), []any{int64(val)}, true
	case ir.IRFloat:
		return fmt.Sprintf("%s IN ('%s', '%s') AND %s %s ?", cols.vtype, TypeInt, TypeFloat, cols.vnum, op), []any{float64(val)}, true
	case ir.IRBool:
		n := 0
		if val {
			n = 1
		}
		return fmt.Sprintf("%s = '%s' AND %s %s ?", cols.vtype, TypeBool, cols.vnum, op), []any{n}, true
	case ir.IRRef:
		return fmt.Sprintf("%s = '%s' AND %s %s ?", cols.vtype, TypeRef, cols.vtext, op), []any{val.ID}, true
	case ir.IRObject:
		if op != "=" {
			return "", nil, false
		}
		return fmt.Sprintf("%s = '%s' AND %s = ?", cols.vtype, TypeObject, cols.vtext), []any{ir.Stringify(val)}, true
	}
	return "", nil, false
}

var sqlOps = map[query.Op]string{
	query.OpEqual:          "=",
	query.OpGreater:        ">",
	query.OpGreaterOrEqual: ">=",
	query.OpLess:           "<",
	query.OpLessOrEqual:    "<=",
}

func (c *SQLCompiler) compileComparison(p *query.Comparison) (string, []any, error) {
	cols := columnsFor(p.Key)

	switch p.Op {
	case query.OpIsNull, query.OpIsNotNull:
		present := sqlTrue
		var params []any
		if !p.Key.IsIdentity() {
			present, params = summary(p.Key, "")
		}
		if p.Op == query.OpIsNull {
			return "NOT " + present, params, nil
		}
		return present, params, nil
	case query.OpNotEqual:
		eq := &query.Comparison{Key: p.Key, Op: query.OpEqual, Value: p.Value, StringMode: p.StringMode}
		sql, params, err := c.compileComparison(eq)
		if err != nil {
			return "", nil, err
		}
		return "NOT " + sql, params, nil
	}

	var cond string
	var params []any
	text := ir.Stringify(p.Value)
	switch {
	case p.Op == query.OpStartsWith:
		cond, params = fmt.Sprintf("instr(%s, ?) = 1", cols.vtext), []any{text}
	case p.Op == query.OpEndsWith:
		cond = fmt.Sprintf("length(%[1]s) >= length(?) AND substr(%[1]s, length(%[1]s) - length(?) + 1) = ?", cols.vtext)
		params = []any{text, text, text}
	case p.Op == query.OpContains:
		cond, params = fmt.Sprintf("instr(%s, ?) > 0", cols.vtext), []any{text}
	default:
		op, known := sqlOps[p.Op]
		if !known {
			return "", nil, fmt.Errorf("operator %q cannot be pushed down", p.Op)
		}
		if p.StringMode {
			cond, params = fmt.Sprintf("%s %s ?", cols.vtext, op), []any{text}
			break
		}
		var ok bool
		cond, params, ok = valueCond(cols, op, p.Value)
		if !ok {
			return sqlFalse, nil, nil
		}
	}
	sql, params := anyElement(p.Key, cond, params)
	return sql, params, nil
}

func (c *SQLCompiler) compileRange(r *query.Range) (string, []any, error) {
	cols := columnsFor(r.Key)
	conds := []string{}
	var params []any
	bound := func(v ir.IRValue, inclusive bool, strict, loose string) bool {
		if v == nil {
			return true
		}
		op := strict
		if inclusive {
			op = loose
		}
		cond, p, ok := valueCond(cols, op, v)
		if !ok {
			return false
		}
		conds = append(conds, cond)
		params = append(params, p...)
		return true
	}
	if !bound(r.Lo, r.IncLo, ">", ">=") || !bound(r.Hi, r.IncHi, "<", "<=") {
		return sqlFalse, nil, nil
	}
	if len(conds) == 0 {
		conds = append(conds, sqlTrue)
	}
	sql, params := anyElement(r.Key, strings.Join(conds, " AND "), params)
	return sql, params, nil
}

func (c *SQLCompiler) compileArray(a *query.Array) (string, []any, error) {
	if a.Exact() && len(a.Values) == 0 {
		sql, params := summary(a.Key, fmt.Sprintf(" AND p.vtype = '%s' AND p.vnum = 0", TypeArray))
		return sql, params, nil
	}
	if a.Exact() {
		return "", nil, fmt.Errorf("ordered array match on %q cannot be pushed down", a.Key.Name)
	}
	var parts []string
	var params []any
	for _, v := range a.Values {
		cond, p, ok := valueCond(propColumns, "=", v)
		if !ok {
			return sqlFalse, nil, nil
		}
		sql, p := anyElement(a.Key, cond, p)
		parts = append(parts, sql)
		params = append(params, p...)
	}
	if len(parts) == 0 {
		return sqlTrue, nil, nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", params, nil
}

func (c *SQLCompiler) compileEmpty(p *query.Empty) (string, []any, error) {
	var sql string
	var params []any
	switch {
	case p.Key.IsIdentity():
		sql = "trim(e.id) = ''"
	case p.NullOnly:
		present, pp := summary(p.Key, "")
		sql, params = "NOT "+present, pp
	default:
		filled, pp := summary(p.Key, " AND p.blank = 0")
		sql, params = "NOT "+filled, pp
	}
	if p.Negate {
		sql = "NOT (" + sql + ")"
	}
	return sql, params, nil
}

func (c *SQLCompiler) compileFulltext(f *query.Fulltext) (string, []any, error) {
	var parts []string
	var params []any
	for _, tok := range f.Tokens() {
		switch {
		case f.Key.IsIdentity():
			parts = append(parts, "instr(e.id_fold, ?) > 0")
			params = append(params, tok)
		case f.Key.Name == "":
			parts = append(parts, "EXISTS (SELECT 1 FROM props p WHERE p.entity_id = e.id AND p.pos >= 0 AND instr(p.vfold, ?) > 0)")
			params = append(params, tok)
		default:
			parts = append(parts, "EXISTS (SELECT 1 FROM props p WHERE p.entity_id = e.id AND p.key = ? AND p.pos >= 0 AND instr(p.vfold, ?) > 0)")
			params = append(params, f.Key.Name, tok)
		}
	}
	if len(parts) == 0 {
		return sqlTrue, nil, nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", params, nil
}

// compileOrder returns the sort joins, their parameters, and the ORDER BY
// list. The list always ends with the ID tiebreak.
func (c *SQLCompiler) compileOrder(order query.SortOrder) (string, []any, string, error) {
	var specs []query.SortSpec
	switch o := order.(type) {
	case nil:
	case query.DefaultSortOrder:
		specs = o.Specs
	case *query.DefaultSortOrder:
		specs = o.Specs
	default:
		return "", nil, "", fmt.Errorf("sort order %T cannot be pushed down", order)
	}

	var joins strings.Builder
	var params []any
	var terms []string
	for i, s := range specs {
		dir := "ASC"
		if s.Descending {
			dir = "DESC"
		}
		if s.Key.IsIdentity() {
			terms = append(terms, "e.id COLLATE BINARY "+dir)
			continue
		}
		alias := fmt.Sprintf("s%d", i)
		fmt.Fprintf(&joins, " LEFT JOIN props %[1]s ON %[1]s.entity_id = e.id AND %[1]s.key = ? AND %[1]s.pos = 0", alias)
		params = append(params, s.Key.Name)
		if s.Key.SortType().Numeric() {
			terms = append(terms, fmt.Sprintf("CASE WHEN %[1]s.vtype IN ('%[2]s', '%[3]s', '%[4]s') THEN %[1]s.vnum END %[5]s",
				alias, TypeInt, TypeFloat, TypeBool, dir))
		} else {
			terms = append(terms, fmt.Sprintf("%s.vtext COLLATE BINARY %s", alias, dir))
		}
	}
	terms = append(terms, stableOrderKey)
	return joins.String(), params, strings.Join(terms, ", "), nil
}

// stableOrderKey is the mandatory final ORDER BY term.
const stableOrderKey = "e.id COLLATE BINARY ASC"

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
