// Package olap builds aggregate queries over a star schema.
//
// A query groups one fact measure by dimension levels. RollUp starts a
// query at the coarsest levels, DrillDown adds a finer level, and Slice and
// Dice restrict a level to one or several values. Build renders
// parameterized SQL for the target dialect.
package olap

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapstar/pkg/core"
	"github.com/leapstack-labs/leapstar/pkg/dataset"
	"github.com/leapstack-labs/leapstar/pkg/dialect"
	"github.com/leapstack-labs/leapstar/pkg/star"
)

// Agg is an aggregate function.
type Agg string

// Supported aggregates.
const (
	AggSum   Agg = "sum"
	AggCount Agg = "count"
	AggAvg   Agg = "avg"
	AggMin   Agg = "min"
	AggMax   Agg = "max"
)

// ParseAgg parses an aggregate name. Empty means sum.
func ParseAgg(s string) (Agg, error) {
	switch a := Agg(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return AggSum, nil
	case AggSum, AggCount, AggAvg, AggMin, AggMax:
		return a, nil
	default:
		return "", fmt.Errorf("unknown aggregate %q (supported: sum, count, avg, min, max)", s)
	}
}

// CountAll is the measure name for counting fact rows.
const CountAll = "*"

// Level is one dimension attribute used for grouping or filtering.
type Level struct {
	Dimension string
	Field     string
}

// ParseLevel parses "DIM_NAME.FIELD".
func ParseLevel(s string) (Level, error) {
	dim, field, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok || dim == "" || field == "" {
		return Level{}, fmt.Errorf("invalid level %q, expected DIMENSION.FIELD", s)
	}
	return Level{Dimension: dim, Field: field}, nil
}

func (l Level) String() string { return l.Dimension + "." + l.Field }

// Filter restricts a level to a set of values.
type Filter struct {
	Level  Level
	Values []any
}

// Query is an aggregate of one measure grouped by levels.
type Query struct {
	Measure string
	Agg     Agg
	Levels  []Level
	Filters []Filter
}

// RollUp starts a query aggregating measure over levels.
func RollUp(measure string, agg Agg, levels ...Level) *Query {
	return &Query{Measure: measure, Agg: agg, Levels: slices.Clone(levels)}
}

func (q *Query) clone() *Query {
	out := *q
	out.Levels = slices.Clone(q.Levels)
	out.Filters = slices.Clone(q.Filters)
	return &out
}

// DrillDown returns a copy of q also grouped by the finer level l.
func (q *Query) DrillDown(l Level) *Query {
	out := q.clone()
	if !slices.Contains(out.Levels, l) {
		out.Levels = append(out.Levels, l)
	}
	return out
}

// Slice returns a copy of q restricted to rows where l equals v.
func (q *Query) Slice(l Level, v any) *Query {
	return q.Dice(l, v)
}

// Dice returns a copy of q restricted to rows where l is one of values.
func (q *Query) Dice(l Level, values ...any) *Query {
	out := q.clone()
	out.Filters = append(out.Filters, Filter{Level: l, Values: slices.Clone(values)})
	return out
}

// Build renders q against schema s. Facts are left-joined to each
// dimension a level or filter uses, so facts with an unresolved key are
// grouped under null. Filter values are cast to the field type and passed
// as arguments.
func (q *Query) Build(s *star.Schema, d *dialect.Dialect) (string, []any, error) {
	if d == nil {
		return "", nil, dialect.ErrDialectRequired
	}
	agg := q.Agg
	if agg == "" {
		agg = AggSum
	}
	if _, err := ParseAgg(string(agg)); err != nil {
		return "", nil, err
	}

	var measureExpr string
	switch {
	case q.Measure == CountAll:
		if agg != AggCount {
			return "", nil, fmt.Errorf("measure %s requires the count aggregate", CountAll)
		}
		measureExpr = "COUNT(*)"
	case slices.ContainsFunc(s.Measures(), func(f core.Field) bool { return f.Name == q.Measure }):
		measureExpr = fmt.Sprintf("%s(f.%s)", strings.ToUpper(string(agg)), d.QuoteIdentifier(q.Measure))
		// Stores widen SUM and AVG of integers to decimal types.
		switch agg {
		case AggSum:
			measureExpr = fmt.Sprintf("CAST(%s AS %s)", measureExpr, d.TypeName(core.TypeInteger))
		case AggAvg:
			measureExpr = fmt.Sprintf("CAST(%s AS %s)", measureExpr, d.TypeName(core.TypeDouble))
		}
	default:
		return "", nil, fmt.Errorf("unknown measure %s", q.Measure)
	}

	aliases := map[string]string{}
	var joins []string
	column := func(l Level) (string, core.DataType, error) {
		spec, ok := s.Registry().Get(l.Dimension)
		if !ok || !slices.Contains(dimensionNames(s), l.Dimension) {
			return "", "", fmt.Errorf("fact %s has no dimension %s", s.FactTable(), l.Dimension)
		}
		i := slices.IndexFunc(spec.Fields, func(f core.Field) bool { return f.Name == l.Field })
		if i < 0 {
			return "", "", fmt.Errorf("dimension %s has no field %s", l.Dimension, l.Field)
		}
		alias, ok := aliases[l.Dimension]
		if !ok {
			alias = fmt.Sprintf("d%d", len(aliases)+1)
			aliases[l.Dimension] = alias
			key := d.QuoteIdentifier(s.KeyField(l.Dimension).Name)
			joins = append(joins, fmt.Sprintf("LEFT JOIN %s AS %s ON f.%s = %s.%s",
				d.QuoteQualified(l.Dimension), alias, key, alias, key))
		}
		return alias + "." + d.QuoteIdentifier(l.Field), spec.Fields[i].Type, nil
	}

	var selects, groups []string
	for _, l := range q.Levels {
		col, _, err := column(l)
		if err != nil {
			return "", nil, err
		}
		selects = append(selects, col+" AS "+d.QuoteIdentifier(l.String()))
		groups = append(groups, col)
	}
	selects = append(selects, measureExpr+" AS "+d.QuoteIdentifier(measureAlias(q.Measure, agg)))

	var where []string
	var args []any
	for _, f := range q.Filters {
		col, typ, err := column(f.Level)
		if err != nil {
			return "", nil, err
		}
		if len(f.Values) == 0 {
			return "", nil, fmt.Errorf("filter on %s has no values", f.Level)
		}
		var placeholders []string
		matchNull := false
		for _, v := range f.Values {
			cv, err := dataset.Cast(v, typ)
			if err != nil {
				return "", nil, fmt.Errorf("filter on %s: %w", f.Level, err)
			}
			if cv == nil {
				matchNull = true
				continue
			}
			args = append(args, cv)
			placeholders = append(placeholders, d.FormatPlaceholder(len(args)))
		}
		where = append(where, filterCondition(col, placeholders, matchNull))
	}

	var b strings.Builder
	b.WriteString("SELECT " + strings.Join(selects, ", "))
	b.WriteString(" FROM " + d.QuoteQualified(s.FactTable()) + " AS f")
	for _, j := range joins {
		b.WriteString(" " + j)
	}
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if len(groups) > 0 {
		b.WriteString(" GROUP BY " + strings.Join(groups, ", "))
		b.WriteString(" ORDER BY " + strings.Join(groups, ", "))
	}
	return b.String(), args, nil
}

// filterCondition matches col against placeholders. IN never matches null,
// so null filter values become an IS NULL test.
func filterCondition(col string, placeholders []string, matchNull bool) string {
	switch {
	case len(placeholders) == 0:
		return col + " IS NULL"
	case !matchNull:
		return fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ", "))
	default:
		return fmt.Sprintf("(%s IN (%s) OR %s IS NULL)", col, strings.Join(placeholders, ", "), col)
	}
}

func measureAlias(measure string, agg Agg) string {
	if measure == CountAll {
		return "count"
	}
	return string(agg) + "_" + measure
}

func dimensionNames(s *star.Schema) []string {
	dims := s.Dimensions()
	out := make([]string, len(dims))
	for i, d := range dims {
		out[i] = d.Name
	}
	return out
}

// Querier runs a query.
type Querier interface {
	Query(ctx context.Context, sqlStr string, args ...any) (*sql.Rows, error)
}

// Result is a query's output.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Run builds q and executes it with db.
func (q *Query) Run(ctx context.Context, db Querier, s *star.Schema, d *dialect.Dialect) (*Result, error) {
	stmt, args, err := q.Build(s, d)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	res := &Result{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		res.Rows = append(res.Rows, vals)
	}
	return res, rows.Err()
}
