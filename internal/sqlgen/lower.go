package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tpsql-core/tpsql/internal/sqlpp"
	"github.com/tpsql-core/tpsql/internal/wire"
)

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// lowerState produces the ordered clause lines (SELECT, FROM, WHERE, ...) for
// one query state, appending any nested/shared sub-queries it references as
// new states on g.
func (g *Generator) lowerState(idx int, sq *structuredQuery) ([]string, error) {
	for _, m := range sq.ReferencedModules {
		g.addReferencedModule(m)
	}

	from, err := g.lowerSource(idx, sq)
	if err != nil {
		return nil, err
	}
	selectClause, err := computeSelectClause(sq)
	if err != nil {
		return nil, err
	}
	whereClause, err := lowerWhere(sq)
	if err != nil {
		return nil, err
	}
	groupByClause := ""
	if sq.GroupBy != nil {
		groupByClause = strings.Join(sq.GroupBy.ColumnNames, ", ")
	}
	orderByClause, err := lowerOrderBy(sq.OrderBy)
	if err != nil {
		return nil, err
	}
	limitClause, offsetClause, err := lowerLimitOffset(sq.Limit, sq.Offset)
	if err != nil {
		return nil, err
	}

	lines := []string{"SELECT " + selectClause, "FROM " + from}
	if whereClause != "" {
		lines = append(lines, "WHERE "+whereClause)
	}
	if groupByClause != "" {
		lines = append(lines, "GROUP BY "+groupByClause)
	}
	if orderByClause != "" {
		lines = append(lines, "ORDER BY "+orderByClause)
	}
	if limitClause != "" {
		lines = append(lines, "LIMIT "+limitClause)
	}
	if offsetClause != "" {
		lines = append(lines, "OFFSET "+offsetClause)
	}
	return lines, nil
}

// lowerSource picks whichever source field sq carries (schema-declaration
// order, since the wire format treats these as a oneof) and returns the FROM
// clause text.
func (g *Generator) lowerSource(idx int, sq *structuredQuery) (string, error) {
	switch {
	case sq.Table != nil:
		if sq.Table.Name == "" {
			return "", fmt.Errorf("sqlgen: table source must name a table")
		}
		if sq.Table.Module != "" {
			g.addReferencedModule(sq.Table.Module)
		}
		return sq.Table.Name, nil
	case sq.Sql != nil:
		return g.lowerSqlSource(idx, sq.Sql)
	case sq.SimpleSlices != nil:
		return g.lowerSimpleSlices(sq.SimpleSlices)
	case sq.TimeRange != nil:
		return lowerTimeRange(sq.TimeRange)
	case sq.IntervalIntersect != nil:
		return g.lowerIntervalIntersect(idx, sq.IntervalIntersect)
	case sq.Join != nil:
		return g.lowerJoin(idx, sq.Join)
	case sq.Union != nil:
		return g.lowerUnion(idx, sq.Union)
	case sq.AddColumns != nil:
		return g.lowerAddColumns(idx, sq.AddColumns)
	case sq.CreateSlices != nil:
		return g.lowerCreateSlices(idx, sq.CreateSlices)
	case sq.InnerQuery != nil:
		childIdx := g.addState(stateNested, sq.InnerQuery, idx, "", false)
		return g.states[childIdx].cteName, nil
	case sq.HasInnerQueryID:
		return g.resolveSharedRef(idx, sq.InnerQueryID)
	default:
		return "", fmt.Errorf("sqlgen: query has no source")
	}
}

// lowerSqlSource splits a raw-SQL source's text into a leading preamble (all
// but the final statement) and a final statement, substitutes each
// dependency's $alias token with the CTE name of its nested sub-query, and
// wraps the result to project only the declared output columns.
func (g *Generator) lowerSqlSource(idx int, s *Sql) (string, error) {
	if s.Text == "" {
		return "", fmt.Errorf("sqlgen: sql source must specify sql text")
	}

	stmts, err := splitSqlStatements(s.Text)
	if err != nil {
		return "", err
	}
	var final string
	if s.Preamble != "" {
		// An explicit preamble implies the sql field holds exactly one
		// statement; splitting responsibilities between the two fields is
		// ambiguous otherwise.
		if len(stmts) > 1 {
			return "", fmt.Errorf("sqlgen: sql source specifies both a preamble and multiple statements in the sql field; pass all statements in the sql field instead")
		}
		g.preambles = append(g.preambles, s.Preamble)
		final = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s.Text), ";"))
	} else {
		if len(stmts) > 1 {
			g.preambles = append(g.preambles, strings.Join(stmts[:len(stmts)-1], ";\n")+";")
		}
		if len(stmts) > 0 {
			final = stmts[len(stmts)-1]
		}
	}
	if final == "" {
		return "", fmt.Errorf("sqlgen: sql source is empty after splitting off the preamble")
	}

	final, err = g.substituteDependencies(idx, final, s.Dependencies)
	if err != nil {
		return "", err
	}

	cols := "*"
	if len(s.ColumnNames) > 0 {
		cols = strings.Join(s.ColumnNames, ", ")
	}
	return fmt.Sprintf("(SELECT %s FROM (%s))", cols, final), nil
}

// substituteDependencies replaces each $alias variable token in text with the
// CTE name of a fresh nested state built from that dependency's query. Only
// declared aliases are touched; other $vars pass through to the engine.
func (g *Generator) substituteDependencies(idx int, text string, deps []Dependency) (string, error) {
	if len(deps) == 0 {
		return text, nil
	}
	depNames := make(map[string]string, len(deps))
	for _, dep := range deps {
		if dep.Alias == "" {
			return "", fmt.Errorf("sqlgen: sql source dependency must have a non-empty alias")
		}
		childIdx := g.addState(stateNested, dep.Query, idx, "", false)
		depNames[dep.Alias] = g.states[childIdx].cteName
	}

	tz := sqlpp.NewTokenizer(text)
	var sb strings.Builder
	pos := 0
	for {
		tok, err := tz.Next()
		if err != nil {
			return "", fmt.Errorf("sqlgen: sql source: %w", err)
		}
		if tok.Kind == sqlpp.TokEOF {
			break
		}
		if tok.Kind != sqlpp.TokVariable {
			continue
		}
		if repl, ok := depNames[tok.Text[1:]]; ok {
			sb.WriteString(text[pos:tok.Start])
			sb.WriteString(repl)
			pos = tok.End
		}
	}
	sb.WriteString(text[pos:])
	return sb.String(), nil
}

// splitSqlStatements splits raw user SQL text on top-level semicolons,
// reusing the statement splitter the preprocessor uses on whole scripts.
func splitSqlStatements(text string) ([]string, error) {
	splitter := sqlpp.NewStatementSplitter(sqlpp.FromTraceProcessorImplementation(text))
	var stmts []string
	for {
		s, ok := splitter.NextStatement()
		if !ok {
			break
		}
		trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s.Sql()), ";"))
		if trimmed != "" {
			stmts = append(stmts, trimmed)
		}
	}
	if err := splitter.Status(); err != nil {
		return nil, err
	}
	return stmts, nil
}

func (g *Generator) lowerSimpleSlices(s *SimpleSlices) (string, error) {
	g.addReferencedModule("slices.with_context")

	sql := "SELECT id, ts, dur, name AS slice_name, thread_name, process_name, track_name FROM thread_or_process_slice"
	var conds []string
	if s.SliceNameGlob != "" {
		conds = append(conds, "slice_name GLOB "+quoteString(s.SliceNameGlob))
	}
	if s.ThreadNameGlob != "" {
		conds = append(conds, "thread_name GLOB "+quoteString(s.ThreadNameGlob))
	}
	if s.ProcessNameGlob != "" {
		conds = append(conds, "process_name GLOB "+quoteString(s.ProcessNameGlob))
	}
	if s.TrackNameGlob != "" {
		conds = append(conds, "track_name GLOB "+quoteString(s.TrackNameGlob))
	}
	if len(conds) > 0 {
		sql += " WHERE " + strings.Join(conds, " AND ")
	}
	return "(" + sql + ")", nil
}

func lowerTimeRange(t *TimeRange) (string, error) {
	switch t.Mode {
	case wire.TimeRangeModeStatic:
		if t.Ts == nil {
			return "", fmt.Errorf("sqlgen: static time range requires ts")
		}
		if t.Dur == nil {
			return "", fmt.Errorf("sqlgen: static time range requires dur")
		}
		return fmt.Sprintf("(SELECT 0 AS id, %d AS ts, %d AS dur)", *t.Ts, *t.Dur), nil
	case wire.TimeRangeModeDynamic:
		ts := "trace_start()"
		if t.Ts != nil {
			ts = strconv.FormatInt(*t.Ts, 10)
		}
		dur := "trace_dur()"
		if t.Dur != nil {
			dur = strconv.FormatInt(*t.Dur, 10)
		}
		return fmt.Sprintf("(SELECT 0 AS id, %s AS ts, %s AS dur)", ts, dur), nil
	default:
		return "", fmt.Errorf("sqlgen: unknown time range mode %d", t.Mode)
	}
}

// lowerIntervalIntersect emits a local WITH clause wrapping the base and each
// interval query, calls the _interval_intersect macro over them, and joins
// the intersection rows back to every source so each source's columns come
// out suffixed (_0 for the base, _1.. for the intervals).
func (g *Generator) lowerIntervalIntersect(idx int, ii *IntervalIntersect) (string, error) {
	if len(ii.Base) == 0 {
		return "", fmt.Errorf("sqlgen: interval intersect must specify a base query")
	}
	if len(ii.Intervals) == 0 {
		return "", fmt.Errorf("sqlgen: interval intersect must specify at least one interval query")
	}
	seen := map[string]bool{}
	for _, p := range ii.PartitionColumns {
		if p == "" {
			return "", fmt.Errorf("sqlgen: partition column cannot be empty")
		}
		lp := strings.ToLower(p)
		if lp == "id" || lp == "ts" || lp == "dur" {
			return "", fmt.Errorf("sqlgen: partition column %q is reserved and cannot be used for partitioning", p)
		}
		if seen[lp] {
			return "", fmt.Errorf("sqlgen: partition column %q is duplicated", p)
		}
		seen[lp] = true
	}
	g.addReferencedModule("intervals.intersect")

	baseIdx := g.addState(stateNested, ii.Base, idx, "", false)
	with := []string{fmt.Sprintf("iibase AS (SELECT * FROM %s)", g.states[baseIdx].cteName)}
	iiArgNames := []string{"iibase"}
	for i, iv := range ii.Intervals {
		cidx := g.addState(stateNested, iv, idx, "", false)
		with = append(with, fmt.Sprintf("iisource%d AS (SELECT * FROM %s)", i, g.states[cidx].cteName))
		iiArgNames = append(iiArgNames, fmt.Sprintf("iisource%d", i))
	}

	proj := []string{"ii.ts", "ii.dur"}
	for _, p := range ii.PartitionColumns {
		proj = append(proj, "ii."+p)
	}
	proj = append(proj, "base_0.id AS id_0", "base_0.ts AS ts_0", "base_0.dur AS dur_0", "base_0.*")
	joins := []string{"JOIN iibase AS base_0 ON ii.id_0 = base_0.id"}
	for i := range ii.Intervals {
		n := i + 1
		proj = append(proj,
			fmt.Sprintf("source_%d.id AS id_%d", n, n),
			fmt.Sprintf("source_%d.ts AS ts_%d", n, n),
			fmt.Sprintf("source_%d.dur AS dur_%d", n, n),
			fmt.Sprintf("source_%d.*", n))
		joins = append(joins, fmt.Sprintf("JOIN iisource%d AS source_%d ON ii.id_%d = source_%d.id", i, n, n, n))
	}

	call := fmt.Sprintf("_interval_intersect!((%s), (%s))",
		strings.Join(iiArgNames, ", "), strings.Join(ii.PartitionColumns, ", "))
	return fmt.Sprintf("(WITH %s SELECT %s FROM %s ii %s)",
		strings.Join(with, ", "), strings.Join(proj, ", "), call, strings.Join(joins, " ")), nil
}

func (g *Generator) lowerJoin(idx int, j *Join) (string, error) {
	if len(j.Left) == 0 {
		return "", fmt.Errorf("sqlgen: join must specify a left query")
	}
	if len(j.Right) == 0 {
		return "", fmt.Errorf("sqlgen: join must specify a right query")
	}
	leftIdx := g.addState(stateNested, j.Left, idx, "", false)
	rightIdx := g.addState(stateNested, j.Right, idx, "", false)
	leftName, rightName := g.states[leftIdx].cteName, g.states[rightIdx].cteName

	joinKw := "INNER JOIN"
	if j.Type == wire.JoinTypeLeft {
		joinKw = "LEFT JOIN"
	}
	switch {
	case j.EqCols != nil:
		if j.EqCols.Left == "" {
			return "", fmt.Errorf("sqlgen: join equality condition must specify a left column")
		}
		if j.EqCols.Right == "" {
			return "", fmt.Errorf("sqlgen: join equality condition must specify a right column")
		}
		cond := fmt.Sprintf("%s.%s = %s.%s", leftName, j.EqCols.Left, rightName, j.EqCols.Right)
		return fmt.Sprintf("(SELECT * FROM %s %s %s ON %s)", leftName, joinKw, rightName, cond), nil
	case j.Freeform != nil:
		if j.Freeform.LeftAlias == "" || j.Freeform.RightAlias == "" {
			return "", fmt.Errorf("sqlgen: join freeform condition must specify both query aliases")
		}
		if j.Freeform.SqlExpr == "" {
			return "", fmt.Errorf("sqlgen: join freeform condition must specify a sql expression")
		}
		return fmt.Sprintf("(SELECT * FROM %s AS %s %s %s AS %s ON %s)",
			leftName, j.Freeform.LeftAlias, joinKw, rightName, j.Freeform.RightAlias, j.Freeform.SqlExpr), nil
	default:
		return "", fmt.Errorf("sqlgen: join must specify either equality_columns or freeform_condition")
	}
}

// unionMemberColumns extracts a union member's declared select-column names
// (alias when present, otherwise the column name or expression). An empty
// result means the member declares nothing and is exempt from validation.
func unionMemberColumns(buf []byte) ([]string, error) {
	sq, err := decodeStructuredQuery(buf)
	if err != nil {
		return nil, err
	}
	var cols []string
	for _, c := range sq.SelectColumns {
		name := c.Alias
		if name == "" {
			name = c.ColumnNameOrExpr
		}
		if name == "" {
			name = c.ColumnName
		}
		if name != "" {
			cols = append(cols, name)
		}
	}
	return cols, nil
}

// validateUnionColumns checks that every union member declaring select
// columns projects the same column set as the first declaring member. Members
// that declare nothing are accepted unchecked; that they in fact project
// compatible columns is the caller's responsibility.
func validateUnionColumns(queryColumns [][]string) error {
	first := -1
	for i, cols := range queryColumns {
		if len(cols) > 0 {
			first = i
			break
		}
	}
	if first < 0 {
		return nil
	}
	ref := map[string]bool{}
	for _, c := range queryColumns[first] {
		ref[c] = true
	}
	for i := first + 1; i < len(queryColumns); i++ {
		cols := queryColumns[i]
		if len(cols) == 0 {
			continue
		}
		if len(cols) != len(queryColumns[first]) {
			return fmt.Errorf("sqlgen: union queries have different column counts (query %d vs query %d)", i, first)
		}
		for _, c := range cols {
			if !ref[c] {
				return fmt.Errorf("sqlgen: union queries have different column sets (query %d vs query %d)", i, first)
			}
		}
	}
	return nil
}

func (g *Generator) lowerUnion(idx int, u *Union) (string, error) {
	if len(u.Queries) < 2 {
		return "", fmt.Errorf("sqlgen: union must specify at least two queries")
	}
	queryColumns := make([][]string, len(u.Queries))
	for i, q := range u.Queries {
		cols, err := unionMemberColumns(q)
		if err != nil {
			return "", err
		}
		queryColumns[i] = cols
	}
	if err := validateUnionColumns(queryColumns); err != nil {
		return "", err
	}

	var with []string
	unionNames := make([]string, len(u.Queries))
	for i, q := range u.Queries {
		cidx := g.addState(stateNested, q, idx, "", false)
		unionNames[i] = fmt.Sprintf("union_query_%d", i)
		with = append(with, fmt.Sprintf("%s AS (SELECT * FROM %s)", unionNames[i], g.states[cidx].cteName))
	}
	kw := " UNION "
	if u.UseUnionAll {
		kw = " UNION ALL "
	}
	parts := make([]string, len(unionNames))
	for i, n := range unionNames {
		parts[i] = "SELECT * FROM " + n
	}
	return fmt.Sprintf("(WITH %s %s)", strings.Join(with, ", "), strings.Join(parts, kw)), nil
}

func (g *Generator) lowerAddColumns(idx int, ac *AddColumns) (string, error) {
	if len(ac.Core) == 0 {
		return "", fmt.Errorf("sqlgen: add_columns must specify a core query")
	}
	if len(ac.Input) == 0 {
		return "", fmt.Errorf("sqlgen: add_columns must specify an input query")
	}
	if ac.EqCols == nil && ac.Freeform == nil {
		return "", fmt.Errorf("sqlgen: add_columns must specify either equality_columns or freeform_condition")
	}
	if len(ac.InputColumns) == 0 {
		return "", fmt.Errorf("sqlgen: add_columns must specify at least one input column")
	}

	coreIdx := g.addState(stateNested, ac.Core, idx, "", false)
	inputIdx := g.addState(stateNested, ac.Input, idx, "", false)
	coreName, inputName := g.states[coreIdx].cteName, g.states[inputIdx].cteName

	var cond string
	if ac.EqCols != nil {
		if ac.EqCols.Left == "" || ac.EqCols.Right == "" {
			return "", fmt.Errorf("sqlgen: add_columns equality condition must specify both columns")
		}
		cond = fmt.Sprintf("core.%s = input.%s", ac.EqCols.Left, ac.EqCols.Right)
	} else {
		if ac.Freeform.LeftAlias != "core" {
			return "", fmt.Errorf("sqlgen: add_columns freeform condition left alias must be 'core', got %q", ac.Freeform.LeftAlias)
		}
		if ac.Freeform.RightAlias != "input" {
			return "", fmt.Errorf("sqlgen: add_columns freeform condition right alias must be 'input', got %q", ac.Freeform.RightAlias)
		}
		if ac.Freeform.SqlExpr == "" {
			return "", fmt.Errorf("sqlgen: add_columns freeform condition must specify a sql expression")
		}
		cond = ac.Freeform.SqlExpr
	}

	cols := []string{"core.*"}
	for _, c := range ac.InputColumns {
		if c.ColumnNameOrExpr == "" {
			return "", fmt.Errorf("sqlgen: add_columns input column must specify column_name_or_expression")
		}
		col := "input." + c.ColumnNameOrExpr
		if c.Alias != "" {
			col += " AS " + c.Alias
		}
		cols = append(cols, col)
	}
	return fmt.Sprintf("(SELECT %s FROM %s AS core LEFT JOIN %s AS input ON %s)",
		strings.Join(cols, ", "), coreName, inputName, cond), nil
}

// lowerCreateSlices pairs each row of the starts query with the earliest
// strictly-later row of the ends query, producing (ts, dur) slices. Starts
// with no matching end produce no row.
func (g *Generator) lowerCreateSlices(idx int, cs *CreateSlices) (string, error) {
	if len(cs.StartsQuery) == 0 {
		return "", fmt.Errorf("sqlgen: create_slices must specify a starts_query")
	}
	if len(cs.EndsQuery) == 0 {
		return "", fmt.Errorf("sqlgen: create_slices must specify an ends_query")
	}
	startsCol, endsCol := cs.StartsTsColumn, cs.EndsTsColumn
	if startsCol == "" {
		startsCol = "ts"
	}
	if endsCol == "" {
		endsCol = "ts"
	}
	startsIdx := g.addState(stateNested, cs.StartsQuery, idx, "", false)
	endsIdx := g.addState(stateNested, cs.EndsQuery, idx, "", false)

	return fmt.Sprintf(
		"(WITH starts AS (SELECT * FROM %s), ends AS (SELECT * FROM %s), "+
			"matched AS (SELECT starts.%s AS start_ts, (SELECT MIN(ends.%s) FROM ends WHERE ends.%s > starts.%s) AS end_ts FROM starts) "+
			"SELECT start_ts AS ts, end_ts - start_ts AS dur FROM matched WHERE end_ts IS NOT NULL)",
		g.states[startsIdx].cteName, g.states[endsIdx].cteName,
		startsCol, endsCol, endsCol, startsCol), nil
}

// computeSelectClause assembles the projection. Without a group-by, the
// explicit select list (or `*`) wins. With a group-by, the projection is
// drawn from the grouping columns and aggregate result names, restricted to
// the explicit select list when one is given (honoring its aliases).
func computeSelectClause(sq *structuredQuery) (string, error) {
	if sq.GroupBy == nil {
		if len(sq.SelectColumns) == 0 {
			return "*", nil
		}
		var parts []string
		for _, c := range sq.SelectColumns {
			expr := c.ColumnNameOrExpr
			if expr == "" {
				expr = c.ColumnName
			}
			if expr == "" {
				return "", fmt.Errorf("sqlgen: select column must name a column or an expression")
			}
			if c.Alias != "" {
				expr += " AS " + c.Alias
			}
			parts = append(parts, expr)
		}
		return strings.Join(parts, ", "), nil
	}

	// selected maps an output column name to its optional alias; nil value
	// means "project under its own name".
	selected := map[string]*string{}
	if len(sq.SelectColumns) > 0 {
		for _, c := range sq.SelectColumns {
			name := c.ColumnNameOrExpr
			if name == "" {
				name = c.ColumnName
			}
			if c.Alias != "" {
				alias := c.Alias
				selected[name] = &alias
			} else {
				selected[name] = nil
			}
		}
	} else {
		for _, c := range sq.GroupBy.ColumnNames {
			selected[c] = nil
		}
		for _, a := range sq.GroupBy.Aggregates {
			selected[a.ResultColumnName] = nil
		}
	}

	var parts []string
	for _, c := range sq.GroupBy.ColumnNames {
		alias, ok := selected[c]
		if !ok {
			continue
		}
		if alias != nil {
			parts = append(parts, c+" AS "+*alias)
		} else {
			parts = append(parts, c)
		}
	}
	for _, a := range sq.GroupBy.Aggregates {
		alias, ok := selected[a.ResultColumnName]
		if !ok {
			continue
		}
		expr, err := lowerAggregate(a)
		if err != nil {
			return "", err
		}
		name := a.ResultColumnName
		if alias != nil {
			name = *alias
		}
		parts = append(parts, expr+" AS "+name)
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("sqlgen: group_by must project at least one column or aggregate")
	}
	return strings.Join(parts, ", "), nil
}

// lowerAggregate renders one aggregate expression, without its result alias.
func lowerAggregate(a Aggregate) (string, error) {
	if a.Op == wire.AggregateOpCount && a.Column == "" {
		return "COUNT(*)", nil
	}
	if a.Op == wire.AggregateOpCustom {
		if a.CustomSqlExpr == "" {
			return "", fmt.Errorf("sqlgen: custom aggregate must specify a custom sql expression")
		}
		return a.CustomSqlExpr, nil
	}
	if a.Column == "" {
		return "", fmt.Errorf("sqlgen: aggregate op %d must specify a column name", a.Op)
	}
	switch a.Op {
	case wire.AggregateOpCount:
		return "COUNT(" + a.Column + ")", nil
	case wire.AggregateOpCountDistinct:
		return "COUNT(DISTINCT " + a.Column + ")", nil
	case wire.AggregateOpSum:
		return "SUM(" + a.Column + ")", nil
	case wire.AggregateOpMin:
		return "MIN(" + a.Column + ")", nil
	case wire.AggregateOpMax:
		return "MAX(" + a.Column + ")", nil
	case wire.AggregateOpMean:
		return "AVG(" + a.Column + ")", nil
	case wire.AggregateOpMedian:
		return "PERCENTILE(" + a.Column + ", 50)", nil
	case wire.AggregateOpPercentile:
		if a.Percentile == 0 {
			return "", fmt.Errorf("sqlgen: percentile aggregate must specify a percentile")
		}
		return fmt.Sprintf("PERCENTILE(%s, %s)", a.Column, strconv.FormatFloat(a.Percentile, 'g', -1, 64)), nil
	case wire.AggregateOpDurationWeightedMean:
		return fmt.Sprintf("SUM(cast_double!(%s * dur)) / cast_double!(SUM(dur))", a.Column), nil
	default:
		return "", fmt.Errorf("sqlgen: unknown aggregate op %d", a.Op)
	}
}

func lowerFilter(f Filter) (string, error) {
	opStr, needsRhs, err := filterOpString(f.Op)
	if err != nil {
		return "", err
	}
	if f.Column == "" {
		return "", fmt.Errorf("sqlgen: filter must name a column")
	}
	if !needsRhs {
		return f.Column + " " + opStr, nil
	}
	var rhs []string
	for _, s := range f.StringRhs {
		rhs = append(rhs, quoteString(s))
	}
	for _, v := range f.Int64Rhs {
		rhs = append(rhs, strconv.FormatInt(v, 10))
	}
	for _, v := range f.DoubleRhs {
		rhs = append(rhs, strconv.FormatFloat(v, 'g', -1, 64))
	}
	if len(rhs) == 0 {
		return "", fmt.Errorf("sqlgen: filter on column %q must specify a right-hand side", f.Column)
	}
	parts := make([]string, len(rhs))
	for i, r := range rhs {
		parts[i] = f.Column + " " + opStr + " " + r
	}
	return strings.Join(parts, " OR "), nil
}

func filterOpString(op uint64) (opStr string, needsRhs bool, err error) {
	switch op {
	case wire.FilterOpEqual:
		return "=", true, nil
	case wire.FilterOpNotEqual:
		return "!=", true, nil
	case wire.FilterOpLessThan:
		return "<", true, nil
	case wire.FilterOpLessThanEqual:
		return "<=", true, nil
	case wire.FilterOpGreaterThan:
		return ">", true, nil
	case wire.FilterOpGreaterThanEqual:
		return ">=", true, nil
	case wire.FilterOpGlob:
		return "GLOB", true, nil
	case wire.FilterOpIsNull:
		return "IS NULL", false, nil
	case wire.FilterOpIsNotNull:
		return "IS NOT NULL", false, nil
	default:
		return "", false, fmt.Errorf("sqlgen: invalid filter operator %d", op)
	}
}

func lowerWhere(sq *structuredQuery) (string, error) {
	if sq.FilterGroup != nil {
		return lowerFilterGroup(sq.FilterGroup)
	}
	if len(sq.Filters) == 0 {
		return "", nil
	}
	var parts []string
	for _, f := range sq.Filters {
		s, err := lowerFilter(f)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " AND "), nil
}

func lowerFilterGroup(fg *FilterGroup) (string, error) {
	var joiner string
	switch fg.Op {
	case wire.FilterGroupOpAnd:
		joiner = " AND "
	case wire.FilterGroupOpOr:
		joiner = " OR "
	default:
		return "", fmt.Errorf("sqlgen: filter group must specify an operator (AND or OR)")
	}
	var parts []string
	for _, f := range fg.Filters {
		s, err := lowerFilter(f)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	for _, sub := range fg.Groups {
		s, err := lowerFilterGroup(&sub)
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+s+")")
	}
	parts = append(parts, fg.SqlExpressions...)
	if len(parts) == 0 {
		return "", fmt.Errorf("sqlgen: filter group must have at least one filter, group, or sql expression")
	}
	return strings.Join(parts, joiner), nil
}

func lowerOrderBy(specs []OrderingSpec) (string, error) {
	if len(specs) == 0 {
		return "", nil
	}
	// The first spec is the primary sort key; subsequent specs break ties.
	var parts []string
	for _, s := range specs {
		if s.ColumnName == "" {
			return "", fmt.Errorf("sqlgen: order-by column name cannot be empty")
		}
		dir := ""
		switch s.Direction {
		case wire.DirectionAsc:
			dir = " ASC"
		case wire.DirectionDesc:
			dir = " DESC"
		}
		parts = append(parts, s.ColumnName+dir)
	}
	return strings.Join(parts, ", "), nil
}

func lowerLimitOffset(limit, offset *int64) (string, string, error) {
	if offset != nil && limit == nil {
		return "", "", fmt.Errorf("sqlgen: OFFSET requires LIMIT to be specified")
	}
	var l, o string
	if limit != nil {
		if *limit < 0 {
			return "", "", fmt.Errorf("sqlgen: LIMIT must be non-negative, got %d", *limit)
		}
		l = strconv.FormatInt(*limit, 10)
	}
	if offset != nil {
		if *offset < 0 {
			return "", "", fmt.Errorf("sqlgen: OFFSET must be non-negative, got %d", *offset)
		}
		o = strconv.FormatInt(*offset, 10)
	}
	return l, o, nil
}
