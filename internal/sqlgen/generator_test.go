package sqlgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tpsql-core/tpsql/internal/wire"
)

func tableQuery(name string) []byte {
	tbl := wire.NewBuilder().String(wire.TableFieldName, name).Bytes()
	return wire.NewBuilder().Message(wire.FieldTable, tbl).Bytes()
}

// A bare table source becomes its own CTE, selected by a trailing
// `SELECT * FROM`.
func TestGenerateMinimalTableQuery(t *testing.T) {
	g := NewGenerator()
	out, err := g.Generate(tableQuery("slice"))
	require.NoError(t, err)
	assert.Equal(t, "WITH sq_0 AS (\n  SELECT *\n  FROM slice\n)\nSELECT *\nFROM sq_0", out)
}

// The projection comes from the group-by columns and aggregates, and the
// filter becomes a WHERE clause.
func TestGenerateFilterAndGroupBy(t *testing.T) {
	tbl := wire.NewBuilder().String(wire.TableFieldName, "slice").Bytes()
	filter := wire.NewBuilder().
		String(wire.FilterFieldColumnName, "name").
		Varint(wire.FilterFieldOp, wire.FilterOpEqual).
		String(wire.FilterFieldStringRhs, "foo").
		Bytes()
	agg := wire.NewBuilder().
		Varint(wire.AggregateFieldOp, wire.AggregateOpCount).
		String(wire.AggregateFieldResultColumnName, "cnt").
		Bytes()
	groupBy := wire.NewBuilder().
		String(wire.GroupByFieldColumnNames, "track_id").
		Message(wire.GroupByFieldAggregates, agg).
		Bytes()
	root := wire.NewBuilder().
		Message(wire.FieldTable, tbl).
		Message(wire.FieldFilters, filter).
		Message(wire.FieldGroupBy, groupBy).
		Bytes()

	g := NewGenerator()
	out, err := g.Generate(root)
	require.NoError(t, err)
	assert.Contains(t, out, "SELECT track_id, COUNT(*) AS cnt")
	assert.Contains(t, out, "FROM slice")
	assert.Contains(t, out, "WHERE name = 'foo'")
	assert.Contains(t, out, "GROUP BY track_id")
}

// A mutual reference cycle between two shared queries is rejected while the
// referring query is being processed, so the error context names the query
// holding the offending reference and the message names the referenced id.
func TestGenerateRejectsMutualCycle(t *testing.T) {
	aInner := wire.NewBuilder().String(wire.FieldID, "A").String(wire.FieldInnerQueryID, "B").Bytes()
	bInner := wire.NewBuilder().String(wire.FieldID, "B").String(wire.FieldInnerQueryID, "A").Bytes()

	g := NewGenerator()
	require.NoError(t, g.AddQuery(aInner))
	require.NoError(t, g.AddQuery(bInner))

	_, err := g.GenerateByID("A")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "Failed to generate SQL for query (id=A, idx=0):"), err.Error())
	assert.Contains(t, err.Error(), "Cycle detected in structured query dependencies involving query with id 'B'")
}

// A shared query directly referencing itself is rejected the same way.
func TestGenerateRejectsSelfCycle(t *testing.T) {
	selfRef := wire.NewBuilder().String(wire.FieldInnerQueryID, "A").String(wire.FieldID, "A").Bytes()
	root := wire.NewBuilder().String(wire.FieldInnerQueryID, "A").Bytes()

	g := NewGenerator()
	require.NoError(t, g.AddQuery(selfRef))

	_, err := g.Generate(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cycle detected")
}

// A shared query referenced from three places is materialized once.
func TestGenerateSharedQueryMaterializedOnce(t *testing.T) {
	shared := wire.NewBuilder().String(wire.FieldID, "sh").Message(wire.FieldTable,
		wire.NewBuilder().String(wire.TableFieldName, "foo").Bytes()).Bytes()

	ref := func() []byte { return wire.NewBuilder().String(wire.FieldInnerQueryID, "sh").Bytes() }
	root := wire.NewBuilder().
		Message(wire.FieldExperimentalUnion, wire.NewBuilder().
			Message(wire.UnionFieldQueries, ref()).
			Message(wire.UnionFieldQueries, ref()).
			Message(wire.UnionFieldQueries, ref()).
			Bytes()).
		Bytes()

	g := NewGenerator()
	require.NoError(t, g.AddQuery(shared))

	out, err := g.Generate(root)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "shared_sq_sh AS ("))
	assert.Equal(t, 3, strings.Count(out, "FROM shared_sq_sh"))
}

// CTEs are emitted in reverse discovery order: each sub-query's CTE precedes
// anything that references it.
func TestGenerateEmitsCtesInReverseDiscoveryOrder(t *testing.T) {
	join := wire.NewBuilder().
		Message(wire.JoinFieldLeftQuery, tableQuery("a")).
		Message(wire.JoinFieldRightQuery, tableQuery("b")).
		Message(wire.JoinFieldEqualityColumns, wire.NewBuilder().
			String(wire.EqualityColumnsFieldLeft, "id").
			String(wire.EqualityColumnsFieldRight, "id").
			Bytes()).
		Bytes()
	root := wire.NewBuilder().Message(wire.FieldExperimentalJoin, join).Bytes()

	g := NewGenerator()
	out, err := g.Generate(root)
	require.NoError(t, err)

	idx2 := strings.Index(out, "sq_2 AS (")
	idx1 := strings.Index(out, "sq_1 AS (")
	idx0 := strings.Index(out, "sq_0 AS (")
	require.True(t, idx2 >= 0 && idx1 >= 0 && idx0 >= 0)
	assert.Less(t, idx2, idx1)
	assert.Less(t, idx1, idx0)
	assert.Contains(t, out, "SELECT *\nFROM sq_0")
}

// §4.4.5 shortcut: a root that only wraps an inner_query (plus order-by)
// reuses the inner query's own CTE instead of adding a redundant wrapper.
func TestGenerateRootShortcutSkipsRedundantWrapper(t *testing.T) {
	orderBy := wire.NewBuilder().Message(wire.OrderByFieldOrderingSpecs,
		wire.NewBuilder().String(wire.OrderingSpecFieldColumnName, "ts").
			Varint(wire.OrderingSpecFieldDirection, wire.DirectionAsc).Bytes()).Bytes()
	root := wire.NewBuilder().
		Message(wire.FieldInnerQuery, tableQuery("slice")).
		Message(wire.FieldOrderBy, orderBy).
		Bytes()

	g := NewGenerator()
	out, err := g.Generate(root)
	require.NoError(t, err)
	assert.NotContains(t, out, "sq_0 AS (")
	assert.Contains(t, out, "sq_1 AS (\n  SELECT *\n  FROM slice\n)")
	assert.Contains(t, out, "ORDER BY ts ASC")
}

func TestGenerateRejectsUnknownSharedID(t *testing.T) {
	root := wire.NewBuilder().String(wire.FieldInnerQueryID, "missing").Bytes()
	g := NewGenerator()
	_, err := g.Generate(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Shared query with id 'missing' not found")
}

func TestAddQueryRejectsDuplicateID(t *testing.T) {
	q := wire.NewBuilder().String(wire.FieldID, "dup").Bytes()
	g := NewGenerator()
	require.NoError(t, g.AddQuery(q))
	err := g.AddQuery(q)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already added")
}

// A filter plus group-by projects the grouping key and the aliased
// aggregate, in a single CTE.
func TestGenerateFilterGroupByProjection(t *testing.T) {
	filter := wire.NewBuilder().
		String(wire.FilterFieldColumnName, "name").
		Varint(wire.FilterFieldOp, wire.FilterOpEqual).
		String(wire.FilterFieldStringRhs, "foo").
		Bytes()
	agg := wire.NewBuilder().
		Varint(wire.AggregateFieldOp, wire.AggregateOpSum).
		String(wire.AggregateFieldColumnName, "dur").
		String(wire.AggregateFieldResultColumnName, "total_dur").
		Bytes()
	groupBy := wire.NewBuilder().
		String(wire.GroupByFieldColumnNames, "name").
		Message(wire.GroupByFieldAggregates, agg).
		Bytes()
	root := wire.NewBuilder().
		Message(wire.FieldTable, wire.NewBuilder().String(wire.TableFieldName, "slice").Bytes()).
		Message(wire.FieldFilters, filter).
		Message(wire.FieldGroupBy, groupBy).
		Bytes()

	g := NewGenerator()
	out, err := g.Generate(root)
	require.NoError(t, err)
	assert.Equal(t,
		"WITH sq_0 AS (\n  SELECT name, SUM(dur) AS total_dur\n  FROM slice\n  WHERE name = 'foo'\n  GROUP BY name\n)\nSELECT *\nFROM sq_0",
		out)
}

// A simple-slices source pulls in the slices.with_context module and lowers
// globs into an AND-joined WHERE clause.
func TestGenerateSimpleSlices(t *testing.T) {
	slices := wire.NewBuilder().
		String(wire.SimpleSlicesFieldSliceNameGlob, "launch*").
		String(wire.SimpleSlicesFieldProcessNameGlob, "com.android.*").
		Bytes()
	root := wire.NewBuilder().Message(wire.FieldSimpleSlices, slices).Bytes()

	g := NewGenerator()
	out, err := g.Generate(root)
	require.NoError(t, err)
	assert.Contains(t, out, "FROM (SELECT id, ts, dur, name AS slice_name, thread_name, process_name, track_name FROM thread_or_process_slice WHERE slice_name GLOB 'launch*' AND process_name GLOB 'com.android.*')")
	assert.Equal(t, []string{"slices.with_context"}, g.ReferencedModules())
}

// An interval-intersect source wraps base and interval queries in a local
// WITH clause, invokes the intersect macro, and joins every source back in
// with suffixed id/ts/dur columns.
func TestGenerateIntervalIntersect(t *testing.T) {
	ii := wire.NewBuilder().
		Message(wire.IntervalIntersectFieldBase, tableQuery("slice")).
		Message(wire.IntervalIntersectFieldIntervals, tableQuery("sched")).
		String(wire.IntervalIntersectFieldPartitionColumns, "cpu").
		Bytes()
	root := wire.NewBuilder().Message(wire.FieldIntervalIntersect, ii).Bytes()

	g := NewGenerator()
	out, err := g.Generate(root)
	require.NoError(t, err)
	assert.Contains(t, out, "_interval_intersect!((iibase, iisource0), (cpu))")
	assert.Contains(t, out, "JOIN iibase AS base_0 ON ii.id_0 = base_0.id")
	assert.Contains(t, out, "JOIN iisource0 AS source_1 ON ii.id_1 = source_1.id")
	assert.Contains(t, out, "base_0.id AS id_0, base_0.ts AS ts_0, base_0.dur AS dur_0, base_0.*")
	assert.Contains(t, g.ReferencedModules(), "intervals.intersect")
}

func TestGenerateIntervalIntersectRejectsReservedPartition(t *testing.T) {
	ii := wire.NewBuilder().
		Message(wire.IntervalIntersectFieldBase, tableQuery("slice")).
		Message(wire.IntervalIntersectFieldIntervals, tableQuery("sched")).
		String(wire.IntervalIntersectFieldPartitionColumns, "Ts").
		Bytes()
	root := wire.NewBuilder().Message(wire.FieldIntervalIntersect, ii).Bytes()

	_, err := NewGenerator().Generate(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved")
}

// Union members that declare select columns must agree on the projected
// column set.
func TestGenerateUnionRejectsMismatchedColumns(t *testing.T) {
	member := func(table string, cols ...string) []byte {
		b := wire.NewBuilder().Message(wire.FieldTable,
			wire.NewBuilder().String(wire.TableFieldName, table).Bytes())
		for _, c := range cols {
			b.Message(wire.FieldSelectColumns,
				wire.NewBuilder().String(wire.SelectColumnFieldColumnNameOrExpression, c).Bytes())
		}
		return b.Bytes()
	}
	root := wire.NewBuilder().
		Message(wire.FieldExperimentalUnion, wire.NewBuilder().
			Message(wire.UnionFieldQueries, member("a", "x", "y")).
			Message(wire.UnionFieldQueries, member("b", "x", "z")).
			Bytes()).
		Bytes()

	_, err := NewGenerator().Generate(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "different column sets")
}

// OFFSET without LIMIT is rejected.
func TestGenerateRejectsOffsetWithoutLimit(t *testing.T) {
	root := wire.NewBuilder().
		Message(wire.FieldTable, wire.NewBuilder().String(wire.TableFieldName, "slice").Bytes()).
		Int64(wire.FieldOffset, 10).
		Bytes()
	_, err := NewGenerator().Generate(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OFFSET requires LIMIT")
}

// Generator state accumulates across calls: CTE names stay unique and a
// shared query already emitted by an earlier call is referenced by name
// rather than re-materialized.
func TestGenerateAccumulatesAcrossCalls(t *testing.T) {
	shared := wire.NewBuilder().String(wire.FieldID, "sh").Message(wire.FieldTable,
		wire.NewBuilder().String(wire.TableFieldName, "foo").Bytes()).Bytes()
	root := wire.NewBuilder().String(wire.FieldInnerQueryID, "sh").Bytes()

	g := NewGenerator()
	require.NoError(t, g.AddQuery(shared))

	first, err := g.Generate(root)
	require.NoError(t, err)
	assert.Contains(t, first, "shared_sq_sh AS (")

	second, err := g.Generate(root)
	require.NoError(t, err)
	assert.NotContains(t, second, "shared_sq_sh AS (")
	assert.Contains(t, second, "FROM shared_sq_sh")
	assert.NotContains(t, second, "WITH sq_0 AS (")
}

func TestGenerateReferencedModulesAndPreambles(t *testing.T) {
	tbl := wire.NewBuilder().
		String(wire.TableFieldName, "startup").
		String(wire.TableFieldModule, "android.startup.startups").
		Bytes()
	root := wire.NewBuilder().Message(wire.FieldTable, tbl).Bytes()

	g := NewGenerator()
	_, err := g.Generate(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"android.startup.startups"}, g.ReferencedModules())
	assert.Empty(t, g.Preambles())
}
