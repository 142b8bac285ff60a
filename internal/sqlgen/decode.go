package sqlgen

import (
	"fmt"

	"github.com/tpsql-core/tpsql/internal/dec"
	"github.com/tpsql-core/tpsql/internal/wire"
)

// forEachField walks every top-level field of a wire message, stopping at the
// first decode error.
func forEachField(buf []byte, fn func(f dec.Field) error) error {
	rest := buf
	for {
		f, next, more, err := dec.NextField(rest)
		if err != nil {
			return fmt.Errorf("sqlgen: malformed message: %w", err)
		}
		if !more {
			return nil
		}
		rest = next
		if err := fn(f); err != nil {
			return err
		}
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func decodeStructuredQuery(buf []byte) (*structuredQuery, error) {
	sq := &structuredQuery{}
	err := forEachField(buf, func(f dec.Field) error {
		switch f.ID {
		case wire.FieldID:
			sq.ID, sq.HasID = f.AsString(), true
		case wire.FieldTable:
			t, err := decodeTable(f.AsBytes())
			if err != nil {
				return err
			}
			sq.Table = t
		case wire.FieldSql:
			s, err := decodeSql(f.AsBytes())
			if err != nil {
				return err
			}
			sq.Sql = s
		case wire.FieldSimpleSlices:
			s, err := decodeSimpleSlices(f.AsBytes())
			if err != nil {
				return err
			}
			sq.SimpleSlices = s
		case wire.FieldExperimentalTimeRange:
			t, err := decodeTimeRange(f.AsBytes())
			if err != nil {
				return err
			}
			sq.TimeRange = t
		case wire.FieldIntervalIntersect:
			ii, err := decodeIntervalIntersect(f.AsBytes())
			if err != nil {
				return err
			}
			sq.IntervalIntersect = ii
		case wire.FieldExperimentalJoin:
			j, err := decodeJoin(f.AsBytes())
			if err != nil {
				return err
			}
			sq.Join = j
		case wire.FieldExperimentalUnion:
			u, err := decodeUnion(f.AsBytes())
			if err != nil {
				return err
			}
			sq.Union = u
		case wire.FieldExperimentalAddColumns:
			a, err := decodeAddColumns(f.AsBytes())
			if err != nil {
				return err
			}
			sq.AddColumns = a
		case wire.FieldExperimentalCreateSlices:
			c, err := decodeCreateSlices(f.AsBytes())
			if err != nil {
				return err
			}
			sq.CreateSlices = c
		case wire.FieldInnerQuery:
			sq.InnerQuery = cloneBytes(f.AsBytes())
		case wire.FieldInnerQueryID:
			sq.InnerQueryID, sq.HasInnerQueryID = f.AsString(), true
		case wire.FieldFilters:
			filt, err := decodeFilter(f.AsBytes())
			if err != nil {
				return err
			}
			sq.Filters = append(sq.Filters, filt)
		case wire.FieldExperimentalFilterGroup:
			fg, err := decodeFilterGroup(f.AsBytes())
			if err != nil {
				return err
			}
			sq.FilterGroup = fg
		case wire.FieldGroupBy:
			gb, err := decodeGroupBy(f.AsBytes())
			if err != nil {
				return err
			}
			sq.GroupBy = gb
		case wire.FieldOrderBy:
			ob, err := decodeOrderBy(f.AsBytes())
			if err != nil {
				return err
			}
			sq.OrderBy = ob
		case wire.FieldLimit:
			v := wire.ZigzagDecode(f.AsUint64())
			sq.Limit = &v
		case wire.FieldOffset:
			v := wire.ZigzagDecode(f.AsUint64())
			sq.Offset = &v
		case wire.FieldSelectColumns:
			sc, err := decodeSelectColumn(f.AsBytes())
			if err != nil {
				return err
			}
			sq.SelectColumns = append(sq.SelectColumns, sc)
		case wire.FieldReferencedModules:
			sq.ReferencedModules = append(sq.ReferencedModules, f.AsString())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sq, nil
}

func decodeTable(buf []byte) (*Table, error) {
	t := &Table{}
	err := forEachField(buf, func(f dec.Field) error {
		switch f.ID {
		case wire.TableFieldName:
			t.Name = f.AsString()
		case wire.TableFieldModule:
			t.Module = f.AsString()
		}
		return nil
	})
	return t, err
}

func decodeSql(buf []byte) (*Sql, error) {
	s := &Sql{}
	err := forEachField(buf, func(f dec.Field) error {
		switch f.ID {
		case wire.SqlFieldText:
			s.Text = f.AsString()
		case wire.SqlFieldPreamble:
			s.Preamble = f.AsString()
		case wire.SqlFieldColumnNames:
			s.ColumnNames = append(s.ColumnNames, f.AsString())
		case wire.SqlFieldDependencies:
			d, err := decodeDependency(f.AsBytes())
			if err != nil {
				return err
			}
			s.Dependencies = append(s.Dependencies, d)
		}
		return nil
	})
	return s, err
}

func decodeDependency(buf []byte) (Dependency, error) {
	d := Dependency{}
	err := forEachField(buf, func(f dec.Field) error {
		switch f.ID {
		case wire.DependencyFieldAlias:
			d.Alias = f.AsString()
		case wire.DependencyFieldQuery:
			d.Query = cloneBytes(f.AsBytes())
		}
		return nil
	})
	return d, err
}

func decodeSimpleSlices(buf []byte) (*SimpleSlices, error) {
	s := &SimpleSlices{}
	err := forEachField(buf, func(f dec.Field) error {
		switch f.ID {
		case wire.SimpleSlicesFieldSliceNameGlob:
			s.SliceNameGlob = f.AsString()
		case wire.SimpleSlicesFieldThreadNameGlob:
			s.ThreadNameGlob = f.AsString()
		case wire.SimpleSlicesFieldProcessNameGlob:
			s.ProcessNameGlob = f.AsString()
		case wire.SimpleSlicesFieldTrackNameGlob:
			s.TrackNameGlob = f.AsString()
		}
		return nil
	})
	return s, err
}

func decodeTimeRange(buf []byte) (*TimeRange, error) {
	t := &TimeRange{}
	err := forEachField(buf, func(f dec.Field) error {
		switch f.ID {
		case wire.TimeRangeFieldMode:
			t.Mode = f.AsUint64()
		case wire.TimeRangeFieldTs:
			v := wire.ZigzagDecode(f.AsUint64())
			t.Ts = &v
		case wire.TimeRangeFieldDur:
			v := wire.ZigzagDecode(f.AsUint64())
			t.Dur = &v
		}
		return nil
	})
	return t, err
}

func decodeIntervalIntersect(buf []byte) (*IntervalIntersect, error) {
	ii := &IntervalIntersect{}
	err := forEachField(buf, func(f dec.Field) error {
		switch f.ID {
		case wire.IntervalIntersectFieldBase:
			ii.Base = cloneBytes(f.AsBytes())
		case wire.IntervalIntersectFieldIntervals:
			ii.Intervals = append(ii.Intervals, cloneBytes(f.AsBytes()))
		case wire.IntervalIntersectFieldPartitionColumns:
			ii.PartitionColumns = append(ii.PartitionColumns, f.AsString())
		}
		return nil
	})
	return ii, err
}

func decodeEqualityColumns(buf []byte) (*EqualityColumns, error) {
	e := &EqualityColumns{}
	err := forEachField(buf, func(f dec.Field) error {
		switch f.ID {
		case wire.EqualityColumnsFieldLeft:
			e.Left = f.AsString()
		case wire.EqualityColumnsFieldRight:
			e.Right = f.AsString()
		}
		return nil
	})
	return e, err
}

func decodeFreeformCondition(buf []byte) (*FreeformCondition, error) {
	fc := &FreeformCondition{}
	err := forEachField(buf, func(f dec.Field) error {
		switch f.ID {
		case wire.FreeformConditionFieldLeftAlias:
			fc.LeftAlias = f.AsString()
		case wire.FreeformConditionFieldRightAlias:
			fc.RightAlias = f.AsString()
		case wire.FreeformConditionFieldSqlExpr:
			fc.SqlExpr = f.AsString()
		}
		return nil
	})
	return fc, err
}

func decodeJoin(buf []byte) (*Join, error) {
	j := &Join{}
	err := forEachField(buf, func(f dec.Field) error {
		switch f.ID {
		case wire.JoinFieldLeftQuery:
			j.Left = cloneBytes(f.AsBytes())
		case wire.JoinFieldRightQuery:
			j.Right = cloneBytes(f.AsBytes())
		case wire.JoinFieldType:
			j.Type = f.AsUint64()
		case wire.JoinFieldEqualityColumns:
			e, err := decodeEqualityColumns(f.AsBytes())
			if err != nil {
				return err
			}
			j.EqCols = e
		case wire.JoinFieldFreeformCondition:
			fc, err := decodeFreeformCondition(f.AsBytes())
			if err != nil {
				return err
			}
			j.Freeform = fc
		}
		return nil
	})
	return j, err
}

func decodeUnion(buf []byte) (*Union, error) {
	u := &Union{}
	err := forEachField(buf, func(f dec.Field) error {
		switch f.ID {
		case wire.UnionFieldQueries:
			u.Queries = append(u.Queries, cloneBytes(f.AsBytes()))
		case wire.UnionFieldUseUnionAll:
			u.UseUnionAll = f.AsBool()
		}
		return nil
	})
	return u, err
}

func decodeAddColumns(buf []byte) (*AddColumns, error) {
	a := &AddColumns{}
	err := forEachField(buf, func(f dec.Field) error {
		switch f.ID {
		case wire.AddColumnsFieldCoreQuery:
			a.Core = cloneBytes(f.AsBytes())
		case wire.AddColumnsFieldInputQuery:
			a.Input = cloneBytes(f.AsBytes())
		case wire.AddColumnsFieldEqualityColumns:
			e, err := decodeEqualityColumns(f.AsBytes())
			if err != nil {
				return err
			}
			a.EqCols = e
		case wire.AddColumnsFieldFreeformCondition:
			fc, err := decodeFreeformCondition(f.AsBytes())
			if err != nil {
				return err
			}
			a.Freeform = fc
		case wire.AddColumnsFieldInputColumns:
			sc, err := decodeSelectColumn(f.AsBytes())
			if err != nil {
				return err
			}
			a.InputColumns = append(a.InputColumns, sc)
		}
		return nil
	})
	return a, err
}

func decodeCreateSlices(buf []byte) (*CreateSlices, error) {
	c := &CreateSlices{}
	err := forEachField(buf, func(f dec.Field) error {
		switch f.ID {
		case wire.CreateSlicesFieldStartsQuery:
			c.StartsQuery = cloneBytes(f.AsBytes())
		case wire.CreateSlicesFieldEndsQuery:
			c.EndsQuery = cloneBytes(f.AsBytes())
		case wire.CreateSlicesFieldStartsTsColumn:
			c.StartsTsColumn = f.AsString()
		case wire.CreateSlicesFieldEndsTsColumn:
			c.EndsTsColumn = f.AsString()
		}
		return nil
	})
	return c, err
}

func decodeFilter(buf []byte) (Filter, error) {
	f := Filter{}
	err := forEachField(buf, func(fld dec.Field) error {
		switch fld.ID {
		case wire.FilterFieldColumnName:
			f.Column = fld.AsString()
		case wire.FilterFieldOp:
			f.Op = fld.AsUint64()
		case wire.FilterFieldStringRhs:
			f.StringRhs = append(f.StringRhs, fld.AsString())
		case wire.FilterFieldInt64Rhs:
			f.Int64Rhs = append(f.Int64Rhs, wire.ZigzagDecode(fld.AsUint64()))
		case wire.FilterFieldDoubleRhs:
			f.DoubleRhs = append(f.DoubleRhs, fld.AsDouble())
		}
		return nil
	})
	return f, err
}

func decodeFilterGroup(buf []byte) (*FilterGroup, error) {
	g := &FilterGroup{}
	err := forEachField(buf, func(f dec.Field) error {
		switch f.ID {
		case wire.FilterGroupFieldOp:
			g.Op = f.AsUint64()
		case wire.FilterGroupFieldFilters:
			filt, err := decodeFilter(f.AsBytes())
			if err != nil {
				return err
			}
			g.Filters = append(g.Filters, filt)
		case wire.FilterGroupFieldGroups:
			sub, err := decodeFilterGroup(f.AsBytes())
			if err != nil {
				return err
			}
			g.Groups = append(g.Groups, *sub)
		case wire.FilterGroupFieldSqlExpressions:
			g.SqlExpressions = append(g.SqlExpressions, f.AsString())
		}
		return nil
	})
	return g, err
}

func decodeGroupBy(buf []byte) (*GroupBy, error) {
	g := &GroupBy{}
	err := forEachField(buf, func(f dec.Field) error {
		switch f.ID {
		case wire.GroupByFieldColumnNames:
			g.ColumnNames = append(g.ColumnNames, f.AsString())
		case wire.GroupByFieldAggregates:
			a, err := decodeAggregate(f.AsBytes())
			if err != nil {
				return err
			}
			g.Aggregates = append(g.Aggregates, a)
		}
		return nil
	})
	return g, err
}

func decodeAggregate(buf []byte) (Aggregate, error) {
	a := Aggregate{}
	err := forEachField(buf, func(f dec.Field) error {
		switch f.ID {
		case wire.AggregateFieldOp:
			a.Op = f.AsUint64()
		case wire.AggregateFieldColumnName:
			a.Column = f.AsString()
		case wire.AggregateFieldResultColumnName:
			a.ResultColumnName = f.AsString()
		case wire.AggregateFieldPercentile:
			a.Percentile = f.AsDouble()
		case wire.AggregateFieldCustomSqlExpr:
			a.CustomSqlExpr = f.AsString()
		}
		return nil
	})
	return a, err
}

func decodeOrderBy(buf []byte) ([]OrderingSpec, error) {
	var specs []OrderingSpec
	err := forEachField(buf, func(f dec.Field) error {
		if f.ID != wire.OrderByFieldOrderingSpecs {
			return nil
		}
		spec, err := decodeOrderingSpec(f.AsBytes())
		if err != nil {
			return err
		}
		specs = append(specs, spec)
		return nil
	})
	return specs, err
}

func decodeOrderingSpec(buf []byte) (OrderingSpec, error) {
	s := OrderingSpec{}
	err := forEachField(buf, func(f dec.Field) error {
		switch f.ID {
		case wire.OrderingSpecFieldColumnName:
			s.ColumnName = f.AsString()
		case wire.OrderingSpecFieldDirection:
			s.Direction = f.AsUint64()
		}
		return nil
	})
	return s, err
}

func decodeSelectColumn(buf []byte) (SelectColumn, error) {
	c := SelectColumn{}
	err := forEachField(buf, func(f dec.Field) error {
		switch f.ID {
		case wire.SelectColumnFieldColumnName:
			c.ColumnName = f.AsString()
		case wire.SelectColumnFieldColumnNameOrExpression:
			c.ColumnNameOrExpr = f.AsString()
		case wire.SelectColumnFieldAlias:
			c.Alias = f.AsString()
		}
		return nil
	})
	return c, err
}
