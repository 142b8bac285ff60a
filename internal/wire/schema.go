// Package wire defines the field-number schema for the StructuredQuery wire
// message that internal/sqlgen decodes via internal/dec. There is no .proto
// compiler in this repository: this package is the hand-maintained source of
// truth for which field number means what, mirroring the role
// structured_query.pbzero.h plays for the original C++ generator.
//
// Every field number below is this module's own invention, consistent only
// with itself: internal/wire/encode.go (used by tests to build StructuredQuery
// byte strings) and internal/sqlgen/decode.go (which decodes them) must
// stay in lockstep with this file.
package wire

// StructuredQuery field numbers.
const (
	FieldID                       uint16 = 1
	FieldTable                    uint16 = 2
	FieldSql                      uint16 = 3
	FieldSimpleSlices             uint16 = 4
	FieldExperimentalTimeRange    uint16 = 5
	FieldIntervalIntersect        uint16 = 6
	FieldExperimentalJoin         uint16 = 7
	FieldExperimentalUnion        uint16 = 8
	FieldExperimentalAddColumns   uint16 = 9
	FieldExperimentalCreateSlices uint16 = 10
	FieldInnerQuery               uint16 = 11
	FieldInnerQueryID             uint16 = 12
	FieldFilters                  uint16 = 13
	FieldExperimentalFilterGroup  uint16 = 14
	FieldGroupBy                  uint16 = 15
	FieldOrderBy                  uint16 = 16
	FieldLimit                    uint16 = 17
	FieldOffset                   uint16 = 18
	FieldSelectColumns            uint16 = 19
	FieldReferencedModules        uint16 = 20
)

// Table fields.
const (
	TableFieldName   uint16 = 1
	TableFieldModule uint16 = 2
)

// Sql fields.
const (
	SqlFieldText         uint16 = 1
	SqlFieldPreamble     uint16 = 2
	SqlFieldColumnNames  uint16 = 3
	SqlFieldDependencies uint16 = 4
)

// Sql.Dependency fields.
const (
	DependencyFieldAlias uint16 = 1
	DependencyFieldQuery uint16 = 2
)

// SimpleSlices fields.
const (
	SimpleSlicesFieldSliceNameGlob   uint16 = 1
	SimpleSlicesFieldThreadNameGlob  uint16 = 2
	SimpleSlicesFieldProcessNameGlob uint16 = 3
	SimpleSlicesFieldTrackNameGlob   uint16 = 4
)

// ExperimentalTimeRange fields and Mode enum.
const (
	TimeRangeFieldMode uint16 = 1
	TimeRangeFieldTs   uint16 = 2
	TimeRangeFieldDur  uint16 = 3

	TimeRangeModeStatic  uint64 = 1
	TimeRangeModeDynamic uint64 = 2
)

// IntervalIntersect fields.
const (
	IntervalIntersectFieldBase             uint16 = 1
	IntervalIntersectFieldIntervals        uint16 = 2
	IntervalIntersectFieldPartitionColumns uint16 = 3
)

// ExperimentalJoin fields and Type enum.
const (
	JoinFieldLeftQuery         uint16 = 1
	JoinFieldRightQuery        uint16 = 2
	JoinFieldType              uint16 = 3
	JoinFieldEqualityColumns   uint16 = 4
	JoinFieldFreeformCondition uint16 = 5

	JoinTypeInner uint64 = 0
	JoinTypeLeft  uint64 = 1
)

// EqualityColumns fields (shared by ExperimentalJoin and ExperimentalAddColumns).
const (
	EqualityColumnsFieldLeft  uint16 = 1
	EqualityColumnsFieldRight uint16 = 2
)

// FreeformCondition fields (shared by ExperimentalJoin and ExperimentalAddColumns).
const (
	FreeformConditionFieldLeftAlias  uint16 = 1
	FreeformConditionFieldRightAlias uint16 = 2
	FreeformConditionFieldSqlExpr    uint16 = 3
)

// ExperimentalUnion fields.
const (
	UnionFieldQueries     uint16 = 1
	UnionFieldUseUnionAll uint16 = 2
)

// ExperimentalAddColumns fields.
const (
	AddColumnsFieldCoreQuery         uint16 = 1
	AddColumnsFieldInputQuery        uint16 = 2
	AddColumnsFieldEqualityColumns   uint16 = 3
	AddColumnsFieldFreeformCondition uint16 = 4
	AddColumnsFieldInputColumns      uint16 = 5
)

// ExperimentalCreateSlices fields.
const (
	CreateSlicesFieldStartsQuery    uint16 = 1
	CreateSlicesFieldEndsQuery      uint16 = 2
	CreateSlicesFieldStartsTsColumn uint16 = 3
	CreateSlicesFieldEndsTsColumn   uint16 = 4
)

// Filter fields and Operator enum.
const (
	FilterFieldColumnName uint16 = 1
	FilterFieldOp         uint16 = 2
	FilterFieldStringRhs  uint16 = 3
	FilterFieldInt64Rhs   uint16 = 4
	FilterFieldDoubleRhs  uint16 = 5

	FilterOpUnknown          uint64 = 0
	FilterOpEqual            uint64 = 1
	FilterOpNotEqual         uint64 = 2
	FilterOpLessThan         uint64 = 3
	FilterOpLessThanEqual    uint64 = 4
	FilterOpGreaterThan      uint64 = 5
	FilterOpGreaterThanEqual uint64 = 6
	FilterOpGlob             uint64 = 7
	FilterOpIsNull           uint64 = 8
	FilterOpIsNotNull        uint64 = 9
)

// ExperimentalFilterGroup fields and Operator enum.
const (
	FilterGroupFieldOp             uint16 = 1
	FilterGroupFieldFilters        uint16 = 2
	FilterGroupFieldGroups         uint16 = 3
	FilterGroupFieldSqlExpressions uint16 = 4

	FilterGroupOpUnspecified uint64 = 0
	FilterGroupOpAnd         uint64 = 1
	FilterGroupOpOr          uint64 = 2
)

// GroupBy fields.
const (
	GroupByFieldColumnNames uint16 = 1
	GroupByFieldAggregates  uint16 = 2
)

// GroupBy.Aggregate fields and Op enum.
const (
	AggregateFieldOp               uint16 = 1
	AggregateFieldColumnName       uint16 = 2
	AggregateFieldResultColumnName uint16 = 3
	AggregateFieldPercentile       uint16 = 4
	AggregateFieldCustomSqlExpr    uint16 = 5

	AggregateOpUnspecified          uint64 = 0
	AggregateOpCount                uint64 = 1
	AggregateOpCountDistinct        uint64 = 2
	AggregateOpSum                  uint64 = 3
	AggregateOpMin                  uint64 = 4
	AggregateOpMax                  uint64 = 5
	AggregateOpMean                 uint64 = 6
	AggregateOpMedian               uint64 = 7
	AggregateOpPercentile           uint64 = 8
	AggregateOpDurationWeightedMean uint64 = 9
	AggregateOpCustom               uint64 = 10
)

// OrderBy fields.
const (
	OrderByFieldOrderingSpecs uint16 = 1
)

// OrderBy.OrderingSpec fields and Direction enum.
const (
	OrderingSpecFieldColumnName uint16 = 1
	OrderingSpecFieldDirection  uint16 = 2

	DirectionUnspecified uint64 = 0
	DirectionAsc         uint64 = 1
	DirectionDesc        uint64 = 2
)

// SelectColumn fields.
const (
	SelectColumnFieldColumnName             uint16 = 1
	SelectColumnFieldColumnNameOrExpression uint16 = 2
	SelectColumnFieldAlias                  uint16 = 3
)
