// Package sqlgen lowers a StructuredQuery wire message (see internal/wire for
// its field schema) into a single executable SQL string, generating one CTE
// per sub-query and wiring shared, nested, and referenced-by-id queries
// together. It is the structured-query half of trace processor's query
// surface, decoding with internal/dec and registering string-keyed state with
// internal/fhm the same way the rest of this module does.
package sqlgen

// Filter is a single column/operator/rhs-list predicate.
type Filter struct {
	Column    string
	Op        uint64
	StringRhs []string
	Int64Rhs  []int64
	DoubleRhs []float64
}

// FilterGroup is a boolean combination of filters, nested groups, and raw SQL
// expressions.
type FilterGroup struct {
	Op             uint64
	Filters        []Filter
	Groups         []FilterGroup
	SqlExpressions []string
}

// Aggregate is one GROUP BY aggregate expression.
type Aggregate struct {
	Op               uint64
	Column           string
	ResultColumnName string
	Percentile       float64
	CustomSqlExpr    string
}

// GroupBy is a GROUP BY clause: grouping columns plus aggregate projections.
type GroupBy struct {
	ColumnNames []string
	Aggregates  []Aggregate
}

// OrderingSpec is a single ORDER BY column/direction pair.
type OrderingSpec struct {
	ColumnName string
	Direction  uint64
}

// SelectColumn is one projected output column: either a plain column name or
// an arbitrary expression, with an optional alias.
type SelectColumn struct {
	ColumnName       string
	ColumnNameOrExpr string
	Alias            string
}

// Table sources a query directly from a named trace processor table, module
// included via the given package path.
type Table struct {
	Name   string
	Module string
}

// Dependency binds an inline $alias token in a Sql source's text to a nested
// sub-query.
type Dependency struct {
	Alias string
	Query []byte
}

// Sql sources a query from raw SQL text, with optional declared output
// columns and $alias-substituted dependency sub-queries.
type Sql struct {
	Text         string
	Preamble     string
	ColumnNames  []string
	Dependencies []Dependency
}

// SimpleSlices sources the thread_or_process_slice view, filtered by any
// non-empty glob.
type SimpleSlices struct {
	SliceNameGlob   string
	ThreadNameGlob  string
	ProcessNameGlob string
	TrackNameGlob   string
}

// TimeRange sources a single synthetic ts/dur row, either a literal interval
// (Static) or the trace's bounds, optionally overridden (Dynamic).
type TimeRange struct {
	Mode uint64
	Ts   *int64
	Dur  *int64
}

// IntervalIntersect sources the interval intersection of a base query against
// one or more other interval queries, partitioned by the given columns.
type IntervalIntersect struct {
	Base             []byte
	Intervals        [][]byte
	PartitionColumns []string
}

// EqualityColumns is a single-column-pair join condition.
type EqualityColumns struct {
	Left  string
	Right string
}

// FreeformCondition is an arbitrary SQL join condition referencing the two
// sides by alias.
type FreeformCondition struct {
	LeftAlias  string
	RightAlias string
	SqlExpr    string
}

// Join sources an inner or left join of two sub-queries.
type Join struct {
	Left     []byte
	Right    []byte
	Type     uint64
	EqCols   *EqualityColumns
	Freeform *FreeformCondition
}

// Union sources the (optionally ALL) union of two or more sub-queries.
type Union struct {
	Queries     [][]byte
	UseUnionAll bool
}

// AddColumns sources a left join of a core query against columns pulled from
// an input query.
type AddColumns struct {
	Core         []byte
	Input        []byte
	EqCols       *EqualityColumns
	Freeform     *FreeformCondition
	InputColumns []SelectColumn
}

// CreateSlices sources synthetic slices built by pairing each row of a starts
// query with the next later row of an ends query.
type CreateSlices struct {
	StartsQuery    []byte
	EndsQuery      []byte
	StartsTsColumn string
	EndsTsColumn   string
}

// structuredQuery is the fully decoded form of one StructuredQuery message.
// At most one of the source fields below is expected to be set; decode does
// not itself enforce that (the original wire format leaves it to a oneof),
// lowerSource picks the first one present in schema-declaration order.
type structuredQuery struct {
	ID    string
	HasID bool

	Table             *Table
	Sql               *Sql
	SimpleSlices      *SimpleSlices
	TimeRange         *TimeRange
	IntervalIntersect *IntervalIntersect
	Join              *Join
	Union             *Union
	AddColumns        *AddColumns
	CreateSlices      *CreateSlices
	InnerQuery        []byte
	InnerQueryID      string
	HasInnerQueryID   bool

	Filters     []Filter
	FilterGroup *FilterGroup
	GroupBy     *GroupBy
	OrderBy     []OrderingSpec
	Limit       *int64
	Offset      *int64

	SelectColumns     []SelectColumn
	ReferencedModules []string
}
