package sqlgen

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tpsql-core/tpsql/internal/fhm"
)

type stateType int

const (
	stateRoot stateType = iota
	stateShared
	stateNested
)

// queryState is one node in the CTE dependency tree being built by a single
// Generate call: either the root query, a shared query materialized once and
// referenced by id from possibly many places, or a nested query that only
// ever has a single referrer (e.g. the left side of a join).
type queryState struct {
	typ       stateType
	bytes     []byte
	parent    int // -1 for the root
	cteName   string
	id        string
	hasID     bool
	bodyLines []string
}

// Generator lowers StructuredQuery wire messages into executable SQL,
// resolving inner_query_id references against a pool of shared queries
// registered ahead of time via AddQuery.
//
// A Generator accumulates across calls: CTE names stay unique over its whole
// lifetime, a shared query materialized by an earlier Generate call is
// referenced by name rather than re-emitted, and ReferencedModules/Preambles
// report everything seen so far.
type Generator struct {
	queryProtos            *fhm.Map[string, []byte]
	referencedModules      *fhm.Map[string, struct{}]
	referencedModulesOrder []string
	preambles              []string
	usedNames              *fhm.Map[string, struct{}]
	sharedEmitted          *fhm.Map[string, string] // shared id -> CTE name, committed per successful Generate

	states         []*queryState
	sharedThisCall map[string]string
}

// NewGenerator returns an empty Generator with no shared queries registered.
func NewGenerator() *Generator {
	return &Generator{
		queryProtos:       fhm.New[string, []byte](fhm.StringHasher(), fhm.StringEq, 0, 0),
		referencedModules: fhm.New[string, struct{}](fhm.StringHasher(), fhm.StringEq, 0, 0),
		usedNames:         fhm.New[string, struct{}](fhm.StringHasher(), fhm.StringEq, 0, 0),
		sharedEmitted:     fhm.New[string, string](fhm.StringHasher(), fhm.StringEq, 0, 0),
	}
}

// AddQuery registers buf (a serialized StructuredQuery carrying a non-empty
// id) as a shared query other queries may reference via inner_query_id.
func (g *Generator) AddQuery(buf []byte) error {
	sq, err := decodeStructuredQuery(buf)
	if err != nil {
		return fmt.Errorf("sqlgen: AddQuery: %w", err)
	}
	if !sq.HasID || sq.ID == "" {
		return fmt.Errorf("sqlgen: AddQuery requires a query with a non-empty id")
	}
	if _, exists := g.queryProtos.Find(sq.ID); exists {
		return fmt.Errorf("sqlgen: a query with id %q was already added", sq.ID)
	}
	*g.queryProtos.Index(sq.ID) = buf
	return nil
}

// GenerateByID looks up a previously-added query by id and generates SQL for
// it as the root of a fresh CTE tree.
func (g *Generator) GenerateByID(id string) (string, error) {
	buf, ok := g.queryProtos.Find(id)
	if !ok {
		return "", fmt.Errorf("sqlgen: no query registered with id %q", id)
	}
	return g.Generate(*buf)
}

// ReferencedModules returns every module name referenced by any Generate or
// GenerateByID call so far, in first-seen order.
func (g *Generator) ReferencedModules() []string {
	return append([]string(nil), g.referencedModulesOrder...)
}

// Preambles returns the preamble statements (e.g. the leading statements of
// multi-statement Sql sources) accumulated so far, each meant to run before
// the generated query.
func (g *Generator) Preambles() []string {
	return append([]string(nil), g.preambles...)
}

func (g *Generator) addReferencedModule(name string) {
	if name == "" {
		return
	}
	if _, ok := g.referencedModules.Find(name); ok {
		return
	}
	*g.referencedModules.Index(name) = struct{}{}
	g.referencedModulesOrder = append(g.referencedModulesOrder, name)
}

func (g *Generator) uniqueName(base string) string {
	name := base
	for i := 0; ; i++ {
		if _, ok := g.usedNames.Find(name); !ok {
			*g.usedNames.Index(name) = struct{}{}
			return name
		}
		name = fmt.Sprintf("%s_%d", base, i)
	}
}

func (g *Generator) addState(typ stateType, bytes []byte, parent int, id string, hasID bool) int {
	idx := len(g.states)
	base := fmt.Sprintf("sq_%d", idx)
	if typ == stateShared {
		base = "shared_sq_" + id
	}
	st := &queryState{typ: typ, bytes: bytes, parent: parent, cteName: g.uniqueName(base), id: id, hasID: hasID}
	g.states = append(g.states, st)
	slog.Debug("appending query state", "index", idx, "cte", st.cteName, "parent", parent)
	return idx
}

// collectSharedRefs gathers every inner_query_id mentioned anywhere inside
// buf, descending through embedded inner queries, join/union/intersect/
// add-columns/create-slices sub-queries and sql dependencies, but not
// crossing into other registered shared queries.
func collectSharedRefs(buf []byte, out []string) []string {
	sq, err := decodeStructuredQuery(buf)
	if err != nil {
		return out
	}
	if sq.HasInnerQueryID {
		out = append(out, sq.InnerQueryID)
	}
	var nested [][]byte
	if sq.InnerQuery != nil {
		nested = append(nested, sq.InnerQuery)
	}
	if sq.Sql != nil {
		for _, d := range sq.Sql.Dependencies {
			nested = append(nested, d.Query)
		}
	}
	if sq.IntervalIntersect != nil {
		nested = append(nested, sq.IntervalIntersect.Base)
		nested = append(nested, sq.IntervalIntersect.Intervals...)
	}
	if sq.Join != nil {
		nested = append(nested, sq.Join.Left, sq.Join.Right)
	}
	if sq.Union != nil {
		nested = append(nested, sq.Union.Queries...)
	}
	if sq.AddColumns != nil {
		nested = append(nested, sq.AddColumns.Core, sq.AddColumns.Input)
	}
	if sq.CreateSlices != nil {
		nested = append(nested, sq.CreateSlices.StartsQuery, sq.CreateSlices.EndsQuery)
	}
	for _, n := range nested {
		if len(n) > 0 {
			out = collectSharedRefs(n, out)
		}
	}
	return out
}

// hasCycleFrom reports whether following shared-query references from id
// reaches any id in onPath. onPath is mutated during the walk and restored
// before returning.
func (g *Generator) hasCycleFrom(id string, onPath map[string]bool) bool {
	if onPath[id] {
		return true
	}
	buf, ok := g.queryProtos.Find(id)
	if !ok {
		return false
	}
	onPath[id] = true
	for _, ref := range collectSharedRefs(*buf, nil) {
		if g.hasCycleFrom(ref, onPath) {
			onPath[id] = false
			return true
		}
	}
	onPath[id] = false
	return false
}

// resolveSharedRef returns the CTE name bound to id, materializing it as a
// new shared state on first reference and reusing it on every subsequent one
// (including materializations from previous Generate calls). A reference
// whose subtree leads back to the referring state's ancestor chain is
// rejected before any state is created, so the error surfaces at the state
// holding the offending reference.
func (g *Generator) resolveSharedRef(fromIdx int, id string) (string, error) {
	onPath := map[string]bool{}
	for anc := fromIdx; anc != -1; anc = g.states[anc].parent {
		if s := g.states[anc]; s.hasID {
			onPath[s.id] = true
		}
	}
	if g.hasCycleFrom(id, onPath) {
		return "", fmt.Errorf("Cycle detected in structured query dependencies involving query with id '%s'", id)
	}
	if name, ok := g.sharedThisCall[id]; ok {
		return name, nil
	}
	if existing, ok := g.sharedEmitted.Find(id); ok {
		return *existing, nil
	}
	protoBytes, ok := g.queryProtos.Find(id)
	if !ok {
		return "", fmt.Errorf("Shared query with id '%s' not found", id)
	}
	childIdx := g.addState(stateShared, *protoBytes, fromIdx, id, true)
	g.sharedThisCall[id] = g.states[childIdx].cteName
	return g.states[childIdx].cteName, nil
}

func wrapStateErr(st *queryState, idx int, err error) error {
	idStr := "unknown"
	if st.hasID {
		idStr = st.id
	}
	return fmt.Errorf("Failed to generate SQL for query (id=%s, idx=%d): %w", idStr, idx, err)
}

// Generate lowers rootBytes (a serialized StructuredQuery) into a single SQL
// string: a WITH clause holding one CTE per sub-query discovered while
// lowering, in reverse discovery order, followed by a final SELECT from the
// root's CTE — or, when the shortcut applies, the root's own SELECT directly
// with no wrapping CTE.
func (g *Generator) Generate(rootBytes []byte) (string, error) {
	g.states = nil
	g.sharedThisCall = map[string]string{}

	g.addState(stateRoot, rootBytes, -1, "", false)
	rootSq, err := decodeStructuredQuery(rootBytes)
	if err != nil {
		return "", wrapStateErr(g.states[0], 0, fmt.Errorf("malformed structured query: %w", err))
	}
	for i := 0; i < len(g.states); i++ {
		st := g.states[i]
		sq := rootSq
		if i > 0 {
			sq, err = decodeStructuredQuery(st.bytes)
			if err != nil {
				return "", wrapStateErr(st, i, fmt.Errorf("malformed structured query: %w", err))
			}
		}
		if sq.HasID {
			st.id, st.hasID = sq.ID, true
		}
		lines, err := g.lowerState(i, sq)
		if err != nil {
			return "", wrapStateErr(st, i, err)
		}
		st.bodyLines = lines
	}

	for id, name := range g.sharedThisCall {
		*g.sharedEmitted.Index(id) = name
	}
	return g.assemble(isRootShortcut(rootSq)), nil
}

// isRootShortcut reports whether sq is a root whose only source is an
// embedded inner_query (not a reference by id) and that otherwise passes its
// child straight through unmodified, aside from possibly adding
// ordering/limit/offset. Such a root applies those operations in the final
// SELECT instead of wrapping itself in a redundant CTE.
func isRootShortcut(sq *structuredQuery) bool {
	if sq.InnerQuery == nil {
		return false
	}
	if sq.Table != nil || sq.Sql != nil || sq.SimpleSlices != nil || sq.TimeRange != nil ||
		sq.IntervalIntersect != nil || sq.Join != nil || sq.Union != nil || sq.AddColumns != nil ||
		sq.CreateSlices != nil || sq.HasInnerQueryID {
		return false
	}
	if len(sq.Filters) > 0 || sq.FilterGroup != nil || sq.GroupBy != nil || len(sq.SelectColumns) > 0 {
		return false
	}
	return true
}

func indentLines(lines []string, indent string) string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = indent + l
	}
	return strings.Join(out, "\n")
}

// assemble renders every processed state as a CTE, in reverse discovery order
// (so a sub-query's CTE is declared before anything that depends on it), then
// the final statement: either a plain `SELECT * FROM <root>` or, if shortcut
// applies, the root's own clauses emitted directly with no wrapping CTE for
// itself.
func (g *Generator) assemble(shortcut bool) string {
	var ctes []string
	for i := len(g.states) - 1; i >= 0; i-- {
		if i == 0 && shortcut {
			continue
		}
		st := g.states[i]
		ctes = append(ctes, st.cteName+" AS (\n"+indentLines(st.bodyLines, "  ")+"\n)")
	}

	var sb strings.Builder
	if len(ctes) > 0 {
		sb.WriteString("WITH ")
		sb.WriteString(strings.Join(ctes, ",\n"))
		sb.WriteString("\n")
	}
	if shortcut {
		sb.WriteString(strings.Join(g.states[0].bodyLines, "\n"))
	} else {
		sb.WriteString("SELECT *\nFROM " + g.states[0].cteName)
	}
	return sb.String()
}
