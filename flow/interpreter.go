package flow

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/contentforge/forge/pkg/apierror"
	"github.com/contentforge/forge/route"
)

// DefaultLoopCap bounds loop iterations per request. Overflow is an
// internal error, not a silent truncation.
const DefaultLoopCap = 10000

// DataSource is the interpreter's view of the record store. Mutations
// carry the block's save flag; a false flag keeps the change visible
// to later fetches of the same request without persisting it.
type DataSource interface {
	Fetch(projectID, collectionID string) ([]map[string]any, error)
	Update(projectID, collectionID string, records []map[string]any, save bool) error
	Create(projectID, collectionID string, record map[string]any, save bool) error
}

// Result is the terminal outcome of one request's interpretation.
type Result struct {
	Status int
	Value  DefinitionData
}

// Interpreter walks one flow per request, sequentially. It holds no
// per-request state itself and is safe to share across requests.
type Interpreter struct {
	source  DataSource
	logger  *slog.Logger
	loopCap int
}

// New builds an interpreter over a record source.
func New(source DataSource, logger *slog.Logger) *Interpreter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{source: source, logger: logger, loopCap: DefaultLoopCap}
}

// SetLoopCap overrides the iteration ceiling.
func (it *Interpreter) SetLoopCap(cap int) {
	if cap > 0 {
		it.loopCap = cap
	}
}

// Execute runs a route's flow. inputs seeds the definition store with
// body fields, params and auth claims; they are visible to every
// block. The store is returned for inspection after the request.
func (it *Interpreter) Execute(ctx context.Context, r *route.RouteComponent, inputs map[string]DefinitionData) (Result, *DefinitionStore, error) {
	store := NewDefinitionStore()
	for name, v := range inputs {
		store.Set(name, -1, v)
	}

	order := GlobalBlockOrder(&r.Flow)
	sig, err := it.run(ctx, r, order, store, 0, len(order))
	if err != nil {
		return Result{}, store, err
	}

	switch sig.Kind {
	case SignalReturn:
		return Result{Status: 200, Value: sig.Value}, store, nil
	case SignalFail:
		return Result{Status: sig.Status, Value: String(sig.Message)}, store, nil
	default:
		// BREAK and CONTINUE outside a loop fall through to terminal.
		return Result{Status: 200, Value: Null()}, store, nil
	}
}

// run walks order[start:end]. A LOOP block claims every block after
// it as its body, so the walk ends when one is entered.
func (it *Interpreter) run(ctx context.Context, r *route.RouteComponent, order []OrderedBlock, store *DefinitionStore, start, end int) (Signal, error) {
	pos := start
	for pos < end {
		if err := ctx.Err(); err != nil {
			return None(), apierror.Internalf("Error: request aborted: %v", err)
		}

		ob := order[pos]
		if ob.Kind == route.KindLoop {
			return it.runLoop(ctx, r, order, store, pos, end)
		}

		sig, skip, err := it.evalBlock(ctx, r, ob, store)
		if err != nil {
			return None(), err
		}
		if sig.Kind != SignalNone {
			return sig, nil
		}
		pos += 1 + skip
	}
	return None(), nil
}

// runLoop evaluates the header once, then re-runs the body for each
// counter value in [start, end). The counter advances by one per
// iteration; equal bounds on entry mean zero iterations.
func (it *Interpreter) runLoop(ctx context.Context, r *route.RouteComponent, order []OrderedBlock, store *DefinitionStore, pos, end int) (Signal, error) {
	ob := order[pos]
	if ob.BlockIndex >= len(r.Flow.Loops) {
		return None(), apierror.Internalf("Error: loop block %d out of range", ob.BlockIndex)
	}
	blk := r.Flow.Loops[ob.BlockIndex]

	counter, err := ResolveRefData(blk.Start, store, ob.GlobalIndex)
	if err != nil {
		return None(), err
	}
	bound, err := ResolveRefData(blk.End, store, ob.GlobalIndex)
	if err != nil {
		return None(), err
	}
	if !counter.IsNumeric() || !bound.IsNumeric() {
		return None(), apierror.BadInputf("Error: loop %s wants numeric bounds", blk.LocalName)
	}

	store.Set(blk.LocalName, ob.GlobalIndex, counter)
	iterations := 0
	for counter.AsFloat() < bound.AsFloat() {
		iterations++
		if iterations > it.loopCap {
			return None(), apierror.Internalf("Error: loop %s exceeded %d iterations", blk.LocalName, it.loopCap)
		}
		store.Set(blk.LocalName, ob.GlobalIndex, counter)

		sig, err := it.run(ctx, r, order, store, pos+1, end)
		if err != nil {
			return None(), err
		}
		switch sig.Kind {
		case SignalBreak:
			return None(), nil
		case SignalReturn, SignalFail:
			return sig, nil
		}
		// NONE and CONTINUE both advance the counter and re-enter.

		if counter.Kind == KindInteger {
			counter = Integer(counter.Int + 1)
		} else {
			counter = Float(counter.Float + 1)
		}
	}
	return None(), nil
}

// evalBlock evaluates one non-loop block. The int result is how many
// following blocks to skip (CONDITION with the SKIP action).
func (it *Interpreter) evalBlock(ctx context.Context, r *route.RouteComponent, ob OrderedBlock, store *DefinitionStore) (Signal, int, error) {
	g := ob.GlobalIndex

	switch ob.Kind {
	case route.KindFetch:
		if ob.BlockIndex >= len(r.Flow.Fetchers) {
			return None(), 0, blockRange(ob)
		}
		blk := r.Flow.Fetchers[ob.BlockIndex]
		records, err := it.fetch(r.ProjectID, blk.RefCol)
		if err != nil {
			return None(), 0, err
		}
		store.Set(blk.LocalName, g, Structured(records))
		return None(), 0, nil

	case route.KindFilter:
		if ob.BlockIndex >= len(r.Flow.Filters) {
			return None(), 0, blockRange(ob)
		}
		blk := r.Flow.Filters[ob.BlockIndex]
		v, err := store.Get(blk.RefVar, g)
		if err != nil {
			return None(), 0, err
		}
		seq, ok := v.Structured.([]any)
		if v.Kind != KindStructured || !ok {
			return None(), 0, apierror.BadInputf("Error: %s is not a sequence", blk.RefVar)
		}
		var out []any
		for _, el := range seq {
			rec, ok := el.(map[string]any)
			if !ok {
				continue
			}
			keep, err := matchFilters(blk.Filters, rec, store, g)
			if err != nil {
				return None(), 0, err
			}
			if keep {
				out = append(out, el)
			}
		}
		store.Set(blk.LocalName, g, Structured(out))
		return None(), 0, nil

	case route.KindAssignment:
		if ob.BlockIndex >= len(r.Flow.Assignments) {
			return None(), 0, blockRange(ob)
		}
		blk := r.Flow.Assignments[ob.BlockIndex]
		ok, err := ResolveConditions(blk.Conditions, store, g)
		if err != nil {
			return None(), 0, err
		}
		if !ok {
			return None(), 0, nil
		}
		value, err := ResolveOperations(blk.Operations, store, g)
		if err != nil {
			return None(), 0, err
		}
		store.Set(blk.LocalName, g, value)
		return None(), 0, nil

	case route.KindTemplate:
		if ob.BlockIndex >= len(r.Flow.Templates) {
			return None(), 0, blockRange(ob)
		}
		blk := r.Flow.Templates[ob.BlockIndex]
		ok, err := ResolveConditions(blk.Conditions, store, g)
		if err != nil {
			return None(), 0, err
		}
		if !ok {
			return None(), 0, nil
		}
		out := blk.Template
		for _, d := range blk.Data {
			if !d.RefVar {
				continue
			}
			v, err := ResolveRefData(d, store, g)
			if err != nil {
				return None(), 0, err
			}
			out = strings.ReplaceAll(out, "{"+d.Data+"}", v.AsString())
		}
		store.Set(blk.LocalName, g, String(out))
		return None(), 0, nil

	case route.KindCondition:
		if ob.BlockIndex >= len(r.Flow.Conditions) {
			return None(), 0, blockRange(ob)
		}
		blk := r.Flow.Conditions[ob.BlockIndex]
		ok, err := ResolveConditions(blk.Conditions, store, g)
		if err != nil {
			return None(), 0, err
		}
		if ok {
			return None(), 0, nil
		}
		switch blk.Action {
		case route.ActionBreak:
			return Break(), 0, nil
		case route.ActionContinue:
			return Continue(), 0, nil
		case route.ActionSkip:
			return None(), blk.Skip, nil
		default:
			status := blk.Fail.Status
			if status == 0 {
				status = 400
			}
			message := blk.Fail.Message
			if message == "" {
				message = "Error: condition failed"
			}
			return Fail(status, message), 0, nil
		}

	case route.KindUpdate:
		if ob.BlockIndex >= len(r.Flow.Updates) {
			return None(), 0, blockRange(ob)
		}
		return None(), 0, it.evalUpdate(r, r.Flow.Updates[ob.BlockIndex], store, g)

	case route.KindCreate:
		if ob.BlockIndex >= len(r.Flow.Creates) {
			return None(), 0, blockRange(ob)
		}
		blk := r.Flow.Creates[ob.BlockIndex]
		ok, err := ResolveConditions(blk.Conditions, store, g)
		if err != nil {
			return None(), 0, err
		}
		if !ok {
			return None(), 0, nil
		}
		v, err := store.Get(blk.RefObject, g)
		if err != nil {
			return None(), 0, err
		}
		obj, isMap := v.Structured.(map[string]any)
		if v.Kind != KindStructured || !isMap {
			return None(), 0, apierror.BadInputf("Error: %s is not an object", blk.RefObject)
		}
		if it.source == nil {
			return None(), 0, apierror.Internalf("Error: no record source bound")
		}
		return None(), 0, it.source.Create(r.ProjectID, blk.RefCol, obj, blk.Save)

	case route.KindFunction:
		if ob.BlockIndex >= len(r.Flow.Functions) {
			return None(), 0, blockRange(ob)
		}
		blk := r.Flow.Functions[ob.BlockIndex]
		params := make([]DefinitionData, len(blk.Params))
		for i, p := range blk.Params {
			v, err := ResolveRefData(p, store, g)
			if err != nil {
				return None(), 0, err
			}
			params[i] = v
		}
		out, err := CallBuiltin(blk.Func, params)
		if err != nil {
			return None(), 0, err
		}
		store.Set(blk.LocalName, g, out)
		return None(), 0, nil

	case route.KindObject:
		if ob.BlockIndex >= len(r.Flow.Objects) {
			return None(), 0, blockRange(ob)
		}
		blk := r.Flow.Objects[ob.BlockIndex]
		obj := make(map[string]any, len(blk.Pairs))
		for _, p := range blk.Pairs {
			v, err := ResolveRefData(p.Data, store, g)
			if err != nil {
				return None(), 0, err
			}
			obj[p.ID] = v.Value()
		}
		store.Set(blk.LocalName, g, Structured(obj))
		return None(), 0, nil

	case route.KindProperty:
		if ob.BlockIndex >= len(r.Flow.Properties) {
			return None(), 0, blockRange(ob)
		}
		blk := r.Flow.Properties[ob.BlockIndex]
		src, err := ResolveRefData(blk.Data, store, g)
		if err != nil {
			return None(), 0, err
		}
		value, err := applyProjection(src, blk.Apply, blk.AdditionalData)
		if err != nil {
			return None(), 0, err
		}
		if strings.EqualFold(blk.LocalName, "RETURN") {
			return Return(value), 0, nil
		}
		store.Set(blk.LocalName, g, value)
		return None(), 0, nil

	case route.KindReturn:
		if ob.BlockIndex >= len(r.Flow.Returns) {
			return None(), 0, blockRange(ob)
		}
		blk := r.Flow.Returns[ob.BlockIndex]
		ok, err := ResolveConditions(blk.Conditions, store, g)
		if err != nil {
			return None(), 0, err
		}
		if !ok {
			return None(), 0, nil
		}
		obj := make(map[string]any, len(blk.Pairs))
		for _, p := range blk.Pairs {
			v, err := ResolveRefData(p.Data, store, g)
			if err != nil {
				return None(), 0, err
			}
			obj[p.ID] = v.Value()
		}
		return Return(Structured(obj)), 0, nil

	case route.KindFail:
		if ob.BlockIndex >= len(r.Flow.Fails) {
			return None(), 0, blockRange(ob)
		}
		blk := r.Flow.Fails[ob.BlockIndex]
		return Fail(blk.Status, blk.Message), 0, nil

	default:
		it.logger.Warn("skipping unknown block kind", "kind", string(ob.Kind))
		return None(), 0, nil
	}
}

func (it *Interpreter) fetch(projectID, collectionID string) ([]any, error) {
	if it.source == nil {
		return nil, apierror.Internalf("Error: no record source bound")
	}
	records, err := it.source.Fetch(projectID, collectionID)
	if err != nil {
		return nil, err
	}
	seq := make([]any, len(records))
	for i, rec := range records {
		seq[i] = rec
	}
	return seq, nil
}

func (it *Interpreter) evalUpdate(r *route.RouteComponent, blk route.UpdateBlock, store *DefinitionStore, g int) error {
	ok, err := ResolveConditions(blk.Conditions, store, g)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if it.source == nil {
		return apierror.Internalf("Error: no record source bound")
	}

	records, err := it.source.Fetch(r.ProjectID, blk.RefCol)
	if err != nil {
		return err
	}

	var changed []map[string]any
	for _, rec := range records {
		if len(blk.Filters) > 0 {
			keep, err := matchFilters(blk.Filters, rec, store, g)
			if err != nil {
				return err
			}
			if !keep {
				continue
			}
		}

		switch {
		case hasRef(blk.Set):
			v, err := ResolveRefData(blk.Set, store, g)
			if err != nil {
				return err
			}
			rec[blk.RefProperty] = v.Value()
		case hasRef(blk.Add):
			add, err := ResolveRefData(blk.Add, store, g)
			if err != nil {
				return err
			}
			sum, err := ApplyOperation(FromAny(rec[blk.RefProperty]), add, route.OpAdd)
			if err != nil {
				return err
			}
			rec[blk.RefProperty] = sum.Value()
		}
		changed = append(changed, rec)
	}

	if len(changed) == 0 {
		return nil
	}
	return it.source.Update(r.ProjectID, blk.RefCol, changed, blk.Save)
}

// matchFilters folds filter predicates against one record the same
// way conditions fold.
func matchFilters(filters []route.Filter, rec map[string]any, store *DefinitionStore, at int) (bool, error) {
	if len(filters) == 0 {
		return true, nil
	}

	eval := func(f route.Filter) (bool, error) {
		right, err := ResolveRefData(f.Right, store, at)
		if err != nil {
			return false, err
		}
		out, err := Compare(FromAny(rec[f.RefProperty]), right, f.Operator)
		if err != nil {
			return false, err
		}
		if f.Not {
			out = !out
		}
		return out, nil
	}

	result, err := eval(filters[0])
	if err != nil {
		return false, err
	}
	for i := 1; i < len(filters); i++ {
		next, err := eval(filters[i])
		if err != nil {
			return false, err
		}
		switch filters[i-1].Next {
		case route.NextAnd:
			result = result && next
		case route.NextOr:
			result = result || next
		default:
			result = next
		}
	}
	return result, nil
}

func applyProjection(src DefinitionData, apply route.PropertyApply, additional string) (DefinitionData, error) {
	switch apply {
	case route.ApplyNone:
		return src, nil

	case route.ApplyLength:
		if seq, ok := src.Structured.([]any); src.Kind == KindStructured && ok {
			return Integer(int64(len(seq))), nil
		}
		return Integer(int64(len(src.AsString()))), nil

	case route.ApplyGetFirst, route.ApplyGetLast, route.ApplyGetIndex:
		seq, ok := src.Structured.([]any)
		if src.Kind != KindStructured || !ok {
			return DefinitionData{}, apierror.BadInputf("Error: projection wants a sequence")
		}
		if len(seq) == 0 {
			return Null(), nil
		}
		idx := 0
		switch apply {
		case route.ApplyGetLast:
			idx = len(seq) - 1
		case route.ApplyGetIndex:
			n, err := strconv.Atoi(additional)
			if err != nil || n < 0 || n >= len(seq) {
				return DefinitionData{}, apierror.BadInputf("Error: index %q out of range", additional)
			}
			idx = n
		}
		return FromAny(seq[idx]), nil

	case route.ApplyGetProperty:
		obj, ok := src.Structured.(map[string]any)
		if src.Kind != KindStructured || !ok {
			return DefinitionData{}, apierror.BadInputf("Error: projection wants an object")
		}
		v, present := obj[additional]
		if !present {
			return Null(), nil
		}
		return FromAny(v), nil

	default:
		return DefinitionData{}, apierror.BadInputf("Error: unknown projection %q", string(apply))
	}
}

func hasRef(r route.RefData) bool {
	return r.RefVar || r.Data != ""
}

func blockRange(ob OrderedBlock) error {
	return apierror.Internalf("Error: %s block %d out of range", string(ob.Kind), ob.BlockIndex)
}
