package flow

import (
	"sort"

	"github.com/contentforge/forge/route"
)

// OrderedBlock is one entry of the global execution order: which kind
// of block runs at a global index, and where to find it among its
// siblings.
type OrderedBlock struct {
	GlobalIndex int
	BlockIndex  int
	Kind        route.BlockKind
}

// GlobalBlockOrder flattens a flow into execution order.
func GlobalBlockOrder(f *route.RouteFlow) []OrderedBlock {
	out := make([]OrderedBlock, 0, f.Len())
	add := func(global, block int, kind route.BlockKind) {
		out = append(out, OrderedBlock{GlobalIndex: global, BlockIndex: block, Kind: kind})
	}

	for _, b := range f.Fetchers {
		add(b.GlobalIndex, b.BlockIndex, route.KindFetch)
	}
	for _, b := range f.Filters {
		add(b.GlobalIndex, b.BlockIndex, route.KindFilter)
	}
	for _, b := range f.Assignments {
		add(b.GlobalIndex, b.BlockIndex, route.KindAssignment)
	}
	for _, b := range f.Templates {
		add(b.GlobalIndex, b.BlockIndex, route.KindTemplate)
	}
	for _, b := range f.Conditions {
		add(b.GlobalIndex, b.BlockIndex, route.KindCondition)
	}
	for _, b := range f.Loops {
		add(b.GlobalIndex, b.BlockIndex, route.KindLoop)
	}
	for _, b := range f.Updates {
		add(b.GlobalIndex, b.BlockIndex, route.KindUpdate)
	}
	for _, b := range f.Creates {
		add(b.GlobalIndex, b.BlockIndex, route.KindCreate)
	}
	for _, b := range f.Functions {
		add(b.GlobalIndex, b.BlockIndex, route.KindFunction)
	}
	for _, b := range f.Objects {
		add(b.GlobalIndex, b.BlockIndex, route.KindObject)
	}
	for _, b := range f.Properties {
		add(b.GlobalIndex, b.BlockIndex, route.KindProperty)
	}
	for _, b := range f.Returns {
		add(b.GlobalIndex, b.BlockIndex, route.KindReturn)
	}
	for _, b := range f.Fails {
		add(b.GlobalIndex, b.BlockIndex, route.KindFail)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].GlobalIndex < out[j].GlobalIndex
	})
	return out
}
