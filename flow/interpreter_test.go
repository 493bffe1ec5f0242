package flow

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/contentforge/forge/pkg/apierror"
	"github.com/contentforge/forge/route"
)

// fakeSource serves canned records and counts traffic per collection.
type fakeSource struct {
	collections map[string][]map[string]any
	fetches     map[string]int
	updated     []map[string]any
	updateSaved bool
	created     []map[string]any
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		collections: map[string][]map[string]any{},
		fetches:     map[string]int{},
	}
}

func (s *fakeSource) Fetch(projectID, collectionID string) ([]map[string]any, error) {
	s.fetches[collectionID]++
	return s.collections[collectionID], nil
}

func (s *fakeSource) Update(projectID, collectionID string, records []map[string]any, save bool) error {
	s.updated = append(s.updated, records...)
	s.updateSaved = save
	return nil
}

func (s *fakeSource) Create(projectID, collectionID string, record map[string]any, save bool) error {
	s.created = append(s.created, record)
	return nil
}

func testInterpreter(s DataSource) *Interpreter {
	return New(s, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testRoute(t *testing.T) *route.RouteComponent {
	t.Helper()
	var list []route.RouteComponent
	if err := route.CreateRouteComponent(&list, "r1", "/r1", "konnect"); err != nil {
		t.Fatal(err)
	}
	return &list[0]
}

func intLit(v string) route.RefData { return route.Lit(v, route.TypeInteger) }

func TestReturnShortCircuitsLaterBlocks(t *testing.T) {
	src := newFakeSource()
	src.collections["posts"] = []map[string]any{{"id": "p1"}}
	src.collections["comments"] = []map[string]any{{"id": "c1"}}

	r := testRoute(t)
	fetchPosts, err := route.NewFetchBlock(0, "posts", "posts")
	if err != nil {
		t.Fatal(err)
	}
	r.Flow.AddFetch(*fetchPosts)

	ret := route.NewReturnBlock(1)
	ret.Conditions = []route.Condition{{
		Left: intLit("1"), Right: intLit("1"), Operator: route.OpEq, Next: route.NextNone,
	}}
	if err := ret.AddPair(route.ObjectPair{ID: "message", Data: route.Lit("early", route.TypeString)}); err != nil {
		t.Fatal(err)
	}
	r.Flow.AddReturn(*ret)

	fetchComments, err := route.NewFetchBlock(2, "comments", "comments")
	if err != nil {
		t.Fatal(err)
	}
	r.Flow.AddFetch(*fetchComments)

	res, store, err := testInterpreter(src).Execute(context.Background(), r, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != 200 {
		t.Errorf("status: %d", res.Status)
	}
	obj, ok := res.Value.Structured.(map[string]any)
	if !ok || obj["message"] != "early" {
		t.Errorf("return value: %v", res.Value.Value())
	}
	if src.fetches["comments"] != 0 {
		t.Error("the fetch after RETURN must never run")
	}
	if !store.Has("posts") {
		t.Error("posts should be defined")
	}
	if store.Has("comments") {
		t.Error("comments must not be defined")
	}
}

func TestPropertyBlockNamedReturnTerminates(t *testing.T) {
	r := testRoute(t)
	prop, err := route.NewPropertyBlock(0, "RETURN", route.Lit("done", route.TypeString), route.ApplyNone)
	if err != nil {
		t.Fatal(err)
	}
	r.Flow.AddProperty(*prop)

	res, _, err := testInterpreter(newFakeSource()).Execute(context.Background(), r, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Value.Str != "done" {
		t.Errorf("property RETURN value: %v", res.Value.Value())
	}
}

func TestLoopBreakLeavesLastAssignment(t *testing.T) {
	r := testRoute(t)

	loop, err := route.NewLoopBlock(0, "i", intLit("0"), intLit("5"))
	if err != nil {
		t.Fatal(err)
	}
	r.Flow.AddLoop(*loop)

	// Break when i == 2: the guard fires on a false condition list,
	// so the test is negated.
	cond, err := route.NewConditionBlock(1, route.ActionBreak)
	if err != nil {
		t.Fatal(err)
	}
	cond.Conditions = []route.Condition{{
		Left:     route.Ref("i", route.TypeInteger),
		Right:    intLit("2"),
		Operator: route.OpEq,
		Not:      true,
		Next:     route.NextNone,
	}}
	r.Flow.AddCondition(*cond)

	assign, err := route.NewAssignmentBlock(2, "out")
	if err != nil {
		t.Fatal(err)
	}
	assign.Operations = []route.Operation{{
		Left:     route.Ref("i", route.TypeInteger),
		Right:    intLit("0"),
		Operator: route.OpAdd,
		Next:     route.NextNone,
	}}
	r.Flow.AddAssignment(*assign)

	res, store, err := testInterpreter(newFakeSource()).Execute(context.Background(), r, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != 200 {
		t.Errorf("status: %d", res.Status)
	}

	out, err := store.Get("out", 100)
	if err != nil {
		t.Fatal(err)
	}
	if out.Int != 1 {
		t.Errorf("expected out == 1 after breaking at i == 2, got %v", out.Value())
	}
}

func TestLoopZeroIterationsWhenBoundsEqual(t *testing.T) {
	r := testRoute(t)
	loop, err := route.NewLoopBlock(0, "i", intLit("3"), intLit("3"))
	if err != nil {
		t.Fatal(err)
	}
	r.Flow.AddLoop(*loop)

	assign, err := route.NewAssignmentBlock(1, "out")
	if err != nil {
		t.Fatal(err)
	}
	assign.Operations = []route.Operation{{
		Left: intLit("9"), Right: intLit("0"), Operator: route.OpAdd, Next: route.NextNone,
	}}
	r.Flow.AddAssignment(*assign)

	_, store, err := testInterpreter(newFakeSource()).Execute(context.Background(), r, nil)
	if err != nil {
		t.Fatal(err)
	}
	if store.Has("out") {
		t.Error("loop body must not run when bounds are equal on entry")
	}
	if i, err := store.Get("i", 100); err != nil || i.Int != 3 {
		t.Errorf("counter should hold its start value, got %v %v", i.Value(), err)
	}
}

func TestLoopCapOverflowIsInternal(t *testing.T) {
	r := testRoute(t)
	loop, err := route.NewLoopBlock(0, "i", intLit("0"), intLit("100"))
	if err != nil {
		t.Fatal(err)
	}
	r.Flow.AddLoop(*loop)

	it := testInterpreter(newFakeSource())
	it.SetLoopCap(3)
	_, _, err = it.Execute(context.Background(), r, nil)
	if !apierror.IsKind(err, apierror.Internal) {
		t.Errorf("cap overflow should be an internal error, got %v", err)
	}
}

func TestConditionSkipJumpsBlocks(t *testing.T) {
	r := testRoute(t)

	cond, err := route.NewConditionBlock(0, route.ActionSkip)
	if err != nil {
		t.Fatal(err)
	}
	cond.Skip = 1
	cond.Conditions = []route.Condition{{
		Left: intLit("1"), Right: intLit("2"), Operator: route.OpEq, Next: route.NextNone,
	}}
	r.Flow.AddCondition(*cond)

	skipped, err := route.NewAssignmentBlock(1, "skipped")
	if err != nil {
		t.Fatal(err)
	}
	skipped.Operations = []route.Operation{{
		Left: intLit("1"), Right: intLit("0"), Operator: route.OpAdd, Next: route.NextNone,
	}}
	r.Flow.AddAssignment(*skipped)

	kept, err := route.NewAssignmentBlock(2, "kept")
	if err != nil {
		t.Fatal(err)
	}
	kept.Operations = []route.Operation{{
		Left: intLit("2"), Right: intLit("0"), Operator: route.OpAdd, Next: route.NextNone,
	}}
	r.Flow.AddAssignment(*kept)

	_, store, err := testInterpreter(newFakeSource()).Execute(context.Background(), r, nil)
	if err != nil {
		t.Fatal(err)
	}
	if store.Has("skipped") {
		t.Error("the block after a failed SKIP condition must not run")
	}
	if !store.Has("kept") {
		t.Error("the block past the skip window should run")
	}
}

func TestConditionFailTerminates(t *testing.T) {
	r := testRoute(t)
	cond, err := route.NewConditionBlock(0, route.ActionFail)
	if err != nil {
		t.Fatal(err)
	}
	cond.Conditions = []route.Condition{{
		Left: intLit("1"), Right: intLit("2"), Operator: route.OpEq, Next: route.NextNone,
	}}
	if err := cond.SetFail(403, "not allowed"); err != nil {
		t.Fatal(err)
	}
	r.Flow.AddCondition(*cond)

	res, _, err := testInterpreter(newFakeSource()).Execute(context.Background(), r, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != 403 || res.Value.Str != "not allowed" {
		t.Errorf("fail outcome: %d %v", res.Status, res.Value.Value())
	}
}

func TestFilterNarrowsSequence(t *testing.T) {
	src := newFakeSource()
	src.collections["posts"] = []map[string]any{
		{"id": "p1", "published": true},
		{"id": "p2", "published": false},
		{"id": "p3", "published": true},
	}

	r := testRoute(t)
	fetch, err := route.NewFetchBlock(0, "posts", "posts")
	if err != nil {
		t.Fatal(err)
	}
	r.Flow.AddFetch(*fetch)

	filter, err := route.NewFilterBlock(1, "visible", "posts")
	if err != nil {
		t.Fatal(err)
	}
	if err := filter.AddFilter(route.Filter{
		RefProperty: "published",
		Right:       route.Lit("true", route.TypeBoolean),
		Operator:    route.OpEq,
		Next:        route.NextNone,
	}); err != nil {
		t.Fatal(err)
	}
	r.Flow.AddFilter(*filter)

	_, store, err := testInterpreter(src).Execute(context.Background(), r, nil)
	if err != nil {
		t.Fatal(err)
	}
	v, err := store.Get("visible", 100)
	if err != nil {
		t.Fatal(err)
	}
	seq := v.Structured.([]any)
	if len(seq) != 2 {
		t.Fatalf("expected 2 published posts, got %d", len(seq))
	}
}

func TestUpdateAddsAndPersists(t *testing.T) {
	src := newFakeSource()
	src.collections["posts"] = []map[string]any{{"id": "p1", "views": 7}}

	r := testRoute(t)
	upd, err := route.NewUpdateBlock(0, "posts", "views", true)
	if err != nil {
		t.Fatal(err)
	}
	upd.Add = intLit("1")
	r.Flow.AddUpdate(*upd)

	if _, _, err := testInterpreter(src).Execute(context.Background(), r, nil); err != nil {
		t.Fatal(err)
	}
	if len(src.updated) != 1 || !src.updateSaved {
		t.Fatalf("expected one persisted update, got %d saved=%v", len(src.updated), src.updateSaved)
	}
	if got := src.updated[0]["views"]; got != int64(8) {
		t.Errorf("views should be incremented to 8, got %v", got)
	}
}

func TestCreateAppendsObject(t *testing.T) {
	r := testRoute(t)

	obj, err := route.NewObjectBlock(0, "draft")
	if err != nil {
		t.Fatal(err)
	}
	if err := obj.AddPair(route.ObjectPair{ID: "title", Data: route.Lit("hello", route.TypeString)}); err != nil {
		t.Fatal(err)
	}
	r.Flow.AddObject(*obj)

	create, err := route.NewCreateBlock(1, "posts", "draft", true)
	if err != nil {
		t.Fatal(err)
	}
	r.Flow.AddCreate(*create)

	src := newFakeSource()
	if _, _, err := testInterpreter(src).Execute(context.Background(), r, nil); err != nil {
		t.Fatal(err)
	}
	if len(src.created) != 1 || src.created[0]["title"] != "hello" {
		t.Errorf("created records: %v", src.created)
	}
}

func TestTemplateInterpolation(t *testing.T) {
	r := testRoute(t)
	tmpl, err := route.NewTemplateBlock(0, "greeting", "Hello, {name}!")
	if err != nil {
		t.Fatal(err)
	}
	tmpl.Data = []route.RefData{route.Ref("name", route.TypeString)}
	r.Flow.AddTemplate(*tmpl)

	inputs := map[string]DefinitionData{"name": String("ada")}
	_, store, err := testInterpreter(newFakeSource()).Execute(context.Background(), r, inputs)
	if err != nil {
		t.Fatal(err)
	}
	v, err := store.Get("greeting", 100)
	if err != nil {
		t.Fatal(err)
	}
	if v.Str != "Hello, ada!" {
		t.Errorf("template output: %q", v.Str)
	}
}

func TestFunctionBlockBindsResult(t *testing.T) {
	r := testRoute(t)
	fn, err := route.NewFunctionBlock(0, "upper", "UPPERCASE")
	if err != nil {
		t.Fatal(err)
	}
	fn.Params = []route.RefData{route.Lit("abc", route.TypeString)}
	r.Flow.AddFunction(*fn)

	_, store, err := testInterpreter(newFakeSource()).Execute(context.Background(), r, nil)
	if err != nil {
		t.Fatal(err)
	}
	v, err := store.Get("upper", 100)
	if err != nil {
		t.Fatal(err)
	}
	if v.Str != "ABC" {
		t.Errorf("function result: %q", v.Str)
	}
}

func TestPropertyProjections(t *testing.T) {
	src := newFakeSource()
	src.collections["posts"] = []map[string]any{
		{"id": "p1", "title": "first"},
		{"id": "p2", "title": "second"},
	}

	r := testRoute(t)
	fetch, err := route.NewFetchBlock(0, "posts", "posts")
	if err != nil {
		t.Fatal(err)
	}
	r.Flow.AddFetch(*fetch)

	count, err := route.NewPropertyBlock(1, "count", route.Ref("posts", route.TypeOther), route.ApplyLength)
	if err != nil {
		t.Fatal(err)
	}
	r.Flow.AddProperty(*count)

	last, err := route.NewPropertyBlock(2, "last", route.Ref("posts", route.TypeOther), route.ApplyGetLast)
	if err != nil {
		t.Fatal(err)
	}
	r.Flow.AddProperty(*last)

	title, err := route.NewPropertyBlock(3, "title", route.Ref("last", route.TypeOther), route.ApplyGetProperty)
	if err != nil {
		t.Fatal(err)
	}
	if err := title.SetAdditional("title"); err != nil {
		t.Fatal(err)
	}
	r.Flow.AddProperty(*title)

	_, store, err := testInterpreter(src).Execute(context.Background(), r, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := store.Get("count", 100); v.Int != 2 {
		t.Errorf("LENGTH projection: %v", v.Value())
	}
	if v, _ := store.Get("title", 100); v.Str != "second" {
		t.Errorf("GET_PROPERTY projection: %v", v.Value())
	}
}

func TestFailBlockTerminates(t *testing.T) {
	r := testRoute(t)
	fail, err := route.NewFailBlock(0, 500, "boom")
	if err != nil {
		t.Fatal(err)
	}
	r.Flow.AddFail(*fail)

	assign, err := route.NewAssignmentBlock(1, "after")
	if err != nil {
		t.Fatal(err)
	}
	r.Flow.AddAssignment(*assign)

	res, store, err := testInterpreter(newFakeSource()).Execute(context.Background(), r, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != 500 || res.Value.Str != "boom" {
		t.Errorf("fail outcome: %d %v", res.Status, res.Value.Value())
	}
	if store.Has("after") {
		t.Error("blocks after FAIL must not run")
	}
}

func TestCancelledContextAborts(t *testing.T) {
	r := testRoute(t)
	assign, err := route.NewAssignmentBlock(0, "x")
	if err != nil {
		t.Fatal(err)
	}
	r.Flow.AddAssignment(*assign)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := testInterpreter(newFakeSource()).Execute(ctx, r, nil); !apierror.IsKind(err, apierror.Internal) {
		t.Errorf("cancelled request should abort with an internal error, got %v", err)
	}
}
