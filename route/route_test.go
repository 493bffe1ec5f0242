package route

import (
	"io"
	"log/slog"
	"strings"
	"testing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateRouteComponentUniqueness(t *testing.T) {
	var list []RouteComponent
	if err := CreateRouteComponent(&list, "get_posts", "posts", "konnect"); err != nil {
		t.Fatalf("valid route rejected: %v", err)
	}
	if list[0].RoutePath != "/posts" {
		t.Errorf("path should be normalised with a leading slash, got %q", list[0].RoutePath)
	}

	if err := CreateRouteComponent(&list, "GET_POSTS", "/other", "konnect"); err == nil {
		t.Error("duplicate route id in a project should conflict")
	}
	if err := CreateRouteComponent(&list, "other", "/posts", "konnect"); err == nil {
		t.Error("duplicate route path in a project should conflict")
	}
	if err := CreateRouteComponent(&list, "get_posts", "/posts", "blog"); err != nil {
		t.Errorf("same id in another project should be allowed: %v", err)
	}
}

func TestBodyAndParamPairs(t *testing.T) {
	var list []RouteComponent
	if err := CreateRouteComponent(&list, "r1", "/r1", "konnect"); err != nil {
		t.Fatal(err)
	}
	r := &list[0]

	if err := r.AddBodyPair("title", TypeString); err != nil {
		t.Fatal(err)
	}
	if err := r.AddBodyPair("TITLE", TypeInteger); err == nil {
		t.Error("duplicate body field should conflict")
	}

	p, err := NewParamData("&")
	if err != nil {
		t.Fatal(err)
	}
	if err := p.AddPair("limit", TypeInteger); err != nil {
		t.Fatal(err)
	}
	if err := p.AddPair("limit", TypeString); err == nil {
		t.Error("duplicate param should conflict")
	}
	r.Params = p
}

// sampleRoute builds one route exercising every block kind.
func sampleRoute(t *testing.T) RouteComponent {
	t.Helper()

	var list []RouteComponent
	if err := CreateRouteComponent(&list, "get_posts", "/posts", "konnect"); err != nil {
		t.Fatal(err)
	}
	r := &list[0]

	r.AuthJWT.Active = true
	if err := r.AuthJWT.SetField("uid"); err != nil {
		t.Fatal(err)
	}
	if err := r.AuthJWT.SetRefCol("users"); err != nil {
		t.Fatal(err)
	}
	if err := r.AddBodyPair("title", TypeString); err != nil {
		t.Fatal(err)
	}
	params, err := NewParamData("&")
	if err != nil {
		t.Fatal(err)
	}
	if err := params.AddPair("limit", TypeInteger); err != nil {
		t.Fatal(err)
	}
	r.Params = params

	fetch, err := NewFetchBlock(0, "posts", "posts")
	if err != nil {
		t.Fatal(err)
	}
	r.Flow.AddFetch(*fetch)

	filter, err := NewFilterBlock(1, "published", "posts")
	if err != nil {
		t.Fatal(err)
	}
	if err := filter.AddFilter(Filter{
		RefProperty: "published",
		Right:       Lit("1", TypeBoolean),
		Operator:    OpEq,
		Next:        NextNone,
	}); err != nil {
		t.Fatal(err)
	}
	r.Flow.AddFilter(*filter)

	assign, err := NewAssignmentBlock(2, "out")
	if err != nil {
		t.Fatal(err)
	}
	assign.Operations = []Operation{{
		Left:     Lit("3", TypeInteger),
		Right:    Lit("1.5", TypeFloat),
		Operator: OpAdd,
		Next:     NextNone,
	}}
	r.Flow.AddAssignment(*assign)

	tmpl, err := NewTemplateBlock(3, "greeting", "Hello, {name}. Welcome back!")
	if err != nil {
		t.Fatal(err)
	}
	tmpl.Data = []RefData{Ref("name", TypeString)}
	r.Flow.AddTemplate(*tmpl)

	cond, err := NewConditionBlock(4, ActionFail)
	if err != nil {
		t.Fatal(err)
	}
	cond.Conditions = []Condition{{
		Left:     Ref("role", TypeString),
		Right:    Lit("admin", TypeString),
		Operator: OpEq,
		Next:     NextNone,
	}}
	if err := cond.SetFail(403, "not allowed"); err != nil {
		t.Fatal(err)
	}
	r.Flow.AddCondition(*cond)

	loop, err := NewLoopBlock(5, "i", Lit("0", TypeInteger), Ref("count", TypeInteger))
	if err != nil {
		t.Fatal(err)
	}
	r.Flow.AddLoop(*loop)

	update, err := NewUpdateBlock(6, "posts", "views", true)
	if err != nil {
		t.Fatal(err)
	}
	update.Add = Lit("1", TypeInteger)
	r.Flow.AddUpdate(*update)

	create, err := NewCreateBlock(7, "posts", "draft", false)
	if err != nil {
		t.Fatal(err)
	}
	r.Flow.AddCreate(*create)

	fn, err := NewFunctionBlock(8, "upper", "uppercase")
	if err != nil {
		t.Fatal(err)
	}
	fn.Params = []RefData{Ref("greeting", TypeString)}
	r.Flow.AddFunction(*fn)

	obj, err := NewObjectBlock(9, "draft")
	if err != nil {
		t.Fatal(err)
	}
	if err := obj.AddPair(ObjectPair{ID: "title", Data: Ref("greeting", TypeString)}); err != nil {
		t.Fatal(err)
	}
	r.Flow.AddObject(*obj)

	prop, err := NewPropertyBlock(10, "first", Ref("published", TypeOther), ApplyGetFirst)
	if err != nil {
		t.Fatal(err)
	}
	r.Flow.AddProperty(*prop)

	ret := NewReturnBlock(11)
	if err := ret.AddPair(ObjectPair{ID: "posts", Data: Ref("published", TypeOther)}); err != nil {
		t.Fatal(err)
	}
	r.Flow.AddReturn(*ret)

	fail, err := NewFailBlock(12, 500, "should never happen")
	if err != nil {
		t.Fatal(err)
	}
	r.Flow.AddFail(*fail)

	return *r
}

func TestRouteRoundTrip(t *testing.T) {
	r := sampleRoute(t)
	text := r.String()

	parsed, err := ParseRoute(text, quietLogger())
	if err != nil {
		t.Fatalf("round trip parse failed: %v", err)
	}

	if parsed.RouteID != "get_posts" || parsed.ProjectID != "konnect" || parsed.RoutePath != "/posts" {
		t.Errorf("identity fields mismatch: %+v", parsed)
	}
	if !parsed.AuthJWT.Active || parsed.AuthJWT.Field != "uid" || parsed.AuthJWT.RefCol != "users" {
		t.Errorf("auth mismatch: %+v", parsed.AuthJWT)
	}
	if len(parsed.Body) != 1 || parsed.Body[0].Type != TypeString {
		t.Errorf("body mismatch: %+v", parsed.Body)
	}
	if parsed.Params == nil || parsed.Params.Delimiter != "&" || len(parsed.Params.Pairs) != 1 {
		t.Errorf("params mismatch: %+v", parsed.Params)
	}
	if parsed.Flow.Len() != r.Flow.Len() {
		t.Fatalf("flow block count mismatch: got %d want %d", parsed.Flow.Len(), r.Flow.Len())
	}

	if parsed.Flow.Templates[0].Template != "Hello, {name}. Welcome back!" {
		t.Errorf("template text mangled: %q", parsed.Flow.Templates[0].Template)
	}
	if parsed.Flow.Conditions[0].Fail.Status != 403 || parsed.Flow.Conditions[0].Fail.Message != "not allowed" {
		t.Errorf("condition fail mismatch: %+v", parsed.Flow.Conditions[0].Fail)
	}
	if got := parsed.Flow.Loops[0]; !got.End.RefVar || got.End.Data != "count" {
		t.Errorf("loop end ref mismatch: %+v", got.End)
	}
	if parsed.Flow.Functions[0].Func != "UPPERCASE" {
		t.Errorf("function name should be upper-cased, got %q", parsed.Flow.Functions[0].Func)
	}
	if op := parsed.Flow.Assignments[0].Operations[0]; op.Right.RType != TypeFloat || op.Right.Data != "1.5" {
		t.Errorf("operation ref mismatch: %+v", op)
	}

	// A second render of the parsed route must be byte-stable.
	if again := parsed.String(); again != text {
		t.Errorf("serialisation not stable:\n first: %s\nsecond: %s", text, again)
	}
}

func TestParseRoutesDropsMalformedRoute(t *testing.T) {
	good := sampleRoute(t)
	bad := "INIT ROUTE [konnect,broken,/broken]\nSTART FLOW\nFETCH (0,0) [only_one_arg]\nEND FLOW"

	text := good.String() + "\n" + RouteSeparator + "\n" + bad
	routes := ParseRoutes(text, quietLogger())

	if len(routes) != 1 {
		t.Fatalf("expected the malformed route to be dropped, got %d routes", len(routes))
	}
	if routes[0].RouteID != "get_posts" {
		t.Errorf("surviving route mismatch: %+v", routes[0])
	}
}

func TestParseRouteSkipsUnknownBlock(t *testing.T) {
	text := strings.Join([]string{
		"INIT ROUTE [konnect,r1,/r1]",
		"START FLOW",
		"FETCH (0,0) [posts,posts]",
		"FROBNICATE (1,0) [whatever]",
		"RETURN (2,0) pairs={posts,(1,OTHER,posts)}",
		"END FLOW",
	}, "\n")

	r, err := ParseRoute(text, quietLogger())
	if err != nil {
		t.Fatalf("unknown block kind must not fail the route: %v", err)
	}
	if len(r.Flow.Fetchers) != 1 || len(r.Flow.Returns) != 1 {
		t.Errorf("known blocks around the unknown one should load: %+v", r.Flow)
	}
}

func TestParseRouteWithoutInitFails(t *testing.T) {
	if _, err := ParseRoute("START FLOW\nEND FLOW", quietLogger()); err == nil {
		t.Error("a route without INIT ROUTE must fail to parse")
	}
}

func TestRouteLookupAndDelete(t *testing.T) {
	var list []RouteComponent
	for _, id := range []string{"a", "b"} {
		if err := CreateRouteComponent(&list, id, "/"+id, "konnect"); err != nil {
			t.Fatal(err)
		}
	}

	if !RouteExists(list, "konnect", "A") {
		t.Error("lookup should be case-insensitive")
	}
	if _, err := GetRouteByPath(list, "konnect", "/b"); err != nil {
		t.Errorf("path lookup failed: %v", err)
	}
	if err := DeleteRoute(&list, "konnect", "a"); err != nil {
		t.Fatal(err)
	}
	if RouteExists(list, "konnect", "a") {
		t.Error("deleted route still resolvable")
	}
	if err := DeleteRoute(&list, "konnect", "a"); err == nil {
		t.Error("deleting a missing route should fail")
	}
}
