package route

import (
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/contentforge/forge/pkg/apierror"
)

// RouteSeparator divides routes inside one project file.
const RouteSeparator = "=============== DEFINE ROUTE ==============="

// escapeText makes a free-text field safe for the line format: no
// spaces, brackets, commas or parens survive the encoding.
func escapeText(s string) string {
	return url.QueryEscape(s)
}

func unescapeText(s string) (string, error) {
	out, err := url.QueryUnescape(s)
	if err != nil {
		return "", apierror.BadInputf("Error: malformed escaped text %q", s)
	}
	return out, nil
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// splitTop splits on sep at bracket depth zero so encoded values with
// nested parens, braces or brackets stay intact.
func splitTop(s string, sep rune) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(', '{', '[':
			depth++
		case ')', '}', ']':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + len(string(sep))
			}
		}
	}
	return append(parts, s[start:])
}

// --- value encodings ---

func encodeRefData(r RefData) string {
	return fmt.Sprintf("(%s,%s,%s)", boolDigit(r.RefVar), r.RType, escapeText(r.Data))
}

func decodeRefData(s string) (RefData, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return RefData{}, apierror.BadInputf("Error: malformed ref data %q", s)
	}
	parts := splitTop(s[1:len(s)-1], ',')
	if len(parts) != 3 {
		return RefData{}, apierror.BadInputf("Error: malformed ref data %q", s)
	}
	data, err := unescapeText(parts[2])
	if err != nil {
		return RefData{}, err
	}
	return RefData{
		RefVar: parts[0] == "1",
		RType:  ParseBodyDataType(parts[1]),
		Data:   data,
	}, nil
}

func encodeCondition(c Condition) string {
	return fmt.Sprintf("{%s,%s,%s,%s,%s}",
		encodeRefData(c.Left), c.Operator, encodeRefData(c.Right),
		boolDigit(c.Not), c.Next)
}

func decodeCondition(s string) (Condition, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return Condition{}, apierror.BadInputf("Error: malformed condition %q", s)
	}
	parts := splitTop(s[1:len(s)-1], ',')
	if len(parts) != 5 {
		return Condition{}, apierror.BadInputf("Error: malformed condition %q", s)
	}
	left, err := decodeRefData(parts[0])
	if err != nil {
		return Condition{}, err
	}
	right, err := decodeRefData(parts[2])
	if err != nil {
		return Condition{}, err
	}
	return Condition{
		Left:     left,
		Operator: ConditionOperator(parts[1]),
		Right:    right,
		Not:      parts[3] == "1",
		Next:     NextType(parts[4]),
	}, nil
}

func encodeOperation(o Operation) string {
	return fmt.Sprintf("{%s,%s,%s,%s}",
		encodeRefData(o.Left), o.Operator, encodeRefData(o.Right), o.Next)
}

func decodeOperation(s string) (Operation, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return Operation{}, apierror.BadInputf("Error: malformed operation %q", s)
	}
	parts := splitTop(s[1:len(s)-1], ',')
	if len(parts) != 4 {
		return Operation{}, apierror.BadInputf("Error: malformed operation %q", s)
	}
	left, err := decodeRefData(parts[0])
	if err != nil {
		return Operation{}, err
	}
	right, err := decodeRefData(parts[2])
	if err != nil {
		return Operation{}, err
	}
	return Operation{
		Left:     left,
		Operator: OperationType(parts[1]),
		Right:    right,
		Next:     NextType(parts[3]),
	}, nil
}

func encodeFilter(f Filter) string {
	return fmt.Sprintf("{%s,%s,%s,%s,%s}",
		escapeText(f.RefProperty), f.Operator, encodeRefData(f.Right),
		boolDigit(f.Not), f.Next)
}

func decodeFilter(s string) (Filter, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return Filter{}, apierror.BadInputf("Error: malformed filter %q", s)
	}
	parts := splitTop(s[1:len(s)-1], ',')
	if len(parts) != 5 {
		return Filter{}, apierror.BadInputf("Error: malformed filter %q", s)
	}
	prop, err := unescapeText(parts[0])
	if err != nil {
		return Filter{}, err
	}
	right, err := decodeRefData(parts[2])
	if err != nil {
		return Filter{}, err
	}
	return Filter{
		RefProperty: prop,
		Operator:    ConditionOperator(parts[1]),
		Right:       right,
		Not:         parts[3] == "1",
		Next:        NextType(parts[4]),
	}, nil
}

func encodeObjectPair(p ObjectPair) string {
	return fmt.Sprintf("{%s,%s}", escapeText(p.ID), encodeRefData(p.Data))
}

func decodeObjectPair(s string) (ObjectPair, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return ObjectPair{}, apierror.BadInputf("Error: malformed pair %q", s)
	}
	parts := splitTop(s[1:len(s)-1], ',')
	if len(parts) != 2 {
		return ObjectPair{}, apierror.BadInputf("Error: malformed pair %q", s)
	}
	id, err := unescapeText(parts[0])
	if err != nil {
		return ObjectPair{}, err
	}
	data, err := decodeRefData(parts[1])
	if err != nil {
		return ObjectPair{}, err
	}
	return ObjectPair{ID: id, Data: data}, nil
}

func encodeConditions(cs []Condition) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = encodeCondition(c)
	}
	return strings.Join(parts, " ")
}

// --- route serialisation ---

// String renders the route in its line-oriented file form, blocks
// ordered by global index.
func (r *RouteComponent) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "INIT ROUTE [%s,%s,%s]\n",
		escapeText(r.ProjectID), escapeText(r.RouteID), escapeText(r.RoutePath))
	if r.AuthJWT.Active || r.AuthJWT.Field != "" {
		fmt.Fprintf(&b, "DEFINE auth_jwt [%s,%s,%s]\n",
			boolDigit(r.AuthJWT.Active), escapeText(r.AuthJWT.Field), escapeText(r.AuthJWT.RefCol))
	}
	for _, pair := range r.Body {
		fmt.Fprintf(&b, "ADD BODY pair [%s,%s]\n", escapeText(pair.ID), pair.Type)
	}
	if r.Params != nil {
		fmt.Fprintf(&b, "DEFINE PARAMS [%s]\n", escapeText(r.Params.Delimiter))
		for _, pair := range r.Params.Pairs {
			fmt.Fprintf(&b, "ADD PARAMS pair [%s,%s]\n", escapeText(pair.ID), pair.Type)
		}
	}

	b.WriteString("START FLOW\n")
	for _, line := range r.flowLines() {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString("END FLOW")
	return b.String()
}

type indexedLine struct {
	global int
	text   string
}

func (r *RouteComponent) flowLines() []string {
	var lines []indexedLine
	add := func(global int, text string) {
		lines = append(lines, indexedLine{global, text})
	}

	for _, blk := range r.Flow.Fetchers {
		add(blk.GlobalIndex, fmt.Sprintf("FETCH (%d,%d) [%s,%s]",
			blk.GlobalIndex, blk.BlockIndex, escapeText(blk.LocalName), escapeText(blk.RefCol)))
	}
	for _, blk := range r.Flow.Filters {
		line := fmt.Sprintf("FILTER (%d,%d) [%s,%s]",
			blk.GlobalIndex, blk.BlockIndex, escapeText(blk.LocalName), escapeText(blk.RefVar))
		if len(blk.Filters) > 0 {
			parts := make([]string, len(blk.Filters))
			for i, f := range blk.Filters {
				parts[i] = encodeFilter(f)
			}
			line += " filters=" + strings.Join(parts, " ")
		}
		add(blk.GlobalIndex, line)
	}
	for _, blk := range r.Flow.Assignments {
		line := fmt.Sprintf("ASSIGN (%d,%d) [%s]",
			blk.GlobalIndex, blk.BlockIndex, escapeText(blk.LocalName))
		if len(blk.Conditions) > 0 {
			line += " conditions=" + encodeConditions(blk.Conditions)
		}
		if len(blk.Operations) > 0 {
			parts := make([]string, len(blk.Operations))
			for i, o := range blk.Operations {
				parts[i] = encodeOperation(o)
			}
			line += " operations=" + strings.Join(parts, " ")
		}
		add(blk.GlobalIndex, line)
	}
	for _, blk := range r.Flow.Templates {
		line := fmt.Sprintf("TEMPLATE (%d,%d) [%s,%s]",
			blk.GlobalIndex, blk.BlockIndex, escapeText(blk.LocalName), escapeText(blk.Template))
		if len(blk.Data) > 0 {
			parts := make([]string, len(blk.Data))
			for i, d := range blk.Data {
				parts[i] = encodeRefData(d)
			}
			line += " data=" + strings.Join(parts, " ")
		}
		if len(blk.Conditions) > 0 {
			line += " conditions=" + encodeConditions(blk.Conditions)
		}
		add(blk.GlobalIndex, line)
	}
	for _, blk := range r.Flow.Conditions {
		line := fmt.Sprintf("CONDITION (%d,%d) [%s,%d]",
			blk.GlobalIndex, blk.BlockIndex, blk.Action, blk.Skip)
		if len(blk.Conditions) > 0 {
			line += " conditions=" + encodeConditions(blk.Conditions)
		}
		if blk.Action == ActionFail {
			line += fmt.Sprintf(" fail=[%d,%s]", blk.Fail.Status, escapeText(blk.Fail.Message))
		}
		add(blk.GlobalIndex, line)
	}
	for _, blk := range r.Flow.Loops {
		add(blk.GlobalIndex, fmt.Sprintf("LOOP (%d,%d) [%s] start=%s end=%s",
			blk.GlobalIndex, blk.BlockIndex, escapeText(blk.LocalName),
			encodeRefData(blk.Start), encodeRefData(blk.End)))
	}
	for _, blk := range r.Flow.Updates {
		line := fmt.Sprintf("UPDATE (%d,%d) [%s,%s,%s]",
			blk.GlobalIndex, blk.BlockIndex, escapeText(blk.RefCol),
			escapeText(blk.RefProperty), boolDigit(blk.Save))
		if len(blk.Filters) > 0 {
			parts := make([]string, len(blk.Filters))
			for i, f := range blk.Filters {
				parts[i] = encodeFilter(f)
			}
			line += " filters=" + strings.Join(parts, " ")
		}
		if blk.Add.Data != "" || blk.Add.RefVar {
			line += " add=" + encodeRefData(blk.Add)
		}
		if blk.Set.Data != "" || blk.Set.RefVar {
			line += " set=" + encodeRefData(blk.Set)
		}
		if len(blk.Conditions) > 0 {
			line += " conditions=" + encodeConditions(blk.Conditions)
		}
		add(blk.GlobalIndex, line)
	}
	for _, blk := range r.Flow.Creates {
		line := fmt.Sprintf("CREATE (%d,%d) [%s,%s,%s]",
			blk.GlobalIndex, blk.BlockIndex, escapeText(blk.RefCol),
			escapeText(blk.RefObject), boolDigit(blk.Save))
		if len(blk.Conditions) > 0 {
			line += " conditions=" + encodeConditions(blk.Conditions)
		}
		add(blk.GlobalIndex, line)
	}
	for _, blk := range r.Flow.Functions {
		line := fmt.Sprintf("FUNCTION (%d,%d) [%s,%s]",
			blk.GlobalIndex, blk.BlockIndex, escapeText(blk.LocalName), escapeText(blk.Func))
		if len(blk.Params) > 0 {
			parts := make([]string, len(blk.Params))
			for i, p := range blk.Params {
				parts[i] = encodeRefData(p)
			}
			line += " params=" + strings.Join(parts, " ")
		}
		add(blk.GlobalIndex, line)
	}
	for _, blk := range r.Flow.Objects {
		line := fmt.Sprintf("OBJECT (%d,%d) [%s]",
			blk.GlobalIndex, blk.BlockIndex, escapeText(blk.LocalName))
		if len(blk.Pairs) > 0 {
			parts := make([]string, len(blk.Pairs))
			for i, p := range blk.Pairs {
				parts[i] = encodeObjectPair(p)
			}
			line += " pairs=" + strings.Join(parts, " ")
		}
		add(blk.GlobalIndex, line)
	}
	for _, blk := range r.Flow.Properties {
		apply := string(blk.Apply)
		if apply == "" {
			apply = "NONE"
		}
		add(blk.GlobalIndex, fmt.Sprintf("PROPERTY (%d,%d) [%s,%s,%s] data=%s",
			blk.GlobalIndex, blk.BlockIndex, escapeText(blk.LocalName), apply,
			escapeText(blk.AdditionalData), encodeRefData(blk.Data)))
	}
	for _, blk := range r.Flow.Returns {
		line := fmt.Sprintf("RETURN (%d,%d)", blk.GlobalIndex, blk.BlockIndex)
		if len(blk.Pairs) > 0 {
			parts := make([]string, len(blk.Pairs))
			for i, p := range blk.Pairs {
				parts[i] = encodeObjectPair(p)
			}
			line += " pairs=" + strings.Join(parts, " ")
		}
		if len(blk.Conditions) > 0 {
			line += " conditions=" + encodeConditions(blk.Conditions)
		}
		add(blk.GlobalIndex, line)
	}
	for _, blk := range r.Flow.Fails {
		add(blk.GlobalIndex, fmt.Sprintf("FAIL (%d,%d) [%d,%s]",
			blk.GlobalIndex, blk.BlockIndex, blk.Status, escapeText(blk.Message)))
	}

	sort.SliceStable(lines, func(i, j int) bool { return lines[i].global < lines[j].global })
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.text
	}
	return out
}

// RoutesToText renders a project's routes as one file.
func RoutesToText(list []RouteComponent) string {
	parts := make([]string, len(list))
	for i := range list {
		parts[i] = list[i].String()
	}
	return strings.Join(parts, "\n"+RouteSeparator+"\n")
}

// --- route parsing ---

// parsedLine is one tokenised flow line: the kind, the two indices,
// the bracketed arguments, and the named groups that follow them.
type parsedLine struct {
	kind   string
	global int
	block  int
	args   []string
	groups map[string][]string
}

func parseLine(raw string) (*parsedLine, error) {
	tokens := strings.Fields(raw)
	if len(tokens) < 2 {
		return nil, apierror.BadInputf("Error: malformed flow line %q", raw)
	}
	pl := &parsedLine{kind: tokens[0], groups: map[string][]string{}}

	idx := strings.TrimSuffix(strings.TrimPrefix(tokens[1], "("), ")")
	idxParts := strings.Split(idx, ",")
	if len(idxParts) != 2 {
		return nil, apierror.BadInputf("Error: malformed block indices in %q", raw)
	}
	var err error
	if pl.global, err = strconv.Atoi(idxParts[0]); err != nil {
		return nil, apierror.BadInputf("Error: malformed global index in %q", raw)
	}
	if pl.block, err = strconv.Atoi(idxParts[1]); err != nil {
		return nil, apierror.BadInputf("Error: malformed block index in %q", raw)
	}

	current := ""
	for _, tok := range tokens[2:] {
		switch {
		case strings.HasPrefix(tok, "[") && strings.HasSuffix(tok, "]"):
			pl.args = splitTop(tok[1:len(tok)-1], ',')
		case strings.Contains(tok, "=") && !strings.HasPrefix(tok, "{") && !strings.HasPrefix(tok, "("):
			name, value, _ := strings.Cut(tok, "=")
			current = name
			if value != "" {
				pl.groups[current] = append(pl.groups[current], value)
			}
		case current != "":
			pl.groups[current] = append(pl.groups[current], tok)
		default:
			return nil, apierror.BadInputf("Error: unexpected token %q in %q", tok, raw)
		}
	}
	return pl, nil
}

func (pl *parsedLine) arg(i int) (string, error) {
	if i >= len(pl.args) {
		return "", apierror.BadInputf("Error: %s block missing argument %d", pl.kind, i)
	}
	return unescapeText(pl.args[i])
}

func (pl *parsedLine) conditions() ([]Condition, error) {
	var out []Condition
	for _, raw := range pl.groups["conditions"] {
		c, err := decodeCondition(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (pl *parsedLine) filters() ([]Filter, error) {
	var out []Filter
	for _, raw := range pl.groups["filters"] {
		f, err := decodeFilter(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (pl *parsedLine) refGroup(name string) ([]RefData, error) {
	var out []RefData
	for _, raw := range pl.groups[name] {
		r, err := decodeRefData(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (pl *parsedLine) singleRef(name string) (RefData, bool, error) {
	group := pl.groups[name]
	if len(group) == 0 {
		return RefData{}, false, nil
	}
	r, err := decodeRefData(group[0])
	return r, true, err
}

func (pl *parsedLine) pairs() ([]ObjectPair, error) {
	var out []ObjectPair
	for _, raw := range pl.groups["pairs"] {
		p, err := decodeObjectPair(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ParseRoute reads one route's text. A malformed block fails the whole
// route; unknown block kinds are logged and skipped.
func ParseRoute(text string, logger *slog.Logger) (RouteComponent, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var r RouteComponent
	inFlow := false
	sawInit := false

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "INIT ROUTE "):
			args, err := headerArgs(line, 3)
			if err != nil {
				return RouteComponent{}, err
			}
			r.ProjectID, r.RouteID, r.RoutePath = args[0], args[1], args[2]
			sawInit = true

		case strings.HasPrefix(line, "DEFINE auth_jwt "):
			args, err := headerArgs(line, 3)
			if err != nil {
				return RouteComponent{}, err
			}
			r.AuthJWT = AuthJWT{Active: args[0] == "1", Field: args[1], RefCol: args[2]}

		case strings.HasPrefix(line, "ADD BODY pair "):
			args, err := headerArgs(line, 2)
			if err != nil {
				return RouteComponent{}, err
			}
			r.Body = append(r.Body, BodyData{ID: args[0], Type: ParseBodyDataType(args[1])})

		case strings.HasPrefix(line, "DEFINE PARAMS "):
			args, err := headerArgs(line, 1)
			if err != nil {
				return RouteComponent{}, err
			}
			r.Params = &ParamData{Delimiter: args[0]}

		case strings.HasPrefix(line, "ADD PARAMS pair "):
			args, err := headerArgs(line, 2)
			if err != nil {
				return RouteComponent{}, err
			}
			if r.Params == nil {
				return RouteComponent{}, apierror.BadInputf("Error: params pair before DEFINE PARAMS")
			}
			r.Params.Pairs = append(r.Params.Pairs, BodyData{ID: args[0], Type: ParseBodyDataType(args[1])})

		case line == "START FLOW":
			inFlow = true

		case line == "END FLOW":
			inFlow = false

		case inFlow:
			if err := parseFlowLine(&r.Flow, line, logger); err != nil {
				return RouteComponent{}, err
			}

		default:
			logger.Warn("skipping unknown route line", "line", line)
		}
	}

	if !sawInit {
		return RouteComponent{}, apierror.BadInputf("Error: route text missing INIT ROUTE header")
	}
	return r, nil
}

// headerArgs extracts and unescapes the [a,b,c] argument list of a
// header line.
func headerArgs(line string, want int) ([]string, error) {
	open := strings.Index(line, "[")
	end := strings.LastIndex(line, "]")
	if open < 0 || end < open {
		return nil, apierror.BadInputf("Error: malformed header %q", line)
	}
	parts := splitTop(line[open+1:end], ',')
	if len(parts) != want {
		return nil, apierror.BadInputf("Error: header %q wants %d arguments", line, want)
	}
	out := make([]string, want)
	for i, p := range parts {
		v, err := unescapeText(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseFlowLine(flow *RouteFlow, line string, logger *slog.Logger) error {
	pl, err := parseLine(line)
	if err != nil {
		return err
	}

	switch pl.kind {
	case string(KindFetch):
		local, err := pl.arg(0)
		if err != nil {
			return err
		}
		refCol, err := pl.arg(1)
		if err != nil {
			return err
		}
		blk, err := NewFetchBlock(pl.global, local, refCol)
		if err != nil {
			return err
		}
		flow.AddFetch(*blk)
		flow.Fetchers[len(flow.Fetchers)-1].BlockIndex = pl.block

	case string(KindFilter):
		local, err := pl.arg(0)
		if err != nil {
			return err
		}
		refVar, err := pl.arg(1)
		if err != nil {
			return err
		}
		blk, err := NewFilterBlock(pl.global, local, refVar)
		if err != nil {
			return err
		}
		fs, err := pl.filters()
		if err != nil {
			return err
		}
		for _, f := range fs {
			if err := blk.AddFilter(f); err != nil {
				return err
			}
		}
		flow.AddFilter(*blk)
		flow.Filters[len(flow.Filters)-1].BlockIndex = pl.block

	case string(KindAssignment):
		local, err := pl.arg(0)
		if err != nil {
			return err
		}
		blk, err := NewAssignmentBlock(pl.global, local)
		if err != nil {
			return err
		}
		if blk.Conditions, err = pl.conditions(); err != nil {
			return err
		}
		for _, raw := range pl.groups["operations"] {
			o, err := decodeOperation(raw)
			if err != nil {
				return err
			}
			blk.Operations = append(blk.Operations, o)
		}
		flow.AddAssignment(*blk)
		flow.Assignments[len(flow.Assignments)-1].BlockIndex = pl.block

	case string(KindTemplate):
		local, err := pl.arg(0)
		if err != nil {
			return err
		}
		template, err := pl.arg(1)
		if err != nil {
			return err
		}
		blk, err := NewTemplateBlock(pl.global, local, template)
		if err != nil {
			return err
		}
		if blk.Data, err = pl.refGroup("data"); err != nil {
			return err
		}
		if blk.Conditions, err = pl.conditions(); err != nil {
			return err
		}
		flow.AddTemplate(*blk)
		flow.Templates[len(flow.Templates)-1].BlockIndex = pl.block

	case string(KindCondition):
		action, err := pl.arg(0)
		if err != nil {
			return err
		}
		skipText, err := pl.arg(1)
		if err != nil {
			return err
		}
		blk, err := NewConditionBlock(pl.global, ConditionAction(strings.ToUpper(action)))
		if err != nil {
			return err
		}
		if blk.Skip, err = strconv.Atoi(skipText); err != nil {
			return apierror.BadInputf("Error: malformed skip count %q", skipText)
		}
		if blk.Conditions, err = pl.conditions(); err != nil {
			return err
		}
		if fails := pl.groups["fail"]; len(fails) > 0 {
			status, message, err := decodeFailArg(fails[0])
			if err != nil {
				return err
			}
			if err := blk.SetFail(status, message); err != nil {
				return err
			}
		}
		flow.AddCondition(*blk)
		flow.Conditions[len(flow.Conditions)-1].BlockIndex = pl.block

	case string(KindLoop):
		local, err := pl.arg(0)
		if err != nil {
			return err
		}
		start, ok, err := pl.singleRef("start")
		if err != nil {
			return err
		}
		if !ok {
			return apierror.BadInputf("Error: loop block missing start")
		}
		end, ok, err := pl.singleRef("end")
		if err != nil {
			return err
		}
		if !ok {
			return apierror.BadInputf("Error: loop block missing end")
		}
		blk, err := NewLoopBlock(pl.global, local, start, end)
		if err != nil {
			return err
		}
		flow.AddLoop(*blk)
		flow.Loops[len(flow.Loops)-1].BlockIndex = pl.block

	case string(KindUpdate):
		refCol, err := pl.arg(0)
		if err != nil {
			return err
		}
		refProp, err := pl.arg(1)
		if err != nil {
			return err
		}
		save, err := pl.arg(2)
		if err != nil {
			return err
		}
		blk, err := NewUpdateBlock(pl.global, refCol, refProp, save == "1")
		if err != nil {
			return err
		}
		fs, err := pl.filters()
		if err != nil {
			return err
		}
		for _, f := range fs {
			if err := blk.AddFilter(f); err != nil {
				return err
			}
		}
		if blk.Add, _, err = pl.singleRef("add"); err != nil {
			return err
		}
		if blk.Set, _, err = pl.singleRef("set"); err != nil {
			return err
		}
		if blk.Conditions, err = pl.conditions(); err != nil {
			return err
		}
		flow.AddUpdate(*blk)
		flow.Updates[len(flow.Updates)-1].BlockIndex = pl.block

	case string(KindCreate):
		refCol, err := pl.arg(0)
		if err != nil {
			return err
		}
		refObject, err := pl.arg(1)
		if err != nil {
			return err
		}
		save, err := pl.arg(2)
		if err != nil {
			return err
		}
		blk, err := NewCreateBlock(pl.global, refCol, refObject, save == "1")
		if err != nil {
			return err
		}
		if blk.Conditions, err = pl.conditions(); err != nil {
			return err
		}
		flow.AddCreate(*blk)
		flow.Creates[len(flow.Creates)-1].BlockIndex = pl.block

	case string(KindFunction):
		local, err := pl.arg(0)
		if err != nil {
			return err
		}
		fn, err := pl.arg(1)
		if err != nil {
			return err
		}
		blk, err := NewFunctionBlock(pl.global, local, fn)
		if err != nil {
			return err
		}
		if blk.Params, err = pl.refGroup("params"); err != nil {
			return err
		}
		flow.AddFunction(*blk)
		flow.Functions[len(flow.Functions)-1].BlockIndex = pl.block

	case string(KindObject):
		local, err := pl.arg(0)
		if err != nil {
			return err
		}
		blk, err := NewObjectBlock(pl.global, local)
		if err != nil {
			return err
		}
		ps, err := pl.pairs()
		if err != nil {
			return err
		}
		for _, p := range ps {
			if err := blk.AddPair(p); err != nil {
				return err
			}
		}
		flow.AddObject(*blk)
		flow.Objects[len(flow.Objects)-1].BlockIndex = pl.block

	case string(KindProperty):
		local, err := pl.arg(0)
		if err != nil {
			return err
		}
		applyText, err := pl.arg(1)
		if err != nil {
			return err
		}
		additional, err := pl.arg(2)
		if err != nil {
			return err
		}
		apply := PropertyApply(strings.ToUpper(applyText))
		if apply == "NONE" {
			apply = ApplyNone
		}
		data, ok, err := pl.singleRef("data")
		if err != nil {
			return err
		}
		if !ok {
			return apierror.BadInputf("Error: property block missing data")
		}
		blk, err := NewPropertyBlock(pl.global, local, data, apply)
		if err != nil {
			return err
		}
		if additional != "" {
			if err := blk.SetAdditional(additional); err != nil {
				return err
			}
		}
		flow.AddProperty(*blk)
		flow.Properties[len(flow.Properties)-1].BlockIndex = pl.block

	case string(KindReturn):
		blk := NewReturnBlock(pl.global)
		ps, err := pl.pairs()
		if err != nil {
			return err
		}
		for _, p := range ps {
			if err := blk.AddPair(p); err != nil {
				return err
			}
		}
		if blk.Conditions, err = pl.conditions(); err != nil {
			return err
		}
		flow.AddReturn(*blk)
		flow.Returns[len(flow.Returns)-1].BlockIndex = pl.block

	case string(KindFail):
		if len(pl.args) != 2 {
			return apierror.BadInputf("Error: fail block wants [status,message]")
		}
		status, err := strconv.Atoi(pl.args[0])
		if err != nil {
			return apierror.BadInputf("Error: malformed fail status %q", pl.args[0])
		}
		message, err := unescapeText(pl.args[1])
		if err != nil {
			return err
		}
		blk, err := NewFailBlock(pl.global, status, message)
		if err != nil {
			return err
		}
		flow.AddFail(*blk)
		flow.Fails[len(flow.Fails)-1].BlockIndex = pl.block

	default:
		logger.Warn("skipping unknown flow block", "kind", pl.kind)
	}
	return nil
}

// decodeFailArg reads a [status,message] group value.
func decodeFailArg(s string) (int, string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return 0, "", apierror.BadInputf("Error: malformed fail definition %q", s)
	}
	parts := splitTop(s[1:len(s)-1], ',')
	if len(parts) != 2 {
		return 0, "", apierror.BadInputf("Error: malformed fail definition %q", s)
	}
	status, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, "", apierror.BadInputf("Error: malformed fail status %q", parts[0])
	}
	message, err := unescapeText(parts[1])
	if err != nil {
		return 0, "", err
	}
	return status, message, nil
}

// ParseRoutes reads a project's whole route file. A route that fails
// to parse is logged and dropped; the rest of the file still loads.
func ParseRoutes(text string, logger *slog.Logger) []RouteComponent {
	if logger == nil {
		logger = slog.Default()
	}
	var out []RouteComponent
	for _, chunk := range strings.Split(text, RouteSeparator) {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		r, err := ParseRoute(chunk, logger)
		if err != nil {
			logger.Error("dropping unparseable route", "error", err)
			continue
		}
		out = append(out, r)
	}
	return out
}
