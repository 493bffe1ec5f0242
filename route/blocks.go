package route

import (
	"strings"

	"github.com/contentforge/forge/constraint"
	"github.com/contentforge/forge/pkg/apierror"
)

// BlockKind names one of the flow block classes.
type BlockKind string

const (
	KindFetch      BlockKind = "FETCH"
	KindFilter     BlockKind = "FILTER"
	KindAssignment BlockKind = "ASSIGN"
	KindTemplate   BlockKind = "TEMPLATE"
	KindCondition  BlockKind = "CONDITION"
	KindLoop       BlockKind = "LOOP"
	KindUpdate     BlockKind = "UPDATE"
	KindCreate     BlockKind = "CREATE"
	KindFunction   BlockKind = "FUNCTION"
	KindObject     BlockKind = "OBJECT"
	KindProperty   BlockKind = "PROPERTY"
	KindReturn     BlockKind = "RETURN"
	KindFail       BlockKind = "FAIL"
)

// Position orders a block inside a flow. GlobalIndex is the block's
// place in the whole program, BlockIndex its place among siblings of
// the same kind.
type Position struct {
	GlobalIndex int
	BlockIndex  int
}

// FetchBlock loads every record of a collection under a local name.
type FetchBlock struct {
	Position
	LocalName string
	RefCol    string
}

// NewFetchBlock validates the names before the block exists.
func NewFetchBlock(global int, localName, refCol string) (*FetchBlock, error) {
	localName, err := constraint.Validate("fetch_block", "local_name", localName)
	if err != nil {
		return nil, err
	}
	refCol, err = constraint.Validate("fetch_block", "ref_col", refCol)
	if err != nil {
		return nil, err
	}
	return &FetchBlock{Position: Position{GlobalIndex: global}, LocalName: localName, RefCol: refCol}, nil
}

// FilterBlock narrows a fetched sequence into a new local name.
type FilterBlock struct {
	Position
	LocalName string
	RefVar    string
	Filters   []Filter
}

func NewFilterBlock(global int, localName, refVar string) (*FilterBlock, error) {
	localName, err := constraint.Validate("filter_block", "local_name", localName)
	if err != nil {
		return nil, err
	}
	refVar, err = constraint.Validate("filter_block", "ref_var", refVar)
	if err != nil {
		return nil, err
	}
	return &FilterBlock{Position: Position{GlobalIndex: global}, LocalName: localName, RefVar: refVar}, nil
}

// AddFilter validates the property name and appends the predicate.
func (b *FilterBlock) AddFilter(f Filter) error {
	prop, err := constraint.Validate("filter_block", "ref_property", f.RefProperty)
	if err != nil {
		return err
	}
	f.RefProperty = prop
	b.Filters = append(b.Filters, f)
	return nil
}

// AssignmentBlock computes a value from conditions plus operations and
// binds it to a local name.
type AssignmentBlock struct {
	Position
	LocalName  string
	Conditions []Condition
	Operations []Operation
}

func NewAssignmentBlock(global int, localName string) (*AssignmentBlock, error) {
	localName, err := constraint.Validate("assignment_block", "local_name", localName)
	if err != nil {
		return nil, err
	}
	return &AssignmentBlock{Position: Position{GlobalIndex: global}, LocalName: localName}, nil
}

// TemplateBlock interpolates `{name}` placeholders into a text.
type TemplateBlock struct {
	Position
	LocalName  string
	Template   string
	Data       []RefData
	Conditions []Condition
}

func NewTemplateBlock(global int, localName, template string) (*TemplateBlock, error) {
	localName, err := constraint.Validate("template_block", "local_name", localName)
	if err != nil {
		return nil, err
	}
	template, err = constraint.Validate("template_block", "template", template)
	if err != nil {
		return nil, err
	}
	return &TemplateBlock{Position: Position{GlobalIndex: global}, LocalName: localName, Template: template}, nil
}

// ConditionAction says what a CONDITION block does when its condition
// list resolves to false.
type ConditionAction string

const (
	ActionFail     ConditionAction = "FAIL"
	ActionBreak    ConditionAction = "BREAK"
	ActionContinue ConditionAction = "CONTINUE"
	ActionSkip     ConditionAction = "SKIP"
)

// ConditionBlock guards the flow: when the conditions fail, the
// declared action fires.
type ConditionBlock struct {
	Position
	Conditions []Condition
	Action     ConditionAction
	Skip       int
	Fail       FailDef
}

func NewConditionBlock(global int, action ConditionAction) (*ConditionBlock, error) {
	switch action {
	case ActionFail, ActionBreak, ActionContinue, ActionSkip:
	default:
		return nil, apierror.BadInputf("Error: unknown condition action %q", string(action))
	}
	return &ConditionBlock{Position: Position{GlobalIndex: global}, Action: action}, nil
}

// SetFail validates and attaches the error raised by ActionFail.
func (b *ConditionBlock) SetFail(status int, message string) error {
	if status < 100 || status > 599 {
		return apierror.BadInputf("Error: fail status %d out of range", status)
	}
	message, err := constraint.Validate("condition_block", "fail_message", message)
	if err != nil {
		return err
	}
	b.Fail = FailDef{Status: status, Message: message}
	return nil
}

// LoopBlock binds a counter to a local name and walks it from the
// resolved start to the resolved end, one step per iteration. Equal
// bounds run zero iterations.
type LoopBlock struct {
	Position
	LocalName string
	Start     RefData
	End       RefData
}

func NewLoopBlock(global int, localName string, start, end RefData) (*LoopBlock, error) {
	localName, err := constraint.Validate("loop_block", "local_name", localName)
	if err != nil {
		return nil, err
	}
	return &LoopBlock{Position: Position{GlobalIndex: global}, LocalName: localName, Start: start, End: end}, nil
}

// UpdateBlock rewrites one property of a fetched sequence, optionally
// narrowed by filters, and marks whether the result is persisted.
type UpdateBlock struct {
	Position
	RefCol      string
	RefProperty string
	Save        bool
	Filters     []Filter
	Add         RefData
	Set         RefData
	Conditions  []Condition
}

func NewUpdateBlock(global int, refCol, refProperty string, save bool) (*UpdateBlock, error) {
	refCol, err := constraint.Validate("update_block", "ref_col", refCol)
	if err != nil {
		return nil, err
	}
	refProperty, err = constraint.Validate("update_block", "ref_property", refProperty)
	if err != nil {
		return nil, err
	}
	return &UpdateBlock{Position: Position{GlobalIndex: global}, RefCol: refCol, RefProperty: refProperty, Save: save}, nil
}

func (b *UpdateBlock) AddFilter(f Filter) error {
	prop, err := constraint.Validate("update_block", "ref_property", f.RefProperty)
	if err != nil {
		return err
	}
	f.RefProperty = prop
	b.Filters = append(b.Filters, f)
	return nil
}

// CreateBlock appends a local object as a new record of a collection.
type CreateBlock struct {
	Position
	RefCol     string
	RefObject  string
	Save       bool
	Conditions []Condition
}

func NewCreateBlock(global int, refCol, refObject string, save bool) (*CreateBlock, error) {
	refCol, err := constraint.Validate("create_block", "ref_col", refCol)
	if err != nil {
		return nil, err
	}
	refObject, err = constraint.Validate("create_block", "ref_object", refObject)
	if err != nil {
		return nil, err
	}
	return &CreateBlock{Position: Position{GlobalIndex: global}, RefCol: refCol, RefObject: refObject, Save: save}, nil
}

// FunctionBlock calls a named built-in and binds the result.
type FunctionBlock struct {
	Position
	LocalName string
	Func      string
	Params    []RefData
}

func NewFunctionBlock(global int, localName, fn string) (*FunctionBlock, error) {
	localName, err := constraint.Validate("function_block", "local_name", localName)
	if err != nil {
		return nil, err
	}
	fn, err = constraint.Validate("function_block", "func", strings.ToUpper(fn))
	if err != nil {
		return nil, err
	}
	return &FunctionBlock{Position: Position{GlobalIndex: global}, LocalName: localName, Func: fn}, nil
}

// ObjectBlock assembles keyed pairs into a local object.
type ObjectBlock struct {
	Position
	LocalName string
	Pairs     []ObjectPair
}

func NewObjectBlock(global int, localName string) (*ObjectBlock, error) {
	localName, err := constraint.Validate("object_block", "local_name", localName)
	if err != nil {
		return nil, err
	}
	return &ObjectBlock{Position: Position{GlobalIndex: global}, LocalName: localName}, nil
}

func (b *ObjectBlock) AddPair(p ObjectPair) error {
	id, err := constraint.Validate("object_block", "local_name", p.ID)
	if err != nil {
		return err
	}
	p.ID = id
	b.Pairs = append(b.Pairs, p)
	return nil
}

// PropertyApply is the projection a PROPERTY block performs on its
// resolved source value.
type PropertyApply string

const (
	ApplyNone        PropertyApply = ""
	ApplyLength      PropertyApply = "LENGTH"
	ApplyGetFirst    PropertyApply = "GET_FIRST"
	ApplyGetLast     PropertyApply = "GET_LAST"
	ApplyGetIndex    PropertyApply = "GET_INDEX"
	ApplyGetProperty PropertyApply = "GET_PROPERTY"
)

// PropertyBlock projects one value out of a resolved source. A block
// whose LocalName is RETURN ends the flow with the projected value.
type PropertyBlock struct {
	Position
	LocalName      string
	Data           RefData
	Apply          PropertyApply
	AdditionalData string
}

func NewPropertyBlock(global int, localName string, data RefData, apply PropertyApply) (*PropertyBlock, error) {
	localName, err := constraint.Validate("property_block", "local_name", localName)
	if err != nil {
		return nil, err
	}
	switch apply {
	case ApplyNone, ApplyLength, ApplyGetFirst, ApplyGetLast, ApplyGetIndex, ApplyGetProperty:
	default:
		return nil, apierror.BadInputf("Error: unknown property apply %q", string(apply))
	}
	return &PropertyBlock{Position: Position{GlobalIndex: global}, LocalName: localName, Data: data, Apply: apply}, nil
}

// SetAdditional validates the extra argument of GET_INDEX and
// GET_PROPERTY projections.
func (b *PropertyBlock) SetAdditional(additional string) error {
	additional, err := constraint.Validate("property_block", "additional", additional)
	if err != nil {
		return err
	}
	b.AdditionalData = additional
	return nil
}

// ReturnBlock ends the flow with an object built from its pairs,
// guarded by optional conditions.
type ReturnBlock struct {
	Position
	Pairs      []ObjectPair
	Conditions []Condition
}

func NewReturnBlock(global int) *ReturnBlock {
	return &ReturnBlock{Position: Position{GlobalIndex: global}}
}

func (b *ReturnBlock) AddPair(p ObjectPair) error {
	id, err := constraint.Validate("return_block", "pair_id", p.ID)
	if err != nil {
		return err
	}
	p.ID = id
	b.Pairs = append(b.Pairs, p)
	return nil
}

// FailBlock ends the flow with an error status unconditionally.
type FailBlock struct {
	Position
	Status  int
	Message string
}

func NewFailBlock(global, status int, message string) (*FailBlock, error) {
	if status < 100 || status > 599 {
		return nil, apierror.BadInputf("Error: fail status %d out of range", status)
	}
	message, err := constraint.Validate("fail_block", "message", message)
	if err != nil {
		return nil, err
	}
	return &FailBlock{Position: Position{GlobalIndex: global}, Status: status, Message: message}, nil
}

// RouteFlow holds the blocks of one route grouped by kind. BlockIndex
// is assigned on append; GlobalIndex orders the whole program.
type RouteFlow struct {
	Fetchers    []FetchBlock
	Filters     []FilterBlock
	Assignments []AssignmentBlock
	Templates   []TemplateBlock
	Conditions  []ConditionBlock
	Loops       []LoopBlock
	Updates     []UpdateBlock
	Creates     []CreateBlock
	Functions   []FunctionBlock
	Objects     []ObjectBlock
	Properties  []PropertyBlock
	Returns     []ReturnBlock
	Fails       []FailBlock
}

func (f *RouteFlow) AddFetch(b FetchBlock) {
	b.BlockIndex = len(f.Fetchers)
	f.Fetchers = append(f.Fetchers, b)
}

func (f *RouteFlow) AddFilter(b FilterBlock) {
	b.BlockIndex = len(f.Filters)
	f.Filters = append(f.Filters, b)
}

func (f *RouteFlow) AddAssignment(b AssignmentBlock) {
	b.BlockIndex = len(f.Assignments)
	f.Assignments = append(f.Assignments, b)
}

func (f *RouteFlow) AddTemplate(b TemplateBlock) {
	b.BlockIndex = len(f.Templates)
	f.Templates = append(f.Templates, b)
}

func (f *RouteFlow) AddCondition(b ConditionBlock) {
	b.BlockIndex = len(f.Conditions)
	f.Conditions = append(f.Conditions, b)
}

func (f *RouteFlow) AddLoop(b LoopBlock) {
	b.BlockIndex = len(f.Loops)
	f.Loops = append(f.Loops, b)
}

func (f *RouteFlow) AddUpdate(b UpdateBlock) {
	b.BlockIndex = len(f.Updates)
	f.Updates = append(f.Updates, b)
}

func (f *RouteFlow) AddCreate(b CreateBlock) {
	b.BlockIndex = len(f.Creates)
	f.Creates = append(f.Creates, b)
}

func (f *RouteFlow) AddFunction(b FunctionBlock) {
	b.BlockIndex = len(f.Functions)
	f.Functions = append(f.Functions, b)
}

func (f *RouteFlow) AddObject(b ObjectBlock) {
	b.BlockIndex = len(f.Objects)
	f.Objects = append(f.Objects, b)
}

func (f *RouteFlow) AddProperty(b PropertyBlock) {
	b.BlockIndex = len(f.Properties)
	f.Properties = append(f.Properties, b)
}

func (f *RouteFlow) AddReturn(b ReturnBlock) {
	b.BlockIndex = len(f.Returns)
	f.Returns = append(f.Returns, b)
}

func (f *RouteFlow) AddFail(b FailBlock) {
	b.BlockIndex = len(f.Fails)
	f.Fails = append(f.Fails, b)
}

// Len counts the blocks of every kind.
func (f *RouteFlow) Len() int {
	return len(f.Fetchers) + len(f.Filters) + len(f.Assignments) +
		len(f.Templates) + len(f.Conditions) + len(f.Loops) +
		len(f.Updates) + len(f.Creates) + len(f.Functions) +
		len(f.Objects) + len(f.Properties) + len(f.Returns) + len(f.Fails)
}
