package flow

// SignalKind enumerates the interpreter's control-flow envelope.
type SignalKind int

const (
	SignalNone SignalKind = iota
	SignalBreak
	SignalContinue
	SignalReturn
	SignalFail
)

func (k SignalKind) String() string {
	switch k {
	case SignalNone:
		return "NONE"
	case SignalBreak:
		return "BREAK"
	case SignalContinue:
		return "CONTINUE"
	case SignalReturn:
		return "RETURN"
	case SignalFail:
		return "FAIL"
	}
	return "UNKNOWN"
}

// Signal is the value a block evaluation hands back to the walker.
// The walker inspects it; nothing here is ever raised as a panic.
type Signal struct {
	Kind    SignalKind
	Value   DefinitionData
	Status  int
	Message string
}

func None() Signal  { return Signal{Kind: SignalNone} }
func Break() Signal { return Signal{Kind: SignalBreak} }

func Continue() Signal { return Signal{Kind: SignalContinue} }

func Return(value DefinitionData) Signal {
	return Signal{Kind: SignalReturn, Value: value}
}

func Fail(status int, message string) Signal {
	return Signal{Kind: SignalFail, Status: status, Message: message}
}
