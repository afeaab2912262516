package bytecode

import "fmt"

// Opcode identifies a bytecode instruction.
type Opcode uint8

const (
	OpNop Opcode = iota
	OpDebugger

	OpLdai
	OpFldai
	OpLdaStr
	OpLdUndefined
	OpLdNull
	OpLdTrue
	OpLdFalse
	OpLdNaN
	OpLdInfinity
	OpLdHole
	OpLdThis
	OpLdFunction
	OpLdNewTarget

	OpLda
	OpSta
	OpMov

	OpAdd2
	OpSub2
	OpMul2
	OpDiv2
	OpMod2
	OpLess
	OpGreater
	OpEq
	OpStrictEq

	OpInc
	OpDec
	OpNeg
	OpNot
	OpTypeof
	OpIsTrue
	OpIsFalse

	OpCallArg0
	OpCallArg1
	OpCallArgs2
	OpCallThis1

	OpLdObjByName
	OpStObjByName
	OpTryLdGlobalByName
	OpStGlobalVar
	OpLdThisByName
	OpStThisByName

	OpNewLexEnv
	OpLdLexVar
	OpStLexVar

	OpCreateEmptyObject
	OpCreateEmptyArray

	OpJmp
	OpJeqz
	OpJnez
	OpReturn
	OpReturnUndefined
	OpThrow

	OpCreateGeneratorObj
	OpSuspendGenerator
	OpResumeGenerator
	OpGetResumeMode

	opCount
)

// Kind classifies an instruction for control-flow and SSA purposes.
type Kind uint8

const (
	KindGeneral Kind = iota
	KindJump
	KindCondJump
	KindReturn
	KindThrow
	KindMov
	KindSetConstant
	KindSuspend
	KindResume
	KindDiscarded
)

var kindNames = [...]string{
	KindGeneral:     "general",
	KindJump:        "jump",
	KindCondJump:    "cond_jump",
	KindReturn:      "return",
	KindThrow:       "throw",
	KindMov:         "mov",
	KindSetConstant: "set_constant",
	KindSuspend:     "suspend",
	KindResume:      "resume",
	KindDiscarded:   "discarded",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Field is one encoded operand slot of an instruction.
type Field uint8

const (
	FieldReg    Field = iota + 1 // virtual register, 1 byte
	FieldImm                     // signed immediate, 4 bytes
	FieldFloat                   // float64 bits, 8 bytes
	FieldString                  // constant pool string id, 2 bytes
	FieldIC                      // inline cache slot, 1 byte
	FieldOffset                  // relative jump offset in bytes, 4 bytes
)

func (f Field) size() uint32 {
	switch f {
	case FieldReg, FieldIC:
		return 1
	case FieldString:
		return 2
	case FieldImm, FieldOffset:
		return 4
	case FieldFloat:
		return 8
	}
	return 0
}

type opInfo struct {
	name   string
	kind   Kind
	fields []Field
	accIn  bool
	accOut bool
	thisIn bool
	envIn  bool
	envOut bool
}

var (
	fReg    = []Field{FieldReg}
	fRegReg = []Field{FieldReg, FieldReg}
	fImm    = []Field{FieldImm}
	fImmImm = []Field{FieldImm, FieldImm}
	fFloat  = []Field{FieldFloat}
	fStr    = []Field{FieldString}
	fICStr  = []Field{FieldIC, FieldString}
	fICStrR = []Field{FieldIC, FieldString, FieldReg}
	fIC     = []Field{FieldIC}
	fICReg  = []Field{FieldIC, FieldReg}
	fICRegR = []Field{FieldIC, FieldReg, FieldReg}
	fOffset = []Field{FieldOffset}
)

var opTable = [opCount]opInfo{
	OpNop:      {name: "NOP", kind: KindDiscarded},
	OpDebugger: {name: "DEBUGGER", kind: KindDiscarded},

	OpLdai:        {name: "LDAI", kind: KindSetConstant, fields: fImm, accOut: true},
	OpFldai:       {name: "FLDAI", kind: KindSetConstant, fields: fFloat, accOut: true},
	OpLdaStr:      {name: "LDA_STR", kind: KindGeneral, fields: fStr, accOut: true},
	OpLdUndefined: {name: "LDUNDEFINED", kind: KindSetConstant, accOut: true},
	OpLdNull:      {name: "LDNULL", kind: KindSetConstant, accOut: true},
	OpLdTrue:      {name: "LDTRUE", kind: KindSetConstant, accOut: true},
	OpLdFalse:     {name: "LDFALSE", kind: KindSetConstant, accOut: true},
	OpLdNaN:       {name: "LDNAN", kind: KindSetConstant, accOut: true},
	OpLdInfinity:  {name: "LDINFINITY", kind: KindSetConstant, accOut: true},
	OpLdHole:      {name: "LDHOLE", kind: KindSetConstant, accOut: true},
	OpLdThis:      {name: "LDTHIS", kind: KindSetConstant, accOut: true},
	OpLdFunction:  {name: "LDFUNCTION", kind: KindSetConstant, accOut: true},
	OpLdNewTarget: {name: "LDNEWTARGET", kind: KindSetConstant, accOut: true},

	OpLda: {name: "LDA", kind: KindMov, fields: fReg, accOut: true},
	OpSta: {name: "STA", kind: KindMov, fields: fReg, accIn: true},
	OpMov: {name: "MOV", kind: KindMov, fields: fRegReg},

	OpAdd2:     {name: "ADD2", kind: KindGeneral, fields: fICReg, accIn: true, accOut: true},
	OpSub2:     {name: "SUB2", kind: KindGeneral, fields: fICReg, accIn: true, accOut: true},
	OpMul2:     {name: "MUL2", kind: KindGeneral, fields: fICReg, accIn: true, accOut: true},
	OpDiv2:     {name: "DIV2", kind: KindGeneral, fields: fICReg, accIn: true, accOut: true},
	OpMod2:     {name: "MOD2", kind: KindGeneral, fields: fICReg, accIn: true, accOut: true},
	OpLess:     {name: "LESS", kind: KindGeneral, fields: fICReg, accIn: true, accOut: true},
	OpGreater:  {name: "GREATER", kind: KindGeneral, fields: fICReg, accIn: true, accOut: true},
	OpEq:       {name: "EQ", kind: KindGeneral, fields: fICReg, accIn: true, accOut: true},
	OpStrictEq: {name: "STRICTEQ", kind: KindGeneral, fields: fICReg, accIn: true, accOut: true},

	OpInc:     {name: "INC", kind: KindGeneral, fields: fIC, accIn: true, accOut: true},
	OpDec:     {name: "DEC", kind: KindGeneral, fields: fIC, accIn: true, accOut: true},
	OpNeg:     {name: "NEG", kind: KindGeneral, fields: fIC, accIn: true, accOut: true},
	OpNot:     {name: "NOT", kind: KindGeneral, fields: fIC, accIn: true, accOut: true},
	OpTypeof:  {name: "TYPEOF", kind: KindGeneral, fields: fIC, accIn: true, accOut: true},
	OpIsTrue:  {name: "ISTRUE", kind: KindGeneral, accIn: true, accOut: true},
	OpIsFalse: {name: "ISFALSE", kind: KindGeneral, accIn: true, accOut: true},

	OpCallArg0:  {name: "CALLARG0", kind: KindGeneral, fields: fIC, accIn: true, accOut: true},
	OpCallArg1:  {name: "CALLARG1", kind: KindGeneral, fields: fICReg, accIn: true, accOut: true},
	OpCallArgs2: {name: "CALLARGS2", kind: KindGeneral, fields: fICRegR, accIn: true, accOut: true},
	OpCallThis1: {name: "CALLTHIS1", kind: KindGeneral, fields: fICRegR, accIn: true, accOut: true},

	OpLdObjByName:       {name: "LDOBJBYNAME", kind: KindGeneral, fields: fICStr, accIn: true, accOut: true},
	OpStObjByName:       {name: "STOBJBYNAME", kind: KindGeneral, fields: fICStrR, accIn: true},
	OpTryLdGlobalByName: {name: "TRYLDGLOBALBYNAME", kind: KindGeneral, fields: fICStr, accOut: true},
	OpStGlobalVar:       {name: "STGLOBALVAR", kind: KindGeneral, fields: fICStr, accIn: true},
	OpLdThisByName:      {name: "LDTHISBYNAME", kind: KindGeneral, fields: fICStr, thisIn: true, accOut: true},
	OpStThisByName:      {name: "STTHISBYNAME", kind: KindGeneral, fields: fICStr, thisIn: true, accIn: true},

	OpNewLexEnv: {name: "NEWLEXENV", kind: KindGeneral, fields: fImm, envIn: true, envOut: true, accOut: true},
	OpLdLexVar:  {name: "LDLEXVAR", kind: KindGeneral, fields: fImmImm, envIn: true, accOut: true},
	OpStLexVar:  {name: "STLEXVAR", kind: KindGeneral, fields: fImmImm, envIn: true, accIn: true},

	OpCreateEmptyObject: {name: "CREATEEMPTYOBJECT", kind: KindGeneral, accOut: true},
	OpCreateEmptyArray:  {name: "CREATEEMPTYARRAY", kind: KindGeneral, fields: fIC, accOut: true},

	OpJmp:             {name: "JMP", kind: KindJump, fields: fOffset},
	OpJeqz:            {name: "JEQZ", kind: KindCondJump, fields: fOffset, accIn: true},
	OpJnez:            {name: "JNEZ", kind: KindCondJump, fields: fOffset, accIn: true},
	OpReturn:          {name: "RETURN", kind: KindReturn, accIn: true},
	OpReturnUndefined: {name: "RETURNUNDEFINED", kind: KindReturn},
	OpThrow:           {name: "THROW", kind: KindThrow, accIn: true},

	OpCreateGeneratorObj: {name: "CREATEGENERATOROBJ", kind: KindGeneral, fields: fReg, accOut: true},
	OpSuspendGenerator:   {name: "SUSPENDGENERATOR", kind: KindSuspend, fields: fReg, accIn: true},
	OpResumeGenerator:    {name: "RESUMEGENERATOR", kind: KindResume, accIn: true, accOut: true},
	OpGetResumeMode:      {name: "GETRESUMEMODE", kind: KindGeneral, accIn: true, accOut: true},
}

var opByName map[string]Opcode

func init() {
	opByName = make(map[string]Opcode, opCount)
	for op := Opcode(0); op < opCount; op++ {
		opByName[opTable[op].name] = op
	}
}

// Lookup returns the opcode with the given mnemonic.
func Lookup(name string) (Opcode, bool) {
	op, ok := opByName[name]
	return op, ok
}

// Valid reports whether op is a known opcode.
func (op Opcode) Valid() bool {
	return op < opCount
}

func (op Opcode) String() string {
	if op.Valid() {
		return opTable[op].name
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

// Kind returns the control-flow classification of op.
func (op Opcode) Kind() Kind {
	return opTable[op].kind
}

// Fields returns the encoded operand layout of op.
func (op Opcode) Fields() []Field {
	return opTable[op].fields
}

// Size returns the encoded size of op in bytes.
func (op Opcode) Size() uint32 {
	size := uint32(1)
	for _, f := range opTable[op].fields {
		size += f.size()
	}
	return size
}

// IsGeneral reports whether op builds a bytecode gate of its own.
func (k Kind) IsGeneral() bool {
	switch k {
	case KindGeneral, KindThrow, KindSuspend, KindResume:
		return true
	}
	return false
}

// IsJump reports whether k transfers control to a jump target.
func (k Kind) IsJump() bool {
	return k == KindJump || k == KindCondJump
}

// IsTerminator reports whether control never falls through an instruction of kind k.
func (k Kind) IsTerminator() bool {
	return k == KindJump || k == KindReturn || k == KindThrow
}
