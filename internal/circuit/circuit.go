// Package circuit holds the minimal circuit representation the
// placement pipeline consumes: an ordered instruction stream with qubit
// arguments, classical-bit arguments, and optional classical conditions.
package circuit

import "fmt"

// Operation names used by the analysis. Gates added through the builder
// helpers use these constants; anything else is treated as an opaque
// operation.
const (
	OpMeasure = "measure"
	OpBarrier = "barrier"
)

// DefaultRegister is the classical register implicitly covering all
// clbits of a circuit, mirroring the usual single-register layout of
// generated circuits.
const DefaultRegister = "c"

// ConditionKind discriminates the two supported condition forms.
type ConditionKind int

const (
	// ConditionBit conditions on a single classical bit.
	ConditionBit ConditionKind = iota
	// ConditionRegister conditions on a whole classical register.
	ConditionRegister
)

// Condition attaches a classical control to an instruction. Value is
// the compared register or bit value; the placement analysis only cares
// about which measurements feed the condition, not the value itself.
type Condition struct {
	Kind     ConditionKind
	Bit      int
	Register string
	Value    int
}

// Instruction is one operation in the stream.
type Instruction struct {
	Name      string
	Qubits    []int
	Clbits    []int
	Condition *Condition
}

// Conditioned reports whether the instruction carries a classical
// condition.
func (in Instruction) Conditioned() bool { return in.Condition != nil }

// Circuit is an ordered instruction stream over numQubits qubits and
// numClbits classical bits. The zero value is not usable; construct via
// New. Circuits are built once and must not be mutated after a
// Properties has been derived from them.
type Circuit struct {
	numQubits    int
	numClbits    int
	registers    map[string][]int
	instructions []Instruction
}

// New creates an empty circuit. All clbits are grouped into the default
// register "c" so register conditions work without further setup.
func New(numQubits, numClbits int) *Circuit {
	c := &Circuit{
		numQubits: numQubits,
		numClbits: numClbits,
		registers: make(map[string][]int, 1),
	}
	if numClbits > 0 {
		bits := make([]int, numClbits)
		for i := range bits {
			bits[i] = i
		}
		c.registers[DefaultRegister] = bits
	}
	return c
}

// NumQubits returns the number of qubits the circuit addresses.
func (c *Circuit) NumQubits() int { return c.numQubits }

// NumClbits returns the number of classical bits the circuit addresses.
func (c *Circuit) NumClbits() int { return c.numClbits }

// Instructions returns the instruction stream in program order. Callers
// must not modify the returned slice.
func (c *Circuit) Instructions() []Instruction { return c.instructions }

// Register returns the clbit indices grouped under name.
func (c *Circuit) Register(name string) ([]int, bool) {
	bits, ok := c.registers[name]
	return bits, ok
}

// AddRegister groups the given clbit indices under a named register so
// instructions can condition on the register as a whole.
func (c *Circuit) AddRegister(name string, bits ...int) *Circuit {
	c.registers[name] = append([]int(nil), bits...)
	return c
}

// Append adds a raw instruction to the stream.
func (c *Circuit) Append(inst Instruction) *Circuit {
	c.instructions = append(c.instructions, inst)
	return c
}

// Gate appends a named gate on the given qubits.
func (c *Circuit) Gate(name string, qubits ...int) *Circuit {
	return c.Append(Instruction{Name: name, Qubits: qubits})
}

// H appends a Hadamard gate.
func (c *Circuit) H(q int) *Circuit { return c.Gate("h", q) }

// X appends a Pauli-X gate.
func (c *Circuit) X(q int) *Circuit { return c.Gate("x", q) }

// CX appends a controlled-X gate.
func (c *Circuit) CX(control, target int) *Circuit {
	return c.Gate("cx", control, target)
}

// Swap appends a SWAP gate.
func (c *Circuit) Swap(a, b int) *Circuit { return c.Gate("swap", a, b) }

// Barrier appends a barrier over the given qubits.
func (c *Circuit) Barrier(qubits ...int) *Circuit {
	return c.Append(Instruction{Name: OpBarrier, Qubits: qubits})
}

// Measure appends a measurement of qubit into clbit.
func (c *Circuit) Measure(qubit, clbit int) *Circuit {
	return c.Append(Instruction{Name: OpMeasure, Qubits: []int{qubit}, Clbits: []int{clbit}})
}

// CIf conditions the most recently appended instruction on a single
// classical bit. Panics when no instruction has been appended yet.
func (c *Circuit) CIf(bit, value int) *Circuit {
	last := c.last()
	last.Condition = &Condition{Kind: ConditionBit, Bit: bit, Value: value}
	return c
}

// CIfRegister conditions the most recently appended instruction on a
// classical register. Panics when no instruction has been appended yet.
func (c *Circuit) CIfRegister(register string, value int) *Circuit {
	last := c.last()
	last.Condition = &Condition{Kind: ConditionRegister, Register: register, Value: value}
	return c
}

func (c *Circuit) last() *Instruction {
	if len(c.instructions) == 0 {
		panic(fmt.Sprintf("circuit: conditioning with no preceding instruction (qubits=%d)", c.numQubits))
	}
	return &c.instructions[len(c.instructions)-1]
}
