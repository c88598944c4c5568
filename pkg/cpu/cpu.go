package cpu

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	OpHLT   uint8 = 0x00 // Exit {code}: halt with imm as exit status
	OpNOP   uint8 = 0x01
	OpMOVI  uint8 = 0x02 // reg <- imm
	OpLOAD  uint8 = 0x03 // reg <- mem32[imm]
	OpSTORE uint8 = 0x04 // mem32[imm] <- reg
	OpCMPI  uint8 = 0x05 // Z <- reg == imm
	OpJMP   uint8 = 0x06
	OpJE    uint8 = 0x07
	OpJNE   uint8 = 0x08
	OpSYS   uint8 = 0x09 // call a library routine, imm selects it
)

// Library routines reachable through OpSYS.
const (
	SysReadInt uint32 = iota + 1
	SysWriteInt
	SysWriteString
	SysWriteChar
	SysCrlf
)

// Register numbers follow the x86 encoding order.
const (
	RegEAX uint8 = 0
	RegECX uint8 = 1
	RegEDX uint8 = 2
	RegEBX uint8 = 3
)

// InstrSize is the encoded width of every instruction:
// opcode, register, two reserved bytes, then a little-endian 32-bit immediate.
const InstrSize = 8

// DefaultMemory is the address space given to a program unless it needs more.
const DefaultMemory = 64 * 1024

var (
	ErrStepLimit = errors.New("step limit exceeded")
	ErrBadInput  = errors.New("ReadInt: input is not an integer")
)

// Fault is a runtime error tied to the instruction that raised it.
type Fault struct {
	PC  uint32
	Err error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("fault at 0x%04X: %v", f.PC, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

type CPU struct {
	Regs [8]uint32

	PC uint32
	Z  bool

	Memory []byte

	Halted   bool
	ExitCode int

	// Steps counts executed instructions. Run stops with ErrStepLimit once it
	// reaches MaxSteps; zero means unlimited.
	Steps    int
	MaxSteps int

	// Output receives everything the Write* routines print.
	// If nil, os.Stdout is used.
	Output io.Writer
	// Input feeds ReadInt. If nil, os.Stdin is used.
	Input io.Reader

	in *bufio.Reader
}

// NewCPU creates a CPU with memSize bytes of zeroed memory.
func NewCPU(memSize int) *CPU {
	if memSize <= 0 {
		memSize = DefaultMemory
	}
	return &CPU{Memory: make([]byte, memSize)}
}

func (c *CPU) outputSink() io.Writer {
	if c.Output != nil {
		return c.Output
	}
	return os.Stdout
}

func (c *CPU) inputSource() *bufio.Reader {
	if c.in == nil {
		src := c.Input
		if src == nil {
			src = os.Stdin
		}
		c.in = bufio.NewReader(src)
	}
	return c.in
}

// Load copies image to address 0 and sets the entry point.
func (c *CPU) Load(image []byte, entry uint32) error {
	if len(image) > len(c.Memory) {
		return fmt.Errorf("image of %d bytes does not fit in %d bytes of memory", len(image), len(c.Memory))
	}
	copy(c.Memory, image)
	c.PC = entry
	c.Halted = false
	return nil
}

func (c *CPU) reg(idx uint8) *uint32 {
	if int(idx) < len(c.Regs) {
		return &c.Regs[idx]
	}
	return &c.Regs[0]
}

func (c *CPU) bounds(addr uint32, n int) error {
	if uint64(addr)+uint64(n) > uint64(len(c.Memory)) {
		return fmt.Errorf("address 0x%X out of range", addr)
	}
	return nil
}

// Read32 reads a little-endian uint32 at addr.
func (c *CPU) Read32(addr uint32) (uint32, error) {
	if err := c.bounds(addr, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(c.Memory[addr:]), nil
}

// Write32 writes a little-endian uint32 at addr.
func (c *CPU) Write32(addr uint32, val uint32) error {
	if err := c.bounds(addr, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(c.Memory[addr:], val)
	return nil
}

// ReadStringFromRAM reads a NUL-terminated string starting at ptr.
func (c *CPU) ReadStringFromRAM(ptr uint32) (string, error) {
	for end := ptr; ; end++ {
		if err := c.bounds(end, 1); err != nil {
			return "", fmt.Errorf("unterminated string at 0x%X", ptr)
		}
		if c.Memory[end] == 0 {
			return string(c.Memory[ptr:end]), nil
		}
	}
}

// Step executes one instruction.
func (c *CPU) Step() error {
	if c.Halted {
		return nil
	}
	pc := c.PC
	if err := c.bounds(pc, InstrSize); err != nil {
		return &Fault{PC: pc, Err: err}
	}
	op, regIdx, imm := DecodeInstruction(c.Memory[pc : pc+InstrSize])
	c.PC += InstrSize
	c.Steps++

	if err := c.exec(op, regIdx, imm); err != nil {
		c.Halted = true
		return &Fault{PC: pc, Err: err}
	}
	return nil
}

func (c *CPU) exec(op, regIdx uint8, imm uint32) error {
	switch op {
	case OpHLT:
		c.Halted = true
		c.ExitCode = int(int32(imm))

	case OpNOP:

	case OpMOVI:
		*c.reg(regIdx) = imm

	case OpLOAD:
		v, err := c.Read32(imm)
		if err != nil {
			return err
		}
		*c.reg(regIdx) = v

	case OpSTORE:
		return c.Write32(imm, *c.reg(regIdx))

	case OpCMPI:
		c.Z = *c.reg(regIdx) == imm

	case OpJMP:
		c.PC = imm

	case OpJE:
		if c.Z {
			c.PC = imm
		}

	case OpJNE:
		if !c.Z {
			c.PC = imm
		}

	case OpSYS:
		return c.syscall(imm)

	default:
		return fmt.Errorf("illegal opcode 0x%02X", op)
	}
	return nil
}

func (c *CPU) syscall(n uint32) error {
	out := c.outputSink()
	var err error
	switch n {
	case SysReadInt:
		var v int32
		if _, scanErr := fmt.Fscan(c.inputSource(), &v); scanErr != nil {
			return fmt.Errorf("%w: %v", ErrBadInput, scanErr)
		}
		c.Regs[RegEAX] = uint32(v)

	case SysWriteInt:
		_, err = fmt.Fprintf(out, "%+d", int32(c.Regs[RegEAX]))

	case SysWriteString:
		s, serr := c.ReadStringFromRAM(c.Regs[RegEDX])
		if serr != nil {
			return serr
		}
		_, err = io.WriteString(out, s)

	case SysWriteChar:
		_, err = out.Write([]byte{byte(c.Regs[RegEAX])})

	case SysCrlf:
		_, err = io.WriteString(out, "\r\n")

	default:
		return fmt.Errorf("unknown library routine %d", n)
	}
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// Run executes until the program halts, faults or exceeds MaxSteps.
func (c *CPU) Run() error {
	for !c.Halted {
		if c.MaxSteps > 0 && c.Steps >= c.MaxSteps {
			return &Fault{PC: c.PC, Err: ErrStepLimit}
		}
		if err := c.Step(); err != nil {
			return err
		}
	}
	return nil
}

// EncodeInstruction packs one instruction into its InstrSize-byte form.
func EncodeInstruction(opcode, reg uint8, imm uint32) []byte {
	b := make([]byte, InstrSize)
	b[0] = opcode
	b[1] = reg & 0x07
	binary.LittleEndian.PutUint32(b[4:], imm)
	return b
}

// DecodeInstruction is the inverse of EncodeInstruction.
func DecodeInstruction(b []byte) (opcode, reg uint8, imm uint32) {
	return b[0], b[1] & 0x07, binary.LittleEndian.Uint32(b[4:])
}
