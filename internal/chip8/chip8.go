// Package chip8 implements the CHIP-8 virtual machine core: memory, register
// file, stack, display buffer, timers and the fetch/decode/execute cycle.
//
// Follows the CHIP-8 technical reference found at http://devernay.free.fr/hacks/chip8/C8TECH10.HTM
package chip8

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/retroenv/retrogolib/log"
)

// CHIP-8 VM constants
const (
	totalMemory    = 0x1000
	ProgramStart   = 0x200
	maxProgramSize = totalMemory - ProgramStart

	ScreenWidth  = 64
	ScreenHeight = 32

	stackDepth = 16
)

// Fatal execution errors. These indicate a malformed ROM driving the machine
// outside its addressable state; the driver loop should stop on any of them
// rather than continue with corrupted state.
var (
	ErrFetchOutOfRange = errors.New("program counter outside addressable memory")
	ErrStackOverflow   = errors.New("call stack overflow")
	ErrStackUnderflow  = errors.New("call stack underflow")
	ErrMemOutOfRange   = errors.New("memory access outside addressable memory")
)

// VM is an emulated CHIP-8 virtual machine
type VM struct {
	opcode     uint16             // 16-bit opcode of the current instruction
	regV       [16]uint8          // 16 general purpose 8-bit registers, V[0xF] doubles as the carry/borrow/collision flag
	regI       uint16             // 16-bit register that is generally used to store memory addresses
	delayTimer uint8              // Delay timer
	soundTimer uint8              // Sound timer
	pc         uint16             // Program counter
	sp         uint8              // Stack pointer
	stack      [stackDepth]uint16 // A stack of 16 16-bit values
	memory     [totalMemory]uint8 // 4 KB global memory

	// 64 px x 32 px display, one byte per pixel, row-major
	pixels   [ScreenWidth * ScreenHeight]uint8
	drawFlag bool // set whenever the display buffer changed

	// pressed/released state of the hexadecimal keypad, refreshed by the
	// front-end once per frame
	keypad [16]bool

	// key-wait micro-state: while waitingKey is set the pc is parked on the
	// Fx0A instruction and Step only polls the keypad
	waitingKey bool
	waitingReg uint8

	rng    *rand.Rand
	logger *log.Logger
}

// New creates a new instance of an emulated CHIP-8 VM with the font table
// pre-seeded and all other state zeroed. The logger carries unknown-opcode
// diagnostics.
func New(logger *log.Logger) *VM {
	vm := &VM{
		pc:     ProgramStart,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: logger,
	}
	copy(vm.memory[fontStart:], fontset)
	return vm
}

// LoadROM copies a CHIP-8 program into memory at 0x200 and resets the
// program counter. Programs larger than the available space are truncated.
func (vm *VM) LoadROM(data []byte) {
	if len(data) > maxProgramSize {
		vm.logger.Warn("ROM exceeds program space, truncating",
			log.Int("size", len(data)),
			log.Int("max", maxProgramSize))
		data = data[:maxProgramSize]
	}
	copy(vm.memory[ProgramStart:], data)
	vm.pc = ProgramStart
}

// Step executes exactly one fetch/decode/execute cycle. While the machine is
// waiting on a key press it only polls the keypad, leaving the program
// counter parked on the key-wait instruction. A key held when the key-wait
// instruction executes is picked up on the following Step, one cycle later
// than interpreters that scan the keypad within the same cycle.
func (vm *VM) Step() error {
	if vm.waitingKey {
		vm.pollWaitingKey()
		return nil
	}

	opcode, err := vm.fetch()
	if err != nil {
		return err
	}
	return vm.execute(opcode)
}

// fetch reads the big-endian instruction word at the program counter and
// advances it past the instruction.
func (vm *VM) fetch() (uint16, error) {
	if int(vm.pc)+1 >= totalMemory {
		return 0, fmt.Errorf("%w: pc %#04x", ErrFetchOutOfRange, vm.pc)
	}
	opcode := uint16(vm.memory[vm.pc])<<8 | uint16(vm.memory[vm.pc+1])
	vm.pc += 2
	vm.opcode = opcode
	return opcode, nil
}

// pollWaitingKey scans key indices 1 through 15 for the first pressed key.
// Index 0 is excluded, matching the original interpreter. On a hit the key
// index is stored in the destination register and the pc advances past the
// key-wait instruction.
func (vm *VM) pollWaitingKey() {
	for i := uint8(1); i <= 0xF; i++ {
		if vm.keypad[i] {
			vm.regV[vm.waitingReg] = i
			vm.waitingKey = false
			vm.pc += 2
			return
		}
	}
}

// TickTimers decrements the delay and sound timers toward zero. It is meant
// to be called once per frame (60 Hz) by the driver loop, independent of how
// many instruction cycles run per frame.
func (vm *VM) TickTimers() {
	if vm.delayTimer > 0 {
		vm.delayTimer--
	}
	if vm.soundTimer > 0 {
		vm.soundTimer--
	}
}

// SetKey marks a single keypad key as pressed or released.
func (vm *VM) SetKey(key uint8, pressed bool) {
	if key < 16 {
		vm.keypad[key] = pressed
	}
}

// SetKeys replaces the whole keypad state at once.
func (vm *VM) SetKeys(keys [16]bool) {
	vm.keypad = keys
}

// Pixels returns the display buffer: 64x32 cells, one byte each, 0 or 1,
// row-major.
func (vm *VM) Pixels() [ScreenWidth * ScreenHeight]uint8 {
	return vm.pixels
}

// DrawFlag reports whether the display buffer changed since the flag was
// last cleared.
func (vm *VM) DrawFlag() bool {
	return vm.drawFlag
}

// ClearDrawFlag is called by the renderer after it consumed the buffer.
func (vm *VM) ClearDrawFlag() {
	vm.drawFlag = false
}

// Sound reports whether the sound timer is running; the audio collaborator
// gates a continuous tone on it.
func (vm *VM) Sound() bool {
	return vm.soundTimer > 0
}

// PC returns the current program counter.
func (vm *VM) PC() uint16 {
	return vm.pc
}

// Opcode returns the most recently fetched instruction word.
func (vm *VM) Opcode() uint16 {
	return vm.opcode
}
