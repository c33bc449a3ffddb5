package chip8

import (
	"fmt"

	"github.com/retroenv/retrogolib/log"
)

// execute decodes the instruction fields and runs the matching handler.
// Dispatch is on the primary nibble, with the sub-discriminators the 0x0,
// 0x5, 0x8, 0x9, 0xE and 0xF families need. An instruction word matching no
// known pattern is logged and skipped; execution continues at the next
// instruction.
func (vm *VM) execute(opcode uint16) error {
	x := uint8((opcode >> 8) & 0x000F) // the lower 4 bits of the high byte of the instruction
	y := uint8((opcode >> 4) & 0x000F) // the upper 4 bits of the low byte of the instruction
	n := uint8(opcode & 0x000F)        // the lowest 4 bits of the instruction
	nn := uint8(opcode & 0x00FF)       // the lowest 8 bits of the instruction
	nnn := uint16(opcode & 0x0FFF)     // the lowest 12 bits of the instruction

	switch opcode & 0xF000 {
	case 0x0000:
		switch nn {
		case 0xE0: // CLS
			vm.clearScreen()
		case 0xEE: // RET
			return vm.returnFromSubroutine()
		default: // SYS addr, a host machine routine on the original hardware; ignored
		}
	case 0x1000: // JP nnn
		vm.pc = nnn
	case 0x2000: // CALL nnn
		return vm.callSubroutine(nnn)
	case 0x3000: // SE Vx, nn
		vm.skipIf(vm.regV[x] == nn)
	case 0x4000: // SNE Vx, nn
		vm.skipIf(vm.regV[x] != nn)
	case 0x5000:
		if n != 0x0 {
			vm.unknownOpcode(opcode)
			break
		}
		// SE Vx, Vy
		vm.skipIf(vm.regV[x] == vm.regV[y])
	case 0x6000: // LD Vx, nn
		vm.regV[x] = nn
	case 0x7000: // ADD Vx, nn wraps modulo 256 and never touches VF
		vm.regV[x] += nn
	case 0x8000:
		vm.alu(opcode, x, y, n)
	case 0x9000:
		if n != 0x0 {
			vm.unknownOpcode(opcode)
			break
		}
		// SNE Vx, Vy
		vm.skipIf(vm.regV[x] != vm.regV[y])
	case 0xA000: // LD I, nnn
		vm.regI = nnn
	case 0xB000: // JP V0, nnn
		vm.pc = nnn + uint16(vm.regV[0])
	case 0xC000: // RND Vx, nn
		vm.regV[x] = uint8(vm.rng.Intn(256)) & nn
	case 0xD000: // DRW Vx, Vy, n
		return vm.drawSprite(x, y, n)
	case 0xE000:
		switch nn {
		case 0x9E: // SKP Vx
			vm.skipIf(vm.keypad[vm.regV[x]&0x0F])
		case 0xA1: // SKNP Vx
			vm.skipIf(!vm.keypad[vm.regV[x]&0x0F])
		default:
			vm.unknownOpcode(opcode)
		}
	case 0xF000:
		return vm.executeMisc(opcode, x, nn)
	}
	return nil
}

// executeMisc handles the 0xF instruction family: timer transfers, key wait,
// index arithmetic, font lookup, BCD and block transfers.
func (vm *VM) executeMisc(opcode uint16, x, nn uint8) error {
	switch nn {
	case 0x07: // LD Vx, DT
		vm.regV[x] = vm.delayTimer
	case 0x0A: // LD Vx, K: park the pc on this instruction and wait
		vm.pc -= 2
		vm.waitingKey = true
		vm.waitingReg = x
	case 0x15: // LD DT, Vx
		vm.delayTimer = vm.regV[x]
	case 0x18: // LD ST, Vx
		vm.soundTimer = vm.regV[x]
	case 0x1E: // ADD I, Vx, no carry flag by hardware convention
		vm.regI += uint16(vm.regV[x])
	case 0x29: // LD F, Vx: font glyph address for the low nibble of Vx
		vm.regI = fontStart + glyphSize*uint16(vm.regV[x]&0x0F)
	case 0x33: // LD B, Vx: BCD digits at I, I+1, I+2
		if int(vm.regI)+2 >= totalMemory {
			return fmt.Errorf("%w: BCD write at %#04x", ErrMemOutOfRange, vm.regI)
		}
		vm.memory[vm.regI] = vm.regV[x] / 100
		vm.memory[vm.regI+1] = (vm.regV[x] / 10) % 10
		vm.memory[vm.regI+2] = vm.regV[x] % 10
	case 0x55: // LD [I], Vx: store V0..Vx inclusive
		if int(vm.regI)+int(x) >= totalMemory {
			return fmt.Errorf("%w: register store at %#04x", ErrMemOutOfRange, vm.regI)
		}
		for i := uint16(0); i <= uint16(x); i++ {
			vm.memory[vm.regI+i] = vm.regV[i]
		}
	case 0x65: // LD Vx, [I]: load V0..Vx inclusive
		if int(vm.regI)+int(x) >= totalMemory {
			return fmt.Errorf("%w: register load at %#04x", ErrMemOutOfRange, vm.regI)
		}
		for i := uint16(0); i <= uint16(x); i++ {
			vm.regV[i] = vm.memory[vm.regI+i]
		}
	default:
		vm.unknownOpcode(opcode)
	}
	return nil
}

// alu handles the 0x8 instruction family. The flag is always computed from
// the original operand values before the destination register is written,
// so the semantics hold even when Vx is VF itself.
func (vm *VM) alu(opcode uint16, x, y, n uint8) {
	switch n {
	case 0x0: // LD Vx, Vy
		vm.regV[x] = vm.regV[y]
	case 0x1: // OR Vx, Vy
		vm.regV[x] |= vm.regV[y]
	case 0x2: // AND Vx, Vy
		vm.regV[x] &= vm.regV[y]
	case 0x3: // XOR Vx, Vy
		vm.regV[x] ^= vm.regV[y]
	case 0x4: // ADD Vx, Vy with carry
		sum := uint16(vm.regV[x]) + uint16(vm.regV[y])
		var carry uint8
		if sum > 0xFF {
			carry = 1
		}
		vm.regV[x] = uint8(sum)
		vm.regV[0xF] = carry
	case 0x5: // SUB Vx, Vy with NOT borrow
		var noBorrow uint8
		if vm.regV[x] >= vm.regV[y] {
			noBorrow = 1
		}
		vm.regV[x] -= vm.regV[y]
		vm.regV[0xF] = noBorrow
	case 0x6: // SHR Vx, shifted-out LSB into VF
		lsb := vm.regV[x] & 0x01
		vm.regV[x] >>= 1
		vm.regV[0xF] = lsb
	case 0x7: // SUBN Vx, Vy: Vy - Vx with NOT borrow
		var noBorrow uint8
		if vm.regV[y] >= vm.regV[x] {
			noBorrow = 1
		}
		vm.regV[x] = vm.regV[y] - vm.regV[x]
		vm.regV[0xF] = noBorrow
	case 0xE: // SHL Vx, shifted-out MSB into VF
		msb := vm.regV[x] >> 7
		vm.regV[x] <<= 1
		vm.regV[0xF] = msb
	default:
		vm.unknownOpcode(opcode)
	}
}

func (vm *VM) callSubroutine(addr uint16) error {
	if vm.sp >= stackDepth {
		return fmt.Errorf("%w: call to %#04x at depth %d", ErrStackOverflow, addr, vm.sp)
	}
	vm.stack[vm.sp] = vm.pc
	vm.sp++
	vm.pc = addr
	return nil
}

func (vm *VM) returnFromSubroutine() error {
	if vm.sp == 0 {
		return fmt.Errorf("%w: return with empty stack at pc %#04x", ErrStackUnderflow, vm.pc-2)
	}
	vm.sp--
	vm.pc = vm.stack[vm.sp]
	return nil
}

// skipIf advances the pc past the next instruction when the condition holds.
func (vm *VM) skipIf(cond bool) {
	if cond {
		vm.pc += 2
	}
}

func (vm *VM) clearScreen() {
	for i := range vm.pixels {
		vm.pixels[i] = 0
	}
	vm.drawFlag = true
}

// drawSprite XORs an n-row sprite read from memory at I onto the display at
// (Vx mod 64, Vy mod 32). Both coordinates wrap per row and column. VF is
// reset before the draw and set to 1 on any collision with a lit pixel.
func (vm *VM) drawSprite(x, y, n uint8) error {
	xc := uint16(vm.regV[x] % ScreenWidth)
	yc := uint16(vm.regV[y] % ScreenHeight)

	vm.regV[0xF] = 0
	for row := uint16(0); row < uint16(n); row++ {
		addr := vm.regI + row
		if addr >= totalMemory {
			return fmt.Errorf("%w: sprite read at %#04x", ErrMemOutOfRange, addr)
		}
		spriteByte := vm.memory[addr]
		py := (yc + row) % ScreenHeight

		for col := uint16(0); col < 8; col++ {
			if spriteByte&(0x80>>col) == 0 {
				continue
			}
			px := (xc + col) % ScreenWidth
			idx := py*ScreenWidth + px
			if vm.pixels[idx] == 1 {
				vm.regV[0xF] = 1
			}
			vm.pixels[idx] ^= 1
		}
	}
	vm.drawFlag = true
	return nil
}

func (vm *VM) unknownOpcode(opcode uint16) {
	vm.logger.Warn("unknown opcode, skipping",
		log.Hex("opcode", opcode),
		log.Hex("pc", vm.pc-2))
}
