// Package disasm formats CHIP-8 instruction words as assembly mnemonics.
// It backs the execution tracer of the emulator; the mnemonic and parameter
// conventions follow Cowgod's technical reference.
package disasm

import "fmt"

// Mnemonic returns the assembly form of a 16-bit CHIP-8 instruction word,
// e.g. "LD V1, $C8" or "JP $228". Words matching no known instruction are
// rendered as raw data words.
func Mnemonic(opcode uint16) string {
	x := (opcode >> 8) & 0x000F
	y := (opcode >> 4) & 0x000F
	n := opcode & 0x000F
	nn := opcode & 0x00FF
	nnn := opcode & 0x0FFF

	switch opcode & 0xF000 {
	case 0x0000:
		switch nn {
		case 0xE0:
			return "CLS"
		case 0xEE:
			return "RET"
		default:
			return fmt.Sprintf("SYS $%03X", nnn)
		}
	case 0x1000:
		return fmt.Sprintf("JP $%03X", nnn)
	case 0x2000:
		return fmt.Sprintf("CALL $%03X", nnn)
	case 0x3000:
		return fmt.Sprintf("SE V%X, $%02X", x, nn)
	case 0x4000:
		return fmt.Sprintf("SNE V%X, $%02X", x, nn)
	case 0x5000:
		if n == 0x0 {
			return fmt.Sprintf("SE V%X, V%X", x, y)
		}
	case 0x6000:
		return fmt.Sprintf("LD V%X, $%02X", x, nn)
	case 0x7000:
		return fmt.Sprintf("ADD V%X, $%02X", x, nn)
	case 0x8000:
		if name, ok := aluNames[n]; ok {
			if n == 0x6 || n == 0xE {
				return fmt.Sprintf("%s V%X", name, x)
			}
			return fmt.Sprintf("%s V%X, V%X", name, x, y)
		}
	case 0x9000:
		if n == 0x0 {
			return fmt.Sprintf("SNE V%X, V%X", x, y)
		}
	case 0xA000:
		return fmt.Sprintf("LD I, $%03X", nnn)
	case 0xB000:
		return fmt.Sprintf("JP V0, $%03X", nnn)
	case 0xC000:
		return fmt.Sprintf("RND V%X, $%02X", x, nn)
	case 0xD000:
		return fmt.Sprintf("DRW V%X, V%X, $%X", x, y, n)
	case 0xE000:
		switch nn {
		case 0x9E:
			return fmt.Sprintf("SKP V%X", x)
		case 0xA1:
			return fmt.Sprintf("SKNP V%X", x)
		}
	case 0xF000:
		if format, ok := miscFormats[nn]; ok {
			return fmt.Sprintf(format, x)
		}
	}
	return fmt.Sprintf(".word $%04X", opcode)
}

var aluNames = map[uint16]string{
	0x0: "LD",
	0x1: "OR",
	0x2: "AND",
	0x3: "XOR",
	0x4: "ADD",
	0x5: "SUB",
	0x6: "SHR",
	0x7: "SUBN",
	0xE: "SHL",
}

var miscFormats = map[uint16]string{
	0x07: "LD V%X, DT",
	0x0A: "LD V%X, K",
	0x15: "LD DT, V%X",
	0x18: "LD ST, V%X",
	0x1E: "ADD I, V%X",
	0x29: "LD F, V%X",
	0x33: "LD B, V%X",
	0x55: "LD [I], V%X",
	0x65: "LD V%X, [I]",
}
