package term

import (
	"strings"
	"testing"

	"github.com/chirpvm/chirp8/internal/chip8"
	"github.com/retroenv/retrogolib/assert"
)

func TestRenderFrame(t *testing.T) {
	var pixels [chip8.ScreenWidth * chip8.ScreenHeight]uint8
	pixels[0] = 1
	pixels[chip8.ScreenWidth-1] = 1
	pixels[chip8.ScreenWidth+2] = 1

	frame := renderFrame(pixels)
	lines := strings.Split(frame, "\n")

	assert.Len(t, lines, chip8.ScreenHeight+1, "32 rows plus a trailing newline")

	row0 := []rune(lines[0])
	assert.Len(t, row0, chip8.ScreenWidth)
	assert.Equal(t, '█', row0[0])
	assert.Equal(t, '█', row0[chip8.ScreenWidth-1])
	assert.Equal(t, ' ', row0[1])

	row1 := []rune(lines[1])
	assert.Equal(t, '█', row1[2])
}

func TestRenderFrameEmpty(t *testing.T) {
	var pixels [chip8.ScreenWidth * chip8.ScreenHeight]uint8

	frame := renderFrame(pixels)
	assert.False(t, strings.ContainsRune(frame, '█'))
}

func TestKeymapCoversKeypad(t *testing.T) {
	var seen [16]bool
	for _, code := range keymap {
		seen[code] = true
	}
	for _, ok := range seen {
		assert.True(t, ok, "keypad key must be reachable from the keyboard")
	}
}
