// Package term is the terminal front-end. It renders the framebuffer with
// block characters inside a gocui view and maps a QWERTY key block onto the
// hexadecimal keypad.
//
// Terminals only deliver key-down events, so a pressed key is held for a
// few frames and then released again.
package term

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chirpvm/chirp8/internal/chip8"
	"github.com/chirpvm/chirp8/internal/disasm"
	"github.com/jroimartin/gocui"
	"github.com/retroenv/retrogolib/log"
)

const (
	frameRate = 60

	// frames a key stays pressed after its key-down event
	keyHoldFrames = 6

	displayView = "display"
)

// UI drives the VM and draws its framebuffer into a terminal window.
type UI struct {
	vm     *chip8.VM
	logger *log.Logger

	cyclesPerFrame int
	trace          bool

	// key-down events flow from the gocui loop to the emulation goroutine
	keys      chan uint8
	keyFrames [16]int
}

// New returns a terminal UI for the given VM.
func New(vm *chip8.VM, logger *log.Logger, cyclesPerFrame int, trace bool) *UI {
	return &UI{
		vm:             vm,
		logger:         logger,
		cyclesPerFrame: cyclesPerFrame,
		trace:          trace,
		keys:           make(chan uint8, 64),
	}
}

// Run sets up the terminal gui and blocks until the emulation halts, the
// context is cancelled or the user quits with Esc or Ctrl-C.
func (ui *UI) Run(ctx context.Context) error {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return fmt.Errorf("creating terminal gui: %w", err)
	}
	defer g.Close()

	g.SetManagerFunc(layout)

	if err := ui.bindKeys(g); err != nil {
		return err
	}

	go ui.emulate(ctx, g)

	if err := g.MainLoop(); err != nil && err != gocui.ErrQuit {
		return err
	}
	return nil
}

// emulate owns the VM: once per frame it refreshes the keypad, runs the
// configured number of instruction cycles, ticks the timers and pushes the
// framebuffer into the display view.
func (ui *UI) emulate(ctx context.Context, g *gocui.Gui) {
	ticker := time.NewTicker(time.Second / frameRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.Update(func(*gocui.Gui) error { return gocui.ErrQuit })
			return
		case <-ticker.C:
		}

		ui.refreshKeypad()

		for i := 0; i < ui.cyclesPerFrame; i++ {
			pc := ui.vm.PC()
			if err := ui.vm.Step(); err != nil {
				ui.logger.Error("emulation halted", log.Err(err))
				g.Update(func(*gocui.Gui) error { return gocui.ErrQuit })
				return
			}
			if ui.trace {
				ui.logger.Debug("exec",
					log.Hex("pc", pc),
					log.String("instr", disasm.Mnemonic(ui.vm.Opcode())))
			}
		}

		ui.vm.TickTimers()

		if ui.vm.DrawFlag() {
			frame := renderFrame(ui.vm.Pixels())
			sound := ui.vm.Sound()
			g.Update(func(g *gocui.Gui) error {
				v, err := g.View(displayView)
				if err != nil {
					return err
				}
				v.Clear()
				fmt.Fprint(v, frame)
				v.Title = title(sound)
				return nil
			})
			ui.vm.ClearDrawFlag()
		}
	}
}

// refreshKeypad drains pending key-down events and updates the per-frame
// keypad state the VM sees, releasing keys whose hold frames ran out.
func (ui *UI) refreshKeypad() {
	for {
		select {
		case k := <-ui.keys:
			ui.keyFrames[k] = keyHoldFrames
		default:
			var keys [16]bool
			for k := range ui.keyFrames {
				if ui.keyFrames[k] > 0 {
					ui.keyFrames[k]--
					keys[k] = true
				}
			}
			ui.vm.SetKeys(keys)
			return
		}
	}
}

func (ui *UI) bindKeys(g *gocui.Gui) error {
	quit := func(*gocui.Gui, *gocui.View) error { return gocui.ErrQuit }
	if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, quit); err != nil {
		return err
	}
	if err := g.SetKeybinding("", gocui.KeyEsc, gocui.ModNone, quit); err != nil {
		return err
	}

	for ch, code := range keymap {
		code := code
		handler := func(*gocui.Gui, *gocui.View) error {
			select {
			case ui.keys <- code:
			default:
			}
			return nil
		}
		if err := g.SetKeybinding("", ch, gocui.ModNone, handler); err != nil {
			return fmt.Errorf("binding key %q: %w", ch, err)
		}
	}
	return nil
}

// gocui layout: a single fixed-size view framing the 64x32 display
func layout(g *gocui.Gui) error {
	if v, err := g.SetView(displayView, 0, 0, chip8.ScreenWidth+1, chip8.ScreenHeight+1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = title(false)
	}
	return nil
}

func title(sound bool) string {
	if sound {
		return "chirp8 [beep]"
	}
	return "chirp8"
}

// renderFrame converts the framebuffer into rows of block characters.
func renderFrame(pixels [chip8.ScreenWidth * chip8.ScreenHeight]uint8) string {
	var b strings.Builder
	for y := 0; y < chip8.ScreenHeight; y++ {
		for x := 0; x < chip8.ScreenWidth; x++ {
			if pixels[y*chip8.ScreenWidth+x] == 1 {
				b.WriteRune('█')
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Same QWERTY block as the SDL front-end:
// +--------+--------+--------+--------+
// | 1 -> 1 | 2 -> 2 | 3 -> 3 | 4 -> C |
// +--------+--------+--------+--------+
// | Q -> 4 | W -> 5 | E -> 6 | R -> D |
// +--------+--------+--------+--------+
// | A -> 7 | S -> 8 | D -> 9 | F -> E |
// +--------+--------+--------+--------+
// | Z -> A | X -> 0 | C -> B | V -> F |
// +--------+--------+--------+--------+
var keymap = map[rune]uint8{
	'1': 0x1, '2': 0x2, '3': 0x3, '4': 0xC,
	'q': 0x4, 'w': 0x5, 'e': 0x6, 'r': 0xD,
	'a': 0x7, 's': 0x8, 'd': 0x9, 'f': 0xE,
	'z': 0xA, 'x': 0x0, 'c': 0xB, 'v': 0xF,
}
