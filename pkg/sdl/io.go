// Package sdl is the SDL2 front-end: window rendering of the framebuffer,
// keyboard-to-keypad mapping, the beep tone and the frame-paced driver loop.
package sdl

import (
	"context"
	"fmt"
	"time"

	"github.com/chirpvm/chirp8/internal/chip8"
	"github.com/chirpvm/chirp8/internal/disasm"
	"github.com/retroenv/retrogolib/log"
	"github.com/veandco/go-sdl2/sdl"
)

const (
	pixelSize = 20

	screenColor = 0x1A237E
	spriteColor = 0x9FA8DA

	frameRate = 60

	toneFreq   = 440
	sampleRate = 44100
)

// IO is the input/output abstraction layer for the VM
type IO struct {
	window  *sdl.Window
	surface *sdl.Surface
	audio   sdl.AudioDeviceID
	tone    []byte

	vm     *chip8.VM
	logger *log.Logger

	cyclesPerFrame int
	trace          bool
}

// NewIO returns a new I/O instance for the SDL front-end. cyclesPerFrame
// instruction cycles run per 1/60s frame; trace logs every executed
// instruction.
func NewIO(vm *chip8.VM, logger *log.Logger, cyclesPerFrame int, trace bool) *IO {
	return &IO{
		vm:             vm,
		logger:         logger,
		cyclesPerFrame: cyclesPerFrame,
		trace:          trace,
	}
}

// SetupWindow initialises SDL, the main window and the audio device.
func (io *IO) SetupWindow(title string) error {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_AUDIO | sdl.INIT_EVENTS); err != nil {
		return fmt.Errorf("initialising SDL: %w", err)
	}

	window, err := sdl.CreateWindow(title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		chip8.ScreenWidth*pixelSize, chip8.ScreenHeight*pixelSize, sdl.WINDOW_SHOWN)
	if err != nil {
		return fmt.Errorf("creating window: %w", err)
	}
	io.window = window
	io.surface, err = window.GetSurface()
	if err != nil {
		return fmt.Errorf("getting window surface: %w", err)
	}
	io.surface.FillRect(nil, screenColor)

	return io.setupAudio()
}

// setupAudio opens a queue-driven audio device for a looping square wave;
// the device stays paused until the sound timer runs.
func (io *IO) setupAudio() error {
	spec := &sdl.AudioSpec{
		Freq:     sampleRate,
		Format:   sdl.AUDIO_U8,
		Channels: 1,
		Samples:  2048,
	}
	dev, err := sdl.OpenAudioDevice("", false, spec, nil, 0)
	if err != nil {
		return fmt.Errorf("opening audio device: %w", err)
	}
	io.audio = dev
	io.tone = squareWave(sampleRate, toneFreq)
	return nil
}

// squareWave renders one second of an unsigned 8-bit square wave.
func squareWave(rate, freq int) []byte {
	wave := make([]byte, rate)
	period := rate / freq
	for i := range wave {
		if (i/(period/2))%2 == 0 {
			wave[i] = 0xE0
		} else {
			wave[i] = 0x20
		}
	}
	return wave
}

// Destroy should be called before quitting the application
func (io *IO) Destroy() {
	if io.audio != 0 {
		sdl.CloseAudioDevice(io.audio)
	}
	if io.window != nil {
		io.window.Destroy()
	}
	sdl.Quit()
}

// Loop runs the driver: once per frame it pumps input events, executes the
// configured number of instruction cycles, ticks the timers, gates the beep
// and hands the framebuffer to the window when the VM marked it dirty.
// It returns when the window is closed, the context is cancelled or the VM
// reports a fatal execution error.
func (io *IO) Loop(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / frameRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch t := event.(type) {
			case *sdl.KeyboardEvent:
				code := keymap(t.Keysym.Scancode)
				if code < 0 {
					continue
				}
				io.vm.SetKey(uint8(code), t.GetType() == sdl.KEYDOWN)
			case *sdl.QuitEvent:
				return nil
			}
		}

		for i := 0; i < io.cyclesPerFrame; i++ {
			pc := io.vm.PC()
			if err := io.vm.Step(); err != nil {
				return fmt.Errorf("emulation halted: %w", err)
			}
			if io.trace {
				io.logger.Debug("exec",
					log.Hex("pc", pc),
					log.String("instr", disasm.Mnemonic(io.vm.Opcode())))
			}
		}

		io.vm.TickTimers()
		io.gateTone()

		if io.vm.DrawFlag() {
			io.draw()
			io.vm.ClearDrawFlag()
		}
	}
}

// gateTone starts or stops the continuous beep based on the sound timer.
func (io *IO) gateTone() {
	if io.vm.Sound() {
		if sdl.GetQueuedAudioSize(io.audio) < uint32(len(io.tone)) {
			if err := sdl.QueueAudio(io.audio, io.tone); err != nil {
				io.logger.Error("queueing audio", log.Err(err))
			}
		}
		sdl.PauseAudioDevice(io.audio, false)
	} else {
		sdl.PauseAudioDevice(io.audio, true)
	}
}

// draw renders the current framebuffer on the window surface
func (io *IO) draw() {
	io.surface.FillRect(nil, screenColor)
	pixels := io.vm.Pixels()
	for y := int32(0); y < chip8.ScreenHeight; y++ {
		for x := int32(0); x < chip8.ScreenWidth; x++ {
			if pixels[y*chip8.ScreenWidth+x] == 1 {
				rect := &sdl.Rect{X: x * pixelSize, Y: y * pixelSize, W: pixelSize, H: pixelSize}
				io.surface.FillRect(rect, spriteColor)
			}
		}
	}
	io.window.UpdateSurface()
}

// Maps keys from a QWERTY keyboard to the keypad used by CHIP-8
// Below we have a mapping QWERTY keyboard to the CHIP-8 keypad
// +--------+--------+--------+--------+
// | 1 -> 1 | 2 -> 2 | 3 -> 3 | 4 -> C |
// +--------+--------+--------+--------+
// | Q -> 4 | W -> 5 | E -> 6 | R -> D |
// +--------+--------+--------+--------+
// | A -> 7 | S -> 8 | D -> 9 | F -> E |
// +--------+--------+--------+--------+
// | Z -> A | X -> 0 | C -> B | V -> F |
// +--------+--------+--------+--------+
func keymap(code sdl.Scancode) int8 {
	switch code {
	case sdl.SCANCODE_1:
		return 0x1
	case sdl.SCANCODE_2:
		return 0x2
	case sdl.SCANCODE_3:
		return 0x3
	case sdl.SCANCODE_4:
		return 0xC
	case sdl.SCANCODE_Q:
		return 0x4
	case sdl.SCANCODE_W:
		return 0x5
	case sdl.SCANCODE_E:
		return 0x6
	case sdl.SCANCODE_R:
		return 0xD
	case sdl.SCANCODE_A:
		return 0x7
	case sdl.SCANCODE_S:
		return 0x8
	case sdl.SCANCODE_D:
		return 0x9
	case sdl.SCANCODE_F:
		return 0xE
	case sdl.SCANCODE_Z:
		return 0xA
	case sdl.SCANCODE_X:
		return 0x0
	case sdl.SCANCODE_C:
		return 0xB
	case sdl.SCANCODE_V:
		return 0xF
	default:
		return -1
	}
}
