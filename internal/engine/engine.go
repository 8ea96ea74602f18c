package engine

import (
	"fmt"
	"runtime"

	"ScrollStage/internal/logger"

	"github.com/go-gl/glfw/v3.3/glfw"
	"go.uber.org/zap"
)

func init() {
	// GLFW event handling must run on the main thread
	runtime.LockOSThread()
}

type Options struct {
	Title       string
	Width       int
	Height      int
	PageHeight  float64 // scrollable extent in scroll units
	ScrollStep  float64 // scroll units per wheel tick
	Samples     int     // MSAA samples, 0 disables
	VSync       bool
	Transparent bool // request an alpha-capable framebuffer
}

// Engine owns the window and the main loop. It schedules frames, runs tasks
// posted by workers on the main thread and forwards window input.
type Engine struct {
	*Scheduler

	window  *glfw.Window
	scroll  scrollState
	orbit   dragState
	pan     dragState
	pointer Pointer

	onResize func(width, height int)
	onScroll func(offset float64)
}

// New initialises GLFW and opens a window with a current OpenGL 4.1 core
// context. Call it from the main goroutine.
func New(opts Options) (*Engine, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("could not initialize glfw: %w", err)
	}

	glfw.WindowHint(glfw.Decorated, glfw.True)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.DepthBits, 24)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	if opts.Samples > 0 {
		glfw.WindowHint(glfw.Samples, opts.Samples)
	}
	if opts.Transparent {
		glfw.WindowHint(glfw.TransparentFramebuffer, glfw.True)
	}

	window, err := glfw.CreateWindow(opts.Width, opts.Height, opts.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("could not create glfw window: %w", err)
	}
	window.MakeContextCurrent()
	if opts.VSync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}

	e := &Engine{
		Scheduler: NewScheduler(256),
		window:    window,
		scroll:    scrollState{pageHeight: opts.PageHeight, step: opts.ScrollStep},
	}
	window.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
	window.SetFramebufferSizeCallback(e.framebufferSizeCallback)
	window.SetScrollCallback(e.scrollCallback)
	window.SetCursorPosCallback(e.mouseCallback)

	w, h := e.Size()
	logger.Log.Info("Window created",
		zap.String("title", opts.Title),
		zap.Int("framebufferWidth", w),
		zap.Int("framebufferHeight", h),
		zap.Int("samples", opts.Samples))
	return e, nil
}

// Size is the framebuffer size in pixels.
func (e *Engine) Size() (int, int) {
	return e.window.GetFramebufferSize()
}

// ScrollOffset is the current accumulated scroll position.
func (e *Engine) ScrollOffset() float64 {
	return e.scroll.offset
}

func (e *Engine) SetResizeHandler(fn func(width, height int)) {
	e.onResize = fn
}

func (e *Engine) SetScrollHandler(fn func(offset float64)) {
	e.onScroll = fn
}

// SetPointer routes mouse gestures: left drag rotates, right drag pans,
// shift+wheel dollies.
func (e *Engine) SetPointer(p Pointer) {
	e.pointer = p
}

// Run loops until the window is closed. Each iteration polls events, runs
// posted tasks and then the frames requested for this tick.
func (e *Engine) Run() {
	for !e.window.ShouldClose() {
		glfw.PollEvents()
		if e.RunPending(glfw.GetTime() * 1000) {
			e.window.SwapBuffers()
		} else {
			glfw.WaitEventsTimeout(0.01)
		}
	}
	logger.Log.Info("Window closed")
}

func (e *Engine) Close() {
	e.window.Destroy()
	glfw.Terminate()
}

func (e *Engine) framebufferSizeCallback(_ *glfw.Window, width, height int) {
	// Minimised windows report 0x0
	if width == 0 || height == 0 || e.onResize == nil {
		return
	}
	e.onResize(width, height)
}

func (e *Engine) scrollCallback(w *glfw.Window, _, yoff float64) {
	shift := w.GetKey(glfw.KeyLeftShift) == glfw.Press || w.GetKey(glfw.KeyRightShift) == glfw.Press
	if shift {
		if e.pointer != nil {
			e.pointer.Dolly(float32(yoff))
		}
		return
	}
	offset := e.scroll.wheel(yoff)
	if e.onScroll != nil {
		e.onScroll(offset)
	}
}

func (e *Engine) mouseCallback(w *glfw.Window, xpos, ypos float64) {
	if e.pointer == nil || w.GetAttrib(glfw.Focused) != glfw.True {
		return
	}
	if dx, dy, ok := e.orbit.move(xpos, ypos, w.GetMouseButton(glfw.MouseButtonLeft) == glfw.Press); ok {
		e.pointer.Rotate(float32(dx), float32(dy))
	}
	if dx, dy, ok := e.pan.move(xpos, ypos, w.GetMouseButton(glfw.MouseButtonRight) == glfw.Press); ok {
		e.pointer.Pan(float32(dx), float32(dy))
	}
}
