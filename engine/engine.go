// Package engine embeds a Lua VM for user key bindings and session
// hooks. It is pure mechanism: it knows how to run Lua code and expose
// the vty API, not where scripts come from or when hooks fire.
package engine

import (
	"os"
	"path/filepath"
	"strings"

	glua "github.com/yuin/gopher-lua"

	"github.com/drake/vty/keystroke"
)

// Host is what the engine needs from the rest of the system.
type Host interface {
	Print(text string)
	RequestQuit()
}

// Engine wraps gopher-lua and manages the VM lifecycle.
type Engine struct {
	L    *glua.LState
	host Host

	chords *chordCache

	// Cached table reference
	vtyTable *glua.LTable

	binds map[string]*glua.LFunction
	hooks map[string]*glua.LFunction
}

// NewEngine creates an Engine with the given Host.
func NewEngine(host Host) *Engine {
	return &Engine{
		host:   host,
		chords: newChordCache(),
		binds:  make(map[string]*glua.LFunction),
		hooks:  make(map[string]*glua.LFunction),
	}
}

// Init initializes (or re-initializes) the Lua VM with fresh state and
// registers the vty API. It loads no scripts; that is the caller's
// job.
func (e *Engine) Init() error {
	if e.L != nil {
		e.L.Close()
	}
	e.L = glua.NewState()

	e.chords = newChordCache()
	e.binds = make(map[string]*glua.LFunction)
	e.hooks = make(map[string]*glua.LFunction)

	e.registerAPI()
	return nil
}

// Close cleans up the Lua state.
func (e *Engine) Close() {
	e.binds = nil
	e.hooks = nil
	if e.L != nil {
		e.L.Close()
		e.L = nil
	}
}

// --- Execution primitives ---

// DoString executes a raw string of Lua code. The name parameter is
// used for stack traces.
func (e *Engine) DoString(name, code string) error {
	fn, err := e.L.Load(strings.NewReader(code), name)
	if err != nil {
		return err
	}
	e.L.Push(fn)
	return e.L.PCall(0, 0, nil)
}

// DoFile executes a Lua file, temporarily adjusting package.path so
// the script can require siblings.
func (e *Engine) DoFile(path string) error {
	path = expandTilde(path)

	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(absPath)

	pkg := e.L.GetGlobal("package").(*glua.LTable)
	oldPath := e.L.GetField(pkg, "path").String()
	e.L.SetField(pkg, "path", glua.LString(dir+"/?.lua;"+oldPath))

	err = e.L.DoFile(absPath)

	e.L.SetField(pkg, "path", glua.LString(oldPath))
	return err
}

// LoadUserScripts runs each script file in order.
func (e *Engine) LoadUserScripts(paths []string) error {
	for _, p := range paths {
		if err := e.DoFile(p); err != nil {
			return err
		}
	}
	return nil
}

// --- Event handlers ---

// HandleKey runs the binding for a keystroke, if one exists. Returns
// true if the key was consumed by a script.
func (e *Engine) HandleKey(k *keystroke.Keystroke) bool {
	if e.L == nil || len(e.binds) == 0 {
		return false
	}

	chord, ok := e.chords.format(k)
	if !ok {
		return false
	}
	fn, ok := e.binds[chord]
	if !ok {
		return false
	}

	e.L.Push(fn)
	e.L.Push(glua.LString(chord))
	if err := e.L.PCall(1, 0, nil); err != nil {
		e.CallHook("error", "keybind: "+err.Error())
	}
	return true
}

// OnLine runs the "line" hook over a submitted command line. The hook
// may rewrite the line or suppress it by returning false.
func (e *Engine) OnLine(line string) (string, bool) {
	fn, ok := e.hooks["line"]
	if !ok {
		return line, true
	}

	if err := e.L.CallByParam(glua.P{
		Fn:      fn,
		NRet:    2,
		Protect: true,
	}, glua.LString(line)); err != nil {
		return line, true
	}

	keep := e.L.Get(-1)
	modified := e.L.Get(-2)
	e.L.Pop(2)

	if keep == glua.LFalse {
		return "", false
	}
	if ls, ok := modified.(glua.LString); ok {
		return string(ls), true
	}
	return line, true
}

// CallHook calls a named hook with string arguments, if registered.
func (e *Engine) CallHook(name string, args ...string) {
	fn, ok := e.hooks[name]
	if !ok || e.L == nil {
		return
	}

	luaArgs := make([]glua.LValue, len(args))
	for i, arg := range args {
		luaArgs[i] = glua.LString(arg)
	}

	e.L.CallByParam(glua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, luaArgs...)
}

// BoundChords returns all bound chord names.
func (e *Engine) BoundChords() []string {
	chords := make([]string, 0, len(e.binds))
	for chord := range e.binds {
		chords = append(chords, chord)
	}
	return chords
}

// --- API registration ---

func (e *Engine) registerAPI() {
	e.vtyTable = e.L.NewTable()
	e.L.SetGlobal("vty", e.vtyTable)

	// vty.bind(chord, callback) - run callback when chord is typed.
	// Chords: "a", "C-x", "M-f", "up", "csi-3~", ...
	e.L.SetField(e.vtyTable, "bind", e.L.NewFunction(func(L *glua.LState) int {
		chord := L.CheckString(1)
		fn := L.CheckFunction(2)
		e.binds[chord] = fn
		return 0
	}))

	// vty.unbind(chord)
	e.L.SetField(e.vtyTable, "unbind", e.L.NewFunction(func(L *glua.LState) int {
		delete(e.binds, L.CheckString(1))
		return 0
	}))

	// vty.on(event, callback) - register a hook. The session fires
	// "line", "connect" and "disconnect"; a failing key binding fires
	// "error". No "timeout" hook is fired: an idle timeout ends the
	// session through "disconnect".
	e.L.SetField(e.vtyTable, "on", e.L.NewFunction(func(L *glua.LState) int {
		name := L.CheckString(1)
		fn := L.CheckFunction(2)
		e.hooks[name] = fn
		return 0
	}))

	// vty.print(text) - write to the terminal.
	e.L.SetField(e.vtyTable, "print", e.L.NewFunction(func(L *glua.LState) int {
		e.host.Print(L.CheckString(1))
		return 0
	}))

	// vty.quit() - end the session.
	e.L.SetField(e.vtyTable, "quit", e.L.NewFunction(func(L *glua.LState) int {
		e.host.RequestQuit()
		return 0
	}))
}

// expandTilde expands ~ to the home directory.
func expandTilde(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
