// Package lua runs Lua scripts against a document.
//
// A script sees one global table, doc, with the page editing operations.
// Everything a script changes becomes a single undo step; a script that
// fails leaves the page as it found it. Calling doc.undo, doc.redo or
// switching pages with doc.page starts a new step.
package lua

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/zot/pagelayer/internal/document"
	"github.com/zot/pagelayer/internal/layer"
	"github.com/zot/pagelayer/internal/logging"
)

var (
	ErrNoScripts = errors.New("no script directory configured")
	ErrBadName   = errors.New("bad script name")
)

// Runner runs scripts. Named scripts are looked up in Dir.
type Runner struct {
	Dir string
	log *logging.Logger
}

func NewRunner(dir string, log *logging.Logger) *Runner {
	return &Runner{Dir: dir, log: logging.OrNop(log)}
}

// RunNamed runs Dir/name, adding the .lua extension when it is missing.
// Names may not leave Dir.
func (r *Runner) RunNamed(ctx context.Context, doc *document.Document, name string) error {
	if r.Dir == "" {
		return ErrNoScripts
	}
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrBadName, name)
	}
	if filepath.Ext(name) != ".lua" {
		name += ".lua"
	}
	return r.RunFile(ctx, doc, filepath.Join(r.Dir, name))
}

// RunFile runs the script stored at path.
func (r *Runner) RunFile(ctx context.Context, doc *document.Document, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return r.Run(ctx, doc, filepath.Base(path), f)
}

// Run executes src on doc's active page inside one gesture.
func (r *Runner) Run(ctx context.Context, doc *document.Document, name string, src io.Reader) error {
	L := newState()
	defer L.Close()
	if ctx != nil {
		L.SetContext(ctx)
	}
	log := r.log.With("script", name)
	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		parts := make([]string, L.GetTop())
		for i := range parts {
			parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
		}
		log.Info().Msg(strings.Join(parts, "\t"))
		return 0
	}))
	L.SetGlobal("doc", docTable(L, doc))

	fn, err := L.Load(src, name)
	if err != nil {
		return err
	}
	log.Log(1, "run")
	doc.BeginStep()
	L.Push(fn)
	if err := L.PCall(0, 0, nil); err != nil {
		doc.CancelGesture()
		log.Log(1, "failed: %v", err)
		return err
	}
	doc.EndGesture()
	return nil
}

// newState opens the libraries a page script needs and nothing that reaches
// the file system or the process.
func newState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

func docTable(L *lua.LState, doc *document.Document) *lua.LTable {
	push := func(L *lua.LState, l layer.Layer) int {
		v, err := layerToLua(L, l)
		if err != nil {
			L.RaiseError("%v", err)
		}
		L.Push(v)
		return 1
	}
	return L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"layers": func(L *lua.LState) int {
			tbl := L.NewTable()
			for _, l := range doc.Layers() {
				push(L, l)
				tbl.Append(L.Get(-1))
				L.Pop(1)
			}
			L.Push(tbl)
			return 1
		},
		"get": func(L *lua.LState) int {
			l, ok := doc.Layer(L.CheckString(1))
			if !ok {
				L.Push(lua.LNil)
				return 1
			}
			return push(L, l)
		},
		"add": func(L *lua.LState) int {
			kind := layer.Kind(L.CheckString(1))
			if !kind.Known() {
				L.ArgError(1, "unknown layer kind "+string(kind))
			}
			L.Push(lua.LString(doc.Add(kind, patchArg(L, 2))))
			return 1
		},
		"update": func(L *lua.LState) int {
			id := L.CheckString(1)
			L.Push(lua.LBool(doc.Update(id, patchArg(L, 2))))
			return 1
		},
		"move": func(L *lua.LState) int {
			id := L.CheckString(1)
			p := layer.Move(float64(L.CheckNumber(2)), float64(L.CheckNumber(3)))
			L.Push(lua.LBool(doc.Update(id, p)))
			return 1
		},
		"remove": func(L *lua.LState) int {
			L.Push(GoToLua(L, doc.Delete(L.CheckString(1))))
			return 1
		},
		"reparent": func(L *lua.LState) int {
			L.Push(lua.LBool(doc.Reparent(L.CheckString(1), L.OptString(2, ""))))
			return 1
		},
		"hide": func(L *lua.LState) int {
			L.Push(lua.LBool(doc.SetHidden(L.CheckString(1), L.OptBool(2, true))))
			return 1
		},
		"select": func(L *lua.LState) int {
			L.Push(lua.LBool(doc.Select(L.OptString(1, ""))))
			return 1
		},
		"selected": func(L *lua.LState) int {
			if id := doc.Selected(); id != "" {
				L.Push(lua.LString(id))
			} else {
				L.Push(lua.LNil)
			}
			return 1
		},
		"group": func(L *lua.LState) int {
			id, ok := doc.Group()
			if !ok {
				L.Push(lua.LNil)
				return 1
			}
			L.Push(lua.LString(id))
			return 1
		},
		"ungroup": func(L *lua.LState) int {
			L.Push(lua.LBool(doc.Ungroup()))
			return 1
		},
		"cell": func(L *lua.LState) int {
			ok := doc.SetCell(L.CheckString(1), L.CheckInt(2), L.CheckInt(3), L.CheckString(4))
			L.Push(lua.LBool(ok))
			return 1
		},
		"undo": func(L *lua.LState) int {
			L.Push(lua.LBool(between(doc, doc.Undo)))
			return 1
		},
		"redo": func(L *lua.LState) int {
			L.Push(lua.LBool(between(doc, doc.Redo)))
			return 1
		},
		"page": func(L *lua.LState) int {
			if n := L.OptInt(1, 0); n > 0 && n != doc.ActivePage() {
				between(doc, func() bool {
					doc.SetActivePage(n)
					return true
				})
			}
			L.Push(lua.LNumber(doc.ActivePage()))
			return 1
		},
	})
}

// between closes the script's gesture, runs fn and opens a new one, so a
// later failure only rolls back what came after fn.
func between(doc *document.Document, fn func() bool) bool {
	doc.EndGesture()
	ok := fn()
	doc.BeginStep()
	return ok
}
