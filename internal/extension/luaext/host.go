// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClipCC Contributors

// Package luaext hosts extensions implemented as Lua scripts, adapting
// them to the structured Instance lifecycle.
package luaext

import (
	"context"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/Menersar/clipcc-extension/internal/extension"
)

// Compile-time interface checks.
var (
	_ extension.Instance     = (*Instance)(nil)
	_ extension.EventHandler = (*Instance)(nil)
)

// Instance runs a Lua entry script. The script may define three global
// functions, all optional: on_init(), on_uninit(), and
// on_event(name, payload). Each call executes in a fresh interpreter
// state; scripts hold no state between calls.
type Instance struct {
	id   string
	code string
}

// New reads and syntax-checks the entry script for an extension.
func New(id, dir, entry string) (*Instance, error) {
	entryPath := filepath.Join(dir, entry)
	code, err := os.ReadFile(filepath.Clean(entryPath))
	if err != nil {
		return nil, oops.In("luaext").With("extension", id).With("path", entryPath).
			Hint("failed to read entry file").Wrap(err)
	}

	// Validate syntax in a throwaway state.
	L := lua.NewState()
	defer L.Close()
	if err := L.DoString(string(code)); err != nil {
		return nil, oops.In("luaext").With("extension", id).With("entry", entry).
			Hint("syntax error").Wrap(err)
	}

	return &Instance{id: id, code: string(code)}, nil
}

// Init runs the script's on_init function, if defined.
func (i *Instance) Init(ctx context.Context) error {
	return i.call(ctx, "on_init")
}

// Uninit runs the script's on_uninit function, if defined.
func (i *Instance) Uninit(ctx context.Context) error {
	return i.call(ctx, "on_uninit")
}

// HandleEvent runs the script's on_event function, if defined.
func (i *Instance) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	L, fn, err := i.state(ctx, "on_event")
	if err != nil || fn == lua.LNil {
		if L != nil {
			L.Close()
		}
		return err
	}
	defer L.Close()

	if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true},
		lua.LString(event), toLua(L, payload)); err != nil {
		return oops.In("luaext").With("extension", i.id).With("operation", "on_event").
			With("event", event).Wrap(err)
	}
	return nil
}

// call invokes a zero-argument global function from the script.
func (i *Instance) call(ctx context.Context, name string) error {
	L, fn, err := i.state(ctx, name)
	if err != nil || fn == lua.LNil {
		if L != nil {
			L.Close()
		}
		return err
	}
	defer L.Close()

	if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}); err != nil {
		return oops.In("luaext").With("extension", i.id).With("operation", name).Wrap(err)
	}
	return nil
}

// state creates a fresh interpreter, runs the script body, and looks up
// the named global. Returns fn == lua.LNil when the script does not
// define it.
func (i *Instance) state(ctx context.Context, name string) (*lua.LState, lua.LValue, error) {
	L := lua.NewState()
	L.SetContext(ctx)

	if err := L.DoString(i.code); err != nil {
		L.Close()
		return nil, lua.LNil, oops.In("luaext").With("extension", i.id).
			With("operation", name).Hint("script body failed").Wrap(err)
	}

	fn := L.GetGlobal(name)
	if fn.Type() != lua.LTFunction {
		return L, lua.LNil, nil
	}
	return L, fn, nil
}

// toLua converts an event payload into a Lua table. Unsupported value
// types are rendered as nil.
func toLua(L *lua.LState, payload map[string]any) lua.LValue {
	table := L.NewTable()
	for k, v := range payload {
		L.SetField(table, k, toLuaValue(L, v))
	}
	return table
}

func toLuaValue(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case string:
		return lua.LString(val)
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case map[string]any:
		return toLua(L, val)
	case []any:
		table := L.NewTable()
		for _, item := range val {
			table.Append(toLuaValue(L, item))
		}
		return table
	case nil:
		return lua.LNil
	default:
		return lua.LNil
	}
}
