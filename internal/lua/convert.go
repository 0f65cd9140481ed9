package lua

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	lua "github.com/yuin/gopher-lua"

	"github.com/zot/pagelayer/internal/layer"
)

// GoToLua converts JSON-shaped Go values into Lua values.
func GoToLua(L *lua.LState, val any) lua.LValue {
	switch v := val.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return v
	case bool:
		return lua.LBool(v)
	case int:
		return lua.LNumber(float64(v))
	case int64:
		return lua.LNumber(float64(v))
	case float64:
		return lua.LNumber(v)
	case string:
		return lua.LString(v)
	case []string:
		tbl := L.NewTable()
		for i, s := range v {
			tbl.RawSetInt(i+1, lua.LString(s))
		}
		return tbl
	case []any:
		tbl := L.NewTable()
		for i, item := range v {
			tbl.RawSetInt(i+1, GoToLua(L, item))
		}
		return tbl
	case map[string]any:
		tbl := L.NewTable()
		for k, item := range v {
			L.SetField(tbl, k, GoToLua(L, item))
		}
		return tbl
	default:
		return lua.LString(fmt.Sprintf("%v", v))
	}
}

// LuaToGo converts a Lua value into plain Go values. Tables with only
// positive integer keys become slices; other tables become maps, skipping
// keys that start with an underscore.
func LuaToGo(val lua.LValue) any {
	switch v := val.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		return float64(v)
	case lua.LString:
		return string(v)
	case *lua.LTable:
		numeric, named := false, false
		maxN := 0
		v.ForEach(func(key, _ lua.LValue) {
			switch k := key.(type) {
			case lua.LNumber:
				numeric = true
				maxN = max(maxN, int(k))
			case lua.LString:
				if !strings.HasPrefix(string(k), "_") {
					named = true
				}
			}
		})
		if numeric && !named && maxN > 0 {
			arr := make([]any, maxN)
			for i := 1; i <= maxN; i++ {
				arr[i-1] = LuaToGo(v.RawGetInt(i))
			}
			return arr
		}
		m := make(map[string]any)
		v.ForEach(func(key, value lua.LValue) {
			if k, ok := key.(lua.LString); ok && !strings.HasPrefix(string(k), "_") {
				m[string(k)] = LuaToGo(value)
			}
		})
		return m
	default:
		return nil
	}
}

// layerToLua hands a layer to a script as a plain table with the same field
// names the wire format uses.
func layerToLua(L *lua.LState, l layer.Layer) (lua.LValue, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return lua.LNil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return lua.LNil, err
	}
	return GoToLua(L, m), nil
}

// patchArg reads an optional table argument as a layer patch.
func patchArg(L *lua.LState, n int) layer.Patch {
	tbl := L.OptTable(n, nil)
	if tbl == nil {
		return nil
	}
	m, ok := LuaToGo(tbl).(map[string]any)
	if !ok {
		L.ArgError(n, "expected a table of fields")
	}
	return layer.Patch(m)
}
