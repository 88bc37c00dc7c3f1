package script

import (
	"fmt"
	"log/slog"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// registerConsole installs console.log/warn/error and replaces print. Arguments are
// joined by spaces; tables and items are printed as JSON.
func (r *run) registerConsole() {
	console := r.L.NewTable()
	r.L.SetFuncs(console, map[string]lua.LGFunction{
		"log":   r.consoleWriter(slog.LevelInfo, ""),
		"warn":  r.consoleWriter(slog.LevelWarn, "warning: "),
		"error": r.consoleWriter(slog.LevelError, "error: "),
	})
	r.L.SetGlobal("console", console)
	r.L.SetGlobal("print", r.L.NewFunction(r.consoleWriter(slog.LevelInfo, "")))
}

func (r *run) consoleWriter(level slog.Level, prefix string) lua.LGFunction {
	return func(L *lua.LState) int {
		parts := make([]string, 0, L.GetTop())
		for i := 1; i <= L.GetTop(); i++ {
			parts = append(parts, r.format(L.Get(i)))
		}
		line := strings.Join(parts, " ")

		r.logger.Log(r.ctx, level, "Script output", "message", line)
		fmt.Fprintf(r.engine.output, "%s%s\n", prefix, line)
		return 0
	}
}

func (r *run) format(v lua.LValue) string {
	switch t := v.(type) {
	case *lua.LTable:
		return encodeJSON(fromLua(t))
	case *lua.LUserData:
		return encodeJSON(fromLua(t))
	case lua.LString:
		return string(t)
	default:
		return r.L.ToStringMeta(v).String()
	}
}
