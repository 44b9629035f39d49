package luamodule

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
)

// NewScriptState creates a Lua state for running script at `scriptPath`.
// Directory of the script is added to module search path, and given modules
// are registered as preloaded modules. Script itself is not executed.
func NewScriptState(scriptPath string, modules map[string]lua.LGFunction) (*lua.LState, error) {
	if _, err := os.Stat(scriptPath); err != nil {
		return nil, fmt.Errorf("failed to access script %s: %s", scriptPath, err)
	}

	L := lua.NewState()

	if err := updateScriptImportPath(L, scriptPath); err != nil {
		L.Close()
		return nil, err
	}

	for name, loader := range modules {
		L.PreloadModule(name, loader)
	}

	L.SetGlobal("fnil", L.NewFunction(func(_ *lua.LState) int { return 0 }))

	return L, nil
}

func updateScriptImportPath(L *lua.LState, scriptPath string) error {
	pack, ok := L.GetGlobal("package").(*lua.LTable)
	if !ok {
		return fmt.Errorf("failed to retrive global variable `package`")
	}

	pathVal, ok := L.GetField(pack, "path").(lua.LString)
	if !ok {
		return fmt.Errorf("`path` field of `package` table is not a string")
	}

	path := string(pathVal)
	scriptDir := filepath.Dir(scriptPath)

	path += fmt.Sprintf(";%s/?.lua;%s/?/init.lua", scriptDir, scriptDir)
	L.SetField(pack, "path", lua.LString(path))

	return nil
}
