package app

import (
	"io"

	"github.com/specialistvlad/gridci/internal/executor"
	"github.com/specialistvlad/gridci/modules/env_vars"
	"github.com/specialistvlad/gridci/modules/http_request"
	"github.com/specialistvlad/gridci/modules/print"
	"github.com/specialistvlad/gridci/modules/shell"
	"github.com/specialistvlad/gridci/modules/socketio"
)

// coreModules is the definitive list of all actions that are compiled into
// the gridci binary. The print action writes to outW.
func coreModules(outW io.Writer) []executor.Module {
	return []executor.Module{
		&env_vars.Module{},
		&print.Module{Out: outW},
		&shell.Module{},
		&http_request.Module{},
		&socketio.Module{},
	}
}
