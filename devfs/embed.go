package devfs

import (
	"embed"
	"text/template"
)

// Device-side scripts are embedded at build time so the picoup binary is
// self-contained. Each script is self-contained MicroPython source: the
// protocol has no native file-transfer primitive, so every device-side
// effect is expressed as code the REPL executes.
//
//go:embed scripts/*.py
var scriptFS embed.FS

func mustScript(name string) string {
	data, err := scriptFS.ReadFile("scripts/" + name)
	if err != nil {
		panic("devfs: missing embedded script " + name)
	}
	return string(data)
}

var (
	cleanFSScript = mustScript("clean_fs.py")
	syncFSScript  = mustScript("sync_fs.py")
	listFSScript  = mustScript("list_fs.py")

	writeFileTemplate = template.Must(
		template.New("write_file.py").Parse(mustScript("write_file.py")))
)
