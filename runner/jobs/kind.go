package jobs

import (
	"path/filepath"

	"github.com/pkg/errors"
)

// ScriptKind is derived from a script's file extension and decides how the
// script is staged and run.
type ScriptKind string

const (
	Python ScriptKind = "python"
	R      ScriptKind = "r"
	Shell  ScriptKind = "shell"
	// A YAML document naming a model and a data file plus sampling options.
	Stanie ScriptKind = "stanie"
)

// KindOf returns the kind for fileName, or an error for unsupported extensions.
func KindOf(fileName string) (ScriptKind, error) {
	switch filepath.Ext(fileName) {
	case ".py":
		return Python, nil
	case ".R":
		return R, nil
	case ".sh":
		return Shell, nil
	case ".stanie":
		return Stanie, nil
	}
	return "", errors.Errorf("unsupported script type: %s", fileName)
}

// scansDependencies reports whether other project files referenced by the
// script are staged alongside it.
func (k ScriptKind) scansDependencies() bool {
	return k == Python || k == R
}

// ContainerMethod selects how run.sh is executed.
type ContainerMethod string

const (
	NoContainer ContainerMethod = "none"
	Docker      ContainerMethod = "docker"
	Singularity ContainerMethod = "singularity"
)

// ParseContainerMethod maps "" to NoContainer and rejects unknown names.
func ParseContainerMethod(s string) (ContainerMethod, error) {
	switch m := ContainerMethod(s); m {
	case "":
		return NoContainer, nil
	case NoContainer, Docker, Singularity:
		return m, nil
	}
	return "", errors.Errorf("unsupported container method: %q", s)
}

// Images maps each script kind to the container image it runs in.
type Images map[ScriptKind]string
