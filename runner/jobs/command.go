package jobs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/stanplayground/jobrunner/runner/slots"
)

const (
	wrapperName      = "run.sh"
	containerWorkdir = "/working"
)

// scriptCommand is the shell line run.sh uses to start the script.
func scriptCommand(kind ScriptKind, script string) string {
	switch kind {
	case Python:
		return "python3 " + shellQuote(script)
	case R:
		return "Rscript " + shellQuote(script)
	case Stanie:
		return "python3 " + stanDriverName
	default:
		return "bash " + shellQuote(script)
	}
}

// wrapperScript runs command and leaves every file world writable on exit,
// whatever user the container ran as.
func wrapperScript(command string) string {
	return "#!/bin/bash\n\ntrap 'chmod -R 777 .' EXIT\n\n" + command + "\n"
}

// buildCommand returns the argv running run.sh in dir under method.
func buildCommand(method ContainerMethod, image, dir string, grant slots.Grant) ([]string, error) {
	switch method {
	case NoContainer:
		return []string{"bash", wrapperName}, nil
	case Docker:
		if image == "" {
			return nil, errors.New("no docker image configured for this script type")
		}
		return []string{
			"docker", "run", "--rm",
			"-v", dir + ":" + containerWorkdir,
			"-w", containerWorkdir,
			"--cpus", strconv.Itoa(grant.NumCPUs),
			"--memory", fmt.Sprintf("%gg", grant.RAMGB),
			image,
			"-c", "bash " + wrapperName,
		}, nil
	case Singularity:
		if image == "" {
			return nil, errors.New("no singularity image configured for this script type")
		}
		return []string{
			"singularity", "exec", "-C",
			"--pwd", containerWorkdir,
			"--bind", dir + ":" + containerWorkdir,
			image,
			"bash", wrapperName,
		}, nil
	}
	return nil, errors.Errorf("unsupported container method: %q", method)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
