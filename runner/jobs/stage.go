package jobs

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	errs "github.com/stanplayground/jobrunner/common/errors"
	"github.com/stanplayground/jobrunner/common/stats"
	"github.com/stanplayground/jobrunner/runner/coordinator"
)

func workingDir(root, jobID string) string {
	return filepath.Join(root, jobID)
}

// execute takes the job from staging to collected outputs. The returned
// error is the job's failure reason.
func (j *Job) execute() error {
	kind, err := KindOf(j.desc.ScriptFileName)
	if err != nil {
		return errs.NewError(errs.Execution, err)
	}
	dir := j.WorkingDir()
	cmd, err := buildCommand(j.deps.ContainerMethod, j.deps.Images[kind], dir, j.grant)
	if err != nil {
		return errs.NewError(errs.Execution, err)
	}

	start := time.Now()
	err = j.stage(j.ctx, kind, dir)
	j.stat.Latency(stats.JobStagingLatency_ms).Observe(time.Since(start))
	if err != nil {
		return err
	}

	if err := j.invoke(cmd); err != nil {
		return err
	}
	return j.collect(j.ctx, kind, dir)
}

// stage creates the working directory, which must not exist yet, and writes
// the script, its dependencies and run.sh into it.
func (j *Job) stage(ctx context.Context, kind ScriptKind, dir string) error {
	log := j.logger().WithField("dir", dir)
	if err := os.MkdirAll(j.deps.JobsRoot, 0777); err != nil {
		return errs.Wrap(errs.Staging, err, "creating jobs root")
	}
	if err := os.Mkdir(dir, 0777); err != nil {
		return errs.Wrap(errs.Staging, err, "creating working directory")
	}

	script, err := j.fetchFile(ctx, j.desc.ScriptFileName)
	if err != nil {
		return errs.NewError(errs.Staging, err)
	}
	if err := writeFile(dir, j.desc.ScriptFileName, script); err != nil {
		return errs.Wrap(errs.Staging, err, "writing script")
	}

	runCommand := scriptCommand(kind, j.desc.ScriptFileName)
	switch {
	case kind == Stanie:
		spec, err := ParseStanie(script)
		if err != nil {
			return errs.NewError(errs.Staging, err)
		}
		if err := j.fetchAll(ctx, dir, []string{spec.Stan, spec.Data}); err != nil {
			return errs.NewError(errs.Staging, err)
		}
		if err := writeFile(dir, stanDriverName, []byte(spec.Driver(j.grant.NumCPUs))); err != nil {
			return errs.Wrap(errs.Staging, err, "writing driver")
		}
		if err := os.Mkdir(filepath.Join(dir, stanOutputDir), 0777); err != nil {
			return errs.Wrap(errs.Staging, err, "creating output directory")
		}
	case kind.scansDependencies():
		files, err := j.deps.Client.GetProjectFiles(ctx, j.desc.ProjectID)
		if err != nil {
			return errs.Wrap(errs.Staging, err, "listing project files")
		}
		names := make([]string, 0, len(files))
		for _, f := range files {
			names = append(names, f.FileName)
		}
		deps := Dependencies(kind, j.desc.ScriptFileName, string(script), names)
		log.WithField("dependencies", deps).Debug("Staging dependencies")
		if err := j.fetchAll(ctx, dir, deps); err != nil {
			return errs.NewError(errs.Staging, err)
		}
	}

	if err := writeFile(dir, wrapperName, []byte(wrapperScript(runCommand))); err != nil {
		return errs.Wrap(errs.Staging, err, "writing wrapper")
	}
	log.Info("Staged job")
	return nil
}

func (j *Job) fetchFile(ctx context.Context, name string) ([]byte, error) {
	f, err := j.deps.Client.GetProjectFile(ctx, j.desc.ProjectID, name)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s", name)
	}
	return coordinator.FetchFileContent(ctx, j.deps.Client, j.desc.WorkspaceID, f)
}

// fetchAll fetches and writes names concurrently; all must succeed.
func (j *Job) fetchAll(ctx context.Context, dir string, names []string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		g.Go(func() error {
			content, err := j.fetchFile(ctx, name)
			if err != nil {
				return err
			}
			return errors.Wrapf(writeFile(dir, name, content), "writing %s", name)
		})
	}
	return g.Wait()
}

// writeFile writes name below dir, refusing names that escape it.
func writeFile(dir, name string, content []byte) error {
	p := filepath.Join(dir, name)
	if rel, err := filepath.Rel(dir, p); err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return errors.Errorf("invalid file name %q", name)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0777); err != nil {
		return err
	}
	return os.WriteFile(p, content, 0666)
}

var (
	pyFromImport = regexp.MustCompile(`(?m)^[ \t]*from[ \t]+([A-Za-z_][\w.]*)[ \t]+import\b`)
	pyImport     = regexp.MustCompile(`(?m)^[ \t]*import[ \t]+([A-Za-z_][\w.]*(?:[ \t]*,[ \t]*[A-Za-z_][\w.]*)*)`)
)

// Dependencies picks the project files a script refers to. It is a textual
// heuristic: a file counts when its name appears anywhere in the script
// text, and for python also when a module of that name is imported. It can
// miss dynamically built names and include coincidental matches.
func Dependencies(kind ScriptKind, scriptName, script string, projectFiles []string) []string {
	if !kind.scansDependencies() {
		return nil
	}
	available := mapset.NewThreadUnsafeSet()
	for _, f := range projectFiles {
		if f != scriptName {
			available.Add(f)
		}
	}
	found := mapset.NewThreadUnsafeSet()
	for _, f := range projectFiles {
		if f != scriptName && strings.Contains(script, f) {
			found.Add(f)
		}
	}
	if kind == Python {
		for _, m := range pythonModules(script) {
			if f := strings.ReplaceAll(m, ".", "/") + ".py"; available.Contains(f) {
				found.Add(f)
			}
		}
	}
	out := make([]string, 0, found.Cardinality())
	for _, f := range found.ToSlice() {
		out = append(out, f.(string))
	}
	sort.Strings(out)
	return out
}

func pythonModules(script string) []string {
	var mods []string
	for _, m := range pyFromImport.FindAllStringSubmatch(script, -1) {
		mods = append(mods, m[1])
	}
	for _, m := range pyImport.FindAllStringSubmatch(script, -1) {
		for _, name := range strings.Split(m[1], ",") {
			mods = append(mods, strings.TrimSpace(name))
		}
	}
	return mods
}
