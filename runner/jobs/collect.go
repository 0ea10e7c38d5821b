package jobs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/h2non/filetype"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	errs "github.com/stanplayground/jobrunner/common/errors"
	"github.com/stanplayground/jobrunner/common/stats"
	"github.com/stanplayground/jobrunner/runner/stanout"
)

// MaxOutputFiles is the most files a job may leave behind for upload.
const MaxOutputFiles = 5

// collect uploads what a successful process produced.
func (j *Job) collect(ctx context.Context, kind ScriptKind, dir string) error {
	if kind == Stanie {
		return j.collectChains(ctx, dir)
	}
	names, err := OutputFiles(dir, j.desc.ScriptFileName)
	if err != nil {
		return errs.Wrap(errs.Output, err, "listing output files")
	}
	if len(names) > MaxOutputFiles {
		return errs.Errorf(errs.Output, "too many output files: %d", len(names))
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		g.Go(func() error {
			content, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				return err
			}
			return j.upload(ctx, name, content)
		})
	}
	if err := g.Wait(); err != nil {
		return errs.Wrap(errs.Output, err, "uploading output files")
	}
	return nil
}

// collectChains parses the sampler's CSVs and uploads them as <script>.out.
func (j *Job) collectChains(ctx context.Context, dir string) error {
	chains, err := stanout.ParseOutputDir(filepath.Join(dir, stanOutputDir))
	if err != nil {
		return errs.Wrap(errs.Output, err, "parsing sampler output")
	}
	b, err := json.Marshal(chains)
	if err != nil {
		return errs.Wrap(errs.Output, err, "encoding sampler output")
	}
	if err := j.upload(ctx, j.desc.ScriptFileName+".out", b); err != nil {
		return errs.Wrap(errs.Output, err, "uploading sampler output")
	}
	return nil
}

func (j *Job) upload(ctx context.Context, name string, content []byte) error {
	if err := j.deps.Client.SetProjectFile(ctx, j.desc.WorkspaceID, j.desc.ProjectID, name, content); err != nil {
		return err
	}
	j.stat.Counter(stats.JobUploadedFilesCounter).Inc(1)
	j.logger().WithFields(log.Fields{
		"file": name,
		"size": len(content),
		"mime": contentType(content),
	}).Info("Uploaded output file")
	return nil
}

// contentType sniffs binary formats such as images from their magic numbers.
func contentType(content []byte) string {
	kind, err := filetype.Match(content)
	if err != nil || kind == filetype.Unknown {
		return "text/plain"
	}
	return kind.MIME.Value
}

// OutputFiles lists the regular files directly in dir other than the
// script and run.sh.
func OutputFiles(dir, script string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || e.Name() == script || e.Name() == wrapperName {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
