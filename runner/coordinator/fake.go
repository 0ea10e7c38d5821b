package coordinator

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// PropertyUpdate is one SetScriptJobProperty call seen by a Fake.
type PropertyUpdate struct {
	JobID    string
	Property string
	Value    string
}

// Fake is an in-memory Client for tests and local dry runs.
type Fake struct {
	mu         sync.Mutex
	files      map[string]map[string]ProjectFile
	blobs      map[string][]byte
	uploads    map[string]map[string][]byte
	properties []PropertyUpdate
	pending    []PendingJob

	// When set, SetScriptJobProperty returns its error instead of recording.
	FailProperty func(jobID, property, value string) error
	// When set, GetPendingScriptJobs returns it.
	FailPending error
}

func NewFake() *Fake {
	return &Fake{
		files:   make(map[string]map[string]ProjectFile),
		blobs:   make(map[string][]byte),
		uploads: make(map[string]map[string][]byte),
	}
}

// AddFile stores content inline.
func (f *Fake) AddFile(workspaceID, projectID, fileName, content string) {
	f.AddProjectFile(ProjectFile{WorkspaceID: workspaceID, ProjectID: projectID, FileName: fileName, Content: "data:" + content, Size: int64(len(content))})
}

// AddBlobFile stores content as a blob referenced by its sha1.
func (f *Fake) AddBlobFile(workspaceID, projectID, fileName string, content []byte) {
	sum := sha1.Sum(content)
	key := hex.EncodeToString(sum[:])
	f.mu.Lock()
	f.blobs[key] = append([]byte(nil), content...)
	f.mu.Unlock()
	f.AddProjectFile(ProjectFile{WorkspaceID: workspaceID, ProjectID: projectID, FileName: fileName, Content: "blob:" + key, Size: int64(len(content))})
}

// AddProjectFile stores pf as given.
func (f *Fake) AddProjectFile(pf ProjectFile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.files[pf.ProjectID] == nil {
		f.files[pf.ProjectID] = make(map[string]ProjectFile)
	}
	f.files[pf.ProjectID][pf.FileName] = pf
}

// AddPendingJob queues a job for GetPendingScriptJobs.
func (f *Fake) AddPendingJob(j PendingJob) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, j)
}

func (f *Fake) GetProjectFile(ctx context.Context, projectID, fileName string) (*ProjectFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pf, ok := f.files[projectID][fileName]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "project file %s", fileName)
	}
	return &pf, nil
}

func (f *Fake) GetDataBlob(ctx context.Context, workspaceID, projectID, sha1 string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blobs[sha1]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "data blob %s", sha1)
	}
	return append([]byte(nil), b...), nil
}

func (f *Fake) GetProjectFiles(ctx context.Context, projectID string) ([]ProjectFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ProjectFile
	for _, pf := range f.files[projectID] {
		out = append(out, pf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileName < out[j].FileName })
	return out, nil
}

func (f *Fake) SetProjectFile(ctx context.Context, workspaceID, projectID, fileName string, content []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploads[projectID] == nil {
		f.uploads[projectID] = make(map[string][]byte)
	}
	f.uploads[projectID][fileName] = append([]byte(nil), content...)
	return nil
}

func (f *Fake) SetScriptJobProperty(ctx context.Context, workspaceID, projectID, jobID, property, value string) error {
	if f.FailProperty != nil {
		if err := f.FailProperty(jobID, property, value); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.properties = append(f.properties, PropertyUpdate{JobID: jobID, Property: property, Value: value})
	return nil
}

// GetPendingScriptJobs hands out each queued job once.
func (f *Fake) GetPendingScriptJobs(ctx context.Context) ([]PendingJob, error) {
	if f.FailPending != nil {
		return nil, f.FailPending
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.pending
	f.pending = nil
	return out, nil
}

// Uploads returns the files uploaded to projectID.
func (f *Fake) Uploads(projectID string) map[string][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string][]byte)
	for k, v := range f.uploads[projectID] {
		out[k] = v
	}
	return out
}

// Properties returns every property update for jobID, in call order.
func (f *Fake) Properties(jobID string) []PropertyUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []PropertyUpdate
	for _, p := range f.properties {
		if p.JobID == jobID {
			out = append(out, p)
		}
	}
	return out
}

// LastProperty returns the latest value written for jobID's property.
func (f *Fake) LastProperty(jobID, property string) (string, bool) {
	props := f.Properties(jobID)
	for i := len(props) - 1; i >= 0; i-- {
		if props[i].Property == property {
			return props[i].Value, true
		}
	}
	return "", false
}
