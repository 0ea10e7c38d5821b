// Package coordinator talks to the remote service that owns projects,
// files and script jobs. Every request is signed with the compute resource's
// private key. A missing or unsuccessful response is always an error; this
// layer never retries at the application level.
package coordinator

//go:generate mockgen -source=client.go -package=coordinator -destination=client_mock.go

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// Script job properties written through SetScriptJobProperty.
const (
	PropStatus         = "status"
	PropError          = "error"
	PropConsoleOutput  = "consoleOutput"
	PropElapsedTimeSec = "elapsedTimeSec"
)

// Values of PropStatus.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var ErrNotFound = errors.New("not found")

// ProjectFile is a file's metadata. Content is either "data:<inline text>"
// or "blob:<sha1>" referring to a data blob.
type ProjectFile struct {
	WorkspaceID string `json:"workspaceId"`
	ProjectID   string `json:"projectId"`
	FileName    string `json:"fileName"`
	Content     string `json:"content"`
	Size        int64  `json:"size,omitempty"`
}

// PendingJob is a script job waiting for a compute resource.
type PendingJob struct {
	WorkspaceID       string            `json:"workspaceId"`
	ProjectID         string            `json:"projectId"`
	JobID             string            `json:"scriptJobId"`
	ScriptFileName    string            `json:"scriptFileName"`
	RequiredResources RequiredResources `json:"requiredResources"`
}

type RequiredResources struct {
	NumCPUs    int     `json:"numCpus,omitempty"`
	RAMGB      float64 `json:"ramGb,omitempty"`
	TimeoutSec int     `json:"timeoutSec,omitempty"`
}

type Client interface {
	GetProjectFile(ctx context.Context, projectID, fileName string) (*ProjectFile, error)
	GetDataBlob(ctx context.Context, workspaceID, projectID, sha1 string) ([]byte, error)
	GetProjectFiles(ctx context.Context, projectID string) ([]ProjectFile, error)
	SetProjectFile(ctx context.Context, workspaceID, projectID, fileName string, content []byte) error
	// Node id and name of this compute resource are attached by the client.
	SetScriptJobProperty(ctx context.Context, workspaceID, projectID, jobID, property, value string) error
	GetPendingScriptJobs(ctx context.Context) ([]PendingJob, error)
}

// FetchFileContent resolves a ProjectFile's content, fetching the blob it
// refers to when it is not inline.
func FetchFileContent(ctx context.Context, c Client, workspaceID string, f *ProjectFile) ([]byte, error) {
	switch {
	case strings.HasPrefix(f.Content, "data:"):
		return []byte(strings.TrimPrefix(f.Content, "data:")), nil
	case strings.HasPrefix(f.Content, "blob:"):
		sha1 := strings.TrimPrefix(f.Content, "blob:")
		b, err := c.GetDataBlob(ctx, workspaceID, f.ProjectID, sha1)
		if err != nil {
			return nil, errors.Wrapf(err, "fetching blob %s for %s", sha1, f.FileName)
		}
		return b, nil
	default:
		return nil, errors.Errorf("unexpected content for %s: %.20q", f.FileName, f.Content)
	}
}
