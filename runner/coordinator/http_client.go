package coordinator

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sethgrid/pester"
	log "github.com/sirupsen/logrus"
)

// DefaultHttpTries is 1: a failed request fails the operation in flight.
// Raising it lets pester retry transport errors and 5xx answers; other
// non-200 answers and success:false are never retried.
const DefaultHttpTries = 1

// DefaultHttpTimeout bounds every coordinator request, including the ones
// made while a job holds a slot but has no run timer yet.
const DefaultHttpTimeout = 30 * time.Second

// File content encodings on the wire. Text travels as is, anything that is
// not valid UTF-8 as base64.
const (
	EncodingUTF8   = "utf8"
	EncodingBase64 = "base64"
)

const apiPath = "/api/compute-resource"

type Config struct {
	URL               string
	ComputeResourceID string
	// Hex encoded ed25519 seed.
	PrivateKey string
	NodeID     string
	NodeName   string
	Tries      int
	Timeout    time.Duration
}

// Doer is satisfied by *http.Client and *pester.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

func MakePesterClient(tries int, timeout time.Duration) *pester.Client {
	client := pester.New()
	client.Backoff = pester.ExponentialBackoff
	if tries < 1 {
		tries = DefaultHttpTries
	}
	client.MaxRetries = tries
	if timeout <= 0 {
		timeout = DefaultHttpTimeout
	}
	client.Timeout = timeout
	client.LogHook = func(e pester.ErrEntry) {
		log.Errorf("Retrying coordinator request after failed attempt: %+v", e)
	}
	return client
}

type httpClient struct {
	cfg    Config
	key    ed25519.PrivateKey
	client Doer
}

// NewHTTPClient builds a Client speaking JSON over HTTP, using a pester
// client configured from cfg.
func NewHTTPClient(cfg Config) (Client, error) {
	return NewCustomHTTPClient(cfg, MakePesterClient(cfg.Tries, cfg.Timeout))
}

func NewCustomHTTPClient(cfg Config, doer Doer) (Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("coordinator url not set")
	}
	if cfg.ComputeResourceID == "" {
		return nil, errors.New("compute resource id not set")
	}
	key, err := ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	cfg.URL = strings.TrimSuffix(cfg.URL, "/")
	return &httpClient{cfg: cfg, key: key, client: doer}, nil
}

// ParsePrivateKey decodes a hex ed25519 seed.
func ParsePrivateKey(s string) (ed25519.PrivateKey, error) {
	seed, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "decoding private key")
	}
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Errorf("private key must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// GenerateKeyPair returns a new hex encoded (public, private seed) pair.
func GenerateKeyPair() (string, string, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return "", "", err
	}
	return hex.EncodeToString(pub), hex.EncodeToString(priv.Seed()), nil
}

type envelope struct {
	Type         string          `json:"type"`
	Payload      json.RawMessage `json:"payload"`
	FromClientID string          `json:"fromClientId"`
	NodeID       string          `json:"nodeId,omitempty"`
	RequestID    string          `json:"requestId"`
	Timestamp    int64           `json:"timestamp"`
	Signature    string          `json:"signature"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// call posts a signed request of the given type and decodes the JSON answer into resp.
func (c *httpClient) call(ctx context.Context, typ string, payload interface{}, resp interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", typ)
	}
	env := envelope{
		Type:         typ,
		Payload:      body,
		FromClientID: c.cfg.ComputeResourceID,
		NodeID:       c.cfg.NodeID,
		RequestID:    uuid.New().String(),
		Timestamp:    time.Now().UnixNano() / int64(time.Millisecond),
		Signature:    hex.EncodeToString(ed25519.Sign(c.key, body)),
	}
	b, err := json.Marshal(env)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", typ)
	}
	req, err := http.NewRequest(http.MethodPost, c.cfg.URL+apiPath, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")

	log.WithFields(log.Fields{"type": typ, "requestId": env.RequestID}).Debug("Coordinator request")
	r, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s request failed", typ)
	}
	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return errors.Wrapf(err, "reading %s response", typ)
	}
	switch {
	case r.StatusCode == http.StatusNotFound:
		return errors.Wrapf(ErrNotFound, "%s", typ)
	case r.StatusCode != http.StatusOK:
		return errors.Errorf("%s response status %s: %.200s", typ, r.Status, data)
	}
	if err := json.Unmarshal(data, resp); err != nil {
		return errors.Wrapf(err, "decoding %s response", typ)
	}
	return nil
}

func (c *httpClient) GetProjectFile(ctx context.Context, projectID, fileName string) (*ProjectFile, error) {
	var resp struct {
		ProjectFile *ProjectFile `json:"projectFile"`
	}
	payload := map[string]string{"projectId": projectID, "fileName": fileName}
	if err := c.call(ctx, "getProjectFile", payload, &resp); err != nil {
		return nil, err
	}
	if resp.ProjectFile == nil {
		return nil, errors.Wrapf(ErrNotFound, "project file %s", fileName)
	}
	return resp.ProjectFile, nil
}

func (c *httpClient) GetDataBlob(ctx context.Context, workspaceID, projectID, sha1 string) ([]byte, error) {
	var resp struct {
		Content  *string `json:"content"`
		Encoding string  `json:"encoding,omitempty"`
	}
	payload := map[string]string{"workspaceId": workspaceID, "projectId": projectID, "sha1": sha1}
	if err := c.call(ctx, "getDataBlob", payload, &resp); err != nil {
		return nil, err
	}
	if resp.Content == nil {
		return nil, errors.Wrapf(ErrNotFound, "data blob %s", sha1)
	}
	b, err := decodeFileData(*resp.Content, resp.Encoding)
	if err != nil {
		return nil, errors.Wrapf(err, "data blob %s", sha1)
	}
	return b, nil
}

func (c *httpClient) GetProjectFiles(ctx context.Context, projectID string) ([]ProjectFile, error) {
	var resp struct {
		ProjectFiles *[]ProjectFile `json:"projectFiles"`
	}
	if err := c.call(ctx, "getProjectFiles", map[string]string{"projectId": projectID}, &resp); err != nil {
		return nil, err
	}
	if resp.ProjectFiles == nil {
		return nil, errors.New("getProjectFiles: missing projectFiles in response")
	}
	return *resp.ProjectFiles, nil
}

func (c *httpClient) SetProjectFile(ctx context.Context, workspaceID, projectID, fileName string, content []byte) error {
	payload := map[string]string{
		"workspaceId": workspaceID,
		"projectId":   projectID,
		"fileName":    fileName,
	}
	payload["fileData"], payload["fileEncoding"] = encodeFileData(content)
	return c.callSuccess(ctx, "setProjectFile", payload)
}

// encodeFileData sends valid UTF-8 as is and base64 encodes everything else.
func encodeFileData(content []byte) (data, encoding string) {
	if utf8.Valid(content) {
		return string(content), EncodingUTF8
	}
	return base64.StdEncoding.EncodeToString(content), EncodingBase64
}

func decodeFileData(data, encoding string) ([]byte, error) {
	switch encoding {
	case "", EncodingUTF8:
		return []byte(data), nil
	case EncodingBase64:
		b, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, errors.Wrap(err, "decoding base64 content")
		}
		return b, nil
	default:
		return nil, errors.Errorf("unknown content encoding %q", encoding)
	}
}

func (c *httpClient) SetScriptJobProperty(ctx context.Context, workspaceID, projectID, jobID, property, value string) error {
	payload := map[string]string{
		"workspaceId":             workspaceID,
		"projectId":               projectID,
		"scriptJobId":             jobID,
		"property":                property,
		"value":                   value,
		"computeResourceNodeId":   c.cfg.NodeID,
		"computeResourceNodeName": c.cfg.NodeName,
	}
	return c.callSuccess(ctx, "setScriptJobProperty", payload)
}

func (c *httpClient) GetPendingScriptJobs(ctx context.Context) ([]PendingJob, error) {
	var resp struct {
		ScriptJobs *[]PendingJob `json:"scriptJobs"`
	}
	payload := map[string]string{"computeResourceId": c.cfg.ComputeResourceID, "status": StatusPending}
	if err := c.call(ctx, "getScriptJobs", payload, &resp); err != nil {
		return nil, err
	}
	if resp.ScriptJobs == nil {
		return nil, errors.New("getScriptJobs: missing scriptJobs in response")
	}
	return *resp.ScriptJobs, nil
}

func (c *httpClient) callSuccess(ctx context.Context, typ string, payload interface{}) error {
	var resp successResponse
	if err := c.call(ctx, typ, payload, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return errors.Errorf("%s was not successful: %s", typ, resp.Error)
	}
	return nil
}
