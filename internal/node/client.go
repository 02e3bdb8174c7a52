package node

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/keyforge/keyforge/internal/hive"
)

// ErrTransport reports a retryable network failure talking to Hive
// (spec.md §7's Transient/Transport category: "connect refused, DNS
// failure, timeout — the node backs off and retries, it does not exit").
type ErrTransport struct {
	Op  string
	Err error
}

func (e ErrTransport) Error() string { return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err) }
func (e ErrTransport) Unwrap() error { return e.Err }

// Client is Node's HTTP client against Hive, with the connect/overall
// deadlines spec.md §5 mandates (5s connect, 30s overall per request).
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

// NewClient builds a Client using cfg's addr/secret/timeouts.
func NewClient(cfg Config) *Client {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.RequestTimeout,
	}
	return &Client{
		baseURL: cfg.HiveAddr,
		secret:  cfg.Secret,
		http:    &http.Client{Transport: transport, Timeout: cfg.RequestTimeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	if c.secret != "" {
		req.Header.Set("X-Hive-Secret", c.secret)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return ErrTransport{Op: req.URL.Path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return ErrTransport{Op: req.URL.Path, Err: fmt.Errorf("hive returned %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("hive rejected %s: %s (status %d)", req.URL.Path, string(data), resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ActiveJob mirrors hive.ActiveJob's wire shape.
type ActiveJob struct {
	JobId       string          `json:"job_id"`
	Description json.RawMessage `json:"description"`
}

// GetActiveJob polls Hive for an assignment. A nil ActiveJob with a nil
// error means no job is currently eligible.
func (c *Client) GetActiveJob(ctx context.Context) (*ActiveJob, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/get_active_job", nil)
	if err != nil {
		return nil, err
	}
	var body struct {
		JobId       *string         `json:"job_id"`
		Description json.RawMessage `json:"description"`
		Job         *struct{}       `json:"job"`
	}
	if err := c.do(req, &body); err != nil {
		return nil, err
	}
	if body.JobId == nil {
		return nil, nil
	}
	return &ActiveJob{JobId: *body.JobId, Description: body.Description}, nil
}

// SubmitResult reports a candidate layout and its score. It returns whether
// Hive accepted it as the new per-job best.
func (c *Client) SubmitResult(ctx context.Context, jobId, nodeId, layout string, score float64) (bool, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"job_id": jobId, "node_id": nodeId, "layout": layout, "score": score,
	})
	if err != nil {
		return false, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/submit_result", payload)
	if err != nil {
		return false, err
	}
	var body struct {
		Accepted bool `json:"accepted"`
	}
	if err := c.do(req, &body); err != nil {
		return false, err
	}
	return body.Accepted, nil
}

// Heartbeat reports liveness and hardware stats for nodeId, currently
// working jobId (empty if idle).
func (c *Client) Heartbeat(ctx context.Context, nodeId, jobId, cpuSignature string, cpuCores int, opsPerSec float64) error {
	payload, err := json.Marshal(map[string]interface{}{
		"node_id": nodeId, "job_id": jobId,
		"cpu_signature": cpuSignature, "cpu_cores": cpuCores, "ops_per_sec": opsPerSec,
	})
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/heartbeat", payload)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// FetchDataIfStale downloads relPath from Hive into localRoot/relPath only
// if the local copy's sha256 differs from wantSHA256 (or is absent),
// satisfying spec.md §4.6's "data sync by sha256" step. It refuses to
// write outside localRoot.
func (c *Client) FetchDataIfStale(ctx context.Context, localRoot, relPath, wantSHA256 string) (string, error) {
	dest, err := hive.JailedPath(localRoot, relPath)
	if err != nil {
		return "", err
	}

	if wantSHA256 != "" {
		if existing, err := sha256File(dest); err == nil && existing == wantSHA256 {
			return dest, nil
		}
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/fetch_data?path="+relPath, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", ErrTransport{Op: "fetch_data", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("fetch_data %s: status %d: %s", relPath, resp.StatusCode, string(data))
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", err
	}
	tmp := dest + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(out, h), resp.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return "", err
	}
	out.Close()

	got := hex.EncodeToString(h.Sum(nil))
	if wantSHA256 != "" && got != wantSHA256 {
		os.Remove(tmp)
		return "", fmt.Errorf("sha256 mismatch for %s: want %s got %s", relPath, wantSHA256, got)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
