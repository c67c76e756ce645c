package app

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	v0 "github.com/inkwell-sh/inkwell/internal/api/v0"
	"github.com/inkwell-sh/inkwell/internal/poll"
	"github.com/inkwell-sh/inkwell/internal/status"
	"github.com/inkwell-sh/inkwell/internal/upload"
)

var publishCmd = &cobra.Command{
	Use:   "publish <directory>",
	Short: "Publish a local directory to a site",
	Long: `Publish a local directory to a site.

Declares every file to the server, transfers the bytes over the issued
upload URLs, then polls the status endpoint until processing settles.
Exits non-zero when any file ends in an error state.`,
	Args: cobra.ExactArgs(1),
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().String("server", "http://localhost:8080", "Base URL of the publishing API server")
	publishCmd.Flags().String("site", "", "Site ID (required)")
	publishCmd.Flags().String("token", "", "Bearer token of the site owner (required)")
	publishCmd.Flags().Duration("timeout", poll.DefaultTimeout, "How long to wait for processing to settle")
	publishCmd.Flags().Duration("interval", poll.DefaultInterval, "Delay between status polls")

	for _, flag := range []string{"site", "token"} {
		if err := publishCmd.MarkFlagRequired(flag); err != nil {
			panic(err)
		}
	}
}

// apiClient is the thin HTTP client the publish and status commands share.
type apiClient struct {
	server string
	siteID uuid.UUID
	token  string
	http   *http.Client
}

func newAPIClient(cmd *cobra.Command) (*apiClient, error) {
	server, _ := cmd.Flags().GetString("server")
	siteStr, _ := cmd.Flags().GetString("site")
	token, _ := cmd.Flags().GetString("token")

	siteID, err := uuid.Parse(siteStr)
	if err != nil {
		return nil, fmt.Errorf("invalid site id %q: %w", siteStr, err)
	}

	return &apiClient{
		server: strings.TrimRight(server, "/"),
		siteID: siteID,
		token:  token,
		http:   &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	url := fmt.Sprintf("%s/api/v0/sites/%s%s", c.server, c.siteID, path)
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr v0.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// fetchStatus retrieves the owner status view.
func (c *apiClient) fetchStatus(ctx context.Context) (*v0.OwnerStatusResponse, error) {
	var out v0.OwnerStatusResponse
	if err := c.do(ctx, http.MethodGet, "/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dir := args[0]

	client, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")
	interval, _ := cmd.Flags().GetDuration("interval")

	files, err := collectFiles(dir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no files to publish under %s", dir)
	}
	slog.Info("Publishing", "directory", dir, "files", len(files))

	var batch upload.BatchResponse
	req := upload.BatchRequest{Files: make([]upload.FileDecl, 0, len(files))}
	for _, f := range files {
		req.Files = append(req.Files, f.decl)
	}
	if err := client.do(ctx, http.MethodPost, "/uploads", req, &batch); err != nil {
		return fmt.Errorf("failed to request upload batch: %w", err)
	}

	byPath := make(map[string]localFile, len(files))
	for _, f := range files {
		byPath[f.decl.Path] = f
	}
	for _, issued := range batch.Items {
		f, ok := byPath[issued.Path]
		if !ok {
			return fmt.Errorf("server issued upload for unknown path %q", issued.Path)
		}
		if err := client.transfer(ctx, issued, f.absPath); err != nil {
			return fmt.Errorf("failed to upload %s: %w", issued.Path, err)
		}
		slog.Debug("Uploaded", "path", issued.Path)
	}
	slog.Info("Transfer complete, waiting for processing", "files", len(batch.Items))

	summary, err := poll.Wait(ctx, func(ctx context.Context) (*status.Summary, error) {
		st, err := client.fetchStatus(ctx)
		if err != nil {
			return nil, err
		}
		return &status.Summary{Counts: st.Counts, Overall: st.Overall}, nil
	}, poll.Options{Interval: interval, Timeout: timeout})
	if errors.Is(err, poll.ErrTimeout) {
		// Name what is still in flight so the caller knows what to watch.
		if st, fetchErr := client.fetchStatus(ctx); fetchErr == nil {
			pending := pendingPaths(st.Items)
			slog.Error("Timed out waiting for processing",
				"pendingCount", len(pending), "pending", pending)
			return fmt.Errorf("%w: %d items still pending: %s",
				poll.ErrTimeout, len(pending), strings.Join(pending, ", "))
		}
		return err
	}
	if err != nil {
		return err
	}

	if summary.Overall == status.OverallError {
		st, err := client.fetchStatus(ctx)
		if err == nil {
			for _, item := range st.Items {
				if item.Error != "" {
					slog.Error("Item failed", "path", item.Path, "error", item.Error)
				}
			}
		}
		return fmt.Errorf("publish finished with %d failed items", summary.Counts.Failed)
	}

	slog.Info("Publish complete", "files", summary.Counts.Success)
	return nil
}

// transfer PUTs one file's bytes to its issued capability URL.
func (c *apiClient) transfer(ctx context.Context, issued upload.IssuedUpload, absPath string) error {
	data, err := os.ReadFile(absPath)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, issued.Upload.Method, issued.Upload.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	for k, v := range issued.Upload.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("storage returned %d", resp.StatusCode)
	}
	return nil
}

// pendingPaths lists the paths of items that have not reached a terminal
// state yet.
func pendingPaths(items []status.ItemStatus) []string {
	var pending []string
	for _, item := range items {
		switch item.State {
		case status.ItemStateSuccess, status.ItemStateError:
		default:
			pending = append(pending, item.Path)
		}
	}
	return pending
}

type localFile struct {
	decl    upload.FileDecl
	absPath string
}

// collectFiles walks dir and declares every regular file, skipping hidden
// entries. Paths are declared relative to dir with forward slashes.
func collectFiles(dir string) ([]localFile, error) {
	var files []localFile
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") && path != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(data)

		files = append(files, localFile{
			decl: upload.FileDecl{
				Path:        filepath.ToSlash(rel),
				Size:        int64(len(data)),
				ContentHash: hex.EncodeToString(sum[:]),
			},
			absPath: path,
		})
		return nil
	})
	return files, err
}
