// forumsearch-reindex triggers a full index rebuild through the admin API
// and follows the job until it finishes.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"forumsearch/pkg/model"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "forumsearch API base URL")
	token := flag.String("token", os.Getenv("FORUMSEARCH_ADMIN_TOKEN"), "admin bearer token")
	wait := flag.Bool("wait", true, "wait for the rebuild to finish")
	interval := flag.Duration("interval", 2*time.Second, "progress poll interval")
	timeout := flag.Duration("timeout", time.Hour, "overall timeout")
	flag.Parse()

	if *token == "" {
		fmt.Fprintln(os.Stderr, "admin token required (flag -token or FORUMSEARCH_ADMIN_TOKEN)")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := &client{baseURL: *baseURL, token: *token}

	accepted, err := client.startRebuild(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start rebuild: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("rebuild started, job %s\n", accepted.JobID)

	if !*wait {
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "timed out waiting for rebuild")
			os.Exit(1)
		case <-ticker.C:
		}

		job, err := client.getJob(ctx, accepted.JobID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to fetch job: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("status=%s loaded=%d/%d failed=%d\n",
			job.Status, job.DocsLoaded, job.DocsTotal, job.DocsFailed)

		switch job.Status {
		case "completed":
			fmt.Println("rebuild completed")
			return
		case "failed":
			fmt.Fprintf(os.Stderr, "rebuild failed: %s\n", job.Error)
			os.Exit(1)
		case "canceled":
			fmt.Fprintln(os.Stderr, "rebuild canceled")
			os.Exit(1)
		}
	}
}

type client struct {
	baseURL string
	token   string
}

func (c *client) startRebuild(ctx context.Context) (*model.ReindexAccepted, error) {
	var out model.ReindexAccepted
	if err := c.do(ctx, http.MethodPost, "/v1/admin/reindex", http.StatusAccepted, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) getJob(ctx context.Context, jobID string) (*model.ReindexJob, error) {
	var out model.ReindexJob
	if err := c.do(ctx, http.MethodGet, "/v1/admin/reindex/"+jobID, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) do(ctx context.Context, method, path string, wantStatus int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		var apiErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("%s %s: %s (%s)", method, path, apiErr.Message, apiErr.Code)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
