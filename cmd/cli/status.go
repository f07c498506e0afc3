package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	statusAPIBase  string
	statusToken    string
	statusProject  string
	statusJSON     bool
)

var (
	statusTitleColor = color.New(color.FgCyan, color.Bold)
	statusErrorColor = color.New(color.FgRed)
	statusDimColor   = color.New(color.FgHiBlack)
)

// documentListEntry mirrors the JSON shape of GET /projects/{id}/documents.
type documentListEntry struct {
	CommitIdentifier string    `json:"commit"`
	Branch           string    `json:"branch"`
	VersionTag       string    `json:"version"`
	Title            string    `json:"title"`
	Tags             []string  `json:"tags"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Shows the documentation versions stored for a project",
	Long: `Queries the living-docs API for the document versions stored for a
project and prints them as a table, or as JSON with --json.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAPIBase, "api", os.Getenv("LIVING_DOCS_API"), "base URL of the living-docs API (or LIVING_DOCS_API)")
	statusCmd.Flags().StringVar(&statusToken, "token", os.Getenv("PROVIDER_TOKEN"), "bearer token for the API (or PROVIDER_TOKEN)")
	statusCmd.Flags().StringVar(&statusProject, "project", "", "project id to query")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON instead of a table")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if statusAPIBase == "" || statusProject == "" {
		return newCLIError(2, fmt.Errorf("--api and --project are required (or set LIVING_DOCS_API)"))
	}

	entries, err := fetchDocumentList(cmd.Context(), statusAPIBase, statusProject, statusToken)
	if err != nil {
		return newCLIError(1, err)
	}

	if statusJSON {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(entries)
	}

	if len(entries) == 0 {
		statusDimColor.Fprintln(cmd.OutOrStdout(), "no document versions found")
		return nil
	}

	statusTitleColor.Fprintf(cmd.OutOrStdout(), "documentation versions for %s\n", statusProject)
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "COMMIT\tBRANCH\tVERSION\tTITLE\tTAGS\tUPDATED")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\t%s\n",
			shortCommit(e.CommitIdentifier), e.Branch, e.VersionTag, e.Title, e.Tags,
			e.UpdatedAt.Format(time.RFC822))
	}
	return w.Flush()
}

func shortCommit(sha string) string {
	if len(sha) <= 7 {
		return sha
	}
	return sha[:7]
}

func fetchDocumentList(ctx context.Context, apiBase, projectID, token string) ([]documentListEntry, error) {
	url := fmt.Sprintf("%s/projects/%s/documents", apiBase, projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d: %s", url, resp.StatusCode, string(body))
	}

	var entries []documentListEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return entries, nil
}
