package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/spf13/cobra"
)

// IPD-IMGT/HLA allele list of the latest release
const (
	alleleListURL  = "https://raw.githubusercontent.com/ANHIG/IMGTHLA/Latest/Allelelist.txt"
	alleleListName = "Allelelist.txt"
	maxRetries     = 4
)

func newDownloadCmd() *cobra.Command {
	var (
		outputDir string
		url       string
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the IPD-IMGT/HLA allele list",
		Long: `Download the IPD-IMGT/HLA allele list used to reject unknown HLA alleles.

After downloading, vibe-mhc automatically detects and uses the list for human
patients.`,
		Example: `  # Download to ~/.vibe-mhc/
  vibe-mhc download

  # Download to a custom directory
  vibe-mhc download --output /data/imgt`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputDir == "" {
				outputDir = defaultDataDir()
				if outputDir == "" {
					return fmt.Errorf("cannot determine home directory")
				}
			}
			if err := os.MkdirAll(outputDir, 0755); err != nil {
				return fmt.Errorf("cannot create directory %s: %w", outputDir, err)
			}

			out := cmd.OutOrStdout()
			dest := filepath.Join(outputDir, alleleListName)
			if force {
				os.Remove(dest)
			}

			fmt.Fprintf(out, "Downloading IPD-IMGT/HLA allele list...\n")
			fmt.Fprintf(out, "Destination: %s\n\n", outputDir)
			if err := downloadFile(out, url, dest); err != nil {
				return fmt.Errorf("downloading allele list: %w", err)
			}

			fmt.Fprintf(out, "\nDownload complete!\n")
			return nil
		},
	}

	cmd.Flags().StringVar(&outputDir, "output", "", "Output directory (default: ~/.vibe-mhc/)")
	cmd.Flags().StringVar(&url, "url", alleleListURL, "Allele list URL")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing allele list")

	return cmd
}

// downloadFile downloads a file from URL to the destination path with progress.
// Failed requests are retried with exponential backoff.
func downloadFile(out io.Writer, url, destPath string) error {
	// Check if file already exists
	if info, err := os.Stat(destPath); err == nil {
		fmt.Fprintf(out, "  %s already exists (%s), skipping\n", filepath.Base(destPath), formatSize(info.Size()))
		return nil
	}

	fmt.Fprintf(out, "  Downloading %s...\n", filepath.Base(destPath))

	client := &http.Client{
		Timeout: 10 * time.Minute,
	}

	var downloaded int64
	fetch := func() error {
		downloaded = 0
		return fetchTo(client, out, url, destPath, &downloaded)
	}
	notify := func(err error, wait time.Duration) {
		fmt.Fprintf(out, "\n    Retrying in %s: %v\n", wait.Round(time.Millisecond), err)
	}

	retry := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries)
	if err := backoff.RetryNotify(fetch, retry, notify); err != nil {
		return err
	}

	fmt.Fprintf(out, "    Done: %s\n", formatSize(downloaded))
	return nil
}

// fetchTo performs one download attempt through a temporary file.
func fetchTo(client *http.Client, out io.Writer, url, destPath string, downloaded *int64) error {
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP error: %s", resp.Status)
	}

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	pw := &progressWriter{
		out:        out,
		total:      resp.ContentLength,
		downloaded: downloaded,
		lastPrint:  time.Now(),
	}

	_, err = io.Copy(f, io.TeeReader(resp.Body, pw))
	f.Close()

	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("download failed: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

// progressWriter tracks download progress.
type progressWriter struct {
	out        io.Writer
	total      int64
	downloaded *int64
	lastPrint  time.Time
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n := len(p)
	*pw.downloaded += int64(n)

	// Print progress every second
	if time.Since(pw.lastPrint) > time.Second {
		if pw.total > 0 {
			pct := float64(*pw.downloaded) / float64(pw.total) * 100
			fmt.Fprintf(pw.out, "\r    Progress: %s / %s (%.1f%%)  ",
				formatSize(*pw.downloaded), formatSize(pw.total), pct)
		} else {
			fmt.Fprintf(pw.out, "\r    Progress: %s  ", formatSize(*pw.downloaded))
		}
		pw.lastPrint = time.Now()
	}

	return n, nil
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FindAlleleList returns the downloaded allele list, or "" when there is none.
func FindAlleleList() string {
	dir := defaultDataDir()
	if dir == "" {
		return ""
	}
	path := filepath.Join(dir, alleleListName)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
