package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/lexai-study/lexai-retrieval/internal/library"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Extract, chunk, embed and store documents",
	Long: `Indexes each file for the current owner.

PDF files are extracted page by page; any other file must be UTF-8 text.
A file that fails is reported and the remaining files are still indexed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

type failedFile struct {
	Path   string
	Reason string
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, a, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	start := time.Now()
	bar := newProgressBar(len(args), "Indexing")

	var (
		chunks int
		done   []*library.UploadResult
		failed []failedFile
	)
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			failed = append(failed, failedFile{path, err.Error()})
			_ = bar.Add(1)
			continue
		}

		res, err := a.Library.Upload(ctx, library.UploadRequest{
			OwnerID:  ownerID,
			Filename: filepath.Base(path),
			Data:     data,
		})
		_ = bar.Add(1)
		if err != nil {
			failed = append(failed, failedFile{path, err.Error()})
			if ctx.Err() != nil {
				break
			}
			continue
		}
		done = append(done, res)
		chunks += res.Record.ChunkCount
	}
	_ = bar.Finish()

	fmt.Println()
	for _, res := range done {
		fmt.Printf("  %s %s (%s, %d chunks)\n",
			color.GreenString("✓"), res.Record.Filename, res.Record.ID, res.Record.ChunkCount)
	}
	for _, f := range failed {
		fmt.Printf("  %s %s: %s\n", color.RedString("✗"), f.Path, f.Reason)
	}

	fmt.Println()
	fmt.Printf("Indexed %d/%d files, %d chunks in %s\n",
		len(done), len(args), chunks, time.Since(start).Round(time.Millisecond))

	if len(done) == 0 {
		return fmt.Errorf("no files were indexed")
	}
	return nil
}
