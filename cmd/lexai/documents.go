package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <document-id>",
	Short: "Print a document's record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, a, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		d, err := a.Library.Document(ctx, ownerID, args[0])
		if err != nil {
			return err
		}
		color.Cyan("%s", d.Filename)
		fmt.Printf("  ID:         %s\n", d.ID)
		fmt.Printf("  Title:      %s\n", d.Title)
		if d.Author != "" {
			fmt.Printf("  Author:     %s\n", d.Author)
		}
		fmt.Printf("  Pages:      %d\n", d.PageCount)
		fmt.Printf("  Chunks:     %d\n", d.ChunkCount)
		fmt.Printf("  Characters: %d\n", d.CharacterCount)
		fmt.Printf("  Size:       %d bytes\n", d.FileSizeBytes)
		fmt.Printf("  Uploaded:   %s\n", d.UploadedAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

var chunksCmd = &cobra.Command{
	Use:   "chunks <document-id>",
	Short: "Print a document's stored chunks in order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, a, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		chunks, err := a.Library.Chunks(ctx, ownerID, args[0])
		if err != nil {
			return err
		}
		if len(chunks) == 0 {
			color.Yellow("No chunks stored for document %s", args[0])
			return nil
		}

		for _, c := range chunks {
			md := c.Metadata
			color.Cyan("--- chunk %d [%d:%d] ---", md.ChunkID, md.StartChar, md.EndChar)
			fmt.Println(md.Text)
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Delete a document's vectors and record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, a, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := a.Library.Delete(ctx, ownerID, args[0]); err != nil {
			return err
		}
		color.Green("Deleted %s", args[0])
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vector index statistics and the owner's documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, a, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		stats, err := a.Library.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Vector store: %s (%s)\n", a.Config.VectorStore.Backend, a.Config.VectorStore.Collection)
		fmt.Printf("  Vectors:   %d\n", stats.TotalVectors)
		fmt.Printf("  Dimension: %d\n", stats.Dimension)
		fmt.Printf("  Fullness:  %.1f%%\n", stats.Fullness*100)
		fmt.Printf("Embedder:    %s\n", a.Embedder.Name())

		docs, err := a.Library.Documents(ctx, ownerID)
		if err != nil {
			return err
		}
		fmt.Println()
		fmt.Printf("Documents for %s: %d\n", ownerID, len(docs))
		for _, d := range docs {
			fmt.Printf("  %s  %s  %s\n",
				d.ID,
				color.CyanString(d.Filename),
				color.HiBlackString("%d chunks, %s", d.ChunkCount, d.UploadedAt.Format("2006-01-02 15:04")))
		}
		return nil
	},
}
