package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lexai-study/lexai-retrieval/internal/retrieval"
)

type queryFlags struct {
	topK       int
	minScore   float64
	documentID string
}

var (
	searchFlags queryFlags
	askFlags    queryFlags
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Rank the owner's chunks against a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the owner's documents with citations",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	for _, c := range []struct {
		cmd   *cobra.Command
		flags *queryFlags
	}{{searchCmd, &searchFlags}, {askCmd, &askFlags}} {
		c.cmd.Flags().IntVarP(&c.flags.topK, "top-k", "k", 0, "number of results (default from config)")
		c.cmd.Flags().Float64Var(&c.flags.minScore, "min-score", 0, "minimum relevance score 0-1 (default from config)")
		c.cmd.Flags().StringVar(&c.flags.documentID, "document", "", "restrict to one document id")
	}
}

// query builds the retrieval query, using config defaults for unset flags.
func (f queryFlags) query(cmd *cobra.Command, text string, defaults func(string, string, string, int, *float64) retrieval.Query) retrieval.Query {
	var minScore *float64
	if cmd.Flags().Changed("min-score") {
		minScore = &f.minScore
	}
	return defaults(text, ownerID, f.documentID, f.topK, minScore)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, a, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	matches, err := a.Library.Search(ctx, searchFlags.query(cmd, strings.Join(args, " "), a.Query))
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		color.Yellow("No matching chunks found. Try broader terms or a lower --min-score.")
		return nil
	}

	for i, m := range matches {
		printMatch(i+1, m)
	}
	return nil
}

func printMatch(rank int, m retrieval.Match) {
	title := m.Title
	if title == "" {
		title = m.Filename
	}
	fmt.Printf("%s %s %s\n",
		color.New(color.Bold).Sprintf("%d.", rank),
		color.CyanString(title),
		color.HiBlackString("(%s, chunk %d)", m.DocumentID, m.ChunkID))
	fmt.Printf("   score %s  vector %.3f  overlap %d\n",
		color.GreenString("%.3f", m.Score), m.OriginalScore, m.Overlap)
	fmt.Printf("   %s\n\n", snippet(m.Text, 240))
}

func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, a, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	ans, err := a.Ask(ctx, askFlags.query(cmd, strings.Join(args, " "), a.Query))
	if err != nil {
		return err
	}

	fmt.Println(ans.Text)
	if len(ans.Citations) == 0 {
		return nil
	}

	fmt.Println()
	color.New(color.Bold).Println("Sources")
	for _, c := range ans.Citations {
		fmt.Printf("  [%d] %s %s\n      %s\n",
			c.SourceNumber,
			color.CyanString(c.Filename),
			color.HiBlackString("chunk %d, score %.3f", c.ChunkID, c.Score),
			snippet(c.Preview, 160))
	}
	if ans.Usage.TotalTokens > 0 {
		fmt.Println()
		color.HiBlack("%s, %d tokens", ans.Model, ans.Usage.TotalTokens)
	}
	return nil
}
