package cli

import (
	"context"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/ChemSight/pkg/types/chemical"
)

func newCompoundsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compounds",
		Short: "Look up known compounds",
	}

	var limit int
	search := &cobra.Command{
		Use:   "search TEXT",
		Short: "Find compounds by name or synonym",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(cmd, func(ctx context.Context, an Analyzer) (*chemical.SearchResponse, error) {
				return an.Search(ctx, strings.Join(args, " "), limit)
			})
		},
	}
	search.Flags().IntVar(&limit, "limit", 10, "maximum number of hits")

	var k int
	similar := &cobra.Command{
		Use:   "similar SMILES",
		Short: "Find compounds with similar Morgan fingerprints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(cmd, func(ctx context.Context, an Analyzer) (*chemical.SearchResponse, error) {
				return an.Similar(ctx, args[0], k)
			})
		},
	}
	similar.Flags().IntVarP(&k, "top", "k", 10, "number of neighbours")

	cmd.AddCommand(search, similar)
	return cmd
}

func runLookup(cmd *cobra.Command, fn func(context.Context, Analyzer) (*chemical.SearchResponse, error)) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	an, err := cliCtx.Analyzer()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd, cliCtx)
	defer cancel()
	res, err := fn(ctx, an)
	if err != nil {
		return err
	}
	return PrintResult(cmd, res, hitsView{res})
}

type hitsView struct {
	res *chemical.SearchResponse
}

func (v hitsView) Text() string {
	if len(v.res.Hits) == 0 {
		return "no compounds found\n"
	}
	return FormatTable(v.TableHeaders(), v.TableRows())
}

func (v hitsView) TableHeaders() []string {
	return []string{"NAME", "FORMULA", "WEIGHT", "SCORE", "SMILES"}
}

func (v hitsView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.res.Hits))
	for _, h := range v.res.Hits {
		rows = append(rows, []string{
			h.Name,
			h.MolecularFormula,
			formatFloat(h.MolecularWeight, 2),
			strconv.FormatFloat(h.Score, 'f', 3, 64),
			h.SMILES,
		})
	}
	return rows
}
