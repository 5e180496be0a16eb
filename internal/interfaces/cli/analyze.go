package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/pkg/errors"
	"github.com/turtacn/ChemSight/pkg/types/chemical"
)

func newAnalyzeCmd() *cobra.Command {
	var smiles, name string
	var showBonds bool

	cmd := &cobra.Command{
		Use:   "analyze [query...]",
		Short: "Analyse the compound named in a query, or a SMILES string",
		Example: `  chemsight analyze caffeine
  chemsight analyze "what is in aspirin" -o json
  chemsight analyze --smiles CCO --name ethanol --bonds`,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if smiles == "" && query == "" {
				return errors.InvalidParam("a query or --smiles is required")
			}
			if smiles != "" && query != "" {
				return errors.InvalidParam("a query and --smiles are mutually exclusive")
			}

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

			var res *chemical.ChemicalResult
			if smiles != "" {
				res, err = an.AnalyzeSMILES(ctx, smiles, name)
			} else {
				res, err = an.Analyze(ctx, query)
			}
			if err != nil {
				return err
			}
			cliCtx.Logger.Debug("analysis finished",
				logging.String("compound", res.Compound),
				logging.String("source", string(res.Source)))
			return PrintResult(cmd, res, resultView{res: res, bonds: showBonds})
		},
	}

	cmd.Flags().StringVar(&smiles, "smiles", "", "analyse this SMILES string instead of a query")
	cmd.Flags().StringVar(&name, "name", "", "display name for --smiles")
	cmd.Flags().BoolVar(&showBonds, "bonds", false, "include the per-bond table in text output")
	return cmd
}

// resultView renders a ChemicalResult for text and table output.
type resultView struct {
	res   *chemical.ChemicalResult
	bonds bool
}

func (v resultView) Text() string {
	r := v.res
	var sb strings.Builder
	if !r.IsDetected {
		fmt.Fprintf(&sb, "%s\n%s\n", r.Compound, r.Description)
		return sb.String()
	}

	fmt.Fprintf(&sb, "Compound:  %s\n", r.Compound)
	if r.Description != "" {
		fmt.Fprintf(&sb, "           %s\n", r.Description)
	}
	fmt.Fprintf(&sb, "SMILES:    %s\n", r.SMILES)
	fmt.Fprintf(&sb, "Formula:   %s\n", r.MolecularFormula)
	fmt.Fprintf(&sb, "Weight:    %.2f g/mol\n", r.MolecularWeight)
	fmt.Fprintf(&sb, "Source:    %s\n", r.Source)
	if mi := r.MoleculeInfo; mi != nil {
		fmt.Fprintf(&sb, "Atoms:     %d (%d heavy), %d bonds, %d rings (%d aromatic)\n",
			mi.AtomCount, mi.HeavyAtomCount, mi.BondCount, mi.RingCount, mi.AromaticRings)
	}
	if p := r.Properties; p != nil {
		fmt.Fprintf(&sb, "Properties: logP %.2f, TPSA %.2f, rotatable %d, HBD %d, HBA %d\n",
			p.LogP, p.PolarSurfaceArea, p.RotorBonds, p.HBondDonors, p.HBondAcceptors)
	}
	if a := r.Assessment; a != nil {
		fmt.Fprintf(&sb, "Drug-likeness: %s (%d/%d rules)\n", a.Label, a.PassedRules, len(a.Criteria))
	}

	if len(r.BondAnalysis) > 0 {
		sb.WriteString("\n")
		sb.WriteString(FormatTable(v.TableHeaders(), v.TableRows()))
	}
	if v.bonds && len(r.BondMeasurements) > 0 {
		rows := make([][]string, 0, len(r.BondMeasurements))
		for _, b := range r.BondMeasurements {
			rows = append(rows, []string{
				strconv.Itoa(b.Serial),
				fmt.Sprintf("%d-%d", b.Atoms[0], b.Atoms[1]),
				b.Label,
				b.BondType,
				formatFloat(b.Distance, 3),
				b.Classification,
			})
		}
		sb.WriteString("\n")
		sb.WriteString(FormatTable([]string{"#", "ATOMS", "LABEL", "TYPE", "DISTANCE", "CLASS"}, rows))
	}
	return sb.String()
}

func (v resultView) TableHeaders() []string {
	return []string{"BOND TYPE", "COUNT", "PERCENT", "AVG DISTANCE", "AVG ANGLE"}
}

func (v resultView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.res.BondAnalysis))
	for _, b := range v.res.BondAnalysis {
		rows = append(rows, []string{
			b.BondType,
			strconv.Itoa(b.Count),
			formatFloat(b.Percentage, 1) + "%",
			formatFloat(b.AverageDistance, 3),
			formatFloat(b.AverageAngle, 1),
		})
	}
	return rows
}

func formatFloat(f float64, prec int) string {
	return strconv.FormatFloat(f, 'f', prec, 64)
}
