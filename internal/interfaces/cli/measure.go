package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/ChemSight/internal/domain/geometry"
	"github.com/turtacn/ChemSight/pkg/errors"
	"github.com/turtacn/ChemSight/pkg/types/chemical"
)

// kindForArity picks the measurement implied by the number of atoms.
var kindForArity = map[int]geometry.MeasureKind{
	2: geometry.KindDistance,
	3: geometry.KindAngle,
	4: geometry.KindDihedral,
}

func newMeasureCmd() *cobra.Command {
	var smiles, query, kind string

	cmd := &cobra.Command{
		Use:   "measure ATOM ATOM [ATOM [ATOM]]",
		Short: "Measure a distance, angle or dihedral on the 3D model",
		Long: "Atom indices are zero-based and address the 3D model: heavy atoms in\n" +
			"SMILES order followed by hydrogens. Two atoms give a distance, three an\n" +
			"angle with the middle atom as vertex, four a dihedral.",
		Example: `  chemsight measure --smiles c1ccccc1 0 1
  chemsight measure --query water 1 0 2`,
		Args: cobra.RangeArgs(2, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (smiles == "") == (query == "") {
				return errors.InvalidParam("exactly one of --smiles or --query is required")
			}
			atoms := make([]int, len(args))
			for i, a := range args {
				n, err := strconv.Atoi(a)
				if err != nil || n < 0 {
					return errors.InvalidParam(fmt.Sprintf("atom index %q is not a non-negative integer", a))
				}
				atoms[i] = n
			}
			if kind == "" {
				kind = string(kindForArity[len(atoms)])
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

			m, err := an.Measure(ctx, &chemical.MeasureRequest{SMILES: smiles, Query: query, Kind: kind, Atoms: atoms})
			if err != nil {
				return err
			}
			return PrintResult(cmd, m, measurementView{m})
		},
	}

	cmd.Flags().StringVar(&smiles, "smiles", "", "structure to measure")
	cmd.Flags().StringVar(&query, "query", "", "name or query resolving to the structure")
	cmd.Flags().StringVar(&kind, "kind", "", "distance, angle or dihedral (default: from the atom count)")
	return cmd
}

type measurementView struct {
	m *chemical.Measurement
}

func (v measurementView) Text() string {
	labels := make([]string, len(v.m.Atoms))
	for i, a := range v.m.Atoms {
		el := ""
		if i < len(v.m.Elements) {
			el = v.m.Elements[i]
		}
		labels[i] = fmt.Sprintf("%s%d", el, a)
	}
	s := fmt.Sprintf("%s %s = %.3f %s", v.m.Kind, strings.Join(labels, "-"), v.m.Value, v.m.Unit)
	if v.m.Classification != "" {
		s += " (" + v.m.Classification + ")"
	}
	return s + "\n"
}
