package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/ChemSight/pkg/errors"
	"github.com/turtacn/ChemSight/pkg/types/chemical"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate SMILES",
		Short: "Check a SMILES string and print its canonical form",
		Long:  "Exits non-zero when the SMILES string is invalid.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			res, err := an.ValidateSMILES(ctx, args[0])
			if err != nil {
				return err
			}
			if err := PrintResult(cmd, res, validationView{smiles: args[0], res: res}); err != nil {
				return err
			}
			if !res.Valid {
				return errors.New(errors.ErrCodeInvalidSMILES, "invalid SMILES")
			}
			return nil
		},
	}
}

type validationView struct {
	smiles string
	res    *chemical.ValidateSMILESResponse
}

func (v validationView) Text() string {
	if v.res.Valid {
		return fmt.Sprintf("valid: %s\n", v.res.CanonicalSMILES)
	}
	var sb strings.Builder
	sb.WriteString("invalid:\n")
	for _, is := range v.res.Issues {
		if is.Position >= 0 {
			fmt.Fprintf(&sb, "  %s\n  %s^ %s\n", v.smiles, strings.Repeat(" ", is.Position), is.Message)
		} else {
			fmt.Fprintf(&sb, "  %s\n", is.Message)
		}
	}
	return sb.String()
}
