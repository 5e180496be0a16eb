package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/ChemSight/internal/infrastructure/database/postgres"
	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/pkg/errors"
)

type migrator interface {
	Up() error
	Down(steps int) error
	Version() (uint, bool, error)
	Force(version int) error
	Close() error
}

// openMigrator is replaced in tests.
var openMigrator = func(dsn string, log logging.Logger) (migrator, error) {
	return postgres.NewMigrator(dsn, log)
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
		Long:  "Applies the embedded migrations to the database configured under database.*.",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				return printVersion(cmd, m)
			})
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps <= 0 {
				return errors.InvalidParam(fmt.Sprintf("--steps must be greater than 0, got %d", steps))
			}
			return withMigrator(cmd, func(m migrator) error {
				if err := m.Down(steps); err != nil {
					return err
				}
				return printVersion(cmd, m)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m migrator) error { return printVersion(cmd, m) })
		},
	}

	force := &cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without migrating, clearing the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil || v < 0 {
				return errors.InvalidParam(fmt.Sprintf("invalid version %q", args[0]))
			}
			return withMigrator(cmd, func(m migrator) error {
				if err := m.Force(v); err != nil {
					return err
				}
				return printVersion(cmd, m)
			})
		},
	}

	cmd.AddCommand(up, down, version, force)
	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(migrator) error) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	m, err := openMigrator(cliCtx.Config.Database.DSN(), cliCtx.Logger)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to open migrator")
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			cliCtx.Logger.Warn("failed to close migrator", logging.Err(cerr))
		}
	}()
	return fn(m)
}

func printVersion(cmd *cobra.Command, m migrator) error {
	v, dirty, err := m.Version()
	if err != nil {
		return err
	}
	data := map[string]interface{}{"version": v, "dirty": dirty}
	return PrintResult(cmd, data, schemaView{version: v, dirty: dirty})
}

type schemaView struct {
	version uint
	dirty   bool
}

func (v schemaView) Text() string {
	if v.dirty {
		return fmt.Sprintf("schema version %d (dirty)\n", v.version)
	}
	return fmt.Sprintf("schema version %d\n", v.version)
}
