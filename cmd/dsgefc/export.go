package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored forecast artifacts",
	}
	cmd.AddCommand(exportListCmd())
	cmd.AddCommand(exportArtifactCmd())
	return cmd
}

func exportListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored artifact keys",
		RunE: func(cmd *cobra.Command, _ []string) error {
			prefix, _ := cmd.Flags().GetString("prefix")

			store, err := openStore()
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer func() { _ = store.Close() }()

			keys, err := store.ListArtifacts(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			for _, k := range keys {
				cmd.Println(k)
			}
			return nil
		},
	}
	cmd.Flags().String("prefix", "", "only list keys with this prefix")
	return cmd
}

func exportArtifactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "artifact <key> <out.csv>",
		Short: "Write one artifact to a CSV file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer func() { _ = store.Close() }()

			m, err := store.GetArtifact(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := writeMatrixCSV(args[1], m); err != nil {
				return err
			}

			r, c := m.Dims()
			slog.Info("Exported artifact", "key", args[0], "rows", r, "cols", c, "file", args[1])
			return nil
		},
	}
}
