package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kvz-tools/dothttp/internal/postmanexport"
	"github.com/kvz-tools/dothttp/internal/report"
	"github.com/kvz-tools/dothttp/internal/restscript"
)

var exportNameFlag string

var exportEnvironmentCmd = &cobra.Command{
	Use:   "export-environment",
	Short: "Export the resolved environment as a Postman environment file",
	Args:  cobra.NoArgs,
	RunE:  runExportEnvironment,
}

var exportCollectionCmd = &cobra.Command{
	Use:   "export-collection FILES...",
	Short: "Export request scripts as a Postman collection",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExportCollection,
}

func init() {
	// -n/-e/-p are already registered as persistent flags on rootCmd in
	// registerExecuteFlags and inherited here; only --name is specific to
	// the export subcommands.
	exportEnvironmentCmd.Flags().StringVar(&exportNameFlag, "name", "dothttp", "name of the exported Postman environment")
	exportCollectionCmd.Flags().StringVar(&exportNameFlag, "name", "dothttp", "name of the exported Postman collection")
}

func runExportEnvironment(cmd *cobra.Command, args []string) error {
	merged := map[string]any{}

	if environmentFileFlag != "" {
		environments, err := loadEnvironmentFile(environmentFileFlag)
		if err != nil {
			exitCode = ExitUsageError
			return err
		}
		if environmentFlag != "" {
			values, ok := environments[environmentFlag]
			if !ok {
				exitCode = ExitUsageError
				return fmt.Errorf("environment %q not found in %s", environmentFlag, environmentFileFlag)
			}
			for k, v := range values {
				merged[k] = v
			}
		}
	}

	if snapshotPathFlag != "" {
		values, err := report.LoadGlobalSnapshot(snapshotPathFlag)
		if err != nil {
			exitCode = ExitUsageError
			return err
		}
		for k, v := range values {
			merged[k] = v
		}
	}

	env := postmanexport.Environment(exportNameFlag, merged)
	return writeJSON(cmd, env)
}

func runExportCollection(cmd *cobra.Command, args []string) error {
	var docs []postmanexport.NamedDocument
	for _, path := range args {
		source, err := os.ReadFile(path)
		if err != nil {
			exitCode = ExitUsageError
			return err
		}
		doc, err := restscript.Parse(path, string(source))
		if err != nil {
			exitCode = ExitUsageError
			return err
		}
		docs = append(docs, postmanexport.NamedDocument{FileName: path, Document: doc})
	}

	col := postmanexport.Collection(exportNameFlag, docs)
	return writeJSON(cmd, col)
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		exitCode = ExitUsageError
		return err
	}
	exitCode = ExitSuccess
	return nil
}
