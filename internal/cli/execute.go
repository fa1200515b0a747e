package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kvz-tools/dothttp/internal/executor"
	"github.com/kvz-tools/dothttp/internal/report"
	"github.com/kvz-tools/dothttp/internal/restscript"
	"github.com/kvz-tools/dothttp/internal/scripthost"
	"github.com/kvz-tools/dothttp/internal/transport"
	"github.com/kvz-tools/dothttp/internal/vars"
)

var (
	environmentFileFlag   string
	environmentFlag       string
	snapshotPathFlag      string
	acceptInvalidCertsFlag bool
	formatFlag             string
	requestFormatFlag      string
	responseFormatFlag     string
)

// executeCmd is the explicit spelling of the default root behavior;
// registerExecuteFlags puts persistent flags on rootCmd, which this
// subcommand inherits.
var executeCmd = &cobra.Command{
	Use:   "execute [OPTS] FILES...",
	Short: "Run request scripts (same as the bare dothttp invocation)",
	Args:  cobra.ArbitraryArgs,
	RunE:  runExecute,
}

func registerExecuteFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&environmentFileFlag, "environment-file", "n", "", "JSON environment file: {env: {var: value}}")
	cmd.PersistentFlags().StringVarP(&environmentFlag, "environment", "e", "", "environment key to load from --environment-file")
	cmd.PersistentFlags().StringVarP(&snapshotPathFlag, "snapshot", "p", "", "path used for both initial global load and post-run persistence")
	cmd.PersistentFlags().BoolVar(&acceptInvalidCertsFlag, "accept-invalid-certs", false, "disable TLS certificate verification")
	cmd.PersistentFlags().StringVar(&formatFlag, "format", "standard", "reporter mode: standard or ci")
	cmd.PersistentFlags().StringVar(&requestFormatFlag, "request-format", "", "request format string (tokens %N %R %H %B)")
	cmd.PersistentFlags().StringVar(&responseFormatFlag, "response-format", "", "response format string (tokens %R %H %B %T)")
}

func runExecute(cmd *cobra.Command, args []string) error {
	store := vars.NewStore()

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
			store.Env.Load(values)
		}
	}

	if snapshotPathFlag != "" {
		values, err := report.LoadGlobalSnapshot(snapshotPathFlag)
		if err != nil {
			exitCode = ExitUsageError
			return err
		}
		store.Global.Load(values)
	}

	client := transport.NewClient(transport.WithAcceptInvalidCerts(acceptInvalidCertsFlag))
	host := scripthost.NewHost(cmd.OutOrStdout())
	warn := func(format string, a ...any) {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: "+format+"\n", a...)
	}
	ex := executor.New(store, client, host, warn)
	reporter := report.NewReporter(formatFlag, cmd.OutOrStdout(), requestFormatFlag, responseFormatFlag)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sawFatal := false
	for _, rawArg := range args {
		path, index, hasIndex := parseFileSelector(rawArg)

		source, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
			sawFatal = true
			continue
		}

		doc, err := restscript.Parse(path, string(source))
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
			sawFatal = true
			continue
		}

		for i, script := range doc.Scripts {
			if hasIndex && i+1 != index {
				continue
			}
			if script.Name == "" {
				script.Name = "#" + strconv.Itoa(i+1)
			}
			event := ex.Run(ctx, path, script)
			reporter.Report(event)
		}
	}

	if snapshotPathFlag != "" {
		if err := report.SaveGlobalSnapshot(snapshotPathFlag, store.Global.Snapshot()); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to persist snapshot: %v\n", err)
		}
	}

	exitCode = reporter.Finish()
	if sawFatal {
		exitCode = ExitUsageError
	}
	return nil
}

// parseFileSelector splits a "FILE" or "FILE:N" CLI argument. N is the
// 1-based index of the single request within that file to run.
func parseFileSelector(arg string) (path string, index int, hasIndex bool) {
	colon := strings.LastIndex(arg, ":")
	if colon < 0 {
		return arg, 0, false
	}
	n, err := strconv.Atoi(arg[colon+1:])
	if err != nil || n < 1 {
		return arg, 0, false
	}
	return arg[:colon], n, true
}
