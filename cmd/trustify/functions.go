package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/trustify/backend/internal/service"
	"github.com/trustify/backend/pkg/supabase"
)

// defaultAuthProbeFunction is probed by "functions auth" when no name is given.
const defaultAuthProbeFunction = "sign-upload"

var errChecksFailed = errors.New("function checks failed")

func newFunctionsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "functions",
		Short: "Call and smoke-test the deployed Edge Functions",
	}

	cmd.AddCommand(
		newFunctionsCheckCmd(c),
		newFunctionsAuthCmd(c),
		newFunctionsCallCmd(c),
	)

	return cmd
}

func newFunctionsCheckCmd(c *cli) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Call every function in order with the service-role key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}

			client, err := c.supabaseClient(true)
			if err != nil {
				return err
			}

			report, runErr := service.NewFunctionsCheckService(client, c.logger).Run(cmd.Context())

			if err := render(c.out, output, report, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "session:\t%s\nreport:\t%s\nupload path:\t%s\n\n", report.SessionID, report.ReportID, report.UploadPath)
				fmt.Fprintln(tw, "FUNCTION\tOK\tSTATUS\tERROR")

				for _, step := range report.Steps {
					fmt.Fprintf(tw, "%s\t%t\t%d\t%s\n", step.Function, step.OK, step.Status, step.Error)
				}
			}); err != nil {
				return err
			}

			if runErr != nil {
				return runErr
			}

			if failed := report.Failed(); failed > 0 {
				return fmt.Errorf("%w: %d of %d", errChecksFailed, failed, len(report.Steps))
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table, json or yaml")

	return cmd
}

func newFunctionsAuthCmd(c *cli) *cobra.Command {
	var (
		body   string
		output string
	)

	cmd := &cobra.Command{
		Use:   "auth [function]",
		Short: "Call a function with no key, the anon key and the service-role key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}

			fn := defaultAuthProbeFunction
			if len(args) == 1 {
				fn = args[0]
			}

			payload, err := parseBody(body)
			if err != nil {
				return err
			}

			client, err := c.supabaseClient(true)
			if err != nil {
				return err
			}

			probes := service.NewFunctionsCheckService(client, c.logger).CompareAuth(cmd.Context(), fn, payload)

			return render(c.out, output, probes, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "AUTH\tSTATUS\tBODY\tERROR")

				for _, p := range probes {
					fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", p.Auth, p.Status, p.Body, p.Error)
				}
			})
		},
	}

	cmd.Flags().StringVar(&body, "json", "", `Request body (default {"sessionId":"test-session-123"})`)
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table, json or yaml")

	return cmd
}

func newFunctionsCallCmd(c *cli) *cobra.Command {
	var body string

	cmd := &cobra.Command{
		Use:   "call <function>",
		Short: "Invoke a function with the service-role key and print its JSON response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := parseBody(body)
			if err != nil {
				return err
			}

			if payload == nil {
				payload = map[string]any{}
			}

			client, err := c.supabaseClient(true)
			if err != nil {
				return err
			}

			var out json.RawMessage
			if err := client.Invoke(cmd.Context(), args[0], supabase.AuthServiceRole, payload, &out); err != nil {
				return err
			}

			return render(c.out, outputJSON, out, nil)
		},
	}

	cmd.Flags().StringVar(&body, "json", "", "Request body as a JSON object")

	return cmd
}

// parseBody decodes a --json flag. An empty flag returns nil.
func parseBody(raw string) (any, error) {
	if raw == "" {
		return nil, nil //nolint:nilnil // no body given
	}

	var body any
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return nil, fmt.Errorf("--json: %w", err)
	}

	return body, nil
}
