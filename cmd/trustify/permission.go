package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trustify/backend/internal/permission"
)

// simulatedPlatform answers the bridge from flags and records what it was asked.
type simulatedPlatform struct {
	sdk       int
	granted   bool
	requested []string
	code      int
}

func (p *simulatedPlatform) SDKVersion() int { return p.sdk }

func (p *simulatedPlatform) IsGranted(string) bool { return p.granted }

func (p *simulatedPlatform) RequestPermissions(permissions []string, requestCode int) {
	p.requested = append(p.requested, permissions...)
	p.code = requestCode
}

func newPermissionCmd(c *cli) *cobra.Command {
	platform := &simulatedPlatform{}

	var method string

	cmd := &cobra.Command{
		Use:   "permission",
		Short: "Simulate a call on the notification permission channel",
		Long: `Sends one method call to the notification permission bridge against a simulated device and
prints the reply and whether the system dialog would be shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bridge := permission.NewBridge(platform)

			reply, err := bridge.HandleMethodCall(cmd.Context(), permission.MethodCall{Method: method})
			if err != nil {
				return fmt.Errorf("%s: %w", bridge.Channel(), err)
			}

			fmt.Fprintf(c.out, "channel: %s\nmethod: %s\nreply: %v\n", bridge.Channel(), method, reply)

			if len(platform.requested) == 0 {
				fmt.Fprintln(c.out, "dialog: not shown")

				return nil
			}

			fmt.Fprintf(c.out, "dialog: requested %v (request code %d)\n", platform.requested, platform.code)

			return nil
		},
	}

	cmd.Flags().IntVar(&platform.sdk, "sdk-version", permission.MinSDKVersion, "Simulated Android API level")
	cmd.Flags().BoolVar(&platform.granted, "granted", false, "Whether POST_NOTIFICATIONS is already granted")
	cmd.Flags().StringVar(&method, "method", permission.MethodRequestNotificationPermission, "Method to call")

	return cmd
}
