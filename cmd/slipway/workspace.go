package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/slipway-sh/slipway/pkg/api"
)

var startCmd = &cobra.Command{
	Use:   "start BUCKET",
	Short: "Start a workspace for an S3 bucket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		region, _ := cmd.Flags().GetString("region")
		userID, _ := cmd.Flags().GetString("user")
		vncPassword, _ := cmd.Flags().GetString("vnc-password")

		resp, err := apiClient(cmd).Start(api.StartRequest{
			Bucket:      args[0],
			Region:      region,
			VNCPassword: vncPassword,
			UserID:      userID,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Workspace %s is starting\n", resp.ID)
		fmt.Printf("  Editor:  %s\n", resp.URLs.Editor)
		fmt.Printf("  Desktop: %s\n", resp.URLs.Desktop)
		fmt.Printf("  Web:     %s\n", resp.URLs.Web)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List workspaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		resp, err := apiClient(cmd).List(status, limit, offset)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tBUCKET\tSTATUS\tPOOL\tAGE")
		for _, ws := range resp.Containers {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				ws.ID,
				orDash(ws.Bucket),
				ws.Status,
				yesNo(ws.IsPreWarmed),
				age(ws.CreatedAt),
			)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if resp.Total > resp.Count {
			fmt.Printf("\nShowing %d of %d\n", resp.Count, resp.Total)
		}
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show one workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiClient(cmd).Get(args[0])
		if err != nil {
			return err
		}
		ws := resp.Workspace

		fmt.Printf("ID:       %s\n", ws.ID)
		fmt.Printf("Service:  %s\n", ws.ServiceName)
		fmt.Printf("Bucket:   %s\n", orDash(ws.Bucket))
		fmt.Printf("Status:   %s\n", ws.Status)
		if ws.ShutdownReason != "" {
			fmt.Printf("Shutdown: %s\n", ws.ShutdownReason)
		}
		fmt.Printf("Pool:     %s\n", yesNo(ws.IsPreWarmed))
		fmt.Printf("Created:  %s (%s ago)\n", ws.CreatedAt.Format(time.RFC3339), age(ws.CreatedAt))
		if resp.Uptime > 0 {
			fmt.Printf("Uptime:   %s\n", (time.Duration(resp.Uptime) * time.Second).String())
		}
		fmt.Printf("Editor:   %s\n", ws.URLs.Editor)
		fmt.Printf("Desktop:  %s\n", ws.URLs.Desktop)
		fmt.Printf("Web:      %s\n", ws.URLs.Web)

		if h := resp.Health; h != nil {
			fmt.Println("Health:")
			fmt.Printf("  Healthy:              %s\n", yesNo(h.Healthy))
			fmt.Printf("  Consecutive failures: %d\n", h.ConsecutiveFailures)
			fmt.Printf("  Last check:           %s\n", h.LastCheck.Format(time.RFC3339))
			fmt.Printf("  Recovery attempted:   %s\n", yesNo(h.RecoveryAttempted))
		}
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop ID",
	Short: "Stop a workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiClient(cmd).Stop(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("✓ Workspace %s stopped\n", resp.ID)
		return nil
	},
}

func init() {
	startCmd.Flags().String("region", "", "AWS region of the bucket (empty uses the server default)")
	startCmd.Flags().String("user", "", "User id recorded with the assignment")
	startCmd.Flags().String("vnc-password", "", "Per-workspace VNC password (fresh launches only)")

	listCmd.Flags().String("status", "", "Filter by lifecycle status")
	listCmd.Flags().Int("limit", 0, "Page size (0 for all)")
	listCmd.Flags().Int("offset", 0, "Page offset")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func age(t time.Time) string {
	return time.Since(t).Round(time.Second).String()
}
