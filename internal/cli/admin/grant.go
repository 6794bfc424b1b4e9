package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func GrantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Manage access grants",
		Long:  "Inspect and revoke time-limited access grants",
	}

	cmd.AddCommand(GrantShowCmd())
	cmd.AddCommand(GrantRevokeCmd())

	return cmd
}

func GrantShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an access grant",
		Long:  "Show an access grant and whether it currently permits access",
		Args:  cobra.ExactArgs(1),
		RunE:  runGrantShow,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runGrantShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	grantID := args[0]
	outputFormat, _ := cmd.Flags().GetString("output")

	svc, pool, err := getApprovalService(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	grant, err := svc.GetGrant(ctx, grantID)
	if err != nil {
		return fmt.Errorf("failed to get grant: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"id":                  grant.ID,
			"approval_request_id": grant.ApprovalRequestID,
			"grantee_id":          grant.GranteeID,
			"expires_at":          grant.ExpiresAt,
			"revoked":             grant.Revoked,
			"valid":               grant.Active(time.Now()),
			"created_at":          grant.CreatedAt,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	state := "valid"
	if !grant.Active(time.Now()) {
		state = "invalid"
		if grant.Revoked {
			state = "revoked"
		}
	}
	fmt.Printf("Grant %s: %s (grantee %s, expires %s)\n",
		grant.ID, state, grant.GranteeID, grant.ExpiresAt.Format(time.RFC3339))

	return nil
}

func GrantRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an access grant",
		Long:  "Revoke an access grant immediately; revoking twice is a no-op",
		Args:  cobra.ExactArgs(1),
		RunE:  runGrantRevoke,
	}

	cmd.Flags().String("actor", "admin-cli", "Identity recorded as the revoker")

	return cmd
}

func runGrantRevoke(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	grantID := args[0]
	actor, _ := cmd.Flags().GetString("actor")

	svc, pool, err := getApprovalService(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := svc.RevokeGrant(ctx, grantID, actor); err != nil {
		return fmt.Errorf("failed to revoke grant: %w", err)
	}

	fmt.Printf("Grant %s revoked\n", grantID)
	return nil
}
