package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/grantpilot/grantpilot/internal/config"
	"github.com/grantpilot/grantpilot/internal/domain"
	"github.com/grantpilot/grantpilot/internal/repository"
	"github.com/grantpilot/grantpilot/internal/service"
)

func ApprovalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approval",
		Short: "Manage approval requests",
		Long:  "List and decide pending approval requests",
	}

	cmd.AddCommand(ApprovalListCmd())
	cmd.AddCommand(ApprovalDecideCmd())

	return cmd
}

func ApprovalListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <scope>",
		Short: "List pending approval requests",
		Long:  "List pending approval requests for a scope in submission order",
		Args:  cobra.ExactArgs(1),
		RunE:  runApprovalList,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runApprovalList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	scope := args[0]
	outputFormat, _ := cmd.Flags().GetString("output")

	svc, pool, err := getApprovalService(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	requests, err := svc.ListPending(ctx, scope)
	if err != nil {
		return fmt.Errorf("failed to list approval requests: %w", err)
	}

	if outputFormat == "json" {
		jsonBytes, _ := json.MarshalIndent(requests, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	if len(requests) == 0 {
		fmt.Println("No pending approval requests")
		return nil
	}

	for _, req := range requests {
		fmt.Printf("%s  created=%s  cognitive=%.2f  competency=%.2f  flags=%v\n",
			req.ID,
			req.CreatedAt.Format("2006-01-02 15:04:05"),
			req.Evaluation.CognitiveScore,
			req.Evaluation.CompetencyScore,
			req.Sensitivity.Flags,
		)
	}

	return nil
}

func ApprovalDecideCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decide <id> <approve|deny>",
		Short: "Decide a pending approval request",
		Long:  "Approve or deny a pending approval request; approval issues a time-limited access grant",
		Args:  cobra.ExactArgs(2),
		RunE:  runApprovalDecide,
	}

	cmd.Flags().String("actor", "admin-cli", "Identity recorded as the decision maker")
	cmd.Flags().String("notes", "", "Decision notes (required when denying)")

	return cmd
}

func runApprovalDecide(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	requestID := args[0]
	actor, _ := cmd.Flags().GetString("actor")
	notes, _ := cmd.Flags().GetString("notes")

	var status domain.ApprovalStatus
	switch args[1] {
	case "approve":
		status = domain.ApprovalStatusApproved
	case "deny":
		status = domain.ApprovalStatusDenied
	default:
		return fmt.Errorf("decision must be approve or deny, got %q", args[1])
	}

	svc, pool, err := getApprovalService(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	decided, err := svc.Decide(ctx, requestID, status, actor, notes)
	if err != nil {
		return fmt.Errorf("failed to decide approval request: %w", err)
	}

	fmt.Printf("Approval request %s: %s by %s\n", decided.ID, decided.Status, decided.DecidedBy)
	return nil
}

func getApprovalService(ctx context.Context) (*service.ApprovalService, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := getDBPool(ctx)
	if err != nil {
		return nil, nil, err
	}

	approvalRepo := repository.NewApprovalRepository(pool)
	grantRepo := repository.NewGrantRepository(pool)
	txRunner := repository.NewTxRunner(pool)
	uuidGen := &service.DefaultUUIDGenerator{}

	svc := service.NewApprovalService(txRunner, approvalRepo, grantRepo, uuidGen, cfg.GrantTTL)
	return svc, pool, nil
}
