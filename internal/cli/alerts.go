package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/journeywatch/internal/audit"
	"github.com/ppiankov/journeywatch/internal/model"
	"github.com/ppiankov/journeywatch/internal/store"
)

var (
	alertsJourney  string
	alertsUser     string
	alertsActive   bool
	alertsLimit    int
	alertsJSON     bool
	resolveBy      string
	resolveNoAudit bool
)

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsResolveCmd)
	alertsListCmd.Flags().StringVar(&alertsJourney, "journey", "", "Filter by journey ID")
	alertsListCmd.Flags().StringVar(&alertsUser, "user", "", "Filter by user ID")
	alertsListCmd.Flags().BoolVar(&alertsActive, "active", false, "Only unresolved alerts")
	alertsListCmd.Flags().IntVar(&alertsLimit, "limit", store.DefaultListLimit, "Maximum alerts to show")
	alertsListCmd.Flags().BoolVar(&alertsJSON, "json", false, "Print JSON instead of a table")
	alertsResolveCmd.Flags().StringVar(&resolveBy, "by", "cli", "Operator ID recorded in the audit log")
	alertsResolveCmd.Flags().BoolVar(&resolveNoAudit, "no-audit", false, "Do not record an alert_resolved audit entry")
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List and resolve stored alerts",
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alerts, newest first",
	RunE:  runAlertsList,
}

var alertsResolveCmd = &cobra.Command{
	Use:   "resolve <alert-id>",
	Short: "Mark an alert resolved",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlertsResolve,
}

func runAlertsList(cmd *cobra.Command, args []string) error {
	s, err := store.Open(cmd.Context(), cfg.Store)
	if err != nil {
		return err
	}
	defer s.Close()

	alerts, err := s.List(cmd.Context(), store.Filter{
		JourneyID:  alertsJourney,
		UserID:     alertsUser,
		ActiveOnly: alertsActive,
		Limit:      alertsLimit,
	})
	if err != nil {
		return err
	}

	if alertsJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(alerts)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%-38s %-16s %-16s %-9s %-10s %s\n", "ID", "JOURNEY", "USER", "PRIORITY", "STATUS", "CREATED")
	for _, a := range alerts {
		fmt.Fprintf(w, "%-38s %-16s %-16s %-9s %-10s %s\n",
			a.ID, a.JourneyID, a.UserID, a.Priority, a.Status, a.CreatedAt.UTC().Format(time.RFC3339))
	}
	return nil
}

func runAlertsResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer s.Close()

	a, err := s.Get(ctx, args[0])
	if err != nil {
		return err
	}
	if a.Status == model.AlertResolved {
		fmt.Fprintf(cmd.OutOrStdout(), "%s already resolved\n", a.ID)
		return nil
	}

	now := time.Now().UTC()
	if err := s.SetStatus(ctx, a.ID, model.AlertResolved, now); err != nil {
		return err
	}

	if !resolveNoAudit {
		log, err := audit.Open(cfg.AuditLog)
		if err != nil {
			return err
		}
		defer log.Close()
		err = log.Append(ctx, model.AuditEvent{
			UserID:       resolveBy,
			Action:       model.AuditAlertResolved,
			ResourceID:   a.ID,
			ResourceType: model.ResourceAlert,
			Details:      &model.AuditDetails{JourneyID: a.JourneyID, Priority: string(a.Priority)},
			Timestamp:    now,
		})
		if err != nil {
			return fmt.Errorf("alert resolved but audit write failed: %w", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s resolved\n", a.ID)
	return nil
}
