package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/journeywatch/internal/client"
	"github.com/ppiankov/journeywatch/internal/model"
	"github.com/ppiankov/journeywatch/internal/pipeline"
	"github.com/ppiankov/journeywatch/internal/risk"
)

var (
	assessFile     string
	assessJourney  string
	assessAt       string
	assessLat      float64
	assessLng      float64
	assessSpeed    float64
	assessMovement string
	assessBattery  int
	assessExplain  bool
	assessServer   string
	assessUser     string
)

func init() {
	rootCmd.AddCommand(assessCmd)
	assessCmd.Flags().StringVarP(&assessFile, "file", "f", "", "Read the sample as JSON from a file (- for stdin)")
	assessCmd.Flags().StringVar(&assessJourney, "journey", "cli", "Journey ID")
	assessCmd.Flags().StringVar(&assessAt, "at", "", "Sample time (RFC3339, default now)")
	assessCmd.Flags().Float64Var(&assessLat, "lat", 0, "Latitude")
	assessCmd.Flags().Float64Var(&assessLng, "lng", 0, "Longitude")
	assessCmd.Flags().Float64Var(&assessSpeed, "speed", 0, "Speed in m/s")
	assessCmd.Flags().StringVar(&assessMovement, "movement", string(model.Walking), "Movement state")
	assessCmd.Flags().IntVar(&assessBattery, "battery", 100, "Battery percentage")
	assessCmd.Flags().BoolVar(&assessExplain, "explain", false, "Include per-detector contributions")
	assessCmd.Flags().StringVar(&assessServer, "server", "", "Assess on a remote gRPC server (host:port)")
	assessCmd.Flags().StringVar(&assessUser, "user", "", "User ID sent to the remote server; identified calls are audited")
}

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Assess one telemetry sample without dispatching",
	Long:  "Runs risk analysis and the decision engine on a single sample and prints the\nassessment and the action that would be taken. Nothing is stored locally.",
	RunE:  runAssess,
}

type assessReport struct {
	pipeline.Outcome
	Contributions []risk.Contribution `json:"contributions,omitempty"`
}

func runAssess(cmd *cobra.Command, args []string) error {
	sample, err := assessSample(cmd.InOrStdin())
	if err != nil {
		return err
	}

	var report assessReport
	if assessServer != "" {
		c, err := client.New(assessServer)
		if err != nil {
			return err
		}
		defer c.Close()
		out, err := c.Assess(cmd.Context(), assessUser, sample)
		if err != nil {
			return fmt.Errorf("remote assess: %w", err)
		}
		report.Outcome = out
	} else {
		c, err := loadCore(cfg)
		if err != nil {
			return err
		}
		p := c.dryRun()
		out, err := p.Assess(context.Background(), pipeline.Caller{}, sample, false)
		if err != nil {
			return err
		}
		report.Outcome = out
		if assessExplain {
			contribs, err := p.Explain(sample)
			if err != nil {
				return err
			}
			report.Contributions = contribs
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func assessSample(stdin io.Reader) (model.TelemetrySample, error) {
	var sample model.TelemetrySample
	if assessFile != "" {
		r := stdin
		if assessFile != "-" {
			f, err := os.Open(assessFile)
			if err != nil {
				return sample, fmt.Errorf("open sample: %w", err)
			}
			defer f.Close()
			r = f
		}
		if err := json.NewDecoder(r).Decode(&sample); err != nil {
			return sample, fmt.Errorf("decode sample: %w", err)
		}
		return sample, nil
	}

	ts := time.Now().UTC()
	if assessAt != "" {
		parsed, err := time.Parse(time.RFC3339, assessAt)
		if err != nil {
			return sample, fmt.Errorf("invalid --at time %q: %w", assessAt, err)
		}
		ts = parsed
	}
	return model.TelemetrySample{
		JourneyID:     assessJourney,
		Timestamp:     ts,
		Location:      model.Location{Lat: assessLat, Lng: assessLng},
		Speed:         assessSpeed,
		MovementState: model.MovementState(assessMovement),
		BatteryLevel:  assessBattery,
	}, nil
}
