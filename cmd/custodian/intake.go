package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/custodian/internal/config"
	"github.com/user/custodian/internal/evidence"
	"github.com/user/custodian/internal/investigation"
	"github.com/user/custodian/internal/state"
	"github.com/user/custodian/internal/types"
	"github.com/user/custodian/internal/watch"
)

// sensorFlags holds the optional location and device descriptors supplied
// on the command line in place of device sensors.
type sensorFlags struct {
	lat, lng, accuracy float64
	located            bool
	agent, platform    string
	language           string
}

func (s *sensorFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&s.lat, "lat", 0, "session latitude")
	cmd.Flags().Float64Var(&s.lng, "lng", 0, "session longitude")
	cmd.Flags().Float64Var(&s.accuracy, "accuracy", 0, "session location accuracy in meters")
	cmd.Flags().StringVar(&s.agent, "device-agent", "", "capturing device agent string")
	cmd.Flags().StringVar(&s.platform, "device-platform", "", "capturing device platform")
	cmd.Flags().StringVar(&s.language, "device-language", "", "capturing device language")
}

// resolve records whether a location was given; call it from RunE.
func (s *sensorFlags) resolve(cmd *cobra.Command) {
	s.located = cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng")
}

func (s *sensorFlags) apply(in *evidence.Intake) {
	if s.located {
		in.Session = &types.GeoLocation{Latitude: s.lat, Longitude: s.lng, Accuracy: s.accuracy}
	}
	in.Device = types.Device{Agent: s.agent, Platform: s.platform, Language: s.language}
}

// loadIntakes reads each path into an intake, applying sensors.
func loadIntakes(paths []string, sensors *sensorFlags) ([]evidence.Intake, error) {
	intakes := make([]evidence.Intake, 0, len(paths))
	for _, p := range paths {
		in, err := watch.LoadIntake(p)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", filepath.Base(p), err)
		}
		if sensors != nil {
			sensors.apply(&in)
		}
		intakes = append(intakes, in)
	}
	return intakes, nil
}

// sealCase runs one investigation over intakes and persists the result.
func sealCase(ctx context.Context, cfg *config.Config, store types.CaseStore, name string, intakes []evidence.Intake) (*types.CaseRecord, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	inv := investigation.New(name, store,
		investigation.WithActor(cfg.Actor),
		investigation.WithJournal(state.NewCustodyJournal(cfg.DataDir)),
		investigation.WithLocation(loc),
	)
	if _, err := inv.AddAll(ctx, intakes); err != nil {
		return nil, fmt.Errorf("ingest evidence: %w", err)
	}
	return inv.Seal(ctx)
}

func batchName(t time.Time) string {
	return "drop " + t.UTC().Format("2006-01-02 15:04:05")
}
