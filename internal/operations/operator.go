// Package operations wires the planner, the Frigate client, the
// orchestrator, and the backup stages into the full export pipeline.
package operations

import (
	"context"
	"fmt"
	"time"

	"github.com/haotianfei/frigate-exports-backup/internal/config"
	"github.com/haotianfei/frigate-exports-backup/internal/frigate"
	"github.com/haotianfei/frigate-exports-backup/internal/logger"
)

// Operator holds the shared state of one process: configuration,
// timezone, API client, and logger.
type Operator struct {
	cfg    config.Config
	client *frigate.Client
	log    logger.Logger
	loc    *time.Location
}

// NewOperator loads and validates the configuration at configPath and
// builds the API client.
func NewOperator(configPath string) (*Operator, error) {
	var cfg config.Config
	if err := cfg.Load(configPath); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", config.ErrValidateConfig, cfg.Export.Timezone, err)
	}

	client := frigate.NewClient(
		frigate.WithBaseURL(cfg.Frigate.APIURL),
		frigate.WithTimeout(cfg.Frigate.Timeout),
	)

	return &Operator{
		cfg:    cfg,
		client: client,
		log:    logger.Global(),
		loc:    loc,
	}, nil
}

// Config returns the loaded configuration.
func (op *Operator) Config() config.Config { return op.cfg }

// Location returns the configured timezone.
func (op *Operator) Location() *time.Location { return op.loc }

// Cameras returns the camera names known to Frigate.
func (op *Operator) Cameras(ctx context.Context) ([]string, error) {
	return op.client.ListCameras(ctx)
}

// targetDate resolves the day to export: an explicit YYYY-MM-DD date, or
// days_ago before today in the configured timezone.
func (op *Operator) targetDate(date string) (time.Time, error) {
	if date != "" {
		t, err := time.ParseInLocation("2006-01-02", date, op.loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: date %q is not YYYY-MM-DD", config.ErrValidateConfig, date)
		}
		return t, nil
	}
	return time.Now().In(op.loc).AddDate(0, 0, -op.cfg.Export.DaysAgo), nil
}

// resolveCameras applies the camera filter, falling back to discovery
// when no filter was given.
func (op *Operator) resolveCameras(ctx context.Context, requested []string) ([]string, error) {
	if len(requested) > 0 {
		return requested, nil
	}
	cameras, err := op.client.ListCameras(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover cameras: %w", err)
	}
	if len(cameras) == 0 {
		return nil, fmt.Errorf("%w: frigate reports no cameras", frigate.ErrAPI)
	}
	return cameras, nil
}
