// Package influx publishes rig metrics to InfluxDB, falling back to a gzip
// line-protocol file when the server is unreachable.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/flexmocap/rigcore/internal/config"
	"github.com/flexmocap/rigcore/pkg/core"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
)

// ErrDisabled is returned by Connect when influx.enabled is false.
var ErrDisabled = errors.New("influx is disabled")

// Retention applied to buckets created by Connect.
const retentionSeconds = 60 * 60 * 24 * 90

// Manager handles the InfluxDB connection and writes.
type Manager struct {
	cfg    config.InfluxConfig
	Logger zerolog.Logger

	Client  influxdb2.Client
	Writer  influxdb2_api.WriteAPI
	IsValid bool

	backupFile   *os.File
	BackupWriter *gzip.Writer
}

func NewManager(cfg config.InfluxConfig, log zerolog.Logger) *Manager {
	return &Manager{cfg: cfg, Logger: log}
}

// Connect pings the server and prepares the org, bucket and writer. When the
// ping fails points go to the backup file instead and Connect returns nil.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := m.Client.Ping(ctx)
	if err != nil || !running {
		m.IsValid = false
		m.Logger.Warn().Err(err).Str("backupPath", m.cfg.BackupPath).
			Msg("InfluxDB unreachable, writing to backup file")
		return m.openBackup()
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.createWriter()
	m.IsValid = true
	m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.BackupWriter != nil {
		return nil
	}
	if m.cfg.BackupPath == "" {
		return errors.New("influx backup path not set")
	}
	if err := os.MkdirAll(filepath.Dir(m.cfg.BackupPath), 0755); err != nil {
		return fmt.Errorf("error creating backup directory: %w", err)
	}
	file, err := os.OpenFile(m.cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := m.Client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.Logger.Info().Str("org", m.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			return fmt.Errorf("error creating organization %s: %w", m.cfg.Org, err)
		}
	}

	buckets := m.Client.BucketsAPI()
	if _, err := buckets.FindBucketByName(ctx, m.cfg.Bucket); err != nil {
		m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")
		rule := domain.RetentionRuleTypeExpire
		_, err = buckets.CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: retentionSeconds,
		})
		if err != nil {
			return fmt.Errorf("error creating bucket %s: %w", m.cfg.Bucket, err)
		}
	}
	return nil
}

func (m *Manager) createWriter() {
	m.Writer = m.Client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).Msg("Error sending data to InfluxDB")
		}
	}(m.Writer.Errors())
}

// WritePoint sends point to the bucket, or appends it to the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	if m.IsValid {
		m.Writer.WritePoint(point)
		return nil
	}
	if m.BackupWriter == nil {
		return errors.New("influxDB client not initialized and backup writer not available")
	}
	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.BackupWriter.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close flushes pending points and releases the client or backup file.
func (m *Manager) Close() error {
	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}
	var errs []error
	if m.BackupWriter != nil {
		errs = append(errs, m.BackupWriter.Close())
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	return errors.Join(errs...)
}

// BuildPoint describes a built skeleton.
func BuildPoint(b core.BuildRecord) *influxdb2_write.Point {
	return influxdb2.NewPoint("skeleton_build",
		map[string]string{"namespace": b.Namespace, "root": b.Root},
		map[string]any{"joints": b.Joints},
		b.Time)
}

// FitPoint carries the measured proportions of a fit.
func FitPoint(f core.FitRecord) *influxdb2_write.Point {
	return influxdb2.NewPoint("fit_run",
		map[string]string{"namespace": f.Namespace},
		map[string]any{
			"height":           f.Height,
			"left_arm_length":  f.LeftArmLength,
			"right_arm_length": f.RightArmLength,
			"hip_x":            f.HipCenter.X,
			"hip_y":            f.HipCenter.Y,
			"hip_z":            f.HipCenter.Z,
		},
		f.Time)
}

// BindPoint summarizes an installed mapping.
func BindPoint(b core.BindRecord) *influxdb2_write.Point {
	markers := 0
	for _, jb := range b.Bindings {
		markers += len(jb.Markers)
	}
	return influxdb2.NewPoint("marker_binding",
		map[string]string{"namespace": b.Namespace, "source": b.Source},
		map[string]any{
			"joints":          len(b.Bindings),
			"markers":         markers,
			"unmapped_slots":  len(b.UnmappedSlots),
			"unmapped_joints": len(b.UnmappedJoints),
		},
		b.Time)
}
