package database

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"toolchain-bench/internal/config"
	"toolchain-bench/internal/logging"
	"toolchain-bench/internal/results"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"
)

const (
	entryMeasurement = "toolchain_bench"
	metaMeasurement  = "toolchain_bench_meta"

	rawSuffix = "_raw"
)

// InfluxDBClient exports run records as points, one per executed command
// that produced fields plus one metadata point per run.
type InfluxDBClient struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	bucket   string
	org      string
}

func NewInfluxDBClient(ctx context.Context, cfg config.InfluxOptions) (*InfluxDBClient, error) {
	logger := logging.GetLogger()

	client := influxdb2.NewClient(cfg.Host, cfg.Token)

	healthCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	health, err := client.Health(healthCtx)
	if err != nil {
		logger.WithField("host", cfg.Host).WithError(err).Error("Failed to connect to InfluxDB")
		client.Close()
		return nil, fmt.Errorf("influxdb %s: %w", cfg.Host, err)
	}

	if health.Status != "pass" {
		message := ""
		if health.Message != nil {
			message = *health.Message
		}
		logger.WithFields(logrus.Fields{
			"host":    cfg.Host,
			"status":  health.Status,
			"message": message,
		}).Error("InfluxDB health check failed")
		client.Close()
		return nil, fmt.Errorf("influxdb %s health %s: %s", cfg.Host, health.Status, message)
	}

	logger.WithFields(logrus.Fields{
		"host":   cfg.Host,
		"bucket": cfg.Bucket,
		"org":    cfg.Org,
	}).Info("Connected to InfluxDB")

	return &InfluxDBClient{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		bucket:   cfg.Bucket,
		org:      cfg.Org,
	}, nil
}

// Collect writes rec to the bucket.
func (idb *InfluxDBClient) Collect(ctx context.Context, rec *results.Record) error {
	points := BuildPoints(rec)
	if len(points) == 0 {
		return nil
	}
	if err := idb.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("failed to write %d points: %w", len(points), err)
	}

	logging.GetLogger().WithFields(logrus.Fields{
		"bucket": idb.bucket,
		"points": len(points),
	}).Info("Results exported to InfluxDB")
	return nil
}

// BuildPoints converts a record into line protocol points. Entries without
// parsed or profiler fields are skipped; their raw text lives in the result
// files only.
func BuildPoints(rec *results.Record) []*write.Point {
	if rec == nil {
		return nil
	}

	base := map[string]string{
		"identity":  rec.Identity,
		"benchmark": rec.Benchmark,
		"machine":   rec.Machine,
		"compiler":  rec.Compiler,
		"toolchain": rec.Toolchain,
	}

	var points []*write.Point
	if rec.Output != nil {
		ts := rec.Started
		for i, e := range rec.Output.Entries() {
			if len(e.Parsed) == 0 && len(e.Profile) == 0 {
				continue
			}

			tags := make(map[string]string, len(base)+2)
			for k, v := range base {
				tags[k] = v
			}
			tags["phase"] = e.Phase
			tags["index"] = strconv.Itoa(i)

			fields := map[string]interface{}{
				"exit_code": e.ExitCode,
			}
			for k, v := range e.Parsed {
				key, value := fieldValue(k, v)
				fields[key] = value
			}
			for k, v := range e.Profile {
				key, value := fieldValue("perf_"+k, v)
				fields[key] = value
			}

			// Entries share the run's start time; index keeps them distinct.
			points = append(points, influxdb2.NewPoint(entryMeasurement, tags, fields, ts))
		}
	}

	meta := influxdb2.NewPoint(metaMeasurement, base, map[string]interface{}{
		"build_flags":      strings.Join(rec.BuildFlags, " "),
		"link_flags":       strings.Join(rec.LinkFlags, " "),
		"run_flags":        rec.RunFlags,
		"discriminator":    rec.Discriminator,
		"duration_seconds": rec.Finished.Sub(rec.Started).Seconds(),
		"aborted":          rec.Aborted,
		"error":            rec.Error,
	}, rec.Finished)

	return append(points, meta)
}

// fieldValue pins the field type per key. Numbers are always float64 under
// name, anything else is text under name+"_raw", so a value that fails
// coercion in one run cannot conflict with the numeric field of another.
func fieldValue(name string, v any) (string, any) {
	switch n := v.(type) {
	case int64:
		return name, float64(n)
	case int:
		return name, float64(n)
	case float64:
		return name, n
	case string:
		return name + rawSuffix, n
	default:
		return name + rawSuffix, fmt.Sprint(n)
	}
}

func (idb *InfluxDBClient) Close() {
	if idb.client != nil {
		idb.client.Close()
	}
}
