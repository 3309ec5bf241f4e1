package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"toolchain-bench/internal/logging"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultRoot is used when neither the file, the flags nor
// TOOLCHAIN_BENCH_ROOT name a benchmark root.
const DefaultRoot = "runs"

var validate = validator.New()

// Default returns Options with every default applied.
func Default() *Options {
	root := os.Getenv("TOOLCHAIN_BENCH_ROOT")
	if root == "" {
		root = DefaultRoot
	}
	return &Options{BenchmarkRoot: root}
}

func LoadOptions(filepath string) (*Options, error) {
	opts, _, err := LoadOptionsWithContent(filepath)
	return opts, err
}

// LoadOptionsWithContent reads a YAML options file on top of Default and
// also returns the file content as written, before ${VAR} expansion.
// The result is not validated; flags may still fill required fields.
func LoadOptionsWithContent(filepath string) (*Options, string, error) {
	logger := logging.GetLogger()

	data, err := os.ReadFile(filepath)
	if err != nil {
		logger.WithField("filepath", filepath).WithError(err).Error("Failed to read config file")
		return nil, "", err
	}

	originalContent := string(data)
	expanded := expandEnvVars(originalContent)

	opts := Default()
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(opts); err != nil && !errors.Is(err, io.EOF) {
		logger.WithField("filepath", filepath).WithError(err).Error("Failed to parse config file")
		return nil, "", fmt.Errorf("parse %s: %w", filepath, err)
	}

	return opts, originalContent, nil
}

// ApplyEnv fills InfluxDB connection settings left empty from the
// INFLUXDB_* environment variables.
func (o *Options) ApplyEnv() {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = os.Getenv(key)
		}
	}
	fill(&o.Influx.Host, "INFLUXDB_HOST")
	fill(&o.Influx.Token, "INFLUXDB_TOKEN")
	fill(&o.Influx.Org, "INFLUXDB_ORG")
	fill(&o.Influx.Bucket, "INFLUXDB_BUCKET")
}

// Validate checks the struct tags and the cross-field rules.
func (o *Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("invalid options: %s fails %q (%d problem(s))", first.Namespace(), first.Tag(), len(verrs))
		}
		return fmt.Errorf("invalid options: %w", err)
	}

	if o.Perf.Disabled && (o.Perf.Repeat > 1 || len(o.Perf.Events) > 0) {
		return fmt.Errorf("invalid options: perf repeat/events set while perf is disabled")
	}
	return nil
}

func expandEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(content, func(match string) string {
		envVar := strings.Trim(match, "${}")
		if value := os.Getenv(envVar); value != "" {
			return value
		}
		return match
	})
}
