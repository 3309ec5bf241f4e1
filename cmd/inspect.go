package cmd

import (
	"fmt"
	"io"
	"strings"

	"toolchain-bench/internal/config"
	"toolchain-bench/internal/controller"
	"toolchain-bench/internal/host"
	"toolchain-bench/internal/logging"
	"toolchain-bench/internal/models"
	"toolchain-bench/internal/models/catalog"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the registered benchmarks, compilers and machines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := catalog.Default()
			if err != nil {
				return err
			}
			return printModels(cmd.OutOrStdout(), registry)
		},
	}
}

func printModels(w io.Writer, registry *models.Registry) error {
	for _, kind := range []models.Kind{models.KindBenchmark, models.KindCompiler, models.KindMachine} {
		if _, err := fmt.Fprintf(w, "%ss: %s\n", kind, strings.Join(registry.Names(kind), ", ")); err != nil {
			return err
		}
	}
	return nil
}

func newHostCommand() *cobra.Command {
	var probe, rdt bool

	hostCmd := &cobra.Command{
		Use:   "host",
		Short: "Print the host report recorded with every run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hc, err := host.Inspect(host.InspectOptions{ProbeCounters: probe, InitRDT: rdt})
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(hc); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	hostCmd.Flags().BoolVar(&probe, "probe", true, "Open a hardware counter to confirm perf access")
	hostCmd.Flags().BoolVar(&rdt, "rdt", false, "Initialise resctrl and report RDT support")
	return hostCmd
}

func newValidateCommand() *cobra.Command {
	var configFile string

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a run configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(configFile)
		},
	}

	validateCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to run configuration file")
	validateCmd.MarkFlagRequired("config")
	return validateCmd
}

// validateConfig checks the file, that every model it names exists and
// that the compiler accepts the combined flags.
func validateConfig(configFile string) error {
	logger := logging.GetLogger()

	opts, err := config.LoadOptions(configFile)
	if err != nil {
		return err
	}
	opts.ApplyEnv()
	if err := opts.Validate(); err != nil {
		return err
	}

	registry, err := catalog.Default()
	if err != nil {
		return err
	}
	if err := controller.Resolve(opts, registry); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"config":    configFile,
		"benchmark": opts.Benchmark,
		"machine":   opts.Machine,
	}).Info("Configuration is valid")
	return nil
}
