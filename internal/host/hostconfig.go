package host

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"toolchain-bench/internal/logging"

	"github.com/elastic/go-perf"
	"github.com/intel/goresctrl/pkg/rdt"
	"github.com/sirupsen/logrus"
)

// PerfEventParanoidPath is where the kernel exposes the perf_event access
// restriction level.
const PerfEventParanoidPath = "/proc/sys/kernel/perf_event_paranoid"

// HostConfig describes the machine a benchmark is executed on. It is recorded
// next to the results of every run.
type HostConfig struct {
	// CPU Information
	CPUVendor    string `yaml:"cpu_vendor"`
	CPUModel     string `yaml:"cpu_model"`
	TotalThreads int    `yaml:"total_threads"`
	NumSockets   int    `yaml:"num_sockets"`

	// System Information
	Hostname      string `yaml:"hostname"`
	OSInfo        string `yaml:"os_info"`
	KernelVersion string `yaml:"kernel_version"`

	Perf PerfConfig `yaml:"perf"`
	RDT  RDTConfig  `yaml:"rdt"`
}

// PerfConfig summarises hardware performance counter availability.
type PerfConfig struct {
	Supported bool `yaml:"supported"`
	// Paranoid is the perf_event_paranoid level, -1 when unreadable.
	Paranoid int `yaml:"paranoid"`
	// CountersUsable is set when an instructions counter could be opened
	// and read on the calling thread.
	CountersUsable bool   `yaml:"counters_usable"`
	ProbeError     string `yaml:"probe_error,omitempty"`
}

// RDTConfig contains RDT system configuration
type RDTConfig struct {
	Supported           bool                `yaml:"supported"`
	MonitoringFeatures  map[string][]string `yaml:"monitoring_features,omitempty"`
	AvailableClasses    []string            `yaml:"available_classes,omitempty"`
	AllocationSupported bool                `yaml:"allocation_supported"`
}

// InspectOptions selects the optional, more intrusive host checks.
type InspectOptions struct {
	// ProbeCounters opens a real hardware counter to confirm access.
	ProbeCounters bool
	// InitRDT initialises the resctrl filesystem to report RDT support.
	InitRDT bool
}

// Inspect gathers a fresh HostConfig.
func Inspect(opts InspectOptions) (*HostConfig, error) {
	logger := logging.GetLogger()
	logger.Debug("Inspecting host configuration")

	config := &HostConfig{}

	if err := config.initSystemInfo(); err != nil {
		return nil, fmt.Errorf("failed to initialize system info: %w", err)
	}

	config.initCPUInfo()
	config.initPerfInfo(opts.ProbeCounters)

	if opts.InitRDT {
		if err := config.initRDTInfo(); err != nil {
			logger.WithError(err).Warn("Failed to initialize RDT info, RDT features disabled")
			config.RDT.Supported = false
		}
	}

	logger.WithFields(logrus.Fields{
		"cpu_model":       config.CPUModel,
		"kernel":          config.KernelVersion,
		"perf_supported":  config.Perf.Supported,
		"perf_paranoid":   config.Perf.Paranoid,
		"counters_usable": config.Perf.CountersUsable,
		"rdt_supported":   config.RDT.Supported,
	}).Debug("Host configuration initialized")

	return config, nil
}

func (hc *HostConfig) initSystemInfo() error {
	hostname, err := os.Hostname()
	if err != nil {
		return fmt.Errorf("failed to get hostname: %w", err)
	}
	hc.Hostname = hostname

	hc.OSInfo = runtime.GOOS + "/" + runtime.GOARCH

	if data, err := os.ReadFile("/proc/version"); err == nil {
		version := strings.Fields(string(data))
		if len(version) >= 3 {
			hc.KernelVersion = version[2]
		}
	}

	if hc.KernelVersion == "" {
		hc.KernelVersion = "unknown"
	}

	return nil
}

func (hc *HostConfig) initCPUInfo() {
	hc.TotalThreads = runtime.NumCPU()
	hc.CPUVendor = "unknown"
	hc.CPUModel = "unknown"
	hc.NumSockets = 1

	file, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return
	}
	defer file.Close()

	vendor, model := "", ""
	physicalIDs := make(map[string]bool)
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "vendor_id":
			if vendor == "" {
				vendor = value
			}
		case "model name":
			if model == "" {
				model = value
			}
		case "CPU implementer":
			// arm64 reports no vendor_id
			if vendor == "" {
				vendor = "arm:" + value
			}
		case "physical id":
			physicalIDs[value] = true
		}
	}

	if vendor != "" {
		hc.CPUVendor = vendor
	}
	if model != "" {
		hc.CPUModel = model
	}
	if len(physicalIDs) > 0 {
		hc.NumSockets = len(physicalIDs)
	}
}

func (hc *HostConfig) initPerfInfo(probe bool) {
	hc.Perf.Supported = perf.Supported()
	hc.Perf.Paranoid = -1
	if level, err := ReadPerfEventParanoid(PerfEventParanoidPath); err == nil {
		hc.Perf.Paranoid = level
	}

	if !probe || !hc.Perf.Supported {
		return
	}
	if err := probeInstructionCounter(); err != nil {
		hc.Perf.ProbeError = err.Error()
		return
	}
	hc.Perf.CountersUsable = true
}

// probeInstructionCounter opens, runs and reads a user-space instructions
// counter for the calling thread.
func probeInstructionCounter() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	attr := &perf.Attr{}
	perf.Instructions.Configure(attr)
	attr.Options.ExcludeKernel = true
	attr.Options.ExcludeHypervisor = true
	attr.Options.Disabled = true

	event, err := perf.Open(attr, perf.CallingThread, perf.AnyCPU, nil)
	if err != nil {
		return fmt.Errorf("open instructions counter: %w", err)
	}
	defer event.Close()

	if err := event.Enable(); err != nil {
		return fmt.Errorf("enable instructions counter: %w", err)
	}
	sum := 0
	for i := 0; i < 1000; i++ {
		sum += i
	}
	_ = sum
	if err := event.Disable(); err != nil {
		return fmt.Errorf("disable instructions counter: %w", err)
	}

	count, err := event.ReadCount()
	if err != nil {
		return fmt.Errorf("read instructions counter: %w", err)
	}
	if count.Value == 0 {
		return fmt.Errorf("instructions counter read zero")
	}
	return nil
}

func (hc *HostConfig) initRDTInfo() error {
	if err := rdt.Initialize(""); err != nil {
		return err
	}

	hc.RDT.Supported = rdt.MonSupported()
	if !hc.RDT.Supported {
		return nil
	}

	for _, class := range rdt.GetClasses() {
		hc.RDT.AvailableClasses = append(hc.RDT.AvailableClasses, class.Name())
	}

	monFeatures := rdt.GetMonFeatures()
	hc.RDT.MonitoringFeatures = make(map[string][]string)
	for resource, features := range monFeatures {
		hc.RDT.MonitoringFeatures[string(resource)] = features
	}

	hc.RDT.AllocationSupported = len(hc.RDT.AvailableClasses) > 0

	return nil
}

// ReadPerfEventParanoid parses the perf_event_paranoid level stored at path.
func ReadPerfEventParanoid(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	level, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed %s: %w", path, err)
	}
	return level, nil
}
