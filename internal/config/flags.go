package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	slotFlag            = "slot"
	pfFlag              = "pf"
	barFlag             = "bar"
	burstFlag           = "burst"
	vendorIDFlag        = "vendor-id"
	deviceIDFlag        = "device-id"
	appBDFFlag          = "app-bdf"
	mgmtBDFFlag         = "mgmt-bdf"
	sysfsRootFlag       = "sysfs-root"
	trialsFlag          = "trials"
	vectorLengthFlag    = "vector-length"
	seedFlag            = "seed"
	toleranceFlag       = "tolerance"
	metricsTextfileFlag = "metrics-textfile"
	mockFlag            = "mock"
)

// EnvPrefix prefixes environment overrides, e.g. DOTPROD_SLOT
const EnvPrefix = "DOTPROD"

// AddAcceleratorFlags registers the flags selecting and identifying the accelerator
func AddAcceleratorFlags(cmd *cobra.Command, cfg *Config) {
	def := Default()
	fs := cmd.PersistentFlags()
	fs.IntVar(&cfg.Slot, slotFlag, def.Slot, "FPGA slot to use")
	fs.IntVar(&cfg.PF, pfFlag, def.PF, "Physical function (0 app, 1 mgmt)")
	fs.IntVar(&cfg.Bar, barFlag, def.Bar, "BAR to attach to")
	fs.BoolVar(&cfg.Burst, burstFlag, def.Burst, "Map the write-combining view of the BAR")
	fs.Uint16Var(&cfg.VendorID, vendorIDFlag, def.VendorID, "Expected PCI vendor id of the loaded image")
	fs.Uint16Var(&cfg.DeviceID, deviceIDFlag, def.DeviceID, "Expected PCI device id of the loaded image")
	fs.StringVar(&cfg.AppBDF, appBDFFlag, def.AppBDF, "PCI address of the slot's application PF")
	fs.StringVar(&cfg.MgmtBDF, mgmtBDFFlag, def.MgmtBDF, "PCI address of the slot's management PF")
	fs.StringVar(&cfg.SysfsRoot, sysfsRootFlag, def.SysfsRoot, "Mount point of sysfs")
	fs.BoolVar(&cfg.Mock, mockFlag, def.Mock, "Use an in-memory accelerator instead of real hardware")
}

// AddBenchmarkFlags registers the flags of the offload benchmark
func AddBenchmarkFlags(cmd *cobra.Command, cfg *Config) {
	def := Default()
	cmd.Flags().IntVar(&cfg.Trials, trialsFlag, def.Trials, "Number of host trials (only the first is offloaded)")
	cmd.Flags().IntVar(&cfg.VectorLength, vectorLengthFlag, def.VectorLength, "Operand vector dimension")
	cmd.Flags().Uint64Var(&cfg.Seed, seedFlag, def.Seed, "Operand generator seed (0 for random)")
	cmd.Flags().Float64Var(&cfg.Tolerance, toleranceFlag, def.Tolerance, "Absolute tolerance between device and host sums")
	cmd.Flags().StringVar(&cfg.MetricsTextfile, metricsTextfileFlag, def.MetricsTextfile, "Write run metrics to this file in Prometheus text format")
}

// InitViper sets up env and config file lookup on v
func InitViper(v *viper.Viper, configFile string) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", configFile, err)
		}
		return nil
	}

	v.SetConfigType("yaml")
	v.SetConfigName("config")
	v.AddConfigPath("$HOME/.config/dotprod/")
	v.AddConfigPath("/etc/dotprod/")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

// BindCommandToViper fills every flag not set on the command line from v
func BindCommandToViper(cmd *cobra.Command, v *viper.Viper) {
	bindFlagsToViper(cmd.PersistentFlags(), v)
	bindFlagsToViper(cmd.InheritedFlags(), v)
	bindFlagsToViper(cmd.Flags(), v)
}

func bindFlagsToViper(fs *pflag.FlagSet, v *viper.Viper) {
	fs.VisitAll(func(flag *pflag.Flag) {
		_ = v.BindPFlag(flag.Name, flag)

		if !flag.Changed && v.IsSet(flag.Name) {
			val := v.Get(flag.Name)
			_ = fs.Set(flag.Name, fmt.Sprintf("%v", val))
		}
	})
}
