package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/worldland/fpga-offload/internal/adapters/fpga"
	"github.com/worldland/fpga-offload/internal/cli"
	"github.com/worldland/fpga-offload/internal/config"
	"github.com/worldland/fpga-offload/internal/domain"
	"github.com/worldland/fpga-offload/internal/engine"
	"github.com/worldland/fpga-offload/internal/logging"
	"github.com/worldland/fpga-offload/internal/protocol"
	"github.com/worldland/fpga-offload/internal/readiness"
	"github.com/worldland/fpga-offload/internal/services"
	"github.com/worldland/fpga-offload/internal/setup"
)

var version = "dev"

// app carries what every subcommand shares once the root pre-run has finished
type app struct {
	cfg        config.Config
	configFile string
	v          *viper.Viper
	log        *logrus.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{
		cfg: config.Default(),
		v:   viper.New(),
		log: logrus.New(),
	}

	cmd := &cobra.Command{
		Use:           "dotprod",
		Short:         "Offload dot products to an FPGA over PCIe registers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			if err := config.InitViper(a.v, a.configFile); err != nil {
				return err
			}
			config.BindCommandToViper(c, a.v)

			if err := logging.Configure(a.log, &a.cfg.Logging); err != nil {
				return fmt.Errorf("configuring logging: %w", err)
			}
			if err := a.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return nil
		},
		RunE: func(c *cobra.Command, _ []string) error {
			return c.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&a.configFile, "config", "", "Config file (default $HOME/.config/dotprod/config.yaml)")
	logging.AddFlagsToCommand(cmd, &a.cfg.Logging)
	config.AddAcceleratorFlags(cmd, &a.cfg)

	cmd.AddCommand(
		a.runCommand(),
		a.checkCommand(),
		a.statusCommand(),
		a.preflightCommand(),
		versionCommand(),
	)
	return cmd
}

func (a *app) runCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run host trials and validate the first one on the FPGA",
		RunE: func(c *cobra.Command, _ []string) error {
			h := a.harness()
			report, err := h.Run(c.Context())
			if err != nil {
				return err
			}
			cli.PrintReport(report)

			if a.cfg.MetricsTextfile != "" {
				if err := h.Metrics().WriteTextfile(a.cfg.MetricsTextfile); err != nil {
					return fmt.Errorf("writing metrics: %w", err)
				}
				a.log.WithField("path", a.cfg.MetricsTextfile).Info("Metrics written")
			}
			return nil
		},
	}
	config.AddBenchmarkFlags(cmd, &a.cfg)
	return cmd
}

func (a *app) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the configured slot carries the expected image",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := a.harness().Check(); err != nil {
				return err
			}
			cli.PrintSuccess(fmt.Sprintf("Slot %d is ready (%s)", a.cfg.Slot, a.cfg.Expected()))
			return nil
		},
	}
}

func (a *app) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Read the accelerator's auxiliary status register",
		RunE: func(_ *cobra.Command, _ []string) error {
			status, err := a.harness().ReadStatus()
			if err != nil {
				return err
			}
			cli.PrintStatusRegister(a.cfg.Slot, status)
			return nil
		},
	}
}

func (a *app) preflightCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check host prerequisites for register access",
		RunE: func(_ *cobra.Command, _ []string) error {
			p := setup.NewPreflight(afero.NewOsFs(), a.cfg.SysfsRoot)
			target := a.cfg.Target()
			result := p.Run(target.Slot, a.cfg.SlotTable()[target.Slot], target.Bar)
			cli.PrintPreflight(result)
			if failed := result.Failed(); len(failed) > 0 {
				return fmt.Errorf("preflight failed: %v", failed)
			}
			return nil
		},
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(_ *cobra.Command, _ []string) {
			cli.PrintField("Version", version)
		},
	}
}

func (a *app) platform() domain.Platform {
	if a.cfg.Mock {
		a.log.Warn("Using in-memory accelerator, no hardware is touched")
		return fpga.NewMockPlatform(fpga.LoadedImage(domain.AcceleratorSlot(a.cfg.Slot), a.cfg.Expected()))
	}
	return fpga.NewSysfsPlatform(afero.NewOsFs(), a.cfg.SysfsRoot, a.cfg.SlotTable())
}

func (a *app) harness() *services.Harness {
	p := a.platform()
	checker := readiness.NewChecker(p, a.cfg.Expected(), a.log)
	eng := engine.New(protocol.DotProduct, a.cfg.Tolerance)
	return services.NewHarness(p, checker, eng, services.NewMetrics(), services.HarnessConfig{
		Target:       a.cfg.Target(),
		Trials:       a.cfg.Trials,
		VectorLength: a.cfg.VectorLength,
		Seed:         a.cfg.Seed,
	}, a.log)
}
