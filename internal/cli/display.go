package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	units "github.com/docker/go-units"

	"github.com/worldland/fpga-offload/internal/services"
	"github.com/worldland/fpga-offload/internal/setup"
)

// Output receives everything printed by this package
var Output io.Writer = os.Stdout

// PrintHeader prints a section header
func PrintHeader(title string) {
	fmt.Fprintf(Output, "\n=== %s ===\n", title)
}

// PrintField prints a labeled field
func PrintField(label, value string) {
	fmt.Fprintf(Output, "  %-14s %s\n", label+":", value)
}

// PrintReport displays the outcome of an offload run
func PrintReport(r *services.Report) {
	PrintHeader(fmt.Sprintf("Dot product, %d dimensions, %d trials", r.VectorLength, r.Trials))
	PrintField("Run", r.RunID)
	PrintField("Target", r.Target.String())
	PrintField("Seed", fmt.Sprintf("%d", r.Seed))
	PrintField("CPU runtime", formatDuration(r.HostDuration))
	PrintField("FPGA runtime", formatDuration(r.DeviceDuration))
	PrintField("Round trips", fmt.Sprintf("%d", r.RoundTrips))
	if r.RoundTrips > 0 {
		PrintField("Per element", formatDuration(r.DeviceDuration/time.Duration(r.RoundTrips)))
	}
	PrintField("CPU result", fmt.Sprintf("%.2f", r.Comparison.Host))
	PrintField("FPGA result", fmt.Sprintf("%.2f", r.Comparison.Device))

	if r.Comparison.Match {
		PrintSuccess("Result of FPGA and CPU match!")
	} else {
		PrintError(fmt.Sprintf("result of FPGA %.2f does not match expected %.2f",
			r.Comparison.Device, r.Comparison.Host))
	}
}

// PrintStatusRegister displays the auxiliary status register with its bits
func PrintStatusRegister(slot int, value uint32) {
	PrintHeader(fmt.Sprintf("Slot %d status", slot))
	PrintField("Register", fmt.Sprintf("0x%08x", value))
	PrintField("Bits", fmt.Sprintf("%016b", value&0xFFFF))
}

// PrintPreflight displays the preflight checks
func PrintPreflight(r *setup.PreflightResult) {
	PrintHeader("Preflight")
	for _, c := range r.Checks {
		if c.OK {
			fmt.Fprintf(Output, "  [ok]   %s: %s\n", c.Name, c.Detail)
		} else {
			fmt.Fprintf(Output, "  [fail] %s: %s\n", c.Name, c.Detail)
		}
	}
	fmt.Fprintf(Output, "  OS: %s %s\n", r.OSId, r.OSVersion)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Fprintf(Output, "\n%s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintf(Output, "\nError: %s\n", message)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.String()
	}
	return fmt.Sprintf("%s (%s)", d.Round(time.Millisecond), units.HumanDuration(d))
}
