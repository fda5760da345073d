package setup

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/worldland/fpga-offload/internal/adapters/fpga"
	"github.com/worldland/fpga-offload/internal/domain"
)

// CheckStatus is the outcome of one preflight check
type CheckStatus struct {
	Name   string
	OK     bool
	Detail string
}

// PreflightResult contains the results of the preflight check
type PreflightResult struct {
	Checks    []CheckStatus
	OSId      string // "amzn", "ubuntu", etc.
	OSVersion string // "2", "22.04", etc.
}

// Preflight verifies the host can reach an accelerator slot through sysfs
type Preflight struct {
	fs        afero.Fs
	sysfsRoot string
	geteuid   func() int
}

// NewPreflight creates a preflight checker over fs
func NewPreflight(fs afero.Fs, sysfsRoot string) *Preflight {
	return &Preflight{fs: fs, sysfsRoot: sysfsRoot, geteuid: os.Geteuid}
}

// Run checks privileges, the PCI sysfs tree and the slot's functions
func (p *Preflight) Run(slot domain.AcceleratorSlot, addr fpga.SlotAddress, bar domain.BarID) *PreflightResult {
	result := &PreflightResult{}
	result.OSId, result.OSVersion = p.detectOS()

	euid := p.geteuid()
	result.Checks = append(result.Checks, CheckStatus{
		Name:   "root privileges",
		OK:     euid == 0,
		Detail: fmt.Sprintf("euid %d", euid),
	})

	devices := filepath.Join(p.sysfsRoot, "bus", "pci", "devices")
	result.Checks = append(result.Checks, p.checkPath("pci sysfs", devices))

	if addr.App == "" {
		result.Checks = append(result.Checks, CheckStatus{Name: "app pf", Detail: fmt.Sprintf("no PCI address for slot %d", slot)})
		return result
	}
	appDir := filepath.Join(devices, addr.App)
	result.Checks = append(result.Checks,
		p.checkPath("app pf", appDir),
		p.checkPath(fmt.Sprintf("app pf bar%d", bar), filepath.Join(appDir, fmt.Sprintf("resource%d", bar))),
	)
	if addr.Mgmt != "" {
		result.Checks = append(result.Checks, p.checkPath("mgmt pf", filepath.Join(devices, addr.Mgmt)))
	}
	return result
}

// Failed returns the names of checks that did not pass
func (r *PreflightResult) Failed() []string {
	var failed []string
	for _, c := range r.Checks {
		if !c.OK {
			failed = append(failed, c.Name)
		}
	}
	return failed
}

func (p *Preflight) checkPath(name, path string) CheckStatus {
	cs := CheckStatus{Name: name, Detail: path}
	ok, err := afero.Exists(p.fs, path)
	if err != nil {
		cs.Detail = err.Error()
		return cs
	}
	if !ok {
		cs.Detail = path + " not found"
		return cs
	}
	cs.OK = true
	return cs
}

func (p *Preflight) detectOS() (id, version string) {
	f, err := p.fs.Open("/etc/os-release")
	if err != nil {
		return "unknown", ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "ID=") {
			id = strings.Trim(strings.TrimPrefix(line, "ID="), "\"")
		}
		if strings.HasPrefix(line, "VERSION_ID=") {
			version = strings.Trim(strings.TrimPrefix(line, "VERSION_ID="), "\"")
		}
	}
	return id, version
}
