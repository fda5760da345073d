// Package readiness verifies that a slot holds the expected accelerator image.
package readiness

import (
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/worldland/fpga-offload/internal/domain"
)

// Checker gates register access on the loaded image reporting the expected identity
type Checker struct {
	images   domain.ImageManager
	expected domain.Identity
	log      logrus.FieldLogger
}

// NewChecker creates a checker comparing the application PF against expected
func NewChecker(images domain.ImageManager, expected domain.Identity, log logrus.FieldLogger) *Checker {
	return &Checker{images: images, expected: expected, log: log}
}

// Expected returns the identity the checker compares against
func (c *Checker) Expected() domain.Identity {
	return c.expected
}

// CheckReady describes the image in slot and compares its application PF
// identity. On a mismatch it rescans the slot's PFs exactly once and checks
// again; a second mismatch is permanent.
func (c *Checker) CheckReady(slot domain.AcceleratorSlot) error {
	log := c.log.WithField("slot", slot)
	attempt := 0

	check := func() error {
		if attempt > 0 {
			log.Info("AFI does not show expected PCI vendor id and device id, rescanning application PFs")
			if err := c.images.RescanAppPFs(slot); err != nil {
				return backoff.Permanent(&domain.ReadinessError{Slot: slot, Op: "rescan", Err: err})
			}
		}
		attempt++

		info, err := c.images.DescribeLocalImage(slot)
		if err != nil {
			return backoff.Permanent(&domain.ReadinessError{Slot: slot, Op: "describe", Err: err})
		}
		observed := info.AppIdentity()
		log.WithFields(logrus.Fields{
			"status":    info.Status.String(),
			"vendor_id": hex16(observed.VendorID),
			"device_id": hex16(observed.DeviceID),
		}).Info("AFI PCI identity")

		if info.Status != domain.ImageStatusLoaded {
			return backoff.Permanent(&domain.ReadinessError{
				Slot:     slot,
				Op:       "verify",
				Expected: c.expected,
				Observed: observed,
				Err:      domain.ErrImageNotLoaded,
			})
		}
		if observed != c.expected {
			return &domain.ReadinessError{
				Slot:     slot,
				Op:       "verify",
				Expected: c.expected,
				Observed: observed,
				Err:      domain.ErrIdentityMismatch,
			}
		}
		return nil
	}

	// One corrective rescan, no delay between the two checks
	policy := backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 1)
	if err := backoff.Retry(check, policy); err != nil {
		var re *domain.ReadinessError
		if errors.As(err, &re) && errors.Is(re.Err, domain.ErrIdentityMismatch) {
			log.WithError(err).Error("The PCI vendor id and device id of the loaded AFI are not the expected values")
		}
		return err
	}
	return nil
}

func hex16(v uint16) string {
	return fmt.Sprintf("0x%04x", v)
}
