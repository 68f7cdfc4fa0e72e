package security

import (
	"testing"
	"time"
)

func TestBuildReportDefaultsHaveNoWarnings(t *testing.T) {
	r := BuildReport(ReportInput{
		SigningAlgorithm:  "hs256",
		AccessTTL:         15 * time.Minute,
		RefreshTTL:        7 * 24 * time.Hour,
		RevokeOnReuse:     true,
		TOTPSkew:          1,
		LoginLimitEnabled: true,
		LoginMaxAttempts:  10,
		MFALimitEnabled:   true,
		MFAMaxAttempts:    5,
		RedisBacked:       true,
	})
	if len(r.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", r.Warnings)
	}
	if r.AsymmetricSigning {
		t.Fatal("hs256 reported as asymmetric")
	}
	if !r.RefreshRotationEnabled {
		t.Fatal("rotation is always on")
	}
}

func TestBuildReportFlagsWeakSettings(t *testing.T) {
	r := BuildReport(ReportInput{
		SigningAlgorithm: "ed25519",
		TOTPSkew:         3,
		LoginMaxAttempts: 10,
	})
	if !r.AsymmetricSigning {
		t.Fatal("ed25519 should be asymmetric")
	}
	if r.LoginLimitActive || r.MFALimitActive {
		t.Fatal("disabled limits reported active")
	}
	if len(r.Warnings) != 5 {
		t.Fatalf("expected 5 warnings, got %d: %v", len(r.Warnings), r.Warnings)
	}
}
