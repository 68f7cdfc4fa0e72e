package internaldefs

import (
	"strconv"
	"strings"

	"github.com/spintune/authcore"
)

// Namespace prefixes every exported series.
const Namespace = "authcore"

type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: authcore.MetricRegisterSuccess, Name: "authcore_register_success_total", Help: "Successful registrations."},
	{ID: authcore.MetricRegisterDuplicate, Name: "authcore_register_duplicate_total", Help: "Registrations rejected for a taken email."},
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Logins that issued tokens."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Logins rejected for bad credentials or a bad second factor."},
	{ID: authcore.MetricLoginMFAChallenge, Name: "authcore_login_mfa_challenge_total", Help: "Logins answered with an MFA challenge."},
	{ID: authcore.MetricLoginRateLimited, Name: "authcore_login_rate_limited_total", Help: "Logins refused by the attempt limiter."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authcore.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Rejected refresh tokens."},
	{ID: authcore.MetricRefreshReuseDetected, Name: "authcore_refresh_reuse_detected_total", Help: "Refresh tokens presented after rotation."},
	{ID: authcore.MetricMFASetupStarted, Name: "authcore_mfa_setup_started_total", Help: "Staged MFA enrollments."},
	{ID: authcore.MetricMFAEnabled, Name: "authcore_mfa_enabled_total", Help: "MFA enrollments confirmed."},
	{ID: authcore.MetricMFADisabled, Name: "authcore_mfa_disabled_total", Help: "MFA disables."},
	{ID: authcore.MetricMFAFailure, Name: "authcore_mfa_failure_total", Help: "Rejected second-factor codes."},
	{ID: authcore.MetricMFARateLimited, Name: "authcore_mfa_rate_limited_total", Help: "Second-factor checks refused by the attempt limiter."},
	{ID: authcore.MetricBackupCodeUsed, Name: "authcore_backup_code_used_total", Help: "Backup codes consumed."},
	{ID: authcore.MetricBackupCodesRegenerated, Name: "authcore_backup_codes_regenerated_total", Help: "Backup code set replacements."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Logouts."},
	{ID: authcore.MetricStoreRetry, Name: "authcore_store_retry_total", Help: "Store calls retried after a backend fault."},
}

var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricValidateLatency, Name: "authcore_validate_latency_seconds", Help: "Access token validation latency."},
}

const (
	EventsDroppedName = "authcore_events_dropped_total"
	EventsDroppedHelp = "Events lost to a full dispatcher buffer."
	EventsFailedName  = "authcore_events_failed_total"
	EventsFailedHelp  = "Events the publisher rejected."
)

// UpperBounds returns the finite bucket bounds in seconds. The engine keeps
// one extra unbounded bucket.
func UpperBounds() []float64 {
	bounds := authcore.HistogramBucketBounds()
	out := make([]float64, len(bounds))
	for i, b := range bounds {
		out[i] = b.Seconds()
	}
	return out
}

// BoundSuffix renders a bound for use in a series name: 0.005 → "0_005".
// The unbounded bucket is "inf".
func BoundSuffix(bound float64, last bool) string {
	if last {
		return "inf"
	}
	return strings.ReplaceAll(strconv.FormatFloat(bound, 'f', -1, 64), ".", "_")
}

// NormalizeBuckets pads or truncates raw to len(UpperBounds())+1 entries.
func NormalizeBuckets(raw []uint64) []uint64 {
	out := make([]uint64, len(authcore.HistogramBucketBounds())+1)
	copy(out, raw)
	return out
}

func CumulativeBuckets(raw []uint64) []uint64 {
	out := make([]uint64, len(raw))
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
