package internaldefs

import (
	mfaflow "github.com/MrEthical07/mfaflow"
)

// CounterDef defines a public type used by mfaflow APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   mfaflow.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by mfaflow APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   mfaflow.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the flow engine.
var CounterDefs = []CounterDef{
	{ID: mfaflow.MetricFlowStarted, Name: "mfaflow_flow_started_total", Help: "Opened wizard flows."},
	{ID: mfaflow.MetricFlowCompleted, Name: "mfaflow_flow_completed_total", Help: "Flows that reached the complete step."},
	{ID: mfaflow.MetricFlowReset, Name: "mfaflow_flow_reset_total", Help: "Flow resets."},
	{ID: mfaflow.MetricFlowCancelled, Name: "mfaflow_flow_cancelled_total", Help: "Cancelled flow runs."},
	{ID: mfaflow.MetricTokenEvaluated, Name: "mfaflow_token_evaluated_total", Help: "Token evaluations."},
	{ID: mfaflow.MetricTokenInvalid, Name: "mfaflow_token_invalid_total", Help: "Token evaluations that found an invalid token."},
	{ID: mfaflow.MetricTokenSwitched, Name: "mfaflow_token_switched_total", Help: "Authoritative token kind switches."},
	{ID: mfaflow.MetricPolicyFetchSuccess, Name: "mfaflow_policy_fetch_success_total", Help: "Successful policy fetches."},
	{ID: mfaflow.MetricPolicyFetchFailure, Name: "mfaflow_policy_fetch_failure_total", Help: "Failed policy fetches."},
	{ID: mfaflow.MetricPolicyCacheHit, Name: "mfaflow_policy_cache_hit_total", Help: "Policy list requests served from cache."},
	{ID: mfaflow.MetricDeviceLookupSuccess, Name: "mfaflow_device_lookup_success_total", Help: "Successful device lookups."},
	{ID: mfaflow.MetricDeviceLookupFailure, Name: "mfaflow_device_lookup_failure_total", Help: "Failed device lookups."},
	{ID: mfaflow.MetricRegistrationSuccess, Name: "mfaflow_registration_success_total", Help: "Successful device registrations."},
	{ID: mfaflow.MetricRegistrationFailure, Name: "mfaflow_registration_failure_total", Help: "Failed device registrations."},
	{ID: mfaflow.MetricDeviceLimitRejected, Name: "mfaflow_device_limit_rejected_total", Help: "Registrations rejected by the device limit."},
	{ID: mfaflow.MetricDeviceActivated, Name: "mfaflow_device_activated_total", Help: "Device activations."},
	{ID: mfaflow.MetricDeviceDeleted, Name: "mfaflow_device_deleted_total", Help: "Device deletions."},
	{ID: mfaflow.MetricChallengeSent, Name: "mfaflow_challenge_sent_total", Help: "First OTP challenge sends."},
	{ID: mfaflow.MetricChallengeResent, Name: "mfaflow_challenge_resent_total", Help: "OTP challenge resends."},
	{ID: mfaflow.MetricChallengeCooldownHit, Name: "mfaflow_challenge_cooldown_hit_total", Help: "Resends refused by the cooldown window."},
	{ID: mfaflow.MetricChallengeValidated, Name: "mfaflow_challenge_validated_total", Help: "Successful OTP validations."},
	{ID: mfaflow.MetricChallengeFailed, Name: "mfaflow_challenge_failed_total", Help: "Failed OTP validations."},
	{ID: mfaflow.MetricChallengeAttemptsWarning, Name: "mfaflow_challenge_attempts_warning_total", Help: "Validation failures that crossed the attempt cap."},
	{ID: mfaflow.MetricAuthInitialized, Name: "mfaflow_auth_initialized_total", Help: "Initialized device authentication sessions."},
	{ID: mfaflow.MetricAuthCancelled, Name: "mfaflow_auth_cancelled_total", Help: "Cancelled device authentication sessions."},
	{ID: mfaflow.MetricAuthAnomaly, Name: "mfaflow_auth_anomaly_total", Help: "Anomalous platform next-step signals."},
	{ID: mfaflow.MetricAssertionSuccess, Name: "mfaflow_assertion_success_total", Help: "Successful WebAuthn assertions."},
	{ID: mfaflow.MetricAssertionFailure, Name: "mfaflow_assertion_failure_total", Help: "Failed WebAuthn assertions."},
	{ID: mfaflow.MetricOAuthExchangeSuccess, Name: "mfaflow_oauth_exchange_success_total", Help: "Successful authorization code exchanges."},
	{ID: mfaflow.MetricOAuthExchangeFailure, Name: "mfaflow_oauth_exchange_failure_total", Help: "Failed authorization code exchanges."},
}

// HistogramDefs is an exported constant or variable used by the flow engine.
var HistogramDefs = []HistogramDef{
	{ID: mfaflow.MetricRegisterLatency, Name: "mfaflow_register_latency_seconds", Help: "Device registration latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the flow engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the flow engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
