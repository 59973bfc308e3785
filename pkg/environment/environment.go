package environment

import (
	"strconv"
	"time"

	"github.com/chaosnative/chaos-runner/pkg/types"
)

// Settings holds the runner tunables, populated from the ENV with sane
// defaults. Durations are configured in seconds, matching the rest of the
// chaos tooling.
type Settings struct {
	ProbeTimeout       time.Duration
	ProbeRetries       uint
	ProbeRetryDelay    time.Duration
	ActuatorTimeout    time.Duration
	PollInterval       time.Duration
	ChaosNamespace     string
	AWSRegion          string
	PrometheusEndpoint string
	OTLPEndpoint       string
	ForcePodDelete     bool
}

//GetENV fetches all the runner tunables from the ENV
func GetENV(settings *Settings) {
	settings.ProbeTimeout = secondsEnv("PROBE_TIMEOUT", 5)
	settings.ProbeRetries = uintEnv("PROBE_RETRIES", 1)
	settings.ProbeRetryDelay = secondsEnv("PROBE_RETRY_DELAY", 2)
	settings.ActuatorTimeout = secondsEnv("ACTUATOR_TIMEOUT", 10)
	settings.PollInterval = secondsEnv("POLL_INTERVAL", 10)
	settings.ChaosNamespace = types.Getenv("CHAOS_NAMESPACE", "default")
	settings.AWSRegion = types.Getenv("AWS_REGION", "us-east-1")
	settings.PrometheusEndpoint = types.Getenv("PROMETHEUS_ENDPOINT", "")
	settings.OTLPEndpoint = types.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	settings.ForcePodDelete, _ = strconv.ParseBool(types.Getenv("FORCE", "false"))
}

func secondsEnv(key string, defaultValue int) time.Duration {
	value, err := strconv.Atoi(types.Getenv(key, strconv.Itoa(defaultValue)))
	if err != nil || value <= 0 {
		value = defaultValue
	}
	return time.Duration(value) * time.Second
}

func uintEnv(key string, defaultValue uint) uint {
	value, err := strconv.Atoi(types.Getenv(key, strconv.Itoa(int(defaultValue))))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return uint(value)
}
