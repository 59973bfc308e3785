package experiment

import (
	"fmt"
	"os"
	"time"

	"github.com/chaosnative/chaos-runner/pkg/cerrors"
	"github.com/chaosnative/chaos-runner/pkg/types"
	"gopkg.in/yaml.v2"
)

// Definition is the storable form of one chaos experiment: hypothesis,
// steps, blast radius, timing and the PromQL behind each referenced metric.
// Everything in it is data, the rollback condition included, so definitions
// can be reviewed and audited without executing anything.
type Definition struct {
	Name           string                 `yaml:"name"`
	Hypothesis     types.Hypothesis       `yaml:"hypothesis"`
	Steps          []types.ExperimentStep `yaml:"steps"`
	BlastRadius    types.BlastRadiusSpec  `yaml:"blastRadius"`
	Duration       string                 `yaml:"duration"`
	PollInterval   string                 `yaml:"pollInterval,omitempty"`
	TargetSelector string                 `yaml:"targetSelector,omitempty"`
	Targets        []string               `yaml:"targets,omitempty"`
	Metrics        map[string]string      `yaml:"metrics,omitempty"`
}

// Load reads and validates an experiment definition from a YAML file
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.Error{
			ErrorCode: cerrors.ErrorTypeGeneric,
			Target:    path,
			Reason:    fmt.Sprintf("unable to read experiment definition: %v", err),
		}
	}
	return Parse(data)
}

// Parse decodes and validates an experiment definition
func Parse(data []byte) (*Definition, error) {
	definition := &Definition{}
	if err := yaml.UnmarshalStrict(data, definition); err != nil {
		return nil, cerrors.Error{
			ErrorCode: cerrors.ErrorTypeGeneric,
			Reason:    fmt.Sprintf("unable to decode experiment definition: %v", err),
		}
	}
	if err := definition.Validate(); err != nil {
		return nil, err
	}
	return definition, nil
}

// Validate rejects malformed definitions before any side effect
func (d *Definition) Validate() error {
	if d.Name == "" {
		return invalid("experiment has no name")
	}
	if len(d.Steps) == 0 {
		return invalid("experiment has no steps")
	}
	for i, step := range d.Steps {
		if step.Action == "" {
			return invalid(fmt.Sprintf("step %d has no action", i+1))
		}
	}
	if err := d.Hypothesis.Validate(); err != nil {
		return invalid(err.Error())
	}
	if err := d.BlastRadius.Validate(); err != nil {
		return invalid(err.Error())
	}
	if _, err := d.RunDuration(); err != nil {
		return err
	}
	if _, err := d.RunPollInterval(0); err != nil {
		return err
	}
	if len(d.Metrics) > 0 {
		for _, metric := range d.Hypothesis.Metrics() {
			if _, ok := d.Metrics[metric]; !ok {
				return invalid(fmt.Sprintf("metric '%s' referenced by the hypothesis has no query", metric))
			}
		}
	}
	return nil
}

// RunDuration parses the monitoring window length
func (d *Definition) RunDuration() (time.Duration, error) {
	duration, err := time.ParseDuration(d.Duration)
	if err != nil || duration <= 0 {
		return 0, invalid(fmt.Sprintf("invalid experiment duration '%s'", d.Duration))
	}
	return duration, nil
}

// RunPollInterval parses the monitoring poll interval, falling back to the
// given default when the definition leaves it unset
func (d *Definition) RunPollInterval(defaultInterval time.Duration) (time.Duration, error) {
	if d.PollInterval == "" {
		return defaultInterval, nil
	}
	interval, err := time.ParseDuration(d.PollInterval)
	if err != nil || interval <= 0 {
		return 0, invalid(fmt.Sprintf("invalid poll interval '%s'", d.PollInterval))
	}
	return interval, nil
}

func invalid(reason string) error {
	return cerrors.Error{
		ErrorCode: cerrors.ErrorTypeInvalidHypothesis,
		Reason:    reason,
	}
}
