package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chaosnative/chaos-runner/pkg/actuator"
	"github.com/chaosnative/chaos-runner/pkg/actuator/aws"
	"github.com/chaosnative/chaos-runner/pkg/actuator/kube"
	"github.com/chaosnative/chaos-runner/pkg/clients"
	"github.com/chaosnative/chaos-runner/pkg/environment"
	"github.com/chaosnative/chaos-runner/pkg/experiment"
	"github.com/chaosnative/chaos-runner/pkg/log"
	"github.com/chaosnative/chaos-runner/pkg/metrics"
	"github.com/chaosnative/chaos-runner/pkg/runner"
	"github.com/chaosnative/chaos-runner/pkg/targets"
	"github.com/chaosnative/chaos-runner/pkg/telemetry"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:          true,
		DisableSorting:         true,
		DisableLevelTruncation: true,
	})
}

func main() {
	var (
		definitionFile string
		driver         string
		kubeconfig     string
	)

	cmd := &cobra.Command{
		Use:           "chaos-runner",
		Short:         "Run a chaos experiment from a YAML definition",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(definitionFile, driver, kubeconfig)
		},
	}
	cmd.Flags().StringVarP(&definitionFile, "file", "f", "", "path to the experiment definition YAML")
	cmd.Flags().StringVar(&driver, "driver", "pod-delete", "chaos driver: ec2 or pod-delete")
	cmd.Flags().StringVar(&kubeconfig, "kubeconfig", "", "path to the kubeconfig, in-cluster config when empty")
	cmd.MarkFlagRequired("file")

	if err := cmd.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(definitionFile, driver, kubeconfig string) error {
	settings := environment.Settings{}
	environment.GetENV(&settings)

	definition, err := experiment.Load(definitionFile)
	if err != nil {
		return err
	}
	duration, err := definition.RunDuration()
	if err != nil {
		return err
	}
	settings.PollInterval, err = definition.RunPollInterval(settings.PollInterval)
	if err != nil {
		return err
	}

	// rollback must finish before the process exits, so the runner gets the
	// signal through context cancellation rather than a hard kill
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if settings.OTLPEndpoint != "" {
		shutdown, err := telemetry.InitOTelSDK(ctx, settings.OTLPEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Errorf("Unable to shutdown the tracing provider, err: %v", err)
			}
		}()
	}

	registry, err := buildRegistry(definition, settings)
	if err != nil {
		return err
	}
	chaosActuator, clientSets, err := buildActuator(driver, kubeconfig, settings)
	if err != nil {
		return err
	}
	eligible, err := listEligibleTargets(ctx, definition, clientSets, settings)
	if err != nil {
		return err
	}

	log.InfoWithValues("[Run]: Starting chaos experiment", logrus.Fields{
		"Experiment":  definition.Name,
		"Driver":      driver,
		"Eligible":    len(eligible),
		"BlastRadius": fmt.Sprintf("%d%%", definition.BlastRadius.Percentage),
		"Duration":    duration,
	})

	r := runner.New(registry, chaosActuator, settings)
	r.Name = definition.Name
	res := r.Run(ctx, definition.Hypothesis, definition.Steps, definition.BlastRadius, duration, eligible)
	if !res.Success {
		return fmt.Errorf("experiment '%s' did not pass: %s", definition.Name, res.FailureReason)
	}
	return nil
}

// buildRegistry binds every metric the hypothesis references to the
// Prometheus backend using the PromQL from the definition
func buildRegistry(definition *experiment.Definition, settings environment.Settings) (*metrics.Registry, error) {
	if settings.PrometheusEndpoint == "" {
		return nil, fmt.Errorf("no metric backend configured, set PROMETHEUS_ENDPOINT")
	}
	source, err := metrics.NewPromSource(settings.PrometheusEndpoint)
	if err != nil {
		return nil, err
	}
	registry := metrics.NewRegistry()
	for metric, query := range definition.Metrics {
		source.WithQuery(metric, query)
		registry.Register(metric, source)
	}
	return registry, nil
}

// buildActuator selects the chaos driver; the kubernetes clientset is only
// generated for drivers and target lookups that need the cluster
func buildActuator(driver, kubeconfig string, settings environment.Settings) (actuator.ChaosActuator, *clients.ClientSets, error) {
	switch driver {
	case "ec2":
		return aws.NewEC2Actuator(settings.AWSRegion), nil, nil
	case "pod-delete":
		clientSets := &clients.ClientSets{}
		if err := clientSets.GenerateClientSetFromKubeConfig(kubeconfig); err != nil {
			return nil, nil, fmt.Errorf("unable to generate the kubernetes clientset: %w", err)
		}
		return kube.NewPodDeleteActuator(clientSets.KubeClient, settings.ChaosNamespace, settings.ForcePodDelete), clientSets, nil
	default:
		return nil, nil, fmt.Errorf("unsupported --driver %s, expected ec2 or pod-delete", driver)
	}
}

// listEligibleTargets resolves the eligible population: a fixed list from
// the definition, or a live pod lookup by label selector
func listEligibleTargets(ctx context.Context, definition *experiment.Definition, clientSets *clients.ClientSets, settings environment.Settings) ([]string, error) {
	if len(definition.Targets) > 0 {
		return targets.NewStaticRegistry(definition.Targets...).ListEligible(ctx, "")
	}
	if definition.TargetSelector == "" {
		return nil, fmt.Errorf("experiment '%s' names neither targets nor a target selector", definition.Name)
	}
	if clientSets == nil {
		clientSets = &clients.ClientSets{}
		if err := clientSets.GenerateClientSetFromKubeConfig(""); err != nil {
			return nil, fmt.Errorf("unable to generate the kubernetes clientset: %w", err)
		}
	}
	return targets.NewPodRegistry(clientSets.KubeClient, settings.ChaosNamespace).ListEligible(ctx, definition.TargetSelector)
}
