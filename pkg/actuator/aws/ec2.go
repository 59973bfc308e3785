package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/chaosnative/chaos-runner/pkg/cerrors"
	"github.com/chaosnative/chaos-runner/pkg/log"
	"github.com/chaosnative/chaos-runner/pkg/types"
	"github.com/sirupsen/logrus"
)

const (
	// ActionStopInstance powers off the target EC2 instance for the
	// duration of the experiment
	ActionStopInstance = "stop-instance"
)

// EC2Actuator applies instance-level chaos through the EC2 API. Apply stops
// the target instance; Revert starts it again. Starting an instance that is
// already running is accepted by EC2, so Revert stays idempotent.
type EC2Actuator struct {
	region string
}

// NewEC2Actuator creates an actuator for the given default region. A step
// may override the region through its 'region' parameter.
func NewEC2Actuator(region string) *EC2Actuator {
	return &EC2Actuator{region: region}
}

// Apply executes the chaos action on the target instance
func (a *EC2Actuator) Apply(ctx context.Context, step types.ExperimentStep) error {
	if step.Action != ActionStopInstance {
		return cerrors.Error{
			ErrorCode: cerrors.ErrorTypeChaosInject,
			Target:    step.Target,
			Reason:    fmt.Sprintf("action '%s' not supported by the ec2 actuator", step.Action),
		}
	}

	svc, region, err := a.client(step)
	if err != nil {
		return err
	}

	result, err := svc.StopInstancesWithContext(ctx, &ec2.StopInstancesInput{
		InstanceIds: []*string{aws.String(step.Target)},
	})
	if err != nil {
		return cerrors.Error{
			ErrorCode: cerrors.ErrorTypeChaosInject,
			Target:    fmt.Sprintf("{EC2 Instance ID: %v, Region: %v}", step.Target, region),
			Reason:    fmt.Sprintf("failed to stop EC2 instance: %v", describeAWSError(err)),
		}
	}

	log.InfoWithValues("Stopping EC2 instance:", logrus.Fields{
		"CurrentState":  aws.StringValue(result.StoppingInstances[0].CurrentState.Name),
		"PreviousState": aws.StringValue(result.StoppingInstances[0].PreviousState.Name),
		"InstanceId":    aws.StringValue(result.StoppingInstances[0].InstanceId),
	})
	return nil
}

// Revert starts the target instance back up. EC2 treats starting a running
// instance as a no-op, which keeps reversal idempotent.
func (a *EC2Actuator) Revert(ctx context.Context, step types.ExperimentStep) error {
	if step.Action != ActionStopInstance {
		return nil
	}

	svc, region, err := a.client(step)
	if err != nil {
		return err
	}

	result, err := svc.StartInstancesWithContext(ctx, &ec2.StartInstancesInput{
		InstanceIds: []*string{aws.String(step.Target)},
	})
	if err != nil {
		return cerrors.Error{
			ErrorCode: cerrors.ErrorTypeChaosRevert,
			Target:    fmt.Sprintf("{EC2 Instance ID: %v, Region: %v}", step.Target, region),
			Reason:    fmt.Sprintf("failed to start EC2 instance: %v", describeAWSError(err)),
		}
	}

	log.InfoWithValues("Starting EC2 instance:", logrus.Fields{
		"CurrentState":  aws.StringValue(result.StartingInstances[0].CurrentState.Name),
		"PreviousState": aws.StringValue(result.StartingInstances[0].PreviousState.Name),
		"InstanceId":    aws.StringValue(result.StartingInstances[0].InstanceId),
	})
	return nil
}

func (a *EC2Actuator) client(step types.ExperimentStep) (*ec2.EC2, string, error) {
	region := a.region
	if override, ok := step.Parameters["region"]; ok && override != "" {
		region = override
	}

	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, region, cerrors.Error{
			ErrorCode: cerrors.ErrorTypeChaosInject,
			Target:    step.Target,
			Reason:    fmt.Sprintf("unable to create AWS session: %v", err),
		}
	}
	return ec2.New(sess), region, nil
}

func describeAWSError(err error) string {
	if awsErr, ok := err.(awserr.Error); ok {
		return fmt.Sprintf("%s: %s", awsErr.Code(), awsErr.Message())
	}
	return err.Error()
}
