package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwTypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// DayMetrics summarizes one product-day run
type DayMetrics struct {
	Product        string
	Date           time.Time
	FilesOK        int
	FilesFailed    int
	PixelsAccepted int64
	CellsFilled    int
	Duration       time.Duration
}

// RangeMetrics summarizes one date-range run
type RangeMetrics struct {
	Processed int
	Failed    int
	Elapsed   time.Duration
}

// Publisher emits run metrics
type Publisher interface {
	PublishDay(ctx context.Context, m DayMetrics) error
	PublishRange(ctx context.Context, m RangeMetrics) error
}

// NopPublisher discards metrics (metrics disabled, tests)
type NopPublisher struct{}

// PublishDay implements Publisher
func (NopPublisher) PublishDay(context.Context, DayMetrics) error { return nil }

// PublishRange implements Publisher
func (NopPublisher) PublishRange(context.Context, RangeMetrics) error { return nil }

// CloudWatchAPI is the subset of the CloudWatch SDK client used by the publisher
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchPublisher publishes metrics under the configured namespace
type CloudWatchPublisher struct {
	client    CloudWatchAPI
	namespace string
}

// NewCloudWatchPublisher creates a publisher
func NewCloudWatchPublisher(client CloudWatchAPI, namespace string) *CloudWatchPublisher {
	return &CloudWatchPublisher{client: client, namespace: namespace}
}

// PublishDay emits file, pixel and cell counts dimensioned by Product.
// CellsFilled doubles as the heartbeat for a "no data produced" alarm.
func (p *CloudWatchPublisher) PublishDay(ctx context.Context, m DayMetrics) error {
	dims := []cwTypes.Dimension{
		{
			Name:  aws.String("Product"),
			Value: aws.String(m.Product),
		},
	}
	ts := aws.Time(time.Now())

	_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(p.namespace),
		MetricData: []cwTypes.MetricDatum{
			{
				MetricName: aws.String("FilesGridded"),
				Value:      aws.Float64(float64(m.FilesOK)),
				Unit:       cwTypes.StandardUnitCount,
				Dimensions: dims,
				Timestamp:  ts,
			},
			{
				MetricName: aws.String("FilesFailed"),
				Value:      aws.Float64(float64(m.FilesFailed)),
				Unit:       cwTypes.StandardUnitCount,
				Dimensions: dims,
				Timestamp:  ts,
			},
			{
				MetricName: aws.String("PixelsAccepted"),
				Value:      aws.Float64(float64(m.PixelsAccepted)),
				Unit:       cwTypes.StandardUnitCount,
				Dimensions: dims,
				Timestamp:  ts,
			},
			{
				MetricName: aws.String("CellsFilled"),
				Value:      aws.Float64(float64(m.CellsFilled)),
				Unit:       cwTypes.StandardUnitCount,
				Dimensions: dims,
				Timestamp:  ts,
			},
			{
				MetricName: aws.String("DayDuration"),
				Value:      aws.Float64(m.Duration.Seconds()),
				Unit:       cwTypes.StandardUnitSeconds,
				Dimensions: dims,
				Timestamp:  ts,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish day metrics: %w", err)
	}
	return nil
}

// PublishRange emits DaysProcessed, DaysFailed and RangeDuration
func (p *CloudWatchPublisher) PublishRange(ctx context.Context, m RangeMetrics) error {
	_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(p.namespace),
		MetricData: []cwTypes.MetricDatum{
			{
				MetricName: aws.String("DaysProcessed"),
				Value:      aws.Float64(float64(m.Processed)),
				Unit:       cwTypes.StandardUnitCount,
			},
			{
				MetricName: aws.String("DaysFailed"),
				Value:      aws.Float64(float64(m.Failed)),
				Unit:       cwTypes.StandardUnitCount,
			},
			{
				MetricName: aws.String("RangeDuration"),
				Value:      aws.Float64(m.Elapsed.Seconds()),
				Unit:       cwTypes.StandardUnitSeconds,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish range metrics: %w", err)
	}
	return nil
}
