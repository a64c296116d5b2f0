// Package s3archive keeps an immutable JSON copy of every monthly settlement.
package s3archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	wrap "github.com/Temutjin2k/driver-engine/pkg/logger/wrapper"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Archiver writes settlements to s3://<bucket>/<prefix>/YYYY/MM/<driver_id>.json.
type Archiver struct {
	bucket   string
	prefix   string
	uploader uploader
}

// New loads the default AWS credential chain. region overrides AWS_REGION when set.
func New(ctx context.Context, bucket, prefix, region string) (*Archiver, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3archive: bucket required")
	}

	var opts []func(*awsConfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsConfig.WithRegion(region))
	}
	cfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3archive: load aws config: %w", err)
	}

	return &Archiver{
		bucket:   bucket,
		prefix:   prefix,
		uploader: manager.NewUploader(s3.NewFromConfig(cfg)),
	}, nil
}

// Archive uploads s and returns the object key.
func (a *Archiver) Archive(ctx context.Context, s models.MonthlySettlement) (string, error) {
	const op = "Archiver.Archive"

	key, err := a.Key(s)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	body, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("%s: marshal settlement: %w", op, err)
	}

	if _, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(a.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(body),
		ContentType:          aws.String("application/json"),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
		Metadata: map[string]string{
			"driver-id": s.DriverID.String(),
			"month":     s.Month,
		},
	}); err != nil {
		ctx = wrap.WithAction(wrap.WithDriverID(ctx, s.DriverID.String()), types.ActionExternalServiceFailed)
		return "", wrap.Error(ctx, fmt.Errorf("%s: upload %s: %w", op, key, err))
	}
	return key, nil
}

// Key is the object key of a settlement.
func (a *Archiver) Key(s models.MonthlySettlement) (string, error) {
	month, err := time.Parse("2006-01", s.Month)
	if err != nil {
		return "", fmt.Errorf("%w: month %q: %v", types.ErrInvalidInput, s.Month, err)
	}
	return path.Join(a.prefix,
		fmt.Sprintf("%04d", month.Year()),
		fmt.Sprintf("%02d", int(month.Month())),
		s.DriverID.String()+".json",
	), nil
}
