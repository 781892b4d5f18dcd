package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"tush00nka/bbbab_chatsync/internal/config"
	"tush00nka/bbbab_chatsync/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MediaStore внешнее объектное хранилище; шлюз хранит только URL и тип
type MediaStore interface {
	UploadFile(ctx context.Context, file io.Reader, filename, contentType string, userID, chatID uint) (*model.FileMetadata, error)
	HealthCheck(ctx context.Context) error
}

type S3Service struct {
	config   *config.Config
	uploader *manager.Uploader
	s3Client *s3.Client
}

func NewS3Service(ctx context.Context, cfg *config.Config) (*S3Service, error) {
	s3Opts := []func(*s3.Options){}

	if cfg.S3Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true // обязательно для MinIO
		})
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, s3Opts...)

	log.Info().Str("endpoint", cfg.S3Endpoint).Str("bucket", cfg.S3BucketName).Msg("S3 media store initialized")
	return &S3Service{
		config:   cfg,
		uploader: manager.NewUploader(s3Client),
		s3Client: s3Client,
	}, nil
}

func (s *S3Service) UploadFile(ctx context.Context, file io.Reader, filename, contentType string, userID, chatID uint) (*model.FileMetadata, error) {
	fileID := uuid.New().String()
	filename = path.Base(strings.ReplaceAll(filename, "\\", "/"))
	s3Key := path.Join("chats", strconv.FormatUint(uint64(chatID), 10), fileID, filename)

	result, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.S3BucketName),
		Key:         aws.String(s3Key),
		Body:        file,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}

	url := result.Location
	if s.config.S3PublicURL != "" {
		url = strings.TrimRight(s.config.S3PublicURL, "/") + "/" + s3Key
	}

	log.Debug().Str("key", s3Key).Uint("user_id", userID).Msg("Media uploaded")

	return &model.FileMetadata{
		ID:               fileID,
		Filename:         filename,
		ContentType:      contentType,
		MediaType:        MediaKind(contentType),
		URL:              url,
		S3Key:            s3Key,
		S3Bucket:         s.config.S3BucketName,
		UploadedByUserID: userID,
		ChatID:           chatID,
		CreatedAt:        time.Now(),
	}, nil
}

func (s *S3Service) HealthCheck(ctx context.Context) error {
	_, err := s.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.config.S3BucketName)})
	if err != nil {
		return fmt.Errorf("storage health check failed: %w", err)
	}
	return nil
}

// MediaKind сводит MIME-тип к виду медиа сообщения
func MediaKind(contentType string) string {
	major, _, _ := strings.Cut(strings.ToLower(contentType), "/")
	switch major {
	case "image", "video", "audio":
		return major
	default:
		return "file"
	}
}
