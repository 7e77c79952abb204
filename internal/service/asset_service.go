package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/digistore/internal/config"
	"github.com/GTDGit/digistore/internal/utils"
)

const defaultContentType = "application/octet-stream"

// AssetService stores seller product files. With a bucket configured, files
// are PUT to S3-compatible storage using SigV4; otherwise small files are
// kept inline on the product as base64 data URLs.
type AssetService struct {
	bucket    string
	region    string
	endpoint  string
	maxInline int

	creds  aws.CredentialsProvider
	signer *v4.Signer
	client *http.Client
}

// NewAssetService creates an AssetService. Credentials come from the default
// AWS chain (env, shared config, instance role) only when a bucket is set.
func NewAssetService(ctx context.Context, cfg *config.AssetConfig) (*AssetService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("asset config is nil")
	}
	if cfg.Bucket == "" {
		return newAssetService(cfg, nil), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}
	return newAssetService(cfg, awsCfg.Credentials), nil
}

func newAssetService(cfg *config.AssetConfig, creds aws.CredentialsProvider) *AssetService {
	return &AssetService{
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		maxInline: cfg.MaxInlineBytes,
		creds:     creds,
		signer:    v4.NewSigner(),
		client:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Remote reports whether files go to object storage.
func (s *AssetService) Remote() bool { return s.bucket != "" }

// Store saves a product file and returns the reference to keep in
// Product.ProductFile.
func (s *AssetService) Store(ctx context.Context, productID int, fileName string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = defaultContentType
	}
	if !s.Remote() {
		if s.maxInline > 0 && len(data) > s.maxInline {
			return "", utils.NewValidationError("productFile", fmt.Sprintf("must not exceed %d bytes", s.maxInline))
		}
		return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
	}

	name := path.Base(fileName)
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	key, err := utils.GenerateObjectKey(productID, url.PathEscape(name))
	if err != nil {
		return "", fmt.Errorf("failed to generate object key: %w", err)
	}
	return s.upload(ctx, key, data, contentType)
}

func (s *AssetService) upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	objectURL := s.ObjectURL(key)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, objectURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	sum := sha256.Sum256(data)
	payloadHash := hex.EncodeToString(sum[:])
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Amz-Content-Sha256", payloadHash)
	req.ContentLength = int64(len(data))

	creds, err := s.creds.Retrieve(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve credentials: %w", err)
	}
	if err := s.signer.SignHTTP(ctx, creds, req, payloadHash, "s3", s.region, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("failed to sign request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to upload product file")
		return "", fmt.Errorf("failed to upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Error().
			Str("key", key).
			Int("status", resp.StatusCode).
			Str("response", string(body)).
			Msg("Product file upload failed")
		return "", fmt.Errorf("upload failed with status %d", resp.StatusCode)
	}

	log.Info().Str("key", key).Int("bytes", len(data)).Msg("Product file uploaded")
	return objectURL, nil
}

// ObjectURL returns the URL of key. A custom endpoint uses path-style
// addressing.
func (s *AssetService) ObjectURL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
