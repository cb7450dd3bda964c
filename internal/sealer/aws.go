package sealer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// AWSKMSSealer implements Sealer using AWS KMS. The associated data is
// carried as KMS encryption context, which KMS authenticates on decrypt.
type AWSKMSSealer struct {
	keyID  string
	region string
	client *kms.Client
}

// NewAWSKMSSealer creates a new AWS KMS sealer
func NewAWSKMSSealer(keyID, region string) (*AWSKMSSealer, error) {
	if keyID == "" {
		return nil, fmt.Errorf("AWS KMS key ID is required")
	}
	if region == "" {
		return nil, fmt.Errorf("AWS region is required")
	}

	// Default credential chain: env vars, shared config, IAM role
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSKMSSealer{
		keyID:  keyID,
		region: region,
		client: kms.NewFromConfig(cfg),
	}, nil
}

// Seal encrypts data using AWS KMS. KMS manages nonces internally,
// so the returned nonce is nil.
func (s *AWSKMSSealer) Seal(ctx context.Context, aad string, plaintext []byte) ([]byte, []byte, error) {
	output, err := s.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:             aws.String(s.keyID),
		Plaintext:         plaintext,
		EncryptionContext: map[string]string{"shard_context": aad},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("AWS KMS encrypt failed: %w", err)
	}
	return nil, output.CiphertextBlob, nil
}

// Unseal decrypts data using AWS KMS, verifying the encryption context
func (s *AWSKMSSealer) Unseal(ctx context.Context, aad string, nonce, ciphertext []byte) ([]byte, error) {
	output, err := s.client.Decrypt(ctx, &kms.DecryptInput{
		KeyId:             aws.String(s.keyID),
		CiphertextBlob:    ciphertext,
		EncryptionContext: map[string]string{"shard_context": aad},
	})
	if err != nil {
		return nil, fmt.Errorf("AWS KMS decrypt failed: %w", err)
	}
	return output.Plaintext, nil
}

// Provider returns the backend name
func (s *AWSKMSSealer) Provider() string {
	return "aws-kms"
}
