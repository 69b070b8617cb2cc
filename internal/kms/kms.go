// Package kms wraps the AWS KMS API used to hold secp256k1 signing keys.
package kms

import (
	"encoding/asn1"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	kmslib "github.com/aws/aws-sdk-go/service/kms"
)

// Client is the subset of the KMS API needed to sign with an asymmetric key.
type Client interface {
	GetPublicKey(input *kmslib.GetPublicKeyInput) (*kmslib.GetPublicKeyOutput, error)
	Sign(input *kmslib.SignInput) (*kmslib.SignOutput, error)
}

// ClientConfig locates the KMS key. AWSProfile is optional: when empty the credentials are taken
// from the environment.
type ClientConfig struct {
	KeyID      string
	KeyRegion  string
	AWSProfile string
}

func (c ClientConfig) validate() error {
	if c.KeyID == "" {
		return errors.New("KMS key ID is required")
	}
	if c.KeyRegion == "" {
		return errors.New("KMS key region is required")
	}

	return nil
}

// NewClient returns a KMS client for the region of cfg. Credentials are resolved lazily on the
// first request.
func NewClient(cfg ClientConfig) (Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid KMS config: %w", err)
	}

	awsCfg := aws.Config{Region: aws.String(cfg.KeyRegion)}
	if cfg.AWSProfile != "" {
		awsCfg.Credentials = credentials.NewSharedCredentials("", cfg.AWSProfile)
	}

	sess, err := session.NewSession(&awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return kmslib.New(sess), nil
}

// SPKI is the DER SubjectPublicKeyInfo returned by GetPublicKey.
type SPKI struct {
	AlgorithmIdentifier AlgorithmIdentifier
	SubjectPublicKey    asn1.BitString
}

type AlgorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.ObjectIdentifier
}

// ECDSASig is the DER signature returned by Sign.
type ECDSASig struct {
	R asn1.RawValue
	S asn1.RawValue
}
