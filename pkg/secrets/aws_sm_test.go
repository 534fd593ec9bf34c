package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSM struct {
	secret *string
	err    error
	asked  string
}

func (f *fakeSM) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.asked = aws.ToString(in.SecretId)
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: f.secret}, nil
}

func TestGetSecret_DecodesJSON(t *testing.T) {
	sm := &fakeSM{secret: aws.String(`{"private_key":"abc"}`)}
	p := NewAWSProviderWithClient(sm)

	got, err := p.GetSecret(context.Background(), "prod/pusher/signer")
	require.NoError(t, err)
	assert.Equal(t, "abc", got["private_key"])
	assert.Equal(t, "prod/pusher/signer", sm.asked)
}

func TestGetSecret_Errors(t *testing.T) {
	_, err := NewAWSProviderWithClient(&fakeSM{err: errors.New("denied")}).GetSecret(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")

	_, err = NewAWSProviderWithClient(&fakeSM{}).GetSecret(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no string value")

	_, err = NewAWSProviderWithClient(&fakeSM{secret: aws.String("not json")}).GetSecret(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid secret format")
}
