package s3

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// assumeRoleProvider returns cached STS credentials for r.
func assumeRoleProvider(cfg aws.Config, r role) aws.CredentialsProvider {
	provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(cfg), r.arn, func(ar *stscreds.AssumeRoleOptions) {
		ar.RoleSessionName = r.session
		if r.externalID != "" {
			ar.ExternalID = aws.String(r.externalID)
		}
	})
	return aws.NewCredentialsCache(provider)
}
