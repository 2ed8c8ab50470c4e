package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	elb "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancing"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
)

// mockAPIError satisfies smithy.APIError so the error classifiers see the
// same shape real SDK errors have.
type mockAPIError struct {
	code    string
	message string
}

func (e *mockAPIError) Error() string                 { return e.code + ": " + e.message }
func (e *mockAPIError) ErrorCode() string             { return e.code }
func (e *mockAPIError) ErrorMessage() string          { return e.message }
func (e *mockAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

// mockEC2 implements EC2API with per-call function fields. Unset fields
// return empty outputs.
type mockEC2 struct {
	describeVpcs               func(*ec2.DescribeVpcsInput) (*ec2.DescribeVpcsOutput, error)
	describeSecurityGroups     func(*ec2.DescribeSecurityGroupsInput) (*ec2.DescribeSecurityGroupsOutput, error)
	revokeSecurityGroupIngress func(*ec2.RevokeSecurityGroupIngressInput) (*ec2.RevokeSecurityGroupIngressOutput, error)
	deleteSecurityGroup        func(*ec2.DeleteSecurityGroupInput) (*ec2.DeleteSecurityGroupOutput, error)
	describeNetworkInterfaces  func(*ec2.DescribeNetworkInterfacesInput) (*ec2.DescribeNetworkInterfacesOutput, error)
	detachNetworkInterface     func(*ec2.DetachNetworkInterfaceInput) (*ec2.DetachNetworkInterfaceOutput, error)
	deleteNetworkInterface     func(*ec2.DeleteNetworkInterfaceInput) (*ec2.DeleteNetworkInterfaceOutput, error)
	describeNatGateways        func(*ec2.DescribeNatGatewaysInput) (*ec2.DescribeNatGatewaysOutput, error)
	deleteNatGateway           func(*ec2.DeleteNatGatewayInput) (*ec2.DeleteNatGatewayOutput, error)
	describeInternetGateways   func(*ec2.DescribeInternetGatewaysInput) (*ec2.DescribeInternetGatewaysOutput, error)
	detachInternetGateway      func(*ec2.DetachInternetGatewayInput) (*ec2.DetachInternetGatewayOutput, error)
	deleteInternetGateway      func(*ec2.DeleteInternetGatewayInput) (*ec2.DeleteInternetGatewayOutput, error)
	describeAddresses          func(*ec2.DescribeAddressesInput) (*ec2.DescribeAddressesOutput, error)
	releaseAddress             func(*ec2.ReleaseAddressInput) (*ec2.ReleaseAddressOutput, error)
	describeVolumes            func(*ec2.DescribeVolumesInput) (*ec2.DescribeVolumesOutput, error)
	deleteVolume               func(*ec2.DeleteVolumeInput) (*ec2.DeleteVolumeOutput, error)
}

func (m *mockEC2) DescribeVpcs(_ context.Context, params *ec2.DescribeVpcsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	if m.describeVpcs != nil {
		return m.describeVpcs(params)
	}
	return &ec2.DescribeVpcsOutput{}, nil
}

func (m *mockEC2) DescribeSecurityGroups(_ context.Context, params *ec2.DescribeSecurityGroupsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	if m.describeSecurityGroups != nil {
		return m.describeSecurityGroups(params)
	}
	return &ec2.DescribeSecurityGroupsOutput{}, nil
}

func (m *mockEC2) RevokeSecurityGroupIngress(_ context.Context, params *ec2.RevokeSecurityGroupIngressInput, _ ...func(*ec2.Options)) (*ec2.RevokeSecurityGroupIngressOutput, error) {
	if m.revokeSecurityGroupIngress != nil {
		return m.revokeSecurityGroupIngress(params)
	}
	return &ec2.RevokeSecurityGroupIngressOutput{}, nil
}

func (m *mockEC2) DeleteSecurityGroup(_ context.Context, params *ec2.DeleteSecurityGroupInput, _ ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error) {
	if m.deleteSecurityGroup != nil {
		return m.deleteSecurityGroup(params)
	}
	return &ec2.DeleteSecurityGroupOutput{}, nil
}

func (m *mockEC2) DescribeNetworkInterfaces(_ context.Context, params *ec2.DescribeNetworkInterfacesInput, _ ...func(*ec2.Options)) (*ec2.DescribeNetworkInterfacesOutput, error) {
	if m.describeNetworkInterfaces != nil {
		return m.describeNetworkInterfaces(params)
	}
	return &ec2.DescribeNetworkInterfacesOutput{}, nil
}

func (m *mockEC2) DetachNetworkInterface(_ context.Context, params *ec2.DetachNetworkInterfaceInput, _ ...func(*ec2.Options)) (*ec2.DetachNetworkInterfaceOutput, error) {
	if m.detachNetworkInterface != nil {
		return m.detachNetworkInterface(params)
	}
	return &ec2.DetachNetworkInterfaceOutput{}, nil
}

func (m *mockEC2) DeleteNetworkInterface(_ context.Context, params *ec2.DeleteNetworkInterfaceInput, _ ...func(*ec2.Options)) (*ec2.DeleteNetworkInterfaceOutput, error) {
	if m.deleteNetworkInterface != nil {
		return m.deleteNetworkInterface(params)
	}
	return &ec2.DeleteNetworkInterfaceOutput{}, nil
}

func (m *mockEC2) DescribeNatGateways(_ context.Context, params *ec2.DescribeNatGatewaysInput, _ ...func(*ec2.Options)) (*ec2.DescribeNatGatewaysOutput, error) {
	if m.describeNatGateways != nil {
		return m.describeNatGateways(params)
	}
	return &ec2.DescribeNatGatewaysOutput{}, nil
}

func (m *mockEC2) DeleteNatGateway(_ context.Context, params *ec2.DeleteNatGatewayInput, _ ...func(*ec2.Options)) (*ec2.DeleteNatGatewayOutput, error) {
	if m.deleteNatGateway != nil {
		return m.deleteNatGateway(params)
	}
	return &ec2.DeleteNatGatewayOutput{}, nil
}

func (m *mockEC2) DescribeInternetGateways(_ context.Context, params *ec2.DescribeInternetGatewaysInput, _ ...func(*ec2.Options)) (*ec2.DescribeInternetGatewaysOutput, error) {
	if m.describeInternetGateways != nil {
		return m.describeInternetGateways(params)
	}
	return &ec2.DescribeInternetGatewaysOutput{}, nil
}

func (m *mockEC2) DetachInternetGateway(_ context.Context, params *ec2.DetachInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.DetachInternetGatewayOutput, error) {
	if m.detachInternetGateway != nil {
		return m.detachInternetGateway(params)
	}
	return &ec2.DetachInternetGatewayOutput{}, nil
}

func (m *mockEC2) DeleteInternetGateway(_ context.Context, params *ec2.DeleteInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.DeleteInternetGatewayOutput, error) {
	if m.deleteInternetGateway != nil {
		return m.deleteInternetGateway(params)
	}
	return &ec2.DeleteInternetGatewayOutput{}, nil
}

func (m *mockEC2) DescribeAddresses(_ context.Context, params *ec2.DescribeAddressesInput, _ ...func(*ec2.Options)) (*ec2.DescribeAddressesOutput, error) {
	if m.describeAddresses != nil {
		return m.describeAddresses(params)
	}
	return &ec2.DescribeAddressesOutput{}, nil
}

func (m *mockEC2) ReleaseAddress(_ context.Context, params *ec2.ReleaseAddressInput, _ ...func(*ec2.Options)) (*ec2.ReleaseAddressOutput, error) {
	if m.releaseAddress != nil {
		return m.releaseAddress(params)
	}
	return &ec2.ReleaseAddressOutput{}, nil
}

func (m *mockEC2) DescribeVolumes(_ context.Context, params *ec2.DescribeVolumesInput, _ ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error) {
	if m.describeVolumes != nil {
		return m.describeVolumes(params)
	}
	return &ec2.DescribeVolumesOutput{}, nil
}

func (m *mockEC2) DeleteVolume(_ context.Context, params *ec2.DeleteVolumeInput, _ ...func(*ec2.Options)) (*ec2.DeleteVolumeOutput, error) {
	if m.deleteVolume != nil {
		return m.deleteVolume(params)
	}
	return &ec2.DeleteVolumeOutput{}, nil
}

type mockEKS struct {
	describeCluster func(*eks.DescribeClusterInput) (*eks.DescribeClusterOutput, error)
	describeAddon   func(*eks.DescribeAddonInput) (*eks.DescribeAddonOutput, error)
	createAddon     func(*eks.CreateAddonInput) (*eks.CreateAddonOutput, error)
}

func (m *mockEKS) DescribeCluster(_ context.Context, params *eks.DescribeClusterInput, _ ...func(*eks.Options)) (*eks.DescribeClusterOutput, error) {
	if m.describeCluster != nil {
		return m.describeCluster(params)
	}
	return &eks.DescribeClusterOutput{}, nil
}

func (m *mockEKS) DescribeAddon(_ context.Context, params *eks.DescribeAddonInput, _ ...func(*eks.Options)) (*eks.DescribeAddonOutput, error) {
	if m.describeAddon != nil {
		return m.describeAddon(params)
	}
	return &eks.DescribeAddonOutput{}, nil
}

func (m *mockEKS) CreateAddon(_ context.Context, params *eks.CreateAddonInput, _ ...func(*eks.Options)) (*eks.CreateAddonOutput, error) {
	if m.createAddon != nil {
		return m.createAddon(params)
	}
	return &eks.CreateAddonOutput{}, nil
}

type mockIAM struct {
	createRole                  func(*iam.CreateRoleInput) (*iam.CreateRoleOutput, error)
	deleteRole                  func(*iam.DeleteRoleInput) (*iam.DeleteRoleOutput, error)
	getRole                     func(*iam.GetRoleInput) (*iam.GetRoleOutput, error)
	attachRolePolicy            func(*iam.AttachRolePolicyInput) (*iam.AttachRolePolicyOutput, error)
	detachRolePolicy            func(*iam.DetachRolePolicyInput) (*iam.DetachRolePolicyOutput, error)
	listAttachedRolePolicies    func(*iam.ListAttachedRolePoliciesInput) (*iam.ListAttachedRolePoliciesOutput, error)
	createPolicy                func(*iam.CreatePolicyInput) (*iam.CreatePolicyOutput, error)
	deletePolicy                func(*iam.DeletePolicyInput) (*iam.DeletePolicyOutput, error)
	listOpenIDConnectProviders  func(*iam.ListOpenIDConnectProvidersInput) (*iam.ListOpenIDConnectProvidersOutput, error)
	getOpenIDConnectProvider    func(*iam.GetOpenIDConnectProviderInput) (*iam.GetOpenIDConnectProviderOutput, error)
	createOpenIDConnectProvider func(*iam.CreateOpenIDConnectProviderInput) (*iam.CreateOpenIDConnectProviderOutput, error)
	deleteOpenIDConnectProvider func(*iam.DeleteOpenIDConnectProviderInput) (*iam.DeleteOpenIDConnectProviderOutput, error)
}

func (m *mockIAM) CreateRole(_ context.Context, params *iam.CreateRoleInput, _ ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	if m.createRole != nil {
		return m.createRole(params)
	}
	return &iam.CreateRoleOutput{}, nil
}

func (m *mockIAM) DeleteRole(_ context.Context, params *iam.DeleteRoleInput, _ ...func(*iam.Options)) (*iam.DeleteRoleOutput, error) {
	if m.deleteRole != nil {
		return m.deleteRole(params)
	}
	return &iam.DeleteRoleOutput{}, nil
}

func (m *mockIAM) GetRole(_ context.Context, params *iam.GetRoleInput, _ ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	if m.getRole != nil {
		return m.getRole(params)
	}
	return &iam.GetRoleOutput{}, nil
}

func (m *mockIAM) AttachRolePolicy(_ context.Context, params *iam.AttachRolePolicyInput, _ ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error) {
	if m.attachRolePolicy != nil {
		return m.attachRolePolicy(params)
	}
	return &iam.AttachRolePolicyOutput{}, nil
}

func (m *mockIAM) DetachRolePolicy(_ context.Context, params *iam.DetachRolePolicyInput, _ ...func(*iam.Options)) (*iam.DetachRolePolicyOutput, error) {
	if m.detachRolePolicy != nil {
		return m.detachRolePolicy(params)
	}
	return &iam.DetachRolePolicyOutput{}, nil
}

func (m *mockIAM) ListAttachedRolePolicies(_ context.Context, params *iam.ListAttachedRolePoliciesInput, _ ...func(*iam.Options)) (*iam.ListAttachedRolePoliciesOutput, error) {
	if m.listAttachedRolePolicies != nil {
		return m.listAttachedRolePolicies(params)
	}
	return &iam.ListAttachedRolePoliciesOutput{}, nil
}

func (m *mockIAM) CreatePolicy(_ context.Context, params *iam.CreatePolicyInput, _ ...func(*iam.Options)) (*iam.CreatePolicyOutput, error) {
	if m.createPolicy != nil {
		return m.createPolicy(params)
	}
	return &iam.CreatePolicyOutput{}, nil
}

func (m *mockIAM) DeletePolicy(_ context.Context, params *iam.DeletePolicyInput, _ ...func(*iam.Options)) (*iam.DeletePolicyOutput, error) {
	if m.deletePolicy != nil {
		return m.deletePolicy(params)
	}
	return &iam.DeletePolicyOutput{}, nil
}

func (m *mockIAM) ListOpenIDConnectProviders(_ context.Context, params *iam.ListOpenIDConnectProvidersInput, _ ...func(*iam.Options)) (*iam.ListOpenIDConnectProvidersOutput, error) {
	if m.listOpenIDConnectProviders != nil {
		return m.listOpenIDConnectProviders(params)
	}
	return &iam.ListOpenIDConnectProvidersOutput{}, nil
}

func (m *mockIAM) GetOpenIDConnectProvider(_ context.Context, params *iam.GetOpenIDConnectProviderInput, _ ...func(*iam.Options)) (*iam.GetOpenIDConnectProviderOutput, error) {
	if m.getOpenIDConnectProvider != nil {
		return m.getOpenIDConnectProvider(params)
	}
	return &iam.GetOpenIDConnectProviderOutput{}, nil
}

func (m *mockIAM) CreateOpenIDConnectProvider(_ context.Context, params *iam.CreateOpenIDConnectProviderInput, _ ...func(*iam.Options)) (*iam.CreateOpenIDConnectProviderOutput, error) {
	if m.createOpenIDConnectProvider != nil {
		return m.createOpenIDConnectProvider(params)
	}
	return &iam.CreateOpenIDConnectProviderOutput{}, nil
}

func (m *mockIAM) DeleteOpenIDConnectProvider(_ context.Context, params *iam.DeleteOpenIDConnectProviderInput, _ ...func(*iam.Options)) (*iam.DeleteOpenIDConnectProviderOutput, error) {
	if m.deleteOpenIDConnectProvider != nil {
		return m.deleteOpenIDConnectProvider(params)
	}
	return &iam.DeleteOpenIDConnectProviderOutput{}, nil
}

type mockELB struct {
	describeLoadBalancers func(*elb.DescribeLoadBalancersInput) (*elb.DescribeLoadBalancersOutput, error)
	describeTags          func(*elb.DescribeTagsInput) (*elb.DescribeTagsOutput, error)
	deleteLoadBalancer    func(*elb.DeleteLoadBalancerInput) (*elb.DeleteLoadBalancerOutput, error)
}

func (m *mockELB) DescribeLoadBalancers(_ context.Context, params *elb.DescribeLoadBalancersInput, _ ...func(*elb.Options)) (*elb.DescribeLoadBalancersOutput, error) {
	if m.describeLoadBalancers != nil {
		return m.describeLoadBalancers(params)
	}
	return &elb.DescribeLoadBalancersOutput{}, nil
}

func (m *mockELB) DescribeTags(_ context.Context, params *elb.DescribeTagsInput, _ ...func(*elb.Options)) (*elb.DescribeTagsOutput, error) {
	if m.describeTags != nil {
		return m.describeTags(params)
	}
	return &elb.DescribeTagsOutput{}, nil
}

func (m *mockELB) DeleteLoadBalancer(_ context.Context, params *elb.DeleteLoadBalancerInput, _ ...func(*elb.Options)) (*elb.DeleteLoadBalancerOutput, error) {
	if m.deleteLoadBalancer != nil {
		return m.deleteLoadBalancer(params)
	}
	return &elb.DeleteLoadBalancerOutput{}, nil
}

type mockS3 struct {
	headBucket          func(*s3.HeadBucketInput) (*s3.HeadBucketOutput, error)
	createBucket        func(*s3.CreateBucketInput) (*s3.CreateBucketOutput, error)
	putBucketVersioning func(*s3.PutBucketVersioningInput) (*s3.PutBucketVersioningOutput, error)
	listObjectVersions  func(*s3.ListObjectVersionsInput) (*s3.ListObjectVersionsOutput, error)
	deleteObjects       func(*s3.DeleteObjectsInput) (*s3.DeleteObjectsOutput, error)
	deleteBucket        func(*s3.DeleteBucketInput) (*s3.DeleteBucketOutput, error)
}

func (m *mockS3) HeadBucket(_ context.Context, params *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if m.headBucket != nil {
		return m.headBucket(params)
	}
	return &s3.HeadBucketOutput{}, nil
}

func (m *mockS3) CreateBucket(_ context.Context, params *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	if m.createBucket != nil {
		return m.createBucket(params)
	}
	return &s3.CreateBucketOutput{}, nil
}

func (m *mockS3) PutBucketVersioning(_ context.Context, params *s3.PutBucketVersioningInput, _ ...func(*s3.Options)) (*s3.PutBucketVersioningOutput, error) {
	if m.putBucketVersioning != nil {
		return m.putBucketVersioning(params)
	}
	return &s3.PutBucketVersioningOutput{}, nil
}

func (m *mockS3) ListObjectVersions(_ context.Context, params *s3.ListObjectVersionsInput, _ ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error) {
	if m.listObjectVersions != nil {
		return m.listObjectVersions(params)
	}
	return &s3.ListObjectVersionsOutput{}, nil
}

func (m *mockS3) DeleteObjects(_ context.Context, params *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	if m.deleteObjects != nil {
		return m.deleteObjects(params)
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func (m *mockS3) DeleteBucket(_ context.Context, params *s3.DeleteBucketInput, _ ...func(*s3.Options)) (*s3.DeleteBucketOutput, error) {
	if m.deleteBucket != nil {
		return m.deleteBucket(params)
	}
	return &s3.DeleteBucketOutput{}, nil
}

type mockSSM struct {
	putParameter    func(*ssm.PutParameterInput) (*ssm.PutParameterOutput, error)
	getParameter    func(*ssm.GetParameterInput) (*ssm.GetParameterOutput, error)
	deleteParameter func(*ssm.DeleteParameterInput) (*ssm.DeleteParameterOutput, error)
}

func (m *mockSSM) PutParameter(_ context.Context, params *ssm.PutParameterInput, _ ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	if m.putParameter != nil {
		return m.putParameter(params)
	}
	return &ssm.PutParameterOutput{}, nil
}

func (m *mockSSM) GetParameter(_ context.Context, params *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	if m.getParameter != nil {
		return m.getParameter(params)
	}
	return &ssm.GetParameterOutput{}, nil
}

func (m *mockSSM) DeleteParameter(_ context.Context, params *ssm.DeleteParameterInput, _ ...func(*ssm.Options)) (*ssm.DeleteParameterOutput, error) {
	if m.deleteParameter != nil {
		return m.deleteParameter(params)
	}
	return &ssm.DeleteParameterOutput{}, nil
}

type mockSTS struct {
	getCallerIdentity func(*sts.GetCallerIdentityInput) (*sts.GetCallerIdentityOutput, error)
}

func (m *mockSTS) GetCallerIdentity(_ context.Context, params *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if m.getCallerIdentity != nil {
		return m.getCallerIdentity(params)
	}
	return &sts.GetCallerIdentityOutput{}, nil
}

// The mocks must satisfy the same interfaces the real clients do.
var (
	_ EC2API = (*mockEC2)(nil)
	_ EKSAPI = (*mockEKS)(nil)
	_ IAMAPI = (*mockIAM)(nil)
	_ ELBAPI = (*mockELB)(nil)
	_ S3API  = (*mockS3)(nil)
	_ SSMAPI = (*mockSSM)(nil)
	_ STSAPI = (*mockSTS)(nil)
)
