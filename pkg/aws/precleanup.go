package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	elb "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/thingslab-dev/thingslab-orchestrator/pkg/status"
)

// PreCleanup removes the resources Kubernetes created behind terraform's
// back, in dependency order: load balancers, their security groups (revoke
// referencing rules first), orphaned network interfaces, NAT gateways (with
// their elastic IPs) and finally the internet gateway. Each step is
// best-effort: not-found and still-in-use errors are skipped, permission
// errors abort.
func PreCleanup(ctx context.Context, clients *Clients, vpcID, clusterName string) error {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "aws.PreCleanup")
	defer span.End()

	span.SetAttributes(
		attribute.String("vpc_id", vpcID),
		attribute.String("cluster_name", clusterName),
	)

	if _, err := CleanupLoadBalancers(ctx, clients.ELB, clusterName); err != nil {
		span.RecordError(err)
		return err
	}

	if err := cleanupSecurityGroups(ctx, clients.EC2, vpcID); err != nil {
		span.RecordError(err)
		return err
	}

	if err := cleanupNetworkInterfaces(ctx, clients.EC2, vpcID); err != nil {
		span.RecordError(err)
		return err
	}

	if err := cleanupNATGateways(ctx, clients.EC2, vpcID, clusterName); err != nil {
		span.RecordError(err)
		return err
	}

	if err := cleanupInternetGateway(ctx, clients.EC2, vpcID); err != nil {
		span.RecordError(err)
		return err
	}

	return nil
}

// CleanupLoadBalancers deletes Classic ELBs tagged with the cluster's
// kubernetes.io/cluster tag. Kubernetes-created load balancers are not in
// terraform state and block VPC deletion until removed.
func CleanupLoadBalancers(ctx context.Context, client ELBAPI, clusterName string) (int, error) {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "aws.CleanupLoadBalancers")
	defer span.End()

	tagKey := KubernetesClusterTag(clusterName)
	span.SetAttributes(attribute.String("cluster_name", clusterName))

	lbs, err := client.DescribeLoadBalancers(ctx, &elb.DescribeLoadBalancersInput{})
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to describe load balancers: %w", err)
	}

	var names []string
	for _, lb := range lbs.LoadBalancerDescriptions {
		names = append(names, aws.ToString(lb.LoadBalancerName))
	}

	if len(names) == 0 {
		span.SetAttributes(attribute.Int("load_balancers_deleted", 0))
		return 0, nil
	}

	tagsOutput, err := client.DescribeTags(ctx, &elb.DescribeTagsInput{
		LoadBalancerNames: names,
	})
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to describe load balancer tags: %w", err)
	}

	var deleted int
	for _, tagDesc := range tagsOutput.TagDescriptions {
		for _, tag := range tagDesc.Tags {
			if tag.Key == nil || *tag.Key != tagKey {
				continue
			}

			status.Send(ctx, status.NewUpdate(status.LevelProgress, "Deleting Kubernetes-created load balancer").
				WithResource("load-balancer").
				WithAction("deleting").
				WithMetadata("name", aws.ToString(tagDesc.LoadBalancerName)))

			_, err := client.DeleteLoadBalancer(ctx, &elb.DeleteLoadBalancerInput{
				LoadBalancerName: tagDesc.LoadBalancerName,
			})
			if err := BestEffort(ctx, "load-balancer", err); err != nil {
				span.RecordError(err)
				return deleted, fmt.Errorf("failed to delete load balancer %s: %w", aws.ToString(tagDesc.LoadBalancerName), err)
			}
			deleted++
			break
		}
	}

	span.SetAttributes(attribute.Int("load_balancers_deleted", deleted))
	return deleted, nil
}

// cleanupSecurityGroups deletes every non-default security group in the
// VPC. Rules referencing a group, from siblings or the group itself, block
// its deletion, so referencing rules are revoked first.
func cleanupSecurityGroups(ctx context.Context, client EC2API, vpcID string) error {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "aws.cleanupSecurityGroups")
	defer span.End()

	span.SetAttributes(attribute.String("vpc_id", vpcID))

	sgs, err := client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []ec2types.Filter{
			{
				Name:   strPtr("vpc-id"),
				Values: []string{vpcID},
			},
		},
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to describe security groups in %s: %w", vpcID, err)
	}

	var deleted int
	for _, sg := range sgs.SecurityGroups {
		if sg.GroupName != nil && *sg.GroupName == "default" {
			continue
		}
		groupID := aws.ToString(sg.GroupId)

		if err := revokeReferencingRules(ctx, client, groupID); err != nil {
			span.RecordError(err)
			return err
		}
		if err := deleteSecurityGroupWithRetry(ctx, client, groupID); err != nil {
			if err := BestEffort(ctx, "security-group", err); err != nil {
				span.RecordError(err)
				return err
			}
			continue
		}
		deleted++
	}

	span.SetAttributes(attribute.Int("security_groups_deleted", deleted))
	return nil
}

// revokeReferencingRules removes ingress rules in any security group that
// reference the given group ID. Kubernetes adds such rules to the node
// group's security group for ELB traffic, and they block deletion.
func revokeReferencingRules(ctx context.Context, client EC2API, groupID string) error {
	sgs, err := client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []ec2types.Filter{
			{
				Name:   strPtr("ip-permission.group-id"),
				Values: []string{groupID},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to find security groups referencing %s: %w", groupID, err)
	}

	for _, sg := range sgs.SecurityGroups {
		var permissionsToRevoke []ec2types.IpPermission
		for _, perm := range sg.IpPermissions {
			for _, pair := range perm.UserIdGroupPairs {
				if pair.GroupId != nil && *pair.GroupId == groupID {
					permissionsToRevoke = append(permissionsToRevoke, ec2types.IpPermission{
						IpProtocol:       perm.IpProtocol,
						FromPort:         perm.FromPort,
						ToPort:           perm.ToPort,
						UserIdGroupPairs: []ec2types.UserIdGroupPair{pair},
					})
				}
			}
		}

		if len(permissionsToRevoke) == 0 {
			continue
		}

		status.Send(ctx, status.NewUpdate(status.LevelProgress, "Revoking rules referencing security group").
			WithResource("security-group").
			WithAction("revoking").
			WithMetadata("referenced_group", groupID).
			WithMetadata("in_group", aws.ToString(sg.GroupId)).
			WithMetadata("rules", len(permissionsToRevoke)))

		_, err := client.RevokeSecurityGroupIngress(ctx, &ec2.RevokeSecurityGroupIngressInput{
			GroupId:       sg.GroupId,
			IpPermissions: permissionsToRevoke,
		})
		if err := BestEffort(ctx, "security-group-rule", err); err != nil {
			return fmt.Errorf("failed to revoke rules in %s referencing %s: %w", aws.ToString(sg.GroupId), groupID, err)
		}
	}

	return nil
}

// deleteSecurityGroupWithRetry deletes a security group, retrying while AWS
// reports DependencyViolation. ENIs released by a deleted ELB take a while
// to disappear, so the group can stay undeletable for a few minutes.
func deleteSecurityGroupWithRetry(ctx context.Context, client EC2API, groupID string) error {
	const maxAttempts = 12
	const retryInterval = 5 * time.Second

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		_, err := client.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{
			GroupId: aws.String(groupID),
		})
		if err == nil || IsNotFound(err) {
			return nil
		}

		if !IsInUse(err) {
			return fmt.Errorf("failed to delete security group %s: %w", groupID, err)
		}

		if attempt == maxAttempts {
			return fmt.Errorf("failed to delete security group %s after %d attempts: %w", groupID, maxAttempts, err)
		}

		status.Send(ctx, status.NewUpdate(status.LevelProgress, "Waiting for dependencies before deleting security group").
			WithResource("security-group").
			WithAction("waiting").
			WithMetadata("group_id", groupID).
			WithMetadata("attempt", attempt))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return nil
}

// cleanupNetworkInterfaces force-detaches and deletes leftover ENIs in the
// VPC. CNI and ELB interfaces can linger after their owners are gone.
func cleanupNetworkInterfaces(ctx context.Context, client EC2API, vpcID string) error {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "aws.cleanupNetworkInterfaces")
	defer span.End()

	span.SetAttributes(attribute.String("vpc_id", vpcID))

	out, err := client.DescribeNetworkInterfaces(ctx, &ec2.DescribeNetworkInterfacesInput{
		Filters: []ec2types.Filter{
			{
				Name:   strPtr("vpc-id"),
				Values: []string{vpcID},
			},
		},
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to describe network interfaces in %s: %w", vpcID, err)
	}

	var deleted int
	for _, eni := range out.NetworkInterfaces {
		eniID := aws.ToString(eni.NetworkInterfaceId)

		if eni.Attachment != nil && eni.Attachment.AttachmentId != nil {
			_, err := client.DetachNetworkInterface(ctx, &ec2.DetachNetworkInterfaceInput{
				AttachmentId: eni.Attachment.AttachmentId,
				Force:        aws.Bool(true),
			})
			if err := BestEffort(ctx, "network-interface", err); err != nil {
				span.RecordError(err)
				return fmt.Errorf("failed to detach network interface %s: %w", eniID, err)
			}
		}

		_, err := client.DeleteNetworkInterface(ctx, &ec2.DeleteNetworkInterfaceInput{
			NetworkInterfaceId: eni.NetworkInterfaceId,
		})
		if err := BestEffort(ctx, "network-interface", err); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to delete network interface %s: %w", eniID, err)
		}
		deleted++
	}

	span.SetAttributes(attribute.Int("network_interfaces_deleted", deleted))
	return nil
}

// cleanupNATGateways deletes the VPC's NAT gateways, waits for them to
// release their network interfaces, then releases the cluster's unassociated
// elastic IPs. EIPs are listed before deletion because AWS stops reporting
// allocation IDs once a NAT gateway reaches the deleted state.
func cleanupNATGateways(ctx context.Context, client EC2API, vpcID, clusterName string) error {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "aws.cleanupNATGateways")
	defer span.End()

	span.SetAttributes(attribute.String("vpc_id", vpcID))

	clusterEIPs, err := client.DescribeAddresses(ctx, &ec2.DescribeAddressesInput{
		Filters: append(ClusterTagFilters(clusterName), ec2types.Filter{
			Name:   strPtr("domain"),
			Values: []string{"vpc"},
		}),
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to describe cluster EIPs: %w", err)
	}

	out, err := client.DescribeNatGateways(ctx, &ec2.DescribeNatGatewaysInput{
		Filter: []ec2types.Filter{
			{
				Name:   strPtr("vpc-id"),
				Values: []string{vpcID},
			},
		},
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to describe NAT gateways: %w", err)
	}

	var pending []string
	for _, ng := range out.NatGateways {
		natID := aws.ToString(ng.NatGatewayId)
		state := string(ng.State)

		if state == "deleted" {
			continue
		}
		pending = append(pending, natID)
		if state == "deleting" {
			continue
		}

		status.Send(ctx, status.NewUpdate(status.LevelProgress, "Deleting NAT gateway").
			WithResource("nat-gateway").
			WithAction("deleting").
			WithMetadata("nat_gateway_id", natID))

		_, err := client.DeleteNatGateway(ctx, &ec2.DeleteNatGatewayInput{
			NatGatewayId: ng.NatGatewayId,
		})
		if err := BestEffort(ctx, "nat-gateway", err); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to delete NAT gateway %s: %w", natID, err)
		}
	}

	// NAT gateway deletion can take up to 10 minutes to release its ENIs.
	for _, natID := range pending {
		waiter := ec2.NewNatGatewayDeletedWaiter(client)
		if err := waiter.Wait(ctx, &ec2.DescribeNatGatewaysInput{
			NatGatewayIds: []string{natID},
		}, 10*time.Minute); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed waiting for NAT gateway %s deletion: %w", natID, err)
		}
	}

	var released int
	for _, addr := range clusterEIPs.Addresses {
		if addr.AssociationId != nil || addr.AllocationId == nil {
			continue
		}
		_, err := client.ReleaseAddress(ctx, &ec2.ReleaseAddressInput{
			AllocationId: addr.AllocationId,
		})
		if err := BestEffort(ctx, "elastic-ip", err); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to release EIP %s: %w", aws.ToString(addr.AllocationId), err)
		}
		released++
	}

	span.SetAttributes(
		attribute.Int("nat_gateways_deleted", len(pending)),
		attribute.Int("eips_released", released),
	)
	return nil
}

// cleanupInternetGateway detaches and deletes the VPC's internet gateway.
func cleanupInternetGateway(ctx context.Context, client EC2API, vpcID string) error {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "aws.cleanupInternetGateway")
	defer span.End()

	span.SetAttributes(attribute.String("vpc_id", vpcID))

	out, err := client.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{
		Filters: []ec2types.Filter{
			{
				Name:   strPtr("attachment.vpc-id"),
				Values: []string{vpcID},
			},
		},
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to describe internet gateways: %w", err)
	}

	if len(out.InternetGateways) == 0 {
		span.SetAttributes(attribute.Bool("internet_gateway_exists", false))
		return nil
	}

	// One IGW per VPC.
	igwID := aws.ToString(out.InternetGateways[0].InternetGatewayId)

	_, err = client.DetachInternetGateway(ctx, &ec2.DetachInternetGatewayInput{
		InternetGatewayId: &igwID,
		VpcId:             &vpcID,
	})
	if err := BestEffort(ctx, "internet-gateway", err); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to detach internet gateway %s: %w", igwID, err)
	}

	_, err = client.DeleteInternetGateway(ctx, &ec2.DeleteInternetGatewayInput{
		InternetGatewayId: &igwID,
	})
	if err := BestEffort(ctx, "internet-gateway", err); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete internet gateway %s: %w", igwID, err)
	}

	span.SetAttributes(attribute.String("internet_gateway_id", igwID))
	return nil
}
