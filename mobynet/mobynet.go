// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package mobynet

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
)

// DefaultDockerHost is the API endpoint of the local Docker daemon.
const DefaultDockerHost = "unix:///var/run/docker.sock"

// NewClient returns a Docker client talking to the specified API endpoint,
// negotiating the API version.
func NewClient(host string) (*client.Client, error) {
	if host == "" {
		host = DefaultDockerHost
	}
	cln, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to the Docker daemon: %w", err)
	}
	return cln, nil
}

// NetnsOf returns the filesystem path referencing the network namespace of
// the specified running container, such as "/proc/666/ns/net".
func NetnsOf(ctx context.Context, moby client.APIClient, name string) (string, error) {
	details, err := inspect(ctx, moby, name)
	if err != nil {
		return "", err
	}
	return netnsPath(details.State.Pid), nil
}

// Network describes a Docker network attached to a container in terms of its
// name, as well as the DNS labels of the other containers attached to it.
type Network struct {
	Label  string   // name of Docker network used as DNS "TLD" label.
	Labels []string // container and alias names used as DNS labels.
}

// AttachedNetworks returns the networks attached to the specified running
// container, together with the names of the other containers on these
// networks.
func AttachedNetworks(ctx context.Context, moby client.APIClient, name string) ([]Network, error) {
	details, err := inspect(ctx, moby, name)
	if err != nil {
		return nil, err
	}
	self := strings.TrimPrefix(details.Name, "/") // Docker's "/name" legacy
	aliases := map[string]types.ContainerJSON{}   // inspected containers by name
	nets := []Network{}
	for netname, endpoint := range details.NetworkSettings.Networks {
		netdetails, err := moby.NetworkInspect(ctx, endpoint.NetworkID, types.NetworkInspectOptions{})
		if err != nil {
			return nil, fmt.Errorf("cannot inspect network %q: %w", netname, err)
		}
		labels := map[string]struct{}{}
		for _, attached := range netdetails.Containers {
			if attached.Name == self {
				continue
			}
			labels[attached.Name] = struct{}{}
			cntr, ok := aliases[attached.Name]
			if !ok {
				cntr, err = moby.ContainerInspect(ctx, attached.Name)
				if err != nil {
					continue // gone in the meantime.
				}
				aliases[attached.Name] = cntr
			}
			if cntr.NetworkSettings == nil {
				continue
			}
			if ep, ok := cntr.NetworkSettings.Networks[netname]; ok && ep != nil {
				for _, alias := range ep.Aliases {
					labels[alias] = struct{}{}
				}
			}
		}
		if len(labels) == 0 {
			continue
		}
		net := Network{Label: netname, Labels: make([]string, 0, len(labels))}
		for label := range labels {
			net.Labels = append(net.Labels, label)
		}
		sort.Strings(net.Labels)
		nets = append(nets, net)
	}
	sort.Slice(nets, func(a, b int) bool { return nets[a].Label < nets[b].Label })
	return nets, nil
}

// Names returns the names resolvable from a container attached to the
// specified networks: each label qualified by its network name, as well as
// each label on its own.
func Names(nets []Network) []string {
	names := []string{}
	unqualified := map[string]struct{}{}
	for _, net := range nets {
		for _, label := range net.Labels {
			names = append(names, label+"."+net.Label)
			unqualified[label] = struct{}{}
		}
	}
	labels := make([]string, 0, len(unqualified))
	for label := range unqualified {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return append(names, labels...)
}

// inspect returns the details of a running container.
func inspect(ctx context.Context, moby client.APIClient, name string) (types.ContainerJSON, error) {
	details, err := moby.ContainerInspect(ctx, name)
	if err != nil {
		return types.ContainerJSON{}, fmt.Errorf("cannot inspect container %q: %w", name, err)
	}
	if details.ContainerJSONBase == nil || details.State == nil || details.State.Pid == 0 {
		return types.ContainerJSON{}, fmt.Errorf("container %q is not running", name)
	}
	if details.NetworkSettings == nil {
		details.NetworkSettings = &types.NetworkSettings{}
	}
	return details, nil
}

func netnsPath(pid int) string {
	return fmt.Sprintf("/proc/%d/ns/net", pid)
}
