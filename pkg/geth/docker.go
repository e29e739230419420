package geth

import (
	"context"
	"fmt"
	"strings"

	"github.com/cuemby/poanet/pkg/manifest"
	"github.com/cuemby/poanet/pkg/runtime"
	"github.com/cuemby/poanet/pkg/types"
	"github.com/cuemby/poanet/pkg/volume"
)

const containerPasswordFile = "/root/password.txt"

// DockerKeygen runs the bootnode and geth tools of the node image in
// throwaway containers.
type DockerKeygen struct {
	image  string
	docker string
	run    runtime.CommandRunner
}

// NewDockerKeygen creates a keygen that shells out to docker run
func NewDockerKeygen(image string, run runtime.CommandRunner) *DockerKeygen {
	if image == "" {
		image = manifest.DefaultImage
	}
	if run == nil {
		run = runtime.ExecRunner
	}
	return &DockerKeygen{image: image, docker: "docker", run: run}
}

// GenerateBootnodeKey runs bootnode -genkey, then -writeaddress
func (k *DockerKeygen) GenerateBootnodeKey(ctx context.Context, dir string) (string, error) {
	hostDir, err := volume.HostPath(dir)
	if err != nil {
		return "", err
	}
	mount := hostDir + ":" + manifest.ContainerDataDir

	if out, err := k.run(ctx, k.docker, "run", "--rm", "-v", mount, k.image,
		"bootnode", "-genkey", manifest.ContainerBootKey); err != nil {
		return "", fmt.Errorf("%w: bootnode -genkey failed: %w (output: %s)", types.ErrExternalProcess, err, out)
	}

	out, err := k.run(ctx, k.docker, "run", "--rm", "-v", mount, k.image,
		"bootnode", "-nodekey", manifest.ContainerBootKey, "-writeaddress")
	if err != nil {
		return "", fmt.Errorf("%w: bootnode -writeaddress failed: %w (output: %s)", types.ErrExternalProcess, err, out)
	}
	return strings.TrimSpace(string(out)), nil
}

// NewAccount runs geth account new against the node data directory
func (k *DockerKeygen) NewAccount(ctx context.Context, dataDir, passwordFile string) error {
	hostDir, err := volume.HostPath(dataDir)
	if err != nil {
		return err
	}
	hostPassword, err := volume.HostPath(passwordFile)
	if err != nil {
		return err
	}

	out, err := k.run(ctx, k.docker, "run", "--rm",
		"-v", hostDir+":"+manifest.ContainerDataDir,
		"-v", hostPassword+":"+containerPasswordFile+":ro",
		k.image,
		"geth", "--datadir", manifest.ContainerDataDir, "account", "new", "--password", containerPasswordFile)
	if err != nil {
		return fmt.Errorf("%w: geth account new failed: %w (output: %s)", types.ErrExternalProcess, err, out)
	}
	return nil
}
