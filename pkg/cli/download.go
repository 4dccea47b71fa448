package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/retisctl/arc/pkg/controller"
	apperrors "github.com/retisctl/arc/pkg/errors"
	"github.com/retisctl/arc/pkg/oci"
)

const defaultOCITag = "latest"

func downloadCmd() *cli.Command {
	return &cli.Command{
		Name:                  "download",
		EnableShellCompletion: true,
		Usage:                 "Fetch collection output files from the selected worker nodes",
		Description: `Download the capture output file from every selected worker node.

Each node's file lands in the destination directory as
{node-short-name}_{output-file}, so results from different nodes never
collide. Nodes missing the output file are reported as failed without
affecting the other downloads.

With --push the downloaded artifacts are additionally packaged as an OCI
artifact and pushed to a registry via ORAS.

# Examples

Download into the current directory:
  arc download --node-filter 'worker-2*'

Download into a directory and publish to a registry:
  arc download -n 'worker-*' --dest-dir ./results \
    --push oci://ghcr.io/org/captures:run-42`,
		Flags: append(unitCommandFlags(),
			workingDirFlag,
			outputFileFlag,
			&cli.StringFlag{
				Name:    "dest-dir",
				Aliases: []string{"d"},
				Usage:   "local destination directory for the downloaded files",
				Value:   ".",
			},
			&cli.StringFlag{
				Name:  "push",
				Usage: "OCI reference (oci://registry/repository:tag) to publish the downloaded artifacts to",
			},
			&cli.BoolFlag{
				Name:  "plain-http",
				Usage: "use HTTP instead of HTTPS for the registry connection",
			},
			&cli.BoolFlag{
				Name:  "insecure-tls",
				Usage: "skip TLS certificate verification for the registry connection",
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts, err := parseRunOptions(cmd, controller.OperationDownload)
			if err != nil {
				return err
			}
			opts.params.DestDir = cmd.String("dest-dir")

			// Validate the push target before touching any node.
			var pushRef *oci.Reference
			if target := cmd.String("push"); target != "" {
				pushRef, err = oci.ParseTarget(target)
				if err != nil {
					return err
				}
				if !pushRef.IsOCI {
					return apperrors.New(apperrors.ErrCodeInvalidRequest,
						"--push requires an oci://registry/repository[:tag] reference")
				}
				if pushRef.Tag == "" {
					pushRef = pushRef.WithTag(defaultOCITag)
				}
			}

			if err := opts.executeRun(ctx); err != nil {
				return err
			}

			if pushRef == nil || opts.params.DryRun {
				return nil
			}

			result, err := oci.Push(ctx, oci.PushOptions{
				SourceDir:  opts.params.DestDir,
				Registry:   pushRef.Registry,
				Repository: pushRef.Repository,
				Tag:        pushRef.Tag,
				Annotations: map[string]string{
					"org.opencontainers.image.title": "arc collection artifacts",
				},
				PlainHTTP:   cmd.Bool("plain-http"),
				InsecureTLS: cmd.Bool("insecure-tls"),
			})
			if err != nil {
				return fmt.Errorf("failed to publish artifacts: %w", err)
			}

			slog.Info("artifacts pushed",
				"reference", result.Reference, "digest", result.Digest)
			return nil
		},
	}
}
