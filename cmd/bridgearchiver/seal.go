package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bridgekit/bridgearchiver/internal/engine/sinks"
	"github.com/bridgekit/bridgearchiver/pkg/archiver"
	"github.com/bridgekit/bridgearchiver/pkg/engine"
	"github.com/bridgekit/bridgearchiver/pkg/engine/containers"
	"github.com/bridgekit/bridgearchiver/pkg/engine/encryptors"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

var sealCommand = &cli.Command{
	Name:      "seal",
	Usage:     "Seal files into an encrypted archive without a job file",
	ArgsUsage: "FILE...",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "cert",
			Usage: "PEM certificate of the recipient (CMS)",
		},
		&cli.StringFlag{
			Name:  "algorithm",
			Value: encryptors.AlgorithmAES256CBC,
			Usage: "CMS content encryption algorithm",
		},
		&cli.StringFlag{
			Name:  "keyset",
			Usage: "Tink JSON public keyset of the recipient",
		},
		&cli.StringFlag{
			Name:  "context-info",
			Usage: "Tink context info bound to the ciphertext",
		},
		&cli.StringFlag{
			Name:  "compression",
			Value: string(containers.MethodDeflate),
			Usage: "Entry compression (deflate, store, zstd)",
		},
		&cli.StringFlag{
			Name:  "manifest",
			Value: archiver.DefaultManifestPath,
			Usage: "Path of the manifest entry, empty to skip it",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Value:   ".",
			Usage:   "Directory the sealed archive is written to, or - for stdout",
		},
		&cli.StringFlag{
			Name:  "name",
			Usage: "File name of the sealed archive (default: random)",
		},
	},
	Action: func(ctx context.Context, command *cli.Command) error {
		logger := getLogger(ctx)
		files := command.Args().Slice()
		if len(files) == 0 {
			return fmt.Errorf("no files to seal")
		}

		fs := afero.NewOsFs()

		enc, err := sealEncryptor(ctx, logger, fs, command)
		if err != nil {
			return err
		}

		output := command.String("output")
		inner, err := sealOutputSink(fs, output)
		if err != nil {
			return err
		}

		factory, err := containers.NewZipFactory(containers.ZipConfig{Method: containers.Method(command.String("compression"))})
		if err != nil {
			return err
		}

		a, err := archiver.New(archiver.Config{
			Fs:         fs,
			Logger:     logger.Named("archiver"),
			Containers: factory,
		})
		if err != nil {
			return err
		}

		sink := sinks.NewSealingSink(logger.Named("sink"), inner, a, enc, fs, sinks.SealingSinkConfig{
			ArtifactName: command.String("name"),
			ManifestPath: command.String("manifest"),
			RemoveLocal:  true,
		})

		if err := sealFiles(ctx, sink, files); err != nil {
			if a.State() != archiver.StateSealed {
				if discardErr := a.Discard(context.Background()); discardErr != nil {
					logger.Error("failed to discard archive", zap.Error(discardErr))
				}
			}
			return err
		}

		return nil
	},
}

func sealEncryptor(ctx context.Context, logger *zap.Logger, fs afero.Fs, command *cli.Command) (engine.Encryptor, error) {
	registry := encryptors.NewDefaultRegistry(logger.Named("encryptors"), fs)

	cert, keyset := command.String("cert"), command.String("keyset")
	switch {
	case cert != "" && keyset != "":
		return nil, fmt.Errorf("--cert and --keyset are mutually exclusive")
	case cert != "":
		return registry.Create(ctx, encryptors.CMSKind, encryptors.CMSSource{
			CertificatePath: cert,
			Config:          encryptors.CMSConfig{Algorithm: command.String("algorithm")},
		})
	case keyset != "":
		return registry.Create(ctx, encryptors.TinkKind, encryptors.TinkSource{
			KeysetPath: keyset,
			Config:     encryptors.TinkConfig{ContextInfo: command.String("context-info")},
		})
	default:
		return nil, fmt.Errorf("one of --cert or --keyset is required")
	}
}

func sealOutputSink(fs afero.Fs, output string) (engine.Sink, error) {
	if output != "-" {
		return sinks.NewFilesystemSinkFromPath(fs, output)
	}

	if sinks.IsTerminal(os.Stdout) {
		return nil, fmt.Errorf("refusing to write a sealed archive to a terminal")
	}
	return sinks.NewStreamSink(os.Stdout), nil
}

func sealFiles(ctx context.Context, sink *sinks.SealingSink, files []string) error {
	for _, name := range files {
		if err := writeFile(ctx, sink, name); err != nil {
			return err
		}
	}
	return sink.Close(ctx)
}

func writeFile(ctx context.Context, sink engine.Sink, name string) (err error) {
	f, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	return sink.Write(ctx, filepath.Base(name), f)
}
