package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/slashdevops/machinebind/archive"
	"github.com/slashdevops/machinebind/container"
	"github.com/slashdevops/machinebind/seal"
)

// packageExt is appended to the source directory name when pack has no -o.
const packageExt = ".mbind"

func newIdentityCmd(a *app) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Show the identity of this host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := a.provider.Identity(cmd.Context(), a.cfg.Version())
			if err != nil {
				return a.fail("identity", err)
			}

			w := cmd.OutOrStdout()
			if jsonOut {
				out := identityJSON(id)
				out["diagnostics"] = formatDiagnostics(a.provider.Diagnostics())

				return printJSON(w, out)
			}

			fmt.Fprintln(w, titleStyle.Render("Identity"))
			printIdentity(w, id)
			fmt.Fprintln(w)
			printDiagnostics(w, a.provider.Diagnostics())

			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON")

	return cmd
}

func newPackCmd(a *app) *cobra.Command {
	var (
		output         string
		eraseSource    bool
		passphraseFile string
	)

	cmd := &cobra.Command{
		Use:   "pack <dir>",
		Short: "Pack a directory into a package bound to this host",
		Long: `Pack a directory into a package bound to this host.

Without -o the package is written next to the directory as <dir>` + packageExt + `.
--erase-source refuses to run when the package would land inside the
directory it erases.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]

			srcPath, err := resolvePath(src)
			if err != nil {
				return a.fail("pack", err)
			}
			if output == "" {
				output = filepath.Join(filepath.Dir(srcPath), filepath.Base(srcPath)+packageExt)
			}
			outPath, err := resolvePath(output)
			if err != nil {
				return a.fail("pack", err)
			}
			if eraseSource && within(srcPath, outPath) {
				return a.fail("pack", fmt.Errorf("%w: %s is inside %s", errOutputInSource, output, src))
			}

			payload, err := archive.Pack(src,
				archive.WithCompressionLevel(a.cfg.Archive.CompressionLevel),
				archive.WithLogger(a.logger),
			)
			if err != nil {
				return a.fail("pack", err)
			}

			if passphraseFile != "" {
				if payload, err = sealPayload(payload, passphraseFile); err != nil {
					return a.fail("pack", err)
				}
			}

			id, err := a.provider.Identity(cmd.Context(), a.cfg.Version())
			if err != nil {
				return a.fail("pack", err)
			}

			data, err := container.Encode(id, payload, a.cfg.Version())
			if err != nil {
				return a.fail("pack", err)
			}

			if err := os.WriteFile(output, data, 0o600); err != nil {
				return a.fail("pack", err)
			}
			a.metrics.RecordPackage("pack", len(data))
			a.logger.Info("package written",
				"source", src, "output", output, "bytes", len(data),
				"digest", id.Digest(), "encrypted", passphraseFile != "")

			w := cmd.OutOrStdout()
			printResult(w, true, fmt.Sprintf("packed %s into %s (%d bytes)", src, output, len(data)), "")

			if eraseSource {
				// Erase by absolute path: "." cannot be removed by name.
				abs, err := filepath.Abs(src)
				if err != nil {
					return a.fail("erase", err)
				}
				if err := a.eraser().Erase(abs); err != nil {
					return a.fail("erase", err)
				}
				printResult(w, true, "erased "+src, "")
			}

			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "package file (default <dir>"+packageExt+" beside the directory)")
	cmd.Flags().BoolVar(&eraseSource, "erase-source", false, "securely erase the source directory after packing")
	cmd.Flags().StringVar(&passphraseFile, "passphrase-file", "", "encrypt the contents with the passphrase read from this file")

	return cmd
}

func newUnpackCmd(a *app) *cobra.Command {
	var (
		dest           string
		noVerify       bool
		passphraseFile string
	)

	cmd := &cobra.Command{
		Use:   "unpack <file>",
		Short: "Verify a package against this host and extract it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return a.fail("unpack", err)
			}

			if !noVerify {
				if err := a.checkBound(cmd, args[0], data); err != nil {
					return a.fail("unpack", err)
				}
			}

			pkg, err := container.Decode(data)
			if err != nil {
				return a.fail("unpack", err)
			}

			payload, err := openPayload(pkg.Payload, passphraseFile)
			if err != nil {
				return a.fail("unpack", err)
			}

			if dest == "" {
				dest = "."
			}
			if err := archive.Unpack(payload, dest); err != nil {
				return a.fail("unpack", err)
			}
			a.metrics.RecordPackage("unpack", len(data))
			a.logger.Info("package extracted", "file", args[0], "dest", dest, "verified", !noVerify)

			printResult(cmd.OutOrStdout(), true, fmt.Sprintf("unpacked %s into %s", args[0], dest), "")

			return nil
		},
	}
	cmd.Flags().StringVarP(&dest, "dest", "d", "", "destination directory (default current directory)")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "skip the host binding check")
	cmd.Flags().StringVar(&passphraseFile, "passphrase-file", "", "passphrase file for encrypted contents")
	cmd.Flags().Bool("self-destruct", false, "securely erase the package if it is bound to another host")

	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <file>",
		Short: "Check whether a package was created on this host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return a.fail("verify", err)
			}

			if err := a.checkBound(cmd, args[0], data); err != nil {
				if errors.Is(err, errNotBound) {
					return err
				}
				return a.fail("verify", err)
			}

			printResult(cmd.OutOrStdout(), true, args[0]+" is bound to this host", "")

			return nil
		},
	}
	cmd.Flags().Bool("self-destruct", false, "securely erase the package if it is bound to another host")

	return cmd
}

// checkBound validates data against this host. A package bound elsewhere
// yields errNotBound, after being erased when self-destruct is enabled.
func (a *app) checkBound(cmd *cobra.Command, path string, data []byte) error {
	ok, err := a.validator().ValidateAgainstHost(cmd.Context(), data)
	a.metrics.RecordValidation(ok, err)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	w := cmd.OutOrStdout()
	printResult(w, false, "", path+" is not bound to this host")

	if a.cfg.Unpack.SelfDestruct {
		a.logger.Warn("erasing package bound to another host", "file", path, "passes", a.cfg.Erase.Passes)
		if err := a.eraser().Erase(path); err != nil {
			return fmt.Errorf("self-destruct: %w", err)
		}
		printResult(w, false, "", "erased "+path)
	}

	return fmt.Errorf("%s: %w", path, errNotBound)
}

func newVerifyDigestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify-digest <digest>",
		Short: "Check whether a stored identity digest belongs to this host",
		Long: `Check whether a stored identity digest belongs to this host.

The digest is recomputed with --package-version, which must match the
version the digest was created with.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := a.validator().ValidateAgainstDigest(cmd.Context(), a.cfg.Version(), args[0])
			a.metrics.RecordValidation(ok, err)
			if err != nil {
				return a.fail("verify-digest", err)
			}

			printResult(cmd.OutOrStdout(), ok, "digest matches this host", "digest does not match this host")
			if !ok {
				return fmt.Errorf("digest: %w", errNotBound)
			}

			return nil
		},
	}
}

func newInspectCmd(a *app) *cobra.Command {
	var (
		jsonOut        bool
		passphraseFile string
	)

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show a package's header, embedded identity and contents",
		Long: `Show a package's header, embedded identity and contents.

The package is not checked against this host. Encrypted contents are only
listed when --passphrase-file is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return a.fail("inspect", err)
			}

			h, err := container.ReadHeader(data)
			if err != nil {
				return a.fail("inspect", err)
			}

			pkg, err := container.Decode(data)
			if err != nil {
				return a.fail("inspect", err)
			}

			encrypted := seal.IsSealed(pkg.Payload)

			var listing *archive.Listing
			if !encrypted || passphraseFile != "" {
				payload, err := openPayload(pkg.Payload, passphraseFile)
				if err != nil {
					return a.fail("inspect", err)
				}
				if listing, err = archive.List(payload); err != nil {
					return a.fail("inspect", err)
				}
			}
			a.metrics.RecordPackage("inspect", len(data))

			w := cmd.OutOrStdout()
			if jsonOut {
				out := map[string]any{
					"header": map[string]any{
						"version":     h.Version,
						"body_length": h.BodyLength,
					},
					"identity":  identityJSON(pkg.Identity),
					"encrypted": encrypted,
				}
				if listing != nil {
					out["files"] = fileSizes(listing)
					out["dirs"] = listing.Dirs
				}

				return printJSON(w, out)
			}

			printHeader(w, h)
			fmt.Fprintln(w)
			fmt.Fprintln(w, titleStyle.Render("Identity"))
			printIdentity(w, pkg.Identity)
			fmt.Fprintln(w)
			printListing(w, listing)

			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON")
	cmd.Flags().StringVar(&passphraseFile, "passphrase-file", "", "passphrase file for encrypted contents")

	return cmd
}

func fileSizes(l *archive.Listing) map[string]int {
	sizes := make(map[string]int, len(l.Files))
	for p, data := range l.Files {
		sizes[p] = len(data)
	}

	return sizes
}

func newEraseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "erase <path>...",
		Short: "Overwrite files several times, then remove them",
		Long: `Overwrite files several times, then remove them.

Directories are erased recursively. Symlinks are removed without touching
their targets. The number of passes comes from --passes.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := a.eraser()
			for _, p := range args {
				if err := e.Erase(p); err != nil {
					return a.fail("erase", err)
				}
				printResult(cmd.OutOrStdout(), true, fmt.Sprintf("erased %s (%d passes)", p, a.cfg.Erase.Passes), "")
			}

			return nil
		},
	}
}

// resolvePath returns the absolute, symlink-free form of p. p itself may not
// exist yet; its parent directory is resolved instead.
func resolvePath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		return filepath.Join(dir, filepath.Base(abs)), nil
	}

	return abs, nil
}

// within reports whether path is dir or lies below it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}

	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
